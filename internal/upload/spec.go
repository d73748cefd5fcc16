package upload

import (
	"bytes"
	"encoding/json"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"strings"
)

// SidecarSuffix marks the metadata file that accompanies a data file in
// batch mode.
const SidecarSuffix = ".json"

// UploadConfig is supplied by the caller and stays fixed for one run.
type UploadConfig struct {
	Host             string
	UDNToken         string
	FileServiceToken string
	Bucket           string
	Permissions      []string
	Force            bool
}

// FileUploadSpec describes one file to upload. It is built once, before
// any network call, and never modified afterwards.
type FileUploadSpec struct {
	FileName     string
	FilePath     string
	PatientUUID  string
	SeqRequestID string
	Site         string
	Metadata     map[string]any
}

// withMetadata returns a copy of s carrying md.
func (s FileUploadSpec) withMetadata(md map[string]any) FileUploadSpec {
	s.Metadata = md
	return s
}

// SpecFromArgs builds a spec from explicit command line values.
func SpecFromArgs(filePath, seqRequestID, patientUUID, site string, metadata map[string]any) (FileUploadSpec, error) {
	abs, err := filepath.Abs(filePath)
	if err != nil {
		return FileUploadSpec{}, newError(KindValidation, "resolve path %s: %w", filePath, err)
	}

	return FileUploadSpec{
		FileName:     filepath.Base(abs),
		FilePath:     abs,
		PatientUUID:  patientUUID,
		SeqRequestID: seqRequestID,
		Site:         site,
		Metadata:     maps.Clone(metadata),
	}, nil
}

type sidecar struct {
	PatientUUID  string          `json:"patient_uuid"`
	SeqRequestID json.RawMessage `json:"seq_request_id"`
	Site         string          `json:"site"`
	Metadata     map[string]any  `json:"metadata"`
}

// SpecFromSidecar builds the spec for dir/fileName from dir/fileName.json.
func SpecFromSidecar(dir, fileName string) (FileUploadSpec, error) {
	sidecarPath := filepath.Join(dir, fileName+SidecarSuffix)
	data, err := os.ReadFile(sidecarPath)
	if err != nil {
		return FileUploadSpec{}, newError(KindValidation, "read metadata file %s: %w", filepath.Base(sidecarPath), err)
	}

	var sc sidecar
	if err := decodeJSON(data, &sc); err != nil {
		return FileUploadSpec{}, newError(KindValidation, "parse metadata file %s: %w", filepath.Base(sidecarPath), err)
	}

	seqID := rawToString(sc.SeqRequestID)
	if sc.PatientUUID == "" {
		return FileUploadSpec{}, newError(KindValidation, "metadata file %s: patient_uuid is required", filepath.Base(sidecarPath))
	}
	if seqID == "" {
		return FileUploadSpec{}, newError(KindValidation, "metadata file %s: seq_request_id is required", filepath.Base(sidecarPath))
	}

	return SpecFromArgs(filepath.Join(dir, fileName), seqID, sc.PatientUUID, sc.Site, sc.Metadata)
}

// ParseMetadataArg reads the --metadata value: inline JSON, or @path to a
// JSON file. An empty value yields nil metadata.
func ParseMetadataArg(raw string) (map[string]any, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}

	data := []byte(raw)
	if path, ok := strings.CutPrefix(raw, "@"); ok {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read metadata %s: %w", path, err)
		}
		data = b
	}

	var md map[string]any
	if err := decodeJSON(data, &md); err != nil {
		return nil, fmt.Errorf("parse metadata: %w", err)
	}
	return md, nil
}

// decodeJSON keeps numbers as json.Number so they are sent back unchanged.
func decodeJSON(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	return dec.Decode(v)
}

// rawToString renders a JSON string or number as plain text.
func rawToString(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}
