package upload

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	registerPath     = "api/sequence/file/"
	markUploadedPath = "api/sequence/file/mark_uploaded/"
)

// Session holds what a successful registration hands back: temporary storage
// credentials and the identifiers completion needs. It belongs to a single
// task run.
type Session struct {
	AccessKey    string
	SecretKey    string
	SessionToken string
	FolderName   string
	// LocationID and FileServiceID are echoed back to the service verbatim.
	LocationID    json.RawMessage
	FileServiceID json.RawMessage
}

// Registrar registers an upload and later marks it complete.
type Registrar interface {
	Register(ctx context.Context, spec FileUploadSpec) (*Session, error)
	Complete(ctx context.Context, session *Session) error
}

// APIClient talks to the metadata service over HTTP.
type APIClient struct {
	cfg    UploadConfig
	http   *http.Client
	logger *zap.Logger
}

// NewAPIClient constructs an APIClient. A nil httpClient uses
// http.DefaultClient.
func NewAPIClient(cfg UploadConfig, httpClient *http.Client, logger *zap.Logger) *APIClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &APIClient{cfg: cfg, http: httpClient, logger: logger}
}

type registerRequest struct {
	Filename    string         `json:"filename"`
	PatientUUID string         `json:"patient_uuid"`
	SequenceID  string         `json:"sequence_id"`
	Site        string         `json:"site"`
	Bucket      string         `json:"bucket"`
	Metadata    map[string]any `json:"metadata"`
	Permissions []string       `json:"permissions"`
}

type registerResponse struct {
	SecretKey    string          `json:"secret_key"`
	AccessKey    string          `json:"access_key"`
	SessionToken string          `json:"session_token"`
	FolderName   string          `json:"folder_name"`
	LocationID   json.RawMessage `json:"location_id"`
	FSUUID       json.RawMessage `json:"fs_uuid"`
	Error        json.RawMessage `json:"error"`
}

type markUploadedRequest struct {
	FSUUID     json.RawMessage `json:"fs_uuid"`
	LocationID json.RawMessage `json:"location_id"`
}

// Register records the upload intent. A 409 fails with a conflict unless
// force is set, any 5xx always fails, and other non-2xx statuses are logged
// and tolerated.
func (c *APIClient) Register(ctx context.Context, spec FileUploadSpec) (*Session, error) {
	perms := c.cfg.Permissions
	if perms == nil {
		perms = []string{}
	}

	status, body, err := c.post(ctx, registerPath, registerRequest{
		Filename:    spec.FileName,
		PatientUUID: spec.PatientUUID,
		SequenceID:  spec.SeqRequestID,
		Site:        spec.Site,
		Bucket:      c.cfg.Bucket,
		Metadata:    spec.Metadata,
		Permissions: perms,
	})
	if err != nil {
		return nil, newError(KindRegistration, "register file: %w", err)
	}

	var resp registerResponse
	decodeErr := json.Unmarshal(body, &resp)

	if status >= http.StatusInternalServerError {
		return nil, newError(KindRegistration, "register file: server error (status %d): %s",
			status, serverMessage(resp.Error, status))
	}
	if decodeErr != nil {
		return nil, newError(KindRegistration, "decode registration response (status %d): %w", status, decodeErr)
	}

	switch {
	case status == http.StatusConflict && !c.cfg.Force:
		return nil, newError(KindConflict, "%s", serverMessage(resp.Error, status))
	case status == http.StatusConflict:
		c.logger.Warn("file already registered, continuing because force is set",
			zap.String("file", spec.FileName),
			zap.String("server_error", serverMessage(resp.Error, status)))
	case status > 299:
		c.logger.Warn("unexpected registration status, continuing",
			zap.String("file", spec.FileName),
			zap.Int("status", status),
			zap.String("server_error", serverMessage(resp.Error, status)))
	}

	return &Session{
		AccessKey:     resp.AccessKey,
		SecretKey:     resp.SecretKey,
		SessionToken:  resp.SessionToken,
		FolderName:    resp.FolderName,
		LocationID:    resp.LocationID,
		FileServiceID: resp.FSUUID,
	}, nil
}

// Complete marks the registered file as uploaded. Only HTTP 200 counts as
// success.
func (c *APIClient) Complete(ctx context.Context, session *Session) error {
	status, _, err := c.post(ctx, markUploadedPath, markUploadedRequest{
		FSUUID:     orNull(session.FileServiceID),
		LocationID: orNull(session.LocationID),
	})
	if err != nil {
		return newError(KindCompletion, "mark file as uploaded: %w", err)
	}
	if status != http.StatusOK {
		return newError(KindCompletion, "failed to mark the file as uploaded (status %d)", status)
	}
	return nil
}

func (c *APIClient) post(ctx context.Context, path string, payload any) (int, []byte, error) {
	endpoint, err := c.endpoint(path)
	if err != nil {
		return 0, nil, err
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return 0, nil, fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return 0, nil, fmt.Errorf("build request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("read response: %w", err)
	}

	c.logger.Debug("metadata service call",
		zap.String("url", endpoint),
		zap.Int("status", resp.StatusCode))
	return resp.StatusCode, body, nil
}

func (c *APIClient) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Token "+c.cfg.UDNToken)
	req.Header.Set("FSAuthorization", "FSToken "+c.cfg.FileServiceToken)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
}

// endpoint resolves path against the configured host the way a browser
// resolves a relative link.
func (c *APIClient) endpoint(path string) (string, error) {
	base, err := url.Parse(c.cfg.Host)
	if err != nil {
		return "", fmt.Errorf("parse host %q: %w", c.cfg.Host, err)
	}
	ref, err := url.Parse(path)
	if err != nil {
		return "", err
	}
	return base.ResolveReference(ref).String(), nil
}

func serverMessage(raw json.RawMessage, status int) string {
	if msg := strings.TrimSpace(rawToString(raw)); msg != "" {
		return msg
	}
	return fmt.Sprintf("%d %s", status, http.StatusText(status))
}

func orNull(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 {
		return json.RawMessage("null")
	}
	return raw
}
