package upload

import (
	"encoding/json"
	"maps"
	"strings"

	"github.com/your-org/udn/pkg/checksum"
)

// RequiredMetadataFields must be present and non-empty in every upload's
// metadata.
var RequiredMetadataFields = []string{"assembly", "coverage"}

// ChecksumKey is the metadata key the provenance fingerprint is stored under.
const ChecksumKey = "md5"

// ValidateMetadata checks md for the required fields. It has no side
// effects.
func ValidateMetadata(md map[string]any) error {
	if md == nil {
		return newError(KindValidation, "metadata is required")
	}
	for _, field := range RequiredMetadataFields {
		if isEmpty(md[field]) {
			return newError(KindValidation, "metadata field %q is missing or empty", field)
		}
	}
	return nil
}

// prepareMetadata validates spec's metadata and returns a copy with the
// file fingerprint added under ChecksumKey.
func prepareMetadata(spec FileUploadSpec) (map[string]any, error) {
	if err := ValidateMetadata(spec.Metadata); err != nil {
		return nil, err
	}

	sum, err := checksum.Fingerprint(spec.FilePath)
	if err != nil {
		return nil, newError(KindValidation, "compute checksum: %w", err)
	}

	md := maps.Clone(spec.Metadata)
	md[ChecksumKey] = sum
	return md, nil
}

func isEmpty(v any) bool {
	switch val := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(val) == ""
	case json.Number:
		return val == ""
	case []any:
		return len(val) == 0
	case map[string]any:
		return len(val) == 0
	default:
		return false
	}
}
