package objectstore

import (
	"context"
	"fmt"
	"strings"
)

// Multipart policy shared by every provider.
const (
	MiB = 1024 * 1024

	// MultipartThreshold is the size at which a file is split into parts.
	MultipartThreshold int64 = 25 * MiB
	// PartSize is the size of every part but the last.
	PartSize int64 = 25 * MiB
	// MaxConcurrency bounds simultaneous part uploads for one file.
	MaxConcurrency = 10
)

// Credentials are the short-lived keys issued by the metadata service.
type Credentials struct {
	AccessKey    string
	SecretKey    string
	SessionToken string
}

// Config contains the information required to talk to an object store.
type Config struct {
	Provider    string
	Endpoint    string
	Region      string
	UseSSL      bool
	Credentials Credentials
}

// Progress receives byte counts as they are sent. Implementations must be
// safe for concurrent use.
type Progress interface {
	Add(n int64)
}

// UploadResult describes a stored object.
type UploadResult struct {
	Bucket string
	Key    string
	Size   int64
	ETag   string
	Parts  int
}

// Client represents the capabilities the upload client expects.
type Client interface {
	UploadFile(ctx context.Context, bucket, key, path string, progress Progress) (*UploadResult, error)
	Close() error
}

// Factory opens a Client for one set of credentials.
type Factory func(cfg Config) (Client, error)

// New creates an object store client based on the given configuration.
func New(cfg Config) (Client, error) {
	switch cfg.Provider {
	case "", "minio":
		return newMinioClient(cfg)
	case "s3", "aws":
		return newS3Client(cfg)
	default:
		return nil, fmt.Errorf("unsupported object store provider: %s", cfg.Provider)
	}
}

// partCount returns the number of parts a file of size bytes is split into.
func partCount(size, partSize int64) int {
	if size == 0 {
		return 1
	}
	return int((size + partSize - 1) / partSize)
}

func hostOnly(endpoint string) string {
	endpoint = strings.TrimPrefix(endpoint, "https://")
	endpoint = strings.TrimPrefix(endpoint, "http://")
	return strings.TrimSuffix(endpoint, "/")
}

type nopProgress struct{}

func (nopProgress) Add(int64) {}

func orNop(p Progress) Progress {
	if p == nil {
		return nopProgress{}
	}
	return p
}
