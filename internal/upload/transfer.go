package upload

import (
	"context"
	"os"
	"path"

	"go.uber.org/zap"

	"github.com/your-org/udn/pkg/checksum"
	"github.com/your-org/udn/pkg/storage/objectstore"
)

// Transferer moves a file's bytes to object storage using a session's
// temporary credentials.
type Transferer interface {
	Transfer(ctx context.Context, spec FileUploadSpec, session *Session) error
}

// StorageSettings select and address the object store. Credentials come from
// each session.
type StorageSettings struct {
	Provider string
	Endpoint string
	Region   string
	UseSSL   bool
}

// Engine is the Transferer backed by pkg/storage/objectstore.
type Engine struct {
	bucket   string
	settings StorageSettings
	open     objectstore.Factory
	logger   *zap.Logger
}

// NewEngine constructs an Engine. A nil open uses objectstore.New.
func NewEngine(bucket string, settings StorageSettings, open objectstore.Factory, logger *zap.Logger) *Engine {
	if open == nil {
		open = objectstore.New
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{bucket: bucket, settings: settings, open: open, logger: logger}
}

// ObjectKey is where spec lands inside the bucket.
func ObjectKey(session *Session, spec FileUploadSpec) string {
	return path.Join(session.FolderName, spec.FileName)
}

// Transfer uploads spec.FilePath to "{folder}/{file}" in the configured
// bucket. Multipart splitting and part parallelism follow the objectstore
// constants. Failures come back as KindTransfer errors.
func (e *Engine) Transfer(ctx context.Context, spec FileUploadSpec, session *Session) error {
	key := ObjectKey(session, spec)

	info, err := os.Stat(spec.FilePath)
	if err != nil {
		return newError(KindTransfer, "stat %s: %w", spec.FilePath, err)
	}

	client, err := e.open(objectstore.Config{
		Provider: e.settings.Provider,
		Endpoint: e.settings.Endpoint,
		Region:   e.settings.Region,
		UseSSL:   e.settings.UseSSL,
		Credentials: objectstore.Credentials{
			AccessKey:    session.AccessKey,
			SecretKey:    session.SecretKey,
			SessionToken: session.SessionToken,
		},
	})
	if err != nil {
		return newError(KindTransfer, "open object store: %w", err)
	}
	defer client.Close()

	logger := e.logger.With(zap.String("file", spec.FileName), zap.String("key", key))
	progress := NewProgress(spec.FileName, info.Size(), logger)

	res, err := client.UploadFile(ctx, e.bucket, key, spec.FilePath, progress)
	if err != nil {
		return newError(KindTransfer, "upload to %s/%s: %w", e.bucket, key, err)
	}

	fields := []zap.Field{
		zap.String("bucket", res.Bucket),
		zap.Int64("size_bytes", res.Size),
		zap.Int("parts", res.Parts),
		zap.String("etag", res.ETag),
	}
	if logger.Core().Enabled(zap.DebugLevel) {
		// informational only, never compared with the returned ETag
		if estimate, err := checksum.MultipartETag(spec.FilePath, objectstore.PartSize); err == nil {
			fields = append(fields, zap.String("estimated_etag", estimate))
		}
	}
	logger.Info("transfer finished", fields...)

	return nil
}
