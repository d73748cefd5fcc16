package objectstore

import (
	"context"
	"fmt"
	"os"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

type minioClient struct {
	client    *minio.Client
	threshold int64
	partSize  int64
	threads   uint
}

func newMinioClient(cfg Config) (Client, error) {
	creds := cfg.Credentials
	cl, err := minio.New(hostOnly(cfg.Endpoint), &minio.Options{
		Creds:  credentials.NewStaticV4(creds.AccessKey, creds.SecretKey, creds.SessionToken),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio client: %w", err)
	}

	return &minioClient{
		client:    cl,
		threshold: MultipartThreshold,
		partSize:  PartSize,
		threads:   MaxConcurrency,
	}, nil
}

func (m *minioClient) UploadFile(ctx context.Context, bucket, key, path string, progress Progress) (*UploadResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, newObjectError("open", bucket, key, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, newObjectError("stat", bucket, key, err)
	}
	size := info.Size()

	opts := minio.PutObjectOptions{
		ContentType:      "application/octet-stream",
		PartSize:         uint64(m.partSize),
		NumThreads:       m.threads,
		DisableMultipart: size < m.threshold,
		Progress:         &progressReader{progress: orNop(progress)},
	}

	uploaded, err := m.client.PutObject(ctx, bucket, key, f, size, opts)
	if err != nil {
		return nil, newObjectError("putObject", bucket, key, err)
	}

	parts := 1
	if !opts.DisableMultipart {
		parts = partCount(size, m.partSize)
	}

	return &UploadResult{
		Bucket: bucket,
		Key:    key,
		Size:   uploaded.Size,
		ETag:   uploaded.ETag,
		Parts:  parts,
	}, nil
}

func (m *minioClient) Close() error {
	return nil
}

// progressReader adapts Progress to the io.Reader hook minio-go reports
// transferred bytes through.
type progressReader struct {
	progress Progress
}

func (p *progressReader) Read(b []byte) (int, error) {
	p.progress.Add(int64(len(b)))
	return len(b), nil
}
