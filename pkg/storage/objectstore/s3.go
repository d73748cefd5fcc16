package objectstore

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	awstypes "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"golang.org/x/sync/errgroup"
)

const awsDefaultEndpoint = "s3.amazonaws.com"

// S3API is the subset of the aws-sdk-go-v2 S3 client used for uploads.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	CreateMultipartUpload(ctx context.Context, params *s3.CreateMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.CreateMultipartUploadOutput, error)
	UploadPart(ctx context.Context, params *s3.UploadPartInput, optFns ...func(*s3.Options)) (*s3.UploadPartOutput, error)
	CompleteMultipartUpload(ctx context.Context, params *s3.CompleteMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.CompleteMultipartUploadOutput, error)
	AbortMultipartUpload(ctx context.Context, params *s3.AbortMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.AbortMultipartUploadOutput, error)
}

type s3Client struct {
	api         S3API
	threshold   int64
	partSize    int64
	concurrency int
}

func newS3Client(cfg Config) (Client, error) {
	creds := cfg.Credentials
	opts := s3.Options{
		Region:      cfg.Region,
		Credentials: credentials.NewStaticCredentialsProvider(creds.AccessKey, creds.SecretKey, creds.SessionToken),
	}
	if host := hostOnly(cfg.Endpoint); host != "" && host != awsDefaultEndpoint {
		scheme := "http://"
		if cfg.UseSSL {
			scheme = "https://"
		}
		opts.BaseEndpoint = aws.String(scheme + host)
		opts.UsePathStyle = true
	}

	return newS3ClientWithAPI(s3.New(opts)), nil
}

func newS3ClientWithAPI(api S3API) *s3Client {
	return &s3Client{
		api:         api,
		threshold:   MultipartThreshold,
		partSize:    PartSize,
		concurrency: MaxConcurrency,
	}
}

func (c *s3Client) UploadFile(ctx context.Context, bucket, key, path string, progress Progress) (*UploadResult, error) {
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
	progress = orNop(progress)

	if size < c.threshold {
		return c.putSingle(ctx, bucket, key, f, size, progress)
	}
	return c.putMultipart(ctx, bucket, key, f, size, progress)
}

func (c *s3Client) putSingle(ctx context.Context, bucket, key string, f *os.File, size int64, progress Progress) (*UploadResult, error) {
	out, err := c.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(bucket),
		Key:           aws.String(key),
		Body:          f,
		ContentLength: aws.Int64(size),
		ContentType:   aws.String("application/octet-stream"),
	})
	if err != nil {
		return nil, newObjectError("putObject", bucket, key, err)
	}
	progress.Add(size)

	return &UploadResult{
		Bucket: bucket,
		Key:    key,
		Size:   size,
		ETag:   aws.ToString(out.ETag),
		Parts:  1,
	}, nil
}

func (c *s3Client) putMultipart(ctx context.Context, bucket, key string, f io.ReaderAt, size int64, progress Progress) (*UploadResult, error) {
	created, err := c.api.CreateMultipartUpload(ctx, &s3.CreateMultipartUploadInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(key),
		ContentType: aws.String("application/octet-stream"),
	})
	if err != nil {
		return nil, newObjectError("createMultipartUpload", bucket, key, err)
	}
	uploadID := aws.ToString(created.UploadId)

	numParts := partCount(size, c.partSize)
	parts := make([]awstypes.CompletedPart, numParts)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for i := 0; i < numParts; i++ {
		offset := int64(i) * c.partSize
		length := min(c.partSize, size-offset)
		partNumber := int32(i + 1)

		g.Go(func() error {
			out, err := c.api.UploadPart(gctx, &s3.UploadPartInput{
				Bucket:        aws.String(bucket),
				Key:           aws.String(key),
				UploadId:      aws.String(uploadID),
				PartNumber:    aws.Int32(partNumber),
				Body:          io.NewSectionReader(f, offset, length),
				ContentLength: aws.Int64(length),
			})
			if err != nil {
				return fmt.Errorf("upload part %d: %w", partNumber, err)
			}
			parts[partNumber-1] = awstypes.CompletedPart{
				ETag:       out.ETag,
				PartNumber: aws.Int32(partNumber),
			}
			progress.Add(length)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		c.abort(ctx, bucket, key, uploadID)
		return nil, newObjectError("uploadPart", bucket, key, err)
	}

	out, err := c.api.CompleteMultipartUpload(ctx, &s3.CompleteMultipartUploadInput{
		Bucket:   aws.String(bucket),
		Key:      aws.String(key),
		UploadId: aws.String(uploadID),
		MultipartUpload: &awstypes.CompletedMultipartUpload{
			Parts: parts,
		},
	})
	if err != nil {
		c.abort(ctx, bucket, key, uploadID)
		return nil, newObjectError("completeMultipartUpload", bucket, key, err)
	}

	return &UploadResult{
		Bucket: bucket,
		Key:    key,
		Size:   size,
		ETag:   aws.ToString(out.ETag),
		Parts:  numParts,
	}, nil
}

// abort releases the parts of a failed upload. Its own failure is ignored;
// the caller already reports the original error.
func (c *s3Client) abort(ctx context.Context, bucket, key, uploadID string) {
	_, _ = c.api.AbortMultipartUpload(context.WithoutCancel(ctx), &s3.AbortMultipartUploadInput{
		Bucket:   aws.String(bucket),
		Key:      aws.String(key),
		UploadId: aws.String(uploadID),
	})
}

func (c *s3Client) Close() error {
	return nil
}
