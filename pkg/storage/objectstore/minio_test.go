package objectstore

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBucket struct {
	mu      sync.Mutex
	puts    []string
	auth    string
	session string
}

func (f *fakeBucket) router() http.Handler {
	r := chi.NewRouter()
	r.Put("/{bucket}/*", func(w http.ResponseWriter, req *http.Request) {
		_, _ = io.Copy(io.Discard, req.Body)
		f.mu.Lock()
		f.puts = append(f.puts, chi.URLParam(req, "bucket")+"/"+chi.URLParam(req, "*"))
		f.auth = req.Header.Get("Authorization")
		f.session = req.Header.Get("X-Amz-Security-Token")
		f.mu.Unlock()
		w.Header().Set("ETag", `"0123456789abcdef"`)
		w.WriteHeader(http.StatusOK)
	})
	return r
}

func TestMinioUploadUsesSessionCredentials(t *testing.T) {
	bucket := &fakeBucket{}
	srv := httptest.NewServer(bucket.router())
	t.Cleanup(srv.Close)

	client, err := New(Config{
		Provider: "minio",
		Endpoint: srv.URL,
		Region:   "us-east-1",
		Credentials: Credentials{
			AccessKey:    "ASIATEMPKEY",
			SecretKey:    "secret",
			SessionToken: "session-token",
		},
	})
	require.NoError(t, err)

	progress := &countingProgress{}
	path := tempFile(t, 2048)

	res, err := client.UploadFile(context.Background(), "udn-bucket", "folder-1/reads.bam", path, progress)
	require.NoError(t, err)

	assert.Equal(t, "folder-1/reads.bam", res.Key)
	assert.Equal(t, int64(2048), res.Size)
	assert.Equal(t, 1, res.Parts)
	assert.Equal(t, "0123456789abcdef", res.ETag)
	assert.Equal(t, int64(2048), progress.Total())

	bucket.mu.Lock()
	defer bucket.mu.Unlock()
	assert.Equal(t, []string{"udn-bucket/folder-1/reads.bam"}, bucket.puts)
	assert.Contains(t, bucket.auth, "Credential=ASIATEMPKEY/")
	assert.Equal(t, "session-token", bucket.session)
}

func TestMinioUploadMissingFile(t *testing.T) {
	client, err := New(Config{Provider: "minio", Endpoint: "localhost:9000", Region: "us-east-1"})
	require.NoError(t, err)

	_, err = client.UploadFile(context.Background(), "b", "k", "/does/not/exist", nil)
	var storeErr *Error
	require.ErrorAs(t, err, &storeErr)
	assert.Equal(t, "open", storeErr.Op)
}
