package upload

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeMetadataService mimics the UDN sequence file endpoints.
type fakeMetadataService struct {
	mu             sync.Mutex
	registerStatus int
	registerBody   string
	completeStatus int
	registerCalls  int
	completeCalls  int
	lastRegister   map[string]any
	lastComplete   map[string]any
	lastHeaders    http.Header
}

func newFakeMetadataService() *fakeMetadataService {
	return &fakeMetadataService{
		registerStatus: http.StatusCreated,
		registerBody: `{"secret_key":"sk","access_key":"ak","session_token":"tok",` +
			`"folder_name":"folder-7","location_id":7,"fs_uuid":"fs-7"}`,
		completeStatus: http.StatusOK,
	}
}

func (f *fakeMetadataService) router() http.Handler {
	r := chi.NewRouter()
	r.Post("/api/sequence/file/", func(w http.ResponseWriter, req *http.Request) {
		f.mu.Lock()
		f.registerCalls++
		f.lastHeaders = req.Header.Clone()
		f.lastRegister = decodeBody(req.Body)
		status, body := f.registerStatus, f.registerBody
		f.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	})
	r.Post("/api/sequence/file/mark_uploaded/", func(w http.ResponseWriter, req *http.Request) {
		f.mu.Lock()
		f.completeCalls++
		f.lastHeaders = req.Header.Clone()
		f.lastComplete = decodeBody(req.Body)
		status := f.completeStatus
		f.mu.Unlock()

		w.WriteHeader(status)
	})
	return r
}

func decodeBody(body io.Reader) map[string]any {
	var m map[string]any
	_ = json.NewDecoder(body).Decode(&m)
	return m
}

func newTestClient(t *testing.T, svc *fakeMetadataService, force bool) *APIClient {
	t.Helper()
	srv := httptest.NewServer(svc.router())
	t.Cleanup(srv.Close)

	return NewAPIClient(UploadConfig{
		Host:             srv.URL,
		UDNToken:         "udn-secret",
		FileServiceToken: "fs-secret",
		Bucket:           "udn-bucket",
		Permissions:      []string{"read"},
		Force:            force,
	}, srv.Client(), nil)
}

func TestRegisterSendsPayloadAndHeaders(t *testing.T) {
	svc := newFakeMetadataService()
	client := newTestClient(t, svc, false)

	spec := testSpec(t)
	spec = spec.withMetadata(map[string]any{"assembly": "GRCh38", "coverage": "30x", "md5": "abc"})

	session, err := client.Register(context.Background(), spec)
	require.NoError(t, err)

	assert.Equal(t, "ak", session.AccessKey)
	assert.Equal(t, "sk", session.SecretKey)
	assert.Equal(t, "tok", session.SessionToken)
	assert.Equal(t, "folder-7", session.FolderName)
	assert.JSONEq(t, "7", string(session.LocationID))
	assert.JSONEq(t, `"fs-7"`, string(session.FileServiceID))

	svc.mu.Lock()
	defer svc.mu.Unlock()
	assert.Equal(t, "Token udn-secret", svc.lastHeaders.Get("Authorization"))
	assert.Equal(t, "FSToken fs-secret", svc.lastHeaders.Get("FSAuthorization"))
	assert.Equal(t, "application/json", svc.lastHeaders.Get("Content-Type"))
	assert.NotEmpty(t, svc.lastHeaders.Get("X-Request-ID"))

	assert.Equal(t, "reads.bam", svc.lastRegister["filename"])
	assert.Equal(t, "patient-1", svc.lastRegister["patient_uuid"])
	assert.Equal(t, "1042", svc.lastRegister["sequence_id"])
	assert.Equal(t, "site-a", svc.lastRegister["site"])
	assert.Equal(t, "udn-bucket", svc.lastRegister["bucket"])
	assert.Equal(t, []any{"read"}, svc.lastRegister["permissions"])
	assert.Equal(t, map[string]any{"assembly": "GRCh38", "coverage": "30x", "md5": "abc"}, svc.lastRegister["metadata"])
}

func TestRegisterConflictWithoutForce(t *testing.T) {
	svc := newFakeMetadataService()
	svc.registerStatus = http.StatusConflict
	svc.registerBody = `{"error":"File reads.bam already exists","folder_name":"folder-7"}`
	client := newTestClient(t, svc, false)

	_, err := client.Register(context.Background(), testSpec(t))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConflict)
	assert.Equal(t, "File reads.bam already exists", err.Error())
}

func TestRegisterConflictWithForceProceeds(t *testing.T) {
	svc := newFakeMetadataService()
	svc.registerStatus = http.StatusConflict
	svc.registerBody = `{"error":"exists","access_key":"ak2","secret_key":"sk2",` +
		`"session_token":"tok2","folder_name":"folder-8","location_id":8,"fs_uuid":"fs-8"}`
	client := newTestClient(t, svc, true)

	session, err := client.Register(context.Background(), testSpec(t))
	require.NoError(t, err)
	assert.Equal(t, "ak2", session.AccessKey)
	assert.Equal(t, "folder-8", session.FolderName)
}

func TestRegisterServerErrorIgnoresForce(t *testing.T) {
	for _, force := range []bool{false, true} {
		svc := newFakeMetadataService()
		svc.registerStatus = http.StatusInternalServerError
		svc.registerBody = `{"error":"database unavailable"}`
		client := newTestClient(t, svc, force)

		_, err := client.Register(context.Background(), testSpec(t))
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrRegistration)
		assert.Contains(t, err.Error(), "database unavailable")
	}
}

func TestRegisterServerErrorWithHTMLBody(t *testing.T) {
	svc := newFakeMetadataService()
	svc.registerStatus = http.StatusBadGateway
	svc.registerBody = "<html>bad gateway</html>"
	client := newTestClient(t, svc, false)

	_, err := client.Register(context.Background(), testSpec(t))
	assert.ErrorIs(t, err, ErrRegistration)
	assert.Contains(t, err.Error(), "502")
}

func TestRegisterOtherStatusProceeds(t *testing.T) {
	svc := newFakeMetadataService()
	svc.registerStatus = http.StatusBadRequest
	client := newTestClient(t, svc, false)

	session, err := client.Register(context.Background(), testSpec(t))
	require.NoError(t, err)
	assert.Equal(t, "folder-7", session.FolderName)
}

func TestRegisterUndecodableBody(t *testing.T) {
	svc := newFakeMetadataService()
	svc.registerBody = "not json"
	client := newTestClient(t, svc, false)

	_, err := client.Register(context.Background(), testSpec(t))
	assert.ErrorIs(t, err, ErrRegistration)
}

func TestRegisterTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	client := NewAPIClient(UploadConfig{Host: srv.URL}, nil, nil)
	_, err := client.Register(context.Background(), testSpec(t))
	assert.ErrorIs(t, err, ErrRegistration)
}

func TestCompleteSendsIdentifiers(t *testing.T) {
	svc := newFakeMetadataService()
	client := newTestClient(t, svc, false)

	err := client.Complete(context.Background(), &Session{
		LocationID:    json.RawMessage("7"),
		FileServiceID: json.RawMessage(`"fs-7"`),
	})
	require.NoError(t, err)

	svc.mu.Lock()
	defer svc.mu.Unlock()
	assert.Equal(t, 1, svc.completeCalls)
	assert.Equal(t, map[string]any{"fs_uuid": "fs-7", "location_id": float64(7)}, svc.lastComplete)
	assert.Equal(t, "Token udn-secret", svc.lastHeaders.Get("Authorization"))
}

func TestCompleteRequiresExactly200(t *testing.T) {
	for _, status := range []int{http.StatusCreated, http.StatusNoContent, http.StatusBadRequest, http.StatusInternalServerError} {
		svc := newFakeMetadataService()
		svc.completeStatus = status
		client := newTestClient(t, svc, false)

		err := client.Complete(context.Background(), &Session{})
		require.Error(t, err, "status %d", status)
		assert.ErrorIs(t, err, ErrCompletion)
	}
}

func TestEndpointResolvesAgainstHost(t *testing.T) {
	tests := map[string]string{
		"https://udn.example.org":      "https://udn.example.org/api/sequence/file/",
		"https://udn.example.org/":     "https://udn.example.org/api/sequence/file/",
		"https://udn.example.org/udn/": "https://udn.example.org/udn/api/sequence/file/",
	}
	for host, want := range tests {
		c := NewAPIClient(UploadConfig{Host: host}, nil, nil)
		got, err := c.endpoint(registerPath)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}
