package upload

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func validMetadata() map[string]any {
	return map[string]any{"assembly": "GRCh38", "coverage": "30x"}
}

func writeDataFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func writeSidecar(t *testing.T, dir, name string, sidecar map[string]any) {
	t.Helper()
	data, err := json.Marshal(sidecar)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, name+SidecarSuffix), data, 0o600))
}

func testSpec(t *testing.T) FileUploadSpec {
	t.Helper()
	path := writeDataFile(t, t.TempDir(), "reads.bam", "ACGTACGT")
	spec, err := SpecFromArgs(path, "1042", "patient-1", "site-a", validMetadata())
	require.NoError(t, err)
	return spec
}

// fakeRegistrar records calls and returns canned results.
type fakeRegistrar struct {
	mu          sync.Mutex
	registered  []FileUploadSpec
	completed   int
	session     *Session
	registerErr error
	completeErr error
}

func newFakeRegistrar() *fakeRegistrar {
	return &fakeRegistrar{session: &Session{
		AccessKey:     "ak",
		SecretKey:     "sk",
		SessionToken:  "tok",
		FolderName:    "folder-7",
		LocationID:    json.RawMessage("7"),
		FileServiceID: json.RawMessage(`"fs-7"`),
	}}
}

func (f *fakeRegistrar) Register(_ context.Context, spec FileUploadSpec) (*Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.registered = append(f.registered, spec)
	if f.registerErr != nil {
		return nil, f.registerErr
	}
	s := *f.session
	return &s, nil
}

func (f *fakeRegistrar) Complete(context.Context, *Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.completed++
	return f.completeErr
}

func (f *fakeRegistrar) registerCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.registered)
}

func (f *fakeRegistrar) completeCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.completed
}

// fakeTransferer counts calls and tracks how many run at once.
type fakeTransferer struct {
	calls    atomic.Int32
	active   atomic.Int32
	peak     atomic.Int32
	delay    time.Duration
	err      error
	failFile string
	sessions []*Session
	mu       sync.Mutex
}

func (f *fakeTransferer) Transfer(_ context.Context, spec FileUploadSpec, session *Session) error {
	f.calls.Add(1)
	n := f.active.Add(1)
	defer f.active.Add(-1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}

	f.mu.Lock()
	f.sessions = append(f.sessions, session)
	f.mu.Unlock()

	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.failFile == "" || spec.FileName == f.failFile {
		return f.err
	}
	return nil
}

// fixedClock advances by step on every call.
func fixedClock(step time.Duration) func() time.Time {
	var mu sync.Mutex
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t := now
		now = now.Add(step)
		return t
	}
}
