// package testing contains shared testing utilities
package testing

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"sync"
	"testing"

	"github.com/desertthunder/stepsync/internal/models"
	"github.com/desertthunder/stepsync/internal/services"
)

// RemoteCall records one invocation against [MockRemote].
type RemoteCall struct {
	Method     string
	Collection string
	ID         string
	Payload    any
}

// MockRemote is a test double for [services.Remote]. Each method's
// error can be programmed independently; every call is recorded.
type MockRemote struct {
	mu    sync.Mutex
	calls []RemoteCall

	ReadErr   error
	ReadDoc   json.RawMessage
	WriteErr  error
	ListErr   error
	ListDocs  []json.RawMessage
	CreateErr error
	CreateID  string
	DeleteErr error
}

var _ services.Remote = (*MockRemote)(nil)

func (m *MockRemote) record(call RemoteCall) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, call)
}

// Calls returns a copy of every recorded invocation.
func (m *MockRemote) Calls() []RemoteCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]RemoteCall, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallCount returns the number of recorded invocations for a method,
// or all invocations when method is empty.
func (m *MockRemote) CallCount(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if method == "" {
		return len(m.calls)
	}
	n := 0
	for _, c := range m.calls {
		if c.Method == method {
			n++
		}
	}
	return n
}

func (m *MockRemote) Read(ctx context.Context, collection, id string) (json.RawMessage, error) {
	m.record(RemoteCall{Method: "Read", Collection: collection, ID: id})
	if m.ReadErr != nil {
		return nil, m.ReadErr
	}
	if m.ReadDoc == nil {
		return nil, services.ErrNotFound
	}
	return m.ReadDoc, nil
}

func (m *MockRemote) Write(ctx context.Context, collection, id string, patch any) error {
	m.record(RemoteCall{Method: "Write", Collection: collection, ID: id, Payload: patch})
	return m.WriteErr
}

func (m *MockRemote) List(ctx context.Context, collection, userID string) ([]json.RawMessage, error) {
	m.record(RemoteCall{Method: "List", Collection: collection, ID: userID})
	if m.ListErr != nil {
		return nil, m.ListErr
	}
	return m.ListDocs, nil
}

func (m *MockRemote) Create(ctx context.Context, collection string, payload any) (string, error) {
	m.record(RemoteCall{Method: "Create", Collection: collection, Payload: payload})
	if m.CreateErr != nil {
		return "", m.CreateErr
	}
	if m.CreateID != "" {
		return m.CreateID, nil
	}
	return "generated-id", nil
}

func (m *MockRemote) Delete(ctx context.Context, collection, id string) error {
	m.record(RemoteCall{Method: "Delete", Collection: collection, ID: id})
	return m.DeleteErr
}

// MockAuth is a test double for the auth state consumed by the sync
// layer. A zero value is anonymous.
type MockAuth struct {
	User *services.Identity
}

func (m *MockAuth) Identity() (*services.Identity, bool) {
	if m.User == nil {
		return nil, false
	}
	return m.User, true
}

// SignedIn returns a MockAuth for the given UID.
func SignedIn(uid string) *MockAuth {
	return &MockAuth{User: &services.Identity{UID: uid, DisplayName: "Test Dancer", Email: uid + "@example.com"}}
}

// MockQueue records enqueued operations without touching storage.
type MockQueue struct {
	mu     sync.Mutex
	Ops    []models.SyncOperation
	AddErr error
}

func (m *MockQueue) Add(ctx context.Context, kind models.OperationKind, userID string, data any) (models.SyncOperation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.AddErr != nil {
		return models.SyncOperation{}, m.AddErr
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return models.SyncOperation{}, err
	}
	op := models.SyncOperation{ID: "op-" + string(kind), Kind: kind, UserID: userID, Data: raw}
	m.Ops = append(m.Ops, op)
	return op, nil
}

// Len returns the number of recorded operations.
func (m *MockQueue) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Ops)
}

// StaticGate reports a fixed network usability.
type StaticGate struct {
	Online bool
}

func (g StaticGate) Usable() bool { return g.Online }

// FailingStore is a test double for [store.Store] whose operations all
// fail, for exercising storage-unavailable paths.
type FailingStore struct {
	Err error
}

func (f *FailingStore) fail() error {
	if f.Err != nil {
		return f.Err
	}
	return errors.New("storage failed")
}

func (f *FailingStore) Get(ctx context.Context, key string) (string, bool, error) {
	return "", false, f.fail()
}

func (f *FailingStore) Set(ctx context.Context, key, value string) error { return f.fail() }
func (f *FailingStore) Remove(ctx context.Context, key string) error     { return f.fail() }
func (f *FailingStore) Close() error                                     { return nil }

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}

func MustGetwd(t *testing.T) string {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Failed to get working directory: %v", err)
	}
	return wd
}

func MustChdir(t *testing.T, dir string) {
	t.Helper()
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Failed to change directory to %s: %v", dir, err)
	}
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
