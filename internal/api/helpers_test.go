package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/zash3dit/zashedit/internal/db"
	"github.com/zash3dit/zashedit/internal/editing"
	"github.com/zash3dit/zashedit/internal/encoder"
	"github.com/zash3dit/zashedit/internal/store"
)

const testToken = "test-token-0123456789"

type fakeTokens map[string]string

func (f fakeTokens) ConfigValue(ctx context.Context, key string) (string, bool, error) {
	v, ok := f[key]
	return v, ok, nil
}

type testAPI struct {
	router *chi.Mux
	svc    *editing.Service
	stub   *encoder.Stub
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	dir := t.TempDir()
	database, err := db.New(filepath.Join(dir, "zashedit.db"), nil)
	if err != nil {
		t.Fatalf("db.New() error = %v", err)
	}
	t.Cleanup(func() { database.Close() })

	backend, err := store.NewSQLiteBackend(context.Background(), database)
	if err != nil {
		t.Fatalf("NewSQLiteBackend() error = %v", err)
	}
	ws, err := encoder.NewWorkspace(filepath.Join(dir, "staging"), filepath.Join(dir, "media"))
	if err != nil {
		t.Fatalf("NewWorkspace() error = %v", err)
	}
	stub := &encoder.Stub{}
	svc := editing.NewService(editing.Config{
		Store:      store.New(backend, nil),
		Operations: store.NewOperationLog(database.Conn()),
		Gate:       encoder.NewGate(stub),
		Workspace:  ws,
	})
	t.Cleanup(func() { svc.Close() })

	router := NewRouter(ServerConfig{
		Service:   svc,
		Tokens:    fakeTokens{AuthTokenKey: testToken},
		StartTime: time.Now(),
		Version:   "test",
	})
	return &testAPI{router: router, svc: svc, stub: stub}
}

// do sends an authorized request from a loopback address.
func (a *testAPI) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.RemoteAddr = "127.0.0.1:40000"
	req.Header.Set("Authorization", "Bearer "+testToken)
	rr := httptest.NewRecorder()
	a.router.ServeHTTP(rr, req)
	return rr
}

func decodeJSON[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rr.Body).Decode(&v); err != nil {
		t.Fatalf("decode response %q: %v", rr.Body.String(), err)
	}
	return v
}

func expectStatus(t *testing.T, rr *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rr.Code != want {
		t.Fatalf("status = %d, want %d; body = %s", rr.Code, want, rr.Body.String())
	}
}

func mediaFile(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte("media bytes"), 0o644); err != nil {
		t.Fatalf("write media: %v", err)
	}
	return path
}
