package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/zash3dit/zashedit/internal/apperr"
	"github.com/zash3dit/zashedit/internal/editing"
	"github.com/zash3dit/zashedit/internal/logging"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestIsAllowedOrigin(t *testing.T) {
	allowed := []string{
		"http://localhost:3000",
		"http://localhost",
		"https://localhost:8443",
		"http://127.0.0.1:5173",
		"http://127.0.0.1",
		"http://[::1]:3000",
	}
	for _, origin := range allowed {
		if !isAllowedOrigin(origin) {
			t.Errorf("isAllowedOrigin(%q) = false, want true", origin)
		}
	}

	denied := []string{
		"",
		"https://evil.com",
		"http://localhost.evil.com",
		"http://192.168.1.1:3000",
		"ftp://localhost:3000",
		"http://localhost:not-a-port",
		"http://localhost:3000/path",
		"http://user@localhost:3000",
	}
	for _, origin := range denied {
		if isAllowedOrigin(origin) {
			t.Errorf("isAllowedOrigin(%q) = true, want false", origin)
		}
	}
}

func TestIsLoopbackRemoteAddr(t *testing.T) {
	for _, addr := range []string{"127.0.0.1:12345", "[::1]:12345", "127.0.0.1"} {
		if !isLoopbackRemoteAddr(addr) {
			t.Errorf("isLoopbackRemoteAddr(%q) = false, want true", addr)
		}
	}
	for _, addr := range []string{"8.8.8.8:12345", "192.168.1.1:8080", "not-an-ip:1234", ""} {
		if isLoopbackRemoteAddr(addr) {
			t.Errorf("isLoopbackRemoteAddr(%q) = true, want false", addr)
		}
	}
}

func TestCORSAllowlist_AllowedOrigin(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/projects", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rr := httptest.NewRecorder()
	CORSAllowlist()(okHandler()).ServeHTTP(rr, req)

	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Errorf("ACAO = %q", got)
	}
	if got := rr.Header().Get("Vary"); got != "Origin" {
		t.Errorf("Vary = %q, want Origin", got)
	}
}

func TestCORSAllowlist_DeniedOrigin(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/projects", nil)
	req.Header.Set("Origin", "https://evil.com")
	rr := httptest.NewRecorder()
	CORSAllowlist()(okHandler()).ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("ACAO = %q, want empty", got)
	}

	req = httptest.NewRequest(http.MethodOptions, "/projects", nil)
	req.Header.Set("Origin", "https://evil.com")
	rr = httptest.NewRecorder()
	CORSAllowlist()(okHandler()).ServeHTTP(rr, req)
	if rr.Code != http.StatusForbidden {
		t.Errorf("preflight status = %d, want 403", rr.Code)
	}
}

func TestCORSAllowlist_Preflight(t *testing.T) {
	handler := CORSAllowlist()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be called for preflight")
	}))
	req := httptest.NewRequest(http.MethodOptions, "/projects/1/videos/2/media", nil)
	req.Header.Set("Origin", "http://127.0.0.1:5173")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rr.Code)
	}
	for header, want := range map[string]string{
		"Access-Control-Allow-Headers":  "Range",
		"Access-Control-Allow-Methods":  "PATCH",
		"Access-Control-Expose-Headers": "Content-Range",
	} {
		if got := rr.Header().Get(header); !strings.Contains(got, want) {
			t.Errorf("%s = %q, want it to contain %q", header, got, want)
		}
	}
}

func TestCORSAllowlist_NoOrigin(t *testing.T) {
	rr := httptest.NewRecorder()
	CORSAllowlist()(okHandler()).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("ACAO = %q, want empty", got)
	}
}

func TestAuthMiddleware(t *testing.T) {
	tests := []struct {
		name   string
		tokens fakeTokens
		header string
		want   int
	}{
		{"valid", fakeTokens{AuthTokenKey: "secret"}, "Bearer secret", http.StatusOK},
		{"missing header", fakeTokens{AuthTokenKey: "secret"}, "", http.StatusUnauthorized},
		{"wrong scheme", fakeTokens{AuthTokenKey: "secret"}, "Basic secret", http.StatusUnauthorized},
		{"wrong token", fakeTokens{AuthTokenKey: "secret"}, "Bearer nope", http.StatusUnauthorized},
		{"no stored token", fakeTokens{}, "Bearer secret", http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/projects", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr := httptest.NewRecorder()
			AuthMiddleware(tt.tokens, logging.Discard())(okHandler()).ServeHTTP(rr, req)
			if rr.Code != tt.want {
				t.Errorf("status = %d, want %d", rr.Code, tt.want)
			}
		})
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	handler := RequestIDMiddleware()(RecoveryMiddleware(logging.Discard())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	if rr.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rr.Code)
	}
	if id := rr.Header().Get("X-Request-ID"); len(id) != 8 {
		t.Errorf("X-Request-ID = %q, want 8 characters", id)
	}
}

func TestLoopbackGuard(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.5:3000"
	rr := httptest.NewRecorder()
	LoopbackGuard()(okHandler()).ServeHTTP(rr, req)
	if rr.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", rr.Code)
	}
}

func TestWriteAppError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
		code string
	}{
		{"not found", apperr.NotFound(apperr.StageStore, "project 1 not found"), http.StatusNotFound, "NOT_FOUND"},
		{"invalid", apperr.Invalid(apperr.StageTrim, "bad range"), http.StatusBadRequest, "INVALID_INPUT"},
		{"encoding", apperr.Encoding(apperr.StageSplit, "exit 1", false), http.StatusBadGateway, "ENCODING_FAILURE"},
		{"storage", apperr.Storage(apperr.StageStore, "disk", errors.New("io")), http.StatusInternalServerError, "STORAGE_FAILURE"},
		{"resource", apperr.Resource(apperr.StageMix, "busy", context.Canceled), http.StatusServiceUnavailable, "RESOURCE_FAILURE"},
		{"unclassified", errors.New("plain"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			WriteAppError(rr, logging.Discard(), tt.err)
			if rr.Code != tt.want {
				t.Errorf("status = %d, want %d", rr.Code, tt.want)
			}
			if body := decodeJSON[ErrorResponse](t, rr); body.Code != tt.code {
				t.Errorf("code = %q, want %q", body.Code, tt.code)
			}
		})
	}
}

func TestWriteAppError_IncludesRetry(t *testing.T) {
	err := &editing.OperationError{
		Retry: editing.Retry{OperationID: "op-1", Stage: apperr.StageTrim, Params: []byte(`{"clip_id":3}`)},
		Err:   apperr.Encoding(apperr.StageTrim, "killed", true),
	}
	rr := httptest.NewRecorder()
	WriteAppError(rr, logging.Discard(), err)

	body := decodeJSON[ErrorResponse](t, rr)
	if !body.Retryable || body.Retry == nil || body.Retry.OperationID != "op-1" || body.Retry.Stage != "trim" {
		t.Errorf("body = %+v", body)
	}
}
