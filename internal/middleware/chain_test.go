package middleware

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/eryai/salesdash/internal/gate"
)

// TestRecoveryMiddleware_PanicReturns500 はpanic時に500が返り、
// APIはJSON、ページはプレーンテキストになることを検証する。
func TestRecoveryMiddleware_PanicReturns500(t *testing.T) {
	handler := NewRecoveryMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	t.Run("api", func(t *testing.T) {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/leads", nil))

		if w.Code != http.StatusInternalServerError {
			t.Fatalf("status = %d, want %d", w.Code, http.StatusInternalServerError)
		}
		var body ErrorResponseBody
		json.NewDecoder(w.Body).Decode(&body)
		if body.Error != "Internal server error" {
			t.Errorf("error = %q, want %q", body.Error, "Internal server error")
		}
	})

	t.Run("page", func(t *testing.T) {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/leads", nil))

		if w.Code != http.StatusInternalServerError {
			t.Fatalf("status = %d, want %d", w.Code, http.StatusInternalServerError)
		}
		if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
			t.Errorf("Content-Type = %q, want text/plain", ct)
		}
		if !strings.Contains(w.Body.String(), pageErrorBody) {
			t.Errorf("body = %q, want %q", w.Body.String(), pageErrorBody)
		}
	})
}

// TestRecoveryMiddleware_ReraisesAbortHandler はErrAbortHandlerを握りつぶさないことを検証する。
func TestRecoveryMiddleware_ReraisesAbortHandler(t *testing.T) {
	handler := NewRecoveryMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic(http.ErrAbortHandler)
	}))

	defer func() {
		if rec := recover(); rec != http.ErrAbortHandler {
			t.Errorf("recovered %v, want http.ErrAbortHandler", rec)
		}
	}()
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/leads", nil))
}

// TestSecurityHeadersMiddleware_SetsHeaders はセキュリティヘッダーが付与されることを検証する。
func TestSecurityHeadersMiddleware_SetsHeaders(t *testing.T) {
	handler := NewSecurityHeadersMiddleware(false)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/leads", nil))

	want := map[string]string{
		"X-Content-Type-Options":  "nosniff",
		"X-Frame-Options":         "DENY",
		"Referrer-Policy":         "strict-origin-when-cross-origin",
		"Content-Security-Policy": contentSecurityPolicy,
	}
	for k, v := range want {
		if got := w.Header().Get(k); got != v {
			t.Errorf("%s = %q, want %q", k, got, v)
		}
	}
	if got := w.Header().Get("Strict-Transport-Security"); got != "" {
		t.Errorf("HSTS should not be set over http, got %q", got)
	}
	if got := w.Header().Get("Cache-Control"); got != "" {
		t.Errorf("pages should not get Cache-Control here, got %q", got)
	}
}

// TestSecurityHeadersMiddleware_HTTPSAndAPI はHTTPS運用時のHSTSとAPIのno-storeを検証する。
func TestSecurityHeadersMiddleware_HTTPSAndAPI(t *testing.T) {
	handler := NewSecurityHeadersMiddleware(true)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/leads", nil))

	if got := w.Header().Get("Strict-Transport-Security"); got != hstsValue {
		t.Errorf("Strict-Transport-Security = %q, want %q", got, hstsValue)
	}
	if got := w.Header().Get("Cache-Control"); got != "no-store" {
		t.Errorf("Cache-Control = %q, want no-store", got)
	}
}

// TestMiddlewareChain_LoggingSeesGateUser は
// Logging -> Gate -> Handler の順でユーザーIDがアクセスログに載ることを検証する。
func TestMiddlewareChain_LoggingSeesGateUser(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	g := gate.New(signedIn(), gate.Config{})
	handler := NewLoggingMiddleware(logger, nil)(
		NewGateMiddleware(g, testCookieOptions)(&okHandler{}),
	)

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/leads", nil))

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse JSON log: %v\nraw: %s", err, buf.String())
	}
	if entry["user_id"] != "user-42" {
		t.Errorf("user_id = %v, want %q", entry["user_id"], "user-42")
	}
}

// TestMiddlewareChain_CSRFThenAPISession は
// CSRF -> APISession の順で、トークンなしの変更要求はセッション確認前に拒否されることを検証する。
func TestMiddlewareChain_CSRFThenAPISession(t *testing.T) {
	idp := signedIn()
	g := gate.New(idp, gate.Config{})
	handler := NewCSRFMiddleware(CSRFConfig{})(
		NewAPISessionMiddleware(g, testCookieOptions)(&okHandler{}),
	)

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/api/leads/x", nil))

	if w.Code != http.StatusForbidden {
		t.Errorf("status = %d, want %d", w.Code, http.StatusForbidden)
	}
	if idp.getUserCalls != 0 {
		t.Errorf("GetUser called %d times, want 0", idp.getUserCalls)
	}
}
