package identity

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/eryai/salesdash/internal/model"
)

const (
	testAnonKey   = "test-anon-key"
	testJWTSecret = "test-jwt-secret"
)

// signToken はテスト用のHS256アクセストークンを生成する。
func signToken(t *testing.T, sub string, aal model.AAL, exp time.Time) string {
	t.Helper()
	claims := AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub,
			ExpiresAt: jwt.NewNumericDate(exp),
		},
		Email: sub + "@example.com",
		AAL:   aal,
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testJWTSecret))
	require.NoError(t, err)
	return token
}

// fakeGoTrue はGoTrue APIの最小限のフェイク。
type fakeGoTrue struct {
	t *testing.T

	mu sync.Mutex
	// アクセストークン -> ユーザー
	users map[string]*userResponse
	// リフレッシュトークン -> 発行するセッション
	refreshes map[string]*tokenResponse
	// email:password -> 発行するセッション
	passwords map[string]*tokenResponse
	// 検証成功時に発行するセッション
	verified *tokenResponse
	validCode string

	calls []string
}

func newFakeGoTrue(t *testing.T) (*fakeGoTrue, *httptest.Server) {
	f := &fakeGoTrue{
		t:         t,
		users:     map[string]*userResponse{},
		refreshes: map[string]*tokenResponse{},
		passwords: map[string]*tokenResponse{},
	}
	srv := httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(srv.Close)
	return f, srv
}

func (f *fakeGoTrue) callCount(prefix string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if strings.HasPrefix(c, prefix) {
			n++
		}
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (f *fakeGoTrue) serve(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, r.Method+" "+r.URL.Path)

	if r.Header.Get("apikey") != testAnonKey {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "No API key found in request"})
		return
	}
	bearer := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")

	var body map[string]string
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&body)
	}

	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/auth/v1/token":
		switch r.URL.Query().Get("grant_type") {
		case "password":
			if s, ok := f.passwords[body["email"]+":"+body["password"]]; ok {
				writeJSON(w, http.StatusOK, s)
				return
			}
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": "invalid_grant", "error_description": "Invalid login credentials",
			})
		case "refresh_token":
			if s, ok := f.refreshes[body["refresh_token"]]; ok {
				delete(f.refreshes, body["refresh_token"])
				writeJSON(w, http.StatusOK, s)
				return
			}
			writeJSON(w, http.StatusBadRequest, map[string]any{
				"code": 400, "error_code": "refresh_token_not_found", "msg": "Invalid Refresh Token: Refresh Token Not Found",
			})
		}

	case r.Method == http.MethodGet && r.URL.Path == "/auth/v1/user":
		if u, ok := f.users[bearer]; ok {
			writeJSON(w, http.StatusOK, u)
			return
		}
		writeJSON(w, http.StatusUnauthorized, map[string]any{"code": 401, "msg": "invalid JWT"})

	case r.Method == http.MethodPost && r.URL.Path == "/auth/v1/logout":
		w.WriteHeader(http.StatusNoContent)

	case r.Method == http.MethodPost && r.URL.Path == "/auth/v1/factors":
		if _, ok := f.users[bearer]; !ok {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"msg": "invalid JWT"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"id":   "factor-new",
			"type": "totp",
			"totp": map[string]string{
				"qr_code": "data:image/svg+xml;utf-8,<svg/>",
				"secret":  "JBSWY3DPEHPK3PXP",
				"uri":     "otpauth://totp/EryAI:user@example.com?secret=JBSWY3DPEHPK3PXP&issuer=EryAI",
			},
		})

	case r.Method == http.MethodDelete && strings.HasPrefix(r.URL.Path, "/auth/v1/factors/"):
		u, ok := f.users[bearer]
		if !ok {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"msg": "invalid JWT"})
			return
		}
		id := strings.TrimPrefix(r.URL.Path, "/auth/v1/factors/")
		kept := u.Factors[:0]
		for _, fc := range u.Factors {
			if fc.ID != id {
				kept = append(kept, fc)
			}
		}
		u.Factors = kept
		writeJSON(w, http.StatusOK, map[string]string{"id": id})

	case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/challenge"):
		writeJSON(w, http.StatusOK, map[string]any{"id": "challenge-1", "expires_at": time.Now().Add(5 * time.Minute).Unix()})

	case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/verify"):
		if body["challenge_id"] != "challenge-1" || body["code"] != f.validCode || f.verified == nil {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
				"code": 422, "error_code": "mfa_verification_failed", "msg": "Invalid TOTP code entered",
			})
			return
		}
		writeJSON(w, http.StatusOK, f.verified)

	default:
		http.NotFound(w, r)
	}
}
