// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/eryai/salesdash/internal/identity"
	"github.com/eryai/salesdash/internal/middleware"
	"github.com/eryai/salesdash/internal/model"
	"github.com/eryai/salesdash/internal/view"
)

// ログイン画面のメッセージ
const (
	msgMissingCredentials = "Ange e-post och lösenord."
	msgInvalidCredentials = "Fel e-post eller lösenord."
	msgSignInUnavailable  = "Inloggningen är inte tillgänglig just nu. Försök igen senare."
	msgTooManyAttempts    = "För många inloggningsförsök. Vänta en stund och försök igen."
)

// AuthGateway は認証ハンドラーが必要とするIDサービスのインターフェース。
type AuthGateway interface {
	SignIn(ctx context.Context, jar *identity.CookieJar, email, password string) (*model.User, error)
	SignOut(ctx context.Context, jar *identity.CookieJar) error
}

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	Cookies   identity.CookieOptions
	HomePath  string
	LoginPath string
}

// AuthHandler はログイン・ログアウトのHTTPハンドラー。
type AuthHandler struct {
	gateway  AuthGateway
	renderer PageRenderer
	config   AuthHandlerConfig
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(gateway AuthGateway, renderer PageRenderer, config AuthHandlerConfig) *AuthHandler {
	if config.HomePath == "" {
		config.HomePath = "/leads"
	}
	if config.LoginPath == "" {
		config.LoginPath = "/login"
	}
	return &AuthHandler{
		gateway:  gateway,
		renderer: renderer,
		config:   config,
	}
}

// LoginPage はログインフォームを表示する。
// GET /login
func (h *AuthHandler) LoginPage(w http.ResponseWriter, r *http.Request) {
	h.renderLogin(w, r, http.StatusOK, "", "")
}

// Login はメールアドレスとパスワードでサインインする。
// 成功するとセッションCookieを設定してホームへリダイレクトする。
// MFAが必要かどうかはリダイレクト先でゲートが判定する。
// POST /login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	email := strings.TrimSpace(r.PostFormValue("email"))
	password := r.PostFormValue("password")
	if email == "" || password == "" {
		h.renderLogin(w, r, http.StatusBadRequest, email, msgMissingCredentials)
		return
	}

	jar := identity.NewCookieJar(r, h.config.Cookies)
	user, err := h.gateway.SignIn(r.Context(), jar, email, password)
	if err != nil {
		if identity.IsRejected(err) {
			slog.Info("sign in rejected",
				slog.String("request_id", middleware.RequestIDFromContext(r.Context())),
			)
			h.renderLogin(w, r, http.StatusUnauthorized, email, msgInvalidCredentials)
			return
		}
		slog.Error("sign in failed",
			slog.String("request_id", middleware.RequestIDFromContext(r.Context())),
			slog.String("error", err.Error()),
		)
		h.renderLogin(w, r, http.StatusBadGateway, email, msgSignInUnavailable)
		return
	}

	jar.Apply(w)
	slog.Info("user signed in", slog.String("user_id", user.ID))
	http.Redirect(w, r, h.config.HomePath, http.StatusSeeOther)
}

// LoginRateLimited はログイン試行の上限を超えたときにフォームを429で再表示する。
// レート制限ミドルウェアから呼ばれる。
func (h *AuthHandler) LoginRateLimited(w http.ResponseWriter, r *http.Request) {
	email := strings.TrimSpace(r.PostFormValue("email"))
	h.renderLogin(w, r, http.StatusTooManyRequests, email, msgTooManyAttempts)
}

// Logout はセッションを破棄してログイン画面へリダイレクトする。
// IDサービスの呼び出しに失敗してもCookieは削除する。
// POST /logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	jar := identity.NewCookieJar(r, h.config.Cookies)
	if err := h.gateway.SignOut(r.Context(), jar); err != nil {
		slog.Warn("failed to sign out", slog.String("error", err.Error()))
	}
	jar.Apply(w)

	http.Redirect(w, r, h.config.LoginPath, http.StatusSeeOther)
}

func (h *AuthHandler) renderLogin(w http.ResponseWriter, r *http.Request, status int, email, msg string) {
	h.renderer.Render(w, status, view.PageLogin, view.LoginPage{
		CSRFToken: middleware.CSRFTokenFromContext(r.Context()),
		Email:     email,
		Error:     msg,
	})
}
