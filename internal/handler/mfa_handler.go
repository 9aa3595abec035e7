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

// MFA画面のメッセージ
const (
	msgEnrollFailed   = "Kunde inte starta registreringen av tvåfaktorsautentisering."
	msgMissingCode    = "Ange verifieringskoden."
	msgInvalidCode    = "Felaktig kod. Försök igen."
	msgVerifyFailed   = "Verifieringen misslyckades. Försök igen senare."
	msgFactorsUnknown = "Kunde inte hämta dina autentiseringsmetoder."
)

// MFAGateway はMFA画面が必要とするIDサービスのインターフェース。
type MFAGateway interface {
	ListFactors(ctx context.Context, jar *identity.CookieJar) (*model.FactorList, error)
	Enroll(ctx context.Context, jar *identity.CookieJar) (*model.TOTPEnrollment, error)
	ChallengeAndVerify(ctx context.Context, jar *identity.CookieJar, factorID, code string) error
}

// MFAHandlerConfig はMFAハンドラーの設定。
type MFAHandlerConfig struct {
	Cookies   identity.CookieOptions
	HomePath  string
	SetupPath string
}

// MFAHandler はTOTPの登録とチャレンジのHTTPハンドラー。
// ゲートによりログイン済みのリクエストだけが届く。
type MFAHandler struct {
	gateway  MFAGateway
	renderer PageRenderer
	config   MFAHandlerConfig
}

// NewMFAHandler はMFAHandlerを生成する。
func NewMFAHandler(gateway MFAGateway, renderer PageRenderer, config MFAHandlerConfig) *MFAHandler {
	if config.HomePath == "" {
		config.HomePath = "/leads"
	}
	if config.SetupPath == "" {
		config.SetupPath = "/mfa/setup"
	}
	return &MFAHandler{
		gateway:  gateway,
		renderer: renderer,
		config:   config,
	}
}

// SetupPage はTOTP要素の登録を開始し、QRコードを表示する。
// 検証済みのTOTP要素があればホームへリダイレクトする。
// GET /mfa/setup
func (h *MFAHandler) SetupPage(w http.ResponseWriter, r *http.Request) {
	jar := identity.NewCookieJar(r, h.config.Cookies)
	factors, err := h.gateway.ListFactors(r.Context(), jar)
	if err != nil {
		logMFAError(r, "list factors", err)
		h.renderSetup(w, r, http.StatusBadGateway, view.MFASetupPage{Error: msgFactorsUnknown})
		return
	}
	if len(factors.TOTP) > 0 {
		http.Redirect(w, r, h.config.HomePath, http.StatusTemporaryRedirect)
		return
	}

	enrollment, err := h.gateway.Enroll(r.Context(), jar)
	if err != nil {
		logMFAError(r, "enroll", err)
		h.renderSetup(w, r, http.StatusBadGateway, view.MFASetupPage{Error: msgEnrollFailed})
		return
	}

	h.renderSetup(w, r, http.StatusOK, view.MFASetupPage{
		FactorID: enrollment.FactorID,
		Secret:   enrollment.Secret,
		QRCode:   enrollment.QRCode,
	})
}

// Setup は登録したTOTP要素をコードで検証して有効化する。
// 失敗した場合は同じ要素のまま再入力させる。
// POST /mfa/setup
func (h *MFAHandler) Setup(w http.ResponseWriter, r *http.Request) {
	factorID := r.PostFormValue("factor_id")
	if factorID == "" {
		http.Redirect(w, r, h.config.SetupPath, http.StatusSeeOther)
		return
	}

	page := view.MFASetupPage{FactorID: factorID}
	status, ok := h.verify(w, r, factorID, &page.Error)
	if !ok {
		h.renderSetup(w, r, status, page)
		return
	}

	slog.Info("mfa factor enabled", slog.String("factor_id", factorID))
	http.Redirect(w, r, h.config.HomePath, http.StatusSeeOther)
}

// VerifyPage はaal1のセッションにTOTPコードの入力を求める。
// TOTP要素が未登録なら登録画面へリダイレクトする。
// GET /mfa/verify
func (h *MFAHandler) VerifyPage(w http.ResponseWriter, r *http.Request) {
	jar := identity.NewCookieJar(r, h.config.Cookies)
	factors, err := h.gateway.ListFactors(r.Context(), jar)
	if err != nil {
		logMFAError(r, "list factors", err)
		h.renderVerify(w, r, http.StatusBadGateway, view.MFAVerifyPage{Error: msgFactorsUnknown})
		return
	}
	if len(factors.TOTP) == 0 {
		http.Redirect(w, r, h.config.SetupPath, http.StatusTemporaryRedirect)
		return
	}

	h.renderVerify(w, r, http.StatusOK, view.MFAVerifyPage{FactorID: factors.TOTP[0].ID})
}

// Verify はTOTPコードを検証してセッションをaal2に昇格させる。
// POST /mfa/verify
func (h *MFAHandler) Verify(w http.ResponseWriter, r *http.Request) {
	factorID := r.PostFormValue("factor_id")
	if factorID == "" {
		http.Redirect(w, r, r.URL.Path, http.StatusSeeOther)
		return
	}

	page := view.MFAVerifyPage{FactorID: factorID}
	status, ok := h.verify(w, r, factorID, &page.Error)
	if !ok {
		h.renderVerify(w, r, status, page)
		return
	}

	http.Redirect(w, r, h.config.HomePath, http.StatusSeeOther)
}

// verify はフォームのコードで要素を検証し、昇格したセッションをCookieに書き込む。
// 失敗時は表示するステータスとメッセージを返す。
func (h *MFAHandler) verify(w http.ResponseWriter, r *http.Request, factorID string, msg *string) (int, bool) {
	code := strings.TrimSpace(r.PostFormValue("code"))
	if code == "" {
		*msg = msgMissingCode
		return http.StatusBadRequest, false
	}

	jar := identity.NewCookieJar(r, h.config.Cookies)
	err := h.gateway.ChallengeAndVerify(r.Context(), jar, factorID, code)
	jar.Apply(w)
	if err != nil {
		if identity.IsRejected(err) {
			*msg = msgInvalidCode
			return http.StatusBadRequest, false
		}
		logMFAError(r, "verify", err)
		*msg = msgVerifyFailed
		return http.StatusBadGateway, false
	}
	return http.StatusOK, true
}

func (h *MFAHandler) renderSetup(w http.ResponseWriter, r *http.Request, status int, page view.MFASetupPage) {
	page.CSRFToken = middleware.CSRFTokenFromContext(r.Context())
	h.renderer.Render(w, status, view.PageMFASetup, page)
}

func (h *MFAHandler) renderVerify(w http.ResponseWriter, r *http.Request, status int, page view.MFAVerifyPage) {
	page.CSRFToken = middleware.CSRFTokenFromContext(r.Context())
	h.renderer.Render(w, status, view.PageMFAVerify, page)
}

func logMFAError(r *http.Request, step string, err error) {
	attrs := []any{
		slog.String("step", step),
		slog.String("request_id", middleware.RequestIDFromContext(r.Context())),
		slog.String("error", err.Error()),
	}
	if user, ok := middleware.UserFromContext(r.Context()); ok {
		attrs = append(attrs, slog.String("user_id", user.ID))
	}
	slog.Error("mfa request failed", attrs...)
}
