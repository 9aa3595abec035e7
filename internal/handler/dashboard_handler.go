package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/eryai/salesdash/internal/lead"
	"github.com/eryai/salesdash/internal/middleware"
	"github.com/eryai/salesdash/internal/model"
	"github.com/eryai/salesdash/internal/view"
)

// PageRenderer はHTMLページを描画する。
type PageRenderer interface {
	Render(w http.ResponseWriter, status int, name string, data any)
}

// DashboardServiceInterface はダッシュボード画面が必要とするサービスインターフェース。
type DashboardServiceInterface interface {
	// Overview は一覧・集計・キャンペーンをまとめて返す。取得失敗は空の一覧になる。
	Overview(ctx context.Context) *lead.Overview
	// Get はリードと子レコードを返す。
	Get(ctx context.Context, id string) (*model.LeadDetail, error)
}

// DashboardHandler はリード管理画面のHTTPハンドラー。
type DashboardHandler struct {
	service         DashboardServiceInterface
	renderer        PageRenderer
	superadminEmail string
}

// NewDashboardHandler はDashboardHandlerを生成する。
func NewDashboardHandler(service DashboardServiceInterface, renderer PageRenderer, superadminEmail string) *DashboardHandler {
	return &DashboardHandler{
		service:         service,
		renderer:        renderer,
		superadminEmail: superadminEmail,
	}
}

// Home はホーム（リード一覧）へ転送する。
// GET /
func (h *DashboardHandler) Home(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/leads", http.StatusTemporaryRedirect)
}

// Leads はリード一覧ダッシュボードを表示する。
// GET /leads
func (h *DashboardHandler) Leads(w http.ResponseWriter, r *http.Request) {
	h.renderer.Render(w, http.StatusOK, view.PageLeads, view.LeadsPage{
		Header:   h.header(r),
		Overview: h.service.Overview(r.Context()),
		Config:   view.NewClientConfig(),
	})
}

// LeadDetail はリード詳細を表示する。
// GET /leads/{id}
func (h *DashboardHandler) LeadDetail(w http.ResponseWriter, r *http.Request) {
	detail, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		var apiErr *model.APIError
		if errors.As(err, &apiErr) && apiErr.Code == model.ErrCodeLeadNotFound {
			renderNotFound(h.renderer, w)
			return
		}
		slog.Error("failed to load lead detail",
			slog.String("request_id", middleware.RequestIDFromContext(r.Context())),
			slog.String("error", err.Error()),
		)
		renderError(h.renderer, w)
		return
	}

	h.renderer.Render(w, http.StatusOK, view.PageLeadDetail, view.LeadDetailPage{
		Header: h.header(r),
		Detail: detail,
	})
}

// header はログインユーザーからヘッダー情報を組み立てる。
func (h *DashboardHandler) header(r *http.Request) view.Header {
	hd := view.Header{CSRFToken: middleware.CSRFTokenFromContext(r.Context())}
	if user, ok := middleware.UserFromContext(r.Context()); ok {
		hd.UserEmail = user.Email
		hd.IsSuperadmin = h.superadminEmail != "" && user.Email == h.superadminEmail
	}
	return hd
}

// renderNotFound は404ページを表示する。
func renderNotFound(renderer PageRenderer, w http.ResponseWriter) {
	renderer.Render(w, http.StatusNotFound, view.PageNotFound, view.MessagePage{
		Title:   "Lead hittades inte",
		Message: "Leaden finns inte eller har tagits bort.",
	})
}

// renderError は500ページを表示する。
func renderError(renderer PageRenderer, w http.ResponseWriter) {
	renderer.Render(w, http.StatusInternalServerError, view.PageError, view.MessagePage{
		Title:   "Något gick fel",
		Message: "Ett oväntat fel inträffade. Försök igen om en stund.",
	})
}
