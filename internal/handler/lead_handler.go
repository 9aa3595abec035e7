package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/eryai/salesdash/internal/lead"
	"github.com/eryai/salesdash/internal/middleware"
	"github.com/eryai/salesdash/internal/model"
)

// maxBodyBytes はJSONリクエストボディの上限。
const maxBodyBytes = 1 << 20

// LeadServiceInterface はリードAPIハンドラーが必要とするサービスインターフェース。
type LeadServiceInterface interface {
	// List は条件に一致するリードを作成日時の降順で返す。
	List(ctx context.Context, filter model.LeadFilter) (*model.LeadPage, error)
	// Create はリードを作成し、作成ログを記録する。
	Create(ctx context.Context, userID string, in *lead.CreateInput) (*model.Lead, error)
	// Get はリードと子レコードを返す。
	Get(ctx context.Context, id string) (*model.LeadDetail, error)
	// Update は許可リストに含まれるフィールドだけを更新する。
	Update(ctx context.Context, userID, id string, body map[string]json.RawMessage) (*model.Lead, error)
	// Delete はリードを削除する。
	Delete(ctx context.Context, userID, id string) error
	// PipelineStats はステージごとの件数を返す。
	PipelineStats(ctx context.Context) ([]model.PipelineStat, error)
}

// LeadHandler はリードAPIのHTTPハンドラー。
type LeadHandler struct {
	service LeadServiceInterface
}

// NewLeadHandler はLeadHandlerを生成する。
func NewLeadHandler(service LeadServiceInterface) *LeadHandler {
	return &LeadHandler{service: service}
}

type leadResponse struct {
	Lead *model.Lead `json:"lead"`
}

type statsResponse struct {
	Stats []model.PipelineStat `json:"stats"`
}

type deleteResponse struct {
	Success bool `json:"success"`
}

// ListLeads はリード一覧を返す。
// GET /api/leads?status=&industry=&city=&search=&limit=&offset=
func (h *LeadHandler) ListLeads(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	limit, err := parseNonNegativeInt(q, "limit")
	if err != nil {
		middleware.WriteErrorResponse(w, model.NewInvalidPaginationError("limit"))
		return
	}
	offset, err := parseNonNegativeInt(q, "offset")
	if err != nil {
		middleware.WriteErrorResponse(w, model.NewInvalidPaginationError("offset"))
		return
	}

	page, err := h.service.List(r.Context(), model.LeadFilter{
		Status:   q.Get("status"),
		Industry: q.Get("industry"),
		City:     q.Get("city"),
		Search:   q.Get("search"),
		Limit:    limit,
		Offset:   offset,
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, page)
}

// CreateLead はリードを作成する。
// POST /api/leads
func (h *LeadHandler) CreateLead(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, model.NewUnauthorizedError())
		return
	}

	var in lead.CreateInput
	if err := decodeJSONBody(w, r, &in); err != nil {
		middleware.WriteErrorResponse(w, err)
		return
	}

	created, err := h.service.Create(r.Context(), userID, &in)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, leadResponse{Lead: created})
}

// GetLead はリード詳細を返す。
// GET /api/leads/{id}
func (h *LeadHandler) GetLead(w http.ResponseWriter, r *http.Request) {
	detail, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, detail)
}

// UpdateLead はリードを部分更新する。
// PATCH /api/leads/{id}
func (h *LeadHandler) UpdateLead(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, model.NewUnauthorizedError())
		return
	}

	var body map[string]json.RawMessage
	if err := decodeJSONBody(w, r, &body); err != nil {
		middleware.WriteErrorResponse(w, err)
		return
	}

	updated, err := h.service.Update(r.Context(), userID, chi.URLParam(r, "id"), body)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, leadResponse{Lead: updated})
}

// DeleteLead はリードを削除する。存在しないIDでも成功を返す。
// DELETE /api/leads/{id}
func (h *LeadHandler) DeleteLead(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, model.NewUnauthorizedError())
		return
	}

	if err := h.service.Delete(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, deleteResponse{Success: true})
}

// Stats はパイプライン集計を返す。
// GET /api/leads/stats
func (h *LeadHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.PipelineStats(r.Context())
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, statsResponse{Stats: stats})
}

// --- ヘルパー関数 ---

// parseNonNegativeInt はクエリパラメータを0以上の整数として読む。未指定は0。
func parseNonNegativeInt(q url.Values, key string) (int, error) {
	v := q.Get(key)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, strconv.ErrRange
	}
	return n, nil
}

// decodeJSONBody はリクエストボディをJSONとしてdstに読み込む。
// 型の不一致はフィールド名付きのINVALID_FIELD、それ以外の解析失敗はINVALID_REQUESTにする。
func decodeJSONBody(w http.ResponseWriter, r *http.Request, dst any) *model.APIError {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) && typeErr.Field != "" {
			return model.NewInvalidFieldError(typeErr.Field, "expected "+typeErr.Type.String())
		}
		return model.NewInvalidRequestError()
	}
	return nil
}

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		middleware.WriteErrorResponse(w, apiErr)
		return
	}

	// 内部エラーの詳細はクライアントに返さない
	slog.Error("unexpected service error",
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("request_id", middleware.RequestIDFromContext(r.Context())),
		slog.String("error", err.Error()),
	)
	middleware.WriteInternalServerError(w)
}
