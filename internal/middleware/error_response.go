package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/eryai/salesdash/internal/model"
)

// ErrorResponseBody はAPIエラーレスポンスの統一フォーマット。
type ErrorResponseBody struct {
	Error string `json:"error"`
}

// StatusForCode はエラーコードに対応するHTTPステータスを返す。
func StatusForCode(code string) int {
	switch code {
	case model.ErrCodeLeadNotFound:
		return http.StatusNotFound
	case model.ErrCodeInvalidRequest,
		model.ErrCodeCompanyNameRequired,
		model.ErrCodeNoValidFields,
		model.ErrCodeInvalidField,
		model.ErrCodeInvalidPagination,
		model.ErrCodeInvalidMFACode:
		return http.StatusBadRequest
	case model.ErrCodeUnauthorized, model.ErrCodeInvalidCredentials:
		return http.StatusUnauthorized
	case model.ErrCodeMFARequired, model.ErrCodeCSRF:
		return http.StatusForbidden
	case model.ErrCodeRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// WriteErrorResponse は統一エラーフォーマットでHTTPエラーレスポンスを書き込む。
// ステータスはエラーコードから決める。
func WriteErrorResponse(w http.ResponseWriter, apiErr *model.APIError) {
	WriteJSONError(w, StatusForCode(apiErr.Code), apiErr.Message)
}

// WriteJSONError は {"error": message} 形式のレスポンスを書き込む。
func WriteJSONError(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ErrorResponseBody{Error: message})
}

// WriteInternalServerError は内部サーバーエラーの統一レスポンスを書き込む。
// 詳細はログのみに記録し、ユーザーには一般的なメッセージを返す。
func WriteInternalServerError(w http.ResponseWriter) {
	WriteErrorResponse(w, model.NewInternalError())
}
