package model

import "fmt"

// APIError はクライアントに返すエラー。
// Codeでステータスを決め、Messageのみをレスポンスの "error" に載せる。
type APIError struct {
	Code    string // エラーコード
	Message string // クライアント向けメッセージ
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeLeadNotFound        = "LEAD_NOT_FOUND"
	ErrCodeInvalidRequest      = "INVALID_REQUEST"
	ErrCodeCompanyNameRequired = "COMPANY_NAME_REQUIRED"
	ErrCodeNoValidFields       = "NO_VALID_FIELDS"
	ErrCodeInvalidField        = "INVALID_FIELD"
	ErrCodeInvalidPagination   = "INVALID_PAGINATION"
	ErrCodeUnauthorized        = "UNAUTHORIZED"
	ErrCodeMFARequired         = "MFA_REQUIRED"
	ErrCodeInvalidCredentials  = "INVALID_CREDENTIALS"
	ErrCodeInvalidMFACode      = "INVALID_MFA_CODE"
	ErrCodeRateLimited         = "RATE_LIMITED"
	ErrCodeCSRF                = "CSRF_FAILED"
	ErrCodeInternal            = "INTERNAL_ERROR"
)

// NewLeadNotFoundError はリード未検出エラーを生成する。
func NewLeadNotFoundError() *APIError {
	return &APIError{Code: ErrCodeLeadNotFound, Message: "Lead not found"}
}

// NewInvalidRequestError はリクエストボディ解析失敗のエラーを生成する。
func NewInvalidRequestError() *APIError {
	return &APIError{Code: ErrCodeInvalidRequest, Message: "Invalid JSON body"}
}

// NewCompanyNameRequiredError はcompany_name未指定のエラーを生成する。
func NewCompanyNameRequiredError() *APIError {
	return &APIError{Code: ErrCodeCompanyNameRequired, Message: "company_name is required"}
}

// NewNoValidFieldsError は更新可能なフィールドが1つもない場合のエラーを生成する。
func NewNoValidFieldsError() *APIError {
	return &APIError{Code: ErrCodeNoValidFields, Message: "No valid fields to update"}
}

// NewInvalidFieldError はフィールドの型や値が不正な場合のエラーを生成する。
func NewInvalidFieldError(field, reason string) *APIError {
	return &APIError{
		Code:    ErrCodeInvalidField,
		Message: fmt.Sprintf("invalid value for %s: %s", field, reason),
	}
}

// NewInvalidPaginationError はlimit/offsetが不正な場合のエラーを生成する。
func NewInvalidPaginationError(param string) *APIError {
	return &APIError{
		Code:    ErrCodeInvalidPagination,
		Message: fmt.Sprintf("%s must be a non-negative integer", param),
	}
}

// NewUnauthorizedError は未認証エラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{Code: ErrCodeUnauthorized, Message: "Unauthorized"}
}

// NewMFARequiredError は第2要素の検証が必要な場合のエラーを生成する。
func NewMFARequiredError() *APIError {
	return &APIError{Code: ErrCodeMFARequired, Message: "MFA verification required"}
}

// NewInvalidCredentialsError はログイン失敗のエラーを生成する。
func NewInvalidCredentialsError() *APIError {
	return &APIError{Code: ErrCodeInvalidCredentials, Message: "Invalid email or password"}
}

// NewInvalidMFACodeError はTOTPコード検証失敗のエラーを生成する。
func NewInvalidMFACodeError() *APIError {
	return &APIError{Code: ErrCodeInvalidMFACode, Message: "Invalid verification code"}
}

// NewRateLimitedError はレート制限超過のエラーを生成する。
func NewRateLimitedError() *APIError {
	return &APIError{Code: ErrCodeRateLimited, Message: "Too many requests"}
}

// NewInternalError は内部エラーを生成する。詳細はログにのみ残す。
func NewInternalError() *APIError {
	return &APIError{Code: ErrCodeInternal, Message: "Internal server error"}
}
