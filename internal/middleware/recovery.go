package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"
	"strings"
)

// pageErrorBody はページリクエストでpanicした場合の本文。
const pageErrorBody = "Något gick fel. Försök igen senare."

// NewRecoveryMiddleware はハンドラーのpanicを回復して500を返すミドルウェアを生成する。
// /api 配下はJSON、それ以外はプレーンテキストで応答する。
// http.ErrAbortHandler は接続切断の合図なので再送出する。
func NewRecoveryMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				attrs := []any{
					slog.Any("panic", rec),
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.String("request_id", RequestIDFromContext(r.Context())),
					slog.String("stack", string(debug.Stack())),
				}
				if user, ok := UserFromContext(r.Context()); ok {
					attrs = append(attrs, slog.String("user_id", user.ID))
				}
				slog.Error("panic recovered", attrs...)

				if strings.HasPrefix(r.URL.Path, "/api/") {
					WriteInternalServerError(w)
					return
				}
				http.Error(w, pageErrorBody, http.StatusInternalServerError)
			}()
			next.ServeHTTP(w, r)
		})
	}
}
