package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/eryai/salesdash/internal/gate"
	"github.com/eryai/salesdash/internal/identity"
	"github.com/eryai/salesdash/internal/model"
)

// gateSkipPrefixes はページ用ゲートを通さないパス。
// /api/ はAPIセッションミドルウェアが同じ判定を行う。
var gateSkipPrefixes = []string{"/api/", "/static/"}

// gateSkipPaths は完全一致でゲートを通さないパス。
// /logout はセッションの有無にかかわらずCookieを削除する。
var gateSkipPaths = map[string]bool{
	"/favicon.ico": true,
	"/logout":      true,
	"/health":      true,
	"/metrics":     true,
	"/api":         true,
}

// skipGate はゲートの対象外かどうかを返す。
func skipGate(path string) bool {
	if gateSkipPaths[path] {
		return true
	}
	for _, p := range gateSkipPrefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

// NewGateMiddleware はページリクエストにゲートの判定を適用するミドルウェアを返す。
// セッション更新で発生したCookieは判定結果にかかわらずレスポンスに書き込み、
// 通過するリクエストにも反映してから次のハンドラーに渡す。
func NewGateMiddleware(g *gate.Gate, cookies identity.CookieOptions) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if skipGate(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			jar := identity.NewCookieJar(r, cookies)
			d := g.Evaluate(r.Context(), jar, r.URL.Path)
			logDecision(r, d)
			jar.Apply(w)

			if d.Outcome != gate.Allow {
				http.Redirect(w, r, d.Target, redirectStatus(r.Method))
				return
			}

			fwd := jar.Request()
			if d.User != nil {
				fwd = fwd.WithContext(ContextWithUser(fwd.Context(), d.User))
			}
			next.ServeHTTP(w, fwd)
		})
	}
}

// redirectStatus はゲートのリダイレクトに使うステータスを返す。
// リダイレクト先はどれも画面なので、GET/HEAD以外は303でGETに切り替える。
func redirectStatus(method string) int {
	if method == http.MethodGet || method == http.MethodHead {
		return http.StatusTemporaryRedirect
	}
	return http.StatusSeeOther
}

// NewAPISessionMiddleware は/api配下のリクエストにゲートの判定を適用する。
// リダイレクトの代わりに、未認証は401、MFA未完了は403をJSONで返す。
func NewAPISessionMiddleware(g *gate.Gate, cookies identity.CookieOptions) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			jar := identity.NewCookieJar(r, cookies)
			d := g.Evaluate(r.Context(), jar, r.URL.Path)
			logDecision(r, d)
			jar.Apply(w)

			switch {
			case d.Outcome == gate.RedirectMFA:
				WriteErrorResponse(w, model.NewMFARequiredError())
				return
			case d.Outcome != gate.Allow || d.User == nil:
				WriteErrorResponse(w, model.NewUnauthorizedError())
				return
			}

			fwd := jar.Request()
			next.ServeHTTP(w, fwd.WithContext(ContextWithUser(fwd.Context(), d.User)))
		})
	}
}

// logDecision はデバッグ用に判定内容を出力する。
func logDecision(r *http.Request, d gate.Decision) {
	slog.Debug("gate decision",
		slog.String("path", r.URL.Path),
		slog.String("outcome", d.Outcome.String()),
		slog.String("target", d.Target),
	)
}
