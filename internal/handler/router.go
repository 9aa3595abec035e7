package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/eryai/salesdash/internal/gate"
	"github.com/eryai/salesdash/internal/identity"
	"github.com/eryai/salesdash/internal/middleware"
	"github.com/eryai/salesdash/internal/view"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Gate              *gate.Gate
	Cookies           identity.CookieOptions
	CSRF              middleware.CSRFConfig
	CORSAllowedOrigin string
	LoginRateLimiter  *middleware.RateLimiter
	TrustProxyHeaders bool
	Logger            *slog.Logger
	HTTPRecorder      middleware.HTTPRecorder

	// 運用エンドポイント
	HealthChecker  HealthChecker
	MetricsHandler http.Handler

	// 画面
	Renderer        PageRenderer
	SuperadminEmail string

	// 認証・MFA
	AuthGateway AuthGateway
	MFAGateway  MFAGateway

	// リード
	LeadService      LeadServiceInterface
	DashboardService DashboardServiceInterface
}

// NewRouter は全エンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	(RealIP) → Logging → Recovery → SecurityHeaders → CSRF → Gate
//
// /api 配下はページ用ゲートの代わりに CORS → APISession を通り、
// リダイレクトではなくJSONで401/403を返す。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	if deps.TrustProxyHeaders {
		r.Use(chimw.RealIP)
	}
	r.Use(middleware.NewLoggingMiddleware(logger, deps.HTTPRecorder))
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware(deps.CSRF.CookieSecure))
	r.Use(middleware.NewCSRFMiddleware(deps.CSRF))
	r.Use(middleware.NewGateMiddleware(deps.Gate, deps.Cookies))

	authConfig := AuthHandlerConfig{Cookies: deps.Cookies}
	mfaConfig := MFAHandlerConfig{Cookies: deps.Cookies}
	if deps.Gate != nil {
		routes := deps.Gate.Routes()
		authConfig.HomePath, authConfig.LoginPath = routes.Home, routes.Login
		mfaConfig.HomePath = routes.Home
	}

	authHandler := NewAuthHandler(deps.AuthGateway, deps.Renderer, authConfig)
	mfaHandler := NewMFAHandler(deps.MFAGateway, deps.Renderer, mfaConfig)
	dashHandler := NewDashboardHandler(deps.DashboardService, deps.Renderer, deps.SuperadminEmail)
	leadHandler := NewLeadHandler(deps.LeadService)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		renderNotFound(deps.Renderer, w)
	})

	// --- 運用エンドポイント（ゲート対象外） ---
	r.Get("/health", NewHealthHandler(deps.HealthChecker))
	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}
	r.Handle("/static/*", view.StaticHandler())

	// --- ログイン ---
	r.Get("/login", authHandler.LoginPage)
	if deps.LoginRateLimiter != nil {
		limited := http.HandlerFunc(authHandler.LoginRateLimited)
		r.With(deps.LoginRateLimiter.MiddlewareWithHandler(limited)).Post("/login", authHandler.Login)
	} else {
		r.Post("/login", authHandler.Login)
	}
	r.Post("/logout", authHandler.Logout)

	// --- MFA（ログイン済みのみゲートを通過する） ---
	r.Route("/mfa", func(r chi.Router) {
		r.Get("/setup", mfaHandler.SetupPage)
		r.Post("/setup", mfaHandler.Setup)
		r.Get("/verify", mfaHandler.VerifyPage)
		r.Post("/verify", mfaHandler.Verify)
	})

	// --- ダッシュボード ---
	r.Get("/", dashHandler.Home)
	r.Get("/leads", dashHandler.Leads)
	r.Get("/leads/{id}", dashHandler.LeadDetail)

	// --- API ---
	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
		r.Use(middleware.NewAPISessionMiddleware(deps.Gate, deps.Cookies))
		r.NotFound(func(w http.ResponseWriter, r *http.Request) {
			middleware.WriteJSONError(w, http.StatusNotFound, "Not found")
		})

		r.Route("/leads", func(r chi.Router) {
			r.Get("/", leadHandler.ListLeads)
			r.Post("/", leadHandler.CreateLead)
			r.Get("/stats", leadHandler.Stats)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", leadHandler.GetLead)
				r.Patch("/", leadHandler.UpdateLead)
				r.Delete("/", leadHandler.DeleteLead)
			})
		})
	})

	return r
}
