package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/eryai/salesdash/internal/cache"
	"github.com/eryai/salesdash/internal/config"
	"github.com/eryai/salesdash/internal/database"
	"github.com/eryai/salesdash/internal/events"
	"github.com/eryai/salesdash/internal/gate"
	"github.com/eryai/salesdash/internal/handler"
	"github.com/eryai/salesdash/internal/identity"
	"github.com/eryai/salesdash/internal/lead"
	"github.com/eryai/salesdash/internal/logger"
	"github.com/eryai/salesdash/internal/metrics"
	"github.com/eryai/salesdash/internal/middleware"
	"github.com/eryai/salesdash/internal/repository"
	"github.com/eryai/salesdash/internal/security"
	"github.com/eryai/salesdash/internal/view"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 3. 設定されたログレベルに切り替える
	logger.SetLevel(cfg.LogLevel)

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd, err := ParseCommand(args)
	if err != nil {
		return err
	}

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("base_url", cfg.BaseURL),
	)

	switch cmd {
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// runServe はダッシュボードサーバーを起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. DB接続
	connectCtx, cancelConnect := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelConnect()

	db, err := database.Connect(connectCtx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	slog.Info("database connection established")

	// 2. リポジトリの初期化
	leadRepo := repository.NewPostgresLeadRepo(db)
	outreachRepo := repository.NewPostgresOutreachRepo(db)
	interactionRepo := repository.NewPostgresInteractionRepo(db)

	// 3. メトリクス
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewCollector(registry)

	// 4. IDサービスとリクエストゲート
	identityClient := identity.NewClient(identity.ClientConfig{
		BaseURL: cfg.SupabaseURL,
		AnonKey: cfg.SupabaseAnonKey,
		Timeout: cfg.IdentityTimeout,
	})
	gateway := identity.NewGateway(identityClient, identity.GatewayConfig{
		JWTSecret:       cfg.SupabaseJWTSecret,
		MFAFriendlyName: cfg.MFAFriendlyName,
	})
	requestGate := gate.New(gateway, gate.Config{
		FailClosed: cfg.GateFailClosed,
		Recorder:   collector,
	})
	if cfg.SupabaseJWTSecret == "" {
		slog.Warn("SUPABASE_JWT_SECRET is not set; assurance level is read from unverified token claims")
	}

	// 5. キャッシュとイベント発行（未設定なら無効）
	statsCache, closeCache := newStatsCache(cfg)
	defer closeCache()

	publisher := newPublisher(cfg)
	defer publisher.Close()

	// 6. ドメインサービスの初期化
	leadService := lead.NewService(lead.Deps{
		Leads:        leadRepo,
		Messages:     outreachRepo,
		Interactions: interactionRepo,
		Campaigns:    outreachRepo,
		Stats:        outreachRepo,
		Cache:        statsCache,
		Publisher:    publisher,
		Sanitizer:    security.NewTextSanitizer(),
		Recorder:     collector,
	})

	renderer, err := view.New()
	if err != nil {
		return fmt.Errorf("failed to load templates: %w", err)
	}

	// 7. ルーターの構築
	loginLimiter := middleware.NewRateLimiter(middleware.LoginRateLimiterConfig(cfg.LoginRateLimit))
	defer loginLimiter.Stop()

	deps := &handler.RouterDeps{
		Gate: requestGate,
		Cookies: identity.CookieOptions{
			Prefix: cfg.SessionCookiePrefix,
			Secure: cfg.CookieSecure,
			Domain: cfg.CookieDomain,
		},
		CSRF: middleware.CSRFConfig{
			CookieSecure: cfg.CookieSecure,
			CookieDomain: cfg.CookieDomain,
		},
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		LoginRateLimiter:  loginLimiter,
		TrustProxyHeaders: cfg.TrustProxyHeaders,
		Logger:            slog.Default(),
		HTTPRecorder:      collector,

		HealthChecker:  db,
		MetricsHandler: metrics.Handler(registry),

		Renderer:        renderer,
		SuperadminEmail: cfg.SuperadminEmail,

		AuthGateway: gateway,
		MFAGateway:  gateway,

		LeadService:      leadService,
		DashboardService: leadService,
	}

	router := handler.NewRouter(deps)

	// 8. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("dashboard server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErr <- err
		}
	}()

	select {
	case <-stop:
	case err := <-serveErr:
		return fmt.Errorf("server listen error: %w", err)
	}
	slog.Info("shutting down dashboard server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("dashboard server stopped gracefully")
	return nil
}

// newStatsCache はREDIS_URLが設定されていればRedisのキャッシュを返す。
// 未設定または接続できない場合はキャッシュなしで動作する。
func newStatsCache(cfg *config.Config) (cache.StatsCache, func()) {
	if cfg.RedisURL == "" {
		return cache.NopStatsCache{}, func() {}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client, err := cache.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		slog.Warn("redis unavailable, pipeline stats cache disabled", slog.String("error", err.Error()))
		return cache.NopStatsCache{}, func() {}
	}

	slog.Info("pipeline stats cache enabled", slog.Duration("ttl", cfg.StatsCacheTTL))
	return cache.NewRedisStatsCache(client, cfg.StatsCacheTTL), func() { client.Close() }
}

// newPublisher はAMQP_URLが設定されていればRabbitMQへのPublisherを返す。
// 未設定または接続できない場合はイベントを発行しない。
func newPublisher(cfg *config.Config) events.Publisher {
	if cfg.AMQPURL == "" {
		return events.NopPublisher{}
	}

	pub, err := events.NewRabbitMQPublisher(cfg.AMQPURL, cfg.AMQPExchange)
	if err != nil {
		slog.Warn("rabbitmq unavailable, lead events disabled", slog.String("error", err.Error()))
		return events.NopPublisher{}
	}

	slog.Info("lead events enabled", slog.String("exchange", cfg.AMQPExchange))
	return pub
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	version, err := database.RunMigrations(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully", slog.Uint64("version", uint64(version)))
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
