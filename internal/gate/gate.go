// Package gate はリクエストごとにセッションとMFA保証レベルを確認し、
// 通過させるかリダイレクトするかを決める。HTTPには依存しない。
package gate

import (
	"context"
	"log/slog"
	"strings"

	"github.com/eryai/salesdash/internal/identity"
	"github.com/eryai/salesdash/internal/model"
)

// Outcome はゲートの判定結果。
type Outcome int

const (
	// Allow はリクエストをそのまま通す。
	Allow Outcome = iota
	// RedirectLogin は未認証のためログイン画面へ送る。
	RedirectLogin
	// RedirectHome はログイン済みユーザーをログイン画面からホームへ送る。
	RedirectHome
	// RedirectMFA は第2要素が未検証のためMFAチャレンジ画面へ送る。
	RedirectMFA
)

// String はメトリクスやログで使うラベルを返す。
func (o Outcome) String() string {
	switch o {
	case Allow:
		return "allow"
	case RedirectLogin:
		return "redirect_login"
	case RedirectHome:
		return "redirect_home"
	case RedirectMFA:
		return "redirect_mfa"
	default:
		return "unknown"
	}
}

// Decision はゲートの判定。TargetはAllow以外でのリダイレクト先。
// Userは解決できた場合のみ設定される。
type Decision struct {
	Outcome Outcome
	Target  string
	User    *model.User
}

// IdentityGateway はゲートが必要とするIDサービスの操作。
type IdentityGateway interface {
	GetUser(ctx context.Context, jar *identity.CookieJar) (*model.User, error)
	ListFactors(ctx context.Context, jar *identity.CookieJar) (*model.FactorList, error)
	GetAssuranceLevel(ctx context.Context, jar *identity.CookieJar) (*model.AssuranceLevel, error)
}

// Recorder はゲートの判定を記録する。
type Recorder interface {
	RecordGateDecision(outcome string)
}

// Routes はゲートが分類に使うパス。
type Routes struct {
	Login     string   // 公開パスの接頭辞。完全一致はログイン画面そのもの
	MFA       string   // MFA画面の接頭辞
	MFAVerify string   // MFAチャレンジ画面
	Home      string   // ログイン後のホーム
	Protected []string // MFA確認の対象となる接頭辞
}

// DefaultRoutes は既定のパス構成を返す。
func DefaultRoutes() Routes {
	return Routes{
		Login:     "/login",
		MFA:       "/mfa",
		MFAVerify: "/mfa/verify",
		Home:      "/leads",
		Protected: []string{"/leads", "/api"},
	}
}

type pathClass int

const (
	classOther pathClass = iota
	classPublic
	classMFA
	classProtected
)

// hasPathPrefix はpathがprefix自身かその配下かを返す。
func hasPathPrefix(path, prefix string) bool {
	if prefix == "" {
		return false
	}
	return path == prefix || strings.HasPrefix(path, strings.TrimSuffix(prefix, "/")+"/")
}

func (r Routes) classify(path string) pathClass {
	switch {
	case hasPathPrefix(path, r.Login):
		return classPublic
	case hasPathPrefix(path, r.MFA):
		return classMFA
	}
	for _, p := range r.Protected {
		if hasPathPrefix(path, p) {
			return classProtected
		}
	}
	return classOther
}

// Config はGateの設定。
type Config struct {
	Routes Routes
	// FailClosed がtrueの場合、MFA確認中のエラーでログイン画面へ送る。
	// 既定はfalse（エラー時は通す）。
	FailClosed bool
	Recorder   Recorder
}

// Gate はリクエストごとの認可判定を行う。状態を持たない。
type Gate struct {
	idp        IdentityGateway
	routes     Routes
	failClosed bool
	recorder   Recorder
}

// New はGateを生成する。cfg.Routesが空の場合はDefaultRoutesを使う。
func New(idp IdentityGateway, cfg Config) *Gate {
	routes := cfg.Routes
	if routes.Login == "" {
		routes = DefaultRoutes()
	}
	return &Gate{
		idp:        idp,
		routes:     routes,
		failClosed: cfg.FailClosed,
		recorder:   cfg.Recorder,
	}
}

// Routes は設定済みのパス構成を返す。
func (g *Gate) Routes() Routes {
	return g.routes
}

// Evaluate はpathへのリクエストを判定する。
// 判定は上から順に評価し、最初に一致した規則で決まる。
// セッション更新によるCookieの変更はjarに保留されるため、
// 呼び出し側は判定結果にかかわらずjarを応答に反映すること。
func (g *Gate) Evaluate(ctx context.Context, jar *identity.CookieJar, path string) Decision {
	d := g.evaluate(ctx, jar, path)
	if g.recorder != nil {
		g.recorder.RecordGateDecision(d.Outcome.String())
	}
	return d
}

func (g *Gate) evaluate(ctx context.Context, jar *identity.CookieJar, path string) Decision {
	user, err := g.idp.GetUser(ctx, jar)
	if err != nil {
		slog.Warn("session resolution failed",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
		user = nil
	}

	class := g.routes.classify(path)

	switch {
	case user == nil && class != classPublic && class != classMFA:
		return Decision{Outcome: RedirectLogin, Target: g.routes.Login}
	case user != nil && path == g.routes.Login:
		return Decision{Outcome: RedirectHome, Target: g.routes.Home, User: user}
	case user == nil && class == classMFA:
		return Decision{Outcome: RedirectLogin, Target: g.routes.Login}
	case user != nil && class == classProtected:
		return g.checkMFA(ctx, jar, path, user)
	}

	return Decision{Outcome: Allow, User: user}
}

// checkMFA は検証済みTOTP要素を持つユーザーにaal2を要求する。
// 要素が未登録のユーザーは通す。
func (g *Gate) checkMFA(ctx context.Context, jar *identity.CookieJar, path string, user *model.User) Decision {
	factors, err := g.idp.ListFactors(ctx, jar)
	if err != nil {
		return g.mfaCheckFailed(path, user, "list factors", err)
	}
	if len(factors.TOTP) == 0 {
		return Decision{Outcome: Allow, User: user}
	}

	level, err := g.idp.GetAssuranceLevel(ctx, jar)
	if err != nil {
		return g.mfaCheckFailed(path, user, "get assurance level", err)
	}
	if level.Current != model.AAL2 {
		return Decision{Outcome: RedirectMFA, Target: g.routes.MFAVerify, User: user}
	}

	return Decision{Outcome: Allow, User: user}
}

func (g *Gate) mfaCheckFailed(path string, user *model.User, step string, err error) Decision {
	slog.Error("mfa check failed",
		slog.String("step", step),
		slog.String("path", path),
		slog.String("user_id", user.ID),
		slog.Bool("fail_closed", g.failClosed),
		slog.String("error", err.Error()),
	)
	if g.failClosed {
		return Decision{Outcome: RedirectLogin, Target: g.routes.Login}
	}
	return Decision{Outcome: Allow, User: user}
}
