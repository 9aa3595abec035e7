package identity

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/eryai/salesdash/internal/model"
)

// refreshLeeway は期限切れ扱いにするまでの余裕。期限直前のトークンも更新する。
const refreshLeeway = 10 * time.Second

// GatewayConfig はGatewayの設定。
type GatewayConfig struct {
	JWTSecret       string
	MFAFriendlyName string
}

// Gateway はCookieに保存されたセッションを使ってIDサービスを呼び出す。
// トークン更新やサインアウトで生じたCookieの変更はCookieJarに保留される。
type Gateway struct {
	client       *Client
	claims       *ClaimsParser
	friendlyName string
	now          func() time.Time
}

// NewGateway はGatewayを生成する。
func NewGateway(client *Client, cfg GatewayConfig) *Gateway {
	name := cfg.MFAFriendlyName
	if name == "" {
		name = "EryAI Sales Dashboard"
	}
	return &Gateway{
		client:       client,
		claims:       NewClaimsParser(cfg.JWTSecret),
		friendlyName: name,
		now:          time.Now,
	}
}

// GetUser はCookieのセッションからユーザーを解決する。
// セッションがない場合はnil, nilを返す。アクセストークンが期限切れなら
// リフレッシュトークンで更新し、新しいトークンをjarに保留する。
// 更新が拒否された場合はセッションCookieを削除してnil, nilを返す。
func (g *Gateway) GetUser(ctx context.Context, jar *CookieJar) (*model.User, error) {
	access := jar.AccessToken()
	refresh := jar.RefreshToken()
	if access == "" && refresh == "" {
		return nil, nil
	}

	if access != "" && !expiresWithin(access, g.now(), refreshLeeway) {
		user, err := g.currentUser(ctx, jar, access)
		switch {
		case err == nil:
			return user, nil
		case !IsUnauthorized(err):
			return nil, fmt.Errorf("failed to get user: %w", err)
		}
		// 失効済みのアクセストークンはリフレッシュで回復を試みる
	}

	if refresh == "" {
		jar.ClearSession()
		return nil, nil
	}

	session, err := g.client.RefreshSession(ctx, refresh)
	if err != nil {
		if IsRejected(err) {
			slog.Info("session refresh rejected", slog.String("error", err.Error()))
			jar.ClearSession()
			return nil, nil
		}
		return nil, fmt.Errorf("failed to refresh session: %w", err)
	}
	jar.SetSession(session)

	if session.User != nil && session.User.ID != "" {
		return session.User, nil
	}
	user, err := g.currentUser(ctx, jar, session.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to get user after refresh: %w", err)
	}
	return user, nil
}

// currentUser はアクセストークンのユーザーを要素一覧つきで取得する。
// 同じjarで取得済みのトークンならIDサービスを呼ばない。
func (g *Gateway) currentUser(ctx context.Context, jar *CookieJar, access string) (*model.User, error) {
	if user := jar.cachedUser(access); user != nil {
		return user, nil
	}
	user, err := g.client.GetUser(ctx, access)
	if err != nil {
		return nil, err
	}
	jar.rememberUser(access, user)
	return user, nil
}

// ListFactors はセッションのユーザーに登録されたMFA要素を取得する。
func (g *Gateway) ListFactors(ctx context.Context, jar *CookieJar) (*model.FactorList, error) {
	access := jar.AccessToken()
	if access == "" {
		return nil, ErrNoSession
	}
	user, err := g.currentUser(ctx, jar, access)
	if err != nil {
		return nil, fmt.Errorf("failed to list factors: %w", err)
	}
	return model.NewFactorList(user.Factors), nil
}

// GetAssuranceLevel はセッションの現在の保証レベルと到達可能なレベルを返す。
// 現在のレベルはアクセストークンのaalクレームから読む。
// 要素一覧はGetUserやListFactorsで取得済みのユーザーを再利用する。
func (g *Gateway) GetAssuranceLevel(ctx context.Context, jar *CookieJar) (*model.AssuranceLevel, error) {
	claims, err := g.claims.Parse(jar.AccessToken())
	if err != nil {
		return nil, err
	}

	factors, err := g.ListFactors(ctx, jar)
	if err != nil {
		return nil, err
	}

	level := &model.AssuranceLevel{Current: currentAAL(claims), Next: model.AAL1}
	if len(factors.TOTP) > 0 {
		level.Next = model.AAL2
	}
	return level, nil
}

// SignIn はメールアドレスとパスワードでサインインし、セッションをjarに保留する。
func (g *Gateway) SignIn(ctx context.Context, jar *CookieJar, email, password string) (*model.User, error) {
	session, err := g.client.SignInWithPassword(ctx, email, password)
	if err != nil {
		return nil, err
	}
	jar.SetSession(session)
	return session.User, nil
}

// SignOut はIDサービス側のセッションを無効化し、Cookieを削除する。
// IDサービスの呼び出しに失敗してもCookieは必ず削除する。
func (g *Gateway) SignOut(ctx context.Context, jar *CookieJar) error {
	defer jar.ClearSession()

	access := jar.AccessToken()
	if access == "" {
		return nil
	}
	if err := g.client.Logout(ctx, access); err != nil && !IsUnauthorized(err) {
		return fmt.Errorf("failed to sign out: %w", err)
	}
	return nil
}

// Enroll はTOTP要素の登録を開始し、QRコードをPNGのdata URLで返す。
// 途中で放棄された未検証のTOTP要素は同名で登録できないため、先に削除する。
func (g *Gateway) Enroll(ctx context.Context, jar *CookieJar) (*model.TOTPEnrollment, error) {
	access := jar.AccessToken()
	if access == "" {
		return nil, ErrNoSession
	}

	factors, err := g.ListFactors(ctx, jar)
	if err != nil {
		return nil, err
	}
	for _, f := range factors.All {
		if f.FactorType != model.FactorTypeTOTP || f.Status == model.FactorStatusVerified {
			continue
		}
		if err := g.client.Unenroll(ctx, access, f.ID); err != nil {
			return nil, fmt.Errorf("failed to remove unverified factor: %w", err)
		}
	}

	enrollment, err := g.client.Enroll(ctx, access, g.friendlyName)
	if err != nil {
		return nil, fmt.Errorf("failed to enroll factor: %w", err)
	}

	if enrollment.URI != "" {
		qr, err := QRCodeDataURL(enrollment.URI)
		if err != nil {
			// IDサービスが返したQRコードをそのまま使う
			slog.Warn("failed to render qr code", slog.String("error", err.Error()))
		} else {
			enrollment.QRCode = qr
		}
	}
	return enrollment, nil
}

// ChallengeAndVerify はチャレンジを作成してTOTPコードを検証する。
// 成功すると昇格したセッションをjarに保留する。
func (g *Gateway) ChallengeAndVerify(ctx context.Context, jar *CookieJar, factorID, code string) error {
	access := jar.AccessToken()
	if access == "" {
		return ErrNoSession
	}

	challengeID, err := g.client.Challenge(ctx, access, factorID)
	if err != nil {
		return fmt.Errorf("failed to create challenge: %w", err)
	}

	session, err := g.client.Verify(ctx, access, factorID, challengeID, code)
	if err != nil {
		return fmt.Errorf("failed to verify code: %w", err)
	}
	jar.SetSession(session)
	return nil
}
