package identity

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/eryai/salesdash/internal/model"
)

// AccessClaims はアクセストークンのうちこのシステムが読むクレーム。
type AccessClaims struct {
	jwt.RegisteredClaims
	Email     string    `json:"email"`
	AAL       model.AAL `json:"aal"`
	SessionID string    `json:"session_id"`
}

// ClaimsParser はアクセストークンのクレームを読み取る。
// secretが空の場合は署名を検証しない。その場合でもトークンは
// IDサービスの /user で有効性を確認済みのものだけを渡すこと。
type ClaimsParser struct {
	secret []byte
}

// NewClaimsParser はClaimsParserを生成する。
func NewClaimsParser(secret string) *ClaimsParser {
	p := &ClaimsParser{}
	if secret != "" {
		p.secret = []byte(secret)
	}
	return p
}

// Parse はトークンを検証してクレームを返す。
func (p *ClaimsParser) Parse(token string) (*AccessClaims, error) {
	if token == "" {
		return nil, ErrNoSession
	}

	claims := &AccessClaims{}
	if p.secret == nil {
		if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
			return nil, fmt.Errorf("failed to parse access token: %w", err)
		}
		return claims, nil
	}

	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return p.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("failed to verify access token: %w", err)
	}
	return claims, nil
}

// expiresWithin はトークンのexpがnow+leeway以前かどうかを返す。
// 署名は検証しない。解析できないトークンは期限切れとみなす。
func expiresWithin(token string, now time.Time, leeway time.Duration) bool {
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return true
	}
	if claims.ExpiresAt == nil {
		return false
	}
	return !claims.ExpiresAt.Time.After(now.Add(leeway))
}

// currentAAL はクレームのaalを返す。未設定はaal1として扱う。
func currentAAL(c *AccessClaims) model.AAL {
	if c == nil || c.AAL == "" {
		return model.AAL1
	}
	return c.AAL
}
