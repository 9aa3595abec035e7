// Package identity は外部IDサービス（Supabase Auth / GoTrue互換API）との連携を提供する。
// セッション解決、パスワード認証、TOTP要素の登録・チャレンジ・検証を扱う。
package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/eryai/salesdash/internal/model"
)

// ErrNoSession はCookieにセッショントークンがないことを表す。
var ErrNoSession = errors.New("identity: no session")

// ResponseError はIDサービスが2xx以外を返したときのエラー。
type ResponseError struct {
	StatusCode int
	Code       string
	Message    string
}

// Error はerrorインターフェースを実装する。
func (e *ResponseError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("identity service returned %d (%s): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("identity service returned %d: %s", e.StatusCode, e.Message)
}

// IsUnauthorized はトークンが無効・期限切れで拒否されたエラーかどうかを返す。
func IsUnauthorized(err error) bool {
	var re *ResponseError
	if !errors.As(err, &re) {
		return false
	}
	return re.StatusCode == http.StatusUnauthorized || re.StatusCode == http.StatusForbidden
}

// IsRejected はIDサービスがリクエスト内容を拒否した（4xx）エラーかどうかを返す。
// 資格情報やTOTPコードの誤りはこちらで判定する。
func IsRejected(err error) bool {
	var re *ResponseError
	if !errors.As(err, &re) {
		return false
	}
	return re.StatusCode >= 400 && re.StatusCode < 500
}

// ClientConfig はIDサービスクライアントの設定。
type ClientConfig struct {
	// BaseURL はプロジェクトURL（例: https://xyz.supabase.co）。/auth/v1 は付けない。
	BaseURL string
	AnonKey string
	Timeout time.Duration

	// テスト用に差し替え可能
	HTTPClient *http.Client
}

// Client はGoTrue互換APIのHTTPクライアント。
// トークンは呼び出し側から渡し、自身は状態を持たない。
type Client struct {
	authURL    string
	anonKey    string
	httpClient *http.Client
}

// NewClient はClientを生成する。
func NewClient(cfg ClientConfig) *Client {
	hc := cfg.HTTPClient
	if hc == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		hc = &http.Client{Timeout: timeout}
	}
	return &Client{
		authURL:    strings.TrimRight(cfg.BaseURL, "/") + "/auth/v1",
		anonKey:    cfg.AnonKey,
		httpClient: hc,
	}
}

// userResponse は /user および トークンレスポンス内のユーザー。
type userResponse struct {
	ID      string         `json:"id"`
	Email   string         `json:"email"`
	Factors []model.Factor `json:"factors"`
}

func (u *userResponse) toModel() *model.User {
	return &model.User{ID: u.ID, Email: u.Email, Factors: u.Factors}
}

// tokenResponse は /token と /factors/{id}/verify のレスポンス。
type tokenResponse struct {
	AccessToken  string        `json:"access_token"`
	TokenType    string        `json:"token_type"`
	ExpiresIn    int           `json:"expires_in"`
	ExpiresAt    int64         `json:"expires_at"`
	RefreshToken string        `json:"refresh_token"`
	User         *userResponse `json:"user"`
}

func (t *tokenResponse) toModel() *model.AuthSession {
	s := &model.AuthSession{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		ExpiresIn:    t.ExpiresIn,
	}
	if t.ExpiresAt > 0 {
		s.ExpiresAt = time.Unix(t.ExpiresAt, 0)
	} else if t.ExpiresIn > 0 {
		s.ExpiresAt = time.Now().Add(time.Duration(t.ExpiresIn) * time.Second)
	}
	if t.User != nil {
		s.User = t.User.toModel()
	}
	return s
}

// errorResponse はGoTrueのエラーボディ。バージョンによってキーが異なる。
type errorResponse struct {
	Code             any    `json:"code"`
	ErrorCode        string `json:"error_code"`
	Msg              string `json:"msg"`
	Message          string `json:"message"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

func parseError(status int, body []byte) *ResponseError {
	re := &ResponseError{StatusCode: status}
	var er errorResponse
	if err := json.Unmarshal(body, &er); err != nil {
		re.Message = strings.TrimSpace(string(body))
		return re
	}

	re.Code = er.ErrorCode
	if re.Code == "" {
		re.Code = er.Error
	}
	if re.Code == "" {
		if s, ok := er.Code.(string); ok {
			re.Code = s
		}
	}

	for _, m := range []string{er.Msg, er.Message, er.ErrorDescription, er.Error} {
		if m != "" {
			re.Message = m
			break
		}
	}
	return re
}

// do はリクエストを送信し、2xxならレスポンスボディをoutにデコードする。
func (c *Client) do(ctx context.Context, method, path, accessToken string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.authURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("apikey", c.anonKey)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	} else {
		req.Header.Set("Authorization", "Bearer "+c.anonKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s request failed: %w", method, path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("failed to read %s response: %w", path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return parseError(resp.StatusCode, respBody)
	}

	if out == nil || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to parse %s response: %w", path, err)
	}
	return nil
}

// SignInWithPassword はメールアドレスとパスワードでセッションを発行する。
func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*model.AuthSession, error) {
	var tr tokenResponse
	err := c.do(ctx, http.MethodPost, "/token?grant_type=password", "",
		map[string]string{"email": email, "password": password}, &tr)
	if err != nil {
		return nil, err
	}
	if tr.AccessToken == "" {
		return nil, fmt.Errorf("empty access token in response")
	}
	return tr.toModel(), nil
}

// RefreshSession はリフレッシュトークンで新しいセッションを発行する。
// リフレッシュトークンは一度使うと無効になる。
func (c *Client) RefreshSession(ctx context.Context, refreshToken string) (*model.AuthSession, error) {
	var tr tokenResponse
	err := c.do(ctx, http.MethodPost, "/token?grant_type=refresh_token", "",
		map[string]string{"refresh_token": refreshToken}, &tr)
	if err != nil {
		return nil, err
	}
	if tr.AccessToken == "" {
		return nil, fmt.Errorf("empty access token in response")
	}
	return tr.toModel(), nil
}

// GetUser はアクセストークンの持ち主と登録済みMFA要素を取得する。
func (c *Client) GetUser(ctx context.Context, accessToken string) (*model.User, error) {
	var ur userResponse
	if err := c.do(ctx, http.MethodGet, "/user", accessToken, nil, &ur); err != nil {
		return nil, err
	}
	if ur.ID == "" {
		return nil, fmt.Errorf("empty user id in response")
	}
	return ur.toModel(), nil
}

// Logout はセッションを無効化する。
func (c *Client) Logout(ctx context.Context, accessToken string) error {
	return c.do(ctx, http.MethodPost, "/logout?scope=local", accessToken, nil, nil)
}

// enrollResponse は POST /factors のレスポンス。
type enrollResponse struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	TOTP struct {
		QRCode string `json:"qr_code"`
		Secret string `json:"secret"`
		URI    string `json:"uri"`
	} `json:"totp"`
}

// Enroll はTOTP要素の登録を開始する。要素は検証が完了するまでunverifiedのまま。
func (c *Client) Enroll(ctx context.Context, accessToken, friendlyName string) (*model.TOTPEnrollment, error) {
	var er enrollResponse
	err := c.do(ctx, http.MethodPost, "/factors", accessToken, map[string]string{
		"factor_type":   string(model.FactorTypeTOTP),
		"friendly_name": friendlyName,
	}, &er)
	if err != nil {
		return nil, err
	}
	if er.ID == "" {
		return nil, fmt.Errorf("empty factor id in response")
	}
	return &model.TOTPEnrollment{
		FactorID: er.ID,
		Secret:   er.TOTP.Secret,
		URI:      er.TOTP.URI,
		QRCode:   er.TOTP.QRCode,
	}, nil
}

// Unenroll は要素を削除する。
func (c *Client) Unenroll(ctx context.Context, accessToken, factorID string) error {
	return c.do(ctx, http.MethodDelete, "/factors/"+url.PathEscape(factorID), accessToken, nil, nil)
}

// Challenge は要素に対するチャレンジを作成し、チャレンジIDを返す。
func (c *Client) Challenge(ctx context.Context, accessToken, factorID string) (string, error) {
	var cr struct {
		ID        string `json:"id"`
		ExpiresAt int64  `json:"expires_at"`
	}
	path := "/factors/" + url.PathEscape(factorID) + "/challenge"
	if err := c.do(ctx, http.MethodPost, path, accessToken, map[string]string{}, &cr); err != nil {
		return "", err
	}
	if cr.ID == "" {
		return "", fmt.Errorf("empty challenge id in response")
	}
	return cr.ID, nil
}

// Verify はTOTPコードを検証し、aal2に昇格したセッションを返す。
func (c *Client) Verify(ctx context.Context, accessToken, factorID, challengeID, code string) (*model.AuthSession, error) {
	var tr tokenResponse
	path := "/factors/" + url.PathEscape(factorID) + "/verify"
	err := c.do(ctx, http.MethodPost, path, accessToken, map[string]string{
		"challenge_id": challengeID,
		"code":         code,
	}, &tr)
	if err != nil {
		return nil, err
	}
	if tr.AccessToken == "" {
		return nil, fmt.Errorf("empty access token in response")
	}
	return tr.toModel(), nil
}
