package identity

import (
	"net/http"
	"time"

	"github.com/eryai/salesdash/internal/model"
)

// sessionCookieMaxAge はセッションCookieの有効期間（秒）。
// アクセストークン自体の有効期限はJWTのexpで判定する。
const sessionCookieMaxAge = 60 * 60 * 24 * 400

// CookieOptions はセッションCookieの属性。
type CookieOptions struct {
	Prefix string // "<prefix>-access-token" のように使う
	Secure bool
	Domain string
}

// CookieJar はリクエストのCookieを読み、レスポンスに書くCookieを保留する。
// セッション更新で書き換えたCookieはApplyでレスポンスに反映する。
// 1リクエストにつき1つ生成し、並行して使わない。
type CookieJar struct {
	req     *http.Request
	opts    CookieOptions
	pending []*http.Cookie

	// IDサービスから取得したユーザー。userTokenのアクセストークンに対してのみ有効
	user      *model.User
	userToken string
}

// NewCookieJar はリクエストに紐づくCookieJarを生成する。
func NewCookieJar(r *http.Request, opts CookieOptions) *CookieJar {
	if opts.Prefix == "" {
		opts.Prefix = "sb"
	}
	return &CookieJar{req: r, opts: opts}
}

// AccessTokenName はアクセストークンCookie名を返す。
func (j *CookieJar) AccessTokenName() string { return j.opts.Prefix + "-access-token" }

// RefreshTokenName はリフレッシュトークンCookie名を返す。
func (j *CookieJar) RefreshTokenName() string { return j.opts.Prefix + "-refresh-token" }

// Get はCookieの値を返す。保留中の書き込みがあればそちらを優先する。
func (j *CookieJar) Get(name string) string {
	for i := len(j.pending) - 1; i >= 0; i-- {
		if j.pending[i].Name == name {
			if j.pending[i].MaxAge < 0 {
				return ""
			}
			return j.pending[i].Value
		}
	}
	if j.req == nil {
		return ""
	}
	c, err := j.req.Cookie(name)
	if err != nil {
		return ""
	}
	return c.Value
}

// Set はCookieの書き込みを保留する。
func (j *CookieJar) Set(name, value string, maxAge int) {
	j.put(&http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   j.opts.Domain,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   j.opts.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// Remove はCookieの削除を保留する。
func (j *CookieJar) Remove(name string) {
	j.put(&http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		Domain:   j.opts.Domain,
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   j.opts.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// put は同名の保留を置き換える。
func (j *CookieJar) put(c *http.Cookie) {
	for i, p := range j.pending {
		if p.Name == c.Name {
			j.pending[i] = c
			return
		}
	}
	j.pending = append(j.pending, c)
}

// AccessToken はアクセストークンを返す。
func (j *CookieJar) AccessToken() string { return j.Get(j.AccessTokenName()) }

// RefreshToken はリフレッシュトークンを返す。
func (j *CookieJar) RefreshToken() string { return j.Get(j.RefreshTokenName()) }

// SetSession はセッショントークンをCookieとして保留する。
func (j *CookieJar) SetSession(s *model.AuthSession) {
	j.Set(j.AccessTokenName(), s.AccessToken, sessionCookieMaxAge)
	if s.RefreshToken != "" {
		j.Set(j.RefreshTokenName(), s.RefreshToken, sessionCookieMaxAge)
	}
}

// ClearSession はセッションCookieの削除を保留する。
func (j *CookieJar) ClearSession() {
	j.Remove(j.AccessTokenName())
	j.Remove(j.RefreshTokenName())
}

// Pending は保留中のCookieを返す。
func (j *CookieJar) Pending() []*http.Cookie {
	return j.pending
}

// Apply は保留中のCookieをレスポンスに書き込む。
// ヘッダー送信前に呼ぶこと。
func (j *CookieJar) Apply(w http.ResponseWriter) {
	for _, c := range j.pending {
		http.SetCookie(w, c)
	}
}

// Request は保留中のCookieを反映したリクエストを返す。
// 後続のハンドラが更新後のトークンを読めるようにするために使う。
func (j *CookieJar) Request() *http.Request {
	if j.req == nil || len(j.pending) == 0 {
		return j.req
	}

	overridden := make(map[string]bool, len(j.pending))
	for _, c := range j.pending {
		overridden[c.Name] = true
	}

	r := j.req.Clone(j.req.Context())
	r.Header.Del("Cookie")
	for _, c := range j.req.Cookies() {
		if !overridden[c.Name] {
			r.AddCookie(c)
		}
	}
	for _, c := range j.pending {
		if c.MaxAge >= 0 {
			r.AddCookie(&http.Cookie{Name: c.Name, Value: c.Value})
		}
	}
	return r
}

// cachedUser はaccessで取得済みのユーザーを返す。
func (j *CookieJar) cachedUser(access string) *model.User {
	if j.user == nil || j.userToken != access {
		return nil
	}
	return j.user
}

func (j *CookieJar) rememberUser(access string, user *model.User) {
	j.user, j.userToken = user, access
}
