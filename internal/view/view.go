// Package view はダッシュボードのHTMLテンプレートと静的ファイルを提供する。
// テンプレートと静的ファイルはバイナリに埋め込む。
package view

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/eryai/salesdash/internal/lead"
	"github.com/eryai/salesdash/internal/model"
	"github.com/eryai/salesdash/internal/security"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

// ページ名
const (
	PageLogin      = "login"
	PageLeads      = "leads"
	PageLeadDetail = "lead_detail"
	PageMFASetup   = "mfa_setup"
	PageMFAVerify  = "mfa_verify"
	PageNotFound   = "not_found"
	PageError      = "error"
)

const layoutFile = "templates/layout.html"

// Header は認証済みページ共通のヘッダー情報。
type Header struct {
	UserEmail    string
	IsSuperadmin bool
	CSRFToken    string
}

// LoginPage はログイン画面のデータ。
type LoginPage struct {
	CSRFToken string
	Email     string
	Error     string
}

// ClientConfig はダッシュボードのスクリプトに渡す表示設定。
type ClientConfig struct {
	Statuses   []Option `json:"statuses"`
	Industries []Option `json:"industries"`
}

// LeadsPage はリード一覧ダッシュボードのデータ。
type LeadsPage struct {
	Header
	Overview *lead.Overview
	Config   ClientConfig
}

// LeadDetailPage はリード詳細画面のデータ。
type LeadDetailPage struct {
	Header
	Detail *model.LeadDetail
}

// MFASetupPage はTOTP登録画面のデータ。
type MFASetupPage struct {
	CSRFToken string
	FactorID  string
	Secret    string
	QRCode    string
	Error     string
}

// MFAVerifyPage はTOTPチャレンジ画面のデータ。
type MFAVerifyPage struct {
	CSRFToken string
	FactorID  string
	Error     string
}

// MessagePage はエラー画面のデータ。
type MessagePage struct {
	Title   string
	Message string
}

// NewClientConfig は既定の表示設定を返す。
func NewClientConfig() ClientConfig {
	return ClientConfig{Statuses: StatusOptions(), Industries: IndustryOptions()}
}

// Renderer はページ名ごとにレイアウトと合成済みのテンプレートを保持する。
type Renderer struct {
	pages map[string]*template.Template
}

// New は埋め込みテンプレートを解析してRendererを生成する。
func New() (*Renderer, error) {
	files, err := fs.Glob(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to list templates: %w", err)
	}

	r := &Renderer{pages: make(map[string]*template.Template, len(files))}
	for _, f := range files {
		if f == layoutFile {
			continue
		}
		name := strings.TrimSuffix(path.Base(f), ".html")
		t, err := template.New(name).Funcs(funcs).ParseFS(templateFS, layoutFile, f)
		if err != nil {
			return nil, fmt.Errorf("failed to parse template %s: %w", name, err)
		}
		r.pages[name] = t
	}
	return r, nil
}

// Render はページをバッファに描画してからレスポンスに書き込む。
// 描画に失敗した場合は途中までの出力を送らず500を返す。
func (r *Renderer) Render(w http.ResponseWriter, status int, name string, data any) {
	t, ok := r.pages[name]
	if !ok {
		slog.Error("unknown page", slog.String("page", name))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", data); err != nil {
		slog.Error("failed to render page",
			slog.String("page", name),
			slog.String("error", err.Error()),
		)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	buf.WriteTo(w)
}

// StaticHandler は /static/ 配下の埋め込みファイルを配信するハンドラーを返す。
func StaticHandler() http.Handler {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		// embedのパスはビルド時に確定している
		panic(err)
	}
	return http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
}

var messageBodies = security.NewMessageBodyRenderer()

var funcs = template.FuncMap{
	"statusLabel":     StatusLabel,
	"industryLabel":   IndustryLabel,
	"statusOptions":   StatusOptions,
	"industryOptions": IndustryOptions,
	"text":            text,
	"number":          number,
	"datetime":        datetime,
	"optDatetime":     optDatetime,
	"imageURL":        imageURL,
	"messageBody":     messageBodies.Render,
}

// text は任意項目を表示用に返す。未設定は "-"。
func text(s *string) string {
	if s == nil || *s == "" {
		return "-"
	}
	return *s
}

func number(n *int) string {
	if n == nil {
		return "-"
	}
	return fmt.Sprint(*n)
}

func datetime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}

func optDatetime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return datetime(*t)
}

// imageURL は画像のdata URLだけを信頼済みURLとして返す。
// それ以外はhtml/templateの通常のエスケープに任せる。
func imageURL(s string) any {
	if strings.HasPrefix(s, "data:image/") {
		return template.URL(s)
	}
	return s
}
