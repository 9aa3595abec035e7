package security

import (
	"html"
	"html/template"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	nethtml "golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// MessageBodyRenderer はアウトリーチメッセージ本文を表示用HTMLに変換する。
type MessageBodyRenderer interface {
	// Render は本文を安全なHTMLにして返す。
	// HTML要素を含まない本文はエスケープし、改行を<br>にする。
	// HTML要素を含む本文は許可リスト外のタグと属性を除去する。
	Render(body string) template.HTML
}

// messageBodyRenderer はbluemondayのポリシーを保持する。ポリシーはスレッドセーフに共有できる。
type messageBodyRenderer struct {
	policy *bluemonday.Policy
}

// NewMessageBodyRenderer はMessageBodyRendererを生成する。
// ポリシーの内容:
//   - 許可タグ: p, br, ul, ol, li, blockquote, strong, em, b, i, a
//   - aのhref: httpsとmailtoのみ。外部リンクにはtarget="_blank"とnoreferrerを付与
//   - script, style, iframe と on*イベント属性は許可リストにないため除去される
func NewMessageBodyRenderer() *messageBodyRenderer {
	p := bluemonday.NewPolicy()
	p.AllowElements(
		"p", "br", "ul", "ol", "li",
		"blockquote", "strong", "em", "b", "i",
	)

	p.AllowAttrs("href").OnElements("a")
	p.AllowURLSchemes("https", "mailto")
	p.AllowRelativeURLs(false)
	p.RequireParseableURLs(true)
	p.AddTargetBlankToFullyQualifiedLinks(true)
	p.RequireNoReferrerOnLinks(true)

	return &messageBodyRenderer{policy: p}
}

// Render は本文を表示用HTMLにする。
func (r *messageBodyRenderer) Render(body string) template.HTML {
	if !containsHTMLElement(body) {
		escaped := html.EscapeString(body)
		return template.HTML(strings.ReplaceAll(escaped, "\n", "<br>\n"))
	}
	return template.HTML(r.policy.Sanitize(body))
}

// htmlElements はHTMLメールとみなす要素。
// "<anna@acme.se>" のような既知の要素名でない山括弧はテキストとして扱う。
var htmlElements = map[atom.Atom]bool{
	atom.Html: true, atom.Head: true, atom.Body: true, atom.Div: true,
	atom.P: true, atom.Br: true, atom.Span: true, atom.A: true,
	atom.B: true, atom.I: true, atom.U: true, atom.Em: true, atom.Strong: true,
	atom.Ul: true, atom.Ol: true, atom.Li: true, atom.Blockquote: true,
	atom.Table: true, atom.Tbody: true, atom.Tr: true, atom.Td: true,
	atom.H1: true, atom.H2: true, atom.H3: true, atom.Hr: true,
	atom.Img: true, atom.Font: true, atom.Center: true,
	atom.Script: true, atom.Style: true, atom.Iframe: true,
}

// containsHTMLElement は本文にHTML要素のタグが含まれるかどうかを返す。
func containsHTMLElement(s string) bool {
	if !strings.Contains(s, "<") {
		return false
	}
	z := nethtml.NewTokenizer(strings.NewReader(s))
	for {
		switch z.Next() {
		case nethtml.ErrorToken:
			return false
		case nethtml.StartTagToken, nethtml.EndTagToken, nethtml.SelfClosingTagToken:
			if htmlElements[z.Token().DataAtom] {
				return true
			}
		}
	}
}

var _ MessageBodyRenderer = (*messageBodyRenderer)(nil)
