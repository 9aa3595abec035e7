// Package security はアプリケーションのセキュリティ機能を提供する。
//
// TextSanitizer はリードの自由入力項目を保存用に正規化する。
// 表示はhtml/templateとクライアント側のtextContentでエスケープするため、
// "<" や "&" を含む値も入力のまま保存する。
//
// MessageBodyRenderer はアウトリーチメッセージ本文を表示用のHTMLにする。
// HTMLメールの本文だけをbluemondayの許可リストで無害化する。
package security

import (
	"strings"
	"unicode"
)

// TextSanitizer はプレーンテキスト正規化のインターフェース。
type TextSanitizer interface {
	// Sanitize は制御文字を除き、前後の空白を取り除いたテキストを返す。
	// 改行とタブは残す。不正なUTF-8はU+FFFDに置き換わる。
	// Sanitize(Sanitize(s)) == Sanitize(s) が成り立つ。
	Sanitize(s string) string
}

// textSanitizer はTextSanitizerの実装。状態を持たない。
type textSanitizer struct{}

// NewTextSanitizer はTextSanitizerを生成する。
func NewTextSanitizer() *textSanitizer {
	return &textSanitizer{}
}

// Sanitize は制御文字を除去して前後の空白を取り除く。
func (s *textSanitizer) Sanitize(in string) string {
	if in == "" {
		return ""
	}
	return strings.TrimSpace(strings.Map(keepPrintable, in))
}

// keepPrintable はPostgreSQLのtext型が受け付けない制御文字を落とす。
func keepPrintable(r rune) rune {
	switch r {
	case '\n', '\r', '\t':
		return r
	}
	if unicode.IsControl(r) {
		return -1
	}
	return r
}

var _ TextSanitizer = (*textSanitizer)(nil)
