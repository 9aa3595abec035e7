package model

import "time"

// User は外部IDサービスが管理するログインユーザー。
// このシステムはリクエストごとに読み取るだけで保存しない。
type User struct {
	ID      string
	Email   string
	Factors []Factor
}

// FactorType はMFA要素の種別。
type FactorType string

// FactorTypeTOTP は時刻ベースのワンタイムパスワード要素。
const FactorTypeTOTP FactorType = "totp"

// FactorStatus はMFA要素の登録状態。
type FactorStatus string

const (
	FactorStatusVerified   FactorStatus = "verified"
	FactorStatusUnverified FactorStatus = "unverified"
)

// Factor はユーザーに登録されたMFA要素。
type Factor struct {
	ID           string       `json:"id"`
	FriendlyName string       `json:"friendly_name"`
	FactorType   FactorType   `json:"factor_type"`
	Status       FactorStatus `json:"status"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// FactorList はユーザーのMFA要素一覧。
// TOTPには検証済みのTOTP要素のみを含める。
type FactorList struct {
	All  []Factor
	TOTP []Factor
}

// NewFactorList は要素一覧から検証済みTOTPを抜き出したFactorListを返す。
func NewFactorList(factors []Factor) *FactorList {
	list := &FactorList{All: factors}
	for _, f := range factors {
		if f.FactorType == FactorTypeTOTP && f.Status == FactorStatusVerified {
			list.TOTP = append(list.TOTP, f)
		}
	}
	return list
}

// AAL は認証保証レベル（Authenticator Assurance Level）。
type AAL string

const (
	// AAL1 はパスワード等の単一要素のみで確立されたセッション。
	AAL1 AAL = "aal1"
	// AAL2 は第2要素の検証まで完了したセッション。
	AAL2 AAL = "aal2"
)

// AssuranceLevel はセッションの現在の保証レベルと、到達可能な次のレベル。
type AssuranceLevel struct {
	Current AAL
	Next    AAL
}

// AuthSession はIDサービスが発行したセッショントークン。
type AuthSession struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    int
	ExpiresAt    time.Time
	User         *User
}

// TOTPEnrollment は登録開始したTOTP要素の情報。
// Secretは認証アプリへの手入力用、URIはQRコード生成用。
type TOTPEnrollment struct {
	FactorID string
	Secret   string
	URI      string
	QRCode   string
}
