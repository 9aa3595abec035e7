// Package model はドメインモデルを定義する。
package model

import (
	"encoding/json"
	"time"
)

// Lead は営業パイプラインで追跡する見込み顧客を表す。
// 任意項目はnullを区別するためポインタで保持する。
type Lead struct {
	ID              string          `json:"id"`
	CompanyName     string          `json:"company_name"`
	Industry        *string         `json:"industry"`
	Website         *string         `json:"website"`
	Phone           *string         `json:"phone"`
	Email           *string         `json:"email"`
	ContactPerson   *string         `json:"contact_person"`
	ContactTitle    *string         `json:"contact_title"`
	Address         *string         `json:"address"`
	City            *string         `json:"city"`
	PostalCode      *string         `json:"postal_code"`
	Country         *string         `json:"country"`
	EmployeeCount   *int            `json:"employee_count"`
	RevenueEstimate *string         `json:"revenue_estimate"`
	SocialMedia     json.RawMessage `json:"social_media"`
	Notes           *string         `json:"notes"`
	Status          LeadStatus      `json:"status"`
	LeadScore       int             `json:"lead_score"`
	Source          string          `json:"source"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// LeadStatus はパイプライン上のステージを表す。
type LeadStatus string

const (
	LeadStatusNew           LeadStatus = "new"
	LeadStatusContacted     LeadStatus = "contacted"
	LeadStatusOpened        LeadStatus = "opened"
	LeadStatusReplied       LeadStatus = "replied"
	LeadStatusInterested    LeadStatus = "interested"
	LeadStatusDemoBooked    LeadStatus = "demo_booked"
	LeadStatusCustomer      LeadStatus = "customer"
	LeadStatusNotInterested LeadStatus = "not_interested"
	LeadStatusInvalid       LeadStatus = "invalid"
)

// LeadStatuses はパイプラインの表示順に並べた全ステージ。
var LeadStatuses = []LeadStatus{
	LeadStatusNew,
	LeadStatusContacted,
	LeadStatusOpened,
	LeadStatusReplied,
	LeadStatusInterested,
	LeadStatusDemoBooked,
	LeadStatusCustomer,
	LeadStatusNotInterested,
	LeadStatusInvalid,
}

// Valid は既知のステージかどうかを返す。
func (s LeadStatus) Valid() bool {
	for _, v := range LeadStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// Industries はUIのフィルタで選択できる業種。保存時は自由入力。
var Industries = []string{"restaurant", "auto_repair", "retail", "healthcare", "other"}

// LeadFilter はリード一覧の絞り込み条件。空文字列の条件は適用しない。
type LeadFilter struct {
	Status   string
	Industry string
	City     string // 部分一致（大文字小文字を区別しない）
	Search   string // company_name / contact_person / email のいずれかに部分一致
	Limit    int
	Offset   int
}

// LeadPage はリード一覧の1ページ分と、同条件での総件数。
type LeadPage struct {
	Leads  []*Lead `json:"leads"`
	Total  int     `json:"total"`
	Limit  int     `json:"limit"`
	Offset int     `json:"offset"`
}

// NewLead はリード作成時の入力。CompanyName以外は任意。
type NewLead struct {
	CompanyName     string
	Industry        *string
	Website         *string
	Phone           *string
	Email           *string
	ContactPerson   *string
	ContactTitle    *string
	Address         *string
	City            *string
	PostalCode      *string
	Country         string
	EmployeeCount   *int
	RevenueEstimate *string
	SocialMedia     json.RawMessage
	Notes           *string
	LeadScore       int
	Source          string
}

// LeadPatch は許可リストで絞り込んだ更新内容。キーはカラム名。
// 値はnil、string、int、json.RawMessageのいずれか。
type LeadPatch map[string]any

// OutreachMessage はリードに送信したアウトリーチメッセージ。
type OutreachMessage struct {
	ID         string     `json:"id"`
	LeadID     string     `json:"lead_id"`
	CampaignID *string    `json:"campaign_id"`
	Channel    string     `json:"channel"`
	Subject    *string    `json:"subject"`
	Body       string     `json:"body"`
	Status     string     `json:"status"`
	SentAt     *time.Time `json:"sent_at"`
	OpenedAt   *time.Time `json:"opened_at"`
	RepliedAt  *time.Time `json:"replied_at"`
	CreatedAt  time.Time  `json:"created_at"`
}

// InteractionType はインタラクションログの種別。
type InteractionType string

const (
	InteractionNoteAdded     InteractionType = "note_added"
	InteractionStatusChanged InteractionType = "status_changed"
)

// LeadInteraction はリードに対する操作の追記専用ログ。
type LeadInteraction struct {
	ID        string          `json:"id"`
	LeadID    string          `json:"lead_id"`
	Type      InteractionType `json:"type"`
	Content   string          `json:"content"`
	Metadata  json.RawMessage `json:"metadata"`
	CreatedBy *string         `json:"created_by"`
	CreatedAt time.Time       `json:"created_at"`
}

// LeadDetail はリード単体と、その子レコード（作成日時の降順）。
type LeadDetail struct {
	Lead         *Lead              `json:"lead"`
	Messages     []*OutreachMessage `json:"messages"`
	Interactions []*LeadInteraction `json:"interactions"`
}

// PipelineStat はステージごとのリード件数。
type PipelineStat struct {
	Status LeadStatus `json:"status"`
	Count  int        `json:"count"`
}

// Campaign はアウトリーチキャンペーンの集計値。
type Campaign struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Enabled      bool   `json:"enabled"`
	TotalSent    int    `json:"total_sent"`
	TotalOpened  int    `json:"total_opened"`
	TotalReplied int    `json:"total_replied"`
}

// OpenRate は開封率（%）を四捨五入して返す。送信0件なら0。
func (c *Campaign) OpenRate() int {
	if c.TotalSent <= 0 {
		return 0
	}
	return int(float64(c.TotalOpened)/float64(c.TotalSent)*100 + 0.5)
}
