// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"

	"github.com/eryai/salesdash/internal/model"
)

// LeadRepository はリードデータの永続化インターフェース。
type LeadRepository interface {
	// List はフィルタ条件に一致するリードをcreated_at降順で取得する。
	// 2つ目の戻り値は同じ条件での総件数（limit/offset適用前）。
	List(ctx context.Context, filter model.LeadFilter) ([]*model.Lead, int, error)

	// FindByID は指定IDのリードを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Lead, error)

	// Create はリードを作成し、DBの既定値が反映された行を返す。
	Create(ctx context.Context, lead *model.NewLead) (*model.Lead, error)

	// Update は許可リストのカラムだけを更新する。該当行がない場合はnilを返す。
	Update(ctx context.Context, id string, patch model.LeadPatch) (*model.Lead, error)

	// Delete は指定IDのリードを削除する。
	// outreach_messages、lead_interactionsはCASCADE削除される。
	Delete(ctx context.Context, id string) error
}

// OutreachMessageRepository はアウトリーチメッセージの読み取りインターフェース。
type OutreachMessageRepository interface {
	// ListByLead はリードのメッセージをcreated_at降順で取得する。
	ListByLead(ctx context.Context, leadID string) ([]*model.OutreachMessage, error)
}

// InteractionRepository はインタラクションログの永続化インターフェース。
type InteractionRepository interface {
	// Create はインタラクションを追記する。IDとCreatedAtはDBで採番される。
	Create(ctx context.Context, interaction *model.LeadInteraction) error

	// ListByLead はリードのインタラクションをcreated_at降順で取得する。
	ListByLead(ctx context.Context, leadID string) ([]*model.LeadInteraction, error)
}

// CampaignRepository はアウトリーチキャンペーンの読み取りインターフェース。
type CampaignRepository interface {
	// ListEnabled は有効なキャンペーンを取得する。
	ListEnabled(ctx context.Context) ([]*model.Campaign, error)
}

// PipelineStatsRepository はパイプライン集計の読み取りインターフェース。
type PipelineStatsRepository interface {
	// PipelineStats はステージごとのリード件数を取得する。
	PipelineStats(ctx context.Context) ([]model.PipelineStat, error)
}
