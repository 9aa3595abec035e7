package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/eryai/salesdash/internal/model"
)

// PostgresOutreachRepo はアウトリーチメッセージとキャンペーンを読み取るリポジトリ。
// 送信は別システムが行うため、このリポジトリは読み取り専用。
type PostgresOutreachRepo struct {
	db *sql.DB
}

// NewPostgresOutreachRepo はPostgresOutreachRepoを生成する。
func NewPostgresOutreachRepo(db *sql.DB) *PostgresOutreachRepo {
	return &PostgresOutreachRepo{db: db}
}

// ListByLead はリードのメッセージをcreated_at降順で取得する。
func (r *PostgresOutreachRepo) ListByLead(ctx context.Context, leadID string) ([]*model.OutreachMessage, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, lead_id, campaign_id, channel, subject, body, status,
		        sent_at, opened_at, replied_at, created_at
		 FROM outreach_messages
		 WHERE lead_id = $1
		 ORDER BY created_at DESC`,
		leadID,
	)
	if err != nil {
		return nil, fmt.Errorf("メッセージ一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	messages := []*model.OutreachMessage{}
	for rows.Next() {
		m := &model.OutreachMessage{}
		var campaignID, subject sql.NullString
		var sentAt, openedAt, repliedAt sql.NullTime
		if err := rows.Scan(
			&m.ID, &m.LeadID, &campaignID, &m.Channel, &subject, &m.Body, &m.Status,
			&sentAt, &openedAt, &repliedAt, &m.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("メッセージ行の読み取りに失敗しました: %w", err)
		}
		m.CampaignID = nullStringPtr(campaignID)
		m.Subject = nullStringPtr(subject)
		m.SentAt = nullTimePtr(sentAt)
		m.OpenedAt = nullTimePtr(openedAt)
		m.RepliedAt = nullTimePtr(repliedAt)
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("メッセージ一覧の走査に失敗しました: %w", err)
	}

	return messages, nil
}

// ListEnabled は有効なキャンペーンを作成日時の降順で取得する。
func (r *PostgresOutreachRepo) ListEnabled(ctx context.Context) ([]*model.Campaign, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, enabled, total_sent, total_opened, total_replied
		 FROM outreach_campaigns
		 WHERE enabled = true
		 ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("キャンペーン一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	campaigns := []*model.Campaign{}
	for rows.Next() {
		c := &model.Campaign{}
		if err := rows.Scan(&c.ID, &c.Name, &c.Enabled, &c.TotalSent, &c.TotalOpened, &c.TotalReplied); err != nil {
			return nil, fmt.Errorf("キャンペーン行の読み取りに失敗しました: %w", err)
		}
		campaigns = append(campaigns, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("キャンペーン一覧の走査に失敗しました: %w", err)
	}

	return campaigns, nil
}

// PipelineStats はget_lead_pipeline_stats()でステージごとの件数を取得する。
func (r *PostgresOutreachRepo) PipelineStats(ctx context.Context) ([]model.PipelineStat, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT status::text, count FROM get_lead_pipeline_stats()`,
	)
	if err != nil {
		return nil, fmt.Errorf("パイプライン集計の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	stats := []model.PipelineStat{}
	for rows.Next() {
		var s model.PipelineStat
		var status string
		if err := rows.Scan(&status, &s.Count); err != nil {
			return nil, fmt.Errorf("パイプライン集計行の読み取りに失敗しました: %w", err)
		}
		s.Status = model.LeadStatus(status)
		stats = append(stats, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("パイプライン集計の走査に失敗しました: %w", err)
	}

	return stats, nil
}

// compile-time interface check
var _ OutreachMessageRepository = (*PostgresOutreachRepo)(nil)
var _ CampaignRepository = (*PostgresOutreachRepo)(nil)
var _ PipelineStatsRepository = (*PostgresOutreachRepo)(nil)
