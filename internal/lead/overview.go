package lead

import (
	"context"
	"log/slog"

	"github.com/eryai/salesdash/internal/model"
)

// StatCards はダッシュボード上部の集計カード。
type StatCards struct {
	Total     int // 全リード数
	Contacted int // contacted + opened
	Engaged   int // replied + interested
	Customers int // customer
}

// Overview はダッシュボードの初期表示に必要なデータ。
type Overview struct {
	Page      *model.LeadPage
	Stats     []model.PipelineStat
	Campaigns []*model.Campaign
	Cards     StatCards
}

// Overview はダッシュボードの初期データを集める。
// 個々の取得失敗はログに残し、空の一覧として扱う。
func (s *Service) Overview(ctx context.Context) *Overview {
	ov := &Overview{
		Page:      &model.LeadPage{Leads: []*model.Lead{}, Limit: DefaultLimit},
		Stats:     []model.PipelineStat{},
		Campaigns: []*model.Campaign{},
	}

	if page, err := s.List(ctx, model.LeadFilter{Limit: DefaultLimit}); err != nil {
		slog.Error("failed to load leads for dashboard", slog.String("error", err.Error()))
	} else {
		ov.Page = page
	}

	if stats, err := s.PipelineStats(ctx); err != nil {
		slog.Error("failed to load pipeline stats for dashboard", slog.String("error", err.Error()))
	} else {
		ov.Stats = stats
	}

	if campaigns, err := s.Campaigns(ctx); err != nil {
		slog.Error("failed to load campaigns for dashboard", slog.String("error", err.Error()))
	} else {
		ov.Campaigns = campaigns
	}

	ov.Cards = BuildStatCards(ov.Page.Total, ov.Stats)
	return ov
}

// BuildStatCards はステージ別件数から集計カードの値を計算する。
func BuildStatCards(total int, stats []model.PipelineStat) StatCards {
	count := make(map[model.LeadStatus]int, len(stats))
	for _, st := range stats {
		count[st.Status] += st.Count
	}
	return StatCards{
		Total:     total,
		Contacted: count[model.LeadStatusContacted] + count[model.LeadStatusOpened],
		Engaged:   count[model.LeadStatusReplied] + count[model.LeadStatusInterested],
		Customers: count[model.LeadStatusCustomer],
	}
}
