// Package lead はリード管理のドメインロジックを提供する。
package lead

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/eryai/salesdash/internal/cache"
	"github.com/eryai/salesdash/internal/events"
	"github.com/eryai/salesdash/internal/model"
	"github.com/eryai/salesdash/internal/repository"
	"github.com/eryai/salesdash/internal/security"
)

// ページングの既定値と上限。
const (
	DefaultLimit = 50
	MaxLimit     = 1000
)

// Recorder はリード操作のメトリクス記録先。
type Recorder interface {
	RecordLeadMutation(operation string)
	RecordStatsCache(hit bool)
	RecordEventPublishFailure(eventType string)
}

type nopRecorder struct{}

func (nopRecorder) RecordLeadMutation(string)        {}
func (nopRecorder) RecordStatsCache(bool)            {}
func (nopRecorder) RecordEventPublishFailure(string) {}

// Deps はServiceの依存。Cache、Publisher、Sanitizer、Recorderは省略できる。
type Deps struct {
	Leads        repository.LeadRepository
	Messages     repository.OutreachMessageRepository
	Interactions repository.InteractionRepository
	Campaigns    repository.CampaignRepository
	Stats        repository.PipelineStatsRepository
	Cache        cache.StatsCache
	Publisher    events.Publisher
	Sanitizer    security.TextSanitizer
	Recorder     Recorder
}

// Service はリード管理のサービス層。
// 一覧、作成、詳細、更新、削除と、ダッシュボード用の集計を提供する。
type Service struct {
	leads        repository.LeadRepository
	messages     repository.OutreachMessageRepository
	interactions repository.InteractionRepository
	campaigns    repository.CampaignRepository
	stats        repository.PipelineStatsRepository
	cache        cache.StatsCache
	publisher    events.Publisher
	sanitizer    security.TextSanitizer
	recorder     Recorder
	now          func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(d Deps) *Service {
	s := &Service{
		leads:        d.Leads,
		messages:     d.Messages,
		interactions: d.Interactions,
		campaigns:    d.Campaigns,
		stats:        d.Stats,
		cache:        d.Cache,
		publisher:    d.Publisher,
		sanitizer:    d.Sanitizer,
		recorder:     d.Recorder,
		now:          time.Now,
	}
	if s.cache == nil {
		s.cache = cache.NopStatsCache{}
	}
	if s.publisher == nil {
		s.publisher = events.NopPublisher{}
	}
	if s.sanitizer == nil {
		s.sanitizer = security.NewTextSanitizer()
	}
	if s.recorder == nil {
		s.recorder = nopRecorder{}
	}
	return s
}

// List はフィルタ条件に一致するリードを1ページ分返す。
// Limitが0以下なら既定値、上限を超える場合はMaxLimitに丸める。
func (s *Service) List(ctx context.Context, filter model.LeadFilter) (*model.LeadPage, error) {
	if filter.Offset < 0 {
		return nil, model.NewInvalidPaginationError("offset")
	}
	if filter.Limit < 0 {
		return nil, model.NewInvalidPaginationError("limit")
	}
	if filter.Limit == 0 {
		filter.Limit = DefaultLimit
	}
	if filter.Limit > MaxLimit {
		filter.Limit = MaxLimit
	}

	leads, total, err := s.leads.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("リード一覧の取得に失敗しました: %w", err)
	}
	if leads == nil {
		leads = []*model.Lead{}
	}

	return &model.LeadPage{
		Leads:  leads,
		Total:  total,
		Limit:  filter.Limit,
		Offset: filter.Offset,
	}, nil
}

// Create はリードを作成し、作成ログをインタラクションに追記する。
func (s *Service) Create(ctx context.Context, userID string, in *CreateInput) (*model.Lead, error) {
	nl, err := in.toNewLead(s.sanitizer)
	if err != nil {
		return nil, err
	}

	lead, err := s.leads.Create(ctx, nl)
	if err != nil {
		return nil, fmt.Errorf("リードの作成に失敗しました: %w", err)
	}

	meta, _ := json.Marshal(map[string]string{"source": lead.Source})
	s.logInteraction(ctx, &model.LeadInteraction{
		LeadID:   lead.ID,
		Type:     model.InteractionNoteAdded,
		Content:  "Lead created: " + lead.CompanyName,
		Metadata: meta,
	})

	s.afterMutation(ctx, "create", events.LeadEvent{
		Type:   events.LeadCreated,
		LeadID: lead.ID,
		UserID: userID,
		Status: string(lead.Status),
	})

	slog.Info("lead created",
		slog.String("lead_id", lead.ID),
		slog.String("user_id", userID),
		slog.String("source", lead.Source),
	)
	return lead, nil
}

// Get はリードと、そのメッセージ・インタラクションを返す。
// 子レコードの取得失敗はログに残し、空の一覧として扱う。
func (s *Service) Get(ctx context.Context, id string) (*model.LeadDetail, error) {
	if !validID(id) {
		return nil, model.NewLeadNotFoundError()
	}

	lead, err := s.leads.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("リードの取得に失敗しました: %w", err)
	}
	if lead == nil {
		return nil, model.NewLeadNotFoundError()
	}

	detail := &model.LeadDetail{
		Lead:         lead,
		Messages:     []*model.OutreachMessage{},
		Interactions: []*model.LeadInteraction{},
	}

	messages, err := s.messages.ListByLead(ctx, id)
	if err != nil {
		slog.Error("failed to list outreach messages",
			slog.String("lead_id", id),
			slog.String("error", err.Error()),
		)
	} else if messages != nil {
		detail.Messages = messages
	}

	interactions, err := s.interactions.ListByLead(ctx, id)
	if err != nil {
		slog.Error("failed to list lead interactions",
			slog.String("lead_id", id),
			slog.String("error", err.Error()),
		)
	} else if interactions != nil {
		detail.Interactions = interactions
	}

	return detail, nil
}

// Update は許可リスト内のフィールドだけを更新する。
// statusが含まれる場合はステータス変更をインタラクションに追記する。
func (s *Service) Update(ctx context.Context, userID, id string, body map[string]json.RawMessage) (*model.Lead, error) {
	patch, err := BuildPatch(body, s.sanitizer)
	if err != nil {
		return nil, err
	}
	if !validID(id) {
		return nil, model.NewLeadNotFoundError()
	}

	lead, err := s.leads.Update(ctx, id, patch)
	if err != nil {
		return nil, fmt.Errorf("リードの更新に失敗しました: %w", err)
	}
	if lead == nil {
		return nil, model.NewLeadNotFoundError()
	}

	event := events.LeadEvent{
		Type:   events.LeadUpdated,
		LeadID: id,
		UserID: userID,
		Status: string(lead.Status),
	}

	if status, ok := patch["status"].(string); ok && status != "" {
		meta, _ := json.Marshal(map[string]string{"new_status": status})
		in := &model.LeadInteraction{
			LeadID:   id,
			Type:     model.InteractionStatusChanged,
			Content:  "Status changed to: " + status,
			Metadata: meta,
		}
		if userID != "" {
			uid := userID
			in.CreatedBy = &uid
		}
		s.logInteraction(ctx, in)
		event.Type = events.LeadStatusChanged
	}

	s.afterMutation(ctx, "update", event)
	return lead, nil
}

// Delete はリードを削除する。存在しないIDでも成功として扱う。
// UUIDとして不正なIDは該当行がありえないため、ストアを呼ばずに成功を返す。
func (s *Service) Delete(ctx context.Context, userID, id string) error {
	if !validID(id) {
		return nil
	}
	if err := s.leads.Delete(ctx, id); err != nil {
		return fmt.Errorf("リードの削除に失敗しました: %w", err)
	}

	s.afterMutation(ctx, "delete", events.LeadEvent{
		Type:   events.LeadDeleted,
		LeadID: id,
		UserID: userID,
	})

	slog.Info("lead deleted",
		slog.String("lead_id", id),
		slog.String("user_id", userID),
	)
	return nil
}

// PipelineStats はステージごとのリード件数を返す。キャッシュがあればそれを使う。
func (s *Service) PipelineStats(ctx context.Context) ([]model.PipelineStat, error) {
	cached, ok, err := s.cache.GetPipelineStats(ctx)
	if err != nil {
		slog.Warn("pipeline stats cache unavailable", slog.String("error", err.Error()))
	}
	if ok {
		s.recorder.RecordStatsCache(true)
		return cached, nil
	}
	s.recorder.RecordStatsCache(false)

	stats, err := s.stats.PipelineStats(ctx)
	if err != nil {
		return nil, fmt.Errorf("パイプライン集計の取得に失敗しました: %w", err)
	}
	if stats == nil {
		stats = []model.PipelineStat{}
	}

	if err := s.cache.SetPipelineStats(ctx, stats); err != nil {
		slog.Warn("failed to cache pipeline stats", slog.String("error", err.Error()))
	}
	return stats, nil
}

// Campaigns は有効なアウトリーチキャンペーンを返す。
func (s *Service) Campaigns(ctx context.Context) ([]*model.Campaign, error) {
	campaigns, err := s.campaigns.ListEnabled(ctx)
	if err != nil {
		return nil, fmt.Errorf("キャンペーンの取得に失敗しました: %w", err)
	}
	if campaigns == nil {
		campaigns = []*model.Campaign{}
	}
	return campaigns, nil
}

// logInteraction はインタラクションを追記する。失敗はログに残すだけで呼び出し元には返さない。
func (s *Service) logInteraction(ctx context.Context, in *model.LeadInteraction) {
	if err := s.interactions.Create(ctx, in); err != nil {
		slog.Error("failed to record lead interaction",
			slog.String("lead_id", in.LeadID),
			slog.String("type", string(in.Type)),
			slog.String("error", err.Error()),
		)
	}
}

// afterMutation は変更後の共通処理。集計キャッシュを破棄し、イベントを発行する。
func (s *Service) afterMutation(ctx context.Context, op string, event events.LeadEvent) {
	s.recorder.RecordLeadMutation(op)

	if err := s.cache.Invalidate(ctx); err != nil {
		slog.Warn("failed to invalidate pipeline stats cache", slog.String("error", err.Error()))
	}

	event.OccurredAt = s.now().UTC()
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.recorder.RecordEventPublishFailure(string(event.Type))
		slog.Error("failed to publish lead event",
			slog.String("type", string(event.Type)),
			slog.String("lead_id", event.LeadID),
			slog.String("error", err.Error()),
		)
	}
}

func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
