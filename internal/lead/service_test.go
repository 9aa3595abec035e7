package lead

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eryai/salesdash/internal/cache"
	"github.com/eryai/salesdash/internal/events"
	"github.com/eryai/salesdash/internal/model"
)

// --- モック定義 ---

type mockLeadRepo struct {
	listFn   func(ctx context.Context, filter model.LeadFilter) ([]*model.Lead, int, error)
	findFn   func(ctx context.Context, id string) (*model.Lead, error)
	createFn func(ctx context.Context, in *model.NewLead) (*model.Lead, error)
	updateFn func(ctx context.Context, id string, patch model.LeadPatch) (*model.Lead, error)
	deleteFn func(ctx context.Context, id string) error
}

func (m *mockLeadRepo) List(ctx context.Context, filter model.LeadFilter) ([]*model.Lead, int, error) {
	if m.listFn != nil {
		return m.listFn(ctx, filter)
	}
	return nil, 0, nil
}

func (m *mockLeadRepo) FindByID(ctx context.Context, id string) (*model.Lead, error) {
	if m.findFn != nil {
		return m.findFn(ctx, id)
	}
	return nil, nil
}

func (m *mockLeadRepo) Create(ctx context.Context, in *model.NewLead) (*model.Lead, error) {
	if m.createFn != nil {
		return m.createFn(ctx, in)
	}
	return &model.Lead{
		ID:          testLeadID,
		CompanyName: in.CompanyName,
		Country:     &in.Country,
		Status:      model.LeadStatusNew,
		LeadScore:   in.LeadScore,
		Source:      in.Source,
	}, nil
}

func (m *mockLeadRepo) Update(ctx context.Context, id string, patch model.LeadPatch) (*model.Lead, error) {
	if m.updateFn != nil {
		return m.updateFn(ctx, id, patch)
	}
	return nil, nil
}

func (m *mockLeadRepo) Delete(ctx context.Context, id string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, id)
	}
	return nil
}

type mockMessageRepo struct {
	listFn func(ctx context.Context, leadID string) ([]*model.OutreachMessage, error)
}

func (m *mockMessageRepo) ListByLead(ctx context.Context, leadID string) ([]*model.OutreachMessage, error) {
	if m.listFn != nil {
		return m.listFn(ctx, leadID)
	}
	return nil, nil
}

type mockInteractionRepo struct {
	created   []*model.LeadInteraction
	createErr error
	listFn    func(ctx context.Context, leadID string) ([]*model.LeadInteraction, error)
}

func (m *mockInteractionRepo) Create(_ context.Context, in *model.LeadInteraction) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.created = append(m.created, in)
	return nil
}

func (m *mockInteractionRepo) ListByLead(ctx context.Context, leadID string) ([]*model.LeadInteraction, error) {
	if m.listFn != nil {
		return m.listFn(ctx, leadID)
	}
	return nil, nil
}

type mockCampaignRepo struct {
	campaigns []*model.Campaign
	err       error
}

func (m *mockCampaignRepo) ListEnabled(context.Context) ([]*model.Campaign, error) {
	return m.campaigns, m.err
}

type mockStatsRepo struct {
	stats []model.PipelineStat
	err   error
	calls int
}

func (m *mockStatsRepo) PipelineStats(context.Context) ([]model.PipelineStat, error) {
	m.calls++
	return m.stats, m.err
}

type mockPublisher struct {
	published []events.LeadEvent
	err       error
}

func (m *mockPublisher) Publish(_ context.Context, e events.LeadEvent) error {
	if m.err != nil {
		return m.err
	}
	m.published = append(m.published, e)
	return nil
}

func (m *mockPublisher) Close() error { return nil }

type mockRecorder struct {
	mutations   []string
	hits        int
	misses      int
	publishFail []string
}

func (m *mockRecorder) RecordLeadMutation(op string) { m.mutations = append(m.mutations, op) }

func (m *mockRecorder) RecordStatsCache(hit bool) {
	if hit {
		m.hits++
	} else {
		m.misses++
	}
}

func (m *mockRecorder) RecordEventPublishFailure(t string) {
	m.publishFail = append(m.publishFail, t)
}

const (
	testLeadID = "7b1f3c1e-2a0b-4f7e-9d55-0c8f1a2b3c4d"
	testUserID = "a0a0a0a0-1111-2222-3333-444455556666"
)

type fixture struct {
	svc          *Service
	leads        *mockLeadRepo
	messages     *mockMessageRepo
	interactions *mockInteractionRepo
	campaigns    *mockCampaignRepo
	stats        *mockStatsRepo
	publisher    *mockPublisher
	recorder     *mockRecorder
}

func newFixture(t *testing.T, c cache.StatsCache) *fixture {
	t.Helper()
	f := &fixture{
		leads:        &mockLeadRepo{},
		messages:     &mockMessageRepo{},
		interactions: &mockInteractionRepo{},
		campaigns:    &mockCampaignRepo{},
		stats:        &mockStatsRepo{},
		publisher:    &mockPublisher{},
		recorder:     &mockRecorder{},
	}
	f.svc = NewService(Deps{
		Leads:        f.leads,
		Messages:     f.messages,
		Interactions: f.interactions,
		Campaigns:    f.campaigns,
		Stats:        f.stats,
		Cache:        c,
		Publisher:    f.publisher,
		Recorder:     f.recorder,
	})
	f.svc.now = func() time.Time { return time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC) }
	return f
}

func ptr[T any](v T) *T { return &v }

// --- List ---

func TestService_List_AppliesDefaultsAndCap(t *testing.T) {
	tests := []struct {
		name      string
		limit     int
		wantLimit int
	}{
		{"zero uses default", 0, DefaultLimit},
		{"within range", 20, 20},
		{"over cap", 5000, MaxLimit},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, nil)
			var got model.LeadFilter
			f.leads.listFn = func(_ context.Context, filter model.LeadFilter) ([]*model.Lead, int, error) {
				got = filter
				return []*model.Lead{{ID: testLeadID}}, 120, nil
			}

			page, err := f.svc.List(context.Background(), model.LeadFilter{Limit: tt.limit, Offset: 10, City: "Stock"})
			require.NoError(t, err)
			assert.Equal(t, tt.wantLimit, got.Limit)
			assert.Equal(t, "Stock", got.City)
			assert.Equal(t, tt.wantLimit, page.Limit)
			assert.Equal(t, 10, page.Offset)
			assert.Equal(t, 120, page.Total)
			assert.Len(t, page.Leads, 1)
		})
	}
}

func TestService_List_NegativePagination(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.svc.List(context.Background(), model.LeadFilter{Offset: -1})
	var apiErr *model.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, model.ErrCodeInvalidPagination, apiErr.Code)

	_, err = f.svc.List(context.Background(), model.LeadFilter{Limit: -5})
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, model.ErrCodeInvalidPagination, apiErr.Code)
}

func TestService_List_EmptyResultIsNotNil(t *testing.T) {
	f := newFixture(t, nil)

	page, err := f.svc.List(context.Background(), model.LeadFilter{})
	require.NoError(t, err)
	assert.NotNil(t, page.Leads)
	assert.Empty(t, page.Leads)
}

func TestService_List_StoreError(t *testing.T) {
	f := newFixture(t, nil)
	f.leads.listFn = func(context.Context, model.LeadFilter) ([]*model.Lead, int, error) {
		return nil, 0, errors.New("connection refused")
	}

	_, err := f.svc.List(context.Background(), model.LeadFilter{})
	require.Error(t, err)
	var apiErr *model.APIError
	assert.False(t, errors.As(err, &apiErr))
}

// --- Create ---

func TestService_Create_AppliesDefaultsAndLogsInteraction(t *testing.T) {
	f := newFixture(t, nil)
	var stored *model.NewLead
	f.leads.createFn = func(_ context.Context, in *model.NewLead) (*model.Lead, error) {
		stored = in
		return &model.Lead{ID: testLeadID, CompanyName: in.CompanyName, Status: model.LeadStatusNew, Source: in.Source}, nil
	}

	lead, err := f.svc.Create(context.Background(), testUserID, &CreateInput{
		CompanyName: "Pizzeria Roma",
		City:        ptr("Göteborg"),
		Phone:       ptr(""),
	})
	require.NoError(t, err)
	assert.Equal(t, testLeadID, lead.ID)

	require.NotNil(t, stored)
	assert.Equal(t, "Sweden", stored.Country)
	assert.Equal(t, "manual", stored.Source)
	assert.Equal(t, 0, stored.LeadScore)
	assert.Nil(t, stored.Phone, "empty text becomes null")
	assert.Equal(t, "Göteborg", *stored.City)

	require.Len(t, f.interactions.created, 1)
	in := f.interactions.created[0]
	assert.Equal(t, model.InteractionNoteAdded, in.Type)
	assert.Equal(t, "Lead created: Pizzeria Roma", in.Content)
	assert.JSONEq(t, `{"source":"manual"}`, string(in.Metadata))
	assert.Equal(t, testLeadID, in.LeadID)

	require.Len(t, f.publisher.published, 1)
	ev := f.publisher.published[0]
	assert.Equal(t, events.LeadCreated, ev.Type)
	assert.Equal(t, testUserID, ev.UserID)
	assert.Equal(t, "new", ev.Status)
	assert.False(t, ev.OccurredAt.IsZero())
	assert.Equal(t, []string{"create"}, f.recorder.mutations)
}

func TestService_Create_StoresTextAsGiven(t *testing.T) {
	f := newFixture(t, nil)
	var stored *model.NewLead
	f.leads.createFn = func(_ context.Context, in *model.NewLead) (*model.Lead, error) {
		stored = in
		return &model.Lead{ID: testLeadID, CompanyName: in.CompanyName}, nil
	}

	_, err := f.svc.Create(context.Background(), testUserID, &CreateInput{
		CompanyName:   " R<D Konsult AB ",
		ContactPerson: ptr("Anna <anna@acme.se>"),
		Notes:         ptr("Ring\x00 <b>måndag</b> & fråga om R&D"),
	})
	require.NoError(t, err)
	assert.Equal(t, "R<D Konsult AB", stored.CompanyName)
	require.NotNil(t, stored.ContactPerson)
	assert.Equal(t, "Anna <anna@acme.se>", *stored.ContactPerson)
	require.NotNil(t, stored.Notes)
	assert.Equal(t, "Ring <b>måndag</b> & fråga om R&D", *stored.Notes)
}

func TestService_Create_CompanyNameRequired(t *testing.T) {
	for _, name := range []string{"", "   ", "\x00\t"} {
		f := newFixture(t, nil)
		called := false
		f.leads.createFn = func(context.Context, *model.NewLead) (*model.Lead, error) {
			called = true
			return nil, nil
		}

		_, err := f.svc.Create(context.Background(), testUserID, &CreateInput{CompanyName: name})
		var apiErr *model.APIError
		require.ErrorAs(t, err, &apiErr, "name %q", name)
		assert.Equal(t, model.ErrCodeCompanyNameRequired, apiErr.Code)
		assert.Equal(t, "company_name is required", apiErr.Message)
		assert.False(t, called)
		assert.Empty(t, f.publisher.published)
	}
}

func TestService_Create_InteractionFailureDoesNotFail(t *testing.T) {
	f := newFixture(t, nil)
	f.interactions.createErr = errors.New("insert failed")

	lead, err := f.svc.Create(context.Background(), testUserID, &CreateInput{CompanyName: "Verkstad AB"})
	require.NoError(t, err)
	assert.Equal(t, "Verkstad AB", lead.CompanyName)
}

func TestService_Create_PublishFailureIsRecorded(t *testing.T) {
	f := newFixture(t, nil)
	f.publisher.err = errors.New("channel closed")

	_, err := f.svc.Create(context.Background(), testUserID, &CreateInput{CompanyName: "Verkstad AB"})
	require.NoError(t, err)
	assert.Equal(t, []string{"lead.created"}, f.recorder.publishFail)
}

// --- Get ---

func TestService_Get_ReturnsLeadWithChildren(t *testing.T) {
	f := newFixture(t, nil)
	f.leads.findFn = func(_ context.Context, id string) (*model.Lead, error) {
		return &model.Lead{ID: id, CompanyName: "Salong Linnea"}, nil
	}
	f.messages.listFn = func(_ context.Context, leadID string) ([]*model.OutreachMessage, error) {
		return []*model.OutreachMessage{{ID: "m1", LeadID: leadID}}, nil
	}
	f.interactions.listFn = func(_ context.Context, leadID string) ([]*model.LeadInteraction, error) {
		return []*model.LeadInteraction{{ID: "i1", LeadID: leadID}, {ID: "i2", LeadID: leadID}}, nil
	}

	detail, err := f.svc.Get(context.Background(), testLeadID)
	require.NoError(t, err)
	assert.Equal(t, "Salong Linnea", detail.Lead.CompanyName)
	assert.Len(t, detail.Messages, 1)
	assert.Len(t, detail.Interactions, 2)
}

func TestService_Get_ChildErrorsYieldEmpty(t *testing.T) {
	f := newFixture(t, nil)
	f.leads.findFn = func(_ context.Context, id string) (*model.Lead, error) {
		return &model.Lead{ID: id}, nil
	}
	f.messages.listFn = func(context.Context, string) ([]*model.OutreachMessage, error) {
		return nil, errors.New("timeout")
	}
	f.interactions.listFn = func(context.Context, string) ([]*model.LeadInteraction, error) {
		return nil, errors.New("timeout")
	}

	detail, err := f.svc.Get(context.Background(), testLeadID)
	require.NoError(t, err)
	assert.NotNil(t, detail.Messages)
	assert.Empty(t, detail.Messages)
	assert.NotNil(t, detail.Interactions)
	assert.Empty(t, detail.Interactions)
}

func TestService_Get_NotFound(t *testing.T) {
	f := newFixture(t, nil)
	queried := false
	f.leads.findFn = func(context.Context, string) (*model.Lead, error) {
		queried = true
		return nil, nil
	}

	_, err := f.svc.Get(context.Background(), testLeadID)
	var apiErr *model.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, model.ErrCodeLeadNotFound, apiErr.Code)
	assert.True(t, queried)

	// 不正な形式のIDはDBに問い合わせずに404
	queried = false
	_, err = f.svc.Get(context.Background(), "not-a-uuid")
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, model.ErrCodeLeadNotFound, apiErr.Code)
	assert.False(t, queried)
}

// --- Update ---

func body(t *testing.T, js string) map[string]json.RawMessage {
	t.Helper()
	var m map[string]json.RawMessage
	require.NoError(t, json.Unmarshal([]byte(js), &m))
	return m
}

func TestService_Update_StatusChangeLogsInteraction(t *testing.T) {
	f := newFixture(t, nil)
	var gotPatch model.LeadPatch
	f.leads.updateFn = func(_ context.Context, id string, patch model.LeadPatch) (*model.Lead, error) {
		gotPatch = patch
		return &model.Lead{ID: id, Status: model.LeadStatusContacted}, nil
	}

	lead, err := f.svc.Update(context.Background(), testUserID, testLeadID, body(t, `{"status":"contacted","id":"ignored"}`))
	require.NoError(t, err)
	assert.Equal(t, model.LeadStatusContacted, lead.Status)
	assert.Equal(t, model.LeadPatch{"status": "contacted"}, gotPatch)

	require.Len(t, f.interactions.created, 1)
	in := f.interactions.created[0]
	assert.Equal(t, model.InteractionStatusChanged, in.Type)
	assert.Equal(t, "Status changed to: contacted", in.Content)
	assert.JSONEq(t, `{"new_status":"contacted"}`, string(in.Metadata))
	require.NotNil(t, in.CreatedBy)
	assert.Equal(t, testUserID, *in.CreatedBy)

	require.Len(t, f.publisher.published, 1)
	assert.Equal(t, events.LeadStatusChanged, f.publisher.published[0].Type)
	assert.Equal(t, []string{"update"}, f.recorder.mutations)
}

func TestService_Update_WithoutStatusDoesNotLog(t *testing.T) {
	f := newFixture(t, nil)
	f.leads.updateFn = func(_ context.Context, id string, _ model.LeadPatch) (*model.Lead, error) {
		return &model.Lead{ID: id, Status: model.LeadStatusNew}, nil
	}

	_, err := f.svc.Update(context.Background(), testUserID, testLeadID, body(t, `{"notes":"ring tillbaka","lead_score":40}`))
	require.NoError(t, err)
	assert.Empty(t, f.interactions.created)
	require.Len(t, f.publisher.published, 1)
	assert.Equal(t, events.LeadUpdated, f.publisher.published[0].Type)
}

func TestService_Update_NoValidFieldsSkipsWrite(t *testing.T) {
	f := newFixture(t, nil)
	called := false
	f.leads.updateFn = func(context.Context, string, model.LeadPatch) (*model.Lead, error) {
		called = true
		return nil, nil
	}

	_, err := f.svc.Update(context.Background(), testUserID, testLeadID, body(t, `{"id":"x","created_at":"2020-01-01"}`))
	var apiErr *model.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, model.ErrCodeNoValidFields, apiErr.Code)
	assert.Equal(t, "No valid fields to update", apiErr.Message)
	assert.False(t, called)
	assert.Empty(t, f.recorder.mutations)
}

// applyPatch はリポジトリのUPDATEと同じくパッチの値で列を上書きする。
func applyPatch(l *model.Lead, patch model.LeadPatch) {
	for k, v := range patch {
		switch k {
		case "company_name":
			l.CompanyName = v.(string)
		case "status":
			l.Status = model.LeadStatus(v.(string))
		case "lead_score":
			l.LeadScore = v.(int)
		case "notes":
			if v == nil {
				l.Notes = nil
			} else {
				l.Notes = ptr(v.(string))
			}
		case "city":
			if v == nil {
				l.City = nil
			} else {
				l.City = ptr(v.(string))
			}
		case "social_media":
			if v == nil {
				l.SocialMedia = nil
			} else {
				l.SocialMedia = v.(json.RawMessage)
			}
		}
	}
}

func TestService_Update_SameBodyTwiceGivesSameState(t *testing.T) {
	f := newFixture(t, nil)
	stored := model.Lead{ID: testLeadID, CompanyName: "Bageri Ek", Status: model.LeadStatusNew, City: ptr("Lund")}
	f.leads.updateFn = func(_ context.Context, id string, patch model.LeadPatch) (*model.Lead, error) {
		applyPatch(&stored, patch)
		current := stored
		return &current, nil
	}

	req := `{"company_name":" R<D Konsult AB ","status":"interested","lead_score":60,"notes":"Anna <anna@acme.se>","city":null,"social_media":{"linkedin":"rd"}}`

	first, err := f.svc.Update(context.Background(), testUserID, testLeadID, body(t, req))
	require.NoError(t, err)
	second, err := f.svc.Update(context.Background(), testUserID, testLeadID, body(t, req))
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, "R<D Konsult AB", second.CompanyName)
	assert.Equal(t, model.LeadStatusInterested, second.Status)
	assert.Equal(t, 60, second.LeadScore)
	require.NotNil(t, second.Notes)
	assert.Equal(t, "Anna <anna@acme.se>", *second.Notes)
	assert.Nil(t, second.City)
	assert.JSONEq(t, `{"linkedin":"rd"}`, string(second.SocialMedia))
}

func TestService_Update_NotFound(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.svc.Update(context.Background(), testUserID, testLeadID, body(t, `{"status":"customer"}`))
	var apiErr *model.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, model.ErrCodeLeadNotFound, apiErr.Code)
	assert.Empty(t, f.interactions.created)
	assert.Empty(t, f.publisher.published)

	_, err = f.svc.Update(context.Background(), testUserID, "42", body(t, `{"status":"customer"}`))
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, model.ErrCodeLeadNotFound, apiErr.Code)
}

// --- Delete ---

func TestService_Delete(t *testing.T) {
	f := newFixture(t, nil)
	var deleted string
	f.leads.deleteFn = func(_ context.Context, id string) error {
		deleted = id
		return nil
	}

	require.NoError(t, f.svc.Delete(context.Background(), testUserID, testLeadID))
	assert.Equal(t, testLeadID, deleted)
	require.Len(t, f.publisher.published, 1)
	assert.Equal(t, events.LeadDeleted, f.publisher.published[0].Type)
	assert.Equal(t, []string{"delete"}, f.recorder.mutations)
}

func TestService_Delete_MalformedIDSucceedsWithoutStore(t *testing.T) {
	f := newFixture(t, nil)
	called := false
	f.leads.deleteFn = func(context.Context, string) error {
		called = true
		return nil
	}

	require.NoError(t, f.svc.Delete(context.Background(), testUserID, "42"))
	assert.False(t, called)
	assert.Empty(t, f.publisher.published)
	assert.Empty(t, f.recorder.mutations)
}

func TestService_Delete_StoreError(t *testing.T) {
	f := newFixture(t, nil)
	f.leads.deleteFn = func(context.Context, string) error { return errors.New("boom") }

	require.Error(t, f.svc.Delete(context.Background(), testUserID, testLeadID))
	assert.Empty(t, f.publisher.published)
}

// --- PipelineStats ---

func TestService_PipelineStats_CachedInRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	f := newFixture(t, cache.NewRedisStatsCache(client, time.Minute))
	f.stats.stats = []model.PipelineStat{{Status: model.LeadStatusNew, Count: 4}}
	ctx := context.Background()

	first, err := f.svc.PipelineStats(ctx)
	require.NoError(t, err)
	second, err := f.svc.PipelineStats(ctx)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, f.stats.calls, "second read is served from cache")
	assert.Equal(t, 1, f.recorder.hits)
	assert.Equal(t, 1, f.recorder.misses)

	// 書き込み後は再集計される
	_, err = f.svc.Create(ctx, testUserID, &CreateInput{CompanyName: "Nytt AB"})
	require.NoError(t, err)
	_, err = f.svc.PipelineStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, f.stats.calls)
}

func TestService_PipelineStats_CacheDownFallsBackToStore(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	mr.Close()

	f := newFixture(t, cache.NewRedisStatsCache(client, time.Minute))
	f.stats.stats = []model.PipelineStat{{Status: model.LeadStatusCustomer, Count: 1}}

	stats, err := f.svc.PipelineStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, f.stats.stats, stats)
}

func TestService_PipelineStats_StoreError(t *testing.T) {
	f := newFixture(t, nil)
	f.stats.err = errors.New("rpc failed")

	_, err := f.svc.PipelineStats(context.Background())
	assert.Error(t, err)
}

// --- Overview ---

func TestService_Overview_CollectsDashboardData(t *testing.T) {
	f := newFixture(t, nil)
	f.leads.listFn = func(_ context.Context, filter model.LeadFilter) ([]*model.Lead, int, error) {
		assert.Equal(t, DefaultLimit, filter.Limit)
		return []*model.Lead{{ID: testLeadID}}, 73, nil
	}
	f.stats.stats = []model.PipelineStat{
		{Status: model.LeadStatusContacted, Count: 5},
		{Status: model.LeadStatusOpened, Count: 2},
		{Status: model.LeadStatusReplied, Count: 3},
		{Status: model.LeadStatusInterested, Count: 1},
		{Status: model.LeadStatusCustomer, Count: 6},
	}
	f.campaigns.campaigns = []*model.Campaign{{ID: "c1", Name: "Vår 2026", TotalSent: 10, TotalOpened: 4}}

	ov := f.svc.Overview(context.Background())
	assert.Equal(t, 73, ov.Page.Total)
	assert.Len(t, ov.Campaigns, 1)
	assert.Equal(t, StatCards{Total: 73, Contacted: 7, Engaged: 4, Customers: 6}, ov.Cards)
}

func TestService_Overview_ErrorsYieldEmpty(t *testing.T) {
	f := newFixture(t, nil)
	f.leads.listFn = func(context.Context, model.LeadFilter) ([]*model.Lead, int, error) {
		return nil, 0, errors.New("down")
	}
	f.stats.err = errors.New("down")
	f.campaigns.err = errors.New("down")

	ov := f.svc.Overview(context.Background())
	assert.NotNil(t, ov.Page.Leads)
	assert.Empty(t, ov.Page.Leads)
	assert.Empty(t, ov.Stats)
	assert.Empty(t, ov.Campaigns)
	assert.Equal(t, StatCards{}, ov.Cards)
}
