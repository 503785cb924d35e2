package runner

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/profile-sync/internal/model"
	"github.com/sells-group/profile-sync/internal/reconcile"
	"github.com/sells-group/profile-sync/internal/store"
)

type mockScraper struct {
	mock.Mock
}

func (m *mockScraper) ScrapeProfiles(ctx context.Context, searchURL string) ([]model.RawRecord, error) {
	args := m.Called(ctx, searchURL)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.RawRecord), args.Error(1)
}

type mockEnricher struct {
	mock.Mock
}

func (m *mockEnricher) Run(ctx context.Context) (*model.EnrichSummary, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.EnrichSummary), args.Error(1)
}

func newTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	s, err := store.NewSQLite(filepath.Join(t.TempDir(), "runner.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() }) //nolint:errcheck
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func newTestService(t *testing.T, sc Scraper, en Enricher, opts Options) (*Service, *store.SQLiteStore) {
	t.Helper()
	st := newTestStore(t)
	return NewService(sc, reconcile.New(st), en, st, opts), st
}

func TestScrape_ReconcilesAndEnriches(t *testing.T) {
	sc := &mockScraper{}
	sc.On("ScrapeProfiles", mock.Anything, "https://x/search?q=cto").Return([]model.RawRecord{
		{URL: "https://x/in/a"},
		{URL: "https://x/in/b?trk=1"},
	}, nil)
	en := &mockEnricher{}
	en.On("Run", mock.Anything).Return(&model.EnrichSummary{Candidates: 2, Updated: 2}, nil)

	svc, st := newTestService(t, sc, en, Options{EnrichAfterScrape: true})
	res, err := svc.Scrape(context.Background(), ScrapeRequest{SearchURL: "https://x/search?q=cto", Name: "CTOs"})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Inserted)
	assert.Equal(t, 2, res.Linked)
	require.NotNil(t, res.CampaignID)
	require.NotNil(t, res.Enrichment)
	assert.Equal(t, 2, res.Enrichment.Updated)

	c, err := st.GetCampaign(context.Background(), *res.CampaignID)
	require.NoError(t, err)
	assert.Equal(t, "https://x/search?q=cto", c.SourceURL)
	en.AssertExpectations(t)
}

func TestScrape_SkipEnrich(t *testing.T) {
	sc := &mockScraper{}
	sc.On("ScrapeProfiles", mock.Anything, mock.Anything).Return([]model.RawRecord{{URL: "https://x/in/a"}}, nil)
	en := &mockEnricher{}

	svc, _ := newTestService(t, sc, en, Options{EnrichAfterScrape: true})
	res, err := svc.Scrape(context.Background(), ScrapeRequest{SearchURL: "https://x/search", SkipEnrich: true})
	require.NoError(t, err)
	assert.Nil(t, res.Enrichment)
	en.AssertNotCalled(t, "Run", mock.Anything)
}

func TestScrape_EnrichFailureKeepsScrapeResult(t *testing.T) {
	sc := &mockScraper{}
	sc.On("ScrapeProfiles", mock.Anything, mock.Anything).Return([]model.RawRecord{{URL: "https://x/in/a"}}, nil)
	en := &mockEnricher{}
	en.On("Run", mock.Anything).Return(nil, errors.New("store locked"))

	svc, _ := newTestService(t, sc, en, Options{EnrichAfterScrape: true})
	res, err := svc.Scrape(context.Background(), ScrapeRequest{SearchURL: "https://x/search", Name: "C"})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Inserted)
	assert.Nil(t, res.Enrichment)
}

func TestScrape_ProviderFailureWritesNothing(t *testing.T) {
	sc := &mockScraper{}
	sc.On("ScrapeProfiles", mock.Anything, mock.Anything).Return(nil, errors.New("actor failed"))

	svc, st := newTestService(t, sc, nil, Options{})
	_, err := svc.Scrape(context.Background(), ScrapeRequest{SearchURL: "https://x/search", Name: "C"})
	require.Error(t, err)
	assert.Equal(t, model.ErrorKindExternal, model.KindOf(err))

	campaigns, err := st.ListCampaigns(context.Background())
	require.NoError(t, err)
	assert.Empty(t, campaigns)
}

func TestScrape_Validation(t *testing.T) {
	sc := &mockScraper{}
	svc, _ := newTestService(t, sc, nil, Options{})

	for _, req := range []ScrapeRequest{
		{},
		{SearchURL: "   "},
		{SearchURL: "https://x/search", Name: "C", CampaignID: 3},
	} {
		_, err := svc.Scrape(context.Background(), req)
		require.Error(t, err)
		assert.True(t, model.IsValidation(err))
	}
	sc.AssertNotCalled(t, "ScrapeProfiles", mock.Anything, mock.Anything)
}

func TestStartScrape_PersistsRun(t *testing.T) {
	sc := &mockScraper{}
	sc.On("ScrapeProfiles", mock.Anything, mock.Anything).Return([]model.RawRecord{{URL: "https://x/in/a"}}, nil)

	svc, st := newTestService(t, sc, nil, Options{})
	ctx := context.Background()
	id, err := svc.StartScrape(ctx, ScrapeRequest{SearchURL: "https://x/search", Name: "C"})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	svc.Wait()

	run, err := svc.Status(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, run)
	assert.Equal(t, model.RunStatusSuccess, run.Status)
	assert.Equal(t, 1, run.Result.Inserted)

	persisted, err := st.GetRun(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, persisted)
	assert.Equal(t, model.RunStatusSuccess, persisted.Status)
	assert.Equal(t, model.RunKindScrape, persisted.Kind)
	assert.JSONEq(t, `{"search_url":"https://x/search","search_name":"C"}`, string(persisted.Request))
}

func TestStartScrape_FailurePersistsError(t *testing.T) {
	sc := &mockScraper{}
	sc.On("ScrapeProfiles", mock.Anything, mock.Anything).Return(nil, errors.New("actor failed"))

	svc, st := newTestService(t, sc, nil, Options{})
	ctx := context.Background()
	id, err := svc.StartScrape(ctx, ScrapeRequest{SearchURL: "https://x/search"})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		run, err := svc.Status(ctx, id)
		return err == nil && run.Status.Terminal()
	}, 2*time.Second, 10*time.Millisecond)

	run, err := svc.Status(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusError, run.Status)
	require.NotNil(t, run.Error)
	assert.Equal(t, model.ErrorKindExternal, run.Error.Kind)

	persisted, err := st.GetRun(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusError, persisted.Status)
	assert.Contains(t, persisted.Error.Message, "actor failed")
}

func TestStartScrape_InvalidRequestStartsNothing(t *testing.T) {
	svc, st := newTestService(t, &mockScraper{}, nil, Options{})
	_, err := svc.StartScrape(context.Background(), ScrapeRequest{})
	require.Error(t, err)

	runs, err := st.ListRuns(context.Background(), store.RunFilter{})
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestStartEnrich(t *testing.T) {
	en := &mockEnricher{}
	en.On("Run", mock.Anything).Return(&model.EnrichSummary{Candidates: 3, Updated: 3}, nil)

	svc, _ := newTestService(t, &mockScraper{}, en, Options{})
	id, err := svc.StartEnrich(context.Background())
	require.NoError(t, err)
	svc.Wait()

	run, err := svc.Status(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, model.RunKindEnrich, run.Kind)
	assert.Equal(t, 3, run.Result.Enrichment.Updated)
}

func TestStartEnrich_NoProvider(t *testing.T) {
	svc, _ := newTestService(t, &mockScraper{}, nil, Options{})
	_, err := svc.StartEnrich(context.Background())
	require.Error(t, err)
	assert.True(t, model.IsValidation(err))
}

func TestStatus_FallsBackToStore(t *testing.T) {
	svc, st := newTestService(t, &mockScraper{}, nil, Options{})
	ctx := context.Background()

	require.NoError(t, st.CreateRun(ctx, &model.Run{ID: "from-before-restart", Kind: model.RunKindScrape}))

	run, err := svc.Status(ctx, "from-before-restart")
	require.NoError(t, err)
	require.NotNil(t, run)
	assert.Equal(t, model.RunStatusRunning, run.Status)

	missing, err := svc.Status(ctx, "never-existed")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestStatus_EvictedRunReadsFromStore(t *testing.T) {
	en := &mockEnricher{}
	en.On("Run", mock.Anything).Return(&model.EnrichSummary{Candidates: 1, Updated: 1}, nil)

	svc, _ := newTestService(t, &mockScraper{}, en, Options{Retention: time.Minute})
	now := time.Now()
	svc.tracker.now = func() time.Time { return now }
	ctx := context.Background()

	id, err := svc.StartEnrich(ctx)
	require.NoError(t, err)
	svc.Wait()

	now = now.Add(2 * time.Minute)
	_, inMemory := svc.tracker.Poll(id)
	assert.False(t, inMemory)

	run, err := svc.Status(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, run)
	assert.Equal(t, model.RunStatusSuccess, run.Status)
	require.NotNil(t, run.Result)
	assert.Equal(t, 1, run.Result.Enrichment.Updated)
}
