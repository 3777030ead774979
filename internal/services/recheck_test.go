package services

import (
	"context"
	"github.com/maxaizer/car-tracker/internal/domain/models"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"testing"
	"time"
)

type mockAdsFetcher struct {
	mock.Mock
}

func (m *mockAdsFetcher) FetchAds(_ context.Context, params models.Params) ([]models.RawAd, error) {
	args := m.Called(params)
	ads, _ := args.Get(0).([]models.RawAd)
	return ads, args.Error(1)
}

func newTestEngine(t *testing.T, env *testEnv, fetcher AdsFetcher, keep int) *RecheckEngine {
	engine, err := NewRecheckEngine(env.registry, map[models.Platform]AdsFetcher{models.Avito: fetcher}, keep)
	require.NoError(t, err)
	return engine
}

func savedSearch(t *testing.T, env *testEnv, userID int64, ids ...string) *models.Search {
	id, _, err := env.registry.SaveSearch(context.Background(), userID, models.Avito,
		models.Params{"brand": "Toyota"}, rawAds(ids...), true)
	require.NoError(t, err)
	search, err := env.registry.GetSearch(context.Background(), userID, id)
	require.NoError(t, err)
	return search
}

func Test_Recheck_ShouldReturnOnlyUnseenAdsAndReplaceResults(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	env := newTestEnv(t, defaultLimits())
	search := savedSearch(t, env, 1, "a", "b")

	later := fixedNow.Add(time.Hour)
	env.registry.now = func() time.Time { return later }

	fetcher := &mockAdsFetcher{}
	fetcher.On("FetchAds", search.Params).Return(rawAds("b", "c", "d"), nil)
	engine := newTestEngine(t, env, fetcher, 50)

	newAds, err := engine.Recheck(ctx, 1, search)

	require.NoError(t, err)
	assert.Equal([]string{"c", "d"}, resultIDs(newAds))

	stored, err := env.registry.GetSearch(ctx, 1, search.ID)
	require.NoError(t, err)
	assert.Equal([]string{"b", "c", "d"}, resultIDs(stored.OrderedResults()))
	assert.Equal(models.NewTimestamp(later), stored.UpdatedAt)
	assert.Equal(models.NewTimestamp(later), stored.LastCheck)
	fetcher.AssertExpectations(t)
}

func Test_Recheck_WhenNothingNew_ShouldOnlyTouchLastCheck(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	env := newTestEnv(t, defaultLimits())
	search := savedSearch(t, env, 1, "a", "b")

	later := fixedNow.Add(time.Hour)
	env.registry.now = func() time.Time { return later }

	fetcher := &mockAdsFetcher{}
	fetcher.On("FetchAds", mock.Anything).Return(rawAds("a"), nil)
	engine := newTestEngine(t, env, fetcher, 50)

	newAds, err := engine.Recheck(ctx, 1, search)

	require.NoError(t, err)
	assert.Empty(newAds)

	stored, err := env.registry.GetSearch(ctx, 1, search.ID)
	require.NoError(t, err)
	assert.Equal([]string{"a", "b"}, resultIDs(stored.OrderedResults()))
	assert.Equal(models.NewTimestamp(fixedNow), stored.UpdatedAt)
	assert.Equal(models.NewTimestamp(later), stored.LastCheck)
}

func Test_Recheck_WhenScrapeFails_ShouldReportNoAdsAndKeepResults(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	env := newTestEnv(t, defaultLimits())
	search := savedSearch(t, env, 1, "a")

	env.registry.now = func() time.Time { return fixedNow.Add(time.Hour) }

	fetcher := &mockAdsFetcher{}
	fetcher.On("FetchAds", mock.Anything).Return(nil, errors.New("scraper is down"))
	engine := newTestEngine(t, env, fetcher, 50)

	newAds, err := engine.Recheck(ctx, 1, search)

	require.NoError(t, err)
	assert.Empty(newAds)

	stored, err := env.registry.GetSearch(ctx, 1, search.ID)
	require.NoError(t, err)
	assert.Equal([]string{"a"}, resultIDs(stored.OrderedResults()))
	assert.Equal(models.NewTimestamp(fixedNow), stored.LastCheck)
}

func Test_Recheck_ShouldKeepConfiguredNumberOfResults(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	env := newTestEnv(t, defaultLimits())
	search := savedSearch(t, env, 1, "a")

	fetcher := &mockAdsFetcher{}
	fetcher.On("FetchAds", mock.Anything).Return(rawAds("b", "c", "d", "e"), nil)
	engine := newTestEngine(t, env, fetcher, 2)

	newAds, err := engine.Recheck(ctx, 1, search)

	require.NoError(t, err)
	assert.Len(newAds, 4)

	stored, err := env.registry.GetSearch(ctx, 1, search.ID)
	require.NoError(t, err)
	assert.Equal([]string{"b", "c"}, resultIDs(stored.OrderedResults()))
}

func Test_Recheck_WhenSearchDeletedMeanwhile_ShouldReturnNothing(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, defaultLimits())
	search := savedSearch(t, env, 1, "a")

	fetcher := &mockAdsFetcher{}
	fetcher.On("FetchAds", mock.Anything).Return(rawAds("b"), nil).Run(func(mock.Arguments) {
		_, err := env.registry.DeleteSearch(ctx, 1, search.ID)
		require.NoError(t, err)
	})
	engine := newTestEngine(t, env, fetcher, 50)

	newAds, err := engine.Recheck(ctx, 1, search)

	require.NoError(t, err)
	assert.Empty(t, newAds)
}

func Test_Recheck_WhenNoScraperForPlatform_ShouldFail(t *testing.T) {
	env := newTestEnv(t, defaultLimits())
	engine := newTestEngine(t, env, &mockAdsFetcher{}, 50)

	_, err := engine.Recheck(context.Background(), 1, &models.Search{ID: "x", Platform: models.Drom})

	assert.Error(t, err)
}

func Test_NewRecheckEngine_ShouldCapKeepByRegistryLimit(t *testing.T) {
	env := newTestEnv(t, Limits{MaxSearchesPerUser: 1, MaxResultsPerSearch: 10})

	engine, err := NewRecheckEngine(env.registry, nil, 50)

	require.NoError(t, err)
	assert.Equal(t, 10, engine.keep)
}

func Test_DiffAds_ShouldSkipDuplicatesOfFreshAds(t *testing.T) {
	stored := &models.Search{}
	stored.SetResults([]models.AdRecord{{ID: "a"}}, 10)

	newAds := diffAds(stored, []models.AdRecord{{ID: "a"}, {ID: "b"}, {ID: "b"}})

	assert.Equal(t, []string{"b"}, resultIDs(newAds))
}
