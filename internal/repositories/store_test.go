package repositories

import (
	"context"
	"errors"
	"github.com/maxaizer/car-tracker/internal/domain/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func newSearch(id string, brand string, adIDs ...string) *models.Search {
	search := &models.Search{
		ID:            id,
		Params:        models.Params{"brand": brand},
		Notifications: true,
		CreatedAt:     models.NewTimestamp(time.Now()),
	}
	ads := make([]models.AdRecord, 0, len(adIDs))
	for _, adID := range adIDs {
		ads = append(ads, models.AdRecord{ID: adID, Price: "100"})
	}
	search.SetResults(ads, 200)
	return search
}

func newSqliteBlob(t *testing.T) *DataBlob {
	dbContext, err := NewDbContext(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = dbContext.Close() })
	require.NoError(t, dbContext.Migrate())
	return NewDataBlob(NewDataRepository(dbContext.DB), "searches")
}

func Test_SnapshotStore_Backends_WhenSavedThenLoaded_ShouldRoundTrip(t *testing.T) {
	backends := map[string]func(t *testing.T) blobStorage{
		"file":   func(t *testing.T) blobStorage { return NewFileBlob(filepath.Join(t.TempDir(), "data", "searches.json")) },
		"sqlite": func(t *testing.T) blobStorage { return newSqliteBlob(t) },
		"memory": func(t *testing.T) blobStorage { return NewMemoryBlob() },
	}

	for name, newBlob := range backends {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)
			ctx := context.Background()
			store := NewSnapshotStore(newBlob(t))

			empty, err := store.Load(ctx)
			require.NoError(t, err)
			assert.Empty(empty)

			snapshot := models.Snapshot{42: {models.Avito: {newSearch("s1", "Toyota", "1", "2")}}}
			require.NoError(t, store.Save(ctx, snapshot))

			loaded, err := store.Load(ctx)
			require.NoError(t, err)
			search, platform, found := loaded[42].Find("s1")
			assert.True(found)
			assert.Equal(models.Avito, platform)
			assert.Equal([]string{"1", "2"}, search.ResultIDs)
			assert.Equal("Toyota", search.Params["brand"])

			require.NoError(t, store.Save(ctx, models.Snapshot{}))
			loaded, err = store.Load(ctx)
			require.NoError(t, err)
			assert.Empty(loaded)
		})
	}
}

func Test_SnapshotStore_Load_WhenFileCorrupt_ShouldReturnCorruptError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "searches.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))
	store := NewSnapshotStore(NewFileBlob(path))

	_, err := store.Load(context.Background())

	assert.ErrorIs(t, err, ErrCorruptSnapshot)
}

func Test_FileBlob_Write_ShouldNotLeaveTemporaryFiles(t *testing.T) {
	dir := t.TempDir()
	blob := NewFileBlob(filepath.Join(dir, "searches.json"))

	require.NoError(t, blob.Write(context.Background(), []byte("{}")))
	require.NoError(t, blob.Write(context.Background(), []byte(`{"1":{}}`)))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	data, err := blob.Read(context.Background())
	require.NoError(t, err)
	assert.Equal(t, `{"1":{}}`, string(data))
}

func Test_SnapshotStore_WithLock_WhenConcurrentWriters_ShouldNotLoseUpdates(t *testing.T) {
	ctx := context.Background()
	store := NewSnapshotStore(NewMemoryBlob())
	writers := 20

	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(userID int64) {
			defer wg.Done()
			err := store.WithLock(ctx, func(ctx context.Context) error {
				snapshot, err := store.Load(ctx)
				if err != nil {
					return err
				}
				snapshot[userID] = models.UserSearches{models.Drom: {newSearch("id", "Kia")}}
				return store.Save(ctx, snapshot)
			})
			assert.NoError(t, err)
		}(int64(i))
	}
	wg.Wait()

	snapshot, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, snapshot, writers)
}

func Test_SnapshotStore_WithLock_WhenContextCanceledWhileWaiting_ShouldNotRun(t *testing.T) {
	store := NewSnapshotStore(NewMemoryBlob())
	holding := make(chan struct{})
	release := make(chan struct{})

	go func() {
		_ = store.WithLock(context.Background(), func(ctx context.Context) error {
			close(holding)
			<-release
			return nil
		})
	}()
	<-holding

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	ran := false
	err := store.WithLock(ctx, func(ctx context.Context) error {
		ran = true
		return nil
	})
	close(release)

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, ran)
}

func Test_SnapshotStore_WithLock_WhenFnFails_ShouldReleaseLock(t *testing.T) {
	store := NewSnapshotStore(NewMemoryBlob())
	failure := errors.New("boom")

	err := store.WithLock(context.Background(), func(ctx context.Context) error { return failure })
	assert.ErrorIs(t, err, failure)

	err = store.WithLock(context.Background(), func(ctx context.Context) error { return nil })
	assert.NoError(t, err)
}
