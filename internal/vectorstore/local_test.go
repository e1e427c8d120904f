package vectorstore

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLocalStore(t *testing.T) *LocalStore {
	t.Helper()
	store, err := NewLocalStore(filepath.Join(t.TempDir(), "vector_db"))
	require.NoError(t, err)
	return store
}

func TestLocalStore_SearchNotIndexed(t *testing.T) {
	store := newTestLocalStore(t)
	ctx := context.Background()

	_, err := store.Search(ctx, "courses", []float32{1, 0}, 3, nil)
	assert.ErrorIs(t, err, ErrNotIndexed)

	count, err := store.Count(ctx, "courses")
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestLocalStore_UpsertAndSearch(t *testing.T) {
	store := newTestLocalStore(t)
	ctx := context.Background()

	points := []Point{
		{ID: "a", Vec: []float32{1, 0, 0}, Meta: map[string]any{"source": "a.pdf", "page": 1}},
		{ID: "b", Vec: []float32{0, 1, 0}, Meta: map[string]any{"source": "b.pdf", "page": 2}},
		{ID: "c", Vec: []float32{0.9, 0.1, 0}, Meta: map[string]any{"source": "a.pdf", "page": 3}},
	}
	require.NoError(t, store.Upsert(ctx, "courses", points))

	results, err := store.Search(ctx, "courses", []float32{1, 0, 0}, 2, nil)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "a", results[0].PointID)
	assert.Equal(t, "c", results[1].PointID)
	assert.InDelta(t, 1.0, results[0].Score, 1e-5)
	assert.Equal(t, "a.pdf", MetaString(results[0].Meta, "source"))
	// JSON round trip turns ints into float64.
	assert.Equal(t, 1, MetaInt(results[0].Meta, "page"))

	filtered, err := store.Search(ctx, "courses", []float32{1, 0, 0}, 5, map[string]any{"source": "b.pdf"})
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, "b", filtered[0].PointID)
}

func TestLocalStore_UpsertReplacesExistingIDs(t *testing.T) {
	store := newTestLocalStore(t)
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, "courses", []Point{
		{ID: "a", Vec: []float32{1, 0}},
		{ID: "b", Vec: []float32{0, 1}},
	}))
	require.NoError(t, store.Upsert(ctx, "courses", []Point{
		{ID: "a", Vec: []float32{0, 1}, Meta: map[string]any{"v": "2"}},
	}))

	count, err := store.Count(ctx, "courses")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	results, err := store.Search(ctx, "courses", []float32{0, 1}, 2, nil)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.InDelta(t, 1.0, results[0].Score, 1e-5)
	assert.InDelta(t, 1.0, results[1].Score, 1e-5)
}

func TestLocalStore_DimensionMismatch(t *testing.T) {
	store := newTestLocalStore(t)
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, "courses", []Point{{ID: "a", Vec: []float32{1, 0}}}))

	err := store.Upsert(ctx, "courses", []Point{{ID: "b", Vec: []float32{1, 0, 0}}})
	assert.True(t, errors.Is(err, ErrDimensionMismatch), "got %v", err)

	_, err = store.Search(ctx, "courses", []float32{1, 0, 0}, 1, nil)
	assert.ErrorIs(t, err, ErrDimensionMismatch)

	assert.ErrorIs(t, store.EnsureCollection(ctx, "courses", 3), ErrDimensionMismatch)
	assert.NoError(t, store.EnsureCollection(ctx, "courses", 2))
	assert.NoError(t, store.EnsureCollection(ctx, "missing", 3))
}

func TestLocalStore_DeleteAndReset(t *testing.T) {
	store := newTestLocalStore(t)
	ctx := context.Background()

	require.NoError(t, store.Delete(ctx, "courses", []string{"nothing"}))

	require.NoError(t, store.Upsert(ctx, "courses", []Point{
		{ID: "a", Vec: []float32{1, 0}},
		{ID: "b", Vec: []float32{0, 1}},
		{ID: "c", Vec: []float32{1, 1}},
	}))
	require.NoError(t, store.Delete(ctx, "courses", []string{"b"}))

	results, err := store.Search(ctx, "courses", []float32{0, 1}, 5, nil)
	require.NoError(t, err)
	require.Len(t, results, 2)
	for _, r := range results {
		assert.NotEqual(t, "b", r.PointID)
	}

	require.NoError(t, store.Reset(ctx, "courses"))
	_, err = store.Search(ctx, "courses", []float32{0, 1}, 5, nil)
	assert.ErrorIs(t, err, ErrNotIndexed)
}

func TestLocalStore_PersistsAcrossInstances(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "vector_db")
	ctx := context.Background()

	first, err := NewLocalStore(dir)
	require.NoError(t, err)
	require.NoError(t, first.Upsert(ctx, "courses", []Point{
		{ID: "a", Vec: []float32{3, 4}, Meta: map[string]any{"title": "Intro"}},
	}))

	for _, name := range []string{manifestFile, entriesFile, vectorsFile} {
		_, err := os.Stat(filepath.Join(dir, "courses", name))
		assert.NoError(t, err, name)
	}

	second, err := NewLocalStore(dir)
	require.NoError(t, err)
	results, err := second.Search(ctx, "courses", []float32{3, 4}, 1, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "Intro", MetaString(results[0].Meta, "title"))
	assert.InDelta(t, 1.0, results[0].Score, 1e-5)
}

func TestLocalStore_ConcurrentUpserts(t *testing.T) {
	store := newTestLocalStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := string(rune('a' + i))
			assert.NoError(t, store.Upsert(ctx, "courses", []Point{{ID: id, Vec: []float32{float32(i + 1), 1}}}))
		}(i)
	}
	wg.Wait()

	count, err := store.Count(ctx, "courses")
	require.NoError(t, err)
	assert.Equal(t, 8, count)
}

func TestLocalStore_ReadDuringSwap(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "vector_db")
	ctx := context.Background()

	writer, err := NewLocalStore(dir)
	require.NoError(t, err)
	require.NoError(t, writer.Upsert(ctx, "courses", []Point{
		{ID: "a", Vec: []float32{1, 0}},
		{ID: "b", Vec: []float32{0, 1}},
	}))

	// Leave the collection where a writer puts it mid-swap, then finish the swap.
	collection := filepath.Join(dir, "courses")
	require.NoError(t, os.Rename(collection, backupDir(collection)))
	done := make(chan struct{})
	go func() {
		defer close(done)
		time.Sleep(2 * swapWaitDelay)
		_ = os.Rename(backupDir(collection), collection)
	}()

	reader, err := NewLocalStore(dir)
	require.NoError(t, err)
	results, err := reader.Search(ctx, "courses", []float32{1, 0}, 1, nil)
	<-done
	require.NoError(t, err, "an index being swapped is not reported as missing")
	require.Len(t, results, 1)
	assert.Equal(t, "a", results[0].PointID)
}

func TestLocalStore_StaleBackup(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "vector_db")
	ctx := context.Background()

	store, err := NewLocalStore(dir)
	require.NoError(t, err)
	require.NoError(t, store.Upsert(ctx, "courses", []Point{{ID: "a", Vec: []float32{1, 0}}}))

	// A writer that died between its two renames leaves only the backup.
	collection := filepath.Join(dir, "courses")
	require.NoError(t, os.Rename(collection, backupDir(collection)))

	count, err := store.Count(ctx, "courses")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	require.NoError(t, store.Upsert(ctx, "courses", []Point{{ID: "b", Vec: []float32{0, 1}}}))
	count, err = store.Count(ctx, "courses")
	require.NoError(t, err)
	assert.Equal(t, 2, count, "the next write keeps the backed-up entries")
	assert.NoDirExists(t, backupDir(collection))

	require.NoError(t, os.Rename(collection, backupDir(collection)))
	require.NoError(t, store.Reset(ctx, "courses"))
	assert.NoDirExists(t, backupDir(collection))
	_, err = store.Search(ctx, "courses", []float32{1, 0}, 1, nil)
	assert.ErrorIs(t, err, ErrNotIndexed)
}

func TestLocalStore_SearchInvalidK(t *testing.T) {
	store := newTestLocalStore(t)
	_, err := store.Search(context.Background(), "courses", []float32{1}, 0, nil)
	assert.Error(t, err)
}
