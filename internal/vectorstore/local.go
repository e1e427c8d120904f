package vectorstore

import (
	"bufio"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"thinkr-chatbot/internal/contextutil"
)

const (
	manifestFile   = "index_manifest.json"
	entriesFile    = "entries.jsonl"
	vectorsFile    = "vectors.f32"
	indexVersion   = 1
	lockRetryDelay = 100 * time.Millisecond

	swapWaitAttempts = 20
	swapWaitDelay    = 5 * time.Millisecond
)

// Manifest describes an on-disk collection.
type Manifest struct {
	IndexVersion int    `json:"index_version"`
	CreatedAt    string `json:"created_at"`
	Dim          int    `json:"dim"`
	Count        int    `json:"count"`
	Normalize    bool   `json:"normalize"`
	VectorFile   string `json:"vector_file"`
	EntriesFile  string `json:"entries_file"`
}

// entry is one row of entries.jsonl. Row i owns vectors[i*dim:(i+1)*dim].
type entry struct {
	ID   string         `json:"id"`
	Meta map[string]any `json:"meta,omitempty"`
}

// flatIndex is a loaded collection.
type flatIndex struct {
	manifest Manifest
	entries  []entry
	vectors  []float32
	modTime  time.Time
}

// LocalStore implements VectorStore as a flat on-disk index per collection.
// Vectors are stored L2-normalized so search is a dot product scan.
// Writers hold a file lock and publish by swapping a fully written directory into place.
type LocalStore struct {
	root        string
	lockTimeout time.Duration

	mu    sync.Mutex
	cache map[string]*flatIndex
}

// NewLocalStore creates a store rooted at dir, creating it if needed.
func NewLocalStore(dir string) (*LocalStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("vector store directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cannot create vector store dir %s: %w", dir, err)
	}
	return &LocalStore{
		root:        dir,
		lockTimeout: 10 * time.Second,
		cache:       make(map[string]*flatIndex),
	}, nil
}

func (s *LocalStore) collectionDir(collection string) string {
	return filepath.Join(s.root, collection)
}

// Upsert inserts or updates points in the collection.
func (s *LocalStore) Upsert(ctx context.Context, collection string, points []Point) error {
	logger := contextutil.LoggerFromContext(ctx)

	if len(points) == 0 {
		return nil
	}

	err := s.mutate(ctx, collection, func(idx *flatIndex) error {
		if idx.manifest.Dim == 0 {
			idx.manifest.Dim = len(points[0].Vec)
		}
		dim := idx.manifest.Dim

		pos := make(map[string]int, len(idx.entries))
		for i, e := range idx.entries {
			pos[e.ID] = i
		}
		for _, p := range points {
			if len(p.Vec) != dim {
				return fmt.Errorf("point %s has %d dimensions, collection has %d: %w", p.ID, len(p.Vec), dim, ErrDimensionMismatch)
			}
			vec := NormalizeL2(p.Vec)
			if i, ok := pos[p.ID]; ok {
				idx.entries[i].Meta = p.Meta
				copy(idx.vectors[i*dim:(i+1)*dim], vec)
				continue
			}
			pos[p.ID] = len(idx.entries)
			idx.entries = append(idx.entries, entry{ID: p.ID, Meta: p.Meta})
			idx.vectors = append(idx.vectors, vec...)
		}
		return nil
	})
	if err != nil {
		logger.ErrorContext(ctx, "failed to upsert points", "collection", collection, "count", len(points), "error", err)
		return fmt.Errorf("failed to upsert points: %w", err)
	}

	logger.InfoContext(ctx, "upserted points", "collection", collection, "count", len(points))
	return nil
}

// Search performs a brute-force cosine similarity scan.
func (s *LocalStore) Search(ctx context.Context, collection string, query []float32, k int, filters map[string]any) ([]SearchResult, error) {
	logger := contextutil.LoggerFromContext(ctx)

	if k <= 0 {
		return nil, fmt.Errorf("k must be greater than 0")
	}

	idx, err := s.load(collection)
	if err != nil {
		return nil, err
	}
	if idx == nil || len(idx.entries) == 0 {
		return nil, ErrNotIndexed
	}
	dim := idx.manifest.Dim
	if len(query) != dim {
		return nil, fmt.Errorf("query has %d dimensions, collection has %d: %w", len(query), dim, ErrDimensionMismatch)
	}

	q := NormalizeL2(query)
	results := make([]SearchResult, 0, len(idx.entries))
	for i, e := range idx.entries {
		if len(filters) > 0 && !matchFilters(e.Meta, filters) {
			continue
		}
		var dot float32
		vec := idx.vectors[i*dim : (i+1)*dim]
		for j := range q {
			dot += q[j] * vec[j]
		}
		results = append(results, SearchResult{PointID: e.ID, Score: dot, Meta: copyMeta(e.Meta)})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > k {
		results = results[:k]
	}

	logger.InfoContext(ctx, "search completed", "collection", collection, "k", k, "results", len(results))
	return results, nil
}

// Delete removes points by their IDs.
func (s *LocalStore) Delete(ctx context.Context, collection string, ids []string) error {
	logger := contextutil.LoggerFromContext(ctx)

	if len(ids) == 0 {
		return nil
	}

	existing, err := s.load(collection)
	if err != nil {
		return err
	}
	if existing == nil {
		return nil
	}

	remove := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		remove[id] = struct{}{}
	}

	err = s.mutate(ctx, collection, func(idx *flatIndex) error {
		dim := idx.manifest.Dim
		entries := idx.entries[:0]
		vectors := idx.vectors[:0]
		for i, e := range idx.entries {
			if _, ok := remove[e.ID]; ok {
				continue
			}
			entries = append(entries, e)
			vectors = append(vectors, idx.vectors[i*dim:(i+1)*dim]...)
		}
		idx.entries = entries
		idx.vectors = vectors
		return nil
	})
	if err != nil {
		logger.ErrorContext(ctx, "failed to delete points", "collection", collection, "count", len(ids), "error", err)
		return fmt.Errorf("failed to delete points: %w", err)
	}

	logger.InfoContext(ctx, "deleted points", "collection", collection, "count", len(ids))
	return nil
}

// Count returns the number of points in the collection.
func (s *LocalStore) Count(ctx context.Context, collection string) (int, error) {
	idx, err := s.load(collection)
	if err != nil {
		return 0, err
	}
	if idx == nil {
		return 0, nil
	}
	return len(idx.entries), nil
}

// EnsureCollection validates the stored dimension against vectorSize.
// A missing collection is created lazily on the first upsert.
func (s *LocalStore) EnsureCollection(ctx context.Context, collection string, vectorSize int) error {
	idx, err := s.load(collection)
	if err != nil {
		return err
	}
	if idx != nil && idx.manifest.Dim != 0 && idx.manifest.Dim != vectorSize {
		return fmt.Errorf("collection %s has dimension %d, expected %d: %w", collection, idx.manifest.Dim, vectorSize, ErrDimensionMismatch)
	}
	contextutil.LoggerFromContext(ctx).DebugContext(ctx, "collection validated", "collection", collection, "vector_size", vectorSize)
	return nil
}

// Reset removes the collection from disk.
func (s *LocalStore) Reset(ctx context.Context, collection string) error {
	logger := contextutil.LoggerFromContext(ctx)

	unlock, err := s.acquireLock(collection)
	if err != nil {
		return err
	}
	defer unlock()

	s.mu.Lock()
	delete(s.cache, collection)
	s.mu.Unlock()

	dir := s.collectionDir(collection)
	for _, d := range []string{dir, backupDir(dir)} {
		if err := os.RemoveAll(d); err != nil {
			return fmt.Errorf("failed to reset collection %s: %w", collection, err)
		}
	}
	logger.InfoContext(ctx, "collection reset", "collection", collection)
	return nil
}

// mutate loads the collection under the file lock, applies fn and writes the result.
func (s *LocalStore) mutate(ctx context.Context, collection string, fn func(*flatIndex) error) error {
	unlock, err := s.acquireLock(collection)
	if err != nil {
		return err
	}
	defer unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	current, err := s.load(collection)
	if err != nil {
		return err
	}
	idx := &flatIndex{}
	if current != nil {
		idx.manifest = current.manifest
		idx.entries = append([]entry(nil), current.entries...)
		idx.vectors = append([]float32(nil), current.vectors...)
	}

	if err := fn(idx); err != nil {
		return err
	}

	if err := s.write(collection, idx); err != nil {
		return err
	}

	s.mu.Lock()
	delete(s.cache, collection)
	s.mu.Unlock()
	return nil
}

// acquireLock takes the per-collection file lock, retrying until lockTimeout.
func (s *LocalStore) acquireLock(collection string) (func(), error) {
	lockPath := filepath.Join(s.root, collection+".lock")
	l := flock.New(lockPath)
	deadline := time.Now().Add(s.lockTimeout)
	for {
		locked, err := l.TryLock()
		if err != nil {
			return func() {}, fmt.Errorf("cannot acquire index lock: %w", err)
		}
		if locked {
			return func() { _ = l.Unlock() }, nil
		}
		if time.Now().After(deadline) {
			return func() {}, fmt.Errorf("another process is writing the index (lock: %s)", lockPath)
		}
		time.Sleep(lockRetryDelay)
	}
}

// load returns the cached collection, reloading when the manifest changed on disk.
// A missing collection yields nil without error. While a writer is swapping
// directories the collection briefly exists only as its backup; load waits for
// the swap to finish and falls back to the backup if it never does.
func (s *LocalStore) load(collection string) (*flatIndex, error) {
	dir := s.collectionDir(collection)
	for attempt := 0; ; attempt++ {
		idx, err := s.loadDir(collection, dir)
		if idx != nil && err == nil {
			return idx, nil
		}
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
		if !exists(backupDir(dir)) {
			return idx, err
		}
		if attempt >= swapWaitAttempts {
			if bak, err := readIndex(backupDir(dir)); err == nil {
				return bak, nil
			}
			return s.loadDir(collection, dir)
		}
		time.Sleep(swapWaitDelay)
	}
}

func (s *LocalStore) loadDir(collection, dir string) (*flatIndex, error) {
	st, err := os.Stat(filepath.Join(dir, manifestFile))
	if errors.Is(err, fs.ErrNotExist) {
		s.mu.Lock()
		delete(s.cache, collection)
		s.mu.Unlock()
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cannot stat manifest: %w", err)
	}

	s.mu.Lock()
	cached, ok := s.cache[collection]
	s.mu.Unlock()
	if ok && cached.modTime.Equal(st.ModTime()) {
		return cached, nil
	}

	idx, err := readIndex(dir)
	if err != nil {
		return nil, err
	}
	idx.modTime = st.ModTime()

	s.mu.Lock()
	s.cache[collection] = idx
	s.mu.Unlock()
	return idx, nil
}

// write publishes idx by writing a temp directory and swapping it into place.
func (s *LocalStore) write(collection string, idx *flatIndex) error {
	tmp, err := os.MkdirTemp(s.root, "."+collection+".tmp-")
	if err != nil {
		return fmt.Errorf("cannot create temp index dir: %w", err)
	}
	defer os.RemoveAll(tmp)

	idx.manifest.IndexVersion = indexVersion
	idx.manifest.CreatedAt = time.Now().UTC().Format(time.RFC3339Nano)
	idx.manifest.Count = len(idx.entries)
	idx.manifest.Normalize = true
	idx.manifest.VectorFile = vectorsFile
	idx.manifest.EntriesFile = entriesFile

	if err := writeIndex(tmp, idx); err != nil {
		return err
	}
	return atomicSwap(tmp, s.collectionDir(collection))
}

func writeIndex(dir string, idx *flatIndex) error {
	if len(idx.vectors) != len(idx.entries)*idx.manifest.Dim {
		return fmt.Errorf("vector length mismatch: got %d want %d", len(idx.vectors), len(idx.entries)*idx.manifest.Dim)
	}

	mb, err := json.MarshalIndent(idx.manifest, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(dir, manifestFile), mb, 0o644); err != nil {
		return fmt.Errorf("cannot write manifest: %w", err)
	}

	ef, err := os.Create(filepath.Join(dir, idx.manifest.EntriesFile))
	if err != nil {
		return fmt.Errorf("cannot create entries file: %w", err)
	}
	bw := bufio.NewWriter(ef)
	for _, e := range idx.entries {
		line, err := json.Marshal(e)
		if err != nil {
			_ = ef.Close()
			return err
		}
		if _, err := bw.Write(line); err != nil {
			_ = ef.Close()
			return err
		}
		if err := bw.WriteByte('\n'); err != nil {
			_ = ef.Close()
			return err
		}
	}
	if err := bw.Flush(); err != nil {
		_ = ef.Close()
		return err
	}
	if err := ef.Close(); err != nil {
		return err
	}

	vf, err := os.Create(filepath.Join(dir, idx.manifest.VectorFile))
	if err != nil {
		return fmt.Errorf("cannot create vectors file: %w", err)
	}
	if err := binary.Write(vf, binary.LittleEndian, idx.vectors); err != nil {
		_ = vf.Close()
		return fmt.Errorf("cannot write vectors: %w", err)
	}
	return vf.Close()
}

func readIndex(dir string) (*flatIndex, error) {
	manifestPath := filepath.Join(dir, manifestFile)
	b, err := os.ReadFile(manifestPath)
	if err != nil {
		return nil, fmt.Errorf("cannot read manifest %s: %w", manifestPath, err)
	}
	var m Manifest
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("invalid manifest JSON %s: %w", manifestPath, err)
	}
	if m.VectorFile == "" {
		m.VectorFile = vectorsFile
	}
	if m.EntriesFile == "" {
		m.EntriesFile = entriesFile
	}

	entries, err := readEntries(filepath.Join(dir, m.EntriesFile))
	if err != nil {
		return nil, err
	}
	if len(entries) > 0 && m.Dim <= 0 {
		return nil, fmt.Errorf("invalid dim in manifest: %d", m.Dim)
	}
	vectors, err := readVectors(filepath.Join(dir, m.VectorFile), len(entries), m.Dim)
	if err != nil {
		return nil, err
	}
	return &flatIndex{manifest: m, entries: entries, vectors: vectors}, nil
}

func readEntries(path string) ([]entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("cannot open entries file %s: %w", path, err)
	}
	defer f.Close()

	var out []entry
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var e entry
		if err := json.Unmarshal(line, &e); err != nil {
			return nil, fmt.Errorf("invalid entries JSONL %s: %w", path, err)
		}
		out = append(out, e)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("cannot read entries file %s: %w", path, err)
	}
	return out, nil
}

func readVectors(path string, n, dim int) ([]float32, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("cannot open vector file %s: %w", path, err)
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("cannot stat vector file %s: %w", path, err)
	}
	expected := int64(n * dim * 4)
	if st.Size() != expected {
		return nil, fmt.Errorf("vector file size mismatch: got %d want %d (entries=%d dim=%d)", st.Size(), expected, n, dim)
	}

	out := make([]float32, n*dim)
	if err := binary.Read(io.LimitReader(f, expected), binary.LittleEndian, out); err != nil {
		return nil, fmt.Errorf("cannot read vectors from %s: %w", path, err)
	}
	return out, nil
}

// atomicSwap replaces destDir with srcDir by renaming.
func backupDir(dir string) string {
	return dir + ".bak"
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func atomicSwap(srcDir, destDir string) error {
	backup := backupDir(destDir)
	_ = os.RemoveAll(backup)
	if _, err := os.Stat(destDir); err == nil {
		if err := os.Rename(destDir, backup); err != nil {
			return err
		}
	}
	if err := os.Rename(srcDir, destDir); err != nil {
		if _, stErr := os.Stat(backup); stErr == nil {
			_ = os.Rename(backup, destDir)
		}
		return err
	}
	_ = os.RemoveAll(backup)
	return nil
}

func copyMeta(meta map[string]any) map[string]any {
	out := make(map[string]any, len(meta))
	for k, v := range meta {
		out[k] = v
	}
	return out
}
