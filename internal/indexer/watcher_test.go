package indexer

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"thinkr-chatbot/internal/pdf"
)

func TestWatcher_TriggersOnPDFChange(t *testing.T) {
	dir := t.TempDir()
	var calls atomic.Int32
	changed := make(chan struct{}, 4)

	w, err := NewWatcher(dir, 50*time.Millisecond, func(ctx context.Context) error {
		calls.Add(1)
		changed <- struct{}{}
		return nil
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	// Give the watcher time to register the directory.
	time.Sleep(100 * time.Millisecond)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "module1.pdf"), []byte("a"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "module1.pdf"), []byte("ab"), 0o644))

	select {
	case <-changed:
	case <-time.After(5 * time.Second):
		t.Fatal("onChange was not called after a pdf was written")
	}

	// The burst of writes collapses into one call.
	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, int32(1), calls.Load())
}

func TestWatcher_MissingDirectory(t *testing.T) {
	w, err := NewWatcher(filepath.Join(t.TempDir(), "missing"), 0, func(ctx context.Context) error { return nil })
	require.NoError(t, err)

	err = w.Run(context.Background())
	assert.ErrorIs(t, err, pdf.ErrDirNotFound)
}

func TestWatcher_StopsOnCancel(t *testing.T) {
	w, err := NewWatcher(t.TempDir(), time.Second, func(ctx context.Context) error { return nil })
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, w.Run(ctx))
}
