package watch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"simatest/internal/runner"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func setupTree(t *testing.T) (string, []runner.Target) {
	t.Helper()
	root := t.TempDir()
	targets := []runner.Target{
		{Name: "cam_config", Kind: runner.KindDoctest, Path: "cime_config/cam_config.py"},
		{Name: "cam_config_classes", Kind: runner.KindDoctest, Path: "cime_config/cam_config_classes.py"},
		{Name: "test_registry", Kind: runner.KindUnittest, Path: "test/unit/test_registry.py"},
	}
	for _, target := range targets {
		path := filepath.Join(root, target.Path)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte("pass\n"), 0644))
	}
	return root, targets
}

func TestTargetDirs(t *testing.T) {
	root, targets := setupTree(t)
	w, err := New(root, targets, 0)
	require.NoError(t, err)
	defer w.watcher.Close()

	assert.Equal(t, []string{
		filepath.Join(root, "cime_config"),
		filepath.Join(root, "test", "unit"),
	}, w.Dirs())
	assert.Equal(t, DefaultDebounce, w.debounce)
}

func TestWatcher_DebouncedChange(t *testing.T) {
	root, targets := setupTree(t)
	w, err := New(root, targets, 50*time.Millisecond)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))
	defer w.Stop()

	edited := filepath.Join(root, "cime_config", "cam_config.py")
	for i := 0; i < 3; i++ {
		require.NoError(t, os.WriteFile(edited, []byte("x = 1\n"), 0644))
	}

	select {
	case change := <-w.Changes():
		require.NotEmpty(t, change.Paths)
		assert.Contains(t, change.Paths, edited)
	case <-time.After(5 * time.Second):
		t.Fatal("no change delivered")
	}

	// Rapid writes collapse into one trigger.
	select {
	case change := <-w.Changes():
		t.Fatalf("unexpected second change: %v", change.Paths)
	case <-time.After(200 * time.Millisecond):
	}
	assert.Equal(t, 1, w.Stats().Triggers)
}

func TestWatcher_IgnoresNonPython(t *testing.T) {
	root, targets := setupTree(t)
	w, err := New(root, targets, 20*time.Millisecond)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))
	defer w.Stop()

	require.NoError(t, os.WriteFile(filepath.Join(root, "test", "unit", "notes.txt"), []byte("hi"), 0644))

	select {
	case change := <-w.Changes():
		t.Fatalf("unexpected change: %v", change.Paths)
	case <-time.After(300 * time.Millisecond):
	}
	assert.Zero(t, w.Stats().Triggers)
}

func TestWatcher_NoWatchableDirs(t *testing.T) {
	root := t.TempDir()
	w, err := New(root, []runner.Target{{Name: "x", Kind: runner.KindUnittest, Path: "missing/x.py"}}, 0)
	require.NoError(t, err)

	err = w.Start(context.Background())
	require.Error(t, err)
	w.Stop()
}

func TestWatcher_ContextCancelClosesChanges(t *testing.T) {
	root, targets := setupTree(t)
	w, err := New(root, targets, 20*time.Millisecond)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, w.Start(ctx))
	cancel()

	select {
	case _, ok := <-w.Changes():
		assert.False(t, ok)
	case <-time.After(5 * time.Second):
		t.Fatal("changes channel not closed")
	}
	w.Stop()
}
