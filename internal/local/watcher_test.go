package local

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/require"
)

func TestWatcher(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(root, "sub"), 0755))

	w, err := NewWatcher(root, []string{"*.tmp"})
	require.NoError(t, err)
	defer w.Close()

	done := make(chan error, 1)
	go func() { done <- w.Run(t.Context()) }()

	writeFile(t, root, "ignored.tmp", "x")
	path := writeFile(t, root, "sub/file.txt", "hello")

	ev := waitForEvent(t, w.Events, path)
	require.True(t, ev.Op.Has(fsnotify.Create) || ev.Op.Has(fsnotify.Write))
	go func() {
		for range w.Events {
		}
	}()

	w.Close()
	select {
	case err = <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		require.Fail(t, "watcher did not stop")
	}
}

func TestWatcherFollowsNewDirectories(t *testing.T) {
	root := t.TempDir()
	w, err := NewWatcher(root, nil)
	require.NoError(t, err)
	defer w.Close()
	go func() { _ = w.Run(t.Context()) }()

	require.NoError(t, os.Mkdir(filepath.Join(root, "new"), 0755))
	// give the watcher a moment to register the directory
	time.Sleep(200 * time.Millisecond)
	path := writeFile(t, root, "new/inner.txt", "data")

	waitForEvent(t, w.Events, path)
}

func TestWatcherReportsFilesOfMovedInDirectory(t *testing.T) {
	root := t.TempDir()
	outside := t.TempDir()
	w, err := NewWatcher(root, []string{"*.tmp"})
	require.NoError(t, err)
	defer w.Close()
	go func() { _ = w.Run(t.Context()) }()

	writeFile(t, outside, "batch/skip.tmp", "x")
	writeFile(t, outside, "batch/inner.txt", "data")
	writeFile(t, outside, "batch/deep/more.txt", "more")
	require.NoError(t, os.Rename(filepath.Join(outside, "batch"), filepath.Join(root, "batch")))

	// existing files are reported in lexical walk order
	ev := waitForEvent(t, w.Events, filepath.Join(root, "batch", "deep", "more.txt"))
	require.True(t, ev.Op.Has(fsnotify.Create))
	waitForEvent(t, w.Events, filepath.Join(root, "batch", "inner.txt"))
}

func waitForEvent(t *testing.T, events <-chan WatchEvent, path string) WatchEvent {
	t.Helper()
	timeout := time.After(3 * time.Second)
	for {
		select {
		case ev, ok := <-events:
			require.True(t, ok, "events closed before %s was seen", path)
			require.NotEqual(t, ".tmp", filepath.Ext(ev.Path))
			if ev.Path == path {
				return ev
			}
		case <-timeout:
			require.FailNow(t, "timeout waiting for event", path)
		}
	}
}
