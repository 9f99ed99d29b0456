package local

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/torfstack/chksum/internal/logging"
	"github.com/torfstack/chksum/internal/util"
)

type WatchEvent struct {
	Path string
	Op   fsnotify.Op
}

type Watcher struct {
	watcher  *fsnotify.Watcher
	Events   chan WatchEvent
	RootPath string
	ignore   []string
}

func NewWatcher(rootPath string, ignore []string) (*Watcher, error) {
	rootPath, err := filepath.Abs(rootPath)
	if err != nil {
		return nil, fmt.Errorf("could not resolve watch root: %w", err)
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		watcher:  watcher,
		Events:   make(chan WatchEvent),
		RootPath: rootPath,
		ignore:   ignore,
	}

	if err = w.addTree(rootPath); err != nil {
		_ = watcher.Close()
		return nil, err
	}
	return w, nil
}

// addTree adds path and all directories below it, fsnotify does not watch
// subdirectories on its own.
func (w *Watcher) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != w.RootPath && Ignored(d.Name(), w.ignore) {
			return filepath.SkipDir
		}
		if err = w.watcher.Add(path); err != nil {
			return fmt.Errorf("add-dir: could not add directory to watcher: %w", err)
		}
		logging.Debugf("Added directory to watcher: %s", path)
		return nil
	})
}

// emitFiles sends a create event for every regular file below dir.
func (w *Watcher) emitFiles(ctx context.Context, dir string) error {
	errs := util.NewSyncSlice[FileError]()
	err := walkFiles(ctx, dir, w.ignore, errs, func(path string) error {
		select {
		case w.Events <- WatchEvent{Path: path, Op: fsnotify.Create}:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})
	for _, e := range errs.Items() {
		logging.Debugf("Skipping: %s", e)
	}
	return err
}

func (w *Watcher) Close() {
	if err := w.watcher.Close(); err != nil {
		logging.Errorf("Error closing watcher: %s", err)
	}
}

// Run forwards file events until ctx is done or the watcher is closed.
// Events is closed when Run returns.
func (w *Watcher) Run(ctx context.Context) error {
	defer close(w.Events)
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}

			relativePath, err := filepath.Rel(w.RootPath, event.Name)
			if err != nil || relativePath == ".." || event.Name == w.RootPath {
				continue
			}
			if Ignored(filepath.Base(event.Name), w.ignore) {
				continue
			}

			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err = w.addTree(event.Name); err != nil {
						logging.Errorf("Could not watch new directory '%s': %s", event.Name, err)
					}
					// a directory moved in, or filled before it was watched,
					// already holds files that will never see a create event
					if err = w.emitFiles(ctx, event.Name); err != nil {
						if ctx.Err() != nil {
							return nil
						}
						logging.Errorf("Could not list new directory '%s': %s", event.Name, err)
					}
					continue
				}
			}

			select {
			case w.Events <- WatchEvent{Path: event.Name, Op: event.Op}:
			case <-ctx.Done():
				return nil
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return fmt.Errorf("watcher error channel closed")
			}
			logging.Errorf("FSNotify Error: %v", err)
		}
	}
}
