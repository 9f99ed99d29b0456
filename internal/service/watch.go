package service

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/torfstack/chksum/internal/local"
	"github.com/torfstack/chksum/internal/logging"
)

// Watch indexes root once and then keeps the ledger current until ctx is
// done. Bursts of events for the same path are coalesced by the configured
// debounce interval.
func (s *Service) Watch(ctx context.Context, root string) error {
	if err := s.requireLedger(); err != nil {
		return err
	}
	if _, err := s.Index(ctx, root); err != nil {
		return fmt.Errorf("run-watch: initial index failed: %w", err)
	}

	w, err := local.NewWatcher(root, s.cfg.Ignore)
	if err != nil {
		return fmt.Errorf("run-watch: could not create watcher: %w", err)
	}
	defer w.Close()

	d := newDebouncer(s.cfg.Debounce, func(path string) {
		if errApply := s.applyChange(ctx, path); errApply != nil {
			logging.Error(fmt.Sprintf("could not update ledger for '%s'", path), errApply)
		}
	})
	defer d.stop()

	go s.consumeWatcherEvents(w.Events, d)
	logging.Infof("Watching '%s' for changes", w.RootPath)
	err = w.Run(ctx)
	if err != nil {
		return fmt.Errorf("run-watch: error while running watcher: %w", err)
	}
	return nil
}

func (s *Service) consumeWatcherEvents(c <-chan local.WatchEvent, d *debouncer) {
	for event := range c {
		switch {
		case event.Op.Has(fsnotify.Create):
			logging.Debugf("Received create event: %s", event.Path)
		case event.Op.Has(fsnotify.Write):
			logging.Debugf("Received write event: %s", event.Path)
		case event.Op.Has(fsnotify.Remove), event.Op.Has(fsnotify.Rename):
			logging.Debugf("Received remove event: %s", event.Path)
		default:
			continue
		}
		d.trigger(event.Path)
	}
}

// applyChange brings the ledger row for path in line with the file system.
func (s *Service) applyChange(ctx context.Context, path string) error {
	info, err := os.Lstat(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		// path may have been a directory, its files get no events of their own
		logging.Debugf("Removing '%s' from ledger", path)
		if err = s.ledger.DeleteRecord(ctx, path); err != nil {
			return err
		}
		n, err := s.ledger.DeleteRecordsUnder(ctx, path)
		if err != nil {
			return err
		}
		if n > 0 {
			logging.Debugf("Removed %d records below '%s' from ledger", n, path)
		}
		return nil
	case err != nil:
		return err
	case !info.Mode().IsRegular():
		return nil
	}

	sum, err := local.HashFile(path, s.cfg.HashAlgorithm(), s.cfg.BlockSize)
	if err != nil {
		return err
	}
	logging.Debugf("Updating '%s' in ledger: %s", path, sum.Digest.Hex())
	return s.ledger.UpsertRecord(ctx, recordFromSum(sum, time.Now()))
}

type debouncer struct {
	mu       sync.Mutex
	interval time.Duration
	timers   map[string]*time.Timer
	fn       func(string)
	wg       sync.WaitGroup
	stopped  bool
}

func newDebouncer(interval time.Duration, fn func(string)) *debouncer {
	return &debouncer{interval: interval, timers: make(map[string]*time.Timer), fn: fn}
}

func (d *debouncer) trigger(path string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	if t, ok := d.timers[path]; ok && t.Stop() {
		t.Reset(d.interval)
		return
	}
	d.wg.Add(1)
	var t *time.Timer
	t = time.AfterFunc(d.interval, func() {
		defer d.wg.Done()
		d.mu.Lock()
		if d.timers[path] == t {
			delete(d.timers, path)
		}
		d.mu.Unlock()
		d.fn(path)
	})
	d.timers[path] = t
}

// stop cancels pending callbacks and waits for running ones.
func (d *debouncer) stop() {
	d.mu.Lock()
	d.stopped = true
	for path, t := range d.timers {
		if t.Stop() {
			d.wg.Done()
		}
		delete(d.timers, path)
	}
	d.mu.Unlock()
	d.wg.Wait()
}
