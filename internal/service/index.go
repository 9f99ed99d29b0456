package service

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/torfstack/chksum/internal/db"
	"github.com/torfstack/chksum/internal/local"
	"github.com/torfstack/chksum/internal/logging"
)

type IndexReport struct {
	Added     int
	Updated   int
	Unchanged int
	Removed   int
	Failed    int
}

func (r IndexReport) String() string {
	return fmt.Sprintf(
		"%d added, %d updated, %d unchanged, %d removed, %d failed",
		r.Added, r.Updated, r.Unchanged, r.Removed, r.Failed,
	)
}

// Index checksums every file below root and stores the digests in the
// ledger. Ledger rows below root whose files no longer exist are removed.
func (s *Service) Index(ctx context.Context, root string) (IndexReport, error) {
	var report IndexReport
	if err := s.requireLedger(); err != nil {
		return report, err
	}
	root, err := filepath.Abs(root)
	if err != nil {
		return report, err
	}

	known, err := s.ledger.ListRecords(ctx, root)
	if err != nil {
		return report, err
	}
	previous := make(map[string]db.Record, len(known))
	for _, r := range known {
		previous[r.Path] = r
	}

	logging.Infof("Indexing '%s'", root)
	res, err := s.scan(ctx, root, s.scanOptions())
	if err != nil {
		return report, err
	}
	// unreadable files still exist, their rows stay as they are
	report.Failed = len(res.Failed)
	for _, e := range res.Failed {
		logging.Debugf("Index: %s", e)
		excludeUnder(previous, e.Path)
	}

	now := time.Now()
	records := make([]db.Record, 0, len(res.Files))
	for _, f := range res.Files {
		r := recordFromSum(f, now)
		old, ok := previous[f.Path]
		switch {
		case !ok:
			report.Added++
		case old.Digest != r.Digest || old.Algorithm != r.Algorithm:
			report.Updated++
		default:
			report.Unchanged++
		}
		delete(previous, f.Path)
		records = append(records, r)
	}
	if err = s.ledger.UpsertRecords(ctx, records); err != nil {
		return report, err
	}

	for path := range previous {
		if err = s.ledger.DeleteRecord(ctx, path); err != nil {
			return report, err
		}
		report.Removed++
	}

	total, err := s.ledger.CountRecords(ctx)
	if err != nil {
		return report, err
	}
	logging.Infof("Indexed '%s': %s, ledger holds %d records", root, report, total)
	return report, nil
}

// excludeUnder drops path and everything below it from records.
func excludeUnder(records map[string]db.Record, path string) {
	dir := path + string(filepath.Separator)
	for p := range records {
		if p == path || strings.HasPrefix(p, dir) {
			delete(records, p)
		}
	}
}

func recordFromSum(f local.FileSum, checkedAt time.Time) db.Record {
	return db.Record{
		Path:      f.Path,
		Algorithm: string(f.Digest.Algorithm),
		Digest:    f.Digest.Hex(),
		Size:      f.Size,
		ModTime:   f.ModTime,
		CheckedAt: checkedAt,
	}
}
