package service

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/torfstack/chksum/internal/checksum"
	"github.com/torfstack/chksum/internal/db"
	"github.com/torfstack/chksum/internal/local"
)

type VerifyReport struct {
	OK      []string
	Changed []string
	Missing []string
	New     []string
	Failed  []string
}

func (r VerifyReport) Clean() bool {
	return len(r.Changed) == 0 && len(r.Missing) == 0 && len(r.Failed) == 0
}

// Verify compares the ledger with the files currently below root. Unless
// deep is set, files whose size and modification time match the ledger are
// trusted without rehashing.
func (s *Service) Verify(ctx context.Context, root string, deep bool) (VerifyReport, error) {
	var report VerifyReport
	if err := s.requireLedger(); err != nil {
		return report, err
	}
	root, err := filepath.Abs(root)
	if err != nil {
		return report, err
	}

	records, err := s.ledger.ListRecords(ctx, root)
	if err != nil {
		return report, err
	}
	known := make(map[string]bool, len(records))
	for _, r := range records {
		if err = ctx.Err(); err != nil {
			return report, err
		}
		known[r.Path] = true
		switch status, err := s.verifyRecord(r, deep); {
		case err != nil:
			report.Failed = append(report.Failed, r.Path)
		case status == statusMissing:
			report.Missing = append(report.Missing, r.Path)
		case status == statusChanged:
			report.Changed = append(report.Changed, r.Path)
		default:
			report.OK = append(report.OK, r.Path)
		}
	}

	files, err := local.ListFiles(ctx, root, s.cfg.Ignore)
	if err != nil {
		return report, err
	}
	for _, f := range files {
		if !known[f] {
			report.New = append(report.New, f)
		}
	}
	return report, nil
}

type recordStatus int

const (
	statusOK recordStatus = iota
	statusChanged
	statusMissing
)

func (s *Service) verifyRecord(r db.Record, deep bool) (recordStatus, error) {
	info, err := os.Stat(r.Path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return statusMissing, nil
	case err != nil:
		return statusOK, err
	}
	if !deep && info.Size() == r.Size && info.ModTime().Equal(r.ModTime) {
		return statusOK, nil
	}

	alg, err := checksum.ParseAlgorithm(r.Algorithm)
	if err != nil {
		return statusOK, err
	}
	d, err := checksum.SumBlocks(r.Path, alg, s.cfg.BlockSize)
	if err != nil {
		return statusOK, err
	}
	if d.Hex() != r.Digest {
		return statusChanged, nil
	}
	return statusOK, nil
}

// PrintVerifyReport writes one "STATUS path" line per file that is not OK.
func (s *Service) PrintVerifyReport(r VerifyReport) error {
	groups := []struct {
		label string
		paths []string
	}{
		{"CHANGED", r.Changed},
		{"MISSING", r.Missing},
		{"NEW", r.New},
		{"ERROR", r.Failed},
	}
	for _, g := range groups {
		for _, p := range g.paths {
			if _, err := fmt.Fprintf(s.out, "%-8s %s\n", g.label, p); err != nil {
				return err
			}
		}
	}
	_, err := fmt.Fprintf(
		s.out, "%d ok, %d changed, %d missing, %d new, %d errors\n",
		len(r.OK), len(r.Changed), len(r.Missing), len(r.New), len(r.Failed),
	)
	return err
}
