package service

import (
	"context"
	"errors"
	"io"

	"github.com/torfstack/chksum/internal/config"
	"github.com/torfstack/chksum/internal/db"
	"github.com/torfstack/chksum/internal/local"
)

var ErrVerificationFailed = errors.New("verification failed")

// Ledger stores the last known digest per file.
type Ledger interface {
	UpsertRecord(ctx context.Context, r db.Record) error
	UpsertRecords(ctx context.Context, records []db.Record) error
	GetRecord(ctx context.Context, path string) (db.Record, error)
	ListRecords(ctx context.Context, prefix string) ([]db.Record, error)
	DeleteRecord(ctx context.Context, path string) error
	DeleteRecordsUnder(ctx context.Context, dir string) (int64, error)
	CountRecords(ctx context.Context) (int64, error)
}

var _ Ledger = (*db.Database)(nil)

type Service struct {
	cfg    config.Config
	ledger Ledger
	out    io.Writer
	scan   func(context.Context, string, local.ScanOptions) (*local.ScanResult, error)
}

// NewService wires the operations behind the CLI. ledger may be nil for
// commands that do not touch the database.
func NewService(cfg config.Config, ledger Ledger, out io.Writer) *Service {
	return &Service{cfg: cfg, ledger: ledger, out: out, scan: local.Scan}
}

func (s *Service) scanOptions() local.ScanOptions {
	return local.ScanOptions{
		Algorithm: s.cfg.HashAlgorithm(),
		BlockSize: s.cfg.BlockSize,
		Workers:   s.cfg.Workers,
		Ignore:    s.cfg.Ignore,
	}
}

func (s *Service) requireLedger() error {
	if s.ledger == nil {
		return errors.New("no ledger configured")
	}
	return nil
}
