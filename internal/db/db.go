package db

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pressly/goose/v3"
	"github.com/torfstack/chksum/internal/logging"
	"github.com/torfstack/chksum/internal/util"
	_ "modernc.org/sqlite"
)

var (
	dbName = "chksum.sqlite"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

type Database struct {
	db *sql.DB
}

// New opens the ledger in the user's config directory.
func New(ctx context.Context) (*Database, error) {
	return Open(ctx, filepath.Join(util.ConfigDir, dbName))
}

func Open(ctx context.Context, path string) (*Database, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("could not create database directory: %w", err)
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	sqlDb, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("could not open database: %w", err)
	}
	// sqlite allows a single writer
	sqlDb.SetMaxOpenConns(1)

	d := &Database{sqlDb}
	err = d.runMigrations(ctx)
	if err != nil {
		_ = sqlDb.Close()
		return nil, fmt.Errorf("could not run migrations: %w", err)
	}
	return d, nil
}

func (d *Database) runMigrations(ctx context.Context) error {
	err := goose.SetDialect("sqlite")
	if err != nil {
		return fmt.Errorf("could not set dialect 'sqlite': %w", err)
	}
	goose.SetLogger(logging.GooseLogger{})
	goose.SetBaseFS(embedMigrations)

	if err = goose.UpContext(ctx, d.db, "migrations"); err != nil {
		return fmt.Errorf("could not run migrations: %w", err)
	}
	return nil
}

func (d *Database) Close() error {
	if d.db == nil {
		return nil
	}
	return d.db.Close()
}
