package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

var ErrNotFound = errors.New("record not found")

// Record is the last known digest of a file.
type Record struct {
	Path      string
	Algorithm string
	Digest    string
	Size      int64
	ModTime   time.Time
	CheckedAt time.Time
}

const upsertRecord = `
INSERT INTO records (path, algorithm, digest, size, mod_time, checked_at)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT (path) DO UPDATE SET
    algorithm  = excluded.algorithm,
    digest     = excluded.digest,
    size       = excluded.size,
    mod_time   = excluded.mod_time,
    checked_at = excluded.checked_at`

func (d *Database) UpsertRecord(ctx context.Context, r Record) error {
	_, err := d.db.ExecContext(
		ctx, upsertRecord,
		r.Path, r.Algorithm, r.Digest, r.Size, r.ModTime.UnixNano(), r.CheckedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("could not upsert record '%s': %w", r.Path, err)
	}
	return nil
}

// UpsertRecords writes all records in a single transaction.
func (d *Database) UpsertRecords(ctx context.Context, records []Record) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("could not begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, upsertRecord)
	if err != nil {
		return fmt.Errorf("could not prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, r := range records {
		_, err = stmt.ExecContext(
			ctx, r.Path, r.Algorithm, r.Digest, r.Size, r.ModTime.UnixNano(), r.CheckedAt.UnixNano(),
		)
		if err != nil {
			return fmt.Errorf("could not upsert record '%s': %w", r.Path, err)
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("could not commit records: %w", err)
	}
	return nil
}

func (d *Database) GetRecord(ctx context.Context, path string) (Record, error) {
	row := d.db.QueryRowContext(
		ctx,
		`SELECT path, algorithm, digest, size, mod_time, checked_at FROM records WHERE path = ?`,
		path,
	)
	r, err := scanRecord(row)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return Record{}, fmt.Errorf("%w: '%s'", ErrNotFound, path)
	case err != nil:
		return Record{}, fmt.Errorf("could not get record '%s': %w", path, err)
	}
	return r, nil
}

// ListRecords returns all records whose path lies under prefix, ordered by
// path. An empty prefix lists everything.
func (d *Database) ListRecords(ctx context.Context, prefix string) ([]Record, error) {
	query := `SELECT path, algorithm, digest, size, mod_time, checked_at FROM records`
	var args []any
	if prefix != "" {
		// children of dir sort between "dir/" and "dir0" since '0' follows '/'
		dir := strings.TrimSuffix(prefix, "/")
		query += ` WHERE path = ? OR (path >= ? AND path < ?)`
		args = append(args, dir, dir+"/", dir+"0")
	}
	query += ` ORDER BY path`

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("could not list records: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("could not scan record: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

func (d *Database) DeleteRecord(ctx context.Context, path string) error {
	_, err := d.db.ExecContext(ctx, `DELETE FROM records WHERE path = ?`, path)
	if err != nil {
		return fmt.Errorf("could not delete record '%s': %w", path, err)
	}
	return nil
}

// DeleteRecordsUnder removes every record below dir and returns how many
// were deleted. A record for dir itself is kept.
func (d *Database) DeleteRecordsUnder(ctx context.Context, dir string) (int64, error) {
	dir = strings.TrimSuffix(dir, "/")
	res, err := d.db.ExecContext(
		ctx, `DELETE FROM records WHERE path >= ? AND path < ?`, dir+"/", dir+"0",
	)
	if err != nil {
		return 0, fmt.Errorf("could not delete records under '%s': %w", dir, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("could not count deleted records under '%s': %w", dir, err)
	}
	return n, nil
}

func (d *Database) CountRecords(ctx context.Context) (int64, error) {
	var n int64
	err := d.db.QueryRowContext(ctx, `SELECT count(*) FROM records`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("could not count records: %w", err)
	}
	return n, nil
}

// GetAuthToken returns the stored OAuth token, or "" if there is none.
func (d *Database) GetAuthToken(ctx context.Context) (string, error) {
	var token string
	err := d.db.QueryRowContext(ctx, `SELECT token FROM auth_token WHERE id = 1`).Scan(&token)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return "", nil
	case err != nil:
		return "", fmt.Errorf("could not get auth token: %w", err)
	}
	return token, nil
}

func (d *Database) UpdateAuthToken(ctx context.Context, token string) error {
	_, err := d.db.ExecContext(
		ctx,
		`INSERT INTO auth_token (id, token) VALUES (1, ?) ON CONFLICT (id) DO UPDATE SET token = excluded.token`,
		token,
	)
	if err != nil {
		return fmt.Errorf("could not update auth token: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (Record, error) {
	var (
		r                  Record
		modTime, checkedAt int64
	)
	err := row.Scan(&r.Path, &r.Algorithm, &r.Digest, &r.Size, &modTime, &checkedAt)
	if err != nil {
		return Record{}, err
	}
	r.ModTime = time.Unix(0, modTime)
	r.CheckedAt = time.Unix(0, checkedAt)
	return r, nil
}
