package db

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRecords(t *testing.T) {
	now := time.Unix(0, time.Now().UnixNano())
	tests := []struct {
		name string
		do   func(*testing.T, *Database)
	}{
		{
			name: "missing record",
			do: func(t *testing.T, d *Database) {
				_, err := d.GetRecord(t.Context(), "/nope")
				require.ErrorIs(t, err, ErrNotFound)
			},
		},
		{
			name: "upsert then get",
			do: func(t *testing.T, d *Database) {
				r := Record{Path: "/a/b", Algorithm: "sha256", Digest: "abc", Size: 3, ModTime: now, CheckedAt: now}
				require.NoError(t, d.UpsertRecord(t.Context(), r))

				got, err := d.GetRecord(t.Context(), "/a/b")
				require.NoError(t, err)
				require.Equal(t, r.Digest, got.Digest)
				require.Equal(t, r.Size, got.Size)
				require.True(t, r.ModTime.Equal(got.ModTime))
			},
		},
		{
			name: "upsert replaces",
			do: func(t *testing.T, d *Database) {
				r := Record{Path: "/a", Algorithm: "md5", Digest: "one", ModTime: now, CheckedAt: now}
				require.NoError(t, d.UpsertRecord(t.Context(), r))
				r.Digest = "two"
				require.NoError(t, d.UpsertRecord(t.Context(), r))

				got, err := d.GetRecord(t.Context(), "/a")
				require.NoError(t, err)
				require.Equal(t, "two", got.Digest)

				n, err := d.CountRecords(t.Context())
				require.NoError(t, err)
				require.EqualValues(t, 1, n)
			},
		},
		{
			name: "list by prefix",
			do: func(t *testing.T, d *Database) {
				require.NoError(t, d.UpsertRecords(t.Context(), []Record{
					{Path: "/data/x", Digest: "1", ModTime: now, CheckedAt: now},
					{Path: "/data/sub/y", Digest: "2", ModTime: now, CheckedAt: now},
					{Path: "/database/z", Digest: "3", ModTime: now, CheckedAt: now},
					{Path: "/other", Digest: "4", ModTime: now, CheckedAt: now},
				}))

				records, err := d.ListRecords(t.Context(), "/data")
				require.NoError(t, err)
				require.Len(t, records, 2)
				require.Equal(t, "/data/sub/y", records[0].Path)
				require.Equal(t, "/data/x", records[1].Path)

				all, err := d.ListRecords(t.Context(), "")
				require.NoError(t, err)
				require.Len(t, all, 4)
			},
		},
		{
			name: "delete everything under a directory",
			do: func(t *testing.T, d *Database) {
				require.NoError(t, d.UpsertRecords(t.Context(), []Record{
					{Path: "/data", Digest: "0", ModTime: now, CheckedAt: now},
					{Path: "/data/x", Digest: "1", ModTime: now, CheckedAt: now},
					{Path: "/data/sub/y", Digest: "2", ModTime: now, CheckedAt: now},
					{Path: "/database/z", Digest: "3", ModTime: now, CheckedAt: now},
				}))

				n, err := d.DeleteRecordsUnder(t.Context(), "/data/")
				require.NoError(t, err)
				require.EqualValues(t, 2, n)

				left, err := d.ListRecords(t.Context(), "")
				require.NoError(t, err)
				require.Len(t, left, 2)
				require.Equal(t, "/data", left[0].Path)
				require.Equal(t, "/database/z", left[1].Path)
			},
		},
		{
			name: "delete",
			do: func(t *testing.T, d *Database) {
				require.NoError(t, d.UpsertRecord(t.Context(), Record{Path: "/gone", ModTime: now, CheckedAt: now}))
				require.NoError(t, d.DeleteRecord(t.Context(), "/gone"))

				_, err := d.GetRecord(t.Context(), "/gone")
				require.ErrorIs(t, err, ErrNotFound)
			},
		},
		{
			name: "auth token",
			do: func(t *testing.T, d *Database) {
				tok, err := d.GetAuthToken(t.Context())
				require.NoError(t, err)
				require.Empty(t, tok)

				require.NoError(t, d.UpdateAuthToken(t.Context(), `{"access_token":"a"}`))
				require.NoError(t, d.UpdateAuthToken(t.Context(), `{"access_token":"b"}`))

				tok, err = d.GetAuthToken(t.Context())
				require.NoError(t, err)
				require.Equal(t, `{"access_token":"b"}`, tok)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := Open(t.Context(), filepath.Join(t.TempDir(), "test.sqlite"))
			require.NoError(t, err)
			t.Cleanup(func() { _ = d.Close() })
			tt.do(t, d)
		})
	}
}

func TestOpenTwiceKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "ledger.sqlite")
	d, err := Open(t.Context(), path)
	require.NoError(t, err)
	require.NoError(t, d.UpsertRecord(t.Context(), Record{Path: "/kept", Digest: "d"}))
	require.NoError(t, d.Close())

	d, err = Open(t.Context(), path)
	require.NoError(t, err)
	defer d.Close()
	got, err := d.GetRecord(t.Context(), "/kept")
	require.NoError(t, err)
	require.Equal(t, "d", got.Digest)
}
