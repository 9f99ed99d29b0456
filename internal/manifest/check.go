package manifest

import (
	"context"
	"errors"
	"io/fs"
	"path/filepath"

	"github.com/torfstack/chksum/internal/checksum"
	"golang.org/x/sync/errgroup"
)

type Status string

const (
	StatusOK       Status = "OK"
	StatusMismatch Status = "FAILED"
	StatusMissing  Status = "MISSING"
	StatusError    Status = "ERROR"
)

type Result struct {
	Entry  Entry
	Status Status
	Actual checksum.Digest
	Err    error
}

type CheckOptions struct {
	// BaseDir resolves relative entry paths, usually the manifest's directory.
	BaseDir   string
	Workers   int
	BlockSize int
}

// Check recomputes the digest of every entry. Results are returned in entry
// order; only cancellation of ctx produces an error.
func Check(ctx context.Context, entries []Entry, opts CheckOptions) ([]Result, error) {
	results := make([]Result, len(entries))
	workers := opts.Workers
	if workers < 1 {
		workers = 1
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, e := range entries {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = checkEntry(e, opts)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

func checkEntry(e Entry, opts CheckOptions) Result {
	path := e.Path
	if !filepath.IsAbs(path) && opts.BaseDir != "" {
		path = filepath.Join(opts.BaseDir, path)
	}
	actual, err := checksum.SumBlocks(path, e.Digest.Algorithm, opts.BlockSize)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return Result{Entry: e, Status: StatusMissing, Err: err}
	case err != nil:
		return Result{Entry: e, Status: StatusError, Err: err}
	case !actual.Equal(e.Digest):
		return Result{Entry: e, Status: StatusMismatch, Actual: actual}
	}
	return Result{Entry: e, Status: StatusOK, Actual: actual}
}

// Failed counts the results that are not OK.
func Failed(results []Result) int {
	n := 0
	for _, r := range results {
		if r.Status != StatusOK {
			n++
		}
	}
	return n
}
