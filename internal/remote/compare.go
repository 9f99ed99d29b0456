package remote

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/torfstack/chksum/internal/checksum"
	"github.com/torfstack/chksum/internal/logging"
)

type Status string

const (
	StatusOK           Status = "OK"
	StatusMismatch     Status = "MISMATCH"
	StatusMissingLocal Status = "MISSING"
	StatusNoChecksum   Status = "SKIPPED"
	StatusError        Status = "ERROR"
)

type Comparison struct {
	Remote    RemoteFile
	LocalPath string
	Status    Status
	Local     checksum.Digest
	Err       error
}

// Compare hashes the local counterpart of every remote file below localRoot
// and compares it with Drive's checksum, preferring SHA-256 over MD5.
// Results are ordered by remote path.
func Compare(ctx context.Context, files []RemoteFile, localRoot string, blockSize int) []Comparison {
	jobs := make(chan RemoteFile)
	results := make(chan Comparison)
	var wg sync.WaitGroup

	logging.Debug("Starting compare workers")
	for i := 0; i < NumWorkers; i++ {
		wg.Go(
			func() {
				for f := range jobs {
					results <- compareFile(f, localRoot, blockSize)
				}
			},
		)
	}
	go func() {
		defer close(jobs)
		for _, f := range files {
			select {
			case jobs <- f:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	comparisons := make([]Comparison, 0, len(files))
	for c := range results {
		comparisons = append(comparisons, c)
	}
	slices.SortFunc(comparisons, func(a, b Comparison) int { return strings.Compare(a.Remote.Path, b.Remote.Path) })
	return comparisons
}

func compareFile(f RemoteFile, localRoot string, blockSize int) Comparison {
	rel := filepath.FromSlash(f.Path)
	if !filepath.IsLocal(rel) {
		return Comparison{
			Remote: f,
			Status: StatusError,
			Err:    fmt.Errorf("remote path '%s' escapes the local root", f.Path),
		}
	}
	c := Comparison{Remote: f, LocalPath: filepath.Join(localRoot, rel)}
	if !f.HasChecksum() {
		c.Status = StatusNoChecksum
		return c
	}

	alg, want := checksum.SHA256, f.SHA256
	if want == "" {
		alg, want = checksum.MD5, f.MD5
	}
	expected, err := checksum.Decode(alg, checksum.FormatHex, want)
	if err != nil {
		c.Status, c.Err = StatusError, err
		return c
	}

	c.Local, err = checksum.SumBlocks(c.LocalPath, alg, blockSize)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		c.Status = StatusMissingLocal
	case err != nil:
		c.Status, c.Err = StatusError, err
	case c.Local.Equal(expected):
		c.Status = StatusOK
	default:
		c.Status = StatusMismatch
	}
	return c
}
