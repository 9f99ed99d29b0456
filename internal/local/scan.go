package local

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/torfstack/chksum/internal/checksum"
	"github.com/torfstack/chksum/internal/logging"
	"github.com/torfstack/chksum/internal/util"
)

const DefaultWorkers = 4

// FileSum is the digest of a regular file together with the metadata it was
// computed from.
type FileSum struct {
	Path    string
	Size    int64
	ModTime time.Time
	Digest  checksum.Digest
}

type ScanOptions struct {
	Algorithm checksum.Algorithm
	BlockSize int
	Workers   int
	Ignore    []string
}

// FileError is a file or directory below the scan root that exists but could
// not be read.
type FileError struct {
	Path string
	Err  error
}

func (e FileError) Error() string {
	return e.Err.Error()
}

func (e FileError) Unwrap() error {
	return e.Err
}

type ScanResult struct {
	Files  []FileSum
	Failed []FileError
}

// hashFile is swapped out in tests to simulate unreadable files.
var hashFile = HashFile

// Scan checksums every regular file below root. Files that cannot be read
// are reported in ScanResult.Failed and do not abort the scan; the returned
// error is only set when the walk itself fails or ctx is cancelled.
func Scan(ctx context.Context, root string, opts ScanOptions) (*ScanResult, error) {
	opts = opts.withDefaults()
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("could not resolve root '%s': %w", root, err)
	}

	jobs := make(chan string)
	results := make(chan FileSum)
	errs := util.NewSyncSlice[FileError]()
	var wg sync.WaitGroup

	logging.Debugf("Starting %d hashing workers for '%s'", opts.Workers, root)
	for i := 0; i < opts.Workers; i++ {
		wg.Go(
			func() {
				for path := range jobs {
					sum, errGo := hashFile(path, opts.Algorithm, opts.BlockSize)
					if errGo != nil {
						logging.Debugf("Skipping: could not hash file '%s': %s", path, errGo)
						errs.Add(FileError{Path: path, Err: errGo})
						continue
					}
					results <- sum
				}
			},
		)
	}

	var walkErr error
	go func() {
		walkErr = enqueueFiles(ctx, root, opts.Ignore, jobs, errs)
		close(jobs)
		logging.Debug("Finished enqueueing hash jobs")
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	files := make([]FileSum, 0)
	for sum := range results {
		files = append(files, sum)
	}
	// results is closed only after the enqueueing goroutine closed jobs
	if walkErr != nil {
		return nil, walkErr
	}

	slices.SortFunc(files, func(a, b FileSum) int { return strings.Compare(a.Path, b.Path) })
	logging.Debugf("Hashed %d files below '%s', %d failed", len(files), root, errs.Len())
	return &ScanResult{Files: files, Failed: errs.Items()}, nil
}

func enqueueFiles(ctx context.Context, root string, ignore []string, jobs chan<- string, errs *util.SyncSlice[FileError]) error {
	return walkFiles(ctx, root, ignore, errs, func(path string) error {
		select {
		case jobs <- path:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})
}

// ListFiles returns the absolute paths of all regular, non-ignored files
// below root in lexical order, without hashing them.
func ListFiles(ctx context.Context, root string, ignore []string) ([]string, error) {
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("could not resolve root '%s': %w", root, err)
	}
	errs := util.NewSyncSlice[FileError]()
	var files []string
	err = walkFiles(ctx, root, ignore, errs, func(path string) error {
		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, err
	}
	for _, e := range errs.Items() {
		logging.Debugf("Skipping: %s", e)
	}
	return files, nil
}

func walkFiles(ctx context.Context, root string, ignore []string, errs *util.SyncSlice[FileError], fn func(string) error) error {
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			errs.Add(FileError{Path: path, Err: fmt.Errorf("could not walk '%s': %w", path, err)})
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if path != root && Ignored(d.Name(), ignore) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if err = ctx.Err(); err != nil {
			return err
		}
		return fn(path)
	})
	if err != nil {
		return fmt.Errorf("could not walk '%s': %w", root, err)
	}
	return nil
}

// HashFile stats and checksums a single regular file.
func HashFile(path string, alg checksum.Algorithm, blockSize int) (FileSum, error) {
	info, err := os.Stat(path)
	if err != nil {
		return FileSum{}, fmt.Errorf("could not stat '%s': %w", path, err)
	}
	if !info.Mode().IsRegular() {
		return FileSum{}, fmt.Errorf("'%s' is not a regular file", path)
	}
	d, err := checksum.SumBlocks(path, alg, blockSize)
	if err != nil {
		return FileSum{}, err
	}
	return FileSum{Path: path, Size: info.Size(), ModTime: info.ModTime(), Digest: d}, nil
}

// Ignored reports whether a base name matches any of the glob patterns.
func Ignored(name string, patterns []string) bool {
	for _, p := range patterns {
		if ok, _ := filepath.Match(p, name); ok {
			return true
		}
	}
	return false
}

func (o ScanOptions) withDefaults() ScanOptions {
	if o.Algorithm == "" {
		o.Algorithm = checksum.DefaultAlgorithm
	}
	if o.Workers < 1 {
		o.Workers = DefaultWorkers
	}
	return o
}
