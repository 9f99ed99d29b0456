package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/torfstack/chksum/internal/checksum"
	"github.com/torfstack/chksum/internal/logging"
	"github.com/torfstack/chksum/internal/manifest"
)

type CheckOptions struct {
	// Algorithm for GNU style lines; empty guesses from the digest length.
	Algorithm checksum.Algorithm
	// Quiet suppresses OK lines.
	Quiet bool
	// Strict fails on malformed manifest lines.
	Strict bool
}

// CheckManifest verifies every entry of the manifest at path and prints
// "path: STATUS" lines. It returns ErrVerificationFailed if anything did not
// match.
func (s *Service) CheckManifest(ctx context.Context, path string, opts CheckOptions) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("could not open manifest '%s': %w", path, err)
	}
	defer f.Close()

	entries, bad, err := manifest.Parse(f, opts.Algorithm)
	if err != nil {
		return err
	}
	for _, b := range bad {
		logging.Warnf("%s: improperly formatted checksum line %d", path, b.Line)
	}

	results, err := manifest.Check(ctx, entries, manifest.CheckOptions{
		BaseDir:   filepath.Dir(path),
		Workers:   s.cfg.Workers,
		BlockSize: s.cfg.BlockSize,
	})
	if err != nil {
		return err
	}

	for _, r := range results {
		if r.Status != manifest.StatusOK {
			if r.Err != nil {
				logging.Debugf("%s: %s", r.Entry.Path, r.Err)
			}
		} else if opts.Quiet {
			continue
		}
		if _, err = fmt.Fprintf(s.out, "%s: %s\n", r.Entry.Path, r.Status); err != nil {
			return err
		}
	}

	switch failed := manifest.Failed(results); {
	case failed > 0:
		return fmt.Errorf("%w: %d of %d computed checksums did not match", ErrVerificationFailed, failed, len(results))
	case opts.Strict && len(bad) > 0:
		return fmt.Errorf("%w: %d lines are improperly formatted", ErrVerificationFailed, len(bad))
	case len(entries) == 0:
		return fmt.Errorf("%w: no properly formatted checksum lines found in '%s'", ErrVerificationFailed, path)
	}
	return nil
}
