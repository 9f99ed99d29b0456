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

type SumOptions struct {
	Algorithm checksum.Algorithm
	Format    checksum.Format
	// Tag selects BSD style "ALG (path) = digest" lines.
	Tag bool
}

// SumFiles prints one checksum line per path. "-" reads standard input.
// Unreadable paths are logged and reported in the returned error after all
// other paths were processed.
func (s *Service) SumFiles(ctx context.Context, paths []string, opts SumOptions) error {
	if opts.Algorithm == "" {
		opts.Algorithm = s.cfg.HashAlgorithm()
	}
	if opts.Format == "" {
		opts.Format = s.cfg.DigestFormat()
	}
	if len(paths) == 0 {
		paths = []string{"-"}
	}

	failed := 0
	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return err
		}
		d, err := s.sumPath(p, opts.Algorithm)
		if err != nil {
			logging.Error(fmt.Sprintf("could not checksum '%s'", p), err)
			failed++
			continue
		}
		if err = s.printSum(p, d, opts); err != nil {
			return err
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d files could not be checksummed", failed, len(paths))
	}
	return nil
}

func (s *Service) sumPath(path string, alg checksum.Algorithm) (checksum.Digest, error) {
	if path != "-" {
		return checksum.SumBlocks(path, alg, s.cfg.BlockSize)
	}
	h, err := alg.New()
	if err != nil {
		return checksum.Digest{}, err
	}
	n, err := checksum.ChecksumReader(os.Stdin, h, s.cfg.BlockSize)
	if err != nil {
		return checksum.Digest{}, fmt.Errorf("could not read standard input: %w", err)
	}
	return checksum.Digest{Algorithm: alg, Sum: h.Sum(nil), Size: n}, nil
}

func (s *Service) printSum(path string, d checksum.Digest, opts SumOptions) error {
	if opts.Format == checksum.FormatHex {
		style := manifest.StyleGNU
		if opts.Tag {
			style = manifest.StyleBSD
		}
		return manifest.Write(s.out, []manifest.Entry{{Path: path, Digest: d}}, style)
	}

	enc, err := d.Encode(opts.Format)
	if err != nil {
		return err
	}
	if opts.Tag {
		_, err = fmt.Fprintf(s.out, "%s (%s) = %s\n", d.Algorithm.Tag(), path, enc)
	} else {
		_, err = fmt.Fprintf(s.out, "%s  %s\n", enc, path)
	}
	return err
}

// WriteManifest scans root and writes a manifest with paths relative to root.
func (s *Service) WriteManifest(ctx context.Context, root string, tag bool) error {
	res, err := s.scan(ctx, root, s.scanOptions())
	if err != nil {
		return err
	}
	for _, e := range res.Failed {
		logging.Error("skipped file", e)
	}

	abs, err := filepath.Abs(root)
	if err != nil {
		return err
	}
	entries := make([]manifest.Entry, 0, len(res.Files))
	for _, f := range res.Files {
		rel, err := filepath.Rel(abs, f.Path)
		if err != nil {
			return err
		}
		entries = append(entries, manifest.Entry{Path: filepath.ToSlash(rel), Digest: f.Digest})
	}
	style := manifest.StyleGNU
	if tag {
		style = manifest.StyleBSD
	}
	return manifest.Write(s.out, entries, style)
}
