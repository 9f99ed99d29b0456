// Package manifest reads, writes and verifies checksum list files in the
// formats produced by the coreutils *sum tools.
package manifest

import (
	"bufio"
	"encoding/hex"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/torfstack/chksum/internal/checksum"
)

type Style int

const (
	// StyleGNU is "<hex>  <path>", as written by sha256sum.
	StyleGNU Style = iota
	// StyleBSD is "SHA256 (<path>) = <hex>", as written by sha256sum --tag.
	StyleBSD
)

type Entry struct {
	Line   int
	Path   string
	Digest checksum.Digest
	Binary bool
}

type ParseError struct {
	Line int
	Text string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

var (
	gnuLine = regexp.MustCompile(`^(\\?)([0-9a-fA-F]+) ([ *])(.+)$`)
	bsdLine = regexp.MustCompile(`^(\\?)([A-Za-z0-9_-]+) \((.+)\) ?= ([0-9a-fA-F]+)$`)
)

// Parse reads a manifest. alg is used for GNU style lines; when it is empty
// the algorithm is guessed from the digest length. BSD style lines carry
// their own algorithm. Malformed lines are returned as ParseErrors and do
// not stop parsing.
func Parse(r io.Reader, alg checksum.Algorithm) ([]Entry, []*ParseError, error) {
	var (
		entries []Entry
		bad     []*ParseError
	)
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(text) == "" || strings.HasPrefix(text, "#") {
			continue
		}
		e, err := parseLine(text, alg)
		if err != nil {
			bad = append(bad, &ParseError{Line: line, Text: text, Err: err})
			continue
		}
		e.Line = line
		entries = append(entries, e)
	}
	if err := scanner.Err(); err != nil {
		return entries, bad, fmt.Errorf("could not read manifest: %w", err)
	}
	return entries, bad, nil
}

func parseLine(text string, alg checksum.Algorithm) (Entry, error) {
	if m := bsdLine.FindStringSubmatch(text); m != nil {
		a, err := checksum.ParseAlgorithm(m[2])
		if err != nil {
			return Entry{}, err
		}
		return newEntry(a, m[4], unescapeIf(m[1] != "", m[3]), true)
	}
	if m := gnuLine.FindStringSubmatch(text); m != nil {
		a := alg
		if a == "" {
			var err error
			if a, err = guessAlgorithm(m[2]); err != nil {
				return Entry{}, err
			}
		}
		return newEntry(a, m[2], unescapeIf(m[1] != "", m[4]), m[3] == "*")
	}
	return Entry{}, fmt.Errorf("not a checksum line")
}

func newEntry(alg checksum.Algorithm, hexDigest, path string, binary bool) (Entry, error) {
	d, err := checksum.Decode(alg, checksum.FormatHex, hexDigest)
	if err != nil {
		return Entry{}, err
	}
	return Entry{Path: path, Digest: d, Binary: binary}, nil
}

func guessAlgorithm(hexDigest string) (checksum.Algorithm, error) {
	switch len(hexDigest) / 2 {
	case 16:
		return checksum.MD5, nil
	case 20:
		return checksum.SHA1, nil
	case 32:
		return checksum.SHA256, nil
	case 64:
		return checksum.SHA512, nil
	}
	return "", fmt.Errorf("can not guess algorithm for %d hex digits", len(hexDigest))
}

// Write emits entries in the given style. Paths containing a backslash or a
// newline are escaped the way coreutils does it.
func Write(w io.Writer, entries []Entry, style Style) error {
	bw := bufio.NewWriter(w)
	for _, e := range entries {
		path, escaped := escape(e.Path)
		prefix := ""
		if escaped {
			prefix = `\`
		}
		digest := hex.EncodeToString(e.Digest.Sum)
		var err error
		switch style {
		case StyleBSD:
			_, err = fmt.Fprintf(bw, "%s%s (%s) = %s\n", prefix, e.Digest.Algorithm.Tag(), path, digest)
		default:
			mode := " "
			if e.Binary {
				mode = "*"
			}
			_, err = fmt.Fprintf(bw, "%s%s %s%s\n", prefix, digest, mode, path)
		}
		if err != nil {
			return fmt.Errorf("could not write manifest entry '%s': %w", e.Path, err)
		}
	}
	return bw.Flush()
}

func escape(path string) (string, bool) {
	if !strings.ContainsAny(path, "\\\n\r") {
		return path, false
	}
	r := strings.NewReplacer(`\`, `\\`, "\n", `\n`, "\r", `\r`)
	return r.Replace(path), true
}

func unescapeIf(escaped bool, path string) string {
	if !escaped {
		return path
	}
	var b strings.Builder
	for i := 0; i < len(path); i++ {
		c := path[i]
		if c == '\\' && i+1 < len(path) {
			i++
			switch path[i] {
			case 'n':
				b.WriteByte('\n')
			case 'r':
				b.WriteByte('\r')
			default:
				b.WriteByte(path[i])
			}
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}
