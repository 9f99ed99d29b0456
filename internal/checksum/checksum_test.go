package checksum

import (
	"bytes"
	"crypto/md5"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestChecksum(t *testing.T) {
	tests := []struct {
		name string
		do   func(*testing.T)
	}{
		{
			name: "md5 matches reference implementation",
			do: func(t *testing.T) {
				data := bytes.Repeat([]byte("checksum me "), 20000)
				path := fileWithContent(t, data)

				h, err := Checksum(path, md5.New())
				require.NoError(t, err)

				want := md5.Sum(data)
				require.Equal(t, want[:], h.Sum(nil))
			},
		},
		{
			name: "known md5 and sha256 vectors",
			do: func(t *testing.T) {
				path := fileWithContent(t, []byte("hello world"))

				got, err := Md5Sum(path)
				require.NoError(t, err)
				require.Equal(t, "5eb63bbbe01eeed093cb22bb8f5acdc3", got)

				got, err = Sha256Sum(path)
				require.NoError(t, err)
				require.Equal(t, "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9", got)
			},
		},
		{
			name: "sha512 matches reference implementation",
			do: func(t *testing.T) {
				data := []byte(strings.Repeat("x", DefaultBlockSize+17))
				path := fileWithContent(t, data)

				got, err := Sha512Sum(path)
				require.NoError(t, err)

				want := sha512.Sum512(data)
				require.Equal(t, hex.EncodeToString(want[:]), got)
			},
		},
		{
			name: "empty file",
			do: func(t *testing.T) {
				path := fileWithContent(t, nil)

				h, err := Checksum(path, md5.New())
				require.NoError(t, err)
				require.Equal(t, "d41d8cd98f00b204e9800998ecf8427e", HexDigest(h))
				require.Equal(t, "1B2M2Y8AsgTpgAmY7PhCfg==", B64Digest(h))
			},
		},
		{
			name: "repeated runs give the same digest",
			do: func(t *testing.T) {
				path := fileWithContent(t, []byte("stable content"))

				first, err := Sum(path, SHA256)
				require.NoError(t, err)
				second, err := Sum(path, SHA256)
				require.NoError(t, err)
				require.True(t, first.Equal(second))
				require.EqualValues(t, len("stable content"), first.Size)
			},
		},
		{
			name: "block size does not change digest",
			do: func(t *testing.T) {
				data := bytes.Repeat([]byte{0, 1, 2, 3, 4, 5, 6}, 1000)
				path := fileWithContent(t, data)
				want := sha256.Sum256(data)

				for _, bs := range []int{-1, 0, 1, 7, 4096, len(data), 10 * len(data)} {
					d, err := SumBlocks(path, SHA256, bs)
					require.NoError(t, err)
					require.Equal(t, want[:], d.Sum, "block size %d", bs)
				}
			},
		},
		{
			name: "b64digest is idempotent",
			do: func(t *testing.T) {
				path := fileWithContent(t, []byte("idempotent"))
				h, err := Checksum(path, sha256.New())
				require.NoError(t, err)

				first := B64Digest(h)
				require.Equal(t, first, B64Digest(h))
				require.Equal(t, first, B64Digest(h))
			},
		},
		{
			name: "hash accumulates across files",
			do: func(t *testing.T) {
				a := fileWithContent(t, []byte("part one,"))
				b := fileWithContent(t, []byte("part two"))

				h := md5.New()
				_, err := Checksum(a, h)
				require.NoError(t, err)
				_, err = Checksum(b, h)
				require.NoError(t, err)

				want := md5.Sum([]byte("part one,part two"))
				require.Equal(t, want[:], h.Sum(nil))
			},
		},
		{
			name: "missing file",
			do: func(t *testing.T) {
				_, err := Checksum(filepath.Join(t.TempDir(), "nope"), md5.New())
				require.ErrorIs(t, err, os.ErrNotExist)
			},
		},
		{
			name: "directory",
			do: func(t *testing.T) {
				_, err := Sum(t.TempDir(), SHA256)
				require.Error(t, err)
			},
		},
		{
			name: "unknown algorithm",
			do: func(t *testing.T) {
				path := fileWithContent(t, []byte("x"))
				_, err := Sum(path, Algorithm("crc1"))
				require.ErrorIs(t, err, ErrUnknownAlgorithm)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.do(t)
		})
	}
}

func TestEveryAlgorithmHashes(t *testing.T) {
	path := fileWithContent(t, []byte("all the algorithms"))
	for _, alg := range Algorithms() {
		t.Run(alg.String(), func(t *testing.T) {
			d, err := Sum(path, alg)
			require.NoError(t, err)
			require.Len(t, d.Sum, alg.Size())
		})
	}
}

func TestParseAlgorithm(t *testing.T) {
	tests := []struct {
		in      string
		want    Algorithm
		wantErr bool
	}{
		{in: "md5", want: MD5},
		{in: "SHA256", want: SHA256},
		{in: "sha-256", want: SHA256},
		{in: " sha2-512 ", want: SHA512},
		{in: "SHA3-256", want: SHA3_256},
		{in: "blake2b", want: BLAKE2b512},
		{in: "BLAKE2b", want: BLAKE2b512},
		{in: "blake2b-256", want: BLAKE2b256},
		{in: "BLAKE3", want: BLAKE3},
		{in: "crc32", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseAlgorithm(tt.in)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrUnknownAlgorithm)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func fileWithContent(t *testing.T, content []byte) string {
	f, err := os.CreateTemp(t.TempDir(), "checksum-*")
	require.NoError(t, err)
	_, err = f.Write(content)
	require.NoError(t, err)
	require.NoError(t, f.Close())
	return f.Name()
}
