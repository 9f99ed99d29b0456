package checksum

import (
	"crypto/sha256"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDigestEncodeDecode(t *testing.T) {
	sum := sha256.Sum256([]byte("hello world"))
	d := Digest{Algorithm: SHA256, Sum: sum[:]}

	tests := []struct {
		format Format
		check  func(*testing.T, string)
	}{
		{
			format: FormatHex,
			check: func(t *testing.T, s string) {
				require.Equal(t, "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9", s)
			},
		},
		{
			format: FormatBase64,
			check: func(t *testing.T, s string) {
				require.Equal(t, "uU0nuZNNPgilLlLX2n2r+sSE7+N6U4DukIj3rOLvzek=", s)
			},
		},
		{
			format: FormatMultihash,
			check: func(t *testing.T, s string) {
				require.True(t, strings.HasPrefix(s, "Qm"), s)
			},
		},
		{
			format: FormatCID,
			check: func(t *testing.T, s string) {
				require.True(t, strings.HasPrefix(s, "bafkrei"), s)
			},
		},
	}
	for _, tt := range tests {
		t.Run(string(tt.format), func(t *testing.T) {
			s, err := d.Encode(tt.format)
			require.NoError(t, err)
			tt.check(t, s)

			back, err := Decode(SHA256, tt.format, s)
			require.NoError(t, err)
			require.True(t, d.Equal(back))
		})
	}
}

func TestDecodeRejects(t *testing.T) {
	sum := sha256.Sum256([]byte("x"))
	mh, err := Digest{Algorithm: SHA256, Sum: sum[:]}.Encode(FormatMultihash)
	require.NoError(t, err)

	tests := []struct {
		name   string
		alg    Algorithm
		format Format
		text   string
	}{
		{name: "bad hex", alg: SHA256, format: FormatHex, text: "zz"},
		{name: "wrong length", alg: SHA256, format: FormatHex, text: "abcd"},
		{name: "bad base64", alg: MD5, format: FormatBase64, text: "!!"},
		{name: "multihash of other algorithm", alg: SHA512, format: FormatMultihash, text: mh},
		{name: "unsupported format", alg: SHA256, format: Format("base32"), text: "aa"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.alg, tt.format, tt.text)
			require.Error(t, err)
		})
	}
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("B64")
	require.NoError(t, err)
	require.Equal(t, FormatBase64, f)

	f, err = ParseFormat("cid")
	require.NoError(t, err)
	require.Equal(t, FormatCID, f)

	_, err = ParseFormat("base32")
	require.ErrorIs(t, err, ErrUnsupportedFormat)
}
