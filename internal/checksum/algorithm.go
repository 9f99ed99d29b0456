package checksum

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"errors"
	"fmt"
	"hash"
	"slices"
	"strings"

	"github.com/multiformats/go-multihash"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/sha3"
	"lukechampine.com/blake3"
)

var ErrUnknownAlgorithm = errors.New("unknown checksum algorithm")

type Algorithm string

const (
	MD5        Algorithm = "md5"
	SHA1       Algorithm = "sha1"
	SHA256     Algorithm = "sha256"
	SHA512     Algorithm = "sha512"
	SHA3_256   Algorithm = "sha3-256"
	SHA3_512   Algorithm = "sha3-512"
	BLAKE2b256 Algorithm = "blake2b-256"
	BLAKE2b512 Algorithm = "blake2b-512"
	BLAKE3     Algorithm = "blake3"

	DefaultAlgorithm = SHA256
)

type algorithmInfo struct {
	newHash       func() hash.Hash
	multihashCode uint64
	size          int
}

var algorithms = map[Algorithm]algorithmInfo{
	MD5:      {md5.New, multihash.MD5, md5.Size},
	SHA1:     {sha1.New, multihash.SHA1, sha1.Size},
	SHA256:   {sha256.New, multihash.SHA2_256, sha256.Size},
	SHA512:   {sha512.New, multihash.SHA2_512, sha512.Size},
	SHA3_256: {func() hash.Hash { return sha3.New256() }, multihash.SHA3_256, 32},
	SHA3_512: {func() hash.Hash { return sha3.New512() }, multihash.SHA3_512, 64},
	BLAKE2b256: {
		func() hash.Hash {
			// only fails for keys longer than 64 bytes
			h, _ := blake2b.New256(nil)
			return h
		},
		multihash.BLAKE2B_MIN + 31,
		blake2b.Size256,
	},
	BLAKE2b512: {
		func() hash.Hash {
			h, _ := blake2b.New512(nil)
			return h
		},
		multihash.BLAKE2B_MAX,
		blake2b.Size,
	},
	BLAKE3: {
		func() hash.Hash { return blake3.New(32, nil) },
		multihash.BLAKE3,
		32,
	},
}

var aliases = map[string]Algorithm{
	"md-5":       MD5,
	"sha-1":      SHA1,
	"sha-256":    SHA256,
	"sha2-256":   SHA256,
	"sha-512":    SHA512,
	"sha2-512":   SHA512,
	"sha3_256":   SHA3_256,
	"sha3_512":   SHA3_512,
	// b2sum defaults to 512 bits and tags its lines "BLAKE2b"
	"blake2b":    BLAKE2b512,
	"blake2b256": BLAKE2b256,
	"blake2b512": BLAKE2b512,
}

// ParseAlgorithm resolves a user supplied algorithm name. Matching is case
// insensitive and accepts a few common spellings such as "SHA-256".
func ParseAlgorithm(name string) (Algorithm, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	if _, ok := algorithms[Algorithm(n)]; ok {
		return Algorithm(n), nil
	}
	if a, ok := aliases[n]; ok {
		return a, nil
	}
	return "", fmt.Errorf("%w: '%s'", ErrUnknownAlgorithm, name)
}

func Algorithms() []Algorithm {
	all := make([]Algorithm, 0, len(algorithms))
	for a := range algorithms {
		all = append(all, a)
	}
	slices.Sort(all)
	return all
}

func (a Algorithm) New() (hash.Hash, error) {
	info, ok := algorithms[a]
	if !ok {
		return nil, fmt.Errorf("%w: '%s'", ErrUnknownAlgorithm, a)
	}
	return info.newHash(), nil
}

// Size is the digest length in bytes, or 0 for unknown algorithms.
func (a Algorithm) Size() int {
	return algorithms[a].size
}

func (a Algorithm) multihashCode() (uint64, error) {
	info, ok := algorithms[a]
	if !ok {
		return 0, fmt.Errorf("%w: '%s'", ErrUnknownAlgorithm, a)
	}
	return info.multihashCode, nil
}

// Tag is the name used by BSD style checksum lines, e.g. "SHA256".
func (a Algorithm) Tag() string {
	if a == BLAKE2b512 {
		return "BLAKE2b"
	}
	return strings.ToUpper(string(a))
}

func (a Algorithm) String() string {
	return string(a)
}
