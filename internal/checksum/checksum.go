package checksum

import (
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"os"
)

const DefaultBlockSize = 64 * 1024

// Checksum feeds the contents of the file at path into h and returns h.
// The hash is not reset first, so several files can be accumulated into one
// digest by calling Checksum repeatedly with the same hash.
func Checksum(path string, h hash.Hash) (hash.Hash, error) {
	return ChecksumBlocks(path, h, DefaultBlockSize)
}

// ChecksumBlocks is Checksum with an explicit read block size.
func ChecksumBlocks(path string, h hash.Hash, blockSize int) (hash.Hash, error) {
	f, err := os.Open(path)
	if err != nil {
		return h, fmt.Errorf("could not open '%s' for checksumming: %w", path, err)
	}
	defer f.Close()

	if _, err = ChecksumReader(f, h, blockSize); err != nil {
		return h, fmt.Errorf("could not checksum '%s': %w", path, err)
	}
	return h, nil
}

// ChecksumReader copies r into h using reads of at most blockSize bytes and
// reports how many bytes were hashed. A blockSize <= 0 selects DefaultBlockSize.
func ChecksumReader(r io.Reader, h hash.Hash, blockSize int) (int64, error) {
	if blockSize <= 0 {
		blockSize = DefaultBlockSize
	}
	buf := make([]byte, blockSize)
	var total int64
	for {
		n, err := r.Read(buf)
		if n > 0 {
			// hash.Hash.Write never returns an error
			_, _ = h.Write(buf[:n])
			total += int64(n)
		}
		if err == io.EOF {
			return total, nil
		}
		if err != nil {
			return total, err
		}
	}
}

// Sum computes the digest of the file at path with a fresh hash for alg.
func Sum(path string, alg Algorithm) (Digest, error) {
	return SumBlocks(path, alg, DefaultBlockSize)
}

func SumBlocks(path string, alg Algorithm, blockSize int) (Digest, error) {
	h, err := alg.New()
	if err != nil {
		return Digest{}, err
	}
	f, err := os.Open(path)
	if err != nil {
		return Digest{}, fmt.Errorf("could not open '%s' for checksumming: %w", path, err)
	}
	defer f.Close()

	n, err := ChecksumReader(f, h, blockSize)
	if err != nil {
		return Digest{}, fmt.Errorf("could not checksum '%s': %w", path, err)
	}
	return Digest{Algorithm: alg, Sum: h.Sum(nil), Size: n}, nil
}

// HexDigest returns the lower-case hex encoding of the current digest of h.
func HexDigest(h hash.Hash) string {
	return hex.EncodeToString(h.Sum(nil))
}

// B64Digest returns the standard base64 encoding of the current digest of h.
// It does not change the state of h and can be called any number of times.
func B64Digest(h hash.Hash) string {
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

func Md5Sum(path string) (string, error) {
	return hexSum(path, MD5)
}

func Sha256Sum(path string) (string, error) {
	return hexSum(path, SHA256)
}

func Sha512Sum(path string) (string, error) {
	return hexSum(path, SHA512)
}

func hexSum(path string, alg Algorithm) (string, error) {
	d, err := Sum(path, alg)
	if err != nil {
		return "", err
	}
	return d.Hex(), nil
}
