package checksum

import (
	"bytes"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
)

var ErrUnsupportedFormat = errors.New("unsupported digest format")

type Format string

const (
	FormatHex       Format = "hex"
	FormatBase64    Format = "base64"
	FormatMultihash Format = "multihash"
	FormatCID       Format = "cid"
)

func ParseFormat(name string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(name))); f {
	case FormatHex, FormatBase64, FormatMultihash, FormatCID:
		return f, nil
	case "b64":
		return FormatBase64, nil
	case "mh":
		return FormatMultihash, nil
	default:
		return "", fmt.Errorf("%w: '%s'", ErrUnsupportedFormat, name)
	}
}

// Digest is a finalized checksum together with the algorithm that produced it.
type Digest struct {
	Algorithm Algorithm
	Sum       []byte
	// Size is the number of bytes hashed, when known.
	Size int64
}

func (d Digest) Hex() string {
	return hex.EncodeToString(d.Sum)
}

func (d Digest) Base64() string {
	return base64.StdEncoding.EncodeToString(d.Sum)
}

func (d Digest) Equal(o Digest) bool {
	return d.Algorithm == o.Algorithm && bytes.Equal(d.Sum, o.Sum)
}

func (d Digest) Multihash() (multihash.Multihash, error) {
	code, err := d.Algorithm.multihashCode()
	if err != nil {
		return nil, err
	}
	mh, err := multihash.Encode(d.Sum, code)
	if err != nil {
		return nil, fmt.Errorf("could not encode %s multihash: %w", d.Algorithm, err)
	}
	return mh, nil
}

// Encode renders the digest in the given text format. Multihash output is
// base58btc; CID output is a CIDv1 with the raw codec.
func (d Digest) Encode(f Format) (string, error) {
	switch f {
	case FormatHex, "":
		return d.Hex(), nil
	case FormatBase64:
		return d.Base64(), nil
	case FormatMultihash:
		mh, err := d.Multihash()
		if err != nil {
			return "", err
		}
		return mh.B58String(), nil
	case FormatCID:
		mh, err := d.Multihash()
		if err != nil {
			return "", err
		}
		return cid.NewCidV1(cid.Raw, mh).String(), nil
	default:
		return "", fmt.Errorf("%w: '%s'", ErrUnsupportedFormat, f)
	}
}

// Decode parses text produced by Encode back into a Digest. For multihash and
// CID input the embedded hash function must match alg.
func Decode(alg Algorithm, f Format, text string) (Digest, error) {
	text = strings.TrimSpace(text)
	var (
		sum []byte
		err error
	)
	switch f {
	case FormatHex, "":
		sum, err = hex.DecodeString(strings.ToLower(text))
	case FormatBase64:
		sum, err = base64.StdEncoding.DecodeString(text)
	case FormatMultihash:
		var mh multihash.Multihash
		mh, err = multihash.FromB58String(text)
		if err == nil {
			sum, err = digestFromMultihash(alg, mh)
		}
	case FormatCID:
		var c cid.Cid
		c, err = cid.Decode(text)
		if err == nil {
			sum, err = digestFromMultihash(alg, c.Hash())
		}
	default:
		return Digest{}, fmt.Errorf("%w: '%s'", ErrUnsupportedFormat, f)
	}
	if err != nil {
		return Digest{}, fmt.Errorf("could not decode %s digest '%s': %w", f, text, err)
	}
	if size := alg.Size(); size != 0 && len(sum) != size {
		return Digest{}, fmt.Errorf("%s digest must be %d bytes, got %d", alg, size, len(sum))
	}
	return Digest{Algorithm: alg, Sum: sum}, nil
}

func digestFromMultihash(alg Algorithm, mh multihash.Multihash) ([]byte, error) {
	decoded, err := multihash.Decode(mh)
	if err != nil {
		return nil, err
	}
	code, err := alg.multihashCode()
	if err != nil {
		return nil, err
	}
	if decoded.Code != code {
		return nil, fmt.Errorf("multihash uses %s, expected %s", decoded.Name, alg)
	}
	return decoded.Digest, nil
}
