package digest

import (
	"encoding/base64"
	"strconv"
)

// Hash is the output of an Algorithm. It is either HashBytes or HashNumber.
type Hash interface {
	// Encode renders the hash as it appears in a Digest header entry.
	Encode() string

	isHash()
}

// HashBytes is the output of a cryptographic or content hash.
type HashBytes []byte

// Encode returns the standard base64 encoding of the hash.
func (h HashBytes) Encode() string {
	return base64.StdEncoding.EncodeToString(h)
}

func (HashBytes) isHash() {}

// HashNumber is the output of a 32-bit checksum.
type HashNumber uint32

// Encode returns the hash as ASCII decimal.
func (h HashNumber) Encode() string {
	return strconv.FormatUint(uint64(h), 10)
}

func (HashNumber) isHash() {}
