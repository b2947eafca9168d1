package digest

import (
	"crypto/md5" //nolint:gosec // legacy RFC 3230 algorithm, gated by Registry
	"crypto/sha1" //nolint:gosec // legacy RFC 3230 algorithm, gated by Registry
	"crypto/sha256"
	"crypto/sha512"
	"fmt"
	"hash/adler32"
	"hash/crc32"
	"strings"
)

// Algorithm identifies a Digest header algorithm from the RFC 3230 Hypertext
// Transfer Protocol Digest Algorithm Values registry.
type Algorithm uint8

const (
	// AlgorithmUnknown is the zero value. It never resolves and cannot hash.
	AlgorithmUnknown Algorithm = iota

	// AlgorithmCRC32C is the CRC-32 checksum with the Castagnoli polynomial.
	AlgorithmCRC32C

	// AlgorithmSHA256 is SHA-256.
	AlgorithmSHA256

	// AlgorithmSHA512 is SHA-512.
	AlgorithmSHA512

	// AlgorithmUnixCksum is the checksum computed by the POSIX cksum utility.
	AlgorithmUnixCksum

	// AlgorithmUnixSum is the checksum computed by the BSD sum utility.
	AlgorithmUnixSum

	// AlgorithmAdler32 is Adler-32. Legacy.
	AlgorithmAdler32

	// AlgorithmMD5 is MD5. Legacy.
	AlgorithmMD5

	// AlgorithmSHA1 is SHA-1, registered under the name "sha". Legacy.
	AlgorithmSHA1
)

type algorithmInfo struct {
	name    string
	aliases []string
	legacy  bool
	hash    func(data []byte) Hash
}

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

var algorithms = [...]algorithmInfo{
	AlgorithmUnknown: {},
	AlgorithmCRC32C: {
		name: "crc32c",
		hash: func(data []byte) Hash { return HashNumber(crc32.Checksum(data, castagnoli)) },
	},
	AlgorithmSHA256: {
		name:    "sha-256",
		aliases: []string{"id-sha-256"},
		hash: func(data []byte) Hash {
			h := sha256.Sum256(data)
			return HashBytes(h[:])
		},
	},
	AlgorithmSHA512: {
		name:    "sha-512",
		aliases: []string{"id-sha-512"},
		hash: func(data []byte) Hash {
			h := sha512.Sum512(data)
			return HashBytes(h[:])
		},
	},
	AlgorithmUnixCksum: {
		name: "unixcksum",
		hash: func(data []byte) Hash { return HashNumber(unixCksum(data)) },
	},
	AlgorithmUnixSum: {
		name: "unixsum",
		hash: func(data []byte) Hash { return HashNumber(unixSum(data)) },
	},
	AlgorithmAdler32: {
		name:   "adler32",
		legacy: true,
		hash:   func(data []byte) Hash { return HashNumber(adler32.Checksum(data)) },
	},
	AlgorithmMD5: {
		name:   "md5",
		legacy: true,
		hash: func(data []byte) Hash {
			h := md5.Sum(data)
			return HashBytes(h[:])
		},
	},
	AlgorithmSHA1: {
		name:   "sha",
		legacy: true,
		hash: func(data []byte) Hash {
			h := sha1.Sum(data)
			return HashBytes(h[:])
		},
	},
}

func (a Algorithm) info() (algorithmInfo, bool) {
	if a == AlgorithmUnknown || int(a) >= len(algorithms) {
		return algorithmInfo{}, false
	}

	return algorithms[a], true
}

// String returns the canonical lower-case name written into Digest header
// entries.
func (a Algorithm) String() string {
	info, ok := a.info()
	if !ok {
		return fmt.Sprintf("Algorithm(%d)", uint8(a))
	}

	return info.name
}

// Legacy reports whether the algorithm belongs to the legacy set that must be
// enabled explicitly.
func (a Algorithm) Legacy() bool {
	info, _ := a.info()
	return info.legacy
}

// Hash computes the digest of data.
//
// It returns ErrUnsupportedDigest for values outside the known set.
func (a Algorithm) Hash(data []byte) (Hash, error) {
	info, ok := a.info()
	if !ok || info.hash == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedDigest, a)
	}

	return info.hash(data), nil
}

func (a Algorithm) matches(ident string) bool {
	info, ok := a.info()
	if !ok {
		return false
	}

	if strings.EqualFold(info.name, ident) {
		return true
	}

	for _, alias := range info.aliases {
		if strings.EqualFold(alias, ident) {
			return true
		}
	}

	return false
}
