package hashcache

import (
	"encoding/hex"
	"hash/crc32"

	"lukechampine.com/blake3"
)

// AlgoCRC32 is the default content-hash algorithm (spec.md §4.3). CRC32 is
// computed with the standard library because it names a fixed checksum,
// not a pluggable ecosystem concern — see DESIGN.md.
const AlgoCRC32 = "crc32"

// AlgoBlake3 is a second registered algorithm (SPEC_FULL.md §4.3),
// exercising the teacher's content-addressing hash library for callers
// that want a cryptographic digest instead of a fast checksum.
const AlgoBlake3 = "blake3"

// HashFunc computes a hex-encoded digest of data.
type HashFunc func(data []byte) string

// algorithms is the registry of named hash functions HashCache accepts.
// Additional algorithms can be added here without touching callers.
var algorithms = map[string]HashFunc{
	AlgoCRC32: func(data []byte) string {
		sum := crc32.ChecksumIEEE(data)
		return hex.EncodeToString([]byte{
			byte(sum >> 24), byte(sum >> 16), byte(sum >> 8), byte(sum),
		})
	},
	AlgoBlake3: func(data []byte) string {
		sum := blake3.Sum256(data)
		return hex.EncodeToString(sum[:])
	},
}

// Compute hashes data with the named algorithm. Unknown algorithms fall
// back to AlgoCRC32.
func Compute(algorithm string, data []byte) string {
	fn, ok := algorithms[algorithm]
	if !ok {
		fn = algorithms[AlgoCRC32]
	}
	return fn(data)
}
