package rsyncchecksum

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/binary"
	"fmt"
	"hash"

	"github.com/cespare/xxhash/v2"
	"github.com/mmcloughlin/md4"
)

// Algorithm names negotiable during capability exchange (spec.md §4.2,
// §4.6). Their ranking is PreferenceOrder below, not the order listed here.
const (
	MD4     = "md4"
	MD5     = "md5"
	SHA1    = "sha1"
	SHA256  = "sha256"
	SHA512  = "sha512"
	XXHash64 = "xxh64"
	XXHash3  = "xxh3"
)

// PreferenceOrder lists algorithms from strongest to weakest, used by the
// capability negotiation in internal/session to pick the strongest
// mutually-supported digest.
var PreferenceOrder = []string{SHA512, SHA256, XXHash3, XXHash64, MD5, SHA1, MD4}

// Len returns the native digest length in bytes for algorithm name.
func Len(name string) int {
	switch name {
	case MD4, MD5:
		return 16
	case SHA1:
		return 20
	case SHA256:
		return 32
	case SHA512:
		return 64
	case XXHash64, XXHash3:
		return 8
	default:
		return 0
	}
}

// New constructs a hash.Hash for the named algorithm, seeded per rsync's
// convention: the 4-byte little-endian session checksum seed is written
// into the hash before any file data, for every algorithm except the
// un-seeded whole-file verification case callers achieve by passing seed 0.
//
// Corresponds to the teacher's inline use of github.com/mmcloughlin/md4 in
// internal/receiver/receiver.go ("h := md4.New(); binary.Write(h, ...,
// rt.Seed)"), generalized into a factory covering every algorithm
// spec.md §4.2 names.
func New(name string, seed int32) (hash.Hash, error) {
	h, err := newUnseeded(name)
	if err != nil {
		return nil, err
	}
	if seed != 0 {
		var buf [4]byte
		binary.LittleEndian.PutUint32(buf[:], uint32(seed))
		h.Write(buf[:])
	}
	return h, nil
}

func newUnseeded(name string) (hash.Hash, error) {
	switch name {
	case MD4:
		return md4.New(), nil
	case MD5:
		return md5.New(), nil
	case SHA1:
		return sha1.New(), nil
	case SHA256:
		return sha256.New(), nil
	case SHA512:
		return sha512.New(), nil
	case XXHash64:
		return xxhash.New(), nil
	case XXHash3:
		// No XXH3 implementation appears anywhere in the retrieval pack
		// (only xxhash v1/v2, which are XXH64); XXH3 negotiation is served
		// by the same xxhash.Digest keyed with a distinct seed-mixing
		// constant so the two negotiable names remain distinguishable on
		// the wire without fabricating a dependency. See DESIGN.md.
		d := xxhash.New()
		d.Write([]byte{0x58, 0x58, 0x48, 0x33}) // "XXH3" domain separator
		return d, nil
	default:
		return nil, fmt.Errorf("rsyncchecksum: unsupported algorithm %q", name)
	}
}

// Sum computes the seeded digest of buf in one call.
func Sum(name string, seed int32, buf []byte) ([]byte, error) {
	h, err := New(name, seed)
	if err != nil {
		return nil, err
	}
	h.Write(buf)
	return h.Sum(nil), nil
}

// Negotiate computes the intersection of two ordered capability lists and
// returns the strongest mutually-supported algorithm, per spec.md §4.2
// ("the receiver picks the strongest mutually supported algorithm").
func Negotiate(local, remote []string) (string, bool) {
	remoteSet := make(map[string]bool, len(remote))
	for _, r := range remote {
		remoteSet[r] = true
	}
	for _, name := range PreferenceOrder {
		inLocal := false
		for _, l := range local {
			if l == name {
				inLocal = true
				break
			}
		}
		if inLocal && remoteSet[name] {
			return name, true
		}
	}
	return "", false
}
