// Package fingerprint derives the soft per-device identifier that
// scopes votes to one per user per message.
//
// The fingerprint is not an authentication mechanism: it hashes
// whatever stable traits the host environment can offer (user agent,
// screen size, timezone, a stored random seed) into a short opaque
// token. Two devices colliding is acceptable; the token only keys the
// local votes map and the remote vote rows.
package fingerprint

import (
	"encoding/hex"

	"golang.org/x/crypto/blake2b"
)

// Size is the number of fingerprint bytes kept after hashing.
const Size = 8

// Derive hashes the given device traits into a hex fingerprint.
// Trait order matters; callers should pass traits in a fixed order.
func Derive(traits ...string) string {
	h, _ := blake2b.New256(nil)
	for _, t := range traits {
		h.Write([]byte(t))
		h.Write([]byte{0}) // separator so ("ab","c") != ("a","bc")
	}
	sum := h.Sum(nil)
	return hex.EncodeToString(sum[:Size])
}
