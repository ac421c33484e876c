// Package crypto derives and checks the access hash of restricted videos.
//
// The hash is argon2id over the password with a salt bound to the video:
// a 16-byte unkeyed BLAKE2b digest of "salt$" + uuid + "$" + password + "$salt".
// Parameters match libsodium's interactive preset so hashes produced by the
// upload tool verify here.
package crypto

import (
	"crypto/subtle"
	"encoding/hex"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/blake2b"
)

const (
	saltBytes = 16
	keyBytes  = 32

	argonTime    = 2
	argonMemory  = 64 * 1024 // KiB
	argonThreads = 1
)

func deriveSalt(uuid, password string) []byte {
	h, err := blake2b.New(saltBytes, nil)
	if err != nil {
		// only fails for invalid size or key length
		panic(err)
	}
	h.Write([]byte("salt$"))
	h.Write([]byte(uuid))
	h.Write([]byte("$"))
	h.Write([]byte(password))
	h.Write([]byte("$salt"))
	return h.Sum(nil)
}

// RestrictedHash returns the lower-case hex access hash for uuid and password.
func RestrictedHash(uuid, password string) string {
	salt := deriveSalt(uuid, password)
	key := argon2.IDKey([]byte(password), salt, argonTime, argonMemory, argonThreads, keyBytes)
	return hex.EncodeToString(key)
}

// VerifyHash reports whether candidate equals the stored hash. Comparison is
// case-insensitive and constant time for equal-length inputs.
func VerifyHash(stored, candidate string) bool {
	if stored == "" || candidate == "" {
		return false
	}
	a := []byte(strings.ToLower(stored))
	b := []byte(strings.ToLower(candidate))
	return subtle.ConstantTimeCompare(a, b) == 1
}
