// Package crypto implements server-side password hashing and verification.
package crypto

import (
	"crypto/rand"
	"crypto/subtle"
	"errors"

	"golang.org/x/crypto/argon2"
)

// Params are Argon2id cost parameters.
type Params struct {
	Time    uint32 // iterations
	Memory  uint32 // KiB
	Threads uint8
	KeyLen  uint32
	SaltLen int
}

// DefaultParams are tuned for server-side hashing (64 MB, 3 passes).
var DefaultParams = Params{Time: 3, Memory: 64 * 1024, Threads: 1, KeyLen: 32, SaltLen: 16}

// RandBytes returns n cryptographically secure random bytes.
func RandBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	_, err := rand.Read(b)
	return b, err
}

// Hasher hashes and verifies passwords with fixed Argon2id parameters.
type Hasher struct {
	p         Params
	dummySalt []byte
	dummyHash []byte
}

// NewHasher validates params and prepares the dummy hash used by VerifyNone.
func NewHasher(p Params) (*Hasher, error) {
	if p.Time == 0 || p.Memory == 0 || p.Threads == 0 || p.KeyLen < 16 || p.SaltLen < 8 {
		return nil, errors.New("crypto: argon2 params too weak")
	}
	h := &Hasher{p: p}
	salt, err := RandBytes(p.SaltLen)
	if err != nil {
		return nil, err
	}
	h.dummySalt = salt
	h.dummyHash = h.derive([]byte("no such principal"), salt)
	return h, nil
}

func (h *Hasher) derive(password, salt []byte) []byte {
	return argon2.IDKey(password, salt, h.p.Time, h.p.Memory, h.p.Threads, h.p.KeyLen)
}

// Hash returns an Argon2id hash of password under a fresh random salt.
func (h *Hasher) Hash(password string) (hash, salt []byte, err error) {
	salt, err = RandBytes(h.p.SaltLen)
	if err != nil {
		return nil, nil, err
	}
	return h.derive([]byte(password), salt), salt, nil
}

// Verify reports whether password matches expected under salt, in constant time.
func (h *Hasher) Verify(password string, salt, expected []byte) bool {
	if len(salt) == 0 || len(expected) == 0 {
		return false
	}
	got := h.derive([]byte(password), salt)
	return subtle.ConstantTimeCompare(got, expected) == 1
}

// VerifyNone performs a verification that always fails, so a lookup miss costs
// the same as a wrong password.
func (h *Hasher) VerifyNone(password string) bool {
	_ = h.Verify(password, h.dummySalt, h.dummyHash)
	return false
}
