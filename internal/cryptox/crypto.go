// Package cryptox derives and checks salted password hashes.
package cryptox

import (
	"context"
	"crypto/subtle"

	"github.com/dmitrijs2005/gophbank/internal/common"
	"golang.org/x/crypto/argon2"
	"golang.org/x/sync/semaphore"
)

// SaltSize is the length of every generated salt, in bytes.
const SaltSize = 16

// Params tunes argon2id. Changing them invalidates stored hashes.
type Params struct {
	Time      uint32
	MemoryKiB uint32
	Threads   uint8
	KeyLen    uint32
}

// DefaultParams are the production settings: one pass over 64 MiB.
var DefaultParams = Params{Time: 1, MemoryKiB: 64 * 1024, Threads: 4, KeyLen: 32}

// Hasher turns a password and salt into an opaque hash.
type Hasher interface {
	Hash(password, salt []byte) []byte
}

// Argon2Hasher implements Hasher with argon2id.
type Argon2Hasher struct {
	Params Params
}

func NewArgon2Hasher(p Params) *Argon2Hasher {
	return &Argon2Hasher{Params: p}
}

func (h *Argon2Hasher) Hash(password, salt []byte) []byte {
	p := h.Params
	return argon2.IDKey(password, salt, p.Time, p.MemoryKiB, p.Threads, p.KeyLen)
}

// LimitedHasher runs at most n hashes of the wrapped Hasher at once; other
// callers wait their turn. With argon2 this bounds the memory held by
// concurrent logins to n times Params.MemoryKiB.
type LimitedHasher struct {
	h   Hasher
	sem *semaphore.Weighted
}

func NewLimitedHasher(h Hasher, n int64) *LimitedHasher {
	if n < 1 {
		n = 1
	}
	return &LimitedHasher{h: h, sem: semaphore.NewWeighted(n)}
}

func (l *LimitedHasher) Hash(password, salt []byte) []byte {
	// Acquire only fails on a done context.
	_ = l.sem.Acquire(context.Background(), 1)
	defer l.sem.Release(1)
	return l.h.Hash(password, salt)
}

// NewSalt returns SaltSize random bytes.
func NewSalt() []byte {
	return common.GenerateRandByteArray(SaltSize)
}

// Verify recomputes the hash for password and compares it with want in
// constant time.
func Verify(h Hasher, password, salt, want []byte) bool {
	got := h.Hash(password, salt)
	return subtle.ConstantTimeCompare(got, want) == 1
}
