package random

import (
	"crypto/rand"
	"math/big"
	"strings"
)

// Random provides random number generation that can be mocked for testing
type Random interface {
	// Intn returns a random int in [0, n)
	Intn(n int) int

	// String generates a random string of the given length from the given alphabet
	String(length int, alphabet string) string
}

// CryptoRandom implements Random using crypto/rand
type CryptoRandom struct{}

// New creates a new CryptoRandom
func New() *CryptoRandom {
	return &CryptoRandom{}
}

// Intn returns a uniformly distributed int in [0, n)
func (r *CryptoRandom) Intn(n int) int {
	if n <= 0 {
		return 0
	}
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		// crypto/rand only fails if the OS entropy source is broken
		return 0
	}
	return int(v.Int64())
}

// String draws each character independently and uniformly from alphabet
func (r *CryptoRandom) String(length int, alphabet string) string {
	if length <= 0 || alphabet == "" {
		return ""
	}
	var b strings.Builder
	b.Grow(length)
	for range length {
		b.WriteByte(alphabet[r.Intn(len(alphabet))])
	}
	return b.String()
}
