package util

import (
	"crypto/rand"
	"math/big"
)

const (
	idAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"
	idLength   = 15
)

// NewID returns a 15 character lowercase alphanumeric record id.
func NewID() string {
	return RandomString(idAlphabet, idLength)
}

// RandomString draws length characters uniformly from alphabet.
func RandomString(alphabet string, length int) string {
	out := make([]byte, length)
	max := big.NewInt(int64(len(alphabet)))
	for i := range out {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			panic("crypto/rand unavailable: " + err.Error())
		}
		out[i] = alphabet[n.Int64()]
	}
	return string(out)
}
