// internal/utils/crypto.go
package utils

import (
	"crypto/rand"
	"math/big"
)

const lookupCharset = "abcdefghijklmnopqrstuvwxyz0123456789"

// GenerateLookupSuffix returns the uniqueness suffix of a promotional price
// lookup key. Lower-case only, Stripe lookup keys are case sensitive.
func GenerateLookupSuffix() (string, error) {
	return randomFrom(lookupCharset, 10)
}

func randomFrom(charset string, length int) (string, error) {
	b := make([]byte, length)
	max := big.NewInt(int64(len(charset)))

	for i := range b {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b[i] = charset[n.Int64()]
	}

	return string(b), nil
}
