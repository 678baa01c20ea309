// Package base62 provides random base62 strings sourced from crypto/rand.
package base62

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

const charset = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

// Random generates a random base62 string of the given length.
func Random(length int) (string, error) {
	if length < 1 {
		return "", fmt.Errorf("length must be greater than zero")
	}
	max := big.NewInt(int64(len(charset)))
	out := make([]byte, length)
	for i := range out {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		out[i] = charset[n.Int64()]
	}
	return string(out), nil
}
