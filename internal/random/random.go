// Package random provides identifier generation helpers.
package random

import (
	"crypto/rand"
	"encoding/hex"
)

// Hex returns n random bytes hex-encoded.
func Hex(n int) string {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		panic(err)
	}
	return hex.EncodeToString(buf)
}
