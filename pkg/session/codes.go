package session

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// CodeAlphabet omits characters that are easy to confuse: 0/O, 1/I/L
const CodeAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

// DefaultCodeLength is the length of generated session codes
const DefaultCodeLength = 6

const maxCodeAttempts = 64

// generateCode returns a random code of length n for which taken is false
func generateCode(n int, taken func(string) bool) (string, error) {
	if n <= 0 {
		n = DefaultCodeLength
	}
	max := big.NewInt(int64(len(CodeAlphabet)))
	buf := make([]byte, n)
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		for i := range buf {
			v, err := rand.Int(rand.Reader, max)
			if err != nil {
				return "", fmt.Errorf("failed to generate session code: %w", err)
			}
			buf[i] = CodeAlphabet[v.Int64()]
		}
		if code := string(buf); !taken(code) {
			return code, nil
		}
	}
	return "", fmt.Errorf("no free session code after %d attempts", maxCodeAttempts)
}
