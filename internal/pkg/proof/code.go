package proof

import (
	"crypto/rand"
	"fmt"
	"io"
	"strings"

	"lukechampine.com/blake3"
)

const (
	codeAlphabet   = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	prefixAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ"
	prefixLen      = 4
	suffixLen      = 8
)

// Generator produces human-typable verification codes shaped XXXX-XXXXXXXX.
type Generator struct {
	random io.Reader
}

// NewGenerator returns a generator backed by crypto/rand.
func NewGenerator() *Generator {
	return &Generator{random: rand.Reader}
}

// StorePrefix derives the stable four-letter prefix of a store.
func StorePrefix(storeID string) string {
	sum := blake3.Sum256([]byte(storeID))
	var b strings.Builder
	for i := 0; i < prefixLen; i++ {
		b.WriteByte(prefixAlphabet[int(sum[i])%len(prefixAlphabet)])
	}
	return b.String()
}

// Generate returns a fresh code for the store. Uniqueness is enforced by storage.
func (g *Generator) Generate(storeID string) (string, error) {
	buf := make([]byte, suffixLen)
	if _, err := io.ReadFull(g.random, buf); err != nil {
		return "", fmt.Errorf("read random: %w", err)
	}
	suffix := make([]byte, suffixLen)
	for i, v := range buf {
		suffix[i] = codeAlphabet[int(v)%len(codeAlphabet)]
	}
	return StorePrefix(storeID) + "-" + string(suffix), nil
}

// Normalize uppercases a typed code and restores the separator.
func Normalize(code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	code = strings.NewReplacer(" ", "", "-", "").Replace(code)
	if len(code) != prefixLen+suffixLen {
		return code
	}
	return code[:prefixLen] + "-" + code[prefixLen:]
}

// ValidFormat reports whether code has the expected shape and alphabet.
func ValidFormat(code string) bool {
	if len(code) != prefixLen+1+suffixLen || code[prefixLen] != '-' {
		return false
	}
	for i, r := range code {
		switch {
		case i == prefixLen:
			continue
		case i < prefixLen && !strings.ContainsRune(prefixAlphabet, r):
			return false
		case i > prefixLen && !strings.ContainsRune(codeAlphabet, r):
			return false
		}
	}
	return true
}
