package test

import (
	"fmt"
	"math/rand"
	"sync"
	"time"
)

const asciiLetters = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

var (
	rngMu sync.Mutex
	rng   = rand.New(rand.NewSource(time.Now().UnixNano()))
)

// RandomASCIIString returns a pseudo-random ASCII string within the provided bounds.
// When maxLen equals minLen the resulting string always has that exact length.
func RandomASCIIString(minLen, maxLen int) string {
	if minLen <= 0 {
		minLen = 1
	}
	if maxLen < minLen {
		maxLen = minLen
	}
	length := minLen
	if maxLen > minLen {
		length += randomIntn(maxLen - minLen + 1)
	}
	buf := make([]byte, length)
	for i := range buf {
		buf[i] = asciiLetters[randomIntn(len(asciiLetters))]
	}
	return string(buf)
}

// RandomTaxID returns a pseudo-random eleven digit tax ID with valid check digits.
func RandomTaxID() string {
	digits := make([]int, 9, 11)
	for {
		same := true
		for i := range digits {
			digits[i] = randomIntn(10)
			if digits[i] != digits[0] {
				same = false
			}
		}
		if !same {
			break
		}
	}
	digits = append(digits, taxCheckDigit(digits))
	digits = append(digits, taxCheckDigit(digits))

	out := ""
	for _, d := range digits {
		out += fmt.Sprint(d)
	}
	return out
}

func taxCheckDigit(digits []int) int {
	sum := 0
	weight := len(digits) + 1
	for _, d := range digits {
		sum += d * weight
		weight--
	}
	rem := sum * 10 % 11
	if rem == 10 {
		return 0
	}
	return rem
}

func randomIntn(n int) int {
	rngMu.Lock()
	defer rngMu.Unlock()
	return rng.Intn(n)
}
