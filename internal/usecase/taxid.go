package usecase

import (
	"strings"

	domainErrors "github.com/polkiloo/loyaltyledger/internal/domain/errors"
)

const taxIDLength = 11

// TaxIDPolicy decides which tax IDs awards and migrations accept.
// CPF check digits are verified only when CheckDigits is set.
type TaxIDPolicy struct {
	CheckDigits bool
}

// Normalize strips punctuation and validates the result.
func (p TaxIDPolicy) Normalize(taxID string) (string, error) {
	taxID = NormalizeTaxID(taxID)
	valid := ValidTaxIDFormat(taxID)
	if p.CheckDigits {
		valid = ValidateTaxID(taxID)
	}
	if !valid {
		return "", domainErrors.ErrInvalidTaxID
	}
	return taxID, nil
}

// NormalizeTaxID strips the usual CPF punctuation.
func NormalizeTaxID(taxID string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '-', '/', ' ':
			return -1
		}
		return r
	}, strings.TrimSpace(taxID))
}

// ValidTaxIDFormat reports whether taxID is exactly eleven ASCII digits.
func ValidTaxIDFormat(taxID string) bool {
	if len(taxID) != taxIDLength {
		return false
	}
	for i := 0; i < len(taxID); i++ {
		if taxID[i] < '0' || taxID[i] > '9' {
			return false
		}
	}
	return true
}

// ValidateTaxID checks a normalized CPF: eleven digits, not all equal, both check digits.
func ValidateTaxID(taxID string) bool {
	if !ValidTaxIDFormat(taxID) {
		return false
	}

	digits := make([]int, taxIDLength)
	same := true
	for i := range digits {
		digits[i] = int(taxID[i] - '0')
		if digits[i] != digits[0] {
			same = false
		}
	}
	if same {
		return false
	}

	return checkDigit(digits[:9]) == digits[9] && checkDigit(digits[:10]) == digits[10]
}

func checkDigit(digits []int) int {
	var sum int
	weight := len(digits) + 1
	for _, d := range digits {
		sum += d * weight
		weight--
	}
	rest := sum * 10 % 11
	if rest == 10 {
		return 0
	}
	return rest
}
