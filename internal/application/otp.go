package application

import (
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"math/big"
)

// OTPCodeLength is the number of digits in a delivered verification code.
const OTPCodeLength = 6

// GenerateOTPCode produces a uniformly random numeric code, zero-padded to
// OTPCodeLength digits.
func GenerateOTPCode() (string, error) {
	limit := big.NewInt(1)
	for i := 0; i < OTPCodeLength; i++ {
		limit.Mul(limit, big.NewInt(10))
	}
	n, err := rand.Int(rand.Reader, limit)
	if err != nil {
		return "", fmt.Errorf("failed to generate code: %w", err)
	}
	return fmt.Sprintf("%0*d", OTPCodeLength, n), nil
}

// codesMatch compares a stored code with a candidate without leaking the
// position of the first differing digit.
func codesMatch(stored, candidate string) bool {
	if len(stored) != len(candidate) || stored == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(stored), []byte(candidate)) == 1
}
