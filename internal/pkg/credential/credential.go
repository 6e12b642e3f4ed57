// Package credential generates one-time codes and approval tokens from crypto/rand.
package credential

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"math/big"
)

const (
	upper  = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	lower  = "abcdefghijklmnopqrstuvwxyz"
	digits = "0123456789"

	// OTPLength is the number of digits in every numeric OTP.
	OTPLength = 6

	approvalTokenBytes = 32
)

// Numeric returns a code of length digits, each drawn uniformly from 0-9.
func Numeric(length int) (string, error) {
	if length < 1 {
		return "", fmt.Errorf("numeric code length must be positive, got %d", length)
	}
	return draw(length, func(int) string { return digits })
}

// Alphanumeric returns a code made of triplets repetitions of
// {uppercase letter, lowercase letter, digit}.
func Alphanumeric(triplets int) (string, error) {
	if triplets < 1 {
		return "", fmt.Errorf("alphanumeric triplets must be positive, got %d", triplets)
	}
	alphabets := [3]string{upper, lower, digits}
	return draw(triplets*3, func(i int) string { return alphabets[i%3] })
}

// ApprovalToken returns a URL-safe opaque token carrying 256 bits of entropy.
func ApprovalToken() (string, error) {
	b := make([]byte, approvalTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate approval token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func draw(n int, alphabetAt func(i int) string) (string, error) {
	b := make([]byte, n)
	for i := range b {
		alphabet := alphabetAt(i)
		idx, err := rand.Int(rand.Reader, big.NewInt(int64(len(alphabet))))
		if err != nil {
			return "", fmt.Errorf("generate code: %w", err)
		}
		b[i] = alphabet[idx.Int64()]
	}
	return string(b), nil
}
