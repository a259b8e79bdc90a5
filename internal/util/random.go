// Package util provides small shared helpers for the loan status agent.
package util

import (
	"math/rand"
	"strings"
)

// GenerateRandomDigits generates a random numeric string of the specified
// length. Uses math/rand/v2; the output is an identifier, not a secret.
func GenerateRandomDigits(length int) string {
	if length <= 0 {
		return ""
	}

	const digits = "0123456789"
	var builder strings.Builder
	builder.Grow(length)

	for i := 0; i < length; i++ {
		builder.WriteByte(digits[rand.Intn(len(digits))])
	}

	return builder.String()
}
