package codegen

import (
	"crypto/rand"
	"errors"
	"fmt"
)

const (
	// Upper is the alphabet of coupon, point coupon and referral codes.
	Upper  = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	Digits = "0123456789"
)

// ErrExhausted is returned when Unique could not find a free code.
var ErrExhausted = errors.New("could not generate a unique code")

// Generate creates a cryptographically secure random string over alphabet.
func Generate(length int, alphabet string) (string, error) {
	if length <= 0 {
		return "", fmt.Errorf("invalid code length: %d", length)
	}
	if len(alphabet) == 0 || len(alphabet) > 256 {
		return "", fmt.Errorf("invalid alphabet size: %d", len(alphabet))
	}

	// Rejection sampling to avoid modulo bias.
	maxRandomByte := 256 - (256 % len(alphabet))

	code := make([]byte, length)
	buf := make([]byte, length*2)
	written := 0

	for written < length {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("failed to read secure random bytes: %w", err)
		}

		for _, b := range buf {
			if int(b) >= maxRandomByte {
				continue
			}
			code[written] = alphabet[int(b)%len(alphabet)]
			written++
			if written == length {
				break
			}
		}
	}

	return string(code), nil
}

// Code returns an upper case alphanumeric code.
func Code(length int) (string, error) {
	return Generate(length, Upper)
}

// Numeric returns a code made of digits, used for verification codes.
func Numeric(length int) (string, error) {
	return Generate(length, Digits)
}

// Unique draws codes until exists reports a free one.
func Unique(length int, exists func(code string) (bool, error)) (string, error) {
	for attempt := 0; attempt < 10; attempt++ {
		code, err := Code(length)
		if err != nil {
			return "", err
		}
		taken, err := exists(code)
		if err != nil {
			return "", err
		}
		if !taken {
			return code, nil
		}
	}
	return "", ErrExhausted
}
