// Package ident generates the public identifiers secrets are stored under.
package ident

import (
	"fmt"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// Length keeps links short while leaving ~60 bits of entropy.
const Length = 10

// Alphabet is URL-safe, so ids go into paths without escaping.
const Alphabet = "_-0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

// Generate draws Length characters from Alphabet using crypto/rand.
// It does not check whether the id is already taken.
func Generate() (string, error) {
	id, err := gonanoid.Generate(Alphabet, Length)
	if err != nil {
		return "", fmt.Errorf("generate id: %w", err)
	}
	return id, nil
}

// Valid reports whether s could have come from Generate.
func Valid(s string) bool {
	if len(s) != Length {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !(c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c == '_' || c == '-') {
			return false
		}
	}
	return true
}
