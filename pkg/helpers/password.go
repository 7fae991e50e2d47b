package helpers

import (
	"crypto/rand"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
)

const (
	hashTime    uint32 = 3
	hashMemory  uint32 = 64 * 1024
	hashThreads uint8  = 2
	hashKeyLen  uint32 = 32
	hashSaltLen        = 16
)

// ErrMalformedHash indicates a stored hash that cannot be parsed. This is a
// data or configuration problem, never a routine authentication failure.
var ErrMalformedHash = errors.New("malformed password hash")

// NormalizePassword maps a plaintext of any length to a fixed-length textual
// form before the memory-hard hash sees it: SHA-512 over the UTF-8 bytes,
// base64 encoded. Must be applied identically at hashing and verification
// time or all authentication breaks.
func NormalizePassword(plaintext string) string {
	sum := sha512.Sum512([]byte(plaintext))
	return base64.StdEncoding.EncodeToString(sum[:])
}

// HashPassword returns an argon2id hash string including parameters and salt.
// The salt is fresh per call, so hashing the same input twice yields
// different strings.
func HashPassword(normalized string) (string, error) {
	salt := make([]byte, hashSaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}

	sum := argon2.IDKey([]byte(normalized), salt, hashTime, hashMemory, hashThreads, hashKeyLen)
	encodedSalt := base64.RawStdEncoding.EncodeToString(salt)
	encodedHash := base64.RawStdEncoding.EncodeToString(sum)

	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		hashMemory,
		hashTime,
		hashThreads,
		encodedSalt,
		encodedHash,
	), nil
}

// VerifyPassword recomputes the hash with the parameters embedded in
// storedHash and reports whether it matches. A mismatch is (false, nil); an
// error means the stored hash itself is unusable.
func VerifyPassword(storedHash, normalized string) (bool, error) {
	parts := strings.Split(storedHash, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return false, ErrMalformedHash
	}

	version, err := parseVersion(parts[2])
	if err != nil || version != argon2.Version {
		return false, ErrMalformedHash
	}

	mem, timeCost, threads, err := parseParams(parts[3])
	if err != nil {
		return false, ErrMalformedHash
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil || len(salt) == 0 {
		return false, ErrMalformedHash
	}

	// argon2.IDKey panics on a zero key length, so an empty or truncated
	// digest must be rejected here rather than passed through.
	expected, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(expected) < 16 {
		return false, ErrMalformedHash
	}

	actual := argon2.IDKey([]byte(normalized), salt, timeCost, mem, threads, uint32(len(expected)))
	return subtle.ConstantTimeCompare(actual, expected) == 1, nil
}

func parseVersion(value string) (int, error) {
	if !strings.HasPrefix(value, "v=") {
		return 0, ErrMalformedHash
	}
	return strconv.Atoi(strings.TrimPrefix(value, "v="))
}

func parseParams(value string) (uint32, uint32, uint8, error) {
	parts := strings.Split(value, ",")
	if len(parts) != 3 {
		return 0, 0, 0, ErrMalformedHash
	}

	mem, err := parseUint32Param(parts[0], "m=")
	if err != nil {
		return 0, 0, 0, ErrMalformedHash
	}
	// argon2 panics rather than erroring on zero rounds or parallelism.
	timeCost, err := parseUint32Param(parts[1], "t=")
	if err != nil || timeCost < 1 {
		return 0, 0, 0, ErrMalformedHash
	}
	threadsVal, err := parseUint32Param(parts[2], "p=")
	if err != nil || threadsVal < 1 || threadsVal > 255 {
		return 0, 0, 0, ErrMalformedHash
	}
	return mem, timeCost, uint8(threadsVal), nil
}

func parseUint32Param(value, prefix string) (uint32, error) {
	if !strings.HasPrefix(value, prefix) {
		return 0, ErrMalformedHash
	}
	parsed, err := strconv.ParseUint(strings.TrimPrefix(value, prefix), 10, 32)
	if err != nil {
		return 0, ErrMalformedHash
	}
	return uint32(parsed), nil
}
