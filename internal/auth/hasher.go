// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Passgate Contributors

package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/samber/oops"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
)

// argon2Params are the cost settings recorded in a PHC string.
type argon2Params struct {
	memory  uint32 // KiB
	time    uint32
	threads uint8
}

// currentParams are used for every new hash. Stored hashes with a lower
// memory or time cost are rehashed on the next successful login.
var currentParams = argon2Params{memory: 64 * 1024, time: 1, threads: 4}

const (
	argon2SaltLen = 16
	argon2KeyLen  = 32
)

// ErrEmptyPassword is returned when attempting to hash an empty password.
var ErrEmptyPassword = oops.Code("AUTH_EMPTY_PASSWORD").Errorf("password cannot be empty")

// bcryptPrefixes identifies digests written by bcrypt implementations,
// including the bcryptjs hashes of accounts created before argon2id.
var bcryptPrefixes = []string{"$2a$", "$2b$", "$2y$"}

// PasswordHasher hashes and verifies passwords.
type PasswordHasher interface {
	Hash(password string) (string, error)
	// Verify reports whether password matches hash. A mismatch is
	// (false, nil); an unparseable hash is an error.
	Verify(password, hash string) (bool, error)
	// NeedsUpgrade reports whether hash should be replaced by a fresh Hash.
	NeedsUpgrade(hash string) bool
}

// Argon2idHasher hashes with argon2id and still verifies bcrypt digests.
type Argon2idHasher struct{}

// NewArgon2idHasher creates an Argon2idHasher.
func NewArgon2idHasher() *Argon2idHasher {
	return &Argon2idHasher{}
}

// Hash returns a PHC-encoded argon2id digest:
// $argon2id$v=19$m=65536,t=1,p=4$<salt>$<key>
func (h *Argon2idHasher) Hash(password string) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}

	salt := make([]byte, argon2SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", oops.Code("AUTH_SALT_FAILED").Wrap(err)
	}
	p := currentParams
	key := argon2.IDKey([]byte(password), salt, p.time, p.memory, p.threads, argon2KeyLen)

	enc := base64.RawStdEncoding
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, p.memory, p.time, p.threads,
		enc.EncodeToString(salt), enc.EncodeToString(key)), nil
}

// Verify checks password against an argon2id or bcrypt digest in
// constant time.
func (h *Argon2idHasher) Verify(password, encodedHash string) (bool, error) {
	if isBcrypt(encodedHash) {
		return verifyBcrypt(password, encodedHash)
	}

	p, salt, want, err := decodeArgon2(encodedHash)
	if err != nil {
		return false, err
	}
	got := argon2.IDKey([]byte(password), salt, p.time, p.memory, p.threads, uint32(len(want)))
	return subtle.ConstantTimeCompare(got, want) == 1, nil
}

// NeedsUpgrade is true for bcrypt, unparseable digests, and argon2id
// digests weaker than currentParams.
func (h *Argon2idHasher) NeedsUpgrade(hash string) bool {
	p, _, _, err := decodeArgon2(hash)
	if err != nil {
		return true
	}
	return p.memory < currentParams.memory || p.time < currentParams.time
}

func decodeArgon2(encoded string) (argon2Params, []byte, []byte, error) {
	invalid := func(format string, args ...any) (argon2Params, []byte, []byte, error) {
		return argon2Params{}, nil, nil, oops.Code("AUTH_INVALID_HASH").Errorf(format, args...)
	}

	fields := strings.Split(encoded, "$")
	if len(fields) != 6 || fields[0] != "" {
		return invalid("invalid hash format")
	}
	if fields[1] != "argon2id" {
		return invalid("unsupported hash algorithm: %s", fields[1])
	}

	var version int
	if _, err := fmt.Sscanf(fields[2], "v=%d", &version); err != nil {
		return invalid("invalid version field %q", fields[2])
	}

	var memory, time, threads uint32
	if _, err := fmt.Sscanf(fields[3], "m=%d,t=%d,p=%d", &memory, &time, &threads); err != nil {
		return invalid("invalid parameter field %q", fields[3])
	}
	if threads == 0 || threads > 255 {
		return invalid("parallelism %d out of range", threads)
	}

	salt, err := base64.RawStdEncoding.DecodeString(fields[4])
	if err != nil {
		return invalid("invalid salt encoding")
	}
	key, err := base64.RawStdEncoding.DecodeString(fields[5])
	if err != nil {
		return invalid("invalid key encoding")
	}
	if len(key) == 0 || len(key) > 1<<10 {
		return invalid("invalid key length %d", len(key))
	}

	return argon2Params{memory: memory, time: time, threads: uint8(threads)}, salt, key, nil
}

func isBcrypt(hash string) bool {
	for _, p := range bcryptPrefixes {
		if strings.HasPrefix(hash, p) {
			return true
		}
	}
	return false
}

func verifyBcrypt(password, hash string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, oops.Code("AUTH_INVALID_HASH").With("algorithm", "bcrypt").Wrap(err)
	}
}
