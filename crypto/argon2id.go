package crypto

import (
	"fmt"

	"github.com/alexedwards/argon2id"
	"github.com/yanghwi/daily-dungeon/domain"
)

// HashParams tunes the cost of account password hashes. MemoryKiB is the
// memory cost in kibibytes.
type HashParams struct {
	Iterations  uint32
	MemoryKiB   uint32
	Parallelism uint8
}

const (
	saltLength = 16
	keyLength  = 32
)

// PasswordHasher stores account passwords as encoded argon2id hashes.
type PasswordHasher struct {
	params argon2id.Params
}

func NewPasswordHasher(p HashParams) *PasswordHasher {
	return &PasswordHasher{
		params: argon2id.Params{
			Memory:      p.MemoryKiB,
			Iterations:  p.Iterations,
			Parallelism: p.Parallelism,
			SaltLength:  saltLength,
			KeyLength:   keyLength,
		},
	}
}

func (h *PasswordHasher) Hash(password string) (string, error) {
	encoded, err := argon2id.CreateHash(password, &h.params)
	if err != nil {
		return "", fmt.Errorf("%w: %w", domain.UnexpectedPasswordHashingError, err)
	}
	return encoded, nil
}

// Compare reports whether password matches an encoded hash. The cost stored
// in the hash is used, so accounts created under older params keep working.
func (h *PasswordHasher) Compare(encoded, password string) (bool, error) {
	ok, err := argon2id.ComparePasswordAndHash(password, encoded)
	if err != nil {
		return false, fmt.Errorf("%w: %w", domain.UnexpectedPasswordHashComparisonError, err)
	}
	return ok, nil
}
