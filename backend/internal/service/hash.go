package service

import (
	"context"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

type PasswordHasher interface {
	Hash(ctx context.Context, plain string) (string, error)
	Compare(ctx context.Context, plain, hash string) bool
}

// Hasher runs bcrypt off the caller's goroutine so a cancelled request does
// not have to wait for the hash to finish.
type Hasher struct {
	cost int
}

func NewHasher(cost int) *Hasher {
	return &Hasher{cost: cost}
}

type hashResult struct {
	hash []byte
	err  error
}

func (h *Hasher) Hash(ctx context.Context, plain string) (string, error) {
	done := make(chan hashResult, 1)
	go func() {
		hash, err := bcrypt.GenerateFromPassword([]byte(plain), h.cost)
		done <- hashResult{hash, err}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			return "", fmt.Errorf("failed to hash password: %w", res.err)
		}
		return string(res.hash), nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Compare reports whether plain matches hash. Malformed hashes never match.
func (h *Hasher) Compare(ctx context.Context, plain, hash string) bool {
	done := make(chan bool, 1)
	go func() {
		done <- bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
	}()

	select {
	case ok := <-done:
		return ok
	case <-ctx.Done():
		return false
	}
}
