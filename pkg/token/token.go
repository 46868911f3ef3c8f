// Package token keeps the bearer token of the network RPC endpoint. The
// token lives in the OS keyring, with a private file as fallback when no
// keyring service is reachable.
package token

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/autotap/autotap/pkg/logger"
)

// ErrNotFound is returned by a Store holding no token.
var ErrNotFound = errors.New("token not found")

// Store persists a single token.
type Store interface {
	Get() (string, error)
	Set(token string) error
	Delete() error
}

var randRead = rand.Read

// Generate returns a new random 256 bit token, hex encoded.
func Generate() (string, error) {
	b := make([]byte, 32)
	if _, err := randRead(b); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// Ensure returns the stored token, creating one on first use. The primary
// store is tried first; any failure other than a missing token moves to
// the fallback store.
func Ensure(primary, fallback Store, l logger.Logger) (string, error) {
	if l == nil {
		l = logger.NewNopLogger()
	}
	tok, err := ensureIn(primary)
	if err == nil {
		return tok, nil
	}
	if fallback == nil {
		return "", err
	}
	l.Warning("keyring unavailable, using token file: %v", err)
	return ensureIn(fallback)
}

func ensureIn(s Store) (string, error) {
	tok, err := s.Get()
	if err == nil && tok != "" {
		return tok, nil
	}
	if err != nil && !errors.Is(err, ErrNotFound) {
		return "", err
	}
	tok, err = Generate()
	if err != nil {
		return "", err
	}
	if err := s.Set(tok); err != nil {
		return "", err
	}
	return tok, nil
}
