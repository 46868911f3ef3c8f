package token

import (
	"errors"

	"github.com/zalando/go-keyring"
)

var (
	keyringSet    = keyring.Set
	keyringGet    = keyring.Get
	keyringDelete = keyring.Delete
)

// Keyring stores the token in the OS keyring.
type Keyring struct {
	Service string
	User    string
}

func NewKeyring() *Keyring {
	return &Keyring{
		Service: "autotap",
		User:    "rpc-token",
	}
}

func (k *Keyring) Get() (string, error) {
	tok, err := keyringGet(k.Service, k.User)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", ErrNotFound
	}
	return tok, err
}

func (k *Keyring) Set(tok string) error {
	return keyringSet(k.Service, k.User, tok)
}

func (k *Keyring) Delete() error {
	err := keyringDelete(k.Service, k.User)
	if errors.Is(err, keyring.ErrNotFound) {
		return ErrNotFound
	}
	return err
}
