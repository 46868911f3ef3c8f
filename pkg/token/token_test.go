package token

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/zalando/go-keyring"

	"github.com/autotap/autotap/pkg/logger"
)

// memStore is an in-memory Store with injectable failures.
type memStore struct {
	tok    string
	getErr error
	setErr error
	sets   int
}

func (m *memStore) Get() (string, error) {
	if m.getErr != nil {
		return "", m.getErr
	}
	if m.tok == "" {
		return "", ErrNotFound
	}
	return m.tok, nil
}

func (m *memStore) Set(tok string) error {
	if m.setErr != nil {
		return m.setErr
	}
	m.sets++
	m.tok = tok
	return nil
}

func (m *memStore) Delete() error {
	m.tok = ""
	return nil
}

func TestGenerate(t *testing.T) {
	a, err := Generate()
	if err != nil {
		t.Fatal(err)
	}
	b, _ := Generate()
	if len(a) != 64 || a == b {
		t.Errorf("unexpected tokens %q %q", a, b)
	}

	orig := randRead
	defer func() { randRead = orig }()
	randRead = func(b []byte) (int, error) { return 0, errors.New("no entropy") }
	if _, err := Generate(); err == nil {
		t.Error("expected error when randomness fails")
	}
}

func TestEnsureCreatesOnce(t *testing.T) {
	s := &memStore{}
	first, err := Ensure(s, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	second, err := Ensure(s, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if first != second || s.sets != 1 {
		t.Errorf("token should be created once, got %q %q after %d sets", first, second, s.sets)
	}
}

func TestEnsureFallsBack(t *testing.T) {
	primary := &memStore{getErr: errors.New("dbus: no session bus")}
	fallback := &memStore{tok: "file-token"}
	mock := logger.NewMockLogger()
	tok, err := Ensure(primary, fallback, mock)
	if err != nil {
		t.Fatal(err)
	}
	if tok != "file-token" {
		t.Errorf("expected fallback token, got %q", tok)
	}
	if len(mock.WarningCalls()) != 1 {
		t.Errorf("fallback should be logged once, got %q", mock.WarningCalls())
	}

	primary = &memStore{setErr: errors.New("locked")}
	fallback = &memStore{}
	tok, err = Ensure(primary, fallback, nil)
	if err != nil || tok == "" || fallback.tok != tok {
		t.Errorf("a failed keyring write should land in the fallback: %q %v", tok, err)
	}

	if _, err := Ensure(&memStore{getErr: errors.New("boom")}, nil, nil); err == nil {
		t.Error("expected error without fallback")
	}
}

func TestKeyringStore(t *testing.T) {
	origSet, origGet, origDelete := keyringSet, keyringGet, keyringDelete
	defer func() {
		keyringSet, keyringGet, keyringDelete = origSet, origGet, origDelete
	}()

	stored := map[string]string{}
	keyringSet = func(service, user, value string) error {
		stored[service+"/"+user] = value
		return nil
	}
	keyringGet = func(service, user string) (string, error) {
		v, ok := stored[service+"/"+user]
		if !ok {
			return "", keyring.ErrNotFound
		}
		return v, nil
	}
	keyringDelete = func(service, user string) error {
		if _, ok := stored[service+"/"+user]; !ok {
			return keyring.ErrNotFound
		}
		delete(stored, service+"/"+user)
		return nil
	}

	k := NewKeyring()
	if _, err := k.Get(); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	tok, err := Ensure(k, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if stored["autotap/rpc-token"] != tok {
		t.Errorf("token not stored under autotap/rpc-token: %v", stored)
	}
	if err := k.Delete(); err != nil {
		t.Fatal(err)
	}
	if err := k.Delete(); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestFileStore(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "autotap")
	f := NewFileStore(dir)
	if _, err := f.Get(); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := f.Set("abc123"); err != nil {
		t.Fatal(err)
	}
	got, err := f.Get()
	if err != nil || got != "abc123" {
		t.Fatalf("Get = %q, %v", got, err)
	}
	if runtime.GOOS != "windows" {
		info, err := os.Stat(filepath.Join(dir, fileName))
		if err != nil {
			t.Fatal(err)
		}
		if info.Mode().Perm() != fileMode {
			t.Errorf("expected mode %o, got %o", fileMode, info.Mode().Perm())
		}
	}
	if err := f.Delete(); err != nil {
		t.Fatal(err)
	}
	if err := f.Delete(); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestFileStoreRenameError(t *testing.T) {
	orig := fileRename
	defer func() { fileRename = orig }()
	fileRename = func(string, string) error { return errors.New("rename fail") }

	dir := t.TempDir()
	f := NewFileStore(dir)
	if err := f.Set("x"); err == nil {
		t.Fatal("expected rename error")
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Errorf("temp file should be removed, found %d entries", len(entries))
	}
}
