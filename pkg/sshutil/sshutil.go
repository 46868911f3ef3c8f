// Package sshutil dials SSH connections for the sftp timeline source and
// the SSH shell transport. Host keys follow a trust-on-first-use policy
// backed by a known_hosts file private to autotap.
package sshutil

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

// Config describes one SSH endpoint.
type Config struct {
	// Addr is host:port.
	Addr     string
	User     string
	Password string
	// KeyPath is an explicit private key. When empty and no password is
	// set, ~/.ssh/id_ed25519 and ~/.ssh/id_rsa are tried.
	KeyPath string
	// KnownHosts is the TOFU known_hosts file.
	KnownHosts string
	// Timeout bounds the TCP dial and handshake. Zero means 15s.
	Timeout time.Duration
}

// DefaultKnownHosts is <user config dir>/autotap/known_hosts, kept apart
// from ~/.ssh/known_hosts.
func DefaultKnownHosts() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "autotap", "known_hosts")
}

// Dial connects and authenticates. The context bounds the dial and the
// handshake only.
func Dial(ctx context.Context, cfg Config) (*ssh.Client, error) {
	auth, err := AuthMethods(cfg.Password, cfg.KeyPath)
	if err != nil {
		return nil, err
	}
	khPath := cfg.KnownHosts
	if khPath == "" {
		khPath = DefaultKnownHosts()
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	config := &ssh.ClientConfig{
		User:            cfg.User,
		Auth:            auth,
		HostKeyCallback: TOFUHostKeyCallback(khPath),
		Timeout:         timeout,
	}

	d := net.Dialer{Timeout: timeout}
	conn, err := d.DialContext(ctx, "tcp", cfg.Addr)
	if err != nil {
		return nil, err
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	c, chans, reqs, err := ssh.NewClientConn(conn, cfg.Addr, config)
	if err != nil {
		conn.Close()
		return nil, err
	}
	_ = conn.SetDeadline(time.Time{})
	return ssh.NewClient(c, chans, reqs), nil
}

// AuthMethods picks password auth when a password is given, otherwise the
// first readable private key.
func AuthMethods(password, keyPath string) ([]ssh.AuthMethod, error) {
	if password != "" {
		return []ssh.AuthMethod{ssh.Password(password)}, nil
	}
	paths := keyPaths(keyPath)
	for _, kp := range paths {
		pemBytes, err := os.ReadFile(kp)
		if err != nil {
			continue
		}
		signer, err := ssh.ParsePrivateKey(pemBytes)
		if err != nil {
			var ppErr *ssh.PassphraseMissingError
			if errors.As(err, &ppErr) {
				return nil, fmt.Errorf("ssh: key %q is passphrase-protected; passphrase-protected keys are not supported", kp)
			}
			continue
		}
		return []ssh.AuthMethod{ssh.PublicKeys(signer)}, nil
	}
	return nil, fmt.Errorf("ssh: no authentication method available, provide a password or a key at %s", strings.Join(paths, ", "))
}

func keyPaths(explicit string) []string {
	if explicit != "" {
		return []string{explicit}
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return nil
	}
	return []string{
		filepath.Join(home, ".ssh", "id_ed25519"),
		filepath.Join(home, ".ssh", "id_rsa"),
	}
}

// knownHostsMu serializes appends to known_hosts files.
var knownHostsMu sync.Mutex

// TOFUHostKeyCallback accepts a known host whose key matches, rejects a
// known host whose key changed, and records an unknown host on first use.
// The file is re-read on every call so entries appended by other
// connections are seen.
func TOFUHostKeyCallback(knownHostsFile string) ssh.HostKeyCallback {
	return func(hostname string, remote net.Addr, key ssh.PublicKey) error {
		if err := os.MkdirAll(filepath.Dir(knownHostsFile), 0o700); err != nil {
			return fmt.Errorf("ssh: failed to create known_hosts directory: %w", err)
		}

		if _, err := os.Stat(knownHostsFile); err == nil {
			cb, loadErr := knownhosts.New(knownHostsFile)
			if loadErr != nil {
				return fmt.Errorf("ssh: failed to load known_hosts: %w", loadErr)
			}
			err := cb(hostname, remote, key)
			if err == nil {
				return nil
			}
			var keyErr *knownhosts.KeyError
			if !errors.As(err, &keyErr) {
				return err
			}
			if len(keyErr.Want) > 0 {
				return fmt.Errorf(
					"ssh: WARNING: host key changed for %s (got %s)\n"+
						"If this is expected, remove the old entry from %s",
					hostname, ssh.FingerprintSHA256(key), knownHostsFile,
				)
			}
		}
		return appendKnownHost(knownHostsFile, hostname, key)
	}
}

func appendKnownHost(path, hostname string, key ssh.PublicKey) error {
	knownHostsMu.Lock()
	defer knownHostsMu.Unlock()

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("ssh: failed to write known_hosts: %w", err)
	}
	defer f.Close()

	line := knownhosts.Line([]string{knownhosts.Normalize(hostname)}, key)
	_, err = fmt.Fprintln(f, line)
	return err
}
