// Package source opens timeline and chart files from local paths or
// remote sftp, ftp and ftps URLs.
package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/afero"
)

var (
	ErrUnsupportedScheme = errors.New("unsupported source scheme")
	ErrEmptyPath         = errors.New("source URL has no file path")
)

// Options carries credentials and limits for remote sources. URL userinfo
// takes precedence over User and Password.
type Options struct {
	User     string
	Password string
	// SSHKeyPath is the private key for sftp sources.
	SSHKeyPath string
	// KnownHosts is the TOFU known_hosts file for sftp sources.
	KnownHosts string
	// Timeout bounds connection setup. Zero means 30s.
	Timeout time.Duration
}

func (o Options) timeout() time.Duration {
	if o.Timeout > 0 {
		return o.Timeout
	}
	return 30 * time.Second
}

// Open returns a reader for ref. A ref without a scheme is a path on fs.
// The caller closes the reader, which also tears down any remote
// connection.
func Open(ctx context.Context, fs afero.Fs, ref string, opts Options) (io.ReadCloser, error) {
	if !IsRemote(ref) {
		f, err := fs.Open(ref)
		if err != nil {
			return nil, err
		}
		return f, nil
	}
	u, err := parseRemote(ref)
	if err != nil {
		return nil, err
	}
	switch u.scheme {
	case "sftp":
		return openSFTP(ctx, u, opts)
	case "ftp", "ftps":
		return openFTP(ctx, u, opts)
	}
	return nil, fmt.Errorf("%w %q", ErrUnsupportedScheme, u.scheme)
}

// IsRemote reports whether ref names a URL rather than a local path.
// Windows drive letters are not schemes.
func IsRemote(ref string) bool {
	i := strings.Index(ref, "://")
	return i > 1
}

// StripCredentials removes userinfo from a URL so it can be logged or
// stored. Local paths and unparsable refs come back unchanged.
func StripCredentials(ref string) string {
	if !IsRemote(ref) {
		return ref
	}
	parsed, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	parsed.User = nil
	return parsed.String()
}

type remote struct {
	scheme   string
	host     string // host:port
	hostname string
	path     string
	user     string
	password string
	hasUser  bool
}

func parseRemote(ref string) (*remote, error) {
	parsed, err := url.Parse(ref)
	if err != nil {
		return nil, err
	}
	r := &remote{
		scheme:   strings.ToLower(parsed.Scheme),
		hostname: parsed.Hostname(),
		path:     parsed.Path,
	}
	var defPort string
	switch r.scheme {
	case "sftp":
		defPort = "22"
	case "ftp", "ftps":
		defPort = "21"
	default:
		return nil, fmt.Errorf("%w %q", ErrUnsupportedScheme, r.scheme)
	}
	if r.path == "" || r.path == "/" {
		return nil, ErrEmptyPath
	}
	port := parsed.Port()
	if port == "" {
		port = defPort
	}
	r.host = net.JoinHostPort(r.hostname, port)
	if parsed.User != nil {
		r.hasUser = true
		r.user = parsed.User.Username()
		r.password, _ = parsed.User.Password()
	}
	return r, nil
}

func (r *remote) credentials(opts Options) (user, password string) {
	if r.hasUser {
		return r.user, r.password
	}
	return opts.User, opts.Password
}
