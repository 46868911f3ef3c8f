package source

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"

	"github.com/jlaffaye/ftp"
)

func openFTP(ctx context.Context, u *remote, opts Options) (io.ReadCloser, error) {
	user, password := u.credentials(opts)
	if user == "" {
		user, password = "anonymous", "anonymous"
	}

	dialOpts := []ftp.DialOption{
		ftp.DialWithTimeout(opts.timeout()),
		ftp.DialWithContext(ctx),
	}
	if u.scheme == "ftps" {
		dialOpts = append(dialOpts, ftp.DialWithExplicitTLS(&tls.Config{
			ServerName: u.hostname,
			MinVersion: tls.VersionTLS12,
		}))
	}
	conn, err := ftp.Dial(u.host, dialOpts...)
	if err != nil {
		return nil, fmt.Errorf("ftp: connect %s: %w", u.host, err)
	}
	if err := conn.Login(user, password); err != nil {
		conn.Quit()
		return nil, fmt.Errorf("ftp: login: %w", err)
	}
	if err := conn.Type(ftp.TransferTypeBinary); err != nil {
		conn.Quit()
		return nil, fmt.Errorf("ftp: binary mode: %w", err)
	}
	resp, err := conn.Retr(u.path)
	if err != nil {
		conn.Quit()
		return nil, fmt.Errorf("ftp: retrieve %s: %w", u.path, err)
	}
	return &ftpReader{resp: resp, conn: conn}, nil
}

type ftpReader struct {
	resp *ftp.Response
	conn *ftp.ServerConn
}

func (r *ftpReader) Read(p []byte) (int, error) {
	return r.resp.Read(p)
}

func (r *ftpReader) Close() error {
	err := r.resp.Close()
	if qerr := r.conn.Quit(); err == nil {
		err = qerr
	}
	return err
}
