package source

import (
	"context"
	"fmt"
	"io"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"

	"github.com/autotap/autotap/pkg/sshutil"
)

func openSFTP(ctx context.Context, u *remote, opts Options) (io.ReadCloser, error) {
	user, password := u.credentials(opts)
	sshConn, err := sshutil.Dial(ctx, sshutil.Config{
		Addr:       u.host,
		User:       user,
		Password:   password,
		KeyPath:    opts.SSHKeyPath,
		KnownHosts: opts.KnownHosts,
		Timeout:    opts.timeout(),
	})
	if err != nil {
		return nil, fmt.Errorf("sftp: connect %s: %w", u.host, err)
	}
	client, err := sftp.NewClient(sshConn)
	if err != nil {
		sshConn.Close()
		return nil, fmt.Errorf("sftp: subsystem: %w", err)
	}
	f, err := client.Open(u.path)
	if err != nil {
		client.Close()
		sshConn.Close()
		return nil, fmt.Errorf("sftp: open %s: %w", u.path, err)
	}
	return &sftpReader{File: f, client: client, conn: sshConn}, nil
}

type sftpReader struct {
	*sftp.File
	client *sftp.Client
	conn   *ssh.Client
}

func (r *sftpReader) Close() error {
	err := r.File.Close()
	r.client.Close()
	r.conn.Close()
	return err
}
