package shell

import (
	"context"
	"fmt"
	"io"
	"sync"

	"golang.org/x/crypto/ssh"

	"github.com/autotap/autotap/pkg/sshutil"
)

// SSH reaches the device through an SSH server running on it (for
// example a rooted device or an emulator host).
type SSH struct {
	Config sshutil.Config

	mu       sync.Mutex
	client   *ssh.Client
	sessions []*ssh.Session
}

func (s *SSH) dial(ctx context.Context) (*ssh.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client != nil {
		return s.client, nil
	}
	c, err := sshutil.Dial(ctx, s.Config)
	if err != nil {
		return nil, fmt.Errorf("ssh %s: %w", s.Config.Addr, err)
	}
	s.client = c
	return c, nil
}

func (s *SSH) Run(ctx context.Context, cmd string) ([]byte, error) {
	c, err := s.dial(ctx)
	if err != nil {
		return nil, err
	}
	sess, err := c.NewSession()
	if err != nil {
		return nil, err
	}
	defer sess.Close()
	return sess.Output(cmd)
}

func (s *SSH) Shell(ctx context.Context) (io.WriteCloser, error) {
	c, err := s.dial(ctx)
	if err != nil {
		return nil, err
	}
	sess, err := c.NewSession()
	if err != nil {
		return nil, err
	}
	stdin, err := sess.StdinPipe()
	if err != nil {
		sess.Close()
		return nil, err
	}
	if err := sess.Shell(); err != nil {
		sess.Close()
		return nil, err
	}
	s.mu.Lock()
	s.sessions = append(s.sessions, sess)
	s.mu.Unlock()
	return stdin, nil
}

func (s *SSH) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sess := range s.sessions {
		_ = sess.Close()
	}
	s.sessions = nil
	if s.client == nil {
		return nil
	}
	err := s.client.Close()
	s.client = nil
	return err
}

var _ Backend = (*SSH)(nil)
