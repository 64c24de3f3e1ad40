package remote

import (
	"bytes"
	"context"
	"net"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/firefly-engineering/basebox/internal/errors"
	"github.com/firefly-engineering/basebox/internal/logging"
	"github.com/firefly-engineering/basebox/internal/system"
)

// SSHConnector opens sessions with golang.org/x/crypto/ssh.
type SSHConnector struct {
	fs system.FileSystem
}

// SSHOption configures an SSHConnector.
type SSHOption func(*SSHConnector)

// WithFileSystem sets the filesystem identity files are read from.
func WithFileSystem(fs system.FileSystem) SSHOption {
	return func(c *SSHConnector) {
		c.fs = fs
	}
}

// NewSSHConnector returns the default Connector.
func NewSSHConnector(opts ...SSHOption) *SSHConnector {
	c := &SSHConnector{fs: system.DefaultFS()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Open dials ep and authenticates with its identity files. Host keys are
// not verified: machines are disposable and vagrant regenerates them.
// Dial and handshake together are bounded by ep.ConnectTimeout and ctx.
func (c *SSHConnector) Open(ctx context.Context, ep Endpoint) (Session, error) {
	signers := c.loadSigners(ep.IdentityFiles)
	if len(signers) == 0 {
		return nil, errors.RemoteError("no usable identity file for "+ep.Destination(), nil)
	}

	if ep.User == "" {
		ep.User = DefaultUser
	}
	if ep.ConnectTimeout <= 0 {
		ep.ConnectTimeout = DefaultConnectTimeout
	}

	config := &ssh.ClientConfig{
		User:            ep.User,
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(signers...)},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         ep.ConnectTimeout,
	}

	dialer := net.Dialer{Timeout: ep.ConnectTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", ep.Address())
	if err != nil {
		return nil, errors.RemoteError("unable to connect to "+ep.Address(), err)
	}

	deadline := time.Now().Add(ep.ConnectTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetDeadline(deadline); err != nil {
		_ = conn.Close()
		return nil, errors.RemoteError("unable to connect to "+ep.Address(), err)
	}
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })

	sshConn, chans, reqs, err := ssh.NewClientConn(conn, ep.Address(), config)
	if !stop() && err == nil {
		_ = sshConn.Close()
		err = ctx.Err()
	}
	if err != nil {
		_ = conn.Close()
		return nil, errors.RemoteError("ssh handshake with "+ep.Destination()+" failed", err)
	}
	if err := conn.SetDeadline(time.Time{}); err != nil {
		_ = sshConn.Close()
		return nil, errors.RemoteError("unable to connect to "+ep.Address(), err)
	}

	logging.Debug("opened ssh session", "endpoint", ep.Destination(), "alias", ep.Alias)
	return &sshSession{client: ssh.NewClient(sshConn, chans, reqs), endpoint: ep}, nil
}

func (c *SSHConnector) loadSigners(paths []string) []ssh.Signer {
	var signers []ssh.Signer
	for _, p := range paths {
		key, err := c.fs.ReadFile(p)
		if err != nil {
			logging.Debug("skipping identity file", "path", p, "error", err)
			continue
		}
		signer, err := ssh.ParsePrivateKey(key)
		if err != nil {
			logging.Debug("skipping identity file", "path", p, "error", err)
			continue
		}
		signers = append(signers, signer)
	}
	return signers
}

type sshSession struct {
	client   *ssh.Client
	endpoint Endpoint
}

func (s *sshSession) Endpoint() Endpoint {
	return s.endpoint
}

func (s *sshSession) Run(ctx context.Context, command string) (*Result, error) {
	sess, err := s.client.NewSession()
	if err != nil {
		return nil, errors.RemoteError("unable to create SSH session", err)
	}
	defer runFuncAndLogErr(sess.Close)

	var stdout, stderr bytes.Buffer
	sess.Stdout = &stdout
	sess.Stderr = &stderr

	logging.Debug("running remote command", "endpoint", s.endpoint.Alias, "command", command)

	done := make(chan error, 1)
	go func() { done <- sess.Run(command) }()

	select {
	case err = <-done:
	case <-ctx.Done():
		_ = sess.Signal(ssh.SIGKILL)
		_ = sess.Close()
		return nil, errors.RemoteError("remote command interrupted", ctx.Err())
	}

	res := &Result{Command: command, Stdout: stdout.String(), Stderr: stderr.String()}
	if err != nil {
		var exitErr *ssh.ExitError
		if errors.As(err, &exitErr) {
			res.ExitStatus = exitErr.ExitStatus()
			return res, errors.RemoteError("remote command "+command+" failed", err)
		}
		res.ExitStatus = -1
		return res, errors.RemoteError("remote command "+command+" failed", err)
	}
	return res, nil
}

func (s *sshSession) Sudo(ctx context.Context, command string) (*Result, error) {
	return s.Run(ctx, SudoCommand(command))
}

func (s *sshSession) Close() error {
	return s.client.Close()
}

func runFuncAndLogErr(f func() error) {
	if err := f(); err != nil {
		logging.Debug("error closing ssh session", "error", err)
	}
}
