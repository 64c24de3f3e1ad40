// Package remote provides the remote-execution scope: SSH sessions into a
// booted machine.
package remote

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	shellquote "github.com/kballard/go-shellquote"
)

// Default connection values.
const (
	DefaultUser           = "vagrant"
	DefaultConnectTimeout = 10 * time.Second

	// AliasPrefix names the host alias of a temporary machine.
	AliasPrefix = "vagrant-temporary-"
)

// Endpoint is where and as whom a session connects.
type Endpoint struct {
	// Alias is a stable name for logs, e.g. vagrant-temporary-<id>.
	Alias          string
	Host           string
	Port           int
	User           string
	IdentityFiles  []string
	ConnectTimeout time.Duration
}

// WithUser returns a copy with the user replaced when u is non-empty.
func (e Endpoint) WithUser(u string) Endpoint {
	if u != "" {
		e.User = u
	}
	return e
}

// WithTimeout returns a copy with the specified connect timeout.
func (e Endpoint) WithTimeout(d time.Duration) Endpoint {
	if d > 0 {
		e.ConnectTimeout = d
	}
	return e
}

// WithIdentityFiles returns a copy that tries files before the current ones.
func (e Endpoint) WithIdentityFiles(files ...string) Endpoint {
	e.IdentityFiles = append(append([]string{}, files...), e.IdentityFiles...)
	return e
}

// Address returns host:port.
func (e Endpoint) Address() string {
	return net.JoinHostPort(e.Host, strconv.Itoa(e.Port))
}

// Destination returns the user@host:port string.
func (e Endpoint) Destination() string {
	return fmt.Sprintf("%s@%s", e.User, e.Address())
}

// Result is the outcome of one remote command.
type Result struct {
	Command    string
	Stdout     string
	Stderr     string
	ExitStatus int
}

// Session runs commands on one connected machine. Sessions are owned by
// whoever opened them and must be closed.
type Session interface {
	Run(ctx context.Context, command string) (*Result, error)
	Sudo(ctx context.Context, command string) (*Result, error)
	Endpoint() Endpoint
	Close() error
}

// Connector opens sessions.
type Connector interface {
	Open(ctx context.Context, ep Endpoint) (Session, error)
}

// SudoCommand wraps command so it runs as root through a non-interactive
// sudo and a POSIX shell.
func SudoCommand(command string) string {
	return shellquote.Join("sudo", "-n", "sh", "-c", command)
}
