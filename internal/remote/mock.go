package remote

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/firefly-engineering/basebox/internal/errors"
)

// MockSession implements Session for testing.
type MockSession struct {
	mu sync.Mutex

	// Commands records every command, sudo-wrapped where applicable.
	Commands []string

	// Failures maps a command substring to the exit status it returns.
	Failures map[string]int

	ep     Endpoint
	closed bool
}

// NewMockSession creates a MockSession for ep.
func NewMockSession(ep Endpoint) *MockSession {
	return &MockSession{ep: ep, Failures: make(map[string]int)}
}

func (m *MockSession) Run(ctx context.Context, command string) (*Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, errors.RemoteError("session closed", nil)
	}
	m.Commands = append(m.Commands, command)

	for pattern, status := range m.Failures {
		if strings.Contains(command, pattern) {
			res := &Result{Command: command, ExitStatus: status}
			return res, errors.RemoteError("remote command "+command+" failed", fmt.Errorf("exit status %d", status))
		}
	}
	return &Result{Command: command}, nil
}

func (m *MockSession) Sudo(ctx context.Context, command string) (*Result, error) {
	return m.Run(ctx, SudoCommand(command))
}

func (m *MockSession) Endpoint() Endpoint {
	return m.ep
}

func (m *MockSession) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Closed reports whether Close was called.
func (m *MockSession) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// MockConnector implements Connector for testing.
type MockConnector struct {
	mu sync.Mutex

	// Sessions holds every session opened, in order.
	Sessions []*MockSession

	// OpenErr is returned by Open if set.
	OpenErr error

	// Failures is copied into each new session.
	Failures map[string]int
}

// NewMockConnector creates a MockConnector.
func NewMockConnector() *MockConnector {
	return &MockConnector{Failures: make(map[string]int)}
}

func (m *MockConnector) Open(ctx context.Context, ep Endpoint) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.OpenErr != nil {
		return nil, m.OpenErr
	}
	s := NewMockSession(ep)
	for k, v := range m.Failures {
		s.Failures[k] = v
	}
	m.Sessions = append(m.Sessions, s)
	return s, nil
}

// Last returns the most recently opened session.
func (m *MockConnector) Last() *MockSession {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Sessions) == 0 {
		return nil
	}
	return m.Sessions[len(m.Sessions)-1]
}
