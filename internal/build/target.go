package build

import (
	"context"

	"github.com/firefly-engineering/basebox/internal/box"
	"github.com/firefly-engineering/basebox/internal/logging"
	"github.com/firefly-engineering/basebox/internal/remote"
)

// Target is the running machine a routine provisions. Run and Sudo execute
// on the current SSH session. Reload and Modify restart the machine and
// reconnect, so later commands go to a fresh session.
type Target interface {
	Run(ctx context.Context, command string) (*remote.Result, error)
	Sudo(ctx context.Context, command string) (*remote.Result, error)
	// Reload restarts the machine with `vagrant reload`.
	Reload(ctx context.Context) error
	// Modify halts the machine, applies spec with VBoxManage and boots
	// it again.
	Modify(ctx context.Context, spec box.ModifySpec) error
}

// machineTarget binds a Machine to its current session.
type machineTarget struct {
	m       *box.Machine
	session remote.Session
}

func connectTarget(ctx context.Context, m *box.Machine) (*machineTarget, error) {
	s, err := m.Connect(ctx)
	if err != nil {
		return nil, err
	}
	return &machineTarget{m: m, session: s}, nil
}

func (t *machineTarget) Run(ctx context.Context, command string) (*remote.Result, error) {
	return t.session.Run(ctx, command)
}

func (t *machineTarget) Sudo(ctx context.Context, command string) (*remote.Result, error) {
	return t.session.Sudo(ctx, command)
}

func (t *machineTarget) Reload(ctx context.Context) error {
	t.close()
	if err := t.m.Reload(ctx); err != nil {
		return err
	}
	return t.reconnect(ctx)
}

func (t *machineTarget) Modify(ctx context.Context, spec box.ModifySpec) error {
	t.close()
	if err := t.m.Halt(ctx); err != nil {
		return err
	}
	if err := t.m.Modify(ctx, spec); err != nil {
		return err
	}
	if err := t.m.Up(ctx); err != nil {
		return err
	}
	return t.reconnect(ctx)
}

func (t *machineTarget) reconnect(ctx context.Context) error {
	s, err := t.m.Connect(ctx)
	if err != nil {
		return err
	}
	t.session = s
	return nil
}

// close closes the current session, if any.
func (t *machineTarget) close() {
	if t.session == nil {
		return
	}
	if err := t.session.Close(); err != nil {
		logging.Debug("failed to close remote session", "env", t.m.ID(), "error", err)
	}
	t.session = nil
}
