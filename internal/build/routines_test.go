package build_test

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/firefly-engineering/basebox/internal/box"
	"github.com/firefly-engineering/basebox/internal/build"
	"github.com/firefly-engineering/basebox/internal/remote"
)

// recordingTarget runs commands on a mock session and records restarts
// in Commands next to them.
type recordingTarget struct {
	*remote.MockSession
	modifyErr error
}

func (r *recordingTarget) Reload(ctx context.Context) error {
	r.Commands = append(r.Commands, "<reload>")
	return nil
}

func (r *recordingTarget) Modify(ctx context.Context, spec box.ModifySpec) error {
	if r.modifyErr != nil {
		return r.modifyErr
	}
	line := "<modify"
	for _, s := range spec {
		line += " " + s.String()
	}
	r.Commands = append(r.Commands, line+">")
	return nil
}

func newTarget() *recordingTarget {
	return &recordingTarget{
		MockSession: remote.NewMockSession(remote.Endpoint{Host: "127.0.0.1", Port: 2222, User: remote.DefaultUser}),
	}
}

func TestInstallPackages(t *testing.T) {
	tg := newTarget()

	err := build.InstallPackages("git", "build-essential", "libc6:amd64")(context.Background(), tg)
	require.NoError(t, err)
	assert.Equal(t, []string{
		remote.SudoCommand("DEBIAN_FRONTEND=noninteractive apt-get install -y git build-essential libc6:amd64"),
	}, tg.Commands)
}

func TestInstallPackages_Args(t *testing.T) {
	tests := []struct {
		name string
		pkgs []string
		args []string
		want string
	}{
		{"args only", nil, []string{"nginx"}, "nginx"},
		{"pkgs then args", []string{"git"}, []string{"nginx", "curl"}, "git nginx curl"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tg := newTarget()

			require.NoError(t, build.InstallPackages(tt.pkgs...)(context.Background(), tg, tt.args...))
			assert.Equal(t, []string{
				remote.SudoCommand("DEBIAN_FRONTEND=noninteractive apt-get install -y " + tt.want),
			}, tg.Commands)
		})
	}
}

func TestInstallPackages_Empty(t *testing.T) {
	tg := newTarget()

	require.NoError(t, build.InstallPackages()(context.Background(), tg))
	assert.Empty(t, tg.Commands)
}

func TestInstallPackages_InvalidName(t *testing.T) {
	tg := newTarget()

	err := build.InstallPackages("git", "vim; rm -rf /")(context.Background(), tg)
	assert.Error(t, err)

	err = build.InstallPackages()(context.Background(), tg, "$(reboot)")
	assert.Error(t, err)
	assert.Empty(t, tg.Commands)
}

func TestSteps(t *testing.T) {
	tg := newTarget()
	routine := build.Steps(
		build.Step{Run: "echo $1"},
		build.Step{Sudo: "touch /etc/motd"},
		build.Step{Packages: []string{"curl"}},
	)

	require.NoError(t, routine(context.Background(), tg, "hello world"))
	assert.Equal(t, []string{
		"set -- 'hello world'; echo $1",
		remote.SudoCommand("set -- 'hello world'; touch /etc/motd"),
		remote.SudoCommand("DEBIAN_FRONTEND=noninteractive apt-get install -y curl"),
	}, tg.Commands)
}

func TestSteps_NoArgs(t *testing.T) {
	tg := newTarget()

	require.NoError(t, build.Steps(build.Step{Run: "uname -a"})(context.Background(), tg))
	assert.Equal(t, []string{"uname -a"}, tg.Commands)
}

func TestSteps_ReloadAndModify(t *testing.T) {
	tg := newTarget()
	routine := build.Steps(
		build.Step{Sudo: "apt-get dist-upgrade -y"},
		build.Step{Reload: true},
		build.Step{Modify: []string{"memory=2048", "--cpus=2"}},
		build.Step{Run: "nproc"},
	)

	require.NoError(t, routine(context.Background(), tg))
	assert.Equal(t, []string{
		remote.SudoCommand("apt-get dist-upgrade -y"),
		"<reload>",
		"<modify memory=2048 cpus=2>",
		"nproc",
	}, tg.Commands)
}

func TestSteps_ModifyFailure(t *testing.T) {
	tg := newTarget()
	tg.modifyErr = stderrors.New("halt failed")

	err := build.Steps(build.Step{Modify: []string{"memory=2048"}}, build.Step{Run: "true"})(context.Background(), tg)
	require.Error(t, err)
	assert.ErrorIs(t, err, tg.modifyErr)
	assert.Contains(t, err.Error(), "step 1 (modify)")
	assert.Empty(t, tg.Commands)
}

func TestSteps_StopsAtFirstFailure(t *testing.T) {
	tg := newTarget()
	tg.Failures["false"] = 1
	routine := build.Steps(
		build.Step{Run: "true"},
		build.Step{Run: "false"},
		build.Step{Run: "echo unreachable"},
	)

	err := routine(context.Background(), tg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "step 2 (run)")
	assert.Equal(t, []string{"true", "false"}, tg.Commands)
}

func TestSteps_Empty(t *testing.T) {
	err := build.Steps(build.Step{})(context.Background(), newTarget())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "step 1")
}
