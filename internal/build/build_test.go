package build_test

import (
	"context"
	stderrors "errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/firefly-engineering/basebox/internal/audit"
	"github.com/firefly-engineering/basebox/internal/box"
	"github.com/firefly-engineering/basebox/internal/build"
	"github.com/firefly-engineering/basebox/internal/env"
	"github.com/firefly-engineering/basebox/internal/errors"
	"github.com/firefly-engineering/basebox/internal/remote"
	"github.com/firefly-engineering/basebox/internal/testutil"
	"github.com/firefly-engineering/basebox/internal/toolchain"
	"github.com/firefly-engineering/basebox/internal/vagrant"
	"github.com/firefly-engineering/basebox/internal/workdir"
)

type harness struct {
	fake      *testutil.FakeVagrant
	connector *remote.MockConnector
	journal   *audit.Logger
	builder   *build.Builder
	root      string
}

func newHarness(t *testing.T, boxes ...string) *harness {
	t.Helper()

	fake := testutil.NewFakeVagrant(boxes...)
	connector := remote.NewMockConnector()
	root := t.TempDir()
	journal := audit.NewLogger(t.TempDir())

	host := env.NewHost(
		vagrant.NewClient(toolchain.New(fake)),
		workdir.NewManager(root),
		env.WithMachineOptions(box.WithConnector(connector)),
	)
	builder := build.NewBuilder(host,
		build.WithJournal(journal),
		build.WithDefaultBase("https://files.vagrantup.com/precise64.box"),
	)

	return &harness{fake: fake, connector: connector, journal: journal, builder: builder, root: root}
}

func (h *harness) assertReleased(t *testing.T) {
	t.Helper()
	entries, err := os.ReadDir(h.root)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestBuild_EndToEnd(t *testing.T) {
	h := newHarness(t)

	var ran bool
	routine := func(ctx context.Context, s build.Target, args ...string) error {
		ran = true
		assert.Equal(t, []string{"a", "b"}, args)
		_, err := s.Sudo(ctx, "apt-get update")
		return err
	}

	res, err := h.builder.Build(context.Background(), build.Config{Name: "web"}, routine, "a", "b")
	require.NoError(t, err)
	assert.True(t, ran)

	assert.Equal(t, "web", res.Box)
	assert.Equal(t, "https://files.vagrantup.com/precise64.box", res.Base)
	assert.NotEmpty(t, res.EnvID)
	assert.Empty(t, res.Output, "package inside the working directory is not kept")

	assert.Equal(t, []string{
		"vagrant box list",
		"vagrant box add",
		"vagrant up",
		"vagrant ssh-config",
		"vagrant halt",
		"vagrant package",
		"vagrant box add",
		"vagrant destroy",
		"vagrant box remove",
	}, h.fake.Verbs())

	assert.True(t, h.fake.HasBox("web"))
	assert.False(t, h.fake.HasBox("precise64"), "temporary base must be removed")

	sess := h.connector.Last()
	require.NotNil(t, sess)
	assert.True(t, sess.Closed())
	assert.Equal(t, []string{remote.SudoCommand("apt-get update")}, sess.Commands)

	h.assertReleased(t)

	events, err := h.journal.Events("web")
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, audit.EventStart, events[0].Type)
	assert.Equal(t, audit.EventSuccess, events[1].Type)
}

func TestBuild_InstallPackagesFromArgs(t *testing.T) {
	h := newHarness(t)
	base := filepath.Join(t.TempDir(), "precise64.box")
	require.NoError(t, os.WriteFile(base, []byte("box"), 0644))

	res, err := h.builder.Build(context.Background(), build.Config{Name: "sample", Base: base}, build.InstallPackages(), "nginx")
	require.NoError(t, err)

	assert.Equal(t, "sample", res.Box)
	assert.True(t, h.fake.HasBox("sample"))
	assert.False(t, h.fake.HasBox("precise64"), "temporary base must be removed")
	assert.Contains(t, h.fake.Lines(), "vagrant box add --name precise64 "+base)
	assert.Equal(t, []string{
		remote.SudoCommand("DEBIAN_FRONTEND=noninteractive apt-get install -y nginx"),
	}, h.connector.Last().Commands)
	h.assertReleased(t)
}

func TestCompose_OverriddenCall(t *testing.T) {
	h := newHarness(t, "precise64")
	file := filepath.Join(t.TempDir(), "precise64.box")

	composed := h.builder.Compose(build.Config{Name: "sample", Base: file}, build.InstallPackages())

	res, err := composed.Invoke(context.Background(), build.Call{Name: "base", Base: "precise64"}, "nginx")
	require.NoError(t, err)

	assert.Equal(t, "base", res.Box)
	assert.True(t, h.fake.HasBox("base"))
	assert.False(t, h.fake.HasBox("sample"))
	assert.True(t, h.fake.HasBox("precise64"), "installed base is kept")
	assert.Equal(t, []string{
		"vagrant box list",
		"vagrant up",
		"vagrant ssh-config",
		"vagrant halt",
		"vagrant package",
		"vagrant box add",
		"vagrant destroy",
	}, h.fake.Verbs())
	assert.Equal(t, []string{
		remote.SudoCommand("DEBIAN_FRONTEND=noninteractive apt-get install -y nginx"),
	}, h.connector.Last().Commands)
}

func TestBuild_RoutineRestartsMachine(t *testing.T) {
	h := newHarness(t, "precise64")

	routine := func(ctx context.Context, tg build.Target, args ...string) error {
		if _, err := tg.Sudo(ctx, "apt-get dist-upgrade -y"); err != nil {
			return err
		}
		if err := tg.Reload(ctx); err != nil {
			return err
		}
		if err := tg.Modify(ctx, box.ModifySpec{{Key: "memory", Value: "2048"}}); err != nil {
			return err
		}
		_, err := tg.Run(ctx, "free -m")
		return err
	}

	_, err := h.builder.Build(context.Background(), build.Config{Name: "web", Base: "precise64"}, routine)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"vagrant box list",
		"vagrant up",
		"vagrant ssh-config",
		"vagrant reload",
		"vagrant ssh-config",
		"vagrant halt",
		"VBoxManage modifyvm",
		"vagrant up",
		"vagrant ssh-config",
		"vagrant halt",
		"vagrant package",
		"vagrant box add",
		"vagrant destroy",
	}, h.fake.Verbs())
	assert.Contains(t, h.fake.Lines(), "VBoxManage modifyvm vm-0001 --memory 2048")

	sessions := h.connector.Sessions
	require.Len(t, sessions, 3)
	for _, s := range sessions {
		assert.True(t, s.Closed())
	}
	assert.Equal(t, []string{remote.SudoCommand("apt-get dist-upgrade -y")}, sessions[0].Commands)
	assert.Empty(t, sessions[1].Commands)
	assert.Equal(t, []string{"free -m"}, sessions[2].Commands)
	h.assertReleased(t)
}

func TestBuild_OutputOutsideWorkdir(t *testing.T) {
	h := newHarness(t, "precise64")
	out := filepath.Join(t.TempDir(), "web.box")

	res, err := h.builder.Build(context.Background(), build.Config{Base: "precise64", Output: out}, nil)
	require.NoError(t, err)

	assert.Equal(t, out, res.Output)
	assert.FileExists(t, out)
	assert.NotContains(t, h.fake.Verbs(), "vagrant box add")
}

func TestBuild_ModifyBeforeBoot(t *testing.T) {
	h := newHarness(t, "precise64")

	var vagrantfile string
	h.fake.OnUp = func(dir string) {
		data, err := os.ReadFile(filepath.Join(dir, workdir.VagrantfileName))
		require.NoError(t, err)
		vagrantfile = string(data)
	}

	_, err := h.builder.Build(context.Background(), build.Config{
		Name:   "web",
		Base:   "precise64",
		Modify: box.ModifySpec{{Key: "nictype1", Value: "virtio"}},
	}, nil)
	require.NoError(t, err)

	assert.Contains(t, vagrantfile, `vb.customize ["modifyvm", :id, "--nictype1", "virtio"]`)
	assert.NotContains(t, h.fake.Verbs(), "VBoxManage modifyvm")
}

func TestBuild_RoutineFailure(t *testing.T) {
	h := newHarness(t, "precise64")
	errRoutine := stderrors.New("provisioning failed")

	_, err := h.builder.Build(context.Background(), build.Config{Name: "web", Base: "precise64"},
		func(context.Context, build.Target, ...string) error { return errRoutine })

	assert.Same(t, errRoutine, err)
	assert.Equal(t, []string{
		"vagrant box list",
		"vagrant up",
		"vagrant ssh-config",
		"vagrant destroy",
	}, h.fake.Verbs())
	assert.True(t, h.connector.Last().Closed())
	assert.False(t, h.fake.HasBox("web"))
	h.assertReleased(t)

	events, err := h.journal.Events("web")
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, audit.EventFailure, events[1].Type)
	assert.Equal(t, "provisioning failed", events[1].Details)
}

func TestBuild_ToolchainFailure(t *testing.T) {
	h := newHarness(t, "precise64")
	h.fake.FailOn("vagrant halt", 1)

	_, err := h.builder.Build(context.Background(), build.Config{Name: "web", Base: "precise64"}, nil)

	var tcErr *errors.ToolchainError
	require.True(t, errors.As(err, &tcErr))
	assert.Equal(t, "vagrant halt", tcErr.CommandLine())
	assert.NotContains(t, h.fake.Verbs(), "vagrant package")
	assert.Equal(t, "vagrant destroy", h.fake.Verbs()[len(h.fake.Verbs())-1])
	h.assertReleased(t)
}

func TestBuild_PackageConflict(t *testing.T) {
	h := newHarness(t, "precise64", "web")

	_, err := h.builder.Build(context.Background(), build.Config{Name: "web", Base: "precise64"}, nil)

	var conflict *errors.PackageConflictError
	require.True(t, errors.As(err, &conflict))
	assert.NotContains(t, h.fake.Verbs(), "vagrant package")

	_, err = h.builder.Build(context.Background(), build.Config{Name: "web", Base: "precise64", Overwrite: true}, nil)
	require.NoError(t, err)
	assert.Contains(t, h.fake.Verbs(), "vagrant box remove")
}

func TestBuild_Validation(t *testing.T) {
	tests := []struct {
		name string
		cfg  build.Config
	}{
		{"no target", build.Config{Base: "precise64"}},
		{"bad name", build.Config{Name: "two words", Base: "precise64"}},
		{"bad modify", build.Config{Name: "web", Base: "precise64", Modify: box.ModifySpec{{Key: "x y", Value: "1"}}}},
		{"bad overrides", build.Config{Name: "web", Base: "precise64", Overrides: vagrant.Overrides{Provider: "a b"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, "precise64")

			_, err := h.builder.Build(context.Background(), tt.cfg, nil)
			require.Error(t, err)
			assert.Equal(t, errors.ExitGeneralError, errors.GetExitCode(err))
			assert.Empty(t, h.fake.Commands)
		})
	}
}

func TestCompose(t *testing.T) {
	h := newHarness(t, "precise64", "trusty64")

	calls := 0
	composed := h.builder.Compose(build.Config{Name: "web", Base: "precise64"}, func(context.Context, build.Target, ...string) error {
		calls++
		return nil
	})

	overwrite := true
	overrides := vagrant.Overrides{SSH: vagrant.SSHSettings{Username: "ubuntu"}}
	cfg := composed.Config(build.Call{Base: "trusty64", Overwrite: &overwrite, Overrides: &overrides})
	assert.Equal(t, "web", cfg.Name)
	assert.Equal(t, "trusty64", cfg.Base)
	assert.True(t, cfg.Overwrite)
	assert.Equal(t, "ubuntu", cfg.Overrides.SSH.Username)

	assert.Equal(t, build.Config{Name: "web", Base: "precise64"}, composed.Config(build.Call{}))

	res, err := composed.Invoke(context.Background(), build.Call{Name: "db"})
	require.NoError(t, err)
	assert.Equal(t, "db", res.Box)
	assert.Equal(t, "precise64", res.Base)
	assert.True(t, h.fake.HasBox("db"))
	assert.False(t, h.fake.HasBox("web"))
	assert.Equal(t, 1, calls)
}
