package box

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/firefly-engineering/basebox/internal/errors"
	"github.com/firefly-engineering/basebox/internal/logging"
	"github.com/firefly-engineering/basebox/internal/remote"
	"github.com/firefly-engineering/basebox/internal/system"
	"github.com/firefly-engineering/basebox/internal/vagrant"
	"github.com/firefly-engineering/basebox/internal/workdir"
)

// DefaultPackageFile is the package written inside the working directory
// when PackageSpec.Output is empty.
const DefaultPackageFile = "package.box"

// ModifySpec is an ordered list of VBoxManage modifyvm settings.
type ModifySpec []vagrant.Setting

// PackageSpec describes how to package a halted machine.
type PackageSpec struct {
	// InstallAs installs the package under this box name when set.
	InstallAs string
	// Output is the package file. Relative paths resolve inside the
	// working directory.
	Output string
	// Overwrite replaces an existing InstallAs box or Output file.
	Overwrite bool
	// Vagrantfile is embedded in the package: a path, or raw contents.
	Vagrantfile string
	// Include lists extra files to add to the package.
	Include []string
}

// Machine is one ephemeral virtual machine bound to a working directory.
// It is not safe for concurrent use.
type Machine struct {
	handle    *workdir.Handle
	client    *vagrant.Client
	catalog   *Catalog
	connector remote.Connector
	fs        system.FileSystem
	sshUser   string
	sshKeys   []string
	timeout   time.Duration
	provOver  string

	state  State
	booted bool
}

// Option configures a Machine.
type Option func(*Machine)

// WithCatalog sets the catalog used for package conflicts.
func WithCatalog(c *Catalog) Option {
	return func(m *Machine) {
		m.catalog = c
	}
}

// WithConnector sets the connector used by Connect.
func WithConnector(c remote.Connector) Option {
	return func(m *Machine) {
		m.connector = c
	}
}

// WithFileSystem sets the filesystem used for package files.
func WithFileSystem(fs system.FileSystem) Option {
	return func(m *Machine) {
		m.fs = fs
	}
}

// WithSSHIdentity makes Connect log in as user with keys tried first.
func WithSSHIdentity(user string, keys ...string) Option {
	return func(m *Machine) {
		m.sshUser = user
		m.sshKeys = keys
	}
}

// WithConnectTimeout bounds the SSH dial made by Connect.
func WithConnectTimeout(d time.Duration) Option {
	return func(m *Machine) {
		m.timeout = d
	}
}

// WithProvider names the provider whose machine id file is read, instead
// of the one in the handle's overrides.
func WithProvider(p string) Option {
	return func(m *Machine) {
		m.provOver = p
	}
}

// NewMachine creates an Unprovisioned machine for the working directory h.
func NewMachine(h *workdir.Handle, client *vagrant.Client, opts ...Option) *Machine {
	m := &Machine{
		handle:    h,
		client:    client,
		connector: remote.NewSSHConnector(),
		fs:        system.DefaultFS(),
		state:     Unprovisioned,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.catalog == nil {
		m.catalog = NewCatalog(client)
	}
	return m
}

// logger resolves the global logger on each call so a later logging.Setup
// still applies.
func (m *Machine) logger() *slog.Logger {
	return logging.With("env", m.ID())
}

// ID returns the environment id.
func (m *Machine) ID() string {
	return m.handle.ID()
}

// Dir returns the working directory.
func (m *Machine) Dir() string {
	return m.handle.Dir()
}

// State returns the current lifecycle state.
func (m *Machine) State() State {
	return m.state
}

// Booted reports whether Up was ever attempted.
func (m *Machine) Booted() bool {
	return m.booted
}

func (m *Machine) provider() string {
	if m.provOver != "" {
		return m.provOver
	}
	return m.handle.Overrides().ProviderOrDefault()
}

func (m *Machine) check(op Operation) error {
	if !CanApply(op, m.state) {
		return errors.InvalidTransition(string(op), m.state)
	}
	return nil
}

func (m *Machine) fail(op Operation, err error) error {
	m.logger().Debug("lifecycle operation failed", "op", op, "from", m.state, "error", err)
	m.state = Failed
	return err
}

// Up boots the machine without provisioning it.
func (m *Machine) Up(ctx context.Context) error {
	if err := m.check(OpUp); err != nil {
		return err
	}

	m.state = Booting
	m.booted = true
	if err := m.client.Up(ctx, m.Dir(), m.handle.Overrides().Provider); err != nil {
		return m.fail(OpUp, err)
	}

	m.state = Running
	m.logger().Debug("machine running")
	return nil
}

// Halt shuts the machine down gracefully.
func (m *Machine) Halt(ctx context.Context) error {
	if err := m.check(OpHalt); err != nil {
		return err
	}
	if err := m.client.Halt(ctx, m.Dir()); err != nil {
		return m.fail(OpHalt, err)
	}
	m.state = Halted
	m.logger().Debug("machine halted")
	return nil
}

// Reload restarts a running machine.
func (m *Machine) Reload(ctx context.Context) error {
	if err := m.check(OpReload); err != nil {
		return err
	}
	if err := m.client.Reload(ctx, m.Dir()); err != nil {
		return m.fail(OpReload, err)
	}
	m.logger().Debug("machine reloaded")
	return nil
}

// Modify applies low-level VM settings. Before the first boot the settings
// are written into the Vagrantfile; while halted they are applied with
// VBoxManage. A running machine is rejected. Failures leave the state as
// it was.
func (m *Machine) Modify(ctx context.Context, spec ModifySpec) error {
	if err := m.check(OpModify); err != nil {
		return err
	}
	for _, s := range spec {
		if err := s.Validate(); err != nil {
			return errors.ValidationError(err.Error())
		}
	}
	if len(spec) == 0 {
		return nil
	}

	if m.state == Unprovisioned {
		o := m.handle.Overrides()
		o.Customize = append(append([]vagrant.Setting{}, o.Customize...), spec...)
		return m.handle.Rewrite(o)
	}

	id, err := m.client.MachineID(m.Dir(), m.provider())
	if err != nil {
		return errors.Wrap(errors.ExitToolchainFailed, "cannot modify machine", err)
	}
	return m.client.ModifyVM(ctx, m.Dir(), id, spec)
}

// Package exports the halted machine as a box file and optionally installs
// it. It returns the package file path.
func (m *Machine) Package(ctx context.Context, spec PackageSpec) (string, error) {
	if err := m.check(OpPackage); err != nil {
		return "", err
	}

	output, err := m.outputPath(spec.Output)
	if err != nil {
		return "", errors.ValidationError("invalid package output: " + err.Error())
	}

	replacing := false
	if spec.InstallAs != "" {
		if err := vagrant.ValidateBoxRef(spec.InstallAs); err != nil {
			return "", errors.ValidationError("invalid box name " + spec.InstallAs)
		}
		exists, err := m.catalog.Contains(ctx, spec.InstallAs)
		if err != nil {
			return "", err
		}
		if exists && !spec.Overwrite {
			return "", errors.PackageConflict(spec.InstallAs)
		}
		replacing = exists
	}
	if m.fs.Exists(output) {
		if !spec.Overwrite {
			return "", errors.PackageConflict(output)
		}
		if err := m.fs.RemoveAll(output); err != nil {
			return "", errors.Wrap(errors.ExitGeneralError, "removing existing package", err)
		}
	}

	args := vagrant.PackageArgs{Output: output, Include: spec.Include}
	if spec.Vagrantfile != "" {
		vf, err := m.packageVagrantfile(spec.Vagrantfile)
		if err != nil {
			return "", err
		}
		args.Vagrantfile = vf
	}

	if err := m.client.Package(ctx, m.Dir(), args); err != nil {
		return "", m.fail(OpPackage, err)
	}

	if spec.InstallAs != "" {
		if replacing {
			logging.UserWarning("Removing existing box: %s", spec.InstallAs)
			if err := m.client.BoxRemove(ctx, spec.InstallAs); err != nil {
				return "", m.fail(OpPackage, err)
			}
			m.catalog.Remove(spec.InstallAs)
		}
		logging.UserInfo("Installing box: %s", spec.InstallAs)
		if err := m.client.BoxAdd(ctx, spec.InstallAs, output, false); err != nil {
			return "", m.fail(OpPackage, err)
		}
		m.catalog.Add(spec.InstallAs)
	}

	m.state = Packaged
	m.logger().Debug("machine packaged", "output", output, "install_as", spec.InstallAs)
	return output, nil
}

func (m *Machine) outputPath(output string) (string, error) {
	if output == "" {
		output = DefaultPackageFile
	}
	if filepath.IsAbs(output) {
		return filepath.Clean(output), nil
	}
	return m.handle.Path(output)
}

// packageVagrantfile returns a path for `vagrant package --vagrantfile`.
// Multi-line values are treated as contents and written to the working
// directory.
func (m *Machine) packageVagrantfile(v string) (string, error) {
	if !strings.Contains(v, "\n") {
		return v, nil
	}
	p, err := m.handle.Path("package.Vagrantfile")
	if err != nil {
		return "", errors.Setup("resolving package Vagrantfile", err)
	}
	if err := m.fs.WriteFile(p, []byte(v), 0644); err != nil {
		return "", errors.Setup("writing package Vagrantfile", err)
	}
	return p, nil
}

// Connect opens a remote session to the running machine. The caller owns
// the session and must close it.
func (m *Machine) Connect(ctx context.Context) (remote.Session, error) {
	if err := m.check(OpConnect); err != nil {
		return nil, err
	}

	ep, err := m.Endpoint(ctx)
	if err != nil {
		return nil, err
	}
	return m.connector.Open(ctx, ep)
}

// Endpoint derives the SSH endpoint from `vagrant ssh-config`.
func (m *Machine) Endpoint(ctx context.Context) (remote.Endpoint, error) {
	cfg, err := m.client.SSHConfig(ctx, m.Dir())
	if err != nil {
		return remote.Endpoint{}, err
	}

	ep := remote.Endpoint{
		Alias:         remote.AliasPrefix + m.ID(),
		Host:          cfg.HostName,
		Port:          cfg.Port,
		User:          cfg.User,
		IdentityFiles: cfg.IdentityFiles,
	}
	return ep.WithUser(m.sshUser).WithIdentityFiles(m.sshKeys...).WithTimeout(m.timeout), nil
}

// Destroy removes the machine from the hypervisor.
func (m *Machine) Destroy(ctx context.Context) error {
	if err := m.check(OpDestroy); err != nil {
		return err
	}
	if err := m.client.Destroy(ctx, m.Dir()); err != nil {
		return m.fail(OpDestroy, err)
	}
	m.state = Destroyed
	m.logger().Debug("machine destroyed")
	return nil
}

// Teardown makes sure no VM outlives the environment. It destroys the
// machine if it was ever booted, including after packaging, and falls back
// to unregistering it with VBoxManage. Failures are logged, never returned;
// the machine always ends Destroyed.
func (m *Machine) Teardown(ctx context.Context) {
	if m.state == Destroyed {
		return
	}
	defer func() { m.state = Destroyed }()

	if !m.booted {
		return
	}

	err := m.client.Destroy(ctx, m.Dir())
	if err == nil {
		m.logger().Debug("machine destroyed during teardown")
		return
	}
	m.logger().Warn("destroy failed during teardown, unregistering VM", "error", err)

	id, idErr := m.client.MachineID(m.Dir(), m.provider())
	if idErr != nil {
		m.logger().Warn("cannot unregister VM: machine id unavailable", "error", idErr)
		return
	}
	if err := m.client.UnregisterVM(ctx, m.Dir(), id); err != nil {
		m.logger().Warn("failed to unregister VM", "id", id, "error", err)
	}
}

// Recover returns a machine for a working directory left behind by an
// interrupted build. Its real state is unknown, so it starts Failed and
// counts as booted: Teardown destroys whatever VM the directory holds.
func Recover(h *workdir.Handle, client *vagrant.Client, opts ...Option) *Machine {
	m := NewMachine(h, client, opts...)
	m.state = Failed
	m.booted = true
	return m
}
