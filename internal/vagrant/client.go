package vagrant

import (
	"context"
	"fmt"
	"path"
	"strings"

	securejoin "github.com/cyphar/filepath-securejoin"

	"github.com/firefly-engineering/basebox/internal/errors"
	"github.com/firefly-engineering/basebox/internal/system"
	"github.com/firefly-engineering/basebox/internal/toolchain"
)

// Client issues vagrant and VBoxManage commands.
type Client struct {
	runner     toolchain.Runner
	fs         system.FileSystem
	vagrant    string
	vboxmanage string
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithBinaries overrides the vagrant and VBoxManage executables.
// Empty values keep the defaults.
func WithBinaries(vagrant, vboxmanage string) ClientOption {
	return func(c *Client) {
		if vagrant != "" {
			c.vagrant = vagrant
		}
		if vboxmanage != "" {
			c.vboxmanage = vboxmanage
		}
	}
}

// WithFileSystem sets the filesystem used to read machine ids.
func WithFileSystem(fs system.FileSystem) ClientOption {
	return func(c *Client) {
		c.fs = fs
	}
}

// NewClient creates a Client running commands through r.
func NewClient(r toolchain.Runner, opts ...ClientOption) *Client {
	c := &Client{
		runner:     r,
		fs:         system.DefaultFS(),
		vagrant:    "vagrant",
		vboxmanage: "VBoxManage",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) run(ctx context.Context, dir string, argv ...string) (*toolchain.CommandResult, error) {
	return c.runner.Run(ctx, dir, argv...)
}

// BoxList returns the names of the installed boxes.
func (c *Client) BoxList(ctx context.Context) ([]string, error) {
	res, err := c.run(ctx, "", c.vagrant, "box", "list")
	if err != nil {
		return nil, err
	}
	return ParseBoxList(res.Stdout), nil
}

// BoxAdd installs the box at location under name.
func (c *Client) BoxAdd(ctx context.Context, name, location string, force bool) error {
	argv := []string{c.vagrant, "box", "add", "--name", name, location}
	if force {
		argv = append(argv, "--force")
	}
	_, err := c.run(ctx, "", argv...)
	return err
}

// BoxRemove removes the installed box name.
func (c *Client) BoxRemove(ctx context.Context, name string) error {
	_, err := c.run(ctx, "", c.vagrant, "box", "remove", name)
	return err
}

// Up boots the machine defined in dir without provisioning it. A non-empty
// provider is passed with --provider.
func (c *Client) Up(ctx context.Context, dir, provider string) error {
	argv := []string{c.vagrant, "up", "--no-provision"}
	if provider != "" {
		argv = append(argv, "--provider", provider)
	}
	_, err := c.run(ctx, dir, argv...)
	return err
}

// Halt stops the machine gracefully.
func (c *Client) Halt(ctx context.Context, dir string) error {
	_, err := c.run(ctx, dir, c.vagrant, "halt")
	return err
}

// Reload restarts the machine and reapplies its Vagrantfile.
func (c *Client) Reload(ctx context.Context, dir string) error {
	_, err := c.run(ctx, dir, c.vagrant, "reload", "--no-provision")
	return err
}

// Destroy removes the machine without confirmation.
func (c *Client) Destroy(ctx context.Context, dir string) error {
	_, err := c.run(ctx, dir, c.vagrant, "destroy", "--force")
	return err
}

// PackageArgs are the options of `vagrant package`.
type PackageArgs struct {
	Output      string
	Vagrantfile string
	Include     []string
}

// Package exports the halted machine in dir as a box file.
func (c *Client) Package(ctx context.Context, dir string, args PackageArgs) error {
	argv := []string{c.vagrant, "package", "--output", args.Output}
	if args.Vagrantfile != "" {
		argv = append(argv, "--vagrantfile", args.Vagrantfile)
	}
	if len(args.Include) > 0 {
		argv = append(argv, "--include", strings.Join(args.Include, ","))
	}
	_, err := c.run(ctx, dir, argv...)
	return err
}

// SSHConfig returns the connection parameters of the running machine.
func (c *Client) SSHConfig(ctx context.Context, dir string) (*SSHConfig, error) {
	res, err := c.run(ctx, dir, c.vagrant, "ssh-config")
	if err != nil {
		return nil, err
	}
	cfg, err := ParseSSHConfig(res.Stdout)
	if err != nil {
		return nil, errors.Wrap(errors.ExitToolchainFailed, "unexpected vagrant ssh-config output", err)
	}
	return cfg, nil
}

// ModifyVM applies settings to the registered, powered-off VM id.
func (c *Client) ModifyVM(ctx context.Context, dir, id string, settings []Setting) error {
	argv := []string{c.vboxmanage, "modifyvm", id}
	for _, s := range settings {
		argv = append(argv, "--"+s.Key, s.Value)
	}
	_, err := c.run(ctx, dir, argv...)
	return err
}

// UnregisterVM unregisters the VM id and deletes its disks.
func (c *Client) UnregisterVM(ctx context.Context, dir, id string) error {
	_, err := c.run(ctx, dir, c.vboxmanage, "unregistervm", id, "--delete")
	return err
}

// MachineIDPath returns where vagrant records the hypervisor id of the
// default machine inside dir.
func MachineIDPath(dir, provider string) (string, error) {
	return securejoin.SecureJoin(dir, path.Join(".vagrant", "machines", "default", provider, "id"))
}

// Provider returns the provider that holds a machine id for the default
// machine in dir.
func (c *Client) Provider(dir string) (string, error) {
	machines, err := securejoin.SecureJoin(dir, path.Join(".vagrant", "machines", "default"))
	if err != nil {
		return "", fmt.Errorf("resolving machine directory: %w", err)
	}
	entries, err := c.fs.ReadDir(machines)
	if err != nil {
		return "", fmt.Errorf("reading machine directory: %w", err)
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if _, err := c.MachineID(dir, e.Name()); err == nil {
			return e.Name(), nil
		}
	}
	return "", fmt.Errorf("no machine id under %s", machines)
}

// MachineID reads the hypervisor id vagrant recorded for the default
// machine in dir.
func (c *Client) MachineID(dir, provider string) (string, error) {
	p, err := MachineIDPath(dir, provider)
	if err != nil {
		return "", fmt.Errorf("resolving machine id path: %w", err)
	}
	data, err := c.fs.ReadFile(p)
	if err != nil {
		return "", fmt.Errorf("reading machine id: %w", err)
	}
	id := strings.TrimSpace(string(data))
	if id == "" {
		return "", fmt.Errorf("machine id file %s is empty", p)
	}
	return id, nil
}
