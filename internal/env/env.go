// Package env provides the scoped environment context: it resolves the
// base box, acquires a working directory, hands a fresh Machine to a body
// function and cleans everything up afterwards, however the body ends.
package env

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"path/filepath"
	"strings"

	"github.com/firefly-engineering/basebox/internal/box"
	"github.com/firefly-engineering/basebox/internal/errors"
	"github.com/firefly-engineering/basebox/internal/logging"
	"github.com/firefly-engineering/basebox/internal/system"
	"github.com/firefly-engineering/basebox/internal/vagrant"
	"github.com/firefly-engineering/basebox/internal/workdir"
)

// Options describe one environment.
type Options struct {
	// Base is an installed box name, a local .box file or a URL.
	Base      string
	Overrides vagrant.Overrides
	// Machine options are applied to the Machine handed to the body.
	Machine []box.Option
}

// Body runs against the environment's machine.
type Body func(ctx context.Context, m *box.Machine) error

// Host creates environments on the local toolchain.
type Host struct {
	client   *vagrant.Client
	manager  *workdir.Manager
	catalog  *box.Catalog
	fs       system.FileSystem
	opts     []box.Option
	defaults vagrant.Overrides
}

// HostOption configures a Host.
type HostOption func(*Host)

// WithCatalog shares c between every environment of the host.
func WithCatalog(c *box.Catalog) HostOption {
	return func(h *Host) {
		h.catalog = c
	}
}

// WithFileSystem sets the filesystem used to detect local box files.
func WithFileSystem(fs system.FileSystem) HostOption {
	return func(h *Host) {
		h.fs = fs
	}
}

// WithDefaults sets the provider and SSH port of environments whose
// overrides leave them unset.
func WithDefaults(d vagrant.Overrides) HostOption {
	return func(h *Host) {
		h.defaults = d
	}
}

// WithMachineOptions applies opts to every machine the host creates.
func WithMachineOptions(opts ...box.Option) HostOption {
	return func(h *Host) {
		h.opts = append(h.opts, opts...)
	}
}

// NewHost creates a Host.
func NewHost(client *vagrant.Client, manager *workdir.Manager, opts ...HostOption) *Host {
	h := &Host{client: client, manager: manager, fs: system.DefaultFS()}
	for _, opt := range opts {
		opt(h)
	}
	if h.catalog == nil {
		h.catalog = box.NewCatalog(client)
	}
	return h
}

// Catalog returns the host's box catalog.
func (h *Host) Catalog() *box.Catalog {
	return h.catalog
}

// WithEnvironment runs body against a new Unprovisioned machine.
//
// On every exit path, including a panic in body, the machine is torn down,
// the working directory released and any temporary base box removed, in
// that order. Cleanup runs with a context detached from ctx's cancellation
// and its failures are only logged. The body's error is returned unchanged.
func (h *Host) WithEnvironment(ctx context.Context, opts Options, body Body) error {
	name, temporary, err := h.resolveBase(ctx, opts.Base)
	if err != nil {
		return err
	}

	cleanupCtx := context.WithoutCancel(ctx)
	if temporary {
		defer h.removeTemporaryBox(cleanupCtx, name)
	}

	handle, err := h.manager.Acquire(name, opts.Overrides.WithDefaults(h.defaults))
	if err != nil {
		return err
	}
	defer func() {
		if err := h.manager.Release(handle); err != nil {
			logging.Warn("failed to release working directory", "dir", handle.Dir(), "error", err)
		}
	}()

	machineOpts := append([]box.Option{box.WithCatalog(h.catalog)}, h.opts...)
	m := box.NewMachine(handle, h.client, append(machineOpts, opts.Machine...)...)
	defer m.Teardown(cleanupCtx)

	logging.Debug("environment ready", "env", handle.ID(), "dir", handle.Dir(), "box", name)
	return body(ctx, m)
}

// resolveBase returns the box name the Vagrantfile should use. Boxes that
// are not installed are added under a unique name and reported temporary.
func (h *Host) resolveBase(ctx context.Context, base string) (string, bool, error) {
	if err := vagrant.ValidateBoxRef(base); err != nil {
		return "", false, err
	}

	installed, err := h.catalog.Contains(ctx, base)
	if err != nil {
		return "", false, errors.Setup("listing installed boxes", err)
	}
	if installed {
		return base, false, nil
	}

	location, stem, err := h.locate(base)
	if err != nil {
		return "", false, err
	}

	name, err := h.catalog.Reserve(ctx, stem)
	if err != nil {
		return "", false, errors.Setup("reserving temporary box name", err)
	}

	logging.UserInfo("Installing temporary box: %s", name)
	if err := h.client.BoxAdd(ctx, name, location, false); err != nil {
		h.catalog.Remove(name)
		return "", false, errors.Setup("installing temporary box "+name, err)
	}
	return name, true, nil
}

// locate classifies base as a local file or a URL and derives the stem of
// the temporary box name from it.
func (h *Host) locate(base string) (location, stem string, err error) {
	if h.fs.Exists(base) {
		abs, err := filepath.Abs(base)
		if err != nil {
			return "", "", errors.Setup("resolving base box path", err)
		}
		return abs, trimExt(filepath.Base(abs)), nil
	}

	if u, err := url.Parse(base); err == nil && u.Scheme != "" && (u.Host != "" || u.Scheme == "file") {
		stem := trimExt(path.Base(u.Path))
		if stem != "" && stem != "." && stem != "/" {
			return base, stem, nil
		}
	}
	return "", "", errors.Setup(fmt.Sprintf("base box %q is not installed and is neither a file nor a URL", base), nil)
}

func trimExt(name string) string {
	return strings.TrimSuffix(name, path.Ext(name))
}

func (h *Host) removeTemporaryBox(ctx context.Context, name string) {
	logging.UserInfo("Removing temporary box: %s", name)
	if err := h.client.BoxRemove(ctx, name); err != nil {
		logging.Warn("failed to remove temporary box", "box", name, "error", err)
		return
	}
	h.catalog.Remove(name)
}
