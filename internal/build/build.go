// Package build composes the lifecycle into complete box builds: acquire an
// environment, boot, connect, run a provisioning routine, halt, package and
// release.
package build

import (
	"context"
	"path/filepath"
	"time"

	"github.com/firefly-engineering/basebox/internal/audit"
	"github.com/firefly-engineering/basebox/internal/box"
	"github.com/firefly-engineering/basebox/internal/env"
	"github.com/firefly-engineering/basebox/internal/errors"
	"github.com/firefly-engineering/basebox/internal/logging"
	"github.com/firefly-engineering/basebox/internal/vagrant"
)

// Routine provisions a running machine.
type Routine func(ctx context.Context, t Target, args ...string) error

// Config describes one build.
type Config struct {
	// Name installs the result as this box. Optional when Output is set.
	Name string
	// Base is an installed box name, a local .box file or a URL.
	Base      string
	Overrides vagrant.Overrides
	// Modify settings are applied before the first boot.
	Modify box.ModifySpec

	Output      string
	Overwrite   bool
	Vagrantfile string
	Include     []string
}

// Target names the build in logs and the journal.
func (c Config) Target() string {
	if c.Name != "" {
		return c.Name
	}
	return filepath.Base(c.Output)
}

// Validate checks the configuration before any machine is created.
func (c Config) Validate() error {
	if c.Name == "" && c.Output == "" {
		return errors.ValidationError("a build needs a box name to install as or a package output file")
	}
	if c.Name != "" {
		if err := vagrant.ValidateBoxRef(c.Name); err != nil {
			return errors.ValidationError("invalid box name " + c.Name)
		}
	}
	if c.Base == "" {
		return errors.ValidationError("no base box given")
	}
	if err := c.Overrides.Validate(); err != nil {
		return errors.ValidationError(err.Error())
	}
	for _, s := range c.Modify {
		if err := s.Validate(); err != nil {
			return errors.ValidationError(err.Error())
		}
	}
	return nil
}

// Result describes a finished build.
type Result struct {
	Box   string
	Base  string
	EnvID string
	// Output is the package file, when it was written outside the
	// working directory.
	Output   string
	Duration time.Duration
}

// Builder runs builds on a Host.
type Builder struct {
	host        *env.Host
	journal     *audit.Logger
	defaultBase string
}

// Option configures a Builder.
type Option func(*Builder)

// WithJournal records build events in j.
func WithJournal(j *audit.Logger) Option {
	return func(b *Builder) {
		b.journal = j
	}
}

// WithDefaultBase sets the base used when a Config has none.
func WithDefaultBase(base string) Option {
	return func(b *Builder) {
		b.defaultBase = base
	}
}

// NewBuilder creates a Builder.
func NewBuilder(host *env.Host, opts ...Option) *Builder {
	b := &Builder{host: host}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build runs routine against a fresh machine built from cfg.Base and
// packages the result. Any failure aborts the remaining steps; the
// environment is cleaned up before the error is returned.
func (b *Builder) Build(ctx context.Context, cfg Config, routine Routine, args ...string) (*Result, error) {
	if cfg.Base == "" {
		cfg.Base = b.defaultBase
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	start := time.Now()
	b.record(audit.Event{Type: audit.EventStart, Box: cfg.Target(), Base: cfg.Base})

	res := &Result{Box: cfg.Name, Base: cfg.Base}
	err := b.host.WithEnvironment(ctx, env.Options{Base: cfg.Base, Overrides: cfg.Overrides}, func(ctx context.Context, m *box.Machine) error {
		res.EnvID = m.ID()
		return b.provision(ctx, m, cfg, routine, args)
	})
	res.Duration = time.Since(start).Round(time.Millisecond)

	if err != nil {
		b.record(audit.Event{Type: audit.EventFailure, Box: cfg.Target(), Base: cfg.Base, Duration: res.Duration.String(), Details: err.Error()})
		return nil, err
	}

	if filepath.IsAbs(cfg.Output) {
		res.Output = cfg.Output
	}
	b.record(audit.Event{Type: audit.EventSuccess, Box: cfg.Target(), Base: cfg.Base, Duration: res.Duration.String()})
	return res, nil
}

func (b *Builder) provision(ctx context.Context, m *box.Machine, cfg Config, routine Routine, args []string) error {
	if len(cfg.Modify) > 0 {
		if err := m.Modify(ctx, cfg.Modify); err != nil {
			return err
		}
	}

	logging.UserInfo("Building box in temp directory: %s", m.Dir())
	if err := m.Up(ctx); err != nil {
		return err
	}

	target, err := connectTarget(ctx, m)
	if err != nil {
		return err
	}
	if routine != nil {
		err = routine(ctx, target, args...)
	}
	target.close()
	if err != nil {
		return err
	}

	if err := m.Halt(ctx); err != nil {
		return err
	}

	_, err = m.Package(ctx, box.PackageSpec{
		InstallAs:   cfg.Name,
		Output:      cfg.Output,
		Overwrite:   cfg.Overwrite,
		Vagrantfile: cfg.Vagrantfile,
		Include:     cfg.Include,
	})
	return err
}

func (b *Builder) record(event audit.Event) {
	if b.journal == nil {
		return
	}
	if err := b.journal.Log(event); err != nil {
		logging.Warn("failed to write build journal", "box", event.Box, "error", err)
	}
}

// Call holds call-site overrides for a composed build. Zero fields keep
// the declared defaults.
type Call struct {
	Name      string
	Base      string
	Output    string
	Overrides *vagrant.Overrides
	Overwrite *bool
}

// Composed is a routine bound to declared build defaults.
type Composed struct {
	builder  *Builder
	defaults Config
	routine  Routine
}

// Compose binds routine to defaults.
func (b *Builder) Compose(defaults Config, routine Routine) *Composed {
	return &Composed{builder: b, defaults: defaults, routine: routine}
}

// Config returns the defaults merged with call.
func (c *Composed) Config(call Call) Config {
	cfg := c.defaults
	if call.Name != "" {
		cfg.Name = call.Name
	}
	if call.Base != "" {
		cfg.Base = call.Base
	}
	if call.Output != "" {
		cfg.Output = call.Output
	}
	if call.Overrides != nil {
		cfg.Overrides = *call.Overrides
	}
	if call.Overwrite != nil {
		cfg.Overwrite = *call.Overwrite
	}
	return cfg
}

// Invoke builds with the merged configuration.
func (c *Composed) Invoke(ctx context.Context, call Call, args ...string) (*Result, error) {
	return c.builder.Build(ctx, c.Config(call), c.routine, args...)
}
