// Package app provides the application context for basebox.
// It allows dependency injection for testing.
package app

import (
	"github.com/firefly-engineering/basebox/internal/audit"
	"github.com/firefly-engineering/basebox/internal/box"
	"github.com/firefly-engineering/basebox/internal/build"
	"github.com/firefly-engineering/basebox/internal/config"
	"github.com/firefly-engineering/basebox/internal/env"
	"github.com/firefly-engineering/basebox/internal/remote"
	"github.com/firefly-engineering/basebox/internal/system"
	"github.com/firefly-engineering/basebox/internal/toolchain"
	"github.com/firefly-engineering/basebox/internal/vagrant"
	"github.com/firefly-engineering/basebox/internal/workdir"
)

// App holds the application dependencies
type App struct {
	// Config is the loaded user configuration
	Config *config.Config

	// Executor runs vagrant and VBoxManage
	Executor system.CommandExecutor

	// Connector opens remote sessions into running machines
	Connector remote.Connector

	// FS is the filesystem used for working directories and packages
	FS system.FileSystem

	Toolchain *toolchain.Invoker
	Vagrant   *vagrant.Client
	Workdirs  *workdir.Manager
	Catalog   *box.Catalog
	Host      *env.Host
	Journal   *audit.Logger
	Builder   *build.Builder
}

// Option is a function that configures the App
type Option func(*App)

// WithConfig sets a custom configuration
func WithConfig(cfg *config.Config) Option {
	return func(a *App) {
		a.Config = cfg
	}
}

// WithExecutor sets a custom command executor
func WithExecutor(e system.CommandExecutor) Option {
	return func(a *App) {
		a.Executor = e
	}
}

// WithConnector sets a custom remote connector
func WithConnector(c remote.Connector) Option {
	return func(a *App) {
		a.Connector = c
	}
}

// WithFileSystem sets a custom filesystem
func WithFileSystem(fs system.FileSystem) Option {
	return func(a *App) {
		a.FS = fs
	}
}

// New creates a new App with the given options and wires the build stack
// from its configuration.
func New(opts ...Option) *App {
	app := &App{
		Config:    config.Default(),
		Executor: system.DefaultExecutor(),
		FS:       system.DefaultFS(),
	}

	for _, opt := range opts {
		opt(app)
	}
	if app.Connector == nil {
		app.Connector = remote.NewSSHConnector(remote.WithFileSystem(app.FS))
	}

	cfg := app.Config
	toolchainOpts := []toolchain.Option{toolchain.WithVagrantLog(cfg.VagrantLog)}
	if cfg.VagrantHome != "" {
		toolchainOpts = append(toolchainOpts, toolchain.WithEnv("VAGRANT_HOME="+cfg.VagrantHome))
	}
	app.Toolchain = toolchain.New(app.Executor, toolchainOpts...)

	app.Vagrant = vagrant.NewClient(app.Toolchain,
		vagrant.WithBinaries(cfg.Vagrant, cfg.VBoxManage),
		vagrant.WithFileSystem(app.FS),
	)
	app.Workdirs = workdir.NewManager(cfg.WorkRoot, workdir.WithFileSystem(app.FS))
	app.Catalog = box.NewCatalog(app.Vagrant)

	machineOpts := []box.Option{
		box.WithConnector(app.Connector),
		box.WithFileSystem(app.FS),
		box.WithConnectTimeout(cfg.SSH.Timeout()),
	}
	if key := cfg.SSH.PrivateKey(); key != "" {
		machineOpts = append(machineOpts, box.WithSSHIdentity(cfg.SSH.User, key))
	} else if cfg.SSH.User != "" {
		machineOpts = append(machineOpts, box.WithSSHIdentity(cfg.SSH.User))
	}

	app.Host = env.NewHost(app.Vagrant, app.Workdirs,
		env.WithCatalog(app.Catalog),
		env.WithFileSystem(app.FS),
		env.WithDefaults(vagrant.Overrides{
			Provider: cfg.Provider,
			SSH:      vagrant.SSHSettings{Port: cfg.SSH.Port},
		}),
		env.WithMachineOptions(machineOpts...),
	)
	app.Journal = audit.NewLogger(cfg.StateDir)
	app.Builder = build.NewBuilder(app.Host,
		build.WithJournal(app.Journal),
		build.WithDefaultBase(cfg.DefaultBase),
	)

	return app
}

// Default is the default application instance
var Default = New()

// SetDefault sets the default application instance (used for testing)
func SetDefault(app *App) {
	Default = app
}

// ResetDefault resets to the default application instance
func ResetDefault() {
	Default = New()
}
