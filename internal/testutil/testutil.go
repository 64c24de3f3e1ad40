// Package testutil provides test utilities for integration tests
package testutil

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/firefly-engineering/basebox/internal/app"
	"github.com/firefly-engineering/basebox/internal/config"
	"github.com/firefly-engineering/basebox/internal/remote"
	"github.com/firefly-engineering/basebox/internal/vagrant"
	"github.com/firefly-engineering/basebox/internal/workdir"
)

// TestEnv holds the test environment
type TestEnv struct {
	T         *testing.T
	TmpDir    string
	Config    *config.Config
	Vagrant   *FakeVagrant
	Connector *remote.MockConnector
	App       *app.App
	cleanup   func()
}

// NewTestEnv creates a new test environment with a scripted toolchain.
// boxes are installed in the simulated box store.
func NewTestEnv(t *testing.T, boxes ...string) *TestEnv {
	t.Helper()

	tmpDir := t.TempDir()

	cfg := config.Default()
	cfg.WorkRoot = filepath.Join(tmpDir, "work")
	cfg.StateDir = filepath.Join(tmpDir, "state")
	cfg.DefaultBase = "precise64"

	for _, dir := range []string{cfg.WorkRoot, cfg.StateDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			t.Fatalf("Failed to create directory %s: %v", dir, err)
		}
	}

	fake := NewFakeVagrant(boxes...)
	connector := remote.NewMockConnector()

	testApp := app.New(
		app.WithConfig(cfg),
		app.WithExecutor(fake),
		app.WithConnector(connector),
	)

	// Save original default and set test app
	originalDefault := app.Default
	app.SetDefault(testApp)

	env := &TestEnv{
		T:         t,
		TmpDir:    tmpDir,
		Config:    cfg,
		Vagrant:   fake,
		Connector: connector,
		App:       testApp,
		cleanup: func() {
			app.SetDefault(originalDefault)
		},
	}
	t.Cleanup(env.Cleanup)

	return env
}

// Cleanup restores the original app default
func (e *TestEnv) Cleanup() {
	if e.cleanup != nil {
		e.cleanup()
		e.cleanup = nil
	}
}

// WriteFile writes content to name under the test directory and returns
// its path.
func (e *TestEnv) WriteFile(name, content string) string {
	e.T.Helper()

	path := filepath.Join(e.TmpDir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		e.T.Fatalf("Failed to create directory for %s: %v", name, err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		e.T.Fatalf("Failed to write %s: %v", name, err)
	}
	return path
}

// WorkDirs returns the working directories left in the work root.
func (e *TestEnv) WorkDirs() []string {
	e.T.Helper()

	entries, err := os.ReadDir(e.Config.WorkRoot)
	if err != nil {
		e.T.Fatalf("Failed to read work root: %v", err)
	}
	var dirs []string
	for _, entry := range entries {
		if entry.IsDir() && strings.HasPrefix(entry.Name(), workdir.Prefix) {
			dirs = append(dirs, filepath.Join(e.Config.WorkRoot, entry.Name()))
		}
	}
	return dirs
}

// StaleWorkDir creates a working directory as if a build had crashed.
func (e *TestEnv) StaleWorkDir() string {
	e.T.Helper()

	h, err := e.App.Workdirs.Acquire("precise64", vagrant.Overrides{})
	if err != nil {
		e.T.Fatalf("Failed to create working directory: %v", err)
	}
	return h.Dir()
}
