package integration

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"testing"

	"github.com/google/uuid"

	"github.com/firefly-engineering/basebox/internal/app"
	"github.com/firefly-engineering/basebox/internal/config"
)

const (
	// EnvEnable turns integration tests on.
	EnvEnable = "BASEBOX_INTEGRATION_TESTS"
	// EnvBase names the base box the tests build from.
	EnvBase = "BASEBOX_INTEGRATION_BASE"
)

// TestHarness provides a real build stack rooted in temporary directories.
type TestHarness struct {
	t       *testing.T
	tempDir string
	cfg     *config.Config
	app     *app.App
	boxes   []string
	outputs []string
}

// NewHarness creates a new test harness.
// It skips the test if integration tests are disabled or vagrant is missing.
func NewHarness(t *testing.T) *TestHarness {
	t.Helper()

	if os.Getenv(EnvEnable) == "" {
		t.Skipf("integration tests disabled (set %s=1 to enable)", EnvEnable)
	}
	base := os.Getenv(EnvBase)
	if base == "" {
		t.Skipf("no base box configured (set %s)", EnvBase)
	}

	cfg := config.Default()
	for _, bin := range []string{cfg.Vagrant, cfg.VBoxManage} {
		if _, err := exec.LookPath(bin); err != nil {
			t.Skipf("%s not available: %v", bin, err)
		}
	}

	tempDir := t.TempDir()
	cfg.WorkRoot = filepath.Join(tempDir, "work")
	cfg.StateDir = filepath.Join(tempDir, "state")
	cfg.DefaultBase = base
	for _, dir := range []string{cfg.WorkRoot, cfg.StateDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			t.Fatalf("Failed to create directory %s: %v", dir, err)
		}
	}

	h := &TestHarness{
		t:       t,
		tempDir: tempDir,
		cfg:     cfg,
		app:     app.New(app.WithConfig(cfg)),
	}

	t.Cleanup(h.Cleanup)

	return h
}

// App returns the application wired against the real toolchain.
func (h *TestHarness) App() *app.App {
	return h.app
}

// Config returns the harness configuration.
func (h *TestHarness) Config() *config.Config {
	return h.cfg
}

// TempDir returns the harness scratch directory.
func (h *TestHarness) TempDir() string {
	return h.tempDir
}

// BoxName returns a box name unique to this run and tracks it for cleanup.
func (h *TestHarness) BoxName(prefix string) string {
	name := prefix + "-it-" + uuid.NewString()[:8]
	h.boxes = append(h.boxes, name)
	return name
}

// OutputPath returns a package path inside the scratch directory.
func (h *TestHarness) OutputPath(name string) string {
	path := filepath.Join(h.tempDir, name+".box")
	h.outputs = append(h.outputs, path)
	return path
}

// Cleanup removes installed boxes and working directories left behind.
func (h *TestHarness) Cleanup() {
	ctx := context.Background()

	installed, err := h.app.Vagrant.BoxList(ctx)
	if err != nil {
		h.t.Logf("Warning: failed to list boxes: %v", err)
	}
	for _, name := range h.boxes {
		if !slices.Contains(installed, name) {
			continue
		}
		if err := h.app.Vagrant.BoxRemove(ctx, name); err != nil {
			h.t.Logf("Warning: failed to remove box %s: %v", name, err)
		}
	}

	for _, path := range h.outputs {
		os.Remove(path)
	}

	leftover, err := h.app.Workdirs.List()
	if err == nil && len(leftover) > 0 {
		h.t.Errorf("working directories left behind: %v", leftover)
	}
}

// RequireInstalled fails the test if the named box is not in the catalog.
func (h *TestHarness) RequireInstalled(name string) {
	h.t.Helper()

	names, err := h.app.Vagrant.BoxList(context.Background())
	if err != nil {
		h.t.Fatalf("box list: %v", err)
	}
	if slices.Contains(names, name) {
		return
	}
	h.t.Fatalf("box %s is not installed (have %v)", name, names)
}
