// Package workdir manages the isolated temporary directories that hold an
// environment's Vagrantfile and vagrant state.
package workdir

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	securejoin "github.com/cyphar/filepath-securejoin"
	"github.com/google/uuid"

	"github.com/firefly-engineering/basebox/internal/errors"
	"github.com/firefly-engineering/basebox/internal/logging"
	"github.com/firefly-engineering/basebox/internal/system"
	"github.com/firefly-engineering/basebox/internal/vagrant"
)

// Prefix starts the name of every directory the Manager creates.
const Prefix = "basebox-"

// VagrantfileName is the file every working directory holds.
const VagrantfileName = "Vagrantfile"

// Manager creates and removes working directories under a root.
type Manager struct {
	root string
	fs   system.FileSystem
}

// Option configures a Manager.
type Option func(*Manager)

// WithFileSystem sets the filesystem implementation.
func WithFileSystem(fs system.FileSystem) Option {
	return func(m *Manager) {
		m.fs = fs
	}
}

// NewManager creates a Manager rooted at root. An empty root means
// os.TempDir().
func NewManager(root string, opts ...Option) *Manager {
	if root == "" {
		root = os.TempDir()
	}
	m := &Manager{root: root, fs: system.DefaultFS()}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Root returns the directory under which working directories are created.
func (m *Manager) Root() string {
	return m.root
}

// Handle is one acquired working directory.
type Handle struct {
	id   string
	dir  string
	base string
	fs   system.FileSystem

	mu        sync.Mutex
	overrides vagrant.Overrides
	released  bool
}

// Acquire creates a fresh working directory and writes its Vagrantfile for
// base. Failures are reported as *errors.SetupError and leave nothing behind.
func (m *Manager) Acquire(base string, overrides vagrant.Overrides) (*Handle, error) {
	contents, err := vagrant.RenderVagrantfile(base, overrides)
	if err != nil {
		return nil, err
	}

	id := uuid.NewString()
	dir := filepath.Join(m.root, Prefix+id)

	if err := m.fs.MkdirAll(m.root, 0755); err != nil {
		return nil, errors.Setup("creating work root "+m.root, err)
	}
	if m.fs.Exists(dir) {
		return nil, errors.Setup("working directory already exists: "+dir, nil)
	}
	if err := m.fs.MkdirAll(dir, 0700); err != nil {
		return nil, errors.Setup("creating working directory", err)
	}

	h := &Handle{id: id, dir: dir, base: base, fs: m.fs, overrides: overrides}
	if err := m.fs.WriteFile(filepath.Join(dir, VagrantfileName), contents, 0644); err != nil {
		if rmErr := m.fs.RemoveAll(dir); rmErr != nil {
			logging.Warn("failed to remove partial working directory", "dir", dir, "error", rmErr)
		}
		return nil, errors.Setup("writing Vagrantfile", err)
	}

	logging.Debug("acquired working directory", "dir", dir, "base", base)
	return h, nil
}

// Release removes the handle's directory. It is idempotent: releasing an
// already released handle, or one whose directory is gone, does nothing.
func (m *Manager) Release(h *Handle) error {
	if h == nil {
		return nil
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.released {
		return nil
	}
	if err := h.fs.RemoveAll(h.dir); err != nil {
		return fmt.Errorf("removing working directory %s: %w", h.dir, err)
	}
	h.released = true
	logging.Debug("released working directory", "dir", h.dir)
	return nil
}

// List returns the working directories currently present under the root.
func (m *Manager) List() ([]string, error) {
	entries, err := m.fs.ReadDir(m.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var dirs []string
	for _, e := range entries {
		if e.IsDir() && strings.HasPrefix(e.Name(), Prefix) {
			dirs = append(dirs, filepath.Join(m.root, e.Name()))
		}
	}
	return dirs, nil
}

// Open returns a handle for an existing working directory under the root,
// such as one left behind by an interrupted build. The base is unknown.
func (m *Manager) Open(id string) (*Handle, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("invalid environment id %q", id)
	}
	dir := filepath.Join(m.root, Prefix+id)
	if !m.fs.Exists(dir) {
		return nil, fmt.Errorf("working directory %s does not exist", dir)
	}
	return &Handle{id: id, dir: dir, fs: m.fs}, nil
}

// ID returns the unique id embedded in the directory name.
func (h *Handle) ID() string {
	return h.id
}

// Dir returns the absolute working directory.
func (h *Handle) Dir() string {
	return h.dir
}

// Base returns the box name the Vagrantfile was rendered for.
func (h *Handle) Base() string {
	return h.base
}

// Overrides returns the overrides of the current Vagrantfile.
func (h *Handle) Overrides() vagrant.Overrides {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.overrides
}

// Released reports whether Release has removed the directory.
func (h *Handle) Released() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.released
}

// Path resolves rel inside the working directory. The result never
// escapes the directory, whatever rel contains.
func (h *Handle) Path(rel string) (string, error) {
	return securejoin.SecureJoin(h.dir, rel)
}

// Rewrite re-renders the Vagrantfile with overrides.
func (h *Handle) Rewrite(overrides vagrant.Overrides) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.released {
		return errors.Setup("working directory already released: "+h.dir, nil)
	}
	contents, err := vagrant.RenderVagrantfile(h.base, overrides)
	if err != nil {
		return err
	}
	if err := h.fs.WriteFile(filepath.Join(h.dir, VagrantfileName), contents, 0644); err != nil {
		return errors.Setup("rewriting Vagrantfile", err)
	}
	h.overrides = overrides
	return nil
}

// Vagrantfile returns the current Vagrantfile contents.
func (h *Handle) Vagrantfile() ([]byte, error) {
	return h.fs.ReadFile(filepath.Join(h.dir, VagrantfileName))
}
