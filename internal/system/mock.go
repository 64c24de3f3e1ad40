package system

import (
	"context"
	"io/fs"
	pathpkg "path"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"testing/fstest"
)

// MockFS implements FileSystem over an in-memory fstest.MapFS. Paths are
// absolute; directories are implied by the files beneath them.
type MockFS struct {
	mu    sync.RWMutex
	files fstest.MapFS

	// Fail maps a method name ("ReadFile", "MkdirAll", ...) to the error
	// it returns instead of touching the tree.
	Fail map[string]error
}

// NewMockFS creates an empty MockFS.
func NewMockFS() *MockFS {
	return &MockFS{files: fstest.MapFS{}, Fail: map[string]error{}}
}

// key maps an absolute path to its MapFS name.
func key(path string) string {
	k := strings.TrimPrefix(filepath.ToSlash(filepath.Clean(path)), "/")
	if k == "" {
		return "."
	}
	return k
}

func (m *MockFS) failure(op string) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.Fail[op]
}

// AddFile stores a file, creating its parents.
func (m *MockFS) AddFile(path string, data []byte, mode fs.FileMode) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[key(path)] = &fstest.MapFile{Data: data, Mode: mode}
}

// AddDir stores an empty directory.
func (m *MockFS) AddDir(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[key(path)] = &fstest.MapFile{Mode: fs.ModeDir | 0755}
}

// GetFile returns a file's contents without going through error injection.
func (m *MockFS) GetFile(path string) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	f, ok := m.files[key(path)]
	if !ok || f.Mode.IsDir() {
		return nil, false
	}
	return f.Data, true
}

func (m *MockFS) ReadFile(path string) ([]byte, error) {
	if err := m.failure("ReadFile"); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.files.ReadFile(key(path))
}

func (m *MockFS) WriteFile(path string, data []byte, perm fs.FileMode) error {
	if err := m.failure("WriteFile"); err != nil {
		return err
	}
	m.AddFile(path, data, perm)
	return nil
}

func (m *MockFS) RemoveAll(path string) error {
	if err := m.failure("RemoveAll"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	k := key(path)
	for name := range m.files {
		if name == k || strings.HasPrefix(name, k+"/") {
			delete(m.files, name)
		}
	}
	return nil
}

func (m *MockFS) Stat(path string) (fs.FileInfo, error) {
	if err := m.failure("Stat"); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.files.Stat(key(path))
}

func (m *MockFS) MkdirAll(path string, perm fs.FileMode) error {
	if err := m.failure("MkdirAll"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	for k := key(path); k != "."; k = pathpkg.Dir(k) {
		if f, ok := m.files[k]; ok && !f.Mode.IsDir() {
			return &fs.PathError{Op: "mkdir", Path: path, Err: syscall.ENOTDIR}
		}
		if _, ok := m.files[k]; !ok {
			m.files[k] = &fstest.MapFile{Mode: fs.ModeDir | perm}
		}
	}
	return nil
}

func (m *MockFS) Exists(path string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, err := m.files.Stat(key(path))
	return err == nil
}

// ReadDir lists the direct children of path sorted by name.
func (m *MockFS) ReadDir(path string) ([]fs.DirEntry, error) {
	if err := m.failure("ReadDir"); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.files.ReadDir(key(path))
}

// MockExecutor implements CommandExecutor for testing.
type MockExecutor struct {
	mu sync.Mutex

	// Commands records all executed commands for verification.
	Commands []Command

	// Responses maps command prefixes to responses.
	// Key format: "command arg1 arg2..."; the longest matching prefix wins.
	Responses map[string]MockResponse

	// DefaultResponse is used when no matching response is found.
	DefaultResponse MockResponse

	// OnRun, when set, sees every command before its response is returned.
	OnRun func(cmd Command)
}

// MockResponse defines the response for a command.
type MockResponse struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Err      error
}

// NewMockExecutor creates a new MockExecutor.
func NewMockExecutor() *MockExecutor {
	return &MockExecutor{
		Commands:  make([]Command, 0),
		Responses: make(map[string]MockResponse),
	}
}

// AddResponse adds a response for a specific command pattern.
func (m *MockExecutor) AddResponse(pattern string, resp MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Responses[pattern] = resp
}

func (m *MockExecutor) Run(ctx context.Context, cmd Command) (ExecResult, error) {
	m.mu.Lock()
	m.Commands = append(m.Commands, cmd)
	hook := m.OnRun
	resp := m.lookup(CommandLine(cmd))
	m.mu.Unlock()

	if hook != nil {
		hook(cmd)
	}

	res := ExecResult{Stdout: []byte(resp.Stdout), Stderr: []byte(resp.Stderr), ExitCode: resp.ExitCode}
	if resp.Err != nil {
		res.ExitCode = -1
	}
	return res, resp.Err
}

func (m *MockExecutor) lookup(line string) MockResponse {
	best, found := "", false
	for pattern := range m.Responses {
		if line != pattern && !strings.HasPrefix(line, pattern+" ") {
			continue
		}
		if !found || len(pattern) > len(best) {
			best, found = pattern, true
		}
	}
	if found {
		return m.Responses[best]
	}
	return m.DefaultResponse
}

// LastCommand returns the most recently executed command.
func (m *MockExecutor) LastCommand() (Command, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Commands) == 0 {
		return Command{}, false
	}
	return m.Commands[len(m.Commands)-1], true
}

// Lines returns every recorded command as a space-joined line.
func (m *MockExecutor) Lines() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	lines := make([]string, len(m.Commands))
	for i, c := range m.Commands {
		lines[i] = CommandLine(c)
	}
	return lines
}

// Reset clears recorded commands, keeping responses.
func (m *MockExecutor) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Commands = m.Commands[:0]
}

// CommandLine joins name and args with single spaces. It is meant for
// matching and assertions, not for shell use.
func CommandLine(cmd Command) string {
	return strings.Join(append([]string{cmd.Name}, cmd.Args...), " ")
}
