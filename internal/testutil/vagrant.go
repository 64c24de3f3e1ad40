package testutil

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/firefly-engineering/basebox/internal/system"
)

// FakeVagrant implements system.CommandExecutor by simulating vagrant and
// VBoxManage: it keeps an in-memory box store, writes the machine id file
// on `up`, and writes package files on `package`.
type FakeVagrant struct {
	mu sync.Mutex

	// Commands records all executed commands for verification.
	Commands []system.Command

	// Boxes is the simulated box store.
	Boxes map[string]bool

	// Fail maps a command prefix ("vagrant up", "VBoxManage unregistervm")
	// to the exit status it returns instead of succeeding.
	Fail map[string]int

	// Provider names the machine id directory written by `up` when no
	// --provider is given.
	Provider string

	// providers records the --provider each directory was booted with.
	providers map[string]string

	// Running holds the directories whose machine is up.
	Running map[string]bool

	// OnUp, if set, is called with the working directory before `up`
	// boots the machine.
	OnUp func(dir string)

	nextID int
}

// NewFakeVagrant creates a FakeVagrant with boxes installed.
func NewFakeVagrant(boxes ...string) *FakeVagrant {
	f := &FakeVagrant{
		Boxes:    make(map[string]bool),
		Fail:     make(map[string]int),
		Provider:  "virtualbox",
		Running:   make(map[string]bool),
		providers: make(map[string]string),
	}
	for _, b := range boxes {
		f.Boxes[b] = true
	}
	return f
}

// FailOn makes commands starting with prefix exit with status.
func (f *FakeVagrant) FailOn(prefix string, status int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Fail[prefix] = status
}

// HasBox reports whether name is installed.
func (f *FakeVagrant) HasBox(name string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Boxes[name]
}

// Lines returns every recorded command as a space-joined line.
func (f *FakeVagrant) Lines() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	lines := make([]string, len(f.Commands))
	for i, c := range f.Commands {
		lines[i] = system.CommandLine(c)
	}
	return lines
}

// Verbs returns the first two words of every recorded command, e.g.
// "vagrant up" or "VBoxManage modifyvm". Box subcommands keep three.
func (f *FakeVagrant) Verbs() []string {
	var verbs []string
	for _, line := range f.Lines() {
		words := strings.Fields(line)
		n := 2
		if len(words) > 2 && words[1] == "box" {
			n = 3
		}
		if len(words) < n {
			n = len(words)
		}
		verbs = append(verbs, strings.Join(words[:n], " "))
	}
	return verbs
}

func (f *FakeVagrant) Run(ctx context.Context, cmd system.Command) (system.ExecResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.Commands = append(f.Commands, cmd)
	line := system.CommandLine(cmd)

	for prefix, status := range f.Fail {
		if line == prefix || strings.HasPrefix(line, prefix+" ") {
			return system.ExecResult{ExitCode: status, Stderr: []byte("simulated failure: " + line)}, nil
		}
	}

	args := cmd.Args
	switch filepath.Base(cmd.Name) {
	case "vagrant":
		return f.vagrant(cmd.Dir, args)
	case "VBoxManage":
		return system.ExecResult{}, nil
	}
	return system.ExecResult{}, fmt.Errorf("exec: %q: executable file not found in $PATH", cmd.Name)
}

func (f *FakeVagrant) vagrant(dir string, args []string) (system.ExecResult, error) {
	if len(args) == 0 {
		return usage("vagrant")
	}

	switch args[0] {
	case "box":
		return f.box(args[1:])
	case "up", "reload":
		if args[0] == "up" {
			if p := flagValue(args, "--provider"); p != "" {
				f.providers[dir] = p
			}
			if f.OnUp != nil {
				f.OnUp(dir)
			}
		}
		if err := f.writeMachineID(dir); err != nil {
			return system.ExecResult{ExitCode: 1, Stderr: []byte(err.Error())}, nil
		}
		f.Running[dir] = true
	case "halt":
		delete(f.Running, dir)
	case "destroy":
		delete(f.Running, dir)
		_ = os.RemoveAll(filepath.Join(dir, ".vagrant"))
	case "ssh-config":
		if !f.Running[dir] {
			return system.ExecResult{ExitCode: 1, Stderr: []byte("The VM is not running")}, nil
		}
		key := filepath.Join(dir, ".vagrant", "machines", "default", f.provider(dir), "private_key")
		out := fmt.Sprintf("Host default\n  HostName 127.0.0.1\n  User vagrant\n  Port 2222\n  IdentityFile %s\n", key)
		return system.ExecResult{Stdout: []byte(out)}, nil
	case "package":
		output := flagValue(args, "--output")
		if output == "" {
			output = "package.box"
		}
		if !filepath.IsAbs(output) {
			output = filepath.Join(dir, output)
		}
		if err := os.WriteFile(output, []byte("box"), 0644); err != nil {
			return system.ExecResult{ExitCode: 1, Stderr: []byte(err.Error())}, nil
		}
	}
	return system.ExecResult{}, nil
}

func (f *FakeVagrant) box(args []string) (system.ExecResult, error) {
	if len(args) == 0 {
		return usage("vagrant box")
	}

	switch args[0] {
	case "list":
		if len(f.Boxes) == 0 {
			return system.ExecResult{Stdout: []byte("There are no installed boxes! Use `vagrant box add` to add some.\n")}, nil
		}
		names := make([]string, 0, len(f.Boxes))
		for n := range f.Boxes {
			names = append(names, n)
		}
		sort.Strings(names)
		var b strings.Builder
		for _, n := range names {
			fmt.Fprintf(&b, "%s (%s, 0)\n", n, f.Provider)
		}
		return system.ExecResult{Stdout: []byte(b.String())}, nil
	case "add":
		name := flagValue(args, "--name")
		if name == "" {
			return usage("vagrant box add")
		}
		f.Boxes[name] = true
	case "remove":
		if len(args) < 2 || !f.Boxes[args[1]] {
			return system.ExecResult{ExitCode: 1, Stderr: []byte("box not installed")}, nil
		}
		delete(f.Boxes, args[1])
	}
	return system.ExecResult{}, nil
}

// MachineProvider returns the provider dir was booted with.
func (f *FakeVagrant) MachineProvider(dir string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.provider(dir)
}

func (f *FakeVagrant) provider(dir string) string {
	if p, ok := f.providers[dir]; ok {
		return p
	}
	return f.Provider
}

func (f *FakeVagrant) writeMachineID(dir string) error {
	idDir := filepath.Join(dir, ".vagrant", "machines", "default", f.provider(dir))
	if err := os.MkdirAll(idDir, 0755); err != nil {
		return err
	}
	idPath := filepath.Join(idDir, "id")
	if _, err := os.Stat(idPath); err == nil {
		return nil
	}
	f.nextID++
	return os.WriteFile(idPath, []byte(fmt.Sprintf("vm-%04d", f.nextID)), 0644)
}

func flagValue(args []string, name string) string {
	for i := 0; i < len(args)-1; i++ {
		if args[i] == name {
			return args[i+1]
		}
	}
	return ""
}

func usage(cmd string) (system.ExecResult, error) {
	return system.ExecResult{ExitCode: 1, Stderr: []byte("usage: " + cmd)}, nil
}
