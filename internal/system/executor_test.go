package system

import (
	"context"
	"strings"
	"testing"
)

func TestOSExecutor_CapturesStreams(t *testing.T) {
	exec := &osExecutor{}

	res, err := exec.Run(context.Background(), Command{
		Name: "sh",
		Args: []string{"-c", "echo out; echo err >&2; echo $BASEBOX_TEST_VAR; exit 3"},
		Env:  []string{"BASEBOX_TEST_VAR=set"},
	})
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if res.ExitCode != 3 {
		t.Errorf("ExitCode = %d, want 3", res.ExitCode)
	}
	if !strings.Contains(string(res.Stdout), "out") || !strings.Contains(string(res.Stdout), "set") {
		t.Errorf("Stdout = %q", res.Stdout)
	}
	if strings.TrimSpace(string(res.Stderr)) != "err" {
		t.Errorf("Stderr = %q, want %q", res.Stderr, "err")
	}
}

func TestOSExecutor_WorkingDirectory(t *testing.T) {
	dir := t.TempDir()
	exec := &osExecutor{}

	res, err := exec.Run(context.Background(), Command{Name: "pwd", Dir: dir})
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if !strings.HasSuffix(strings.TrimSpace(string(res.Stdout)), strings.TrimPrefix(dir, "/private")) {
		t.Errorf("pwd = %q, want %q", res.Stdout, dir)
	}
}

func TestOSExecutor_NotFound(t *testing.T) {
	exec := &osExecutor{}

	res, err := exec.Run(context.Background(), Command{Name: "basebox-no-such-binary"})
	if err == nil {
		t.Fatal("expected error for missing binary")
	}
	if res.ExitCode != -1 {
		t.Errorf("ExitCode = %d, want -1", res.ExitCode)
	}
}
