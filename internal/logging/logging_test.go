package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"strings"
	"testing"
)

func restore(t *testing.T) {
	t.Helper()
	t.Cleanup(func() { Setup(false, false, nil) })
}

func TestSetup_LevelMapping(t *testing.T) {
	restore(t)

	tests := []struct {
		name    string
		verbose bool
		json    bool
		want    []string
		absent  []string
	}{
		{"text", false, false, []string{"INFO", "WARN", "ERRO"}, []string{"DEBU"}},
		{"text verbose", true, false, []string{"DEBU", "INFO", "WARN", "ERRO"}, nil},
		{"json", false, true, []string{`"level":"INFO"`, `"level":"WARN"`, `"level":"ERROR"`}, []string{`"level":"DEBUG"`}},
		{"json verbose", true, true, []string{`"level":"DEBUG"`, `"level":"INFO"`}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			Setup(tt.verbose, tt.json, &buf)
			if Verbose != tt.verbose {
				t.Fatalf("Verbose = %v, want %v", Verbose, tt.verbose)
			}

			Debug("d")
			Info("i")
			Warn("w")
			Error("e")

			out := buf.String()
			for _, w := range tt.want {
				if !strings.Contains(out, w) {
					t.Errorf("output missing %q:\n%s", w, out)
				}
			}
			for _, a := range tt.absent {
				if strings.Contains(out, a) {
					t.Errorf("output should not contain %q:\n%s", a, out)
				}
			}
		})
	}
}

func TestTextHandler_Format(t *testing.T) {
	restore(t)

	var buf bytes.Buffer
	Setup(false, false, &buf)
	With("env", "a1b2").Info("machine running", "state", "running")

	line := strings.TrimSpace(buf.String())
	if strings.Count(line, "\n") != 0 {
		t.Fatalf("expected one line, got %q", line)
	}
	for _, part := range []string{"INFO", "basebox:", "machine running", "env=a1b2", "state=running"} {
		if !strings.Contains(line, part) {
			t.Errorf("line %q missing %q", line, part)
		}
	}
	if strings.Index(line, "basebox:") > strings.Index(line, "machine running") {
		t.Errorf("prefix should precede the message: %q", line)
	}
	if strings.HasPrefix(line, "{") {
		t.Errorf("text handler wrote JSON: %q", line)
	}
}

func TestJSONHandler_Fields(t *testing.T) {
	restore(t)

	var buf bytes.Buffer
	Setup(true, true, &buf)
	With("env", "a1b2").Debug("machine halted", "attempt", 2)

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("not a JSON record: %v\n%s", err, buf.String())
	}
	if rec["msg"] != "machine halted" || rec["env"] != "a1b2" || rec["attempt"] != float64(2) {
		t.Errorf("unexpected record: %v", rec)
	}
	if _, ok := rec["prefix"]; ok {
		t.Errorf("JSON records carry no text prefix: %v", rec)
	}
}

func TestSetup_Rebinds(t *testing.T) {
	restore(t)

	var first, second bytes.Buffer
	Setup(false, false, &first)
	Info("one")
	Setup(false, false, &second)
	Info("two")

	if strings.Contains(first.String(), "two") {
		t.Errorf("old writer received output after Setup: %q", first.String())
	}
	if !strings.Contains(second.String(), "two") {
		t.Errorf("new writer missing output: %q", second.String())
	}
}

func TestSetup_NilWriter(t *testing.T) {
	restore(t)

	Setup(false, false, nil)
	if Logger == nil {
		t.Fatal("Logger is nil after Setup with nil writer")
	}
}

func TestUserOutput(t *testing.T) {
	var out, errOut bytes.Buffer
	UserOut, UserErr = &out, &errOut
	defer func() { UserOut, UserErr = os.Stdout, os.Stderr }()

	UserInfo("building %s", "sample")
	UserSuccess("installed %s", "sample")
	UserWarning("removing %s", "old")
	UserError("failed: %v", "boom")

	if !strings.Contains(out.String(), "building sample") || !strings.Contains(out.String(), "installed sample") {
		t.Errorf("stdout missing info/success lines: %q", out.String())
	}
	if !strings.Contains(errOut.String(), "removing old") || !strings.Contains(errOut.String(), "failed: boom") {
		t.Errorf("stderr missing warning/error lines: %q", errOut.String())
	}
	if strings.Contains(out.String(), "boom") {
		t.Error("error lines should not go to stdout")
	}
}
