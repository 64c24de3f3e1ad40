package integration

import (
	"os"
	"strings"
	"testing"
)

// TestHarnessSkipsWhenDisabled verifies that the harness skips tests
// when BASEBOX_INTEGRATION_TESTS is not set.
func TestHarnessSkipsWhenDisabled(t *testing.T) {
	if os.Getenv(EnvEnable) != "" {
		h := NewHarness(t)
		if h == nil {
			t.Error("NewHarness returned nil")
		}
		return
	}

	skipped := t.Run("inner", func(t *testing.T) {
		NewHarness(t)
		t.Error("NewHarness should have skipped")
	})
	if !skipped {
		t.Error("inner test should report as passed after skipping")
	}
}

func TestBoxNameUnique(t *testing.T) {
	h := &TestHarness{t: t}

	a := h.BoxName("web")
	b := h.BoxName("web")

	if a == b {
		t.Errorf("BoxName returned %q twice", a)
	}
	if !strings.HasPrefix(a, "web-it-") {
		t.Errorf("BoxName = %q, want prefix web-it-", a)
	}
	if len(h.boxes) != 2 {
		t.Errorf("tracked %d boxes, want 2", len(h.boxes))
	}
}
