// Package integration provides a test harness for builds that drive a
// real vagrant installation.
//
// Integration tests are skipped unless the BASEBOX_INTEGRATION_TESTS
// environment variable is set. These tests require:
//   - vagrant and VBoxManage on PATH
//   - a base box reference in BASEBOX_INTEGRATION_BASE
//   - enough free memory to boot one VirtualBox guest
//
// # Test Harness
//
//	func TestMyIntegration(t *testing.T) {
//	    h := integration.NewHarness(t) // Skips if env var not set
//
//	    name := h.BoxName("web")
//	    res, err := h.App().Builder.Build(ctx, build.Config{Name: name}, routine)
//
//	    // Installed boxes are removed via t.Cleanup
//	}
//
// # Running Integration Tests
//
//	BASEBOX_INTEGRATION_TESTS=1 BASEBOX_INTEGRATION_BASE=precise64 \
//	    go test -v -timeout 30m ./internal/integration/...
package integration
