package app

import (
	"os"
	"testing"

	"github.com/vk/projforge/internal/hcl"
	"github.com/vk/projforge/internal/testutil"
)

// SetupAppTest creates a new app instance for system testing, backed by the
// HCL loader and logging at debug level into the returned buffer.
func SetupAppTest(t *testing.T, cfg *Config) (*App, *testutil.SafeBuffer) {
	t.Helper()

	logBuffer := &testutil.SafeBuffer{}
	cfg.LogLevel = "debug"
	testApp := NewApp(logBuffer, cfg, hcl.NewLoader())

	t.Cleanup(func() {
		if os.Getenv("PROJFORGE_TEST_LOGS") == "true" {
			t.Logf("--- Full Log Output for %s ---\n%s", t.Name(), logBuffer.String())
		}
	})

	return testApp, logBuffer
}
