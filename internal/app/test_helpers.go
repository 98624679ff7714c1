package app

import (
	"testing"

	"github.com/vk/hpsweep/internal/registry"
	"github.com/vk/hpsweep/internal/resultsink"
	"github.com/vk/hpsweep/internal/testutil"
)

// SetupAppTest creates a new app instance for system testing. Logs are
// captured at debug level and finished runs are kept in memory.
func SetupAppTest(t *testing.T, cfg *Config, modules ...registry.Module) (*App, *testutil.SafeBuffer, *resultsink.Memory) {
	t.Helper()

	logBuffer := &testutil.SafeBuffer{}
	cfg.LogLevel = "debug"
	testApp := NewApp(logBuffer, cfg, modules...)

	sink := &resultsink.Memory{}
	testApp.UseSink(sink)

	testutil.LogOnFailure(t, logBuffer)
	return testApp, logBuffer, sink
}
