package testsupport

import (
	"path/filepath"
	"testing"

	"drugscreen/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// Email goes through the log transport and documents live under the temp dir.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.EnvFile = ""
	cfgVal.Paths.APIBind = "127.0.0.1:0"
	cfgVal.Documents.FSRoot = filepath.Join(base, "documents")
	cfgVal.Email.Transport = config.EmailTransportLog
	cfgVal.Email.SendDelayMS = 0

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}
	for _, opt := range opts {
		opt(builder)
	}
	return builder.cfg
}

// WithDocumentsDriver selects the document backend on the test config.
func WithDocumentsDriver(driver string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Documents.Driver = driver
	}
}

// WithTestMode enables email test-mode redirection to the given address.
func WithTestMode(address string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Email.TestMode = true
		b.cfg.Email.TestAddress = address
	}
}

// WithDispatchMode sets the notification dispatch mode.
func WithDispatchMode(mode string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Notifications.DispatchMode = mode
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}
