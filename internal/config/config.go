package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	DataDir  string `toml:"data_dir"`
	LogDir   string `toml:"log_dir"`
	EnvFile  string `toml:"env_file"`
	APIBind  string `toml:"api_bind"`
	APIToken string `toml:"api_token"`
}

// Documents selects the blob backend that holds screening and confirmation documents.
type Documents struct {
	Driver      string `toml:"driver"`
	FSRoot      string `toml:"fs_root"`
	S3Bucket    string `toml:"s3_bucket"`
	S3Region    string `toml:"s3_region"`
	S3Endpoint  string `toml:"s3_endpoint"`
	S3Prefix    string `toml:"s3_prefix"`
	S3PathStyle bool   `toml:"s3_path_style"`
	// Static keys; when empty the default AWS credential chain applies.
	S3AccessKeyID     string `toml:"s3_access_key_id"`
	S3SecretAccessKey string `toml:"s3_secret_access_key"`
}

// Email contains transactional mail transport settings.
type Email struct {
	Transport      string `toml:"transport"`
	APIURL         string `toml:"api_url"`
	APIKey         string `toml:"api_key"`
	From           string `toml:"from"`
	SendDelayMS    int    `toml:"send_delay_ms"`
	RequestTimeout int    `toml:"request_timeout"`
	TestMode       bool   `toml:"test_mode"`
	TestAddress    string `toml:"test_address"`
}

// Alerts contains configuration for operator alerts delivered over ntfy.
type Alerts struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
}

// Notifications controls how test saves drive the notification pipeline.
type Notifications struct {
	Enabled      bool   `toml:"enabled"`
	DispatchMode string `toml:"dispatch_mode"`
	PollInterval int    `toml:"poll_interval"`
	BatchSize    int    `toml:"batch_size"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for drugscreen.
//
// Configuration sections by subsystem:
//   - Paths: data directory, logs, and API bind address
//   - Documents: blob backend for screening documents
//   - Email: mail transport, pacing, and test-mode redirection
//   - Alerts: ntfy topic for operator alerts
//   - Notifications: pipeline enablement and outbox dispatch mode
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	Documents     Documents     `toml:"documents"`
	Email         Email         `toml:"email"`
	Alerts        Alerts        `toml:"alerts"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized. Secrets may also come from a dotenv file.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := loadEnvFile(cfg.Paths.EnvFile); err != nil {
		return nil, "", false, err
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

// loadEnvFile populates unset environment variables from a dotenv file.
// A missing file is not an error; variables already in the environment win.
func loadEnvFile(path string) error {
	if strings.TrimSpace(path) == "" {
		return nil
	}
	expanded, err := expandPath(path)
	if err != nil {
		return fmt.Errorf("paths.env_file: %w", err)
	}
	if _, err := os.Stat(expanded); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("stat env file: %w", err)
	}
	if err := godotenv.Load(expanded); err != nil {
		return fmt.Errorf("load env file: %w", err)
	}
	return nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("drugscreen.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the data and log directories, plus the document
// root when the filesystem backend is selected.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Paths.DataDir, c.Paths.LogDir}
	if c.Documents.Driver == DocumentsDriverFS {
		dirs = append(dirs, c.Documents.FSRoot)
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// DatabasePath returns the SQLite database location inside the data directory.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.DataDir, "drugscreen.db")
}

// LockPath returns the outbox worker lock file location.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.DataDir, "worker.lock")
}

// SendDelay returns the pause between consecutive email sends.
func (c *Config) SendDelay() time.Duration {
	return time.Duration(c.Email.SendDelayMS) * time.Millisecond
}

// PollInterval returns the outbox polling interval used in worker mode.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Notifications.PollInterval) * time.Second
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
