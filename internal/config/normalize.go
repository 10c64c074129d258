package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeDocuments(); err != nil {
		return err
	}
	c.normalizeEmail()
	c.normalizeAlerts()
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if c.Paths.EnvFile, err = expandPath(strings.TrimSpace(c.Paths.EnvFile)); err != nil {
		return fmt.Errorf("paths.env_file: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	c.Paths.APIToken = strings.TrimSpace(c.Paths.APIToken)
	if c.Paths.APIToken == "" {
		if value, ok := os.LookupEnv("DRUGSCREEN_API_TOKEN"); ok {
			c.Paths.APIToken = strings.TrimSpace(value)
		}
	}
	return nil
}

func (c *Config) normalizeDocuments() error {
	c.Documents.Driver = strings.ToLower(strings.TrimSpace(c.Documents.Driver))
	if c.Documents.Driver == "" {
		c.Documents.Driver = DocumentsDriverFS
	}
	var err error
	if strings.TrimSpace(c.Documents.FSRoot) == "" {
		c.Documents.FSRoot = defaultDocumentsRoot
	}
	if c.Documents.FSRoot, err = expandPath(c.Documents.FSRoot); err != nil {
		return fmt.Errorf("documents.fs_root: %w", err)
	}
	c.Documents.S3Bucket = strings.TrimSpace(c.Documents.S3Bucket)
	if c.Documents.S3Bucket == "" {
		if value, ok := os.LookupEnv("DRUGSCREEN_S3_BUCKET"); ok {
			c.Documents.S3Bucket = strings.TrimSpace(value)
		}
	}
	c.Documents.S3Region = strings.TrimSpace(c.Documents.S3Region)
	if c.Documents.S3Region == "" {
		c.Documents.S3Region = defaultS3Region
	}
	c.Documents.S3Endpoint = strings.TrimSpace(c.Documents.S3Endpoint)
	c.Documents.S3Prefix = strings.Trim(strings.TrimSpace(c.Documents.S3Prefix), "/")
	c.Documents.S3AccessKeyID = strings.TrimSpace(c.Documents.S3AccessKeyID)
	if c.Documents.S3AccessKeyID == "" {
		c.Documents.S3AccessKeyID = strings.TrimSpace(os.Getenv("DRUGSCREEN_S3_ACCESS_KEY_ID"))
	}
	c.Documents.S3SecretAccessKey = strings.TrimSpace(c.Documents.S3SecretAccessKey)
	if c.Documents.S3SecretAccessKey == "" {
		c.Documents.S3SecretAccessKey = strings.TrimSpace(os.Getenv("DRUGSCREEN_S3_SECRET_ACCESS_KEY"))
	}
	return nil
}

func (c *Config) normalizeEmail() {
	c.Email.Transport = strings.ToLower(strings.TrimSpace(c.Email.Transport))
	if c.Email.Transport == "" {
		c.Email.Transport = EmailTransportHTTP
	}
	c.Email.APIURL = strings.TrimRight(strings.TrimSpace(c.Email.APIURL), "/")
	if c.Email.APIURL == "" {
		c.Email.APIURL = defaultEmailAPIURL
	}
	c.Email.APIKey = strings.TrimSpace(c.Email.APIKey)
	if c.Email.APIKey == "" {
		if value, ok := os.LookupEnv("DRUGSCREEN_EMAIL_API_KEY"); ok {
			c.Email.APIKey = strings.TrimSpace(value)
		}
	}
	c.Email.From = strings.TrimSpace(c.Email.From)
	if c.Email.From == "" {
		c.Email.From = defaultEmailFrom
	}
	if c.Email.SendDelayMS < 0 {
		c.Email.SendDelayMS = 0
	}
	if c.Email.RequestTimeout <= 0 {
		c.Email.RequestTimeout = defaultEmailRequestTimeout
	}
	c.Email.TestAddress = strings.ToLower(strings.TrimSpace(c.Email.TestAddress))
	if c.Email.TestAddress == "" {
		c.Email.TestAddress = defaultEmailTestAddress
	}
	if value, ok := os.LookupEnv("DRUGSCREEN_EMAIL_TEST_MODE"); ok {
		switch strings.ToLower(strings.TrimSpace(value)) {
		case "1", "true", "yes", "on":
			c.Email.TestMode = true
		case "0", "false", "no", "off":
			c.Email.TestMode = false
		}
	}
}

func (c *Config) normalizeAlerts() {
	c.Alerts.NtfyTopic = strings.TrimSpace(c.Alerts.NtfyTopic)
	if c.Alerts.NtfyTopic == "" {
		if value, ok := os.LookupEnv("DRUGSCREEN_NTFY_TOPIC"); ok {
			c.Alerts.NtfyTopic = strings.TrimSpace(value)
		}
	}
	if c.Alerts.RequestTimeout <= 0 {
		c.Alerts.RequestTimeout = defaultAlertsRequestTimeout
	}
}

func (c *Config) normalizeNotifications() {
	c.Notifications.DispatchMode = strings.ToLower(strings.TrimSpace(c.Notifications.DispatchMode))
	if c.Notifications.DispatchMode == "" {
		c.Notifications.DispatchMode = DispatchInline
	}
	if c.Notifications.PollInterval <= 0 {
		c.Notifications.PollInterval = defaultNotifyPollInterval
	}
	if c.Notifications.BatchSize <= 0 {
		c.Notifications.BatchSize = defaultNotifyBatchSize
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
