package config

import (
	"errors"
	"fmt"
	"net/mail"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateDocuments(); err != nil {
		return err
	}
	if err := c.validateEmail(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateDocuments() error {
	switch c.Documents.Driver {
	case DocumentsDriverFS:
		if strings.TrimSpace(c.Documents.FSRoot) == "" {
			return errors.New("documents.fs_root must be set when documents.driver is fs")
		}
	case DocumentsDriverS3:
		if c.Documents.S3Bucket == "" {
			return errors.New("documents.s3_bucket must be set when documents.driver is s3 (or set DRUGSCREEN_S3_BUCKET)")
		}
		if (c.Documents.S3AccessKeyID == "") != (c.Documents.S3SecretAccessKey == "") {
			return errors.New("documents.s3_access_key_id and documents.s3_secret_access_key must be set together")
		}
	case DocumentsDriverMemory:
	default:
		return fmt.Errorf("documents.driver %q is not supported (use fs, s3, or memory)", c.Documents.Driver)
	}
	return nil
}

func (c *Config) validateEmail() error {
	switch c.Email.Transport {
	case EmailTransportHTTP:
		if c.Email.APIKey == "" {
			defaultPath, err := DefaultConfigPath()
			if err != nil {
				defaultPath = defaultConfigPath
			}
			return fmt.Errorf("email.api_key is required for the http transport. Set DRUGSCREEN_EMAIL_API_KEY or edit %s (create with 'drugscreen config init')", defaultPath)
		}
	case EmailTransportLog:
	default:
		return fmt.Errorf("email.transport %q is not supported (use http or log)", c.Email.Transport)
	}
	if _, err := mail.ParseAddress(c.Email.From); err != nil {
		return fmt.Errorf("email.from: %w", err)
	}
	if c.Email.TestMode {
		if _, err := mail.ParseAddress(c.Email.TestAddress); err != nil {
			return fmt.Errorf("email.test_address: %w", err)
		}
	}
	return nil
}

func (c *Config) validateNotifications() error {
	switch c.Notifications.DispatchMode {
	case DispatchInline, DispatchWorker:
	default:
		return fmt.Errorf("notifications.dispatch_mode %q is not supported (use inline or worker)", c.Notifications.DispatchMode)
	}
	if err := ensurePositiveMap(map[string]int{
		"email.request_timeout":       c.Email.RequestTimeout,
		"alerts.request_timeout":      c.Alerts.RequestTimeout,
		"notifications.poll_interval": c.Notifications.PollInterval,
		"notifications.batch_size":    c.Notifications.BatchSize,
	}); err != nil {
		return err
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
