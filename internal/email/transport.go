package email

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"drugscreen/internal/config"
	"drugscreen/internal/logging"
	"drugscreen/internal/services"
)

const userAgent = "drugscreen/1.0"

// Attachment is a file sent with a message.
type Attachment struct {
	Filename    string
	ContentType string
	Content     []byte
}

// Message is one outbound email to a single recipient.
type Message struct {
	From        string
	To          string
	Subject     string
	HTML        string
	Attachments []Attachment
}

// Transport delivers a message.
type Transport interface {
	Send(ctx context.Context, msg Message) error
}

// New builds the transport named by cfg.Email.Transport.
func New(cfg *config.Config, logger *slog.Logger) (Transport, error) {
	if cfg == nil {
		return nil, services.Wrap(services.ErrConfiguration, "email", "new", "configuration is required", nil)
	}
	switch strings.ToLower(cfg.Email.Transport) {
	case config.EmailTransportHTTP:
		timeout := time.Duration(cfg.Email.RequestTimeout) * time.Second
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		return NewHTTPTransport(cfg.Email.APIURL, cfg.Email.APIKey, &http.Client{Timeout: timeout}), nil
	case config.EmailTransportLog:
		return NewLogTransport(logger), nil
	default:
		return nil, services.Wrap(services.ErrConfiguration, "email", "new", "unknown transport "+cfg.Email.Transport, nil)
	}
}

// LogTransport logs messages instead of sending them.
type LogTransport struct {
	logger *slog.Logger
}

func NewLogTransport(logger *slog.Logger) *LogTransport {
	return &LogTransport{logger: logging.NewComponentLogger(logger, "email")}
}

func (t *LogTransport) Send(ctx context.Context, msg Message) error {
	names := make([]string, 0, len(msg.Attachments))
	for _, a := range msg.Attachments {
		names = append(names, a.Filename)
	}
	t.logger.InfoContext(ctx, "email not sent (log transport)",
		logging.String("to", msg.To),
		logging.String("subject", msg.Subject),
		logging.Strings("attachments", names),
		logging.Int("html_bytes", len(msg.HTML)),
	)
	return nil
}
