package alerts

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"drugscreen/internal/config"
	"drugscreen/internal/logging"
	"drugscreen/internal/metrics"
)

const userAgent = "drugscreen/1.0"

// Severity ranks an alert.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

// Alert types raised by the notification pipeline.
const (
	TypeEmailFailure  = "email_failure"
	TypeDataIntegrity = "data_integrity"
	TypePipelineError = "pipeline_error"
)

// Alert is an operator-facing event.
type Alert struct {
	ID       string
	Severity Severity
	Type     string
	Title    string
	Message  string
	Context  map[string]string
}

// Channel raises alerts.
type Channel interface {
	Raise(ctx context.Context, alert Alert) error
}

// NewChannel builds a logging channel that also forwards to ntfy when a topic
// is configured.
func NewChannel(cfg *config.Config, logger *slog.Logger) Channel {
	var forward Channel = noopChannel{}
	if cfg != nil {
		if topic := strings.TrimSpace(cfg.Alerts.NtfyTopic); topic != "" {
			timeout := time.Duration(cfg.Alerts.RequestTimeout) * time.Second
			if timeout <= 0 {
				timeout = 10 * time.Second
			}
			forward = NewNtfyChannel(topic, &http.Client{Timeout: timeout})
		}
	}
	return &loggingChannel{logger: logging.NewComponentLogger(logger, "alerts"), next: forward}
}

type loggingChannel struct {
	logger *slog.Logger
	next   Channel
}

func (c *loggingChannel) Raise(ctx context.Context, alert Alert) error {
	if alert.ID == "" {
		alert.ID = uuid.NewString()
	}
	if alert.Severity == "" {
		alert.Severity = SeverityMedium
	}
	metrics.AlertsTotal.WithLabelValues(string(alert.Severity)).Inc()

	attrs := []logging.Attr{
		logging.String("alert_id", alert.ID),
		logging.String("alert_type", alert.Type),
		logging.String("severity", string(alert.Severity)),
		logging.String("title", alert.Title),
	}
	for _, key := range slices.Sorted(maps.Keys(alert.Context)) {
		attrs = append(attrs, logging.String("ctx_"+key, alert.Context[key]))
	}
	logging.WarnWithContext(c.logger, "admin alert raised", "admin_alert",
		append(attrs,
			logging.String(logging.FieldErrorHint, alert.Message),
			logging.String(logging.FieldImpact, "operator attention required"),
		)...,
	)

	if err := c.next.Raise(ctx, alert); err != nil {
		logging.WarnWithContext(c.logger, "alert forward failed", "alert_forward_failed",
			logging.String("alert_id", alert.ID),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check alerts.ntfy_topic and network access"),
			logging.String(logging.FieldImpact, "alert only recorded in logs"),
		)
		return err
	}
	return nil
}

// NtfyChannel posts alerts to an ntfy topic URL.
type NtfyChannel struct {
	endpoint string
	client   *http.Client
}

func NewNtfyChannel(endpoint string, client *http.Client) *NtfyChannel {
	if client == nil {
		client = http.DefaultClient
	}
	return &NtfyChannel{endpoint: endpoint, client: client}
}

func (n *NtfyChannel) Raise(ctx context.Context, alert Alert) error {
	var body strings.Builder
	body.WriteString(strings.TrimSpace(alert.Message))
	for _, key := range slices.Sorted(maps.Keys(alert.Context)) {
		fmt.Fprintf(&body, "\n%s: %s", key, alert.Context[key])
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(body.String()))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	title := strings.TrimSpace(alert.Title)
	if title == "" {
		title = "Drug screen alert"
	}
	req.Header.Set("Title", title)
	req.Header.Set("Tags", strings.Join(tagsFor(alert), ","))
	if priority := ntfyPriority(alert.Severity); priority != "default" {
		req.Header.Set("Priority", priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy alert: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func ntfyPriority(severity Severity) string {
	switch severity {
	case SeverityCritical:
		return "urgent"
	case SeverityHigh:
		return "high"
	case SeverityLow:
		return "low"
	default:
		return "default"
	}
}

func tagsFor(alert Alert) []string {
	tags := []string{"drugscreen", string(alert.Severity)}
	if alert.Type != "" {
		tags = append(tags, alert.Type)
	}
	return tags
}

type noopChannel struct{}

func (noopChannel) Raise(context.Context, Alert) error { return nil }
