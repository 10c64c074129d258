package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/juju/ratelimit"

	"drugscreen/internal/alerts"
	"drugscreen/internal/config"
	"drugscreen/internal/email"
	"drugscreen/internal/logging"
	"drugscreen/internal/metrics"
	"drugscreen/internal/services"
	"drugscreen/internal/store"
)

// DispatcherConfig is the per-environment delivery policy.
type DispatcherConfig struct {
	From        string
	TestMode    bool
	TestAddress string
	SendDelay   time.Duration
}

// DispatcherConfigFrom extracts delivery policy from application config.
func DispatcherConfigFrom(cfg *config.Config) DispatcherConfig {
	return DispatcherConfig{
		From:        cfg.Email.From,
		TestMode:    cfg.Email.TestMode,
		TestAddress: cfg.Email.TestAddress,
		SendDelay:   cfg.SendDelay(),
	}
}

// DispatchRequest describes one stage delivery.
type DispatchRequest struct {
	TestID      string
	Stage       store.Stage
	Recipients  RecipientSet
	Content     Rendered
	Attachments []email.Attachment
}

// DispatchResult lists delivered and failed recipient addresses.
type DispatchResult struct {
	SentTo []string
	Failed []string
}

// Dispatcher sends stage emails one recipient at a time.
type Dispatcher struct {
	transport email.Transport
	alerts    alerts.Channel
	cfg       DispatcherConfig
	pacer     *ratelimit.Bucket
	logger    *slog.Logger
}

// NewDispatcher builds a dispatcher. A positive SendDelay paces sends through
// a single-token bucket shared by every dispatch.
func NewDispatcher(transport email.Transport, channel alerts.Channel, cfg DispatcherConfig, logger *slog.Logger) *Dispatcher {
	d := &Dispatcher{
		transport: transport,
		alerts:    channel,
		cfg:       cfg,
		logger:    logging.NewComponentLogger(logger, "dispatcher"),
	}
	if cfg.SendDelay > 0 {
		d.pacer = ratelimit.NewBucket(cfg.SendDelay, 1)
	}
	return d
}

type delivery struct {
	to       string
	audience Audience
}

// Dispatch sends to the client first, unless the stage is collected or the
// client already appears among the referrals, then to each referral. A failed
// send is recorded and alerted; it never stops the remaining sends.
func (d *Dispatcher) Dispatch(ctx context.Context, req DispatchRequest) DispatchResult {
	logger := logging.WithContext(ctx, d.logger)
	var plan []delivery
	client := strings.TrimSpace(req.Recipients.ClientEmail)
	switch {
	case client == "":
	case req.Stage == store.StageCollected:
	case req.Recipients.HasReferral(client):
	default:
		plan = append(plan, delivery{to: client, audience: AudienceClient})
	}
	for _, addr := range req.Recipients.ReferralEmails() {
		plan = append(plan, delivery{to: addr, audience: AudienceReferral})
	}

	result := DispatchResult{SentTo: []string{}, Failed: []string{}}
	for _, item := range plan {
		if err := d.pace(ctx); err != nil {
			metrics.EmailSendTotal.WithLabelValues(string(item.audience), "failed").Inc()
			result.Failed = append(result.Failed, item.to)
			d.reportFailure(ctx, logger, req, item, fmt.Errorf("send not attempted: %w", err))
			continue
		}
		content := req.Content.For(item.audience)
		msg := email.Message{
			From:        d.cfg.From,
			To:          item.to,
			Subject:     content.Subject,
			HTML:        content.HTML,
			Attachments: req.Attachments,
		}
		if d.cfg.TestMode {
			msg.To = d.cfg.TestAddress
		}

		err := d.transport.Send(ctx, msg)
		if err == nil {
			metrics.EmailSendTotal.WithLabelValues(string(item.audience), "sent").Inc()
			result.SentTo = append(result.SentTo, item.to)
			attrs := []logging.Attr{
				logging.String("recipient", item.to),
				logging.String("audience", string(item.audience)),
			}
			if d.cfg.TestMode {
				attrs = append(attrs, logging.String("redirected_to", msg.To))
			}
			logger.Debug("email sent", logging.Args(attrs...)...)
			continue
		}

		metrics.EmailSendTotal.WithLabelValues(string(item.audience), "failed").Inc()
		result.Failed = append(result.Failed, item.to)
		d.reportFailure(ctx, logger, req, item, err)
	}
	return result
}

func (d *Dispatcher) pace(ctx context.Context) error {
	if d.pacer == nil {
		return ctx.Err()
	}
	wait := d.pacer.Take(1)
	if wait <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (d *Dispatcher) reportFailure(ctx context.Context, logger *slog.Logger, req DispatchRequest, item delivery, sendErr error) {
	severity := alerts.SeverityHigh
	if item.audience == AudienceReferral {
		severity = alerts.SeverityCritical
	}
	logging.WarnWithContext(logger, "email send failed", "email_send_failed",
		logging.String("recipient", item.to),
		logging.String("audience", string(item.audience)),
		logging.String("severity", string(severity)),
		logging.Bool("test_mode", d.cfg.TestMode),
		logging.String(logging.FieldErrorKind, services.Kind(sendErr)),
		logging.Error(sendErr),
		logging.String(logging.FieldErrorHint, "check email transport credentials and recipient address"),
		logging.String(logging.FieldImpact, "recipient did not receive this stage"),
	)
	if d.cfg.TestMode || d.alerts == nil {
		return
	}
	title := "Client email failed"
	if item.audience == AudienceReferral {
		title = "Referral email failed"
	}
	// Alerts are raised even after the dispatch context is cancelled.
	_ = d.alerts.Raise(context.WithoutCancel(ctx), alerts.Alert{
		Severity: severity,
		Type:     alerts.TypeEmailFailure,
		Title:    title,
		Message:  sendErr.Error(),
		Context: map[string]string{
			"test_id":   req.TestID,
			"stage":     string(req.Stage),
			"recipient": item.to,
			"audience":  string(item.audience),
		},
	})
}
