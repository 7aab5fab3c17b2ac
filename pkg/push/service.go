// Package push delivers discrepancy alert digests to a webhook and by email.
package push

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/resend/resend-go/v2"
)

// RequestTimeout for webhook requests
const RequestTimeout = 10 * time.Second

// AlertLine is one alert of a digest.
type AlertLine struct {
	Severity        string `json:"severity"`
	Message         string `json:"message"`
	SuggestedAction string `json:"suggested_action"`
}

// Digest summarizes the alerts of one comparison run.
type Digest struct {
	RunID           string      `json:"run_id"`
	OrderID         string      `json:"order_id"`
	InvoiceID       string      `json:"invoice_id"`
	ValueDifference string      `json:"value_difference"`
	HighAlerts      int         `json:"high_alerts"`
	LowAlerts       int         `json:"low_alerts"`
	Alerts          []AlertLine `json:"alerts"`
	ReportURL       string      `json:"report_url,omitempty"`
}

// EmailSender is the part of the Resend client used here.
type EmailSender interface {
	Send(params *resend.SendEmailRequest) (*resend.SendEmailResponse, error)
}

// Config configures the delivery channels. Empty values disable a channel.
type Config struct {
	WebhookURL string
	EmailFrom  string
	EmailTo    []string
	Timeout    time.Duration
}

// Service sends digests on every configured channel.
type Service struct {
	client *http.Client
	email  EmailSender
	cfg    Config
	logger *slog.Logger
}

// NewService creates a notification service. resendAPIKey may be empty.
func NewService(cfg Config, resendAPIKey string, logger *slog.Logger) *Service {
	var email EmailSender
	if resendAPIKey != "" {
		email = resend.NewClient(resendAPIKey).Emails
	}
	return NewServiceWithSender(cfg, email, logger)
}

// NewServiceWithSender is NewService with an explicit email sender.
func NewServiceWithSender(cfg Config, email EmailSender, logger *slog.Logger) *Service {
	if cfg.Timeout <= 0 {
		cfg.Timeout = RequestTimeout
	}
	return &Service{
		client: &http.Client{Timeout: cfg.Timeout},
		email:  email,
		cfg:    cfg,
		logger: logger,
	}
}

// Enabled reports whether at least one channel is configured.
func (s *Service) Enabled() bool {
	return s.cfg.WebhookURL != "" || s.emailEnabled()
}

func (s *Service) emailEnabled() bool {
	return s.email != nil && s.cfg.EmailFrom != "" && len(s.cfg.EmailTo) > 0
}

// Notify delivers d to every configured channel. A failing channel does not
// stop the others; all failures are returned joined.
func (s *Service) Notify(ctx context.Context, d Digest) error {
	if len(d.Alerts) == 0 {
		return nil
	}

	var errs []error
	if s.cfg.WebhookURL != "" {
		if err := s.postWebhook(ctx, d); err != nil {
			errs = append(errs, err)
		}
	}
	if s.emailEnabled() {
		if err := s.sendEmail(d); err != nil {
			errs = append(errs, fmt.Errorf("failed to send alert email: %w", err))
		}
	} else if s.cfg.WebhookURL == "" {
		s.logger.Debug("no notification channel configured, skipping digest", slog.String("run_id", d.RunID))
	}
	return errors.Join(errs...)
}

func (s *Service) postWebhook(ctx context.Context, d Digest) error {
	payload, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("failed to marshal digest: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.WebhookURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		s.logger.Error("alert webhook failed", slog.Int("status", resp.StatusCode), slog.String("body", string(body)))
		return fmt.Errorf("webhook failed with status: %d", resp.StatusCode)
	}

	s.logger.Info("alert webhook sent", slog.String("run_id", d.RunID), slog.Int("alerts", len(d.Alerts)))
	return nil
}

func (s *Service) sendEmail(d Digest) error {
	resp, err := s.email.Send(&resend.SendEmailRequest{
		From:    s.cfg.EmailFrom,
		To:      s.cfg.EmailTo,
		Subject: Subject(d),
		Html:    renderHTML(d),
	})
	if err != nil {
		return err
	}
	if resp != nil {
		s.logger.Info("alert email sent", slog.String("run_id", d.RunID), slog.String("email_id", resp.Id))
	}
	return nil
}

// Subject is the email subject line of a digest.
func Subject(d Digest) string {
	return fmt.Sprintf("[PO reconciliation] %d high / %d low alerts: %s vs %s",
		d.HighAlerts, d.LowAlerts, d.OrderID, d.InvoiceID)
}

func renderHTML(d Digest) string {
	var rows strings.Builder
	for _, a := range d.Alerts {
		fmt.Fprintf(&rows, "<tr><td>%s</td><td>%s</td><td>%s</td></tr>\n",
			html.EscapeString(a.Severity), html.EscapeString(a.Message), html.EscapeString(a.SuggestedAction))
	}

	link := ""
	if d.ReportURL != "" {
		link = fmt.Sprintf(`<p><a href="%s">Download the full report</a></p>`, html.EscapeString(d.ReportURL))
	}

	return fmt.Sprintf(`
<!DOCTYPE html>
<html>
<body style="font-family: sans-serif;">
  <h2>Discrepancies found</h2>
  <p>Order <b>%s</b> vs invoice <b>%s</b>. Value difference: <b>%s</b>.</p>
  <table border="1" cellpadding="6" cellspacing="0">
    <tr><th>Severity</th><th>Alert</th><th>Suggested action</th></tr>
%s  </table>
  %s
</body>
</html>
`, html.EscapeString(d.OrderID), html.EscapeString(d.InvoiceID), html.EscapeString(d.ValueDifference), rows.String(), link)
}
