package mail

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/iliyamo/maintenance-auth/internal/metrics"
)

// HTTPMailer posts messages to a transactional mail API that accepts
// {sender, to, subject, htmlContent} and authenticates with an api-key
// header.
type HTTPMailer struct {
	URL    string
	APIKey string
	Sender Recipient
	Client *http.Client
}

// NewHTTPMailer returns a mailer with a client bounded by timeout.
func NewHTTPMailer(url, apiKey string, sender Recipient, timeout time.Duration) *HTTPMailer {
	return &HTTPMailer{
		URL:    url,
		APIKey: apiKey,
		Sender: sender,
		Client: &http.Client{Timeout: timeout},
	}
}

type apiRequest struct {
	Sender      Recipient   `json:"sender"`
	To          []Recipient `json:"to"`
	Subject     string      `json:"subject"`
	HTMLContent string      `json:"htmlContent"`
}

func (m *HTTPMailer) Send(ctx context.Context, msg Message) error {
	if len(msg.To) == 0 {
		return fmt.Errorf("%w: no recipients", ErrNotSent)
	}
	body, err := json.Marshal(apiRequest{
		Sender:      m.Sender,
		To:          msg.To,
		Subject:     msg.Subject,
		HTMLContent: msg.HTML,
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNotSent, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNotSent, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("api-key", m.APIKey)

	client := m.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		metrics.MailSent.WithLabelValues(ModeAPI, "error").Inc()
		return fmt.Errorf("%w: %v", ErrNotSent, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		metrics.MailSent.WithLabelValues(ModeAPI, "rejected").Inc()
		return fmt.Errorf("%w: mail api answered %d: %s", ErrNotSent, resp.StatusCode, bytes.TrimSpace(detail))
	}
	metrics.MailSent.WithLabelValues(ModeAPI, "ok").Inc()
	return nil
}
