// Package mail delivers transactional email.  Three transports exist: a
// development transport that prints messages, an HTTP transport for a
// transactional mail API and, in package queue, a RabbitMQ publisher whose
// consumer delivers through the HTTP transport.
package mail

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/labstack/gommon/log"

	"github.com/iliyamo/maintenance-auth/internal/metrics"
)

// Transport names accepted by MAIL_MODE.
const (
	ModeDevelopment = "development"
	ModeAPI         = "api"
	ModeQueue       = "queue"
)

// ErrNotSent is wrapped by every delivery failure.
var ErrNotSent = errors.New("mail not sent")

// Recipient is a named address.
type Recipient struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email"`
}

// Message is a rendered email.
type Message struct {
	To      []Recipient `json:"to"`
	Subject string      `json:"subject"`
	HTML    string      `json:"html"`
}

// Mailer sends a rendered message.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// LogMailer is the development transport.  Messages are written to Out
// instead of being delivered.
type LogMailer struct {
	Out io.Writer
}

func NewLogMailer() *LogMailer { return &LogMailer{Out: os.Stdout} }

func (m *LogMailer) Send(_ context.Context, msg Message) error {
	out := m.Out
	if out == nil {
		out = os.Stdout
	}
	to := make([]string, 0, len(msg.To))
	for _, r := range msg.To {
		to = append(to, r.Email)
	}
	log.Infof("mail: development mode, printing message for %s", strings.Join(to, ","))
	if _, err := fmt.Fprintf(out, "To: %s\nSubject: %s\n\n%s\n", strings.Join(to, ", "), msg.Subject, msg.HTML); err != nil {
		metrics.MailSent.WithLabelValues(ModeDevelopment, "error").Inc()
		return fmt.Errorf("%w: %v", ErrNotSent, err)
	}
	metrics.MailSent.WithLabelValues(ModeDevelopment, "ok").Inc()
	return nil
}
