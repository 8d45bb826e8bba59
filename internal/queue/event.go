// Package queue moves outbound mail through RabbitMQ so request handlers do
// not wait on the mail API.
package queue

import (
	"time"

	"github.com/iliyamo/maintenance-auth/internal/mail"
)

// DefaultMailQueue is used when no queue name is configured.
const DefaultMailQueue = "mail.outbound"

// MailJob is the payload published for every queued message.
type MailJob struct {
	Message  mail.Message `json:"message"`
	QueuedAt time.Time    `json:"queued_at"`
}
