package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/labstack/gommon/log"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/iliyamo/maintenance-auth/internal/mail"
	"github.com/iliyamo/maintenance-auth/internal/metrics"
)

// Publisher implements mail.Mailer by publishing MailJobs.  Each Send dials
// the broker; mail volume is low and this keeps the publisher stateless.
type Publisher struct {
	URL   string
	Queue string
}

func NewPublisher(url, queue string) *Publisher {
	if queue == "" {
		queue = DefaultMailQueue
	}
	return &Publisher{URL: url, Queue: queue}
}

// Send publishes msg as a persistent message on the mail queue.
func (p *Publisher) Send(ctx context.Context, msg mail.Message) error {
	if err := p.publish(ctx, msg); err != nil {
		log.Errorf("rabbitmq: %v", err)
		metrics.MailSent.WithLabelValues(mail.ModeQueue, "error").Inc()
		return fmt.Errorf("%w: %v", mail.ErrNotSent, err)
	}
	metrics.MailSent.WithLabelValues(mail.ModeQueue, "queued").Inc()
	return nil
}

func (p *Publisher) publish(ctx context.Context, msg mail.Message) error {
	conn, err := amqp.Dial(p.URL)
	if err != nil {
		return fmt.Errorf("dial failed: %w", err)
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open failed: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := declare(ch, p.Queue); err != nil {
		return err
	}

	body, err := json.Marshal(MailJob{Message: msg, QueuedAt: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("marshal job failed: %w", err)
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent, // store on disk
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx,
		"",      // default exchange
		p.Queue, // routing key = queue name
		false,   // mandatory
		false,   // immediate
		pub,
	); err != nil {
		return fmt.Errorf("publish failed: %w", err)
	}
	return nil
}

// declare ensures the durable queue exists.  Idempotent.
func declare(ch *amqp.Channel, queue string) error {
	if _, err := ch.QueueDeclare(
		queue, // name
		true,  // durable
		false, // autoDelete
		false, // exclusive
		false, // noWait
		nil,   // args
	); err != nil {
		return fmt.Errorf("queue declare failed: %w", err)
	}
	return nil
}
