package mail

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/msomdec/quill/internal/domain"
)

const publishTimeout = 5 * time.Second

// Queue is a durable AMQP queue of outgoing email. The API server
// publishes to it and the mail worker consumes from it.
type Queue struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	name    string
}

// DialQueue connects to the broker and declares the queue.
func DialQueue(url, name string) (*Queue, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("connect to amqp: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	q, err := ch.QueueDeclare(
		name,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declare queue %s: %w", name, err)
	}

	return &Queue{conn: conn, channel: ch, name: q.Name}, nil
}

// Close closes the channel and connection.
func (q *Queue) Close() error {
	return errors.Join(q.channel.Close(), q.conn.Close())
}

// Publisher returns a Mailer that enqueues messages on q.
func (q *Queue) Publisher() *Publisher {
	return NewPublisher(q.channel, q.name)
}

// Consume delivers queued messages through deliver until ctx is done or
// the broker closes the channel. Only one message is in flight at a time.
func (q *Queue) Consume(ctx context.Context, deliver domain.Mailer) error {
	if err := q.channel.Qos(1, 0, false); err != nil {
		return fmt.Errorf("set qos: %w", err)
	}

	deliveries, err := q.channel.Consume(
		q.name,
		"",    // consumer
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("register consumer: %w", err)
	}

	slog.Info("consuming mail queue", "queue", q.name)
	return ProcessDeliveries(ctx, deliveries, deliver)
}

// Channel is the subset of *amqp.Channel used for publishing.
type Channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// Publisher implements domain.Mailer by publishing JSON-encoded messages.
type Publisher struct {
	channel Channel
	queue   string
}

func NewPublisher(ch Channel, queue string) *Publisher {
	return &Publisher{channel: ch, queue: queue}
}

func (p *Publisher) Send(ctx context.Context, msg domain.Email) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("%w: marshal email: %w", domain.ErrDeliveryFailure, err)
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	err = p.channel.PublishWithContext(ctx,
		"",      // default exchange
		p.queue, // routing key
		false,   // mandatory
		false,   // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("%w: publish: %w", domain.ErrDeliveryFailure, err)
	}
	return nil
}

// ProcessDeliveries handles deliveries until ctx is done or the channel
// closes. Undecodable messages are dropped. A failed send is requeued
// once; a message that fails again after redelivery is dropped.
func ProcessDeliveries(ctx context.Context, deliveries <-chan amqp.Delivery, deliver domain.Mailer) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return errors.New("delivery channel closed")
			}
			handleDelivery(ctx, d, deliver)
		}
	}
}

func handleDelivery(ctx context.Context, d amqp.Delivery, deliver domain.Mailer) {
	var msg domain.Email
	if err := json.Unmarshal(d.Body, &msg); err != nil || msg.To == "" {
		slog.Error("discard malformed mail message", "error", err)
		if err := d.Nack(false, false); err != nil {
			slog.Error("nack message", "error", err)
		}
		return
	}

	if err := deliver.Send(ctx, msg); err != nil {
		requeue := !d.Redelivered
		slog.Error("deliver queued email", "to", msg.To, "requeue", requeue, "error", err)
		if err := d.Nack(false, requeue); err != nil {
			slog.Error("nack message", "error", err)
		}
		return
	}

	if err := d.Ack(false); err != nil {
		slog.Error("ack message", "error", err)
	}
	slog.Info("queued email delivered", "to", msg.To, "subject", msg.Subject)
}
