package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/iliyamo/edubot/internal/queue"
)

// Publisher emits audit events. Failures are reported to the caller,
// which logs and otherwise ignores them.
type Publisher interface {
	PublishQueryRecorded(ctx context.Context, ev queue.QueryRecordedEvent) error
}

// NopPublisher drops every event. Used when RABBITMQ_URL is not set.
type NopPublisher struct{}

func (NopPublisher) PublishQueryRecorded(context.Context, queue.QueryRecordedEvent) error { return nil }

// AMQPPublisher publishes to the durable query.recorded queue. It dials a
// fresh connection per event so a broker outage never wedges a request.
type AMQPPublisher struct {
	url string
}

func NewAMQPPublisher(url string) *AMQPPublisher { return &AMQPPublisher{url: url} }

// PublishQueryRecorded marks the message persistent and routes it through
// the default exchange.
func (p *AMQPPublisher) PublishQueryRecorded(ctx context.Context, ev queue.QueryRecordedEvent) error {
	conn, err := amqp.Dial(p.url)
	if err != nil {
		slog.Warn("rabbitmq: dial failed", "err", err)
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		slog.Warn("rabbitmq: channel open failed", "err", err)
		return err
	}
	defer func() { _ = ch.Close() }()

	// Ensure the queue exists (idempotent). Durable so messages survive broker restarts.
	if _, err := ch.QueueDeclare(
		queue.QueryRecordedQueue, // name
		true,                     // durable
		false,                    // autoDelete
		false,                    // exclusive
		false,                    // noWait
		nil,                      // args
	); err != nil {
		slog.Warn("rabbitmq: queue declare failed", "err", err)
		return err
	}

	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent, // store on disk
		Timestamp:    time.Now().UTC(),
		MessageId:    ev.MessageID,
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", queue.QueryRecordedQueue, false, false, pub); err != nil {
		slog.Warn("rabbitmq: publish failed", "err", err)
		return err
	}
	return nil
}
