package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
	"todo_tracker/internal/observability"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Publisher sends JSON messages to durable queues over a shared connection.
// Each publish uses its own short-lived channel.
type Publisher struct {
	conn *amqp.Connection
}

func NewPublisher(conn *amqp.Connection, queueNames ...string) (*Publisher, error) {
	ch, err := CreateChannel(conn)
	if err != nil {
		return nil, err
	}
	defer ch.Close()

	for _, name := range queueNames {
		if _, err := DeclareQueue(ch, name); err != nil {
			return nil, err
		}
	}

	return &Publisher{conn: conn}, nil
}

func (p *Publisher) Publish(ctx context.Context, queueName string, payload interface{}) (err error) {
	defer func() { observability.RecordPublish(queueName, err) }()

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}

	ch, err := CreateChannel(p.conn)
	if err != nil {
		return err
	}
	defer ch.Close()

	return ch.PublishWithContext(
		ctx,
		"",        // exchange
		queueName, // routing key
		false,     // mandatory
		false,     // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
}
