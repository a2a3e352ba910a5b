package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"
	"todo_tracker/internal/observability"
	"todo_tracker/internal/queue"
	"todo_tracker/internal/todo"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

const MaxRetries = 3

// Handler processes one decoded event.
type Handler interface {
	Handle(ctx context.Context, event todo.Event, workerID int) error
}

// republisher is the part of *amqp.Channel used to requeue a failed message.
type republisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

func republishWithRetry(ctx context.Context, ch republisher, msg *amqp.Delivery, retryCount int32) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	headers := amqp.Table{}
	for k, v := range msg.Headers {
		headers[k] = v
	}
	headers[queue.RetryCountHeader] = retryCount

	return ch.PublishWithContext(
		ctx,
		"",             // exchange
		msg.RoutingKey, // routing key (queue name)
		false,          // mandatory
		false,          // immediate
		amqp.Publishing{
			ContentType:  msg.ContentType,
			DeliveryMode: amqp.Persistent,
			Body:         msg.Body,
			Headers:      headers,
		},
	)
}

// StartWorker consumes queueName until ctx is cancelled or the channel closes.
func StartWorker(ctx context.Context, conn *amqp.Connection, handler Handler, queueName string, id int) {
	ch, err := queue.CreateChannel(conn)
	if err != nil {
		logrus.Fatalf("Worker %d failed to open channel: %v", id, err)
	}
	defer ch.Close()

	if _, err := queue.DeclareQueue(ch, queueName); err != nil {
		logrus.Fatalf("Worker %d failed to declare queue: %v", id, err)
	}

	if err := ch.Qos(1, 0, false); err != nil {
		logrus.Fatalf("Worker %d failed to set QoS: %v", id, err)
	}

	msgs, err := ch.Consume(
		queueName,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		logrus.Fatalf("Worker %d failed to start consuming messages: %v", id, err)
		return
	}

	logrus.Infof("Worker %d started", id)

	for {
		select {
		case <-ctx.Done():
			logrus.Infof("Worker %d stopping", id)
			return
		case msg, ok := <-msgs:
			if !ok {
				logrus.Warnf("Worker %d delivery channel closed", id)
				return
			}
			processDelivery(ctx, ch, handler, &msg, queueName, id)
		}
	}
}

// processDelivery acks, requeues with an incremented retry count, or drops
// a single message depending on the handler result.
func processDelivery(ctx context.Context, ch republisher, handler Handler, msg *amqp.Delivery, queueName string, id int) {
	observability.RecordConsumed(queueName)

	var event todo.Event
	if err := json.Unmarshal(msg.Body, &event); err != nil {
		logrus.WithError(err).Error("invalid payload")
		observability.RecordEventProcessed("unknown", "invalid", 0)
		_ = msg.Nack(false, false)
		return
	}

	retryCount := queue.RetryCount(msg.Headers)
	eventType := string(event.Type)

	startTime := time.Now()
	err := handler.Handle(ctx, event, id)
	duration := time.Since(startTime).Seconds()

	if err == nil {
		observability.RecordEventProcessed(eventType, "success", duration)
		_ = msg.Ack(false)
		return
	}

	if errors.Is(err, ErrInvalidEvent) {
		logrus.WithError(err).Error("Dropping invalid event")
		observability.RecordEventProcessed(eventType, "invalid", duration)
		_ = msg.Nack(false, false)
		return
	}

	logrus.WithError(err).WithField("event_id", event.ID).Error("Failed to process event")

	if retryCount >= MaxRetries {
		logrus.WithField("event_id", event.ID).Error("Max retries reached, dropping event")
		observability.RecordEventProcessed(eventType, "max_retries", duration)
		_ = msg.Nack(false, false)
		return
	}

	logrus.Infof("Worker %d: event failed, requeuing (retry %d/%d)", id, retryCount+1, MaxRetries)

	if err := republishWithRetry(ctx, ch, msg, int32(retryCount+1)); err != nil {
		logrus.WithError(err).Error("Failed to republish message")
		observability.RecordEventProcessed(eventType, "republish_error", duration)
		_ = msg.Nack(false, false)
		return
	}

	observability.RecordPublish(queueName, nil)
	observability.RecordEventProcessed(eventType, "retried", duration)
	_ = msg.Ack(false)
}
