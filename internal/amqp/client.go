// Package amqp publishes and consumes budget change events.
//
// Publishing is best-effort from the caller's point of view: the engine logs
// a failed publish and carries on, because the local write already succeeded.
package amqp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"github.com/1fach/einfach-budget/internal/log"
)

type Client struct {
	conn         *amqp091.Connection
	channel      *amqp091.Channel
	exchangeName string
	queueName    string
}

func NewClient(url, exchangeName, queueName string) (*Client, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial AMQP: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	client := &Client{
		conn:         conn,
		channel:      channel,
		exchangeName: exchangeName,
		queueName:    queueName,
	}

	if err := client.setup(); err != nil {
		client.Close()
		return nil, fmt.Errorf("setup exchange and queue: %w", err)
	}

	return client, nil
}

func (c *Client) setup() error {
	err := c.channel.ExchangeDeclare(
		c.exchangeName, // name
		"direct",       // type
		true,           // durable
		false,          // auto-deleted
		false,          // internal
		false,          // no-wait
		nil,            // arguments
	)
	if err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}

	_, err = c.channel.QueueDeclare(
		c.queueName, // name
		true,        // durable
		false,       // delete when unused
		false,       // exclusive
		false,       // no-wait
		nil,         // arguments
	)
	if err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}

	err = c.channel.QueueBind(
		c.queueName,    // queue name
		c.queueName,    // routing key (same as queue name for direct exchange)
		c.exchangeName, // exchange
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}

	return nil
}

// PublishAssignmentChanged publishes an assignment.changed event.
func (c *Client) PublishAssignmentChanged(ctx context.Context, msg AssignmentChangedMessage) error {
	body, err := wrap(KindAssignmentChanged, msg)
	if err != nil {
		return err
	}
	if err := c.publish(ctx, body); err != nil {
		return err
	}

	slog.InfoContext(ctx, "Published assignment changed event",
		log.FieldCategoryID, msg.CategoryID,
		log.FieldYear, msg.Year,
		log.FieldMonth, msg.Month,
		"exchange", c.exchangeName)
	return nil
}

// PublishMonthInitialized publishes a month.initialized event.
func (c *Client) PublishMonthInitialized(ctx context.Context, msg MonthInitializedMessage) error {
	body, err := wrap(KindMonthInitialized, msg)
	if err != nil {
		return err
	}
	if err := c.publish(ctx, body); err != nil {
		return err
	}

	slog.InfoContext(ctx, "Published month initialized event",
		log.FieldBudgetID, msg.BudgetID,
		log.FieldYear, msg.Year,
		log.FieldMonth, msg.Month,
		log.FieldCreated, msg.Created)
	return nil
}

func (c *Client) publish(ctx context.Context, body []byte) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err := c.channel.PublishWithContext(
		ctx,
		c.exchangeName, // exchange
		c.queueName,    // routing key
		false,          // mandatory
		false,          // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish message: %w", err)
	}
	return nil
}

// Handlers dispatches consumed envelopes by kind. A nil handler means the
// kind is acknowledged and skipped.
type Handlers struct {
	AssignmentChanged func(ctx context.Context, msg *AssignmentChangedMessage) error
	MonthInitialized  func(ctx context.Context, msg *MonthInitializedMessage) error
}

// Consume processes deliveries until the context is cancelled. Malformed
// messages are rejected without requeue; handler failures requeue.
func (c *Client) Consume(ctx context.Context, handlers Handlers) error {
	msgs, err := c.channel.Consume(
		c.queueName, // queue
		"",          // consumer
		false,       // auto-ack (we want manual ack)
		false,       // exclusive
		false,       // no-local
		false,       // no-wait
		nil,         // args
	)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}

	slog.InfoContext(ctx, "Started consuming budget events", "queue", c.queueName)

	for {
		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "Stopping message consumption", "reason", ctx.Err())
			return ctx.Err()
		case delivery, ok := <-msgs:
			if !ok {
				return fmt.Errorf("message channel closed")
			}

			if err := c.dispatch(ctx, delivery.Body, handlers); err != nil {
				slog.ErrorContext(ctx, "Failed to handle message", log.FieldError, err)
				delivery.Nack(false, true) // requeue, the handler may recover
				continue
			}
			delivery.Ack(false)
		}
	}
}

func (c *Client) dispatch(ctx context.Context, body []byte, handlers Handlers) error {
	env, err := ParseEnvelope(body)
	if err != nil {
		// Malformed payloads never become valid; drop them loudly.
		slog.ErrorContext(ctx, "Dropping malformed message", log.FieldError, err)
		return nil
	}

	switch env.Kind {
	case KindAssignmentChanged:
		if handlers.AssignmentChanged == nil {
			return nil
		}
		var msg AssignmentChangedMessage
		if err := json.Unmarshal(env.Data, &msg); err != nil {
			slog.ErrorContext(ctx, "Dropping malformed assignment changed payload", log.FieldError, err)
			return nil
		}
		return handlers.AssignmentChanged(ctx, &msg)
	case KindMonthInitialized:
		if handlers.MonthInitialized == nil {
			return nil
		}
		var msg MonthInitializedMessage
		if err := json.Unmarshal(env.Data, &msg); err != nil {
			slog.ErrorContext(ctx, "Dropping malformed month initialized payload", log.FieldError, err)
			return nil
		}
		return handlers.MonthInitialized(ctx, &msg)
	default:
		slog.WarnContext(ctx, "Skipping message of unknown kind", "kind", env.Kind)
		return nil
	}
}

func (c *Client) Close() error {
	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
