package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Routing keys used on the exchange.
const (
	PageRoutingKey      = "fact.page.registered"
	StatementRoutingKey = "fact.statement.registered"
)

// AMQPConfig describes the RabbitMQ connection.
type AMQPConfig struct {
	URL      string
	Exchange string
}

// AMQPPublisher publishes records as JSON to a topic exchange.
type AMQPPublisher struct {
	conn     *amqp.Connection
	ch       *amqp.Channel
	exchange string
}

// DialAMQP connects and declares the exchange
func DialAMQP(cfg AMQPConfig) (*AMQPPublisher, error) {
	if cfg.URL == "" {
		return nil, errors.New("amqp url is empty")
	}
	exchange := cfg.Exchange
	if exchange == "" {
		exchange = "vybium.facts"
	}
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("dial amqp: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open amqp channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}
	return &AMQPPublisher{conn: conn, ch: ch, exchange: exchange}, nil
}

// EmitPage publishes ev under PageRoutingKey
func (p *AMQPPublisher) EmitPage(ctx context.Context, ev PageRegistered) error {
	return p.publish(ctx, PageRoutingKey, ev.ID, ev)
}

// EmitStatement publishes ev under StatementRoutingKey
func (p *AMQPPublisher) EmitStatement(ctx context.Context, ev StatementRegistered) error {
	return p.publish(ctx, StatementRoutingKey, ev.ID, ev)
}

func (p *AMQPPublisher) publish(ctx context.Context, key, id string, v any) error {
	if p == nil || p.ch == nil {
		return errors.New("amqp publisher is not connected")
	}
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return p.ch.PublishWithContext(ctx, p.exchange, key, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    id,
		Timestamp:    time.Now(),
		Body:         body,
	})
}

// Close releases the channel and connection
func (p *AMQPPublisher) Close() error {
	if p == nil {
		return nil
	}
	var errs []error
	if p.ch != nil {
		errs = append(errs, p.ch.Close())
	}
	if p.conn != nil {
		errs = append(errs, p.conn.Close())
	}
	return errors.Join(errs...)
}
