package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// AMQPConfig holds the connection and exchange settings for the AMQP broker.
type AMQPConfig struct {
	URL          string
	Exchange     string
	ExchangeType string
	Heartbeat    time.Duration
}

// AMQPBroker publishes events to a topic exchange. Routing key is the event
// kind, so consumers can bind per entity ("job.*", "match.*").
type AMQPBroker struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	cfg     AMQPConfig
	logger  *slog.Logger
}

// NewAMQPBroker connects and declares the exchange.
func NewAMQPBroker(cfg AMQPConfig, logger *slog.Logger) (*AMQPBroker, error) {
	if cfg.ExchangeType == "" {
		cfg.ExchangeType = "topic"
	}
	conn, err := amqp.DialConfig(cfg.URL, amqp.Config{Heartbeat: cfg.Heartbeat, Locale: "en_US"})
	if err != nil {
		return nil, fmt.Errorf("dial amqp: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(cfg.Exchange, cfg.ExchangeType, true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declare exchange %q: %w", cfg.Exchange, err)
	}
	logger.Info("connected to AMQP broker", "exchange", cfg.Exchange)
	return &AMQPBroker{conn: conn, channel: ch, cfg: cfg, logger: logger}, nil
}

func (b *AMQPBroker) Publish(ctx context.Context, ev Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	err = b.channel.PublishWithContext(ctx, b.cfg.Exchange, ev.Kind, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    ev.OccurredAt,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("publish %s: %w", ev.Kind, err)
	}
	return nil
}

// Close tears down the channel and connection.
func (b *AMQPBroker) Close() error {
	if err := b.channel.Close(); err != nil {
		b.conn.Close()
		return err
	}
	return b.conn.Close()
}
