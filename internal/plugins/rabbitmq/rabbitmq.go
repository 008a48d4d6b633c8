// Package rabbitmq publishes routing events to a topic exchange.
package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"supportdesk/internal/config"
	"supportdesk/internal/core/domain"
)

const producer = "supportdesk"

// Meta and Envelope form the JSON body of every published event.
type Meta struct {
	ID            string    `json:"id"`
	CorrelationID string    `json:"correlation_id,omitempty"`
	Producer      string    `json:"producer,omitempty"`
	Time          time.Time `json:"time"`
	Type          string    `json:"type"`
}

type Envelope struct {
	Meta Meta             `json:"meta"`
	Data domain.RoomEvent `json:"data"`
}

// publisher is the part of *amqp.Channel the sink uses.
type publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

type EventSink struct {
	mu       sync.Mutex
	conn     *amqp.Connection
	ch       publisher
	exchange string
	log      *slog.Logger
}

// NewEventSink dials cfg.URL and declares cfg.Exchange as a durable topic
// exchange.
func NewEventSink(ctx context.Context, log *slog.Logger, cfg config.AMQPConfig) (*EventSink, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("amqp url is required")
	}
	host := ""
	if u, _ := url.Parse(cfg.URL); u != nil {
		host = u.Host
	}
	log.InfoContext(ctx, "rabbitmq - connect - dialing", "host", host, "exchange", cfg.Exchange)

	conn, err := amqp.DialConfig(cfg.URL, amqp.Config{Dial: amqp.DefaultDial(10 * time.Second)})
	if err != nil {
		return nil, fmt.Errorf("dial amqp: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(cfg.Exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", cfg.Exchange, err)
	}
	return newEventSink(log, conn, ch, cfg.Exchange), nil
}

func newEventSink(log *slog.Logger, conn *amqp.Connection, ch publisher, exchange string) *EventSink {
	return &EventSink{conn: conn, ch: ch, exchange: exchange, log: log}
}

// RoutingKey is the topic an event of kind is published under.
func RoutingKey(kind domain.EventKind) string {
	return "support.routing." + string(kind) + ".v1"
}

func (s *EventSink) Publish(ctx context.Context, evt domain.RoomEvent) error {
	key := RoutingKey(evt.Kind)
	env := Envelope{
		Meta: Meta{
			ID:            evt.ID,
			CorrelationID: evt.RoomID,
			Producer:      producer,
			Time:          evt.At,
			Type:          key,
		},
		Data: evt,
	}
	if env.Meta.Time.IsZero() {
		env.Meta.Time = time.Now().UTC()
	}
	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}

	// amqp channels are not safe for concurrent publishing
	s.mu.Lock()
	defer s.mu.Unlock()
	err = s.ch.PublishWithContext(ctx, s.exchange, key, false, false, amqp.Publishing{
		ContentType:   "application/json",
		Body:          body,
		DeliveryMode:  amqp.Persistent,
		MessageId:     env.Meta.ID,
		CorrelationId: env.Meta.CorrelationID,
		Type:          env.Meta.Type,
		Timestamp:     env.Meta.Time,
		AppId:         producer,
	})
	if err != nil {
		return fmt.Errorf("publish %s: %w", key, err)
	}
	return nil
}

func (s *EventSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := s.ch.Close()
	if s.conn != nil {
		if cerr := s.conn.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	s.log.Info("rabbitmq - close - connection closed", "exchange", s.exchange)
	return err
}
