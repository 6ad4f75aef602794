// internal/adapter/ingest/consumer.go

// Package ingest consumes collector events from the event bus and feeds
// them into the analysis engine.
package ingest

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/Amro212/meme-radar/internal/domain/meme"
	"github.com/Amro212/meme-radar/internal/metrics"
)

// Sink receives validated events. The analysis engine implements it.
type Sink interface {
	Ingest(ev meme.Event) error
}

// Consumer subscribes to the collector subject and forwards decoded events
// to the sink. Malformed events are logged and dropped; a bad event from one
// collector never stalls the stream.
type Consumer struct {
	conn    *nats.Conn
	subject string
	sink    Sink
	metrics *metrics.Metrics
	logger  *zap.Logger

	sub *nats.Subscription
}

// NewConsumer creates a consumer bound to the given subject.
func NewConsumer(conn *nats.Conn, subject string, sink Sink, m *metrics.Metrics, logger *zap.Logger) *Consumer {
	return &Consumer{
		conn:    conn,
		subject: subject,
		sink:    sink,
		metrics: m,
		logger:  logger,
	}
}

// Start subscribes and begins consuming.
func (c *Consumer) Start() error {
	sub, err := c.conn.Subscribe(c.subject, c.handle)
	if err != nil {
		return fmt.Errorf("subscribing to %s: %w", c.subject, err)
	}
	c.sub = sub
	c.logger.Info("consuming collector events", zap.String("subject", c.subject))
	return nil
}

// Stop drains the subscription so in-flight messages finish.
func (c *Consumer) Stop() error {
	if c.sub == nil {
		return nil
	}
	return c.sub.Drain()
}

func (c *Consumer) handle(msg *nats.Msg) {
	var ev meme.Event
	if err := json.Unmarshal(msg.Data, &ev); err != nil {
		c.metrics.EventsRejected.WithLabelValues("decode").Inc()
		c.logger.Warn("dropping undecodable event", zap.Error(err))
		return
	}

	if err := c.sink.Ingest(ev); err != nil {
		var invalid *meme.InvalidEventError
		if errors.As(err, &invalid) {
			c.metrics.EventsRejected.WithLabelValues(invalid.Field).Inc()
			c.logger.Warn("dropping invalid event",
				zap.String("platform", string(ev.Platform)),
				zap.String("field", invalid.Field),
				zap.String("reason", invalid.Reason),
			)
			return
		}
		c.metrics.EventsRejected.WithLabelValues("internal").Inc()
		c.logger.Error("ingesting event", zap.Error(err))
		return
	}

	c.metrics.EventsIngested.WithLabelValues(string(ev.Platform), string(ev.Kind)).Inc()
}
