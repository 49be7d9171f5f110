// Package natsbus provides the NATS transport client used by all chronos
// processors. The transport contract is deliberately thin: topic-based
// publish/subscribe with at-least-once delivery and per-topic ordering per
// producer. Handlers receive decoded envelopes; envelopes that fail to
// decode are logged and dropped.
package natsbus

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/c360studio/chronos/event"
)

// Handler processes one inbound envelope from a topic.
type Handler func(topic string, env event.Envelope)

// Client wraps a NATS connection with envelope encoding and connection
// lifecycle logging.
type Client struct {
	conn   *nats.Conn
	logger *slog.Logger
}

// Option configures a Client at connect time.
type Option func(*options)

type options struct {
	logger   *slog.Logger
	name     string
	onClosed func(error)
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithName sets the connection name reported to the server.
func WithName(name string) Option {
	return func(o *options) { o.name = name }
}

// WithClosedHandler registers a callback invoked when the connection is
// permanently closed (reconnect attempts exhausted). A transport disconnect
// is fatal to the process, so callers use this to trigger shutdown.
func WithClosedHandler(fn func(error)) Option {
	return func(o *options) { o.onClosed = fn }
}

// Connect establishes a NATS connection.
func Connect(url string, opts ...Option) (*Client, error) {
	o := options{logger: slog.Default(), name: "chronos"}
	for _, opt := range opts {
		opt(&o)
	}

	natsOpts := []nats.Option{
		nats.Name(o.name),
		nats.MaxReconnects(10),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			o.logger.Warn("NATS disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			o.logger.Info("NATS reconnected", "url", nc.ConnectedUrl())
		}),
	}
	if o.onClosed != nil {
		natsOpts = append(natsOpts, nats.ClosedHandler(func(nc *nats.Conn) {
			o.onClosed(nc.LastError())
		}))
	}

	conn, err := nats.Connect(url, natsOpts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS at %s: %w", url, err)
	}

	o.logger.Info("Connected to NATS", "url", conn.ConnectedUrl())
	return &Client{conn: conn, logger: o.logger}, nil
}

// Publish marshals the envelope and publishes it to the topic.
func (c *Client) Publish(topic string, env event.Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}
	if err := c.conn.Publish(topic, data); err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}
	return nil
}

// Subscribe registers a handler for a topic. The handler runs on the NATS
// delivery goroutine for that subscription, which preserves per-topic
// delivery order from a single producer.
func (c *Client) Subscribe(topic string, h Handler) (*nats.Subscription, error) {
	sub, err := c.conn.Subscribe(topic, func(msg *nats.Msg) {
		var env event.Envelope
		if err := json.Unmarshal(msg.Data, &env); err != nil {
			c.logger.Warn("Dropping undecodable message",
				"topic", msg.Subject, "error", err)
			return
		}
		h(msg.Subject, env)
	})
	if err != nil {
		return nil, fmt.Errorf("subscribe to %s: %w", topic, err)
	}
	return sub, nil
}

// Drain flushes pending messages and closes the connection.
func (c *Client) Drain() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Drain()
}

// Close closes the connection immediately.
func (c *Client) Close() {
	if c.conn != nil {
		c.conn.Close()
	}
}

// IsConnected reports whether the connection is currently up.
func (c *Client) IsConnected() bool {
	return c.conn != nil && c.conn.IsConnected()
}
