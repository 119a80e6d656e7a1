package nats

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/docflow/docflow/internal/infrastructure/resilience"
)

// Bus carries pipeline events over NATS subjects. Each topic maps to one
// subject under the configured prefix; subscribers join a queue group so a
// topic's work is shared across worker processes while every registered
// stage set still sees the event.
type Bus struct {
	conn     *nats.Conn
	prefix   string
	executor *resilience.Executor
	logger   *slog.Logger

	subs []*nats.Subscription
}

type Options struct {
	ConnectTimeout       time.Duration
	ReconnectWait        time.Duration
	MaxReconnects        int
	RetryOnFailedConnect *bool
	ResilienceExecutor   *resilience.Executor
}

func New(url, prefix string, logger *slog.Logger) (*Bus, error) {
	return NewWithOptions(url, prefix, logger, Options{})
}

func NewWithOptions(url, prefix string, logger *slog.Logger, options Options) (*Bus, error) {
	connectTimeout := options.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = 2 * time.Second
	}
	reconnectWait := options.ReconnectWait
	if reconnectWait <= 0 {
		reconnectWait = 2 * time.Second
	}
	maxReconnects := options.MaxReconnects
	if maxReconnects <= 0 {
		maxReconnects = 60
	}
	retryOnFailedConnect := true
	if options.RetryOnFailedConnect != nil {
		retryOnFailedConnect = *options.RetryOnFailedConnect
	}

	conn, err := nats.Connect(
		url,
		nats.Name("docflow"),
		nats.Timeout(connectTimeout),
		nats.ReconnectWait(reconnectWait),
		nats.MaxReconnects(maxReconnects),
		nats.RetryOnFailedConnect(retryOnFailedConnect),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("nats_disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats_reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &Bus{
		conn:     conn,
		prefix:   prefix,
		executor: options.ResilienceExecutor,
		logger:   logger,
	}, nil
}

func (b *Bus) subject(topic string) string {
	if b.prefix == "" {
		return topic
	}
	return b.prefix + "." + topic
}

func (b *Bus) Publish(ctx context.Context, topic string, payload []byte) error {
	subject := b.subject(topic)
	call := func(_ context.Context) error {
		if err := b.conn.Publish(subject, payload); err != nil {
			return fmt.Errorf("nats publish %s: %w", subject, err)
		}
		return nil
	}

	var err error
	if b.executor != nil {
		err = b.executor.Execute(ctx, "nats.publish", call, classifyNATSError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return wrapTemporaryIfNeeded(err)
	}
	return nil
}

// Subscribe registers a handler for a topic and returns once the
// subscription is flushed to the server. Delivery stops when ctx is
// cancelled or the bus is closed.
func (b *Bus) Subscribe(ctx context.Context, topic string, handler func(context.Context, []byte)) error {
	subject := b.subject(topic)
	sub, err := b.conn.QueueSubscribe(subject, "pipeline-workers", func(msg *nats.Msg) {
		if ctx.Err() != nil {
			return
		}
		handler(ctx, msg.Data)
	})
	if err != nil {
		return fmt.Errorf("nats subscribe %s: %w", subject, err)
	}
	if err := b.conn.Flush(); err != nil {
		return fmt.Errorf("nats flush: %w", err)
	}

	b.subs = append(b.subs, sub)
	return nil
}

// Close drains active subscriptions so in-flight deliveries finish before
// the connection drops.
func (b *Bus) Close() {
	for _, sub := range b.subs {
		if err := sub.Drain(); err != nil {
			b.logger.Warn("nats_drain_failed", "error", err)
		}
	}
	if b.conn != nil {
		if err := b.conn.FlushTimeout(5 * time.Second); err != nil {
			b.logger.Warn("nats_flush_failed", "error", err)
		}
		b.conn.Close()
	}
}
