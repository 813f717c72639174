package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/marmos91/mozaichub/internal/logger"
	"github.com/marmos91/mozaichub/pkg/metadata"
	"github.com/nats-io/nats.go"
)

// NoopPublisher discards notifications. It is used when no broker is
// configured.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, *metadata.Notification) error { return nil }
func (NoopPublisher) Close() error                                          { return nil }

// NATSConfig configures the NATS publisher.
type NATSConfig struct {
	Servers       []string
	Name          string
	SubjectPrefix string
	ReconnectWait time.Duration
	Timeout       time.Duration
}

// NATSPublisher pushes each notification to
// "<prefix>.<recipient ID>" as a JSON document.
type NATSPublisher struct {
	nc     *nats.Conn
	prefix string
}

// NewNATSPublisher connects to the configured servers. The connection
// reconnects forever; publishes during an outage are buffered by the client.
func NewNATSPublisher(cfg NATSConfig) (*NATSPublisher, error) {
	if len(cfg.Servers) == 0 {
		return nil, fmt.Errorf("nats: no servers configured")
	}
	if cfg.SubjectPrefix == "" {
		cfg.SubjectPrefix = "mozaichub.notifications"
	}
	if cfg.ReconnectWait == 0 {
		cfg.ReconnectWait = 2 * time.Second
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 5 * time.Second
	}

	opts := []nats.Option{
		nats.Name(cfg.Name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.ReconnectJitter(100*time.Millisecond, 500*time.Millisecond),
		nats.Timeout(cfg.Timeout),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("NATS disconnected: %v", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("NATS reconnected to %s", nc.ConnectedUrl())
		}),
	}

	nc, err := nats.Connect(strings.Join(cfg.Servers, ","), opts...)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	logger.Info("NATS publisher connected to %s (subject prefix %s)", nc.ConnectedUrl(), cfg.SubjectPrefix)
	return &NATSPublisher{nc: nc, prefix: cfg.SubjectPrefix}, nil
}

// Subject returns the subject notifications for recipientID are sent to.
func (p *NATSPublisher) Subject(recipientID string) string {
	return p.prefix + "." + recipientID
}

func (p *NATSPublisher) Publish(ctx context.Context, n *metadata.Notification) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	msg := nats.NewMsg(p.Subject(n.RecipientID))
	msg.Data = data
	msg.Header.Set("Kind", string(n.Kind))

	if err := p.nc.PublishMsg(msg); err != nil {
		return fmt.Errorf("publish failed: %w", err)
	}
	return nil
}

// Close flushes pending messages and closes the connection.
func (p *NATSPublisher) Close() error {
	if p.nc == nil {
		return nil
	}
	if err := p.nc.Drain(); err != nil {
		p.nc.Close()
		return err
	}
	return nil
}
