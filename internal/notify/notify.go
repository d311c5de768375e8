// Package notify fans indexed narratives out to subscribers.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"disasterwatch/internal/domain"
)

// Publisher announces a narrative after it was indexed.
type Publisher interface {
	Publish(ctx context.Context, doc domain.NarrativeDocument) error
}

// Conn is the subset of *nats.Conn used here.
type Conn interface {
	Publish(subject string, data []byte) error
	Close()
}

// Message is the JSON body published for each narrative.
type Message struct {
	ID       string          `json:"id"`
	Text     string          `json:"text"`
	Metadata domain.Metadata `json:"metadata"`
}

// NATSPublisher publishes narratives on a single subject.
type NATSPublisher struct {
	conn    Conn
	subject string
}

func NewNATSPublisher(conn Conn, subject string) *NATSPublisher {
	return &NATSPublisher{conn: conn, subject: subject}
}

// Connect dials NATS with reconnects enabled and returns a publisher on subject.
func Connect(url, subject string, logger *zap.Logger) (*NATSPublisher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("notify")
	nc, err := nats.Connect(url,
		nats.Name("disasterwatch"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("NATS disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("NATS reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return NewNATSPublisher(nc, subject), nil
}

func (p *NATSPublisher) Publish(ctx context.Context, doc domain.NarrativeDocument) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(Message{ID: doc.ID, Text: doc.Text, Metadata: doc.Metadata})
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	if err := p.conn.Publish(p.subject, data); err != nil {
		return fmt.Errorf("publish %s: %w", p.subject, err)
	}
	return nil
}

func (p *NATSPublisher) Close() { p.conn.Close() }
