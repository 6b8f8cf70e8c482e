package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/brojonat/walletlens/service/metrics"
	"github.com/nats-io/nats.go"
)

const (
	// SubjectPrefix prefixes every analysis subject.
	SubjectPrefix = "analytics"

	// SubjectAll matches analyses for every wallet.
	SubjectAll = SubjectPrefix + ".*"
)

// Subject returns the subject analyses for wallet are published on.
// An empty wallet yields SubjectAll.
func Subject(wallet string) string {
	if wallet == "" {
		return SubjectAll
	}
	return SubjectPrefix + "." + wallet
}

// WalletFromSubject extracts the wallet from an analysis subject.
func WalletFromSubject(subject string) string {
	return strings.TrimPrefix(subject, SubjectPrefix+".")
}

// Publisher defines the interface for publishing analysis events to NATS.
type Publisher interface {
	// PublishAnalysis publishes an event to the subject "analytics.{wallet}".
	PublishAnalysis(ctx context.Context, event *AnalysisEvent) error

	// Close closes the connection to NATS.
	Close() error
}

// Connect dials NATS with reconnects enabled.
func Connect(natsURL, name string) (*nats.Conn, error) {
	nc, err := nats.Connect(natsURL,
		nats.Name(name),
		nats.Timeout(10*time.Second),
		nats.ReconnectWait(1*time.Second),
		nats.MaxReconnects(-1), // Unlimited reconnects
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return nc, nil
}

// CorePublisher publishes analysis events with core NATS. Events are
// notifications for live listeners and are not retained.
type CorePublisher struct {
	nc      *nats.Conn
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewPublisher connects to NATS and returns a publisher.
func NewPublisher(natsURL string, m *metrics.Metrics, logger *slog.Logger) (*CorePublisher, error) {
	nc, err := Connect(natsURL, "walletlens-publisher")
	if err != nil {
		return nil, err
	}

	logger.Info("NATS publisher initialized", "url", natsURL, "subject", SubjectAll)
	return NewPublisherFromConn(nc, m, logger), nil
}

// NewPublisherFromConn wraps an existing connection. Close closes it.
func NewPublisherFromConn(nc *nats.Conn, m *metrics.Metrics, logger *slog.Logger) *CorePublisher {
	return &CorePublisher{nc: nc, metrics: m, logger: logger}
}

// PublishAnalysis publishes a single analysis event.
func (p *CorePublisher) PublishAnalysis(ctx context.Context, event *AnalysisEvent) error {
	start := time.Now()
	err := p.publish(ctx, event)
	if p.metrics != nil {
		status := "success"
		if err != nil {
			status = "error"
		}
		p.metrics.RecordNATSPublish(status, time.Since(start).Seconds())
	}
	return err
}

func (p *CorePublisher) publish(ctx context.Context, event *AnalysisEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	subject := Subject(event.Wallet)
	event.PublishedAt = time.Now().UTC()

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal analysis event: %w", err)
	}

	msg := nats.NewMsg(subject)
	msg.Data = data
	msg.Header.Set(nats.MsgIdHdr, event.ID)
	if err := p.nc.PublishMsg(msg); err != nil {
		return fmt.Errorf("failed to publish analysis: %w", err)
	}

	p.logger.DebugContext(ctx, "published analysis event",
		"subject", subject,
		"id", event.ID,
		"wallet", event.Wallet,
	)
	return nil
}

// Close closes the connection to NATS.
func (p *CorePublisher) Close() error {
	if p.nc != nil {
		p.nc.Close()
		p.logger.Info("NATS publisher closed")
	}
	return nil
}

// NoopPublisher drops every event. It stands in when NATS is disabled.
type NoopPublisher struct{}

func (NoopPublisher) PublishAnalysis(ctx context.Context, event *AnalysisEvent) error {
	return nil
}

func (NoopPublisher) Close() error {
	return nil
}
