package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/brojonat/walletlens/service/metrics"
	natspkg "github.com/brojonat/walletlens/service/nats"
	"github.com/nats-io/nats.go"
)

// EventSource delivers analysis events for a wallet, or for every wallet
// when wallet is empty, until ctx is done.
type EventSource interface {
	Subscribe(ctx context.Context, wallet string, handler func(*natspkg.AnalysisEvent)) error
}

// SSEPublisher feeds Server-Sent Events connections from NATS.
type SSEPublisher struct {
	nc     *nats.Conn
	logger *slog.Logger
}

// NewSSEPublisher creates a new SSE publisher that subscribes to NATS internally.
func NewSSEPublisher(natsURL string, logger *slog.Logger) (*SSEPublisher, error) {
	nc, err := natspkg.Connect(natsURL, "walletlens-sse-publisher")
	if err != nil {
		return nil, err
	}

	logger.Info("SSE publisher initialized", "nats_url", natsURL)

	return &SSEPublisher{
		nc:     nc,
		logger: logger,
	}, nil
}

// Subscribe implements EventSource.
func (p *SSEPublisher) Subscribe(ctx context.Context, wallet string, handler func(*natspkg.AnalysisEvent)) error {
	return natspkg.Subscribe(ctx, p.nc, wallet, p.logger, handler)
}

// Close closes the NATS connection.
func (p *SSEPublisher) Close() error {
	if p.nc != nil {
		p.nc.Close()
		p.logger.Info("SSE publisher closed")
	}
	return nil
}

// keepaliveInterval is how often an idle stream gets a comment line.
var keepaliveInterval = 10 * time.Second

// handleStreamAnalyses handles SSE streaming of completed analyses.
// If address path parameter is empty, streams all wallets. Otherwise, streams specific wallet.
func handleStreamAnalyses(source EventSource, m *metrics.Metrics, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		address := r.PathValue("address")

		walletDesc := address
		if address == "" {
			walletDesc = "all wallets"
		} else if err := validateAddress(address); err != nil {
			writeError(w, err.Error(), "INVALID_WALLET", http.StatusBadRequest)
			return
		}

		flusher, ok := w.(http.Flusher)
		if !ok {
			writeError(w, "streaming unsupported", "INTERNAL", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		flusher.Flush()

		ctx := r.Context()
		logger.DebugContext(ctx, "SSE client connected",
			"wallet", walletDesc,
			"remote_addr", r.RemoteAddr,
		)
		if m != nil {
			m.RecordSSEConnectionChange(1)
			defer m.RecordSSEConnectionChange(-1)
		}

		events := make(chan *natspkg.AnalysisEvent, 10)
		subErr := make(chan error, 1)

		go func() {
			subErr <- source.Subscribe(ctx, address, func(event *natspkg.AnalysisEvent) {
				select {
				case events <- event:
				case <-ctx.Done():
				}
			})
		}()

		fmt.Fprintf(w, "event: connected\ndata: {\"wallet\":%q}\n\n", walletDesc)
		flusher.Flush()

		keepalive := time.NewTicker(keepaliveInterval)
		defer keepalive.Stop()

		for {
			select {
			case <-keepalive.C:
				fmt.Fprintf(w, ": keepalive\n\n")
				flusher.Flush()

			case event := <-events:
				data, err := json.Marshal(event)
				if err != nil {
					logger.WarnContext(ctx, "failed to marshal event", "error", err)
					continue
				}

				fmt.Fprintf(w, "event: analysis\ndata: %s\n\n", data)
				flusher.Flush()
				if m != nil {
					m.RecordSSEEventSent("analysis")
				}

				logger.DebugContext(ctx, "sent analysis event",
					"wallet", event.Wallet,
					"id", event.ID,
				)

			case err := <-subErr:
				if err != nil {
					logger.ErrorContext(ctx, "failed to subscribe", "wallet", walletDesc, "error", err)
					fmt.Fprintf(w, "event: error\ndata: {\"error\": \"failed to subscribe\"}\n\n")
					flusher.Flush()
				}
				return

			case <-ctx.Done():
				logger.DebugContext(ctx, "SSE client disconnected",
					"wallet", walletDesc,
					"remote_addr", r.RemoteAddr,
				)
				return
			}
		}
	})
}
