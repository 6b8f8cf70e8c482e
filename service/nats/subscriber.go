package nats

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"
)

// Subscribe delivers analysis events for wallet (or all wallets when empty)
// to handler until ctx is done. Malformed payloads are logged and skipped.
func Subscribe(ctx context.Context, nc *nats.Conn, wallet string, logger *slog.Logger, handler func(*AnalysisEvent)) error {
	subject := Subject(wallet)

	sub, err := nc.Subscribe(subject, func(msg *nats.Msg) {
		event, err := DecodeAnalysisEvent(msg.Data)
		if err != nil {
			logger.Warn("dropping malformed analysis event", "subject", msg.Subject, "error", err)
			return
		}
		handler(event)
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", subject, err)
	}
	defer sub.Unsubscribe()

	logger.DebugContext(ctx, "subscribed to analysis events", "subject", subject)
	<-ctx.Done()
	return nil
}
