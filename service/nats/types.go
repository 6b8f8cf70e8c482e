package nats

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/brojonat/walletlens/service/analytics"
	"github.com/google/uuid"
)

// AnalysisEvent announces a completed wallet analysis.
// It is published to the subject "analytics.{wallet}".
type AnalysisEvent struct {
	ID     string `json:"id"`
	Wallet string `json:"wallet"`
	// Source names the component that ran the analysis, e.g. "server" or "workflow".
	Source string `json:"source"`

	Metrics analytics.WalletMetrics `json:"metrics"`
	Series  []analytics.DailyPoint  `json:"series,omitempty"`
	Rate    string                  `json:"rate,omitempty"`

	GeneratedAt time.Time `json:"generated_at"`
	PublishedAt time.Time `json:"published_at"`
}

// NewAnalysisEvent builds an event for report with a fresh ID.
func NewAnalysisEvent(report *analytics.Report, source string) *AnalysisEvent {
	return NewAnalysisEventWithID(uuid.NewString(), report, source)
}

// NewAnalysisEventWithID builds an event for report under a caller-chosen ID,
// so that retried publishes carry the same ID.
func NewAnalysisEventWithID(id string, report *analytics.Report, source string) *AnalysisEvent {
	return &AnalysisEvent{
		ID:          id,
		Wallet:      report.Wallet,
		Source:      source,
		Metrics:     report.Metrics,
		Series:      report.Series,
		Rate:        report.Rate,
		GeneratedAt: report.GeneratedAt,
	}
}

// DecodeAnalysisEvent parses a message payload.
func DecodeAnalysisEvent(data []byte) (*AnalysisEvent, error) {
	var event AnalysisEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return nil, fmt.Errorf("failed to decode analysis event: %w", err)
	}
	return &event, nil
}
