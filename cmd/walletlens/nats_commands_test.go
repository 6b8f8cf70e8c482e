package main

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	natspkg "github.com/brojonat/walletlens/service/nats"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSubscription delivers events and then blocks until ctx is done.
func fakeSubscription(events ...*natspkg.AnalysisEvent) subscribeFunc {
	return func(ctx context.Context, handler func(*natspkg.AnalysisEvent)) error {
		for _, e := range events {
			handler(e)
		}
		<-ctx.Done()
		return nil
	}
}

func testEvent(id string) *natspkg.AnalysisEvent {
	report := testAnalysis().Report
	event := natspkg.NewAnalysisEventWithID(id, &report, "server")
	event.PublishedAt = time.Date(2024, 1, 3, 0, 0, 1, 0, time.UTC)
	return event
}

func TestStreamAnalyses_Count(t *testing.T) {
	var out bytes.Buffer
	err := streamAnalyses(context.Background(), &out, testAddress, 2, false,
		fakeSubscription(testEvent("a"), testEvent("b"), testEvent("c")))
	require.NoError(t, err)

	assert.Contains(t, out.String(), "Analysis received (#1)")
	assert.Contains(t, out.String(), "Analysis received (#2)")
	assert.NotContains(t, out.String(), "#3")
	assert.Contains(t, out.String(), "ID: a (from server)")
}

func TestStreamAnalyses_JSON(t *testing.T) {
	var out bytes.Buffer
	err := streamAnalyses(context.Background(), &out, "", 2, true,
		fakeSubscription(testEvent("a"), testEvent("b")))
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	for i, line := range lines {
		event, err := natspkg.DecodeAnalysisEvent([]byte(line))
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b"}[i], event.ID)
		assert.Equal(t, testAddress, event.Wallet)
	}
}

func TestStreamAnalyses_ContextDone(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	var out bytes.Buffer
	err := streamAnalyses(ctx, &out, "", 0, false, fakeSubscription(testEvent("a")))
	require.NoError(t, err)
	assert.Contains(t, out.String(), "Received 1 analysis event(s) for all wallets")
}

func TestStreamAnalyses_SubscribeError(t *testing.T) {
	err := streamAnalyses(context.Background(), &bytes.Buffer{}, testAddress, 0, false,
		func(ctx context.Context, handler func(*natspkg.AnalysisEvent)) error {
			return errors.New("no responders")
		})
	assert.ErrorContains(t, err, "no responders")
}
