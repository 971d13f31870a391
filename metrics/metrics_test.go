package metrics_test

import (
	"context"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-escrow"
	"github.com/goliatone/go-escrow/metrics"
)

type fixedLimiter bool

func (l fixedLimiter) Allow(string) bool { return bool(l) }

func TestMetrics_RecordsTransitions(t *testing.T) {
	m := metrics.New()
	ctx := context.Background()

	require.NoError(t, m.Record(ctx, escrow.ActivityEvent{
		EventType:  escrow.ActivityEventStatusChanged,
		Action:     escrow.ActionConfirmPayment,
		FromStatus: escrow.StatusWaitingAdmin,
		ToStatus:   escrow.StatusPaymentConfirmed,
	}))
	require.NoError(t, m.Record(ctx, escrow.ActivityEvent{
		EventType:    escrow.ActivityEventForceCompleted,
		Action:       escrow.ActionForceComplete,
		FromStatus:   escrow.StatusOnHold,
		ToStatus:     escrow.StatusCompleted,
		AuditFailed:  true,
		NotifyFailed: true,
	}))
	require.NoError(t, m.Record(ctx, escrow.ActivityEvent{
		EventType: escrow.ActivityEventCreated,
		ToStatus:  escrow.StatusCreated,
	}))

	expected := `
# HELP escrow_status_transitions_total Committed status transitions segmented by source, target and action.
# TYPE escrow_status_transitions_total counter
escrow_status_transitions_total{action="confirm_payment",from="waiting_admin",to="payment_confirmed"} 1
escrow_status_transitions_total{action="force_complete",from="on_hold",to="completed"} 1
`
	require.NoError(t, testutil.GatherAndCompare(m.Registry(), strings.NewReader(expected), "escrow_status_transitions_total"))

	count, err := testutil.GatherAndCount(m.Registry(), "escrow_status_side_effect_failures_total")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	body := scrape(t, m)
	assert.Contains(t, body, "escrow_created_total 1")
	assert.Contains(t, body, `escrow_status_side_effect_failures_total{effect="audit"} 1`)
	assert.Contains(t, body, `escrow_status_side_effect_failures_total{effect="notify"} 1`)
}

func TestMetrics_GaugeSamplesAtScrape(t *testing.T) {
	m := metrics.New()

	size := 3
	m.Gauge("ephemeral", "tokens", "Pending link tokens.", func() int { return size })

	assert.Contains(t, scrape(t, m), "escrow_ephemeral_tokens 3")
	size = 7
	assert.Contains(t, scrape(t, m), "escrow_ephemeral_tokens 7")
}

func TestMetrics_JoinLimiterCountsRejections(t *testing.T) {
	m := metrics.New()

	allow := m.JoinLimiter(fixedLimiter(true))
	deny := m.JoinLimiter(fixedLimiter(false))

	assert.True(t, allow.Allow("a"))
	assert.False(t, deny.Allow("a"))
	assert.False(t, deny.Allow("b"))

	assert.Contains(t, scrape(t, m), "escrow_join_rate_limited_total 2")
}

func TestMultiActivitySinkFeedsMetrics(t *testing.T) {
	m := metrics.New()
	var seen int
	sink := escrow.MultiActivitySink(nil, m, escrow.ActivitySinkFunc(func(context.Context, escrow.ActivityEvent) error {
		seen++
		return nil
	}))

	require.NoError(t, sink.Record(context.Background(), escrow.ActivityEvent{EventType: escrow.ActivityEventCreated}))
	assert.Equal(t, 1, seen)
	assert.Contains(t, scrape(t, m), "escrow_created_total 1")
}

func scrape(t *testing.T, m *metrics.Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	return string(body)
}
