package runtime

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	errspkg "github.com/drblury/eventpub/internal/runtime/errors"
)

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorCategory
	}{
		{"nil", nil, ErrorCategoryNone},
		{"topic not found", &errspkg.TopicNotFoundError{Topic: "orders"}, ErrorCategoryTopicNotFound},
		{"closed", &errspkg.PublishError{Err: errspkg.ErrPublisherClosed}, ErrorCategoryClosed},
		{"deadline wrapped by transport", fmt.Errorf("%w: %w", errspkg.ErrTransport, context.DeadlineExceeded), ErrorCategoryTimeout},
		{"encoding", fmt.Errorf("%w: missing field", errspkg.ErrEncoding), ErrorCategoryEncoding},
		{"invalid message", errspkg.ErrInvalidMessage, ErrorCategoryValidation},
		{"too large", errspkg.ErrMessageTooLarge, ErrorCategoryValidation},
		{"configuration", errspkg.ErrConfiguration, ErrorCategoryValidation},
		{"transport", fmt.Errorf("%w: refused", errspkg.ErrTransport), ErrorCategoryTransport},
		{"other", errors.New("boom"), ErrorCategoryOther},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classifyError(tt.err); got != tt.want {
				t.Errorf("classifyError() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestErrorBreakdownRecord(t *testing.T) {
	var b ErrorBreakdown

	b.Record(ErrorCategoryNone, nil)
	if b != (ErrorBreakdown{}) {
		t.Fatalf("expected no change for a nil error, got %+v", b)
	}

	b.Record(ErrorCategoryTimeout, context.Canceled)
	b.Record(ErrorCategoryClosed, errspkg.ErrPublisherClosed)
	b.Record(ErrorCategory("unknown"), errors.New("odd"))

	if b.Timeout != 1 || b.Closed != 1 || b.Other != 1 {
		t.Fatalf("unexpected breakdown %+v", b)
	}
	if b.LastError != "odd" {
		t.Fatalf("expected last error to be recorded, got %q", b.LastError)
	}
}

func TestLatencyWindowWrapsAround(t *testing.T) {
	lw := newLatencyWindow(4)
	for i := 1; i <= 6; i++ {
		lw.Add(time.Duration(i) * time.Millisecond)
	}

	snap := lw.Snapshot()
	if snap.SampleSize != 4 {
		t.Fatalf("expected 4 samples, got %d", snap.SampleSize)
	}
	if snap.LastNs != int64(6*time.Millisecond) {
		t.Fatalf("expected last sample 6ms, got %d", snap.LastNs)
	}
	// Window holds 3..6ms.
	if snap.AverageNs != int64(4500*time.Microsecond) {
		t.Fatalf("expected average 4.5ms, got %d", snap.AverageNs)
	}
	if snap.P99Ns > int64(6*time.Millisecond) || snap.P50Ns < int64(3*time.Millisecond) {
		t.Fatalf("percentiles out of range: %+v", snap)
	}
}

func TestLatencyWindowEmpty(t *testing.T) {
	var nilWindow *latencyWindow
	if snap := nilWindow.Snapshot(); snap != (LatencyMetrics{}) {
		t.Fatalf("expected zero snapshot, got %+v", snap)
	}
	if snap := newLatencyWindow(0).Snapshot(); snap.SampleSize != 0 {
		t.Fatalf("expected empty window, got %+v", snap)
	}
}

func TestPercentile(t *testing.T) {
	samples := []int64{10, 20, 30, 40, 50}

	if got := percentile(samples, 0); got != 10 {
		t.Errorf("p0 = %d", got)
	}
	if got := percentile(samples, 1); got != 50 {
		t.Errorf("p100 = %d", got)
	}
	if got := percentile(samples, 0.5); got != 30 {
		t.Errorf("p50 = %d", got)
	}
	if got := percentile(samples, 0.625); got != 35 {
		t.Errorf("p62.5 = %d", got)
	}
	if got := percentile(nil, 0.5); got != 0 {
		t.Errorf("empty = %d", got)
	}
}

func TestThroughputWindowDropsOldSamples(t *testing.T) {
	tw := newThroughputWindow(time.Second)
	start := time.Unix(1_700_000_000, 0)

	tw.AddAndSnapshot(start)
	tw.AddAndSnapshot(start.Add(500 * time.Millisecond))
	snap := tw.AddAndSnapshot(start.Add(2 * time.Second))

	if snap.Count != 1 {
		t.Fatalf("expected old samples to be dropped, got %d", snap.Count)
	}
	if snap.CurrentRPS <= 0 {
		t.Fatalf("expected positive rate, got %f", snap.CurrentRPS)
	}
}
