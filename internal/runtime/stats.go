package runtime

import (
	"context"
	"errors"
	"math"
	"sort"
	"time"

	errspkg "github.com/drblury/eventpub/internal/runtime/errors"
)

const (
	latencySampleSize    = 256
	throughputWindowSize = time.Minute
)

// PublisherStats is a point-in-time view of a publisher.
type PublisherStats struct {
	OpenHandles int                   `json:"open_handles"`
	Closed      bool                  `json:"closed"`
	Topics      map[string]TopicStats `json:"topics"`
	Resource    ResourceUsage         `json:"resource"`
	CollectedAt time.Time             `json:"collected_at"`
}

// TopicStats holds the publish counters of one topic.
type TopicStats struct {
	MessagesPublished uint64            `json:"messages_published"`
	MessagesFailed    uint64            `json:"messages_failed"`
	BytesPublished    uint64            `json:"bytes_published"`
	LastPublishedAt   time.Time         `json:"last_published_at,omitempty"`
	Latency           LatencyMetrics    `json:"latency"`
	Throughput        ThroughputMetrics `json:"throughput"`
	Errors            ErrorBreakdown    `json:"errors"`
}

type LatencyMetrics struct {
	AverageNs  int64 `json:"average_ns"`
	P50Ns      int64 `json:"p50_ns"`
	P95Ns      int64 `json:"p95_ns"`
	P99Ns      int64 `json:"p99_ns"`
	LastNs     int64 `json:"last_ns"`
	SampleSize int   `json:"sample_size"`
}

type ThroughputMetrics struct {
	CurrentRPS       float64 `json:"current_rps"`
	WindowSeconds    float64 `json:"window_seconds"`
	MessagesInWindow uint64  `json:"messages_in_window"`
}

type ErrorBreakdown struct {
	Validation    uint64 `json:"validation"`
	TopicNotFound uint64 `json:"topic_not_found"`
	Encoding      uint64 `json:"encoding"`
	Transport     uint64 `json:"transport"`
	Timeout       uint64 `json:"timeout"`
	Closed        uint64 `json:"closed"`
	Other         uint64 `json:"other"`
	LastError     string `json:"last_error,omitempty"`
}

type ResourceUsage struct {
	CPUPercent  float64 `json:"cpu_percent"`
	MemoryBytes uint64  `json:"memory_bytes"`
	Goroutines  int     `json:"goroutines"`
}

// ErrorCategory groups publish failures for stats and the failures_total
// reason label.
type ErrorCategory string

const (
	ErrorCategoryNone          ErrorCategory = "none"
	ErrorCategoryValidation    ErrorCategory = "validation"
	ErrorCategoryTopicNotFound ErrorCategory = "topic_not_found"
	ErrorCategoryEncoding      ErrorCategory = "encoding"
	ErrorCategoryTransport     ErrorCategory = "transport"
	ErrorCategoryTimeout       ErrorCategory = "timeout"
	ErrorCategoryClosed        ErrorCategory = "closed"
	ErrorCategoryOther         ErrorCategory = "other"
)

// classifyError maps err onto an ErrorCategory. Timeouts win over transport
// failures since the handle wraps ctx errors with ErrTransport.
func classifyError(err error) ErrorCategory {
	switch {
	case err == nil:
		return ErrorCategoryNone
	case errors.Is(err, errspkg.ErrTopicNotFound):
		return ErrorCategoryTopicNotFound
	case errors.Is(err, errspkg.ErrPublisherClosed):
		return ErrorCategoryClosed
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return ErrorCategoryTimeout
	case errors.Is(err, errspkg.ErrEncoding):
		return ErrorCategoryEncoding
	case errors.Is(err, errspkg.ErrTopicRequired),
		errors.Is(err, errspkg.ErrInvalidMessage),
		errors.Is(err, errspkg.ErrMessageTooLarge),
		errors.Is(err, errspkg.ErrConfiguration):
		return ErrorCategoryValidation
	case errors.Is(err, errspkg.ErrTransport):
		return ErrorCategoryTransport
	default:
		return ErrorCategoryOther
	}
}

func (e *ErrorBreakdown) Record(category ErrorCategory, err error) {
	switch category {
	case ErrorCategoryNone:
		if err == nil {
			return
		}
		e.Other++
	case ErrorCategoryValidation:
		e.Validation++
	case ErrorCategoryTopicNotFound:
		e.TopicNotFound++
	case ErrorCategoryEncoding:
		e.Encoding++
	case ErrorCategoryTransport:
		e.Transport++
	case ErrorCategoryTimeout:
		e.Timeout++
	case ErrorCategoryClosed:
		e.Closed++
	default:
		e.Other++
	}
	if err != nil {
		e.LastError = err.Error()
	}
}

// topicStats is the mutable counterpart of TopicStats. Callers hold the
// PublishMetrics lock.
type topicStats struct {
	TopicStats

	totalLatency     int64
	latencyWindow    *latencyWindow
	throughputWindow *throughputWindow
}

func newTopicStats() *topicStats {
	return &topicStats{
		latencyWindow:    newLatencyWindow(latencySampleSize),
		throughputWindow: newThroughputWindow(throughputWindowSize),
	}
}

func (s *topicStats) recordSuccess(size int, duration time.Duration, now time.Time) {
	s.MessagesPublished++
	s.BytesPublished += uint64(size)
	s.LastPublishedAt = now
	s.totalLatency += int64(duration)

	s.latencyWindow.Add(duration)
	snapshot := s.latencyWindow.Snapshot()
	snapshot.AverageNs = s.totalLatency / int64(s.MessagesPublished)
	s.Latency = snapshot

	tp := s.throughputWindow.AddAndSnapshot(now)
	s.Throughput = ThroughputMetrics{
		CurrentRPS:       tp.CurrentRPS,
		WindowSeconds:    tp.WindowSeconds,
		MessagesInWindow: uint64(tp.Count),
	}
}

func (s *topicStats) recordFailure(category ErrorCategory, err error) {
	s.MessagesFailed++
	s.Errors.Record(category, err)
}

type latencyWindow struct {
	samples []int64
	next    int
	filled  int
	last    int64
}

func newLatencyWindow(size int) *latencyWindow {
	if size <= 0 {
		size = latencySampleSize
	}
	return &latencyWindow{samples: make([]int64, size)}
}

func (lw *latencyWindow) Add(d time.Duration) {
	if lw == nil || len(lw.samples) == 0 {
		return
	}
	lw.samples[lw.next] = int64(d)
	lw.last = int64(d)
	lw.next = (lw.next + 1) % len(lw.samples)
	if lw.filled < len(lw.samples) {
		lw.filled++
	}
}

func (lw *latencyWindow) Snapshot() LatencyMetrics {
	var metrics LatencyMetrics
	if lw == nil {
		return metrics
	}
	if lw.filled == 0 {
		metrics.LastNs = lw.last
		return metrics
	}
	samples := make([]int64, lw.filled)
	for i := 0; i < lw.filled; i++ {
		idx := lw.next - lw.filled + i
		if idx < 0 {
			idx += len(lw.samples)
		}
		samples[i] = lw.samples[idx]
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	metrics.SampleSize = lw.filled
	metrics.P50Ns = percentile(samples, 0.50)
	metrics.P95Ns = percentile(samples, 0.95)
	metrics.P99Ns = percentile(samples, 0.99)
	var sum int64
	for _, v := range samples {
		sum += v
	}
	metrics.AverageNs = sum / int64(len(samples))
	metrics.LastNs = lw.last
	return metrics
}

func percentile(samples []int64, quantile float64) int64 {
	if len(samples) == 0 {
		return 0
	}
	if quantile <= 0 {
		return samples[0]
	}
	if quantile >= 1 {
		return samples[len(samples)-1]
	}
	pos := quantile * float64(len(samples)-1)
	lower := int(math.Floor(pos))
	upper := int(math.Ceil(pos))
	if lower == upper {
		return samples[lower]
	}
	frac := pos - float64(lower)
	return samples[lower] + int64(float64(samples[upper]-samples[lower])*frac)
}

type throughputWindow struct {
	horizon time.Duration
	samples []time.Time
}

type throughputSnapshot struct {
	Count         int
	WindowSeconds float64
	CurrentRPS    float64
}

func newThroughputWindow(horizon time.Duration) *throughputWindow {
	return &throughputWindow{
		horizon: horizon,
		samples: make([]time.Time, 0, 64),
	}
}

func (tw *throughputWindow) AddAndSnapshot(now time.Time) throughputSnapshot {
	if tw == nil {
		return throughputSnapshot{}
	}
	tw.samples = append(tw.samples, now)
	tw.cleanup(now)
	return tw.snapshot(now)
}

func (tw *throughputWindow) cleanup(now time.Time) {
	if len(tw.samples) == 0 {
		return
	}
	cutoff := now.Add(-tw.horizon)
	idx := 0
	for idx < len(tw.samples) && tw.samples[idx].Before(cutoff) {
		idx++
	}
	if idx > 0 {
		copy(tw.samples, tw.samples[idx:])
		tw.samples = tw.samples[:len(tw.samples)-idx]
	}
}

func (tw *throughputWindow) snapshot(now time.Time) throughputSnapshot {
	if len(tw.samples) == 0 {
		return throughputSnapshot{}
	}
	span := now.Sub(tw.samples[0])
	if span <= 0 {
		span = time.Nanosecond
	}
	count := len(tw.samples)
	return throughputSnapshot{
		Count:         count,
		WindowSeconds: span.Seconds(),
		CurrentRPS:    float64(count) / span.Seconds(),
	}
}
