package runtime

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	metricsNamespace = "eventpub"
	metricsSubsystem = "publisher"
)

// PublishMetrics tracks publish statistics, both as Prometheus collectors and
// as an in-memory per-topic snapshot.
type PublishMetrics struct {
	mu sync.RWMutex

	topics      map[string]*topicStats
	openHandles int

	messagesTotal   *prometheus.CounterVec
	failuresTotal   *prometheus.CounterVec
	openHandlesG    prometheus.Gauge
	messageBytes    *prometheus.HistogramVec
	publishDuration *prometheus.HistogramVec

	registerer prometheus.Registerer
	registered bool
}

// MetricsSnapshot provides a point-in-time view of PublishMetrics.
type MetricsSnapshot struct {
	TotalPublished uint64                `json:"total_published"`
	TotalFailed    uint64                `json:"total_failed"`
	OpenHandles    int                   `json:"open_handles"`
	Topics         map[string]TopicStats `json:"topics"`
	CollectedAt    time.Time             `json:"collected_at"`
}

func newPublishCounterVec(name, help string, labels []string) *prometheus.CounterVec {
	return prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      name,
			Help:      help,
		},
		labels,
	)
}

func newPublishHistogramVec(name, help string, buckets []float64, labels []string) *prometheus.HistogramVec {
	return prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      name,
			Help:      help,
			Buckets:   buckets,
		},
		labels,
	)
}

// NewPublishMetrics creates a publish metrics collector. A nil registerer
// selects prometheus.DefaultRegisterer.
func NewPublishMetrics(registerer prometheus.Registerer) *PublishMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &PublishMetrics{
		topics:        make(map[string]*topicStats),
		registerer:    registerer,
		messagesTotal: newPublishCounterVec("messages_total", "Total number of events published", []string{"topic", "encoding"}),
		failuresTotal: newPublishCounterVec("failures_total", "Total number of failed publish calls", []string{"topic", "reason"}),
		openHandlesG: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "open_handles",
			Help:      "Number of open topic handles",
		}),
		messageBytes:    newPublishHistogramVec("message_bytes", "Size of encoded events in bytes", prometheus.ExponentialBuckets(256, 4, 8), []string{"encoding"}),
		publishDuration: newPublishHistogramVec("publish_duration_seconds", "Duration of successful publish calls", prometheus.DefBuckets, []string{"topic"}),
	}
}

// Register registers the Prometheus collectors. Safe to call multiple times.
func (m *PublishMetrics) Register() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.registered {
		return nil
	}

	collectors := []prometheus.Collector{
		m.messagesTotal,
		m.failuresTotal,
		m.openHandlesG,
		m.messageBytes,
		m.publishDuration,
	}

	for _, c := range collectors {
		if err := m.registerer.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				return err
			}
		}
	}

	m.registered = true
	return nil
}

// RecordPublished records an event accepted by the transport.
func (m *PublishMetrics) RecordPublished(topic, encoding string, size int, duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.getOrCreateTopicStats(topic).recordSuccess(size, duration, time.Now().UTC())

	m.messagesTotal.WithLabelValues(topic, encoding).Inc()
	m.messageBytes.WithLabelValues(encoding).Observe(float64(size))
	m.publishDuration.WithLabelValues(topic).Observe(duration.Seconds())
}

// UnknownTopicLabel is the topic label of failures whose topic is not known,
// so stray topic ids do not create a series each.
const UnknownTopicLabel = "unknown"

// RecordFailure records a failed publish call and returns its category.
// Topic-not-found failures are recorded under UnknownTopicLabel.
func (m *PublishMetrics) RecordFailure(topic string, err error) ErrorCategory {
	category := classifyError(err)
	if category == ErrorCategoryTopicNotFound || topic == "" {
		topic = UnknownTopicLabel
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.getOrCreateTopicStats(topic).recordFailure(category, err)
	m.failuresTotal.WithLabelValues(topic, string(category)).Inc()
	return category
}

// SetOpenHandles sets the open handle gauge.
func (m *PublishMetrics) SetOpenHandles(count int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.openHandles = count
	m.openHandlesG.Set(float64(count))
}

// GetSnapshot returns a point-in-time snapshot of all publish metrics.
func (m *PublishMetrics) GetSnapshot() MetricsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snapshot := MetricsSnapshot{
		OpenHandles: m.openHandles,
		Topics:      make(map[string]TopicStats, len(m.topics)),
		CollectedAt: time.Now().UTC(),
	}
	for topic, stats := range m.topics {
		snapshot.Topics[topic] = stats.TopicStats
		snapshot.TotalPublished += stats.MessagesPublished
		snapshot.TotalFailed += stats.MessagesFailed
	}
	return snapshot
}

// GetTopicStats returns a copy of the stats for topic.
func (m *PublishMetrics) GetTopicStats(topic string) (TopicStats, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats, ok := m.topics[topic]
	if !ok {
		return TopicStats{}, false
	}
	return stats.TopicStats, true
}

func (m *PublishMetrics) getOrCreateTopicStats(topic string) *topicStats {
	if stats, ok := m.topics[topic]; ok {
		return stats
	}
	stats := newTopicStats()
	m.topics[topic] = stats
	return stats
}

// Reset resets all metrics (useful for testing).
func (m *PublishMetrics) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.topics = make(map[string]*topicStats)
	m.openHandles = 0
	m.messagesTotal.Reset()
	m.failuresTotal.Reset()
	m.openHandlesG.Set(0)
	m.messageBytes.Reset()
	m.publishDuration.Reset()
}

// MetricsHandler serves the collectors of gatherer in the Prometheus text
// format. A nil gatherer selects prometheus.DefaultGatherer.
func MetricsHandler(gatherer prometheus.Gatherer) http.Handler {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
