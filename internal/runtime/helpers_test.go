package runtime

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/drblury/eventpub/internal/runtime/attributes"
	configpkg "github.com/drblury/eventpub/internal/runtime/config"
	errspkg "github.com/drblury/eventpub/internal/runtime/errors"
	loggingpkg "github.com/drblury/eventpub/internal/runtime/logging"
	"github.com/drblury/eventpub/internal/runtime/schema"
	transportpkg "github.com/drblury/eventpub/internal/runtime/transport"
)

const testSchemaFile = "schema/testdata/order_event.avsc"

func testConfig() *configpkg.Config {
	return &configpkg.Config{
		ProjectID:     "shop",
		SchemaFile:    testSchemaFile,
		EventType:     "order.created",
		EventSource:   "orders.api",
		CorrelationID: "corr-1",
		MetadataTags:  []string{"v1"},
		Topics: map[string]string{
			"orders.json":   "JSON",
			"orders.binary": "BINARY",
		},
	}
}

type logEntry struct {
	level  string
	msg    string
	err    error
	fields loggingpkg.LogFields
}

type logStore struct {
	mu      sync.Mutex
	entries []logEntry
}

// recordingLogger is a ServiceLogger that keeps every entry in memory.
type recordingLogger struct {
	store  *logStore
	fields loggingpkg.LogFields
}

func newRecordingLogger() *recordingLogger {
	return &recordingLogger{store: &logStore{}}
}

func (l *recordingLogger) log(level, msg string, err error, fields loggingpkg.LogFields) {
	if l.store == nil {
		l.store = &logStore{}
	}
	merged := loggingpkg.LogFields{}
	for k, v := range l.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	l.store.mu.Lock()
	defer l.store.mu.Unlock()
	l.store.entries = append(l.store.entries, logEntry{level: level, msg: msg, err: err, fields: merged})
}

func (l *recordingLogger) With(fields loggingpkg.LogFields) loggingpkg.ServiceLogger {
	if l.store == nil {
		l.store = &logStore{}
	}
	merged := loggingpkg.LogFields{}
	for k, v := range l.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return &recordingLogger{store: l.store, fields: merged}
}

func (l *recordingLogger) Debug(msg string, fields loggingpkg.LogFields) {
	l.log("debug", msg, nil, fields)
}

func (l *recordingLogger) Info(msg string, fields loggingpkg.LogFields) {
	l.log("info", msg, nil, fields)
}

func (l *recordingLogger) Error(msg string, err error, fields loggingpkg.LogFields) {
	l.log("error", msg, err, fields)
}

func (l *recordingLogger) Trace(msg string, fields loggingpkg.LogFields) {
	l.log("trace", msg, nil, fields)
}

func (l *recordingLogger) messages(level string) []string {
	if l.store == nil {
		return nil
	}
	l.store.mu.Lock()
	defer l.store.mu.Unlock()
	var out []string
	for _, e := range l.store.entries {
		if e.level == level {
			out = append(out, e.msg)
		}
	}
	return out
}

type publishedMessage struct {
	data  []byte
	attrs attributes.Attributes
}

// fakeHandle records what is published to one topic.
type fakeHandle struct {
	topic string

	mu        sync.Mutex
	published []publishedMessage
	closed    bool
	err       error
	closeErr  error
	// blockUntilDone makes Publish wait for the context.
	blockUntilDone bool
}

func (h *fakeHandle) Publish(ctx context.Context, data []byte, attrs attributes.Attributes) (string, error) {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return "", errspkg.ErrPublisherClosed
	}
	if h.err != nil {
		h.mu.Unlock()
		return "", h.err
	}
	block := h.blockUntilDone
	h.mu.Unlock()

	if block {
		<-ctx.Done()
		return "", fmt.Errorf("%w: %w", errspkg.ErrTransport, ctx.Err())
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.published = append(h.published, publishedMessage{data: append([]byte(nil), data...), attrs: attrs.Clone()})
	return fmt.Sprintf("%s-%d", h.topic, len(h.published)), nil
}

func (h *fakeHandle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	return h.closeErr
}

func (h *fakeHandle) messages() []publishedMessage {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]publishedMessage(nil), h.published...)
}

func (h *fakeHandle) isClosed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closed
}

// fakeClient is an in-memory transport client. Topics it does not know are
// reported as not found.
type fakeClient struct {
	project   string
	encodings map[string]schema.Encoding
	caps      transportpkg.Capabilities

	// configure is applied to every new handle.
	configure func(h *fakeHandle)
	// openDelay widens the window for concurrent first use.
	openDelay time.Duration
	openErr   error

	// blockTopic makes OpenHandle for that topic wait for release or ctx.
	blockTopic  string
	release     chan struct{}
	openStarted chan struct{}
	startedOnce sync.Once

	mu      sync.Mutex
	opens   map[string]int
	handles map[string]*fakeHandle
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		project: "shop",
		encodings: map[string]schema.Encoding{
			"orders.json":   schema.EncodingJSON,
			"orders.binary": schema.EncodingBinary,
		},
		caps:    transportpkg.GetCapabilities("channel"),
		opens:   make(map[string]int),
		handles: make(map[string]*fakeHandle),
	}
}

func (c *fakeClient) TopicPath(topicID string) transportpkg.TopicPath {
	return transportpkg.TopicPath{Project: c.project, Topic: topicID}
}

func (c *fakeClient) TopicEncoding(ctx context.Context, path transportpkg.TopicPath) (schema.Encoding, error) {
	enc, ok := c.encodings[path.Topic]
	if !ok {
		return schema.EncodingUnspecified, fmt.Errorf("%w: %s", errspkg.ErrTopicNotFound, path)
	}
	return enc, nil
}

func (c *fakeClient) OpenHandle(ctx context.Context, path transportpkg.TopicPath) (transportpkg.Handle, error) {
	if c.openDelay > 0 {
		time.Sleep(c.openDelay)
	}
	if c.blockTopic != "" && path.Topic == c.blockTopic {
		c.startedOnce.Do(func() { close(c.openStarted) })
		select {
		case <-c.release:
		case <-ctx.Done():
			c.mu.Lock()
			c.opens[path.Topic]++
			c.mu.Unlock()
			return nil, ctx.Err()
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.opens[path.Topic]++
	if c.openErr != nil {
		return nil, c.openErr
	}
	if _, ok := c.encodings[path.Topic]; !ok {
		return nil, fmt.Errorf("%w: %s", errspkg.ErrTopicNotFound, path)
	}
	h := &fakeHandle{topic: path.Topic}
	if c.configure != nil {
		c.configure(h)
	}
	c.handles[path.Topic] = h
	return h, nil
}

// blockOpens makes opening topic wait until the returned func is called.
func (c *fakeClient) blockOpens(topic string) (started <-chan struct{}, release func()) {
	c.blockTopic = topic
	c.release = make(chan struct{})
	c.openStarted = make(chan struct{})
	var once sync.Once
	return c.openStarted, func() { once.Do(func() { close(c.release) }) }
}

func (c *fakeClient) Capabilities() transportpkg.Capabilities { return c.caps }

func (c *fakeClient) openCount(topic string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.opens[topic]
}

func (c *fakeClient) handle(topic string) *fakeHandle {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.handles[topic]
}

// fixedClock returns a clock that advances by step on every call.
func fixedClock(start time.Time, step time.Duration) func() time.Time {
	var mu sync.Mutex
	next := start
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now := next
		next = next.Add(step)
		return now
	}
}

func sequentialIDs(prefix string) func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("%s-%d", prefix, n)
	}
}
