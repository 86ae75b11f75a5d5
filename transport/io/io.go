// Package io provides a file-based I/O transport for eventpub. Messages are
// appended to a file as newline-delimited JSON records.
package io

import (
	"context"
	"errors"
	"os"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/drblury/eventpub/internal/runtime/jsoncodec"
	"github.com/drblury/eventpub/transport"
)

// TransportName is the name used to register this transport.
const TransportName = "io"

// DefaultFilePath is the default file path if none is specified.
const DefaultFilePath = "messages.log"

// ErrClosed is returned when publishing through a closed Publisher.
var ErrClosed = errors.New("io: publisher is closed")

// PublisherFactory allows overriding the publisher creation for testing.
var PublisherFactory = func(filePath string, logger watermill.LoggerAdapter) (message.Publisher, error) {
	return &Publisher{filePath: filePath, logger: logger}, nil
}

func init() {
	Register()
}

// Register registers the I/O transport with the default registry.
func Register() {
	transport.RegisterWithCapabilities(TransportName, Build, transport.IOCapabilities)
}

// Build creates a new I/O publisher.
func Build(ctx context.Context, cfg transport.Config, logger watermill.LoggerAdapter) (message.Publisher, error) {
	filePath := cfg.GetIOFile()
	if filePath == "" {
		filePath = DefaultFilePath
	}
	return PublisherFactory(filePath, logger)
}

// Capabilities returns the capabilities of this transport.
func Capabilities() transport.Capabilities {
	return transport.IOCapabilities
}

// Record is one line of the output file. Payload is base64 encoded.
type Record struct {
	UUID     string            `json:"uuid"`
	Metadata map[string]string `json:"metadata"`
	Payload  []byte            `json:"payload"`
	Topic    string            `json:"topic"`
}

// Publisher appends messages to a file.
type Publisher struct {
	filePath string
	logger   watermill.LoggerAdapter
	mu       sync.Mutex
	closed   bool
}

// Publish writes messages to the file in order.
func (p *Publisher) Publish(topic string, messages ...*message.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrClosed
	}

	f, err := os.OpenFile(p.filePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return err
	}
	defer f.Close()

	for _, msg := range messages {
		rec := Record{
			UUID:     msg.UUID,
			Metadata: msg.Metadata,
			Payload:  msg.Payload,
			Topic:    topic,
		}
		if err := jsoncodec.Encode(f, rec); err != nil {
			return err
		}
		if p.logger != nil {
			p.logger.Trace("Message written", watermill.LogFields{"uuid": msg.UUID, "topic": topic})
		}
	}
	return nil
}

// Close marks the publisher closed. Later publishes fail with ErrClosed.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}
