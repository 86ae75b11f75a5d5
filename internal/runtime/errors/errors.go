package errors

import (
	sterrors "errors"
	"fmt"
)

var (
	ErrConfigRequired  = sterrors.New("eventpub: configuration is required")
	ErrLoggerRequired  = sterrors.New("eventpub: logger is required")
	ErrTopicRequired   = sterrors.New("eventpub: topic is required")
	ErrInvalidMessage  = sterrors.New("eventpub: message must carry an object payload")
	ErrConfiguration   = sterrors.New("eventpub: configuration error")
	ErrTopicNotFound   = sterrors.New("eventpub: topic not found")
	ErrEncoding        = sterrors.New("eventpub: record does not conform to schema")
	ErrTransport       = sterrors.New("eventpub: transport failure")
	ErrPublishFailed   = sterrors.New("eventpub: failed to publish message")
	ErrPublisherClosed = sterrors.New("eventpub: publisher is closed")
	ErrMessageTooLarge = sterrors.New("eventpub: encoded message exceeds transport limit")
)

// ConfigValidationError reports an invalid Config.
type ConfigValidationError struct {
	Err error
}

func (e ConfigValidationError) Error() string {
	return "eventpub: invalid configuration: " + e.Err.Error()
}

func (e ConfigValidationError) Unwrap() error { return e.Err }

// Is lets callers branch on ErrConfiguration for any validation failure.
func (e ConfigValidationError) Is(target error) bool {
	return target == ErrConfiguration
}

// NewConfigValidationError wraps err, returning nil when err is nil.
func NewConfigValidationError(err error) error {
	if err == nil {
		return nil
	}
	return ConfigValidationError{Err: err}
}

// TopicNotFoundError is returned when the transport does not know the topic.
// It is deliberately not a PublishError so callers can branch on it, for
// example to create the topic and try again.
type TopicNotFoundError struct {
	Topic string
	Err   error
}

func (e *TopicNotFoundError) Error() string {
	return fmt.Sprintf("eventpub: topic %s not found", e.Topic)
}

func (e *TopicNotFoundError) Unwrap() error { return e.Err }

func (e *TopicNotFoundError) Is(target error) bool {
	return target == ErrTopicNotFound
}

// PublishError wraps every other publish failure. The cause stays reachable
// through errors.Is and errors.As.
type PublishError struct {
	Topic string
	Err   error
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("eventpub: failed to publish message to %s: %v", e.Topic, e.Err)
}

func (e *PublishError) Unwrap() error { return e.Err }

func (e *PublishError) Is(target error) bool {
	return target == ErrPublishFailed
}

// WrapPublish classifies err for the publish boundary: topic-not-found
// failures are surfaced as TopicNotFoundError, everything else as PublishError.
func WrapPublish(topic string, err error) error {
	if err == nil {
		return nil
	}
	var notFound *TopicNotFoundError
	if sterrors.As(err, &notFound) {
		return notFound
	}
	if sterrors.Is(err, ErrTopicNotFound) {
		return &TopicNotFoundError{Topic: topic, Err: err}
	}
	var published *PublishError
	if sterrors.As(err, &published) {
		return published
	}
	return &PublishError{Topic: topic, Err: err}
}
