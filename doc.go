// Package eventpub publishes events to a pub/sub topic with an optional
// schema-aware encoding. Every message is enriched with a standard event
// envelope (event id, UTC timestamp, source, spec version, correlation and
// trace ids) under "eventContext" and a metadata block under
// "payload.metadata", then encoded as an Avro binary datum or as JSON,
// depending on the encoding the topic is configured with.
//
// A Publisher is built from Config: it loads the Avro schema once, opens one
// Watermill publisher per topic on first use, and keeps it until Close. The
// caller's message is never modified.
//
//	pub, err := eventpub.NewPublisher(&eventpub.Config{
//		ProjectID:     "shop",
//		SchemaFile:    "schemas/order_event.avsc",
//		EventType:     "order.created",
//		EventSource:   "orders.api",
//		CorrelationID: "checkout",
//		MetadataTags:  []string{"v1"},
//		Topics:        map[string]string{"orders": "BINARY"},
//		PubSubSystem:  "kafka",
//		KafkaBrokers:  []string{"localhost:9092"},
//	}, eventpub.NewSlogServiceLogger(slog.Default()), eventpub.Dependencies{})
//	if err != nil {
//		return err
//	}
//	defer pub.Close()
//
//	id, err := pub.Publish(ctx, "orders", map[string]any{
//		"payload": map[string]any{"orderId": 42},
//	}, eventpub.WithTraceID("trace-9"))
//
// Unknown topics fail with a *TopicNotFoundError (ErrTopicNotFound). Every
// other failure is a *PublishError (ErrPublishFailed) that still matches its
// cause, such as ErrEncoding, ErrTransport or ErrPublisherClosed.
//
// # Transports
//
// eventpub ships 8 publisher transports, selected by Config.PubSubSystem:
//   - channel: In-memory Go channels for testing
//   - kafka: Apache Kafka through Sarama
//   - rabbitmq: AMQP durable exchanges
//   - nats: Core NATS
//   - nats-jetstream: NATS JetStream with broker-assigned sequence ids
//   - http: HTTP POST per message
//   - aws: AWS SNS with LocalStack support
//   - io: Newline-delimited file output
//
// Custom brokers plug in through Dependencies.TransportFactory, or by
// replacing the whole transport collaborator with Dependencies.Client.
//
// # Observability
//
// Each publish runs in an OpenTelemetry span; its trace id becomes the
// envelope trace id when WithTraceID is not given. With MetricsEnabled the
// publisher registers Prometheus counters and histograms under the
// eventpub_publisher namespace, and Publisher.Stats reports per-topic latency
// percentiles, throughput and error breakdowns. PublishHooks observe every
// call.
package eventpub
