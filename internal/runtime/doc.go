/*
Package runtime implements the event publisher behind the eventpub facade.

# Architecture Overview

A Publisher turns caller records into schema-conformant events. Every publish
runs the same pipeline:

 1. deep copy the caller's record
 2. resolve (or lazily open) the topic handle
 3. ask the transport for the topic encoding
 4. build the envelope and inject eventContext and payload.metadata
 5. encode to Avro binary or Avro JSON
 6. hand the bytes and attributes to the topic handle

# Package Structure

## Publisher (publisher.go, async.go, options.go)

Publisher owns the configuration, the loaded schema and the handle cache.
Publish is synchronous and returns the broker message id. PublishAsync runs
the same pipeline in the background and returns a PublishResult.

## Handle cache (handles.go)

One transport handle per topic, opened on first use and shared by every later
publish. Close flushes and closes all handles exactly once.

## Hooks (hooks.go)

PublishHooks observe the publish lifecycle. LoggingHooks and AlertingHooks
are ready made variants.

## Metrics and stats (metrics.go, stats.go, resources.go, stats_handler.go)

Prometheus counters and histograms per topic, plus an in-process snapshot
with latency percentiles, throughput, an error breakdown and resource usage.
StatsHandler serves that snapshot as JSON.

# Sub-packages

  - attributes/: message attributes and reserved keys
  - config/: publisher configuration with validation
  - envelope/: event context and payload metadata
  - errors/: sentinel errors and error types
  - ids/: event and message id generation
  - jsoncodec/: JSON marshaling utilities
  - logging/: logger interface and adapters
  - schema/: Avro schema loading and encoding
  - transport/: topic paths, handles and the Watermill backed client
*/
package runtime
