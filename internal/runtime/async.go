package runtime

import "context"

// PublishResult is the outcome of a PublishAsync call.
type PublishResult struct {
	done chan struct{}
	id   string
	err  error
}

// Ready is closed once the publish finished.
func (r *PublishResult) Ready() <-chan struct{} { return r.done }

// Get waits for the publish to finish or for ctx to be done. Giving up on ctx
// does not cancel the publish itself.
func (r *PublishResult) Get(ctx context.Context) (string, error) {
	select {
	case <-r.done:
		return r.id, r.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// PublishAsync runs Publish in the background. msg is copied before
// returning, so the caller may reuse it right away. Cancelling ctx cancels the
// publish.
func (p *Publisher) PublishAsync(ctx context.Context, topicID string, msg map[string]any, opts ...PublishOption) *PublishResult {
	if ctx == nil {
		ctx = context.Background()
	}
	var snapshot map[string]any
	if msg != nil {
		snapshot = cloneMap(msg)
	}

	res := &PublishResult{done: make(chan struct{})}
	go func() {
		defer close(res.done)
		res.id, res.err = p.Publish(ctx, topicID, snapshot, opts...)
	}()
	return res
}
