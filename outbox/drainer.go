package outbox

import (
	"context"
	"time"

	"github.com/alitto/pond/v2"

	"github.com/clearrail/claimflow/logger"
)

// Store is the slice of the persistence layer the drainer needs.
type Store interface {
	// FetchUnpublished returns up to limit events with no publish
	// timestamp, oldest first.
	FetchUnpublished(ctx context.Context, limit int) ([]Event, error)

	// MarkPublished stamps the event as delivered. Marking an already
	// published event is a no-op.
	MarkPublished(ctx context.Context, id string, at time.Time) error
}

// Publisher delivers one event downstream. Implementations must tolerate
// duplicate deliveries of the same event id.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// PublisherFunc adapts a function to the Publisher interface.
type PublisherFunc func(ctx context.Context, event Event) error

func (f PublisherFunc) Publish(ctx context.Context, event Event) error {
	return f(ctx, event)
}

// Drainer polls the outbox for unpublished events and pushes them through
// the Publisher on a worker pool. Delivery is at-least-once: an event is
// marked published only after Publish returns nil, so a crash between the
// two leaves the event to be re-delivered on the next cycle.
type Drainer struct {
	store     Store
	publisher Publisher
	interval  time.Duration
	batch     int
	pool      pond.Pool
}

// DrainerOption configures a Drainer.
type DrainerOption func(*Drainer)

// WithInterval sets the poll interval. Default is 2 seconds.
func WithInterval(d time.Duration) DrainerOption {
	return func(dr *Drainer) {
		dr.interval = d
	}
}

// WithBatchSize caps how many events one cycle picks up. Default is 50.
func WithBatchSize(n int) DrainerOption {
	return func(dr *Drainer) {
		dr.batch = n
	}
}

// WithWorkers sets the publish concurrency. Default is 4.
func WithWorkers(n int) DrainerOption {
	return func(dr *Drainer) {
		dr.pool = pond.NewPool(n)
	}
}

// NewDrainer builds a Drainer over the given store and publisher.
func NewDrainer(store Store, publisher Publisher, opts ...DrainerOption) *Drainer {
	d := &Drainer{
		store:     store,
		publisher: publisher,
		interval:  2 * time.Second,
		batch:     50,
	}

	for _, opt := range opts {
		opt(d)
	}

	if d.pool == nil {
		d.pool = pond.NewPool(4)
	}

	return d
}

// Run polls until ctx is canceled, then waits for in-flight publishes to
// finish. It always returns ctx.Err().
func (d *Drainer) Run(ctx context.Context) error {
	log := logger.Get(ctx).With("component", "outbox.drainer")
	log.Info("outbox drainer starting", "interval", d.interval, "batch", d.batch)

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			d.pool.StopAndWait()
			log.Info("outbox drainer stopped")
			return ctx.Err()
		case <-ticker.C:
			d.drainOnce(ctx)
		}
	}
}

// drainOnce fetches one batch and publishes each event on the pool. It
// blocks until the batch is fully attempted so cycles never overlap on the
// same rows.
func (d *Drainer) drainOnce(ctx context.Context) {
	log := logger.Get(ctx).With("component", "outbox.drainer")

	events, err := d.store.FetchUnpublished(ctx, d.batch)
	if err != nil {
		log.Error("fetching unpublished events", "error", err)
		metricDrainErrors.Inc()
		return
	}

	if len(events) == 0 {
		return
	}

	group := d.pool.NewGroup()
	for _, event := range events {
		event := event
		group.Submit(func() {
			d.publish(ctx, event)
		})
	}

	_ = group.Wait()
}

func (d *Drainer) publish(ctx context.Context, event Event) {
	log := logger.Get(ctx).With("component", "outbox.drainer")

	if err := d.publisher.Publish(ctx, event); err != nil {
		log.Warn("publishing event, will retry next cycle",
			"event_id", event.ID,
			"event_type", event.EventType,
			"error", err)
		metricPublished.WithLabelValues(event.EventType, "error").Inc()
		return
	}

	if err := d.store.MarkPublished(ctx, event.ID, time.Now().UTC()); err != nil {
		// The event went out but the stamp failed; the next cycle
		// re-delivers and consumers dedupe by id.
		log.Warn("marking event published",
			"event_id", event.ID,
			"error", err)
		metricPublished.WithLabelValues(event.EventType, "mark_error").Inc()
		return
	}

	metricPublished.WithLabelValues(event.EventType, "ok").Inc()
}
