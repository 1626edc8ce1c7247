package telemetry

import (
	"fmt"

	"github.com/selfreplicating/factorysim/pkg/simerrors"
)

// Event is one occurrence worth surfacing outside the tick loop —
// a task going blocked, a module failing, a deposit being rejected —
// adapted from the shape of the teacher's deprovisioning events.Event
// (Reason/Message/dedupe key), minus the Kubernetes InvolvedObject.
type Event struct {
	SimTime float64
	Reason  string
	Message string
	DedupeKey string
}

// Bus is the bounded, single-producer/multiple-consumer event queue of
// spec.md §5 ("Event queue backpressure"): fixed capacity, drained in
// insertion order when a run ends, with a dropped-event counter that
// becomes a fatal EventQueueOverflow once drops exceed 10% of capacity.
type Bus struct {
	capacity int
	entries  []Event
	dropped  int
	dedup    *ChangeMonitor
}

func NewBus(capacity int, dedup *ChangeMonitor) *Bus {
	return &Bus{capacity: capacity, dedup: dedup}
}

// Emit appends e unless the buffer is at capacity, in which case it
// increments the dropped counter and returns a fatal EventQueueOverflow
// once that counter exceeds 10% of capacity. A duplicate of the last
// event with the same DedupeKey within the monitor's visibility window
// is silently absorbed without counting as a drop.
func (b *Bus) Emit(e Event) error {
	if b.dedup != nil && e.DedupeKey != "" && !b.dedup.HasChanged(e.DedupeKey, e.Reason+"|"+e.Message) {
		return nil
	}
	if len(b.entries) >= b.capacity {
		b.dropped++
		EventsDroppedCounter.Inc()
		if b.capacity > 0 && b.dropped > b.capacity/10 {
			return &simerrors.EventQueueOverflow{Capacity: b.capacity, Dropped: b.dropped}
		}
		return nil
	}
	b.entries = append(b.entries, e)
	return nil
}

// Drain returns every buffered event in insertion order and empties the
// buffer; pkg/factory calls it once, when Run returns its Result.
func (b *Bus) Drain() []Event {
	out := b.entries
	b.entries = nil
	return out
}

func (b *Bus) Dropped() int { return b.dropped }

// BlockedDedupeKey formats a blocked-event dedupe key as "id/status".
// The key is stable across ticks for the same id and status, so an
// unchanged blocked state emits one event instead of one per tick.
// pkg/factory passes "aggregate" as the id, keying one event stream per
// blocked status.
func BlockedDedupeKey(taskID, status string) string {
	return fmt.Sprintf("%s/%s", taskID, status)
}
