package coordinator

import (
	"log/slog"
	"sync"
)

const statusFeedBuffer = 100

// StatusFeed fans ledger status changes out to subscribers, optionally
// narrowed to one job. A subscriber whose buffer is full misses the event;
// its miss count is logged when it unsubscribes.
type StatusFeed struct {
	mu     sync.Mutex
	subs   map[chan StatusEvent]*statusSub
	buffer int
	logger *slog.Logger
}

type statusSub struct {
	jobID  string
	missed int
}

func NewStatusFeed(logger *slog.Logger) *StatusFeed {
	return &StatusFeed{
		subs:   make(map[chan StatusEvent]*statusSub),
		buffer: statusFeedBuffer,
		logger: logger,
	}
}

// Subscribe returns a channel receiving events for jobID, or for every job
// when jobID is empty.
func (f *StatusFeed) Subscribe(jobID string) chan StatusEvent {
	f.mu.Lock()
	defer f.mu.Unlock()

	ch := make(chan StatusEvent, f.buffer)
	f.subs[ch] = &statusSub{jobID: jobID}
	return ch
}

// Unsubscribe closes ch. Unknown channels are ignored.
func (f *StatusFeed) Unsubscribe(ch chan StatusEvent) {
	f.mu.Lock()
	sub, ok := f.subs[ch]
	if ok {
		delete(f.subs, ch)
		close(ch)
	}
	f.mu.Unlock()

	if ok && sub.missed > 0 {
		f.logger.Warn("status subscriber missed events", "job_id", sub.jobID, "missed", sub.missed)
	}
}

// Publish delivers ev to every matching subscriber with room in its buffer
// and returns how many received it.
func (f *StatusFeed) Publish(ev StatusEvent) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	delivered := 0
	for ch, sub := range f.subs {
		if sub.jobID != "" && sub.jobID != ev.JobID {
			continue
		}
		select {
		case ch <- ev:
			delivered++
		default:
			sub.missed++
		}
	}
	return delivered
}

func (f *StatusFeed) Subscribers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}
