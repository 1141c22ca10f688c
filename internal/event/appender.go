package event

import (
	"context"
	"sync"
	"time"

	"github.com/sentinelsec/sentinel-core/internal/infrastructure/logging"
)

const (
	// appendQueueSize bounds the in-flight event buffer. The state
	// machine must never block on audit writes.
	appendQueueSize = 256

	// appendTimeout bounds a single database write.
	appendTimeout = 5 * time.Second
)

// Appender decouples the alarm decision path from event-log writes.
//
// Log appends to a buffered channel drained by a single goroutine. If the
// buffer is full the event is dropped and counted; losing an audit row is
// preferable to delaying a siren.
type Appender struct {
	repo   Repository
	logger *logging.Logger

	queue chan Event

	mu      sync.Mutex
	dropped int64

	done chan struct{}
	wg   sync.WaitGroup
}

// NewAppender creates an Appender and starts its writer goroutine.
func NewAppender(repo Repository, logger *logging.Logger) *Appender {
	a := &Appender{
		repo:   repo,
		logger: logger.With("component", "event"),
		queue:  make(chan Event, appendQueueSize),
		done:   make(chan struct{}),
	}

	a.wg.Add(1)
	go a.run()
	return a
}

// Log queues an event for persistence. Never blocks; stamps CreatedAt so
// ordering reflects when things happened, not when the writer caught up.
func (a *Appender) Log(e Event) {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	select {
	case a.queue <- e:
	default:
		a.mu.Lock()
		a.dropped++
		n := a.dropped
		a.mu.Unlock()
		a.logger.Error("event queue full, dropping event",
			"type", string(e.Type),
			"dropped_total", n,
		)
	}
}

// Dropped returns the number of events lost to a full queue.
func (a *Appender) Dropped() int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.dropped
}

// Close drains the queue and stops the writer. Events logged after Close
// are dropped.
func (a *Appender) Close() {
	close(a.done)
	a.wg.Wait()
}

func (a *Appender) run() {
	defer a.wg.Done()

	for {
		select {
		case e := <-a.queue:
			a.write(e)
		case <-a.done:
			// Drain whatever is still queued before exiting.
			for {
				select {
				case e := <-a.queue:
					a.write(e)
				default:
					return
				}
			}
		}
	}
}

func (a *Appender) write(e Event) {
	ctx, cancel := context.WithTimeout(context.Background(), appendTimeout)
	defer cancel()

	if err := a.repo.Append(ctx, &e); err != nil {
		a.logger.Error("failed to persist event",
			"type", string(e.Type),
			"error", err,
		)
	}
}
