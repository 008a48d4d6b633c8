package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"supportdesk/internal/core/contracts"
	"supportdesk/internal/core/domain"
)

const publishTimeout = 5 * time.Second

// EventForwarder moves routing events from rooms to external sinks. Rooms
// only ever touch Emit, which never blocks: when the buffer is full the
// event is dropped and logged.
type EventForwarder struct {
	log    *slog.Logger
	sinks  []contracts.EventSink
	events chan domain.RoomEvent
	done   chan struct{}
	once   sync.Once
	mu     sync.RWMutex
	closed bool
}

func NewEventForwarder(
	log *slog.Logger,
	buffer int,
	sinks ...contracts.EventSink,
) *EventForwarder {
	if buffer <= 0 {
		buffer = 1024
	}
	return &EventForwarder{
		log:    log,
		sinks:  sinks,
		events: make(chan domain.RoomEvent, buffer),
		done:   make(chan struct{}),
	}
}

func (w *EventForwarder) Emit(evt domain.RoomEvent) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		return
	}
	select {
	case w.events <- evt:
	default:
		w.log.Warn("worker - emit - buffer full, event dropped", "kind", evt.Kind, "room_id", evt.RoomID, "event_id", evt.ID)
	}
}

// Run publishes events until Close is called and the buffer is drained.
// A sink failure is logged and does not stop the loop.
func (w *EventForwarder) Run(ctx context.Context) {
	defer close(w.done)
	w.log.InfoContext(ctx, "worker - run - forwarding events", "sinks", len(w.sinks))
	for evt := range w.events {
		w.publish(ctx, evt)
	}
	w.log.InfoContext(ctx, "worker - run - drained")
}

func (w *EventForwarder) publish(ctx context.Context, evt domain.RoomEvent) {
	for _, s := range w.sinks {
		pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
		err := s.Publish(pctx, evt)
		cancel()
		if err != nil {
			w.log.ErrorContext(ctx, "worker - publish - sink failed", "kind", evt.Kind, "room_id", evt.RoomID, "event_id", evt.ID, "err", err)
		}
	}
}

// Close stops accepting events, waits for Run to drain the buffer and then
// closes every sink.
func (w *EventForwarder) Close() error {
	w.once.Do(func() {
		w.mu.Lock()
		w.closed = true
		close(w.events)
		w.mu.Unlock()
	})
	<-w.done
	var errs []error
	for _, s := range w.sinks {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
