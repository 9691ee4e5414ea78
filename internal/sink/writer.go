package sink

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"lpr-pipeline/internal/domain/plate"
)

// Writer is the single persistence worker: it consumes immutable read-event
// snapshots from a bounded queue and fans them out to every registered sink
// off the producer goroutine. Enqueue never blocks; when the queue is full
// the event is dropped and counted.
type Writer struct {
	sinks []Sink
	log   zerolog.Logger

	queue   chan *plate.ReadEvent
	dropped atomic.Uint64

	startMu sync.Mutex
	started bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func NewWriter(queueSize int, log zerolog.Logger, sinks ...Sink) *Writer {
	if queueSize <= 0 {
		queueSize = 16
	}
	return &Writer{
		sinks: sinks,
		log:   log,
		queue: make(chan *plate.ReadEvent, queueSize),
	}
}

// Start launches the persistence goroutine.
func (w *Writer) Start(ctx context.Context) {
	w.startMu.Lock()
	defer w.startMu.Unlock()
	if w.started {
		return
	}
	ctx, w.cancel = context.WithCancel(ctx)
	w.started = true

	w.wg.Add(1)
	go w.loop(ctx)
}

// Stop shuts the worker down after persisting every event already queued,
// so a session finalized during shutdown still reaches the sinks.
func (w *Writer) Stop() {
	w.startMu.Lock()
	if !w.started {
		w.startMu.Unlock()
		return
	}
	w.started = false
	w.startMu.Unlock()

	w.cancel()
	w.wg.Wait()
}

// Enqueue hands an event to the worker without blocking. Returns false when
// the queue was full and the event was dropped.
func (w *Writer) Enqueue(ev *plate.ReadEvent) bool {
	select {
	case w.queue <- ev:
		return true
	default:
		w.dropped.Add(1)
		w.log.Warn().Str("plate", ev.Plate).Msg("persistence queue full, event dropped")
		return false
	}
}

// Dropped counts events discarded because the queue was full.
func (w *Writer) Dropped() uint64 { return w.dropped.Load() }

func (w *Writer) loop(ctx context.Context) {
	defer w.wg.Done()
	for {
		select {
		case <-ctx.Done():
			w.drain()
			return
		case ev := <-w.queue:
			w.persist(ctx, ev)
		}
	}
}

// drain persists whatever is still queued at shutdown. A fresh context keeps
// the remaining sink writes from failing on the already-cancelled one.
func (w *Writer) drain() {
	for {
		select {
		case ev := <-w.queue:
			w.persist(context.Background(), ev)
		default:
			return
		}
	}
}

func (w *Writer) persist(ctx context.Context, ev *plate.ReadEvent) {
	for _, s := range w.sinks {
		if err := s.Persist(ctx, ev); err != nil {
			w.log.Error().Err(err).
				Str("plate", ev.Plate).
				Str("direction", ev.Direction).
				Msg("sink write failed")
		}
	}
}
