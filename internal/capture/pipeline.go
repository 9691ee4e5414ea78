// Package capture decouples expensive text recognition from the real-time
// observation producer: a bounded queue feeds exactly one worker goroutine,
// and the producer never blocks on it.
package capture

import (
	"context"
	"errors"
	"image"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"lpr-pipeline/internal/domain/plate"
	"lpr-pipeline/internal/textrec"
)

// DropPolicy selects what happens when the queue is full.
type DropPolicy string

const (
	// DropNewest discards the incoming submission.
	DropNewest DropPolicy = "newest"
	// DropOldest evicts the head of the queue to make room.
	DropOldest DropPolicy = "oldest"
)

var ErrAlreadyStarted = errors.New("capture pipeline already started")

// Recognizer produces character detections for a plate crop. It wraps the
// external character-detection model, which is not safe for concurrent use;
// the pipeline serializes all calls through its single worker.
type Recognizer interface {
	RecognizeChars(ctx context.Context, crop image.Image) ([]plate.CharDetection, error)
}

// RecognizerFunc adapts a function to the Recognizer interface.
type RecognizerFunc func(ctx context.Context, crop image.Image) ([]plate.CharDetection, error)

func (f RecognizerFunc) RecognizeChars(ctx context.Context, crop image.Image) ([]plate.CharDetection, error) {
	return f(ctx, crop)
}

// Job is one accepted submission waiting for recognition. Chars carries
// pre-computed detections when the caller already ran the character model;
// the worker then skips the recognizer and only filters and reconstructs.
type Job struct {
	Identity string
	Zone     string
	Crop     image.Image
	Chars    []plate.CharDetection
	At       time.Time
}

// Result is one completed recognition, delivered to the session owner.
type Result struct {
	Identity string
	Zone     string
	Text     string
	Crop     image.Image
	At       time.Time
}

// Config tunes the pipeline.
type Config struct {
	QueueSize     int
	Policy        DropPolicy
	Cooldown      time.Duration
	MinCropHeight int
	Sharpen       bool
	Text          textrec.Params
	GlyphAliases  map[string]string
}

// DefaultConfig matches the reference deployment tuning.
func DefaultConfig() Config {
	return Config{
		QueueSize:     16,
		Policy:        DropNewest,
		Cooldown:      3 * time.Second,
		MinCropHeight: 80,
		Text:          textrec.DefaultParams(),
	}
}

// Pipeline is the bounded-queue dispatcher. Submit is single-producer;
// Results has a single consumer.
type Pipeline struct {
	cfg  Config
	rec  Recognizer
	gate *CooldownGate
	log  zerolog.Logger

	queue   chan Job
	results chan Result

	dropped    atomic.Uint64
	suppressed atomic.Uint64
	processed  atomic.Uint64

	startMu sync.Mutex
	started bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New creates a pipeline. rec may be nil when every submission carries
// pre-computed character detections.
func New(cfg Config, rec Recognizer, log zerolog.Logger) *Pipeline {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultConfig().QueueSize
	}
	if cfg.Policy == "" {
		cfg.Policy = DropNewest
	}
	return &Pipeline{
		cfg:     cfg,
		rec:     rec,
		gate:    NewCooldownGate(cfg.Cooldown),
		log:     log,
		queue:   make(chan Job, cfg.QueueSize),
		results: make(chan Result, cfg.QueueSize),
	}
}

// Start launches the worker goroutine.
func (p *Pipeline) Start(ctx context.Context) error {
	p.startMu.Lock()
	defer p.startMu.Unlock()
	if p.started {
		return ErrAlreadyStarted
	}
	ctx, p.cancel = context.WithCancel(ctx)
	p.started = true

	p.wg.Add(1)
	go p.workerLoop(ctx)
	return nil
}

// Stop stops accepting work and waits for the in-flight job to finish.
// Queued jobs that have not started are abandoned.
func (p *Pipeline) Stop() {
	p.startMu.Lock()
	if !p.started {
		p.startMu.Unlock()
		return
	}
	p.started = false
	p.startMu.Unlock()

	p.cancel()
	p.wg.Wait()
	close(p.results)
}

// Submit enqueues a job without ever blocking the producer. It returns false
// when the submission was suppressed by the cooldown gate or discarded under
// the DropNewest policy.
func (p *Pipeline) Submit(job Job) bool {
	if !p.gate.Accept(job.Identity, job.Zone, job.At) {
		p.suppressed.Add(1)
		return false
	}

	switch p.cfg.Policy {
	case DropOldest:
		for {
			select {
			case p.queue <- job:
				return true
			default:
			}
			select {
			case <-p.queue:
				p.dropped.Add(1)
			default:
			}
		}
	default: // DropNewest
		select {
		case p.queue <- job:
			return true
		default:
			p.dropped.Add(1)
			return false
		}
	}
}

// Results delivers completed recognitions. The channel is closed by Stop.
func (p *Pipeline) Results() <-chan Result {
	return p.results
}

// Dropped counts submissions discarded by the overflow policy.
func (p *Pipeline) Dropped() uint64 { return p.dropped.Load() }

// Suppressed counts submissions rejected by the cooldown gate.
func (p *Pipeline) Suppressed() uint64 { return p.suppressed.Load() }

// Processed counts completed recognitions.
func (p *Pipeline) Processed() uint64 { return p.processed.Load() }

// ResetCooldowns clears cooldown state, e.g. on source loop restart.
func (p *Pipeline) ResetCooldowns() {
	p.gate.Reset()
}

func (p *Pipeline) workerLoop(ctx context.Context) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case job := <-p.queue:
			p.process(ctx, job)
		}
	}
}

func (p *Pipeline) process(ctx context.Context, job Job) {
	crop := enhanceCrop(job.Crop, p.cfg.MinCropHeight, p.cfg.Sharpen)

	chars := job.Chars
	if chars == nil && p.rec != nil {
		var err error
		chars, err = p.rec.RecognizeChars(ctx, crop)
		if err != nil {
			// Recognition failure skips this cycle; the stream keeps
			// flowing with an empty read.
			p.log.Warn().Err(err).
				Str("identity", job.Identity).
				Str("zone", job.Zone).
				Msg("character recognition failed")
			chars = nil
		}
	}

	text := p.cfg.Text.Reconstruct(p.cfg.Text.FilterDetections(chars, p.cfg.GlyphAliases))
	p.processed.Add(1)

	select {
	case <-ctx.Done():
	case p.results <- Result{
		Identity: job.Identity,
		Zone:     job.Zone,
		Text:     text,
		Crop:     crop,
		At:       job.At,
	}:
	}
}
