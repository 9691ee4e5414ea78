package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"time"
	"unicode/utf8"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"lpr-pipeline/internal/capture"
	"lpr-pipeline/internal/config"
	"lpr-pipeline/internal/domain/plate"
	"lpr-pipeline/internal/repository"
	"lpr-pipeline/internal/session"
	"lpr-pipeline/internal/sink"
	"lpr-pipeline/internal/utils"
	"lpr-pipeline/internal/zones"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("not found")
)

// Aggregation policies. PolicySession runs the zone-timeout state machine
// with first/best/last merging; PolicyIdentity emits one event per accepted
// (identity, zone) capture with no merging. A deployment uses exactly one.
const (
	PolicySession  = "session"
	PolicyIdentity = "identity"
)

// tickInterval paces the aggregator timeout checks.
const tickInterval = 100 * time.Millisecond

// PipelineService owns the observation flow: it tags detections with zones,
// dispatches crops through the capture pipeline, feeds results into the
// session aggregator and hands finalized events to the persistence writer.
// Session state is mutated only inside Run's goroutine.
type PipelineService struct {
	cfg      config.PipelineConfig
	zones    *zones.Store
	pipeline *capture.Pipeline
	agg      *session.Aggregator
	writer   *sink.Writer
	repo     *repository.ReadEventRepository
	log      zerolog.Logger
}

func NewPipelineService(
	cfg config.PipelineConfig,
	store *zones.Store,
	pipeline *capture.Pipeline,
	agg *session.Aggregator,
	writer *sink.Writer,
	repo *repository.ReadEventRepository,
	log zerolog.Logger,
) *PipelineService {
	return &PipelineService{
		cfg:      cfg,
		zones:    store,
		pipeline: pipeline,
		agg:      agg,
		writer:   writer,
		repo:     repo,
		log:      log,
	}
}

// Run consumes capture results and drives the aggregation policy until ctx
// is cancelled. It is the single consumer of the results channel and the
// only goroutine that touches session state.
func (s *PipelineService) Run(ctx context.Context) {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if ev := s.agg.Flush(time.Now()); ev != nil {
				s.writer.Enqueue(ev)
			}
			return
		case res, ok := <-s.pipeline.Results():
			if !ok {
				return
			}
			s.handleResult(res)
		case now := <-ticker.C:
			if ev := s.agg.Tick(now); ev != nil {
				s.writer.Enqueue(ev)
			}
		}
	}
}

func (s *PipelineService) handleResult(res capture.Result) {
	if s.cfg.Policy == PolicyIdentity {
		s.emitIdentityEvent(res)
		return
	}
	s.agg.Observe(plate.Observation{
		At:       res.At,
		Zone:     res.Zone,
		Text:     res.Text,
		Identity: res.Identity,
		Crop:     res.Crop,
	})
}

// emitIdentityEvent produces one immediate event per accepted capture. The
// cooldown gate upstream already deduplicated the crossing; reads too short
// to be a plate are dropped here the same way the session policy drops them
// from its reads list.
func (s *PipelineService) emitIdentityEvent(res capture.Result) {
	if utf8.RuneCountInString(res.Text) <= 2 {
		return
	}
	snap := plate.Capture{Image: res.Crop, Text: res.Text}
	s.writer.Enqueue(&plate.ReadEvent{
		ID:        uuid.New(),
		At:        res.At,
		Plate:     res.Text,
		Direction: session.DirectionLabel(res.Zone),
		FirstText: res.Text,
		LastText:  res.Text,
		Reads:     []string{res.Text},
		First:     snap,
		Best:      snap,
		Last:      snap,
	})
}

// HandleFrame is the in-process producer path: detections for one frame,
// plus the full-resolution frame they came from. Crops are cut from the
// frame at source resolution with a small padding, zone membership is
// decided on the box center, and accepted crops go through the capture
// pipeline. Never blocks.
func (s *PipelineService) HandleFrame(at time.Time, frame image.Image, dets []plate.Detection) {
	if frame == nil {
		return
	}
	bounds := frame.Bounds()
	for _, d := range dets {
		zone := s.zones.Classify(d.Box.Center())
		if zone == "" {
			continue
		}
		pad := s.cfg.CropPadding
		rect := image.Rect(
			max(bounds.Min.X, d.Box.X1-pad),
			max(bounds.Min.Y, d.Box.Y1-pad),
			min(bounds.Max.X, d.Box.X2+pad),
			min(bounds.Max.Y, d.Box.Y2+pad),
		)
		crop := imaging.Crop(frame, rect)
		s.pipeline.Submit(capture.Job{
			Identity: d.Identity,
			Zone:     zone,
			Crop:     crop,
			At:       at,
		})
	}
}

// ProcessFramePayload is the ingestion path for an out-of-process detector:
// one payload per frame, each plate carrying its crop and, optionally, the
// character detections the detector already computed.
func (s *PipelineService) ProcessFramePayload(ctx context.Context, payload plate.FramePayload) (*plate.FrameResult, error) {
	if payload.FrameTime.IsZero() {
		return nil, fmt.Errorf("%w: frame_time is required", ErrInvalidInput)
	}

	result := &plate.FrameResult{}
	for i, p := range payload.Plates {
		if len(p.CropJPEG) == 0 {
			return nil, fmt.Errorf("%w: plate %d has no crop", ErrInvalidInput, i)
		}
		zone := s.zones.Classify(p.Box.Center())
		if zone == "" {
			result.OutsideZones++
			continue
		}
		crop, err := imaging.Decode(bytes.NewReader(p.CropJPEG))
		if err != nil {
			return nil, fmt.Errorf("%w: plate %d crop: %v", ErrInvalidInput, i, err)
		}
		if s.pipeline.Submit(capture.Job{
			Identity: p.Identity,
			Zone:     zone,
			Crop:     crop,
			Chars:    p.Chars,
			At:       payload.FrameTime,
		}) {
			result.Accepted++
		} else {
			result.Rejected++
		}
	}

	s.log.Debug().
		Int("accepted", result.Accepted).
		Int("rejected", result.Rejected).
		Int("outside", result.OutsideZones).
		Time("frame_time", payload.FrameTime).
		Msg("processed frame payload")
	return result, nil
}

// ResetSource discards in-flight session and cooldown state, e.g. when the
// video source loops back to the start.
func (s *PipelineService) ResetSource() {
	s.agg.Reset()
	s.pipeline.ResetCooldowns()
	s.log.Info().Msg("source reset, session and cooldowns cleared")
}

// Stats reports the pipeline's soft-error counters.
type Stats struct {
	Dropped          uint64 `json:"dropped"`
	Suppressed       uint64 `json:"suppressed"`
	Processed        uint64 `json:"processed"`
	PersistedDropped uint64 `json:"persist_dropped"`
}

func (s *PipelineService) Stats() Stats {
	return Stats{
		Dropped:          s.pipeline.Dropped(),
		Suppressed:       s.pipeline.Suppressed(),
		Processed:        s.pipeline.Processed(),
		PersistedDropped: s.writer.Dropped(),
	}
}

// FindEvents queries persisted read events with optional plate and time
// filters.
func (s *PipelineService) FindEvents(ctx context.Context, plateQuery *string, from, to *string, limit, offset int) ([]EventInfo, error) {
	var normalizedPlate *string
	if plateQuery != nil {
		normalized := utils.NormalizePlate(*plateQuery)
		if normalized != "" {
			normalizedPlate = &normalized
		}
	}

	var fromTime, toTime *time.Time
	if from != nil && *from != "" {
		t, err := time.Parse(time.RFC3339, *from)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid from time format", ErrInvalidInput)
		}
		fromTime = &t
	}
	if to != nil && *to != "" {
		t, err := time.Parse(time.RFC3339, *to)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid to time format", ErrInvalidInput)
		}
		toTime = &t
	}

	if limit <= 0 {
		limit = 50
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	events, err := s.repo.FindReadEvents(ctx, normalizedPlate, fromTime, toTime, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to find read events: %w", err)
	}

	result := make([]EventInfo, 0, len(events))
	for _, e := range events {
		info := EventInfo{
			ID:              e.ID,
			SessionID:       e.SessionID,
			Plate:           e.Plate,
			NormalizedPlate: e.NormalizedPlate,
			Direction:       e.Direction,
			FirstText:       e.FirstText,
			LastText:        e.LastText,
			EventTime:       e.EventTime,
		}
		if len(e.Reads) > 0 {
			_ = json.Unmarshal(e.Reads, &info.Reads)
		}
		result = append(result, info)
	}
	return result, nil
}

// LastRead returns the event time of the most recent persisted read for a
// plate, or nil when the plate has never been seen.
func (s *PipelineService) LastRead(ctx context.Context, plateQuery string) (*time.Time, error) {
	normalized := utils.NormalizePlate(plateQuery)
	if normalized == "" {
		return nil, fmt.Errorf("%w: plate is required", ErrInvalidInput)
	}
	at, err := s.repo.GetLastReadTimeForPlate(ctx, normalized)
	if err != nil {
		return nil, fmt.Errorf("failed to look up last read: %w", err)
	}
	if at == nil {
		return nil, fmt.Errorf("%w: no reads for plate", ErrNotFound)
	}
	return at, nil
}

// RunRetention prunes read events older than the retention window once a day
// until ctx is cancelled.
func (s *PipelineService) RunRetention(ctx context.Context, days int) {
	if days <= 0 {
		return
	}
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()

	for {
		deleted, err := s.repo.DeleteOldEvents(ctx, days)
		if err != nil {
			s.log.Error().Err(err).Msg("retention sweep failed")
		} else if deleted > 0 {
			s.log.Info().Int64("deleted", deleted).Int("days", days).Msg("pruned old read events")
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

type EventInfo struct {
	ID              int64     `json:"id"`
	SessionID       uuid.UUID `json:"session_id"`
	Plate           string    `json:"plate"`
	NormalizedPlate string    `json:"normalized_plate"`
	Direction       string    `json:"direction"`
	FirstText       string    `json:"first_text"`
	LastText        string    `json:"last_text"`
	Reads           []string  `json:"reads,omitempty"`
	EventTime       time.Time `json:"event_time"`
}
