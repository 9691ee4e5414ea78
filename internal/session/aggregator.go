// Package session turns a stream of zone-tagged plate observations into
// finalized read events, deduplicating the repeated sightings of one
// physical crossing.
package session

import (
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"lpr-pipeline/internal/domain/plate"
	"lpr-pipeline/internal/zones"
)

// State of the aggregator.
type State int

const (
	Idle State = iota
	Active
)

// placeholderText stands in for first/last reads that were empty or too
// short to trust.
const placeholderText = "Unknown"

// Config tunes the aggregation policy.
type Config struct {
	// Timeout is the quiet period after the last zone-matched observation
	// that finalizes the session.
	Timeout time.Duration
	// MinReadLen is the rune count a read must exceed to enter the reads
	// list. Shorter reads are noise.
	MinReadLen int
	// MinTextLen is the rune count a read must exceed to be stored as
	// first/last text instead of the placeholder.
	MinTextLen int
	// CompleteLen is the rune count below which the majority winner is
	// considered incomplete and smart fill looks for a longer read.
	CompleteLen int
}

// DefaultConfig matches the reference deployment tuning.
func DefaultConfig() Config {
	return Config{
		Timeout:     2500 * time.Millisecond,
		MinReadLen:  2,
		MinTextLen:  1,
		CompleteLen: 7,
	}
}

// Aggregator is the session state machine. It models a single physical lane:
// exactly one session exists at a time, and all methods must be called from
// the one goroutine that owns the observation stream.
type Aggregator struct {
	cfg Config
	log zerolog.Logger

	state     State
	direction string
	first     plate.Capture
	best      plate.Capture
	bestScore int
	last      plate.Capture
	reads     []string
	lastSeen  time.Time
}

func New(cfg Config, log zerolog.Logger) *Aggregator {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}
	return &Aggregator{cfg: cfg, log: log}
}

// State returns the current state.
func (a *Aggregator) State() State {
	return a.state
}

// Score rates a read for best-capture selection: the rune count, plus a
// bonus of 10 when the read is long enough to plausibly be a complete plate.
func Score(text string) int {
	n := utf8.RuneCountInString(text)
	if n > 4 {
		return n + 10
	}
	return n
}

// Observe feeds one zone-matched observation into the session. Observations
// without a zone must not reach the aggregator; callers gate on zone
// membership.
func (a *Aggregator) Observe(o plate.Observation) {
	textLen := utf8.RuneCountInString(o.Text)
	slotText := o.Text
	if textLen <= a.cfg.MinTextLen {
		slotText = placeholderText
	}

	if a.state == Idle {
		a.state = Active
		a.direction = o.Zone
		a.first = plate.Capture{Image: o.Crop, Text: slotText}
		a.log.Debug().
			Str("zone", o.Zone).
			Str("text", o.Text).
			Msg("session opened")
	}

	a.lastSeen = o.At
	a.last = plate.Capture{Image: o.Crop, Text: slotText}

	if score := Score(o.Text); score > a.bestScore {
		a.best = plate.Capture{Image: o.Crop, Text: o.Text}
		a.bestScore = score
	}

	if textLen > a.cfg.MinReadLen {
		a.reads = append(a.reads, o.Text)
	}
}

// Tick checks the quiet-period timeout and returns the finalized read event
// when the session just closed, or nil. A session whose reads list is empty
// is discarded silently. After finalize the aggregator is Idle again and
// later ticks return nil until a new session opens.
func (a *Aggregator) Tick(now time.Time) *plate.ReadEvent {
	if a.state != Active || now.Sub(a.lastSeen) <= a.cfg.Timeout {
		return nil
	}
	return a.finalize(now)
}

// Flush finalizes the active session immediately, regardless of timeout.
func (a *Aggregator) Flush(now time.Time) *plate.ReadEvent {
	if a.state != Active {
		return nil
	}
	return a.finalize(now)
}

// Reset discards the active session without emitting an event, e.g. when the
// video source loops back to the start.
func (a *Aggregator) Reset() {
	if a.state == Active {
		a.log.Debug().Msg("session reset")
	}
	a.clear()
}

func (a *Aggregator) finalize(now time.Time) *plate.ReadEvent {
	defer a.clear()

	if len(a.reads) == 0 {
		a.log.Debug().Str("zone", a.direction).Msg("session discarded, no usable reads")
		return nil
	}

	winner := smartFill(majority(a.reads), a.reads, a.cfg.CompleteLen)
	label := DirectionLabel(a.direction)

	ev := &plate.ReadEvent{
		ID:        uuid.New(),
		At:        now,
		Plate:     winner,
		Direction: label,
		FirstText: a.first.Text,
		LastText:  a.last.Text,
		Reads:     append([]string(nil), a.reads...),
		First:     a.first,
		Best:      a.best,
		Last:      a.last,
	}

	a.log.Info().
		Str("plate", winner).
		Str("direction", label).
		Int("reads", len(a.reads)).
		Msg("session finalized")
	return ev
}

func (a *Aggregator) clear() {
	a.state = Idle
	a.direction = ""
	a.first = plate.Capture{}
	a.best = plate.Capture{}
	a.bestScore = 0
	a.last = plate.Capture{}
	a.reads = nil
	a.lastSeen = time.Time{}
}

// DirectionLabel maps the zone a session entered through to the event label:
// IN for the entry zone, OUT for the exit zone, "-" in single-zone mode.
func DirectionLabel(zone string) string {
	switch zone {
	case zones.ZoneEntry:
		return plate.DirectionIn
	case zones.ZoneExit:
		return plate.DirectionOut
	default:
		return plate.DirectionNone
	}
}

// majority returns the most frequent read; on a tie the earliest-seen
// candidate wins, so candidates are compared in first-appearance order.
func majority(reads []string) string {
	counts := make(map[string]int, len(reads))
	order := make([]string, 0, len(reads))
	for _, r := range reads {
		if counts[r] == 0 {
			order = append(order, r)
		}
		counts[r]++
	}
	winner := order[0]
	for _, r := range order[1:] {
		if counts[r] > counts[winner] {
			winner = r
		}
	}
	return winner
}

// smartFill prefers a likely-complete read over a merely-frequent short one:
// when the winner is shorter than completeLen runes, the longest read
// replaces it if strictly longer. Among equally long reads the earliest wins.
func smartFill(winner string, reads []string, completeLen int) string {
	if utf8.RuneCountInString(winner) >= completeLen {
		return winner
	}
	longest := winner
	for _, r := range reads {
		if utf8.RuneCountInString(r) > utf8.RuneCountInString(longest) {
			longest = r
		}
	}
	return longest
}
