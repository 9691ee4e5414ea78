package session

import (
	"image"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"lpr-pipeline/internal/domain/plate"
	"lpr-pipeline/internal/zones"
)

func newTestAggregator() *Aggregator {
	return New(DefaultConfig(), zerolog.Nop())
}

func observe(a *Aggregator, at time.Time, zone, text string) {
	a.Observe(plate.Observation{
		At:   at,
		Zone: zone,
		Text: text,
		Crop: image.NewRGBA(image.Rect(0, 0, 10, 10)),
	})
}

func TestScore(t *testing.T) {
	cases := []struct {
		text string
		want int
	}{
		{"", 0},
		{"AB1", 3},
		{"AB12", 4},
		{"AB123", 15},
		{"กก1234", 16},
	}
	for _, c := range cases {
		if got := Score(c.text); got != c.want {
			t.Errorf("Score(%q) = %d, want %d", c.text, got, c.want)
		}
	}
}

func TestIdleToActive(t *testing.T) {
	a := newTestAggregator()
	if a.State() != Idle {
		t.Fatal("aggregator must start Idle")
	}
	observe(a, time.Now(), zones.ZoneSingle, "AB123")
	if a.State() != Active {
		t.Error("zone-matched observation must open a session")
	}
}

func TestEmptyReadsDiscarded(t *testing.T) {
	a := newTestAggregator()
	t0 := time.Now()
	// Short texts never enter the reads list.
	observe(a, t0, zones.ZoneSingle, "A")
	observe(a, t0.Add(100*time.Millisecond), zones.ZoneSingle, "")

	ev := a.Tick(t0.Add(5 * time.Second))
	if ev != nil {
		t.Errorf("empty reads list must be discarded, got event %+v", ev)
	}
	if a.State() != Idle {
		t.Error("discard must reset to Idle")
	}
}

func TestMajorityVote(t *testing.T) {
	a := newTestAggregator()
	t0 := time.Now()
	for i, text := range []string{"กก1234", "กก1234", "บบ999"} {
		observe(a, t0.Add(time.Duration(i)*100*time.Millisecond), zones.ZoneSingle, text)
	}

	ev := a.Tick(t0.Add(10 * time.Second))
	if ev == nil {
		t.Fatal("expected an event")
	}
	if ev.Plate != "กก1234" {
		t.Errorf("Plate = %q, want กก1234", ev.Plate)
	}
}

func TestMajorityTieKeepsEarliest(t *testing.T) {
	cases := []struct {
		reads []string
		want  string
	}{
		{[]string{"AAA1", "BBB2", "AAA1", "BBB2"}, "AAA1"},
		// The later candidate reaches the maximum count first; the
		// earlier-seen one must still win the tie.
		{[]string{"AAA1", "BBB2", "BBB2", "AAA1"}, "AAA1"},
		{[]string{"BBB2", "AAA1", "AAA1", "BBB2"}, "BBB2"},
		{[]string{"AAA1", "BBB2", "BBB2"}, "BBB2"},
	}
	for _, c := range cases {
		if got := majority(c.reads); got != c.want {
			t.Errorf("majority(%v) = %q, want %q", c.reads, got, c.want)
		}
	}
}

func TestSmartFill(t *testing.T) {
	a := newTestAggregator()
	t0 := time.Now()
	for i, text := range []string{"AB1", "AB1", "AB1234X"} {
		observe(a, t0.Add(time.Duration(i)*100*time.Millisecond), zones.ZoneSingle, text)
	}

	ev := a.Tick(t0.Add(10 * time.Second))
	if ev == nil {
		t.Fatal("expected an event")
	}
	if ev.Plate != "AB1234X" {
		t.Errorf("Plate = %q, want AB1234X (smart fill)", ev.Plate)
	}
}

func TestSmartFillKeepsCompleteWinner(t *testing.T) {
	// Winner already at the completeness threshold: no replacement even
	// though a longer read exists.
	if got := smartFill("AB1234X", []string{"AB1234X", "AB1234XY"}, 7); got != "AB1234X" {
		t.Errorf("smartFill = %q, want AB1234X", got)
	}
	// Equal length is not strictly longer.
	if got := smartFill("AB1", []string{"AB1", "XY2"}, 7); got != "AB1" {
		t.Errorf("smartFill = %q, want AB1", got)
	}
}

func TestFinalizeExactlyOnce(t *testing.T) {
	a := newTestAggregator()
	t0 := time.Now()
	for i := 0; i < 5; i++ {
		observe(a, t0.Add(time.Duration(i)*200*time.Millisecond), zones.ZoneSingle, "AB1234")
	}
	last := t0.Add(800 * time.Millisecond)

	if ev := a.Tick(last.Add(2 * time.Second)); ev != nil {
		t.Error("quiet period within timeout must not finalize")
	}
	ev := a.Tick(last.Add(3 * time.Second))
	if ev == nil {
		t.Fatal("quiet period beyond timeout must finalize")
	}
	if a.State() != Idle {
		t.Error("finalize must return to Idle")
	}
	for i := 0; i < 3; i++ {
		if extra := a.Tick(last.Add(time.Duration(4+i) * time.Second)); extra != nil {
			t.Fatal("idle ticks must not emit further events")
		}
	}
}

func TestBestCaptureStrictReplacement(t *testing.T) {
	a := newTestAggregator()
	t0 := time.Now()

	firstCrop := image.NewRGBA(image.Rect(0, 0, 1, 1))
	a.Observe(plate.Observation{At: t0, Zone: zones.ZoneSingle, Text: "AB123", Crop: firstCrop})
	// Same score: existing best must be kept.
	a.Observe(plate.Observation{At: t0.Add(time.Second), Zone: zones.ZoneSingle, Text: "XY987", Crop: image.NewRGBA(image.Rect(0, 0, 2, 2))})

	ev := a.Tick(t0.Add(10 * time.Second))
	if ev == nil {
		t.Fatal("expected an event")
	}
	if ev.Best.Text != "AB123" {
		t.Errorf("Best.Text = %q, want AB123 (ties keep existing)", ev.Best.Text)
	}
	if ev.Best.Image != firstCrop {
		t.Error("best capture image must be the first top-scoring crop")
	}
}

func TestFirstAndLastSlots(t *testing.T) {
	a := newTestAggregator()
	t0 := time.Now()
	observe(a, t0, zones.ZoneSingle, "AB1234")
	observe(a, t0.Add(time.Second), zones.ZoneSingle, "AB1235")
	// Last slot updates unconditionally, placeholder for too-short text.
	observe(a, t0.Add(2*time.Second), zones.ZoneSingle, "")

	ev := a.Tick(t0.Add(10 * time.Second))
	if ev == nil {
		t.Fatal("expected an event")
	}
	if ev.FirstText != "AB1234" {
		t.Errorf("FirstText = %q, want AB1234", ev.FirstText)
	}
	if ev.LastText != "Unknown" {
		t.Errorf("LastText = %q, want Unknown", ev.LastText)
	}
}

func TestPlaceholderForShortFirstRead(t *testing.T) {
	a := newTestAggregator()
	t0 := time.Now()
	observe(a, t0, zones.ZoneSingle, "ก")
	observe(a, t0.Add(time.Second), zones.ZoneSingle, "กข1234")

	ev := a.Tick(t0.Add(10 * time.Second))
	if ev == nil {
		t.Fatal("expected an event")
	}
	if ev.FirstText != "Unknown" {
		t.Errorf("FirstText = %q, want Unknown", ev.FirstText)
	}
}

func TestDirectionLabels(t *testing.T) {
	cases := []struct {
		zone string
		want string
	}{
		{zones.ZoneEntry, plate.DirectionIn},
		{zones.ZoneExit, plate.DirectionOut},
		{zones.ZoneSingle, plate.DirectionNone},
	}
	for _, c := range cases {
		a := newTestAggregator()
		t0 := time.Now()
		observe(a, t0, c.zone, "AB1234")
		ev := a.Tick(t0.Add(10 * time.Second))
		if ev == nil {
			t.Fatalf("zone %q: expected an event", c.zone)
		}
		if ev.Direction != c.want {
			t.Errorf("zone %q: Direction = %q, want %q", c.zone, ev.Direction, c.want)
		}
	}
}

func TestResetDiscards(t *testing.T) {
	a := newTestAggregator()
	t0 := time.Now()
	observe(a, t0, zones.ZoneSingle, "AB1234")

	a.Reset()
	if a.State() != Idle {
		t.Error("Reset must return to Idle")
	}
	if ev := a.Tick(t0.Add(10 * time.Second)); ev != nil {
		t.Error("Reset must discard the session without emitting")
	}
}

func TestFlush(t *testing.T) {
	a := newTestAggregator()
	t0 := time.Now()
	observe(a, t0, zones.ZoneSingle, "AB1234")

	ev := a.Flush(t0.Add(time.Millisecond))
	if ev == nil {
		t.Fatal("Flush must finalize the active session")
	}
	if ev.Plate != "AB1234" {
		t.Errorf("Plate = %q, want AB1234", ev.Plate)
	}
	if a.Flush(t0.Add(time.Second)) != nil {
		t.Error("Flush on Idle must return nil")
	}
}

func TestReadsListThreshold(t *testing.T) {
	a := newTestAggregator()
	t0 := time.Now()
	// Two-rune reads are noise; three runes qualify.
	observe(a, t0, zones.ZoneSingle, "AB")
	observe(a, t0.Add(time.Second), zones.ZoneSingle, "AB1")

	ev := a.Tick(t0.Add(10 * time.Second))
	if ev == nil {
		t.Fatal("expected an event")
	}
	if len(ev.Reads) != 1 || ev.Reads[0] != "AB1" {
		t.Errorf("Reads = %v, want [AB1]", ev.Reads)
	}
}
