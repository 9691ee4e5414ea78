package plate

import (
	"image"
	"time"

	"github.com/google/uuid"
)

// Point is a pixel coordinate in frame space.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Box is an axis-aligned bounding box in frame coordinates.
type Box struct {
	X1 int `json:"x1"`
	Y1 int `json:"y1"`
	X2 int `json:"x2"`
	Y2 int `json:"y2"`
}

func (b Box) Center() Point {
	return Point{X: (b.X1 + b.X2) / 2, Y: (b.Y1 + b.Y2) / 2}
}

func (b Box) Height() int {
	return b.Y2 - b.Y1
}

// CharDetection is the raw output of the external character detector for one
// glyph inside a plate crop. Confidence filtering happens before detections
// are turned into observations.
type CharDetection struct {
	Box        Box     `json:"box"`
	Glyph      string  `json:"glyph"`
	Confidence float64 `json:"confidence"`
}

// CharObservation is a single accepted glyph observation inside one plate
// crop. Observations are ephemeral: produced per crop, consumed immediately
// by text reconstruction, never persisted.
type CharObservation struct {
	CX     float64
	CY     float64
	Glyph  string
	Height float64
}

// Detection is one plate bounding box reported by the external detector for
// one frame. Identity is the detector's track id when tracking is available,
// empty otherwise.
type Detection struct {
	Box        Box     `json:"box"`
	Identity   string  `json:"identity,omitempty"`
	Confidence float64 `json:"confidence"`
}

// Observation is one zone-tagged, text-tagged sighting of a plate, produced
// by the capture pipeline and consumed by the session aggregator. Zone is
// empty when the plate center fell outside every configured zone.
type Observation struct {
	At       time.Time
	Zone     string
	Text     string
	Identity string
	Crop     image.Image
}

// FramePlate is one detected plate inside an ingested frame payload: the
// box in frame coordinates, the crop cut at full source resolution, and
// optionally the character detections the detector already computed.
type FramePlate struct {
	Box        Box             `json:"box"`
	Identity   string          `json:"identity,omitempty"`
	Confidence float64         `json:"confidence"`
	CropJPEG   []byte          `json:"crop_jpeg"`
	Chars      []CharDetection `json:"chars,omitempty"`
}

// FramePayload is everything an external detector reports for one frame.
type FramePayload struct {
	FrameTime time.Time    `json:"frame_time"`
	Plates    []FramePlate `json:"plates"`
}

// FrameResult summarizes how an ingested frame was dispatched.
type FrameResult struct {
	Accepted     int `json:"accepted"`
	Rejected     int `json:"rejected"`
	OutsideZones int `json:"outside_zones"`
}

// Capture is one retained crop with the text read from it.
type Capture struct {
	Image image.Image
	Text  string
}

// Slot names the three capture slots retained for a session.
type Slot string

const (
	SlotFirst Slot = "First"
	SlotBest  Slot = "Best"
	SlotLast  Slot = "Last"
)

// Direction labels for a finalized read event.
const (
	DirectionIn   = "IN"
	DirectionOut  = "OUT"
	DirectionNone = "-"
)

// SlotCapture pairs a capture with the slot it was retained under.
type SlotCapture struct {
	Slot    Slot
	Capture Capture
}

// ReadEvent is one finalized, deduplicated plate read. Immutable once
// constructed; the capture images are snapshots owned by the event, never
// shared with live session state.
type ReadEvent struct {
	ID        uuid.UUID
	At        time.Time
	Plate     string
	Direction string
	FirstText string
	LastText  string
	Reads     []string
	First     Capture
	Best      Capture
	Last      Capture
}

// Date returns the event date formatted the way the sink persists it.
func (e *ReadEvent) Date() string {
	return e.At.Format("2006-01-02")
}

// Time returns the event wall-clock time formatted for persistence. Dashes
// instead of colons keep the value usable inside file names.
func (e *ReadEvent) Time() string {
	return e.At.Format("15-04-05")
}

// Captures returns the retained slots in persistence order. Slots with a nil
// image are still returned; sinks skip them.
func (e *ReadEvent) Captures() []SlotCapture {
	return []SlotCapture{
		{SlotFirst, e.First},
		{SlotBest, e.Best},
		{SlotLast, e.Last},
	}
}
