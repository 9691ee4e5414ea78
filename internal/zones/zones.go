package zones

import (
	"fmt"
	"sync/atomic"

	"lpr-pipeline/internal/domain/plate"
)

// Mode selects which zones participate in classification and in which order.
type Mode string

const (
	ModeSingle Mode = "single"
	ModeDual   Mode = "dual"
)

// Allowed zone names. Classification order is fixed per mode: single mode
// checks only ZoneSingle; dual mode checks ZoneEntry before ZoneExit, which
// is the tie-break when the two polygons overlap.
const (
	ZoneSingle = "single"
	ZoneEntry  = "entry"
	ZoneExit   = "exit"
)

// Polygon is an ordered list of integer frame points. At least three points
// are required. Self-intersecting polygons are accepted; the containment
// test applies even-odd semantics to whatever geometry it is given.
type Polygon []plate.Point

// Contains reports whether p is inside the polygon. Boundary points count as
// inside: a point on an edge or vertex belongs to the zone.
func (poly Polygon) Contains(p plate.Point) bool {
	if len(poly) < 3 {
		return false
	}
	inside := false
	j := len(poly) - 1
	for i := 0; i < len(poly); i++ {
		a, b := poly[j], poly[i]
		if onSegment(a, b, p) {
			return true
		}
		if (b.Y > p.Y) != (a.Y > p.Y) {
			xCross := float64(a.X-b.X)*float64(p.Y-b.Y)/float64(a.Y-b.Y) + float64(b.X)
			if float64(p.X) < xCross {
				inside = !inside
			}
		}
		j = i
	}
	return inside
}

// onSegment reports whether p lies on the closed segment a-b.
func onSegment(a, b, p plate.Point) bool {
	cross := (b.X-a.X)*(p.Y-a.Y) - (b.Y-a.Y)*(p.X-a.X)
	if cross != 0 {
		return false
	}
	return min(a.X, b.X) <= p.X && p.X <= max(a.X, b.X) &&
		min(a.Y, b.Y) <= p.Y && p.Y <= max(a.Y, b.Y)
}

// Set is one immutable zone configuration: a mode plus the polygons for the
// zone names that mode uses. Sets are replaced wholesale, never mutated, so
// classification can read them without locking.
type Set struct {
	Mode     Mode
	Polygons map[string]Polygon
}

// Order returns the zone names checked for this mode, in tie-break order.
func (s *Set) Order() []string {
	if s.Mode == ModeDual {
		return []string{ZoneEntry, ZoneExit}
	}
	return []string{ZoneSingle}
}

// Classify returns the name of the first zone containing p, or "" when the
// point is outside every zone.
func (s *Set) Classify(p plate.Point) string {
	for _, name := range s.Order() {
		if poly, ok := s.Polygons[name]; ok && poly.Contains(p) {
			return name
		}
	}
	return ""
}

// Validate checks the set against the fixed zone-name schema for its mode.
func (s *Set) Validate() error {
	switch s.Mode {
	case ModeSingle, ModeDual:
	default:
		return fmt.Errorf("unknown zone mode %q", s.Mode)
	}
	for _, name := range s.Order() {
		poly, ok := s.Polygons[name]
		if !ok {
			return fmt.Errorf("zone %q missing for mode %q", name, s.Mode)
		}
		if len(poly) < 3 {
			return fmt.Errorf("zone %q needs at least 3 points, got %d", name, len(poly))
		}
	}
	for name := range s.Polygons {
		switch name {
		case ZoneSingle, ZoneEntry, ZoneExit:
		default:
			return fmt.Errorf("unknown zone name %q", name)
		}
	}
	return nil
}

// Store holds the live zone configuration. Reads go through an atomic
// pointer so an external editor can swap geometry while classification is
// running without ever exposing a torn polygon.
type Store struct {
	active atomic.Pointer[Set]
}

// NewStore creates a store seeded with the given set.
func NewStore(set *Set) (*Store, error) {
	if err := set.Validate(); err != nil {
		return nil, err
	}
	st := &Store{}
	st.active.Store(set)
	return st, nil
}

// Active returns the current zone set. The returned set must be treated as
// read-only.
func (st *Store) Active() *Set {
	return st.active.Load()
}

// Swap validates and atomically installs a new zone set.
func (st *Store) Swap(set *Set) error {
	if err := set.Validate(); err != nil {
		return err
	}
	st.active.Store(set)
	return nil
}

// Classify tags a point against the current geometry.
func (st *Store) Classify(p plate.Point) string {
	return st.Active().Classify(p)
}
