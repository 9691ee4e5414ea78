package zones

import (
	"path/filepath"
	"testing"

	"lpr-pipeline/internal/domain/plate"
)

func square(x1, y1, x2, y2 int) Polygon {
	return Polygon{{X: x1, Y: y1}, {X: x2, Y: y1}, {X: x2, Y: y2}, {X: x1, Y: y2}}
}

func TestPolygonContains(t *testing.T) {
	poly := square(100, 100, 200, 200)

	cases := []struct {
		name string
		p    plate.Point
		want bool
	}{
		{"strictly inside", plate.Point{X: 150, Y: 150}, true},
		{"outside", plate.Point{X: 50, Y: 150}, false},
		{"on edge", plate.Point{X: 100, Y: 150}, true},
		{"on vertex", plate.Point{X: 200, Y: 200}, true},
		{"just outside edge", plate.Point{X: 201, Y: 150}, false},
	}
	for _, c := range cases {
		if got := poly.Contains(c.p); got != c.want {
			t.Errorf("%s: Contains(%v) = %v, want %v", c.name, c.p, got, c.want)
		}
	}
}

func TestPolygonContainsNonConvex(t *testing.T) {
	// L-shape: the notch at the top right is outside.
	poly := Polygon{
		{X: 0, Y: 0}, {X: 100, Y: 0}, {X: 100, Y: 50},
		{X: 50, Y: 50}, {X: 50, Y: 100}, {X: 0, Y: 100},
	}
	if !poly.Contains(plate.Point{X: 25, Y: 75}) {
		t.Error("point in the L arm should be inside")
	}
	if poly.Contains(plate.Point{X: 75, Y: 75}) {
		t.Error("point in the notch should be outside")
	}
}

func TestSetClassifySingle(t *testing.T) {
	set := &Set{
		Mode:     ModeSingle,
		Polygons: map[string]Polygon{ZoneSingle: square(0, 0, 100, 100)},
	}
	if got := set.Classify(plate.Point{X: 50, Y: 50}); got != ZoneSingle {
		t.Errorf("Classify inside = %q, want %q", got, ZoneSingle)
	}
	if got := set.Classify(plate.Point{X: 500, Y: 500}); got != "" {
		t.Errorf("Classify outside = %q, want empty", got)
	}
}

func TestSetClassifyDualOrder(t *testing.T) {
	// Overlapping zones: entry wins on overlap.
	set := &Set{
		Mode: ModeDual,
		Polygons: map[string]Polygon{
			ZoneEntry: square(0, 0, 100, 100),
			ZoneExit:  square(50, 0, 150, 100),
		},
	}
	if got := set.Classify(plate.Point{X: 75, Y: 50}); got != ZoneEntry {
		t.Errorf("overlap Classify = %q, want %q", got, ZoneEntry)
	}
	if got := set.Classify(plate.Point{X: 125, Y: 50}); got != ZoneExit {
		t.Errorf("exit-only Classify = %q, want %q", got, ZoneExit)
	}
}

func TestSetValidate(t *testing.T) {
	bad := &Set{Mode: ModeSingle, Polygons: map[string]Polygon{ZoneSingle: {{X: 0, Y: 0}, {X: 1, Y: 1}}}}
	if err := bad.Validate(); err == nil {
		t.Error("expected error for polygon with fewer than 3 points")
	}
	missing := &Set{Mode: ModeDual, Polygons: map[string]Polygon{ZoneEntry: square(0, 0, 10, 10)}}
	if err := missing.Validate(); err == nil {
		t.Error("expected error for missing exit zone in dual mode")
	}
	unknown := &Set{Mode: ModeSingle, Polygons: map[string]Polygon{
		ZoneSingle: square(0, 0, 10, 10),
		"lane3":    square(0, 0, 10, 10),
	}}
	if err := unknown.Validate(); err == nil {
		t.Error("expected error for unknown zone name")
	}
}

func TestStoreSwap(t *testing.T) {
	first := &Set{Mode: ModeSingle, Polygons: map[string]Polygon{ZoneSingle: square(0, 0, 100, 100)}}
	store, err := NewStore(first)
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}

	p := plate.Point{X: 150, Y: 150}
	if got := store.Classify(p); got != "" {
		t.Fatalf("Classify before swap = %q, want empty", got)
	}

	second := &Set{Mode: ModeSingle, Polygons: map[string]Polygon{ZoneSingle: square(100, 100, 200, 200)}}
	if err := store.Swap(second); err != nil {
		t.Fatalf("Swap failed: %v", err)
	}
	if got := store.Classify(p); got != ZoneSingle {
		t.Errorf("Classify after swap = %q, want %q", got, ZoneSingle)
	}

	invalid := &Set{Mode: ModeSingle, Polygons: map[string]Polygon{}}
	if err := store.Swap(invalid); err == nil {
		t.Error("Swap with invalid set should fail")
	}
	if got := store.Classify(p); got != ZoneSingle {
		t.Error("failed swap must leave old geometry active")
	}
}

func TestLoadPresetsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "zones.json")

	presets, store, err := LoadPresets(path, "", "")
	if err != nil {
		t.Fatalf("LoadPresets failed: %v", err)
	}
	active, mode := presets.Active()
	if active != "Default" || mode != ModeSingle {
		t.Errorf("defaults = (%q, %q), want (Default, single)", active, mode)
	}
	if got := store.Classify(plate.Point{X: 300, Y: 300}); got != ZoneSingle {
		t.Errorf("default single zone Classify = %q, want %q", got, ZoneSingle)
	}
}

func TestPresetsApplyAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "zones.json")

	presets, store, err := LoadPresets(path, "", "")
	if err != nil {
		t.Fatalf("LoadPresets failed: %v", err)
	}

	gate := Preset{
		ZoneSingle: {{0, 0}, {50, 0}, {50, 50}, {0, 50}},
		ZoneEntry:  {{0, 0}, {50, 0}, {50, 50}, {0, 50}},
		ZoneExit:   {{60, 0}, {110, 0}, {110, 50}, {60, 50}},
	}
	if err := presets.Apply("Gate", gate, ModeDual); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if got := store.Classify(plate.Point{X: 80, Y: 25}); got != ZoneExit {
		t.Errorf("Classify after apply = %q, want %q", got, ZoneExit)
	}

	reloaded, store2, err := LoadPresets(path, "", "")
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	active, mode := reloaded.Active()
	if active != "Gate" || mode != ModeDual {
		t.Errorf("reloaded active = (%q, %q), want (Gate, dual)", active, mode)
	}
	if got := store2.Classify(plate.Point{X: 80, Y: 25}); got != ZoneExit {
		t.Errorf("reloaded Classify = %q, want %q", got, ZoneExit)
	}
}
