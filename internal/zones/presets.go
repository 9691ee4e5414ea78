package zones

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"

	"lpr-pipeline/internal/domain/plate"
)

// Preset is the serialized form of one named zone layout: zone name to an
// ordered list of [x, y] pairs.
type Preset map[string][][2]int

// presetFile is the on-disk layout of the preset configuration.
type presetFile struct {
	Active  string            `json:"active"`
	Mode    Mode              `json:"mode"`
	Presets map[string]Preset `json:"presets"`
}

// DefaultZones is the layout used when no preset file exists yet.
var DefaultZones = Preset{
	ZoneSingle: {{200, 200}, {500, 200}, {500, 500}, {200, 500}},
	ZoneEntry:  {{50, 200}, {300, 200}, {300, 500}, {50, 500}},
	ZoneExit:   {{400, 200}, {650, 200}, {650, 500}, {400, 500}},
}

// Presets manages named zone layouts backed by a JSON file and feeds the
// selected layout into a Store. All methods are safe for concurrent use;
// classification never touches the preset lock because the Store swap is
// atomic.
type Presets struct {
	mu    sync.Mutex
	path  string
	data  presetFile
	store *Store
}

// LoadPresets reads the preset file (creating defaults when it is missing or
// unreadable) and activates the named preset in the given mode.
func LoadPresets(path, active string, mode Mode) (*Presets, *Store, error) {
	data := presetFile{
		Active:  active,
		Mode:    mode,
		Presets: map[string]Preset{"Default": DefaultZones},
	}
	if raw, err := os.ReadFile(path); err == nil {
		var onDisk presetFile
		if err := json.Unmarshal(raw, &onDisk); err != nil {
			return nil, nil, fmt.Errorf("parse preset file %s: %w", path, err)
		}
		if len(onDisk.Presets) > 0 {
			data.Presets = onDisk.Presets
		}
		if active == "" && onDisk.Active != "" {
			data.Active = onDisk.Active
		}
		if mode == "" && onDisk.Mode != "" {
			data.Mode = onDisk.Mode
		}
	}
	if data.Active == "" {
		data.Active = "Default"
	}
	if data.Mode == "" {
		data.Mode = ModeSingle
	}

	preset, ok := data.Presets[data.Active]
	if !ok {
		return nil, nil, fmt.Errorf("preset %q not found in %s", data.Active, path)
	}
	set := preset.toSet(data.Mode)
	store, err := NewStore(set)
	if err != nil {
		return nil, nil, err
	}
	return &Presets{path: path, data: data, store: store}, store, nil
}

func (p Preset) toSet(mode Mode) *Set {
	set := &Set{Mode: mode, Polygons: make(map[string]Polygon, len(p))}
	for name, pts := range p {
		poly := make(Polygon, len(pts))
		for i, pt := range pts {
			poly[i] = plate.Point{X: pt[0], Y: pt[1]}
		}
		set.Polygons[name] = poly
	}
	return set
}

// Names lists the stored preset names in a stable order.
func (p *Presets) Names() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	names := make([]string, 0, len(p.data.Presets))
	for name := range p.data.Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Active returns the name of the currently applied preset and its mode.
func (p *Presets) Active() (string, Mode) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.data.Active, p.data.Mode
}

// Get returns a stored preset by name.
func (p *Presets) Get(name string) (Preset, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	preset, ok := p.data.Presets[name]
	return preset, ok
}

// Apply stores the preset under name, validates it, swaps it into the live
// store and persists the preset file. The old geometry stays active when
// validation fails.
func (p *Presets) Apply(name string, preset Preset, mode Mode) error {
	set := preset.toSet(mode)
	if err := set.Validate(); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.store.Swap(set); err != nil {
		return err
	}
	p.data.Presets[name] = preset
	p.data.Active = name
	p.data.Mode = mode
	return p.saveLocked()
}

func (p *Presets) saveLocked() error {
	raw, err := json.MarshalIndent(p.data, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(p.path, raw, 0o644); err != nil {
		return fmt.Errorf("write preset file %s: %w", p.path, err)
	}
	return nil
}
