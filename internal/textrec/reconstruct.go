// Package textrec rebuilds reading-order plate text from an unordered set of
// character observations.
package textrec

import (
	"math"
	"sort"
	"strings"

	"lpr-pipeline/internal/domain/plate"
)

// minAvgHeight is the floor applied to the mean character height so that
// degenerate zero-height observations do not collapse the line tolerance to
// zero.
const minAvgHeight = 1.0

// Params controls line grouping and detection filtering.
//
// When AbsTolerance is positive it is used as a fixed pixel distance for line
// grouping; otherwise the distance is LineTolerance times the mean observed
// character height. The relative form is the default; the absolute form
// exists because deployments with a fixed camera geometry tune it in pixels.
type Params struct {
	LineTolerance float64
	AbsTolerance  float64
	MinConfidence float64
}

// DefaultParams match the tuning of the reference deployment.
func DefaultParams() Params {
	return Params{LineTolerance: 0.6, MinConfidence: 0.5}
}

// Reconstruct orders observations into lines and returns the concatenated
// text: top line first, left to right within a line, no separators.
//
// Grouping is chain linkage: a new observation joins the current line when
// its vertical center is strictly within the tolerance of the previous
// member's vertical center, so gradual vertical drift stays on one line. An
// observation exactly at the tolerance starts a new line. Ties in vertical
// or horizontal position keep original detection order (stable sorts).
func (p Params) Reconstruct(obs []plate.CharObservation) string {
	if len(obs) == 0 {
		return ""
	}

	var sum float64
	for _, o := range obs {
		sum += o.Height
	}
	avgHeight := sum / float64(len(obs))
	if avgHeight < minAvgHeight {
		avgHeight = minAvgHeight
	}
	tolerance := p.LineTolerance * avgHeight
	if p.AbsTolerance > 0 {
		tolerance = p.AbsTolerance
	}

	sorted := make([]plate.CharObservation, len(obs))
	copy(sorted, obs)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CY < sorted[j].CY
	})

	var lines [][]plate.CharObservation
	line := []plate.CharObservation{sorted[0]}
	for _, o := range sorted[1:] {
		if math.Abs(o.CY-line[len(line)-1].CY) < tolerance {
			line = append(line, o)
		} else {
			lines = append(lines, line)
			line = []plate.CharObservation{o}
		}
	}
	lines = append(lines, line)

	var b strings.Builder
	for _, line := range lines {
		sort.SliceStable(line, func(i, j int) bool {
			return line[i].CX < line[j].CX
		})
		for _, o := range line {
			b.WriteString(o.Glyph)
		}
	}
	return b.String()
}

// Reconstruct applies the default parameters.
func Reconstruct(obs []plate.CharObservation) string {
	return DefaultParams().Reconstruct(obs)
}

// FilterDetections drops raw character detections below the confidence
// threshold and converts the survivors to observations, applying the glyph
// alias table (raw model class name to display glyph) when one is supplied.
// Order is preserved so the reconstruction tie-break stays deterministic.
func (p Params) FilterDetections(dets []plate.CharDetection, aliases map[string]string) []plate.CharObservation {
	obs := make([]plate.CharObservation, 0, len(dets))
	for _, d := range dets {
		if d.Confidence < p.MinConfidence {
			continue
		}
		glyph := d.Glyph
		if mapped, ok := aliases[glyph]; ok {
			glyph = mapped
		}
		obs = append(obs, plate.CharObservation{
			CX:     float64(d.Box.X1+d.Box.X2) / 2,
			CY:     float64(d.Box.Y1+d.Box.Y2) / 2,
			Glyph:  glyph,
			Height: float64(d.Box.Y2 - d.Box.Y1),
		})
	}
	return obs
}
