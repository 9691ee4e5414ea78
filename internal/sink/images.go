package sink

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"

	"lpr-pipeline/internal/domain/plate"
	"lpr-pipeline/internal/utils"
)

// Images writes the first/best/last crops of a read event as JPEGs under a
// date-then-session directory:
//
//	<root>/<date>/<winner>_<date>_<time>[_<direction>]/<text>_<Slot>_<date>_<time>.jpg
//
// Names are sanitized to letters, digits, dash and underscore, with
// "Unknown" as the fallback when sanitization leaves nothing.
type Images struct {
	root string
}

func NewImages(root string) *Images {
	return &Images{root: root}
}

func (s *Images) Persist(ctx context.Context, ev *plate.ReadEvent) error {
	date := ev.Date()
	clock := ev.Time()

	dir := fmt.Sprintf("%s_%s_%s", utils.SanitizeName(ev.Plate), date, clock)
	if ev.Direction != plate.DirectionNone {
		dir += "_" + ev.Direction
	}
	full := filepath.Join(s.root, date, dir)
	if err := os.MkdirAll(full, 0o755); err != nil {
		return fmt.Errorf("create event directory: %w", err)
	}

	for _, sc := range ev.Captures() {
		if sc.Capture.Image == nil {
			continue
		}
		text := sc.Capture.Text
		if sc.Slot == plate.SlotBest {
			// The best file carries the winning text, which smart fill
			// may have replaced after the crop was captured.
			text = ev.Plate
		}
		name := fmt.Sprintf("%s_%s_%s_%s.jpg", utils.SanitizeName(text), sc.Slot, date, clock)
		if err := imaging.Save(sc.Capture.Image, filepath.Join(full, name), imaging.JPEGQuality(90)); err != nil {
			return fmt.Errorf("save %s capture: %w", sc.Slot, err)
		}
	}
	return nil
}
