package processor

import (
	"fmt"
	"time"

	"github.com/nci/gbathy/utils"
)

// BandHarmonizer maps the native bands of one sensor generation onto
// the canonical schema. Native bands missing from Bands are dropped.
type BandHarmonizer struct {
	Canonical []string
	Bands     []string
	Rename    []string
}

func NewBandHarmonizer(canonical, bands, rename []string) (BandHarmonizer, error) {
	if len(bands) != len(rename) {
		return BandHarmonizer{}, fmt.Errorf("%w: %d native bands renamed to %d names", ErrSchemaMismatch, len(bands), len(rename))
	}
	if !equalNames(rename, canonical) {
		return BandHarmonizer{}, fmt.Errorf("%w: rename %v does not produce %v", ErrSchemaMismatch, rename, canonical)
	}
	return BandHarmonizer{Canonical: canonical, Bands: bands, Rename: rename}, nil
}

// Harmonize restricts img to the canonical schema. An image already
// exposing exactly the canonical bands is returned as is, which makes
// Harmonize idempotent.
func (h BandHarmonizer) Harmonize(img *RasterImage) (*RasterImage, error) {
	if equalNames(img.BandNames(), h.Canonical) {
		return img, nil
	}
	return SelectBands(img, h.Bands, h.Rename)
}

// Apply defers harmonisation onto every member of s.
func (h BandHarmonizer) Apply(s *ImageSeries) *HarmonizedSeries {
	canonical := append([]string{}, h.Canonical...)
	out := &ImageSeries{refs: make([]*ImageRef, len(s.refs))}
	for i, ref := range s.refs {
		out.refs[i] = ref.then(canonical, h.Harmonize)
	}
	return &HarmonizedSeries{series: out}
}

// HarmonizedSeries is a series whose members all expose the canonical
// schema. It can only be built by BandHarmonizer.Apply, so MergeSeries
// never sees a non conforming member.
type HarmonizedSeries struct {
	series *ImageSeries
}

func (h *HarmonizedSeries) Series() *ImageSeries {
	return h.series
}

// GenerationSpec is everything the pipeline needs to turn the catalog
// series of one sensor generation into a harmonised series.
type GenerationSpec struct {
	Name       string
	Collection string
	Start, End time.Time
	Mask       BitMaskParams
	Harmonizer BandHarmonizer
}

// Prepare masks then harmonises a catalog series.
func (g GenerationSpec) Prepare(s *ImageSeries) *HarmonizedSeries {
	return g.Harmonizer.Apply(s.FilterDate(g.Start, g.End).Map(g.Mask.Transform()))
}

// GenerationSpecs builds the generation specs of cfg, dropping the
// generations entirely outside the configured years.
func GenerationSpecs(cfg *utils.Config) ([]GenerationSpec, error) {
	var specs []GenerationSpec
	for i := range cfg.Generations {
		gen := &cfg.Generations[i]
		start, end, ok := cfg.GenerationRange(gen)
		if !ok {
			continue
		}
		h, err := NewBandHarmonizer(cfg.CanonicalBands, gen.Bands, gen.Rename)
		if err != nil {
			return nil, fmt.Errorf("generation %s: %w", gen.Name, err)
		}
		specs = append(specs, GenerationSpec{
			Name:       gen.Name,
			Collection: gen.Collection,
			Start:      start,
			End:        end,
			Mask:       MaskParamsFromConfig(gen),
			Harmonizer: h,
		})
	}
	return specs, nil
}

func equalNames(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
