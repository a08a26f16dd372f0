package processor

import (
	"context"
	"errors"
	"testing"

	"github.com/nci/gbathy/utils"
)

var nativeBands = []string{"B1", "B2", "B3", "B4", "B5", "B6", "B7", "pixel_qa"}

func nativeImage(id string) *RasterImage {
	values := make([][]float32, len(nativeBands))
	for i := range values {
		values[i] = []float32{float32(i + 1), float32(10 * (i + 1))}
	}
	return testImage(id, date(2010, 6, 1), nativeBands, values...)
}

func TestHarmonizeOlderGeneration(t *testing.T) {
	h, err := NewBandHarmonizer(utils.CanonicalBands, utils.CanonicalBands, utils.CanonicalBands)
	if err != nil {
		t.Fatal(err)
	}

	out, err := h.Harmonize(nativeImage("LE07_1"))
	if err != nil {
		t.Fatal(err)
	}
	if !equalNames(out.BandNames(), utils.CanonicalBands) {
		t.Errorf("expected %v, got %v", utils.CanonicalBands, out.BandNames())
	}
}

func TestHarmonizeNewerGeneration(t *testing.T) {
	h, err := NewBandHarmonizer(utils.CanonicalBands, []string{"B2", "B3", "B4", "B5", "B6", "B7"}, utils.CanonicalBands)
	if err != nil {
		t.Fatal(err)
	}

	out, err := h.Harmonize(nativeImage("LC08_1"))
	if err != nil {
		t.Fatal(err)
	}
	if len(out.Bands) != 6 {
		t.Fatalf("expected 6 bands, got %d", len(out.Bands))
	}
	b1, _ := out.Band("B1")
	if b1.Data[0] != 2 {
		t.Errorf("B1 should carry native B2, got %v", b1.Data[0])
	}
	b6, _ := out.Band("B6")
	if b6.Data[1] != 70 {
		t.Errorf("B6 should carry native B7, got %v", b6.Data[1])
	}

	again, err := h.Harmonize(out)
	if err != nil {
		t.Fatal(err)
	}
	if again != out {
		t.Errorf("harmonising a canonical image must be a no-op")
	}
}

func TestHarmonizerSchema(t *testing.T) {
	_, err := NewBandHarmonizer(utils.CanonicalBands, []string{"B2", "B3"}, []string{"B1"})
	if !errors.Is(err, ErrSchemaMismatch) {
		t.Errorf("expected ErrSchemaMismatch, got %v", err)
	}
	_, err = NewBandHarmonizer(utils.CanonicalBands, []string{"B2", "B3"}, []string{"B1", "B2"})
	if !errors.Is(err, ErrSchemaMismatch) {
		t.Errorf("expected ErrSchemaMismatch, got %v", err)
	}
}

func TestHarmonizedSeriesMissingBand(t *testing.T) {
	h, _ := NewBandHarmonizer(utils.CanonicalBands, []string{"B2", "B3", "B4", "B5", "B6", "B9"}, utils.CanonicalBands)
	hs := h.Apply(NewImageSeries(testRef(nativeImage("LC08_1"), nil)))

	refs := hs.Series().Refs()
	if !equalNames(refs[0].BandNames, utils.CanonicalBands) {
		t.Errorf("header should expose the canonical schema, got %v", refs[0].BandNames)
	}
	_, err := hs.Series().Materialize(context.Background())
	if !errors.Is(err, ErrBandNotFound) {
		t.Errorf("expected ErrBandNotFound, got %v", err)
	}
}

func TestGenerationSpecs(t *testing.T) {
	cfg := utils.DefaultConfig()
	cfg.StartYear = 2000
	cfg.FinalYear = 2014

	specs, err := GenerationSpecs(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if len(specs) != 2 || specs[0].Name != "LE07" || specs[1].Name != "LC08" {
		t.Fatalf("unexpected generations %+v", specs)
	}
	if specs[0].Start != date(2000, 1, 1) {
		t.Errorf("LE07 start should be clipped to 2000-01-01, got %v", specs[0].Start)
	}
	if specs[0].Mask.ConfidenceBit != 7 || !specs[0].Mask.EdgeIntersection {
		t.Errorf("LE07 should use the older generation mask, got %+v", specs[0].Mask)
	}
	if specs[1].Mask.ConfidenceBit != -1 {
		t.Errorf("LC08 should not test cloud confidence, got %+v", specs[1].Mask)
	}
}
