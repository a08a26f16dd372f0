package processor

import (
	"testing"

	"github.com/nci/gbathy/utils"
)

// landComposite has a land pixel (mndwi = -0.1) followed by a water
// pixel (mndwi = 0.5).
func landComposite(t *testing.T) *YearlyComposite {
	names := utils.CanonicalBands
	img := testImage("a", date(2004, 1, 1), names,
		[]float32{5, 5},
		[]float32{9, 30},
		[]float32{7, 7},
		[]float32{6, 6},
		[]float32{11, 10},
		[]float32{3, 3},
	)
	comp, err := TemporalCompositor{Canonical: names}.Composite(2004, []*RasterImage{img})
	if err != nil {
		t.Fatal(err)
	}
	return comp
}

func testLandMask(t *testing.T, policy LandPolicy) LandMaskStage {
	m, err := NewLandMaskStage(policy, utils.CanonicalBands)
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func TestMNDWI(t *testing.T) {
	if got := MNDWI(9, 11); got > -0.1+1e-12 || got < -0.1-1e-12 {
		t.Errorf("expected -0.1, got %v", got)
	}
}

func TestLandZeroSubstitute(t *testing.T) {
	comp := landComposite(t)
	out, err := testLandMask(t, LandZeroSubstitute).Apply(comp)
	if err != nil {
		t.Fatal(err)
	}

	if !out.Land[0] || out.Land[1] {
		t.Fatalf("unexpected land flags %v", out.Land)
	}
	for _, b := range out.Bands {
		if b.Data[0] != 0 || !b.Valid[0] {
			t.Errorf("band %s land pixel: got %v valid=%v, expected a valid 0", b.Name, b.Data[0], b.Valid[0])
		}
	}
	b2, _ := out.Band("B2")
	if b2.Data[1] != 30 {
		t.Errorf("water pixel changed to %v", b2.Data[1])
	}

	src, _ := comp.Band("B2")
	if src.Data[0] != 9 {
		t.Errorf("land mask modified its input")
	}
}

func TestLandMaskPolicy(t *testing.T) {
	out, err := testLandMask(t, LandMask).Apply(landComposite(t))
	if err != nil {
		t.Fatal(err)
	}
	for _, b := range out.Bands {
		if b.Valid[0] {
			t.Errorf("band %s land pixel should be invalid", b.Name)
		}
		if !b.Valid[1] {
			t.Errorf("band %s water pixel should stay valid", b.Name)
		}
	}
	if out.LandPolicy != LandMask {
		t.Errorf("expected the mask policy to be recorded, got %v", out.LandPolicy)
	}
}

func TestParseLandPolicy(t *testing.T) {
	p, err := ParseLandPolicy("mask")
	if err != nil || p != LandMask {
		t.Errorf("got %v, %v", p, err)
	}
	if _, err := ParseLandPolicy("drop"); err == nil {
		t.Errorf("expected an error for an unknown policy")
	}
}

func TestNewLandMaskStageCanonical(t *testing.T) {
	m, err := NewLandMaskStage(LandMask, []string{"blue", "green", "red", "nir", "swir1", "swir2"})
	if err != nil {
		t.Fatal(err)
	}
	if m.Green != "green" || m.Swir != "swir1" {
		t.Errorf("expected green/swir1, got %s/%s", m.Green, m.Swir)
	}
	if _, err := NewLandMaskStage(LandMask, nil); err == nil {
		t.Error("expected an error for an empty schema")
	}
}
