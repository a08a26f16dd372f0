package processor

import (
	"errors"
	"math"
	"testing"
)

func TestMedian(t *testing.T) {
	tests := []struct {
		samples  []float64
		expected float64
	}{
		{[]float64{2, 4, 6}, 4},
		{[]float64{6, 2, 4}, 4},
		{[]float64{5}, 5},
		{[]float64{4, 1, 3, 2}, 2.5},
		{[]float64{7, 7}, 7},
	}
	for _, tc := range tests {
		if got := Median(append([]float64{}, tc.samples...)); got != tc.expected {
			t.Errorf("median of %v: got %v, expected %v", tc.samples, got, tc.expected)
		}
	}
	if !math.IsNaN(Median(nil)) {
		t.Errorf("median of nothing should be NaN")
	}
}

func TestComposite(t *testing.T) {
	names := []string{"B1", "B2"}
	imgs := []*RasterImage{
		testImage("a", date(2003, 1, 1), names, []float32{2, 1}, []float32{0, 0}),
		testImage("b", date(2003, 2, 1), names, []float32{4, 1}, []float32{0, 0}),
		testImage("c", date(2003, 3, 1), names, []float32{6, 1}, []float32{0, 0}),
	}
	for _, img := range imgs {
		b1, _ := img.Band("B1")
		b1.Valid[1] = false
	}

	comp, err := TemporalCompositor{Canonical: names}.Composite(2003, imgs)
	if err != nil {
		t.Fatal(err)
	}
	b1, _ := comp.Band("B1")
	if !b1.Valid[0] || b1.Data[0] != 4 {
		t.Errorf("expected median 4, got %v (valid %v)", b1.Data[0], b1.Valid[0])
	}
	if b1.Valid[1] {
		t.Errorf("pixel without valid contribution must stay invalid")
	}
	if comp.ImageCount != 3 || comp.BandCount != 2 || len(comp.ImageIDs) != 3 {
		t.Errorf("unexpected provenance %+v", comp.CompositeMeta)
	}
}

func TestCompositeEmptyYear(t *testing.T) {
	comp, err := TemporalCompositor{Canonical: []string{"B1"}}.Composite(1995, nil)
	if err != nil {
		t.Fatal(err)
	}
	if comp.BandCount != 0 || len(comp.Bands) != 0 || comp.ImageIDs == nil {
		t.Errorf("unexpected empty composite %+v", comp.CompositeMeta)
	}
}

func TestCompositeGridMismatch(t *testing.T) {
	names := []string{"B1"}
	a := testImage("a", date(2003, 1, 1), names, []float32{1, 2})
	b := testImage("b", date(2003, 1, 2), names, []float32{1, 2, 3})
	_, err := TemporalCompositor{Canonical: names}.Composite(2003, []*RasterImage{a, b})
	if !errors.Is(err, ErrGridMismatch) {
		t.Errorf("expected ErrGridMismatch, got %v", err)
	}
}
