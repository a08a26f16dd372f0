package processor

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// TemporalCompositor reduces the images of one year to their per band,
// per pixel median.
type TemporalCompositor struct {
	Canonical []string
}

// Composite builds the composite of year from images. Pixels without
// any valid contribution stay invalid. With no image at all the
// composite has no band and a zero BandCount.
func (c TemporalCompositor) Composite(year int, images []*RasterImage) (*YearlyComposite, error) {
	meta := CompositeMeta{Year: year, ImageIDs: []string{}}
	if len(images) == 0 {
		return &YearlyComposite{
			RasterImage:   &RasterImage{ID: compositeID(year), Properties: map[string]string{}},
			CompositeMeta: meta,
		}, nil
	}

	grid := images[0].Grid
	stack := make([][]*Band, len(c.Canonical))
	for _, img := range images {
		if !img.Grid.Equal(grid) {
			return nil, fmt.Errorf("%w: %s is %dx%d, expected %dx%d", ErrGridMismatch, img.ID, img.Width, img.Height, grid.Width, grid.Height)
		}
		for ib, name := range c.Canonical {
			b, err := img.Band(name)
			if err != nil {
				return nil, fmt.Errorf("composite %d: %w", year, err)
			}
			stack[ib] = append(stack[ib], b)
		}
		meta.ImageIDs = append(meta.ImageIDs, img.ID)
	}
	meta.ImageCount = len(images)
	meta.BandCount = len(c.Canonical)

	size := grid.Size()
	bands := make([]*Band, len(c.Canonical))
	samples := make([]float64, 0, len(images))
	for ib, name := range c.Canonical {
		out := NewBand(name, size)
		for i := 0; i < size; i++ {
			samples = samples[:0]
			for _, b := range stack[ib] {
				if b.Valid[i] {
					samples = append(samples, float64(b.Data[i]))
				}
			}
			if len(samples) == 0 {
				continue
			}
			out.Data[i] = float32(Median(samples))
			out.Valid[i] = true
		}
		bands[ib] = out
	}

	return &YearlyComposite{
		RasterImage: &RasterImage{
			Grid:       grid,
			ID:         compositeID(year),
			Bands:      bands,
			Properties: map[string]string{"year": fmt.Sprint(year)},
		},
		CompositeMeta: meta,
	}, nil
}

// Median sorts samples in place and returns their median, the mean of
// the two central values for an even count. NaN for no sample.
func Median(samples []float64) float64 {
	n := len(samples)
	if n == 0 {
		return math.NaN()
	}
	sort.Float64s(samples)
	m := stat.Quantile(0.5, stat.Empirical, samples, nil)
	if n%2 == 0 {
		m = (m + samples[n/2]) / 2
	}
	return m
}

func compositeID(year int) string {
	return fmt.Sprintf("composite_%d", year)
}
