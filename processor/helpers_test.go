package processor

import (
	"context"
	"sync/atomic"
	"time"
)

var testGrid = Grid{CRS: "EPSG:32755", GeoTransform: []float64{500000, 30, 0, 7000000, 0, -30}, Height: 1}

// testImage builds a single row image, every pixel valid.
func testImage(id string, ts time.Time, names []string, values ...[]float32) *RasterImage {
	grid := testGrid
	grid.Width = len(values[0])
	img := &RasterImage{Grid: grid, ID: id, TimeStamp: ts, Properties: map[string]string{}}
	for i, name := range names {
		b := NewBand(name, grid.Width)
		copy(b.Data, values[i])
		for j := range b.Valid {
			b.Valid[j] = true
		}
		img.Bands = append(img.Bands, b)
	}
	return img
}

// testRef wraps img in a deferred reference counting its loads.
func testRef(img *RasterImage, loads *int32) *ImageRef {
	header := ImageHeader{ID: img.ID, Generation: img.Generation, TimeStamp: img.TimeStamp, BandNames: img.BandNames()}
	return NewImageRef(header, func(ctx context.Context) (*RasterImage, error) {
		if loads != nil {
			atomic.AddInt32(loads, 1)
		}
		return img, nil
	})
}

func date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

func fill(v float32, n int) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = v
	}
	return out
}
