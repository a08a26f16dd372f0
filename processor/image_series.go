package processor

import (
	"context"
	"fmt"
	"sort"
	"time"
)

// ImageSeries is an unordered collection of deferred images. Every
// operation returns a new series and leaves the receiver untouched;
// pixels are only computed by Materialize or ImageRef.Load.
type ImageSeries struct {
	refs []*ImageRef
}

func NewImageSeries(refs ...*ImageRef) *ImageSeries {
	return &ImageSeries{refs: append([]*ImageRef{}, refs...)}
}

func (s *ImageSeries) Len() int {
	return len(s.refs)
}

func (s *ImageSeries) Refs() []*ImageRef {
	return append([]*ImageRef{}, s.refs...)
}

func (s *ImageSeries) IDs() []string {
	ids := make([]string, len(s.refs))
	for i, ref := range s.refs {
		ids[i] = ref.ID
	}
	return ids
}

func (s *ImageSeries) filter(keep func(*ImageRef) bool) *ImageSeries {
	out := &ImageSeries{}
	for _, ref := range s.refs {
		if keep(ref) {
			out.refs = append(out.refs, ref)
		}
	}
	return out
}

// FilterDate keeps the images acquired in [start, end], both inclusive.
func (s *ImageSeries) FilterDate(start, end time.Time) *ImageSeries {
	return s.filter(func(ref *ImageRef) bool {
		return !ref.TimeStamp.Before(start) && !ref.TimeStamp.After(end)
	})
}

// FilterYear keeps the images acquired during the calendar year.
func (s *ImageSeries) FilterYear(year int) *ImageSeries {
	return s.filter(func(ref *ImageRef) bool {
		return ref.TimeStamp.UTC().Year() == year
	})
}

// FilterBounds keeps the images whose footprint overlaps bbox
// (xmin, ymin, xmax, ymax). Images without a footprint are kept.
func (s *ImageSeries) FilterBounds(bbox []float64) *ImageSeries {
	if len(bbox) != 4 {
		return s.filter(func(*ImageRef) bool { return true })
	}
	return s.filter(func(ref *ImageRef) bool {
		if len(ref.BBox) != 4 {
			return true
		}
		return BBoxOverlap(ref.BBox, bbox)
	})
}

// Map defers fn onto every member of the series.
func (s *ImageSeries) Map(fn ImageTransform) *ImageSeries {
	out := &ImageSeries{refs: make([]*ImageRef, len(s.refs))}
	for i, ref := range s.refs {
		out.refs[i] = ref.then(nil, fn)
	}
	return out
}

// Select keeps the listed bands, renamed position by position to
// rename. A member lacking one of the bands fails when loaded.
func (s *ImageSeries) Select(bands, rename []string) *ImageSeries {
	if rename == nil {
		rename = bands
	}
	names := append([]string{}, rename...)
	out := &ImageSeries{refs: make([]*ImageRef, len(s.refs))}
	for i, ref := range s.refs {
		out.refs[i] = ref.then(names, func(img *RasterImage) (*RasterImage, error) {
			return SelectBands(img, bands, rename)
		})
	}
	return out
}

// Merge concatenates the series. Duplicated acquisitions are kept.
func (s *ImageSeries) Merge(others ...*ImageSeries) *ImageSeries {
	out := &ImageSeries{refs: append([]*ImageRef{}, s.refs...)}
	for _, o := range others {
		if o == nil {
			continue
		}
		out.refs = append(out.refs, o.refs...)
	}
	return out
}

// Sorted returns the series in acquisition order, ties broken by id.
func (s *ImageSeries) Sorted() *ImageSeries {
	out := NewImageSeries(s.refs...)
	sort.SliceStable(out.refs, func(i, j int) bool {
		ti, tj := out.refs[i].TimeStamp, out.refs[j].TimeStamp
		if ti.Equal(tj) {
			return out.refs[i].ID < out.refs[j].ID
		}
		return ti.Before(tj)
	})
	return out
}

// Materialize loads every member of the series.
func (s *ImageSeries) Materialize(ctx context.Context) ([]*RasterImage, error) {
	images := make([]*RasterImage, 0, len(s.refs))
	for _, ref := range s.refs {
		img, err := ref.Load(ctx)
		if err != nil {
			return nil, fmt.Errorf("materialising %s: %w", ref.ID, err)
		}
		images = append(images, img)
	}
	return images, nil
}

// SelectBands returns a new image holding the named bands of img in
// the given order, renamed to rename.
func SelectBands(img *RasterImage, bands, rename []string) (*RasterImage, error) {
	if len(bands) != len(rename) {
		return nil, fmt.Errorf("%w: selecting %d bands as %d names", ErrSchemaMismatch, len(bands), len(rename))
	}
	out := make([]*Band, len(bands))
	for i, name := range bands {
		b, err := img.Band(name)
		if err != nil {
			return nil, err
		}
		out[i] = b.clone(rename[i])
	}
	return img.derive(out), nil
}

func BBoxOverlap(a, b []float64) bool {
	return a[0] <= b[2] && b[0] <= a[2] && a[1] <= b[3] && b[1] <= a[3]
}
