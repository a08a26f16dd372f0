package export

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/nci/gbathy/processor"
	"github.com/vmihailenco/msgpack/v5"
)

const BundleName = "depth_series.msgpack"

// YearRecord is one year of a depth series bundle. Depth holds NoData
// where the pixel has no valid depth.
type YearRecord struct {
	Year       int                     `msgpack:"year"`
	Meta       processor.CompositeMeta `msgpack:"meta"`
	Properties map[string]string       `msgpack:"properties"`
	Depth      []float32               `msgpack:"depth"`
	LandPixels int                     `msgpack:"land_pixels"`
	Degenerate int                     `msgpack:"degenerate"`
}

// Bundle is the whole year series of a run on a single grid.
type Bundle struct {
	CRS          string        `msgpack:"crs"`
	GeoTransform []float64     `msgpack:"geotransform"`
	Width        int           `msgpack:"width"`
	Height       int           `msgpack:"height"`
	NoData       float64       `msgpack:"nodata"`
	Years        []*YearRecord `msgpack:"years"`
}

// NewBundle collects series, which must share one grid.
func NewBundle(series []*processor.DepthMap) (*Bundle, error) {
	b := &Bundle{NoData: NoData}
	for i, d := range series {
		depth := d.Depth()
		if depth == nil {
			return nil, fmt.Errorf("year %d has no depth band", d.Year)
		}
		if i == 0 {
			b.CRS, b.GeoTransform, b.Width, b.Height = d.CRS, d.GeoTransform, d.Width, d.Height
		} else if !d.Grid.Equal(series[0].Grid) {
			return nil, fmt.Errorf("%w: year %d", processor.ErrGridMismatch, d.Year)
		}

		rec := &YearRecord{
			Year:       d.Year,
			Meta:       d.CompositeMeta,
			Properties: d.Properties,
			Depth:      make([]float32, len(depth.Data)),
			Degenerate: d.Degenerate,
		}
		for j, v := range depth.Data {
			if depth.Valid[j] {
				rec.Depth[j] = v
			} else {
				rec.Depth[j] = NoData
			}
		}
		for _, land := range d.Land {
			if land {
				rec.LandPixels++
			}
		}
		b.Years = append(b.Years, rec)
	}
	return b, nil
}

func (b *Bundle) Encode(w io.Writer) error {
	bw := bufio.NewWriter(w)
	if err := msgpack.NewEncoder(bw).Encode(b); err != nil {
		return err
	}
	return bw.Flush()
}

func DecodeBundle(r io.Reader) (*Bundle, error) {
	b := new(Bundle)
	if err := msgpack.NewDecoder(bufio.NewReader(r)).Decode(b); err != nil {
		return nil, err
	}
	return b, nil
}

func ReadBundle(path string) (*Bundle, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return DecodeBundle(f)
}

func writeBundle(path string, series []*processor.DepthMap) error {
	b, err := NewBundle(series)
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := b.Encode(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
