package catalog

import (
	"context"
	"encoding/binary"
	"fmt"
	"io/ioutil"
	"math"
	"path/filepath"
	"strconv"

	"github.com/nci/gbathy/processor"
)

func dataSize(dataType string) (int, error) {
	switch dataType {
	case "Byte":
		return 1, nil
	case "Int16", "UInt16":
		return 2, nil
	case "Float32":
		return 4, nil
	default:
		return -1, fmt.Errorf("Unsupported raster type %s", dataType)
	}
}

// TargetGrid is the north up grid covering bbox at scale units per
// pixel.
func TargetGrid(bbox []float64, crs string, scale float64) processor.Grid {
	width := int(math.Ceil((bbox[2] - bbox[0]) / scale))
	height := int(math.Ceil((bbox[3] - bbox[1]) / scale))
	if width < 1 {
		width = 1
	}
	if height < 1 {
		height = 1
	}
	return processor.Grid{
		CRS:          crs,
		GeoTransform: []float64{bbox[0], scale, 0, bbox[3], 0, -scale},
		Width:        width,
		Height:       height,
	}
}

// Loader reads scene band files and samples them onto a common grid.
type Loader struct {
	Root   string
	Target processor.Grid
}

// NewLoader returns a loader resolving manifest-less band paths
// against root. A zero target keeps every scene on its native grid.
func NewLoader(root string, target processor.Grid) *Loader {
	return &Loader{Root: root, Target: target}
}

func (l *Loader) Header(rec *SceneRecord) processor.ImageHeader {
	return processor.ImageHeader{
		ID:         rec.ID,
		Generation: rec.Generation,
		TimeStamp:  rec.TimeStamp,
		BBox:       append([]float64{}, rec.BBox...),
		BandNames:  rec.BandNames(),
	}
}

// Ref wraps rec in a deferred image reference.
func (l *Loader) Ref(rec *SceneRecord) *processor.ImageRef {
	return processor.NewImageRef(l.Header(rec), func(ctx context.Context) (*processor.RasterImage, error) {
		return l.Load(ctx, rec)
	})
}

func (l *Loader) Load(ctx context.Context, rec *SceneRecord) (*processor.RasterImage, error) {
	if len(rec.GeoTransform) != 6 {
		return nil, fmt.Errorf("scene %s: geotransform must have 6 values", rec.ID)
	}

	grid := l.Target
	if grid.Width == 0 || grid.Height == 0 {
		grid = processor.Grid{CRS: rec.CRS, GeoTransform: rec.GeoTransform, Width: rec.Width, Height: rec.Height}
	}

	img := &processor.RasterImage{
		Grid:       grid,
		ID:         rec.ID,
		Generation: rec.Generation,
		TimeStamp:  rec.TimeStamp,
		Properties: map[string]string{
			"LANDSAT_ID":  rec.ID,
			"collection":  rec.Collection,
			"cloud_cover": strconv.FormatFloat(rec.CloudCover, 'f', -1, 64),
		},
	}

	for _, bf := range rec.Bands {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		data, valid, err := l.readBand(rec, bf)
		if err != nil {
			return nil, err
		}
		img.Bands = append(img.Bands, resample(rec, data, valid, grid, bf.Name))
	}
	return img, nil
}

func (l *Loader) bandPath(rec *SceneRecord, bf *BandFile) string {
	if filepath.IsAbs(bf.Path) {
		return bf.Path
	}
	if len(rec.Manifest) > 0 {
		return filepath.Join(filepath.Dir(rec.Manifest), bf.Path)
	}
	return filepath.Join(l.Root, bf.Path)
}

func (l *Loader) readBand(rec *SceneRecord, bf *BandFile) ([]float32, []bool, error) {
	size, err := dataSize(bf.Type)
	if err != nil {
		return nil, nil, fmt.Errorf("scene %s band %s: %v", rec.ID, bf.Name, err)
	}

	path := l.bandPath(rec, bf)
	raw, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("scene %s band %s: %v", rec.ID, bf.Name, err)
	}

	n := rec.Width * rec.Height
	if len(raw) != n*size {
		return nil, nil, fmt.Errorf("scene %s band %s: %s holds %d bytes, expected %d", rec.ID, bf.Name, path, len(raw), n*size)
	}

	data := make([]float32, n)
	valid := make([]bool, n)
	for i := 0; i < n; i++ {
		off := i * size
		var v float32
		switch bf.Type {
		case "Byte":
			v = float32(raw[off])
		case "Int16":
			v = float32(int16(binary.LittleEndian.Uint16(raw[off:])))
		case "UInt16":
			v = float32(binary.LittleEndian.Uint16(raw[off:]))
		case "Float32":
			v = math.Float32frombits(binary.LittleEndian.Uint32(raw[off:]))
		}
		data[i] = v
		valid[i] = !math.IsNaN(float64(v)) && (bf.NoData == nil || float64(v) != *bf.NoData)
	}
	return data, valid, nil
}

// resample samples a native band onto grid, nearest neighbour.
// Target pixels falling outside the scene are invalid.
func resample(rec *SceneRecord, data []float32, valid []bool, grid processor.Grid, name string) *processor.Band {
	out := processor.NewBand(name, grid.Size())
	src := rec.GeoTransform
	dst := grid.GeoTransform

	same := grid.Width == rec.Width && grid.Height == rec.Height
	for i := range src {
		same = same && src[i] == dst[i]
	}
	if same {
		copy(out.Data, data)
		copy(out.Valid, valid)
		return out
	}

	for row := 0; row < grid.Height; row++ {
		for col := 0; col < grid.Width; col++ {
			x := dst[0] + (float64(col)+0.5)*dst[1] + (float64(row)+0.5)*dst[2]
			y := dst[3] + (float64(col)+0.5)*dst[4] + (float64(row)+0.5)*dst[5]

			sc := int(math.Floor((x - src[0]) / src[1]))
			sr := int(math.Floor((y - src[3]) / src[5]))
			if sc < 0 || sr < 0 || sc >= rec.Width || sr >= rec.Height {
				continue
			}

			si := sr*rec.Width + sc
			di := row*grid.Width + col
			out.Data[di] = data[si]
			out.Valid[di] = valid[si]
		}
	}
	return out
}
