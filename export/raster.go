package export

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/edisonguo/jet"
	"github.com/nci/gbathy/processor"
)

const (
	NoData       = -9999.0
	VRTTemplate  = "depth.vrt"
	rasterPrefix = "depth_"
)

// RasterName is the file name of the raw depth raster of year.
func RasterName(year int) string {
	return fmt.Sprintf("%s%d.bin", rasterPrefix, year)
}

func vrtName(year int) string {
	return fmt.Sprintf("%s%d.vrt", rasterPrefix, year)
}

// WriteRaster writes the depth band of d as little endian float32, one
// row after the other. Invalid pixels are written as NoData.
func WriteRaster(w io.Writer, d *processor.DepthMap) error {
	depth := d.Depth()
	if depth == nil {
		return fmt.Errorf("year %d has no depth band", d.Year)
	}

	out := make([]float32, len(depth.Data))
	for i, v := range depth.Data {
		if depth.Valid[i] {
			out[i] = v
		} else {
			out[i] = NoData
		}
	}

	bw := bufio.NewWriter(w)
	if err := binary.Write(bw, binary.LittleEndian, out); err != nil {
		return err
	}
	return bw.Flush()
}

type vrtInfo struct {
	Width        int
	Height       int
	CRS          string
	GeoTransform string
	Year         int
	ImageCount   int
	BandCount    int
	NoData       string
	File         string
	LineOffset   int
}

// VRTWriter renders GDAL VRT headers describing the raw rasters.
type VRTWriter struct {
	template *jet.Template
}

func NewVRTWriter(templateDir string) (*VRTWriter, error) {
	view := jet.NewSet(jet.SafeWriter(func(w io.Writer, b []byte) {
		w.Write(b)
	}), templateDir, "/")

	template, err := view.GetTemplate(VRTTemplate)
	if err != nil {
		return nil, fmt.Errorf("VRT template error: %v", err)
	}
	return &VRTWriter{template: template}, nil
}

func (vw *VRTWriter) Render(d *processor.DepthMap, rasterFile string) ([]byte, error) {
	gt := make([]string, len(d.GeoTransform))
	for i, v := range d.GeoTransform {
		gt[i] = strconv.FormatFloat(v, 'f', -1, 64)
	}

	info := &vrtInfo{
		Width:        d.Width,
		Height:       d.Height,
		CRS:          d.CRS,
		GeoTransform: strings.Join(gt, ", "),
		Year:         d.Year,
		ImageCount:   d.ImageCount,
		BandCount:    d.BandCount,
		NoData:       strconv.FormatFloat(NoData, 'f', -1, 64),
		File:         rasterFile,
		LineOffset:   4 * d.Width,
	}

	var buf bytes.Buffer
	vars := make(jet.VarMap)
	if err := vw.template.Execute(&buf, vars, info); err != nil {
		return nil, fmt.Errorf("VRT render error: %v", err)
	}
	return buf.Bytes(), nil
}

// writeYear writes the raster of d and its VRT header into dir and
// returns the paths written.
func (vw *VRTWriter) writeYear(dir string, d *processor.DepthMap) ([]string, error) {
	rasterPath := filepath.Join(dir, RasterName(d.Year))
	f, err := os.Create(rasterPath)
	if err != nil {
		return nil, err
	}
	if err := WriteRaster(f, d); err != nil {
		f.Close()
		return nil, err
	}
	if err := f.Close(); err != nil {
		return nil, err
	}

	vrt, err := vw.Render(d, RasterName(d.Year))
	if err != nil {
		return nil, err
	}
	vrtPath := filepath.Join(dir, vrtName(d.Year))
	if err := os.WriteFile(vrtPath, vrt, 0644); err != nil {
		return nil, err
	}
	return []string{rasterPath, vrtPath}, nil
}
