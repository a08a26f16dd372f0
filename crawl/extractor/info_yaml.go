package extractor

import (
	"fmt"
	"io/ioutil"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/nci/gbathy/catalog"
	"gopkg.in/yaml.v2"
)

var dateTimeFormats = []string{
	"2006-01-02T15:04:05Z",
	"2006-01-02T15:04:05.999999999Z",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05.999999999",
}

func parseDateTime(datetimeRaw string) (time.Time, error) {
	for _, layout := range dateTimeFormats {
		t, err := time.ParseInLocation(layout, strings.TrimSpace(datetimeRaw), time.UTC)
		if err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid datetime format: %v", datetimeRaw)
}

// ExtractSceneYaml reads a scene manifest into a catalog record. Band
// paths stay relative to the manifest.
func ExtractSceneYaml(filename string) (*catalog.SceneRecord, error) {
	rawData, err := ioutil.ReadFile(filename)
	if err != nil {
		return nil, err
	}

	var md SceneManifest
	if err := yaml.Unmarshal(rawData, &md); err != nil {
		return nil, fmt.Errorf("%s: %v", filename, err)
	}

	if len(md.ID) == 0 || len(md.Generation) == 0 {
		return nil, fmt.Errorf("%s: manifest needs an id and a generation", filename)
	}
	if len(md.GeoTransform) != 6 {
		return nil, fmt.Errorf("%s: geotransform must have 6 values", filename)
	}
	if md.Width <= 0 || md.Height <= 0 {
		return nil, fmt.Errorf("%s: invalid raster size %dx%d", filename, md.Width, md.Height)
	}
	if len(md.Measurements) == 0 {
		return nil, fmt.Errorf("%s: manifest has no measurements", filename)
	}

	t, err := parseDateTime(md.Properties.DateTime)
	if err != nil {
		return nil, fmt.Errorf("%s: %v", filename, err)
	}

	fn, err := filepath.Abs(filename)
	if err != nil {
		return nil, err
	}

	rec := &catalog.SceneRecord{
		ID:           md.ID,
		Generation:   md.Generation,
		Collection:   md.Collection,
		TimeStamp:    t,
		BBox:         footprint(md.GeoTransform, md.Width, md.Height),
		CRS:          md.CRS,
		GeoTransform: md.GeoTransform,
		Width:        md.Width,
		Height:       md.Height,
		CloudCover:   md.Properties.CloudCover,
		Manifest:     fn,
	}

	var names []string
	for ns := range md.Measurements {
		names = append(names, ns)
	}
	sort.Strings(names)
	for _, ns := range names {
		m := md.Measurements[ns]
		if m == nil || len(m.Path) == 0 {
			return nil, fmt.Errorf("%s: measurement %s has no path", filename, ns)
		}
		dataType := m.Type
		if len(dataType) == 0 {
			dataType = "Int16"
		}
		rec.Bands = append(rec.Bands, &catalog.BandFile{Name: ns, Path: m.Path, Type: dataType, NoData: m.NoData})
	}

	return rec, nil
}

// footprint is the envelope of the raster corners.
func footprint(gt []float64, width, height int) []float64 {
	xs := []float64{gt[0], gt[0] + float64(width)*gt[1], gt[0] + float64(height)*gt[2], gt[0] + float64(width)*gt[1] + float64(height)*gt[2]}
	ys := []float64{gt[3], gt[3] + float64(width)*gt[4], gt[3] + float64(height)*gt[5], gt[3] + float64(width)*gt[4] + float64(height)*gt[5]}
	sort.Float64s(xs)
	sort.Float64s(ys)
	return []float64{xs[0], ys[0], xs[3], ys[3]}
}
