package catalog

import (
	"encoding/json"
	"fmt"
	"io/ioutil"
	"math"
	"strconv"
	"strings"

	geo "github.com/nci/geometry"
)

// Region is the area of interest, a polygon or multipolygon in the
// CRS of the imagery.
type Region struct {
	Geometry geo.Geometry
	bbox     []float64
}

// ParseRegion decodes a GeoJSON Feature.
func ParseRegion(data []byte) (*Region, error) {
	var feat geo.Feature
	if err := json.Unmarshal(data, &feat); err != nil {
		return nil, fmt.Errorf("Problem unmarshalling region feature: %v", err)
	}

	switch feat.Geometry.(type) {
	case *geo.Polygon, *geo.MultiPolygon:
	default:
		return nil, fmt.Errorf("region geometry must be a Polygon or MultiPolygon, got %T", feat.Geometry)
	}

	geomJSON, err := json.Marshal(feat.Geometry)
	if err != nil {
		return nil, fmt.Errorf("Problem marshaling GeoJSON geometry: %v", err)
	}
	var raw struct {
		Coordinates json.RawMessage `json:"coordinates"`
	}
	if err := json.Unmarshal(geomJSON, &raw); err != nil {
		return nil, err
	}
	var coords interface{}
	if err := json.Unmarshal(raw.Coordinates, &coords); err != nil {
		return nil, err
	}

	bbox := []float64{math.Inf(1), math.Inf(1), math.Inf(-1), math.Inf(-1)}
	walkCoordinates(coords, bbox)
	if math.IsInf(bbox[0], 0) {
		return nil, fmt.Errorf("region geometry has no coordinates")
	}
	return &Region{Geometry: feat.Geometry, bbox: bbox}, nil
}

func LoadRegion(path string) (*Region, error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseRegion(data)
}

// RegionFromBBox is a rectangular region without a geometry.
func RegionFromBBox(bbox []float64) *Region {
	return &Region{bbox: append([]float64{}, bbox...)}
}

// BBox returns xmin, ymin, xmax, ymax.
func (r *Region) BBox() []float64 {
	return append([]float64{}, r.bbox...)
}

func (r *Region) WKT() string {
	if r.Geometry != nil {
		return r.Geometry.MarshalWKT()
	}
	return BBox2WKT(r.bbox)
}

func walkCoordinates(v interface{}, bbox []float64) {
	arr, ok := v.([]interface{})
	if !ok {
		return
	}
	if len(arr) >= 2 {
		x, okx := arr[0].(float64)
		y, oky := arr[1].(float64)
		if okx && oky {
			bbox[0] = math.Min(bbox[0], x)
			bbox[1] = math.Min(bbox[1], y)
			bbox[2] = math.Max(bbox[2], x)
			bbox[3] = math.Max(bbox[3], y)
			return
		}
	}
	for _, item := range arr {
		walkCoordinates(item, bbox)
	}
}

func BBox2WKT(bbox []float64) string {
	// BBox xMin, yMin, xMax, yMax
	return fmt.Sprintf("POLYGON ((%f %f, %f %f, %f %f, %f %f, %f %f))", bbox[0], bbox[1], bbox[2], bbox[1], bbox[2], bbox[3], bbox[0], bbox[3], bbox[0], bbox[1])
}

// BBoxFromWKT returns the envelope of the coordinates of a POLYGON or
// MULTIPOLYGON text.
func BBoxFromWKT(wkt string) ([]float64, error) {
	body := strings.TrimSpace(wkt)
	upper := strings.ToUpper(body)
	if !strings.HasPrefix(upper, "POLYGON") && !strings.HasPrefix(upper, "MULTIPOLYGON") {
		return nil, fmt.Errorf("unsupported WKT geometry: %.32s", wkt)
	}
	open := strings.Index(body, "(")
	if open < 0 {
		return nil, fmt.Errorf("malformed WKT: %.32s", wkt)
	}

	bbox := []float64{math.Inf(1), math.Inf(1), math.Inf(-1), math.Inf(-1)}
	points := strings.FieldsFunc(body[open:], func(r rune) bool { return r == '(' || r == ')' || r == ',' })
	for _, p := range points {
		fields := strings.Fields(p)
		if len(fields) == 0 {
			continue
		}
		if len(fields) < 2 {
			return nil, fmt.Errorf("malformed WKT point %q", p)
		}
		x, err := strconv.ParseFloat(fields[0], 64)
		if err != nil {
			return nil, fmt.Errorf("malformed WKT point %q: %v", p, err)
		}
		y, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return nil, fmt.Errorf("malformed WKT point %q: %v", p, err)
		}
		bbox[0] = math.Min(bbox[0], x)
		bbox[1] = math.Min(bbox[1], y)
		bbox[2] = math.Max(bbox[2], x)
		bbox[3] = math.Max(bbox[3], y)
	}
	if math.IsInf(bbox[0], 0) {
		return nil, fmt.Errorf("WKT without coordinates: %.32s", wkt)
	}
	return bbox, nil
}

// ParseBBox parses "xmin,ymin,xmax,ymax".
func ParseBBox(s string) ([]float64, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return nil, fmt.Errorf("bbox must have 4 comma separated values, got %q", s)
	}
	bbox := make([]float64, 4)
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("bbox value %q: %v", p, err)
		}
		bbox[i] = v
	}
	if bbox[0] > bbox[2] || bbox[1] > bbox[3] {
		return nil, fmt.Errorf("bbox %v is inverted", bbox)
	}
	return bbox, nil
}
