package export

import (
	"bytes"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nci/gbathy/processor"
	"github.com/nci/gbathy/utils"
)

var testGrid = processor.Grid{CRS: "EPSG:32755", GeoTransform: []float64{500000, 30, 0, 7000000, 0, -30}, Width: 3, Height: 1}

func depthMap(year int, values []float32, valid []bool) *processor.DepthMap {
	return &processor.DepthMap{
		RasterImage: &processor.RasterImage{
			Grid:       testGrid,
			ID:         "depth",
			Properties: map[string]string{},
			Bands:      []*processor.Band{{Name: processor.DepthBandName, Data: values, Valid: valid}},
		},
		CompositeMeta: processor.CompositeMeta{Year: year, ImageIDs: []string{"a"}, BandCount: 6, ImageCount: 1},
		Land:          []bool{false, true, false},
	}
}

func testSeries() []*processor.DepthMap {
	return []*processor.DepthMap{
		depthMap(2018, []float32{1.5, 0, 12}, []bool{true, false, true}),
		depthMap(2019, []float32{2.5, 0, 20}, []bool{true, false, true}),
	}
}

func TestWriteRaster(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteRaster(&buf, testSeries()[0]); err != nil {
		t.Fatal(err)
	}
	got := make([]float32, 3)
	if err := binary.Read(&buf, binary.LittleEndian, got); err != nil {
		t.Fatal(err)
	}
	expected := []float32{1.5, NoData, 12}
	for i := range expected {
		if got[i] != expected[i] {
			t.Errorf("pixel %d: %v, expected %v", i, got[i], expected[i])
		}
	}

	empty := &processor.DepthMap{RasterImage: &processor.RasterImage{}, CompositeMeta: processor.CompositeMeta{Year: 2000}}
	if err := WriteRaster(&buf, empty); err == nil {
		t.Error("expected an error for a year without depth")
	}
}

func TestRenderVRT(t *testing.T) {
	vw, err := NewVRTWriter("templates")
	if err != nil {
		t.Fatal(err)
	}
	vrt, err := vw.Render(testSeries()[1], RasterName(2019))
	if err != nil {
		t.Fatal(err)
	}

	for _, want := range []string{
		`rasterXSize="3" rasterYSize="1"`,
		"<SRS>EPSG:32755</SRS>",
		"<GeoTransform>500000, 30, 0, 7000000, 0, -30</GeoTransform>",
		"<NoDataValue>-9999</NoDataValue>",
		`<SourceFilename relativeToVRT="1">depth_2019.bin</SourceFilename>`,
		"<LineOffset>12</LineOffset>",
		`<MDI key="year">2019</MDI>`,
	} {
		if !strings.Contains(string(vrt), want) {
			t.Errorf("VRT is missing %q:\n%s", want, vrt)
		}
	}
}

func TestExport(t *testing.T) {
	dir := t.TempDir()
	e := NewExporter(utils.ExportConfig{Dir: dir, TemplateDir: "templates", Formats: []string{"vrt", "msgpack"}, SelectedYear: 2019}, nil)

	files, err := e.Export(testSeries())
	if err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"depth_2018.bin", "depth_2018.vrt", "depth_2019.bin", "depth_2019.vrt", BundleName, "2019/depth_2019.vrt", "2019/" + BundleName} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("%s not written: %v", name, err)
		}
	}
	if len(files) != 8 {
		t.Errorf("expected 8 files, got %v", files)
	}
	if _, err := os.Stat(filepath.Join(dir, "2019", "depth_2018.bin")); err == nil {
		t.Error("single year export contains another year")
	}

	b, err := ReadBundle(filepath.Join(dir, BundleName))
	if err != nil {
		t.Fatal(err)
	}
	if len(b.Years) != 2 || b.Years[0].Year != 2018 || b.Width != 3 || b.CRS != "EPSG:32755" {
		t.Fatalf("unexpected bundle %+v", b)
	}
	if b.Years[1].Depth[1] != NoData || b.Years[1].Depth[2] != 20 || b.Years[1].LandPixels != 1 {
		t.Errorf("unexpected year record %+v", b.Years[1])
	}
	if b.Years[0].Meta.ImageIDs[0] != "a" || b.Years[0].Meta.BandCount != 6 {
		t.Errorf("provenance lost: %+v", b.Years[0].Meta)
	}
}

func TestExportMissingYear(t *testing.T) {
	dir := t.TempDir()
	e := NewExporter(utils.ExportConfig{Dir: dir, TemplateDir: "templates", Formats: []string{"vrt"}, SelectedYear: 2005}, nil)
	if _, err := e.Export(testSeries()); !errors.Is(err, processor.ErrYearNotAvailable) {
		t.Fatalf("expected ErrYearNotAvailable, got %v", err)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Errorf("failed export wrote %d files", len(entries))
	}
}

func TestBundleGridMismatch(t *testing.T) {
	series := testSeries()
	other := testGrid
	other.Width = 2
	series[1].Grid = other
	if _, err := NewBundle(series); !errors.Is(err, processor.ErrGridMismatch) {
		t.Errorf("expected ErrGridMismatch, got %v", err)
	}
}
