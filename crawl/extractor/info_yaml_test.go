package extractor

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/nci/gbathy/catalog"
)

const sceneYaml = `id: LE07_L1TP_090084_20010305
generation: LE07
collection: LANDSAT/LE07/C01/T1_SR
crs: EPSG:32755
geotransform: [500000, 30, 0, 7000000, 0, -30]
width: 4
height: 2
properties:
  datetime: 2001-03-05 23:41:12
  cloud_cover: 12.5
measurements:
  pixel_qa: {path: qa.bin, type: UInt16}
  B2: {path: b2.bin, nodata: -9999}
  B1: {path: b1.bin, type: Int16, nodata: -9999}
`

func writeManifest(t *testing.T, dir, content string) string {
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	fn := filepath.Join(dir, DefaultManifestName)
	if err := ioutil.WriteFile(fn, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return fn
}

func TestExtractSceneYaml(t *testing.T) {
	fn := writeManifest(t, t.TempDir(), sceneYaml)

	rec, err := ExtractSceneYaml(fn)
	if err != nil {
		t.Fatal(err)
	}

	if rec.ID != "LE07_L1TP_090084_20010305" || rec.Generation != "LE07" || rec.CloudCover != 12.5 {
		t.Errorf("unexpected record %+v", rec)
	}
	if !rec.TimeStamp.Equal(time.Date(2001, 3, 5, 23, 41, 12, 0, time.UTC)) {
		t.Errorf("unexpected timestamp %v", rec.TimeStamp)
	}

	expected := []float64{500000, 6999940, 500120, 7000000}
	for i := range expected {
		if rec.BBox[i] != expected[i] {
			t.Fatalf("expected bbox %v, got %v", expected, rec.BBox)
		}
	}

	names := rec.BandNames()
	if len(names) != 3 || names[0] != "B1" || names[1] != "B2" || names[2] != "pixel_qa" {
		t.Errorf("unexpected bands %v", names)
	}
	if rec.Bands[1].Type != "Int16" || rec.Bands[1].NoData == nil || *rec.Bands[1].NoData != -9999 {
		t.Errorf("unexpected B2 entry %+v", rec.Bands[1])
	}
	if rec.Manifest != fn {
		t.Errorf("manifest path %s, expected %s", rec.Manifest, fn)
	}
}

func TestExtractSceneYamlInvalid(t *testing.T) {
	dir := t.TempDir()
	for i, doc := range []string{
		"generation: LE07\n",
		"id: a\ngeneration: LE07\ngeotransform: [0, 30]\nwidth: 1\nheight: 1\n",
		"id: a\ngeneration: LE07\ngeotransform: [0, 30, 0, 0, 0, -30]\nwidth: 1\nheight: 1\nproperties: {datetime: yesterday}\nmeasurements: {B1: {path: b1.bin}}\n",
	} {
		fn := writeManifest(t, filepath.Join(dir, string(rune('a'+i))), doc)
		if _, err := ExtractSceneYaml(fn); err == nil {
			t.Errorf("document %d should be rejected", i)
		}
	}
}

func TestSceneCrawler(t *testing.T) {
	root := t.TempDir()
	writeManifest(t, filepath.Join(root, "2001", "a"), sceneYaml)
	writeManifest(t, filepath.Join(root, "2001", "b"), sceneYaml)
	writeManifest(t, filepath.Join(root, "skip", "c"), sceneYaml)
	if err := ioutil.WriteFile(filepath.Join(root, "2001", "README"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	expr, err := ParsePatternExpression(`type == 'f' || path !~ 'skip'`)
	if err != nil {
		t.Fatal(err)
	}

	var mu sync.Mutex
	var found []*catalog.SceneRecord
	crawler := NewSceneCrawler(2, expr, false, "", func(rec *catalog.SceneRecord) error {
		mu.Lock()
		defer mu.Unlock()
		found = append(found, rec)
		return nil
	})
	if err := crawler.Crawl(root); err != nil {
		t.Fatal(err)
	}
	if len(found) != 2 {
		t.Errorf("expected 2 manifests, got %d", len(found))
	}
}

func TestParsePatternExpression(t *testing.T) {
	if expr, err := ParsePatternExpression("  "); err != nil || expr != nil {
		t.Errorf("empty pattern: %v %v", expr, err)
	}
	if _, err := ParsePatternExpression("size > 10"); err == nil {
		t.Errorf("unknown variables must be rejected")
	}
}
