package metrics

import (
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"go.uber.org/zap"
)

type captureLogger struct {
	infos []*RunInfo
}

func (c *captureLogger) Log(info *RunInfo) {
	c.infos = append(c.infos, info)
}

func TestDepthSummary(t *testing.T) {
	mean, stdDev, n := DepthSummary([]float32{2, 100, 4}, []bool{true, false, true})
	if n != 2 || mean != 3 || math.Abs(stdDev-math.Sqrt2) > 1e-9 {
		t.Errorf("got mean=%v stddev=%v n=%d", mean, stdDev, n)
	}
	if _, _, n := DepthSummary([]float32{1}, []bool{false}); n != 0 {
		t.Errorf("expected no valid pixel, got %d", n)
	}
	if mean, stdDev, n := DepthSummary([]float32{7}, []bool{true}); mean != 7 || stdDev != 0 || n != 1 {
		t.Errorf("single pixel: mean=%v stddev=%v n=%d", mean, stdDev, n)
	}
}

func TestRunCollector(t *testing.T) {
	logger := &captureLogger{}
	m := NewRunCollector(logger)

	var wg sync.WaitGroup
	for _, year := range []int{2003, 2001, 2002} {
		wg.Add(1)
		go func(year int) {
			defer wg.Done()
			m.AddYear(&YearInfo{Year: year, Kept: year != 2002})
		}(year)
	}
	wg.Wait()
	m.SetScenes("LE07", 12)
	m.Log()

	if len(logger.infos) != 1 {
		t.Fatalf("expected one run logged, got %d", len(logger.infos))
	}
	info := logger.infos[0]
	if info.Years[0].Year != 2001 || info.Years[2].Year != 2003 {
		t.Errorf("years not sorted: %d %d %d", info.Years[0].Year, info.Years[1].Year, info.Years[2].Year)
	}
	if info.NumKept != 2 || info.Catalog.NumScenes["LE07"] != 12 || len(info.RunID) == 0 {
		t.Errorf("unexpected run info %+v", info)
	}

	var nilCollector *RunCollector
	nilCollector.AddYear(&YearInfo{})
	nilCollector.Log()
}

func TestFileLogger(t *testing.T) {
	dir := t.TempDir()
	l := NewFileLogger(zap.NewNop().Sugar(), dir, 1, 2, false)
	for i := 0; i < 3; i++ {
		m := NewRunCollector(l)
		m.AddYear(&YearInfo{Year: 2000 + i, Kept: true})
		m.Log()
	}
	l.Close()

	files, err := filepath.Glob(filepath.Join(dir, "runs0.jsonl*"))
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 3 {
		t.Fatalf("expected the current log and 2 rotated files, got %v", files)
	}

	data, err := os.ReadFile(filepath.Join(dir, "runs0.jsonl"))
	if err != nil {
		t.Fatal(err)
	}
	var info RunInfo
	if err := json.Unmarshal([]byte(strings.TrimSpace(string(data))), &info); err != nil {
		t.Fatalf("runs0.jsonl is not a JSON run record: %v", err)
	}
	if len(info.Years) != 1 || info.Years[0].Year != 2002 {
		t.Errorf("unexpected latest record %+v", info)
	}
}
