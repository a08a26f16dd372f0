package metrics

import (
	"bytes"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/stat"
)

type CatalogInfo struct {
	Duration   time.Duration  `json:"duration"`
	Region     string         `json:"region"`
	NumScenes  map[string]int `json:"num_scenes"`
	NumRemoved int            `json:"num_filtered"`
}

type YearInfo struct {
	Year             int           `json:"year"`
	Duration         time.Duration `json:"duration"`
	NumImages        int           `json:"num_images"`
	NumBands         int           `json:"n_bands"`
	ValidPixels      int           `json:"valid_pixels"`
	LandPixels       int           `json:"land_pixels"`
	DegeneratePixels int           `json:"degenerate_pixels"`
	DepthMean        float64       `json:"depth_mean"`
	DepthStdDev      float64       `json:"depth_stddev"`
	Kept             bool          `json:"kept"`
	Worker           string        `json:"worker,omitempty"`
	Error            string        `json:"error,omitempty"`
}

type RunInfo struct {
	RunID       string        `json:"run_id"`
	ReqTime     string        `json:"req_time"`
	ReqDuration time.Duration `json:"req_duration"`
	StartYear   int           `json:"start_year"`
	FinalYear   int           `json:"final_year"`
	Chla        float64       `json:"chla"`
	LandPolicy  string        `json:"land_policy"`
	Catalog     *CatalogInfo  `json:"catalog"`
	Years       []*YearInfo   `json:"years"`
	NumKept     int           `json:"num_kept"`
	Error       string        `json:"error,omitempty"`
}

// RunCollector accumulates the metrics of one run. Years may be added
// concurrently.
type RunCollector struct {
	Info   *RunInfo
	start  time.Time
	mu     sync.Mutex
	logger Logger
}

func NewRunCollector(logger Logger) *RunCollector {
	now := time.Now()
	return &RunCollector{
		Info: &RunInfo{
			RunID:   uuid.New().String(),
			ReqTime: now.UTC().Format(time.RFC3339),
			Catalog: &CatalogInfo{NumScenes: make(map[string]int)},
		},
		start:  now,
		logger: logger,
	}
}

func (m *RunCollector) AddYear(info *YearInfo) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Info.Years = append(m.Info.Years, info)
}

func (m *RunCollector) SetScenes(generation string, n int) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Info.Catalog.NumScenes[generation] = n
}

// Log finalises the run and hands it to the logger.
func (m *RunCollector) Log() {
	if m == nil {
		return
	}
	m.mu.Lock()
	m.Info.ReqDuration = time.Since(m.start)
	sort.Slice(m.Info.Years, func(i, j int) bool { return m.Info.Years[i].Year < m.Info.Years[j].Year })
	m.Info.NumKept = 0
	for _, y := range m.Info.Years {
		if y.Kept {
			m.Info.NumKept++
		}
	}
	m.mu.Unlock()

	if m.logger != nil {
		m.logger.Log(m.Info)
	}
}

// DepthSummary returns the mean and standard deviation of the valid
// depth values.
func DepthSummary(data []float32, valid []bool) (mean, stdDev float64, n int) {
	values := make([]float64, 0, len(data))
	for i, v := range data {
		if valid[i] {
			values = append(values, float64(v))
		}
	}
	if len(values) == 0 {
		return 0, 0, 0
	}
	if len(values) == 1 {
		return values[0], 0, 1
	}
	mean, stdDev = stat.MeanStdDev(values, nil)
	return mean, stdDev, len(values)
}

func (i *RunInfo) ToJSON() (string, error) {
	buf := new(bytes.Buffer)
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	err := enc.Encode(i)
	if err == nil {
		return buf.String(), nil
	} else {
		return "", err
	}
}
