package utils

import (
	"errors"
	"fmt"
	"io/ioutil"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v2"
)

// string used to format Go ISO times
const ISOFormat = "2006-01-02T15:04:05.000Z"

// DateFormat is the layout of the generation date bounds in config files.
const DateFormat = "2006-01-02"

// Depth clamp bounds are part of the model and not configurable.
const (
	DepthMin = 0.0
	DepthMax = 20.0
)

const (
	DefaultStartYear    = 1991
	DefaultFinalYear    = 2020
	DefaultChla         = 0.5
	DefaultExportScale  = 30.0
	DefaultConcurrency  = 4
	DefaultQABand       = "pixel_qa"
	DefaultCatalogDSN   = "file:catalog.db"
	DefaultExportFormat = "vrt"
	DefaultTemplateDir  = "export/templates"
)

const (
	LandPolicyZeroSubstitute = "zero_substitute"
	LandPolicyMask           = "mask"

	DegeneratePolicyInvalid = "invalid"
	DegeneratePolicyError   = "error"
)

var ErrInvalidConfig = errors.New("invalid config")

// CanonicalBands is the band schema every sensor generation is
// harmonised into before merging.
var CanonicalBands = []string{"B1", "B2", "B3", "B4", "B5", "B6"}

// MaskConfig holds the QA bit positions of one sensor generation.
// A nil ConfidenceBit disables the cloud confidence test.
type MaskConfig struct {
	ShadowBit        int  `yaml:"shadow_bit" json:"shadow_bit"`
	CloudBit         int  `yaml:"cloud_bit" json:"cloud_bit"`
	ConfidenceBit    *int `yaml:"confidence_bit,omitempty" json:"confidence_bit,omitempty"`
	EdgeIntersection bool `yaml:"edge_intersection" json:"edge_intersection"`
}

func bit(n int) *int {
	return &n
}

// Generation describes one sensor generation: where its imagery comes
// from, which dates it covers and how its bands map onto the
// canonical schema.
type Generation struct {
	Name       string     `yaml:"name" json:"name"`
	Collection string     `yaml:"collection" json:"collection"`
	StartDate  string     `yaml:"start_date" json:"start_date"`
	EndDate    string     `yaml:"end_date" json:"end_date"`
	QABand     string     `yaml:"qa_band" json:"qa_band"`
	Mask       MaskConfig `yaml:"mask" json:"mask"`
	Bands      []string   `yaml:"bands" json:"bands"`
	Rename     []string   `yaml:"rename" json:"rename"`
}

type CatalogConfig struct {
	Driver     string `yaml:"driver" json:"driver"`
	DSN        string `yaml:"dsn" json:"dsn"`
	APIAddress string `yaml:"api_address" json:"api_address"`
	Memcache   string `yaml:"memcache" json:"memcache"`
	Filter     string `yaml:"filter" json:"filter"`
	DataRoot   string `yaml:"data_root" json:"data_root"`
}

type ExportConfig struct {
	Dir          string   `yaml:"dir" json:"dir"`
	Scale        float64  `yaml:"scale" json:"scale"`
	CRS          string   `yaml:"crs" json:"crs"`
	Formats      []string `yaml:"formats" json:"formats"`
	SelectedYear int      `yaml:"selected_year" json:"selected_year"`
	TemplateDir  string   `yaml:"template_dir" json:"template_dir"`
}

type WorkerConfig struct {
	Concurrency int      `yaml:"concurrency" json:"concurrency"`
	Addresses   []string `yaml:"addresses" json:"addresses"`
}

type LogConfig struct {
	Debug      bool   `yaml:"debug" json:"debug"`
	MetricsDir string `yaml:"metrics_dir" json:"metrics_dir"`
}

// Config is the struct representing the configuration of a
// bathymetry run. Once loaded it is treated as read only and passed
// by pointer to the components that need it.
type Config struct {
	StartYear        int           `yaml:"start_year" json:"start_year"`
	FinalYear        int           `yaml:"final_year" json:"final_year"`
	Chla             float64       `yaml:"chla" json:"chla"`
	CanonicalBands   []string      `yaml:"canonical_bands" json:"canonical_bands"`
	LandPolicy       string        `yaml:"land_policy" json:"land_policy"`
	DegeneratePolicy string        `yaml:"degenerate_policy" json:"degenerate_policy"`
	Region           string        `yaml:"region" json:"region"`
	Generations      []Generation  `yaml:"generations" json:"generations"`
	Catalog          CatalogConfig `yaml:"catalog" json:"catalog"`
	Export           ExportConfig  `yaml:"export" json:"export"`
	Workers          WorkerConfig  `yaml:"workers" json:"workers"`
	Log              LogConfig     `yaml:"log" json:"log"`
}

// DefaultConfig returns the Landsat 5/7/8 surface reflectance set up
// covering 1991 to 2020.
func DefaultConfig() *Config {
	return &Config{
		StartYear:        DefaultStartYear,
		FinalYear:        DefaultFinalYear,
		Chla:             DefaultChla,
		CanonicalBands:   append([]string{}, CanonicalBands...),
		LandPolicy:       LandPolicyZeroSubstitute,
		DegeneratePolicy: DegeneratePolicyInvalid,
		Generations: []Generation{
			{
				Name:       "LT05",
				Collection: "LANDSAT/LT05/C01/T1_SR",
				StartDate:  "1991-01-01",
				EndDate:    "1998-12-31",
				QABand:     DefaultQABand,
				Mask:       MaskConfig{ShadowBit: 3, CloudBit: 5, ConfidenceBit: bit(7), EdgeIntersection: true},
				Bands:      append([]string{}, CanonicalBands...),
				Rename:     append([]string{}, CanonicalBands...),
			},
			{
				Name:       "LE07",
				Collection: "LANDSAT/LE07/C01/T1_SR",
				StartDate:  "1999-01-01",
				EndDate:    "2013-12-31",
				QABand:     DefaultQABand,
				Mask:       MaskConfig{ShadowBit: 3, CloudBit: 5, ConfidenceBit: bit(7), EdgeIntersection: true},
				Bands:      append([]string{}, CanonicalBands...),
				Rename:     append([]string{}, CanonicalBands...),
			},
			{
				// The OLI coastal aerosol band B1 is dropped.
				Name:       "LC08",
				Collection: "LANDSAT/LC08/C01/T1_SR",
				StartDate:  "2014-01-01",
				EndDate:    "2020-12-31",
				QABand:     DefaultQABand,
				Mask:       MaskConfig{ShadowBit: 3, CloudBit: 5},
				Bands:      []string{"B2", "B3", "B4", "B5", "B6", "B7"},
				Rename:     append([]string{}, CanonicalBands...),
			},
		},
		Catalog: CatalogConfig{Driver: "sqlite", DSN: DefaultCatalogDSN},
		Export:  ExportConfig{Scale: DefaultExportScale, Formats: []string{DefaultExportFormat}},
		Workers: WorkerConfig{Concurrency: DefaultConcurrency},
	}
}

// LoadConfigFile overlays the YAML (or JSON) document in configFile on
// top of DefaultConfig and validates the result.
func LoadConfigFile(configFile string) (*Config, error) {
	cfg, err := ioutil.ReadFile(configFile)
	if err != nil {
		return nil, fmt.Errorf("Error while reading config file: %s. Error: %v", configFile, err)
	}

	config, err := ParseConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("Error parsing config document: %s. Error: %w", configFile, err)
	}

	if len(config.Region) > 0 && !filepath.IsAbs(config.Region) {
		config.Region = filepath.Join(filepath.Dir(configFile), config.Region)
	}
	if len(config.Export.TemplateDir) > 0 && !filepath.IsAbs(config.Export.TemplateDir) {
		config.Export.TemplateDir = filepath.Join(filepath.Dir(configFile), config.Export.TemplateDir)
	}
	return config, nil
}

// TemplatePath returns dir when set. Otherwise the installed templates
// are looked up under the working directory, then next to the
// executable.
func TemplatePath(dir string) string {
	if len(dir) > 0 {
		return dir
	}

	var candidates []string
	if wd, err := os.Getwd(); err == nil {
		candidates = append(candidates, filepath.Join(wd, DefaultTemplateDir))
	}
	if exe, err := os.Executable(); err == nil {
		candidates = append(candidates, filepath.Join(filepath.Dir(exe), DefaultTemplateDir))
	}
	for _, c := range candidates {
		if info, err := os.Stat(c); err == nil && info.IsDir() {
			return c
		}
	}
	return DefaultTemplateDir
}

// ParseConfig decodes a config document. Generations given in the
// document replace the default generation list as a whole.
func ParseConfig(doc []byte) (*Config, error) {
	config := DefaultConfig()
	defaultGens := config.Generations
	config.Generations = nil

	if err := yaml.Unmarshal(doc, config); err != nil {
		return nil, err
	}
	if len(config.Generations) == 0 {
		config.Generations = defaultGens
	}
	for i := range config.Generations {
		if len(config.Generations[i].QABand) == 0 {
			config.Generations[i].QABand = DefaultQABand
		}
	}
	if config.Export.Scale <= 0 {
		config.Export.Scale = DefaultExportScale
	}
	if len(config.Export.Formats) == 0 {
		config.Export.Formats = []string{DefaultExportFormat}
	}
	if config.Workers.Concurrency <= 0 {
		config.Workers.Concurrency = DefaultConcurrency
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func (config *Config) Validate() error {
	if config.StartYear > config.FinalYear {
		return fmt.Errorf("%w: start_year %d is after final_year %d", ErrInvalidConfig, config.StartYear, config.FinalYear)
	}
	if len(config.CanonicalBands) != len(CanonicalBands) {
		return fmt.Errorf("%w: canonical_bands must list %d bands, got %v", ErrInvalidConfig, len(CanonicalBands), config.CanonicalBands)
	}

	switch config.LandPolicy {
	case LandPolicyZeroSubstitute, LandPolicyMask:
	default:
		return fmt.Errorf("%w: unknown land_policy %q", ErrInvalidConfig, config.LandPolicy)
	}

	switch config.DegeneratePolicy {
	case DegeneratePolicyInvalid, DegeneratePolicyError:
	default:
		return fmt.Errorf("%w: unknown degenerate_policy %q", ErrInvalidConfig, config.DegeneratePolicy)
	}

	if len(config.Generations) == 0 {
		return fmt.Errorf("%w: no sensor generations configured", ErrInvalidConfig)
	}

	names := make(map[string]bool)
	for _, gen := range config.Generations {
		if len(gen.Name) == 0 {
			return fmt.Errorf("%w: generation without a name", ErrInvalidConfig)
		}
		if names[gen.Name] {
			return fmt.Errorf("%w: duplicated generation %s", ErrInvalidConfig, gen.Name)
		}
		names[gen.Name] = true

		start, end, err := gen.Range()
		if err != nil {
			return fmt.Errorf("%w: generation %s: %v", ErrInvalidConfig, gen.Name, err)
		}
		if end.Before(start) {
			return fmt.Errorf("%w: generation %s ends before it starts", ErrInvalidConfig, gen.Name)
		}

		if len(gen.Bands) != len(gen.Rename) {
			return fmt.Errorf("%w: generation %s maps %d bands onto %d names", ErrInvalidConfig, gen.Name, len(gen.Bands), len(gen.Rename))
		}
		if !sameBands(gen.Rename, config.CanonicalBands) {
			return fmt.Errorf("%w: generation %s renames to %v, canonical schema is %v", ErrInvalidConfig, gen.Name, gen.Rename, config.CanonicalBands)
		}

		bits := []int{gen.Mask.ShadowBit, gen.Mask.CloudBit}
		if gen.Mask.ConfidenceBit != nil {
			bits = append(bits, *gen.Mask.ConfidenceBit)
		}
		for _, b := range bits {
			if b < 0 || b > 15 {
				return fmt.Errorf("%w: generation %s: QA bit %d out of range", ErrInvalidConfig, gen.Name, b)
			}
		}
	}

	for _, format := range config.Export.Formats {
		switch strings.ToLower(format) {
		case "vrt", "msgpack":
		default:
			return fmt.Errorf("%w: unknown export format %q", ErrInvalidConfig, format)
		}
	}

	return nil
}

// Range parses the inclusive date bounds of a generation.
func (gen *Generation) Range() (time.Time, time.Time, error) {
	start, err := time.ParseInLocation(DateFormat, gen.StartDate, time.UTC)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("start_date: %v", err)
	}
	end, err := time.ParseInLocation(DateFormat, gen.EndDate, time.UTC)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("end_date: %v", err)
	}
	return start, end, nil
}

// GenerationRange returns the generation date bounds clipped to the
// configured years. The end bound is the last nanosecond of the last
// included day. ok is false when the generation falls outside the
// year range.
func (config *Config) GenerationRange(gen *Generation) (start time.Time, end time.Time, ok bool) {
	start, end, err := gen.Range()
	if err != nil {
		return time.Time{}, time.Time{}, false
	}
	end = end.AddDate(0, 0, 1).Add(-time.Nanosecond)

	first := time.Date(config.StartYear, 1, 1, 0, 0, 0, 0, time.UTC)
	last := time.Date(config.FinalYear+1, 1, 1, 0, 0, 0, 0, time.UTC).Add(-time.Nanosecond)
	if start.Before(first) {
		start = first
	}
	if end.After(last) {
		end = last
	}
	return start, end, !end.Before(start)
}

// Years lists every year of the configured inclusive range.
func (config *Config) Years() []int {
	var years []int
	for y := config.StartYear; y <= config.FinalYear; y++ {
		years = append(years, y)
	}
	return years
}

func sameBands(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// WatchConfig reloads configFile into current every time the process
// receives SIGHUP. A document that fails to load leaves the previous
// config in place.
func WatchConfig(log *zap.SugaredLogger, configFile string, current *atomic.Pointer[Config]) {
	sighup := make(chan os.Signal, 1)
	signal.Notify(sighup, syscall.SIGHUP)
	go func() {
		for range sighup {
			log.Infof("Caught SIGHUP, reloading config %s", configFile)
			config, err := LoadConfigFile(configFile)
			if err != nil {
				log.Errorf("Error in loading config file: %v", err)
				continue
			}
			current.Store(config)
		}
	}()
}
