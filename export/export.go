package export

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/nci/gbathy/processor"
	"github.com/nci/gbathy/utils"
	"go.uber.org/zap"
)

// Exporter materialises an assembled depth series into Dir.
type Exporter struct {
	Dir          string
	TemplateDir  string
	Formats      []string
	SelectedYear int
	Log          *zap.SugaredLogger
}

func NewExporter(cfg utils.ExportConfig, log *zap.SugaredLogger) *Exporter {
	dir := cfg.Dir
	if len(dir) == 0 {
		dir = "."
	}
	return &Exporter{
		Dir:          dir,
		TemplateDir:  utils.TemplatePath(cfg.TemplateDir),
		Formats:      cfg.Formats,
		SelectedYear: cfg.SelectedYear,
		Log:          utils.OrNop(log),
	}
}

// Export writes every year of series in the configured formats. When a
// year is selected it is also written on its own under Dir/<year>, and
// a missing selected year fails the export before anything is written.
func (e *Exporter) Export(series []*processor.DepthMap) ([]string, error) {
	var selected *processor.DepthMap
	if e.SelectedYear > 0 {
		var err error
		selected, err = processor.SelectYear(series, e.SelectedYear)
		if err != nil {
			return nil, err
		}
	}

	files, err := e.write(e.Dir, series)
	if err != nil {
		return nil, err
	}
	if selected != nil {
		single, err := e.write(filepath.Join(e.Dir, fmt.Sprint(selected.Year)), []*processor.DepthMap{selected})
		if err != nil {
			return nil, err
		}
		files = append(files, single...)
	}
	return files, nil
}

func (e *Exporter) write(dir string, series []*processor.DepthMap) ([]string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	var files []string
	for _, format := range e.Formats {
		switch strings.ToLower(format) {
		case "vrt":
			vw, err := NewVRTWriter(e.TemplateDir)
			if err != nil {
				return nil, err
			}
			for _, d := range series {
				written, err := vw.writeYear(dir, d)
				if err != nil {
					return nil, fmt.Errorf("export year %d: %v", d.Year, err)
				}
				files = append(files, written...)
			}
		case "msgpack":
			path := filepath.Join(dir, BundleName)
			if err := writeBundle(path, series); err != nil {
				return nil, fmt.Errorf("export bundle: %v", err)
			}
			files = append(files, path)
		default:
			return nil, fmt.Errorf("unknown export format %q", format)
		}
	}

	e.Log.Infow("depth series exported", "dir", dir, "years", len(series), "files", len(files))
	return files, nil
}
