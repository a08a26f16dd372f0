package extractor

// Measurement is one band entry of a scene manifest.
type Measurement struct {
	Path   string   `yaml:"path"`
	Type   string   `yaml:"type"`
	NoData *float64 `yaml:"nodata"`
}

// SceneManifest is the scene.yaml document written next to the band
// files of every acquisition.
type SceneManifest struct {
	ID           string                  `yaml:"id"`
	Generation   string                  `yaml:"generation"`
	Collection   string                  `yaml:"collection"`
	CRS          string                  `yaml:"crs"`
	GeoTransform []float64               `yaml:"geotransform"`
	Width        int                     `yaml:"width"`
	Height       int                     `yaml:"height"`
	Properties   ManifestProperties      `yaml:"properties"`
	Measurements map[string]*Measurement `yaml:"measurements"`
}

type ManifestProperties struct {
	DateTime   string  `yaml:"datetime"`
	CloudCover float64 `yaml:"cloud_cover"`
}
