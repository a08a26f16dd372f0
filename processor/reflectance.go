package processor

// Empirical calibration of the remote sensing reflectance proxy.
const (
	reflectanceScale = 31415.926
	rrsSlope         = 1.7
	rrsOffset        = 0.52
	rrsMilli         = 1000.0
)

// Rrs1000 converts a surface reflectance value into the remote sensing
// reflectance proxy scaled by 1000.
func Rrs1000(value float64) float64 {
	bigRrs := value / reflectanceScale
	rrs := bigRrs / (rrsSlope*bigRrs + rrsOffset)
	return rrs * rrsMilli
}

// ConvertReflectance applies Rrs1000 to every valid pixel of every band.
func ConvertReflectance(c *YearlyComposite) *YearlyComposite {
	if c.BandCount == 0 {
		return c
	}

	bands := make([]*Band, len(c.Bands))
	for ib, b := range c.Bands {
		out := NewBand(b.Name, len(b.Data))
		for i, v := range b.Data {
			if !b.Valid[i] {
				continue
			}
			out.Data[i] = float32(Rrs1000(float64(v)))
			out.Valid[i] = true
		}
		bands[ib] = out
	}

	return &YearlyComposite{
		RasterImage:   c.derive(bands),
		CompositeMeta: c.CompositeMeta,
		Land:          c.Land,
		LandPolicy:    c.LandPolicy,
	}
}
