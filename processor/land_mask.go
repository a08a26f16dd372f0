package processor

import (
	"fmt"

	"github.com/nci/gbathy/utils"
)

// LandPolicy is how pixels classified as land are suppressed.
type LandPolicy int

const (
	// LandZeroSubstitute writes a literal 0 into every band, the pixel
	// stays valid.
	LandZeroSubstitute LandPolicy = iota
	// LandMask marks the pixel invalid in every band.
	LandMask
)

func (p LandPolicy) String() string {
	switch p {
	case LandZeroSubstitute:
		return utils.LandPolicyZeroSubstitute
	case LandMask:
		return utils.LandPolicyMask
	default:
		return fmt.Sprintf("LandPolicy(%d)", int(p))
	}
}

func ParseLandPolicy(s string) (LandPolicy, error) {
	switch s {
	case utils.LandPolicyZeroSubstitute, "":
		return LandZeroSubstitute, nil
	case utils.LandPolicyMask:
		return LandMask, nil
	default:
		return 0, fmt.Errorf("unknown land policy %q", s)
	}
}

// LandMaskStage flags pixels whose modified normalised difference water
// index, computed from the Green and Swir bands, is negative.
type LandMaskStage struct {
	Policy LandPolicy
	Green  string
	Swir   string
}

// NewLandMaskStage takes the green and swir labels from the canonical
// schema, at positions 1 and 4.
func NewLandMaskStage(policy LandPolicy, canonical []string) (LandMaskStage, error) {
	if len(canonical) != len(utils.CanonicalBands) {
		return LandMaskStage{}, fmt.Errorf("land mask: canonical schema %v must have %d bands", canonical, len(utils.CanonicalBands))
	}
	return LandMaskStage{Policy: policy, Green: canonical[1], Swir: canonical[4]}, nil
}

// MNDWI is (green - swir) / (green + swir).
func MNDWI(green, swir float64) float64 {
	return (green - swir) / (green + swir)
}

// Apply returns a new composite with land pixels suppressed. The index
// is only defined where both bands are valid; a NaN index (both bands
// zero) is not land.
func (m LandMaskStage) Apply(c *YearlyComposite) (*YearlyComposite, error) {
	if c.BandCount == 0 {
		return c, nil
	}

	green, err := c.Band(m.Green)
	if err != nil {
		return nil, fmt.Errorf("land mask: %w", err)
	}
	swir, err := c.Band(m.Swir)
	if err != nil {
		return nil, fmt.Errorf("land mask: %w", err)
	}

	size := c.Size()
	land := make([]bool, size)
	for i := 0; i < size; i++ {
		if green.Valid[i] && swir.Valid[i] {
			land[i] = MNDWI(float64(green.Data[i]), float64(swir.Data[i])) < 0
		}
	}

	bands := make([]*Band, len(c.Bands))
	for ib, b := range c.Bands {
		out := b.clone(b.Name)
		for i, isLand := range land {
			if !isLand {
				continue
			}
			switch m.Policy {
			case LandZeroSubstitute:
				out.Data[i] = 0
				out.Valid[i] = true
			case LandMask:
				out.Valid[i] = false
			}
		}
		bands[ib] = out
	}

	return &YearlyComposite{
		RasterImage:   c.derive(bands),
		CompositeMeta: c.CompositeMeta,
		Land:          land,
		LandPolicy:    m.Policy,
	}, nil
}
