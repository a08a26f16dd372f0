package processor

import (
	"fmt"
	"math"

	"github.com/nci/gbathy/utils"
)

// DegeneratePolicy decides what happens to a pixel whose log ratio
// cannot be computed: non positive reflectance, zero denominator or a
// non finite depth.
type DegeneratePolicy int

const (
	DegenerateInvalid DegeneratePolicy = iota
	DegenerateError
)

func (p DegeneratePolicy) String() string {
	switch p {
	case DegenerateInvalid:
		return utils.DegeneratePolicyInvalid
	case DegenerateError:
		return utils.DegeneratePolicyError
	default:
		return fmt.Sprintf("DegeneratePolicy(%d)", int(p))
	}
}

func ParseDegeneratePolicy(s string) (DegeneratePolicy, error) {
	switch s {
	case utils.DegeneratePolicyInvalid, "":
		return DegenerateInvalid, nil
	case utils.DegeneratePolicyError:
		return DegenerateError, nil
	default:
		return 0, fmt.Errorf("unknown degenerate policy %q", s)
	}
}

// Log ratio coefficients, scaled by exp(chlaExponent * chla).
const (
	m0Base       = 52.073
	m1Base       = 50.156
	chlaExponent = 0.957
)

// DepthModel is the two band log ratio bathymetry model:
// depth = m0 * ln(rrs[Numerator]) / ln(rrs[Denominator]) - m1.
type DepthModel struct {
	Chla        float64
	Numerator   string
	Denominator string
	Policy      DegeneratePolicy
}

// NewDepthModel reads the ratio from canonical positions 1 and 2.
func NewDepthModel(chla float64, policy DegeneratePolicy, canonical []string) (DepthModel, error) {
	if len(canonical) != len(utils.CanonicalBands) {
		return DepthModel{}, fmt.Errorf("depth model: canonical schema %v must have %d bands", canonical, len(utils.CanonicalBands))
	}
	return DepthModel{Chla: chla, Numerator: canonical[1], Denominator: canonical[2], Policy: policy}, nil
}

func (m DepthModel) Coefficients() (m0, m1 float64) {
	k := math.Exp(chlaExponent * m.Chla)
	return m0Base * k, m1Base * k
}

// DepthFromLog evaluates the model on already log transformed values.
func (m DepthModel) DepthFromLog(lnNum, lnDen float64) float64 {
	m0, m1 := m.Coefficients()
	return m0*(lnNum/lnDen) - m1
}

// PixelDepth evaluates the model on two rrs1000 values. ok is false
// when the ratio is degenerate.
func (m DepthModel) PixelDepth(rrsNum, rrsDen float64) (depth float64, ok bool) {
	if rrsNum <= 0 || rrsDen <= 0 {
		return math.NaN(), false
	}
	lnDen := math.Log(rrsDen)
	if lnDen == 0 {
		return math.NaN(), false
	}
	depth = m.DepthFromLog(math.Log(rrsNum), lnDen)
	if math.IsNaN(depth) || math.IsInf(depth, 0) {
		return depth, false
	}
	return depth, true
}

// Invert turns a reflectance composite into an unclamped depth map.
// Depth is only defined where both model bands are valid. Land pixels
// get no depth and are not counted as degenerate, whatever the land
// policy wrote into them.
func (m DepthModel) Invert(c *YearlyComposite) (*DepthMap, error) {
	if c.BandCount == 0 {
		return &DepthMap{
			RasterImage:   c.derive(nil),
			CompositeMeta: c.CompositeMeta,
		}, nil
	}

	num, err := c.Band(m.Numerator)
	if err != nil {
		return nil, fmt.Errorf("depth model: %w", err)
	}
	den, err := c.Band(m.Denominator)
	if err != nil {
		return nil, fmt.Errorf("depth model: %w", err)
	}

	size := c.Size()
	depth := NewBand(DepthBandName, size)
	degenerate := 0
	for i := 0; i < size; i++ {
		if !num.Valid[i] || !den.Valid[i] {
			continue
		}
		if c.Land != nil && c.Land[i] {
			continue
		}
		d, ok := m.PixelDepth(float64(num.Data[i]), float64(den.Data[i]))
		if !ok {
			if m.Policy == DegenerateError {
				return nil, fmt.Errorf("%w: year %d pixel %d (%s=%v, %s=%v)", ErrDegenerateRatio, c.Year, i, m.Numerator, num.Data[i], m.Denominator, den.Data[i])
			}
			degenerate++
			continue
		}
		depth.Data[i] = float32(d)
		depth.Valid[i] = true
	}

	return &DepthMap{
		RasterImage:   c.derive([]*Band{depth}),
		CompositeMeta: c.CompositeMeta,
		Land:          c.Land,
		Degenerate:    degenerate,
	}, nil
}
