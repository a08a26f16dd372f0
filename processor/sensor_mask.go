package processor

import (
	"fmt"

	"github.com/nci/gbathy/utils"
)

// BitMaskParams selects the QA bits flagging a contaminated pixel. A
// pixel is rejected when the shadow bit is set, or when the cloud bit
// is set and, if ConfidenceBit >= 0, the confidence bit is set too.
// EdgeIntersection additionally rejects, in every band, any pixel that
// is invalid in at least one band of the input image.
type BitMaskParams struct {
	QABand           string
	ShadowBit        uint
	CloudBit         uint
	ConfidenceBit    int
	EdgeIntersection bool
}

// NewerGenerationMask is the OLI variant: bits 3 (cloud shadow) and 5
// (cloud) must both be clear.
func NewerGenerationMask(qaBand string) BitMaskParams {
	return BitMaskParams{QABand: qaBand, ShadowBit: 3, CloudBit: 5, ConfidenceBit: -1}
}

// OlderGenerationMask is the TM/ETM+ variant: cloud (5) with high
// confidence (7), or cloud shadow (3), rejects the pixel.
func OlderGenerationMask(qaBand string) BitMaskParams {
	return BitMaskParams{QABand: qaBand, ShadowBit: 3, CloudBit: 5, ConfidenceBit: 7, EdgeIntersection: true}
}

func MaskParamsFromConfig(gen *utils.Generation) BitMaskParams {
	params := BitMaskParams{
		QABand:           gen.QABand,
		ShadowBit:        uint(gen.Mask.ShadowBit),
		CloudBit:         uint(gen.Mask.CloudBit),
		ConfidenceBit:    -1,
		EdgeIntersection: gen.Mask.EdgeIntersection,
	}
	if gen.Mask.ConfidenceBit != nil {
		params.ConfidenceBit = *gen.Mask.ConfidenceBit
	}
	return params
}

// Contaminated applies the bit tests to one QA value.
func (p BitMaskParams) Contaminated(qa uint16) bool {
	if qa&(1<<p.ShadowBit) != 0 {
		return true
	}
	cloud := qa&(1<<p.CloudBit) != 0
	if p.ConfidenceBit >= 0 {
		cloud = cloud && qa&(1<<uint(p.ConfidenceBit)) != 0
	}
	return cloud
}

// Transform returns the masking step as a deferred image transform.
func (p BitMaskParams) Transform() ImageTransform {
	return func(img *RasterImage) (*RasterImage, error) {
		return MaskImage(img, p)
	}
}

// MaskImage marks contaminated pixels invalid in every band of img.
// Values are kept; only validity changes.
func MaskImage(img *RasterImage, p BitMaskParams) (*RasterImage, error) {
	qa, err := img.Band(p.QABand)
	if err != nil {
		return nil, fmt.Errorf("cloud mask: %w", err)
	}

	size := img.Size()
	for _, b := range img.Bands {
		if len(b.Data) != size || len(b.Valid) != size {
			return nil, fmt.Errorf("%w: band %s of %s holds %d pixels, grid has %d", ErrGridMismatch, b.Name, img.ID, len(b.Data), size)
		}
	}

	clear := make([]bool, size)
	for i := range clear {
		clear[i] = qa.Valid[i] && !p.Contaminated(uint16(qa.Data[i]))
	}

	if p.EdgeIntersection {
		for _, b := range img.Bands {
			for i, valid := range b.Valid {
				if !valid {
					clear[i] = false
				}
			}
		}
	}

	bands := make([]*Band, len(img.Bands))
	for ib, b := range img.Bands {
		out := &Band{Name: b.Name, Data: make([]float32, size), Valid: make([]bool, size)}
		copy(out.Data, b.Data)
		for i := range out.Valid {
			out.Valid[i] = b.Valid[i] && clear[i]
		}
		bands[ib] = out
	}
	return img.derive(bands), nil
}
