package processor

import (
	"fmt"
	"strings"

	"github.com/nci/gbathy/utils"
)

// ClampDepth bounds a depth value to [DepthMin, DepthMax].
func ClampDepth(v float64) float64 {
	if v < utils.DepthMin {
		return utils.DepthMin
	}
	if v > utils.DepthMax {
		return utils.DepthMax
	}
	return v
}

// Clamp returns a new depth map with every valid value clamped and the
// composite provenance attached as properties.
func Clamp(d *DepthMap) *DepthMap {
	var bands []*Band
	if depth := d.Depth(); depth != nil {
		out := NewBand(depth.Name, len(depth.Data))
		for i, v := range depth.Data {
			if !depth.Valid[i] {
				continue
			}
			out.Data[i] = float32(ClampDepth(float64(v)))
			out.Valid[i] = true
		}
		bands = []*Band{out}
	}

	img := d.derive(bands)
	img.Properties["year"] = fmt.Sprint(d.Year)
	img.Properties["image_list"] = strings.Join(d.ImageIDs, ",")
	img.Properties["n_bands"] = fmt.Sprint(d.BandCount)

	return &DepthMap{
		RasterImage:   img,
		CompositeMeta: d.CompositeMeta,
		Land:          d.Land,
		Degenerate:    d.Degenerate,
	}
}
