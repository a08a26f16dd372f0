package processor

import (
	"fmt"
	"sort"
)

// AssembleYears orders depth maps by year and drops the years whose
// composite had no band, i.e. the years without imagery.
func AssembleYears(maps []*DepthMap) []*DepthMap {
	var out []*DepthMap
	for _, d := range maps {
		if d == nil || d.BandCount == 0 {
			continue
		}
		out = append(out, d)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Year < out[j].Year })
	return out
}

// SelectYear picks one year out of an assembled series.
func SelectYear(series []*DepthMap, year int) (*DepthMap, error) {
	for _, d := range series {
		if d.Year == year {
			return d, nil
		}
	}
	return nil, fmt.Errorf("%w: %d", ErrYearNotAvailable, year)
}
