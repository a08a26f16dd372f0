package processor

// MergeSeries concatenates harmonised series into one pool.
// Acquisitions present in more than one input are not deduplicated.
func MergeSeries(parts ...*HarmonizedSeries) *ImageSeries {
	pool := NewImageSeries()
	for _, p := range parts {
		if p == nil {
			continue
		}
		pool = pool.Merge(p.series)
	}
	return pool
}
