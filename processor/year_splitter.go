package processor

// YearSplitter turns each image pool into one plan per year of the
// configured inclusive range.
type YearSplitter struct {
	In        chan *ImageSeries
	Out       chan *YearPlan
	Error     chan error
	StartYear int
	FinalYear int
	Params    ModelParams
}

func NewYearSplitter(startYear, finalYear int, params ModelParams, errChan chan error) *YearSplitter {
	return &YearSplitter{
		In:        make(chan *ImageSeries, 100),
		Out:       make(chan *YearPlan, 100),
		Error:     errChan,
		StartYear: startYear,
		FinalYear: finalYear,
		Params:    params,
	}
}

func (ys *YearSplitter) Run() {
	defer close(ys.Out)
	for pool := range ys.In {
		for _, plan := range SplitYears(pool, ys.StartYear, ys.FinalYear, ys.Params) {
			ys.Out <- plan
		}
	}
}

// SplitYears builds the year plans of pool. Plans of years without any
// image are kept: they evaluate to an empty depth map.
func SplitYears(pool *ImageSeries, startYear, finalYear int, params ModelParams) []*YearPlan {
	var plans []*YearPlan
	for year := startYear; year <= finalYear; year++ {
		plans = append(plans, &YearPlan{Year: year, Series: pool.FilterYear(year), Params: params})
	}
	return plans
}
