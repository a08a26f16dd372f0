package processor

import (
	"context"
	"fmt"

	"github.com/nci/gbathy/utils"
)

// ModelParams are the per run constants of the depth retrieval.
type ModelParams struct {
	Canonical        []string
	Chla             float64
	LandPolicy       LandPolicy
	DegeneratePolicy DegeneratePolicy
}

func ModelParamsFromConfig(cfg *utils.Config) (ModelParams, error) {
	land, err := ParseLandPolicy(cfg.LandPolicy)
	if err != nil {
		return ModelParams{}, err
	}
	degenerate, err := ParseDegeneratePolicy(cfg.DegeneratePolicy)
	if err != nil {
		return ModelParams{}, err
	}
	return ModelParams{
		Canonical:        append([]string{}, cfg.CanonicalBands...),
		Chla:             cfg.Chla,
		LandPolicy:       land,
		DegeneratePolicy: degenerate,
	}, nil
}

// YearPlan is the deferred computation of one year's depth map. Plans
// of different years share nothing and can be evaluated in any order.
type YearPlan struct {
	Year   int
	Series *ImageSeries
	Params ModelParams
}

// YearEvaluator materialises year plans, locally or on a remote worker.
type YearEvaluator interface {
	Evaluate(ctx context.Context, plan *YearPlan) (*DepthMap, error)
}

// LocalEvaluator evaluates plans in process.
type LocalEvaluator struct{}

func (LocalEvaluator) Evaluate(ctx context.Context, plan *YearPlan) (*DepthMap, error) {
	return EvaluateYear(ctx, plan)
}

// EvaluateYear runs composite, land mask, reflectance conversion,
// depth inversion and clamp for one year.
func EvaluateYear(ctx context.Context, plan *YearPlan) (*DepthMap, error) {
	// acquisition order keeps the provenance list stable across
	// generation merge orders
	images, err := plan.Series.Sorted().Materialize(ctx)
	if err != nil {
		return nil, err
	}

	comp, err := TemporalCompositor{Canonical: plan.Params.Canonical}.Composite(plan.Year, images)
	if err != nil {
		return nil, err
	}

	landMask, err := NewLandMaskStage(plan.Params.LandPolicy, plan.Params.Canonical)
	if err != nil {
		return nil, err
	}
	model, err := NewDepthModel(plan.Params.Chla, plan.Params.DegeneratePolicy, plan.Params.Canonical)
	if err != nil {
		return nil, err
	}

	comp, err = landMask.Apply(comp)
	if err != nil {
		return nil, err
	}

	depth, err := model.Invert(ConvertReflectance(comp))
	if err != nil {
		return nil, fmt.Errorf("year %d: %w", plan.Year, err)
	}
	return Clamp(depth), nil
}
