package catalog

import (
	"fmt"
	"strings"

	goeval "github.com/edisonguo/govaluate"
)

var filterVariables = map[string]struct{}{
	"cloud_cover": struct{}{},
	"generation":  struct{}{},
	"id":          struct{}{},
	"year":        struct{}{},
	"month":       struct{}{},
}

// Filter is a boolean expression over scene attributes, e.g.
// "cloud_cover < 60 && month != 1".
type Filter struct {
	expr *goeval.EvaluableExpression
}

// ParseFilter compiles expr. An empty expression keeps every scene.
func ParseFilter(expr string) (*Filter, error) {
	if len(strings.TrimSpace(expr)) == 0 {
		return &Filter{}, nil
	}

	e, err := goeval.NewEvaluableExpression(expr)
	if err != nil {
		return nil, fmt.Errorf("scene filter: %v", err)
	}

	for _, token := range e.Tokens() {
		if token.Kind != goeval.VARIABLE {
			continue
		}
		varName, ok := token.Value.(string)
		if !ok {
			return nil, fmt.Errorf("scene filter: variable token '%v' failed to cast string", token.Value)
		}
		if _, found := filterVariables[varName]; !found {
			return nil, fmt.Errorf("scene filter: variable %v is not supported", varName)
		}
	}
	return &Filter{expr: e}, nil
}

func (f *Filter) Match(rec *SceneRecord) (bool, error) {
	if f == nil || f.expr == nil {
		return true, nil
	}

	parameters := map[string]interface{}{
		"cloud_cover": rec.CloudCover,
		"generation":  rec.Generation,
		"id":          rec.ID,
		"year":        float64(rec.TimeStamp.UTC().Year()),
		"month":       float64(rec.TimeStamp.UTC().Month()),
	}
	result, err := f.expr.Evaluate(parameters)
	if err != nil {
		return false, fmt.Errorf("scene filter: %v", err)
	}

	val, ok := result.(bool)
	if !ok {
		return false, fmt.Errorf("scene filter: result '%v' is not boolean", result)
	}
	return val, nil
}

// Apply returns the records matching the filter and how many were
// removed.
func (f *Filter) Apply(records []*SceneRecord) ([]*SceneRecord, int, error) {
	var kept []*SceneRecord
	for _, rec := range records {
		ok, err := f.Match(rec)
		if err != nil {
			return nil, 0, err
		}
		if ok {
			kept = append(kept, rec)
		}
	}
	return kept, len(records) - len(kept), nil
}
