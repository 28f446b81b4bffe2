package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/dshills/spotvec/internal/storage"
	"github.com/dshills/spotvec/pkg/types"
)

// Feature is an audio feature that advanced search can filter on.
type Feature string

const (
	Acousticness     Feature = "acousticness"
	Danceability     Feature = "danceability"
	Energy           Feature = "energy"
	Instrumentalness Feature = "instrumentalness"
	Tempo            Feature = "tempo"
	Valence          Feature = "valence"
)

// Features lists the filterable features in predicate order.
var Features = []Feature{Acousticness, Danceability, Energy, Instrumentalness, Tempo, Valence}

// Bound is the side of a range filter.
type Bound int

const (
	Min Bound = iota // feature >= value
	Max              // feature <= value
)

func (b Bound) predicate(path []string, value float64) *storage.Where {
	if b == Max {
		return storage.LessThanEqual(path, value)
	}
	return storage.GreaterThanEqual(path, value)
}

// Filter is one range condition on an audio feature.
type Filter struct {
	Feature Feature
	Bound   Bound
	Value   float64
}

// Filters is a conjunction of range conditions.
type Filters []Filter

var ErrInvalidFilter = errors.New("filter value must be a number")

type filterKey struct {
	feature Feature
	bound   Bound
}

// filterKeys maps the request keys onto feature and bound.
var filterKeys = map[string]filterKey{
	"minAcousticness":     {Acousticness, Min},
	"maxAcousticness":     {Acousticness, Max},
	"minDanceability":     {Danceability, Min},
	"maxDanceability":     {Danceability, Max},
	"minEnergy":           {Energy, Min},
	"maxEnergy":           {Energy, Max},
	"minInstrumentalness": {Instrumentalness, Min},
	"maxInstrumentalness": {Instrumentalness, Max},
	"minTempo":            {Tempo, Min},
	"maxTempo":            {Tempo, Max},
	"minValence":          {Valence, Min},
	"maxValence":          {Valence, Max},
}

// ParseFilters reads the recognized min/max keys from a request mapping.
// Unrecognized keys are ignored. The result is ordered by Features, min
// before max, whatever the map order.
func ParseFilters(raw map[string]interface{}) (Filters, error) {
	found := make(map[filterKey]float64)
	for key, v := range raw {
		fk, ok := filterKeys[key]
		if !ok || v == nil {
			continue
		}
		n, err := toNumber(v)
		if err != nil {
			return nil, types.Invalid(fmt.Errorf("%w: %s", ErrInvalidFilter, key))
		}
		found[fk] = n
	}

	var out Filters
	for _, f := range Features {
		for _, b := range []Bound{Min, Max} {
			if n, ok := found[filterKey{f, b}]; ok {
				out = append(out, Filter{Feature: f, Bound: b, Value: n})
			}
		}
	}
	return out, nil
}

func toNumber(v interface{}) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case json.Number:
		return n.Float64()
	case string:
		return strconv.ParseFloat(n, 64)
	}
	return 0, ErrInvalidFilter
}

// where builds the conjunctive predicate, or nil when there are no filters.
func (fs Filters) where() *storage.Where {
	if len(fs) == 0 {
		return nil
	}
	operands := make([]*storage.Where, len(fs))
	for i, f := range fs {
		operands[i] = f.Bound.predicate([]string{"audioFeatures", string(f.Feature)}, f.Value)
	}
	return storage.And(operands...)
}
