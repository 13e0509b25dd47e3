package tuning

import (
	"fmt"
	"math"
	"math/rand"
	"sort"

	"quadcpg/internal/model"
)

// Range is a closed uniform interval.
type Range struct {
	Low  float64 `yaml:"low" json:"low"`
	High float64 `yaml:"high" json:"high"`
}

func (r Range) sample(rng *rand.Rand) float64 {
	return r.Low + rng.Float64()*(r.High-r.Low)
}

func (r Range) clamp(v float64) float64 {
	return math.Max(r.Low, math.Min(r.High, v))
}

// SearchSpace pins some parameters and samples the rest uniformly. A
// parameter named in neither map keeps its value from the base vector.
type SearchSpace struct {
	Fixed  map[string]float64 `yaml:"fixed" json:"fixed"`
	Ranges map[string]Range   `yaml:"ranges" json:"ranges"`
}

// DefaultSearchSpace fixes the limb and adjacent coupling parameters at the
// reference values and searches the diagonal coupling.
func DefaultSearchSpace() SearchSpace {
	ref := model.ReferenceParams().Map()
	space := SearchSpace{
		Fixed: make(map[string]float64, len(ref)),
		Ranges: map[string]Range{
			model.ParamSwSwConNew: {Low: -1, High: 1},
			model.ParamStSwConNew: {Low: -1, High: 0},
			model.ParamSwStConNew: {Low: -1, High: 0},
			model.ParamStStConNew: {Low: 0, High: 1},
		},
	}
	for name, v := range ref {
		if _, searched := space.Ranges[name]; !searched {
			space.Fixed[name] = v
		}
	}
	return space
}

// Free returns the searched parameter names in order.
func (s SearchSpace) Free() []string {
	names := make([]string, 0, len(s.Ranges))
	for name := range s.Ranges {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Validate rejects unknown names, overlaps and inverted ranges.
func (s SearchSpace) Validate() error {
	known := make(map[string]bool)
	for _, name := range model.ParamNames() {
		known[name] = true
	}
	for name, v := range s.Fixed {
		if !known[name] {
			return &model.ConfigurationError{Field: "search.fixed." + name, Reason: "unknown parameter"}
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return &model.ConfigurationError{Field: "search.fixed." + name, Reason: "must be finite"}
		}
	}
	for name, r := range s.Ranges {
		field := "search.ranges." + name
		if !known[name] {
			return &model.ConfigurationError{Field: field, Reason: "unknown parameter"}
		}
		if _, dup := s.Fixed[name]; dup {
			return &model.ConfigurationError{Field: field, Reason: "parameter is also fixed"}
		}
		if math.IsNaN(r.Low) || math.IsNaN(r.High) || math.IsInf(r.Low, 0) || math.IsInf(r.High, 0) || r.Low > r.High {
			return &model.ConfigurationError{Field: field, Reason: fmt.Sprintf("invalid range [%v, %v]", r.Low, r.High)}
		}
	}
	return nil
}

// Sample draws one vector: base, overlaid with Fixed, then Ranges.
func (s SearchSpace) Sample(rng *rand.Rand, base model.CouplingParams) (model.CouplingParams, error) {
	out, err := model.ParamsFromMap(base, s.Fixed)
	if err != nil {
		return model.CouplingParams{}, err
	}
	for _, name := range s.Free() {
		if out, err = out.With(name, s.Ranges[name].sample(rng)); err != nil {
			return model.CouplingParams{}, err
		}
	}
	return out, nil
}

// Clamp pulls the free parameters of p back into their ranges.
func (s SearchSpace) Clamp(p model.CouplingParams) model.CouplingParams {
	for name, r := range s.Ranges {
		v, ok := p.Get(name)
		if !ok {
			continue
		}
		p, _ = p.With(name, r.clamp(v))
	}
	return p
}

// Contains reports whether p matches Fixed and lies within Ranges.
func (s SearchSpace) Contains(p model.CouplingParams) bool {
	for name, want := range s.Fixed {
		if v, ok := p.Get(name); !ok || v != want {
			return false
		}
	}
	for name, r := range s.Ranges {
		v, ok := p.Get(name)
		if !ok || v < r.Low || v > r.High {
			return false
		}
	}
	return true
}
