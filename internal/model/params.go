package model

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

// ErrConfiguration marks malformed parameters or topology detected before a
// simulation is built.
var ErrConfiguration = errors.New("invalid cpg configuration")

// ConfigurationError names the offending field of a rejected configuration.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%s: %s: %s", ErrConfiguration, e.Field, e.Reason)
}

func (e *ConfigurationError) Unwrap() error {
	return ErrConfiguration
}

// CouplingParams holds the drive and coupling coefficients of the CPG.
type CouplingParams struct {
	InitSwing          float64 `json:"init_swing" yaml:"init_swing"`
	InitStance         float64 `json:"init_stance" yaml:"init_stance"`
	InnerInhibit       float64 `json:"inner_inhibit" yaml:"inner_inhibit"`
	SpeedSwing         float64 `json:"speed_swing" yaml:"speed_swing"`
	SpeedStance        float64 `json:"speed_stance" yaml:"speed_stance"`
	SwSwCon            float64 `json:"sw_sw_con" yaml:"sw_sw_con"`
	SwStCon            float64 `json:"sw_st_con" yaml:"sw_st_con"`
	StSwCon            float64 `json:"st_sw_con" yaml:"st_sw_con"`
	StStCon            float64 `json:"st_st_con" yaml:"st_st_con"`
	SwSwConNew         float64 `json:"sw_sw_con_new" yaml:"sw_sw_con_new"`
	SwStConNew         float64 `json:"sw_st_con_new" yaml:"sw_st_con_new"`
	StSwConNew         float64 `json:"st_sw_con_new" yaml:"st_sw_con_new"`
	StStConNew         float64 `json:"st_st_con_new" yaml:"st_st_con_new"`
	InitStancePosition float64 `json:"init_stance_position" yaml:"init_stance_position"`
}

// Parameter names as used by search spaces and config files.
const (
	ParamInitSwing          = "init_swing"
	ParamInitStance         = "init_stance"
	ParamInnerInhibit       = "inner_inhibit"
	ParamSpeedSwing         = "speed_swing"
	ParamSpeedStance        = "speed_stance"
	ParamSwSwCon            = "sw_sw_con"
	ParamSwStCon            = "sw_st_con"
	ParamStSwCon            = "st_sw_con"
	ParamStStCon            = "st_st_con"
	ParamSwSwConNew         = "sw_sw_con_new"
	ParamSwStConNew         = "sw_st_con_new"
	ParamStSwConNew         = "st_sw_con_new"
	ParamStStConNew         = "st_st_con_new"
	ParamInitStancePosition = "init_stance_position"
)

func (p *CouplingParams) fields() map[string]*float64 {
	return map[string]*float64{
		ParamInitSwing:          &p.InitSwing,
		ParamInitStance:         &p.InitStance,
		ParamInnerInhibit:       &p.InnerInhibit,
		ParamSpeedSwing:         &p.SpeedSwing,
		ParamSpeedStance:        &p.SpeedStance,
		ParamSwSwCon:            &p.SwSwCon,
		ParamSwStCon:            &p.SwStCon,
		ParamStSwCon:            &p.StSwCon,
		ParamStStCon:            &p.StStCon,
		ParamSwSwConNew:         &p.SwSwConNew,
		ParamSwStConNew:         &p.SwStConNew,
		ParamStSwConNew:         &p.StSwConNew,
		ParamStStConNew:         &p.StStConNew,
		ParamInitStancePosition: &p.InitStancePosition,
	}
}

// ParamNames lists every coefficient name in sorted order.
func ParamNames() []string {
	var p CouplingParams
	names := make([]string, 0, 14)
	for name := range p.fields() {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Get returns the coefficient with the given name.
func (p CouplingParams) Get(name string) (float64, bool) {
	ptr, ok := p.fields()[name]
	if !ok {
		return 0, false
	}
	return *ptr, true
}

// With returns a copy of p with the named coefficient replaced.
func (p CouplingParams) With(name string, value float64) (CouplingParams, error) {
	ptr, ok := p.fields()[name]
	if !ok {
		return CouplingParams{}, &ConfigurationError{Field: name, Reason: "unknown parameter"}
	}
	*ptr = value
	return p, nil
}

// Map returns the coefficients keyed by name.
func (p CouplingParams) Map() map[string]float64 {
	out := make(map[string]float64, 14)
	for name, ptr := range p.fields() {
		out[name] = *ptr
	}
	return out
}

// ParamsFromMap builds a parameter set from named values. Missing names keep
// the values of base; unknown names are rejected.
func ParamsFromMap(base CouplingParams, values map[string]float64) (CouplingParams, error) {
	out := base
	fields := out.fields()
	for name, value := range values {
		ptr, ok := fields[name]
		if !ok {
			return CouplingParams{}, &ConfigurationError{Field: name, Reason: "unknown parameter"}
		}
		*ptr = value
	}
	return out, nil
}

// Validate rejects non-finite coefficients.
func (p CouplingParams) Validate() error {
	for _, name := range ParamNames() {
		v, _ := p.Get(name)
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return &ConfigurationError{Field: name, Reason: fmt.Sprintf("must be finite, got %v", v)}
		}
	}
	return nil
}

// ReferenceParams returns the best-known tuned parameter set.
func ReferenceParams() CouplingParams {
	return CouplingParams{
		InitStance:         0.50191,
		InitStancePosition: 0.49604,
		InitSwing:          4.6773,
		SpeedStance:        3.8701,
		SpeedSwing:         3.4240,
		InnerInhibit:       -0.44423,
		StStCon:            0.77360,
		StSwCon:            -0.95284,
		SwStCon:            -0.95586,
		SwSwCon:            0.082690,
		SwSwConNew:         -0.457560934339573,
		StSwConNew:         -0.7718541665303388,
		SwStConNew:         -0.7451284086805224,
		StStConNew:         0.048201438505927174,
	}
}
