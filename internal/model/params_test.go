package model

import (
	"errors"
	"math"
	"testing"
)

func TestParamNamesCoverAllFields(t *testing.T) {
	names := ParamNames()
	if len(names) != 14 {
		t.Fatalf("expected 14 parameter names, got %d: %v", len(names), names)
	}
	ref := ReferenceParams()
	for _, name := range names {
		if _, ok := ref.Get(name); !ok {
			t.Fatalf("missing getter for %s", name)
		}
	}
}

func TestWithReturnsCopy(t *testing.T) {
	ref := ReferenceParams()
	changed, err := ref.With(ParamSwSwConNew, 0.25)
	if err != nil {
		t.Fatalf("with: %v", err)
	}
	if changed.SwSwConNew != 0.25 {
		t.Fatalf("expected updated value, got %f", changed.SwSwConNew)
	}
	if ref.SwSwConNew == 0.25 {
		t.Fatal("expected original params untouched")
	}
	if _, err := ref.With("bogus", 1); !errors.Is(err, ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestParamsFromMap(t *testing.T) {
	out, err := ParamsFromMap(ReferenceParams(), map[string]float64{ParamInitSwing: 1.5})
	if err != nil {
		t.Fatalf("from map: %v", err)
	}
	if out.InitSwing != 1.5 || out.InitStance != ReferenceParams().InitStance {
		t.Fatalf("unexpected params: %+v", out)
	}
	if _, err := ParamsFromMap(CouplingParams{}, map[string]float64{"nope": 1}); err == nil {
		t.Fatal("expected unknown parameter error")
	}
	roundTrip, err := ParamsFromMap(CouplingParams{}, ReferenceParams().Map())
	if err != nil {
		t.Fatalf("from map: %v", err)
	}
	if roundTrip != ReferenceParams() {
		t.Fatalf("expected map round trip, got %+v", roundTrip)
	}
}

func TestValidateRejectsNonFinite(t *testing.T) {
	if err := ReferenceParams().Validate(); err != nil {
		t.Fatalf("reference params rejected: %v", err)
	}
	bad := ReferenceParams()
	bad.StStCon = math.NaN()
	err := bad.Validate()
	var cfgErr *ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	if cfgErr.Field != ParamStStCon {
		t.Fatalf("unexpected field %q", cfgErr.Field)
	}
	bad = ReferenceParams()
	bad.InitSwing = math.Inf(1)
	if err := bad.Validate(); !errors.Is(err, ErrConfiguration) {
		t.Fatalf("expected inf rejection, got %v", err)
	}
}

func TestPhaseTagString(t *testing.T) {
	if got := (PhaseTag{Limb: 2, Phase: PhaseStance}).String(); got != "stance2" {
		t.Fatalf("unexpected tag %q", got)
	}
	if PhaseSwing.Opposite() != PhaseStance || PhaseStance.Opposite() != PhaseSwing {
		t.Fatal("unexpected opposite phase")
	}
}
