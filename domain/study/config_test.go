package study

import (
	"encoding/json"
	"math"
	"strings"
	"testing"
)

func TestDays_JSONRoundTrip(t *testing.T) {
	b, err := json.Marshal(Days(math.Inf(1)))
	if err != nil {
		t.Fatalf("marshal +Inf: %v", err)
	}
	if string(b) != `"inf"` {
		t.Errorf(`marshal +Inf: got %s, want "inf"`, b)
	}

	var d Days
	if err := json.Unmarshal([]byte(`"inf"`), &d); err != nil {
		t.Fatalf("unmarshal inf: %v", err)
	}
	if !math.IsInf(float64(d), 1) {
		t.Errorf("unmarshal inf: got %g", float64(d))
	}
	if err := json.Unmarshal([]byte(`120`), &d); err != nil || d != 120 {
		t.Errorf("unmarshal 120: got %g, err %v", float64(d), err)
	}
	if err := json.Unmarshal([]byte(`"soon"`), &d); err == nil {
		t.Error("unmarshal of an unrecognized string should fail")
	}
}

func TestConfig_MarshalsWithDisabledArm(t *testing.T) {
	// the "none" arm carries an infinite mean, which plain float64 JSON
	// encoding would reject
	b, err := json.Marshal(DefaultConfig())
	if err != nil {
		t.Fatalf("marshal default config: %v", err)
	}
	if !strings.Contains(string(b), `"censoring_mean":"inf"`) {
		t.Error("disabled arm should encode its mean as \"inf\"")
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(*Config)
		expectError bool
	}{
		{"defaults are valid", func(c *Config) {}, false},
		{"zero sample size", func(c *Config) { c.N = 0 }, true},
		{"negative shape", func(c *Config) { c.Shape = -0.8 }, true},
		{"zero horizon", func(c *Config) { c.HorizonDays = 0 }, true},
		{"zero covariate sd", func(c *Config) { c.CovariateSD = 0 }, true},
		{"no conditions", func(c *Config) { c.Conditions = nil }, true},
		{"unlabeled condition", func(c *Config) { c.Conditions[1].Label = "" }, true},
		{"active condition with zero sd", func(c *Config) { c.Conditions[1].SD = 0 }, true},
		{"inactive condition may skip sd", func(c *Config) { c.Conditions[0].SD = 0 }, false},
		{"no designs", func(c *Config) { c.Designs = nil }, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.expectError && err == nil {
				t.Errorf("expected validation error, got nil")
			}
			if !tc.expectError && err != nil {
				t.Errorf("expected valid config, got %v", err)
			}
		})
	}
}

func TestCensoringCondition_Active(t *testing.T) {
	if (CensoringCondition{Label: "light", Mean: 180, SD: 40}).Active() != true {
		t.Error("finite mean without SkipRandom should be active")
	}
	if (CensoringCondition{Label: "none", Mean: Days(math.Inf(1)), SD: 40}).Active() {
		t.Error("infinite mean disables random censoring")
	}
	if (CensoringCondition{Label: "none", Mean: 180, SD: 40, SkipRandom: true}).Active() {
		t.Error("SkipRandom disables random censoring")
	}
}

func TestConfig_TrueCoxCoefs(t *testing.T) {
	cfg := DefaultConfig()

	one := cfg.TrueCoxCoefs(cfg.Designs[0])
	if len(one) != 1 {
		t.Fatalf("expected 1 coefficient, got %d", len(one))
	}
	if math.Abs(one[0]-(-cfg.Shape*cfg.BetaTreatment)) > 1e-12 {
		t.Errorf("treatment Cox coefficient: got %g, want %g", one[0], -cfg.Shape*cfg.BetaTreatment)
	}

	two := cfg.TrueCoxCoefs(cfg.Designs[1])
	if len(two) != 2 {
		t.Fatalf("expected 2 coefficients, got %d", len(two))
	}
	if math.Abs(two[1]-(-cfg.Shape*cfg.BetaCovariate)) > 1e-12 {
		t.Errorf("covariate Cox coefficient: got %g, want %g", two[1], -cfg.Shape*cfg.BetaCovariate)
	}
}

func TestDataset_DerivedViews(t *testing.T) {
	ds := Dataset{
		Condition: "x",
		Observations: []Observation{
			{Group: GroupPlacebo, Covariates: []float64{12}, Time: 5, Event: StatusEvent},
			{Group: GroupPlacebo, Covariates: []float64{3}, Time: 9, Event: StatusCensored},
			{Group: GroupTreatment, Covariates: []float64{20}, Time: 7, Event: StatusEvent},
		},
	}

	if got := ds.EventCount(); got != 2 {
		t.Errorf("EventCount: got %d, want 2", got)
	}
	if got := ds.CensoredFraction(); math.Abs(got-1.0/3) > 1e-12 {
		t.Errorf("CensoredFraction: got %g, want 1/3", got)
	}
	placebo, treatment := ds.GroupEventCounts()
	if placebo != 1 || treatment != 1 {
		t.Errorf("GroupEventCounts: got (%d, %d), want (1, 1)", placebo, treatment)
	}

	x := ds.DesignMatrix()
	if len(x) != 3 || len(x[0]) != 2 {
		t.Fatalf("DesignMatrix: got %dx%d", len(x), len(x[0]))
	}
	if x[0][0] != 0 || x[2][0] != 1 {
		t.Error("DesignMatrix column 0 must be the treatment indicator")
	}
	if x[1][1] != 3 {
		t.Errorf("DesignMatrix covariate column: got %g, want 3", x[1][1])
	}

	times, events := ds.Times()
	if times[1] != 9 || events[1] != 0 || events[2] != 1 {
		t.Error("Times must return parallel slices in observation order")
	}
}
