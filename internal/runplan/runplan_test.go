package runplan

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/yielddelta/backtester/internal/strategy"
)

const minimalPlan = `
meta:
  name: smoke
runs:
  - strategy: stable-max
`

func TestLoadBundledPlan(t *testing.T) {
	path := "../../config/plans/concentrated_vs_stable.yaml"
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Skip("plan file not found")
	}

	plan, data, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if plan.Meta.Name != "concentrated-vs-stable" {
		t.Errorf("expected name=concentrated-vs-stable, got %s", plan.Meta.Name)
	}
	if len(plan.Runs) != 7 {
		t.Errorf("expected 7 runs, got %d", len(plan.Runs))
	}
	if len(data) == 0 {
		t.Error("expected raw yaml bytes")
	}

	hash, err := Hash(plan)
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}
	if len(hash) != 64 {
		t.Errorf("expected 64 char hash, got %d", len(hash))
	}
	hash2, _ := Hash(plan)
	if hash != hash2 {
		t.Error("hash not deterministic")
	}
}

func TestParseAppliesDefaults(t *testing.T) {
	plan, err := Parse([]byte(minimalPlan))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if plan.Defaults.Days != DefaultDays {
		t.Errorf("expected days=%d, got %d", DefaultDays, plan.Defaults.Days)
	}
	if plan.Defaults.InitialCapital != DefaultInitialCapital {
		t.Errorf("expected capital=%v, got %v", DefaultInitialCapital, plan.Defaults.InitialCapital)
	}
	if plan.Defaults.RebalanceFrequency != strategy.OnThreshold {
		t.Errorf("expected on-threshold, got %s", plan.Defaults.RebalanceFrequency)
	}
	if plan.Market.AssetID != DefaultAssetID {
		t.Errorf("expected asset %s, got %s", DefaultAssetID, plan.Market.AssetID)
	}
}

func TestParseRejectsUnknownFields(t *testing.T) {
	_, err := Parse([]byte(minimalPlan + "  - strategy: arbitrage\n    gas_cost: 1\n"))
	if err == nil {
		t.Fatal("expected error for unknown field")
	}
	if !errors.Is(err, ErrInvalidPlan) {
		t.Errorf("expected ErrInvalidPlan, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	neg := -1.0
	hourly := strategy.Frequency("hourly")

	tests := []struct {
		name  string
		plan  Plan
		field string
	}{
		{"missing name", Plan{}, "meta.name"},
		{"too many days", withDefaults(Plan{Meta: Meta{Name: "x"}, Defaults: Defaults{Days: 400}}), "defaults.days"},
		{"no runs", withDefaults(Plan{Meta: Meta{Name: "x"}}), "runs"},
		{"unknown strategy", withDefaults(Plan{Meta: Meta{Name: "x"}, Runs: []Run{{Strategy: "hodl"}}}), "runs[0].strategy"},
		{"negative capital override", withDefaults(Plan{Meta: Meta{Name: "x"}, Runs: []Run{{Strategy: strategy.StableMax, InitialCapital: &neg}}}), "runs[0].initial_capital"},
		{"unknown frequency override", withDefaults(Plan{Meta: Meta{Name: "x"}, Runs: []Run{{Strategy: strategy.DeltaNeutral, RebalanceFrequency: &hourly}}}), "runs[0].rebalance_frequency"},
		{"duplicate names", withDefaults(Plan{Meta: Meta{Name: "x"}, Runs: []Run{{Strategy: strategy.StableMax}, {Strategy: strategy.StableMax}}}), "runs[1].name"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(&tt.plan)
			var vErr ValidationError
			if !errors.As(err, &vErr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if vErr.Field != tt.field {
				t.Errorf("expected field %s, got %s", tt.field, vErr.Field)
			}
			if !errors.Is(err, ErrInvalidPlan) {
				t.Error("expected error to wrap ErrInvalidPlan")
			}
		})
	}
}

func withDefaults(p Plan) Plan {
	applyDefaults(&p)
	return p
}

func TestConfigsApplyOverrides(t *testing.T) {
	capital := 5000.0
	weekly := strategy.Weekly
	seed := int64(9)

	plan := withDefaults(Plan{
		Meta:     Meta{Name: "x"},
		Defaults: Defaults{Days: 30, Seed: 1},
		Runs: []Run{
			{Strategy: strategy.ConcentratedLiquidity},
			{Strategy: strategy.ConcentratedLiquidity, Name: "weekly", InitialCapital: &capital, RebalanceFrequency: &weekly, Seed: &seed},
		},
	})

	end := time.Date(2025, 3, 31, 15, 0, 0, 0, time.UTC)
	configs := plan.Configs(end)
	if len(configs) != 2 {
		t.Fatalf("expected 2 configs, got %d", len(configs))
	}

	base := configs[0]
	if base.InitialCapital != DefaultInitialCapital || base.Seed != 1 || base.RebalanceFrequency != strategy.OnThreshold {
		t.Errorf("defaults not applied: %+v", base)
	}
	if !base.EndDate.Equal(time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected end date %v", base.EndDate)
	}
	if !base.StartDate.Equal(time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected start date %v", base.StartDate)
	}

	over := configs[1]
	if over.InitialCapital != 5000 || over.RebalanceFrequency != strategy.Weekly || over.Seed != 9 {
		t.Errorf("overrides not applied: %+v", over)
	}
	if over.FeeRate != DefaultFeeRate {
		t.Errorf("expected default fee rate, got %v", over.FeeRate)
	}
}

func TestWarn(t *testing.T) {
	daily := strategy.Daily
	plan := withDefaults(Plan{
		Meta: Meta{Name: "x"},
		Runs: []Run{
			{Strategy: strategy.StableMax, RebalanceFrequency: &daily},
			{Strategy: strategy.DeltaNeutral},
		},
	})

	codes := map[string]bool{}
	for _, w := range Warn(&plan) {
		codes[w.Code] = true
	}
	for _, want := range []string{"FREQUENCY_IGNORED", "NO_POOL", "UNSEEDED"} {
		if !codes[want] {
			t.Errorf("expected warning %s", want)
		}
	}
}

func TestSnapshot(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "plan.yaml")
	if err := os.WriteFile(path, []byte(minimalPlan), 0o600); err != nil {
		t.Fatal(err)
	}

	plan, data, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	snapshot, err := NewSnapshot(plan, data)
	if err != nil {
		t.Fatalf("NewSnapshot failed: %v", err)
	}
	if snapshot.Name != "smoke" {
		t.Errorf("expected name=smoke, got %s", snapshot.Name)
	}
	if snapshot.PlanYAML != minimalPlan {
		t.Error("expected the raw yaml to be kept")
	}
	if len(snapshot.PlanHash) != 64 {
		t.Errorf("expected 64 char hash, got %d", len(snapshot.PlanHash))
	}
}
