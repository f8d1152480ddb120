package domain_test

import (
	"math"
	"testing"

	"plant-voice/internal/domain"
)

func TestTemperatureCondition(t *testing.T) {
	tests := []struct {
		temp float64
		want domain.Condition
	}{
		{5, domain.ConditionHighlyStressed},
		{9.9, domain.ConditionHighlyStressed},
		{10, domain.ConditionModeratelyStressed},
		{14.9, domain.ConditionModeratelyStressed},
		{15, domain.ConditionHappy},
		{24, domain.ConditionHappy},
		{24.5, domain.ConditionModeratelyStressed},
		{27, domain.ConditionModeratelyStressed},
		{28, domain.ConditionUnknown},
		{30, domain.ConditionUnknown},
		{30.1, domain.ConditionHighlyStressed},
		{math.NaN(), domain.ConditionUnknown},
	}

	for _, tt := range tests {
		if got := domain.TemperatureCondition(tt.temp); got != tt.want {
			t.Errorf("TemperatureCondition(%v): got %s, want %s", tt.temp, got, tt.want)
		}
	}
}

func TestPercentCondition(t *testing.T) {
	tests := []struct {
		pct  float64
		want domain.Condition
	}{
		{19, domain.ConditionHighlyStressed},
		{20, domain.ConditionModeratelyStressed},
		{39.5, domain.ConditionModeratelyStressed},
		{40, domain.ConditionHappy},
		{60, domain.ConditionHappy},
		{60.5, domain.ConditionModeratelyStressed},
		{80, domain.ConditionModeratelyStressed},
		{81, domain.ConditionHighlyStressed},
	}

	for _, tt := range tests {
		if got := domain.PercentCondition(tt.pct); got != tt.want {
			t.Errorf("PercentCondition(%v): got %s, want %s", tt.pct, got, tt.want)
		}
	}
}

func TestEvaluatePlant_Overall(t *testing.T) {
	tests := []struct {
		name     string
		readings domain.Readings
		want     domain.Condition
	}{
		{
			name:     "all happy",
			readings: domain.Readings{TemperatureC: 20, HumidityPct: 50, SoilMoisturePct: 50},
			want:     domain.ConditionHappy,
		},
		{
			name:     "dry soil wins",
			readings: domain.Readings{TemperatureC: 20, HumidityPct: 50, SoilMoisturePct: 10},
			want:     domain.ConditionHighlyStressed,
		},
		{
			name:     "moderate humidity",
			readings: domain.Readings{TemperatureC: 20, HumidityPct: 70, SoilMoisturePct: 50},
			want:     domain.ConditionModeratelyStressed,
		},
		{
			name:     "highly beats moderately",
			readings: domain.Readings{TemperatureC: 12, HumidityPct: 90, SoilMoisturePct: 50},
			want:     domain.ConditionHighlyStressed,
		},
		{
			name:     "unknown temperature is mixed",
			readings: domain.Readings{TemperatureC: 29, HumidityPct: 50, SoilMoisturePct: 50},
			want:     domain.ConditionMixed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status := domain.EvaluatePlant(tt.readings)
			if status.Overall != tt.want {
				t.Errorf("Overall: got %s, want %s", status.Overall, tt.want)
			}
		})
	}
}

func TestEmoji(t *testing.T) {
	if got := domain.Emoji(domain.ConditionHappy, func(int) int { return 1 }); got != "🌿" {
		t.Errorf("happy emoji: got %s", got)
	}
	if got := domain.Emoji(domain.ConditionUnknown, nil); got != domain.UnknownEmoji {
		t.Errorf("unknown emoji: got %s, want %s", got, domain.UnknownEmoji)
	}
	if got := domain.Emoji(domain.ConditionMixed, func(int) int { return 7 }); got != "🤔" {
		t.Errorf("out-of-range pick should fall back to first emoji, got %s", got)
	}
}

func TestOutcome_UserText(t *testing.T) {
	if got := domain.TextOutcome("hello plant").UserText(); got != "hello plant" {
		t.Errorf("text outcome: got %q", got)
	}
	failed := domain.FailedOutcome(domain.FailureEmptyResult, "")
	if failed.OK() {
		t.Error("failed outcome reported OK")
	}
	if got := failed.UserText(); got != domain.FallbackText {
		t.Errorf("failed outcome: got %q, want %q", got, domain.FallbackText)
	}
	if failed.Label() != "empty_result" {
		t.Errorf("label: got %s", failed.Label())
	}
}
