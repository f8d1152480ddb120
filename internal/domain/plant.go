package domain

import "math"

type Condition string

const (
	ConditionHighlyStressed     Condition = "highly_stressed"
	ConditionModeratelyStressed Condition = "moderately_stressed"
	ConditionHappy              Condition = "happy"
	ConditionMixed              Condition = "mixed"
	ConditionUnknown            Condition = "unknown"
)

type Readings struct {
	TemperatureC    float64 `json:"temperature_c"`
	HumidityPct     float64 `json:"humidity_pct"`
	PressureHPa     float64 `json:"pressure_hpa"`
	SoilMoisturePct float64 `json:"soil_moisture_pct"`
}

type PlantStatus struct {
	Temperature  Condition
	SoilMoisture Condition
	Humidity     Condition
	Overall      Condition
	Readings     Readings
}

// EvaluatePlant classifies each reading and derives the overall mood.
func EvaluatePlant(r Readings) PlantStatus {
	t := TemperatureCondition(r.TemperatureC)
	m := PercentCondition(r.SoilMoisturePct)
	h := PercentCondition(r.HumidityPct)

	return PlantStatus{
		Temperature:  t,
		SoilMoisture: m,
		Humidity:     h,
		Overall:      overall(t, m, h),
		Readings:     r,
	}
}

// TemperatureCondition checks the ranges in order. 27 < t <= 30 falls
// through to unknown.
func TemperatureCondition(t float64) Condition {
	switch {
	case math.IsNaN(t):
		return ConditionUnknown
	case t < 10 || t > 30:
		return ConditionHighlyStressed
	case (t >= 10 && t < 15) || (t > 24 && t <= 27):
		return ConditionModeratelyStressed
	case t >= 15 && t <= 24:
		return ConditionHappy
	default:
		return ConditionUnknown
	}
}

// PercentCondition is shared by soil moisture and relative humidity.
func PercentCondition(p float64) Condition {
	switch {
	case math.IsNaN(p):
		return ConditionUnknown
	case p < 20 || p > 80:
		return ConditionHighlyStressed
	case (p >= 20 && p < 40) || (p > 60 && p <= 80):
		return ConditionModeratelyStressed
	case p >= 40 && p <= 60:
		return ConditionHappy
	default:
		return ConditionUnknown
	}
}

func overall(conds ...Condition) Condition {
	happy := 0
	for _, c := range conds {
		if c == ConditionHighlyStressed {
			return ConditionHighlyStressed
		}
	}
	for _, c := range conds {
		if c == ConditionModeratelyStressed {
			return ConditionModeratelyStressed
		}
		if c == ConditionHappy {
			happy++
		}
	}
	if happy == len(conds) {
		return ConditionHappy
	}
	return ConditionMixed
}

var moodEmojis = map[Condition][]string{
	ConditionHighlyStressed:     {"😱", "🥀"},
	ConditionModeratelyStressed: {"😟", "🍂"},
	ConditionHappy:              {"😄", "🌿"},
	ConditionMixed:              {"🤔", "🌱"},
}

const UnknownEmoji = "❓"

// Emoji returns one of the emojis for mood, picked by pick(n) which must
// return a value in [0, n).
func Emoji(mood Condition, pick func(n int) int) string {
	options, ok := moodEmojis[mood]
	if !ok || len(options) == 0 {
		return UnknownEmoji
	}
	i := 0
	if pick != nil {
		i = pick(len(options))
	}
	if i < 0 || i >= len(options) {
		i = 0
	}
	return options[i]
}

// Reply is what the plant says back, with its mood.
type Reply struct {
	Text  string
	Emoji string
	Mood  Condition
}
