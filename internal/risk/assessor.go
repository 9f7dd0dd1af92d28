// Package risk scores maize disease pressure from weather conditions.
package risk

import "github.com/agrisense/maizeguard/internal/model"

// Assess rates disease risk from temperature (°C), relative humidity (%)
// and precipitation (mm). Temperature and humidity are both required;
// precipitation only adds to the score when present. The thresholds encode
// the optimal conditions for gray leaf spot (warm, humid) and northern corn
// leaf blight (cool, wet) and must not drift.
func Assess(temp, humidity, precipitation *float64) model.RiskLevel {
	if temp == nil || humidity == nil {
		return model.RiskUnknown
	}
	t, h := *temp, *humidity

	score := 0

	// Gray leaf spot: the tight warm-humid band outranks the broader one.
	if t >= 20 && t <= 30 && h > 85 {
		score += 3
	} else if t >= 18 && t <= 32 && h > 75 {
		score += 2
	}

	// Northern corn leaf blight: cool and very humid. Stacks with the above.
	if t >= 15 && t <= 25 && h > 90 {
		score += 2
	}

	if precipitation != nil && *precipitation > 5 {
		score++
	}

	switch {
	case score >= 4:
		return model.RiskHigh
	case score >= 2:
		return model.RiskModerate
	default:
		return model.RiskLow
	}
}

// FromSample rates risk from a weather sample; a nil sample yields Unknown.
func FromSample(w *model.WeatherSample) model.RiskLevel {
	if w == nil {
		return model.RiskUnknown
	}
	return Assess(w.Temperature, w.Humidity, w.Precipitation)
}

// DiseaseCondition describes the weather band in which a disease thrives.
type DiseaseCondition struct {
	Name        string `json:"name"`
	Temperature string `json:"temperature"`
	Humidity    string `json:"humidity"`
	Notes       string `json:"notes"`
}

// Conditions returns the reference data behind the scoring thresholds.
func Conditions() []DiseaseCondition {
	return []DiseaseCondition{
		{
			Name:        "Gray Leaf Spot",
			Temperature: "20-30°C",
			Humidity:    ">85%",
			Notes:       "Warm and humid",
		},
		{
			Name:        "Northern Corn Leaf Blight",
			Temperature: "15-25°C",
			Humidity:    ">90%",
			Notes:       "Cool and wet",
		},
	}
}
