package model

import (
	"encoding/json"
	"time"
)

// RiskLevel is the ordinal agronomic disease-risk classification derived
// from weather conditions at scan time.
type RiskLevel string

const (
	RiskUnknown  RiskLevel = "Unknown"
	RiskLow      RiskLevel = "Low"
	RiskModerate RiskLevel = "Moderate"
	RiskHigh     RiskLevel = "High"
)

// WeatherSample is a point-in-time observation from the weather gateway.
// Fields are pointers because the provider may omit any of them; a missing
// temperature or humidity makes risk assessment impossible.
type WeatherSample struct {
	Temperature   *float64 `json:"temperature,omitempty"`
	Humidity      *float64 `json:"humidity,omitempty"`
	Precipitation *float64 `json:"precipitation,omitempty"`
	WindSpeed     *float64 `json:"wind_speed,omitempty"`
}

// ClassificationResult is the normalized output of the prediction gateway.
type ClassificationResult struct {
	Label         string             `json:"prediction"`
	Confidence    float64            `json:"confidence"`
	Probabilities map[string]float64 `json:"all_predictions"`
}

// ScanRecord is one persisted disease-classification event. Records are
// immutable once written; the store only appends and reads.
type ScanRecord struct {
	ID            int64              `json:"id"`
	Timestamp     time.Time          `json:"timestamp"`
	GrowerID      string             `json:"grower_id"`
	Latitude      *float64           `json:"latitude,omitempty"`
	Longitude     *float64           `json:"longitude,omitempty"`
	Label         string             `json:"prediction"`
	Confidence    float64            `json:"confidence"`
	Probabilities map[string]float64 `json:"all_predictions"`
	Weather       *WeatherSample     `json:"weather,omitempty"`
	Risk          RiskLevel          `json:"disease_risk"`
	ImageRef      string             `json:"image_ref,omitempty"`
}

// FarmBoundary is a named polygon delineating a grower's field. At most one
// row exists per (grower, farm name); saving again replaces the geometry.
type FarmBoundary struct {
	GrowerID  string          `json:"grower_id"`
	FarmName  string          `json:"farm_name"`
	Boundary  json.RawMessage `json:"boundary"`
	UpdatedAt time.Time       `json:"updated_at"`
}
