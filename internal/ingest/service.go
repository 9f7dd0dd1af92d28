// Package ingest orchestrates scan recording: it derives the agronomic risk
// rating from an optional weather sample and persists the composite record.
package ingest

import (
	"context"
	"encoding/json"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/agrisense/maizeguard/internal/boundary"
	"github.com/agrisense/maizeguard/internal/model"
	"github.com/agrisense/maizeguard/internal/risk"
	"github.com/agrisense/maizeguard/internal/store"
)

// DefaultFarmName is recorded when the caller does not name the farm.
const DefaultFarmName = "Main Farm"

// Service wires risk assessment and the persistence layer. It owns no
// storage itself; the store handle is injected by the caller.
type Service struct {
	store store.Store
}

// New creates a Service backed by the given store.
func New(st store.Store) *Service {
	return &Service{store: st}
}

// ScanInput carries one classification event into the store.
type ScanInput struct {
	GrowerID       string
	Latitude       *float64
	Longitude      *float64
	Classification model.ClassificationResult
	Weather        *model.WeatherSample
	ImageRef       string
}

// IngestScan validates the input, derives the risk level and appends a scan
// record. A missing weather sample degrades the risk to Unknown rather than
// failing the ingestion; a storage error fails it.
func (s *Service) IngestScan(ctx context.Context, in ScanInput) (int64, error) {
	if in.GrowerID == "" {
		return 0, eris.Wrap(store.ErrInvalidInput, "ingest: grower id is required")
	}
	if err := validateClassification(in.Classification); err != nil {
		return 0, err
	}

	level := risk.FromSample(in.Weather)

	id, err := s.store.AppendScan(ctx, model.ScanRecord{
		GrowerID:      in.GrowerID,
		Latitude:      in.Latitude,
		Longitude:     in.Longitude,
		Label:         in.Classification.Label,
		Confidence:    in.Classification.Confidence,
		Probabilities: in.Classification.Probabilities,
		Weather:       in.Weather,
		Risk:          level,
		ImageRef:      in.ImageRef,
	})
	if err != nil {
		return 0, eris.Wrap(err, "ingest: append scan")
	}

	zap.L().Info("scan recorded",
		zap.Int64("scan_id", id),
		zap.String("grower_id", in.GrowerID),
		zap.String("prediction", in.Classification.Label),
		zap.String("disease_risk", string(level)),
	)
	return id, nil
}

// ListScans returns the most recent scans, newest first. A non-positive
// limit falls back to the default page size.
func (s *Service) ListScans(ctx context.Context, growerID string, limit int) ([]model.ScanRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.store.ListScans(ctx, store.ScanFilter{GrowerID: growerID, Limit: limit})
}

// SaveFarm validates the boundary geometry and upserts it under
// (grower, farm name), defaulting the farm name when absent.
func (s *Service) SaveFarm(ctx context.Context, growerID, farmName string, geometry json.RawMessage) error {
	if growerID == "" {
		return eris.Wrap(store.ErrInvalidInput, "ingest: grower id is required")
	}
	if farmName == "" {
		farmName = DefaultFarmName
	}
	if err := boundary.Validate(geometry); err != nil {
		return eris.Wrap(store.ErrInvalidInput, err.Error())
	}
	return s.store.SaveFarm(ctx, growerID, farmName, geometry)
}

// ListFarms returns all current boundaries for the grower.
func (s *Service) ListFarms(ctx context.Context, growerID string) ([]model.FarmBoundary, error) {
	return s.store.ListFarms(ctx, growerID)
}

func validateClassification(c model.ClassificationResult) error {
	if c.Label == "" {
		return eris.Wrap(store.ErrInvalidInput, "ingest: prediction label is required")
	}
	if c.Confidence < 0 || c.Confidence > 1 {
		return eris.Wrapf(store.ErrInvalidInput, "ingest: confidence %v outside [0,1]", c.Confidence)
	}
	for label, p := range c.Probabilities {
		if p < 0 || p > 1 {
			return eris.Wrapf(store.ErrInvalidInput, "ingest: probability %v for %q outside [0,1]", p, label)
		}
	}
	return nil
}
