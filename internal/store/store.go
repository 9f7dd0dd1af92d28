package store

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/rotisserie/eris"

	"github.com/agrisense/maizeguard/internal/model"
)

// Error kinds surfaced by every store operation. Callers distinguish bad
// requests from persistence failures with eris.Is; a read failure is never
// collapsed into an empty result.
var (
	ErrInvalidInput = eris.New("store: invalid input")
	ErrStorage      = eris.New("store: storage failure")
)

// ScanFilter specifies criteria for listing scan records.
type ScanFilter struct {
	// GrowerID restricts results to one grower; empty means all growers.
	GrowerID string `json:"grower_id,omitempty"`
	// Limit caps the number of rows returned and must be positive.
	Limit int `json:"limit"`
}

// Store is the persistence interface for scan history and farm boundaries.
// Scan rows are append-only; farm rows are replaced whole by key.
type Store interface {
	// Scans
	AppendScan(ctx context.Context, scan model.ScanRecord) (int64, error)
	ListScans(ctx context.Context, filter ScanFilter) ([]model.ScanRecord, error)

	// Farms
	SaveFarm(ctx context.Context, growerID, farmName string, boundary json.RawMessage) error
	ListFarms(ctx context.Context, growerID string) ([]model.FarmBoundary, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// markStorage tags a driver error as ErrStorage while keeping the cause
// visible to eris.Is and error chains.
func markStorage(err error) error {
	return errors.Join(ErrStorage, err)
}

func validateScan(scan model.ScanRecord) error {
	if scan.GrowerID == "" {
		return eris.Wrap(ErrInvalidInput, "grower id is required")
	}
	if scan.Label == "" {
		return eris.Wrap(ErrInvalidInput, "prediction label is required")
	}
	return nil
}

func validateFilter(filter ScanFilter) error {
	if filter.Limit <= 0 {
		return eris.Wrapf(ErrInvalidInput, "limit must be positive, got %d", filter.Limit)
	}
	return nil
}

func validateFarm(growerID, farmName string, boundary json.RawMessage) error {
	if growerID == "" {
		return eris.Wrap(ErrInvalidInput, "grower id is required")
	}
	if farmName == "" {
		return eris.Wrap(ErrInvalidInput, "farm name is required")
	}
	if len(boundary) == 0 {
		return eris.Wrap(ErrInvalidInput, "boundary is required")
	}
	return nil
}
