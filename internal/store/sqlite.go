package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/agrisense/maizeguard/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(markStorage(err), "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(markStorage(err), "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS scans (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	timestamp       DATETIME NOT NULL,
	grower_id       TEXT NOT NULL,
	latitude        REAL,
	longitude       REAL,
	prediction      TEXT NOT NULL,
	confidence      REAL NOT NULL,
	all_predictions TEXT NOT NULL,
	weather         TEXT,
	disease_risk    TEXT NOT NULL,
	image_ref       TEXT
);

CREATE TABLE IF NOT EXISTS farms (
	grower_id  TEXT NOT NULL,
	farm_name  TEXT NOT NULL,
	boundary   TEXT NOT NULL,
	updated_at DATETIME NOT NULL,
	PRIMARY KEY (grower_id, farm_name)
);

CREATE INDEX IF NOT EXISTS idx_scans_grower ON scans(grower_id);
CREATE INDEX IF NOT EXISTS idx_scans_timestamp ON scans(timestamp);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, sqliteMigration); err != nil {
		return eris.Wrap(markStorage(err), "sqlite: migrate")
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) AppendScan(ctx context.Context, scan model.ScanRecord) (int64, error) {
	if err := validateScan(scan); err != nil {
		return 0, err
	}

	probsJSON, weatherJSON, err := encodeScanPayload(scan)
	if err != nil {
		return 0, err
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO scans (timestamp, grower_id, latitude, longitude, prediction, confidence, all_predictions, weather, disease_risk, image_ref)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		time.Now().UTC(), scan.GrowerID, scan.Latitude, scan.Longitude,
		scan.Label, scan.Confidence, probsJSON, weatherJSON, string(scan.Risk), scan.ImageRef,
	)
	if err != nil {
		return 0, eris.Wrap(markStorage(err), "sqlite: insert scan")
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, eris.Wrap(markStorage(err), "sqlite: scan id")
	}
	return id, nil
}

func (s *SQLiteStore) ListScans(ctx context.Context, filter ScanFilter) ([]model.ScanRecord, error) {
	if err := validateFilter(filter); err != nil {
		return nil, err
	}

	query := `SELECT id, timestamp, grower_id, latitude, longitude, prediction, confidence, all_predictions, weather, disease_risk, image_ref FROM scans`
	var args []any
	if filter.GrowerID != "" {
		query += ` WHERE grower_id = ?`
		args = append(args, filter.GrowerID)
	}
	// id breaks ties between scans appended within the same clock tick.
	query += ` ORDER BY timestamp DESC, id DESC LIMIT ?`
	args = append(args, filter.Limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(markStorage(err), "sqlite: list scans")
	}
	defer rows.Close()

	var scans []model.ScanRecord
	for rows.Next() {
		var (
			rec         model.ScanRecord
			probsJSON   string
			weatherJSON sql.NullString
			imageRef    sql.NullString
		)
		if err := rows.Scan(&rec.ID, &rec.Timestamp, &rec.GrowerID, &rec.Latitude, &rec.Longitude,
			&rec.Label, &rec.Confidence, &probsJSON, &weatherJSON, &rec.Risk, &imageRef); err != nil {
			return nil, eris.Wrap(markStorage(err), "sqlite: scan row")
		}
		if err := decodeScanPayload(&rec, probsJSON, weatherJSON.String); err != nil {
			return nil, err
		}
		rec.ImageRef = imageRef.String
		scans = append(scans, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(markStorage(err), "sqlite: list scans iterate")
	}
	return scans, nil
}

func (s *SQLiteStore) SaveFarm(ctx context.Context, growerID, farmName string, boundary json.RawMessage) error {
	if err := validateFarm(growerID, farmName, boundary); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO farms (grower_id, farm_name, boundary, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(grower_id, farm_name) DO UPDATE SET boundary = excluded.boundary, updated_at = excluded.updated_at`,
		growerID, farmName, string(boundary), time.Now().UTC(),
	)
	if err != nil {
		return eris.Wrapf(markStorage(err), "sqlite: save farm %s/%s", growerID, farmName)
	}
	return nil
}

func (s *SQLiteStore) ListFarms(ctx context.Context, growerID string) ([]model.FarmBoundary, error) {
	if growerID == "" {
		return nil, eris.Wrap(ErrInvalidInput, "grower id is required")
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT grower_id, farm_name, boundary, updated_at FROM farms WHERE grower_id = ?`,
		growerID,
	)
	if err != nil {
		return nil, eris.Wrap(markStorage(err), "sqlite: list farms")
	}
	defer rows.Close()

	var farms []model.FarmBoundary
	for rows.Next() {
		var (
			fb       model.FarmBoundary
			boundary string
		)
		if err := rows.Scan(&fb.GrowerID, &fb.FarmName, &boundary, &fb.UpdatedAt); err != nil {
			return nil, eris.Wrap(markStorage(err), "sqlite: farm row")
		}
		fb.Boundary = json.RawMessage(boundary)
		farms = append(farms, fb)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(markStorage(err), "sqlite: list farms iterate")
	}
	return farms, nil
}

// helpers

func encodeScanPayload(scan model.ScanRecord) (probs string, weather sql.NullString, err error) {
	probsBytes, err := json.Marshal(scan.Probabilities)
	if err != nil {
		return "", sql.NullString{}, eris.Wrap(err, "store: marshal predictions")
	}
	if scan.Weather != nil {
		weatherBytes, err := json.Marshal(scan.Weather)
		if err != nil {
			return "", sql.NullString{}, eris.Wrap(err, "store: marshal weather")
		}
		weather = sql.NullString{String: string(weatherBytes), Valid: true}
	}
	return string(probsBytes), weather, nil
}

func decodeScanPayload(rec *model.ScanRecord, probsJSON, weatherJSON string) error {
	if probsJSON != "" {
		if err := json.Unmarshal([]byte(probsJSON), &rec.Probabilities); err != nil {
			return eris.Wrap(err, "store: unmarshal predictions")
		}
	}
	if weatherJSON != "" {
		rec.Weather = &model.WeatherSample{}
		if err := json.Unmarshal([]byte(weatherJSON), rec.Weather); err != nil {
			return eris.Wrap(err, "store: unmarshal weather")
		}
	}
	return nil
}
