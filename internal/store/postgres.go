package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/agrisense/maizeguard/internal/db"
	"github.com/agrisense/maizeguard/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the hot-path store operations.
var preparedStatements = map[string]string{
	"insert_scan": `INSERT INTO scans (timestamp, grower_id, latitude, longitude, prediction, confidence, all_predictions, weather, disease_risk, image_ref) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10) RETURNING id`,
	"save_farm":   `INSERT INTO farms (grower_id, farm_name, boundary, updated_at) VALUES ($1, $2, $3, $4) ON CONFLICT (grower_id, farm_name) DO UPDATE SET boundary = EXCLUDED.boundary, updated_at = EXCLUDED.updated_at`,
	"list_farms":  `SELECT grower_id, farm_name, boundary, updated_at FROM farms WHERE grower_id = $1`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(markStorage(err), "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(markStorage(err), "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS scans (
	id              BIGSERIAL PRIMARY KEY,
	timestamp       TIMESTAMPTZ NOT NULL,
	grower_id       TEXT NOT NULL,
	latitude        DOUBLE PRECISION,
	longitude       DOUBLE PRECISION,
	prediction      TEXT NOT NULL,
	confidence      DOUBLE PRECISION NOT NULL,
	all_predictions JSONB NOT NULL,
	weather         JSONB,
	disease_risk    TEXT NOT NULL,
	image_ref       TEXT
);

CREATE TABLE IF NOT EXISTS farms (
	grower_id  TEXT NOT NULL,
	farm_name  TEXT NOT NULL,
	boundary   JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (grower_id, farm_name)
);

CREATE INDEX IF NOT EXISTS idx_scans_grower ON scans(grower_id);
CREATE INDEX IF NOT EXISTS idx_scans_timestamp ON scans(timestamp);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, postgresMigration); err != nil {
		return eris.Wrap(markStorage(err), "postgres: migrate")
	}
	return nil
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) AppendScan(ctx context.Context, scan model.ScanRecord) (int64, error) {
	if err := validateScan(scan); err != nil {
		return 0, err
	}

	probsJSON, weatherJSON, err := encodeScanPayload(scan)
	if err != nil {
		return 0, err
	}
	var weather any
	if weatherJSON.Valid {
		weather = weatherJSON.String
	}

	var id int64
	err = s.pool.QueryRow(ctx,
		`INSERT INTO scans (timestamp, grower_id, latitude, longitude, prediction, confidence, all_predictions, weather, disease_risk, image_ref) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10) RETURNING id`,
		time.Now().UTC(), scan.GrowerID, scan.Latitude, scan.Longitude,
		scan.Label, scan.Confidence, probsJSON, weather, string(scan.Risk), scan.ImageRef,
	).Scan(&id)
	if err != nil {
		return 0, eris.Wrap(markStorage(err), "postgres: insert scan")
	}
	return id, nil
}

func (s *PostgresStore) ListScans(ctx context.Context, filter ScanFilter) ([]model.ScanRecord, error) {
	if err := validateFilter(filter); err != nil {
		return nil, err
	}

	query := `SELECT id, timestamp, grower_id, latitude, longitude, prediction, confidence, all_predictions, weather, disease_risk, image_ref FROM scans`
	var args []any
	if filter.GrowerID != "" {
		query += ` WHERE grower_id = $1 ORDER BY timestamp DESC, id DESC LIMIT $2`
		args = append(args, filter.GrowerID, filter.Limit)
	} else {
		query += ` ORDER BY timestamp DESC, id DESC LIMIT $1`
		args = append(args, filter.Limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(markStorage(err), "postgres: list scans")
	}
	defer rows.Close()

	var scans []model.ScanRecord
	for rows.Next() {
		var (
			rec         model.ScanRecord
			risk        string
			probsJSON   string
			weatherJSON *string
			imageRef    *string
		)
		if err := rows.Scan(&rec.ID, &rec.Timestamp, &rec.GrowerID, &rec.Latitude, &rec.Longitude,
			&rec.Label, &rec.Confidence, &probsJSON, &weatherJSON, &risk, &imageRef); err != nil {
			return nil, eris.Wrap(markStorage(err), "postgres: scan row")
		}
		rec.Risk = model.RiskLevel(risk)
		var weather string
		if weatherJSON != nil {
			weather = *weatherJSON
		}
		if err := decodeScanPayload(&rec, probsJSON, weather); err != nil {
			return nil, err
		}
		if imageRef != nil {
			rec.ImageRef = *imageRef
		}
		scans = append(scans, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(markStorage(err), "postgres: list scans iterate")
	}
	return scans, nil
}

func (s *PostgresStore) SaveFarm(ctx context.Context, growerID, farmName string, boundary json.RawMessage) error {
	if err := validateFarm(growerID, farmName, boundary); err != nil {
		return err
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO farms (grower_id, farm_name, boundary, updated_at) VALUES ($1, $2, $3, $4) ON CONFLICT (grower_id, farm_name) DO UPDATE SET boundary = EXCLUDED.boundary, updated_at = EXCLUDED.updated_at`,
		growerID, farmName, string(boundary), time.Now().UTC(),
	)
	if err != nil {
		return eris.Wrapf(markStorage(err), "postgres: save farm %s/%s", growerID, farmName)
	}
	return nil
}

func (s *PostgresStore) ListFarms(ctx context.Context, growerID string) ([]model.FarmBoundary, error) {
	if growerID == "" {
		return nil, eris.Wrap(ErrInvalidInput, "grower id is required")
	}

	rows, err := s.pool.Query(ctx,
		`SELECT grower_id, farm_name, boundary, updated_at FROM farms WHERE grower_id = $1`,
		growerID,
	)
	if err != nil {
		return nil, eris.Wrap(markStorage(err), "postgres: list farms")
	}
	defer rows.Close()

	var farms []model.FarmBoundary
	for rows.Next() {
		var (
			fb       model.FarmBoundary
			boundary string
		)
		if err := rows.Scan(&fb.GrowerID, &fb.FarmName, &boundary, &fb.UpdatedAt); err != nil {
			return nil, eris.Wrap(markStorage(err), "postgres: farm row")
		}
		fb.Boundary = json.RawMessage(boundary)
		farms = append(farms, fb)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(markStorage(err), "postgres: list farms iterate")
	}
	return farms, nil
}

var (
	_ Store = (*SQLiteStore)(nil)
	_ Store = (*PostgresStore)(nil)
)
