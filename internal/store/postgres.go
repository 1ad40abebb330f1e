package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/safeplate/safescan/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
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

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS products (
	id                 TEXT PRIMARY KEY,
	barcode            TEXT NOT NULL UNIQUE,
	name               TEXT NOT NULL,
	brand              TEXT NOT NULL DEFAULT '',
	ingredients_text   TEXT NOT NULL DEFAULT '',
	declared_allergens JSONB,
	data_quality_score INTEGER NOT NULL DEFAULT 0,
	verification_count INTEGER NOT NULL DEFAULT 0,
	last_verified_at   TIMESTAMPTZ,
	updated_at         TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS subject_restrictions (
	subject_id                    TEXT NOT NULL,
	restriction_id                TEXT NOT NULL,
	severity                      TEXT NOT NULL DEFAULT 'moderate',
	doctor_verified               BOOLEAN NOT NULL DEFAULT false,
	cross_contamination_sensitive BOOLEAN NOT NULL DEFAULT false,
	active                        BOOLEAN NOT NULL DEFAULT true,
	updated_at                    TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (subject_id, restriction_id)
);

CREATE TABLE IF NOT EXISTS scan_log (
	id               TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	subject_id       TEXT NOT NULL,
	barcode          TEXT NOT NULL,
	symbology        TEXT NOT NULL,
	product_id       TEXT NOT NULL DEFAULT '',
	product_name     TEXT NOT NULL DEFAULT '',
	overall_level    TEXT NOT NULL,
	confidence_score INTEGER NOT NULL DEFAULT 0,
	risk_factors     JSONB,
	scanned_at       TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_products_barcode ON products(barcode);
CREATE INDEX IF NOT EXISTS idx_subject_restrictions_subject ON subject_restrictions(subject_id);
CREATE INDEX IF NOT EXISTS idx_scan_log_subject ON scan_log(subject_id);
CREATE INDEX IF NOT EXISTS idx_scan_log_scanned_at ON scan_log(scanned_at DESC);
CREATE INDEX IF NOT EXISTS idx_scan_log_level ON scan_log(overall_level);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) UpsertProduct(ctx context.Context, p model.Product) error {
	allergensJSON, err := json.Marshal(p.DeclaredAllergens)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal allergens")
	}

	var lastVerified *time.Time
	if p.LastVerifiedAt != nil {
		t := p.LastVerifiedAt.UTC()
		lastVerified = &t
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO products (id, barcode, name, brand, ingredients_text, declared_allergens,
		                       data_quality_score, verification_count, last_verified_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 ON CONFLICT (barcode) DO UPDATE SET
			name = EXCLUDED.name,
			brand = EXCLUDED.brand,
			ingredients_text = EXCLUDED.ingredients_text,
			declared_allergens = EXCLUDED.declared_allergens,
			data_quality_score = EXCLUDED.data_quality_score,
			verification_count = EXCLUDED.verification_count,
			last_verified_at = EXCLUDED.last_verified_at,
			updated_at = EXCLUDED.updated_at`,
		p.ID, p.Barcode, p.Name, p.Brand, p.IngredientsText, allergensJSON,
		p.DataQualityScore, p.VerificationCount, lastVerified, time.Now().UTC(),
	)
	return eris.Wrapf(err, "postgres: upsert product %s", p.Barcode)
}

func (s *PostgresStore) GetProductByBarcode(ctx context.Context, barcode string) (*model.Product, error) {
	var p model.Product
	var allergensJSON []byte
	var lastVerified *time.Time

	err := s.pool.QueryRow(ctx,
		`SELECT id, barcode, name, brand, ingredients_text, declared_allergens,
		        data_quality_score, verification_count, last_verified_at
		 FROM products WHERE barcode = $1`,
		barcode,
	).Scan(&p.ID, &p.Barcode, &p.Name, &p.Brand, &p.IngredientsText,
		&allergensJSON, &p.DataQualityScore, &p.VerificationCount, &lastVerified)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get product %s", barcode)
	}

	if len(allergensJSON) > 0 {
		if err := json.Unmarshal(allergensJSON, &p.DeclaredAllergens); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal allergens")
		}
	}
	if lastVerified != nil {
		t := lastVerified.UTC()
		p.LastVerifiedAt = &t
	}
	return &p, nil
}

func (s *PostgresStore) UpsertSubjectRestriction(ctx context.Context, sr model.SubjectRestriction) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO subject_restrictions (subject_id, restriction_id, severity,
		                                   doctor_verified, cross_contamination_sensitive, active, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (subject_id, restriction_id) DO UPDATE SET
			severity = EXCLUDED.severity,
			doctor_verified = EXCLUDED.doctor_verified,
			cross_contamination_sensitive = EXCLUDED.cross_contamination_sensitive,
			active = EXCLUDED.active,
			updated_at = EXCLUDED.updated_at`,
		sr.SubjectID, sr.RestrictionID, sr.Severity.String(),
		sr.DoctorVerified, sr.CrossContaminationSensitive, sr.Active, time.Now().UTC(),
	)
	return eris.Wrapf(err, "postgres: upsert restriction %s/%s", sr.SubjectID, sr.RestrictionID)
}

func (s *PostgresStore) ListSubjectRestrictions(ctx context.Context, subjectID string) ([]model.SubjectRestriction, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT subject_id, restriction_id, severity, doctor_verified, cross_contamination_sensitive, active
		 FROM subject_restrictions WHERE subject_id = $1
		 ORDER BY restriction_id`,
		subjectID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list restrictions %s", subjectID)
	}
	defer rows.Close()

	var out []model.SubjectRestriction
	for rows.Next() {
		sr, err := scanSubjectRestriction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *sr)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list restrictions iterate")
}

func (s *PostgresStore) ListSubjects(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT DISTINCT subject_id FROM subject_restrictions ORDER BY subject_id`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list subjects")
	}
	defer rows.Close()

	var subjects []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, eris.Wrap(err, "postgres: scan subject")
		}
		subjects = append(subjects, id)
	}
	return subjects, eris.Wrap(rows.Err(), "postgres: list subjects iterate")
}

func (s *PostgresStore) AppendScan(ctx context.Context, rec ScanRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.ScannedAt.IsZero() {
		rec.ScannedAt = time.Now().UTC()
	}

	factorsJSON, err := json.Marshal(rec.RiskFactors)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal risk factors")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO scan_log (id, subject_id, barcode, symbology, product_id, product_name,
		                       overall_level, confidence_score, risk_factors, scanned_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		rec.ID, rec.SubjectID, rec.Barcode, string(rec.Symbology), rec.ProductID, rec.ProductName,
		rec.OverallLevel.String(), rec.ConfidenceScore, factorsJSON, rec.ScannedAt.UTC(),
	)
	return eris.Wrapf(err, "postgres: append scan %s", rec.Barcode)
}

func (s *PostgresStore) ListScans(ctx context.Context, filter ScanFilter) ([]ScanRecord, error) {
	query := `SELECT id, subject_id, barcode, symbology, product_id, product_name,
	                 overall_level, confidence_score, risk_factors, scanned_at
	          FROM scan_log WHERE true`
	args := []any{}
	argIdx := 1

	if filter.SubjectID != "" {
		query += fmt.Sprintf(` AND subject_id = $%d`, argIdx)
		args = append(args, filter.SubjectID)
		argIdx++
	}
	if filter.Level != nil {
		query += fmt.Sprintf(` AND overall_level = $%d`, argIdx)
		args = append(args, filter.Level.String())
		argIdx++
	}
	if !filter.Since.IsZero() {
		query += fmt.Sprintf(` AND scanned_at >= $%d`, argIdx)
		args = append(args, filter.Since.UTC())
		argIdx++
	}
	query += ` ORDER BY scanned_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
		argIdx++
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list scans")
	}
	defer rows.Close()

	var recs []ScanRecord
	for rows.Next() {
		var rec ScanRecord
		var symbology, level string
		var factorsJSON []byte

		if err := rows.Scan(&rec.ID, &rec.SubjectID, &rec.Barcode, &symbology, &rec.ProductID,
			&rec.ProductName, &level, &rec.ConfidenceScore, &factorsJSON, &rec.ScannedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan scan record")
		}

		rec.Symbology = model.Symbology(symbology)
		rec.OverallLevel, err = model.ParseRiskLevel(level)
		if err != nil {
			return nil, err
		}
		if len(factorsJSON) > 0 {
			if err := json.Unmarshal(factorsJSON, &rec.RiskFactors); err != nil {
				return nil, eris.Wrap(err, "postgres: unmarshal risk factors")
			}
		}
		rec.ScannedAt = rec.ScannedAt.UTC()
		recs = append(recs, rec)
	}
	return recs, eris.Wrap(rows.Err(), "postgres: list scans iterate")
}

func (s *PostgresStore) ClearScans(ctx context.Context, subjectID string) (int, error) {
	query := `DELETE FROM scan_log`
	args := []any{}
	if subjectID != "" {
		query += ` WHERE subject_id = $1`
		args = append(args, subjectID)
	}

	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: clear scans")
	}
	return int(tag.RowsAffected()), nil
}
