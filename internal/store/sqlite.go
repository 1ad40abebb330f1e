package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/safeplate/safescan/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS products (
	id                 TEXT PRIMARY KEY,
	barcode            TEXT NOT NULL UNIQUE,
	name               TEXT NOT NULL,
	brand              TEXT NOT NULL DEFAULT '',
	ingredients_text   TEXT NOT NULL DEFAULT '',
	declared_allergens TEXT,
	data_quality_score INTEGER NOT NULL DEFAULT 0,
	verification_count INTEGER NOT NULL DEFAULT 0,
	last_verified_at   DATETIME,
	updated_at         DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS subject_restrictions (
	subject_id                    TEXT NOT NULL,
	restriction_id                TEXT NOT NULL,
	severity                      TEXT NOT NULL DEFAULT 'moderate',
	doctor_verified               INTEGER NOT NULL DEFAULT 0,
	cross_contamination_sensitive INTEGER NOT NULL DEFAULT 0,
	active                        INTEGER NOT NULL DEFAULT 1,
	updated_at                    DATETIME NOT NULL DEFAULT (datetime('now')),
	PRIMARY KEY (subject_id, restriction_id)
);

CREATE TABLE IF NOT EXISTS scan_log (
	id               TEXT PRIMARY KEY,
	subject_id       TEXT NOT NULL,
	barcode          TEXT NOT NULL,
	symbology        TEXT NOT NULL,
	product_id       TEXT NOT NULL DEFAULT '',
	product_name     TEXT NOT NULL DEFAULT '',
	overall_level    TEXT NOT NULL,
	confidence_score INTEGER NOT NULL DEFAULT 0,
	risk_factors     TEXT,
	scanned_at       DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_products_barcode ON products(barcode);
CREATE INDEX IF NOT EXISTS idx_subject_restrictions_subject ON subject_restrictions(subject_id);
CREATE INDEX IF NOT EXISTS idx_scan_log_subject ON scan_log(subject_id);
CREATE INDEX IF NOT EXISTS idx_scan_log_scanned_at ON scan_log(scanned_at);
CREATE INDEX IF NOT EXISTS idx_scan_log_level ON scan_log(overall_level);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) UpsertProduct(ctx context.Context, p model.Product) error {
	allergensJSON, err := json.Marshal(p.DeclaredAllergens)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal allergens")
	}

	var lastVerified any
	if p.LastVerifiedAt != nil {
		lastVerified = p.LastVerifiedAt.UTC()
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO products (id, barcode, name, brand, ingredients_text, declared_allergens,
		                       data_quality_score, verification_count, last_verified_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(barcode) DO UPDATE SET
			name = excluded.name,
			brand = excluded.brand,
			ingredients_text = excluded.ingredients_text,
			declared_allergens = excluded.declared_allergens,
			data_quality_score = excluded.data_quality_score,
			verification_count = excluded.verification_count,
			last_verified_at = excluded.last_verified_at,
			updated_at = excluded.updated_at`,
		p.ID, p.Barcode, p.Name, p.Brand, p.IngredientsText, string(allergensJSON),
		p.DataQualityScore, p.VerificationCount, lastVerified, time.Now().UTC(),
	)
	return eris.Wrapf(err, "sqlite: upsert product %s", p.Barcode)
}

func (s *SQLiteStore) GetProductByBarcode(ctx context.Context, barcode string) (*model.Product, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, barcode, name, brand, ingredients_text, declared_allergens,
		        data_quality_score, verification_count, last_verified_at
		 FROM products WHERE barcode = ?`,
		barcode,
	)

	var p model.Product
	var allergensJSON sql.NullString
	var lastVerified sql.NullTime
	err := row.Scan(&p.ID, &p.Barcode, &p.Name, &p.Brand, &p.IngredientsText,
		&allergensJSON, &p.DataQualityScore, &p.VerificationCount, &lastVerified)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get product %s", barcode)
	}

	if allergensJSON.Valid && allergensJSON.String != "" && allergensJSON.String != "null" {
		if err := json.Unmarshal([]byte(allergensJSON.String), &p.DeclaredAllergens); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal allergens")
		}
	}
	if lastVerified.Valid {
		t := lastVerified.Time.UTC()
		p.LastVerifiedAt = &t
	}
	return &p, nil
}

func (s *SQLiteStore) UpsertSubjectRestriction(ctx context.Context, sr model.SubjectRestriction) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO subject_restrictions (subject_id, restriction_id, severity,
		                                   doctor_verified, cross_contamination_sensitive, active, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(subject_id, restriction_id) DO UPDATE SET
			severity = excluded.severity,
			doctor_verified = excluded.doctor_verified,
			cross_contamination_sensitive = excluded.cross_contamination_sensitive,
			active = excluded.active,
			updated_at = excluded.updated_at`,
		sr.SubjectID, sr.RestrictionID, sr.Severity.String(),
		sr.DoctorVerified, sr.CrossContaminationSensitive, sr.Active, time.Now().UTC(),
	)
	return eris.Wrapf(err, "sqlite: upsert restriction %s/%s", sr.SubjectID, sr.RestrictionID)
}

func (s *SQLiteStore) ListSubjectRestrictions(ctx context.Context, subjectID string) ([]model.SubjectRestriction, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT subject_id, restriction_id, severity, doctor_verified, cross_contamination_sensitive, active
		 FROM subject_restrictions WHERE subject_id = ?
		 ORDER BY restriction_id`,
		subjectID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list restrictions %s", subjectID)
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
	return out, eris.Wrap(rows.Err(), "sqlite: list restrictions iterate")
}

func (s *SQLiteStore) ListSubjects(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT subject_id FROM subject_restrictions ORDER BY subject_id`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list subjects")
	}
	defer rows.Close()

	var subjects []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan subject")
		}
		subjects = append(subjects, id)
	}
	return subjects, eris.Wrap(rows.Err(), "sqlite: list subjects iterate")
}

func (s *SQLiteStore) AppendScan(ctx context.Context, rec ScanRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.ScannedAt.IsZero() {
		rec.ScannedAt = time.Now().UTC()
	}

	factorsJSON, err := json.Marshal(rec.RiskFactors)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal risk factors")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO scan_log (id, subject_id, barcode, symbology, product_id, product_name,
		                       overall_level, confidence_score, risk_factors, scanned_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.SubjectID, rec.Barcode, string(rec.Symbology), rec.ProductID, rec.ProductName,
		rec.OverallLevel.String(), rec.ConfidenceScore, string(factorsJSON), rec.ScannedAt.UTC(),
	)
	return eris.Wrapf(err, "sqlite: append scan %s", rec.Barcode)
}

func (s *SQLiteStore) ListScans(ctx context.Context, filter ScanFilter) ([]ScanRecord, error) {
	query := `SELECT id, subject_id, barcode, symbology, product_id, product_name,
	                 overall_level, confidence_score, risk_factors, scanned_at
	          FROM scan_log WHERE 1=1`
	var args []any

	if filter.SubjectID != "" {
		query += ` AND subject_id = ?`
		args = append(args, filter.SubjectID)
	}
	if filter.Level != nil {
		query += ` AND overall_level = ?`
		args = append(args, filter.Level.String())
	}
	if !filter.Since.IsZero() {
		query += ` AND scanned_at >= ?`
		args = append(args, filter.Since.UTC())
	}
	query += ` ORDER BY scanned_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list scans")
	}
	defer rows.Close()

	var recs []ScanRecord
	for rows.Next() {
		rec, err := scanScanRecord(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, *rec)
	}
	return recs, eris.Wrap(rows.Err(), "sqlite: list scans iterate")
}

func (s *SQLiteStore) ClearScans(ctx context.Context, subjectID string) (int, error) {
	query := `DELETE FROM scan_log`
	var args []any
	if subjectID != "" {
		query += ` WHERE subject_id = ?`
		args = append(args, subjectID)
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: clear scans")
	}
	n, err := res.RowsAffected()
	return int(n), eris.Wrap(err, "sqlite: rows affected")
}

// helpers

type scannable interface {
	Scan(dest ...any) error
}

func scanSubjectRestriction(row scannable) (*model.SubjectRestriction, error) {
	var sr model.SubjectRestriction
	var severity string
	err := row.Scan(&sr.SubjectID, &sr.RestrictionID, &severity,
		&sr.DoctorVerified, &sr.CrossContaminationSensitive, &sr.Active)
	if err != nil {
		return nil, eris.Wrap(err, "scan subject restriction")
	}
	sr.Severity, err = model.ParseSeverity(severity)
	if err != nil {
		return nil, err
	}
	return &sr, nil
}

func scanScanRecord(row scannable) (*ScanRecord, error) {
	var rec ScanRecord
	var symbology, level string
	var factorsJSON sql.NullString

	err := row.Scan(&rec.ID, &rec.SubjectID, &rec.Barcode, &symbology, &rec.ProductID,
		&rec.ProductName, &level, &rec.ConfidenceScore, &factorsJSON, &rec.ScannedAt)
	if err != nil {
		return nil, eris.Wrap(err, "scan scan record")
	}

	rec.Symbology = model.Symbology(symbology)
	rec.OverallLevel, err = model.ParseRiskLevel(level)
	if err != nil {
		return nil, err
	}
	if factorsJSON.Valid && factorsJSON.String != "" && factorsJSON.String != "null" {
		if err := json.Unmarshal([]byte(factorsJSON.String), &rec.RiskFactors); err != nil {
			return nil, eris.Wrap(err, "unmarshal risk factors")
		}
	}
	rec.ScannedAt = rec.ScannedAt.UTC()
	return &rec, nil
}
