package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"nhs-data-pipeline/models"
)

// fieldsPerRecord is the number of bind parameters per upserted record.
const fieldsPerRecord = 12

// PostgresStore persists transformed records to PostgreSQL, one row per
// (entity_code, period), with the domain payloads as JSONB.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore opens a connection, waits for the database to come up,
// runs the schema migration, and returns a ready-to-use store.
func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}

	for i := 0; i < 10; i++ {
		if err = db.Ping(); err == nil {
			break
		}
		time.Sleep(2 * time.Second)
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: ping failed after retries: %w", err)
	}

	s := &PostgresStore{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("postgres: migrate: %w", err)
	}
	return s, nil
}

func (s *PostgresStore) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS performance_records (
			id          SERIAL PRIMARY KEY,
			entity_code VARCHAR(3)  NOT NULL,
			period      DATE        NOT NULL,
			entity_name TEXT        NOT NULL DEFAULT '',
			group_code  TEXT,
			group_name  TEXT,
			record_type VARCHAR(20) NOT NULL DEFAULT 'monthly',
			rtt         JSONB       NOT NULL DEFAULT '{}',
			ae          JSONB       NOT NULL DEFAULT '{}',
			diagnostics JSONB       NOT NULL DEFAULT '{}',
			capacity    JSONB       NOT NULL DEFAULT '{}',
			quality     JSONB,
			financial   JSONB,
			created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE (entity_code, period)
		);

		CREATE INDEX IF NOT EXISTS idx_performance_entity ON performance_records(entity_code);
		CREATE INDEX IF NOT EXISTS idx_performance_period ON performance_records(period);
	`)
	return err
}

// Clear deletes all records from the table. Used by --clear runs.
func (s *PostgresStore) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM performance_records"); err != nil {
		return fmt.Errorf("postgres: clear: %w", err)
	}
	return nil
}

// UpsertBatch writes one batch with insert-or-overwrite semantics keyed by
// (entity_code, period): re-running the pipeline on the same source never
// creates duplicates, and a revised row overwrites the prior payloads.
func (s *PostgresStore) UpsertBatch(ctx context.Context, records []*models.TransformedRecord) error {
	if len(records) == 0 {
		return nil
	}

	valueStrings := make([]string, 0, len(records))
	valueArgs := make([]interface{}, 0, len(records)*fieldsPerRecord)

	for idx, r := range records {
		base := idx * fieldsPerRecord
		placeholders := make([]string, fieldsPerRecord)
		for i := range placeholders {
			placeholders[i] = fmt.Sprintf("$%d", base+i+1)
		}
		valueStrings = append(valueStrings, "("+strings.Join(placeholders, ",")+")")

		rtt, err := json.Marshal(r.RTT)
		if err != nil {
			return fmt.Errorf("postgres: marshal rtt for %s: %w", r.Key(), err)
		}
		ae, err := json.Marshal(r.AE)
		if err != nil {
			return fmt.Errorf("postgres: marshal ae for %s: %w", r.Key(), err)
		}
		diagnostics, err := json.Marshal(r.Diagnostics)
		if err != nil {
			return fmt.Errorf("postgres: marshal diagnostics for %s: %w", r.Key(), err)
		}
		capacity, err := json.Marshal(r.Capacity)
		if err != nil {
			return fmt.Errorf("postgres: marshal capacity for %s: %w", r.Key(), err)
		}

		// JSONB parameters go over the wire as text; lib/pq would encode
		// []byte as bytea.
		valueArgs = append(valueArgs,
			r.EntityCode, r.Period, r.EntityName, r.GroupCode, r.GroupName,
			r.RecordType, string(rtt), string(ae), string(diagnostics), string(capacity),
			marshalOptional(r.Quality), marshalOptional(r.Financial))
	}

	query := fmt.Sprintf(`
		INSERT INTO performance_records
			(entity_code, period, entity_name, group_code, group_name,
			 record_type, rtt, ae, diagnostics, capacity, quality, financial)
		VALUES %s
		ON CONFLICT (entity_code, period) DO UPDATE SET
			entity_name = EXCLUDED.entity_name,
			group_code  = EXCLUDED.group_code,
			group_name  = EXCLUDED.group_name,
			record_type = EXCLUDED.record_type,
			rtt         = EXCLUDED.rtt,
			ae          = EXCLUDED.ae,
			diagnostics = EXCLUDED.diagnostics,
			capacity    = EXCLUDED.capacity,
			quality     = EXCLUDED.quality,
			financial   = EXCLUDED.financial,
			updated_at  = NOW()
	`, strings.Join(valueStrings, ","))

	if _, err := s.db.ExecContext(ctx, query, valueArgs...); err != nil {
		return fmt.Errorf("postgres: upsert batch of %d: %w", len(records), err)
	}
	return nil
}

// marshalOptional serializes an optional domain payload, keeping nil as SQL
// NULL rather than the JSON string "null".
func marshalOptional(m models.MetricValues) interface{} {
	if m == nil {
		return nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil
	}
	return string(data)
}

// FetchAll retrieves every stored record — used by the auditor.
func (s *PostgresStore) FetchAll(ctx context.Context) ([]*models.TransformedRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT entity_code, to_char(period, 'YYYY-MM-DD'), entity_name,
		       group_code, group_name, record_type,
		       rtt, ae, diagnostics, capacity, quality, financial
		FROM performance_records
		ORDER BY entity_code, period
	`)
	if err != nil {
		return nil, fmt.Errorf("postgres: fetch all: %w", err)
	}
	defer rows.Close()

	var records []*models.TransformedRecord
	for rows.Next() {
		r := &models.TransformedRecord{}
		var rtt, ae, diagnostics, capacity []byte
		var quality, financial []byte
		if err := rows.Scan(
			&r.EntityCode, &r.Period, &r.EntityName,
			&r.GroupCode, &r.GroupName, &r.RecordType,
			&rtt, &ae, &diagnostics, &capacity, &quality, &financial,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan row: %w", err)
		}

		if err := json.Unmarshal(rtt, &r.RTT); err != nil {
			return nil, fmt.Errorf("postgres: decode rtt for %s: %w", r.Key(), err)
		}
		if err := json.Unmarshal(ae, &r.AE); err != nil {
			return nil, fmt.Errorf("postgres: decode ae for %s: %w", r.Key(), err)
		}
		if err := json.Unmarshal(diagnostics, &r.Diagnostics); err != nil {
			return nil, fmt.Errorf("postgres: decode diagnostics for %s: %w", r.Key(), err)
		}
		if err := json.Unmarshal(capacity, &r.Capacity); err != nil {
			return nil, fmt.Errorf("postgres: decode capacity for %s: %w", r.Key(), err)
		}
		if quality != nil {
			if err := json.Unmarshal(quality, &r.Quality); err != nil {
				return nil, fmt.Errorf("postgres: decode quality for %s: %w", r.Key(), err)
			}
		}
		if financial != nil {
			if err := json.Unmarshal(financial, &r.Financial); err != nil {
				return nil, fmt.Errorf("postgres: decode financial for %s: %w", r.Key(), err)
			}
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}
