package storage

import (
	"context"

	"nhs-data-pipeline/models"
)

// RecordWriter is the write surface the pipeline drives. UpsertBatch must be
// idempotent on the (entity_code, period) key: insert when absent,
// overwrite the domain payloads when present.
type RecordWriter interface {
	UpsertBatch(ctx context.Context, records []*models.TransformedRecord) error
	Clear(ctx context.Context) error
	Close() error
}

// RecordReader is the read surface the auditor uses.
type RecordReader interface {
	FetchAll(ctx context.Context) ([]*models.TransformedRecord, error)
}

// RecordStore is a full store backend.
type RecordStore interface {
	RecordWriter
	RecordReader
}
