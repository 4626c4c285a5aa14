package storage

import (
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nhs-data-pipeline/models"
)

func TestReportWriterWritesTimestampedArtifacts(t *testing.T) {
	w, err := NewReportWriter(t.TempDir())
	require.NoError(t, err)

	summary := &models.RunSummary{
		RunID:            "test-run",
		State:            models.StateCompleted,
		RowsRead:         10,
		RecordsWritten:   9,
		RecordsRejected:  1,
		RejectionReasons: map[string]int{"invalid_period": 1},
		StartedAt:        time.Now().UTC(),
		FinishedAt:       time.Now().UTC(),
	}

	path, err := w.WriteRunSummary(summary)
	require.NoError(t, err)
	assert.Contains(t, path, "run_summary_")

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var decoded models.RunSummary
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, summary.RunID, decoded.RunID)
	assert.Equal(t, summary.RejectionReasons, decoded.RejectionReasons)
}

func TestReportWriterAuditArtifact(t *testing.T) {
	w, err := NewReportWriter(t.TempDir())
	require.NoError(t, err)

	path, err := w.WriteAuditReport(&models.AuditReport{
		ReportID: "test-audit",
		Severity: models.SeverityHigh,
	})
	require.NoError(t, err)
	assert.Contains(t, path, "audit_report_")
}
