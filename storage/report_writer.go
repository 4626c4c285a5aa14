package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"nhs-data-pipeline/models"
)

// timestampLayout names report artifacts by UTC creation time.
const timestampLayout = "20060102T150405Z"

// ReportWriter persists run summaries and audit reports as timestamped JSON
// artifacts under a single output directory. It is safe for concurrent use.
type ReportWriter struct {
	mu  sync.Mutex
	dir string
}

// NewReportWriter creates the output directory if needed and returns a
// ready-to-use writer.
func NewReportWriter(dir string) (*ReportWriter, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("report: create output dir: %w", err)
	}
	return &ReportWriter{dir: dir}, nil
}

// WriteRunSummary writes a pipeline run summary and returns the artifact path.
func (w *ReportWriter) WriteRunSummary(s *models.RunSummary) (string, error) {
	return w.write("run_summary", s)
}

// WriteAuditReport writes an audit report and returns the artifact path.
func (w *ReportWriter) WriteAuditReport(r *models.AuditReport) (string, error) {
	return w.write("audit_report", r)
}

func (w *ReportWriter) write(prefix string, v interface{}) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("report: marshal %s: %w", prefix, err)
	}

	name := fmt.Sprintf("%s_%s.json", prefix, time.Now().UTC().Format(timestampLayout))
	path := filepath.Join(w.dir, name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("report: write %q: %w", path, err)
	}
	return path, nil
}
