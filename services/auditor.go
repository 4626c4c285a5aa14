package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"nhs-data-pipeline/models"
	"nhs-data-pipeline/storage"
)

// AuditConfig carries the externally supplied reference cardinalities and
// severity thresholds.
type AuditConfig struct {
	ExpectedEntities int
	ExpectedPeriods  int
	// MustHaveEntities are named entities whose total absence raises the
	// severity to HIGH even when overall counts look healthy.
	MustHaveEntities []string
	// CriticalMissingFraction: when more than this fraction of expected
	// entities is absent, severity is CRITICAL.
	CriticalMissingFraction float64
	// CriticalRecordFraction: when total records fall below this fraction
	// of expected entities × expected periods, severity is CRITICAL.
	CriticalRecordFraction float64
}

// Auditor compares the live store against expected cardinalities and
// classifies how badly under-populated it is. It only reads; discrepancies
// are findings for human action, never auditor failures.
//
// An audit run concurrent with a load may under-report. That is accepted:
// the auditor tolerates eventually-consistent reads.
type Auditor struct {
	cfg AuditConfig
}

// NewAuditor creates an Auditor with the given reference expectations.
func NewAuditor(cfg AuditConfig) *Auditor {
	if cfg.CriticalRecordFraction == 0 {
		cfg.CriticalRecordFraction = 0.5
	}
	return &Auditor{cfg: cfg}
}

// Audit scans the store and produces a severity-classified report. It fails
// only when the store itself is unreachable.
func (a *Auditor) Audit(ctx context.Context, store storage.RecordReader) (*models.AuditReport, error) {
	records, err := store.FetchAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("audit: read store: %w", err)
	}

	report := &models.AuditReport{
		ReportID:             uuid.NewString(),
		GeneratedAt:          time.Now().UTC(),
		TotalRecords:         len(records),
		ExpectedEntities:     a.cfg.ExpectedEntities,
		ExpectedPeriods:      a.cfg.ExpectedPeriods,
		CompletenessByDomain: map[string]float64{},
	}

	entities := make(map[string]struct{})
	periods := make(map[string]struct{})
	populatedByDomain := map[string]int{}
	totalByDomain := map[string]int{}

	for _, r := range records {
		entities[r.EntityCode] = struct{}{}
		periods[r.Period] = struct{}{}
		tallyDomains(r, populatedByDomain, totalByDomain)
	}

	report.DistinctEntities = len(entities)
	report.DistinctPeriods = len(periods)
	if missing := a.cfg.ExpectedEntities - len(entities); missing > 0 {
		report.MissingEntities = missing
	}

	for _, code := range a.cfg.MustHaveEntities {
		if _, present := entities[code]; !present {
			report.AbsentMustHave = append(report.AbsentMustHave, code)
		}
	}
	sort.Strings(report.AbsentMustHave)

	for domain, total := range totalByDomain {
		if total > 0 {
			report.CompletenessByDomain[domain] = round1(100 * float64(populatedByDomain[domain]) / float64(total))
		}
	}

	report.Severity = a.classify(report)
	report.Recommendations = a.recommend(report)

	log.WithFields(log.Fields{
		"report_id": report.ReportID,
		"records":   report.TotalRecords,
		"entities":  report.DistinctEntities,
		"severity":  report.Severity,
	}).Info("Population audit complete")

	return report, nil
}

func tallyDomains(r *models.TransformedRecord, populated, total map[string]int) {
	count := func(domain string, m models.MetricValues) {
		for _, v := range m {
			total[domain]++
			if v != nil {
				populated[domain]++
			}
		}
	}
	count("rtt", r.RTT.TrustTotal)
	for _, m := range r.RTT.Specialties {
		count("rtt", m)
	}
	count("ae", r.AE)
	for _, m := range r.Diagnostics {
		count("diagnostics", m)
	}
	count("capacity", r.Capacity)
	count("quality", r.Quality)
	count("financial", r.Financial)
}

func (a *Auditor) classify(r *models.AuditReport) models.Severity {
	if a.cfg.ExpectedEntities > 0 {
		missingFraction := float64(r.MissingEntities) / float64(a.cfg.ExpectedEntities)
		if missingFraction > a.cfg.CriticalMissingFraction {
			return models.SeverityCritical
		}

		expectedRecords := a.cfg.ExpectedEntities * a.cfg.ExpectedPeriods
		if expectedRecords > 0 &&
			float64(r.TotalRecords) < a.cfg.CriticalRecordFraction*float64(expectedRecords) {
			return models.SeverityCritical
		}
	}

	if len(r.AbsentMustHave) > 0 {
		return models.SeverityHigh
	}
	return models.SeverityLow
}

func (a *Auditor) recommend(r *models.AuditReport) []string {
	var recs []string

	if r.MissingEntities > 0 {
		recs = append(recs, fmt.Sprintf(
			"%d of %d expected entities have no records at all — investigate filtering in the transformation stage and check the source file covers every organization",
			r.MissingEntities, r.ExpectedEntities))
	}
	if len(r.AbsentMustHave) > 0 {
		recs = append(recs, fmt.Sprintf(
			"must-have entities absent from the store: %s — confirm they appear in the latest source extract",
			strings.Join(r.AbsentMustHave, ", ")))
	}
	if r.ExpectedPeriods > 0 && r.DistinctPeriods < r.ExpectedPeriods {
		recs = append(recs, fmt.Sprintf(
			"only %d of %d expected reporting periods present — check whether older extracts were loaded",
			r.DistinctPeriods, r.ExpectedPeriods))
	}
	for domain, pct := range r.CompletenessByDomain {
		if pct < 25 {
			recs = append(recs, fmt.Sprintf(
				"domain %q is only %.1f%% populated — verify the column mapping still matches the source schema",
				domain, pct))
		}
	}
	if len(recs) == 0 {
		recs = append(recs, "population matches expectations; no action required")
	}
	sort.Strings(recs)
	return recs
}

// Print renders a report to the terminal for operators.
func (a *Auditor) Print(r *models.AuditReport) {
	sep := strings.Repeat("═", 54)
	thin := strings.Repeat("─", 54)

	fmt.Printf("\n%s\n", sep)
	fmt.Printf("  POPULATION AUDIT — %s\n", r.GeneratedAt.Format("2006-01-02 15:04:05"))
	fmt.Printf("%s\n\n", sep)

	fmt.Printf("  Severity : %s\n", r.Severity)
	fmt.Printf("  %s\n", thin)
	fmt.Printf("  Total records     : %d\n", r.TotalRecords)
	fmt.Printf("  Distinct entities : %d / %d expected\n", r.DistinctEntities, r.ExpectedEntities)
	fmt.Printf("  Distinct periods  : %d / %d expected\n", r.DistinctPeriods, r.ExpectedPeriods)
	if len(r.AbsentMustHave) > 0 {
		fmt.Printf("  Absent must-have  : %s\n", strings.Join(r.AbsentMustHave, ", "))
	}
	fmt.Println()

	fmt.Printf("  Completeness by domain\n")
	fmt.Printf("  %s\n", thin)
	domains := make([]string, 0, len(r.CompletenessByDomain))
	for d := range r.CompletenessByDomain {
		domains = append(domains, d)
	}
	sort.Strings(domains)
	for _, d := range domains {
		fmt.Printf("  %-14s %.1f%%\n", d, r.CompletenessByDomain[d])
	}
	fmt.Println()

	fmt.Printf("  Recommendations\n")
	fmt.Printf("  %s\n", thin)
	for i, rec := range r.Recommendations {
		fmt.Printf("  %d. %s\n", i+1, rec)
	}
	fmt.Printf("\n%s\n\n", sep)
}

func round1(f float64) float64 {
	return float64(int(f*10+0.5)) / 10
}
