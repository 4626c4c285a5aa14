package models

import "fmt"

// Domain is the top-level semantic category a source column belongs to.
type Domain string

const (
	DomainMetadata      Domain = "metadata"
	DomainGeographic    Domain = "geographic"
	DomainRTT           Domain = "rtt"
	DomainAE            Domain = "ae"
	DomainDiagnostics   Domain = "diagnostics"
	DomainCapacity      Domain = "capacity"
	DomainUncategorized Domain = "uncategorized"
)

// TrustTotalSubgroup is the sentinel subgroup for RTT columns that carry a
// trust-wide aggregate rather than a per-specialty breakdown.
const TrustTotalSubgroup = "trust_total"

// ClassifiedColumn is the classification of a single flat source column.
type ClassifiedColumn struct {
	Column   string `json:"column"`
	Domain   Domain `json:"domain"`
	Subgroup string `json:"subgroup,omitempty"`
	Metric   string `json:"metric"`
}

// ColumnMapping is the versioned artifact describing how every column of a
// source schema maps onto domains, subgroups and metrics. It is derived once
// per schema version and reused for every row of that source.
type ColumnMapping struct {
	SchemaVersion int                         `json:"schema_version"`
	Columns       map[string]ClassifiedColumn `json:"columns"`
}

// Uncategorized returns the columns that matched no classification rule.
// Callers must surface these for manual review rather than drop them.
func (m *ColumnMapping) Uncategorized() []string {
	var cols []string
	for name, c := range m.Columns {
		if c.Domain == DomainUncategorized {
			cols = append(cols, name)
		}
	}
	return cols
}

// CheckHeaders verifies that the mapping covers exactly the given header set.
// A header the mapping does not know is a configuration error: the source
// schema and the mapping artifact have diverged.
func (m *ColumnMapping) CheckHeaders(headers []string) error {
	for _, h := range headers {
		if _, ok := m.Columns[h]; !ok {
			return fmt.Errorf("mapping (schema v%d) does not cover source column %q", m.SchemaVersion, h)
		}
	}
	return nil
}
