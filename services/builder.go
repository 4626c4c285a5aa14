package services

import (
	"fmt"
	"strings"

	"nhs-data-pipeline/models"
)

// recordType for rows produced by this pipeline. The source publishes one
// row per entity per calendar month.
const recordType = "monthly"

// Builder turns one raw row into one TransformedRecord under a fixed column
// mapping. A Builder is safe for concurrent use: it holds only the
// immutable mapping.
type Builder struct {
	mapping *models.ColumnMapping
}

// NewBuilder creates a Builder for the given mapping.
func NewBuilder(mapping *models.ColumnMapping) *Builder {
	return &Builder{mapping: mapping}
}

// Build produces a structurally complete record: every domain, subgroup and
// metric key declared by the mapping exists in the output even when every
// leaf is nil, so consumers never branch on "missing" vs "empty". The only
// error condition is a row without its required identity columns; that is a
// per-row failure for the caller to count, never a reason to abort a batch.
func (b *Builder) Build(row models.RawRow) (*models.TransformedRecord, error) {
	rec := b.shape()

	for name, classified := range b.mapping.Columns {
		raw, present := row[name]

		switch classified.Domain {
		case models.DomainMetadata:
			if !present {
				continue
			}
			b.setMetadata(rec, classified.Metric, raw)

		case models.DomainGeographic:
			if !present {
				continue
			}
			b.setGroup(rec, classified.Metric, raw)

		case models.DomainRTT:
			if classified.Subgroup == models.TrustTotalSubgroup {
				rec.RTT.TrustTotal[classified.Metric] = Coerce(raw)
			} else {
				rec.RTT.Specialties[classified.Subgroup][classified.Metric] = Coerce(raw)
			}

		case models.DomainAE:
			rec.AE[classified.Metric] = Coerce(raw)

		case models.DomainDiagnostics:
			rec.Diagnostics[classified.Subgroup][classified.Metric] = Coerce(raw)

		case models.DomainCapacity:
			rec.Capacity[classified.Metric] = Coerce(raw)

		case models.DomainUncategorized:
			// Kept in the mapping for review; carries no record data.
		}
	}

	if rec.EntityCode == "" {
		return nil, fmt.Errorf("row has no entity_code value")
	}
	if rec.Period == "" {
		return nil, fmt.Errorf("row has no period value")
	}
	return rec, nil
}

// shape pre-builds the full nested structure declared by the mapping with
// every leaf set to nil.
func (b *Builder) shape() *models.TransformedRecord {
	rec := &models.TransformedRecord{
		RecordType: recordType,
		RTT: models.RTTPayload{
			TrustTotal:  models.MetricValues{},
			Specialties: map[string]models.MetricValues{},
		},
		AE:          models.MetricValues{},
		Diagnostics: map[string]models.MetricValues{},
		Capacity:    models.MetricValues{},
	}

	for _, c := range b.mapping.Columns {
		switch c.Domain {
		case models.DomainRTT:
			if c.Subgroup == models.TrustTotalSubgroup {
				rec.RTT.TrustTotal[c.Metric] = nil
			} else {
				if rec.RTT.Specialties[c.Subgroup] == nil {
					rec.RTT.Specialties[c.Subgroup] = models.MetricValues{}
				}
				rec.RTT.Specialties[c.Subgroup][c.Metric] = nil
			}
		case models.DomainAE:
			rec.AE[c.Metric] = nil
		case models.DomainDiagnostics:
			if rec.Diagnostics[c.Subgroup] == nil {
				rec.Diagnostics[c.Subgroup] = models.MetricValues{}
			}
			rec.Diagnostics[c.Subgroup][c.Metric] = nil
		case models.DomainCapacity:
			rec.Capacity[c.Metric] = nil
		}
	}
	return rec
}

func (b *Builder) setMetadata(rec *models.TransformedRecord, metric, raw string) {
	value := strings.TrimSpace(raw)
	switch metric {
	case "entity_code":
		rec.EntityCode = value
	case "entity_name":
		rec.EntityName = value
	case "period":
		rec.Period = value
	}
}

// setGroup fills the organizational grouping fields from geographic
// columns: a *_code column supplies the group code, a *_name column the
// group name. Both stay nil when the source row has no usable value.
func (b *Builder) setGroup(rec *models.TransformedRecord, metric, raw string) {
	value := strings.TrimSpace(raw)
	if value == "" || strings.EqualFold(value, "null") {
		return
	}
	switch {
	case strings.HasSuffix(metric, "_code"):
		rec.GroupCode = &value
	case strings.HasSuffix(metric, "_name"):
		rec.GroupName = &value
	}
}
