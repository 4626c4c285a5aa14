package services

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	log "github.com/sirupsen/logrus"

	"nhs-data-pipeline/models"
)

// metadataColumns are the fixed identity columns matched exactly.
var metadataColumns = map[string]struct{}{
	"entity_code": {},
	"entity_name": {},
	"period":      {},
}

// geographicMarkers mark organizational-grouping columns (ICB, region, STP).
var geographicMarkers = []string{"icb_", "region_", "stp_"}

// rttSpecialties is the specialty-name table used to split an rtt_ column
// into (specialty, metric). Longer names come first so that e.g.
// general_surgery wins over a hypothetical general_ prefix.
var rttSpecialties = []string{
	"trauma_orthopaedics",
	"cardiothoracic_surgery",
	"geriatric_medicine",
	"general_surgery",
	"general_medicine",
	"gastroenterology",
	"plastic_surgery",
	"oral_surgery",
	"ophthalmology",
	"rheumatology",
	"neurosurgery",
	"dermatology",
	"gynaecology",
	"cardiology",
	"neurology",
	"urology",
	"ent",
}

// aeMarkers identify A&E / emergency care columns.
var aeMarkers = []string{"ae_", "emergency", "four_hour"}

// diagnosticTests is the fixed diagnostic test-type vocabulary. Matched as
// a column prefix; longer names first.
var diagnosticTests = []string{
	"non_obstetric_ultrasound",
	"flexi_sigmoidoscopy",
	"echocardiography",
	"colonoscopy",
	"cystoscopy",
	"gastroscopy",
	"audiology",
	"dexa_scan",
	"mri",
	"ct",
}

// capacityMarkers identify bed/virtual-ward/discharge capacity columns.
var capacityMarkers = []string{"capacity", "virtual_ward", "discharge"}

// classifierRule is one entry of the ordered rule table. The first rule
// whose match returns a classification wins, so rule order matters: some
// domains are structural prefixes of others.
type classifierRule struct {
	name  string
	match func(col string) (models.ClassifiedColumn, bool)
}

var rules = []classifierRule{
	{"metadata", matchMetadata},
	{"geographic", matchGeographic},
	{"rtt", matchRTT},
	{"ae", matchAE},
	{"diagnostics", matchDiagnostics},
	{"capacity", matchCapacity},
}

// Classify maps one flat column name to its (domain, subgroup, metric)
// triple. Columns matching no rule come back as uncategorized; callers must
// surface those for manual review, never drop them.
func Classify(column string) models.ClassifiedColumn {
	col := strings.ToLower(strings.TrimSpace(column))
	for _, r := range rules {
		if c, ok := r.match(col); ok {
			c.Column = column
			return c
		}
	}
	return models.ClassifiedColumn{
		Column: column,
		Domain: models.DomainUncategorized,
		Metric: col,
	}
}

func matchMetadata(col string) (models.ClassifiedColumn, bool) {
	if _, ok := metadataColumns[col]; !ok {
		return models.ClassifiedColumn{}, false
	}
	return models.ClassifiedColumn{Domain: models.DomainMetadata, Metric: col}, true
}

func matchGeographic(col string) (models.ClassifiedColumn, bool) {
	for _, marker := range geographicMarkers {
		if strings.Contains(col, marker) {
			return models.ClassifiedColumn{Domain: models.DomainGeographic, Metric: col}, true
		}
	}
	return models.ClassifiedColumn{}, false
}

func matchRTT(col string) (models.ClassifiedColumn, bool) {
	if !strings.HasPrefix(col, "rtt_") {
		return models.ClassifiedColumn{}, false
	}
	rest := strings.TrimPrefix(col, "rtt_")
	for _, sp := range rttSpecialties {
		if strings.HasPrefix(rest, sp+"_") {
			return models.ClassifiedColumn{
				Domain:   models.DomainRTT,
				Subgroup: sp,
				Metric:   strings.TrimPrefix(rest, sp+"_"),
			}, true
		}
	}
	return models.ClassifiedColumn{
		Domain:   models.DomainRTT,
		Subgroup: models.TrustTotalSubgroup,
		Metric:   rest,
	}, true
}

func matchAE(col string) (models.ClassifiedColumn, bool) {
	for _, marker := range aeMarkers {
		if strings.Contains(col, marker) {
			return models.ClassifiedColumn{
				Domain: models.DomainAE,
				Metric: strings.TrimPrefix(col, "ae_"),
			}, true
		}
	}
	return models.ClassifiedColumn{}, false
}

func matchDiagnostics(col string) (models.ClassifiedColumn, bool) {
	for _, test := range diagnosticTests {
		if strings.HasPrefix(col, test+"_") {
			return models.ClassifiedColumn{
				Domain:   models.DomainDiagnostics,
				Subgroup: test,
				Metric:   strings.TrimPrefix(col, test+"_"),
			}, true
		}
	}
	// Columns about diagnostics as a whole, e.g. diagnostic_waiting_list.
	if strings.Contains(col, "diagnostic") {
		return models.ClassifiedColumn{
			Domain:   models.DomainDiagnostics,
			Subgroup: "all_tests",
			Metric:   col,
		}, true
	}
	return models.ClassifiedColumn{}, false
}

func matchCapacity(col string) (models.ClassifiedColumn, bool) {
	for _, marker := range capacityMarkers {
		if strings.Contains(col, marker) {
			return models.ClassifiedColumn{
				Domain: models.DomainCapacity,
				Metric: strings.TrimPrefix(col, "capacity_"),
			}, true
		}
	}
	return models.ClassifiedColumn{}, false
}

// BuildMapping classifies every header of a source schema and returns the
// versioned mapping artifact. Uncategorized columns are kept in the mapping
// and logged so they can be reviewed; silently ignoring them would drop
// source signal.
func BuildMapping(headers []string, schemaVersion int) *models.ColumnMapping {
	mapping := &models.ColumnMapping{
		SchemaVersion: schemaVersion,
		Columns:       make(map[string]models.ClassifiedColumn, len(headers)),
	}
	for _, h := range headers {
		mapping.Columns[h] = Classify(h)
	}

	if uncat := mapping.Uncategorized(); len(uncat) > 0 {
		log.WithFields(log.Fields{
			"count":   len(uncat),
			"columns": uncat,
		}).Warn("Source columns matched no classification rule — review before relying on this mapping")
	}
	return mapping
}

// SaveMapping persists a mapping as a JSON artifact.
func SaveMapping(mapping *models.ColumnMapping, path string) error {
	data, err := json.MarshalIndent(mapping, "", "  ")
	if err != nil {
		return fmt.Errorf("mapping: marshal: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("mapping: write %q: %w", path, err)
	}
	return nil
}

// LoadMapping reads a previously persisted mapping artifact.
func LoadMapping(path string) (*models.ColumnMapping, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("mapping: read %q: %w", path, err)
	}
	mapping := &models.ColumnMapping{}
	if err := json.Unmarshal(data, mapping); err != nil {
		return nil, fmt.Errorf("mapping: parse %q: %w", path, err)
	}
	return mapping, nil
}
