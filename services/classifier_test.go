package services

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nhs-data-pipeline/models"
)

func TestClassifyRules(t *testing.T) {
	tests := []struct {
		column   string
		domain   models.Domain
		subgroup string
		metric   string
	}{
		{"entity_code", models.DomainMetadata, "", "entity_code"},
		{"entity_name", models.DomainMetadata, "", "entity_name"},
		{"period", models.DomainMetadata, "", "period"},

		{"icb_code", models.DomainGeographic, "", "icb_code"},
		{"icb_name", models.DomainGeographic, "", "icb_name"},
		{"region_name", models.DomainGeographic, "", "region_name"},
		{"stp_code", models.DomainGeographic, "", "stp_code"},

		{"rtt_general_surgery_total_incomplete_pathways", models.DomainRTT, "general_surgery", "total_incomplete_pathways"},
		{"rtt_trauma_orthopaedics_percent_within_18_weeks", models.DomainRTT, "trauma_orthopaedics", "percent_within_18_weeks"},
		{"rtt_total_incomplete_pathways", models.DomainRTT, models.TrustTotalSubgroup, "total_incomplete_pathways"},

		{"ae_four_hour_performance_pct", models.DomainAE, "", "four_hour_performance_pct"},
		{"emergency_admissions_total", models.DomainAE, "", "emergency_admissions_total"},

		{"mri_six_week_breaches", models.DomainDiagnostics, "mri", "six_week_breaches"},
		{"colonoscopy_waiting_list_total", models.DomainDiagnostics, "colonoscopy", "waiting_list_total"},
		{"diagnostic_waiting_list_total", models.DomainDiagnostics, "all_tests", "diagnostic_waiting_list_total"},

		{"virtual_ward_occupancy_pct", models.DomainCapacity, "", "virtual_ward_occupancy_pct"},
		{"capacity_general_acute_beds", models.DomainCapacity, "", "general_acute_beds"},
		{"discharge_delays_total", models.DomainCapacity, "", "discharge_delays_total"},

		{"mystery_column_42", models.DomainUncategorized, "", "mystery_column_42"},
	}

	for _, tt := range tests {
		t.Run(tt.column, func(t *testing.T) {
			got := Classify(tt.column)
			assert.Equal(t, tt.domain, got.Domain)
			assert.Equal(t, tt.subgroup, got.Subgroup)
			assert.Equal(t, tt.metric, got.Metric)
			assert.Equal(t, tt.column, got.Column)
		})
	}
}

// Rule order matters: an rtt_ column naming a geographic marker in its tail
// must still go to geographic first, per the declared precedence.
func TestClassifyFirstMatchWins(t *testing.T) {
	got := Classify("rtt_region_breakdown")
	assert.Equal(t, models.DomainGeographic, got.Domain)
}

func TestBuildMappingCoversEveryHeader(t *testing.T) {
	headers := []string{
		"entity_code", "period", "rtt_urology_total_incomplete_pathways",
		"ae_attendances_total", "something_unknown",
	}
	mapping := BuildMapping(headers, 3)

	assert.Equal(t, 3, mapping.SchemaVersion)
	assert.Len(t, mapping.Columns, len(headers))
	assert.Equal(t, []string{"something_unknown"}, mapping.Uncategorized())
	assert.NoError(t, mapping.CheckHeaders(headers))
	assert.Error(t, mapping.CheckHeaders([]string{"entity_code", "brand_new_column"}))
}

func TestMappingRoundTrip(t *testing.T) {
	mapping := BuildMapping([]string{"entity_code", "period", "rtt_ent_clock_stops"}, 2)
	path := filepath.Join(t.TempDir(), "mapping.json")

	require.NoError(t, SaveMapping(mapping, path))
	loaded, err := LoadMapping(path)
	require.NoError(t, err)

	assert.Equal(t, mapping.SchemaVersion, loaded.SchemaVersion)
	assert.Equal(t, mapping.Columns, loaded.Columns)
}
