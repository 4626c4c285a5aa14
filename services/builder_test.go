package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nhs-data-pipeline/models"
)

var fixtureHeaders = []string{
	"entity_code", "entity_name", "period",
	"icb_code", "icb_name",
	"rtt_general_surgery_total_incomplete_pathways",
	"rtt_general_surgery_percent_within_18_weeks",
	"rtt_urology_total_incomplete_pathways",
	"rtt_total_incomplete_pathways",
	"ae_four_hour_performance_pct",
	"ae_attendances_total",
	"mri_six_week_breaches",
	"colonoscopy_waiting_list_total",
	"virtual_ward_occupancy_pct",
}

func fixtureMapping() *models.ColumnMapping {
	return BuildMapping(fixtureHeaders, 1)
}

func TestBuildHappyPath(t *testing.T) {
	b := NewBuilder(fixtureMapping())

	rec, err := b.Build(models.RawRow{
		"entity_code": "RGT",
		"entity_name": "Cambridge University Hospitals",
		"period":      "2024-01-01",
		"icb_code":    "QUE",
		"icb_name":    "Cambridgeshire and Peterborough ICB",
		"rtt_general_surgery_total_incomplete_pathways": "120",
		"ae_four_hour_performance_pct":                  "92.3",
	})
	require.NoError(t, err)

	assert.Equal(t, "RGT", rec.EntityCode)
	assert.Equal(t, "2024-01-01", rec.Period)
	assert.Equal(t, "monthly", rec.RecordType)
	require.NotNil(t, rec.GroupCode)
	assert.Equal(t, "QUE", *rec.GroupCode)
	require.NotNil(t, rec.GroupName)

	gs := rec.RTT.Specialties["general_surgery"]
	require.NotNil(t, gs)
	require.NotNil(t, gs["total_incomplete_pathways"])
	assert.Equal(t, 120.0, *gs["total_incomplete_pathways"])

	require.NotNil(t, rec.AE["four_hour_performance_pct"])
	assert.Equal(t, 92.3, *rec.AE["four_hour_performance_pct"])
}

// Every domain/subgroup/metric key declared by the mapping must exist in
// the output even when the row carries no values for them.
func TestBuildStructuralCompleteness(t *testing.T) {
	b := NewBuilder(fixtureMapping())

	rec, err := b.Build(models.RawRow{
		"entity_code": "R0A",
		"period":      "2024-02-01",
	})
	require.NoError(t, err)

	assert.Contains(t, rec.RTT.Specialties, "general_surgery")
	assert.Contains(t, rec.RTT.Specialties, "urology")
	assert.Contains(t, rec.RTT.Specialties["general_surgery"], "percent_within_18_weeks")
	assert.Contains(t, rec.RTT.TrustTotal, "total_incomplete_pathways")
	assert.Contains(t, rec.AE, "attendances_total")
	assert.Contains(t, rec.Diagnostics, "mri")
	assert.Contains(t, rec.Diagnostics["mri"], "six_week_breaches")
	assert.Contains(t, rec.Diagnostics, "colonoscopy")
	assert.Contains(t, rec.Capacity, "virtual_ward_occupancy_pct")

	for sub, metrics := range rec.RTT.Specialties {
		for metric, v := range metrics {
			assert.Nil(t, v, "rtt.%s.%s should be nil for an empty row", sub, metric)
		}
	}

	assert.Nil(t, rec.Quality, "quality stays absent when the schema has no columns for it")
	assert.Nil(t, rec.Financial)
	assert.Nil(t, rec.GroupCode)
	assert.Nil(t, rec.GroupName)
	assert.Equal(t, "", rec.EntityName)
}

func TestBuildInvalidCellsBecomeNil(t *testing.T) {
	b := NewBuilder(fixtureMapping())

	rec, err := b.Build(models.RawRow{
		"entity_code": "RWD",
		"period":      "2024-03-01",
		"rtt_general_surgery_total_incomplete_pathways": "-10",
		"rtt_urology_total_incomplete_pathways":         "null",
		"ae_attendances_total":                          "0",
	})
	require.NoError(t, err)

	assert.Nil(t, rec.RTT.Specialties["general_surgery"]["total_incomplete_pathways"])
	assert.Nil(t, rec.RTT.Specialties["urology"]["total_incomplete_pathways"])
	require.NotNil(t, rec.AE["attendances_total"])
	assert.Equal(t, 0.0, *rec.AE["attendances_total"])
}

func TestBuildMissingIdentityIsRowError(t *testing.T) {
	b := NewBuilder(fixtureMapping())

	_, err := b.Build(models.RawRow{"period": "2024-01-01"})
	assert.Error(t, err)

	_, err = b.Build(models.RawRow{"entity_code": "RGT"})
	assert.Error(t, err)
}
