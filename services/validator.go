package services

import (
	"regexp"
	"time"

	"nhs-data-pipeline/models"
)

// entityCodeRegexp matches a well-formed 3-character uppercase entity code.
var entityCodeRegexp = regexp.MustCompile(`^[A-Z0-9]{3}$`)

// periodLayout is the expected calendar-date format of the period column,
// first-of-period convention.
const periodLayout = "2006-01-02"

// Validator inspects transformed records and produces verdicts. It runs in
// permissive mode: only malformed identity fields reject a record, because
// partial metric data is more useful than record rejection.
type Validator struct {
	completenessThreshold float64
}

// NewValidator creates a Validator. Records whose populated-leaf ratio is
// below threshold are accepted with a low-completeness warning.
func NewValidator(threshold float64) *Validator {
	return &Validator{completenessThreshold: threshold}
}

// Validate is a pure function of the record: no I/O, no side effects.
func (v *Validator) Validate(rec *models.TransformedRecord) models.ValidationVerdict {
	verdict := models.ValidationVerdict{IsValid: true}

	if !entityCodeRegexp.MatchString(rec.EntityCode) {
		verdict.IsValid = false
		verdict.Errors = append(verdict.Errors, models.ErrInvalidEntityCode)
	}
	if _, err := time.Parse(periodLayout, rec.Period); err != nil {
		verdict.IsValid = false
		verdict.Errors = append(verdict.Errors, models.ErrInvalidPeriod)
	}

	populated, total := rec.CountLeaves()
	if total > 0 {
		verdict.Completeness = float64(populated) / float64(total)
	}
	if total > 0 && verdict.Completeness < v.completenessThreshold {
		verdict.Warnings = append(verdict.Warnings, models.WarnLowCompleteness)
	}

	return verdict
}
