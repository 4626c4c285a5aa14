package models

// RawRow holds one unprocessed source row: column name → raw cell string,
// exactly as read from the file. Consumed once by the record builder.
type RawRow map[string]string

// MetricValues maps a metric name to its coerced value. A nil value means
// the source cell was missing or invalid; zero is a real measurement.
type MetricValues map[string]*float64

// RTTPayload holds referral-to-treatment metrics, split into the trust-wide
// aggregate and the per-specialty breakdown.
type RTTPayload struct {
	TrustTotal  MetricValues            `json:"trust_total"`
	Specialties map[string]MetricValues `json:"specialties"`
}

// TransformedRecord is the unit of storage: one entity, one reporting
// period, nested domain payloads. The composite key (EntityCode, Period)
// is unique in the store.
type TransformedRecord struct {
	EntityCode string  `json:"entity_code"`
	Period     string  `json:"period"`
	EntityName string  `json:"entity_name"`
	GroupCode  *string `json:"group_code"`
	GroupName  *string `json:"group_name"`
	RecordType string  `json:"record_type"`

	RTT         RTTPayload              `json:"rtt"`
	AE          MetricValues            `json:"ae"`
	Diagnostics map[string]MetricValues `json:"diagnostics"`
	Capacity    MetricValues            `json:"capacity"`

	// Optional domains: nil (JSON null) when the source schema has no
	// columns for them, so downstream consumers see an explicit absence.
	Quality   MetricValues `json:"quality"`
	Financial MetricValues `json:"financial"`
}

// Key returns the composite identity used for idempotent upserts.
func (r *TransformedRecord) Key() string {
	return r.EntityCode + "|" + r.Period
}

// CountLeaves returns (populated, total) across every metric leaf of every
// domain that has at least one expected leaf. Zero counts as populated;
// only nil is unpopulated.
func (r *TransformedRecord) CountLeaves() (populated, total int) {
	count := func(m MetricValues) {
		for _, v := range m {
			total++
			if v != nil {
				populated++
			}
		}
	}
	count(r.RTT.TrustTotal)
	for _, m := range r.RTT.Specialties {
		count(m)
	}
	count(r.AE)
	for _, m := range r.Diagnostics {
		count(m)
	}
	count(r.Capacity)
	count(r.Quality)
	count(r.Financial)
	return populated, total
}
