package surveillance

import "github.com/ipsurveil/ipmetrics/internal/records"

// censusKeys are the candidate fields holding the head count of a census row.
var censusKeys = []string{"censusCount", "count", "residents", "census"}

// ResolveCensus returns the head count of scope according to the census rows.
//
// It returns nil when there are no census rows at all, to distinguish missing census data from an
// empty unit. Each matching row contributes the first of its count fields holding a non-negative
// number. If no matching row holds any count, every matching row counts as one resident.
func ResolveCensus(rows []records.Record, scope string, aliases records.Aliases) *float64 {
	if len(rows) == 0 {
		return nil
	}

	var total float64
	var matching int
	var counted bool
	for _, r := range rows {
		if !records.MatchesUnit(r, scope, aliases) {
			continue
		}
		matching++
		if n, ok := rowCount(r); ok {
			total += n
			counted = true
		}
	}

	if !counted {
		total = float64(matching)
	}
	return &total
}

func rowCount(r records.Record) (float64, bool) {
	for _, k := range censusKeys {
		if n, ok := r.Number(k); ok && n >= 0 {
			return n, true
		}
	}
	return 0, false
}
