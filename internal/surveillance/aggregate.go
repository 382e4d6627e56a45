package surveillance

import (
	"strings"
	"time"

	"github.com/ipsurveil/ipmetrics/internal/document"
	"github.com/ipsurveil/ipmetrics/internal/records"
)

// DeriveRange derives one snapshot per calendar day from start to end, both included, in ascending
// order.
// It returns an empty slice when either bound is not a valid date or when start is after end.
func DeriveRange(doc document.Document, start, end, scope string, opts Options) []Snapshot {
	first, okStart := parseDay(start)
	last, okEnd := parseDay(end)
	if !okStart || !okEnd || first.After(last) {
		return []Snapshot{}
	}

	snaps := make([]Snapshot, 0, int(last.Sub(first).Hours()/24)+1)
	for t := first; !t.After(last); t = t.AddDate(0, 0, 1) {
		snaps = append(snaps, Derive(doc, t.Format(records.ISOLayout), scope, opts))
	}
	return snaps
}

func parseDay(v string) (time.Time, bool) {
	iso, ok := records.ToISODate(v)
	if !ok {
		return time.Time{}, false
	}
	t, err := time.ParseInLocation(records.ISOLayout, iso, time.UTC)
	return t, err == nil
}

// Rates are incidence rates per 1000 resident days.
type Rates struct {
	NewInfections float64 `json:"newInfections" yaml:"newInfections"`
	NewABTStarts  float64 `json:"newABTStarts" yaml:"newABTStarts"`
}

// Period summarizes the snapshots of a period.
type Period struct {
	UnitID   string `json:"unitId" yaml:"unitId"`
	StartISO string `json:"startISO" yaml:"startISO"`
	EndISO   string `json:"endISO" yaml:"endISO"`
	// ResidentDays is nil when no snapshot of the period reported resident days.
	ResidentDays *float64 `json:"residentDays" yaml:"residentDays"`
	Totals       Counters `json:"totals" yaml:"totals"`
	// RatesPer1000ResidentDays is only set when ResidentDays is positive.
	RatesPer1000ResidentDays *Rates `json:"ratesPer1000ResidentDays,omitempty" yaml:"ratesPer1000ResidentDays,omitempty"`
}

// Aggregate reduces the snapshots dated from start to end, both included, into period totals.
//
// An invalid bound leaves its side of the period open, and snapshots without a valid date are ignored.
// Counters are summed, except the indication percentage which is averaged with the active course
// count of each day as weight. The plain average is used when no day has any active course.
//
// Unit aliases are not applied to scope: callers resolving aliases pass the result of ScopeID, so that
// the period carries the UnitID of the snapshots it reduces.
func Aggregate(snaps []Snapshot, scope, start, end string) Period {
	from, okFrom := records.ToISODate(start)
	to, okTo := records.ToISODate(end)

	agg := Period{
		UnitID:   ScopeID(scope, nil),
		StartISO: from,
		EndISO:   to,
	}
	if !okFrom {
		agg.StartISO = strings.TrimSpace(start)
	}
	if !okTo {
		agg.EndISO = strings.TrimSpace(end)
	}

	var residentDays, weighted, weights, pctSum float64
	var reported bool
	var n int
	for _, s := range snaps {
		d, ok := records.ToISODate(s.Date)
		if !ok || (okFrom && d < from) || (okTo && d > to) {
			continue
		}
		n++

		agg.Totals.add(s.Counters)
		if s.ResidentDays != nil {
			residentDays += *s.ResidentDays
			reported = true
		}

		pctSum += s.AbxWithIndicationPct
		if w := float64(s.ActiveABTCourses); w > 0 {
			weighted += s.AbxWithIndicationPct * w
			weights += w
		}
	}

	switch {
	case weights > 0:
		agg.Totals.AbxWithIndicationPct = round1(weighted / weights)
	case n > 0:
		agg.Totals.AbxWithIndicationPct = round1(pctSum / float64(n))
	}

	if !reported {
		return agg
	}
	agg.ResidentDays = &residentDays
	if residentDays > 0 {
		agg.RatesPer1000ResidentDays = &Rates{
			NewInfections: round1(float64(agg.Totals.NewInfections) / residentDays * 1000),
			NewABTStarts:  round1(float64(agg.Totals.NewABTStarts) / residentDays * 1000),
		}
	}
	return agg
}

// add sums the integer counters of o into c.
func (c *Counters) add(o Counters) {
	c.NewInfections += o.NewInfections
	c.ActiveIPCases += o.ActiveIPCases
	c.ResidentsOnEBP += o.ResidentsOnEBP
	c.NewPrecautionsInitiated += o.NewPrecautionsInitiated
	c.PrecautionsDiscontinued += o.PrecautionsDiscontinued
	c.MDROActive += o.MDROActive
	c.CulturesCollectedToday += o.CulturesCollectedToday
	c.CulturesPendingFollowUp += o.CulturesPendingFollowUp
	c.NewABTStarts += o.NewABTStarts
	c.ActiveABTCourses += o.ActiveABTCourses
	c.AbtTimeoutsDueToday += o.AbtTimeoutsDueToday
	c.AbtTimeoutsCompletedToday += o.AbtTimeoutsCompletedToday
	c.VaccinesGivenToday += o.VaccinesGivenToday
	c.VaccineDeclinesToday += o.VaccineDeclinesToday
	c.VaccinesDue += o.VaccinesDue
	c.VaccinesOverdue += o.VaccinesOverdue
	c.OutbreaksActiveToday += o.OutbreaksActiveToday
	c.OutbreakCasesToday += o.OutbreakCasesToday
}
