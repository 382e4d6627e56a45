package surveillance

import (
	"math"
	"strings"

	"github.com/ipsurveil/ipmetrics/internal/document"
	"github.com/ipsurveil/ipmetrics/internal/records"
)

// Schema tags every snapshot produced by this package.
const Schema = "ip-daily-metrics/v1"

// Counters are the metrics derived for one day. Every counter is a non-negative integer, except
// AbxWithIndicationPct which is a percentage rounded to one decimal.
type Counters struct {
	NewInfections             int     `json:"newInfections" yaml:"newInfections"`
	ActiveIPCases             int     `json:"activeIPCases" yaml:"activeIPCases"`
	ResidentsOnEBP            int     `json:"residentsOnEBP" yaml:"residentsOnEBP"`
	NewPrecautionsInitiated   int     `json:"newPrecautionsInitiated" yaml:"newPrecautionsInitiated"`
	PrecautionsDiscontinued   int     `json:"precautionsDiscontinued" yaml:"precautionsDiscontinued"`
	MDROActive                int     `json:"mdroActive" yaml:"mdroActive"`
	CulturesCollectedToday    int     `json:"culturesCollectedToday" yaml:"culturesCollectedToday"`
	CulturesPendingFollowUp   int     `json:"culturesPendingFollowUp" yaml:"culturesPendingFollowUp"`
	NewABTStarts              int     `json:"newABTStarts" yaml:"newABTStarts"`
	ActiveABTCourses          int     `json:"activeABTCourses" yaml:"activeABTCourses"`
	AbxWithIndicationPct      float64 `json:"abxWithIndicationPct" yaml:"abxWithIndicationPct"`
	AbtTimeoutsDueToday       int     `json:"abtTimeoutsDueToday" yaml:"abtTimeoutsDueToday"`
	AbtTimeoutsCompletedToday int     `json:"abtTimeoutsCompletedToday" yaml:"abtTimeoutsCompletedToday"`
	VaccinesGivenToday        int     `json:"vaccinesGivenToday" yaml:"vaccinesGivenToday"`
	VaccineDeclinesToday      int     `json:"vaccineDeclinesToday" yaml:"vaccineDeclinesToday"`
	VaccinesDue               int     `json:"vaccinesDue" yaml:"vaccinesDue"`
	VaccinesOverdue           int     `json:"vaccinesOverdue" yaml:"vaccinesOverdue"`
	OutbreaksActiveToday      int     `json:"outbreaksActiveToday" yaml:"outbreaksActiveToday"`
	OutbreakCasesToday        int     `json:"outbreakCasesToday" yaml:"outbreakCasesToday"`
}

// Snapshot is the metrics of one unit scope on one day.
type Snapshot struct {
	Schema string `json:"schema" yaml:"schema"`
	Date   string `json:"date" yaml:"date"`
	UnitID string `json:"unitId" yaml:"unitId"`
	// CensusCount and ResidentDays are nil when the document has no census data.
	CensusCount  *float64 `json:"censusCount" yaml:"censusCount"`
	ResidentDays *float64 `json:"residentDays" yaml:"residentDays"`

	Counters `yaml:",inline"`
}

// Derive computes the snapshot of scope on date.
//
// A date which is not valid yields a snapshot where every date based counter is zero. Records with
// missing or invalid fields are left out of the counters relying on them.
func Derive(doc document.Document, date, scope string, opts Options) Snapshot {
	s := opts.resolve()

	target, ok := records.ToISODate(date)
	snap := Snapshot{
		Schema: Schema,
		Date:   target,
		UnitID: ScopeID(scope, s.aliases),
	}
	if !ok {
		snap.Date = strings.TrimSpace(date)
	}

	if census := ResolveCensus(doc.Census, scope, s.aliases); census != nil {
		days := *census
		snap.CensusCount = census
		snap.ResidentDays = &days
	}

	d := day{target: target, settings: s}
	for _, r := range inScope(doc.IPCases, scope, s.aliases) {
		d.addIPCase(&snap.Counters, records.NewIPCase(r, s.aliases))
	}

	var active, withIndication int
	for _, r := range inScope(doc.Antibiotics, scope, s.aliases) {
		c := records.NewAntibioticCourse(r, s.aliases)
		if d.addCourse(&snap.Counters, c) {
			active++
			if c.Indication != "" {
				withIndication++
			}
		}
	}
	if active > 0 {
		snap.AbxWithIndicationPct = round1(100 * float64(withIndication) / float64(active))
	}

	for _, r := range inScope(doc.Vaccinations, scope, s.aliases) {
		d.addVaccination(&snap.Counters, records.NewVaccination(r, s.aliases))
	}
	for _, r := range inScope(doc.Outbreaks, scope, s.aliases) {
		if o := records.NewOutbreak(r, s.aliases); o.Status == "active" || records.ActiveOn(o.Start, o.End, target) {
			snap.OutbreaksActiveToday++
		}
	}
	for _, r := range inScope(doc.LineListings, scope, s.aliases) {
		if d.is(records.NewLineListing(r, s.aliases).Onset) {
			snap.OutbreakCasesToday++
		}
	}

	return snap
}

// ScopeID returns the canonical identifier of a unit scope.
func ScopeID(scope string, aliases records.Aliases) string {
	if records.IsFacility(scope) {
		return records.FacilityScope
	}
	return records.NormalizeUnit(scope, aliases)
}

// day evaluates the counting rules against one target date.
type day struct {
	target string
	settings
}

// is reports whether iso is the target date. Missing dates never match.
func (d day) is(iso string) bool {
	return iso != "" && iso == d.target
}

func (d day) addIPCase(c *Counters, ip records.IPCase) {
	active := records.ActiveOn(ip.Start, ip.End, d.target)

	if d.is(ip.Start) {
		c.NewInfections++
	}
	if active {
		c.ActiveIPCases++
		if d.ebp.matchedBy(ip.Protocol) {
			c.ResidentsOnEBP++
		}
		if d.mdro.matchedBy(ip.Pathogen) {
			c.MDROActive++
		}
	}

	initiated := ip.Start
	if ip.HasPrecautionStart {
		initiated = ip.PrecautionStart
	}
	if d.is(initiated) {
		c.NewPrecautionsInitiated++
	}
	if d.is(ip.End) {
		c.PrecautionsDiscontinued++
	}

	if d.is(ip.CultureDate) {
		c.CulturesCollectedToday++
	}
	if ip.CultureDate != "" && ip.CultureResult == "" {
		c.CulturesPendingFollowUp++
	}
}

// addCourse counts an antibiotic course and reports whether it is active.
func (d day) addCourse(c *Counters, abx records.AntibioticCourse) bool {
	if d.is(abx.Start) {
		c.NewABTStarts++
	}
	if d.is(abx.TimeoutReview) || d.is(abx.TimeoutOutcome) {
		c.AbtTimeoutsCompletedToday++
	}

	if !records.ActiveOn(abx.Start, abx.End, d.target) {
		return false
	}
	c.ActiveABTCourses++
	if d.is(records.AddHours(abx.Start, d.timeoutHours)) {
		c.AbtTimeoutsDueToday++
	}
	return true
}

func (d day) addVaccination(c *Counters, v records.Vaccination) {
	switch v.Status {
	case "given":
		if d.is(v.Given) {
			c.VaccinesGivenToday++
		}
	case "declined":
		if d.is(v.Offer) {
			c.VaccineDeclinesToday++
		}
	case "due":
		c.VaccinesDue++
	case "overdue":
		c.VaccinesOverdue++
	}
}

// inScope returns the records of rs matching scope.
func inScope(rs []records.Record, scope string, aliases records.Aliases) []records.Record {
	var matching []records.Record
	for _, r := range rs {
		if records.MatchesUnit(r, scope, aliases) {
			matching = append(matching, r)
		}
	}
	return matching
}

// round1 rounds x half away from zero to one decimal.
func round1(x float64) float64 {
	return math.Round(x*10) / 10
}
