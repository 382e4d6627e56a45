package surveillance_test

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/ipsurveil/ipmetrics/internal/document"
	"github.com/ipsurveil/ipmetrics/internal/records"
	"github.com/ipsurveil/ipmetrics/internal/surveillance"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fixture is a document spread over two units around 2026-02-17.
func fixture() document.Document {
	return document.Document{
		IPCases: []records.Record{
			{"unit": "Unit 2", "onsetDate": "2026-02-10", "resolutionDate": "2026-02-17", "protocol": "Enhanced barrier precautions", "pathogen": "esbl e. coli", "cultureDate": "2026-02-10", "cultureResult": "positive"},
			{"unit": "Unit 3", "precautionStartDate": "2026-02-17", "isolationType": "Contact", "organism": "VRE", "collectionDateTime": "2026-02-17T10:00"},
			{"unit": "Unit 2", "onsetDate": "2026-02-15", "precautionStartDate": "2026-02-17", "protocol": "Droplet", "organism": "Influenza A"},
			{"unit": "Unit 2", "onsetDate": "bad-date", "protocol": "EBP", "organism": "MRSA"},
			{"unit": "Unit 2", "onsetDate": "2026-02-18", "protocol": "EBP"},
		},
		Antibiotics: []records.Record{
			{"unit": "Unit 2", "startDate": "2026-02-14", "indication": "UTI"},
			{"unit": "Unit 2", "startDate": "2026-02-17", "endDate": "2026-02-20"},
			{"unit": "Unit 3", "startDate": "2026-02-10", "endDate": "2026-02-16", "timeoutReviewDate": "2026-02-17"},
			{"unit": "Unit 3", "beginDate": "2026-02-12", "indication": "PNA", "timeoutReviewDate": "2026-02-15", "outcomeDate": "2026-02-17"},
			{"unit": "Unit 2", "startDate": "not a date", "indication": "PNA"},
		},
		Vaccinations: []records.Record{
			{"unit": "Unit 2", "status": "Given", "dateGiven": "2026-02-17"},
			{"unit": "Unit 2", "status": "given", "givenDate": "2026-02-16"},
			{"unit": "Unit 3", "status": "declined", "offerDate": "2/17/2026"},
			{"unit": "Unit 3", "status": "due", "dueDate": "2026-03-01"},
			{"unit": "Unit 2", "status": "overdue"},
			{"unit": "Unit 2", "status": "Due soon"},
		},
		Outbreaks: []records.Record{
			{"unit": "Unit 2", "status": "active", "startDate": "2026-03-01"},
			{"unit": "Unit 3", "status": "resolved", "startDate": "2026-02-01", "endDate": "2026-02-17"},
			{"unit": "Unit 2", "status": "resolved", "startDate": "2026-02-01", "endDate": "2026-02-10"},
			{"status": "active"},
		},
		LineListings: []records.Record{
			{"unit": "Unit 2", "onsetDate": "2026-02-17", "outbreakId": "ob-1"},
			{"unit": "Unit 3", "symptomOnsetDate": "2026-02-17"},
			{"unit": "Unit 2", "onsetDate": "2026-02-16"},
		},
		Census: []records.Record{
			{"unit": "Unit 2", "censusCount": 10.0},
			{"unit": "Unit 3", "count": "12"},
			{"unit": "Unit 3", "residents": -4.0, "census": 3},
		},
	}
}

func TestDerive(t *testing.T) {
	t.Parallel()

	facility := surveillance.Counters{
		NewInfections:             1,
		ActiveIPCases:             3,
		ResidentsOnEBP:            1,
		NewPrecautionsInitiated:   2,
		PrecautionsDiscontinued:   1,
		MDROActive:                2,
		CulturesCollectedToday:    1,
		CulturesPendingFollowUp:   1,
		NewABTStarts:              1,
		ActiveABTCourses:          3,
		AbxWithIndicationPct:      66.7,
		AbtTimeoutsDueToday:       1,
		AbtTimeoutsCompletedToday: 2,
		VaccinesGivenToday:        1,
		VaccineDeclinesToday:      1,
		VaccinesDue:               1,
		VaccinesOverdue:           1,
		OutbreaksActiveToday:      3,
		OutbreakCasesToday:        2,
	}
	unit2 := surveillance.Counters{
		ActiveIPCases:           2,
		ResidentsOnEBP:          1,
		NewPrecautionsInitiated: 1,
		PrecautionsDiscontinued: 1,
		MDROActive:              1,
		NewABTStarts:            1,
		ActiveABTCourses:        2,
		AbxWithIndicationPct:    50,
		AbtTimeoutsDueToday:     1,
		VaccinesGivenToday:      1,
		VaccinesOverdue:         1,
		OutbreaksActiveToday:    1,
		OutbreakCasesToday:      1,
	}

	tests := map[string]struct {
		date  string
		scope string
		opts  surveillance.Options

		wantDate   string
		wantUnit   string
		wantCensus *float64
		want       surveillance.Counters
	}{
		"Facility":                    {date: "2026-02-17", scope: "facility", wantDate: "2026-02-17", wantUnit: "facility", wantCensus: ptr(25.0), want: facility},
		"Empty scope is facility":     {date: "2026-02-17", wantDate: "2026-02-17", wantUnit: "facility", wantCensus: ptr(25.0), want: facility},
		"Slash date":                  {date: "02/17/2026", scope: "Facility", wantDate: "2026-02-17", wantUnit: "facility", wantCensus: ptr(25.0), want: facility},
		"Unit":                        {date: "2026-02-17", scope: "Unit 2", wantDate: "2026-02-17", wantUnit: "Unit 2", wantCensus: ptr(10.0), want: unit2},
		"Unit scope is normalized":    {date: "2026-02-17", scope: "  Unit   2 ", wantDate: "2026-02-17", wantUnit: "Unit 2", wantCensus: ptr(10.0), want: unit2},
		"Unit scope through an alias": {date: "2026-02-17", scope: "2W", opts: surveillance.Options{UnitAliases: records.Aliases{"2w": "Unit 2"}}, wantDate: "2026-02-17", wantUnit: "Unit 2", wantCensus: ptr(10.0), want: unit2},
		"Unknown unit":                {date: "2026-02-17", scope: "Unit 9", wantDate: "2026-02-17", wantUnit: "Unit 9", wantCensus: ptr(0.0)},

		"Custom time-out window": {
			date: "2026-02-17", scope: "facility", opts: surveillance.Options{TimeoutHours: ptr(0.0)},
			wantDate: "2026-02-17", wantUnit: "facility", wantCensus: ptr(25.0),
			want: with(facility, func(c *surveillance.Counters) { c.AbtTimeoutsDueToday = 1 }),
		},
		"Time-out window not matching any course": {
			date: "2026-02-17", scope: "facility", opts: surveillance.Options{TimeoutHours: ptr(48.0)},
			wantDate: "2026-02-17", wantUnit: "facility", wantCensus: ptr(25.0),
			want: with(facility, func(c *surveillance.Counters) { c.AbtTimeoutsDueToday = 0 }),
		},
		"Custom keywords": {
			date: "2026-02-17", scope: "facility",
			opts:     surveillance.Options{MDROKeywords: []string{"influenza"}, EBPKeywords: []string{"contact", "droplet"}},
			wantDate: "2026-02-17", wantUnit: "facility", wantCensus: ptr(25.0),
			want: with(facility, func(c *surveillance.Counters) { c.MDROActive = 1; c.ResidentsOnEBP = 2 }),
		},
		"Invalid date only keeps undated counters": {
			date: " bad-date ", scope: "facility",
			wantDate: "bad-date", wantUnit: "facility", wantCensus: ptr(25.0),
			want: surveillance.Counters{CulturesPendingFollowUp: 1, VaccinesDue: 1, VaccinesOverdue: 1, OutbreaksActiveToday: 2},
		},
		"Day without activity": {
			date: "2025-01-01", scope: "facility",
			wantDate: "2025-01-01", wantUnit: "facility", wantCensus: ptr(25.0),
			want: surveillance.Counters{CulturesPendingFollowUp: 1, VaccinesDue: 1, VaccinesOverdue: 1, OutbreaksActiveToday: 2},
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			got := surveillance.Derive(fixture(), tc.date, tc.scope, tc.opts)

			require.Equal(t, surveillance.Schema, got.Schema, "unexpected schema")
			require.Equal(t, tc.wantDate, got.Date, "unexpected date")
			require.Equal(t, tc.wantUnit, got.UnitID, "unexpected unit")
			require.Equal(t, tc.wantCensus, got.CensusCount, "unexpected census")
			require.Equal(t, tc.wantCensus, got.ResidentDays, "resident days should equal the census")
			require.Equal(t, tc.want, got.Counters, "unexpected counters")
		})
	}
}

func TestDeriveScenario(t *testing.T) {
	t.Parallel()

	want := surveillance.Counters{
		NewInfections:           1,
		ActiveIPCases:           1,
		ResidentsOnEBP:          1,
		NewPrecautionsInitiated: 1,
		MDROActive:              1,
		NewABTStarts:            1,
		ActiveABTCourses:        1,
		AbxWithIndicationPct:    100,
		VaccinesGivenToday:      1,
	}

	tests := map[string]struct {
		abxUnit string
		scope   string
	}{
		"Unit scope":                        {abxUnit: "Unit 2", scope: "Unit 2"},
		"Facility scope with unitless data": {scope: "facility"},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			abx := records.Record{"startDate": "2026-02-17", "indication": "PNA"}
			vax := records.Record{"status": "given", "dateGiven": "2026-02-17"}
			if tc.abxUnit != "" {
				abx["unit"] = tc.abxUnit
				vax["unit"] = tc.abxUnit
			}
			doc := document.Document{
				IPCases:      []records.Record{{"unit": "Unit 2", "onsetDate": "2026-02-17", "protocol": "EBP", "organism": "MRSA"}},
				Antibiotics:  []records.Record{abx},
				Vaccinations: []records.Record{vax},
			}

			got := surveillance.Derive(doc, "2026-02-17", tc.scope, surveillance.Options{})
			require.Equal(t, want, got.Counters, "unexpected counters")
			require.Nil(t, got.CensusCount, "census should be nil without census data")
			require.Nil(t, got.ResidentDays, "resident days should be nil without census data")
		})
	}
}

func TestDeriveMalformedInput(t *testing.T) {
	t.Parallel()

	garbage := []records.Record{
		{},
		nil,
		{"onsetDate": math.NaN(), "startDate": math.Inf(1), "unit": []any{"Unit 2"}},
		{"onsetDate": true, "resolutionDate": map[string]any{"d": 1}, "cultureDate": "2026-13-45"},
		{"startDate": "bad-date", "endDate": "bad-date", "status": 12.0, "dateGiven": "bad-date"},
		{"precautionStartDate": "bad-date", "onsetDate": "2026-02-17"},
	}

	tests := map[string]struct {
		doc document.Document

		want surveillance.Counters
	}{
		"Empty document": {},
		"Garbage records": {
			doc: document.Document{IPCases: garbage, Antibiotics: garbage, Vaccinations: garbage, Outbreaks: garbage, LineListings: garbage},
			// Only the last record has a usable date. Its explicit precaution start is invalid.
			want: surveillance.Counters{NewInfections: 1, ActiveIPCases: 1, OutbreaksActiveToday: 1, OutbreakCasesToday: 1},
		},
		"Decoded empty object": {doc: document.FromMap(map[string]any{})},
		"Decoded wrong shapes": {doc: document.FromMap(map[string]any{"records": "x", "census": 3.0})},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			for _, date := range []string{"2026-02-17", "", "bad-date"} {
				for _, scope := range []string{"facility", "Unit 2", ""} {
					got := surveillance.Derive(tc.doc, date, scope, surveillance.Options{})
					require.Nil(t, got.CensusCount, "census should be nil without census data")
					if date != "2026-02-17" {
						require.Equal(t, surveillance.Counters{}, got.Counters, "invalid dates should not match %q", date)
						continue
					}
					if scope == "Unit 2" {
						require.Equal(t, surveillance.Counters{}, got.Counters, "records without unit should not match a unit")
						continue
					}
					require.Equal(t, tc.want, got.Counters, "unexpected counters")
				}
			}
		})
	}
}

func TestDeriveJSON(t *testing.T) {
	t.Parallel()

	got, err := json.Marshal(surveillance.Derive(document.Document{}, "2026-02-17", "facility", surveillance.Options{}))
	require.NoError(t, err, "Setup: could not marshal snapshot")

	var fields map[string]any
	require.NoError(t, json.Unmarshal(got, &fields), "Setup: could not unmarshal snapshot")

	for _, k := range []string{
		"schema", "date", "unitId", "censusCount", "residentDays",
		"newInfections", "activeIPCases", "residentsOnEBP", "newPrecautionsInitiated", "precautionsDiscontinued",
		"mdroActive", "culturesCollectedToday", "culturesPendingFollowUp", "newABTStarts", "activeABTCourses",
		"abxWithIndicationPct", "abtTimeoutsDueToday", "abtTimeoutsCompletedToday", "vaccinesGivenToday",
		"vaccineDeclinesToday", "vaccinesDue", "vaccinesOverdue", "outbreaksActiveToday", "outbreakCasesToday",
	} {
		assert.Contains(t, fields, k, "snapshot should always carry %s", k)
	}
	assert.Nil(t, fields["censusCount"], "census should be null without census data")
	assert.Len(t, fields, 24, "snapshot should not carry unexpected fields")
}

func TestResolveCensus(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		rows  []records.Record
		scope string

		want *float64
	}{
		"Facility sums every unit":       {rows: []records.Record{{"unit": "Unit 2", "censusCount": 10.0}, {"unit": "Unit 3", "censusCount": 10.0}}, scope: "facility", want: ptr(20.0)},
		"Unit only sums its rows":        {rows: []records.Record{{"unit": "Unit 2", "censusCount": 10.0}, {"unit": "Unit 3", "censusCount": 10.0}}, scope: "Unit 2", want: ptr(10.0)},
		"First count field wins":         {rows: []records.Record{{"censusCount": 5.0, "count": 8.0, "residents": 9.0}}, want: ptr(5.0)},
		"Alternate count fields":         {rows: []records.Record{{"count": 2.0}, {"residents": 3.0}, {"census": 4.0}}, want: ptr(9.0)},
		"Numeric strings":                {rows: []records.Record{{"censusCount": " 7 "}}, want: ptr(7.0)},
		"Negative counts are skipped":    {rows: []records.Record{{"censusCount": -3.0, "count": 4.0}}, want: ptr(4.0)},
		"Non numeric counts are skipped": {rows: []records.Record{{"censusCount": "many", "count": 4.0}}, want: ptr(4.0)},
		"Fractional counts are kept":     {rows: []records.Record{{"censusCount": 2.5}}, want: ptr(2.5)},
		"Rows without count add nothing": {rows: []records.Record{{"censusCount": 10.0}, {"unit": "Unit 2"}}, want: ptr(10.0)},
		"Counts rows without any count":  {rows: []records.Record{{"unit": "Unit 2"}, {"unit": "Unit 2", "count": "n/a"}, {"unit": "Unit 3"}}, scope: "Unit 2", want: ptr(2.0)},
		"Zero when no row matches":       {rows: []records.Record{{"unit": "Unit 3", "censusCount": 10.0}}, scope: "Unit 2", want: ptr(0.0)},

		"Nil without rows":   {rows: []records.Record{}, scope: "facility"},
		"Nil for nil census": {scope: "Unit 2"},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			got := surveillance.ResolveCensus(tc.rows, tc.scope, nil)
			require.Equal(t, tc.want, got, "unexpected census")
		})
	}
}

func TestDeriveConcurrently(t *testing.T) {
	t.Parallel()

	doc := fixture()
	want := surveillance.Derive(doc, "2026-02-17", "facility", surveillance.Options{})

	done := make(chan surveillance.Snapshot)
	for range 8 {
		go func() {
			done <- surveillance.Derive(doc, "2026-02-17", "facility", surveillance.Options{})
		}()
	}
	for range 8 {
		require.Equal(t, want, <-done, "concurrent derivations should agree")
	}
}

func with(c surveillance.Counters, change func(*surveillance.Counters)) surveillance.Counters {
	change(&c)
	return c
}
