package surveillance_test

import (
	"math"
	"testing"

	"github.com/ipsurveil/ipmetrics/internal/surveillance"
	"github.com/stretchr/testify/require"
)

func TestTimeoutHours(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		hours *float64

		want int
	}{
		"Defaults to 72 hours":     {want: 72},
		"Integer value":            {hours: ptr(48.0), want: 48},
		"Floored":                  {hours: ptr(95.9), want: 95},
		"Zero":                     {hours: ptr(0.0), want: 0},
		"Negative clamped to zero": {hours: ptr(-12.0), want: 0},
		"NaN selects the default":  {hours: ptr(math.NaN()), want: 72},
		"Infinity is bounded":      {hours: ptr(math.Inf(1)), want: math.MaxInt32},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			got := surveillance.Options{TimeoutHours: tc.hours}.ResolvedTimeoutHours()
			require.Equal(t, tc.want, got, "unexpected time-out window")
		})
	}
}

func TestKeywords(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		opts surveillance.Options
		mdro string
		ebp  string

		wantMDRO bool
		wantEBP  bool
	}{
		"Default keywords":                  {mdro: "MRSA", ebp: "EBP", wantMDRO: true, wantEBP: true},
		"Substring match":                   {mdro: "ESBL producing E. coli", ebp: "Enhanced Barrier Precautions", wantMDRO: true, wantEBP: true},
		"Case insensitive":                  {mdro: "c. DIFF", ebp: "enhanced barrier", wantMDRO: true, wantEBP: true},
		"No match":                          {mdro: "Influenza A", ebp: "Contact"},
		"Empty text never matches":          {},
		"Empty list disables the matching":  {opts: surveillance.Options{MDROKeywords: []string{}, EBPKeywords: []string{}}, mdro: "MRSA", ebp: "EBP"},
		"Blank keywords are ignored":        {opts: surveillance.Options{MDROKeywords: []string{" "}, EBPKeywords: []string{""}}, mdro: "MRSA", ebp: "EBP"},
		"Custom keywords replace defaults":  {opts: surveillance.Options{MDROKeywords: []string{"influenza"}, EBPKeywords: []string{" droplet "}}, mdro: "Influenza A", ebp: "Droplet", wantMDRO: true, wantEBP: true},
		"Custom keywords drop the defaults": {opts: surveillance.Options{MDROKeywords: []string{"influenza"}, EBPKeywords: []string{"droplet"}}, mdro: "MRSA", ebp: "EBP"},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			require.Equal(t, tc.wantMDRO, tc.opts.MatchesMDRO(tc.mdro), "unexpected MDRO match for %q", tc.mdro)
			require.Equal(t, tc.wantEBP, tc.opts.MatchesEBP(tc.ebp), "unexpected EBP match for %q", tc.ebp)
		})
	}
}

func TestDefaultKeywordsAreCopies(t *testing.T) {
	t.Parallel()

	k := surveillance.DefaultMDROKeywords()
	k[0] = "changed"
	require.Equal(t, "MRSA", surveillance.DefaultMDROKeywords()[0], "default keywords should not be shared")
}

func ptr[T any](v T) *T {
	return &v
}
