// Package surveillance derives daily infection prevention metrics from a surveillance document and
// aggregates them over periods.
//
// Every operation is a pure function of its arguments: configuration is passed explicitly and no state
// is shared between calls, so derivations can run concurrently.
package surveillance

import (
	"math"
	"strings"

	"github.com/ipsurveil/ipmetrics/internal/records"
	"golang.org/x/text/cases"
)

// DefaultTimeoutHours is the default antibiotic time-out window.
const DefaultTimeoutHours = 72

// maxTimeoutHours bounds the time-out window so that it always converts to an int.
const maxTimeoutHours = math.MaxInt32

// DefaultMDROKeywords returns the default multidrug-resistant organism keywords.
func DefaultMDROKeywords() []string {
	return []string{"MRSA", "VRE", "ESBL", "CRE", "C. diff", "MDR", "MDRO"}
}

// DefaultEBPKeywords returns the default enhanced barrier precaution keywords.
func DefaultEBPKeywords() []string {
	return []string{"EBP", "Enhanced Barrier"}
}

// Options configures the derivation. The zero value selects every default.
type Options struct {
	// TimeoutHours is the antibiotic time-out window. nil selects DefaultTimeoutHours.
	// It is floored and negative values are treated as 0.
	TimeoutHours *float64
	// MDROKeywords are matched against pathogens. nil selects DefaultMDROKeywords.
	MDROKeywords []string
	// EBPKeywords are matched against protocols. nil selects DefaultEBPKeywords.
	EBPKeywords []string
	// UnitAliases maps free-text unit labels to canonical units.
	UnitAliases records.Aliases
}

type settings struct {
	timeoutHours int
	mdro         keywords
	ebp          keywords
	aliases      records.Aliases
}

func (o Options) resolve() settings {
	s := settings{
		timeoutHours: DefaultTimeoutHours,
		mdro:         newKeywords(DefaultMDROKeywords()),
		ebp:          newKeywords(DefaultEBPKeywords()),
		aliases:      o.UnitAliases,
	}
	if o.TimeoutHours != nil && !math.IsNaN(*o.TimeoutHours) {
		s.timeoutHours = int(math.Min(math.Max(math.Floor(*o.TimeoutHours), 0), maxTimeoutHours))
	}
	if o.MDROKeywords != nil {
		s.mdro = newKeywords(o.MDROKeywords)
	}
	if o.EBPKeywords != nil {
		s.ebp = newKeywords(o.EBPKeywords)
	}
	if s.aliases == nil {
		s.aliases = records.Aliases{}
	}
	return s
}

// keywords is a set of case folded keywords matched as substrings.
type keywords []string

func newKeywords(raw []string) keywords {
	fold := cases.Fold()
	var k keywords
	for _, w := range raw {
		w = strings.TrimSpace(w)
		if w == "" {
			continue
		}
		k = append(k, fold.String(w))
	}
	return k
}

// matchedBy reports whether text contains any of the keywords, ignoring case.
func (k keywords) matchedBy(text string) bool {
	if text == "" {
		return false
	}
	t := cases.Fold().String(text)
	for _, w := range k {
		if strings.Contains(t, w) {
			return true
		}
	}
	return false
}
