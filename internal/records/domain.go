package records

import "strings"

// Candidate field names per concept, in resolution order.
var (
	ipStartKeys          = []string{"onsetDate", "precautionStartDate", "initiationDate", "startDate", "beginDate"}
	ipEndKeys            = []string{"resolutionDate", "precautionEndDate", "dischargeDate", "endDate", "stopDate"}
	ipProtocolKeys       = []string{"protocol", "isolationType", "precautionType"}
	ipInfectionTypeKeys  = []string{"infectionType", "infection"}
	ipPathogenKeys       = []string{"pathogen", "organism"}
	ipCultureDateKeys    = []string{"collectionDateTime", "cultureCollectionDate", "cultureDate"}
	ipCultureResultKeys  = []string{"cultureResult", "result"}
	ipPrecautionStartKey = "precautionStartDate"

	abxStartKeys         = []string{"startDate", "beginDate", "initiationDate"}
	abxEndKeys           = []string{"endDate", "stopDate", "discontinueDate"}
	abxIndicationKeys    = []string{"indication"}
	abxTimeoutReviewKeys = []string{"timeoutReviewDate", "timeOutReviewDate"}
	abxTimeoutOutcomeKey = []string{"timeoutOutcomeDate", "outcomeDate"}

	vaxStatusKeys = []string{"status"}
	vaxGivenKeys  = []string{"dateGiven", "givenDate", "administeredDate"}
	vaxOfferKeys  = []string{"offerDate", "dateOffered", "educationDate"}
	vaxDueKeys    = []string{"dueDate", "nextDueDate"}

	outbreakStatusKeys = []string{"status"}
	outbreakStartKeys  = []string{"startDate", "dateStart", "onsetDate"}
	outbreakEndKeys    = []string{"endDate", "dateEnd", "resolvedDate"}

	lineListingOnsetKeys    = []string{"onsetDate", "symptomOnsetDate"}
	lineListingOutbreakKeys = []string{"outbreakId", "outbreak_id"}
)

// IPCase is the canonical shape of an infection prevention case.
type IPCase struct {
	Unit          string
	Start         string
	End           string
	Protocol      string
	InfectionType string
	Pathogen      string
	CultureDate   string
	CultureResult string

	// PrecautionStart is set when the record carries an explicit precaution start field.
	// HasPrecautionStart distinguishes an explicit but invalid date from an absent one.
	PrecautionStart    string
	HasPrecautionStart bool
}

// NewIPCase normalizes a raw infection prevention case.
func NewIPCase(r Record, aliases Aliases) IPCase {
	c := IPCase{
		Unit:          UnitOf(r, aliases),
		Start:         isoOf(r, ipStartKeys),
		End:           isoOf(r, ipEndKeys),
		Protocol:      r.String(ipProtocolKeys...),
		InfectionType: r.String(ipInfectionTypeKeys...),
		Pathogen:      r.String(ipPathogenKeys...),
		CultureDate:   isoOf(r, ipCultureDateKeys),
		CultureResult: r.String(ipCultureResultKeys...),
	}
	if v, ok := r.Value(ipPrecautionStartKey); ok {
		c.HasPrecautionStart = true
		c.PrecautionStart = MustISO(v)
	}
	return c
}

// AntibioticCourse is the canonical shape of an antibiotic therapy course.
type AntibioticCourse struct {
	Unit           string
	Start          string
	End            string
	Indication     string
	TimeoutReview  string
	TimeoutOutcome string
}

// NewAntibioticCourse normalizes a raw antibiotic course.
func NewAntibioticCourse(r Record, aliases Aliases) AntibioticCourse {
	return AntibioticCourse{
		Unit:           UnitOf(r, aliases),
		Start:          isoOf(r, abxStartKeys),
		End:            isoOf(r, abxEndKeys),
		Indication:     r.String(abxIndicationKeys...),
		TimeoutReview:  isoOf(r, abxTimeoutReviewKeys),
		TimeoutOutcome: isoOf(r, abxTimeoutOutcomeKey),
	}
}

// Vaccination is the canonical shape of a vaccination entry.
type Vaccination struct {
	Unit   string
	Status string // Lower-cased.
	Given  string
	Offer  string
	Due    string
}

// NewVaccination normalizes a raw vaccination entry.
func NewVaccination(r Record, aliases Aliases) Vaccination {
	return Vaccination{
		Unit:   UnitOf(r, aliases),
		Status: strings.ToLower(r.String(vaxStatusKeys...)),
		Given:  isoOf(r, vaxGivenKeys),
		Offer:  isoOf(r, vaxOfferKeys),
		Due:    isoOf(r, vaxDueKeys),
	}
}

// Outbreak is the canonical shape of an outbreak.
type Outbreak struct {
	Unit   string
	Status string // Lower-cased.
	Start  string
	End    string
}

// NewOutbreak normalizes a raw outbreak.
func NewOutbreak(r Record, aliases Aliases) Outbreak {
	return Outbreak{
		Unit:   UnitOf(r, aliases),
		Status: strings.ToLower(r.String(outbreakStatusKeys...)),
		Start:  isoOf(r, outbreakStartKeys),
		End:    isoOf(r, outbreakEndKeys),
	}
}

// LineListing is the canonical shape of an outbreak line-listing entry.
type LineListing struct {
	Unit       string
	Onset      string
	OutbreakID string
}

// NewLineListing normalizes a raw line-listing entry.
func NewLineListing(r Record, aliases Aliases) LineListing {
	return LineListing{
		Unit:       UnitOf(r, aliases),
		Onset:      isoOf(r, lineListingOnsetKeys),
		OutbreakID: r.String(lineListingOutbreakKeys...),
	}
}

// isoOf resolves the first usable candidate and normalizes it as a date.
func isoOf(r Record, keys []string) string {
	v, ok := r.Value(keys...)
	if !ok {
		return ""
	}
	return MustISO(v)
}
