package model

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// Commodity identifies a reportable grain commodity.
type Commodity string

const (
	CommodityCorn     Commodity = "corn"
	CommoditySoybeans Commodity = "soybeans"
)

// Commodities lists all reportable commodities.
var Commodities = []Commodity{CommodityCorn, CommoditySoybeans}

// Valid reports whether c is a known commodity.
func (c Commodity) Valid() bool {
	return c == CommodityCorn || c == CommoditySoybeans
}

// Label returns the display name for the commodity.
func (c Commodity) Label() string {
	switch c {
	case CommodityCorn:
		return "Corn"
	case CommoditySoybeans:
		return "Soybeans"
	default:
		return string(c)
	}
}

// FuturesMonth is a single-letter grain futures delivery month code.
type FuturesMonth string

const (
	MonthMarch     FuturesMonth = "H"
	MonthMay       FuturesMonth = "K"
	MonthJuly      FuturesMonth = "N"
	MonthSeptember FuturesMonth = "U"
	MonthDecember  FuturesMonth = "Z"
)

// FuturesMonths lists the five standard grain contract months in
// calendar order.
var FuturesMonths = []FuturesMonth{MonthMarch, MonthMay, MonthJuly, MonthSeptember, MonthDecember}

var futuresMonthLabels = map[FuturesMonth]string{
	MonthMarch:     "Mar (H)",
	MonthMay:       "May (K)",
	MonthJuly:      "Jul (N)",
	MonthSeptember: "Sep (U)",
	MonthDecember:  "Dec (Z)",
}

// Valid reports whether m is one of the five standard contract codes.
func (m FuturesMonth) Valid() bool {
	_, ok := futuresMonthLabels[m]
	return ok
}

// Label returns the display label for the month code, e.g. "Mar (H)".
func (m FuturesMonth) Label() string {
	if l, ok := futuresMonthLabels[m]; ok {
		return l
	}
	return string(m)
}

// Continental US coordinate bounds. Facility locations outside this box
// are rejected at creation time.
const (
	MinLat = 24.0
	MaxLat = 50.0
	MinLng = -125.0
	MaxLng = -66.0
)

// InContinentalUS reports whether the coordinate falls within the
// continental US bounding box.
func InContinentalUS(lat, lng float64) bool {
	return lat >= MinLat && lat <= MaxLat && lng >= MinLng && lng <= MaxLng
}

// usStates is the set of valid two-letter state codes.
var usStates = map[string]bool{
	"AL": true, "AK": true, "AZ": true, "AR": true, "CA": true, "CO": true,
	"CT": true, "DE": true, "FL": true, "GA": true, "HI": true, "ID": true,
	"IL": true, "IN": true, "IA": true, "KS": true, "KY": true, "LA": true,
	"ME": true, "MD": true, "MA": true, "MI": true, "MN": true, "MS": true,
	"MO": true, "MT": true, "NE": true, "NV": true, "NH": true, "NJ": true,
	"NM": true, "NY": true, "NC": true, "ND": true, "OH": true, "OK": true,
	"OR": true, "PA": true, "RI": true, "SC": true, "SD": true, "TN": true,
	"TX": true, "UT": true, "VT": true, "VA": true, "WA": true, "WV": true,
	"WI": true, "WY": true,
}

// ValidState reports whether s is a known two-letter state code.
func ValidState(s string) bool {
	return usStates[strings.ToUpper(s)]
}

// ZipCentroid is a static reference row mapping a 5-digit ZIP code to its
// centroid coordinate.
type ZipCentroid struct {
	Zip string  `json:"zip"`
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// ValidZip reports whether zip is exactly five ASCII digits.
func ValidZip(zip string) bool {
	if len(zip) != 5 {
		return false
	}
	for _, r := range zip {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// Facility is a grain-buying location eligible to receive basis reports.
type Facility struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Company    string    `json:"company,omitempty"`
	City       string    `json:"city"`
	State      string    `json:"state"`
	Address    string    `json:"address,omitempty"`
	Lat        float64   `json:"lat"`
	Lng        float64   `json:"lng"`
	IsVerified bool      `json:"is_verified"`
	CreatedAt  time.Time `json:"created_at"`
}

// NewFacility holds the caller-supplied fields for facility creation.
// New facilities always start unverified.
type NewFacility struct {
	Name    string  `json:"name"`
	Company string  `json:"company,omitempty"`
	City    string  `json:"city"`
	State   string  `json:"state"`
	Address string  `json:"address,omitempty"`
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
}

// Validate checks required fields, the state code, and the continental-US
// coordinate bounds.
func (f NewFacility) Validate() error {
	if strings.TrimSpace(f.Name) == "" {
		return eris.New("facility name is required")
	}
	if strings.TrimSpace(f.City) == "" {
		return eris.New("facility city is required")
	}
	if !ValidState(f.State) {
		return eris.Errorf("invalid state code %q", f.State)
	}
	if !InContinentalUS(f.Lat, f.Lng) {
		return eris.Errorf("coordinates (%.4f, %.4f) are outside the continental US", f.Lat, f.Lng)
	}
	return nil
}

// NearbyFacility is a facility returned by a radius search, with the
// computed great-circle distance from the query point.
type NearbyFacility struct {
	Facility
	DistanceMiles float64 `json:"distance_miles"`
}

// BasisReport is a single crowdsourced basis observation. Reports are
// append-only: correcting an error means submitting a new report.
type BasisReport struct {
	ID           string       `json:"id"`
	FacilityID   string       `json:"facility_id"`
	Commodity    Commodity    `json:"commodity"`
	FuturesMonth FuturesMonth `json:"futures_month"`
	BasisCents   int          `json:"basis_cents"`
	ObservedAt   time.Time    `json:"observed_at"`
	SubmittedAt  time.Time    `json:"submitted_at"`
	UserID       string       `json:"user_id"`
	CreatedAt    time.Time    `json:"created_at"`
}

// NewBasisReport holds the caller-supplied fields for report creation.
// The store assigns id and timestamps.
type NewBasisReport struct {
	FacilityID   string       `json:"facility_id"`
	Commodity    Commodity    `json:"commodity"`
	FuturesMonth FuturesMonth `json:"futures_month"`
	BasisCents   int          `json:"basis_cents"`
	UserID       string       `json:"user_id"`
}

// Validate checks the enum fields and required identifiers.
func (r NewBasisReport) Validate() error {
	if r.FacilityID == "" {
		return eris.New("facility id is required")
	}
	if !r.Commodity.Valid() {
		return eris.Errorf("invalid commodity %q", r.Commodity)
	}
	if !r.FuturesMonth.Valid() {
		return eris.Errorf("invalid futures month %q", r.FuturesMonth)
	}
	if r.UserID == "" {
		return eris.New("user id is required")
	}
	return nil
}

// SavedFacility is a user's bookmark of a facility. Identity is the
// (user_id, facility_id) pair.
type SavedFacility struct {
	UserID     string    `json:"user_id"`
	FacilityID string    `json:"facility_id"`
	CreatedAt  time.Time `json:"created_at"`
}

// CurrentBasis is the aggregated "latest" basis for one facility,
// commodity, and futures month.
type CurrentBasis struct {
	MedianBasis int       `json:"median_basis"`
	ReportCount int       `json:"report_count"`
	IsStale     bool      `json:"is_stale"`
	LastUpdated time.Time `json:"last_updated"`
}

// TrendPoint is one daily bucket of a basis trend. Day is the calendar
// day in the aggregation timezone, formatted YYYY-MM-DD.
type TrendPoint struct {
	Day         string `json:"day"`
	MedianBasis int    `json:"median_basis"`
	ReportCount int    `json:"report_count"`
}

// FacilityStats summarizes recent report activity for one facility,
// commodity, and futures month.
type FacilityStats struct {
	Reports7d    int        `json:"reports_7d"`
	LastReportAt *time.Time `json:"last_report_at,omitempty"`
}
