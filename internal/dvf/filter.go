package dvf

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// Plausibility bounds. Rows outside them are dropped; no other outlier
// rejection is applied.
const (
	NatureSale    = "Vente"
	MinSurface    = 10.0
	MaxSurface    = 1000.0
	MinValue      = 1000.0 // exclusive
	MinPricePerM2 = 300.0
	MaxPricePerM2 = 20000.0
)

const dateLayout = "2006-01-02"

// Filter keeps residential sales dated within [Start, End].
type Filter struct {
	Start time.Time
	End   time.Time
}

// NewFilter builds the filter for a window starting at start (inclusive) and
// ending at today.
func NewFilter(start, today time.Time) Filter {
	return Filter{Start: start, End: today}
}

// Apply returns the Sale derived from m when it passes every predicate.
func (f Filter) Apply(m Mutation) (Sale, bool) {
	date, ok := parseDate(m.DateMutation)
	if !ok || date.Before(f.Start) || date.After(f.End) {
		return Sale{}, false
	}
	if m.NatureMutation != NatureSale {
		return Sale{}, false
	}

	typ := PropertyType(m.TypeLocal)
	if typ != House && typ != Apartment {
		return Sale{}, false
	}

	surface, ok := parseFloat(m.SurfaceReelleBati)
	if !ok || surface < MinSurface || surface > MaxSurface {
		return Sale{}, false
	}
	value, ok := parseFloat(m.ValeurFonciere)
	if !ok || value <= MinValue {
		return Sale{}, false
	}

	price, ok := pricePerM2(value, surface)
	if !ok || price < MinPricePerM2 || price > MaxPricePerM2 {
		return Sale{}, false
	}

	return Sale{
		Code:       m.CodeCommune,
		Type:       typ,
		Date:       date,
		PricePerM2: price,
	}, true
}

// pricePerM2 divides value by surface; a zero surface yields no price.
func pricePerM2(value, surface float64) (float64, bool) {
	if surface == 0 {
		return 0, false
	}
	p := value / surface
	if math.IsNaN(p) || math.IsInf(p, 0) {
		return 0, false
	}
	return p, true
}

// parseFloat parses a numeric cell. Empty, malformed and non-finite cells are absent.
func parseFloat(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// parseDate reads the calendar date at the start of a date_mutation cell.
func parseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if len(s) < len(dateLayout) {
		return time.Time{}, false
	}
	t, err := time.Parse(dateLayout, s[:len(dateLayout)])
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
