// Package dvf reads the geo-dvf yearly transaction files: it resolves which
// years cover a trailing window, decodes rows by column name and keeps the
// residential sales worth aggregating.
package dvf

import (
	"time"
)

// PropertyType is the type_local label of a tracked residential category.
type PropertyType string

const (
	House     PropertyType = "Maison"
	Apartment PropertyType = "Appartement"
)

// Mutation is one raw DVF row. Columns are bound by header name, so a file
// whose schema adds or drops columns still decodes; a missing column reads as "".
type Mutation struct {
	DateMutation      string `csv:"date_mutation"`
	NatureMutation    string `csv:"nature_mutation"`
	TypeLocal         string `csv:"type_local"`
	SurfaceReelleBati string `csv:"surface_reelle_bati"`
	ValeurFonciere    string `csv:"valeur_fonciere"`
	CodeCommune       string `csv:"code_commune"`
}

// Sale is a mutation that passed every Filter predicate.
type Sale struct {
	Code       string
	Type       PropertyType
	Date       time.Time
	PricePerM2 float64
}
