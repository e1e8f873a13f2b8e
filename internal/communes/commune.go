// Package communes loads the French municipality reference list and derives
// the lookup files built from it.
package communes

import (
	"encoding/json"
	"math"

	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
)

// Commune is one entry of the geo.api.gouv.fr municipality directory.
// Fields the directory may add later are ignored. Population and Centre are
// kept raw so a malformed value only affects the files derived from them.
type Commune struct {
	Code            string          `json:"code"`
	Nom             string          `json:"nom"`
	CodeDepartement string          `json:"codeDepartement,omitempty"`
	Population      json.RawMessage `json:"population,omitempty"`
	Centre          json.RawMessage `json:"centre,omitempty"`
}

// Centroid returns the commune centre as (lon, lat). GeoJSON stores
// coordinates in that order.
func (c Commune) Centroid() (lon, lat float64, ok bool) {
	if isNull(c.Centre) {
		return 0, 0, false
	}
	var geometry geojson.Geometry
	if err := json.Unmarshal(c.Centre, &geometry); err != nil {
		return 0, 0, false
	}
	g, err := geometry.Decode()
	if err != nil {
		return 0, 0, false
	}
	p, isPoint := g.(*geom.Point)
	if !isPoint || p.Empty() {
		return 0, 0, false
	}
	return p.X(), p.Y(), true
}

// PopulationCount returns the population when the directory reports an integer.
func (c Commune) PopulationCount() (int, bool) {
	if isNull(c.Population) {
		return 0, false
	}
	var num json.Number
	if err := json.Unmarshal(c.Population, &num); err != nil {
		return 0, false
	}
	n, err := num.Int64()
	if err != nil || n < 0 || n > math.MaxInt32 {
		return 0, false
	}
	return int(n), true
}

func isNull(raw json.RawMessage) bool {
	return len(raw) == 0 || string(raw) == "null"
}

// Index maps a commune code to its reference entry. It is read-only once built.
type Index map[string]Commune

// Lookup returns the reference entry for code.
func (idx Index) Lookup(code string) (Commune, bool) {
	c, ok := idx[code]
	return c, ok
}
