package communes

import (
	"sort"
)

// MinEntry is the compact commune record consumed by the map view.
type MinEntry struct {
	Code       string  `json:"code"`
	Nom        string  `json:"nom"`
	Dept       string  `json:"dept"`
	Lat        float64 `json:"lat"`
	Lon        float64 `json:"lon"`
	Population *int    `json:"population"`
}

// BuildMin returns one MinEntry per commune that has a name, a department and a
// centre point, sorted by code.
func BuildMin(idx Index) []MinEntry {
	out := make([]MinEntry, 0, len(idx))
	for _, c := range idx {
		if c.Code == "" || c.Nom == "" || c.CodeDepartement == "" {
			continue
		}
		lon, lat, ok := c.Centroid()
		if !ok {
			continue
		}
		e := MinEntry{
			Code: c.Code,
			Nom:  c.Nom,
			Dept: c.CodeDepartement,
			Lat:  lat,
			Lon:  lon,
		}
		if pop, ok := c.PopulationCount(); ok {
			e.Population = &pop
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

// BuildPopulation maps each commune code to its population, omitting communes
// without one.
func BuildPopulation(idx Index) map[string]int {
	out := make(map[string]int, len(idx))
	for code, c := range idx {
		if pop, ok := c.PopulationCount(); ok {
			out[code] = pop
		}
	}
	return out
}
