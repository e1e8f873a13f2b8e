// Package prices assembles the per-commune price documents served to the
// static page.
package prices

import (
	"fmt"
	"math"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/dvf-prices/internal/aggregate"
	"github.com/sells-group/dvf-prices/internal/atomicfile"
	"github.com/sells-group/dvf-prices/internal/communes"
)

const (
	Unit   = "EUR/m²"
	Source = "DVF (geo-dvf) — ventes logements, médiane €/m², filtres anti-outliers"
)

// ErrNonFinite is returned when a document holds a NaN or infinite median.
var ErrNonFinite = eris.New("prices: non-finite median")

// Document is the JSON file written for one trailing window.
type Document struct {
	Periode string           `json:"periode"`
	Devise  string           `json:"devise"`
	Source  string           `json:"source"`
	Data    map[string]Entry `json:"data"`

	// Dropped counts aggregated communes absent from the reference list.
	Dropped int `json:"-"`
}

// Entry is the payload for one commune. Nil fields are types with no sale in
// the window.
type Entry struct {
	Ville   string   `json:"ville"`
	Dept    *string  `json:"dept"`
	Appart  *float64 `json:"appart"`
	Maison  *float64 `json:"maison"`
	NVentes Counts   `json:"n_ventes"`
}

// Counts holds the number of sales behind each median.
type Counts struct {
	Appart *int64 `json:"appart"`
	Maison *int64 `json:"maison"`
}

// Period renders the window as "<start> à <today> (<months> mois)", counting
// a month as 30 days.
func Period(start, today time.Time) string {
	days := int(today.Sub(start).Hours() / 24)
	return fmt.Sprintf("%s à %s (%d mois)", start.Format(time.DateOnly), today.Format(time.DateOnly), days/30)
}

// Assemble joins aggregated rows with the reference index. Rows whose code
// has no reference entry are left out.
func Assemble(rows []aggregate.Row, idx communes.Index, start, today time.Time) *Document {
	doc := &Document{
		Periode: Period(start, today),
		Devise:  Unit,
		Source:  Source,
		Data:    make(map[string]Entry, len(rows)),
	}

	for _, r := range rows {
		c, ok := idx.Lookup(r.Code)
		if !ok {
			zap.L().Debug("dropping commune without reference entry", zap.String("code", r.Code))
			doc.Dropped++
			continue
		}

		e := Entry{Ville: c.Nom}
		if c.CodeDepartement != "" {
			dept := c.CodeDepartement
			e.Dept = &dept
		}
		if r.Apartment != nil {
			e.Appart = &r.Apartment.Median
			e.NVentes.Appart = &r.Apartment.Count
		}
		if r.House != nil {
			e.Maison = &r.House.Median
			e.NVentes.Maison = &r.House.Count
		}
		doc.Data[r.Code] = e
	}
	return doc
}

// Validate reports ErrNonFinite for the first NaN or infinite median.
func (d *Document) Validate() error {
	for code, e := range d.Data {
		for _, v := range []*float64{e.Appart, e.Maison} {
			if v != nil && (math.IsNaN(*v) || math.IsInf(*v, 0)) {
				return eris.Wrapf(ErrNonFinite, "commune %s", code)
			}
		}
	}
	return nil
}

// WriteFile validates doc and writes it to path. Nothing is written when
// validation fails.
func WriteFile(path string, doc *Document) error {
	if err := doc.Validate(); err != nil {
		return err
	}
	if err := atomicfile.WriteJSON(path, doc); err != nil {
		return eris.Wrapf(err, "prices: write %s", path)
	}
	return nil
}
