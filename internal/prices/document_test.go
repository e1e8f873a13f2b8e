package prices

import (
	"encoding/json"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/dvf-prices/internal/aggregate"
	"github.com/sells-group/dvf-prices/internal/communes"
)

var (
	today = time.Date(2025, time.March, 10, 0, 0, 0, 0, time.UTC)
	start = today.AddDate(0, 0, -365)
)

func testIndex() communes.Index {
	return communes.Index{
		"75056": {Code: "75056", Nom: "Paris", CodeDepartement: "75"},
		"2A004": {Code: "2A004", Nom: "Ajaccio", CodeDepartement: "2A"},
		"97501": {Code: "97501", Nom: "Miquelon-Langlade"},
	}
}

func TestPeriod(t *testing.T) {
	assert.Equal(t, "2024-03-10 à 2025-03-10 (12 mois)", Period(start, today))
	assert.Equal(t, "2023-03-11 à 2025-03-10 (24 mois)", Period(today.AddDate(0, 0, -730), today))
	assert.Equal(t, "2025-02-08 à 2025-03-10 (1 mois)", Period(today.AddDate(0, 0, -30), today))
}

func TestAssemble(t *testing.T) {
	rows := []aggregate.Row{
		{Code: "2A004", Apartment: &aggregate.Stat{Median: 4100.5, Count: 12}},
		{Code: "75056", House: &aggregate.Stat{Median: 9800, Count: 3}, Apartment: &aggregate.Stat{Median: 10250, Count: 840}},
		{Code: "97501", House: &aggregate.Stat{Median: 1500, Count: 1}},
	}

	doc := Assemble(rows, testIndex(), start, today)

	assert.Equal(t, "2024-03-10 à 2025-03-10 (12 mois)", doc.Periode)
	assert.Equal(t, Unit, doc.Devise)
	assert.Equal(t, Source, doc.Source)
	assert.Zero(t, doc.Dropped)
	require.Len(t, doc.Data, 3)

	paris := doc.Data["75056"]
	assert.Equal(t, "Paris", paris.Ville)
	require.NotNil(t, paris.Dept)
	assert.Equal(t, "75", *paris.Dept)
	assert.Equal(t, 9800.0, *paris.Maison)
	assert.Equal(t, 10250.0, *paris.Appart)
	assert.Equal(t, int64(3), *paris.NVentes.Maison)
	assert.Equal(t, int64(840), *paris.NVentes.Appart)

	ajaccio := doc.Data["2A004"]
	assert.Nil(t, ajaccio.Maison)
	assert.Nil(t, ajaccio.NVentes.Maison)

	assert.Nil(t, doc.Data["97501"].Dept)
}

func TestAssemble_DropsUnknownCodes(t *testing.T) {
	rows := []aggregate.Row{
		{Code: "75056", House: &aggregate.Stat{Median: 9800, Count: 3}},
		{Code: "99999", House: &aggregate.Stat{Median: 2000, Count: 5}},
	}

	doc := Assemble(rows, testIndex(), start, today)

	assert.Len(t, doc.Data, 1)
	assert.NotContains(t, doc.Data, "99999")
	assert.Equal(t, 1, doc.Dropped)
	for code := range doc.Data {
		_, ok := testIndex()[code]
		assert.True(t, ok, "unexpected code %s", code)
	}
}

func TestWriteFile_JSONShape(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prices_12.json")
	rows := []aggregate.Row{
		{Code: "97501", House: &aggregate.Stat{Median: 1500, Count: 1}},
	}
	require.NoError(t, WriteFile(path, Assemble(rows, testIndex(), start, today)))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"periode": "2024-03-10 à 2025-03-10 (12 mois)",
		"devise": "EUR/m²",
		"source": "DVF (geo-dvf) — ventes logements, médiane €/m², filtres anti-outliers",
		"data": {
			"97501": {
				"ville": "Miquelon-Langlade",
				"dept": null,
				"appart": null,
				"maison": 1500,
				"n_ventes": {"appart": null, "maison": 1}
			}
		}
	}`, string(raw))
	assert.Contains(t, string(raw), "à", "output must not escape non-ASCII")
	assert.NotContains(t, string(raw), "Dropped")
}

func TestWriteFile_NonFiniteWritesNothing(t *testing.T) {
	for name, v := range map[string]float64{
		"nan":  math.NaN(),
		"+inf": math.Inf(1),
		"-inf": math.Inf(-1),
	} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "prices_12.json")
			rows := []aggregate.Row{{Code: "75056", Apartment: &aggregate.Stat{Median: v, Count: 2}}}

			err := WriteFile(path, Assemble(rows, testIndex(), start, today))
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrNonFinite))

			_, statErr := os.Stat(path)
			assert.True(t, os.IsNotExist(statErr))
		})
	}
}

func TestWriteFile_EmptyData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prices_24.json")
	require.NoError(t, WriteFile(path, Assemble(nil, testIndex(), start, today)))

	var doc map[string]json.RawMessage
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &doc))
	assert.JSONEq(t, `{}`, string(doc["data"]))
}
