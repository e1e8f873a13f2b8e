package communes

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stringsReader(s string) io.Reader { return strings.NewReader(s) }

func decodeOne(t *testing.T, js string) Commune {
	t.Helper()
	idx, err := Decode(context.Background(), stringsReader("["+js+"]"))
	require.NoError(t, err)
	require.Len(t, idx, 1)
	for _, c := range idx {
		return c
	}
	return Commune{}
}

func TestCommune_Centroid(t *testing.T) {
	c := decodeOne(t, `{"code":"75056","nom":"Paris","centre":{"type":"Point","coordinates":[2.347,48.8589]}}`)

	lon, lat, ok := c.Centroid()
	require.True(t, ok)
	assert.InDelta(t, 2.347, lon, 1e-9)
	assert.InDelta(t, 48.8589, lat, 1e-9)
}

func TestCommune_CentroidMissingOrInvalid(t *testing.T) {
	tests := []struct {
		name string
		js   string
	}{
		{"absent", `{"code":"1","nom":"A"}`},
		{"null", `{"code":"1","nom":"A","centre":null}`},
		{"not a point", `{"code":"1","nom":"A","centre":{"type":"LineString","coordinates":[[0,0],[1,1]]}}`},
		{"bad coordinates", `{"code":"1","nom":"A","centre":{"type":"Point","coordinates":[1]}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := decodeOne(t, tt.js)
			_, _, ok := c.Centroid()
			assert.False(t, ok)
		})
	}
}

func TestCommune_PopulationCount(t *testing.T) {
	c := decodeOne(t, `{"code":"1","nom":"A","population":832}`)
	pop, ok := c.PopulationCount()
	require.True(t, ok)
	assert.Equal(t, 832, pop)

	c = decodeOne(t, `{"code":"1","nom":"A","population":12.5}`)
	_, ok = c.PopulationCount()
	assert.False(t, ok)

	c = decodeOne(t, `{"code":"1","nom":"A"}`)
	_, ok = c.PopulationCount()
	assert.False(t, ok)
}

func TestDecode_MalformedOptionalFieldsAreTolerated(t *testing.T) {
	idx, err := Decode(context.Background(), stringsReader(`[
	  {"code":"75056","nom":"Paris","codeDepartement":"75","population":"n/a","centre":"somewhere"},
	  {"code":"69123","nom":"Lyon","codeDepartement":"69","population":{"total":522250},"centre":[4.83,45.76]},
	  {"code":"13055","nom":"Marseille","codeDepartement":"13","population":"870321","centre":{"type":"Point","coordinates":[5.37,43.29]}}
	]`))
	require.NoError(t, err)
	require.Len(t, idx, 3)

	for _, code := range []string{"75056", "69123"} {
		c, ok := idx.Lookup(code)
		require.True(t, ok)
		_, ok = c.PopulationCount()
		assert.False(t, ok, "population of %s", code)
		_, _, ok = c.Centroid()
		assert.False(t, ok, "centre of %s", code)
	}

	marseille, _ := idx.Lookup("13055")
	pop, ok := marseille.PopulationCount()
	require.True(t, ok)
	assert.Equal(t, 870321, pop)

	out := BuildMin(idx)
	require.Len(t, out, 1)
	assert.Equal(t, "13055", out[0].Code)
	assert.Equal(t, map[string]int{"13055": 870321}, BuildPopulation(idx))
}

func TestCommune_PopulationNull(t *testing.T) {
	c := decodeOne(t, `{"code":"1","nom":"A","population":null}`)
	_, ok := c.PopulationCount()
	assert.False(t, ok)
}
