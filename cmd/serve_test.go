package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/dvf-prices/internal/config"
)

const samplePrices = `{"periode":"2024-03-10 à 2025-03-10 (12 mois)","devise":"EUR/m²","source":"DVF","data":{"75056":{"ville":"Paris","dept":"75","appart":10250,"maison":null,"n_ventes":{"appart":840,"maison":null}}}}`

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "prices_12.json"), []byte(samplePrices), 0o644))
	return buildRouter(dir, []config.WindowConfig{
		{Days: 365, File: "prices_12.json"},
		{Days: 730},
	})
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestBuildRouter_Health(t *testing.T) {
	rr := get(t, newTestRouter(t), "/health")

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Type"), "application/json")
	var body map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestBuildRouter_WindowFile(t *testing.T) {
	rr := get(t, newTestRouter(t), "/prices/12")

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, samplePrices, rr.Body.String())
}

func TestBuildRouter_WindowNotGenerated(t *testing.T) {
	rr := get(t, newTestRouter(t), "/prices/24")
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Contains(t, rr.Body.String(), "not generated")
}

func TestBuildRouter_UnknownWindow(t *testing.T) {
	rr := get(t, newTestRouter(t), "/prices/6")
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Contains(t, rr.Body.String(), "unknown window")
}

func TestBuildRouter_Commune(t *testing.T) {
	rr := get(t, newTestRouter(t), "/prices/12/75056")
	require.Equal(t, http.StatusOK, rr.Code)

	var body struct {
		Code  string `json:"code"`
		Entry struct {
			Ville  string   `json:"ville"`
			Appart *float64 `json:"appart"`
			Maison *float64 `json:"maison"`
		} `json:"entry"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "75056", body.Code)
	assert.Equal(t, "Paris", body.Entry.Ville)
	require.NotNil(t, body.Entry.Appart)
	assert.Equal(t, 10250.0, *body.Entry.Appart)
	assert.Nil(t, body.Entry.Maison)
}

func TestBuildRouter_UnknownCommune(t *testing.T) {
	rr := get(t, newTestRouter(t), "/prices/12/99999")
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Contains(t, rr.Body.String(), "unknown commune")
}

func TestBuildRouter_CORS(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/prices/12", nil)
	req.Header.Set("Origin", "https://example.org")
	rr := httptest.NewRecorder()
	newTestRouter(t).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestBuildRouter_RejectsWrites(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/prices/12", nil)
	rr := httptest.NewRecorder()
	newTestRouter(t).ServeHTTP(rr, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}
