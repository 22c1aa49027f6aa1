package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/aristath/governor/internal/config"
	"github.com/aristath/governor/internal/modules/constraints"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHandler() *Handler {
	return NewHandler(constraints.DefaultCatalog(config.DefaultParams()), constraints.NewGuidance(), zerolog.Nop())
}

func TestHandlePreview(t *testing.T) {
	handler := newTestHandler()

	body := `{"ticker":"XYZ","defcon_level":1,"p0_7_time_position":"LATE","p0_7_turning_point_risk":"HIGH","vix":31}`
	req := httptest.NewRequest(http.MethodPost, "/api/constraints/preview", strings.NewReader(body))
	w := httptest.NewRecorder()

	handler.HandlePreview(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var response map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	data := response["data"].(map[string]interface{})
	assert.Equal(t, "XYZ", data["ticker"])

	triggered := data["triggered"].([]interface{})
	require.Len(t, triggered, 2)
	assert.Equal(t, "late_stage_high_risk", triggered[0].(map[string]interface{})["rule_id"])
	assert.Equal(t, "defcon_1", triggered[1].(map[string]interface{})["rule_id"])

	suggestions := data["suggestions"].([]interface{})
	require.Len(t, suggestions, 1)
	assert.Equal(t, "high_volatility", suggestions[0].(map[string]interface{})["name"])
	assert.Len(t, data["priority_rules"], 4)
}

func TestHandlePreview_InvalidBody(t *testing.T) {
	handler := newTestHandler()

	req := httptest.NewRequest(http.MethodPost, "/api/constraints/preview", strings.NewReader("{"))
	w := httptest.NewRecorder()

	handler.HandlePreview(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid evaluation context")
}

func TestRegisterRoutes(t *testing.T) {
	handler := newTestHandler()
	router := chi.NewRouter()
	router.Route("/api", handler.RegisterRoutes)

	req := httptest.NewRequest(http.MethodPost, "/api/constraints/preview", strings.NewReader(`{"ticker":"ABC"}`))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}
