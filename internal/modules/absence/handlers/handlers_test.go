package handlers

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/shiftops/rosterd/internal/modules/absence"
)

// setupTestDB creates an in-memory SQLite database with test data
func setupTestDB(t *testing.T) *sql.DB {
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)

	_, err = db.Exec(`
		CREATE TABLE vacations (
			id TEXT PRIMARY KEY,
			analyst_id TEXT NOT NULL,
			start_date TEXT NOT NULL,
			end_date TEXT NOT NULL,
			is_approved INTEGER NOT NULL DEFAULT 0,
			reason TEXT
		);
		CREATE TABLE absences (
			id TEXT PRIMARY KEY,
			analyst_id TEXT NOT NULL,
			date TEXT NOT NULL,
			kind TEXT NOT NULL DEFAULT 'LEAVE',
			UNIQUE (analyst_id, date)
		);
	`)
	require.NoError(t, err)

	_, err = db.Exec(`
		INSERT INTO vacations (id, analyst_id, start_date, end_date, is_approved, reason) VALUES
		('v-1', 'a-1', '2026-03-02', '2026-03-06', 1, 'spring break'),
		('v-2', 'a-2', '2026-03-09', '2026-03-10', 0, '')
	`)
	require.NoError(t, err)

	_, err = db.Exec(`
		INSERT INTO absences (id, analyst_id, date, kind) VALUES
		('ab-1', 'a-1', '2026-03-16', 'SICK'),
		('ab-2', 'a-2', '2026-03-16', 'LEAVE')
	`)
	require.NoError(t, err)

	t.Cleanup(func() { db.Close() })
	return db
}

func newTestRouter(t *testing.T) chi.Router {
	db := setupTestDB(t)
	log := zerolog.Nop()
	handler := NewHandler(
		absence.NewVacationRepository(db, log),
		absence.NewRepository(db, log),
		log,
	)

	router := chi.NewRouter()
	handler.RegisterRoutes(router)
	return router
}

func TestHandleListVacationsByAnalyst(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest("GET", "/vacations?analyst=a-1", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var response map[string]interface{}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))

	data := response["data"].(map[string]interface{})
	assert.Equal(t, float64(1), data["count"])
}

func TestHandleListVacationsWindow(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest("GET", "/vacations?start=2026-03-01&end=2026-03-31", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var response map[string]interface{}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	assert.Equal(t, float64(2), response["data"].(map[string]interface{})["count"])
}

func TestHandleListVacationsApprovedOnly(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest("GET", "/vacations?start=2026-03-01&end=2026-03-31&approved=true", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var response map[string]interface{}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))

	data := response["data"].(map[string]interface{})
	require.Equal(t, float64(1), data["count"])
	first := data["vacations"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, "v-1", first["id"])
}

func TestHandleListVacationsRequiresFilter(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest("GET", "/vacations", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleCreateVacation(t *testing.T) {
	router := newTestRouter(t)

	body := `{"analyst_id": "a-3", "start_date": "2026-04-06", "end_date": "2026-04-10", "reason": "family"}`
	req := httptest.NewRequest("POST", "/vacations", strings.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)

	var response map[string]interface{}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))

	data := response["data"].(map[string]interface{})
	assert.NotEmpty(t, data["id"])
	assert.Equal(t, false, data["is_approved"])
}

func TestHandleCreateVacationRejectsReversedRange(t *testing.T) {
	router := newTestRouter(t)

	body := `{"analyst_id": "a-3", "start_date": "2026-04-10", "end_date": "2026-04-06"}`
	req := httptest.NewRequest("POST", "/vacations", strings.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleVacationApprovalLifecycle(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest("PUT", "/vacations/v-2/approval", strings.NewReader(`{"approved": true}`))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	// Approved window now includes both requests
	req = httptest.NewRequest("GET", "/vacations?start=2026-03-01&end=2026-03-31&approved=true", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var response map[string]interface{}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	assert.Equal(t, float64(2), response["data"].(map[string]interface{})["count"])
}

func TestHandleVacationApprovalNotFound(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest("PUT", "/vacations/nope/approval", strings.NewReader(`{"approved": true}`))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandleDeleteVacation(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest("DELETE", "/vacations/v-1", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	req = httptest.NewRequest("GET", "/vacations?analyst=a-1", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var response map[string]interface{}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	assert.Equal(t, float64(0), response["data"].(map[string]interface{})["count"])
}

func TestHandleListAbsences(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest("GET", "/absences?start=2026-03-01&end=2026-03-31", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var response map[string]interface{}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	assert.Equal(t, float64(2), response["data"].(map[string]interface{})["count"])
}

func TestHandleListAbsencesByAnalyst(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest("GET", "/absences?start=2026-03-01&end=2026-03-31&analyst=a-2", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var response map[string]interface{}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))

	data := response["data"].(map[string]interface{})
	require.Equal(t, float64(1), data["count"])
	first := data["absences"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, "LEAVE", first["kind"])
}

func TestHandleListAbsencesRequiresRange(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest("GET", "/absences", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleCreateAbsenceDefaultsKind(t *testing.T) {
	router := newTestRouter(t)

	body := `{"analyst_id": "a-3", "date": "2026-03-20"}`
	req := httptest.NewRequest("POST", "/absences", strings.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)

	var response map[string]interface{}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))

	data := response["data"].(map[string]interface{})
	assert.Equal(t, "LEAVE", data["kind"])
}

func TestHandleCreateAbsenceRejectsMissingDate(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest("POST", "/absences", strings.NewReader(`{"analyst_id": "a-3"}`))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleDeleteAbsenceNotFound(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest("DELETE", "/absences/nope", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}
