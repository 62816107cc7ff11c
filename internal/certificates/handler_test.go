package certificates

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"ceue-certificates/certgen/internal/registry"
)

func setupRouter(t *testing.T, repo registry.Repository) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	svc := NewService(newFileRenderer(), nil, nil, repo, testOptions(t), zap.NewNop())
	h := NewHandler(svc, newTemplate(t, "Certificamos que {{ estudante }}"), func() (RunParameters, error) {
		return testParams(), nil
	}, zap.NewNop())

	router := gin.New()
	h.RegisterRoutes(router.Group("/api/v1"))
	return router
}

func postJSON(t *testing.T, router *gin.Engine, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestPreviewEndpoint(t *testing.T) {
	router := setupRouter(t, nil)

	w := postJSON(t, router, "/api/v1/certificates/preview", testRecord())
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Values map[string]any `json:"values"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "João Paulo", resp.Values[KeyStudent])
	assert.Equal(t, float64(160), resp.Values[KeyTotalHours])
	assert.Equal(t, "00000042", resp.Values[KeyCard])
}

func TestPreviewEndpointAcceptsNumericFields(t *testing.T) {
	router := setupRouter(t, nil)

	w := postJSON(t, router, "/api/v1/certificates/preview", map[string]any{
		"full_name":   "joão paulo",
		"course":      "Engenharia Elétrica",
		"card_number": 42,
		"entry_month": 3,
		"exit_month":  nil,
		"gender":      "H",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Values map[string]any `json:"values"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "00000042", resp.Values[KeyCard])
	assert.Equal(t, float64(10), resp.Values[KeyTotalMonths])
	assert.Equal(t, float64(160), resp.Values[KeyTotalHours])

	w = postJSON(t, router, "/api/v1/certificates/preview", map[string]any{
		"full_name":   "joão paulo",
		"course":      "Engenharia Elétrica",
		"card_number": true,
		"entry_month": 3,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRecordUnmarshalJSON(t *testing.T) {
	var rec Record
	require.NoError(t, json.Unmarshal([]byte(`{"row":4,"full_name":"ana","card_number":12345678,"entry_month":1.0,"exit_month":"N/A"}`), &rec))
	assert.Equal(t, 4, rec.Row)
	assert.Equal(t, "ana", rec.FullName)
	assert.Equal(t, "12345678", rec.CardNumber)
	assert.Equal(t, "1.0", rec.EntryMonth)
	assert.Equal(t, "N/A", rec.ExitMonth)

	values, err := Derive(rec, testParams())
	require.NoError(t, err)
	assert.Equal(t, 12, values[KeyTotalMonths])
}

func TestEndpointsFailWhenParametersCannotBeBuilt(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := NewService(newFileRenderer(), nil, nil, nil, testOptions(t), zap.NewNop())
	h := NewHandler(svc, newTemplate(t, "{{ estudante }}"), func() (RunParameters, error) {
		return RunParameters{}, errors.New("invalid document date")
	}, zap.NewNop())
	router := gin.New()
	h.RegisterRoutes(router.Group("/api/v1"))

	w := postJSON(t, router, "/api/v1/certificates/preview", testRecord())
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	w = postJSON(t, router, "/api/v1/certificates", testRecord())
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestPreviewEndpointRejectsInvalidRecord(t *testing.T) {
	router := setupRouter(t, nil)
	rec := testRecord()
	rec.FullName = ""

	w := postJSON(t, router, "/api/v1/certificates/preview", rec)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestPreviewEndpointRejectsMalformedJSON(t *testing.T) {
	router := setupRouter(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/certificates/preview", strings.NewReader("{"))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRenderEndpointReturnsPDF(t *testing.T) {
	router := setupRouter(t, nil)

	w := postJSON(t, router, "/api/v1/certificates", testRecord())
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "attachment")
	assert.Equal(t, "%PDF-Certificamos que João Paulo", w.Body.String())
}

func TestRenderEndpointDeriveError(t *testing.T) {
	router := setupRouter(t, nil)
	rec := testRecord()
	rec.EntryMonth = "never"

	w := postJSON(t, router, "/api/v1/certificates", rec)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestGetRunEndpoint(t *testing.T) {
	repo := registry.NewMemoryRepository()
	runID := uuid.New()
	require.NoError(t, repo.Save(context.Background(), &registry.Issuance{RunID: runID, Row: 1, Student: "Ana", Status: registry.StatusIssued}))
	router := setupRouter(t, repo)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/runs/"+runID.String(), nil))
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		RunID     uuid.UUID           `json:"run_id"`
		Issuances []registry.Issuance `json:"issuances"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, runID, resp.RunID)
	require.Len(t, resp.Issuances, 1)
	assert.Equal(t, "Ana", resp.Issuances[0].Student)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/runs/"+uuid.NewString(), nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/runs/not-a-uuid", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetRunWithoutRegistry(t *testing.T) {
	router := setupRouter(t, nil)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/runs/"+uuid.NewString(), nil))
	assert.Equal(t, http.StatusNotImplemented, w.Code)
}

func TestFindByCardEndpoint(t *testing.T) {
	repo := registry.NewMemoryRepository()
	ctx := context.Background()
	require.NoError(t, repo.Save(ctx, &registry.Issuance{Card: "00000042", Student: "João Paulo", Year: 2024, Status: registry.StatusIssued}))
	require.NoError(t, repo.Save(ctx, &registry.Issuance{Card: "00000043", Student: "Ana", Year: 2024, Status: registry.StatusIssued}))
	router := setupRouter(t, repo)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/certificates?card=42", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Card      string              `json:"card"`
		Issuances []registry.Issuance `json:"issuances"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "00000042", resp.Card)
	require.Len(t, resp.Issuances, 1)
	assert.Equal(t, "João Paulo", resp.Issuances[0].Student)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/certificates?card=7", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"issuances":[]`)

	for _, query := range []string{"", "?card=abc"} {
		w = httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/certificates"+query, nil))
		assert.Equal(t, http.StatusBadRequest, w.Code, query)
	}
}

func TestFindByCardWithoutRegistry(t *testing.T) {
	router := setupRouter(t, nil)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/certificates?card=42", nil))
	assert.Equal(t, http.StatusNotImplemented, w.Code)
}
