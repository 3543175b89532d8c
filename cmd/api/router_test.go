package main

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"circulation-backend/internal/config"
	"circulation-backend/internal/shared/middleware"
	"circulation-backend/pkg/container"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type envelope struct {
	Success bool                `json:"success"`
	Data    jsoniter.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{
		App:         config.AppConfig{Name: "test", Environment: "test", Version: "test"},
		Store:       config.StoreConfig{Driver: config.DriverSQLite, SQLitePath: filepath.Join(t.TempDir(), "api.db")},
		Redis:       config.RedisConfig{Disabled: true},
		Circulation: config.DefaultCirculation(),
		Tracing:     config.TracingConfig{ServiceName: "circulation-test", Exporter: "stdout"},
	}

	c, err := container.NewContainerWithConfig(cfg)
	require.NoError(t, err)
	t.Cleanup(c.Cleanup)

	return SetupRouter(c)
}

func do(t *testing.T, r http.Handler, method, path string, body any, headers ...string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	}
	return w, env
}

func decode[T any](t *testing.T, env envelope) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(env.Data, &v))
	return v
}

type loanBody struct {
	ID         string `json:"id"`
	ItemID     string `json:"item_id"`
	FineAmount string `json:"fine_amount"`
}

func TestHealth(t *testing.T) {
	r := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get(middleware.RequestIDHeader))
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
}

func TestCirculationOverHTTP(t *testing.T) {
	r := newTestRouter(t)

	alice, bob := uuid.NewString(), uuid.NewString()
	for _, id := range []string{alice, bob} {
		w, _ := do(t, r, http.MethodPut, "/api/v1/borrowers/"+id, gin.H{"display_name": "patron", "max_concurrent_loans": 3})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	}

	w, env := do(t, r, http.MethodPost, "/api/v1/admin/items", gin.H{"copies_total": 1})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	itemID := decode[struct {
		ID string `json:"id"`
	}](t, env).ID

	w, env = do(t, r, http.MethodGet, "/api/v1/borrowers/"+alice+"/eligibility?item_id="+itemID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decode[map[string]any](t, env)["eligible"])

	borrow := gin.H{"borrower_id": alice, "item_id": itemID}
	w, env = do(t, r, http.MethodPost, "/api/v1/loans", borrow, middleware.IdempotencyKeyHeader, "borrow-1")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	loan := decode[loanBody](t, env)

	// Same key: replayed, no second copy taken.
	w, env = do(t, r, http.MethodPost, "/api/v1/loans", borrow, middleware.IdempotencyKeyHeader, "borrow-1")
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "true", w.Header().Get("Idempotent-Replayed"))
	assert.Equal(t, loan.ID, decode[loanBody](t, env).ID)

	w, env = do(t, r, http.MethodPost, "/api/v1/loans", gin.H{"borrower_id": bob, "item_id": itemID})
	require.Equal(t, http.StatusConflict, w.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "no_copies_available", env.Error.Code)

	w, env = do(t, r, http.MethodGet, "/api/v1/borrowers/"+bob+"/eligibility?item_id="+itemID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decode[map[string]any](t, env)["eligible"])

	w, env = do(t, r, http.MethodPost, "/api/v1/loans", gin.H{"borrower_id": uuid.NewString(), "item_id": itemID})
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "borrower_not_found", env.Error.Code)

	w, env = do(t, r, http.MethodGet, "/api/v1/items/"+itemID+"/availability", nil)
	require.Equal(t, http.StatusOK, w.Code)
	avail := decode[map[string]any](t, env)
	assert.EqualValues(t, 0, avail["copies_available"])
	assert.EqualValues(t, 1, avail["open_loan_count"])

	w, _ = do(t, r, http.MethodPost, "/api/v1/loans/"+loan.ID+"/return", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w, env = do(t, r, http.MethodPost, "/api/v1/loans/"+loan.ID+"/return", nil)
	require.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "already_closed", env.Error.Code)

	w, _ = do(t, r, http.MethodPost, "/api/v1/loans", gin.H{"borrower_id": bob, "item_id": itemID})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w, env = do(t, r, http.MethodPost, "/api/v1/admin/reconcile", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode[struct {
		Violations []any `json:"violations"`
	}](t, env).Violations)

	w, _ = do(t, r, http.MethodDelete, "/api/v1/admin/loans/"+loan.ID, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w, _ = do(t, r, http.MethodGet, "/api/v1/loans/"+loan.ID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestBadRequests(t *testing.T) {
	r := newTestRouter(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		want   int
	}{
		{name: "malformed loan id", method: http.MethodGet, path: "/api/v1/loans/not-a-uuid", want: http.StatusBadRequest},
		{name: "borrow validation", method: http.MethodPost, path: "/api/v1/loans", body: gin.H{"borrower_id": "x"}, want: http.StatusBadRequest},
		{name: "zero copies", method: http.MethodPost, path: "/api/v1/admin/items", body: gin.H{"copies_total": 0}, want: http.StatusBadRequest},
		{name: "unknown status filter", method: http.MethodGet, path: "/api/v1/loans?status=lost", want: http.StatusBadRequest},
		{name: "bad force flag", method: http.MethodDelete, path: "/api/v1/admin/loans/" + uuid.NewString() + "?force=maybe", want: http.StatusBadRequest},
		{name: "missing item", method: http.MethodGet, path: "/api/v1/items/" + uuid.NewString(), want: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, env := do(t, r, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.want, w.Code, w.Body.String())
			assert.False(t, env.Success)
		})
	}
}
