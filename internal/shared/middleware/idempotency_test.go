package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	infraCache "circulation-backend/internal/infrastructure/cache"
	"circulation-backend/internal/shared/middleware"
)

func newIdempotentRouter(status *int, calls *int) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.Recovery())
	store := infraCache.NewMemoryCache(time.Minute, time.Minute)
	r.POST("/things", middleware.Idempotency(store, time.Minute), func(c *gin.Context) {
		*calls++
		if *status == 0 {
			panic("handler blew up")
		}
		c.JSON(*status, gin.H{"call": *calls})
	})
	return r
}

func post(r http.Handler, key string, body ...string) *httptest.ResponseRecorder {
	var req *http.Request
	if len(body) > 0 {
		req = httptest.NewRequest(http.MethodPost, "/things", strings.NewReader(body[0]))
	} else {
		req = httptest.NewRequest(http.MethodPost, "/things", nil)
	}
	if key != "" {
		req.Header.Set(middleware.IdempotencyKeyHeader, key)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestIdempotency_ReplaysStoredResponse(t *testing.T) {
	status, calls := http.StatusCreated, 0
	r := newIdempotentRouter(&status, &calls)

	first := post(r, "k1")
	second := post(r, "k1")

	assert.Equal(t, 1, calls)
	assert.Equal(t, http.StatusCreated, second.Code)
	assert.Equal(t, first.Body.String(), second.Body.String())
	assert.Equal(t, "true", second.Header().Get("Idempotent-Replayed"))

	post(r, "k2")
	assert.Equal(t, 2, calls)
}

func TestIdempotency_WithoutKeyAlwaysExecutes(t *testing.T) {
	status, calls := http.StatusOK, 0
	r := newIdempotentRouter(&status, &calls)

	post(r, "")
	post(r, "")
	assert.Equal(t, 2, calls)
}

func TestIdempotency_ServerErrorsReleaseTheKey(t *testing.T) {
	status, calls := http.StatusInternalServerError, 0
	r := newIdempotentRouter(&status, &calls)

	post(r, "retry-me")
	status = http.StatusCreated
	w := post(r, "retry-me")

	assert.Equal(t, 2, calls)
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Empty(t, w.Header().Get("Idempotent-Replayed"))
}

func TestIdempotency_PanicReleasesTheKey(t *testing.T) {
	status, calls := 0, 0
	r := newIdempotentRouter(&status, &calls)

	w := post(r, "panics")
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	status = http.StatusCreated
	w = post(r, "panics")

	assert.Equal(t, 2, calls)
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Empty(t, w.Header().Get("Idempotent-Replayed"))
}

func TestIdempotency_KeyReusedWithDifferentBody(t *testing.T) {
	status, calls := http.StatusCreated, 0
	r := newIdempotentRouter(&status, &calls)

	first := post(r, "borrow-1", `{"borrower_id":"a","item_id":"x"}`)
	assert.Equal(t, http.StatusCreated, first.Code)

	same := post(r, "borrow-1", `{"borrower_id":"a","item_id":"x"}`)
	assert.Equal(t, http.StatusCreated, same.Code)
	assert.Equal(t, "true", same.Header().Get("Idempotent-Replayed"))

	other := post(r, "borrow-1", `{"borrower_id":"b","item_id":"x"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, other.Code)
	assert.Empty(t, other.Header().Get("Idempotent-Replayed"))

	assert.Equal(t, 1, calls)
}

func TestIdempotency_HandlerSeesTheBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	var seen string
	r.POST("/echo", middleware.Idempotency(infraCache.NewMemoryCache(time.Minute, time.Minute), time.Minute), func(c *gin.Context) {
		raw, _ := c.GetRawData()
		seen = string(raw)
		c.Status(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodPost, "/echo", strings.NewReader(`{"n":1}`))
	req.Header.Set(middleware.IdempotencyKeyHeader, "echo")
	r.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, `{"n":1}`, seen)
}

func TestIdempotency_RejectsOversizedKey(t *testing.T) {
	status, calls := http.StatusOK, 0
	r := newIdempotentRouter(&status, &calls)

	w := post(r, strings.Repeat("x", 200))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Zero(t, calls)
}
