package middleware

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"circulation-backend/internal/shared/response"
	"circulation-backend/pkg/cache"
)

const (
	IdempotencyKeyHeader = "Idempotency-Key"
	idempotencyPrefix    = "idempotency:"
	maxIdempotencyKeyLen = 128

	statePending = "pending"
	stateDone    = "done"
)

type idempotentResponse struct {
	State       string `json:"state"`
	Fingerprint string `json:"fingerprint"`
	Status      int    `json:"status,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	Body        []byte `json:"body,omitempty"`
}

type bodyRecorder struct {
	gin.ResponseWriter
	body bytes.Buffer
}

func (w *bodyRecorder) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *bodyRecorder) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

// Idempotency replays the stored response for a repeated Idempotency-Key.
// The key is claimed with SetNX before the handler runs, so two concurrent
// requests with one key never both execute. A key reused with a different
// body is rejected with 422. 5xx responses and panics release the key.
// Requests without the header pass through.
func Idempotency(store cache.Cache, ttl time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader(IdempotencyKeyHeader)
		if key == "" {
			c.Next()
			return
		}
		if len(key) > maxIdempotencyKeyLen {
			response.Error(c, http.StatusBadRequest, "Idempotency-Key too long", nil)
			c.Abort()
			return
		}

		fingerprint, err := fingerprintBody(c.Request)
		if err != nil {
			response.Error(c, http.StatusBadRequest, "Unreadable request body", err.Error())
			c.Abort()
			return
		}

		ctx := c.Request.Context()
		cacheKey := idempotencyPrefix + c.Request.Method + ":" + c.FullPath() + ":" + key

		claimed, err := store.SetNX(ctx, cacheKey, idempotentResponse{State: statePending, Fingerprint: fingerprint}, ttl)
		if err != nil {
			log.Warn().Err(err).Str("key", cacheKey).Msg("Idempotency store unavailable, executing request")
			c.Next()
			return
		}

		if !claimed {
			var stored idempotentResponse
			found, err := store.Get(ctx, cacheKey, &stored)
			if err == nil && found && stored.Fingerprint != fingerprint {
				response.Error(c, http.StatusUnprocessableEntity, "Idempotency-Key was already used with a different request body", nil)
				c.Abort()
				return
			}
			if err != nil || !found || stored.State != stateDone {
				response.Error(c, http.StatusConflict, "A request with this Idempotency-Key is in progress", nil)
				c.Abort()
				return
			}

			c.Header("Idempotent-Replayed", "true")
			c.Data(stored.Status, stored.ContentType, stored.Body)
			c.Abort()
			return
		}

		release := func() {
			if err := store.Delete(ctx, cacheKey); err != nil {
				log.Warn().Err(err).Str("key", cacheKey).Msg("Failed to release idempotency key")
			}
		}

		// Recovery sits outside this middleware; without this the key would stay
		// pending until the TTL ran out.
		defer func() {
			if p := recover(); p != nil {
				release()
				panic(p)
			}
		}()

		rec := &bodyRecorder{ResponseWriter: c.Writer}
		c.Writer = rec
		c.Next()

		status := rec.Status()
		if status >= http.StatusInternalServerError {
			release()
			return
		}

		done := idempotentResponse{
			State:       stateDone,
			Fingerprint: fingerprint,
			Status:      status,
			ContentType: rec.Header().Get("Content-Type"),
			Body:        rec.body.Bytes(),
		}
		if err := store.Set(ctx, cacheKey, done, ttl); err != nil {
			log.Warn().Err(err).Str("key", cacheKey).Msg("Failed to store idempotent response")
		}
	}
}

// fingerprintBody hashes the request body and puts it back for the handler.
func fingerprintBody(r *http.Request) (string, error) {
	var raw []byte
	if r.Body != nil && r.Body != http.NoBody {
		var err error
		if raw, err = io.ReadAll(r.Body); err != nil {
			return "", err
		}
		_ = r.Body.Close()
		r.Body = io.NopCloser(bytes.NewReader(raw))
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:]), nil
}
