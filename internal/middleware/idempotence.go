package middleware

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/komuness/core/internal/pkg/response"
	redispkg "github.com/komuness/core/internal/pkg/redis"
	"github.com/redis/go-redis/v9"
)

const (
	idempotenceHeader = "x-idempotence"
	idempotenceTTL    = 60 * time.Second

	requestInFlight = "0"
	requestDone     = "1"
)

// Idempotence rejects a write replayed within idempotenceTTL, such as a
// double-submitted form. Requests are keyed by the x-idempotence header.
// Without one, only non-multipart POSTs are keyed by a hash of the request;
// state transitions (PUT, PATCH, DELETE) legitimately repeat with identical
// bodies and pass through. Failed requests release their key so they can
// be retried.
func Idempotence(rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodGet || c.Request.Method == http.MethodHead {
			c.Next()
			return
		}

		fingerprint, err := requestFingerprint(c)
		if err != nil || fingerprint == "" {
			c.Next()
			return
		}
		key := redispkg.Key("idempotence", fingerprint)
		ctx := c.Request.Context()

		claimed, err := rdb.SetNX(ctx, key, requestInFlight, idempotenceTTL).Result()
		if err != nil {
			// Redis unavailable: serve the request undeduplicated.
			c.Next()
			return
		}
		if !claimed {
			msg := "La misma solicitud solo puede enviarse una vez cada 60 segundos"
			if state, _ := rdb.Get(ctx, key).Result(); state == requestInFlight {
				msg = "La misma solicitud se está procesando..."
			}
			response.Conflict(c, msg)
			return
		}

		c.Next()

		if status := c.Writer.Status(); status >= 200 && status < 300 {
			rdb.Set(ctx, key, requestDone, redis.KeepTTL)
			return
		}
		rdb.Del(ctx, key)
	}
}

// requestFingerprint returns the caller-supplied key, or a digest of the
// method, URL, body and caller identity for a POST. An empty fingerprint
// leaves the request undeduplicated.
func requestFingerprint(c *gin.Context) (string, error) {
	if hdr := strings.TrimSpace(c.GetHeader(idempotenceHeader)); hdr != "" {
		return hdr, nil
	}
	if c.Request.Method != http.MethodPost || strings.HasPrefix(c.ContentType(), "multipart/") {
		return "", nil
	}

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		return "", err
	}
	c.Request.Body = io.NopCloser(bytes.NewReader(body))

	h := sha256.New()
	for _, part := range []string{
		c.Request.Method,
		c.Request.URL.String(),
		c.Request.UserAgent(),
		c.ClientIP(),
		extractToken(c),
	} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil)), nil
}
