package middleware

import (
	"fmt"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/komuness/core/internal/pkg/response"
	"github.com/redis/go-redis/v9"
)

// RateLimit enforces a fixed-window limit per client IP for anonymous callers.
// Redis failures let the request through.
func RateLimit(rdb *redis.Client, max int, window time.Duration) gin.HandlerFunc {
	if window <= 0 {
		window = time.Second
	}
	return func(c *gin.Context) {
		if IsAuthenticated(c) {
			c.Next()
			return
		}

		ip := c.ClientIP()
		if ip == "" {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		bucket := time.Now().UnixNano() / int64(window)
		key := fmt.Sprintf("komuness:rate_limit:%s:%d", ip, bucket)

		count, err := rdb.Incr(ctx, key).Result()
		if err != nil {
			c.Next()
			return
		}
		if count == 1 {
			rdb.PExpire(ctx, key, window+time.Second)
		}

		if count > int64(max) {
			retry := int(window.Seconds())
			if retry < 1 {
				retry = 1
			}
			c.Header("Retry-After", strconv.Itoa(retry))
			response.TooManyRequests(c, "Demasiadas solicitudes, intenta de nuevo en un momento")
			return
		}

		c.Next()
	}
}
