package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	idempotencyHeader   = "Idempotency-Key"
	idempotencyTTL      = 24 * time.Hour
	idempotencyLockTTL  = time.Minute
	idempotencyReplayed = "Idempotent-Replayed"
)

// cachedResponse stores the response for idempotent requests.
type cachedResponse struct {
	StatusCode int             `json:"status_code"`
	Body       json.RawMessage `json:"body"`
	Headers    http.Header     `json:"headers"`
}

// responseWriter wraps gin.ResponseWriter to capture the response.
type responseWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w *responseWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

// IdempotencyMiddleware replays the stored response of a mutating request that
// carries an already seen Idempotency-Key. While the first request with a key
// is still running, duplicates get 409. Redis errors disable the check for
// that request rather than failing it.
func IdempotencyMiddleware(redisClient *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodPost && c.Request.Method != http.MethodPut && c.Request.Method != http.MethodPatch {
			c.Next()
			return
		}

		key := c.GetHeader(idempotencyHeader)
		if key == "" {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		cacheKey := idempotencyCacheKey(c.Request.Method, c.FullPath(), key)
		lockKey := cacheKey + ":lock"

		cached, err := getCachedResponse(ctx, redisClient, cacheKey)
		if err != nil && err != redis.Nil {
			log.Printf("[idempotency] lookup failed, continuing: %v", err)
			c.Next()
			return
		}
		if cached != nil {
			replay(c, cached)
			return
		}

		token := uuid.NewString()
		acquired, err := redisClient.SetNX(ctx, lockKey, token, idempotencyLockTTL).Result()
		if err != nil {
			log.Printf("[idempotency] lock failed, continuing: %v", err)
			c.Next()
			return
		}
		if !acquired {
			c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "a request with this Idempotency-Key is already in progress"})
			return
		}
		defer releaseLock(ctx, redisClient, lockKey, token)

		// The first holder may have stored its response between our lookup and SetNX.
		cached, err = getCachedResponse(ctx, redisClient, cacheKey)
		if err != nil && err != redis.Nil {
			log.Printf("[idempotency] lookup failed, continuing: %v", err)
		}
		if cached != nil {
			replay(c, cached)
			return
		}

		w := &responseWriter{
			ResponseWriter: c.Writer,
			body:           &bytes.Buffer{},
		}
		c.Writer = w

		c.Next()

		// 5xx responses are not cached so the client may retry with the same key.
		if c.Writer.Status() >= 200 && c.Writer.Status() < 500 {
			response := cachedResponse{
				StatusCode: c.Writer.Status(),
				Body:       w.body.Bytes(),
				Headers:    extractResponseHeaders(c),
			}
			if err := setCachedResponse(ctx, redisClient, cacheKey, &response, idempotencyTTL); err != nil {
				log.Printf("[idempotency] store failed: %v", err)
			}
		}
	}
}

// idempotencyCacheKey scopes the client key to the route so the same key on
// two endpoints never collides.
func idempotencyCacheKey(method, route, key string) string {
	sum := sha256.Sum256([]byte(method + " " + route + " " + key))
	return "idempotency:" + hex.EncodeToString(sum[:])
}

// releaseScript deletes the in-flight lock only if token still owns it.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

func releaseLock(ctx context.Context, client *redis.Client, key, token string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
	defer cancel()
	if err := releaseScript.Run(ctx, client, []string{key}, token).Err(); err != nil {
		log.Printf("[idempotency] lock release failed: %v", err)
	}
}

func replay(c *gin.Context, cached *cachedResponse) {
	for k, v := range cached.Headers {
		for _, val := range v {
			c.Header(k, val)
		}
	}
	c.Header(idempotencyReplayed, "true")
	c.Data(cached.StatusCode, "application/json", cached.Body)
	c.Abort()
}

// getCachedResponse retrieves a cached response from Redis.
func getCachedResponse(ctx context.Context, client *redis.Client, key string) (*cachedResponse, error) {
	data, err := client.Get(ctx, key).Bytes()
	if err != nil {
		return nil, err
	}

	var cached cachedResponse
	if err := json.Unmarshal(data, &cached); err != nil {
		return nil, err
	}

	return &cached, nil
}

// setCachedResponse stores a response in Redis.
func setCachedResponse(ctx context.Context, client *redis.Client, key string, response *cachedResponse, ttl time.Duration) error {
	data, err := json.Marshal(response)
	if err != nil {
		return err
	}

	return client.Set(ctx, key, data, ttl).Err()
}

// extractResponseHeaders extracts headers to cache.
func extractResponseHeaders(c *gin.Context) http.Header {
	headers := make(http.Header)
	// Only cache Content-Type header.
	if ct := c.Writer.Header().Get("Content-Type"); ct != "" {
		headers.Set("Content-Type", ct)
	}
	return headers
}
