package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/angelmondragon/marketplace-orders/api/responses"
	pkgerrors "github.com/angelmondragon/marketplace-orders/pkg/errors"
	"github.com/angelmondragon/marketplace-orders/pkg/logger"
	pkgredis "github.com/angelmondragon/marketplace-orders/pkg/redis"
)

const (
	idempotencyHeader = "Idempotency-Key"

	defaultIdempotencyTTL = 24 * time.Hour
	// order and payment creation
	criticalIdempotencyTTL = 7 * 24 * time.Hour
)

// idempotentRoute names a mutating endpoint whose first response is replayed for a repeated key.
// Segments written as "*" match any single path segment.
type idempotentRoute struct {
	method   string
	segments []string
	ttl      time.Duration
}

func route(method, pattern string, ttl time.Duration) idempotentRoute {
	return idempotentRoute{method: method, segments: strings.Split(strings.Trim(pattern, "/"), "/"), ttl: ttl}
}

var idempotentRoutes = []idempotentRoute{
	route(http.MethodPost, "/api/v1/orders", criticalIdempotencyTTL),
	route(http.MethodPost, "/api/v1/orders/*/payment", criticalIdempotencyTTL),
	route(http.MethodPost, "/api/v1/admin/orders/*/cod-delivered", defaultIdempotencyTTL),
	route(http.MethodPost, "/api/v1/notifications/read-all", defaultIdempotencyTTL),
	route(http.MethodPost, "/api/v1/notifications/*/read", defaultIdempotencyTTL),
}

func (rt idempotentRoute) matches(method string, segments []string) bool {
	if rt.method != method || len(rt.segments) != len(segments) {
		return false
	}
	for i, want := range rt.segments {
		if want != "*" && want != segments[i] {
			return false
		}
	}
	return true
}

// storedResponse is what lands in Redis. Body is base64 encoded by encoding/json.
type storedResponse struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type,omitempty"`
	Body        []byte `json:"body"`
	RequestHash string `json:"request_hash"`
}

// Idempotency requires an Idempotency-Key on the routes above and replays the first response
// recorded for (user, method, path, key). The same key with another body is IDEMPOTENCY_KEY_REUSED.
func Idempotency(store pkgredis.IdempotencyStore, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			path := requestPath(r)
			ttl, ok := routeTTL(r.Method, path)
			if !ok || store == nil {
				next.ServeHTTP(w, r)
				return
			}

			clientKey := strings.TrimSpace(r.Header.Get(idempotencyHeader))
			if clientKey == "" {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, idempotencyHeader+" header required"))
				return
			}

			body, err := io.ReadAll(r.Body)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read request"))
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))
			digest := sha256.Sum256(body)
			requestHash := hex.EncodeToString(digest[:])

			scope := strings.Join([]string{UserIDFromContext(ctx), r.Method, path}, "|")
			key := store.IdempotencyKey(scope, clientKey)

			prior, err := lookupResponse(ctx, store, key)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check idempotency"))
				return
			}
			if prior != nil {
				if prior.RequestHash != requestHash {
					responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key reused with different request body"))
					return
				}
				prior.replay(w)
				return
			}

			capture := &responseCapture{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(capture, r)

			payload, err := json.Marshal(storedResponse{
				Status:      capture.status,
				ContentType: capture.Header().Get("Content-Type"),
				Body:        capture.body.Bytes(),
				RequestHash: requestHash,
			})
			if err == nil {
				_, err = store.SetNX(ctx, key, string(payload), ttl)
			}
			if err != nil && logg != nil {
				logg.Error(logg.WithField(ctx, "path", path), "persist idempotent response", err)
			}
		})
	}
}

func lookupResponse(ctx context.Context, store pkgredis.IdempotencyStore, key string) (*storedResponse, error) {
	raw, err := store.Get(ctx, key)
	if errors.Is(err, redis.Nil) || (err == nil && raw == "") {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var stored storedResponse
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		return nil, err
	}
	return &stored, nil
}

func (s *storedResponse) replay(w http.ResponseWriter) {
	if s.ContentType != "" {
		w.Header().Set("Content-Type", s.ContentType)
	}
	w.WriteHeader(s.Status)
	_, _ = w.Write(s.Body)
}

// requestPath uses the concrete path since middleware mounted on a parent router
// runs before chi has resolved the full route pattern.
func requestPath(r *http.Request) string {
	if r == nil || r.URL == nil {
		return ""
	}
	path := r.URL.Path
	if len(path) > 1 {
		path = strings.TrimSuffix(path, "/")
	}
	return path
}

func routeTTL(method, path string) (time.Duration, bool) {
	if path == "" {
		return 0, false
	}
	segments := strings.Split(strings.Trim(path, "/"), "/")
	for _, rt := range idempotentRoutes {
		if rt.matches(method, segments) {
			return rt.ttl, true
		}
	}
	return 0, false
}

type responseCapture struct {
	http.ResponseWriter
	body   bytes.Buffer
	status int
}

func (c *responseCapture) WriteHeader(code int) {
	c.status = code
	c.ResponseWriter.WriteHeader(code)
}

func (c *responseCapture) Write(b []byte) (int, error) {
	c.body.Write(b)
	return c.ResponseWriter.Write(b)
}
