package middleware

import (
    "bytes"
    "context"
    "crypto/sha256"
    "encoding/hex"
    "encoding/json"
    "net/http"
    "strings"
    "time"

    "github.com/labstack/echo/v4"
    "github.com/redis/go-redis/v9"
    "github.com/rs/zerolog/log"

    "github.com/iliyamo/tour-experience-booking/internal/config"
)

// bodyRecorder forwards the response while keeping a copy of the body,
// giving up on the copy once it exceeds limit bytes.
type bodyRecorder struct {
    http.ResponseWriter
    status    int
    body      bytes.Buffer
    limit     int
    truncated bool
}

func (r *bodyRecorder) WriteHeader(code int) {
    r.status = code
    r.ResponseWriter.WriteHeader(code)
}

func (r *bodyRecorder) Write(b []byte) (int, error) {
    switch {
    case r.truncated:
    case r.limit > 0 && r.body.Len()+len(b) > r.limit:
        r.truncated = true
        r.body.Reset()
    default:
        r.body.Write(b)
    }
    return r.ResponseWriter.Write(b)
}

// cacheKeyFrom hashes the parts of the request selected by KeyStrategy.
func cacheKeyFrom(cfg config.CacheConfig, c echo.Context) string {
    r := c.Request()
    var parts []string
    switch strings.ToLower(cfg.KeyStrategy) {
    case "route":
        parts = []string{"route", c.Path()}
    case "method_route":
        parts = []string{"method", r.Method, "route", c.Path()}
    case "method_route_query":
        parts = []string{"method", r.Method, "route", c.Path(), "path", r.URL.Path, "q", r.URL.RawQuery}
    default: // route_query
        parts = []string{"route", c.Path(), "path", r.URL.Path, "q", r.URL.RawQuery}
    }
    sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
    return cfg.Prefix + ":" + hex.EncodeToString(sum[:16])
}

// cachedResponse is what the cache stores under each key.
type cachedResponse struct {
    Status int         `json:"s"`
    Header http.Header `json:"h,omitempty"`
    Body   []byte      `json:"b"`
}

func encodePayload(status int, header http.Header, body []byte) ([]byte, error) {
    return json.Marshal(cachedResponse{Status: status, Header: header, Body: body})
}

func decodePayload(bs []byte) (status int, header http.Header, body []byte, ok bool) {
    var cr cachedResponse
    if err := json.Unmarshal(bs, &cr); err != nil || cr.Status == 0 {
        return 0, nil, nil, false
    }
    if cr.Header == nil {
        cr.Header = make(http.Header)
    }
    return cr.Status, cr.Header, cr.Body, true
}

// NewRedisCache caches successful public catalog responses in Redis for
// cfg.TTL.  It is a pass-through when disabled or when Redis is unavailable.
func NewRedisCache(cfg config.CacheConfig, rdb *redis.Client) echo.MiddlewareFunc {
    if !cfg.Enabled || rdb == nil {
        return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
    }
    ttl := cfg.TTL
    if ttl <= 0 {
        ttl = 15 * time.Second
    }

    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            if !cfg.Methods[strings.ToUpper(c.Request().Method)] {
                return next(c)
            }
            ctx := c.Request().Context()
            key := cacheKeyFrom(cfg, c)

            if bs, err := rdb.Get(ctx, key).Bytes(); err == nil {
                if status, hdr, body, ok := decodePayload(bs); ok {
                    for k, vals := range hdr {
                        if strings.EqualFold(k, echo.HeaderContentLength) || strings.EqualFold(k, echo.HeaderXRequestID) {
                            continue
                        }
                        for _, v := range vals {
                            c.Response().Header().Add(k, v)
                        }
                    }
                    c.Response().Header().Set("X-Cache", "HIT")
                    c.Response().WriteHeader(status)
                    _, _ = c.Response().Write(body)
                    return nil
                }
            } else if err != redis.Nil {
                log.Warn().Err(err).Msg("cache: redis get failed")
            }

            rec := &bodyRecorder{ResponseWriter: c.Response().Writer, status: http.StatusOK, limit: cfg.MaxBodyBytes}
            c.Response().Writer = rec
            c.Response().Header().Set("X-Cache", "MISS")

            if err := next(c); err != nil {
                return err
            }
            if rec.status != http.StatusOK || rec.truncated {
                return nil
            }
            hdr := c.Response().Header().Clone()
            hdr.Del("X-Cache")
            payload, err := encodePayload(rec.status, hdr, rec.body.Bytes())
            if err != nil {
                return nil
            }
            if err := rdb.Set(context.WithoutCancel(ctx), key, payload, ttl).Err(); err != nil {
                log.Warn().Err(err).Msg("cache: redis set failed")
            }
            return nil
        }
    }
}
