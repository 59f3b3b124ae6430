package config

import (
    "strings"
    "time"
)

// CacheConfig defines settings for the catalog response cache.  The cache
// is disabled when Enabled is false or no Redis client is available.
// KeyStrategy selects which parts of the request form the key: route,
// method_route, method_route_query or route_query (default).
type CacheConfig struct {
    Enabled      bool
    Methods      map[string]bool
    TTL          time.Duration
    KeyStrategy  string
    Prefix       string
    MaxBodyBytes int
}

// LoadCacheConfig reads CACHE_* variables.  Catalog listings change on every
// booking (available slots), so the default TTL is short.
func LoadCacheConfig() CacheConfig {
    return CacheConfig{
        Enabled:      envBool("CACHE_ENABLED", true),
        Methods:      parseMethods(envStr("CACHE_METHODS", "GET")),
        TTL:          envDur("CACHE_TTL", 15*time.Second),
        KeyStrategy:  envStr("CACHE_KEY_STRATEGY", "route_query"),
        Prefix:       envStr("CACHE_PREFIX", "catalog"),
        MaxBodyBytes: envInt("CACHE_MAX_BODY_BYTES", 1<<20),
    }
}

func parseMethods(s string) map[string]bool {
    m := map[string]bool{}
    for _, p := range strings.Split(s, ",") {
        if p = strings.TrimSpace(strings.ToUpper(p)); p != "" {
            m[p] = true
        }
    }
    return m
}
