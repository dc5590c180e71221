package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// PageCacheConfig defines settings for the Redis full-page cache
// middleware. When Enabled is false or no Redis client is configured,
// caching is disabled. Methods lists the HTTP methods to cache. TTL
// defines the lifetime of cache entries. KeyStrategy determines which
// parts of the request contribute to the cache key; cookie variance is
// added on top by the cache-buster backend at startup. Prefix and
// MaxBodyBytes control namespacing and the maximum size of responses to
// cache.
type PageCacheConfig struct {
	Enabled      bool
	Methods      map[string]bool
	TTL          time.Duration
	KeyStrategy  string
	Prefix       string
	MaxBodyBytes int
}

// LoadPageCacheConfig reads environment variables to build a
// PageCacheConfig. Defaults are used when variables are not set. All
// methods are upper-cased.
func LoadPageCacheConfig() PageCacheConfig {
	return PageCacheConfig{
		Enabled:      getenv("PAGE_CACHE_ENABLED", "false") == "true",
		Methods:      parseMethods(getenv("PAGE_CACHE_METHODS", "GET")),
		TTL:          parseDur(getenv("PAGE_CACHE_TTL", "60s")),
		KeyStrategy:  getenv("PAGE_CACHE_KEY_STRATEGY", "route_query"),
		Prefix:       getenv("PAGE_CACHE_PREFIX", "page"),
		MaxBodyBytes: atoi(getenv("PAGE_CACHE_MAX_BODY_BYTES", "1048576")),
	}
}

func parseMethods(s string) map[string]bool {
	m := map[string]bool{}
	for _, p := range strings.Split(s, ",") {
		p = strings.TrimSpace(strings.ToUpper(p))
		if p != "" {
			m[p] = true
		}
	}
	return m
}

// Helper functions shared with redis.go and ratelimit.go
func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func atoi(s string) int {
	i, _ := strconv.Atoi(s)
	return i
}

func parseDur(s string) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return time.Second
	}
	return d
}
