package config

// This file defines the paywall-specific settings: the global expiration
// rule applied to purchases that carry no override, the store timezone used
// for all expiration math, and the cache-buster behavior for anonymous
// visitors behind a shared page cache.

import (
	"log"

	"github.com/iliyamo/content-paywall/internal/expiration"
)

// PaywallConfig holds the paywall runtime settings.
// ExpireAfter is the global default rule; products and orders may override
// it. CacheBusterEnabled turns the whole cache-consistency protocol on or
// off. CacheBackend selects the page-cache strategy ("general" or
// "redispage"). HashSecret keys the fingerprint HMAC so visitors cannot
// forge each other's fingerprints.
type PaywallConfig struct {
	ExpireAfter        expiration.ExpireAfter
	Timezone           string
	CacheBusterEnabled bool
	CacheBackend       string
	HashSecret         string
}

// LoadPaywallConfig reads the paywall settings from environment variables.
// The expiration value is clamped to [0, 365] here, at the settings
// boundary; out-of-range or unparseable values are reported and clamped
// rather than fatal because 0 ("never expires") is always a safe default.
func LoadPaywallConfig() PaywallConfig {
	value := envInt("EXPIRE_AFTER_VALUE", expiration.DefaultValue)
	if value < 0 || value > expiration.MaxValue {
		log.Printf("config: EXPIRE_AFTER_VALUE %d out of [0,%d], clamping", value, expiration.MaxValue)
	}
	units, ok := expiration.ParseUnits(envStr("EXPIRE_AFTER_UNITS", string(expiration.DefaultUnits)))
	if !ok {
		log.Printf("config: unknown EXPIRE_AFTER_UNITS, using %q", units)
	}

	return PaywallConfig{
		ExpireAfter:        expiration.New(value, units),
		Timezone:           envStr("STORE_TIMEZONE", "UTC"),
		CacheBusterEnabled: envBool("CACHE_BUSTER_ENABLED", false),
		CacheBackend:       envStr("CACHE_BACKEND", "general"),
		HashSecret:         envStr("HASH_SECRET", ""),
	}
}
