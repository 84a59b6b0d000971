package config

import "time"

// CacheConfig controls the Redis response cache applied to the public
// garden read endpoints.  Occupancy shown in listings tolerates a few
// seconds of staleness, so the default TTL is short.
type CacheConfig struct {
	Enabled bool
	TTL     time.Duration
	Prefix  string
}

// LoadCacheConfig reads cache settings from the environment, with
// defaults suited to occupancy reads.
func LoadCacheConfig() CacheConfig {
	return CacheConfig{
		Enabled: envBool("CACHE_ENABLED", true),
		TTL:     envDur("CACHE_TTL", 10*time.Second),
		Prefix:  envStr("CACHE_PREFIX", "cache"),
	}
}
