package config

import (
	"os"
	"strings"
)

func envBool(key string, def bool) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if v == "" {
		return def
	}
	return v == "1" || v == "true" || v == "yes" || v == "y"
}

// ReverseOnOrderCancel makes cancelling an audited order soft-delete its
// untouched account record. When off, the order is still cancelled but its
// account record is left in place.
//
// Set via env:
// - REVERSE_ON_ORDER_CANCEL=false
func ReverseOnOrderCancel() bool {
	return envBool("REVERSE_ON_ORDER_CANCEL", true)
}

// RequireRedisLock turns document locks from best effort into a hard requirement:
// audits and settlements fail when redis is not connected.
//
// Set via env:
// - REQUIRE_REDIS_LOCK=true
func RequireRedisLock() bool {
	return envBool("REQUIRE_REDIS_LOCK", false)
}

func SkipMigrations() bool {
	return envBool("SKIP_MIGRATIONS", false)
}
