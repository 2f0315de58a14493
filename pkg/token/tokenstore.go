package tokenstore

import (
	"sync"
	"time"
)

// in-memory revocation list of token ids. Entries are dropped once the token
// would have expired anyway.
var (
	mu            sync.RWMutex
	revokedTokens = map[string]time.Time{}
)

// RevokeToken marks jti as revoked until exp. A zero exp keeps it forever.
func RevokeToken(jti string, exp time.Time) {
	if jti == "" {
		return
	}
	mu.Lock()
	defer mu.Unlock()
	revokedTokens[jti] = exp
	purgeLocked(time.Now())
}

func IsRevoked(jti string) bool {
	if jti == "" {
		return false
	}
	mu.RLock()
	defer mu.RUnlock()
	_, ok := revokedTokens[jti]
	return ok
}

func purgeLocked(now time.Time) {
	for jti, exp := range revokedTokens {
		if !exp.IsZero() && exp.Before(now) {
			delete(revokedTokens, jti)
		}
	}
}
