package kv

import "sync"

// adminTokenKey is the storage key for the admin token. The key is part of
// the on-disk contract; changing it would orphan previously stored tokens.
const adminTokenKey = "farmcare_admin_token"

// TokenStore persists the admin token and serves it from memory afterwards.
// The token never appears in logs; callers must not log it either.
type TokenStore struct {
	mu     sync.RWMutex
	bucket *Bucket
	cached string
	loaded bool
}

func NewTokenStore(bucket *Bucket) *TokenStore {
	return &TokenStore{bucket: bucket}
}

// Token returns the stored token, empty when none is set. The first call
// reads through to the database; later calls hit the cache.
func (t *TokenStore) Token() string {
	t.mu.RLock()
	if t.loaded {
		defer t.mu.RUnlock()
		return t.cached
	}
	t.mu.RUnlock()

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.loaded {
		return t.cached
	}
	token, err := t.bucket.GetString(adminTokenKey)
	if err != nil {
		// Treat a read failure as no token; the next call retries.
		return ""
	}
	t.cached = token
	t.loaded = true
	return t.cached
}

// Set stores a new token. An empty token clears the stored one.
func (t *TokenStore) Set(token string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if token == "" {
		if _, err := t.bucket.Delete(adminTokenKey); err != nil {
			return err
		}
	} else if err := t.bucket.Store(adminTokenKey, token, nil); err != nil {
		return err
	}
	t.cached = token
	t.loaded = true
	return nil
}

// Clear removes the stored token.
func (t *TokenStore) Clear() error {
	return t.Set("")
}
