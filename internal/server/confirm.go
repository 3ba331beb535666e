package server

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// confirmRegistry holds pending delete confirmations. A destructive call
// without a token gets one back and does nothing; the follow-up call must
// present it before the TTL runs out.
type confirmRegistry struct {
	mu      sync.Mutex
	ttl     time.Duration
	pending map[string]pendingConfirm

	timeNow func() time.Time
}

type pendingConfirm struct {
	collection string
	id         string
	expiresAt  time.Time
}

func newConfirmRegistry(ttl time.Duration) *confirmRegistry {
	return &confirmRegistry{
		ttl:     ttl,
		pending: make(map[string]pendingConfirm),
		timeNow: func() time.Time { return time.Now().UTC() },
	}
}

// Issue registers a new confirmation for the given target and returns the
// token plus its expiry.
func (r *confirmRegistry) Issue(collection, id string) (string, time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.timeNow()
	for token, p := range r.pending {
		if p.expiresAt.Before(now) {
			delete(r.pending, token)
		}
	}

	token := uuid.NewString()
	expires := now.Add(r.ttl)
	r.pending[token] = pendingConfirm{collection: collection, id: id, expiresAt: expires}
	return token, expires
}

// Redeem consumes the token if it matches the target and has not expired.
// A token is single-use either way.
func (r *confirmRegistry) Redeem(token, collection, id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.pending[token]
	if !ok {
		return false
	}
	delete(r.pending, token)

	if p.expiresAt.Before(r.timeNow()) {
		return false
	}
	return p.collection == collection && p.id == id
}
