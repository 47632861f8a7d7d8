package form

import (
	"errors"
	"time"

	"moneymanager/internal/cache"
)

var ErrFormNotFound = errors.New("form not found or expired")

// Registry keeps open forms addressable by token. Forms idle for longer than
// the TTL are dropped and closed.
type Registry struct {
	signer *TokenSigner
	forms  *cache.LRUCache[*Controller]
}

// NewRegistry holds up to maxForms open forms.
func NewRegistry(signer *TokenSigner, maxForms int, ttl time.Duration) *Registry {
	return &Registry{
		signer: signer,
		forms: cache.NewLRUCache[*Controller](maxForms, ttl,
			cache.WithEvictHook(func(_ string, c *Controller) { c.Close() })),
	}
}

// Open registers c and assigns its token.
func (r *Registry) Open(c *Controller) string {
	token := r.signer.Issue()
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
	r.forms.Set(token, c)
	return token
}

// Get returns the form for token and refreshes its idle timer.
func (r *Registry) Get(token string) (*Controller, error) {
	if _, err := r.signer.Verify(token); err != nil {
		return nil, err
	}
	c, ok := r.forms.Get(token)
	if !ok {
		return nil, ErrFormNotFound
	}
	r.forms.Set(token, c)
	return c, nil
}

// Close closes and forgets the form. Unknown tokens are ignored.
func (r *Registry) Close(token string) {
	if c, ok := r.forms.Get(token); ok {
		c.Close()
	}
	r.forms.Delete(token)
}

func (r *Registry) Len() int {
	return r.forms.Size()
}

// Cache exposes the form store for the expiry sweep.
func (r *Registry) Cache() cache.Cleaner {
	return r.forms
}
