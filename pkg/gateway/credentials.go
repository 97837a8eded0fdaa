package gateway

import "sync"

// Credentials holds the bearer token attached to outgoing requests and the
// single handler invoked when the remote rejects a request with 401.
// It is safe for concurrent use.
type Credentials struct {
	mu             sync.RWMutex
	token          string
	onUnauthorized func()
}

// NewCredentials returns empty credentials.
func NewCredentials() *Credentials {
	return &Credentials{}
}

// SetToken replaces the bearer token. An empty token detaches the
// Authorization header from subsequent requests.
func (c *Credentials) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

// Token returns the current bearer token.
func (c *Credentials) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// SetUnauthorizedHandler registers fn as the only unauthorized handler,
// replacing any previous one. Passing nil removes the handler.
func (c *Credentials) SetUnauthorizedHandler(fn func()) {
	c.mu.Lock()
	c.onUnauthorized = fn
	c.mu.Unlock()
}

// notifyUnauthorized runs the registered handler outside the lock so the
// handler may call SetToken.
func (c *Credentials) notifyUnauthorized() bool {
	c.mu.RLock()
	fn := c.onUnauthorized
	c.mu.RUnlock()

	if fn == nil {
		return false
	}
	fn()
	return true
}
