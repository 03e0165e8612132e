package sync

import (
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	pendingActionTTL = 30 * time.Second
	pendingActionCap = 1024
)

// PendingActions remembers mutations this client just sent to the server so
// their SSE echoes can be swallowed instead of re-applied. Tokens expire
// after a short TTL; an echo that never arrives must not suppress a real
// remote change forever.
type PendingActions struct {
	cache *expirable.LRU[string, struct{}]
}

func NewPendingActions() *PendingActions {
	return &PendingActions{
		cache: expirable.NewLRU[string, struct{}](pendingActionCap, nil, pendingActionTTL),
	}
}

func pendingToken(op string, id NodeID) string {
	return fmt.Sprintf("%s:%d", op, id)
}

// Add records an in-flight mutation.
func (p *PendingActions) Add(token string) {
	p.cache.Add(token, struct{}{})
}

// Consume reports whether token was pending and removes it. Each token
// suppresses exactly one echo.
func (p *PendingActions) Consume(token string) bool {
	if _, ok := p.cache.Get(token); !ok {
		return false
	}
	p.cache.Remove(token)
	return true
}
