package auth

import (
	"context"
	"sync"

	"github.com/ikkim/storefront-sync/pkg/logger"
	"github.com/ikkim/storefront-sync/pkg/storefront"
	"github.com/ikkim/storefront-sync/pkg/util"
)

// Listener is called with every identity change, in subscription order.
type Listener func(ctx context.Context, id Identity)

// Observer holds the current identity of a tab and notifies listeners of changes.
// It is also the credential source of the storefront client.
type Observer struct {
	mu        sync.RWMutex
	current   Identity
	listeners []listenerEntry
	nextID    int
	secret    string
	log       *logger.Logger
}

type listenerEntry struct {
	id int
	fn Listener
}

// NewObserver starts with an unknown identity. secret enables token signature checks.
func NewObserver(secret string, log *logger.Logger) *Observer {
	if log == nil {
		log = logger.Nop()
	}
	return &Observer{secret: secret, log: log.Component("auth")}
}

func (o *Observer) Current() Identity {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.current
}

// Set replaces the identity and notifies listeners. It returns the transition from the previous value.
func (o *Observer) Set(ctx context.Context, id Identity) Transition {
	o.mu.Lock()
	prev := o.current
	o.current = id
	listeners := make([]Listener, 0, len(o.listeners))
	for _, l := range o.listeners {
		listeners = append(listeners, l.fn)
	}
	o.mu.Unlock()

	tr := Detect(prev, id)
	o.log.Info("Identity changed", map[string]interface{}{
		"from":       prev.String(),
		"to":         id.String(),
		"transition": tr.String(),
	})

	for _, fn := range listeners {
		fn(ctx, id)
	}
	return tr
}

// Login parses the access token and makes its subject the current identity.
func (o *Observer) Login(ctx context.Context, token string) (Identity, error) {
	claims, err := util.ParseIdentityToken(token, o.secret)
	if err != nil {
		o.log.Warn("Rejected access token", map[string]interface{}{"error": err.Error()})
		return o.Current(), err
	}
	id := Identity{
		Known:         true,
		Authenticated: true,
		UserID:        claims.Subject,
		Email:         claims.Email,
		Token:         token,
	}
	o.Set(ctx, id)
	return id, nil
}

func (o *Observer) Logout(ctx context.Context) {
	o.Set(ctx, Guest())
}

// ResolveGuest marks an unknown identity as a known guest. It is a no-op once known.
func (o *Observer) ResolveGuest(ctx context.Context) {
	if o.Current().Known {
		return
	}
	o.Set(ctx, Guest())
}

// Subscribe registers fn and returns a function removing it
func (o *Observer) Subscribe(fn Listener) func() {
	o.mu.Lock()
	o.nextID++
	id := o.nextID
	o.listeners = append(o.listeners, listenerEntry{id: id, fn: fn})
	o.mu.Unlock()

	return func() {
		o.mu.Lock()
		defer o.mu.Unlock()
		for i, l := range o.listeners {
			if l.id == id {
				o.listeners = append(o.listeners[:i], o.listeners[i+1:]...)
				return
			}
		}
	}
}

// Credential implements storefront.CredentialSource.
func (o *Observer) Credential() (string, storefront.IdentityHint, bool) {
	id := o.Current()
	if !id.Authenticated || id.Token == "" {
		return "", storefront.IdentityHint{}, false
	}
	return id.Token, storefront.IdentityHint{ClientID: id.UserID, Email: id.Email}, true
}
