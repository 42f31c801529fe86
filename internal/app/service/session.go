package service

import (
	"context"

	"github.com/ikkim/storefront-sync/internal/app/model"
	"github.com/ikkim/storefront-sync/internal/auth"
	"github.com/ikkim/storefront-sync/internal/crosstab"
	"github.com/ikkim/storefront-sync/internal/storage"
	"github.com/ikkim/storefront-sync/pkg/logger"
)

// SessionDeps are the collaborators of one tab.
type SessionDeps struct {
	Observer    *auth.Observer
	Store       *storage.LocalStore
	Channel     crosstab.Channel
	CartAPI     CartAPI
	WishlistAPI WishlistAPI
	Options     Options
}

// Session wires a cart engine and a wishlist engine to the identity observer
// and the sync channel of one tab.
type Session struct {
	observer *auth.Observer
	channel  crosstab.Channel
	cart     *cartService
	wishlist *wishlistService
	log      *logger.Logger
	unsubs   []func()
}

func NewSession(ctx context.Context, deps SessionDeps) *Session {
	opts := deps.Options.withDefaults()
	cart := newCartService(deps.CartAPI, deps.Store, deps.Channel, opts)
	wishlist := newWishlistService(deps.WishlistAPI, cart, deps.Store, deps.Channel, opts)

	s := &Session{
		observer: deps.Observer,
		channel:  deps.Channel,
		cart:     cart,
		wishlist: wishlist,
		log:      opts.Logger.Component("session"),
	}

	// the cart transition runs before the wishlist one
	s.unsubs = append(s.unsubs,
		deps.Observer.Subscribe(cart.OnIdentity),
		deps.Observer.Subscribe(wishlist.OnIdentity),
	)

	if deps.Channel != nil {
		// signals already in storage when the tab opens are not news
		if sig, ok := deps.Channel.Latest(ctx, model.KindCart); ok {
			cart.watermark.Advance(sig.Timestamp)
		}
		if sig, ok := deps.Channel.Latest(ctx, model.KindWishlist); ok {
			wishlist.watermark.Advance(sig.Timestamp)
		}
		s.unsubs = append(s.unsubs,
			deps.Channel.Subscribe(model.KindCart, cart.HandleSignal),
			deps.Channel.Subscribe(model.KindWishlist, wishlist.HandleSignal),
		)
	}
	return s
}

func (s *Session) Cart() CartService {
	return s.cart
}

func (s *Session) Wishlist() WishlistService {
	return s.wishlist
}

func (s *Session) Identity() auth.Identity {
	return s.observer.Current()
}

// Start resolves the identity of the tab: token logs in, empty means guest.
func (s *Session) Start(ctx context.Context, token string) error {
	if token == "" {
		s.observer.ResolveGuest(ctx)
		return nil
	}
	if _, err := s.observer.Login(ctx, token); err != nil {
		s.observer.ResolveGuest(ctx)
		return err
	}
	return nil
}

func (s *Session) Login(ctx context.Context, token string) (auth.Identity, error) {
	return s.observer.Login(ctx, token)
}

func (s *Session) Logout(ctx context.Context) {
	s.wishlist.Wait()
	s.observer.Logout(ctx)
}

// Refresh re-reads both collections. Only authenticated sessions have
// anything remote to refresh, so guests are skipped.
func (s *Session) Refresh(ctx context.Context) error {
	if !s.observer.Current().Authenticated {
		return nil
	}
	cartErr := s.cart.Refresh(ctx)
	wishErr := s.wishlist.Refresh(ctx)
	if cartErr != nil {
		return cartErr
	}
	return wishErr
}

func (s *Session) Close() {
	for _, unsub := range s.unsubs {
		unsub()
	}
	s.unsubs = nil
	s.wishlist.Wait()
}
