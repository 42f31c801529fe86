package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/ikkim/storefront-sync/internal/app/model"
	"github.com/ikkim/storefront-sync/internal/auth"
	"github.com/ikkim/storefront-sync/internal/crosstab"
	"github.com/ikkim/storefront-sync/internal/storage"
	"github.com/ikkim/storefront-sync/pkg/logger"
	"github.com/ikkim/storefront-sync/pkg/storefront"
	"golang.org/x/sync/singleflight"
)

var (
	ErrCartItemNotFound = errors.New("cart item not found")
)

// AddItemInput describes a product put into the cart. The descriptive
// fields are only kept for guests; the API prices lines itself.
type AddItemInput struct {
	ProductID         uint            `json:"product_id" binding:"required"`
	VariantID         *uint           `json:"variant_id"`
	Quantity          int             `json:"quantity"`
	Replace           bool            `json:"replace"`
	Name              string          `json:"name"`
	Price             float64         `json:"price"`
	Image             string          `json:"image"`
	VariantSKU        string          `json:"variant_sku"`
	VariantAttributes json.RawMessage `json:"variant_attributes"`
}

func (in AddItemInput) guestItem() model.GuestCartItem {
	return model.GuestCartItem{
		ProductID:         in.ProductID,
		Name:              in.Name,
		Price:             in.Price,
		Image:             in.Image,
		Quantity:          in.Quantity,
		VariantID:         in.VariantID,
		VariantSKU:        in.VariantSKU,
		VariantAttributes: in.VariantAttributes,
	}
}

// CartSnapshot is a consistent read of the cart engine.
type CartSnapshot struct {
	State State      `json:"state"`
	Cart  model.Cart `json:"cart"`
	Err   error      `json:"-"`
}

type CartService interface {
	// OnIdentity runs the transition from the previous identity to id.
	OnIdentity(ctx context.Context, id auth.Identity)
	Load(ctx context.Context) error
	Refresh(ctx context.Context) error
	AddItem(ctx context.Context, in AddItemInput) error
	UpdateQuantity(ctx context.Context, lineID string, quantity int) error
	RemoveItem(ctx context.Context, lineID string) error
	Clear(ctx context.Context) error
	ClearForCurrentUser(ctx context.Context) error
	HandleSignal(ctx context.Context, sig model.SyncSignal)
	Snapshot() CartSnapshot
	Subscribe(fn func(CartSnapshot)) (unsubscribe func())
}

type cartService struct {
	engineDeps
	api CartAPI
	log *logger.Logger

	state     *machine[model.Cart]
	watermark crosstab.Watermark
	refreshes singleflight.Group
	subs      subscribers[CartSnapshot]

	// opMu serializes transitions and mutations. identity is guarded by it.
	opMu     sync.Mutex
	identity auth.Identity
}

func NewCartService(api CartAPI, store *storage.LocalStore, channel crosstab.Channel, opts Options) CartService {
	return newCartService(api, store, channel, opts)
}

func newCartService(api CartAPI, store *storage.LocalStore, channel crosstab.Channel, opts Options) *cartService {
	opts = opts.withDefaults()
	return &cartService{
		engineDeps: engineDeps{store: store, channel: channel, opts: opts},
		api:        api,
		log:        opts.Logger.Component("cart"),
		state:      newMachine(model.EmptyCart(model.SourceLocal)),
	}
}

func (s *cartService) Snapshot() CartSnapshot {
	state, cart, err := s.state.get()
	return CartSnapshot{State: state, Cart: cart.Clone(), Err: err}
}

func (s *cartService) Subscribe(fn func(CartSnapshot)) func() {
	return s.subs.add(fn)
}

func (s *cartService) emit() {
	s.subs.notify(s.Snapshot())
}

// locked runs fn under the operation lock and notifies subscribers afterwards.
func (s *cartService) locked(fn func() error) error {
	s.opMu.Lock()
	err := fn()
	s.opMu.Unlock()
	s.emit()
	return err
}

func (s *cartService) OnIdentity(ctx context.Context, id auth.Identity) {
	s.opMu.Lock()
	prev := s.identity
	s.identity = id
	tr := auth.Detect(prev, id)

	s.log.Debug("Cart identity transition", map[string]interface{}{
		"from":       prev.String(),
		"to":         id.String(),
		"transition": tr.String(),
	})

	switch tr {
	case auth.TransitionInitial:
		_ = s.load(ctx, id, false)
	case auth.TransitionLogin:
		_ = s.load(ctx, id, true)
	case auth.TransitionLogout:
		s.logout(ctx, prev)
	case auth.TransitionSwitch:
		s.switchAccount(ctx, id)
	}
	s.opMu.Unlock()

	if tr != auth.TransitionNone {
		s.emit()
	}
}

// Load runs the initial load for the current identity again. It is a no-op
// while another load is running.
func (s *cartService) Load(ctx context.Context) error {
	if s.state.currentState() == StateLoading {
		return nil
	}
	return s.locked(func() error {
		if !s.identity.Known {
			return ErrIdentityUnknown
		}
		return s.load(ctx, s.identity, false)
	})
}

func (s *cartService) load(ctx context.Context, id auth.Identity, login bool) error {
	if id.Authenticated {
		return s.loadAuthenticated(ctx, id, login)
	}
	s.loadGuest(ctx)
	return nil
}

// loadGuest builds the canonical cart from session storage, unioned with a
// differing local snapshot another tab shared.
func (s *cartService) loadGuest(ctx context.Context) {
	s.state.markLoading()

	var items []model.GuestCartItem
	s.store.Read(ctx, storage.KeyGuestCart, storage.ScopeSession, &items)

	var shared model.StoredCart
	if s.store.Read(ctx, storage.KeySharedCart, storage.ScopePersistent, &shared) && shared.Source == model.SourceLocal {
		sharedItems := shared.Cart.GuestItems()
		if model.CartFingerprint(sharedItems) != model.CartFingerprint(items) {
			items = model.MergeGuestItems(items, sharedItems)
			if err := s.store.Write(ctx, storage.KeyGuestCart, storage.ScopeSession, items); err != nil {
				s.log.Warn("Failed to persist merged guest cart", map[string]interface{}{
					"error": err.Error(),
				})
			}
		}
	}

	cart := model.LocalCartFromItems(items)
	s.state.set(cart)
	s.log.Debug("Guest cart loaded", map[string]interface{}{
		"lines": len(cart.Lines),
	})
}

func (s *cartService) loadAuthenticated(ctx context.Context, id auth.Identity, login bool) error {
	s.state.markLoading()

	server, err := s.api.FetchCartSettled(ctx)
	if err != nil {
		fallback := s.authFallback(ctx, id, true)
		s.state.finish(fallback, err)
		s.log.Warn("Cart fetch failed, showing last known cart", map[string]interface{}{
			"user_id": id.UserID,
			"source":  string(fallback.Source),
			"lines":   len(fallback.Lines),
			"error":   err.Error(),
		})
		return err
	}

	guest := s.guestOrigin(ctx, id)
	token := s.guestToken(ctx)
	merged := false

	if len(guest) > 0 || token != "" {
		result, mergeErr := s.mergeIntoServer(ctx, server, guest, token)
		if mergeErr != nil {
			canonical := server
			if server.IsEmpty() && len(guest) > 0 {
				canonical = model.LocalCartFromItems(guest)
			}
			err := fmt.Errorf("%w: %v", ErrMergeFailed, mergeErr)
			s.state.finish(canonical, err)
			s.log.Error("Failed to merge guest cart", mergeErr, map[string]interface{}{
				"user_id":     id.UserID,
				"guest_lines": len(guest),
			})
			return err
		}

		if result.IsEmpty() && len(guest) > 0 {
			local := model.LocalCartFromItems(guest)
			s.state.set(local)
			s.writeBackup(ctx, id, local)
			s.log.Warn("Server cart still empty after merge, showing local cart", map[string]interface{}{
				"user_id": id.UserID,
				"lines":   len(local.Lines),
			})
			return nil
		}

		server = result
		merged = true
		s.clearGuest(ctx)
	}

	s.state.set(server)
	s.writeBackup(ctx, id, server)
	if login || merged {
		s.publishShared(ctx, id, server, "login")
	}

	s.log.Info("Cart loaded", map[string]interface{}{
		"user_id":    id.UserID,
		"lines":      len(server.Lines),
		"item_count": server.ItemCount,
		"merged":     merged,
	})
	return nil
}

// guestOrigin collects guest items that still have to reach the server.
func (s *cartService) guestOrigin(ctx context.Context, id auth.Identity) []model.GuestCartItem {
	var items []model.GuestCartItem
	s.store.Read(ctx, storage.KeyGuestCart, storage.ScopeSession, &items)

	var backup model.StoredCart
	if s.store.Read(ctx, storage.CartBackupKey(id.UserID), storage.ScopePersistent, &backup) && backup.Source == model.SourceLocal {
		items = model.MergeGuestItems(items, backup.Cart.GuestItems())
	}

	var shared model.StoredCart
	if s.store.Read(ctx, storage.KeySharedCart, storage.ScopePersistent, &shared) && shared.Source == model.SourceLocal {
		items = model.MergeGuestItems(items, shared.Cart.GuestItems())
	}

	out := items[:0]
	for _, item := range items {
		if item.ProductID != 0 {
			out = append(out, item)
		}
	}
	return out
}

func (s *cartService) guestToken(ctx context.Context) string {
	var token string
	s.store.Read(ctx, storage.KeyGuestCartToken, storage.ScopeSession, &token)
	return token
}

// mergeIntoServer pushes guest lines the server does not have yet. Keys the
// server already holds are left alone, so repeating a merge changes nothing.
func (s *cartService) mergeIntoServer(ctx context.Context, server model.Cart, guest []model.GuestCartItem, token string) (model.Cart, error) {
	if token != "" {
		if err := s.api.MergeGuestCart(ctx, token); err != nil {
			return server, err
		}
		fresh, err := s.api.FetchCart(ctx)
		if err != nil {
			return server, err
		}
		server = fresh
	}

	for _, item := range guest {
		if _, ok := server.Find(item.Key()); ok {
			continue
		}
		qty := item.Quantity
		if qty < 1 {
			qty = 1
		}
		err := s.api.AddLine(ctx, storefront.AddLineRequest{
			ProductID: item.ProductID,
			VariantID: item.Key().Variant(),
			Quantity:  qty,
			Replace:   true,
		})
		if err != nil {
			return server, err
		}
	}

	return s.api.FetchCartSettled(ctx)
}

// authFallback picks the best local snapshot for an authenticated identity
// whose cart could not be fetched.
func (s *cartService) authFallback(ctx context.Context, id auth.Identity, includeGuest bool) model.Cart {
	var backup model.StoredCart
	if s.store.Read(ctx, storage.CartBackupKey(id.UserID), storage.ScopePersistent, &backup) {
		return backup.Cart.Clone()
	}

	var shared model.StoredCart
	if s.store.Read(ctx, storage.KeySharedCart, storage.ScopePersistent, &shared) &&
		shared.Source == model.SourceRemote && shared.OwnerID == id.UserID {
		return shared.Cart.Clone()
	}

	if includeGuest {
		var items []model.GuestCartItem
		if s.store.Read(ctx, storage.KeyGuestCart, storage.ScopeSession, &items) && len(items) > 0 {
			return model.LocalCartFromItems(items)
		}
	}
	return model.EmptyCart(model.SourceRemote)
}

func (s *cartService) logout(ctx context.Context, prev auth.Identity) {
	current := s.state.current()

	if prev.UserID != "" {
		if err := s.store.Remove(ctx, storage.CartBackupKey(prev.UserID), storage.ScopePersistent); err != nil {
			s.log.Warn("Failed to remove cart backup", map[string]interface{}{
				"user_id": prev.UserID,
				"error":   err.Error(),
			})
		}
	}

	var canonical model.Cart
	if !current.IsEmpty() {
		canonical = model.LocalCartFromItems(current.GuestItems())
		s.writeGuest(ctx, canonical)
	} else {
		var items []model.GuestCartItem
		s.store.Read(ctx, storage.KeyGuestCart, storage.ScopeSession, &items)
		canonical = model.LocalCartFromItems(items)
	}

	s.state.set(canonical)
	s.publishShared(ctx, auth.Guest(), canonical, "logout")

	s.log.Info("Cart converted for guest", map[string]interface{}{
		"user_id": prev.UserID,
		"lines":   len(canonical.Lines),
	})
}

func (s *cartService) switchAccount(ctx context.Context, id auth.Identity) {
	s.state.reset(model.EmptyCart(model.SourceRemote))
	s.state.markLoading()

	cart, err := s.api.FetchCartSettled(ctx)
	if err != nil {
		s.state.finish(s.authFallback(ctx, id, false), err)
		s.log.Warn("Cart fetch failed after account switch", map[string]interface{}{
			"user_id": id.UserID,
			"error":   err.Error(),
		})
		return
	}
	s.state.set(cart)
	s.writeBackup(ctx, id, cart)
	s.publishShared(ctx, id, cart, "switch")
}

func (s *cartService) Refresh(ctx context.Context) error {
	_, err, _ := s.refreshes.Do("refresh", func() (interface{}, error) {
		s.opMu.Lock()
		defer s.opMu.Unlock()
		return nil, s.refresh(ctx)
	})
	s.emit()
	return err
}

func (s *cartService) refresh(ctx context.Context) error {
	id := s.identity
	if !id.Known {
		return ErrIdentityUnknown
	}
	if !id.Authenticated {
		s.loadGuest(ctx)
		return nil
	}

	cart, err := s.api.FetchCart(ctx)
	if err != nil {
		s.state.fail(err)
		s.log.Warn("Cart refresh failed", map[string]interface{}{
			"user_id": id.UserID,
			"error":   err.Error(),
		})
		return err
	}

	// an unmerged local cart stays visible until the server has lines
	current := s.state.current()
	if cart.IsEmpty() && current.Source == model.SourceLocal && !current.IsEmpty() {
		s.state.set(current)
		return nil
	}

	s.state.set(cart)
	s.writeBackup(ctx, id, cart)
	return nil
}

// HandleSignal refreshes after another tab changed the cart. Signals not
// newer than the last one processed are ignored.
func (s *cartService) HandleSignal(ctx context.Context, sig model.SyncSignal) {
	if sig.Kind != model.KindCart {
		return
	}
	if !s.watermark.Advance(sig.Timestamp) {
		s.log.Debug("Ignoring stale cart signal", map[string]interface{}{
			"timestamp": sig.Timestamp,
			"last":      s.watermark.Last(),
		})
		return
	}
	if err := s.pace(ctx); err != nil {
		return
	}
	if err := s.Refresh(ctx); err != nil {
		s.log.Warn("Cart refresh after signal failed", map[string]interface{}{
			"origin": sig.Origin,
			"error":  err.Error(),
		})
	}
}

func (s *cartService) AddItem(ctx context.Context, in AddItemInput) error {
	if in.ProductID == 0 {
		return ErrInvalidProduct
	}
	if in.Quantity < 1 {
		in.Quantity = 1
	}

	s.log.Info("Adding item to cart", map[string]interface{}{
		"product_id": in.ProductID,
		"variant_id": in.VariantID,
		"quantity":   in.Quantity,
		"replace":    in.Replace,
	})

	return s.locked(func() error {
		id := s.identity
		if !id.Known {
			return ErrIdentityUnknown
		}
		if id.Authenticated {
			return s.remoteMutation(ctx, id, "add", func() error {
				return s.api.AddLine(ctx, storefront.AddLineRequest{
					ProductID: in.ProductID,
					VariantID: in.VariantID,
					Quantity:  in.Quantity,
					Replace:   in.Replace,
				})
			})
		}
		return s.localMutation(ctx, id, "add", func(items []model.GuestCartItem) ([]model.GuestCartItem, error) {
			return model.UpsertGuestItem(items, in.guestItem(), in.Replace), nil
		})
	})
}

// UpdateQuantity sets the quantity of a line. Zero or less removes it.
func (s *cartService) UpdateQuantity(ctx context.Context, lineID string, quantity int) error {
	if quantity <= 0 {
		return s.RemoveItem(ctx, lineID)
	}

	return s.locked(func() error {
		id := s.identity
		if !id.Known {
			return ErrIdentityUnknown
		}
		current := s.state.current()
		i, ok := current.FindByID(lineID)
		if !ok {
			return s.notFound(lineID)
		}
		line := current.Lines[i]

		if id.Authenticated && !model.IsLocalLineID(line.ID) {
			return s.remoteMutation(ctx, id, "update", func() error {
				return s.api.SetLineQuantity(ctx, line.ID, quantity)
			})
		}
		return s.localMutation(ctx, id, "update", func(items []model.GuestCartItem) ([]model.GuestCartItem, error) {
			return model.UpsertGuestItem(items, model.GuestCartItem{
				ProductID: line.ProductID,
				VariantID: line.VariantID,
				Quantity:  quantity,
			}, true), nil
		})
	})
}

func (s *cartService) RemoveItem(ctx context.Context, lineID string) error {
	return s.locked(func() error {
		id := s.identity
		if !id.Known {
			return ErrIdentityUnknown
		}
		current := s.state.current()
		i, ok := current.FindByID(lineID)
		if !ok {
			return s.notFound(lineID)
		}
		line := current.Lines[i]

		if id.Authenticated && !model.IsLocalLineID(line.ID) {
			return s.remoteMutation(ctx, id, "remove", func() error {
				return s.api.RemoveLine(ctx, line.ID)
			})
		}
		return s.localMutation(ctx, id, "remove", func(items []model.GuestCartItem) ([]model.GuestCartItem, error) {
			out := make([]model.GuestCartItem, 0, len(items))
			for _, item := range items {
				if item.Key() != line.Key() {
					out = append(out, item)
				}
			}
			return out, nil
		})
	})
}

func (s *cartService) Clear(ctx context.Context) error {
	return s.locked(func() error {
		id := s.identity
		if !id.Known {
			return ErrIdentityUnknown
		}
		if id.Authenticated {
			return s.remoteMutation(ctx, id, "clear", func() error {
				if err := s.api.Clear(ctx); err != nil {
					return err
				}
				s.clearGuest(ctx)
				return nil
			})
		}
		return s.localMutation(ctx, id, "clear", func([]model.GuestCartItem) ([]model.GuestCartItem, error) {
			return nil, nil
		})
	})
}

// ClearForCurrentUser empties the server cart of the authenticated subject
// and drops every snapshot kept for it.
func (s *cartService) ClearForCurrentUser(ctx context.Context) error {
	return s.locked(func() error {
		id := s.identity
		if !id.Known {
			return ErrIdentityUnknown
		}
		if !id.Authenticated {
			return s.localMutation(ctx, id, "clear", func([]model.GuestCartItem) ([]model.GuestCartItem, error) {
				return nil, nil
			})
		}

		if err := s.api.ClearForUser(ctx, id.UserID); err != nil {
			s.state.fail(err)
			s.log.Error("Failed to clear cart for user", err, map[string]interface{}{
				"user_id": id.UserID,
			})
			return err
		}
		if err := s.store.Remove(ctx, storage.CartBackupKey(id.UserID), storage.ScopePersistent); err != nil {
			s.log.Warn("Failed to remove cart backup", map[string]interface{}{
				"user_id": id.UserID,
				"error":   err.Error(),
			})
		}
		s.clearGuest(ctx)

		cart, err := s.api.FetchCart(ctx)
		if err != nil {
			s.state.finish(model.EmptyCart(model.SourceRemote), err)
			return err
		}
		s.state.set(cart)
		s.publishShared(ctx, id, cart, "clear")
		return nil
	})
}

func (s *cartService) notFound(lineID string) error {
	s.log.Warn("Cart line not found", map[string]interface{}{
		"line_id": lineID,
	})
	return ErrCartItemNotFound
}

// remoteMutation performs call, then re-reads the server cart as the new
// canonical value. A failed call leaves the canonical value as it was.
func (s *cartService) remoteMutation(ctx context.Context, id auth.Identity, action string, call func() error) error {
	if err := call(); err != nil {
		s.state.fail(err)
		s.log.Error("Cart mutation failed", err, map[string]interface{}{
			"user_id": id.UserID,
			"action":  action,
		})
		return err
	}

	// a local stand-in cart still holds unmerged guest lines
	if s.state.current().Source == model.SourceLocal {
		return s.loadAuthenticated(ctx, id, true)
	}

	cart, err := s.api.FetchCart(ctx)
	if err != nil {
		s.state.fail(err)
		s.log.Warn("Cart re-read after mutation failed", map[string]interface{}{
			"user_id": id.UserID,
			"action":  action,
			"error":   err.Error(),
		})
		return err
	}

	s.state.set(cart)
	s.writeBackup(ctx, id, cart)
	s.publishShared(ctx, id, cart, action)
	return nil
}

// localMutation edits the guest records behind the canonical local cart.
func (s *cartService) localMutation(ctx context.Context, id auth.Identity, action string, change func([]model.GuestCartItem) ([]model.GuestCartItem, error)) error {
	next, err := change(s.state.current().GuestItems())
	if err != nil {
		return err
	}

	cart := model.LocalCartFromItems(next)
	s.writeGuest(ctx, cart)
	s.state.set(cart)
	if id.Authenticated {
		s.writeBackup(ctx, id, cart)
	}
	s.publishShared(ctx, id, cart, action)
	return nil
}

func (s *cartService) writeGuest(ctx context.Context, cart model.Cart) {
	if err := s.store.Write(ctx, storage.KeyGuestCart, storage.ScopeSession, cart.GuestItems()); err != nil {
		s.log.Warn("Failed to persist guest cart", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

func (s *cartService) clearGuest(ctx context.Context) {
	for _, key := range []string{storage.KeyGuestCart, storage.KeyGuestCartToken} {
		if err := s.store.Remove(ctx, key, storage.ScopeSession); err != nil {
			s.log.Warn("Failed to clear guest cart data", map[string]interface{}{
				"key":   key,
				"error": err.Error(),
			})
		}
	}
}

func (s *cartService) writeBackup(ctx context.Context, id auth.Identity, cart model.Cart) {
	if !id.Authenticated || id.UserID == "" {
		return
	}
	stored := model.NewStoredCart(cart, id.UserID, s.opts.Now())
	if err := s.store.Write(ctx, storage.CartBackupKey(id.UserID), storage.ScopePersistent, stored); err != nil {
		s.log.Warn("Failed to write cart backup", map[string]interface{}{
			"user_id": id.UserID,
			"error":   err.Error(),
		})
	}
}

// publishShared stores cart as the shared snapshot and signals other tabs.
func (s *cartService) publishShared(ctx context.Context, id auth.Identity, cart model.Cart, action string) {
	stored := model.NewStoredCart(cart, id.UserID, s.opts.Now())
	if err := s.store.Write(ctx, storage.KeySharedCart, storage.ScopePersistent, stored); err != nil {
		s.log.Warn("Failed to write shared cart", map[string]interface{}{
			"error": err.Error(),
		})
	}
	s.publish(ctx, model.KindCart, action)
}
