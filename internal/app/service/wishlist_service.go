package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ikkim/storefront-sync/internal/app/model"
	"github.com/ikkim/storefront-sync/internal/auth"
	"github.com/ikkim/storefront-sync/internal/crosstab"
	"github.com/ikkim/storefront-sync/internal/storage"
	"github.com/ikkim/storefront-sync/pkg/logger"
	"golang.org/x/sync/singleflight"
)

var (
	ErrWishlistItemNotFound = errors.New("wishlist item not found")
)

// AddWishlistInput describes a product saved to the wishlist.
type AddWishlistInput struct {
	ProductID  uint    `json:"product_id" binding:"required"`
	VariantID  *uint   `json:"variant_id"`
	Name       string  `json:"name"`
	Price      float64 `json:"price"`
	Image      string  `json:"image"`
	VariantSKU string  `json:"variant_sku"`
	Note       string  `json:"note"`
}

func (in AddWishlistInput) key() model.LineKey {
	return model.KeyOf(in.ProductID, in.VariantID)
}

type WishlistSnapshot struct {
	State    State          `json:"state"`
	Wishlist model.Wishlist `json:"wishlist"`
	Err      error          `json:"-"`
}

// cartAdder is what moving a wishlist line needs from the cart engine.
type cartAdder interface {
	AddItem(ctx context.Context, in AddItemInput) error
	Refresh(ctx context.Context) error
}

type WishlistService interface {
	OnIdentity(ctx context.Context, id auth.Identity)
	Load(ctx context.Context) error
	Refresh(ctx context.Context) error
	AddItem(ctx context.Context, in AddWishlistInput) error
	RemoveItem(ctx context.Context, lineID string) error
	MoveToCart(ctx context.Context, lineID string, quantity int) error
	IsInWishlist(ctx context.Context, productID uint, variantID *uint) (bool, error)
	// Toggle adds or removes the product and reports whether it is now saved.
	// For authenticated users the server call and its confirmation run in the background.
	Toggle(ctx context.Context, in AddWishlistInput) (bool, error)
	HandleSignal(ctx context.Context, sig model.SyncSignal)
	Snapshot() WishlistSnapshot
	Subscribe(fn func(WishlistSnapshot)) (unsubscribe func())
	// Wait blocks until background toggle confirmations have finished.
	Wait()
}

type wishlistService struct {
	engineDeps
	api  WishlistAPI
	cart cartAdder
	log  *logger.Logger

	state     *machine[model.Wishlist]
	watermark crosstab.Watermark
	refreshes singleflight.Group
	subs      subscribers[WishlistSnapshot]
	pending   sync.WaitGroup

	opMu     sync.Mutex
	identity auth.Identity
}

// NewWishlistService builds the wishlist engine. cart may be nil when lines are never moved to the cart.
func NewWishlistService(api WishlistAPI, cart CartService, store *storage.LocalStore, channel crosstab.Channel, opts Options) WishlistService {
	var adder cartAdder
	if cart != nil {
		adder = cart
	}
	return newWishlistService(api, adder, store, channel, opts)
}

func newWishlistService(api WishlistAPI, cart cartAdder, store *storage.LocalStore, channel crosstab.Channel, opts Options) *wishlistService {
	opts = opts.withDefaults()
	return &wishlistService{
		engineDeps: engineDeps{store: store, channel: channel, opts: opts},
		api:        api,
		cart:       cart,
		log:        opts.Logger.Component("wishlist"),
		state:      newMachine(model.EmptyWishlist(model.SourceLocal)),
	}
}

func (s *wishlistService) Snapshot() WishlistSnapshot {
	state, w, err := s.state.get()
	return WishlistSnapshot{State: state, Wishlist: w.Clone(), Err: err}
}

func (s *wishlistService) Subscribe(fn func(WishlistSnapshot)) func() {
	return s.subs.add(fn)
}

func (s *wishlistService) Wait() {
	s.pending.Wait()
}

func (s *wishlistService) emit() {
	s.subs.notify(s.Snapshot())
}

func (s *wishlistService) locked(fn func() error) error {
	s.opMu.Lock()
	err := fn()
	s.opMu.Unlock()
	s.emit()
	return err
}

func (s *wishlistService) OnIdentity(ctx context.Context, id auth.Identity) {
	s.opMu.Lock()
	prev := s.identity
	s.identity = id
	tr := auth.Detect(prev, id)

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

func (s *wishlistService) Load(ctx context.Context) error {
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

func (s *wishlistService) load(ctx context.Context, id auth.Identity, login bool) error {
	if id.Authenticated {
		return s.loadAuthenticated(ctx, id, login)
	}
	s.loadGuest(ctx)
	return nil
}

func (s *wishlistService) loadGuest(ctx context.Context) {
	s.state.markLoading()

	var items []model.GuestWishlistItem
	s.store.Read(ctx, storage.KeyGuestWishlist, storage.ScopeSession, &items)

	var shared model.StoredWishlist
	if s.store.Read(ctx, storage.KeySharedWishlist, storage.ScopePersistent, &shared) && shared.Source == model.SourceLocal {
		sharedItems := shared.Wishlist.GuestItems()
		if model.WishlistFingerprint(sharedItems) != model.WishlistFingerprint(items) {
			items = model.MergeGuestWishlistItems(items, sharedItems)
			if err := s.store.Write(ctx, storage.KeyGuestWishlist, storage.ScopeSession, items); err != nil {
				s.log.Warn("Failed to persist merged guest wishlist", map[string]interface{}{
					"error": err.Error(),
				})
			}
		}
	}

	s.state.set(model.LocalWishlistFromItems(items))
}

func (s *wishlistService) loadAuthenticated(ctx context.Context, id auth.Identity, login bool) error {
	s.state.markLoading()

	server, err := s.api.FetchWishlist(ctx)
	if err != nil {
		fallback := s.authFallback(ctx, id, true)
		s.state.finish(fallback, err)
		s.log.Warn("Wishlist fetch failed, showing last known wishlist", map[string]interface{}{
			"user_id": id.UserID,
			"lines":   len(fallback.Lines),
			"error":   err.Error(),
		})
		return err
	}

	guest := s.guestOrigin(ctx, id)
	merged := false
	if len(guest) > 0 {
		result, mergeErr := s.mergeIntoServer(ctx, server, guest)
		if mergeErr != nil {
			canonical := server
			if server.IsEmpty() {
				canonical = model.LocalWishlistFromItems(guest)
			}
			err := fmt.Errorf("%w: %v", ErrMergeFailed, mergeErr)
			s.state.finish(canonical, err)
			s.log.Error("Failed to merge guest wishlist", mergeErr, map[string]interface{}{
				"user_id":     id.UserID,
				"guest_lines": len(guest),
			})
			return err
		}

		if result.IsEmpty() {
			local := model.LocalWishlistFromItems(guest)
			s.state.set(local)
			s.writeBackup(ctx, id, local)
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

	s.log.Info("Wishlist loaded", map[string]interface{}{
		"user_id": id.UserID,
		"lines":   len(server.Lines),
		"merged":  merged,
	})
	return nil
}

func (s *wishlistService) guestOrigin(ctx context.Context, id auth.Identity) []model.GuestWishlistItem {
	var items []model.GuestWishlistItem
	s.store.Read(ctx, storage.KeyGuestWishlist, storage.ScopeSession, &items)

	var backup model.StoredWishlist
	if s.store.Read(ctx, storage.WishlistBackupKey(id.UserID), storage.ScopePersistent, &backup) && backup.Source == model.SourceLocal {
		items = model.MergeGuestWishlistItems(items, backup.Wishlist.GuestItems())
	}

	var shared model.StoredWishlist
	if s.store.Read(ctx, storage.KeySharedWishlist, storage.ScopePersistent, &shared) && shared.Source == model.SourceLocal {
		items = model.MergeGuestWishlistItems(items, shared.Wishlist.GuestItems())
	}

	out := items[:0]
	for _, item := range items {
		if item.ProductID != 0 {
			out = append(out, item)
		}
	}
	return out
}

func (s *wishlistService) mergeIntoServer(ctx context.Context, server model.Wishlist, guest []model.GuestWishlistItem) (model.Wishlist, error) {
	for _, item := range guest {
		if server.Has(item.Key()) {
			continue
		}
		if err := s.api.AddWishlistLine(ctx, item.ProductID, item.Key().Variant(), item.Note); err != nil {
			return server, err
		}
	}
	return s.api.FetchWishlist(ctx)
}

func (s *wishlistService) authFallback(ctx context.Context, id auth.Identity, includeGuest bool) model.Wishlist {
	var backup model.StoredWishlist
	if s.store.Read(ctx, storage.WishlistBackupKey(id.UserID), storage.ScopePersistent, &backup) {
		return backup.Wishlist.Clone()
	}

	var shared model.StoredWishlist
	if s.store.Read(ctx, storage.KeySharedWishlist, storage.ScopePersistent, &shared) &&
		shared.Source == model.SourceRemote && shared.OwnerID == id.UserID {
		return shared.Wishlist.Clone()
	}

	if includeGuest {
		var items []model.GuestWishlistItem
		if s.store.Read(ctx, storage.KeyGuestWishlist, storage.ScopeSession, &items) && len(items) > 0 {
			return model.LocalWishlistFromItems(items)
		}
	}
	return model.EmptyWishlist(model.SourceRemote)
}

func (s *wishlistService) logout(ctx context.Context, prev auth.Identity) {
	current := s.state.current()

	if prev.UserID != "" {
		if err := s.store.Remove(ctx, storage.WishlistBackupKey(prev.UserID), storage.ScopePersistent); err != nil {
			s.log.Warn("Failed to remove wishlist backup", map[string]interface{}{
				"user_id": prev.UserID,
				"error":   err.Error(),
			})
		}
	}

	var canonical model.Wishlist
	if !current.IsEmpty() {
		canonical = model.LocalWishlistFromItems(current.GuestItems())
		s.writeGuest(ctx, canonical)
	} else {
		var items []model.GuestWishlistItem
		s.store.Read(ctx, storage.KeyGuestWishlist, storage.ScopeSession, &items)
		canonical = model.LocalWishlistFromItems(items)
	}

	s.state.set(canonical)
	s.publishShared(ctx, auth.Guest(), canonical, "logout")
}

func (s *wishlistService) switchAccount(ctx context.Context, id auth.Identity) {
	s.state.reset(model.EmptyWishlist(model.SourceRemote))
	s.state.markLoading()

	w, err := s.api.FetchWishlist(ctx)
	if err != nil {
		s.state.finish(s.authFallback(ctx, id, false), err)
		return
	}
	s.state.set(w)
	s.writeBackup(ctx, id, w)
	s.publishShared(ctx, id, w, "switch")
}

func (s *wishlistService) Refresh(ctx context.Context) error {
	_, err, _ := s.refreshes.Do("refresh", func() (interface{}, error) {
		s.opMu.Lock()
		defer s.opMu.Unlock()
		return nil, s.refresh(ctx)
	})
	s.emit()
	return err
}

func (s *wishlistService) refresh(ctx context.Context) error {
	id := s.identity
	if !id.Known {
		return ErrIdentityUnknown
	}
	if !id.Authenticated {
		s.loadGuest(ctx)
		return nil
	}

	w, err := s.api.FetchWishlist(ctx)
	if err != nil {
		s.state.fail(err)
		return err
	}

	current := s.state.current()
	if w.IsEmpty() && current.Source == model.SourceLocal && !current.IsEmpty() {
		s.state.set(current)
		return nil
	}

	s.state.set(w)
	s.writeBackup(ctx, id, w)
	return nil
}

func (s *wishlistService) HandleSignal(ctx context.Context, sig model.SyncSignal) {
	if sig.Kind != model.KindWishlist {
		return
	}
	if !s.watermark.Advance(sig.Timestamp) {
		return
	}
	if err := s.pace(ctx); err != nil {
		return
	}
	if err := s.Refresh(ctx); err != nil {
		s.log.Warn("Wishlist refresh after signal failed", map[string]interface{}{
			"origin": sig.Origin,
			"error":  err.Error(),
		})
	}
}

func (s *wishlistService) AddItem(ctx context.Context, in AddWishlistInput) error {
	if in.ProductID == 0 {
		return ErrInvalidProduct
	}
	return s.locked(func() error {
		id := s.identity
		if !id.Known {
			return ErrIdentityUnknown
		}
		if s.state.current().Has(in.key()) {
			return nil
		}
		if id.Authenticated {
			return s.remoteMutation(ctx, id, "add", func() error {
				return s.api.AddWishlistLine(ctx, in.ProductID, in.VariantID, in.Note)
			})
		}
		return s.localMutation(ctx, id, "add", func(items []model.GuestWishlistItem) []model.GuestWishlistItem {
			return model.MergeGuestWishlistItems(items, []model.GuestWishlistItem{s.guestItem(in)})
		})
	})
}

func (s *wishlistService) RemoveItem(ctx context.Context, lineID string) error {
	return s.locked(func() error {
		id := s.identity
		if !id.Known {
			return ErrIdentityUnknown
		}
		line, ok := s.findLine(lineID)
		if !ok {
			return ErrWishlistItemNotFound
		}
		return s.removeLine(ctx, id, line)
	})
}

func (s *wishlistService) removeLine(ctx context.Context, id auth.Identity, line model.WishlistLine) error {
	if id.Authenticated && !model.IsLocalLineID(line.ID) {
		return s.remoteMutation(ctx, id, "remove", func() error {
			return s.api.RemoveWishlistLine(ctx, line.ID)
		})
	}
	return s.localMutation(ctx, id, "remove", func(items []model.GuestWishlistItem) []model.GuestWishlistItem {
		out, _ := model.RemoveGuestWishlistItem(items, line.Key())
		return out
	})
}

// MoveToCart puts a saved line into the cart and drops it from the wishlist.
func (s *wishlistService) MoveToCart(ctx context.Context, lineID string, quantity int) error {
	if quantity < 1 {
		quantity = 1
	}
	return s.locked(func() error {
		id := s.identity
		if !id.Known {
			return ErrIdentityUnknown
		}
		line, ok := s.findLine(lineID)
		if !ok {
			return ErrWishlistItemNotFound
		}

		s.log.Info("Moving wishlist line to cart", map[string]interface{}{
			"line_id":    line.ID,
			"product_id": line.ProductID,
			"quantity":   quantity,
		})

		if id.Authenticated && !model.IsLocalLineID(line.ID) {
			err := s.remoteMutation(ctx, id, "move", func() error {
				return s.api.MoveToCart(ctx, line.ID, quantity)
			})
			if err != nil {
				return err
			}
			if s.cart != nil {
				if err := s.cart.Refresh(ctx); err != nil {
					s.log.Warn("Cart refresh after move failed", map[string]interface{}{
						"error": err.Error(),
					})
				}
			}
			return nil
		}

		if s.cart == nil {
			return fmt.Errorf("move to cart: no cart engine")
		}
		price := line.CurrentPrice
		if price == 0 {
			price = line.ReferencePrice
		}
		err := s.cart.AddItem(ctx, AddItemInput{
			ProductID:  line.ProductID,
			VariantID:  line.VariantID,
			Quantity:   quantity,
			Name:       line.Name,
			Price:      price,
			Image:      line.Image,
			VariantSKU: line.VariantSKU,
		})
		if err != nil {
			return err
		}
		return s.removeLine(ctx, id, line)
	})
}

// IsInWishlist answers from the canonical wishlist. Authenticated answers
// are confirmed with the server, which wins on disagreement.
func (s *wishlistService) IsInWishlist(ctx context.Context, productID uint, variantID *uint) (bool, error) {
	if productID == 0 {
		return false, ErrInvalidProduct
	}
	key := model.KeyOf(productID, variantID)

	s.opMu.Lock()
	id := s.identity
	local := s.state.current().Has(key)
	s.opMu.Unlock()

	if !id.Authenticated {
		return local, nil
	}

	res, err := s.api.CheckWishlist(ctx, productID, variantID)
	if err != nil {
		s.log.Warn("Wishlist check failed, answering from memory", map[string]interface{}{
			"product_id": productID,
			"error":      err.Error(),
		})
		return local, nil
	}

	s.opMu.Lock()
	latest := s.state.current().Has(key)
	s.opMu.Unlock()
	if res.InWishlist != latest {
		s.log.Info("Wishlist drift detected, refreshing", map[string]interface{}{
			"product_id": productID,
			"local":      latest,
			"server":     res.InWishlist,
		})
		_ = s.Refresh(ctx)
	}
	return res.InWishlist, nil
}

func (s *wishlistService) Toggle(ctx context.Context, in AddWishlistInput) (bool, error) {
	if in.ProductID == 0 {
		return false, ErrInvalidProduct
	}
	key := in.key()

	s.opMu.Lock()
	id := s.identity
	if !id.Known {
		s.opMu.Unlock()
		return false, ErrIdentityUnknown
	}
	current := s.state.current()
	adding := !current.Has(key)

	if !id.Authenticated {
		var err error
		if adding {
			err = s.localMutation(ctx, id, "add", func(items []model.GuestWishlistItem) []model.GuestWishlistItem {
				return model.MergeGuestWishlistItems(items, []model.GuestWishlistItem{s.guestItem(in)})
			})
		} else {
			err = s.localMutation(ctx, id, "remove", func(items []model.GuestWishlistItem) []model.GuestWishlistItem {
				out, _ := model.RemoveGuestWishlistItem(items, key)
				return out
			})
		}
		s.opMu.Unlock()
		s.emit()
		return adding, err
	}

	var lineID string
	if adding {
		s.state.set(current.With(s.guestItem(in).Line()))
	} else {
		i, _ := current.Find(key)
		lineID = current.Lines[i].ID
		s.state.set(current.Without(key))
	}
	s.opMu.Unlock()
	s.emit()

	s.pending.Add(1)
	go s.confirmToggle(context.WithoutCancel(ctx), id, in, adding, lineID)
	return adding, nil
}

// confirmToggle issues the real call behind an optimistic toggle and checks
// the result against the latest canonical wishlist, refreshing on mismatch.
// opMu is only held while reading or applying state so later toggles stay
// immediate while this one is in flight.
func (s *wishlistService) confirmToggle(ctx context.Context, id auth.Identity, in AddWishlistInput, adding bool, lineID string) {
	defer s.pending.Done()
	key := in.key()

	if !s.sameUser(id) {
		return
	}

	var callErr error
	if adding {
		callErr = s.api.AddWishlistLine(ctx, in.ProductID, in.VariantID, in.Note)
	} else {
		if model.IsLocalLineID(lineID) {
			if res, err := s.api.CheckWishlist(ctx, in.ProductID, in.VariantID); err == nil && res.InWishlist {
				lineID = res.LineID
			}
		}
		if !model.IsLocalLineID(lineID) {
			callErr = s.api.RemoveWishlistLine(ctx, lineID)
		}
	}
	res, checkErr := s.api.CheckWishlist(ctx, in.ProductID, in.VariantID)

	s.opMu.Lock()
	if s.identity.UserID != id.UserID || !s.identity.Authenticated {
		s.opMu.Unlock()
		return
	}
	latest := s.state.current()
	expected := latest.Has(key)
	if callErr == nil && checkErr == nil && res.InWishlist == expected {
		if expected && res.LineID != "" {
			if i, ok := latest.Find(key); ok {
				latest = latest.Clone()
				latest.Lines[i].ID = res.LineID
			}
		}
		s.state.set(latest)
		s.writeBackup(ctx, id, latest)
		s.publishShared(ctx, id, latest, "toggle")
		s.opMu.Unlock()
		s.emit()
		return
	}
	s.opMu.Unlock()

	s.log.Warn("Wishlist toggle not confirmed, refreshing", map[string]interface{}{
		"product_id": in.ProductID,
		"adding":     adding,
		"expected":   expected,
		"server":     res.InWishlist,
		"call_error": errString(callErr),
	})
	w, err := s.api.FetchWishlist(ctx)

	s.opMu.Lock()
	if s.identity.UserID != id.UserID || !s.identity.Authenticated {
		s.opMu.Unlock()
		return
	}
	if err != nil {
		reverted := s.state.current()
		if callErr != nil {
			reverted = s.revert(reverted, in, adding)
		}
		s.state.finish(reverted, err)
	} else {
		s.state.set(w)
		s.writeBackup(ctx, id, w)
	}
	s.publishShared(ctx, id, s.state.current(), "toggle")
	s.opMu.Unlock()
	s.emit()
}

// sameUser reports whether id is still the authenticated identity.
func (s *wishlistService) sameUser(id auth.Identity) bool {
	s.opMu.Lock()
	defer s.opMu.Unlock()
	return s.identity.Authenticated && s.identity.UserID == id.UserID
}

// revert undoes an optimistic toggle on w.
func (s *wishlistService) revert(w model.Wishlist, in AddWishlistInput, adding bool) model.Wishlist {
	if adding {
		return w.Without(in.key())
	}
	if w.Has(in.key()) {
		return w
	}
	return w.With(s.guestItem(in).Line())
}

func (s *wishlistService) findLine(lineID string) (model.WishlistLine, bool) {
	current := s.state.current()
	i, ok := current.FindByID(lineID)
	if !ok {
		s.log.Warn("Wishlist line not found", map[string]interface{}{
			"line_id": lineID,
		})
		return model.WishlistLine{}, false
	}
	return current.Lines[i], true
}

func (s *wishlistService) guestItem(in AddWishlistInput) model.GuestWishlistItem {
	return model.GuestWishlistItem{
		ProductID:  in.ProductID,
		Name:       in.Name,
		Price:      in.Price,
		Image:      in.Image,
		VariantID:  in.VariantID,
		VariantSKU: in.VariantSKU,
		Note:       in.Note,
		AddedAt:    s.opts.Now(),
	}
}

func (s *wishlistService) remoteMutation(ctx context.Context, id auth.Identity, action string, call func() error) error {
	if err := call(); err != nil {
		s.state.fail(err)
		s.log.Error("Wishlist mutation failed", err, map[string]interface{}{
			"user_id": id.UserID,
			"action":  action,
		})
		return err
	}

	if s.state.current().Source == model.SourceLocal {
		return s.loadAuthenticated(ctx, id, true)
	}

	w, err := s.api.FetchWishlist(ctx)
	if err != nil {
		s.state.fail(err)
		return err
	}
	s.state.set(w)
	s.writeBackup(ctx, id, w)
	s.publishShared(ctx, id, w, action)
	return nil
}

func (s *wishlistService) localMutation(ctx context.Context, id auth.Identity, action string, change func([]model.GuestWishlistItem) []model.GuestWishlistItem) error {
	w := model.LocalWishlistFromItems(change(s.state.current().GuestItems()))
	s.writeGuest(ctx, w)
	s.state.set(w)
	if id.Authenticated {
		s.writeBackup(ctx, id, w)
	}
	s.publishShared(ctx, id, w, action)
	return nil
}

func (s *wishlistService) writeGuest(ctx context.Context, w model.Wishlist) {
	if err := s.store.Write(ctx, storage.KeyGuestWishlist, storage.ScopeSession, w.GuestItems()); err != nil {
		s.log.Warn("Failed to persist guest wishlist", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

func (s *wishlistService) clearGuest(ctx context.Context) {
	if err := s.store.Remove(ctx, storage.KeyGuestWishlist, storage.ScopeSession); err != nil {
		s.log.Warn("Failed to clear guest wishlist", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

func (s *wishlistService) writeBackup(ctx context.Context, id auth.Identity, w model.Wishlist) {
	if !id.Authenticated || id.UserID == "" {
		return
	}
	stored := model.NewStoredWishlist(w, id.UserID, s.opts.Now())
	if err := s.store.Write(ctx, storage.WishlistBackupKey(id.UserID), storage.ScopePersistent, stored); err != nil {
		s.log.Warn("Failed to write wishlist backup", map[string]interface{}{
			"user_id": id.UserID,
			"error":   err.Error(),
		})
	}
}

func (s *wishlistService) publishShared(ctx context.Context, id auth.Identity, w model.Wishlist, action string) {
	stored := model.NewStoredWishlist(w, id.UserID, s.opts.Now())
	if err := s.store.Write(ctx, storage.KeySharedWishlist, storage.ScopePersistent, stored); err != nil {
		s.log.Warn("Failed to write shared wishlist", map[string]interface{}{
			"error": err.Error(),
		})
	}
	s.publish(ctx, model.KindWishlist, action)
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
