package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ikkim/storefront-sync/internal/app/model"
	"github.com/ikkim/storefront-sync/pkg/storefront"
	"github.com/ikkim/storefront-sync/pkg/storefront/storefronttest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupUserWishlistTest(t *testing.T, user string, items ...storefronttest.SavedItem) (*serviceEnv, *testTab) {
	t.Helper()
	env := setupServiceTest(t)
	if len(items) > 0 {
		env.api.SetWishlist(env.token(user), items...)
	}
	tab := env.openTab("tab-1")
	require.NoError(t, tab.Start(context.Background(), env.token(user)))
	return env, tab
}

// recorder keeps every wishlist snapshot published by an engine
type recorder struct {
	mu    sync.Mutex
	snaps []WishlistSnapshot
}

func (r *recorder) record(s WishlistSnapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snaps = append(r.snaps, s)
}

func (r *recorder) all() []WishlistSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]WishlistSnapshot(nil), r.snaps...)
}

func TestWishlistService_GuestToggle(t *testing.T) {
	env, tab := setupGuestCartTest(t)
	ctx := context.Background()
	in := AddWishlistInput{ProductID: 4, Name: "Lamp", Price: 30}

	added, err := tab.Wishlist().Toggle(ctx, in)
	require.NoError(t, err)
	assert.True(t, added)
	assert.True(t, tab.Wishlist().Snapshot().Wishlist.Has(model.LineKey{ProductID: 4}))

	items, ok := tab.guestWishlist(t)
	require.True(t, ok)
	require.Len(t, items, 1)
	assert.Equal(t, 30.0, items[0].Price)

	added, err = tab.Wishlist().Toggle(ctx, in)
	require.NoError(t, err)
	assert.False(t, added)
	assert.True(t, tab.Wishlist().Snapshot().Wishlist.IsEmpty())
	assert.Empty(t, env.api.Calls())
}

func TestWishlistService_GuestAddIsIdempotent(t *testing.T) {
	_, tab := setupGuestCartTest(t)
	ctx := context.Background()

	require.NoError(t, tab.Wishlist().AddItem(ctx, AddWishlistInput{ProductID: 4}))
	require.NoError(t, tab.Wishlist().AddItem(ctx, AddWishlistInput{ProductID: 4}))
	require.NoError(t, tab.Wishlist().AddItem(ctx, AddWishlistInput{ProductID: 4, VariantID: uintPtr(2)}))

	assert.Equal(t, 2, tab.Wishlist().Snapshot().Wishlist.ItemCount)
}

func TestWishlistService_ToggleConfirmed(t *testing.T) {
	env, tab := setupUserWishlistTest(t, "alice")
	ctx := context.Background()

	added, err := tab.Wishlist().Toggle(ctx, AddWishlistInput{ProductID: 4})
	require.NoError(t, err)
	assert.True(t, added)
	tab.Wishlist().Wait()

	saved := env.api.WishlistOf(env.token("alice"))
	require.Len(t, saved, 1)

	snap := tab.Wishlist().Snapshot()
	assert.Equal(t, StateReady, snap.State)
	require.Len(t, snap.Wishlist.Lines, 1)
	assert.False(t, model.IsLocalLineID(snap.Wishlist.Lines[0].ID), "provisional id should be replaced")

	added, err = tab.Wishlist().Toggle(ctx, AddWishlistInput{ProductID: 4})
	require.NoError(t, err)
	assert.False(t, added)
	tab.Wishlist().Wait()

	assert.Empty(t, env.api.WishlistOf(env.token("alice")))
	assert.True(t, tab.Wishlist().Snapshot().Wishlist.IsEmpty())
}

func TestWishlistService_ToggleCorrectedWhenServerDisagrees(t *testing.T) {
	env, tab := setupUserWishlistTest(t, "alice")
	ctx := context.Background()
	env.api.DropWishlistAdds(true)

	rec := &recorder{}
	unsubscribe := tab.Wishlist().Subscribe(rec.record)
	defer unsubscribe()

	added, err := tab.Wishlist().Toggle(ctx, AddWishlistInput{ProductID: 4})
	require.NoError(t, err)
	assert.True(t, added)
	tab.Wishlist().Wait()

	snaps := rec.all()
	require.GreaterOrEqual(t, len(snaps), 2)
	assert.True(t, snaps[0].Wishlist.Has(model.LineKey{ProductID: 4}), "optimistic state shows the product")

	final := tab.Wishlist().Snapshot()
	assert.False(t, final.Wishlist.Has(model.LineKey{ProductID: 4}), "refresh removes what the server does not hold")
	assert.Equal(t, StateReady, final.State)
	assert.GreaterOrEqual(t, env.api.CountCalls("GET /api/wishlist/check/:productId"), 1)
}

func TestWishlistService_LogoutConvertsWishlist(t *testing.T) {
	env, tab := setupUserWishlistTest(t, "alice", storefronttest.SavedItem{ProductID: 4, Price: 20})
	ctx := context.Background()
	serverID := tab.Wishlist().Snapshot().Wishlist.Lines[0].ID

	tab.Logout(ctx)

	w := tab.Wishlist().Snapshot().Wishlist
	require.Len(t, w.Lines, 1)
	assert.Equal(t, "local_4_0", w.Lines[0].ID)
	assert.NotEqual(t, serverID, w.Lines[0].ID)
	assert.Equal(t, model.SourceLocal, w.Source)

	items, ok := tab.guestWishlist(t)
	require.True(t, ok)
	assert.Len(t, items, 1)
	assert.NotContains(t, env.persistent.Keys(), "favorites_user_alice")
}

func TestWishlistService_LoginMergesGuestWishlist(t *testing.T) {
	env, tab := setupGuestCartTest(t)
	ctx := context.Background()
	require.NoError(t, tab.Wishlist().AddItem(ctx, AddWishlistInput{ProductID: 4}))
	require.NoError(t, tab.Wishlist().AddItem(ctx, AddWishlistInput{ProductID: 8, Note: "gift"}))

	_, err := tab.Login(ctx, env.token("alice"))
	require.NoError(t, err)

	saved := env.api.WishlistOf(env.token("alice"))
	require.Len(t, saved, 2)
	assert.Equal(t, "gift", saved[1].Note)

	_, ok := tab.guestWishlist(t)
	assert.False(t, ok)
	assert.Equal(t, model.SourceRemote, tab.Wishlist().Snapshot().Wishlist.Source)
}

func TestWishlistService_MergeFailureKeepsGuestData(t *testing.T) {
	env, tab := setupGuestCartTest(t)
	ctx := context.Background()
	require.NoError(t, tab.Wishlist().AddItem(ctx, AddWishlistInput{ProductID: 4}))

	env.api.FailRoute("POST /api/wishlist/items", 1)
	_, err := tab.Login(ctx, env.token("alice"))
	require.NoError(t, err)

	snap := tab.Wishlist().Snapshot()
	assert.Equal(t, StateError, snap.State)
	assert.ErrorIs(t, snap.Err, ErrMergeFailed)
	assert.True(t, snap.Wishlist.Has(model.LineKey{ProductID: 4}))

	_, ok := tab.guestWishlist(t)
	assert.True(t, ok)
}

func TestWishlistService_GuestMoveToCart(t *testing.T) {
	_, tab := setupGuestCartTest(t)
	ctx := context.Background()
	require.NoError(t, tab.Wishlist().AddItem(ctx, AddWishlistInput{ProductID: 4, Name: "Lamp", Price: 30}))

	require.NoError(t, tab.Wishlist().MoveToCart(ctx, "local_4_0", 2))

	assert.True(t, tab.Wishlist().Snapshot().Wishlist.IsEmpty())
	cart := tab.Cart().Snapshot().Cart
	require.Len(t, cart.Lines, 1)
	assert.Equal(t, 2, cart.Lines[0].Quantity)
	assert.Equal(t, 60.0, cart.Subtotal)
}

func TestWishlistService_MoveToCartAuthenticated(t *testing.T) {
	env, tab := setupUserWishlistTest(t, "alice", storefronttest.SavedItem{ProductID: 4, Price: 20})
	ctx := context.Background()
	lineID := tab.Wishlist().Snapshot().Wishlist.Lines[0].ID

	require.NoError(t, tab.Wishlist().MoveToCart(ctx, lineID, 3))

	assert.Empty(t, env.api.WishlistOf(env.token("alice")))
	assert.Equal(t, map[uint]int{4: 3}, quantities(env.api.CartOf(env.token("alice"))))
	assert.True(t, tab.Wishlist().Snapshot().Wishlist.IsEmpty())
	assert.Equal(t, 3, tab.Cart().Snapshot().Cart.ItemCount)
}

func TestWishlistService_MoveUnknownLine(t *testing.T) {
	_, tab := setupGuestCartTest(t)

	err := tab.Wishlist().MoveToCart(context.Background(), "local_9_0", 1)
	assert.ErrorIs(t, err, ErrWishlistItemNotFound)
}

func TestWishlistService_IsInWishlistRefreshesOnDrift(t *testing.T) {
	env, tab := setupUserWishlistTest(t, "alice")
	ctx := context.Background()
	env.api.SetWishlist(env.token("alice"), storefronttest.SavedItem{ProductID: 4})

	in, err := tab.Wishlist().IsInWishlist(ctx, 4, nil)
	require.NoError(t, err)
	assert.True(t, in)
	assert.True(t, tab.Wishlist().Snapshot().Wishlist.Has(model.LineKey{ProductID: 4}))
}

func TestWishlistService_IsInWishlistGuest(t *testing.T) {
	env, tab := setupGuestCartTest(t)
	ctx := context.Background()
	require.NoError(t, tab.Wishlist().AddItem(ctx, AddWishlistInput{ProductID: 4, VariantID: uintPtr(1)}))

	in, err := tab.Wishlist().IsInWishlist(ctx, 4, uintPtr(1))
	require.NoError(t, err)
	assert.True(t, in)

	in, err = tab.Wishlist().IsInWishlist(ctx, 4, nil)
	require.NoError(t, err)
	assert.False(t, in)
	assert.Empty(t, env.api.Calls())
}

func TestWishlistService_AuthenticatedRemove(t *testing.T) {
	env, tab := setupUserWishlistTest(t, "alice",
		storefronttest.SavedItem{ProductID: 4},
		storefronttest.SavedItem{ProductID: 6},
	)
	ctx := context.Background()
	w := tab.Wishlist().Snapshot().Wishlist
	i, ok := w.Find(model.LineKey{ProductID: 4})
	require.True(t, ok)

	require.NoError(t, tab.Wishlist().RemoveItem(ctx, w.Lines[i].ID))

	saved := env.api.WishlistOf(env.token("alice"))
	require.Len(t, saved, 1)
	assert.Equal(t, uint(6), saved[0].ProductID)
	assert.Equal(t, 1, tab.Wishlist().Snapshot().Wishlist.ItemCount)
	assert.ErrorIs(t, tab.Wishlist().RemoveItem(ctx, w.Lines[i].ID), ErrWishlistItemNotFound)
}

func TestWishlistService_OtherTabSeesChange(t *testing.T) {
	env := setupServiceTest(t)
	ctx := context.Background()
	a := env.openTab("tab-a")
	b := env.openTab("tab-b")
	require.NoError(t, a.Start(ctx, env.token("alice")))
	require.NoError(t, b.Start(ctx, env.token("alice")))

	require.NoError(t, a.Wishlist().AddItem(ctx, AddWishlistInput{ProductID: 4}))
	env.broker.Drain()

	assert.True(t, b.Wishlist().Snapshot().Wishlist.Has(model.LineKey{ProductID: 4}))
}

// gatedWishlistAPI holds AddWishlistLine until release is closed and runs
// beforeCheck once ahead of the first CheckWishlist.
type gatedWishlistAPI struct {
	WishlistAPI
	entered     chan struct{}
	release     chan struct{}
	beforeCheck func()
	checkOnce   sync.Once
}

func newGatedWishlistAPI(api WishlistAPI) *gatedWishlistAPI {
	return &gatedWishlistAPI{
		WishlistAPI: api,
		entered:     make(chan struct{}, 1),
		release:     make(chan struct{}),
	}
}

func (g *gatedWishlistAPI) AddWishlistLine(ctx context.Context, productID uint, variantID *uint, note string) error {
	select {
	case g.entered <- struct{}{}:
	default:
	}
	<-g.release
	return g.WishlistAPI.AddWishlistLine(ctx, productID, variantID, note)
}

func (g *gatedWishlistAPI) CheckWishlist(ctx context.Context, productID uint, variantID *uint) (storefront.CheckResult, error) {
	if g.beforeCheck != nil {
		g.checkOnce.Do(g.beforeCheck)
	}
	return g.WishlistAPI.CheckWishlist(ctx, productID, variantID)
}

func TestWishlistService_ToggleStaysImmediateWhileConfirming(t *testing.T) {
	env := setupServiceTest(t)
	var gate *gatedWishlistAPI
	tab := env.openTabWith("tab-1", func(api WishlistAPI) WishlistAPI {
		gate = newGatedWishlistAPI(api)
		return gate
	})
	release := sync.OnceFunc(func() { close(gate.release) })
	t.Cleanup(release)

	ctx := context.Background()
	require.NoError(t, tab.Start(ctx, env.token("alice")))

	_, err := tab.Wishlist().Toggle(ctx, AddWishlistInput{ProductID: 1})
	require.NoError(t, err)
	<-gate.entered

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = tab.Wishlist().Toggle(ctx, AddWishlistInput{ProductID: 2})
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("second toggle waited on the first confirmation")
	}
	current := tab.Wishlist().Snapshot().Wishlist
	assert.True(t, current.Has(model.LineKey{ProductID: 1}))
	assert.True(t, current.Has(model.LineKey{ProductID: 2}))

	release()
	tab.Wishlist().Wait()

	saved := env.api.WishlistOf(env.token("alice"))
	products := make([]uint, 0, len(saved))
	for _, item := range saved {
		products = append(products, item.ProductID)
	}
	assert.ElementsMatch(t, []uint{1, 2}, products)
	assert.Equal(t, 2, tab.Wishlist().Snapshot().Wishlist.ItemCount)
}

func TestWishlistService_IsInWishlistComparesLatestState(t *testing.T) {
	env := setupServiceTest(t)
	var gate *gatedWishlistAPI
	tab := env.openTabWith("tab-1", func(api WishlistAPI) WishlistAPI {
		gate = newGatedWishlistAPI(api)
		return gate
	})
	ctx := context.Background()
	require.NoError(t, tab.Start(ctx, env.token("alice")))

	env.api.SetWishlist(env.token("alice"), storefronttest.SavedItem{ProductID: 4})
	gate.beforeCheck = func() {
		require.NoError(t, tab.Wishlist().Refresh(ctx))
	}
	reads := env.api.CountCalls("GET /api/wishlist")

	in, err := tab.Wishlist().IsInWishlist(ctx, 4, nil)
	require.NoError(t, err)
	assert.True(t, in)
	assert.Equal(t, reads+1, env.api.CountCalls("GET /api/wishlist"))
}
