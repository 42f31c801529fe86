package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWishlistLine_PriceTracking(t *testing.T) {
	line := WishlistLine{ReferencePrice: 20, CurrentPrice: 17.5}
	assert.True(t, line.PriceChanged())
	assert.Equal(t, -2.5, line.PriceDelta())

	line.CurrentPrice = 20
	assert.False(t, line.PriceChanged())
}

func TestWishlist_WithWithout(t *testing.T) {
	w := EmptyWishlist(SourceRemote)
	w = w.With(WishlistLine{ID: "1", ProductID: 5})
	w = w.With(WishlistLine{ID: "2", ProductID: 6, VariantID: uintPtr(1)})
	assert.Equal(t, 2, w.ItemCount)
	assert.True(t, w.Has(LineKey{ProductID: 6, VariantID: 1}))

	w = w.Without(LineKey{ProductID: 5})
	assert.Equal(t, 1, w.ItemCount)
	assert.False(t, w.Has(LineKey{ProductID: 5}))
}

func TestLocalWishlistFromItems_ConvertsRemote(t *testing.T) {
	added := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	remote := Wishlist{Lines: []WishlistLine{
		{ID: "77", ProductID: 9, Name: "Lamp", ReferencePrice: 30, CurrentPrice: 25, AddedAt: added},
	}, Source: SourceRemote}

	local := LocalWishlistFromItems(remote.GuestItems())

	require.Len(t, local.Lines, 1)
	assert.Equal(t, SourceLocal, local.Source)
	assert.Equal(t, "local_9_0", local.Lines[0].ID)
	assert.Equal(t, 25.0, local.Lines[0].ReferencePrice)
	assert.Equal(t, added, local.Lines[0].AddedAt)
}

func TestMergeGuestWishlistItems(t *testing.T) {
	merged := MergeGuestWishlistItems(
		[]GuestWishlistItem{{ProductID: 1, Note: "keep"}},
		[]GuestWishlistItem{{ProductID: 1, Note: "drop"}, {ProductID: 2}},
	)

	require.Len(t, merged, 2)
	assert.Equal(t, "keep", merged[0].Note)

	rest, found := RemoveGuestWishlistItem(merged, LineKey{ProductID: 1})
	assert.True(t, found)
	assert.Len(t, rest, 1)
}

func TestFingerprint_OrderIndependent(t *testing.T) {
	a := CartFingerprint([]GuestCartItem{{ProductID: 1, Quantity: 2}, {ProductID: 2, Quantity: 1}})
	b := CartFingerprint([]GuestCartItem{{ProductID: 2, Quantity: 1}, {ProductID: 1, Quantity: 2}})
	c := CartFingerprint([]GuestCartItem{{ProductID: 2, Quantity: 1}, {ProductID: 1, Quantity: 3}})

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 64)
}

func TestNewStoredCart(t *testing.T) {
	cart := LocalCartFromItems([]GuestCartItem{{ProductID: 3, Price: 2, Quantity: 1}})
	now := time.Now()

	stored := NewStoredCart(cart, "", now)
	cart.Lines[0].Quantity = 99

	assert.Equal(t, SourceLocal, stored.Source)
	assert.Equal(t, 1, stored.Cart.Lines[0].Quantity)
	assert.Equal(t, CartFingerprint(stored.Cart.GuestItems()), stored.Fingerprint)
}
