package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func uintPtr(v uint) *uint { return &v }

func TestLocalLineID_RoundTrip(t *testing.T) {
	tests := []struct {
		name string
		key  LineKey
		want string
	}{
		{"no variant", LineKey{ProductID: 12}, "local_12_0"},
		{"with variant", LineKey{ProductID: 12, VariantID: 7}, "local_12_7"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id := LocalLineID(tt.key)
			assert.Equal(t, tt.want, id)

			key, ok := ParseLocalLineID(id)
			require.True(t, ok)
			assert.Equal(t, tt.key, key)
		})
	}

	_, ok := ParseLocalLineID("42")
	assert.False(t, ok)
	_, ok = ParseLocalLineID("local_x_1")
	assert.False(t, ok)
}

func TestCart_Recalculate(t *testing.T) {
	cart := Cart{Lines: []CartLine{
		{ProductID: 1, Quantity: 2, UnitPrice: 10.5},
		{ProductID: 2, Quantity: 3, UnitPrice: 0.1},
	}}

	cart.Recalculate()

	assert.Equal(t, 21.0, cart.Lines[0].LineTotal)
	assert.Equal(t, 0.3, cart.Lines[1].LineTotal)
	assert.Equal(t, 5, cart.ItemCount)
	assert.Equal(t, 21.3, cart.Subtotal)
	assert.Equal(t, cart.Subtotal, cart.Total)
}

func TestLocalCartFromItems(t *testing.T) {
	cart := LocalCartFromItems([]GuestCartItem{
		{ProductID: 1, Name: "Mug", Price: 8, Quantity: 2},
		{ProductID: 2, Price: 5, Quantity: 0, VariantID: uintPtr(9)},
		{ProductID: 1, Name: "duplicate", Price: 8, Quantity: 5},
		{ProductID: 0, Price: 1, Quantity: 1},
	})

	require.Len(t, cart.Lines, 2)
	assert.Equal(t, SourceLocal, cart.Source)
	assert.Equal(t, "local_1_0", cart.Lines[0].ID)
	assert.Equal(t, 2, cart.Lines[0].Quantity)
	assert.Equal(t, "local_2_9", cart.Lines[1].ID)
	assert.Equal(t, 1, cart.Lines[1].Quantity)
	assert.Equal(t, PlaceholderImage, cart.Lines[1].Image)
	assert.Equal(t, 3, cart.ItemCount)
	assert.Equal(t, 21.0, cart.Total)
}

func TestMergeGuestItems_NeverIncreasesQuantities(t *testing.T) {
	existing := []GuestCartItem{{ProductID: 1, Quantity: 2}}
	incoming := []GuestCartItem{{ProductID: 1, Quantity: 5}, {ProductID: 3, Quantity: 1}}

	once := MergeGuestItems(existing, incoming)
	twice := MergeGuestItems(once, incoming)

	require.Len(t, once, 2)
	assert.Equal(t, 2, once[0].Quantity)
	assert.Equal(t, once, twice)
}

func TestUpsertGuestItem(t *testing.T) {
	items := []GuestCartItem{{ProductID: 1, Quantity: 2}}

	summed := UpsertGuestItem(items, GuestCartItem{ProductID: 1, Quantity: 3}, false)
	assert.Equal(t, 5, summed[0].Quantity)
	assert.Equal(t, 2, items[0].Quantity)

	replaced := UpsertGuestItem(items, GuestCartItem{ProductID: 1, Quantity: 3}, true)
	assert.Equal(t, 3, replaced[0].Quantity)

	added := UpsertGuestItem(items, GuestCartItem{ProductID: 1, VariantID: uintPtr(4), Quantity: 1}, false)
	assert.Len(t, added, 2)
}

func TestCart_GuestItemsDropsServerIDs(t *testing.T) {
	cart := Cart{Lines: []CartLine{{ID: "881", ProductID: 4, VariantID: uintPtr(2), Quantity: 3, UnitPrice: 4.5}}}

	local := LocalCartFromItems(cart.GuestItems())

	require.Len(t, local.Lines, 1)
	assert.Equal(t, "local_4_2", local.Lines[0].ID)
	assert.Equal(t, 3, local.Lines[0].Quantity)
	assert.Equal(t, 13.5, local.Total)
}
