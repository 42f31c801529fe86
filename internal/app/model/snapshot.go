package model

import (
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"

	"golang.org/x/crypto/blake2b"
)

// StoredCart is the snapshot kept under shared_cart and cart_user_<id>.
type StoredCart struct {
	Source      Source    `json:"source"`
	OwnerID     string    `json:"owner_id,omitempty"`
	Fingerprint string    `json:"fingerprint"`
	Cart        Cart      `json:"cart"`
	SavedAt     time.Time `json:"saved_at"`
}

// NewStoredCart captures cart with its fingerprint
func NewStoredCart(cart Cart, ownerID string, now time.Time) StoredCart {
	return StoredCart{
		Source:      cart.Source,
		OwnerID:     ownerID,
		Fingerprint: CartFingerprint(cart.GuestItems()),
		Cart:        cart.Clone(),
		SavedAt:     now.UTC(),
	}
}

// StoredWishlist is the snapshot kept under shared_wishlist and favorites_user_<id>.
type StoredWishlist struct {
	Source      Source    `json:"source"`
	OwnerID     string    `json:"owner_id,omitempty"`
	Fingerprint string    `json:"fingerprint"`
	Wishlist    Wishlist  `json:"wishlist"`
	SavedAt     time.Time `json:"saved_at"`
}

func NewStoredWishlist(w Wishlist, ownerID string, now time.Time) StoredWishlist {
	return StoredWishlist{
		Source:      w.Source,
		OwnerID:     ownerID,
		Fingerprint: WishlistFingerprint(w.GuestItems()),
		Wishlist:    w.Clone(),
		SavedAt:     now.UTC(),
	}
}

// CartFingerprint hashes the sorted productId_variantId_quantity triples.
// Two carts with the same lines in any order share a fingerprint.
func CartFingerprint(items []GuestCartItem) string {
	parts := make([]string, 0, len(items))
	for _, item := range items {
		parts = append(parts, fmt.Sprintf("%s_%d", item.Key(), item.Quantity))
	}
	return digest(parts)
}

// WishlistFingerprint hashes the sorted productId_variantId pairs.
func WishlistFingerprint(items []GuestWishlistItem) string {
	parts := make([]string, 0, len(items))
	for _, item := range items {
		parts = append(parts, item.Key().String())
	}
	return digest(parts)
}

func digest(parts []string) string {
	sort.Strings(parts)
	sum := blake2b.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])
}

type SyncKind string

const (
	KindCart     SyncKind = "cart"
	KindWishlist SyncKind = "wishlist"
)

// SyncSignal is the cross-tab change record kept under cart_sync and wishlist_sync.
// Timestamp is in milliseconds.
type SyncSignal struct {
	Kind      SyncKind `json:"kind"`
	Action    string   `json:"action"`
	Timestamp int64    `json:"timestamp"`
	Origin    string   `json:"origin"`
}
