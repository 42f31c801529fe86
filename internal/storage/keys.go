package storage

import "github.com/ikkim/storefront-sync/internal/app/model"

// Storage layout shared with the storefront web client.
const (
	KeyGuestCart      = "cart"
	KeyGuestWishlist  = "favorites"
	KeySharedCart     = "shared_cart"
	KeySharedWishlist = "shared_wishlist"
	KeyCartSync       = "cart_sync"
	KeyWishlistSync   = "wishlist_sync"
	KeyGuestCartToken = "cart_guest_token"
)

func CartBackupKey(userID string) string {
	return "cart_user_" + userID
}

func WishlistBackupKey(userID string) string {
	return "favorites_user_" + userID
}

// SyncKey returns the signal record key for kind
func SyncKey(kind model.SyncKind) string {
	if kind == model.KindWishlist {
		return KeyWishlistSync
	}
	return KeyCartSync
}
