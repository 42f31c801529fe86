package model

import (
	"time"
)

const DefaultWishlistName = "My wishlist"

type WishlistLine struct {
	ID             string    `json:"id"`
	ProductID      uint      `json:"product_id"`
	VariantID      *uint     `json:"variant_id,omitempty"`
	VariantSKU     string    `json:"variant_sku,omitempty"`
	Name           string    `json:"name"`
	Image          string    `json:"image"`
	Note           string    `json:"note"`
	ReferencePrice float64   `json:"reference_price"` // price when the line was saved
	CurrentPrice   float64   `json:"current_price"`
	AddedAt        time.Time `json:"added_at"`
}

func (l WishlistLine) Key() LineKey {
	return KeyOf(l.ProductID, l.VariantID)
}

// PriceChanged reports whether the product price moved since the line was saved
func (l WishlistLine) PriceChanged() bool {
	return RoundMoney(l.CurrentPrice) != RoundMoney(l.ReferencePrice)
}

// PriceDelta is negative when the product became cheaper
func (l WishlistLine) PriceDelta() float64 {
	return RoundMoney(l.CurrentPrice - l.ReferencePrice)
}

type Wishlist struct {
	ID          uint           `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Lines       []WishlistLine `json:"lines"`
	ItemCount   int            `json:"item_count"`
	Source      Source         `json:"source"`
}

// EmptyWishlist returns a wishlist with no lines
func EmptyWishlist(source Source) Wishlist {
	return Wishlist{Name: DefaultWishlistName, Lines: []WishlistLine{}, Source: source}
}

// Recount keeps ItemCount in step with the lines.
func (w *Wishlist) Recount() {
	w.ItemCount = len(w.Lines)
}

func (w Wishlist) IsEmpty() bool {
	return len(w.Lines) == 0
}

func (w Wishlist) Has(key LineKey) bool {
	_, ok := w.Find(key)
	return ok
}

// Find returns the index of the line with the given key
func (w Wishlist) Find(key LineKey) (int, bool) {
	for i, line := range w.Lines {
		if line.Key() == key {
			return i, true
		}
	}
	return -1, false
}

// FindByID returns the index of the line with the given id
func (w Wishlist) FindByID(id string) (int, bool) {
	for i, line := range w.Lines {
		if line.ID == id {
			return i, true
		}
	}
	return -1, false
}

func (w Wishlist) Clone() Wishlist {
	out := w
	out.Lines = make([]WishlistLine, len(w.Lines))
	copy(out.Lines, w.Lines)
	return out
}

// Without returns a copy with the line for key removed.
func (w Wishlist) Without(key LineKey) Wishlist {
	out := w
	out.Lines = make([]WishlistLine, 0, len(w.Lines))
	for _, line := range w.Lines {
		if line.Key() != key {
			out.Lines = append(out.Lines, line)
		}
	}
	out.Recount()
	return out
}

// With returns a copy with line appended.
func (w Wishlist) With(line WishlistLine) Wishlist {
	out := w.Clone()
	out.Lines = append(out.Lines, line)
	out.Recount()
	return out
}

// GuestItems converts the wishlist into guest storage records.
func (w Wishlist) GuestItems() []GuestWishlistItem {
	items := make([]GuestWishlistItem, 0, len(w.Lines))
	for _, line := range w.Lines {
		price := line.CurrentPrice
		if price == 0 {
			price = line.ReferencePrice
		}
		items = append(items, GuestWishlistItem{
			ProductID:  line.ProductID,
			Name:       line.Name,
			Price:      price,
			Image:      line.Image,
			VariantID:  line.VariantID,
			VariantSKU: line.VariantSKU,
			Note:       line.Note,
			AddedAt:    line.AddedAt,
		})
	}
	return items
}

// GuestWishlistItem is the record kept in guest storage under the favorites key.
type GuestWishlistItem struct {
	ProductID  uint      `json:"product_id"`
	Name       string    `json:"name"`
	Price      float64   `json:"price"`
	Image      string    `json:"image,omitempty"`
	VariantID  *uint     `json:"variant_id,omitempty"`
	VariantSKU string    `json:"variant_sku,omitempty"`
	Note       string    `json:"note,omitempty"`
	AddedAt    time.Time `json:"added_at"`
}

func (i GuestWishlistItem) Key() LineKey {
	return KeyOf(i.ProductID, i.VariantID)
}

// Line renders the record as a local wishlist line
func (i GuestWishlistItem) Line() WishlistLine {
	key := i.Key()
	return WishlistLine{
		ID:             LocalLineID(key),
		ProductID:      i.ProductID,
		VariantID:      key.Variant(),
		VariantSKU:     i.VariantSKU,
		Name:           i.Name,
		Image:          i.Image,
		Note:           i.Note,
		ReferencePrice: i.Price,
		CurrentPrice:   i.Price,
		AddedAt:        i.AddedAt,
	}
}

// LocalWishlistFromItems synthesizes a local wishlist from guest records.
func LocalWishlistFromItems(items []GuestWishlistItem) Wishlist {
	w := EmptyWishlist(SourceLocal)
	seen := make(map[LineKey]bool, len(items))
	for _, item := range items {
		if item.ProductID == 0 || seen[item.Key()] {
			continue
		}
		seen[item.Key()] = true
		w.Lines = append(w.Lines, item.Line())
	}
	w.Recount()
	return w
}

// MergeGuestWishlistItems unions incoming into existing by key, keeping existing records.
func MergeGuestWishlistItems(existing, incoming []GuestWishlistItem) []GuestWishlistItem {
	out := make([]GuestWishlistItem, 0, len(existing)+len(incoming))
	seen := make(map[LineKey]bool, len(existing)+len(incoming))
	for _, group := range [][]GuestWishlistItem{existing, incoming} {
		for _, item := range group {
			if seen[item.Key()] {
				continue
			}
			seen[item.Key()] = true
			out = append(out, item)
		}
	}
	return out
}

// RemoveGuestWishlistItem drops the record for key
func RemoveGuestWishlistItem(items []GuestWishlistItem, key LineKey) ([]GuestWishlistItem, bool) {
	out := make([]GuestWishlistItem, 0, len(items))
	found := false
	for _, item := range items {
		if item.Key() == key {
			found = true
			continue
		}
		out = append(out, item)
	}
	return out, found
}
