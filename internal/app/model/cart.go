package model

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Source tells whether a collection mirrors the remote API or was built from local storage.
type Source string

const (
	SourceLocal  Source = "local"
	SourceRemote Source = "remote"
)

// PlaceholderImage is used for guest lines saved without a product image.
const PlaceholderImage = "data:image/svg+xml;base64,PHN2ZyB3aWR0aD0iMjAwIiBoZWlnaHQ9IjIwMCIgeG1sbnM9Imh0dHA6Ly93d3cudzMub3JnLzIwMDAvc3ZnIj48cmVjdCB3aWR0aD0iMjAwIiBoZWlnaHQ9IjIwMCIgZmlsbD0iI2YxZjFmMSIvPjwvc3ZnPg=="

const localIDPrefix = "local_"

// LineKey is the (product, variant) identity of a line. VariantID 0 means no variant.
type LineKey struct {
	ProductID uint
	VariantID uint
}

// KeyOf builds a LineKey from an optional variant id
func KeyOf(productID uint, variantID *uint) LineKey {
	key := LineKey{ProductID: productID}
	if variantID != nil {
		key.VariantID = *variantID
	}
	return key
}

func (k LineKey) String() string {
	return fmt.Sprintf("%d_%d", k.ProductID, k.VariantID)
}

// Variant returns the variant id as an optional value
func (k LineKey) Variant() *uint {
	if k.VariantID == 0 {
		return nil
	}
	v := k.VariantID
	return &v
}

// LocalLineID synthesizes the identity of a line that has no server id yet.
func LocalLineID(k LineKey) string {
	return localIDPrefix + k.String()
}

// IsLocalLineID reports whether id was produced by LocalLineID
func IsLocalLineID(id string) bool {
	return strings.HasPrefix(id, localIDPrefix)
}

// ParseLocalLineID recovers the key from a synthesized id.
func ParseLocalLineID(id string) (LineKey, bool) {
	if !IsLocalLineID(id) {
		return LineKey{}, false
	}
	parts := strings.Split(strings.TrimPrefix(id, localIDPrefix), "_")
	if len(parts) != 2 {
		return LineKey{}, false
	}
	productID, err := strconv.ParseUint(parts[0], 10, 64)
	if err != nil || productID == 0 {
		return LineKey{}, false
	}
	variantID, err := strconv.ParseUint(parts[1], 10, 64)
	if err != nil {
		return LineKey{}, false
	}
	return LineKey{ProductID: uint(productID), VariantID: uint(variantID)}, true
}

type CartLine struct {
	ID                string          `json:"id"`
	ProductID         uint            `json:"product_id"`
	VariantID         *uint           `json:"variant_id,omitempty"`
	VariantSKU        string          `json:"variant_sku,omitempty"`
	VariantAttributes json.RawMessage `json:"variant_attributes,omitempty"`
	Name              string          `json:"name"`
	Image             string          `json:"image"`
	ProductPrice      float64         `json:"product_price"`
	Quantity          int             `json:"quantity"`
	UnitPrice         float64         `json:"unit_price"`
	LineTotal         float64         `json:"line_total"`
}

func (l CartLine) Key() LineKey {
	return KeyOf(l.ProductID, l.VariantID)
}

type Cart struct {
	Lines     []CartLine `json:"lines"`
	ItemCount int        `json:"item_count"`
	Subtotal  float64    `json:"subtotal"`
	Total     float64    `json:"total"`
	Source    Source     `json:"source"`
}

// EmptyCart returns a cart with no lines
func EmptyCart(source Source) Cart {
	return Cart{Lines: []CartLine{}, Source: source}
}

// Recalculate derives line totals, item count, subtotal and total from the lines.
func (c *Cart) Recalculate() {
	count := 0
	subtotal := 0.0
	for i := range c.Lines {
		line := &c.Lines[i]
		line.LineTotal = RoundMoney(line.UnitPrice * float64(line.Quantity))
		count += line.Quantity
		subtotal += line.LineTotal
	}
	c.ItemCount = count
	c.Subtotal = RoundMoney(subtotal)
	c.Total = c.Subtotal
}

func (c Cart) IsEmpty() bool {
	return len(c.Lines) == 0
}

// Find returns the index of the line with the given key
func (c Cart) Find(key LineKey) (int, bool) {
	for i, line := range c.Lines {
		if line.Key() == key {
			return i, true
		}
	}
	return -1, false
}

// FindByID returns the index of the line with the given id
func (c Cart) FindByID(id string) (int, bool) {
	for i, line := range c.Lines {
		if line.ID == id {
			return i, true
		}
	}
	return -1, false
}

// Clone deep-copies the line slice so callers cannot mutate canonical state.
func (c Cart) Clone() Cart {
	out := c
	out.Lines = make([]CartLine, len(c.Lines))
	copy(out.Lines, c.Lines)
	return out
}

// GuestItems converts any cart into guest storage records, dropping server line ids.
func (c Cart) GuestItems() []GuestCartItem {
	items := make([]GuestCartItem, 0, len(c.Lines))
	for _, line := range c.Lines {
		price := line.UnitPrice
		if price == 0 {
			price = line.ProductPrice
		}
		items = append(items, GuestCartItem{
			ProductID:         line.ProductID,
			Name:              line.Name,
			Price:             price,
			Image:             line.Image,
			Quantity:          line.Quantity,
			VariantID:         line.VariantID,
			VariantSKU:        line.VariantSKU,
			VariantAttributes: line.VariantAttributes,
		})
	}
	return items
}

// GuestCartItem is the record kept in guest storage under the cart key.
type GuestCartItem struct {
	ProductID         uint            `json:"product_id"`
	Name              string          `json:"name"`
	Price             float64         `json:"price"`
	Image             string          `json:"image,omitempty"`
	Quantity          int             `json:"quantity"`
	VariantID         *uint           `json:"variant_id,omitempty"`
	VariantSKU        string          `json:"variant_sku,omitempty"`
	VariantAttributes json.RawMessage `json:"variant_attributes,omitempty"`
}

func (i GuestCartItem) Key() LineKey {
	return KeyOf(i.ProductID, i.VariantID)
}

// LocalCartFromItems synthesizes a local cart from guest records.
// Duplicate keys keep the first record.
func LocalCartFromItems(items []GuestCartItem) Cart {
	cart := EmptyCart(SourceLocal)
	seen := make(map[LineKey]bool, len(items))
	for _, item := range items {
		key := item.Key()
		if item.ProductID == 0 || seen[key] {
			continue
		}
		seen[key] = true

		qty := item.Quantity
		if qty <= 0 {
			qty = 1
		}
		image := item.Image
		if image == "" {
			image = PlaceholderImage
		}
		name := item.Name
		if name == "" {
			name = "Product"
		}
		cart.Lines = append(cart.Lines, CartLine{
			ID:                LocalLineID(key),
			ProductID:         item.ProductID,
			VariantID:         key.Variant(),
			VariantSKU:        item.VariantSKU,
			VariantAttributes: item.VariantAttributes,
			Name:              name,
			Image:             image,
			ProductPrice:      item.Price,
			Quantity:          qty,
			UnitPrice:         item.Price,
		})
	}
	cart.Recalculate()
	return cart
}

// UpsertGuestItem adds item or, when its key exists, replaces or increases the quantity.
func UpsertGuestItem(items []GuestCartItem, item GuestCartItem, replace bool) []GuestCartItem {
	out := make([]GuestCartItem, len(items), len(items)+1)
	copy(out, items)
	for i := range out {
		if out[i].Key() != item.Key() {
			continue
		}
		if replace {
			out[i].Quantity = item.Quantity
		} else {
			out[i].Quantity += item.Quantity
		}
		return out
	}
	return append(out, item)
}

// MergeGuestItems unions incoming into existing by key.
// Quantities of existing keys are never increased, so merging twice equals merging once.
func MergeGuestItems(existing, incoming []GuestCartItem) []GuestCartItem {
	out := make([]GuestCartItem, 0, len(existing)+len(incoming))
	seen := make(map[LineKey]bool, len(existing)+len(incoming))
	for _, item := range existing {
		if seen[item.Key()] {
			continue
		}
		seen[item.Key()] = true
		out = append(out, item)
	}
	for _, item := range incoming {
		if seen[item.Key()] {
			continue
		}
		seen[item.Key()] = true
		out = append(out, item)
	}
	return out
}

// RoundMoney rounds to cents
func RoundMoney(v float64) float64 {
	return math.Round(v*100) / 100
}
