package storefront

import (
	"encoding/json"
	"strconv"

	"github.com/ikkim/storefront-sync/internal/app/model"
)

// envelope is the {status, data, message, errors} wrapper of every API response
type envelope struct {
	Status  string          `json:"status"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
	Errors  json.RawMessage `json:"errors"`
}

// AddLineRequest represents a request to put a product into the cart
type AddLineRequest struct {
	ProductID uint
	VariantID *uint
	Quantity  int
	// Replace sets the quantity of an existing line instead of adding to it
	Replace bool
}

// CheckResult is the answer of the wishlist membership check
type CheckResult struct {
	InWishlist bool
	LineID     string
}

type wireProduct struct {
	ID    uint   `json:"id"`
	Name  string `json:"nom"`
	Image string `json:"image"`
	Price Money  `json:"prix"`
}

type wireVariant struct {
	ID         uint            `json:"id"`
	SKU        string          `json:"sku"`
	Attributes json.RawMessage `json:"attributs"`
}

type wireCartItem struct {
	ID        flexID       `json:"id"`
	Product   wireProduct  `json:"produit"`
	Variant   *wireVariant `json:"variante"`
	Quantity  int          `json:"quantite"`
	UnitPrice Money        `json:"prix_unitaire"`
}

type wireCart struct {
	Items []wireCartItem `json:"items"`
	Total *Money         `json:"total"`
}

func (w wireCart) toModel() model.Cart {
	cart := model.EmptyCart(model.SourceRemote)
	for _, item := range w.Items {
		line := model.CartLine{
			ID:           string(item.ID),
			ProductID:    item.Product.ID,
			Name:         item.Product.Name,
			Image:        item.Product.Image,
			ProductPrice: item.Product.Price.Float64(),
			Quantity:     item.Quantity,
			UnitPrice:    item.UnitPrice.Float64(),
		}
		if line.UnitPrice == 0 {
			line.UnitPrice = line.ProductPrice
		}
		if item.Variant != nil && item.Variant.ID != 0 {
			vid := item.Variant.ID
			line.VariantID = &vid
			line.VariantSKU = item.Variant.SKU
			line.VariantAttributes = item.Variant.Attributes
		}
		cart.Lines = append(cart.Lines, line)
	}
	cart.Recalculate()
	return cart
}

type wireWishlistMeta struct {
	ID          uint   `json:"id"`
	Name        string `json:"nom"`
	Description string `json:"description"`
}

type wireWishlistItem struct {
	ID             flexID       `json:"id"`
	Product        wireProduct  `json:"produit"`
	Variant        *wireVariant `json:"variante"`
	Note           string       `json:"note"`
	ReferencePrice Money        `json:"prix_reference"`
	CurrentPrice   Money        `json:"prix_actuel"`
	AddedAt        string       `json:"date_ajout"`
}

type wireWishlist struct {
	List  wireWishlistMeta   `json:"liste_souhait"`
	Items []wireWishlistItem `json:"items"`
}

func (w wireWishlist) toModel() model.Wishlist {
	wl := model.EmptyWishlist(model.SourceRemote)
	wl.ID = w.List.ID
	if w.List.Name != "" {
		wl.Name = w.List.Name
	}
	wl.Description = w.List.Description
	for _, item := range w.Items {
		line := model.WishlistLine{
			ID:             string(item.ID),
			ProductID:      item.Product.ID,
			Name:           item.Product.Name,
			Image:          item.Product.Image,
			Note:           item.Note,
			ReferencePrice: item.ReferencePrice.Float64(),
			CurrentPrice:   item.CurrentPrice.Float64(),
			AddedAt:        parseAPITime(item.AddedAt),
		}
		if line.CurrentPrice == 0 {
			line.CurrentPrice = item.Product.Price.Float64()
		}
		if item.Variant != nil && item.Variant.ID != 0 {
			vid := item.Variant.ID
			line.VariantID = &vid
			line.VariantSKU = item.Variant.SKU
		}
		wl.Lines = append(wl.Lines, line)
	}
	wl.Recount()
	return wl
}

type wireCheck struct {
	InWishlist bool   `json:"in_wishlist"`
	ItemID     flexID `json:"item_id"`
}

func uintString(v uint) string {
	return strconv.FormatUint(uint64(v), 10)
}
