package controller

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/ikkim/storefront-sync/internal/app/service"
	apperrors "github.com/ikkim/storefront-sync/internal/errors"
	"github.com/ikkim/storefront-sync/internal/middleware"
)

type WishlistController struct {
	wishlistService service.WishlistService
	cartService     service.CartService
}

func NewWishlistController(wishlistService service.WishlistService, cartService service.CartService) *WishlistController {
	return &WishlistController{
		wishlistService: wishlistService,
		cartService:     cartService,
	}
}

type MoveToCartRequest struct {
	Quantity int `json:"quantity"`
}

// GetWishlist returns the canonical wishlist
// GET /api/v1/wishlist
func (ctrl *WishlistController) GetWishlist(c *gin.Context) {
	ctrl.respond(c, nil, "fetch wishlist")
}

// AddItem saves a product
// POST /api/v1/wishlist/items
func (ctrl *WishlistController) AddItem(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	var req service.AddWishlistInput
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warn("Invalid add to wishlist request", map[string]interface{}{
			"error": err.Error(),
		})
		apperrors.RespondWithBindError(c, err)
		return
	}

	err := ctrl.wishlistService.AddItem(c.Request.Context(), req)
	ctrl.respond(c, err, "add wishlist item")
}

// RemoveItem drops a saved line
// DELETE /api/v1/wishlist/items/:id
func (ctrl *WishlistController) RemoveItem(c *gin.Context) {
	err := ctrl.wishlistService.RemoveItem(c.Request.Context(), c.Param("id"))
	ctrl.respond(c, err, "remove wishlist item")
}

// Toggle saves the product when absent and drops it otherwise
// POST /api/v1/wishlist/toggle
func (ctrl *WishlistController) Toggle(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	var req service.AddWishlistInput
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warn("Invalid wishlist toggle request", map[string]interface{}{
			"error": err.Error(),
		})
		apperrors.RespondWithBindError(c, err)
		return
	}

	saved, err := ctrl.wishlistService.Toggle(c.Request.Context(), req)
	if err != nil {
		ctrl.respond(c, err, "toggle wishlist item")
		return
	}

	log.Debug("Wishlist toggled", map[string]interface{}{
		"product_id": req.ProductID,
		"saved":      saved,
	})

	snap := ctrl.wishlistService.Snapshot()
	c.JSON(http.StatusOK, gin.H{
		"in_wishlist": saved,
		"wishlist":    snap.Wishlist,
		"state":       snap.State,
		"error":       apperrors.Soft(snap.Err, "toggle wishlist item"),
	})
}

// Check reports whether a product is saved
// GET /api/v1/wishlist/check/:productId?variant_id=
func (ctrl *WishlistController) Check(c *gin.Context) {
	productID, err := strconv.ParseUint(c.Param("productId"), 10, 32)
	if err != nil || productID == 0 {
		apperrors.BadRequest(c, apperrors.ValidationInvalidID, "Invalid product id")
		return
	}

	var variantID *uint
	if raw := c.Query("variant_id"); raw != "" {
		v, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			apperrors.BadRequest(c, apperrors.ValidationInvalidID, "Invalid variant id")
			return
		}
		vid := uint(v)
		variantID = &vid
	}

	saved, err := ctrl.wishlistService.IsInWishlist(c.Request.Context(), uint(productID), variantID)
	if err != nil {
		info := apperrors.ParseError(err, "check wishlist")
		apperrors.RespondWithError(c, apperrors.StatusFor(err), info.Code, info.Message)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"product_id":  productID,
		"variant_id":  variantID,
		"in_wishlist": saved,
	})
}

// MoveToCart moves a saved line into the cart
// POST /api/v1/wishlist/items/:id/move-to-cart
func (ctrl *WishlistController) MoveToCart(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	var req MoveToCartRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			apperrors.RespondWithBindError(c, err)
			return
		}
	}
	if req.Quantity <= 0 {
		req.Quantity = 1
	}

	err := ctrl.wishlistService.MoveToCart(c.Request.Context(), c.Param("id"), req.Quantity)
	if err != nil && apperrors.StatusFor(err) != http.StatusOK {
		ctrl.respond(c, err, "move wishlist item")
		return
	}
	if err != nil {
		log.Warn("Move to cart degraded", map[string]interface{}{
			"error": err.Error(),
		})
	}

	wish := ctrl.wishlistService.Snapshot()
	cart := ctrl.cartService.Snapshot()
	c.JSON(http.StatusOK, gin.H{
		"wishlist":       wish.Wishlist,
		"wishlist_state": wish.State,
		"cart":           cart.Cart,
		"cart_state":     cart.State,
		"error":          apperrors.Soft(err, "move wishlist item"),
	})
}

func (ctrl *WishlistController) respond(c *gin.Context, err error, action string) {
	log := middleware.GetLoggerFromContext(c)

	if err != nil {
		if status := apperrors.StatusFor(err); status != http.StatusOK {
			info := apperrors.ParseError(err, action)
			log.Warn("Wishlist request failed", map[string]interface{}{
				"action": action,
				"code":   info.Code,
				"error":  err.Error(),
			})
			apperrors.RespondWithError(c, status, info.Code, info.Message)
			return
		}
		log.Warn("Serving wishlist after remote failure", map[string]interface{}{
			"action": action,
			"error":  err.Error(),
		})
	}

	snap := ctrl.wishlistService.Snapshot()
	if err == nil {
		err = snap.Err
	}
	c.JSON(http.StatusOK, gin.H{
		"wishlist": snap.Wishlist,
		"state":    snap.State,
		"error":    apperrors.Soft(err, action),
	})
}
