package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/ikkim/storefront-sync/internal/app/service"
	apperrors "github.com/ikkim/storefront-sync/internal/errors"
	"github.com/ikkim/storefront-sync/internal/middleware"
)

type CartController struct {
	cartService service.CartService
}

func NewCartController(cartService service.CartService) *CartController {
	return &CartController{
		cartService: cartService,
	}
}

type UpdateCartRequest struct {
	Quantity *int `json:"quantity" binding:"required"`
}

// GetCart returns the canonical cart
// GET /api/v1/cart
func (ctrl *CartController) GetCart(c *gin.Context) {
	ctrl.respond(c, nil, "fetch cart")
}

// AddItem adds a product to the cart
// POST /api/v1/cart/items
func (ctrl *CartController) AddItem(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	var req service.AddItemInput
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warn("Invalid add to cart request", map[string]interface{}{
			"error": err.Error(),
		})
		apperrors.RespondWithBindError(c, err)
		return
	}

	log.Debug("Adding item to cart", map[string]interface{}{
		"product_id": req.ProductID,
		"variant_id": req.VariantID,
		"quantity":   req.Quantity,
	})

	err := ctrl.cartService.AddItem(c.Request.Context(), req)
	ctrl.respond(c, err, "add cart item")
}

// UpdateItem sets the quantity of a line; zero removes it
// PUT /api/v1/cart/items/:id
func (ctrl *CartController) UpdateItem(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)
	lineID := c.Param("id")

	var req UpdateCartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warn("Invalid update cart request", map[string]interface{}{
			"line_id": lineID,
			"error":   err.Error(),
		})
		apperrors.RespondWithBindError(c, err)
		return
	}

	err := ctrl.cartService.UpdateQuantity(c.Request.Context(), lineID, *req.Quantity)
	ctrl.respond(c, err, "update cart item")
}

// RemoveItem removes a line
// DELETE /api/v1/cart/items/:id
func (ctrl *CartController) RemoveItem(c *gin.Context) {
	err := ctrl.cartService.RemoveItem(c.Request.Context(), c.Param("id"))
	ctrl.respond(c, err, "remove cart item")
}

// ClearCart empties the cart. With ?scope=user the server cart of the
// signed-in user is cleared as well as every local copy.
// DELETE /api/v1/cart
func (ctrl *CartController) ClearCart(c *gin.Context) {
	var err error
	if c.Query("scope") == "user" {
		err = ctrl.cartService.ClearForCurrentUser(c.Request.Context())
	} else {
		err = ctrl.cartService.Clear(c.Request.Context())
	}
	ctrl.respond(c, err, "clear cart")
}

// Refresh re-reads the cart from the shop
// POST /api/v1/cart/refresh
func (ctrl *CartController) Refresh(c *gin.Context) {
	err := ctrl.cartService.Refresh(c.Request.Context())
	ctrl.respond(c, err, "refresh cart")
}

// respond writes the canonical cart. Remote failures travel next to the
// cart in "error"; only caller mistakes get a non-200 status.
func (ctrl *CartController) respond(c *gin.Context, err error, action string) {
	log := middleware.GetLoggerFromContext(c)

	if err != nil {
		if status := apperrors.StatusFor(err); status != http.StatusOK {
			info := apperrors.ParseError(err, action)
			log.Warn("Cart request failed", map[string]interface{}{
				"action": action,
				"code":   info.Code,
				"error":  err.Error(),
			})
			apperrors.RespondWithError(c, status, info.Code, info.Message)
			return
		}
		log.Warn("Serving cart after remote failure", map[string]interface{}{
			"action": action,
			"error":  err.Error(),
		})
	}

	snap := ctrl.cartService.Snapshot()
	if err == nil {
		err = snap.Err
	}
	c.JSON(http.StatusOK, gin.H{
		"cart":  snap.Cart,
		"state": snap.State,
		"error": apperrors.Soft(err, action),
	})
}
