package controller

import (
	"net/http"
	"testing"

	"github.com/ikkim/storefront-sync/pkg/storefront/storefronttest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func wishlistLines(t *testing.T, body map[string]interface{}) []interface{} {
	t.Helper()
	wishlist, ok := body["wishlist"].(map[string]interface{})
	require.True(t, ok, "response has no wishlist")
	lines, _ := wishlist["lines"].([]interface{})
	return lines
}

func (e *controllerEnv) saveGuestItem(t *testing.T, productID uint) {
	t.Helper()
	w := e.perform(http.MethodPost, "/api/v1/wishlist/items", map[string]interface{}{
		"product_id": productID,
		"name":       "Bracelet",
		"price":      30,
	}, "")
	require.Equal(t, http.StatusOK, w.Code)
}

func TestWishlistController_AddAndGet(t *testing.T) {
	env := setupControllerTest(t)
	env.saveGuestItem(t, 5)

	w := env.perform(http.MethodGet, "/api/v1/wishlist", nil, "")

	assert.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "ready", body["state"])
	lines := wishlistLines(t, body)
	require.Len(t, lines, 1)
	assert.Equal(t, "local_5_0", lines[0].(map[string]interface{})["id"])
}

func TestWishlistController_AddItem_InvalidRequest(t *testing.T) {
	env := setupControllerTest(t)

	w := env.perform(http.MethodPost, "/api/v1/wishlist/items", map[string]interface{}{
		"name": "nothing",
	}, "")

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestWishlistController_RemoveItem(t *testing.T) {
	env := setupControllerTest(t)
	env.saveGuestItem(t, 5)

	w := env.perform(http.MethodDelete, "/api/v1/wishlist/items/local_5_0", nil, "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, wishlistLines(t, decode(t, w)))
}

func TestWishlistController_RemoveItem_NotFound(t *testing.T) {
	env := setupControllerTest(t)

	w := env.perform(http.MethodDelete, "/api/v1/wishlist/items/local_5_0", nil, "")

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "WISHLIST_ITEM_NOT_FOUND", decode(t, w)["error"])
}

func TestWishlistController_Toggle_Guest(t *testing.T) {
	env := setupControllerTest(t)

	w := env.perform(http.MethodPost, "/api/v1/wishlist/toggle", map[string]interface{}{
		"product_id": 5,
	}, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decode(t, w)["in_wishlist"])

	w = env.perform(http.MethodPost, "/api/v1/wishlist/toggle", map[string]interface{}{
		"product_id": 5,
	}, "")
	assert.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, false, body["in_wishlist"])
	assert.Empty(t, wishlistLines(t, body))
}

func TestWishlistController_Toggle_Authenticated(t *testing.T) {
	env := setupControllerTest(t)
	token := signToken(t, "alice")
	require.Equal(t, http.StatusOK, env.perform(http.MethodPost, "/api/v1/session", nil, token).Code)

	w := env.perform(http.MethodPost, "/api/v1/wishlist/toggle", map[string]interface{}{
		"product_id": 7,
	}, "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decode(t, w)["in_wishlist"])

	env.session.Wishlist().Wait()
	saved := env.api.WishlistOf(token)
	require.Len(t, saved, 1)
	assert.Equal(t, uint(7), saved[0].ProductID)
}

func TestWishlistController_Check(t *testing.T) {
	env := setupControllerTest(t)
	env.saveGuestItem(t, 5)

	w := env.perform(http.MethodGet, "/api/v1/wishlist/check/5", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decode(t, w)["in_wishlist"])

	w = env.perform(http.MethodGet, "/api/v1/wishlist/check/5?variant_id=3", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, decode(t, w)["in_wishlist"])
}

func TestWishlistController_Check_InvalidID(t *testing.T) {
	env := setupControllerTest(t)

	for _, path := range []string{
		"/api/v1/wishlist/check/abc",
		"/api/v1/wishlist/check/0",
		"/api/v1/wishlist/check/5?variant_id=x",
	} {
		w := env.perform(http.MethodGet, path, nil, "")
		assert.Equal(t, http.StatusBadRequest, w.Code, path)
	}
}

func TestWishlistController_MoveToCart_Guest(t *testing.T) {
	env := setupControllerTest(t)
	env.saveGuestItem(t, 5)

	w := env.perform(http.MethodPost, "/api/v1/wishlist/items/local_5_0/move-to-cart", map[string]interface{}{
		"quantity": 2,
	}, "")

	assert.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Empty(t, wishlistLines(t, body))
	lines := cartLines(t, body)
	require.Len(t, lines, 1)
	line := lines[0].(map[string]interface{})
	assert.Equal(t, float64(5), line["product_id"])
	assert.Equal(t, float64(2), line["quantity"])
	assert.Equal(t, float64(30), line["unit_price"])
}

func TestWishlistController_MoveToCart_Authenticated(t *testing.T) {
	env := setupControllerTest(t)
	token := signToken(t, "alice")
	env.api.AddProduct(storefronttest.Product{ID: 5, Name: "Bracelet", Price: 30})
	saved := env.api.SetWishlist(token, storefronttest.SavedItem{ProductID: 5, Price: 30})
	require.Equal(t, http.StatusOK, env.perform(http.MethodPost, "/api/v1/session", nil, token).Code)

	lineID := env.session.Wishlist().Snapshot().Wishlist.Lines[0].ID
	require.NotEmpty(t, saved)

	w := env.perform(http.MethodPost, "/api/v1/wishlist/items/"+lineID+"/move-to-cart", nil, "")

	assert.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Empty(t, wishlistLines(t, body))
	assert.Len(t, cartLines(t, body), 1)
	assert.Empty(t, env.api.WishlistOf(token))
	assert.Len(t, env.api.CartOf(token), 1)
}

func TestWishlistController_MoveToCart_UnknownLine(t *testing.T) {
	env := setupControllerTest(t)

	w := env.perform(http.MethodPost, "/api/v1/wishlist/items/local_9_0/move-to-cart", nil, "")

	assert.Equal(t, http.StatusNotFound, w.Code)
}
