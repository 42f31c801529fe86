package controller

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ikkim/storefront-sync/internal/app/service"
	"github.com/ikkim/storefront-sync/internal/auth"
	"github.com/ikkim/storefront-sync/internal/crosstab"
	"github.com/ikkim/storefront-sync/internal/middleware"
	"github.com/ikkim/storefront-sync/internal/storage"
	"github.com/ikkim/storefront-sync/pkg/logger"
	"github.com/ikkim/storefront-sync/pkg/storefront"
	"github.com/ikkim/storefront-sync/pkg/storefront/storefronttest"
	"github.com/ikkim/storefront-sync/pkg/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

type controllerEnv struct {
	api     *storefronttest.Server
	session *service.Session
	router  *gin.Engine
}

func setupControllerTest(t *testing.T) *controllerEnv {
	t.Helper()
	ctx := context.Background()
	api := storefronttest.New(t)

	observer := auth.NewObserver(testSecret, nil)
	client, err := storefront.NewClient(storefront.Config{
		BaseURL:          api.URL(),
		EmptyCartRetries: 1,
		RetryDelay:       time.Millisecond,
	}, observer)
	require.NoError(t, err)

	store := storage.NewLocalStore(storage.NewMemoryBackend(), storage.NewMemoryBackend(), nil)
	channel, err := crosstab.NewSyncChannel(ctx, store, crosstab.NewMemoryBroker(), "tab-1", nil)
	require.NoError(t, err)

	sess := service.NewSession(ctx, service.SessionDeps{
		Observer:    observer,
		Store:       store,
		Channel:     channel,
		CartAPI:     client,
		WishlistAPI: client,
	})
	t.Cleanup(func() {
		sess.Close()
		channel.Close()
	})
	require.NoError(t, sess.Start(ctx, ""))

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(middleware.LoggingMiddleware(logger.Nop()))

	sessionCtrl := NewSessionController(sess)
	cartCtrl := NewCartController(sess.Cart())
	wishlistCtrl := NewWishlistController(sess.Wishlist(), sess.Cart())
	authMiddleware := middleware.NewAuthMiddleware(testSecret)

	router.GET("/api/v1/session", sessionCtrl.GetSession)
	router.POST("/api/v1/session", authMiddleware.RequireBearer(), sessionCtrl.Login)
	router.DELETE("/api/v1/session", sessionCtrl.Logout)

	router.GET("/api/v1/cart", cartCtrl.GetCart)
	router.DELETE("/api/v1/cart", cartCtrl.ClearCart)
	router.POST("/api/v1/cart/refresh", cartCtrl.Refresh)
	router.POST("/api/v1/cart/items", cartCtrl.AddItem)
	router.PUT("/api/v1/cart/items/:id", cartCtrl.UpdateItem)
	router.DELETE("/api/v1/cart/items/:id", cartCtrl.RemoveItem)

	router.GET("/api/v1/wishlist", wishlistCtrl.GetWishlist)
	router.POST("/api/v1/wishlist/items", wishlistCtrl.AddItem)
	router.DELETE("/api/v1/wishlist/items/:id", wishlistCtrl.RemoveItem)
	router.POST("/api/v1/wishlist/items/:id/move-to-cart", wishlistCtrl.MoveToCart)
	router.POST("/api/v1/wishlist/toggle", wishlistCtrl.Toggle)
	router.GET("/api/v1/wishlist/check/:productId", wishlistCtrl.Check)

	return &controllerEnv{api: api, session: sess, router: router}
}

func signToken(t *testing.T, user string) string {
	t.Helper()
	token, err := util.SignIdentityToken(user, user+"@example.com", testSecret, time.Hour)
	require.NoError(t, err)
	return token
}

// perform sends body as JSON, with a bearer token when token is set
func (e *controllerEnv) perform(method, path string, body interface{}, token string) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, _ := http.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestSessionController_GetSession_Guest(t *testing.T) {
	env := setupControllerTest(t)

	w := env.perform(http.MethodGet, "/api/v1/session", nil, "")

	assert.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	identity := body["identity"].(map[string]interface{})
	assert.Equal(t, true, identity["known"])
	assert.Equal(t, false, identity["authenticated"])
	assert.Equal(t, "ready", body["cart_state"])
	assert.Equal(t, "ready", body["wishlist_state"])
}

func TestSessionController_Login(t *testing.T) {
	env := setupControllerTest(t)
	token := signToken(t, "alice")
	env.api.SetCart(token, storefronttest.Line{ProductID: 5, Quantity: 2})

	w := env.perform(http.MethodPost, "/api/v1/session", nil, token)

	assert.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	identity := body["identity"].(map[string]interface{})
	assert.Equal(t, true, identity["authenticated"])
	assert.Equal(t, "alice", identity["user_id"])
	assert.Equal(t, "ready", body["cart_state"])
	assert.Equal(t, 2, env.session.Cart().Snapshot().Cart.ItemCount)
}

func TestSessionController_Login_MissingToken(t *testing.T) {
	env := setupControllerTest(t)

	w := env.perform(http.MethodPost, "/api/v1/session", nil, "")

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.False(t, env.session.Identity().Authenticated)
}

func TestSessionController_Logout_KeepsCartAsGuest(t *testing.T) {
	env := setupControllerTest(t)
	token := signToken(t, "alice")
	env.api.SetCart(token, storefronttest.Line{ProductID: 5, Quantity: 2})
	require.Equal(t, http.StatusOK, env.perform(http.MethodPost, "/api/v1/session", nil, token).Code)

	w := env.perform(http.MethodDelete, "/api/v1/session", nil, "")

	assert.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	identity := body["identity"].(map[string]interface{})
	assert.Equal(t, false, identity["authenticated"])

	cart := env.session.Cart().Snapshot().Cart
	require.Len(t, cart.Lines, 1)
	assert.Equal(t, "local_5_0", cart.Lines[0].ID)
	assert.Equal(t, 2, cart.Lines[0].Quantity)
}
