package storefront_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/ikkim/storefront-sync/pkg/logger"
	"github.com/ikkim/storefront-sync/pkg/storefront"
	"github.com/ikkim/storefront-sync/pkg/storefront/storefronttest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticCreds struct {
	token string
	hint  storefront.IdentityHint
}

func (s staticCreds) Credential() (string, storefront.IdentityHint, bool) {
	return s.token, s.hint, s.token != ""
}

func setupClientTest(t *testing.T, token string) (*storefront.Client, *storefronttest.Server) {
	t.Helper()
	api := storefronttest.New(t)
	client, err := storefront.NewClient(storefront.Config{
		BaseURL:          api.URL(),
		EmptyCartRetries: 2,
		RetryDelay:       time.Millisecond,
		SendIdentityHint: true,
	}, staticCreds{token: token, hint: storefront.IdentityHint{ClientID: "sub-" + token, Email: token + "@example.com"}})
	require.NoError(t, err)
	return client, api
}

func uintPtr(v uint) *uint { return &v }

func TestNewClient_InvalidConfig(t *testing.T) {
	_, err := storefront.NewClient(storefront.Config{}, nil)
	assert.ErrorIs(t, err, storefront.ErrInvalidRequest)
}

func TestFetchCart_NormalizesMoney(t *testing.T) {
	client, api := setupClientTest(t, "alice")
	api.AddProduct(storefronttest.Product{ID: 5, Name: "Mug", Price: 12.5})
	api.SetCart("alice", storefronttest.Line{ProductID: 5, Quantity: 2}, storefronttest.Line{ProductID: 9, VariantID: 3, Quantity: 1})

	cart, err := client.FetchCart(context.Background())
	require.NoError(t, err)

	require.Len(t, cart.Lines, 2)
	assert.Equal(t, "Mug", cart.Lines[0].Name)
	assert.Equal(t, 12.5, cart.Lines[0].UnitPrice)
	assert.Equal(t, 25.0, cart.Lines[0].LineTotal)
	require.NotNil(t, cart.Lines[1].VariantID)
	assert.Equal(t, uint(3), *cart.Lines[1].VariantID)
	assert.Equal(t, 3, cart.ItemCount)
	assert.Equal(t, 35.0, cart.Total)
}

func TestFetchCart_SendsIdentityHintAndCacheBuster(t *testing.T) {
	client, api := setupClientTest(t, "alice")

	_, err := client.FetchCart(context.Background())
	require.NoError(t, err)

	q := api.LastQuery()
	assert.Equal(t, "sub-alice", q["client_id"])
	assert.Equal(t, "alice@example.com", q["email"])
	assert.NotEmpty(t, q["_t"])
}

func TestFetchCart_AnonymousHasNoHint(t *testing.T) {
	client, api := setupClientTest(t, "")

	_, err := client.FetchCart(context.Background())
	require.NoError(t, err)

	_, ok := api.LastQuery()["client_id"]
	assert.False(t, ok)
}

func TestFetchCartSettled_RetriesEmptyAuthenticatedCart(t *testing.T) {
	client, api := setupClientTest(t, "alice")
	api.SetCart("alice", storefronttest.Line{ProductID: 5, Quantity: 1})
	api.EmptyReads(2)

	cart, err := client.FetchCartSettled(context.Background())
	require.NoError(t, err)

	assert.Len(t, cart.Lines, 1)
	assert.Equal(t, 3, api.CountCalls("GET /api/cart"))
}

func TestFetchCartSettled_RetryIsBounded(t *testing.T) {
	client, api := setupClientTest(t, "alice")

	cart, err := client.FetchCartSettled(context.Background())
	require.NoError(t, err)

	assert.True(t, cart.IsEmpty())
	assert.Equal(t, 3, api.CountCalls("GET /api/cart"))
}

func TestFetchCartSettled_AnonymousDoesNotRetry(t *testing.T) {
	client, api := setupClientTest(t, "")

	_, err := client.FetchCartSettled(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, api.CountCalls("GET /api/cart"))
}

func TestAddLine_ReplaceAndSum(t *testing.T) {
	client, api := setupClientTest(t, "alice")
	ctx := context.Background()

	require.NoError(t, client.AddLine(ctx, storefront.AddLineRequest{ProductID: 5, Quantity: 2}))
	require.NoError(t, client.AddLine(ctx, storefront.AddLineRequest{ProductID: 5, Quantity: 3}))
	assert.Equal(t, 5, api.CartOf("alice")[0].Quantity)

	require.NoError(t, client.AddLine(ctx, storefront.AddLineRequest{ProductID: 5, Quantity: 1, Replace: true}))
	lines := api.CartOf("alice")
	require.Len(t, lines, 1)
	assert.Equal(t, 1, lines[0].Quantity)

	require.NoError(t, client.AddLine(ctx, storefront.AddLineRequest{ProductID: 5, VariantID: uintPtr(2), Quantity: 0}))
	lines = api.CartOf("alice")
	require.Len(t, lines, 2)
	assert.Equal(t, 1, lines[1].Quantity)
}

func TestSetLineQuantity_ZeroRemoves(t *testing.T) {
	client, api := setupClientTest(t, "alice")
	lines := api.SetCart("alice", storefronttest.Line{ProductID: 5, Quantity: 2})

	require.NoError(t, client.SetLineQuantity(context.Background(), uintString(lines[0].ID), 0))
	assert.Empty(t, api.CartOf("alice"))
}

func TestRemoveLine_NotFound(t *testing.T) {
	client, _ := setupClientTest(t, "alice")

	err := client.RemoveLine(context.Background(), "999")
	assert.ErrorIs(t, err, storefront.ErrNotFound)

	apiErr, ok := storefront.AsError(err)
	require.True(t, ok)
	assert.Equal(t, "error", apiErr.Status)
	assert.Equal(t, http.StatusNotFound, apiErr.HTTPStatus)
	assert.Equal(t, "cart item not found", apiErr.Message)
}

func TestClearForUser_PassesSubject(t *testing.T) {
	client, api := setupClientTest(t, "alice")
	api.SetCart("alice", storefronttest.Line{ProductID: 1, Quantity: 1})

	require.NoError(t, client.ClearForUser(context.Background(), "other-subject"))
	assert.Equal(t, "other-subject", api.LastQuery()["client_id"])
	assert.Empty(t, api.CartOf("alice"))
}

func TestMergeGuestCart(t *testing.T) {
	client, api := setupClientTest(t, "alice")
	api.SetCart("alice", storefronttest.Line{ProductID: 1, Quantity: 4})
	api.SeedGuestCart("guest-1", storefronttest.Line{ProductID: 1, Quantity: 1}, storefronttest.Line{ProductID: 2, Quantity: 2})

	require.NoError(t, client.MergeGuestCart(context.Background(), "guest-1"))
	lines := api.CartOf("alice")
	require.Len(t, lines, 2)
	assert.Equal(t, 4, lines[0].Quantity)

	err := client.MergeGuestCart(context.Background(), "guest-1")
	assert.ErrorIs(t, err, storefront.ErrNotFound)
}

func TestServerFailure_IsNetworkOrAPIError(t *testing.T) {
	client, api := setupClientTest(t, "alice")
	api.SetFailing(true)

	_, err := client.FetchCart(context.Background())
	assert.ErrorIs(t, err, storefront.ErrAPI)

	dead := httptest.NewServer(http.NotFoundHandler())
	dead.Close()
	offline, err := storefront.NewClient(storefront.Config{BaseURL: dead.URL}, nil)
	require.NoError(t, err)
	_, err = offline.FetchCart(context.Background())
	assert.ErrorIs(t, err, storefront.ErrNetwork)
}

func TestUnauthorized_IsRetriedThenReported(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "error", "message": "Unauthenticated."})
	}))
	t.Cleanup(srv.Close)

	client, err := storefront.NewClient(storefront.Config{BaseURL: srv.URL, EmptyCartRetries: 2, RetryDelay: time.Millisecond}, staticCreds{token: "t"})
	require.NoError(t, err)

	_, err = client.FetchCartSettled(context.Background())
	assert.True(t, errors.Is(err, storefront.ErrUnauthorized))
	assert.Equal(t, 3, calls)
}

func TestStatusErrorEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"error","message":"Stock insuffisant","errors":{"quantite":["too many"]}}`))
	}))
	t.Cleanup(srv.Close)

	client, err := storefront.NewClient(storefront.Config{BaseURL: srv.URL}, nil)
	require.NoError(t, err)

	err = client.SetLineQuantity(context.Background(), "1", 99)
	apiErr, ok := storefront.AsError(err)
	require.True(t, ok)
	assert.ErrorIs(t, err, storefront.ErrAPI)
	assert.Equal(t, "Stock insuffisant", apiErr.Message)
	assert.Contains(t, apiErr.Details, "quantite")
}

func TestWishlist_Operations(t *testing.T) {
	client, api := setupClientTest(t, "alice")
	ctx := context.Background()
	api.AddProduct(storefronttest.Product{ID: 7, Name: "Lamp", Price: 40})

	require.NoError(t, client.AddWishlistLine(ctx, 7, nil, "gift"))

	wl, err := client.FetchWishlist(ctx)
	require.NoError(t, err)
	require.Len(t, wl.Lines, 1)
	assert.Equal(t, "Lamp", wl.Lines[0].Name)
	assert.Equal(t, "gift", wl.Lines[0].Note)
	assert.Equal(t, 40.0, wl.Lines[0].ReferencePrice)
	assert.False(t, wl.Lines[0].AddedAt.IsZero())

	check, err := client.CheckWishlist(ctx, 7, nil)
	require.NoError(t, err)
	assert.True(t, check.InWishlist)
	assert.Equal(t, wl.Lines[0].ID, check.LineID)

	check, err = client.CheckWishlist(ctx, 7, uintPtr(1))
	require.NoError(t, err)
	assert.False(t, check.InWishlist)

	require.NoError(t, client.MoveToCart(ctx, wl.Lines[0].ID, 2))
	assert.Empty(t, api.WishlistOf("alice"))
	require.Len(t, api.CartOf("alice"), 1)
	assert.Equal(t, 2, api.CartOf("alice")[0].Quantity)
}

func TestRemoveWishlistLine(t *testing.T) {
	client, api := setupClientTest(t, "alice")
	items := api.SetWishlist("alice", storefronttest.SavedItem{ProductID: 3, Price: 5})

	require.NoError(t, client.RemoveWishlistLine(context.Background(), uintString(items[0].ID)))
	assert.Empty(t, api.WishlistOf("alice"))
}

func uintString(v uint) string {
	return strconv.FormatUint(uint64(v), 10)
}

func TestFetchCart_GroupedPricesAndTotalMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"success","data":{"items":[` +
			`{"id":11,"produit":{"id":5,"nom":"Ring","prix":"1,299.00"},"quantite":2,"prix_unitaire":"1,299.00"}` +
			`],"total":"1,000.00"}}`))
	}))
	t.Cleanup(srv.Close)

	var out bytes.Buffer
	client, err := storefront.NewClient(storefront.Config{
		BaseURL: srv.URL,
		Logger:  logger.New(logger.Config{Level: "warn", Output: &out}),
	}, nil)
	require.NoError(t, err)

	cart, err := client.FetchCart(context.Background())
	require.NoError(t, err)

	require.Len(t, cart.Lines, 1)
	assert.Equal(t, 1299.0, cart.Lines[0].UnitPrice)
	assert.Equal(t, 2598.0, cart.Total)
	assert.Contains(t, out.String(), "Cart total differs from line sum")
}
