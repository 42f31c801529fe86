package storefront

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ikkim/storefront-sync/internal/app/model"
	"github.com/ikkim/storefront-sync/pkg/logger"
)

// Client represents a storefront cart and wishlist API client
type Client struct {
	config     Config
	creds      CredentialSource
	httpClient *http.Client
	log        *logger.Logger
	now        func() time.Time
}

// NewClient creates a new client. creds may be nil, in which case every call is anonymous.
func NewClient(config Config, creds CredentialSource) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")

	timeout := config.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	log := config.Logger
	if log == nil {
		log = logger.Nop()
	}

	return &Client{
		config:     config,
		creds:      creds,
		httpClient: httpClient,
		log:        log.Component("storefront"),
		now:        time.Now,
	}, nil
}

func (c *Client) credential() (string, IdentityHint, bool) {
	if c.creds == nil {
		return "", IdentityHint{}, false
	}
	return c.creds.Credential()
}

// FetchCart reads the cart of the current identity once.
func (c *Client) FetchCart(ctx context.Context) (model.Cart, error) {
	var wc wireCart
	if err := c.doRequest(ctx, http.MethodGet, "/cart", nil, nil, &wc); err != nil {
		return model.Cart{}, err
	}
	cart := wc.toModel()
	if wc.Total != nil && math.Abs(wc.Total.Float64()-cart.Total) > 0.005 {
		c.log.Warn("Cart total differs from line sum", map[string]interface{}{
			"server_total": wc.Total.Float64(),
			"line_total":   cart.Total,
		})
	}
	return cart, nil
}

// FetchCartSettled reads the cart, re-reading with a fixed delay while an
// authenticated cart comes back empty or the API answers 401.
func (c *Client) FetchCartSettled(ctx context.Context) (model.Cart, error) {
	_, _, authenticated := c.credential()
	retryIf := func(cart model.Cart, err error) bool {
		if err != nil {
			return errors.Is(err, ErrUnauthorized)
		}
		return authenticated && cart.IsEmpty()
	}
	return withRetry(ctx, c.config.EmptyCartRetries, c.config.RetryDelay, retryIf, func(attempt int) (model.Cart, error) {
		if attempt > 0 {
			c.log.Debug("Re-reading cart", map[string]interface{}{"attempt": attempt})
		}
		return c.FetchCart(ctx)
	})
}

// AddLine puts a product into the cart. An existing line for the same
// product and variant is updated in place, so the cart never holds duplicates.
func (c *Client) AddLine(ctx context.Context, req AddLineRequest) error {
	if req.ProductID == 0 {
		return newError(ErrInvalidRequest, 0, "product id is required")
	}
	qty := req.Quantity
	if qty < 1 {
		qty = 1
	}

	current, err := c.FetchCart(ctx)
	if err == nil {
		if i, ok := current.Find(model.KeyOf(req.ProductID, req.VariantID)); ok {
			line := current.Lines[i]
			newQty := qty
			if !req.Replace {
				newQty = line.Quantity + qty
			}
			return c.SetLineQuantity(ctx, line.ID, newQty)
		}
	} else {
		c.log.Warn("Could not look up existing line, adding instead", map[string]interface{}{
			"product_id": req.ProductID,
			"error":      err.Error(),
		})
	}

	body := map[string]interface{}{
		"produit_id":  req.ProductID,
		"variante_id": req.VariantID,
		"quantite":    qty,
	}
	return c.doRequest(ctx, http.MethodPost, "/cart/items", nil, body, nil)
}

// SetLineQuantity sets a line quantity. Zero removes the line.
func (c *Client) SetLineQuantity(ctx context.Context, lineID string, quantity int) error {
	if lineID == "" {
		return newError(ErrInvalidRequest, 0, "line id is required")
	}
	if quantity < 0 {
		quantity = 0
	}
	body := map[string]interface{}{"quantite": quantity}
	return c.doRequest(ctx, http.MethodPut, "/cart/items/"+url.PathEscape(lineID), nil, body, nil)
}

func (c *Client) RemoveLine(ctx context.Context, lineID string) error {
	if lineID == "" {
		return newError(ErrInvalidRequest, 0, "line id is required")
	}
	return c.doRequest(ctx, http.MethodDelete, "/cart/items/"+url.PathEscape(lineID), nil, nil, nil)
}

func (c *Client) Clear(ctx context.Context) error {
	return c.doRequest(ctx, http.MethodDelete, "/cart", nil, nil, nil)
}

// ClearForUser empties the cart of the given subject
func (c *Client) ClearForUser(ctx context.Context, userID string) error {
	if userID == "" {
		return newError(ErrInvalidRequest, 0, "user id is required")
	}
	query := url.Values{"client_id": {userID}}
	return c.doRequest(ctx, http.MethodDelete, "/cart", query, nil, nil)
}

// MergeGuestCart asks the API to fold the guest cart identified by token into the current cart.
func (c *Client) MergeGuestCart(ctx context.Context, guestToken string) error {
	if guestToken == "" {
		return newError(ErrInvalidRequest, 0, "guest cart token is required")
	}
	body := map[string]interface{}{"guest_cart_id": guestToken}
	return c.doRequest(ctx, http.MethodPost, "/cart/merge", nil, body, nil)
}

func (c *Client) FetchWishlist(ctx context.Context) (model.Wishlist, error) {
	var ww wireWishlist
	if err := c.doRequest(ctx, http.MethodGet, "/wishlist", nil, nil, &ww); err != nil {
		return model.Wishlist{}, err
	}
	return ww.toModel(), nil
}

func (c *Client) AddWishlistLine(ctx context.Context, productID uint, variantID *uint, note string) error {
	if productID == 0 {
		return newError(ErrInvalidRequest, 0, "product id is required")
	}
	body := map[string]interface{}{
		"produit_id":  productID,
		"variante_id": variantID,
		"note":        note,
	}
	return c.doRequest(ctx, http.MethodPost, "/wishlist/items", nil, body, nil)
}

func (c *Client) RemoveWishlistLine(ctx context.Context, lineID string) error {
	if lineID == "" {
		return newError(ErrInvalidRequest, 0, "line id is required")
	}
	return c.doRequest(ctx, http.MethodDelete, "/wishlist/items/"+url.PathEscape(lineID), nil, nil, nil)
}

// CheckWishlist asks the API whether the product is saved for the current identity.
func (c *Client) CheckWishlist(ctx context.Context, productID uint, variantID *uint) (CheckResult, error) {
	query := url.Values{}
	if variantID != nil {
		query.Set("variante_id", uintString(*variantID))
	}
	var wc wireCheck
	if err := c.doRequest(ctx, http.MethodGet, "/wishlist/check/"+uintString(productID), query, nil, &wc); err != nil {
		return CheckResult{}, err
	}
	return CheckResult{InWishlist: wc.InWishlist, LineID: string(wc.ItemID)}, nil
}

func (c *Client) MoveToCart(ctx context.Context, lineID string, quantity int) error {
	if lineID == "" {
		return newError(ErrInvalidRequest, 0, "line id is required")
	}
	if quantity < 1 {
		quantity = 1
	}
	body := map[string]interface{}{"quantite": quantity}
	path := "/wishlist/items/" + url.PathEscape(lineID) + "/move-to-cart"
	return c.doRequest(ctx, http.MethodPost, path, nil, body, nil)
}

// doRequest performs a call and decodes the envelope data into out when out is not nil.
func (c *Client) doRequest(ctx context.Context, method, path string, query url.Values, body map[string]interface{}, out interface{}) error {
	if query == nil {
		query = url.Values{}
	}
	token, hint, authenticated := c.credential()
	if authenticated && c.config.SendIdentityHint {
		if hint.ClientID != "" && query.Get("client_id") == "" {
			query.Set("client_id", hint.ClientID)
		}
		if hint.Email != "" {
			query.Set("email", hint.Email)
		}
		if body != nil {
			if hint.ClientID != "" {
				body["client_id"] = hint.ClientID
			}
			if hint.Email != "" {
				body["email"] = hint.Email
			}
		}
	}
	query.Set("_t", strconv.FormatInt(c.now().UnixMilli(), 10))

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return newError(ErrInvalidRequest, 0, fmt.Sprintf("failed to marshal request body: %v", err))
		}
		reader = bytes.NewReader(raw)
	}

	endpoint := c.config.BaseURL + path + "?" + query.Encode()
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return newError(ErrInvalidRequest, 0, fmt.Sprintf("failed to create request: %v", err))
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if authenticated && token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Warn("Storefront request failed", map[string]interface{}{
			"method": method,
			"path":   path,
			"error":  err.Error(),
		})
		return newError(ErrNetwork, 0, err.Error())
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return newError(ErrNetwork, resp.StatusCode, fmt.Sprintf("failed to read response body: %v", err))
	}

	var env envelope
	decodeErr := json.Unmarshal(raw, &env)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := newError(kindForStatus(resp.StatusCode), resp.StatusCode, env.Message)
		apiErr.Details = decodeDetails(env.Errors)
		c.log.Warn("Storefront API returned an error", map[string]interface{}{
			"method": method,
			"path":   path,
			"status": resp.StatusCode,
			"msg":    apiErr.Message,
		})
		return apiErr
	}
	if decodeErr != nil {
		return newError(ErrAPI, resp.StatusCode, fmt.Sprintf("undecodable response: %v", decodeErr))
	}
	if env.Status != "success" {
		apiErr := newError(ErrAPI, resp.StatusCode, env.Message)
		apiErr.Details = decodeDetails(env.Errors)
		return apiErr
	}
	if out == nil || len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return newError(ErrAPI, resp.StatusCode, fmt.Sprintf("unexpected data shape: %v", err))
	}
	return nil
}

func kindForStatus(status int) error {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return ErrUnauthorized
	case http.StatusNotFound:
		return ErrNotFound
	default:
		return ErrAPI
	}
}

func decodeDetails(raw json.RawMessage) map[string]interface{} {
	if len(raw) == 0 {
		return nil
	}
	var details map[string]interface{}
	if err := json.Unmarshal(raw, &details); err != nil {
		return nil
	}
	return details
}
