// Package storefronttest provides an in-memory stand-in for the storefront
// cart and wishlist API, for tests of code that talks to it.
package storefronttest

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

const anonymous = ""

type Product struct {
	ID    uint
	Name  string
	Price float64
}

// Line is one stored cart line
type Line struct {
	ID        uint
	ProductID uint
	VariantID uint
	Quantity  int
}

// SavedItem is one stored wishlist line
type SavedItem struct {
	ID        uint
	ProductID uint
	VariantID uint
	Note      string
	Price     float64
	AddedAt   time.Time
}

type account struct {
	cart     []Line
	wishlist []SavedItem
}

// Server is a fake storefront API. Accounts are keyed by bearer token.
type Server struct {
	mu         sync.Mutex
	srv        *httptest.Server
	products   map[uint]Product
	accounts   map[string]*account
	guestCarts map[string][]Line
	nextID     uint
	calls      []string
	queries    []map[string]string

	failing       bool
	failRoutes    map[string]int
	emptyReads    int
	dropWishlists bool
}

// New starts the fake and stops it when the test ends
func New(t testing.TB) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	s := &Server{
		products:   make(map[uint]Product),
		accounts:   make(map[string]*account),
		guestCarts: make(map[string][]Line),
		failRoutes: make(map[string]int),
		nextID:     100,
	}
	s.srv = httptest.NewServer(s.router())
	t.Cleanup(s.srv.Close)
	return s
}

// URL is the API base URL to hand to the client
func (s *Server) URL() string {
	return s.srv.URL + "/api"
}

func (s *Server) AddProduct(p Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products[p.ID] = p
}

// SetCart replaces the cart of the account identified by token
func (s *Server) SetCart(token string, lines ...Line) []Line {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc := s.account(token)
	acc.cart = nil
	for _, l := range lines {
		if l.ID == 0 {
			l.ID = s.id()
		}
		acc.cart = append(acc.cart, l)
	}
	return append([]Line(nil), acc.cart...)
}

func (s *Server) CartOf(token string) []Line {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Line(nil), s.account(token).cart...)
}

func (s *Server) SetWishlist(token string, items ...SavedItem) []SavedItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc := s.account(token)
	acc.wishlist = nil
	for _, it := range items {
		if it.ID == 0 {
			it.ID = s.id()
		}
		acc.wishlist = append(acc.wishlist, it)
	}
	return append([]SavedItem(nil), acc.wishlist...)
}

func (s *Server) WishlistOf(token string) []SavedItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]SavedItem(nil), s.account(token).wishlist...)
}

// SeedGuestCart registers a server-side guest cart reachable by merge token
func (s *Server) SeedGuestCart(guestToken string, lines ...Line) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.guestCarts[guestToken] = lines
}

// SetFailing makes every route answer 503
func (s *Server) SetFailing(failing bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failing = failing
}

// FailRoute makes the next n calls of route fail with 500. route is "METHOD /path" with gin params, e.g. "POST /api/cart/items".
func (s *Server) FailRoute(route string, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failRoutes[route] = n
}

// EmptyReads makes the next n cart reads answer an empty cart
func (s *Server) EmptyReads(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.emptyReads = n
}

// DropWishlistAdds acknowledges wishlist additions without saving them
func (s *Server) DropWishlistAdds(drop bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dropWishlists = drop
}

// Calls returns the recorded "METHOD /route" of every request
func (s *Server) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

// CountCalls counts recorded requests of route
func (s *Server) CountCalls(route string) int {
	n := 0
	for _, c := range s.Calls() {
		if c == route {
			n++
		}
	}
	return n
}

// LastQuery returns the query parameters of the latest request
func (s *Server) LastQuery() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queries) == 0 {
		return nil
	}
	return s.queries[len(s.queries)-1]
}

// QueryOf returns the query parameters of the latest request of route
func (s *Server) QueryOf(route string) map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.calls) - 1; i >= 0; i-- {
		if s.calls[i] == route {
			return s.queries[i]
		}
	}
	return nil
}

func (s *Server) id() uint {
	s.nextID++
	return s.nextID
}

func (s *Server) account(token string) *account {
	acc, ok := s.accounts[token]
	if !ok {
		acc = &account{}
		s.accounts[token] = acc
	}
	return acc
}

func (s *Server) price(productID uint) (Product, float64) {
	p, ok := s.products[productID]
	if !ok {
		p = Product{ID: productID, Name: fmt.Sprintf("Product %d", productID), Price: 10}
	}
	return p, p.Price
}

func (s *Server) router() *gin.Engine {
	r := gin.New()
	r.Use(s.record)

	api := r.Group("/api")
	{
		api.GET("/cart", s.getCart)
		api.POST("/cart/items", s.addCartItem)
		api.PUT("/cart/items/:id", s.updateCartItem)
		api.DELETE("/cart/items/:id", s.removeCartItem)
		api.DELETE("/cart", s.clearCart)
		api.POST("/cart/merge", s.mergeCart)

		api.GET("/wishlist", s.getWishlist)
		api.POST("/wishlist/items", s.addWishlistItem)
		api.DELETE("/wishlist/items/:id", s.removeWishlistItem)
		api.GET("/wishlist/check/:productId", s.checkWishlist)
		api.POST("/wishlist/items/:id/move-to-cart", s.moveToCart)
	}
	return r
}

func (s *Server) record(c *gin.Context) {
	route := c.Request.Method + " " + c.FullPath()

	s.mu.Lock()
	s.calls = append(s.calls, route)
	q := map[string]string{}
	for k := range c.Request.URL.Query() {
		q[k] = c.Query(k)
	}
	s.queries = append(s.queries, q)
	failing := s.failing
	if n := s.failRoutes[route]; n > 0 {
		s.failRoutes[route] = n - 1
		s.mu.Unlock()
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"status": "error", "message": "injected failure"})
		return
	}
	s.mu.Unlock()

	if failing {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"status": "error", "message": "service unavailable"})
		return
	}
	c.Next()
}

func token(c *gin.Context) string {
	h := c.GetHeader("Authorization")
	if !strings.HasPrefix(h, "Bearer ") {
		return anonymous
	}
	return strings.TrimPrefix(h, "Bearer ")
}

func success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, gin.H{"status": "success", "data": data})
}

func fail(c *gin.Context, status int, msg string) {
	c.JSON(status, gin.H{"status": "error", "message": msg})
}

func parseID(c *gin.Context, name string) (uint, bool) {
	v, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil {
		fail(c, http.StatusNotFound, "unknown id")
		return 0, false
	}
	return uint(v), true
}

// cartJSON renders lines the way the API does, with prices as strings.
func (s *Server) cartJSON(lines []Line) gin.H {
	items := make([]gin.H, 0, len(lines))
	count := 0
	subtotal := 0.0
	for _, l := range lines {
		p, price := s.price(l.ProductID)
		total := price * float64(l.Quantity)
		item := gin.H{
			"id":            l.ID,
			"produit":       gin.H{"id": p.ID, "nom": p.Name, "image": "", "prix": price},
			"variante":      nil,
			"quantite":      l.Quantity,
			"prix_unitaire": strconv.FormatFloat(price, 'f', 2, 64),
			"prix_total":    strconv.FormatFloat(total, 'f', 2, 64),
		}
		if l.VariantID != 0 {
			item["variante"] = gin.H{"id": l.VariantID, "sku": fmt.Sprintf("SKU-%d-%d", l.ProductID, l.VariantID), "attributs": []gin.H{}}
		}
		items = append(items, item)
		count += l.Quantity
		subtotal += total
	}
	return gin.H{
		"id":           1,
		"items":        items,
		"nombre_items": count,
		"sous_total":   strconv.FormatFloat(subtotal, 'f', 2, 64),
		"total":        subtotal,
	}
}

func (s *Server) getCart(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.emptyReads > 0 {
		s.emptyReads--
		success(c, s.cartJSON(nil))
		return
	}
	success(c, s.cartJSON(s.account(token(c)).cart))
}

type addCartBody struct {
	ProductID uint  `json:"produit_id"`
	VariantID *uint `json:"variante_id"`
	Quantity  int   `json:"quantite"`
}

func (s *Server) addCartItem(c *gin.Context) {
	var body addCartBody
	if err := c.ShouldBindJSON(&body); err != nil || body.ProductID == 0 {
		fail(c, http.StatusUnprocessableEntity, "produit_id is required")
		return
	}
	var vid uint
	if body.VariantID != nil {
		vid = *body.VariantID
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	acc := s.account(token(c))
	for i := range acc.cart {
		if acc.cart[i].ProductID == body.ProductID && acc.cart[i].VariantID == vid {
			acc.cart[i].Quantity += body.Quantity
			success(c, s.cartJSON(acc.cart))
			return
		}
	}
	acc.cart = append(acc.cart, Line{ID: s.id(), ProductID: body.ProductID, VariantID: vid, Quantity: body.Quantity})
	success(c, s.cartJSON(acc.cart))
}

func (s *Server) updateCartItem(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var body struct {
		Quantity int `json:"quantite"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		fail(c, http.StatusUnprocessableEntity, "quantite is required")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	acc := s.account(token(c))
	for i := range acc.cart {
		if acc.cart[i].ID != id {
			continue
		}
		if body.Quantity <= 0 {
			acc.cart = append(acc.cart[:i], acc.cart[i+1:]...)
		} else {
			acc.cart[i].Quantity = body.Quantity
		}
		success(c, s.cartJSON(acc.cart))
		return
	}
	fail(c, http.StatusNotFound, "cart item not found")
}

func (s *Server) removeCartItem(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	acc := s.account(token(c))
	for i := range acc.cart {
		if acc.cart[i].ID == id {
			acc.cart = append(acc.cart[:i], acc.cart[i+1:]...)
			success(c, s.cartJSON(acc.cart))
			return
		}
	}
	fail(c, http.StatusNotFound, "cart item not found")
}

func (s *Server) clearCart(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.account(token(c)).cart = nil
	success(c, s.cartJSON(nil))
}

func (s *Server) mergeCart(c *gin.Context) {
	var body struct {
		GuestCartID string `json:"guest_cart_id"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || body.GuestCartID == "" {
		fail(c, http.StatusUnprocessableEntity, "guest_cart_id is required")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	guest, ok := s.guestCarts[body.GuestCartID]
	if !ok {
		fail(c, http.StatusNotFound, "guest cart not found")
		return
	}
	acc := s.account(token(c))
	for _, g := range guest {
		found := false
		for _, l := range acc.cart {
			if l.ProductID == g.ProductID && l.VariantID == g.VariantID {
				found = true
				break
			}
		}
		if !found {
			acc.cart = append(acc.cart, Line{ID: s.id(), ProductID: g.ProductID, VariantID: g.VariantID, Quantity: g.Quantity})
		}
	}
	delete(s.guestCarts, body.GuestCartID)
	success(c, s.cartJSON(acc.cart))
}

func (s *Server) wishlistJSON(items []SavedItem) gin.H {
	out := make([]gin.H, 0, len(items))
	for _, it := range items {
		p, price := s.price(it.ProductID)
		item := gin.H{
			"id":             it.ID,
			"produit":        gin.H{"id": p.ID, "nom": p.Name, "image": "", "prix": price},
			"variante":       nil,
			"note":           it.Note,
			"prix_reference": strconv.FormatFloat(it.Price, 'f', 2, 64),
			"prix_actuel":    price,
			"date_ajout":     it.AddedAt.UTC().Format(time.RFC3339),
		}
		if it.VariantID != 0 {
			item["variante"] = gin.H{"id": it.VariantID}
		}
		out = append(out, item)
	}
	return gin.H{
		"liste_souhait": gin.H{"id": 1, "nom": "Ma liste de souhaits", "nombre_items": len(items)},
		"items":         out,
	}
}

func (s *Server) getWishlist(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	success(c, s.wishlistJSON(s.account(token(c)).wishlist))
}

func (s *Server) addWishlistItem(c *gin.Context) {
	var body struct {
		ProductID uint   `json:"produit_id"`
		VariantID *uint  `json:"variante_id"`
		Note      string `json:"note"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || body.ProductID == 0 {
		fail(c, http.StatusUnprocessableEntity, "produit_id is required")
		return
	}
	var vid uint
	if body.VariantID != nil {
		vid = *body.VariantID
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	acc := s.account(token(c))
	if s.dropWishlists {
		success(c, s.wishlistJSON(acc.wishlist))
		return
	}
	for _, it := range acc.wishlist {
		if it.ProductID == body.ProductID && it.VariantID == vid {
			fail(c, http.StatusConflict, "already in wishlist")
			return
		}
	}
	_, price := s.price(body.ProductID)
	acc.wishlist = append(acc.wishlist, SavedItem{
		ID: s.id(), ProductID: body.ProductID, VariantID: vid, Note: body.Note, Price: price, AddedAt: time.Now(),
	})
	success(c, s.wishlistJSON(acc.wishlist))
}

func (s *Server) removeWishlistItem(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	acc := s.account(token(c))
	for i := range acc.wishlist {
		if acc.wishlist[i].ID == id {
			acc.wishlist = append(acc.wishlist[:i], acc.wishlist[i+1:]...)
			success(c, s.wishlistJSON(acc.wishlist))
			return
		}
	}
	fail(c, http.StatusNotFound, "wishlist item not found")
}

func (s *Server) checkWishlist(c *gin.Context) {
	pid, ok := parseID(c, "productId")
	if !ok {
		return
	}
	var vid uint
	if v := c.Query("variante_id"); v != "" {
		n, _ := strconv.ParseUint(v, 10, 64)
		vid = uint(n)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, it := range s.account(token(c)).wishlist {
		if it.ProductID == pid && it.VariantID == vid {
			success(c, gin.H{"in_wishlist": true, "item_id": it.ID})
			return
		}
	}
	success(c, gin.H{"in_wishlist": false})
}

func (s *Server) moveToCart(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var body struct {
		Quantity int `json:"quantite"`
	}
	_ = c.ShouldBindJSON(&body)
	if body.Quantity < 1 {
		body.Quantity = 1
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	acc := s.account(token(c))
	for i, it := range acc.wishlist {
		if it.ID != id {
			continue
		}
		acc.wishlist = append(acc.wishlist[:i], acc.wishlist[i+1:]...)
		merged := false
		for j := range acc.cart {
			if acc.cart[j].ProductID == it.ProductID && acc.cart[j].VariantID == it.VariantID {
				acc.cart[j].Quantity += body.Quantity
				merged = true
				break
			}
		}
		if !merged {
			acc.cart = append(acc.cart, Line{ID: s.id(), ProductID: it.ProductID, VariantID: it.VariantID, Quantity: body.Quantity})
		}
		success(c, gin.H{"liste_souhait": s.wishlistJSON(acc.wishlist)["liste_souhait"]})
		return
	}
	fail(c, http.StatusNotFound, "wishlist item not found")
}
