package service

import (
	"context"
	"time"

	"github.com/ikkim/storefront-sync/internal/app/model"
	"github.com/ikkim/storefront-sync/internal/crosstab"
	"github.com/ikkim/storefront-sync/internal/storage"
	"github.com/ikkim/storefront-sync/pkg/logger"
	"github.com/ikkim/storefront-sync/pkg/storefront"
	"golang.org/x/time/rate"
)

// CartAPI is the part of the storefront client the cart engine uses.
type CartAPI interface {
	FetchCart(ctx context.Context) (model.Cart, error)
	FetchCartSettled(ctx context.Context) (model.Cart, error)
	AddLine(ctx context.Context, req storefront.AddLineRequest) error
	SetLineQuantity(ctx context.Context, lineID string, quantity int) error
	RemoveLine(ctx context.Context, lineID string) error
	Clear(ctx context.Context) error
	ClearForUser(ctx context.Context, userID string) error
	MergeGuestCart(ctx context.Context, guestToken string) error
}

// WishlistAPI is the part of the storefront client the wishlist engine uses.
type WishlistAPI interface {
	FetchWishlist(ctx context.Context) (model.Wishlist, error)
	AddWishlistLine(ctx context.Context, productID uint, variantID *uint, note string) error
	RemoveWishlistLine(ctx context.Context, lineID string) error
	CheckWishlist(ctx context.Context, productID uint, variantID *uint) (storefront.CheckResult, error)
	MoveToCart(ctx context.Context, lineID string, quantity int) error
}

// Options tune an engine. The zero value is usable.
type Options struct {
	Logger *logger.Logger
	// Limiter paces refreshes triggered by other tabs' signals. Nil means unpaced.
	Limiter *rate.Limiter
	Now     func() time.Time
}

func (o Options) withDefaults() Options {
	if o.Logger == nil {
		o.Logger = logger.Nop()
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// NewLimiter builds the signal refresh pacer from an interval and burst.
func NewLimiter(every time.Duration, burst int) *rate.Limiter {
	if every <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Every(every), burst)
}

// engineDeps is what both engines share.
type engineDeps struct {
	store   *storage.LocalStore
	channel crosstab.Channel
	opts    Options
}

// pace waits for the limiter, if any.
func (d engineDeps) pace(ctx context.Context) error {
	if d.opts.Limiter == nil {
		return nil
	}
	return d.opts.Limiter.Wait(ctx)
}

// publish notifies other tabs. A tab's own signals never reach its handlers,
// so they do not move its watermark.
func (d engineDeps) publish(ctx context.Context, kind model.SyncKind, action string) {
	if d.channel == nil {
		return
	}
	if _, err := d.channel.Publish(ctx, kind, action, d.opts.Now()); err != nil {
		d.opts.Logger.Warn("Sync signal not delivered", map[string]interface{}{
			"kind":   string(kind),
			"action": action,
			"error":  err.Error(),
		})
	}
}
