package router

import (
	"github.com/gin-gonic/gin"
	"github.com/ikkim/storefront-sync/config"
	"github.com/ikkim/storefront-sync/internal/app/controller"
	"github.com/ikkim/storefront-sync/internal/middleware"
	"github.com/ikkim/storefront-sync/pkg/logger"
)

type Router struct {
	sessionController  *controller.SessionController
	cartController     *controller.CartController
	wishlistController *controller.WishlistController
	wsController       *controller.WsController
	authMiddleware     *middleware.AuthMiddleware
	log                *logger.Logger
	config             *config.Config
}

func NewRouter(
	sessionController *controller.SessionController,
	cartController *controller.CartController,
	wishlistController *controller.WishlistController,
	wsController *controller.WsController,
	authMiddleware *middleware.AuthMiddleware,
	log *logger.Logger,
	cfg *config.Config,
) *Router {
	return &Router{
		sessionController:  sessionController,
		cartController:     cartController,
		wishlistController: wishlistController,
		wsController:       wsController,
		authMiddleware:     authMiddleware,
		log:                log,
		config:             cfg,
	}
}

func (r *Router) Setup() *gin.Engine {
	gin.SetMode(r.config.Server.GinMode)

	router := gin.New()

	router.Use(middleware.LoggingMiddleware(r.log))
	router.Use(middleware.RecoveryMiddleware())
	router.Use(corsMiddleware(r.config.CORS.AllowedOrigins))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "healthy",
			"message": "cart sync is running",
		})
	})

	if r.wsController != nil {
		router.GET("/ws", r.wsController.Connect)
	}

	v1 := router.Group("/api/v1")
	{
		session := v1.Group("/session")
		{
			session.GET("", r.sessionController.GetSession)
			session.POST("", r.authMiddleware.RequireBearer(), r.sessionController.Login)
			session.DELETE("", r.sessionController.Logout)
		}

		cart := v1.Group("/cart")
		{
			cart.GET("", r.cartController.GetCart)
			cart.DELETE("", r.cartController.ClearCart)
			cart.POST("/refresh", r.cartController.Refresh)
			cart.POST("/items", r.cartController.AddItem)
			cart.PUT("/items/:id", r.cartController.UpdateItem)
			cart.DELETE("/items/:id", r.cartController.RemoveItem)
		}

		wishlist := v1.Group("/wishlist")
		{
			wishlist.GET("", r.wishlistController.GetWishlist)
			wishlist.POST("/items", r.wishlistController.AddItem)
			wishlist.DELETE("/items/:id", r.wishlistController.RemoveItem)
			wishlist.POST("/items/:id/move-to-cart", r.wishlistController.MoveToCart)
			wishlist.POST("/toggle", r.wishlistController.Toggle)
			wishlist.GET("/check/:productId", r.wishlistController.Check)
		}
	}

	return router
}

func corsMiddleware(allowedOrigins []string) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")

		allowed := false
		for _, allowedOrigin := range allowedOrigins {
			if origin == allowedOrigin || allowedOrigin == "*" {
				allowed = true
				break
			}
		}

		if allowed {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		}

		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With, X-Request-ID")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
