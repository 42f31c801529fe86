package controller

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/ikkim/storefront-sync/internal/app/service"
	"github.com/ikkim/storefront-sync/internal/middleware"
	ws "github.com/ikkim/storefront-sync/internal/websocket"
)

// WsController streams canonical snapshots to the UI.
type WsController struct {
	session  *service.Session
	hub      *ws.Hub
	upgrader websocket.Upgrader
}

func NewWsController(session *service.Session, hub *ws.Hub, allowedOrigins []string) *WsController {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		allowed[origin] = true
	}
	return &WsController{
		session: session,
		hub:     hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				// non-browser clients send no origin
				return origin == "" || allowed[origin]
			},
		},
	}
}

// Connect upgrades the request and sends the current snapshots first
// GET /ws
func (ctrl *WsController) Connect(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	conn, err := ctrl.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error("Failed to upgrade to WebSocket", err)
		return
	}

	client := ws.NewClient(ctrl.hub, &ws.Conn{Conn: conn}, uuid.NewString())
	ctrl.hub.Greet(client,
		ws.CartEvent(ctrl.session.Cart().Snapshot()),
		ws.WishlistEvent(ctrl.session.Wishlist().Snapshot()),
	)
	ctrl.hub.Register(client)

	// the request context ends with the handler
	ctx := context.WithoutCancel(c.Request.Context())
	go client.WritePump()
	go client.ReadPump(ctx)

	log.Info("WebSocket connection established", map[string]interface{}{
		"client_id": client.ID,
	})
}
