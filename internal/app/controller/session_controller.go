package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/ikkim/storefront-sync/internal/app/service"
	"github.com/ikkim/storefront-sync/internal/auth"
	apperrors "github.com/ikkim/storefront-sync/internal/errors"
	"github.com/ikkim/storefront-sync/internal/middleware"
)

// SessionController drives the identity of the tab.
type SessionController struct {
	session *service.Session
}

func NewSessionController(session *service.Session) *SessionController {
	return &SessionController{session: session}
}

type IdentityResponse struct {
	Known         bool   `json:"known"`
	Authenticated bool   `json:"authenticated"`
	UserID        string `json:"user_id,omitempty"`
	Email         string `json:"email,omitempty"`
}

type SessionResponse struct {
	Identity      IdentityResponse `json:"identity"`
	CartState     service.State    `json:"cart_state"`
	WishlistState service.State    `json:"wishlist_state"`
}

func identityResponse(id auth.Identity) IdentityResponse {
	return IdentityResponse{
		Known:         id.Known,
		Authenticated: id.Authenticated,
		UserID:        id.UserID,
		Email:         id.Email,
	}
}

func (ctrl *SessionController) view() SessionResponse {
	return SessionResponse{
		Identity:      identityResponse(ctrl.session.Identity()),
		CartState:     ctrl.session.Cart().Snapshot().State,
		WishlistState: ctrl.session.Wishlist().Snapshot().State,
	}
}

// GetSession returns who the tab is signed in as
// GET /api/v1/session
func (ctrl *SessionController) GetSession(c *gin.Context) {
	c.JSON(http.StatusOK, ctrl.view())
}

// Login switches the tab to the bearer's account. The guest cart and
// wishlist are merged into it.
// POST /api/v1/session
func (ctrl *SessionController) Login(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	token, ok := middleware.GetAccessToken(c)
	if !ok {
		apperrors.Unauthorized(c, "An access token is required")
		return
	}

	id, err := ctrl.session.Login(c.Request.Context(), token)
	if err != nil {
		log.Warn("Login rejected", map[string]interface{}{
			"error": err.Error(),
		})
		info := apperrors.ParseError(err, "login")
		apperrors.RespondWithError(c, http.StatusUnauthorized, info.Code, info.Message)
		return
	}

	log.Info("Session signed in", map[string]interface{}{
		"user_id": id.UserID,
	})
	c.JSON(http.StatusOK, ctrl.view())
}

// Logout turns the tab back into a guest and keeps the cart as guest data
// DELETE /api/v1/session
func (ctrl *SessionController) Logout(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	prev := ctrl.session.Identity()
	ctrl.session.Logout(c.Request.Context())

	log.Info("Session signed out", map[string]interface{}{
		"user_id": prev.UserID,
	})
	c.JSON(http.StatusOK, ctrl.view())
}
