package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"billing-backend/internal/shared/server/middleware"
	"billing-backend/internal/shared/server/respond"
)

type meResponse struct {
	UserID string `json:"userId"`
	Email  string `json:"email,omitempty"`
	Name   string `json:"name,omitempty"`

	// DevIdentity is set when the caller was identified by the dev header
	// rather than a token.
	DevIdentity bool `json:"devIdentity"`
}

func registerMeRoutes(rg *gin.RouterGroup) {
	rg.GET("/me", meHandler)
}

// meHandler reports who bill runs created by this caller will be attributed to.
func meHandler(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	if userID == "" {
		respond.Error(c, http.StatusUnauthorized, "unauthorized", "missing or invalid token", nil)
		return
	}
	respond.OK(c, meResponse{
		UserID:      userID,
		Email:       middleware.UserEmailFromContext(c),
		Name:        middleware.UserNameFromContext(c),
		DevIdentity: strings.HasPrefix(userID, "dev:"),
	})
}
