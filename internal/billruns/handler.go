package billruns

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"billing-backend/internal/shared/server/middleware"
	"billing-backend/internal/shared/server/respond"
)

// Handler wires HTTP handlers to the service.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches bill run routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/bill-runs", h.list)
	rg.GET("/bill-runs/:id", h.get)
	rg.POST("/bill-runs/:id/cancel", h.cancel)
}

func (h *Handler) list(c *gin.Context) {
	limit := 20
	offset := 0
	if v := c.Query("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			limit = parsed
		}
	}
	if limit < 0 {
		limit = 0
	}
	if limit > 100 {
		limit = 100
	}
	if v := c.Query("offset"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			offset = parsed
		}
	}
	if offset < 0 {
		offset = 0
	}

	runs, err := h.Svc.List(c.Request.Context(), c.Query("regionId"), limit, offset)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to list bill runs", nil)
		return
	}
	respond.OK(c, PresentAll(runs))
}

func (h *Handler) get(c *gin.Context) {
	id := c.Param("id")
	c.Set("billRunId", id)

	run, err := h.Svc.Get(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			respond.Error(c, http.StatusNotFound, "not_found", "bill run not found", nil)
			return
		}
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to fetch bill run", nil)
		return
	}
	respond.OK(c, Present(run))
}

func (h *Handler) cancel(c *gin.Context) {
	id := c.Param("id")
	c.Set("billRunId", id)

	run, err := h.Svc.Cancel(c.Request.Context(), id, middleware.UserEmailFromContext(c))
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			respond.Error(c, http.StatusNotFound, "not_found", "bill run not found", nil)
		case errors.Is(err, ErrNotCancellable):
			respond.Error(c, http.StatusConflict, "not_cancellable", err.Error(), nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to cancel bill run", nil)
		}
		return
	}
	c.Set("statusTransition", "->"+string(StatusCancel))
	respond.OK(c, Present(run))
}
