// Package web exposes the bill run setup journey over HTTP.
package web

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"billing-backend/internal/blocking"
	"billing-backend/internal/creation"
	"billing-backend/internal/engine/current"
	"billing-backend/internal/engine/legacy"
	"billing-backend/internal/regions"
	"billing-backend/internal/setup"
	"billing-backend/internal/shared/server/middleware"
	"billing-backend/internal/shared/server/respond"
	"billing-backend/internal/shared/telemetry"
)

// Checker runs a blocking check.
type Checker interface {
	Check(ctx context.Context, req setup.Request) (blocking.Result, error)
}

// Dispatcher starts the engines for an unblocked request.
type Dispatcher interface {
	Dispatch(ctx context.Context, sessionID string, req setup.Request, result blocking.Result, user creation.User) error
}

// RegionLookup resolves region IDs.
type RegionLookup interface {
	GetByID(ctx context.Context, id string) (regions.Region, error)
}

// Handler wires HTTP handlers to the setup journey.
type Handler struct {
	Sessions   *setup.Service
	Checker    Checker
	Dispatcher Dispatcher
	Regions    RegionLookup
}

// NewHandler constructs a Handler.
func NewHandler(sessions *setup.Service, checker Checker, dispatcher Dispatcher, regionLookup RegionLookup) *Handler {
	return &Handler{Sessions: sessions, Checker: checker, Dispatcher: dispatcher, Regions: regionLookup}
}

// RegisterRoutes attaches setup routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/bill-runs/setup", h.create)
	rg.GET("/bill-runs/setup/:id", h.get)
	rg.PATCH("/bill-runs/setup/:id", h.update)
	rg.GET("/bill-runs/setup/:id/check", h.check)
	rg.POST("/bill-runs/setup/:id/submit", h.submit)
}

type sessionResponse struct {
	SessionID string `json:"sessionId"`
	setup.Data
}

type answersRequest struct {
	Region *string `json:"region" binding:"omitempty,min=1"`
	Type   *string `json:"type" binding:"omitempty,oneof=annual supplementary two_part_tariff two_part_supplementary"`
	Year   *string `json:"year" binding:"omitempty,numeric,len=4"`
	Season *string `json:"season" binding:"omitempty,oneof=summer winter_all_year"`
}

type submitResponse struct {
	Trigger               string `json:"trigger"`
	ToFinancialYearEnding int    `json:"toFinancialYearEnding"`
}

func (h *Handler) create(c *gin.Context) {
	session, err := h.Sessions.Create(c.Request.Context())
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to start bill run setup", nil)
		return
	}
	c.Set("sessionId", session.ID)
	respond.Created(c, gin.H{"sessionId": session.ID})
}

func (h *Handler) get(c *gin.Context) {
	session, ok := h.loadSession(c)
	if !ok {
		return
	}
	respond.OK(c, sessionResponse{SessionID: session.ID, Data: session.Data})
}

func (h *Handler) update(c *gin.Context) {
	id := c.Param("id")
	c.Set("sessionId", id)

	var req answersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "invalid_request", "invalid setup answers", gin.H{"error": err.Error()})
		return
	}
	if req.Region != nil {
		if _, err := h.Regions.GetByID(c.Request.Context(), *req.Region); err != nil {
			if errors.Is(err, regions.ErrNotFound) {
				respond.Error(c, http.StatusUnprocessableEntity, "unknown_region", "region not found", gin.H{"region": *req.Region})
				return
			}
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to look up region", nil)
			return
		}
	}

	session, err := h.Sessions.Update(c.Request.Context(), id, setup.Answers{
		Region: req.Region,
		Type:   req.Type,
		Year:   req.Year,
		Season: req.Season,
	})
	if err != nil {
		h.sessionError(c, err)
		return
	}
	respond.OK(c, sessionResponse{SessionID: session.ID, Data: session.Data})
}

func (h *Handler) check(c *gin.Context) {
	session, req, ok := h.loadRequest(c)
	if !ok {
		return
	}
	result, err := h.Checker.Check(c.Request.Context(), req)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to check for existing bill runs", nil)
		return
	}
	respond.OK(c, PresentCheck(session.ID, req, h.regionName(c, req.RegionID()), result))
}

// submit re-runs the blocking check; another user may have created a run
// since the check page was shown.
func (h *Handler) submit(c *gin.Context) {
	session, req, ok := h.loadRequest(c)
	if !ok {
		return
	}
	ctx := current.WithRequestID(c.Request.Context(), middleware.RequestIDFromContext(c))

	result, err := h.Checker.Check(ctx, req)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to check for existing bill runs", nil)
		return
	}
	if result.Undetermined() {
		view := PresentCheck(session.ID, req, h.regionName(c, req.RegionID()), result)
		respond.Error(c, http.StatusUnprocessableEntity, "cannot_create", view.WarningMessage, view)
		return
	}
	if result.Trigger == blocking.TriggerNeither {
		view := PresentCheck(session.ID, req, h.regionName(c, req.RegionID()), result)
		respond.Error(c, http.StatusConflict, "bill_run_exists", view.WarningMessage, view)
		return
	}

	user := creation.User{Email: middleware.UserEmailFromContext(c)}
	if err := h.Dispatcher.Dispatch(ctx, session.ID, req, result, user); err != nil {
		telemetry.Error("setup.submit.dispatch_failed", map[string]any{
			"session_id": session.ID,
			"trigger":    string(result.Trigger),
			"error":      err.Error(),
		})
		if errors.Is(err, legacy.ErrRejected) {
			respond.Error(c, http.StatusBadGateway, "legacy_rejected", "the legacy billing service refused the bill run", nil)
			return
		}
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to create bill run", nil)
		return
	}
	respond.Accepted(c, submitResponse{
		Trigger:               string(result.Trigger),
		ToFinancialYearEnding: result.ToFinancialYearEnding,
	})
}

func (h *Handler) loadSession(c *gin.Context) (setup.Session, bool) {
	id := c.Param("id")
	c.Set("sessionId", id)
	session, err := h.Sessions.Get(c.Request.Context(), id)
	if err != nil {
		h.sessionError(c, err)
		return setup.Session{}, false
	}
	return session, true
}

func (h *Handler) loadRequest(c *gin.Context) (setup.Session, setup.Request, bool) {
	session, ok := h.loadSession(c)
	if !ok {
		return setup.Session{}, nil, false
	}
	req, err := session.Request()
	if err != nil {
		var incomplete setup.IncompleteError
		if errors.As(err, &incomplete) {
			respond.Error(c, http.StatusUnprocessableEntity, "incomplete", err.Error(), gin.H{"field": incomplete.Field})
			return setup.Session{}, nil, false
		}
		respond.Error(c, http.StatusUnprocessableEntity, "incomplete", err.Error(), nil)
		return setup.Session{}, nil, false
	}
	return session, req, true
}

func (h *Handler) sessionError(c *gin.Context, err error) {
	if errors.Is(err, setup.ErrNotFound) {
		respond.Error(c, http.StatusNotFound, "not_found", "setup session not found", nil)
		return
	}
	respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to load setup session", nil)
}

func (h *Handler) regionName(c *gin.Context, id string) string {
	region, err := h.Regions.GetByID(c.Request.Context(), id)
	if err != nil {
		return ""
	}
	return region.DisplayName
}
