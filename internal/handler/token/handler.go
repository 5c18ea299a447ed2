package token

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/lifehub/reminder-engine/internal/model"
	"github.com/lifehub/reminder-engine/internal/service/token"
	"github.com/lifehub/reminder-engine/pkg/errors"
	"github.com/lifehub/reminder-engine/pkg/httputil"
)

type Handler struct {
	service *token.Service
}

func NewHandler(service *token.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	tokens := r.Group("/push-tokens")
	{
		tokens.POST("", h.Register)
		tokens.POST("/deactivate", h.Deactivate)
		tokens.POST("/deactivate-all", h.DeactivateAll)
		tokens.GET("", h.List)
	}
}

func (h *Handler) Register(c *gin.Context) {
	var req model.RegisterPushTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, errors.Validation(err.Error(), err))
		return
	}

	t, err := h.service.Register(c.Request.Context(), &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, http.StatusCreated, t)
}

func (h *Handler) Deactivate(c *gin.Context) {
	var req model.DeactivatePushTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, errors.Validation(err.Error(), err))
		return
	}
	if !req.Platform.Valid() {
		httputil.RespondWithError(c, errors.Validation("unknown platform", nil))
		return
	}

	if err := h.service.Deactivate(c.Request.Context(), req.UserID, req.DeviceID, req.Platform); err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, http.StatusOK, gin.H{"deactivated": true})
}

func (h *Handler) DeactivateAll(c *gin.Context) {
	var req struct {
		UserID uuid.UUID `json:"user_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, errors.Validation(err.Error(), err))
		return
	}

	if err := h.service.DeactivateAll(c.Request.Context(), req.UserID); err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, http.StatusOK, gin.H{"deactivated": true})
}

func (h *Handler) List(c *gin.Context) {
	userID, err := uuid.Parse(c.Query("user_id"))
	if err != nil {
		httputil.RespondWithError(c, errors.Validation("invalid user ID", err))
		return
	}

	var platform *model.Platform
	if p := c.Query("platform"); p != "" {
		pl := model.Platform(p)
		if !pl.Valid() {
			httputil.RespondWithError(c, errors.Validation("unknown platform", nil))
			return
		}
		platform = &pl
	}

	tokens, err := h.service.ListActive(c.Request.Context(), userID, platform)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, http.StatusOK, tokens)
}
