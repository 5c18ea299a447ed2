package notification

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/lifehub/reminder-engine/internal/model"
	"github.com/lifehub/reminder-engine/internal/service/notification"
	"github.com/lifehub/reminder-engine/pkg/errors"
	"github.com/lifehub/reminder-engine/pkg/httputil"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

type Handler struct {
	service *notification.Service
}

func NewHandler(service *notification.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	notifications := r.Group("/notifications")
	{
		notifications.POST("", h.Create)
		notifications.GET("", h.List)
		notifications.GET("/:id", h.Get)
		notifications.GET("/:id/attempts", h.ListAttempts)
		notifications.POST("/:id/snooze", h.Snooze)
		notifications.POST("/:id/cancel", h.Cancel)
		notifications.POST("/:id/interactions", h.RecordInteraction)
	}
}

func (h *Handler) Create(c *gin.Context) {
	var req model.CreateNotificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, errors.Validation(err.Error(), err))
		return
	}

	n, err := h.service.Create(c.Request.Context(), &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, http.StatusCreated, n)
}

func (h *Handler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, errors.Validation("invalid notification ID", err))
		return
	}

	n, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, http.StatusOK, n)
}

func (h *Handler) List(c *gin.Context) {
	userID, err := uuid.Parse(c.Query("user_id"))
	if err != nil {
		httputil.RespondWithError(c, errors.Validation("invalid user ID", err))
		return
	}

	filter := &model.ListNotificationsFilter{Limit: defaultListLimit}

	if s := c.Query("status"); s != "" {
		status := model.NotificationStatus(s)
		if !status.Valid() {
			httputil.RespondWithError(c, errors.Validation("invalid status filter", nil))
			return
		}
		filter.Status = &status
	}
	if t := c.Query("type_key"); t != "" {
		filter.TypeKey = &t
	}
	if err := bindPagination(c, filter); err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	list, err := h.service.List(c.Request.Context(), userID, filter)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, http.StatusOK, list)
}

func (h *Handler) ListAttempts(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, errors.Validation("invalid notification ID", err))
		return
	}

	attempts, err := h.service.ListDeliveryAttempts(c.Request.Context(), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, http.StatusOK, attempts)
}

func (h *Handler) Snooze(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, errors.Validation("invalid notification ID", err))
		return
	}

	var req model.SnoozeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, errors.Validation(err.Error(), err))
		return
	}

	n, err := h.service.Snooze(c.Request.Context(), id, req.Minutes)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, http.StatusOK, n)
}

func (h *Handler) Cancel(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, errors.Validation("invalid notification ID", err))
		return
	}

	if err := h.service.Cancel(c.Request.Context(), id); err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, http.StatusOK, gin.H{"cancelled": true})
}

func (h *Handler) RecordInteraction(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, errors.Validation("invalid notification ID", err))
		return
	}

	var req model.RecordInteractionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, errors.Validation(err.Error(), err))
		return
	}

	if err := h.service.RecordInteraction(c.Request.Context(), id, req.Action, req.Payload); err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, http.StatusAccepted, gin.H{"recorded": true})
}

func bindPagination(c *gin.Context, filter *model.ListNotificationsFilter) error {
	var q struct {
		Limit  int `form:"limit" binding:"omitempty,min=1,max=200"`
		Offset int `form:"offset" binding:"omitempty,min=0"`
	}
	if err := c.ShouldBindQuery(&q); err != nil {
		return errors.Validation(err.Error(), err)
	}
	if q.Limit > 0 {
		filter.Limit = q.Limit
	}
	if filter.Limit > maxListLimit {
		filter.Limit = maxListLimit
	}
	filter.Offset = q.Offset
	return nil
}
