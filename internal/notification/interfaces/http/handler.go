package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/wyfcoding/pkg/response"

	"github.com/fundflow/backoffice/internal/notification/application"
	"github.com/fundflow/backoffice/internal/notification/domain"
	"github.com/fundflow/backoffice/pkg/authn"
	"github.com/fundflow/backoffice/pkg/logger"
)

// NotificationHandler HTTP 处理器
// 负责处理通知查询与已读标记相关的 HTTP 请求
type NotificationHandler struct {
	manager *application.NotificationManager
	query   *application.NotificationQueryService
}

// NewNotificationHandler 创建 HTTP 处理器实例
func NewNotificationHandler(manager *application.NotificationManager, query *application.NotificationQueryService) *NotificationHandler {
	return &NotificationHandler{manager: manager, query: query}
}

// RegisterRoutes 注册路由，所有路由都要求已通过鉴权中间件
func (h *NotificationHandler) RegisterRoutes(router *gin.RouterGroup) {
	api := router.Group("/api/v1/notifications")
	{
		api.GET("", h.ListBySilo)
		api.GET("/application/:id", h.ListByApplication)
		api.PUT("/:id/read", h.MarkRead)
	}
}

// ListBySilo 按 silo 分页列出通知
func (h *NotificationHandler) ListBySilo(c *gin.Context) {
	caller, ok := authn.FromGin(c)
	if !ok {
		response.ErrorWithStatus(c, http.StatusUnauthorized, authn.ErrMissingCredential.Error(), "")
		return
	}

	siloID := c.Query("silo_id")
	if siloID == "" {
		response.ErrorWithStatus(c, http.StatusBadRequest, "silo_id is required", "")
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	notifications, err := h.query.ListBySilo(c.Request.Context(), caller, siloID, limit, offset)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, gin.H{"silo_id": siloID, "notifications": notifications})
}

// ListByApplication 按申请列出通知
func (h *NotificationHandler) ListByApplication(c *gin.Context) {
	caller, ok := authn.FromGin(c)
	if !ok {
		response.ErrorWithStatus(c, http.StatusUnauthorized, authn.ErrMissingCredential.Error(), "")
		return
	}

	notifications, err := h.query.ListByApplication(c.Request.Context(), caller, c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, gin.H{"app_id": c.Param("id"), "notifications": notifications})
}

// MarkRead 标记通知为已读
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	caller, ok := authn.FromGin(c)
	if !ok {
		response.ErrorWithStatus(c, http.StatusUnauthorized, authn.ErrMissingCredential.Error(), "")
		return
	}
	n, err := h.manager.MarkRead(c.Request.Context(), caller, c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, n)
}

func (h *NotificationHandler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, authn.ErrForbidden):
		response.ErrorWithStatus(c, http.StatusForbidden, err.Error(), "")
	case errors.Is(err, domain.ErrNotificationNotFound):
		response.ErrorWithStatus(c, http.StatusNotFound, err.Error(), "")
	default:
		logger.Error(c.Request.Context(), "Unhandled notification error", "error", err)
		response.ErrorWithStatus(c, http.StatusInternalServerError, err.Error(), "")
	}
}
