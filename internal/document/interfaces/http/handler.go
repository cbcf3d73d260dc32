package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/wyfcoding/pkg/response"

	"github.com/fundflow/backoffice/internal/document/application"
	"github.com/fundflow/backoffice/internal/document/domain"
	"github.com/fundflow/backoffice/pkg/authn"
	"github.com/fundflow/backoffice/pkg/logger"
)

// DocumentHandler HTTP 处理器
// 负责处理申请文档元数据相关的 HTTP 请求
type DocumentHandler struct {
	svc *application.DocumentService
}

// NewDocumentHandler 创建 HTTP 处理器实例
func NewDocumentHandler(svc *application.DocumentService) *DocumentHandler {
	return &DocumentHandler{svc: svc}
}

// RegisterRoutes 注册路由，所有路由都要求已通过鉴权中间件
func (h *DocumentHandler) RegisterRoutes(router *gin.RouterGroup) {
	apps := router.Group("/api/v1/applications")
	{
		apps.POST("/:id/documents", h.Attach)
		apps.GET("/:id/documents", h.List)
	}

	docs := router.Group("/api/v1/documents")
	{
		docs.DELETE("/:id", h.Remove)
	}
}

// AttachRequest 挂接文档请求
type AttachRequest struct {
	Kind       string `json:"kind"`
	Filename   string `json:"filename" binding:"required"`
	StorageKey string `json:"storage_key" binding:"required"`
}

// Attach 挂接文档到申请
func (h *DocumentHandler) Attach(c *gin.Context) {
	caller, ok := authn.FromGin(c)
	if !ok {
		response.ErrorWithStatus(c, http.StatusUnauthorized, authn.ErrMissingCredential.Error(), "")
		return
	}

	var req AttachRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, err.Error(), "")
		return
	}

	doc, err := h.svc.Attach(c.Request.Context(), caller, application.AttachDocumentCommand{
		AppID:      c.Param("id"),
		Kind:       req.Kind,
		Filename:   req.Filename,
		StorageKey: req.StorageKey,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, doc)
}

// List 列出申请的全部文档
func (h *DocumentHandler) List(c *gin.Context) {
	caller, ok := authn.FromGin(c)
	if !ok {
		response.ErrorWithStatus(c, http.StatusUnauthorized, authn.ErrMissingCredential.Error(), "")
		return
	}

	docs, err := h.svc.List(c.Request.Context(), caller, c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, gin.H{"app_id": c.Param("id"), "documents": docs})
}

// Remove 移除文档元数据
func (h *DocumentHandler) Remove(c *gin.Context) {
	caller, ok := authn.FromGin(c)
	if !ok {
		response.ErrorWithStatus(c, http.StatusUnauthorized, authn.ErrMissingCredential.Error(), "")
		return
	}

	if err := h.svc.Remove(c.Request.Context(), caller, c.Param("id")); err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, gin.H{"status": "removed"})
}

func (h *DocumentHandler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, authn.ErrForbidden):
		response.ErrorWithStatus(c, http.StatusForbidden, err.Error(), "")
	case errors.Is(err, domain.ErrDocumentNotFound), errors.Is(err, domain.ErrApplicationNotFound):
		response.ErrorWithStatus(c, http.StatusNotFound, err.Error(), "")
	default:
		logger.Error(c.Request.Context(), "Unhandled document error", "error", err)
		response.ErrorWithStatus(c, http.StatusInternalServerError, err.Error(), "")
	}
}
