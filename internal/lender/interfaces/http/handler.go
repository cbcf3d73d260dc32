package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/wyfcoding/pkg/response"

	"github.com/fundflow/backoffice/internal/lender/application"
	"github.com/fundflow/backoffice/internal/lender/domain"
	"github.com/fundflow/backoffice/pkg/authn"
	"github.com/fundflow/backoffice/pkg/logger"
)

// LenderHandler HTTP 处理器
// 负责处理放款方与产品相关的 HTTP 请求
type LenderHandler struct {
	svc *application.LenderService
}

// NewLenderHandler 创建 HTTP 处理器实例
func NewLenderHandler(svc *application.LenderService) *LenderHandler {
	return &LenderHandler{svc: svc}
}

// RegisterRoutes 注册路由，所有路由都要求已通过鉴权中间件
func (h *LenderHandler) RegisterRoutes(router *gin.RouterGroup) {
	api := router.Group("/api/v1/lenders")
	{
		api.POST("", h.CreateLender)
		api.GET("", h.ListLenders)
		api.PUT("/:id/active", h.SetActive)
		api.POST("/:id/products", h.CreateProduct)
		api.GET("/:id/products", h.ListProducts)
	}
}

// CreateLenderRequest 登记放款方请求
type CreateLenderRequest struct {
	Name  string   `json:"name" binding:"required"`
	Silos []string `json:"silos"`
}

// CreateLender 登记放款方
func (h *LenderHandler) CreateLender(c *gin.Context) {
	caller, ok := authn.FromGin(c)
	if !ok {
		response.ErrorWithStatus(c, http.StatusUnauthorized, authn.ErrMissingCredential.Error(), "")
		return
	}

	var req CreateLenderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, err.Error(), "")
		return
	}

	lender, err := h.svc.CreateLender(c.Request.Context(), caller, application.CreateLenderCommand{
		Name:  req.Name,
		Silos: req.Silos,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, lender)
}

// ListLenders 列出服务指定 silo 的放款方
func (h *LenderHandler) ListLenders(c *gin.Context) {
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

	lenders, err := h.svc.ListLendersForSilo(c.Request.Context(), caller, siloID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, gin.H{"silo_id": siloID, "lenders": lenders})
}

// SetActiveRequest 启停请求
type SetActiveRequest struct {
	Active *bool `json:"active" binding:"required"`
}

// SetActive 启用或停用放款方
func (h *LenderHandler) SetActive(c *gin.Context) {
	caller, ok := authn.FromGin(c)
	if !ok {
		response.ErrorWithStatus(c, http.StatusUnauthorized, authn.ErrMissingCredential.Error(), "")
		return
	}

	var req SetActiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, err.Error(), "")
		return
	}

	lender, err := h.svc.SetLenderActive(c.Request.Context(), caller, c.Param("id"), *req.Active)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, lender)
}

// CreateProductRequest 登记产品请求
type CreateProductRequest struct {
	Name     string `json:"name" binding:"required"`
	Category string `json:"category"`
	Rate     string `json:"rate" binding:"required"`
}

// CreateProduct 登记产品
func (h *LenderHandler) CreateProduct(c *gin.Context) {
	caller, ok := authn.FromGin(c)
	if !ok {
		response.ErrorWithStatus(c, http.StatusUnauthorized, authn.ErrMissingCredential.Error(), "")
		return
	}

	var req CreateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, err.Error(), "")
		return
	}

	rate, err := decimal.NewFromString(req.Rate)
	if err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, "invalid rate", "")
		return
	}

	product, err := h.svc.CreateProduct(c.Request.Context(), caller, application.CreateProductCommand{
		LenderID: c.Param("id"),
		Name:     req.Name,
		Category: req.Category,
		Rate:     rate,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, product)
}

// ListProducts 列出放款方的产品
func (h *LenderHandler) ListProducts(c *gin.Context) {
	caller, ok := authn.FromGin(c)
	if !ok {
		response.ErrorWithStatus(c, http.StatusUnauthorized, authn.ErrMissingCredential.Error(), "")
		return
	}

	products, err := h.svc.ListProducts(c.Request.Context(), caller, c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, gin.H{"lender_id": c.Param("id"), "products": products})
}

func (h *LenderHandler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, authn.ErrForbidden):
		response.ErrorWithStatus(c, http.StatusForbidden, err.Error(), "")
	case errors.Is(err, domain.ErrLenderNotFound), errors.Is(err, domain.ErrProductNotFound):
		response.ErrorWithStatus(c, http.StatusNotFound, err.Error(), "")
	default:
		logger.Error(c.Request.Context(), "Unhandled lender error", "error", err)
		response.ErrorWithStatus(c, http.StatusInternalServerError, err.Error(), "")
	}
}
