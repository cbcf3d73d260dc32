package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/wyfcoding/pkg/response"

	"github.com/fundflow/backoffice/internal/pipeline/application"
	"github.com/fundflow/backoffice/internal/pipeline/domain"
	"github.com/fundflow/backoffice/pkg/authn"
	"github.com/fundflow/backoffice/pkg/logger"
)

// PipelineHandler HTTP 处理器
// 负责处理管线看板与阶段流转相关的 HTTP 请求
type PipelineHandler struct {
	cmd   *application.PipelineCommandService
	query *application.PipelineQueryService
}

// NewPipelineHandler 创建 HTTP 处理器实例
func NewPipelineHandler(cmd *application.PipelineCommandService, query *application.PipelineQueryService) *PipelineHandler {
	return &PipelineHandler{cmd: cmd, query: query}
}

// RegisterRoutes 注册路由，所有路由都要求已通过鉴权中间件
func (h *PipelineHandler) RegisterRoutes(router *gin.RouterGroup) {
	pipeline := router.Group("/api/v1/pipeline")
	{
		pipeline.GET("/:id", h.GetBoard)       // silo 看板
		pipeline.POST("/:id/move", h.MoveCard) // 阶段流转
	}

	apps := router.Group("/api/v1/applications")
	{
		apps.POST("", h.CreateApplication)
		apps.GET("/:id", h.GetApplication)
		apps.GET("/:id/transitions", h.ListTransitions)
	}
}

// GetBoard 返回 silo 看板：silo 下的申请及其当前阶段
func (h *PipelineHandler) GetBoard(c *gin.Context) {
	caller, ok := authn.FromGin(c)
	if !ok {
		response.ErrorWithStatus(c, http.StatusUnauthorized, authn.ErrMissingCredential.Error(), "")
		return
	}

	siloID := c.Param("id")
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	apps, total, err := h.query.ListBySilo(c.Request.Context(), caller, siloID, limit, offset)
	if err != nil {
		h.writeError(c, err)
		return
	}

	response.Success(c, gin.H{
		"silo_id":      siloID,
		"applications": apps,
		"total":        total,
	})
}

// MoveCardRequest 阶段流转请求
type MoveCardRequest struct {
	Stage string `json:"stage" binding:"required"`
}

// MoveCard 把申请流转到目标阶段。
// 审计写入失败时阶段变更仍然生效，响应携带 warning 字段。
func (h *PipelineHandler) MoveCard(c *gin.Context) {
	caller, ok := authn.FromGin(c)
	if !ok {
		response.ErrorWithStatus(c, http.StatusUnauthorized, authn.ErrMissingCredential.Error(), "")
		return
	}

	appID := c.Param("id")
	var req MoveCardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, err.Error(), "")
		return
	}

	result, err := h.cmd.RequestStageTransition(c.Request.Context(), caller, appID, domain.Stage(req.Stage))
	if err != nil {
		h.writeError(c, err)
		return
	}

	body := gin.H{
		"app_id":        result.Application.AppID,
		"current_stage": result.Application.CurrentStage,
		"changed":       result.Changed,
	}
	if result.AuditPending {
		body["audit_pending"] = true
		body["warning"] = "transition applied but audit record could not be written"
	}
	c.JSON(http.StatusOK, body)
}

// CreateApplicationRequest 创建申请请求
type CreateApplicationRequest struct {
	SiloID          string `json:"silo_id" binding:"required"`
	ProductCategory string `json:"product_category"`
	ApplicantName   string `json:"applicant_name" binding:"required"`
	ApplicantEmail  string `json:"applicant_email" binding:"omitempty,email"`
	LoanAmount      string `json:"loan_amount" binding:"required"`
}

// CreateApplication 创建申请
func (h *PipelineHandler) CreateApplication(c *gin.Context) {
	caller, ok := authn.FromGin(c)
	if !ok {
		response.ErrorWithStatus(c, http.StatusUnauthorized, authn.ErrMissingCredential.Error(), "")
		return
	}

	var req CreateApplicationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, err.Error(), "")
		return
	}

	amount, err := decimal.NewFromString(req.LoanAmount)
	if err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, "invalid loan_amount", "")
		return
	}

	app, err := h.cmd.CreateApplication(c.Request.Context(), caller, application.CreateApplicationCommand{
		SiloID:          req.SiloID,
		ProductCategory: req.ProductCategory,
		ApplicantName:   req.ApplicantName,
		ApplicantEmail:  req.ApplicantEmail,
		LoanAmount:      amount,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, app)
}

// GetApplication 获取单个申请
func (h *PipelineHandler) GetApplication(c *gin.Context) {
	caller, ok := authn.FromGin(c)
	if !ok {
		response.ErrorWithStatus(c, http.StatusUnauthorized, authn.ErrMissingCredential.Error(), "")
		return
	}

	app, err := h.query.GetApplication(c.Request.Context(), caller, c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, app)
}

// ListTransitions 返回申请的审计轨迹
func (h *PipelineHandler) ListTransitions(c *gin.Context) {
	caller, ok := authn.FromGin(c)
	if !ok {
		response.ErrorWithStatus(c, http.StatusUnauthorized, authn.ErrMissingCredential.Error(), "")
		return
	}

	appID := c.Param("id")
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	records, err := h.query.ListTransitions(c.Request.Context(), caller, appID, limit, offset)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, gin.H{"app_id": appID, "transitions": records})
}

// writeError 把领域错误映射到 HTTP 状态码。
// 非法流转返回 409 并携带当前阶段与请求阶段，客户端可据此刷新后重试。
func (h *PipelineHandler) writeError(c *gin.Context, err error) {
	if ite, ok := domain.AsIllegalTransition(err); ok {
		c.JSON(http.StatusConflict, gin.H{
			"error":           ite.Error(),
			"current_stage":   ite.Current,
			"attempted_stage": ite.Requested,
		})
		return
	}

	switch {
	case errors.Is(err, authn.ErrMissingCredential), errors.Is(err, authn.ErrInvalidCredential):
		response.ErrorWithStatus(c, http.StatusUnauthorized, err.Error(), "")
	case errors.Is(err, authn.ErrForbidden):
		response.ErrorWithStatus(c, http.StatusForbidden, err.Error(), "")
	case errors.Is(err, domain.ErrApplicationNotFound):
		response.ErrorWithStatus(c, http.StatusNotFound, err.Error(), "")
	case errors.Is(err, domain.ErrTransitionConflict):
		response.ErrorWithStatus(c, http.StatusConflict, err.Error(), "")
	case errors.Is(err, domain.ErrStoreTimeout):
		response.ErrorWithStatus(c, http.StatusGatewayTimeout, err.Error(), "")
	default:
		logger.Error(c.Request.Context(), "Unhandled pipeline error", "error", err)
		response.ErrorWithStatus(c, http.StatusInternalServerError, err.Error(), "")
	}
}
