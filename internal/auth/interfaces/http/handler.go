package http

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/wyfcoding/pkg/response"

	"github.com/fundflow/backoffice/internal/auth/application"
	"github.com/fundflow/backoffice/internal/auth/domain"
	"github.com/fundflow/backoffice/pkg/authn"
	"github.com/fundflow/backoffice/pkg/logger"
)

// AuthHandler HTTP 处理器
// 负责处理注册、登录、注销与 silo 分配相关的 HTTP 请求
type AuthHandler struct {
	cmd   *application.AuthCommandService
	query *application.AuthQueryService
}

// NewAuthHandler 创建 HTTP 处理器实例
func NewAuthHandler(cmd *application.AuthCommandService, query *application.AuthQueryService) *AuthHandler {
	return &AuthHandler{cmd: cmd, query: query}
}

// RegisterPublicRoutes 注册无需鉴权的路由
func (h *AuthHandler) RegisterPublicRoutes(router *gin.RouterGroup) {
	api := router.Group("/api/v1/auth")
	{
		api.POST("/register", h.Register)
		api.POST("/login", h.Login)
	}
}

// RegisterProtectedRoutes 注册需要鉴权的路由
func (h *AuthHandler) RegisterProtectedRoutes(router *gin.RouterGroup) {
	api := router.Group("/api/v1/auth")
	{
		api.POST("/logout", h.Logout)
		api.GET("/me", h.Me)
	}

	users := router.Group("/api/v1/users")
	{
		users.GET("/:id", h.GetUser)
		users.POST("/:id/silos", h.AssignSilo)
		users.DELETE("/:id/silos/:silo", h.RevokeSilo)
	}
}

// RegisterRequest 注册请求
type RegisterRequest struct {
	Email    string   `json:"email" binding:"required,email"`
	Password string   `json:"password" binding:"required,min=8"`
	Role     string   `json:"role"`
	Silos    []string `json:"silos"`
}

// Register 用户注册
func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, err.Error(), "")
		return
	}

	userID, err := h.cmd.Register(c.Request.Context(), application.RegisterCommand{
		Email:    req.Email,
		Password: req.Password,
		Role:     req.Role,
		Silos:    req.Silos,
	})
	if err != nil {
		if errors.Is(err, domain.ErrEmailTaken) {
			response.ErrorWithStatus(c, http.StatusConflict, err.Error(), "")
			return
		}
		logger.Error(c.Request.Context(), "Failed to register user", "error", err)
		response.ErrorWithStatus(c, http.StatusInternalServerError, err.Error(), "")
		return
	}

	c.JSON(http.StatusCreated, gin.H{"user_id": userID})
}

// LoginRequest 登录请求
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// Login 用户登录
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, err.Error(), "")
		return
	}

	result, err := h.cmd.Login(c.Request.Context(), application.LoginCommand{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		if errors.Is(err, domain.ErrInvalidCredentials) {
			response.ErrorWithStatus(c, http.StatusUnauthorized, err.Error(), "")
			return
		}
		logger.Error(c.Request.Context(), "Failed to login", "error", err)
		response.ErrorWithStatus(c, http.StatusInternalServerError, err.Error(), "")
		return
	}

	response.Success(c, result)
}

// Logout 注销当前会话
func (h *AuthHandler) Logout(c *gin.Context) {
	token := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
	if err := h.cmd.Logout(c.Request.Context(), token); err != nil {
		logger.Error(c.Request.Context(), "Failed to logout", "error", err)
		response.ErrorWithStatus(c, http.StatusInternalServerError, err.Error(), "")
		return
	}
	response.Success(c, gin.H{"status": "logged_out"})
}

// Me 返回调用者自己的档案
func (h *AuthHandler) Me(c *gin.Context) {
	caller, ok := authn.FromGin(c)
	if !ok {
		response.ErrorWithStatus(c, http.StatusUnauthorized, authn.ErrMissingCredential.Error(), "")
		return
	}

	user, err := h.query.GetProfile(c.Request.Context(), caller)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, user)
}

// GetUser 返回指定用户档案，仅管理员可调用
func (h *AuthHandler) GetUser(c *gin.Context) {
	caller, ok := authn.FromGin(c)
	if !ok {
		response.ErrorWithStatus(c, http.StatusUnauthorized, authn.ErrMissingCredential.Error(), "")
		return
	}

	userID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, "invalid user id", "")
		return
	}

	user, err := h.query.GetUser(c.Request.Context(), caller, uint(userID))
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, user)
}

// AssignSiloRequest silo 分配请求
type AssignSiloRequest struct {
	SiloID string `json:"silo_id" binding:"required"`
}

// AssignSilo 为用户分配 silo
func (h *AuthHandler) AssignSilo(c *gin.Context) {
	caller, ok := authn.FromGin(c)
	if !ok {
		response.ErrorWithStatus(c, http.StatusUnauthorized, authn.ErrMissingCredential.Error(), "")
		return
	}

	userID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, "invalid user id", "")
		return
	}

	var req AssignSiloRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, err.Error(), "")
		return
	}

	user, err := h.cmd.AssignSilo(c.Request.Context(), caller, uint(userID), req.SiloID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, user)
}

// RevokeSilo 收回用户的 silo 分配
func (h *AuthHandler) RevokeSilo(c *gin.Context) {
	caller, ok := authn.FromGin(c)
	if !ok {
		response.ErrorWithStatus(c, http.StatusUnauthorized, authn.ErrMissingCredential.Error(), "")
		return
	}

	userID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, "invalid user id", "")
		return
	}

	user, err := h.cmd.RevokeSilo(c.Request.Context(), caller, uint(userID), c.Param("silo"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, user)
}

func (h *AuthHandler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, authn.ErrForbidden):
		response.ErrorWithStatus(c, http.StatusForbidden, err.Error(), "")
	case errors.Is(err, domain.ErrUserNotFound):
		response.ErrorWithStatus(c, http.StatusNotFound, err.Error(), "")
	default:
		logger.Error(c.Request.Context(), "Unhandled auth error", "error", err)
		response.ErrorWithStatus(c, http.StatusInternalServerError, err.Error(), "")
	}
}
