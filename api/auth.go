package api

import (
	"bugmarket/config"
	"bugmarket/database"
	"bugmarket/metrics"
	"bugmarket/middleware"
	"bugmarket/models"
	"bugmarket/service"

	"github.com/gin-gonic/gin"
)

// AuthHandler 认证处理器
type AuthHandler struct {
	cfg   *config.Config
	users *service.UserService
}

// NewAuthHandler 创建认证处理器
func NewAuthHandler(cfg *config.Config) *AuthHandler {
	return &AuthHandler{
		cfg:   cfg,
		users: service.NewUserService(database.DB),
	}
}

// LoginRequest 登录请求（手机号、邮箱或用户名）
type LoginRequest struct {
	Account  string `json:"account" binding:"required" example:"13800000001"`
	Password string `json:"password" binding:"required" example:"admin123"`
}

// LoginResponse 登录响应
type LoginResponse struct {
	Token string      `json:"token"`
	User  models.User `json:"user"`
}

// Login 用户登录
// @Summary 用户登录
// @Description 使用手机号、邮箱或用户名加密码登录，返回 JWT token。已禁用账号无法登录。
// @Tags 认证
// @Accept json
// @Produce json
// @Param request body LoginRequest true "登录信息"
// @Success 200 {object} Response{data=LoginResponse} "登录成功"
// @Failure 400 {object} Response "请求参数错误"
// @Failure 401 {object} Response "账号或密码错误"
// @Failure 403 {object} Response "账号已被禁用"
// @Failure 429 {object} Response "登录尝试过于频繁"
// @Router /api/auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	user, err := h.users.Authenticate(c.Request.Context(), req.Account, req.Password)
	if err != nil {
		switch service.KindOf(err) {
		case service.KindUnauthorized:
			metrics.LoginAttemptsTotal.WithLabelValues("failed").Inc()
		case service.KindForbidden:
			metrics.LoginAttemptsTotal.WithLabelValues("disabled").Inc()
		}
		RespondError(c, err)
		return
	}

	token, err := middleware.GenerateToken(user.ID, user.Username, user.Role, h.cfg.JWT.ExpireTime)
	if err != nil {
		InternalError(c, "生成 token 失败")
		return
	}

	metrics.LoginAttemptsTotal.WithLabelValues("success").Inc()
	SuccessWithMessage(c, "登录成功", LoginResponse{
		Token: token,
		User:  *user,
	})
}
