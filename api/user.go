package api

import (
	"bugmarket/database"
	"bugmarket/middleware"
	"bugmarket/models"
	"bugmarket/service"

	"github.com/gin-gonic/gin"
)

// UserHandler 用户注册与个人信息
type UserHandler struct {
	users *service.UserService
}

// NewUserHandler 创建用户处理器
func NewUserHandler() *UserHandler {
	return &UserHandler{users: service.NewUserService(database.DB)}
}

// RegisterRequest 注册请求
type RegisterRequest struct {
	Username    string `json:"username" binding:"required" example:"zhangsan"`
	Phone       string `json:"phone" binding:"required" example:"13912345678"`
	Email       string `json:"email" binding:"required,email" example:"zhangsan@example.com"`
	Password    string `json:"password" binding:"required,min=6,max=50" example:"password123"`
	ContactInfo string `json:"contact_info" example:"微信: zhangsan"`
	Intro       string `json:"intro" example:"Go 后端，擅长排查线上问题"`
}

// Register 用户注册
// @Summary 用户注册
// @Description 注册普通用户，手机号、邮箱、用户名在未删除用户中唯一
// @Tags 用户
// @Accept json
// @Produce json
// @Param request body RegisterRequest true "注册信息"
// @Success 200 {object} Response{data=models.User} "注册成功"
// @Failure 400 {object} Response "请求参数错误"
// @Failure 409 {object} Response "手机号、邮箱或用户名已存在"
// @Router /api/user/register [post]
func (h *UserHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	user, err := h.users.Register(c.Request.Context(), service.UserInput{
		Username:    req.Username,
		Phone:       req.Phone,
		Email:       req.Email,
		Password:    req.Password,
		ContactInfo: req.ContactInfo,
		Intro:       req.Intro,
	})
	if err != nil {
		RespondError(c, err)
		return
	}

	SuccessWithMessage(c, "注册成功", user)
}

// ProfileResponse 个人信息
type ProfileResponse struct {
	models.User
	RoleLabel string `json:"role_label"`
}

// GetProfile 获取当前用户信息
// @Summary 获取当前用户信息
// @Tags 用户
// @Produce json
// @Security BearerAuth
// @Success 200 {object} Response{data=ProfileResponse} "获取成功"
// @Failure 401 {object} Response "未授权"
// @Router /api/user/profile [get]
func (h *UserHandler) GetProfile(c *gin.Context) {
	user, err := h.users.Get(c.Request.Context(), middleware.GetCurrentUserID(c))
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, ProfileResponse{User: *user, RoleLabel: user.Role.Label()})
}

// ChangePasswordRequest 修改密码请求
type ChangePasswordRequest struct {
	OldPassword string `json:"old_password" binding:"required" example:"oldpassword123"`
	NewPassword string `json:"new_password" binding:"required,min=6,max=50" example:"newpassword123"`
}

// ChangePassword 修改密码
// @Summary 修改密码
// @Description 修改当前用户密码
// @Tags 用户
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body ChangePasswordRequest true "密码信息"
// @Success 200 {object} Response "修改成功"
// @Failure 400 {object} Response "请求参数错误或原密码错误"
// @Router /api/user/password [put]
func (h *UserHandler) ChangePassword(c *gin.Context) {
	var req ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	if err := h.users.ChangePassword(c.Request.Context(), middleware.GetCurrentUserID(c), req.OldPassword, req.NewPassword); err != nil {
		RespondError(c, err)
		return
	}
	SuccessWithMessage(c, "密码修改成功", nil)
}
