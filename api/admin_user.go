package api

import (
	"strconv"

	"bugmarket/database"
	"bugmarket/models"
	"bugmarket/service"

	"github.com/gin-gonic/gin"
)

// AdminUserHandler 后台用户管理
type AdminUserHandler struct {
	users *service.UserService
}

// NewAdminUserHandler 创建用户管理处理器
func NewAdminUserHandler() *AdminUserHandler {
	return &AdminUserHandler{users: service.NewUserService(database.DB)}
}

// ListUsers 用户列表
// @Summary 用户列表
// @Tags 后台-用户
// @Produce json
// @Security BearerAuth
// @Param keyword query string false "用户名/手机号/邮箱"
// @Param role query int false "角色 0普通用户 1管理员 2超级管理员"
// @Param status query int false "状态 0正常 1禁用"
// @Param page query int false "页码" default(1)
// @Param page_size query int false "每页数量" default(10)
// @Success 200 {object} Response{data=PageResponse{list=[]models.User}} "获取成功"
// @Router /api/admin/users [get]
func (h *AdminUserHandler) ListUsers(c *gin.Context) {
	q := service.UserQuery{Keyword: c.Query("keyword")}
	if s := c.Query("role"); s != "" {
		v, err := strconv.Atoi(s)
		role := models.UserRole(v)
		if err != nil || !role.Valid() {
			BadRequest(c, "角色不合法")
			return
		}
		q.Role = &role
	}
	if s := c.Query("status"); s != "" {
		v, err := strconv.Atoi(s)
		status := models.UserStatus(v)
		if err != nil || !status.Valid() {
			BadRequest(c, "状态不合法")
			return
		}
		q.Status = &status
	}
	q.Page, q.PageSize = pagination(c)

	users, total, err := h.users.List(c.Request.Context(), q)
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, PageResponse{Total: total, Page: q.Page, PageSize: q.PageSize, List: users})
}

// GetUser 用户详情
// @Summary 用户详情
// @Tags 后台-用户
// @Produce json
// @Security BearerAuth
// @Param id path int true "用户ID"
// @Success 200 {object} Response{data=models.User} "获取成功"
// @Failure 404 {object} Response "用户不存在"
// @Router /api/admin/users/{id} [get]
func (h *AdminUserHandler) GetUser(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	user, err := h.users.Get(c.Request.Context(), id)
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, user)
}

// CreateUserRequest 新建用户请求
type CreateUserRequest struct {
	RegisterRequest
	Role models.UserRole `json:"role" example:"1"`
}

// CreateUser 新建用户
// @Summary 新建用户
// @Description 只能创建普通用户或普通管理员
// @Tags 后台-用户
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body CreateUserRequest true "用户信息"
// @Success 200 {object} Response{data=models.User} "创建成功"
// @Failure 400 {object} Response "请求参数错误"
// @Failure 409 {object} Response "手机号、邮箱或用户名已存在"
// @Router /api/admin/users [post]
func (h *AdminUserHandler) CreateUser(c *gin.Context) {
	var req CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	user, err := h.users.Create(c.Request.Context(), service.UserInput{
		Username:    req.Username,
		Phone:       req.Phone,
		Email:       req.Email,
		Password:    req.Password,
		ContactInfo: req.ContactInfo,
		Intro:       req.Intro,
		Role:        req.Role,
	}, currentOperator(c))
	if err != nil {
		RespondError(c, err)
		return
	}
	SuccessWithMessage(c, "创建成功", user)
}

// UpdateUserRequest 编辑用户请求，未传字段不修改
type UpdateUserRequest struct {
	Username    *string `json:"username" example:"lisi"`
	Phone       *string `json:"phone" example:"13912345678"`
	Email       *string `json:"email" binding:"omitempty,email" example:"lisi@example.com"`
	Password    *string `json:"password" example:"newpass123"`
	ContactInfo *string `json:"contact_info"`
	Intro       *string `json:"intro"`
}

// UpdateUser 编辑用户
// @Summary 编辑用户
// @Tags 后台-用户
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "用户ID"
// @Param request body UpdateUserRequest true "用户信息"
// @Success 200 {object} Response{data=models.User} "修改成功"
// @Failure 404 {object} Response "用户不存在"
// @Failure 409 {object} Response "手机号、邮箱或用户名已存在"
// @Router /api/admin/users/{id} [put]
func (h *AdminUserHandler) UpdateUser(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	user, err := h.users.Update(c.Request.Context(), id, service.UserUpdate{
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
	SuccessWithMessage(c, "修改成功", user)
}

// DeleteUser 删除用户（软删除）
// @Summary 删除用户
// @Tags 后台-用户
// @Produce json
// @Security BearerAuth
// @Param id path int true "用户ID"
// @Success 200 {object} Response "删除成功"
// @Failure 400 {object} Response "不能删除当前登录账号"
// @Failure 404 {object} Response "用户不存在"
// @Router /api/admin/users/{id} [delete]
func (h *AdminUserHandler) DeleteUser(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if err := h.users.Delete(c.Request.Context(), id, currentOperator(c)); err != nil {
		RespondError(c, err)
		return
	}
	SuccessWithMessage(c, "删除成功", nil)
}

// AssignRoleRequest 分配角色请求
type AssignRoleRequest struct {
	Role *models.UserRole `json:"role" binding:"required" example:"1"`
}

// AssignRole 分配角色
// @Summary 分配角色
// @Description 只能分配普通用户或普通管理员，超级管理员的角色不可修改
// @Tags 后台-用户
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "用户ID"
// @Param request body AssignRoleRequest true "角色"
// @Success 200 {object} Response{data=models.User} "分配成功"
// @Failure 400 {object} Response "角色不合法"
// @Failure 403 {object} Response "不能修改超级管理员的角色"
// @Router /api/admin/users/{id}/role [put]
func (h *AdminUserHandler) AssignRole(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req AssignRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	user, err := h.users.AssignRole(c.Request.Context(), id, *req.Role)
	if err != nil {
		RespondError(c, err)
		return
	}
	SuccessWithMessage(c, "分配成功", user)
}

// UpdateUserStatusRequest 账号状态请求
type UpdateUserStatusRequest struct {
	Status *models.UserStatus `json:"status" binding:"required" example:"1"`
}

// UpdateUserStatus 启用/禁用账号
// @Summary 启用或禁用账号
// @Description 禁用后无法登录，已签发的 token 在下一次请求时失效
// @Tags 后台-用户
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "用户ID"
// @Param request body UpdateUserStatusRequest true "状态"
// @Success 200 {object} Response{data=models.User} "修改成功"
// @Failure 400 {object} Response "状态不合法"
// @Router /api/admin/users/{id}/status [put]
func (h *AdminUserHandler) UpdateUserStatus(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req UpdateUserStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	user, err := h.users.UpdateStatus(c.Request.Context(), id, *req.Status, currentOperator(c))
	if err != nil {
		RespondError(c, err)
		return
	}
	SuccessWithMessage(c, "修改成功", user)
}
