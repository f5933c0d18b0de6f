package api

import (
	"strconv"

	"bugmarket/database"
	"bugmarket/middleware"
	"bugmarket/models"
	"bugmarket/service"

	"github.com/gin-gonic/gin"
)

// BugHandler 订单大厅
type BugHandler struct {
	bugs *service.BugService
}

// NewBugHandler 创建订单处理器
func NewBugHandler() *BugHandler {
	return &BugHandler{bugs: service.NewBugService(database.DB)}
}

// CreateBugRequest 发布订单请求
type CreateBugRequest struct {
	Title         string `json:"title" binding:"required,max=50" example:"登录页白屏"`
	TechStack     string `json:"tech_stack" binding:"required,max=100" example:"Vue3,Go"`
	Description   string `json:"description" binding:"required" example:"生产环境登录后偶发白屏"`
	ExpectEffect  string `json:"expect_effect" example:"定位原因并修复"`
	CommunityInfo string `json:"community_info" example:"QQ群: 123456"`
}

// UpdateStatusRequest 订单状态更新请求
type UpdateStatusRequest struct {
	Status        *models.BugStatus `json:"status" binding:"required" example:"3"`
	OperationNote string            `json:"operation_note" binding:"max=500" example:"已上线验证"`
}

// parseStatusFilters 解析 status / time_status 查询参数
func parseStatusFilters(c *gin.Context, q *service.BugQuery) bool {
	if s := c.Query("status"); s != "" {
		v, err := strconv.Atoi(s)
		st := models.BugStatus(v)
		if err != nil || !st.Valid() {
			BadRequest(c, "订单状态不合法")
			return false
		}
		q.Status = &st
	}
	if s := c.Query("time_status"); s != "" {
		v, err := strconv.Atoi(s)
		ts := models.TimeStatus(v)
		if err != nil || !ts.Valid() {
			BadRequest(c, "超期状态不合法")
			return false
		}
		q.TimeStatus = &ts
	}
	return true
}

// List 订单列表
// @Summary 订单列表
// @Description 按技术栈、状态、超期状态、关键词筛选订单，无需登录
// @Tags 订单
// @Produce json
// @Param tech_stack query string false "技术栈（模糊匹配）"
// @Param status query int false "订单状态 0待解决 1已承接 2沟通中 3已解决"
// @Param time_status query int false "超期状态 0正常 1即将超期 2已超期"
// @Param keyword query string false "标题或描述关键词"
// @Param page query int false "页码" default(1)
// @Param page_size query int false "每页数量" default(10)
// @Success 200 {object} Response{data=PageResponse{list=[]service.BugView}} "获取成功"
// @Failure 400 {object} Response "请求参数错误"
// @Router /api/bug [get]
func (h *BugHandler) List(c *gin.Context) {
	q := service.BugQuery{
		TechStack: c.Query("tech_stack"),
		Keyword:   c.Query("keyword"),
	}
	if !parseStatusFilters(c, &q) {
		return
	}
	q.Page, q.PageSize = pagination(c)

	list, total, err := h.bugs.List(c.Request.Context(), q)
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, PageResponse{Total: total, Page: q.Page, PageSize: q.PageSize, List: list})
}

// Get 订单详情
// @Summary 订单详情
// @Tags 订单
// @Produce json
// @Param id path int true "订单ID"
// @Success 200 {object} Response{data=service.BugView} "获取成功"
// @Failure 404 {object} Response "订单不存在"
// @Router /api/bug/{id} [get]
func (h *BugHandler) Get(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	view, err := h.bugs.Get(c.Request.Context(), id)
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, view)
}

// Create 发布订单
// @Summary 发布订单
// @Tags 订单
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body CreateBugRequest true "订单信息"
// @Success 200 {object} Response{data=models.Bug} "发布成功"
// @Failure 400 {object} Response "请求参数错误"
// @Router /api/bug [post]
func (h *BugHandler) Create(c *gin.Context) {
	var req CreateBugRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	bug, err := h.bugs.Create(c.Request.Context(), service.CreateBugInput{
		Title:         req.Title,
		TechStack:     req.TechStack,
		Description:   req.Description,
		ExpectEffect:  req.ExpectEffect,
		CommunityInfo: req.CommunityInfo,
	}, currentOperator(c))
	if err != nil {
		RespondError(c, err)
		return
	}
	SuccessWithMessage(c, "发布成功", bug)
}

// Take 承接订单
// @Summary 承接订单
// @Description 仅待解决的订单可承接，并发承接只有一人成功
// @Tags 订单
// @Produce json
// @Security BearerAuth
// @Param id path int true "订单ID"
// @Success 200 {object} Response{data=models.Bug} "承接成功"
// @Failure 404 {object} Response "订单不存在"
// @Failure 409 {object} Response "该订单已被承接"
// @Router /api/bug/{id}/take [post]
func (h *BugHandler) Take(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	bug, err := h.bugs.Take(c.Request.Context(), id, currentOperator(c))
	if err != nil {
		RespondError(c, err)
		return
	}
	SuccessWithMessage(c, "承接成功", bug)
}

// UpdateStatus 更新订单状态
// @Summary 更新订单状态
// @Description 沟通中仅管理员可设置；已解决可由超级管理员、发布者或承接者设置
// @Tags 订单
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "订单ID"
// @Param request body UpdateStatusRequest true "目标状态"
// @Success 200 {object} Response{data=models.Bug} "更新成功"
// @Failure 400 {object} Response "状态值不合法"
// @Failure 403 {object} Response "无权限操作订单状态"
// @Failure 404 {object} Response "订单不存在"
// @Router /api/bug/{id}/status [post]
func (h *BugHandler) UpdateStatus(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	bug, err := h.bugs.UpdateStatus(c.Request.Context(), id, *req.Status, req.OperationNote, currentOperator(c))
	if err != nil {
		RespondError(c, err)
		return
	}
	SuccessWithMessage(c, "状态更新成功", bug)
}

// OrderHandler 我的订单
type OrderHandler struct {
	bugs *service.BugService
}

// NewOrderHandler 创建我的订单处理器
func NewOrderHandler() *OrderHandler {
	return &OrderHandler{bugs: service.NewBugService(database.DB)}
}

// My 我承接的订单
// @Summary 我承接的订单
// @Tags 订单
// @Produce json
// @Security BearerAuth
// @Param status query int false "订单状态"
// @Param page query int false "页码" default(1)
// @Param page_size query int false "每页数量" default(10)
// @Success 200 {object} Response{data=PageResponse{list=[]service.BugView}} "获取成功"
// @Router /api/order/my [get]
func (h *OrderHandler) My(c *gin.Context) {
	h.list(c, service.BugQuery{TakerID: middleware.GetCurrentUserID(c)})
}

// Published 我发布的订单
// @Summary 我发布的订单
// @Tags 订单
// @Produce json
// @Security BearerAuth
// @Param status query int false "订单状态"
// @Param page query int false "页码" default(1)
// @Param page_size query int false "每页数量" default(10)
// @Success 200 {object} Response{data=PageResponse{list=[]service.BugView}} "获取成功"
// @Router /api/order/published [get]
func (h *OrderHandler) Published(c *gin.Context) {
	h.list(c, service.BugQuery{PublisherID: middleware.GetCurrentUserID(c)})
}

func (h *OrderHandler) list(c *gin.Context, q service.BugQuery) {
	if !parseStatusFilters(c, &q) {
		return
	}
	q.Page, q.PageSize = pagination(c)

	list, total, err := h.bugs.List(c.Request.Context(), q)
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, PageResponse{Total: total, Page: q.Page, PageSize: q.PageSize, List: list})
}
