package api

import (
	"log/slog"
	"strconv"

	"bugmarket/config"
	"bugmarket/database"
	"bugmarket/models"
	"bugmarket/service"

	"github.com/gin-gonic/gin"
)

// AdminHandler 后台订单、超期规则、操作日志
type AdminHandler struct {
	cfg     *config.Config
	bugs    *service.BugService
	rules   *service.TimeRuleService
	audit   *service.AuditService
	monitor *service.Monitor
}

// NewAdminHandler 创建后台处理器，monitor 为 nil 时手动巡检使用单机实例
func NewAdminHandler(cfg *config.Config, monitor *service.Monitor) *AdminHandler {
	if monitor == nil {
		monitor = service.NewMonitor(database.DB, nil, slog.Default(), nil, cfg.Monitor.Interval, cfg.Monitor.LockTTL)
	}
	return &AdminHandler{
		cfg:     cfg,
		bugs:    service.NewBugService(database.DB),
		rules:   service.NewTimeRuleService(database.DB),
		audit:   service.NewAuditService(database.DB),
		monitor: monitor,
	}
}

// ListOrders 后台订单列表
// @Summary 后台订单列表
// @Tags 后台-订单
// @Produce json
// @Security BearerAuth
// @Param tech_stack query string false "技术栈"
// @Param status query int false "订单状态"
// @Param time_status query int false "超期状态"
// @Param keyword query string false "关键词"
// @Param publisher_id query int false "发布者ID"
// @Param taker_id query int false "承接者ID"
// @Param page query int false "页码" default(1)
// @Param page_size query int false "每页数量" default(10)
// @Success 200 {object} Response{data=PageResponse{list=[]service.BugView}} "获取成功"
// @Failure 403 {object} Response "权限不足"
// @Router /api/admin/orders [get]
func (h *AdminHandler) ListOrders(c *gin.Context) {
	q, ok := h.orderQuery(c)
	if !ok {
		return
	}
	list, total, err := h.bugs.List(c.Request.Context(), q)
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, PageResponse{Total: total, Page: q.Page, PageSize: q.PageSize, List: list})
}

func (h *AdminHandler) orderQuery(c *gin.Context) (service.BugQuery, bool) {
	q := service.BugQuery{
		TechStack: c.Query("tech_stack"),
		Keyword:   c.Query("keyword"),
	}
	if !parseStatusFilters(c, &q) {
		return q, false
	}
	if s := c.Query("publisher_id"); s != "" {
		id, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			BadRequest(c, "无效的发布者ID")
			return q, false
		}
		q.PublisherID = uint(id)
	}
	if s := c.Query("taker_id"); s != "" {
		id, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			BadRequest(c, "无效的承接者ID")
			return q, false
		}
		q.TakerID = uint(id)
	}
	q.Page, q.PageSize = pagination(c)
	return q, true
}

// GetOrder 后台订单详情
// @Summary 后台订单详情
// @Tags 后台-订单
// @Produce json
// @Security BearerAuth
// @Param id path int true "订单ID"
// @Success 200 {object} Response{data=service.BugView} "获取成功"
// @Failure 404 {object} Response "订单不存在"
// @Router /api/admin/orders/{id} [get]
func (h *AdminHandler) GetOrder(c *gin.Context) {
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

// StatusCount 单个状态的订单数
type StatusCount struct {
	Status models.BugStatus `json:"status"`
	Label  string           `json:"label"`
	Count  int64            `json:"count"`
}

// OrderStats 订单统计
type OrderStats struct {
	Total    int64         `json:"total"`
	ByStatus []StatusCount `json:"by_status"`
}

// GetOrderStats 各状态订单数
// @Summary 订单统计
// @Tags 后台-订单
// @Produce json
// @Security BearerAuth
// @Success 200 {object} Response{data=OrderStats} "获取成功"
// @Router /api/admin/orders/stats [get]
func (h *AdminHandler) GetOrderStats(c *gin.Context) {
	counts, total, err := h.bugs.Stats(c.Request.Context())
	if err != nil {
		RespondError(c, err)
		return
	}
	stats := OrderStats{Total: total, ByStatus: make([]StatusCount, 0, len(models.AllBugStatuses))}
	for _, st := range models.AllBugStatuses {
		stats.ByStatus = append(stats.ByStatus, StatusCount{Status: st, Label: st.Label(), Count: counts[st]})
	}
	Success(c, stats)
}

// OverdueBugs 超期订单列表，未指定 time_status 时返回即将超期和已超期
// @Summary 超期订单列表
// @Tags 后台-订单
// @Produce json
// @Security BearerAuth
// @Param time_status query int false "超期状态 1即将超期 2已超期"
// @Param status query int false "订单状态"
// @Param page query int false "页码" default(1)
// @Param page_size query int false "每页数量" default(10)
// @Success 200 {object} Response{data=PageResponse{list=[]service.BugView}} "获取成功"
// @Router /api/admin/overdue-bugs [get]
func (h *AdminHandler) OverdueBugs(c *gin.Context) {
	q, ok := h.orderQuery(c)
	if !ok {
		return
	}
	if q.TimeStatus == nil {
		q.TimeStatusIn = []models.TimeStatus{models.TimeStatusWarning, models.TimeStatusExpired}
	}
	list, total, err := h.bugs.List(c.Request.Context(), q)
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, PageResponse{Total: total, Page: q.Page, PageSize: q.PageSize, List: list})
}

// ManualInterventionRequest 人工介入请求
type ManualInterventionRequest struct {
	BugID         uint              `json:"bug_id" binding:"required" example:"1"`
	Status        *models.BugStatus `json:"status" binding:"required" example:"0"`
	OperationNote string            `json:"operation_note" binding:"required,max=500" example:"承接人失联，重新开放"`
}

// ManualIntervention 人工介入
// @Summary 人工介入
// @Description 超级管理员将订单强制设置为任意状态，设为待解决时清空承接信息
// @Tags 后台-订单
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body ManualInterventionRequest true "介入信息"
// @Success 200 {object} Response{data=models.Bug} "操作成功"
// @Failure 400 {object} Response "请求参数错误"
// @Failure 403 {object} Response "权限不足"
// @Failure 404 {object} Response "订单不存在"
// @Router /api/admin/manual-intervention [post]
func (h *AdminHandler) ManualIntervention(c *gin.Context) {
	var req ManualInterventionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	bug, err := h.bugs.ManualIntervention(c.Request.Context(), req.BugID, *req.Status, req.OperationNote, currentOperator(c))
	if err != nil {
		RespondError(c, err)
		return
	}
	SuccessWithMessage(c, "人工介入成功", bug)
}

// ListTimeRules 超期规则列表
// @Summary 超期规则列表
// @Tags 后台-超期规则
// @Produce json
// @Security BearerAuth
// @Param all query bool false "是否包含已停用规则"
// @Success 200 {object} Response{data=[]models.TimeRule} "获取成功"
// @Router /api/admin/time-rules [get]
func (h *AdminHandler) ListTimeRules(c *gin.Context) {
	all, _ := strconv.ParseBool(c.DefaultQuery("all", "true"))
	rules, err := h.rules.List(c.Request.Context(), all)
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, rules)
}

// UpdateTimeRuleRequest 修改规则请求，未传字段不修改
type UpdateTimeRuleRequest struct {
	WarnHour   *int  `json:"warn_hour" example:"24"`
	ExpireHour *int  `json:"expire_hour" example:"72"`
	IsEnable   *bool `json:"is_enable" example:"true"`
}

// UpdateTimeRule 修改超期规则
// @Summary 修改超期规则
// @Tags 后台-超期规则
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "规则ID"
// @Param request body UpdateTimeRuleRequest true "规则参数"
// @Success 200 {object} Response{data=models.TimeRule} "修改成功"
// @Failure 400 {object} Response "预警时长须大于 0 且小于超期时长"
// @Failure 404 {object} Response "超期规则不存在"
// @Router /api/admin/time-rules/{id} [put]
func (h *AdminHandler) UpdateTimeRule(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req UpdateTimeRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	rule, err := h.rules.Update(c.Request.Context(), id, service.TimeRuleUpdate{
		WarnHour:   req.WarnHour,
		ExpireHour: req.ExpireHour,
		IsEnable:   req.IsEnable,
	})
	if err != nil {
		RespondError(c, err)
		return
	}
	SuccessWithMessage(c, "修改成功", rule)
}

// RunSweep 立即执行一次超期巡检
// @Summary 立即巡检
// @Tags 后台-超期规则
// @Produce json
// @Security BearerAuth
// @Success 200 {object} Response{data=service.SweepResult} "巡检完成"
// @Failure 500 {object} Response "巡检失败"
// @Router /api/admin/time-rules/sweep [post]
func (h *AdminHandler) RunSweep(c *gin.Context) {
	result, err := h.monitor.Sweep(c.Request.Context())
	if err != nil {
		InternalError(c, SafeErrorMessage(err, "超期巡检失败"))
		return
	}
	SuccessWithMessage(c, "巡检完成", result)
}

// ListOperationLogs 操作日志
// @Summary 操作日志
// @Tags 后台-操作日志
// @Produce json
// @Security BearerAuth
// @Param bug_id query int false "订单ID"
// @Param page query int false "页码" default(1)
// @Param page_size query int false "每页数量" default(10)
// @Success 200 {object} Response{data=PageResponse{list=[]service.LogView}} "获取成功"
// @Router /api/admin/operation-logs [get]
func (h *AdminHandler) ListOperationLogs(c *gin.Context) {
	var bugID uint
	if s := c.Query("bug_id"); s != "" {
		id, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			BadRequest(c, "无效的订单ID")
			return
		}
		bugID = uint(id)
	}
	page, pageSize := pagination(c)
	logs, total, err := h.audit.List(c.Request.Context(), bugID, page, pageSize)
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, PageResponse{Total: total, Page: page, PageSize: pageSize, List: logs})
}

// ResetDatabase 清空业务数据并重新初始化
// @Summary 重置数据库
// @Description 清空操作日志、订单、用户、超期规则，并重新写入默认账号与规则
// @Tags 后台-系统
// @Produce json
// @Security BearerAuth
// @Success 200 {object} Response "重置成功"
// @Failure 500 {object} Response "重置失败"
// @Router /api/admin/db/reset [post]
func (h *AdminHandler) ResetDatabase(c *gin.Context) {
	op := currentOperator(c)
	slog.Warn("数据库重置", "operator_id", op.ID, "ip", op.IP)
	if err := database.Reset(c.Request.Context(), database.DB, h.cfg.Seed.DefaultPassword, slog.Default()); err != nil {
		InternalError(c, SafeErrorMessage(err, "重置数据库失败"))
		return
	}
	SuccessWithMessage(c, "数据库已重置，请使用默认账号重新登录", nil)
}
