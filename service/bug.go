package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"bugmarket/metrics"
	"bugmarket/models"
	"bugmarket/policy"

	"gorm.io/gorm"
)

// BugService 订单生命周期
type BugService struct {
	db  *gorm.DB
	now func() time.Time
}

// NewBugService 创建订单服务
func NewBugService(db *gorm.DB) *BugService {
	return &BugService{db: db, now: time.Now}
}

// CreateBugInput 发布订单参数
type CreateBugInput struct {
	Title         string
	TechStack     string
	Description   string
	ExpectEffect  string
	CommunityInfo string
}

// BugView 订单及发布者、承接者摘要
type BugView struct {
	models.Bug
	StatusLabel     string            `json:"status_label"`
	TimeStatusLabel string            `json:"time_status_label"`
	Publisher       *models.UserBrief `json:"publisher"`
	Taker           *models.UserBrief `json:"taker"`
}

// BugQuery 订单列表筛选条件，零值表示不过滤
type BugQuery struct {
	TechStack    string
	Keyword      string
	Status       *models.BugStatus
	TimeStatus   *models.TimeStatus
	TimeStatusIn []models.TimeStatus
	PublisherID  uint
	TakerID      uint
	Page         int
	PageSize     int
}

// Create 发布订单
func (s *BugService) Create(ctx context.Context, in CreateBugInput, op Operator) (*models.Bug, error) {
	bug := &models.Bug{
		Title:        strings.TrimSpace(in.Title),
		TechStack:    strings.TrimSpace(in.TechStack),
		Description:  in.Description,
		ExpectEffect: in.ExpectEffect,
		PublisherID:  op.ID,
		Status:       models.BugStatusPending,
		TimeStatus:   models.TimeStatusNormal,
	}
	if info := strings.TrimSpace(in.CommunityInfo); info != "" {
		bug.CommunityInfo = &info
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(bug).Error; err != nil {
			return Internal("发布订单失败", err)
		}
		return writeLog(tx, op, &bug.ID, models.OpBugPublish, "发布订单: "+bug.Title)
	})
	if err != nil {
		return nil, err
	}
	metrics.OrderTransitionsTotal.WithLabelValues("publish").Inc()
	return bug, nil
}

// Take 承接订单，仅待解决状态可承接，并发承接只有一个成功
func (s *BugService) Take(ctx context.Context, id uint, op Operator) (*models.Bug, error) {
	var bug models.Bug
	if err := s.db.WithContext(ctx).First(&bug, id).Error; err != nil {
		return nil, dbError(err, "订单不存在", "查询订单失败")
	}
	if bug.Status != models.BugStatusPending {
		return nil, Conflict("该订单已被承接")
	}

	takeTime := s.now()
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 写入时再次校验状态
		res := tx.Model(&models.Bug{}).
			Where("id = ? AND status = ?", id, models.BugStatusPending).
			Updates(map[string]interface{}{
				"taker_id":  op.ID,
				"take_time": takeTime,
				"status":    models.BugStatusTaken,
			})
		if res.Error != nil {
			return Internal("承接订单失败", res.Error)
		}
		if res.RowsAffected == 0 {
			return Conflict("该订单已被承接")
		}
		return writeLog(tx, op, &bug.ID, models.OpBugTake, "承接订单: "+bug.Title)
	})
	if err != nil {
		return nil, err
	}

	takerID := op.ID
	bug.TakerID = &takerID
	bug.TakeTime = &takeTime
	bug.Status = models.BugStatusTaken
	bug.LastUpdateTime = takeTime
	metrics.OrderTransitionsTotal.WithLabelValues("take").Inc()
	return &bug, nil
}

// UpdateStatus 普通状态流转：沟通中仅管理员，已解决为超级管理员或订单相关人
func (s *BugService) UpdateStatus(ctx context.Context, id uint, target models.BugStatus, note string, op Operator) (*models.Bug, error) {
	var bug models.Bug
	if err := s.db.WithContext(ctx).First(&bug, id).Error; err != nil {
		return nil, dbError(err, "订单不存在", "查询订单失败")
	}

	if err := policy.CanTransition(policy.Actor{ID: op.ID, Role: op.Role}, &bug, target); err != nil {
		if errors.Is(err, policy.ErrInvalidTarget) {
			return nil, BadRequest(err.Error())
		}
		return nil, Forbidden(err.Error())
	}
	// 未承接的订单没有承接人，只能走人工介入
	if bug.Status == models.BugStatusPending {
		return nil, BadRequest("订单尚未被承接，无法更新状态")
	}

	from := bug.Status
	updates := map[string]interface{}{"status": target}
	if note != "" {
		updates["operation_note"] = note
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 值未变化时 MySQL 返回的影响行数为 0，订单已在上面查到，不按不存在处理
		if err := tx.Model(&bug).Updates(updates).Error; err != nil {
			return Internal("更新订单状态失败", err)
		}
		return writeLog(tx, op, &bug.ID, models.OpStatusUpdate, statusChangeContent(from, target, note))
	})
	if err != nil {
		return nil, err
	}

	bug.Status = target
	if note != "" {
		bug.OperationNote = &note
	}
	metrics.OrderTransitionsTotal.WithLabelValues("status").Inc()
	return &bug, nil
}

// ManualIntervention 超级管理员强制设置任意状态，改回待解决时清空承接信息
func (s *BugService) ManualIntervention(ctx context.Context, id uint, target models.BugStatus, note string, op Operator) (*models.Bug, error) {
	if !policy.Allowed(policy.ActionManualIntervention, op.Role) {
		return nil, Forbidden("仅超级管理员可人工介入")
	}
	if !target.Valid() {
		return nil, BadRequest("状态值不合法")
	}

	var bug models.Bug
	if err := s.db.WithContext(ctx).First(&bug, id).Error; err != nil {
		return nil, dbError(err, "订单不存在", "查询订单失败")
	}

	from := bug.Status
	updates := map[string]interface{}{
		"status":         target,
		"operation_note": note,
	}
	if target == models.BugStatusPending {
		updates["taker_id"] = nil
		updates["take_time"] = nil
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&bug).Updates(updates).Error; err != nil {
			return Internal("人工介入失败", err)
		}
		return writeLog(tx, op, &bug.ID, models.OpManualIntervention, interventionContent(from, target, note))
	})
	if err != nil {
		return nil, err
	}

	bug.Status = target
	bug.OperationNote = &note
	if target == models.BugStatusPending {
		bug.TakerID = nil
		bug.TakeTime = nil
	}
	metrics.OrderTransitionsTotal.WithLabelValues("manual").Inc()
	return &bug, nil
}

// Get 订单详情
func (s *BugService) Get(ctx context.Context, id uint) (*BugView, error) {
	var bug models.Bug
	if err := s.db.WithContext(ctx).First(&bug, id).Error; err != nil {
		return nil, dbError(err, "订单不存在", "查询订单失败")
	}
	views, err := s.attach(ctx, []models.Bug{bug})
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

// List 分页查询订单
func (s *BugService) List(ctx context.Context, q BugQuery) ([]BugView, int64, error) {
	query := s.filter(ctx, q)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, Internal("查询订单失败", err)
	}

	var bugs []models.Bug
	if err := query.Order("publish_time DESC, id DESC").
		Offset((q.Page - 1) * q.PageSize).Limit(q.PageSize).
		Find(&bugs).Error; err != nil {
		return nil, 0, Internal("查询订单失败", err)
	}

	views, err := s.attach(ctx, bugs)
	if err != nil {
		return nil, 0, err
	}
	return views, total, nil
}

// ListAll 不分页查询，导出使用，limit 为上限
func (s *BugService) ListAll(ctx context.Context, q BugQuery, limit int) ([]BugView, error) {
	var bugs []models.Bug
	if err := s.filter(ctx, q).Order("publish_time DESC, id DESC").Limit(limit).Find(&bugs).Error; err != nil {
		return nil, Internal("查询订单失败", err)
	}
	return s.attach(ctx, bugs)
}

// Stats 各状态订单数
func (s *BugService) Stats(ctx context.Context) (map[models.BugStatus]int64, int64, error) {
	type row struct {
		Status models.BugStatus
		Count  int64
	}
	var rows []row
	if err := s.db.WithContext(ctx).Model(&models.Bug{}).
		Select("status, count(*) as count").
		Group("status").
		Scan(&rows).Error; err != nil {
		return nil, 0, Internal("统计订单失败", err)
	}

	stats := make(map[models.BugStatus]int64, len(models.AllBugStatuses))
	for _, st := range models.AllBugStatuses {
		stats[st] = 0
	}
	var total int64
	for _, r := range rows {
		stats[r.Status] = r.Count
		total += r.Count
	}
	return stats, total, nil
}

func (s *BugService) filter(ctx context.Context, q BugQuery) *gorm.DB {
	query := s.db.WithContext(ctx).Model(&models.Bug{})
	if q.TechStack != "" {
		query = query.Where("tech_stack LIKE ?", "%"+escapeLike(q.TechStack)+"%")
	}
	if q.Keyword != "" {
		kw := "%" + escapeLike(q.Keyword) + "%"
		query = query.Where("(title LIKE ? OR description LIKE ?)", kw, kw)
	}
	if q.Status != nil {
		query = query.Where("status = ?", *q.Status)
	}
	if q.TimeStatus != nil {
		query = query.Where("time_status = ?", *q.TimeStatus)
	} else if len(q.TimeStatusIn) > 0 {
		query = query.Where("time_status IN ?", q.TimeStatusIn)
	}
	if q.PublisherID > 0 {
		query = query.Where("publisher_id = ?", q.PublisherID)
	}
	if q.TakerID > 0 {
		query = query.Where("taker_id = ?", q.TakerID)
	}
	return query
}

// attach 补充发布者、承接者摘要
func (s *BugService) attach(ctx context.Context, bugs []models.Bug) ([]BugView, error) {
	ids := make([]uint, 0, len(bugs)*2)
	for _, b := range bugs {
		ids = append(ids, b.PublisherID)
		if b.TakerID != nil {
			ids = append(ids, *b.TakerID)
		}
	}
	users, err := loadUserBriefs(ctx, s.db, ids)
	if err != nil {
		return nil, err
	}

	views := make([]BugView, 0, len(bugs))
	for _, b := range bugs {
		v := BugView{
			Bug:             b,
			StatusLabel:     b.Status.Label(),
			TimeStatusLabel: b.TimeStatus.Label(),
			Publisher:       users[b.PublisherID],
		}
		if b.TakerID != nil {
			v.Taker = users[*b.TakerID]
		}
		views = append(views, v)
	}
	return views, nil
}

// escapeLike 转义 LIKE 通配符
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, "%", `\%`)
	s = strings.ReplaceAll(s, "_", `\_`)
	return s
}
