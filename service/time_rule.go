package service

import (
	"context"

	"bugmarket/models"

	"gorm.io/gorm"
)

// TimeRuleService 超期规则维护
type TimeRuleService struct {
	db *gorm.DB
}

// NewTimeRuleService 创建规则服务
func NewTimeRuleService(db *gorm.DB) *TimeRuleService {
	return &TimeRuleService{db: db}
}

// TimeRuleUpdate 规则修改参数，nil 字段不修改
type TimeRuleUpdate struct {
	WarnHour   *int
	ExpireHour *int
	IsEnable   *bool
}

// List 规则列表，includeDisabled 为 false 时只返回启用的规则
func (s *TimeRuleService) List(ctx context.Context, includeDisabled bool) ([]models.TimeRule, error) {
	query := s.db.WithContext(ctx).Model(&models.TimeRule{})
	if !includeDisabled {
		query = query.Where("is_enable = ?", true)
	}
	var rules []models.TimeRule
	if err := query.Order("status_type ASC, id ASC").Find(&rules).Error; err != nil {
		return nil, Internal("查询超期规则失败", err)
	}
	return rules, nil
}

// Update 修改规则阈值或启用状态，要求 0 < 预警 < 超期
func (s *TimeRuleService) Update(ctx context.Context, id uint, in TimeRuleUpdate) (*models.TimeRule, error) {
	var rule models.TimeRule
	if err := s.db.WithContext(ctx).First(&rule, id).Error; err != nil {
		return nil, dbError(err, "超期规则不存在", "查询超期规则失败")
	}

	updates := map[string]interface{}{}
	if in.WarnHour != nil {
		rule.WarnHour = *in.WarnHour
		updates["warn_hour"] = *in.WarnHour
	}
	if in.ExpireHour != nil {
		rule.ExpireHour = *in.ExpireHour
		updates["expire_hour"] = *in.ExpireHour
	}
	if in.IsEnable != nil {
		rule.IsEnable = *in.IsEnable
		updates["is_enable"] = *in.IsEnable
	}
	if len(updates) == 0 {
		return &rule, nil
	}
	if rule.WarnHour <= 0 || rule.ExpireHour <= rule.WarnHour {
		return nil, BadRequest("预警时长须大于 0 且小于超期时长")
	}

	if err := s.db.WithContext(ctx).Model(&rule).Updates(updates).Error; err != nil {
		return nil, Internal("更新超期规则失败", err)
	}
	return &rule, nil
}
