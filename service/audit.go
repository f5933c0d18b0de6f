package service

import (
	"context"
	"fmt"

	"bugmarket/models"

	"gorm.io/gorm"
)

// Operator 发起操作的用户及来源 IP
type Operator struct {
	ID   uint
	Role models.UserRole
	IP   string
}

func writeLog(tx *gorm.DB, op Operator, bugID *uint, typ models.OperationType, content string) error {
	log := models.OperationLog{
		OperatorID:       op.ID,
		BugID:            bugID,
		OperationType:    typ,
		OperationContent: content,
	}
	if op.IP != "" {
		ip := op.IP
		log.IPAddress = &ip
	}
	if err := tx.Create(&log).Error; err != nil {
		return Internal("写入操作日志失败", err)
	}
	return nil
}

func withNote(content string, note string) string {
	if note == "" {
		return content
	}
	return content + ", 备注: " + note
}

func statusChangeContent(from, to models.BugStatus, note string) string {
	if to == models.BugStatusResolved {
		return withNote("订单已完成", note)
	}
	return withNote(fmt.Sprintf("状态更新: %s -> %s", from.Label(), to.Label()), note)
}

func interventionContent(from, to models.BugStatus, note string) string {
	return withNote(fmt.Sprintf("人工介入: 状态 %s -> %s", from.Label(), to.Label()), note)
}

// LogView 日志列表项
type LogView struct {
	models.OperationLog
	OperationTypeLabel string            `json:"operation_type_label"`
	Operator           *models.UserBrief `json:"operator"`
	Bug                *models.BugBrief  `json:"bug"`
}

// AuditService 操作日志查询
type AuditService struct {
	db *gorm.DB
}

// NewAuditService 创建日志服务
func NewAuditService(db *gorm.DB) *AuditService {
	return &AuditService{db: db}
}

// List 分页查询日志，bugID 为 0 时不过滤
func (s *AuditService) List(ctx context.Context, bugID uint, page, pageSize int) ([]LogView, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.OperationLog{})
	if bugID > 0 {
		query = query.Where("bug_id = ?", bugID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, Internal("查询日志失败", err)
	}

	var logs []models.OperationLog
	if err := query.Order("operation_time DESC, id DESC").
		Offset((page - 1) * pageSize).Limit(pageSize).
		Find(&logs).Error; err != nil {
		return nil, 0, Internal("查询日志失败", err)
	}

	userIDs := make([]uint, 0, len(logs))
	bugIDs := make([]uint, 0, len(logs))
	for _, l := range logs {
		userIDs = append(userIDs, l.OperatorID)
		if l.BugID != nil {
			bugIDs = append(bugIDs, *l.BugID)
		}
	}
	users, err := loadUserBriefs(ctx, s.db, userIDs)
	if err != nil {
		return nil, 0, err
	}
	bugs, err := loadBugBriefs(ctx, s.db, bugIDs)
	if err != nil {
		return nil, 0, err
	}

	views := make([]LogView, 0, len(logs))
	for _, l := range logs {
		v := LogView{OperationLog: l, OperationTypeLabel: l.OperationType.Label(), Operator: users[l.OperatorID]}
		if l.BugID != nil {
			v.Bug = bugs[*l.BugID]
		}
		views = append(views, v)
	}
	return views, total, nil
}

// loadUserBriefs 批量加载用户摘要，已删除用户不返回
func loadUserBriefs(ctx context.Context, db *gorm.DB, ids []uint) (map[uint]*models.UserBrief, error) {
	out := make(map[uint]*models.UserBrief)
	ids = uniqueIDs(ids)
	if len(ids) == 0 {
		return out, nil
	}
	var briefs []models.UserBrief
	if err := db.WithContext(ctx).Model(&models.User{}).
		Select("id", "username", "contact_info").
		Where("id IN ?", ids).
		Find(&briefs).Error; err != nil {
		return nil, Internal("查询用户失败", err)
	}
	for i := range briefs {
		out[briefs[i].ID] = &briefs[i]
	}
	return out, nil
}

func loadBugBriefs(ctx context.Context, db *gorm.DB, ids []uint) (map[uint]*models.BugBrief, error) {
	out := make(map[uint]*models.BugBrief)
	ids = uniqueIDs(ids)
	if len(ids) == 0 {
		return out, nil
	}
	var briefs []models.BugBrief
	if err := db.WithContext(ctx).Model(&models.Bug{}).
		Select("id", "title").
		Where("id IN ?", ids).
		Find(&briefs).Error; err != nil {
		return nil, Internal("查询订单失败", err)
	}
	for i := range briefs {
		out[briefs[i].ID] = &briefs[i]
	}
	return out, nil
}

func uniqueIDs(ids []uint) []uint {
	seen := make(map[uint]struct{}, len(ids))
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if id == 0 {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
