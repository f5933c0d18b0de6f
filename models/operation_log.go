package models

import (
	"errors"
	"time"

	"gorm.io/gorm"
)

// OperationType 操作类型
type OperationType int8

const (
	OpBugPublish         OperationType = 0 // 发布订单
	OpBugTake            OperationType = 1 // 承接订单
	OpStatusUpdate       OperationType = 2 // 状态更新
	OpManualIntervention OperationType = 3 // 人工介入
	OpUserDisable        OperationType = 4 // 禁用用户
	OpUserCreate         OperationType = 5 // 创建用户
	OpUserDelete         OperationType = 6 // 删除用户
)

var operationTypeLabels = map[OperationType]string{
	OpBugPublish:         "发布订单",
	OpBugTake:            "承接订单",
	OpStatusUpdate:       "状态更新",
	OpManualIntervention: "人工介入",
	OpUserDisable:        "禁用用户",
	OpUserCreate:         "创建用户",
	OpUserDelete:         "删除用户",
}

// Label 中文名称
func (t OperationType) Label() string {
	if l, ok := operationTypeLabels[t]; ok {
		return l
	}
	return "未知操作"
}

// ErrOperationLogImmutable 操作日志只允许写入
var ErrOperationLogImmutable = errors.New("操作日志不可修改")

// OperationLog 操作审计日志，只写不改
type OperationLog struct {
	ID               uint          `json:"id" gorm:"primaryKey"`
	OperatorID       uint          `json:"operator_id" gorm:"not null;index"`
	BugID            *uint         `json:"bug_id" gorm:"index"`
	OperationType    OperationType `json:"operation_type" gorm:"type:smallint;not null"`
	OperationContent string        `json:"operation_content" gorm:"type:text;not null"`
	OperationTime    time.Time     `json:"operation_time" gorm:"autoCreateTime;index"`
	IPAddress        *string       `json:"ip_address" gorm:"size:50"`
}

// TableName 设置表名
func (OperationLog) TableName() string {
	return "operation_logs"
}

// BeforeUpdate 拒绝任何更新
func (l *OperationLog) BeforeUpdate(tx *gorm.DB) error {
	return ErrOperationLogImmutable
}

// BeforeDelete 拒绝逐行删除，重置数据库走 TRUNCATE
func (l *OperationLog) BeforeDelete(tx *gorm.DB) error {
	return ErrOperationLogImmutable
}
