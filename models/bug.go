package models

import (
	"time"

	"gorm.io/gorm"
)

// BugStatus 订单生命周期状态
type BugStatus int8

const (
	BugStatusPending       BugStatus = 0 // 待解决
	BugStatusTaken         BugStatus = 1 // 已承接
	BugStatusCommunicating BugStatus = 2 // 沟通中
	BugStatusResolved      BugStatus = 3 // 已解决
)

// AllBugStatuses 全部订单状态，按生命周期顺序
var AllBugStatuses = []BugStatus{
	BugStatusPending,
	BugStatusTaken,
	BugStatusCommunicating,
	BugStatusResolved,
}

// Label 中文名称
func (s BugStatus) Label() string {
	switch s {
	case BugStatusPending:
		return "待解决"
	case BugStatusTaken:
		return "已承接"
	case BugStatusCommunicating:
		return "沟通中"
	case BugStatusResolved:
		return "已解决"
	}
	return "未知状态"
}

// Valid 是否为已定义状态
func (s BugStatus) Valid() bool {
	return s >= BugStatusPending && s <= BugStatusResolved
}

// TimeStatus 超期状态，由监控任务推导
type TimeStatus int8

const (
	TimeStatusNormal  TimeStatus = 0 // 正常
	TimeStatusWarning TimeStatus = 1 // 即将超期
	TimeStatusExpired TimeStatus = 2 // 已超期
)

// Label 中文名称
func (s TimeStatus) Label() string {
	switch s {
	case TimeStatusNormal:
		return "正常"
	case TimeStatusWarning:
		return "即将超期"
	case TimeStatusExpired:
		return "已超期"
	}
	return "未知状态"
}

// Valid 是否为已定义状态
func (s TimeStatus) Valid() bool {
	return s >= TimeStatusNormal && s <= TimeStatusExpired
}

// Bug 订单（用户发布的待解决问题）
type Bug struct {
	ID             uint           `json:"id" gorm:"primaryKey"`
	Title          string         `json:"title" gorm:"size:50;not null"`
	TechStack      string         `json:"tech_stack" gorm:"size:100;not null;index"`
	Description    string         `json:"description" gorm:"type:text;not null"`
	ExpectEffect   string         `json:"expect_effect" gorm:"size:500;not null"`
	PublisherID    uint           `json:"publisher_id" gorm:"not null;index"`
	TakerID        *uint          `json:"taker_id" gorm:"index"`
	Status         BugStatus      `json:"status" gorm:"type:smallint;not null;default:0;index"`
	TimeStatus     TimeStatus     `json:"time_status" gorm:"type:smallint;not null;default:0;index"`
	PublishTime    time.Time      `json:"publish_time" gorm:"autoCreateTime"`
	TakeTime       *time.Time     `json:"take_time"`
	LastUpdateTime time.Time      `json:"last_update_time" gorm:"autoUpdateTime"`
	CommunityInfo  *string        `json:"community_info" gorm:"size:255"`
	OperationNote  *string        `json:"operation_note" gorm:"type:text"`
	DeletedAt      gorm.DeletedAt `json:"-" gorm:"index"`
}

// TableName 设置表名
func (Bug) TableName() string {
	return "bugs"
}

// IsOwner 是否为订单的发布者或承接者
func (b *Bug) IsOwner(userID uint) bool {
	if userID == 0 {
		return false
	}
	if b.PublisherID == userID {
		return true
	}
	return b.TakerID != nil && *b.TakerID == userID
}

// BugBrief 日志等场景附带的订单摘要
type BugBrief struct {
	ID    uint   `json:"id"`
	Title string `json:"title"`
}
