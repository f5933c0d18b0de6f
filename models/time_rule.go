package models

import "time"

// TimeRule 超期规则：某一生命周期状态下停留多久进入预警/超期
type TimeRule struct {
	ID         uint      `json:"id" gorm:"primaryKey"`
	RuleName   string    `json:"rule_name" gorm:"size:100;not null"`
	StatusType BugStatus `json:"status_type" gorm:"type:smallint;not null;index"`
	WarnHour   int       `json:"warn_hour" gorm:"not null"`
	ExpireHour int       `json:"expire_hour" gorm:"not null"`
	IsEnable   bool      `json:"is_enable" gorm:"not null"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// TableName 设置表名
func (TimeRule) TableName() string {
	return "time_rules"
}

// RefColumn 计算超期时使用的参考时间列：已承接看承接时间，其余看最后更新时间
func (r *TimeRule) RefColumn() string {
	if r.StatusType == BugStatusTaken {
		return "take_time"
	}
	return "last_update_time"
}

// Thresholds 返回预警与超期的时间阈值，参考时间不晚于阈值即命中
func (r *TimeRule) Thresholds(now time.Time) (warn, expire time.Time) {
	warn = now.Add(-time.Duration(r.WarnHour) * time.Hour)
	expire = now.Add(-time.Duration(r.ExpireHour) * time.Hour)
	return warn, expire
}

// DefaultTimeRules 初始化时写入的默认规则
func DefaultTimeRules() []TimeRule {
	return []TimeRule{
		{RuleName: "承接后超期规则", StatusType: BugStatusTaken, WarnHour: 24, ExpireHour: 72, IsEnable: true},
		{RuleName: "沟通中超期规则", StatusType: BugStatusCommunicating, WarnHour: 48, ExpireHour: 120, IsEnable: true},
	}
}
