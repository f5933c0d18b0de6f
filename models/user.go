package models

import (
	"time"

	"gorm.io/gorm"
)

// UserRole 用户角色
type UserRole int8

const (
	RoleUser       UserRole = 0 // 普通用户
	RoleAdmin      UserRole = 1 // 普通管理员
	RoleSuperAdmin UserRole = 2 // 超级管理员
)

var userRoleLabels = map[UserRole]string{
	RoleUser:       "普通用户",
	RoleAdmin:      "普通管理员",
	RoleSuperAdmin: "超级管理员",
}

// Label 中文名称
func (r UserRole) Label() string {
	if l, ok := userRoleLabels[r]; ok {
		return l
	}
	return "未知角色"
}

// Valid 是否为已定义角色
func (r UserRole) Valid() bool {
	_, ok := userRoleLabels[r]
	return ok
}

// AtLeast 角色等级是否不低于 min
func (r UserRole) AtLeast(min UserRole) bool {
	return r >= min
}

// UserStatus 账号状态
type UserStatus int8

const (
	UserStatusNormal   UserStatus = 0 // 正常
	UserStatusDisabled UserStatus = 1 // 禁用：不可登录
)

// Label 中文名称
func (s UserStatus) Label() string {
	switch s {
	case UserStatusNormal:
		return "正常"
	case UserStatusDisabled:
		return "禁用"
	}
	return "未知状态"
}

// Valid 是否为已定义状态
func (s UserStatus) Valid() bool {
	return s == UserStatusNormal || s == UserStatusDisabled
}

// User 用户模型
// username/phone/email 的唯一性由业务层在未删除用户范围内校验，软删除的账号不占用
type User struct {
	ID          uint           `json:"id" gorm:"primaryKey"`
	Username    string         `json:"username" gorm:"size:50;not null;index"`
	Phone       string         `json:"phone" gorm:"size:20;not null;index"`
	Email       string         `json:"email" gorm:"size:100;not null;index"`
	Password    string         `json:"-" gorm:"size:255;not null"`
	Intro       string         `json:"intro" gorm:"type:text"`
	Role        UserRole       `json:"role" gorm:"type:smallint;not null;default:0;index"`
	ContactInfo string         `json:"contact_info" gorm:"size:255"`
	Status      UserStatus     `json:"status" gorm:"type:smallint;not null;default:0;index"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `json:"-" gorm:"index"`
}

// TableName 设置表名
func (User) TableName() string {
	return "users"
}

// IsDisabled 账号是否被禁用
func (u *User) IsDisabled() bool {
	return u.Status == UserStatusDisabled
}

// HasAccount account 是否为该用户的用户名、手机号或邮箱之一
func (u *User) HasAccount(account string) bool {
	return account != "" && (u.Username == account || u.Phone == account || u.Email == account)
}

// UserBrief 列表、详情中附带的用户摘要
type UserBrief struct {
	ID          uint   `json:"id"`
	Username    string `json:"username"`
	ContactInfo string `json:"contact_info,omitempty"`
}
