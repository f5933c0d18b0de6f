// Package policy 集中声明角色权限：接口动作所需的最低角色，以及订单状态流转的准入规则。
package policy

import (
	"errors"

	"bugmarket/models"
)

// Action 受控的业务动作
type Action string

const (
	ActionBugCreate          Action = "bug.create"
	ActionBugTake            Action = "bug.take"
	ActionBugUpdateStatus    Action = "bug.update_status"
	ActionOrderView          Action = "order.view"
	ActionOrderExport        Action = "order.export"
	ActionTimeRuleView       Action = "time_rule.view"
	ActionTimeRuleEdit       Action = "time_rule.edit"
	ActionSweep              Action = "monitor.sweep"
	ActionManualIntervention Action = "bug.manual_intervention"
	ActionLogView            Action = "operation_log.view"
	ActionUserView           Action = "user.view"
	ActionUserManage         Action = "user.manage"
	ActionDBReset            Action = "db.reset"
)

// actionTable 动作 -> 最低角色
var actionTable = map[Action]models.UserRole{
	ActionBugCreate:          models.RoleUser,
	ActionBugTake:            models.RoleUser,
	ActionBugUpdateStatus:    models.RoleUser,
	ActionOrderView:          models.RoleAdmin,
	ActionOrderExport:        models.RoleAdmin,
	ActionTimeRuleView:       models.RoleAdmin,
	ActionUserView:           models.RoleAdmin,
	ActionTimeRuleEdit:       models.RoleSuperAdmin,
	ActionSweep:              models.RoleSuperAdmin,
	ActionManualIntervention: models.RoleSuperAdmin,
	ActionLogView:            models.RoleSuperAdmin,
	ActionUserManage:         models.RoleSuperAdmin,
	ActionDBReset:            models.RoleSuperAdmin,
}

// Allowed 角色是否可执行该动作，未登记的动作一律拒绝
func Allowed(action Action, role models.UserRole) bool {
	min, ok := actionTable[action]
	if !ok {
		return false
	}
	return role.AtLeast(min)
}

// MinRole 动作所需最低角色
func MinRole(action Action) (models.UserRole, bool) {
	r, ok := actionTable[action]
	return r, ok
}

// TransitionRule 目标状态的准入规则
type TransitionRule struct {
	Roles []models.UserRole // 直接放行的角色
	Owner bool              // 发布者、承接者是否放行
}

// transitionTable 普通状态更新可到达的目标状态。
// 改为沟通中只允许后台管理员，发布者和承接者也不行。
var transitionTable = map[models.BugStatus]TransitionRule{
	models.BugStatusCommunicating: {
		Roles: []models.UserRole{models.RoleAdmin, models.RoleSuperAdmin},
	},
	models.BugStatusResolved: {
		Roles: []models.UserRole{models.RoleSuperAdmin},
		Owner: true,
	},
}

var (
	ErrInvalidTarget   = errors.New("状态值不合法，仅支持沟通中或已解决")
	ErrAdminOnlyTarget = errors.New("仅后台管理员可将订单改为沟通中")
	ErrNotPermitted    = errors.New("无权限操作订单状态")
)

// Actor 发起操作的用户
type Actor struct {
	ID   uint
	Role models.UserRole
}

// CanTransition 判断 actor 能否把 bug 改为 target
func CanTransition(actor Actor, bug *models.Bug, target models.BugStatus) error {
	rule, ok := transitionTable[target]
	if !ok {
		return ErrInvalidTarget
	}
	for _, r := range rule.Roles {
		if actor.Role == r {
			return nil
		}
	}
	if rule.Owner && bug.IsOwner(actor.ID) {
		return nil
	}
	if !rule.Owner {
		return ErrAdminOnlyTarget
	}
	return ErrNotPermitted
}

// Targets 普通状态更新可选的目标状态
func Targets() []models.BugStatus {
	out := make([]models.BugStatus, 0, len(transitionTable))
	for _, s := range models.AllBugStatuses {
		if _, ok := transitionTable[s]; ok {
			out = append(out, s)
		}
	}
	return out
}
