package middleware

import (
	"errors"
	"net/http"

	"bugmarket/database"
	"bugmarket/models"
	"bugmarket/policy"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// CurrentUser 按 token 中的用户 ID 重新加载账号，需在 JWTAuth 之后使用。
// 已删除的账号返回 401，已禁用返回 403；角色以数据库为准。
func CurrentUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := GetCurrentUserID(c)
		if userID == 0 {
			abortJSON(c, http.StatusUnauthorized, "请先登录")
			return
		}

		var user models.User
		err := database.DB.WithContext(c.Request.Context()).
			Select("id", "username", "role", "status").
			First(&user, userID).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				abortJSON(c, http.StatusUnauthorized, "用户不存在")
				return
			}
			abortJSON(c, http.StatusInternalServerError, "查询用户失败")
			return
		}
		if user.IsDisabled() {
			abortJSON(c, http.StatusForbidden, "账号已被禁用")
			return
		}

		c.Set(ctxUsername, user.Username)
		c.Set(ctxRole, user.Role)
		c.Next()
	}
}

// Require 按权限表校验当前角色
func Require(action policy.Action) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !policy.Allowed(action, GetCurrentRole(c)) {
			abortJSON(c, http.StatusForbidden, "权限不足")
			return
		}
		c.Next()
	}
}
