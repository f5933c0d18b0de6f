package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"bugmarket/models"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// 默认账号
var defaultAccounts = []models.User{
	{
		Username:    "super_admin",
		Phone:       "13800000001",
		Email:       "super_admin@bug.local",
		Role:        models.RoleSuperAdmin,
		ContactInfo: "系统超级管理员",
	},
	{
		Username:    "admin",
		Phone:       "13800000000",
		Email:       "admin@bug.local",
		Role:        models.RoleAdmin,
		ContactInfo: "系统管理员",
	},
}

// Seed 写入默认账号和默认超期规则，已存在时跳过
func Seed(ctx context.Context, db *gorm.DB, defaultPassword string, log *slog.Logger) error {
	if err := seedAccounts(ctx, db, defaultPassword, log); err != nil {
		return err
	}
	return seedTimeRules(ctx, db, log)
}

func seedAccounts(ctx context.Context, db *gorm.DB, defaultPassword string, log *slog.Logger) error {
	if defaultPassword == "" {
		defaultPassword = "admin123"
	}
	for _, account := range defaultAccounts {
		var existing models.User
		err := db.WithContext(ctx).Where("username = ?", account.Username).First(&existing).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(defaultPassword), bcrypt.DefaultCost)
		if err != nil {
			return fmt.Errorf("密码加密失败: %w", err)
		}
		user := account
		user.Password = string(hash)
		if err := db.WithContext(ctx).Create(&user).Error; err != nil {
			return err
		}
		log.Info("已创建默认账号", "username", user.Username, "role", user.Role.Label())
	}
	return nil
}

func seedTimeRules(ctx context.Context, db *gorm.DB, log *slog.Logger) error {
	var count int64
	if err := db.WithContext(ctx).Model(&models.TimeRule{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	rules := models.DefaultTimeRules()
	if err := db.WithContext(ctx).Create(&rules).Error; err != nil {
		return err
	}
	log.Info("已创建默认超期规则", "count", len(rules))
	return nil
}

// resetTables 重置时清空的表，日志表在前
var resetTables = []string{"operation_logs", "bugs", "users", "time_rules"}

// Reset 清空业务数据并重新写入初始化数据
func Reset(ctx context.Context, db *gorm.DB, defaultPassword string, log *slog.Logger) error {
	if db.Dialector.Name() == "postgres" {
		stmt := "TRUNCATE TABLE "
		for i, t := range resetTables {
			if i > 0 {
				stmt += ", "
			}
			stmt += t
		}
		if err := db.WithContext(ctx).Exec(stmt + " RESTART IDENTITY").Error; err != nil {
			return fmt.Errorf("清空数据失败: %w", err)
		}
	} else {
		for _, t := range resetTables {
			if err := db.WithContext(ctx).Exec("TRUNCATE TABLE " + t).Error; err != nil {
				return fmt.Errorf("清空数据表 %s 失败: %w", t, err)
			}
		}
	}
	log.Warn("数据库已重置", "tables", resetTables)
	return Seed(ctx, db, defaultPassword, log)
}
