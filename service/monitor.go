package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"bugmarket/metrics"
	"bugmarket/models"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

const sweepLockKey = "bugmarket:lock:sla_sweep"

// ExpiryNotifier 订单新进入已超期时的通知
type ExpiryNotifier interface {
	NotifyExpired(ctx context.Context, rule models.TimeRule, bugs []models.Bug) error
}

// SweepResult 一次巡检的结果
type SweepResult struct {
	Rules        int       `json:"rules"`
	Updated      int64     `json:"updated"`
	NewlyExpired int       `json:"newly_expired"`
	At           time.Time `json:"at"`
}

// Monitor 周期性按超期规则重算订单的超期状态
type Monitor struct {
	db       *gorm.DB
	rdb      *redis.Client
	logger   *slog.Logger
	notifier ExpiryNotifier
	interval time.Duration
	lockTTL  time.Duration
	instance string
	now      func() time.Time
}

// NewMonitor 创建监控任务，rdb、notifier 可为 nil
func NewMonitor(db *gorm.DB, rdb *redis.Client, logger *slog.Logger, notifier ExpiryNotifier, interval, lockTTL time.Duration) *Monitor {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	if lockTTL <= 0 || lockTTL >= interval {
		lockTTL = interval * 4 / 5
	}
	return &Monitor{
		db:       db,
		rdb:      rdb,
		logger:   logger,
		notifier: notifier,
		interval: interval,
		lockTTL:  lockTTL,
		instance: uuid.NewString(),
		now:      time.Now,
	}
}

// ClassifyTimeStatus 参考时间不晚于超期阈值为已超期，不晚于预警阈值为即将超期
func ClassifyTimeStatus(ref, now time.Time, rule models.TimeRule) models.TimeStatus {
	warn, expire := rule.Thresholds(now)
	switch {
	case !ref.After(expire):
		return models.TimeStatusExpired
	case !ref.After(warn):
		return models.TimeStatusWarning
	default:
		return models.TimeStatusNormal
	}
}

// Start 立即巡检一次，之后按间隔巡检，ctx 结束时退出
func (m *Monitor) Start(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	m.logger.Info("超期监控已启动", "interval", m.interval.String(), "redis_lock", m.rdb != nil)

	go func() {
		defer ticker.Stop()
		m.runOnce(ctx)
		for {
			select {
			case <-ctx.Done():
				m.logger.Info("超期监控已停止")
				return
			case <-ticker.C:
				m.runOnce(ctx)
			}
		}
	}()
}

func (m *Monitor) runOnce(ctx context.Context) {
	ok, err := m.acquireLock(ctx)
	if err != nil {
		// Redis 不可用时照常巡检，多实例最多重复执行一次，结果相同
		m.logger.Warn("获取巡检锁失败", "error", err)
	} else if !ok {
		metrics.SweepRunsTotal.WithLabelValues("skipped").Inc()
		m.logger.Debug("其他实例正在巡检，跳过本轮")
		return
	}

	sweepCtx, cancel := context.WithTimeout(ctx, m.interval)
	defer cancel()
	if _, err := m.Sweep(sweepCtx); err != nil {
		m.logger.Error("超期巡检失败", "error", err)
	}
}

func (m *Monitor) acquireLock(ctx context.Context) (bool, error) {
	if m.rdb == nil {
		return true, nil
	}
	return m.rdb.SetNX(ctx, sweepLockKey, m.instance, m.lockTTL).Result()
}

// Sweep 按全部启用规则重算一次超期状态，单条规则失败不影响其他规则
func (m *Monitor) Sweep(ctx context.Context) (*SweepResult, error) {
	start := time.Now()
	defer func() { metrics.SweepDuration.Observe(time.Since(start).Seconds()) }()

	now := m.now()
	result := &SweepResult{At: now}

	var rules []models.TimeRule
	if err := m.db.WithContext(ctx).Where("is_enable = ?", true).Order("id ASC").Find(&rules).Error; err != nil {
		metrics.SweepRunsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("加载超期规则失败: %w", err)
	}

	var errs []error
	for _, rule := range rules {
		updated, expired, err := m.sweepRule(ctx, rule, now)
		if err != nil {
			errs = append(errs, fmt.Errorf("规则 %d(%s): %w", rule.ID, rule.RuleName, err))
			continue
		}
		result.Rules++
		result.Updated += updated
		result.NewlyExpired += expired
	}

	if len(errs) > 0 {
		metrics.SweepRunsTotal.WithLabelValues("error").Inc()
		return result, errors.Join(errs...)
	}
	metrics.SweepRunsTotal.WithLabelValues("ok").Inc()
	m.logger.Info("超期巡检完成",
		"rules", result.Rules,
		"updated", result.Updated,
		"newly_expired", result.NewlyExpired,
		"elapsed", time.Since(start).String())
	return result, nil
}

// sweepRule 单条规则一次批量条件更新；只写 time_status，不触碰 last_update_time
func (m *Monitor) sweepRule(ctx context.Context, rule models.TimeRule, now time.Time) (int64, int, error) {
	col := rule.RefColumn()
	warn, expire := rule.Thresholds(now)

	var newlyExpired []models.Bug
	if m.notifier != nil {
		if err := m.db.WithContext(ctx).
			Where("status = ? AND "+col+" IS NOT NULL AND "+col+" <= ? AND time_status <> ?",
				rule.StatusType, expire, models.TimeStatusExpired).
			Find(&newlyExpired).Error; err != nil {
			return 0, 0, err
		}
	}

	res := m.db.WithContext(ctx).Model(&models.Bug{}).
		Where("status = ? AND "+col+" IS NOT NULL", rule.StatusType).
		UpdateColumn("time_status", gorm.Expr(
			"CASE WHEN "+col+" <= ? THEN ? WHEN "+col+" <= ? THEN ? ELSE ? END",
			expire, models.TimeStatusExpired,
			warn, models.TimeStatusWarning,
			models.TimeStatusNormal,
		))
	if res.Error != nil {
		return 0, 0, res.Error
	}
	metrics.SweepRowsUpdated.WithLabelValues(strconv.Itoa(int(rule.StatusType))).Add(float64(res.RowsAffected))

	if len(newlyExpired) > 0 {
		if err := m.notifier.NotifyExpired(ctx, rule, newlyExpired); err != nil {
			m.logger.Warn("发送超期通知失败", "rule_id", rule.ID, "count", len(newlyExpired), "error", err)
		}
	}
	return res.RowsAffected, len(newlyExpired), nil
}
