package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"bugmarket/logger"
	"bugmarket/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var ruleColumns = []string{"id", "rule_name", "status_type", "warn_hour", "expire_hour", "is_enable"}

type recordingNotifier struct {
	rules []models.TimeRule
	bugs  [][]models.Bug
}

func (n *recordingNotifier) NotifyExpired(ctx context.Context, rule models.TimeRule, bugs []models.Bug) error {
	n.rules = append(n.rules, rule)
	n.bugs = append(n.bugs, bugs)
	return nil
}

func newTestMonitor(t *testing.T, notifier ExpiryNotifier) (*Monitor, sqlmock.Sqlmock, time.Time) {
	db, mock := setupMockDB(t)
	m := NewMonitor(db, nil, logger.Discard(), notifier, 5*time.Minute, 0)
	now := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }
	return m, mock, now
}

func TestClassifyTimeStatus(t *testing.T) {
	now := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)
	rule := models.TimeRule{StatusType: models.BugStatusTaken, WarnHour: 24, ExpireHour: 72}

	assert.Equal(t, models.TimeStatusExpired, ClassifyTimeStatus(now.Add(-80*time.Hour), now, rule))
	assert.Equal(t, models.TimeStatusWarning, ClassifyTimeStatus(now.Add(-30*time.Hour), now, rule))
	assert.Equal(t, models.TimeStatusNormal, ClassifyTimeStatus(now.Add(-2*time.Hour), now, rule))

	// 阈值边界归入更严重的一档
	assert.Equal(t, models.TimeStatusExpired, ClassifyTimeStatus(now.Add(-72*time.Hour), now, rule))
	assert.Equal(t, models.TimeStatusWarning, ClassifyTimeStatus(now.Add(-24*time.Hour), now, rule))
}

func TestClassifyTimeStatus_Idempotent(t *testing.T) {
	now := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)
	rule := models.TimeRule{StatusType: models.BugStatusCommunicating, WarnHour: 48, ExpireHour: 120}
	ref := now.Add(-50 * time.Hour)

	first := ClassifyTimeStatus(ref, now, rule)
	for i := 0; i < 3; i++ {
		assert.Equal(t, first, ClassifyTimeStatus(ref, now, rule))
	}
}

func TestMonitor_Sweep(t *testing.T) {
	m, mock, now := newTestMonitor(t, nil)
	taken := models.TimeRule{StatusType: models.BugStatusTaken, WarnHour: 24, ExpireHour: 72}
	warn, expire := taken.Thresholds(now)

	mock.ExpectQuery("SELECT .* FROM `time_rules`").
		WillReturnRows(sqlmock.NewRows(ruleColumns).
			AddRow(1, "承接后超期规则", 1, 24, 72, true).
			AddRow(2, "沟通中超期规则", 2, 48, 120, true))

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE `bugs` SET `time_status`=CASE WHEN take_time <= \\?").
		WithArgs(expire, models.TimeStatusExpired, warn, models.TimeStatusWarning, models.TimeStatusNormal, models.BugStatusTaken).
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectCommit()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE `bugs` SET `time_status`=CASE WHEN last_update_time <= \\?").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	result, err := m.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, result.Rules)
	assert.Equal(t, int64(4), result.Updated)
	assert.Equal(t, 0, result.NewlyExpired)
	assert.Equal(t, now, result.At)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMonitor_Sweep_NotifiesNewlyExpired(t *testing.T) {
	notifier := &recordingNotifier{}
	m, mock, _ := newTestMonitor(t, notifier)

	mock.ExpectQuery("SELECT .* FROM `time_rules`").
		WillReturnRows(sqlmock.NewRows(ruleColumns).AddRow(1, "承接后超期规则", 1, 24, 72, true))
	mock.ExpectQuery("SELECT .* FROM `bugs`").
		WillReturnRows(sqlmock.NewRows(bugColumns).AddRow(11, "支付回调丢失", "Java", 2, 7, 1, 1))
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE `bugs` SET `time_status`").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	result, err := m.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.NewlyExpired)
	require.Len(t, notifier.bugs, 1)
	assert.Equal(t, uint(11), notifier.bugs[0][0].ID)
	assert.Equal(t, "承接后超期规则", notifier.rules[0].RuleName)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMonitor_Sweep_RuleFailureDoesNotStopOthers(t *testing.T) {
	m, mock, _ := newTestMonitor(t, nil)

	mock.ExpectQuery("SELECT .* FROM `time_rules`").
		WillReturnRows(sqlmock.NewRows(ruleColumns).
			AddRow(1, "承接后超期规则", 1, 24, 72, true).
			AddRow(2, "沟通中超期规则", 2, 48, 120, true))
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE `bugs` SET").WillReturnError(errors.New("lock wait timeout"))
	mock.ExpectRollback()
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE `bugs` SET").WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	result, err := m.Sweep(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "lock wait timeout")
	assert.Equal(t, 1, result.Rules)
	assert.Equal(t, int64(2), result.Updated)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMonitor_Sweep_LoadRulesError(t *testing.T) {
	m, mock, _ := newTestMonitor(t, nil)
	mock.ExpectQuery("SELECT .* FROM `time_rules`").WillReturnError(errors.New("connection refused"))

	_, err := m.Sweep(context.Background())
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMonitor_AcquireLock(t *testing.T) {
	s := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: s.Addr()})
	defer rdb.Close()

	db, _ := setupMockDB(t)
	a := NewMonitor(db, rdb, logger.Discard(), nil, time.Minute, 30*time.Second)
	b := NewMonitor(db, rdb, logger.Discard(), nil, time.Minute, 30*time.Second)

	ok, err := a.acquireLock(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)

	// 另一实例在锁有效期内拿不到锁
	ok, err = b.acquireLock(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)

	s.FastForward(31 * time.Second)
	ok, err = b.acquireLock(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMonitor_AcquireLockWithoutRedis(t *testing.T) {
	db, _ := setupMockDB(t)
	m := NewMonitor(db, nil, logger.Discard(), nil, time.Minute, 0)
	ok, err := m.acquireLock(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 48*time.Second, m.lockTTL)
}

func TestMonitor_StartStopsWithContext(t *testing.T) {
	m, mock, _ := newTestMonitor(t, nil)
	mock.ExpectQuery("SELECT .* FROM `time_rules`").
		WillReturnRows(sqlmock.NewRows(ruleColumns))

	ctx, cancel := context.WithCancel(context.Background())
	m.Start(ctx)
	assert.Eventually(t, func() bool {
		return mock.ExpectationsWereMet() == nil
	}, time.Second, 10*time.Millisecond)
	cancel()
}
