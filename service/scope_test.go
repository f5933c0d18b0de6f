package service

import (
	"context"
	"testing"
	"time"

	"bugmarket/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 软删除的用户、订单不参与任何查询与巡检

func TestMonitor_Sweep_SkipsDeletedAndUnreferenced(t *testing.T) {
	m, mock, now := newTestMonitor(t, nil)
	taken := models.TimeRule{StatusType: models.BugStatusTaken, WarnHour: 24, ExpireHour: 72}
	communicating := models.TimeRule{StatusType: models.BugStatusCommunicating, WarnHour: 48, ExpireHour: 120}
	takenWarn, takenExpire := taken.Thresholds(now)
	commWarn, commExpire := communicating.Thresholds(now)

	mock.ExpectQuery("SELECT \\* FROM `time_rules` WHERE is_enable = \\?").
		WithArgs(true).
		WillReturnRows(sqlmock.NewRows(ruleColumns).
			AddRow(1, "承接后超期规则", 1, 24, 72, true).
			AddRow(2, "沟通中超期规则", 2, 48, 120, true))

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE `bugs` SET `time_status`=CASE WHEN take_time <= \\?.*END " +
		"WHERE \\(status = \\? AND take_time IS NOT NULL\\) AND `bugs`.`deleted_at` IS NULL").
		WithArgs(takenExpire, models.TimeStatusExpired, takenWarn, models.TimeStatusWarning, models.TimeStatusNormal, models.BugStatusTaken).
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectCommit()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE `bugs` SET `time_status`=CASE WHEN last_update_time <= \\?.*END " +
		"WHERE \\(status = \\? AND last_update_time IS NOT NULL\\) AND `bugs`.`deleted_at` IS NULL").
		WithArgs(commExpire, models.TimeStatusExpired, commWarn, models.TimeStatusWarning, models.TimeStatusNormal, models.BugStatusCommunicating).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	_, err := m.Sweep(context.Background())
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMonitor_Sweep_NewlyExpiredExcludesDeleted(t *testing.T) {
	notifier := &recordingNotifier{}
	m, mock, now := newTestMonitor(t, notifier)
	rule := models.TimeRule{WarnHour: 24, ExpireHour: 72}
	_, expire := rule.Thresholds(now)

	mock.ExpectQuery("SELECT .* FROM `time_rules`").
		WillReturnRows(sqlmock.NewRows(ruleColumns).AddRow(1, "承接后超期规则", 1, 24, 72, true))
	mock.ExpectQuery("SELECT \\* FROM `bugs` WHERE \\(status = \\? AND take_time IS NOT NULL AND take_time <= \\? AND time_status <> \\?\\) " +
		"AND `bugs`.`deleted_at` IS NULL").
		WithArgs(models.BugStatusTaken, expire, models.TimeStatusExpired).
		WillReturnRows(sqlmock.NewRows(bugColumns))
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE `bugs` SET `time_status`").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	result, err := m.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, result.NewlyExpired)
	assert.Empty(t, notifier.bugs)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBugService_Take_ExcludesDeleted(t *testing.T) {
	db, mock := setupMockDB(t)
	svc := NewBugService(db)
	svc.now = func() time.Time { return time.Date(2024, 5, 10, 12, 0, 0, 0, time.Local) }

	mock.ExpectQuery("SELECT \\* FROM `bugs` WHERE `bugs`.`id` = \\? AND `bugs`.`deleted_at` IS NULL").
		WithArgs(1).
		WillReturnRows(sqlmock.NewRows(bugColumns).AddRow(1, "登录页白屏", "Vue", 2, nil, 0, 0))
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE `bugs` SET .* WHERE \\(id = \\? AND status = \\?\\) AND `bugs`.`deleted_at` IS NULL").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO `operation_logs`").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	_, err := svc.Take(context.Background(), 1, Operator{ID: 7})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBugService_Take_DeletedOrderNotFound(t *testing.T) {
	db, mock := setupMockDB(t)

	mock.ExpectQuery("SELECT \\* FROM `bugs` WHERE `bugs`.`id` = \\? AND `bugs`.`deleted_at` IS NULL").
		WithArgs(3).
		WillReturnRows(sqlmock.NewRows(bugColumns))

	_, err := NewBugService(db).Take(context.Background(), 3, Operator{ID: 7})
	assert.Equal(t, KindNotFound, KindOf(err))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBugService_Get_ExcludesDeleted(t *testing.T) {
	db, mock := setupMockDB(t)

	mock.ExpectQuery("SELECT \\* FROM `bugs` WHERE `bugs`.`id` = \\? AND `bugs`.`deleted_at` IS NULL").
		WithArgs(1).
		WillReturnRows(sqlmock.NewRows(bugColumns).AddRow(1, "登录页白屏", "Vue", 2, 7, 1, 0))
	mock.ExpectQuery("SELECT `id`,`username`,`contact_info` FROM `users` WHERE id IN \\(\\?,\\?\\) AND `users`.`deleted_at` IS NULL").
		WithArgs(2, 7).
		WillReturnRows(sqlmock.NewRows([]string{"id", "username", "contact_info"}).AddRow(2, "publisher", ""))

	view, err := NewBugService(db).Get(context.Background(), 1)
	require.NoError(t, err)
	require.NotNil(t, view.Publisher)
	// 承接人已被删除，不再附带摘要
	assert.Nil(t, view.Taker)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBugService_List_ExcludesDeleted(t *testing.T) {
	db, mock := setupMockDB(t)
	status := models.BugStatusPending

	mock.ExpectQuery("SELECT count\\(\\*\\) FROM `bugs` WHERE status = \\? AND `bugs`.`deleted_at` IS NULL").
		WithArgs(models.BugStatusPending).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery("SELECT \\* FROM `bugs` WHERE status = \\? AND `bugs`.`deleted_at` IS NULL ORDER BY publish_time DESC, id DESC").
		WithArgs(models.BugStatusPending).
		WillReturnRows(sqlmock.NewRows(bugColumns))

	views, total, err := NewBugService(db).List(context.Background(), BugQuery{Status: &status, Page: 1, PageSize: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(0), total)
	assert.Empty(t, views)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserService_Get_ExcludesDeleted(t *testing.T) {
	db, mock := setupMockDB(t)

	mock.ExpectQuery("SELECT \\* FROM `users` WHERE `users`.`id` = \\? AND `users`.`deleted_at` IS NULL").
		WithArgs(4).
		WillReturnRows(sqlmock.NewRows(userColumns))

	_, err := NewUserService(db).Get(context.Background(), 4)
	assert.Equal(t, KindNotFound, KindOf(err))
	require.NoError(t, mock.ExpectationsWereMet())
}
