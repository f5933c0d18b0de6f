package api

import (
	"bytes"
	"testing"
	"time"

	"bugmarket/models"
	"bugmarket/service"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestExportHandler_ExportOrders(t *testing.T) {
	mock, cleanup := setupMockDB(t)
	defer cleanup()

	now := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)
	mock.ExpectQuery("SELECT .* FROM `bugs`").
		WillReturnRows(sqlmock.NewRows(append(bugColumns, "publish_time", "last_update_time")).
			AddRow(1, "登录页白屏", "Vue3", 2, nil, 0, 0, now, now))
	mock.ExpectQuery("SELECT .* FROM `users`").
		WillReturnRows(sqlmock.NewRows([]string{"id", "username", "contact_info"}).AddRow(2, "alice", ""))

	router := newTestRouter(setIdentity(1, models.RoleAdmin))
	router.GET("/orders/export", NewExportHandler().ExportOrders)

	w := doJSON(router, "GET", "/orders/export", "")
	assert.Equal(t, 200, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "spreadsheetml")
	assert.Contains(t, w.Header().Get("Content-Disposition"), ".xlsx")

	f, err := excelize.OpenReader(bytes.NewReader(w.Body.Bytes()))
	require.NoError(t, err)
	defer f.Close()

	header, _ := f.GetCellValue("订单", "B1")
	assert.Equal(t, "标题", header)
	title, _ := f.GetCellValue("订单", "B2")
	assert.Equal(t, "登录页白屏", title)
	publisher, _ := f.GetCellValue("订单", "F2")
	assert.Equal(t, "alice", publisher)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBuildOrderWorkbook_Summary(t *testing.T) {
	takeTime := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	views := []service.BugView{
		{Bug: models.Bug{ID: 1, Title: "a", Status: models.BugStatusTaken, TimeStatus: models.TimeStatusExpired, TakeTime: &takeTime},
			StatusLabel: "已承接", TimeStatusLabel: "已超期", Taker: &models.UserBrief{ID: 3, Username: "bob"}},
		{Bug: models.Bug{ID: 2, Title: "b"}, StatusLabel: "待解决", TimeStatusLabel: "正常"},
	}

	buf, err := buildOrderWorkbook(views)
	require.NoError(t, err)

	f, err := excelize.OpenReader(buf)
	require.NoError(t, err)
	defer f.Close()

	taker, _ := f.GetCellValue("订单", "G2")
	assert.Equal(t, "bob", taker)
	take, _ := f.GetCellValue("订单", "I2")
	assert.Equal(t, "2024-05-01 08:00:00", take)
	summary, _ := f.GetCellValue("订单", "A5")
	assert.Equal(t, "共 2 条", summary)
}
