package api

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"bugmarket/database"
	"bugmarket/models"
	"bugmarket/service"

	"github.com/gin-gonic/gin"
	"github.com/xuri/excelize/v2"
)

// exportLimit 单次导出上限
const exportLimit = 10000

// ExportHandler 导出处理器
type ExportHandler struct {
	bugs *service.BugService
}

// NewExportHandler 创建导出处理器
func NewExportHandler() *ExportHandler {
	return &ExportHandler{bugs: service.NewBugService(database.DB)}
}

// ExportOrders 导出订单为 Excel
// @Summary 导出订单
// @Description 按与后台订单列表相同的条件导出 xlsx，最多 10000 条
// @Tags 后台-订单
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Security BearerAuth
// @Param tech_stack query string false "技术栈"
// @Param status query int false "订单状态"
// @Param time_status query int false "超期状态"
// @Param keyword query string false "关键词"
// @Success 200 {file} file "Excel 文件"
// @Failure 400 {object} Response "请求参数错误"
// @Router /api/admin/orders/export [get]
func (h *ExportHandler) ExportOrders(c *gin.Context) {
	q := service.BugQuery{
		TechStack: c.Query("tech_stack"),
		Keyword:   c.Query("keyword"),
	}
	if !parseStatusFilters(c, &q) {
		return
	}

	views, err := h.bugs.ListAll(c.Request.Context(), q, exportLimit)
	if err != nil {
		RespondError(c, err)
		return
	}

	buf, err := buildOrderWorkbook(views)
	if err != nil {
		InternalError(c, SafeErrorMessage(err, "生成 Excel 失败"))
		return
	}

	filename := fmt.Sprintf("orders_%s.xlsx", time.Now().Format("20060102_150405"))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", buf.Bytes())
}

// buildOrderWorkbook 生成订单工作簿
func buildOrderWorkbook(views []service.BugView) (*bytes.Buffer, error) {
	f := excelize.NewFile()
	defer f.Close()

	sheetName := "订单"
	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return nil, err
	}

	// 表头样式
	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 12, Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"4F81BD"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
		Border: []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
		},
	})
	// 已超期行标红
	expiredStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Color: "C00000"},
	})

	widths := map[string]float64{"A": 8, "B": 36, "C": 18, "D": 10, "E": 12, "F": 16, "G": 16, "H": 20, "I": 20, "J": 20}
	for col, w := range widths {
		f.SetColWidth(sheetName, col, col, w)
	}

	headers := []string{"ID", "标题", "技术栈", "状态", "超期状态", "发布者", "承接者", "发布时间", "承接时间", "最后更新"}
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheetName, cell, header)
		f.SetCellStyle(sheetName, cell, cell, headerStyle)
	}

	for i, v := range views {
		row := i + 2
		publisher, taker, takeTime := "", "", ""
		if v.Publisher != nil {
			publisher = v.Publisher.Username
		}
		if v.Taker != nil {
			taker = v.Taker.Username
		}
		if v.TakeTime != nil {
			takeTime = v.TakeTime.Format("2006-01-02 15:04:05")
		}
		values := []interface{}{
			v.ID,
			v.Title,
			v.TechStack,
			v.StatusLabel,
			v.TimeStatusLabel,
			publisher,
			taker,
			v.PublishTime.Format("2006-01-02 15:04:05"),
			takeTime,
			v.LastUpdateTime.Format("2006-01-02 15:04:05"),
		}
		start, _ := excelize.CoordinatesToCellName(1, row)
		if err := f.SetSheetRow(sheetName, start, &values); err != nil {
			return nil, err
		}
		if v.TimeStatus == models.TimeStatusExpired {
			end, _ := excelize.CoordinatesToCellName(len(values), row)
			f.SetCellStyle(sheetName, start, end, expiredStyle)
		}
	}

	// 汇总行
	summaryCell, _ := excelize.CoordinatesToCellName(1, len(views)+3)
	f.SetCellValue(sheetName, summaryCell, fmt.Sprintf("共 %d 条", len(views)))

	return f.WriteToBuffer()
}
