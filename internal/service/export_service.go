package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"visitor-gate/internal/repository"
)

// ── 导出模块业务错误 ──

var (
	ErrExportNoLogs       = errors.New("该排期暂无出入记录")
	ErrExportGenerateFail = errors.New("生成 Excel 文件失败")
)

// ExportService 导出业务接口
//
// 导出以 bytes.Buffer 返回，由 Handler 层设置 HTTP 响应头后写入 Response
type ExportService interface {
	// ExportEntryLogs 导出某排期的全部出入记录为 Excel
	ExportEntryLogs(ctx context.Context, scheduleID string) (*bytes.Buffer, string, error)
}

type exportService struct {
	repo   *repository.Repository
	loc    *time.Location
	logger *zap.Logger
}

// NewExportService 创建 ExportService 实例
func NewExportService(repo *repository.Repository, loc *time.Location, logger *zap.Logger) ExportService {
	if loc == nil {
		loc = time.UTC
	}
	return &exportService{repo: repo, loc: loc, logger: logger}
}

// ═══════════════════════════════════════════════════════════
// ExportEntryLogs — 导出出入记录为 Excel
// ═══════════════════════════════════════════════════════════
//
// 输出格式：
//   - 标题行：排期 ID / 访客类型 / 当前状态
//   - 表头：序号 | 访客 | 入场时间 | 离场时间 | 停留时长 | 登记保安
//   - 按创建时间升序
//
// 返回值：buf（Excel 内容）, filename（建议文件名）, error

func (s *exportService) ExportEntryLogs(ctx context.Context, scheduleID string) (*bytes.Buffer, string, error) {
	// 1. 查询排期
	scheduleID, ok := parseID(scheduleID)
	if !ok {
		return nil, "", ErrScheduleNotFound
	}
	schedule, err := s.repo.Schedule.GetByID(ctx, scheduleID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, "", ErrScheduleNotFound
		}
		s.logger.Error("查询排期失败", zap.Error(err))
		return nil, "", err
	}

	// 2. 查询出入记录
	logs, err := s.repo.EntryLog.ListAllBySchedule(ctx, scheduleID)
	if err != nil {
		s.logger.Error("查询出入记录失败", zap.Error(err))
		return nil, "", err
	}
	if len(logs) == 0 {
		return nil, "", ErrExportNoLogs
	}

	// 3. 生成 Excel
	f := excelize.NewFile()
	defer f.Close()

	sheetName := "Entry Logs"
	idx, _ := f.NewSheet(sheetName)
	f.SetActiveSheet(idx)
	// 删除默认 Sheet1
	f.DeleteSheet("Sheet1")

	f.SetColWidth(sheetName, "A", "A", 6)
	f.SetColWidth(sheetName, "B", "B", 24)
	f.SetColWidth(sheetName, "C", "D", 22)
	f.SetColWidth(sheetName, "E", "E", 12)
	f.SetColWidth(sheetName, "F", "F", 20)

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})

	// 标题行
	f.SetCellValue(sheetName, "A1", fmt.Sprintf("Schedule %s (%s, %s)", schedule.ScheduleID, schedule.VisitorType, schedule.Status))
	f.MergeCell(sheetName, "A1", "F1")
	f.SetCellStyle(sheetName, "A1", "A1", headerStyle)

	// 表头
	headers := []string{"#", "Visitor", "Entry", "Exit", "Minutes", "Security"}
	for i, h := range headers {
		f.SetCellValue(sheetName, cell(colName(i), 2), h)
	}
	f.SetCellStyle(sheetName, "A2", "F2", headerStyle)

	// 数据行
	row := 3
	for i, l := range logs {
		visitor := l.VisitorID
		if l.Visitor != nil {
			visitor = l.Visitor.FullName()
		}
		security := l.SecurityID
		if l.Security != nil {
			security = l.Security.Name
		}

		f.SetCellValue(sheetName, cell("A", row), i+1)
		f.SetCellValue(sheetName, cell("B", row), visitor)
		f.SetCellValue(sheetName, cell("C", row), s.formatCell(l.EntryTime))
		f.SetCellValue(sheetName, cell("D", row), s.formatCell(l.ExitTime))
		if l.IsClosed() {
			f.SetCellValue(sheetName, cell("E", row), int(l.ExitTime.Sub(*l.EntryTime).Minutes()))
		} else {
			f.SetCellValue(sheetName, cell("E", row), "-")
		}
		f.SetCellValue(sheetName, cell("F", row), security)
		row++
	}

	// 写入 buffer
	buf := new(bytes.Buffer)
	if err := f.Write(buf); err != nil {
		s.logger.Error("写入 Excel 失败", zap.Error(err))
		return nil, "", ErrExportGenerateFail
	}

	filename := fmt.Sprintf("entry_logs_%s.xlsx", schedule.ScheduleID)
	return buf, filename, nil
}

func (s *exportService) formatCell(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.In(s.loc).Format("2006-01-02 15:04:05")
}

// colName 将 0-based 列索引转为 Excel 列名（0→A）
func colName(idx int) string {
	name, _ := excelize.ColumnNumberToName(idx + 1)
	return name
}

// cell 拼接单元格坐标
func cell(col string, row int) string {
	return fmt.Sprintf("%s%d", col, row)
}
