package service

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	apperr "kgv/backend/pkg/errors"
)

// ── 导出模块业务错误 ──

var ErrExportGenerateFail = apperr.New(apperr.KindUnexpected, "Excel-Datei konnte nicht erzeugt werden")

// ExportService 导出业务接口
//
// 设计说明：
//   - 导出以 bytes.Buffer 返回，由调用方写入文件或响应
//   - Excel 格式：单个 Sheet "Warteliste"，一行一个排队中的申请
type ExportService interface {
	// ExportWaitingList 导出区等候名单为 Excel
	ExportWaitingList(ctx context.Context, districtID string) (*bytes.Buffer, string, error)
}

type exportService struct {
	*core
	applications *applicationService
}

var waitingListHeader = []string{
	"Pos.", "Eingangsnummer", "Aktenzeichen", "Name", "Anschrift", "Antragsdatum", "Wünsche",
}

// ═══════════════════════════════════════════════════════════
// ExportWaitingList — 导出等候名单为 Excel
// ═══════════════════════════════════════════════════════════
//
// 输出格式：
//   - 第 1 行：标题 "Warteliste <区>"，合并至最后一列
//   - 第 2 行：表头
//   - 第 3 行起：按申请日期排序的排队申请
//
// 返回值：buf（Excel 内容）, filename（建议文件名）, error

func (s *exportService) ExportWaitingList(ctx context.Context, districtID string) (buf *bytes.Buffer, filename string, err error) {
	defer s.observe("export.waiting_list", time.Now(), &err)

	d, err := s.store.NewUnitOfWork().Districts().GetByID(ctx, districtID)
	if err != nil {
		return nil, "", s.fail("查询区失败", notFound(err, ErrDistrictNotFound), zap.String("district_id", districtID))
	}
	apps, err := s.applications.waiting(ctx, districtID)
	if err != nil {
		return nil, "", err
	}

	f := excelize.NewFile()
	defer f.Close()

	sheetName := "Warteliste"
	idx, _ := f.NewSheet(sheetName)
	f.SetActiveSheet(idx)
	// 删除默认 Sheet1
	f.DeleteSheet("Sheet1")

	widths := []float64{6, 18, 16, 32, 40, 14, 40}
	for i, w := range widths {
		col := colName(i)
		f.SetColWidth(sheetName, col, col, w)
	}

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#C6E0B4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})

	// 标题行
	f.SetCellValue(sheetName, "A1", fmt.Sprintf("Warteliste %s", d.Label()))
	f.MergeCell(sheetName, "A1", cell(colName(len(waitingListHeader)-1), 1))
	f.SetCellStyle(sheetName, "A1", "A1", headerStyle)

	// 表头
	for i, h := range waitingListHeader {
		f.SetCellValue(sheetName, cell(colName(i), 2), h)
	}
	f.SetCellStyle(sheetName, "A2", cell(colName(len(waitingListHeader)-1), 2), headerStyle)

	// 数据行
	for i := range apps {
		a := &apps[i]
		row := 3 + i
		values := []any{
			i + 1,
			a.EntryNumber,
			a.FileReference,
			a.DisplayName(),
			a.Address.Line(),
			a.ApplicationDate.Format("02.01.2006"),
			a.Preferences,
		}
		for c, v := range values {
			f.SetCellValue(sheetName, cell(colName(c), row), v)
		}
	}

	buf = new(bytes.Buffer)
	if err := f.Write(buf); err != nil {
		s.logger.Error("写入 Excel 失败", zap.Error(err))
		return nil, "", ErrExportGenerateFail
	}

	filename = fmt.Sprintf("Warteliste_%s_%s.xlsx", d.Name, s.clock().Format("2006-01-02"))
	s.logger.Info("Warteliste exportiert", zap.String("district_id", districtID), zap.Int("rows", len(apps)))
	return buf, filename, nil
}

// ── 辅助函数 ──

func colName(idx int) string {
	name, _ := excelize.ColumnNumberToName(idx + 1)
	return name
}

func cell(col string, row int) string {
	return fmt.Sprintf("%s%d", col, row)
}
