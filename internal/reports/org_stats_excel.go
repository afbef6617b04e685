package reports

import (
	"bytes"
	"fmt"

	"whosehouse/internal/models"

	"github.com/xuri/excelize/v2"
)

// OrgStatsHeader 机构统计导出表头
var OrgStatsHeader = []string{
	"Metric",
	"Value",
}

// 导出行的指标顺序固定，便于对账
var orgStatsRows = []struct {
	label string
	value func(*models.OrgStats) any
}{
	{"Organization", func(s *models.OrgStats) any { return s.OrganizationName }},
	{"Active Users", func(s *models.OrgStats) any { return s.ActiveUsers }},
	{"Social Workers", func(s *models.OrgStats) any { return s.SocialWorkers }},
	{"Foster Carers", func(s *models.OrgStats) any { return s.FosterCarers }},
	{"Households", func(s *models.OrgStats) any { return s.Households }},
	{"Active Cases", func(s *models.OrgStats) any { return s.ActiveCases }},
	{"Pending Cases", func(s *models.OrgStats) any { return s.PendingCases }},
	{"Closed Cases", func(s *models.OrgStats) any { return s.ClosedCases }},
	{"Pending Placements", func(s *models.OrgStats) any { return s.PendingPlacements }},
	{"Messages (Last 30 Days)", func(s *models.OrgStats) any { return s.MessagesLast30d }},
}

// GenerateOrgStatsExport 生成机构统计导出Excel文件
func GenerateOrgStatsExport(stats *models.OrgStats) ([]byte, error) {
	f := excelize.NewFile()
	// 注意：WriteTo需要文件保持打开，这里不defer Close

	sheetName := "Organisation Stats"
	index, err := f.NewSheet(sheetName)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	f.DeleteSheet("Sheet1")
	f.SetActiveSheet(index)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{
			Bold: true,
		},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"#E6F3FF"},
			Pattern: 1,
		},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
	})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	for col, header := range OrgStatsHeader {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to convert coordinates: %w", err)
		}
		if err := f.SetCellValue(sheetName, cell, header); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to set header cell %s: %w", cell, err)
		}
		if err := f.SetCellStyle(sheetName, cell, cell, headerStyle); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to set header style: %w", err)
		}
	}

	if err := f.SetColWidth(sheetName, "A", "A", 30); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to set column width: %w", err)
	}
	if err := f.SetColWidth(sheetName, "B", "B", 20); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to set column width: %w", err)
	}

	for i, row := range orgStatsRows {
		rowNum := i + 2 // 第1行是表头
		if err := f.SetCellValue(sheetName, fmt.Sprintf("A%d", rowNum), row.label); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to set metric cell: %w", err)
		}
		if err := f.SetCellValue(sheetName, fmt.Sprintf("B%d", rowNum), row.value(stats)); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to set value cell: %w", err)
		}
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("failed to close workbook: %w", err)
	}
	return buf.Bytes(), nil
}
