package datapush

import (
	"bytes"
	"fmt"

	"RideGap/src/processor"

	"github.com/xuri/excelize/v2"
)

// SummarySheet 汇总页名称
const SummarySheet = "summary"

// WriteWorkbook 将汇总和各查询结果写入一个Excel文件，每个查询一页，附图表
func WriteWorkbook(summary processor.Summary, tables []processor.CountTable, filePath string) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SummarySheet); err != nil {
		return fmt.Errorf("重命名工作表失败: %w", err)
	}
	writeSummary(f, summary)

	for _, t := range tables {
		if _, err := f.NewSheet(t.Name); err != nil {
			return fmt.Errorf("创建工作表 %s 失败: %w", t.Name, err)
		}
		writeTable(f, t.Name, t.Sorted())

		q, ok := processor.Lookup(t.Name)
		if !ok {
			continue
		}
		var buf bytes.Buffer
		if err := RenderChart(q, t, &buf); err != nil {
			continue
		}
		anchor, _ := excelize.CoordinatesToCellName(len(t.Columns)+3, 2)
		if err := f.AddPictureFromBytes(t.Name, anchor, &excelize.Picture{
			Extension: ".png",
			File:      buf.Bytes(),
			Format:    &excelize.GraphicOptions{ScaleX: 0.6, ScaleY: 0.6},
		}); err != nil {
			return fmt.Errorf("插入图表失败: %w", err)
		}
	}

	// 保存文件
	if err := f.SaveAs(filePath); err != nil {
		return fmt.Errorf("保存Excel文件失败: %w", err)
	}
	return nil
}

func writeSummary(f *excelize.File, s processor.Summary) {
	rows := [][]interface{}{
		{"指标", "值"},
		{"请求总数", s.TotalRequests},
		{"完成", s.Completed},
		{"取消", s.Cancelled},
		{"无车", s.NoCarsAvailable},
		{"时间无法解析", s.UnparsedHours},
		{"供需缺口比例", fmt.Sprintf("%.2f%%", s.GapRate*100)},
		{"缺口最大时段", s.WorstSlot},
		{"数据加载时间", s.LoadedAt.Format("2006-01-02 15:04:05")},
	}
	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		f.SetSheetRow(SummarySheet, cell, &row)
	}
	f.SetColWidth(SummarySheet, "A", "A", 16)
	f.SetColWidth(SummarySheet, "B", "B", 22)
}

// writeTable 分组列加计数列
func writeTable(f *excelize.File, sheet string, t processor.CountTable) {
	// 写入列名
	for i, name := range t.Columns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheet, cell, name)
	}
	cell, _ := excelize.CoordinatesToCellName(len(t.Columns)+1, 1)
	f.SetCellValue(sheet, cell, processor.CountColumn)

	// 写入数据
	for rowIdx, r := range t.Rows {
		for colIdx, v := range r.Key {
			cell, _ := excelize.CoordinatesToCellName(colIdx+1, rowIdx+2)
			f.SetCellValue(sheet, cell, v)
		}
		cell, _ := excelize.CoordinatesToCellName(len(r.Key)+1, rowIdx+2)
		f.SetCellValue(sheet, cell, r.Count)
	}
}
