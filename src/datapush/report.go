package datapush

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"RideGap/src/processor"
)

// WorkbookName 报表文件名
const WorkbookName = "report.xlsx"

// Report 一次发布的结果
type Report struct {
	Summary  processor.Summary
	Tables   []processor.CountTable
	Charts   map[string]string // 查询名 -> PNG路径，空结果没有图
	Workbook string
}

// ChartPath 查询图表的输出路径
func ChartPath(outDir, name string) string {
	return filepath.Join(outDir, name+".png")
}

// Publish 执行全部查询，输出每个查询的图表和汇总工作簿
func Publish(ds *processor.Dataset, outDir string) (*Report, error) {
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return nil, fmt.Errorf("创建输出目录失败: %w", err)
	}

	r := &Report{
		Summary:  processor.Summarize(ds),
		Tables:   processor.RunAll(ds),
		Charts:   make(map[string]string),
		Workbook: filepath.Join(outDir, WorkbookName),
	}

	for i, q := range processor.Queries {
		path := ChartPath(outDir, q.Name)
		if err := writeChart(q, r.Tables[i], path); err != nil {
			if errors.Is(err, ErrNoData) {
				// 旧图不再对应当前数据
				os.Remove(path)
				continue
			}
			return nil, err
		}
		r.Charts[q.Name] = path
	}

	if err := WriteWorkbook(r.Summary, r.Tables, r.Workbook); err != nil {
		return nil, err
	}
	return r, nil
}

// writeChart 先写临时文件再改名，看板读取时不会读到半张图
func writeChart(q processor.Query, t processor.CountTable, path string) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+q.Name+"-*.png")
	if err != nil {
		return fmt.Errorf("创建图表文件失败: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := RenderChart(q, t, tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("写入图表文件失败: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("保存图表失败: %w", err)
	}
	return nil
}
