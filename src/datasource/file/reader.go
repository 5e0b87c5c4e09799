// reader.go
package file

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"RideGap/src/config"
	"RideGap/src/model"
	"RideGap/src/utils"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/tealeg/xlsx"
)

const (
	Number string = "^[0-9]+(\\.[0-9]+)?$"
)

var excelSerial = regexp.MustCompile(Number)

// ErrMissingColumn 数据源缺少必需列
var ErrMissingColumn = errors.New("missing required column")

// LoadError 数据源无法打开、解析或缺列
type LoadError struct {
	Source string
	Err    error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load %s: %v", e.Source, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// Load 按扩展名读取csv或xlsx请求数据
func Load(path string, dcfg *config.DataConfig, sheetName string) ([]model.RawRecord, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		xlFile, err := xlsx.OpenFile(path)
		if err != nil {
			return nil, &LoadError{Source: path, Err: fmt.Errorf("xlsx open file: %w", err)}
		}
		return loadWorkbook(path, xlFile, sheetName, dcfg)
	default:
		f, err := os.Open(path)
		if err != nil {
			return nil, &LoadError{Source: path, Err: err}
		}
		defer f.Close()
		return loadCSV(path, f, dcfg)
	}
}

// LoadCSV 从reader读取csv请求数据
func LoadCSV(r io.Reader, dcfg *config.DataConfig) ([]model.RawRecord, error) {
	return loadCSV("csv", r, dcfg)
}

// LoadBytes 读取内存中的文件内容，如邮件附件
func LoadBytes(name string, data []byte, dcfg *config.DataConfig, sheetName string) ([]model.RawRecord, error) {
	if strings.EqualFold(filepath.Ext(name), ".xlsx") {
		xlFile, err := xlsx.OpenBinary(data)
		if err != nil {
			return nil, &LoadError{Source: name, Err: fmt.Errorf("xlsx open binary: %w", err)}
		}
		return loadWorkbook(name, xlFile, sheetName, dcfg)
	}
	return loadCSV(name, bytes.NewReader(data), dcfg)
}

func loadCSV(source string, r io.Reader, dcfg *config.DataConfig) ([]model.RawRecord, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	// 单元格里的裸引号按字面读入，由单元格解析决定是否为空值
	reader.LazyQuotes = true

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, &LoadError{Source: source, Err: fmt.Errorf("read csv: %w", err)}
	}
	return recordsFromRows(source, rows, dcfg)
}

func loadWorkbook(source string, xlFile *xlsx.File, sheetName string, dcfg *config.DataConfig) ([]model.RawRecord, error) {
	if len(xlFile.Sheets) == 0 {
		return nil, &LoadError{Source: source, Err: fmt.Errorf("excel文件中没有工作表")}
	}
	sheet, ok := xlFile.Sheet[sheetName]
	if !ok {
		sheet = xlFile.Sheets[0]
	}

	rows := sheetRows(sheet)
	if len(rows) > 0 {
		convertSerialTimestamps(rows, dcfg)
	}
	return recordsFromRows(source, rows, dcfg)
}

// sheetRows 将工作表转为二维字符串，短行补齐到表头宽度
func sheetRows(sheet *xlsx.Sheet) [][]string {
	if len(sheet.Rows) == 0 {
		return nil
	}

	var headers []string
	for _, cell := range sheet.Rows[0].Cells {
		headers = append(headers, strings.TrimSpace(cell.Value))
	}

	rows := make([][]string, 0, len(sheet.Rows))
	rows = append(rows, headers)
	for _, row := range sheet.Rows[1:] {
		if row == nil {
			continue
		}
		values := make([]string, len(headers))
		empty := true
		for i, cell := range row.Cells {
			if i < len(headers) && cell != nil {
				values[i] = cell.Value
				if values[i] != "" {
					empty = false
				}
			}
		}
		if !empty {
			rows = append(rows, values)
		}
	}
	return rows
}

// convertSerialTimestamps excel日期序列号转为首个时间格式的字符串
func convertSerialTimestamps(rows [][]string, dcfg *config.DataConfig) {
	layouts := dcfg.Layouts()
	if len(layouts) == 0 {
		return
	}
	header := rows[0]
	for _, key := range []string{config.KeyRequestTimestamp, config.KeyDropTimestamp} {
		idx := indexOf(header, dcfg.Column(key))
		if idx < 0 {
			continue
		}
		for _, row := range rows[1:] {
			if t, ok := excelToTime(row[idx]); ok {
				row[idx] = t.Format(layouts[0])
			}
		}
	}
}

// excelToTime 处理excel日期序列号
func excelToTime(v string) (time.Time, bool) {
	v = strings.TrimSpace(v)
	if !excelSerial.MatchString(v) {
		return time.Time{}, false
	}
	excelDays, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return time.Time{}, false
	}

	base := time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)
	days := int(excelDays)
	fraction := excelDays - float64(days)
	// 按秒取整，避免浮点误差造成 08:29:59.999
	seconds := int64(fraction*86400 + 0.5)
	return base.AddDate(0, 0, days).Add(time.Duration(seconds) * time.Second), true
}

// recordsFromRows 载入gota DataFrame并转换为请求记录
func recordsFromRows(source string, rows [][]string, dcfg *config.DataConfig) ([]model.RawRecord, error) {
	if len(rows) == 0 {
		return nil, &LoadError{Source: source, Err: fmt.Errorf("%w: no header row", ErrMissingColumn)}
	}

	rows = normalizeRows(rows)
	header := rows[0]
	var missing []string
	for _, col := range dcfg.RequiredColumns() {
		if indexOf(header, col) < 0 {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, &LoadError{Source: source, Err: fmt.Errorf("%w: %s", ErrMissingColumn, strings.Join(missing, ", "))}
	}

	if len(rows) == 1 {
		return []model.RawRecord{}, nil
	}

	df := dataframe.LoadRecords(rows,
		dataframe.HasHeader(true),
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
		dataframe.NaNValues(dcfg.Nulls()),
	)
	if df.Err != nil {
		return nil, &LoadError{Source: source, Err: fmt.Errorf("build dataframe: %w", df.Err)}
	}
	if missing := utils.MissingColumns(df, dcfg.RequiredColumns()...); len(missing) > 0 {
		return nil, &LoadError{Source: source, Err: fmt.Errorf("%w: %s", ErrMissingColumn, strings.Join(missing, ", "))}
	}

	return recordsFromFrame(df, dcfg), nil
}

func recordsFromFrame(df dataframe.DataFrame, dcfg *config.DataConfig) []model.RawRecord {
	layouts := dcfg.Layouts()
	nulls := dcfg.Nulls()

	column := func(key string) *series.Series {
		name := dcfg.Column(key)
		if name == "" || !utils.HasColumn(df, name) {
			return nil
		}
		s := df.Col(name)
		return &s
	}
	value := func(s *series.Series, i int) string {
		if s == nil {
			return ""
		}
		v := utils.ElementString(s.Elem(i))
		if utils.IsNull(v, nulls) {
			return ""
		}
		return v
	}

	requestID := column(config.KeyRequestID)
	pickup := column(config.KeyPickupPoint)
	driver := column(config.KeyDriverID)
	status := column(config.KeyStatus)
	requested := column(config.KeyRequestTimestamp)
	dropped := column(config.KeyDropTimestamp)

	records := make([]model.RawRecord, df.Nrow())
	for i := range records {
		records[i] = model.RawRecord{
			RequestID:        value(requestID, i),
			PickupPoint:      value(pickup, i),
			DriverID:         value(driver, i),
			Status:           value(status, i),
			RequestTimestamp: utils.ParseTimestamp(value(requested, i), layouts, nulls),
			DropTimestamp:    utils.ParseTimestamp(value(dropped, i), layouts, nulls),
		}
	}
	return records
}

// normalizeRows 表头去空格，数据行对齐表头宽度，丢弃空行
func normalizeRows(rows [][]string) [][]string {
	header := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		header[i] = strings.TrimSpace(h)
	}

	out := make([][]string, 0, len(rows))
	out = append(out, header)
	for _, row := range rows[1:] {
		if isBlankRow(row) {
			continue
		}
		values := make([]string, len(header))
		copy(values, row)
		out = append(out, values)
	}
	return out
}

func isBlankRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

func indexOf(header []string, name string) int {
	for i, h := range header {
		if strings.TrimSpace(h) == name {
			return i
		}
	}
	return -1
}
