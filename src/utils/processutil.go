package utils

import (
	"strings"
	"time"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

func Contains[T comparable](slice []T, item T) bool {
	for _, v := range slice {
		if v == item {
			return true
		}
	}
	return false
}

// 辅助函数：判断DataFrame是否有某列
func HasColumn(df dataframe.DataFrame, name string) bool {
	for _, n := range df.Names() {
		if n == name {
			return true
		}
	}
	return false
}

// MissingColumns 返回DataFrame中缺失的列
func MissingColumns(df dataframe.DataFrame, names ...string) []string {
	var missing []string
	for _, name := range names {
		if !HasColumn(df, name) {
			missing = append(missing, name)
		}
	}
	return missing
}

// IsNull 判断单元格是否为空值：空串、NaN或配置的空值标记
func IsNull(s string, nulls []string) bool {
	s = strings.TrimSpace(s)
	return s == "" || s == "NaN" || Contains(nulls, s)
}

// ParseTimestamp 依次尝试layouts解析时间，全部失败或为空值时返回nil
func ParseTimestamp(s string, layouts, nulls []string) *time.Time {
	if IsNull(s, nulls) {
		return nil
	}
	s = strings.TrimSpace(s)
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}

// ElementString 读取单元格，NA返回空串
func ElementString(e series.Element) string {
	if e.IsNA() {
		return ""
	}
	return strings.TrimSpace(e.String())
}
