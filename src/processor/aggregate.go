package processor

import (
	"sort"
	"strconv"
	"strings"

	"RideGap/src/model"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

// CountColumn 计数列名
const CountColumn = "count"

// CountRow 一个分组及其计数
type CountRow struct {
	Key   []string `json:"key"`
	Count int      `json:"count"`
}

// CountTable 分组计数结果，按首次出现的顺序排列
type CountTable struct {
	Name    string     `json:"name"`
	Columns []string   `json:"columns"`
	Rows    []CountRow `json:"rows"`
}

// Len 分组数
func (t CountTable) Len() int { return len(t.Rows) }

// Total 所有分组计数之和
func (t CountTable) Total() int {
	total := 0
	for _, r := range t.Rows {
		total += r.Count
	}
	return total
}

// Count 返回指定分组的计数，不存在返回0
func (t CountTable) Count(key ...string) int {
	for _, r := range t.Rows {
		if equalKeys(r.Key, key) {
			return r.Count
		}
	}
	return 0
}

// Sorted 返回按自然顺序排列的副本：小时按数值，时段按一天的先后，NA排最后
func (t CountTable) Sorted() CountTable {
	out := CountTable{Name: t.Name, Columns: t.Columns, Rows: make([]CountRow, len(t.Rows))}
	copy(out.Rows, t.Rows)
	sort.SliceStable(out.Rows, func(i, j int) bool {
		return compareKeys(out.Rows[i].Key, out.Rows[j].Key) < 0
	})
	return out
}

// Pivot 二维分组展开后的矩阵，Values[i][j] 对应 Index[i] 与 Series[j]
type Pivot struct {
	Index  []string
	Series []string
	Values [][]int
}

// Unstack 以第一列为行、第二列为系列展开；一维表只有一个系列
func (t CountTable) Unstack() Pivot {
	sorted := t.Sorted()
	var p Pivot
	rowPos := map[string]int{}
	colPos := map[string]int{}

	if len(t.Columns) < 2 {
		p.Series = []string{CountColumn}
		for _, r := range sorted.Rows {
			p.Index = append(p.Index, r.Key[0])
			p.Values = append(p.Values, []int{r.Count})
		}
		return p
	}

	for _, r := range sorted.Rows {
		if _, ok := rowPos[r.Key[0]]; !ok {
			rowPos[r.Key[0]] = len(p.Index)
			p.Index = append(p.Index, r.Key[0])
		}
		if _, ok := colPos[r.Key[1]]; !ok {
			colPos[r.Key[1]] = len(p.Series)
			p.Series = append(p.Series, r.Key[1])
		}
	}
	sort.SliceStable(p.Series, func(i, j int) bool {
		return compareValues(p.Series[i], p.Series[j]) < 0
	})
	for j, s := range p.Series {
		colPos[s] = j
	}

	p.Values = make([][]int, len(p.Index))
	for i := range p.Values {
		p.Values[i] = make([]int, len(p.Series))
	}
	for _, r := range sorted.Rows {
		p.Values[rowPos[r.Key[0]]][colPos[r.Key[1]]] += r.Count
	}
	return p
}

// Frame 转为gota DataFrame，分组列加计数列
func (t CountTable) Frame() dataframe.DataFrame {
	cols := make([]series.Series, 0, len(t.Columns)+1)
	for i, name := range t.Columns {
		values := make([]string, len(t.Rows))
		for j, r := range t.Rows {
			values[j] = r.Key[i]
		}
		cols = append(cols, series.New(values, series.String, name))
	}
	counts := make([]int, len(t.Rows))
	for j, r := range t.Rows {
		counts[j] = r.Count
	}
	cols = append(cols, series.New(counts, series.Int, CountColumn))
	return dataframe.New(cols...)
}

// groupCount 先按where过滤，再按cols分组计数
// 空值作为独立分组 NA 保留，未过滤时计数之和等于记录数
func groupCount(name string, df dataframe.DataFrame, where *dataframe.F, cols ...string) CountTable {
	table := CountTable{Name: name, Columns: cols, Rows: []CountRow{}}
	if df.Nrow() == 0 {
		return table
	}
	if where != nil {
		df = df.Filter(*where)
		if df.Err != nil || df.Nrow() == 0 {
			return table
		}
	}

	keyCols := make([]series.Series, len(cols))
	for i, c := range cols {
		keyCols[i] = df.Col(c)
	}

	index := make(map[string]int)
	for row := 0; row < df.Nrow(); row++ {
		key := make([]string, len(cols))
		for i, s := range keyCols {
			key[i] = keyValue(s.Elem(row))
		}
		k := strings.Join(key, "\x1f")
		if pos, ok := index[k]; ok {
			table.Rows[pos].Count++
			continue
		}
		index[k] = len(table.Rows)
		table.Rows = append(table.Rows, CountRow{Key: key, Count: 1})
	}
	return table
}

// equals 生成等值过滤条件
func equals(col, value string) *dataframe.F {
	return &dataframe.F{Colname: col, Comparator: series.Eq, Comparando: value}
}

func keyValue(e series.Element) string {
	if e.IsNA() {
		return model.NullKey
	}
	return e.String()
}

func equalKeys(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func compareKeys(a, b []string) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		if c := compareValues(a[i], b[i]); c != 0 {
			return c
		}
	}
	return len(a) - len(b)
}

func compareValues(a, b string) int {
	if a == b {
		return 0
	}
	if a == model.NullKey {
		return 1
	}
	if b == model.NullKey {
		return -1
	}
	if x, errA := strconv.Atoi(a); errA == nil {
		if y, errB := strconv.Atoi(b); errB == nil {
			return x - y
		}
	}
	if ra, rb := model.TimeSlot(a).Rank(), model.TimeSlot(b).Rank(); ra >= 0 && rb >= 0 {
		return ra - rb
	}
	return strings.Compare(a, b)
}
