package datapush

import (
	"errors"
	"fmt"
	"io"

	"RideGap/src/processor"

	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

// ErrNoData 查询结果为空，没有可画的内容
var ErrNoData = errors.New("没有可绘制的数据")

const (
	chartWidth  = 1024
	chartHeight = 576
)

// 系列颜色，按系列顺序循环使用
var palette = []drawing.Color{
	chart.ColorBlue,
	chart.ColorOrange,
	chart.ColorGreen,
	chart.ColorRed,
	chart.ColorCyan,
	chart.ColorYellow,
	chart.ColorAlternateGray,
}

func colorAt(i int) drawing.Color {
	return palette[i%len(palette)]
}

// RenderChart 按查询类型将结果渲染为PNG：二维分组画堆叠柱状图，一维分组画饼图
func RenderChart(q processor.Query, table processor.CountTable, w io.Writer) error {
	if table.Len() == 0 {
		return ErrNoData
	}

	var err error
	switch q.Kind {
	case processor.StackedBar:
		err = stackedBar(q, table).Render(chart.PNG, w)
	case processor.Pie:
		err = pie(q, table).Render(chart.PNG, w)
	default:
		return fmt.Errorf("未知图表类型: %v", q.Kind)
	}
	if err != nil {
		return fmt.Errorf("渲染图表 %s 失败: %w", q.Name, err)
	}
	return nil
}

// stackedBar 每个第一列取值一根柱子，第二列取值堆叠
func stackedBar(q processor.Query, table processor.CountTable) chart.StackedBarChart {
	p := table.Unstack()
	bars := make([]chart.StackedBar, 0, len(p.Index))
	for i, name := range p.Index {
		values := make([]chart.Value, 0, len(p.Series))
		for j, s := range p.Series {
			if p.Values[i][j] == 0 {
				continue
			}
			values = append(values, chart.Value{
				Label: s,
				Value: float64(p.Values[i][j]),
				Style: chart.Style{
					FillColor:   colorAt(j),
					StrokeColor: colorAt(j),
					StrokeWidth: 1,
				},
			})
		}
		bars = append(bars, chart.StackedBar{Name: name, Values: values})
	}

	barWidth := (chartWidth - 120) / (2 * len(bars))
	if barWidth > 80 {
		barWidth = 80
	}
	for i := range bars {
		bars[i].Width = barWidth
	}

	return chart.StackedBarChart{
		Title:      title(q),
		Width:      chartWidth,
		Height:     chartHeight,
		BarSpacing: barWidth,
		Background: chart.Style{Padding: chart.Box{Top: 40, Left: 16, Right: 16, Bottom: 16}},
		XAxis:      chart.Style{FontSize: 10},
		YAxis:      chart.Style{FontSize: 10},
		Bars:       bars,
	}
}

// pie 标签带百分比
func pie(q processor.Query, table processor.CountTable) chart.PieChart {
	sorted := table.Sorted()
	total := float64(sorted.Total())
	values := make([]chart.Value, 0, sorted.Len())
	for i, r := range sorted.Rows {
		values = append(values, chart.Value{
			Label: fmt.Sprintf("%s %.1f%%", r.Key[0], float64(r.Count)*100/total),
			Value: float64(r.Count),
			Style: chart.Style{FillColor: colorAt(i)},
		})
	}
	return chart.PieChart{
		Title:  title(q),
		Width:  chartHeight,
		Height: chartHeight,
		Values: values,
	}
}

func title(q processor.Query) string {
	if q.Title != "" {
		return q.Title
	}
	return q.Name
}
