package processor

import (
	"RideGap/src/model"
)

// ChartKind 查询结果适合的图表类型
type ChartKind int

const (
	StackedBar ChartKind = iota // 二维分组
	Pie                         // 一维分组
)

func (k ChartKind) String() string {
	switch k {
	case StackedBar:
		return "bar"
	case Pie:
		return "pie"
	default:
		return "unknown"
	}
}

// Query 一个固定的分析查询及其展示信息
type Query struct {
	Name   string
	Title  string
	XLabel string
	Legend string
	Kind   ChartKind
	Run    func(*Dataset) CountTable
}

// 查询名
const (
	QueryFrequencyByHour          = "frequency_by_hour"
	QueryRequestsByPickupPoint    = "requests_by_pickup_point"
	QueryProblematicTimeSlots     = "problematic_time_slots"
	QueryAirportDemandSupplyGap   = "airport_demand_supply_gap"
	QueryGapByTimeSlot            = "gap_by_time_slot"
	QueryLateEveningByPickupPoint = "late_evening_by_pickup_point"
)

// Queries 全部查询，顺序即报表顺序
var Queries = []Query{
	{
		Name:   QueryFrequencyByHour,
		Title:  "Frequency of Requests by Hour",
		XLabel: "Request Hour",
		Legend: "Status",
		Kind:   StackedBar,
		Run:    FrequencyByHour,
	},
	{
		Name:  QueryRequestsByPickupPoint,
		Title: "Problematic Types of Requests",
		Kind:  Pie,
		Run:   RequestsByPickupPoint,
	},
	{
		Name:  QueryProblematicTimeSlots,
		Title: "Problematic Time Slots",
		Kind:  Pie,
		Run:   ProblematicTimeSlots,
	},
	{
		Name:   QueryAirportDemandSupplyGap,
		Title:  "Demand-Supply Gap from Airport to City",
		XLabel: "Request Hour",
		Legend: "Status",
		Kind:   StackedBar,
		Run:    AirportDemandSupplyGap,
	},
	{
		Name:   QueryGapByTimeSlot,
		Title:  "Time Slots Where Highest Gap Exists",
		XLabel: "Time Slot",
		Legend: "Cab Availability",
		Kind:   StackedBar,
		Run:    GapByTimeSlot,
	},
	{
		Name:  QueryLateEveningByPickupPoint,
		Title: "Problematic Types of Requests During Late Evening",
		Kind:  Pie,
		Run:   LateEveningByPickupPoint,
	},
}

// Lookup 按名称查找查询
func Lookup(name string) (Query, bool) {
	for _, q := range Queries {
		if q.Name == name {
			return q, true
		}
	}
	return Query{}, false
}

// RunAll 依次执行全部查询
func RunAll(d *Dataset) []CountTable {
	tables := make([]CountTable, len(Queries))
	for i, q := range Queries {
		tables[i] = q.Run(d)
	}
	return tables
}

// FrequencyByHour 按小时和状态统计请求数
func FrequencyByHour(d *Dataset) CountTable {
	return groupCount(QueryFrequencyByHour, d.df, nil, model.ColRequestHour, model.ColStatus)
}

// RequestsByPickupPoint 按上车点统计请求数
func RequestsByPickupPoint(d *Dataset) CountTable {
	return groupCount(QueryRequestsByPickupPoint, d.df, nil, model.ColPickupPoint)
}

// ProblematicTimeSlots 无车请求按时段分布
func ProblematicTimeSlots(d *Dataset) CountTable {
	return groupCount(QueryProblematicTimeSlots, d.df,
		equals(model.ColCabAvailability, model.NotAvailable.String()),
		model.ColTimeSlot)
}

// AirportDemandSupplyGap 机场出发的请求按小时和状态统计
func AirportDemandSupplyGap(d *Dataset) CountTable {
	return groupCount(QueryAirportDemandSupplyGap, d.df,
		equals(model.ColPickupPoint, model.PickupAirport),
		model.ColRequestHour, model.ColStatus)
}

// GapByTimeSlot 按时段和有无车统计
func GapByTimeSlot(d *Dataset) CountTable {
	return groupCount(QueryGapByTimeSlot, d.df, nil, model.ColTimeSlot, model.ColCabAvailability)
}

// LateEveningByPickupPoint 傍晚时段的请求按上车点统计
func LateEveningByPickupPoint(d *Dataset) CountTable {
	return groupCount(QueryLateEveningByPickupPoint, d.df,
		equals(model.ColTimeSlot, model.LateEvening.String()),
		model.ColPickupPoint)
}
