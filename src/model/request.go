package model

import "time"

// TimeSlot 请求时段
type TimeSlot string

// 时段按一天中的先后顺序定义
const (
	Dawn         TimeSlot = "Dawn"
	EarlyMorning TimeSlot = "Early Morning"
	Noon         TimeSlot = "Noon"
	LateEvening  TimeSlot = "Late Evening"
	Night        TimeSlot = "Night"
)

// TimeSlots 全部时段，顺序即排序顺序
var TimeSlots = []TimeSlot{Dawn, EarlyMorning, Noon, LateEvening, Night}

// Rank 返回时段在一天中的位置，未知时段返回 -1
func (t TimeSlot) Rank() int {
	for i, s := range TimeSlots {
		if s == t {
			return i
		}
	}
	return -1
}

func (t TimeSlot) String() string { return string(t) }

// CabAvailability 是否有车
type CabAvailability string

const (
	Available    CabAvailability = "Available"
	NotAvailable CabAvailability = "Not Available"
)

func (c CabAvailability) String() string { return string(c) }

// 数据集中出现的状态和上车点
const (
	StatusTripCompleted   = "Trip Completed"
	StatusCancelled       = "Cancelled"
	StatusNoCarsAvailable = "No Cars Available"

	PickupAirport = "Airport"
	PickupCity    = "City"
)

// 源文件列名
const (
	ColRequestID        = "Request id"
	ColPickupPoint      = "Pickup point"
	ColDriverID         = "Driver id"
	ColStatus           = "Status"
	ColRequestTimestamp = "Request timestamp"
	ColDropTimestamp    = "Drop timestamp"

	// 派生列
	ColRequestHour     = "RequestHour"
	ColTimeSlot        = "TimeSlot"
	ColCabAvailability = "Cab Availability"
)

// NullKey 分组时空值的键
const NullKey = "NA"

// RawRecord 一条打车请求(已规整)
type RawRecord struct {
	RequestID        string
	PickupPoint      string
	DriverID         string
	Status           string
	RequestTimestamp *time.Time // 无法解析或为NA时为nil
	DropTimestamp    *time.Time
}

// EnrichedRecord 带派生字段的请求，创建后不再修改
type EnrichedRecord struct {
	RawRecord
	RequestHour     *int
	TimeSlot        TimeSlot
	CabAvailability CabAvailability
}
