package processor

import (
	"time"

	"RideGap/src/model"
)

// 时段上界(含)，超过最后一个上界为 Night
var slotBounds = []struct {
	maxHour int
	slot    model.TimeSlot
}{
	{4, model.Dawn},
	{9, model.EarlyMorning},
	{16, model.Noon},
	{21, model.LateEvening},
}

// HourOf 请求时间的小时，时间为空返回nil
func HourOf(ts *time.Time) *int {
	if ts == nil {
		return nil
	}
	h := ts.Hour()
	return &h
}

// SlotForHour 按小时划分时段
// 小时为空时落入 Night，与依次比较上界、最后兜底的划分方式一致
func SlotForHour(hour *int) model.TimeSlot {
	if hour == nil {
		return model.Night
	}
	for _, b := range slotBounds {
		if *hour <= b.maxHour {
			return b.slot
		}
	}
	return model.Night
}

// AvailabilityFor 只有完成行程才算有车
func AvailabilityFor(status string) model.CabAvailability {
	if status == model.StatusTripCompleted {
		return model.Available
	}
	return model.NotAvailable
}

// DeriveFeatures 计算单条请求的派生字段，不依赖其他记录
func DeriveFeatures(raw model.RawRecord) model.EnrichedRecord {
	hour := HourOf(raw.RequestTimestamp)
	return model.EnrichedRecord{
		RawRecord:       raw,
		RequestHour:     hour,
		TimeSlot:        SlotForHour(hour),
		CabAvailability: AvailabilityFor(raw.Status),
	}
}
