// data.go
package processor

import (
	"time"

	"RideGap/src/model"
)

// Summary 数据集总体指标
type Summary struct {
	TotalRequests   int       `json:"total_requests"`
	Completed       int       `json:"completed"`
	Cancelled       int       `json:"cancelled"`
	NoCarsAvailable int       `json:"no_cars_available"`
	UnparsedHours   int       `json:"unparsed_hours"`
	GapRate         float64   `json:"gap_rate"`           // 无车请求占比
	WorstSlot       string    `json:"worst_slot"`         // 无车请求最多的时段
	WorstSlotCount  int       `json:"worst_slot_count"`
	LoadedAt        time.Time `json:"loaded_at"`
}

// Summarize 计算业务指标
func Summarize(d *Dataset) Summary {
	s := Summary{TotalRequests: d.Len(), LoadedAt: d.LoadedAt()}
	notAvailable := 0
	for _, r := range d.records {
		switch r.Status {
		case model.StatusTripCompleted:
			s.Completed++
		case model.StatusCancelled:
			s.Cancelled++
		case model.StatusNoCarsAvailable:
			s.NoCarsAvailable++
		}
		if r.RequestHour == nil {
			s.UnparsedHours++
		}
		if r.CabAvailability == model.NotAvailable {
			notAvailable++
		}
	}
	if s.TotalRequests > 0 {
		s.GapRate = float64(notAvailable) / float64(s.TotalRequests)
	}

	for _, row := range ProblematicTimeSlots(d).Sorted().Rows {
		if row.Count > s.WorstSlotCount {
			s.WorstSlot = row.Key[0]
			s.WorstSlotCount = row.Count
		}
	}
	return s
}
