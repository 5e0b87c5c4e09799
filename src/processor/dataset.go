package processor

import (
	"strconv"
	"sync"
	"time"

	"RideGap/src/model"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

const frameTimeLayout = "2006-01-02 15:04:05"

// Dataset 派生后的请求数据，创建后只读
type Dataset struct {
	records  []model.EnrichedRecord
	df       dataframe.DataFrame
	loadedAt time.Time
}

// NewDataset 对每条记录计算派生字段并建立DataFrame
func NewDataset(raw []model.RawRecord) *Dataset {
	records := make([]model.EnrichedRecord, len(raw))
	for i, r := range raw {
		records[i] = DeriveFeatures(r)
	}
	return &Dataset{
		records:  records,
		df:       buildFrame(records),
		loadedAt: time.Now(),
	}
}

// Len 记录数
func (d *Dataset) Len() int { return len(d.records) }

// LoadedAt 数据集建立时间
func (d *Dataset) LoadedAt() time.Time { return d.loadedAt }

// Records 返回记录副本
func (d *Dataset) Records() []model.EnrichedRecord {
	out := make([]model.EnrichedRecord, len(d.records))
	copy(out, d.records)
	return out
}

// Frame 返回DataFrame副本
func (d *Dataset) Frame() dataframe.DataFrame {
	return d.df.Copy()
}

// buildFrame 空值写成 "NaN"，gota会把它识别为NA
func buildFrame(records []model.EnrichedRecord) dataframe.DataFrame {
	n := len(records)
	var (
		requestID = make([]string, n)
		pickup    = make([]string, n)
		driver    = make([]string, n)
		status    = make([]string, n)
		requested = make([]string, n)
		dropped   = make([]string, n)
		hours     = make([]string, n)
		slots     = make([]string, n)
		avail     = make([]string, n)
	)

	for i, r := range records {
		requestID[i] = orNaN(r.RequestID)
		pickup[i] = orNaN(r.PickupPoint)
		driver[i] = orNaN(r.DriverID)
		status[i] = orNaN(r.Status)
		requested[i] = formatTime(r.RequestTimestamp)
		dropped[i] = formatTime(r.DropTimestamp)
		if r.RequestHour != nil {
			hours[i] = strconv.Itoa(*r.RequestHour)
		} else {
			hours[i] = "NaN"
		}
		slots[i] = r.TimeSlot.String()
		avail[i] = r.CabAvailability.String()
	}

	return dataframe.New(
		series.New(requestID, series.String, model.ColRequestID),
		series.New(pickup, series.String, model.ColPickupPoint),
		series.New(driver, series.String, model.ColDriverID),
		series.New(status, series.String, model.ColStatus),
		series.New(requested, series.String, model.ColRequestTimestamp),
		series.New(dropped, series.String, model.ColDropTimestamp),
		series.New(hours, series.Int, model.ColRequestHour),
		series.New(slots, series.String, model.ColTimeSlot),
		series.New(avail, series.String, model.ColCabAvailability),
	)
}

func orNaN(s string) string {
	if s == "" {
		return "NaN"
	}
	return s
}

func formatTime(ts *time.Time) string {
	if ts == nil {
		return "NaN"
	}
	return ts.Format(frameTimeLayout)
}

// Holder 持有当前数据集，重载时整体替换
type Holder struct {
	mu sync.RWMutex
	ds *Dataset
}

func NewHolder(ds *Dataset) *Holder {
	if ds == nil {
		ds = NewDataset(nil)
	}
	return &Holder{ds: ds}
}

// Get 获取当前数据集(线程安全)
func (h *Holder) Get() *Dataset {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.ds
}

// Set 替换数据集(线程安全)
func (h *Holder) Set(ds *Dataset) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.ds = ds
}
