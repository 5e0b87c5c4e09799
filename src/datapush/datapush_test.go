package datapush

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"RideGap/src/model"
	"RideGap/src/processor"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

var pngMagic = []byte("\x89PNG\r\n\x1a\n")

func sampleDataset() *processor.Dataset {
	ts := func(hour int) *time.Time {
		t := time.Date(2016, 7, 11, hour, 10, 0, 0, time.UTC)
		return &t
	}
	return processor.NewDataset([]model.RawRecord{
		{RequestID: "1", PickupPoint: model.PickupAirport, Status: model.StatusTripCompleted, RequestTimestamp: ts(11)},
		{RequestID: "2", PickupPoint: model.PickupAirport, Status: model.StatusNoCarsAvailable, RequestTimestamp: ts(19)},
		{RequestID: "3", PickupPoint: model.PickupCity, Status: model.StatusCancelled, RequestTimestamp: ts(7)},
		{RequestID: "4", PickupPoint: model.PickupCity, Status: model.StatusNoCarsAvailable, RequestTimestamp: ts(23)},
		{RequestID: "5", PickupPoint: model.PickupAirport, Status: model.StatusNoCarsAvailable, RequestTimestamp: ts(18)},
	})
}

func TestRenderChartKinds(t *testing.T) {
	ds := sampleDataset()
	for _, q := range processor.Queries {
		var buf bytes.Buffer
		require.NoError(t, RenderChart(q, q.Run(ds), &buf), q.Name)
		assert.True(t, bytes.HasPrefix(buf.Bytes(), pngMagic), q.Name)
	}
}

func TestRenderChartEmpty(t *testing.T) {
	q, _ := processor.Lookup(processor.QueryGapByTimeSlot)
	var buf bytes.Buffer
	err := RenderChart(q, q.Run(processor.NewDataset(nil)), &buf)
	assert.ErrorIs(t, err, ErrNoData)
	assert.Zero(t, buf.Len())
}

func TestPublish(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	r, err := Publish(sampleDataset(), dir)
	require.NoError(t, err)

	assert.Len(t, r.Tables, len(processor.Queries))
	assert.Equal(t, 5, r.Summary.TotalRequests)
	for _, q := range processor.Queries {
		path, ok := r.Charts[q.Name]
		require.True(t, ok, q.Name)
		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.True(t, bytes.HasPrefix(data, pngMagic))
	}

	f, err := excelize.OpenFile(r.Workbook)
	require.NoError(t, err)
	defer f.Close()

	sheets := f.GetSheetList()
	assert.Equal(t, SummarySheet, sheets[0])
	for _, q := range processor.Queries {
		assert.Contains(t, sheets, q.Name)
	}

	rows, err := f.GetRows(processor.QueryRequestsByPickupPoint)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{model.ColPickupPoint, processor.CountColumn}, rows[0])
	assert.Equal(t, []string{model.PickupAirport, "3"}, rows[1])
	assert.Equal(t, []string{model.PickupCity, "2"}, rows[2])

	total, err := f.GetCellValue(SummarySheet, "B2")
	require.NoError(t, err)
	assert.Equal(t, "5", total)
}

func TestPublishEmptyDataset(t *testing.T) {
	dir := t.TempDir()
	stale := ChartPath(dir, processor.QueryFrequencyByHour)
	require.NoError(t, os.WriteFile(stale, []byte("old"), 0644))

	r, err := Publish(processor.NewDataset(nil), dir)
	require.NoError(t, err)
	assert.Empty(t, r.Charts)
	assert.NoFileExists(t, stale)
	assert.FileExists(t, r.Workbook)
}

func TestDingTalkPushReport(t *testing.T) {
	var got map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		assert.Equal(t, http.MethodPost, req.Method)
		assert.Equal(t, "application/json", req.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(req.Body).Decode(&got))
		w.Write([]byte(`{"errcode":0,"errmsg":"ok"}`))
	}))
	defer srv.Close()

	r, err := Publish(sampleDataset(), t.TempDir())
	require.NoError(t, err)

	d := NewDingTalk(srv.URL)
	require.NoError(t, d.PushReport(context.Background(), r))

	assert.Equal(t, "markdown", got["msgtype"])
	md := got["markdown"].(map[string]interface{})
	text := md["text"].(string)
	assert.Contains(t, text, "请求总数: 5")
	assert.Contains(t, text, "Time Slots Where Highest Gap Exists")
	assert.Contains(t, text, "Late Evening / Not Available: 2")
}

func TestDingTalkRetry(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.Write([]byte(`{"errcode":130101,"errmsg":"send too fast"}`))
			return
		}
		w.Write([]byte(`{"errcode":0,"errmsg":"ok"}`))
	}))
	defer srv.Close()

	d := &DingTalk{Webhook: srv.URL, Client: srv.Client(), Retries: 3, Interval: time.Millisecond}
	require.NoError(t, d.PushReport(context.Background(), &Report{}))
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))

	d.Retries = 1
	atomic.StoreInt32(&calls, 0)
	err := d.PushReport(context.Background(), &Report{})
	assert.ErrorContains(t, err, "send too fast")
}

func TestTopRows(t *testing.T) {
	table := processor.GapByTimeSlot(sampleDataset())
	rows := topRows(table, 2)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"Late Evening", "Not Available"}, rows[0].Key)
	assert.Equal(t, 2, rows[0].Count)
}
