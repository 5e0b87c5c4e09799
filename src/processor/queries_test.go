package processor

import (
	"testing"

	"RideGap/src/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fixture 与 datasource/file/testdata/requests.csv 内容一致
func fixture() []model.RawRecord {
	rec := func(id, pickup, status string, hour int) model.RawRecord {
		r := model.RawRecord{RequestID: id, PickupPoint: pickup, Status: status}
		if hour >= 0 {
			r.RequestTimestamp = at(11, hour, 15)
		}
		return r
	}
	return []model.RawRecord{
		rec("619", model.PickupAirport, model.StatusTripCompleted, 11),
		rec("867", model.PickupAirport, model.StatusTripCompleted, 17),
		rec("1807", model.PickupCity, model.StatusTripCompleted, 9),
		rec("2532", model.PickupAirport, model.StatusCancelled, 21),
		rec("3112", model.PickupCity, model.StatusNoCarsAvailable, 4),
		rec("3879", model.PickupAirport, model.StatusNoCarsAvailable, 20),
		rec("4270", model.PickupAirport, model.StatusTripCompleted, 6),
		rec("5510", model.PickupCity, model.StatusNoCarsAvailable, 23),
		rec("6745", model.PickupCity, model.StatusCancelled, -1),
		rec("6752", model.PickupAirport, model.StatusNoCarsAvailable, 23),
	}
}

func TestFrequencyByHour(t *testing.T) {
	ds := NewDataset(fixture())
	table := FrequencyByHour(ds)

	assert.Equal(t, QueryFrequencyByHour, table.Name)
	assert.Equal(t, []string{model.ColRequestHour, model.ColStatus}, table.Columns)
	assert.Equal(t, ds.Len(), table.Total())
	assert.Equal(t, 2, table.Count("23", model.StatusNoCarsAvailable))
	assert.Equal(t, 1, table.Count(model.NullKey, model.StatusCancelled))
	assert.Equal(t, 0, table.Count("3", model.StatusTripCompleted))
}

func TestRequestsByPickupPoint(t *testing.T) {
	table := RequestsByPickupPoint(NewDataset(fixture()))
	assert.Equal(t, 2, table.Len())
	assert.Equal(t, 6, table.Count(model.PickupAirport))
	assert.Equal(t, 4, table.Count(model.PickupCity))
}

func TestProblematicTimeSlots(t *testing.T) {
	table := ProblematicTimeSlots(NewDataset(fixture())).Sorted()
	require.Equal(t, 3, table.Len())
	assert.Equal(t, []CountRow{
		{Key: []string{"Dawn"}, Count: 1},
		{Key: []string{"Late Evening"}, Count: 2},
		{Key: []string{"Night"}, Count: 3},
	}, table.Rows)
}

func TestAirportDemandSupplyGap(t *testing.T) {
	table := AirportDemandSupplyGap(NewDataset(fixture()))
	assert.Equal(t, 6, table.Total())
	assert.Equal(t, 1, table.Count("23", model.StatusNoCarsAvailable))
	assert.Equal(t, 1, table.Count("11", model.StatusTripCompleted))
	assert.Equal(t, 0, table.Count("9", model.StatusTripCompleted))
}

func TestGapByTimeSlot(t *testing.T) {
	table := GapByTimeSlot(NewDataset(fixture()))
	assert.Equal(t, 10, table.Total())
	assert.Equal(t, 2, table.Count("Late Evening", "Not Available"))
	assert.Equal(t, 1, table.Count("Late Evening", "Available"))
	assert.Equal(t, 2, table.Count("Early Morning", "Available"))
	assert.Equal(t, 3, table.Count("Night", "Not Available"))
}

func TestLateEveningByPickupPoint(t *testing.T) {
	table := LateEveningByPickupPoint(NewDataset(fixture()))
	assert.Equal(t, 1, table.Len())
	assert.Equal(t, 3, table.Count(model.PickupAirport))
	assert.Equal(t, 0, table.Count(model.PickupCity))
}

func TestQueriesOnEmptyDataset(t *testing.T) {
	ds := NewDataset(nil)
	for _, table := range RunAll(ds) {
		assert.Equal(t, 0, table.Len(), table.Name)
		assert.NotNil(t, table.Rows, table.Name)
	}
}

func TestFilterWithNoMatches(t *testing.T) {
	ds := NewDataset([]model.RawRecord{
		{PickupPoint: model.PickupCity, Status: model.StatusTripCompleted, RequestTimestamp: at(11, 8, 0)},
	})
	assert.Equal(t, 0, AirportDemandSupplyGap(ds).Len())
	assert.Equal(t, 0, ProblematicTimeSlots(ds).Len())
	assert.Equal(t, 0, LateEveningByPickupPoint(ds).Len())
}

func TestUnfilteredTotalsMatchRecordCount(t *testing.T) {
	ds := NewDataset(fixture())
	for _, name := range []string{QueryFrequencyByHour, QueryRequestsByPickupPoint, QueryGapByTimeSlot} {
		q, ok := Lookup(name)
		require.True(t, ok, name)
		assert.Equal(t, ds.Len(), q.Run(ds).Total(), name)
	}
}

func TestQueriesAreIdempotent(t *testing.T) {
	ds := NewDataset(fixture())
	assert.Equal(t, RunAll(ds), RunAll(ds))
}

func TestLookup(t *testing.T) {
	q, ok := Lookup(QueryGapByTimeSlot)
	require.True(t, ok)
	assert.Equal(t, StackedBar, q.Kind)
	assert.Equal(t, "Time Slots Where Highest Gap Exists", q.Title)

	_, ok = Lookup("nope")
	assert.False(t, ok)
	assert.Len(t, Queries, 6)
}

func TestSortedHoursNumeric(t *testing.T) {
	table := FrequencyByHour(NewDataset(fixture())).Sorted()
	var hours []string
	for _, r := range table.Rows {
		hours = append(hours, r.Key[0])
	}
	assert.Equal(t, []string{"4", "6", "9", "11", "17", "20", "21", "23", "NA"}, hours)
}

func TestUnstack(t *testing.T) {
	p := GapByTimeSlot(NewDataset(fixture())).Unstack()
	assert.Equal(t, []string{"Dawn", "Early Morning", "Noon", "Late Evening", "Night"}, p.Index)
	assert.Equal(t, []string{"Available", "Not Available"}, p.Series)
	assert.Equal(t, [][]int{{0, 1}, {2, 0}, {1, 0}, {1, 2}, {0, 3}}, p.Values)

	one := RequestsByPickupPoint(NewDataset(fixture())).Unstack()
	assert.Equal(t, []string{CountColumn}, one.Series)
	assert.Equal(t, []string{"Airport", "City"}, one.Index)
	assert.Equal(t, [][]int{{6}, {4}}, one.Values)
}

func TestCountTableFrame(t *testing.T) {
	df := RequestsByPickupPoint(NewDataset(fixture())).Frame()
	require.NoError(t, df.Err)
	assert.Equal(t, 2, df.Nrow())
	assert.Equal(t, []string{model.ColPickupPoint, CountColumn}, df.Names())
}
