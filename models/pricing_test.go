package models

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNullFloatUnmarshal(t *testing.T) {
	tests := []struct {
		raw   string
		want  float64
		valid bool
	}{
		{`5000`, 5000, true},
		{`5000.5`, 5000.5, true},
		{`"4200"`, 4200, true},
		{`null`, 0, false},
		{`"NaN"`, 0, false},
		{`"n/a"`, 0, false},
		{`true`, 0, false},
		{`"Infinity"`, 0, false},
	}

	for _, tt := range tests {
		var n NullFloat
		require.NoError(t, json.Unmarshal([]byte(tt.raw), &n), tt.raw)
		assert.Equal(t, tt.valid, n.Valid, "valid for %s", tt.raw)
		assert.Equal(t, tt.want, n.Value, "value for %s", tt.raw)
	}
}

func TestNullFloatMarshal(t *testing.T) {
	b, err := json.Marshal(struct {
		A NullFloat `json:"a"`
		B NullFloat `json:"b"`
	}{A: Float(12.5), B: Null()})
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":12.5,"b":null}`, string(b))
}

func TestFloatRejectsNaN(t *testing.T) {
	assert.False(t, Float(math.NaN()).Valid)
	assert.False(t, Float(math.Inf(1)).Valid)
	assert.True(t, Float(0).Valid)
}

func TestPriceDataPointTolerantCount(t *testing.T) {
	payload := `{"price_per_floor_area_per_year":[
		{"year":2021,"count":"x","median":5000,"mean":null},
		{"year":2022,"count":7,"median":"abc","mean":5100.0},
		{"year":2023,"count":-4,"median":6000}
	]}`

	var s PricingSeries
	require.NoError(t, json.Unmarshal([]byte(payload), &s))
	require.Len(t, s.Points, 3)

	assert.Equal(t, 2021, s.Points[0].Year)
	assert.Equal(t, 0, s.Points[0].Count)
	assert.Equal(t, Float(5000), s.Points[0].Median)
	assert.False(t, s.Points[0].Mean.Valid)

	assert.Equal(t, 7, s.Points[1].Count)
	assert.False(t, s.Points[1].Median.Valid)
	assert.Equal(t, Float(5100), s.Points[1].Mean)

	assert.Equal(t, 0, s.Points[2].Count)
	assert.False(t, s.Points[2].UpperBound.Valid)
}

func TestPriceDataPointBounds(t *testing.T) {
	tests := []struct {
		name      string
		raw       string
		wantYear  int
		wantCount int
	}{
		{"plain", `{"year":2023,"count":12}`, 2023, 12},
		{"huge count is capped", `{"year":2023,"count":1e20}`, 2023, math.MaxInt32},
		{"count at cap", `{"year":2023,"count":2147483647}`, 2023, math.MaxInt32},
		{"fractional count", `{"year":2023,"count":4.5}`, 2023, 0},
		{"string count", `{"year":2023,"count":"7"}`, 2023, 7},
		{"missing year", `{"count":4}`, 0, 4},
		{"huge year", `{"year":1e20,"count":4}`, 0, 4},
		{"negative year", `{"year":-2023,"count":4}`, 0, 4},
		{"fractional year", `{"year":2023.5,"count":4}`, 0, 4},
		{"null element", `null`, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var p PriceDataPoint
			require.NoError(t, json.Unmarshal([]byte(tt.raw), &p))
			assert.Equal(t, tt.wantYear, p.Year)
			assert.Equal(t, tt.wantCount, p.Count)
			assert.GreaterOrEqual(t, p.Count, 0)
		})
	}
}

func TestNormalizeDropsPointsWithoutYear(t *testing.T) {
	payload := `{"price_per_floor_area_per_year":[
		null,
		{"count":4,"median":null},
		{"year":1e20,"count":3,"median":4000},
		{"year":2023,"count":12,"median":6000}
	]}`

	var s PricingSeries
	require.NoError(t, json.Unmarshal([]byte(payload), &s))
	require.Len(t, s.Points, 4)

	got := s.Normalize()
	require.Len(t, got.Points, 1)
	assert.Equal(t, 2023, got.Points[0].Year)
	assert.Equal(t, Float(6000), got.Points[0].Median)
}

func TestNormalizeSortsAndDeduplicates(t *testing.T) {
	s := PricingSeries{Points: []PriceDataPoint{
		{Year: 2023, Count: 1},
		{Year: 2021, Count: 2},
		{Year: 2023, Count: 3},
		{Year: 2022, Count: 4},
	}}

	got := s.Normalize()
	require.Len(t, got.Points, 3)
	assert.Equal(t, []int{2021, 2022, 2023}, []int{got.Points[0].Year, got.Points[1].Year, got.Points[2].Year})
	assert.Equal(t, 1, got.Points[2].Count, "first occurrence of a repeated year wins")
	assert.Equal(t, 2023, s.Points[0].Year, "input must not be reordered")
}

func TestCacheEntryFresh(t *testing.T) {
	fetched := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	e := &CacheEntry{FetchedAt: fetched}

	assert.True(t, e.Fresh(fetched.Add(23*time.Hour), 24*time.Hour))
	assert.False(t, e.Fresh(fetched.Add(24*time.Hour), 24*time.Hour))
	assert.False(t, e.Fresh(fetched.Add(25*time.Hour), 24*time.Hour))
}
