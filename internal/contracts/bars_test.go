package contracts

import (
	"testing"
	"time"
)

func day(n int) time.Time {
	return time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, n)
}

func TestBarSeries_Has(t *testing.T) {
	full := BarSeries{
		{Date: day(0), Close: 10, FundFlow: Float(100)},
		{Date: day(1), Close: 11, FundFlow: Float(-50)},
	}
	if !full.Has(ColFundFlow) {
		t.Error("fund_flow should be present on every bar")
	}
	if full.Has(ColGiniCoefficient) {
		t.Error("gini_coefficient was never populated")
	}

	partial := BarSeries{
		{Date: day(0), Close: 10, FundFlow: Float(100)},
		{Date: day(1), Close: 11},
	}
	if partial.Has(ColFundFlow) {
		t.Error("a column populated on only some rows is treated as absent")
	}

	var empty BarSeries
	if empty.Has(ColFundFlow) {
		t.Error("empty series has no columns")
	}
}

func TestBarSeries_Values(t *testing.T) {
	s := BarSeries{
		{Date: day(0), Close: 10, FundFlow: Float(100)},
		{Date: day(1), Close: 11, FundFlow: Float(-50)},
		{Date: day(2), Close: 12, FundFlow: Float(25)},
	}

	values, ok := s.Values(ColFundFlow)
	if !ok {
		t.Fatal("expected fund_flow column to be present")
	}
	want := []float64{100, -50, 25}
	for i := range want {
		if values[i] != want[i] {
			t.Errorf("values[%d] = %v, want %v", i, values[i], want[i])
		}
	}

	if _, ok := s.Values(ColTurnoverRate); ok {
		t.Error("turnover_rate should be absent")
	}
}

func TestBarSeries_Require(t *testing.T) {
	s := BarSeries{
		{Date: day(0), Close: 10, FundFlow: Float(100)},
	}

	if err := s.Require("fund_flow_module", ColFundFlow); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	err := s.Require("fund_flow_module", ColFundFlow, ColClosingFundFlow, ColActiveBuyRatio)
	if err == nil {
		t.Fatal("expected missing-data error")
	}
	mde, ok := err.(*MissingDataError)
	if !ok {
		t.Fatalf("expected *MissingDataError, got %T", err)
	}
	if len(mde.Fields) != 2 {
		t.Errorf("expected 2 missing fields, got %v", mde.Fields)
	}
	if mde.Module != "fund_flow_module" {
		t.Errorf("error should name the module, got %q", mde.Module)
	}
}

func TestBarSeries_TailAndSorted(t *testing.T) {
	s := BarSeries{
		{Date: day(2), Close: 12},
		{Date: day(0), Close: 10},
		{Date: day(1), Close: 11},
	}

	sorted := s.Sorted()
	if !sorted[0].Date.Equal(day(0)) || !sorted[2].Date.Equal(day(2)) {
		t.Error("Sorted should order bars by date ascending")
	}
	// the receiver is untouched
	if !s[0].Date.Equal(day(2)) {
		t.Error("Sorted must not mutate the receiver")
	}

	tail := sorted.Tail(2)
	if len(tail) != 2 || !tail[0].Date.Equal(day(1)) {
		t.Errorf("Tail(2) wrong: %+v", tail)
	}
	if got := sorted.Tail(10); len(got) != 3 {
		t.Errorf("Tail larger than series should return all bars, got %d", len(got))
	}
}

func TestStockMeta_Bucket(t *testing.T) {
	tests := []struct {
		cap  float64
		want CapBucket
	}{
		{30, SmallCap},
		{49.99, SmallCap},
		{50, MidCap},
		{199.99, MidCap},
		{200, LargeCap},
		{1200, LargeCap},
	}
	for _, tt := range tests {
		m := &StockMeta{MarketCap: tt.cap}
		if got := m.Bucket(); got != tt.want {
			t.Errorf("Bucket(%v) = %v, want %v", tt.cap, got, tt.want)
		}
	}
}
