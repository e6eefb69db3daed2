// Package contracts holds the data products exchanged between the ETL
// layer, the detection modules and the analyzer: the historical
// bar/order-flow table, the stock metadata snapshot, the market-context
// snapshot, the per-module and final analysis results, and the repository
// interfaces the external data layer must satisfy.
package contracts

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Bar is one date's row of the historical bar/order-flow table. The OHLCV
// core is always populated; order-flow and ownership columns are optional
// and nil when the upstream table does not carry them.
type Bar struct {
	Date   time.Time `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
	Amount float64   `json:"amount"`

	FundFlow            *float64 `json:"fund_flow,omitempty"`
	ClosingFundFlow     *float64 `json:"closing_fund_flow,omitempty"`
	ActiveBuyRatio      *float64 `json:"active_buy_ratio,omitempty"`
	LargeOrderBuy       *float64 `json:"large_order_buy,omitempty"`
	LargeOrderSell      *float64 `json:"large_order_sell,omitempty"`
	LargeOrderNetInflow *float64 `json:"large_order_net_inflow,omitempty"`
	TurnoverRate        *float64 `json:"turnover_rate,omitempty"`

	ShareholdersCount       *float64 `json:"shareholders_count,omitempty"`
	InstitutionHoldingRatio *float64 `json:"institution_holding_ratio,omitempty"`
	GiniCoefficient         *float64 `json:"gini_coefficient,omitempty"`
	LockedChipsRatio        *float64 `json:"locked_chips_ratio,omitempty"`
	BlockTradeAmount        *float64 `json:"block_trade_amount,omitempty"`
	BlockTradeDiscount      *float64 `json:"block_trade_discount,omitempty"`

	InstitutionalBuy  *float64 `json:"institutional_buy,omitempty"`
	InstitutionalSell *float64 `json:"institutional_sell,omitempty"`
	NorthboundHolding *float64 `json:"northbound_holding,omitempty"`
	InsiderBuy        *float64 `json:"insider_buy,omitempty"`
	InsiderSell       *float64 `json:"insider_sell,omitempty"`
	TopBuySeats       []string `json:"top_buy_seats,omitempty"`
}

// Float is a literal-pointer helper for optional columns.
func Float(v float64) *float64 { return &v }

// BarSeries is the ordered-by-date bar table a module analyzes. The series
// is read-only input: modules never mutate it or retain it across calls.
type BarSeries []Bar

// Tail returns the most recent n bars (the whole series when shorter).
func (s BarSeries) Tail(n int) BarSeries {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}

// Sorted returns a date-ascending copy of the series.
func (s BarSeries) Sorted() BarSeries {
	out := make(BarSeries, len(s))
	copy(out, s)
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

// Dates renders each bar's date as YYYY-MM-DD, for chart payloads.
func (s BarSeries) Dates() []string {
	out := make([]string, len(s))
	for i, b := range s {
		out[i] = b.Date.Format("2006-01-02")
	}
	return out
}

func (s BarSeries) Opens() []float64 {
	out := make([]float64, len(s))
	for i, b := range s {
		out[i] = b.Open
	}
	return out
}

func (s BarSeries) Highs() []float64 {
	out := make([]float64, len(s))
	for i, b := range s {
		out[i] = b.High
	}
	return out
}

func (s BarSeries) Lows() []float64 {
	out := make([]float64, len(s))
	for i, b := range s {
		out[i] = b.Low
	}
	return out
}

func (s BarSeries) Closes() []float64 {
	out := make([]float64, len(s))
	for i, b := range s {
		out[i] = b.Close
	}
	return out
}

func (s BarSeries) Volumes() []float64 {
	out := make([]float64, len(s))
	for i, b := range s {
		out[i] = b.Volume
	}
	return out
}

func (s BarSeries) Amounts() []float64 {
	out := make([]float64, len(s))
	for i, b := range s {
		out[i] = b.Amount
	}
	return out
}

// Column names an optional field of the bar table.
type Column string

const (
	ColFundFlow                Column = "fund_flow"
	ColClosingFundFlow         Column = "closing_fund_flow"
	ColActiveBuyRatio          Column = "active_buy_ratio"
	ColLargeOrderBuy           Column = "large_order_buy"
	ColLargeOrderSell          Column = "large_order_sell"
	ColLargeOrderNetInflow     Column = "large_order_net_inflow"
	ColTurnoverRate            Column = "turnover_rate"
	ColShareholdersCount       Column = "shareholders_count"
	ColInstitutionHoldingRatio Column = "institution_holding_ratio"
	ColGiniCoefficient         Column = "gini_coefficient"
	ColLockedChipsRatio        Column = "locked_chips_ratio"
	ColBlockTradeAmount        Column = "block_trade_amount"
	ColBlockTradeDiscount      Column = "block_trade_discount"
	ColInstitutionalBuy        Column = "institutional_buy"
	ColInstitutionalSell       Column = "institutional_sell"
	ColNorthboundHolding       Column = "northbound_holding"
	ColInsiderBuy              Column = "insider_buy"
	ColInsiderSell             Column = "insider_sell"
)

func (b *Bar) field(col Column) *float64 {
	switch col {
	case ColFundFlow:
		return b.FundFlow
	case ColClosingFundFlow:
		return b.ClosingFundFlow
	case ColActiveBuyRatio:
		return b.ActiveBuyRatio
	case ColLargeOrderBuy:
		return b.LargeOrderBuy
	case ColLargeOrderSell:
		return b.LargeOrderSell
	case ColLargeOrderNetInflow:
		return b.LargeOrderNetInflow
	case ColTurnoverRate:
		return b.TurnoverRate
	case ColShareholdersCount:
		return b.ShareholdersCount
	case ColInstitutionHoldingRatio:
		return b.InstitutionHoldingRatio
	case ColGiniCoefficient:
		return b.GiniCoefficient
	case ColLockedChipsRatio:
		return b.LockedChipsRatio
	case ColBlockTradeAmount:
		return b.BlockTradeAmount
	case ColBlockTradeDiscount:
		return b.BlockTradeDiscount
	case ColInstitutionalBuy:
		return b.InstitutionalBuy
	case ColInstitutionalSell:
		return b.InstitutionalSell
	case ColNorthboundHolding:
		return b.NorthboundHolding
	case ColInsiderBuy:
		return b.InsiderBuy
	case ColInsiderSell:
		return b.InsiderSell
	}
	return nil
}

// Has reports whether the column is populated on every bar of the series.
// A column present on only some rows is treated as absent, matching the
// all-or-nothing shape of the upstream ETL tables.
func (s BarSeries) Has(col Column) bool {
	if len(s) == 0 {
		return false
	}
	for i := range s {
		if s[i].field(col) == nil {
			return false
		}
	}
	return true
}

// Values extracts a column as a dense series. ok is false when the column
// is absent (see Has).
func (s BarSeries) Values(col Column) (values []float64, ok bool) {
	if !s.Has(col) {
		return nil, false
	}
	values = make([]float64, len(s))
	for i := range s {
		values[i] = *s[i].field(col)
	}
	return values, true
}

// MissingDataError is the data-shape error a module raises when a required
// column or field is absent from its inputs. It is raised immediately, not
// retried, and propagates out of the module's Analyze call.
type MissingDataError struct {
	Module string
	Fields []string
}

func (e *MissingDataError) Error() string {
	return fmt.Sprintf("%s: required input fields missing: %s", e.Module, strings.Join(e.Fields, ", "))
}

// Require checks a set of required columns at once and builds the module's
// data-shape error naming every missing one.
func (s BarSeries) Require(module string, cols ...Column) error {
	var missing []string
	if len(s) == 0 {
		missing = append(missing, "bars")
	}
	for _, col := range cols {
		if !s.Has(col) {
			missing = append(missing, string(col))
		}
	}
	if len(missing) > 0 {
		return &MissingDataError{Module: module, Fields: missing}
	}
	return nil
}
