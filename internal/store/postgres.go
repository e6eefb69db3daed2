package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"fundambush/internal/contracts"
)

// BarRepository implements contracts.BarRepository over the daily bar and
// order-flow table. Optional columns are nullable in the schema and come
// back as nil pointers, which is exactly how the modules detect absence.
type BarRepository struct {
	pool *pgxpool.Pool
}

// NewBarRepository creates a bar repository over the shared pool.
func NewBarRepository(pool *pgxpool.Pool) *BarRepository {
	return &BarRepository{pool: pool}
}

// GetByCodeAndDateRange returns date-ascending bars for a stock.
func (r *BarRepository) GetByCodeAndDateRange(ctx context.Context, code string, from, to time.Time) (contracts.BarSeries, error) {
	query := `
		SELECT trade_date, open_price, high_price, low_price, close_price, volume, amount,
		       fund_flow, closing_fund_flow, active_buy_ratio,
		       large_order_buy, large_order_sell, large_order_net_inflow,
		       turnover_rate, shareholders_count, institution_holding_ratio,
		       gini_coefficient, locked_chips_ratio,
		       block_trade_amount, block_trade_discount,
		       institutional_buy, institutional_sell, northbound_holding,
		       insider_buy, insider_sell, top_buy_seats
		FROM data.daily_bars
		WHERE stock_code = $1 AND trade_date BETWEEN $2 AND $3
		ORDER BY trade_date ASC
	`

	rows, err := r.pool.Query(ctx, query, code, from, to)
	if err != nil {
		return nil, fmt.Errorf("query bars for %s: %w", code, err)
	}
	defer rows.Close()

	var bars contracts.BarSeries
	for rows.Next() {
		var b contracts.Bar
		if err := rows.Scan(
			&b.Date, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume, &b.Amount,
			&b.FundFlow, &b.ClosingFundFlow, &b.ActiveBuyRatio,
			&b.LargeOrderBuy, &b.LargeOrderSell, &b.LargeOrderNetInflow,
			&b.TurnoverRate, &b.ShareholdersCount, &b.InstitutionHoldingRatio,
			&b.GiniCoefficient, &b.LockedChipsRatio,
			&b.BlockTradeAmount, &b.BlockTradeDiscount,
			&b.InstitutionalBuy, &b.InstitutionalSell, &b.NorthboundHolding,
			&b.InsiderBuy, &b.InsiderSell, &b.TopBuySeats,
		); err != nil {
			return nil, fmt.Errorf("scan bar for %s: %w", code, err)
		}
		bars = append(bars, b)
	}
	return bars, rows.Err()
}

// StockMetaRepository implements contracts.StockMetaRepository.
type StockMetaRepository struct {
	pool *pgxpool.Pool
}

// NewStockMetaRepository creates a metadata repository over the shared pool.
func NewStockMetaRepository(pool *pgxpool.Pool) *StockMetaRepository {
	return &StockMetaRepository{pool: pool}
}

// Get returns the latest metadata snapshot for a stock.
func (r *StockMetaRepository) Get(ctx context.Context, code string) (*contracts.StockMeta, error) {
	query := `
		SELECT stock_code, stock_name, industry,
		       float_market_cap, total_market_cap, pe_ratio, pb_ratio,
		       float_shares, total_shares, listing_date
		FROM data.stock_meta
		WHERE stock_code = $1
	`

	var m contracts.StockMeta
	err := r.pool.QueryRow(ctx, query, code).Scan(
		&m.Code, &m.Name, &m.Industry,
		&m.MarketCap, &m.TotalCap, &m.PERatio, &m.PBRatio,
		&m.FloatShares, &m.TotalShares, &m.ListingDate,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("stock %s not found", code)
	}
	if err != nil {
		return nil, fmt.Errorf("query meta for %s: %w", code, err)
	}
	return &m, nil
}

// MarketContextRepository implements contracts.MarketContextRepository.
type MarketContextRepository struct {
	pool *pgxpool.Pool
}

// NewMarketContextRepository creates a market snapshot repository.
func NewMarketContextRepository(pool *pgxpool.Pool) *MarketContextRepository {
	return &MarketContextRepository{pool: pool}
}

// Latest returns the most recent market snapshot.
func (r *MarketContextRepository) Latest(ctx context.Context) (*contracts.MarketContext, error) {
	query := `
		SELECT snapshot_date, regime, index_change_pct, industry_change_pct,
		       market_fund_flow, industry_fund_flow, northbound_flow,
		       total_market_cap, turnover_rate, sentiment_index,
		       market_pe, market_pb
		FROM data.market_context
		ORDER BY snapshot_date DESC
		LIMIT 1
	`

	var m contracts.MarketContext
	err := r.pool.QueryRow(ctx, query).Scan(
		&m.Date, &m.Regime, &m.IndexChangePct, &m.IndustryChangePct,
		&m.MarketFundFlow, &m.IndustryFundFlow, &m.NorthboundFlow,
		&m.TotalMarketCap, &m.TurnoverRate, &m.SentimentIndex,
		&m.MarketPE, &m.MarketPB,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("no market context snapshots")
	}
	if err != nil {
		return nil, fmt.Errorf("query market context: %w", err)
	}
	return &m, nil
}

// ReportRepository implements contracts.ReportStore over the reports table.
// The composite report is stored as a JSONB payload with the decision
// columns extracted for querying.
type ReportRepository struct {
	pool *pgxpool.Pool
}

// NewReportRepository creates a report store over the shared pool.
func NewReportRepository(pool *pgxpool.Pool) *ReportRepository {
	return &ReportRepository{pool: pool}
}

// Save upserts the day's report for a stock.
func (r *ReportRepository) Save(ctx context.Context, result *contracts.FinalAnalysisResult) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal report for %s: %w", result.Code, err)
	}

	query := `
		INSERT INTO reports.ambush_reports
			(stock_code, report_date, final_score, is_predicted, payload)
		VALUES ($1, CURRENT_DATE, $2, $3, $4)
		ON CONFLICT (stock_code, report_date)
		DO UPDATE SET final_score = $2, is_predicted = $3, payload = $4
	`
	_, err = r.pool.Exec(ctx, query, result.Code, result.FinalScore, result.IsPredictedAmbush, payload)
	if err != nil {
		return fmt.Errorf("save report for %s: %w", result.Code, err)
	}
	return nil
}

// Get returns the report saved for a stock on a date.
func (r *ReportRepository) Get(ctx context.Context, code string, date time.Time) (*contracts.FinalAnalysisResult, error) {
	query := `
		SELECT payload
		FROM reports.ambush_reports
		WHERE stock_code = $1 AND report_date = $2
	`

	var payload []byte
	err := r.pool.QueryRow(ctx, query, code, date).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("no report for %s on %s", code, date.Format("2006-01-02"))
	}
	if err != nil {
		return nil, fmt.Errorf("query report for %s: %w", code, err)
	}

	var result contracts.FinalAnalysisResult
	if err := json.Unmarshal(payload, &result); err != nil {
		return nil, fmt.Errorf("unmarshal report for %s: %w", code, err)
	}
	return &result, nil
}
