package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cm777-dev/crypto-arbitrage-bot/internal/model"
)

// PostgresRepository implements Repository on top of a pgx connection pool.
type PostgresRepository struct {
	Pool *pgxpool.Pool
}

// NewPostgresRepository connects a repository to the given DSN.
func NewPostgresRepository(ctx context.Context, dsn string) (*PostgresRepository, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	return &PostgresRepository{Pool: pool}, nil
}

// Close releases the connection pool.
func (r *PostgresRepository) Close() {
	r.Pool.Close()
}

// Migrate creates the ledger tables if they do not exist.
func (r *PostgresRepository) Migrate(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS trades (
		id SERIAL PRIMARY KEY,
		timestamp TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		buy_exchange VARCHAR(50) NOT NULL,
		sell_exchange VARCHAR(50) NOT NULL,
		buy_price NUMERIC(20, 8) NOT NULL,
		sell_price NUMERIC(20, 8) NOT NULL,
		amount NUMERIC(20, 8) NOT NULL,
		profit NUMERIC(20, 8) NOT NULL,
		fees NUMERIC(20, 8) NOT NULL
	);
	CREATE TABLE IF NOT EXISTS opportunities (
		id SERIAL PRIMARY KEY,
		opportunity_id VARCHAR(120) NOT NULL,
		timestamp TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		pair VARCHAR(20) NOT NULL,
		buy_exchange VARCHAR(50) NOT NULL,
		sell_exchange VARCHAR(50) NOT NULL,
		buy_price NUMERIC(20, 8) NOT NULL,
		sell_price NUMERIC(20, 8) NOT NULL,
		amount NUMERIC(20, 8) NOT NULL,
		net_profit NUMERIC(20, 8) NOT NULL,
		adjusted_profit NUMERIC(20, 8) NOT NULL,
		slippage_pct NUMERIC(10, 6) NOT NULL,
		risk_level VARCHAR(10) NOT NULL
	);`
	_, err := r.Pool.Exec(ctx, schema)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// LogTrade appends an executed trade to the ledger.
func (r *PostgresRepository) LogTrade(ctx context.Context, trade model.TradeRecord) error {
	const query = `
	INSERT INTO trades (timestamp, buy_exchange, sell_exchange, buy_price, sell_price, amount, profit, fees)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := r.Pool.Exec(ctx, query,
		trade.Timestamp,
		trade.BuyExchange,
		trade.SellExchange,
		trade.BuyPrice,
		trade.SellPrice,
		trade.Amount,
		trade.Profit,
		trade.Fees,
	)
	if err != nil {
		return fmt.Errorf("log trade: %w", err)
	}
	return nil
}

// LogOpportunity records a retained opportunity from a scan cycle.
func (r *PostgresRepository) LogOpportunity(ctx context.Context, opp model.Opportunity) error {
	const query = `
	INSERT INTO opportunities (opportunity_id, timestamp, pair, buy_exchange, sell_exchange,
		buy_price, sell_price, amount, net_profit, adjusted_profit, slippage_pct, risk_level)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
	_, err := r.Pool.Exec(ctx, query,
		opp.ID,
		opp.Timestamp,
		opp.Pair,
		opp.BuyExchange,
		opp.SellExchange,
		opp.BuyPrice,
		opp.SellPrice,
		opp.Amount,
		opp.NetProfit,
		opp.AdjustedProfit,
		opp.SlippagePct,
		string(opp.RiskLevel),
	)
	if err != nil {
		return fmt.Errorf("log opportunity: %w", err)
	}
	return nil
}
