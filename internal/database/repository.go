package database

import (
	"context"

	"github.com/cm777-dev/crypto-arbitrage-bot/internal/model"
)

// Repository defines the standard interface for database operations.
type Repository interface {
	LogTrade(ctx context.Context, trade model.TradeRecord) error
	LogOpportunity(ctx context.Context, opp model.Opportunity) error
	Migrate(ctx context.Context) error
}
