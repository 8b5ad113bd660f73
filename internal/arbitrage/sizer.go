package arbitrage

import (
	"errors"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/cm777-dev/crypto-arbitrage-bot/internal/model"
)

// ErrInsufficientLiquidity is returned when no order-book level crosses
// profitably. Callers treat it as "size zero", not as a hard failure.
var ErrInsufficientLiquidity = errors.New("no profitably crossing order book depth")

// SizeTrade derives a feasible base-asset amount from the buy-side asks and
// the sell-side bids, capped by maxBudget in quote-currency units.
//
// Levels are matched by equal index, not by merged cumulative depth: at index
// i, matching stops as soon as the bid price no longer exceeds the ask price,
// otherwise min(askQty, bidQty) is accumulated. When the next matched
// quantity would exceed the remaining budget, only the affordable fraction is
// taken. This index-pairing is a deliberate heuristic and can under- or
// over-estimate the economically optimal volume when book shapes differ.
//
// Both books are sorted best price first before matching, so unsorted input
// is tolerated.
func SizeTrade(buyBook, sellBook model.OrderBook, maxBudget decimal.Decimal) (decimal.Decimal, error) {
	asks := sortedLevels(buyBook.Asks, false)
	bids := sortedLevels(sellBook.Bids, true)

	amount := decimal.Zero
	spent := decimal.Zero

	depth := len(asks)
	if len(bids) < depth {
		depth = len(bids)
	}

	for i := 0; i < depth; i++ {
		ask := asks[i]
		bid := bids[i]

		if bid.Price.LessThanOrEqual(ask.Price) {
			break
		}

		available := decimal.Min(ask.Quantity, bid.Quantity)
		cost := available.Mul(ask.Price)

		if spent.Add(cost).GreaterThan(maxBudget) {
			remaining := maxBudget.Sub(spent)
			if remaining.IsPositive() {
				amount = amount.Add(remaining.Div(ask.Price))
			}
			break
		}

		amount = amount.Add(available)
		spent = spent.Add(cost)
	}

	if !amount.IsPositive() {
		return decimal.Zero, ErrInsufficientLiquidity
	}
	return amount, nil
}

// QuoteDepth sums price*quantity over a book side, the side's total
// liquidity in quote-currency terms.
func QuoteDepth(levels []model.OrderBookLevel) decimal.Decimal {
	total := decimal.Zero
	for _, lvl := range levels {
		total = total.Add(lvl.Price.Mul(lvl.Quantity))
	}
	return total
}

// sortedLevels returns a best-first copy of a book side: descending prices
// for bids, ascending for asks. The input slice is never mutated.
func sortedLevels(levels []model.OrderBookLevel, descending bool) []model.OrderBookLevel {
	out := make([]model.OrderBookLevel, len(levels))
	copy(out, levels)
	sort.SliceStable(out, func(i, j int) bool {
		if descending {
			return out[i].Price.GreaterThan(out[j].Price)
		}
		return out[i].Price.LessThan(out[j].Price)
	})
	return out
}
