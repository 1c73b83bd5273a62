package repository

import (
	"context"
	"fmt"
	"time"

	"optionlab/types"
)

// TradingDays returns the days with an underlying bar in [start, end].
func (db *Database) TradingDays(ctx context.Context, symbol string, start, end time.Time) ([]time.Time, error) {
	asset, err := db.GetAssetByTicker(ctx, symbol)
	if err != nil {
		return nil, err
	}
	bars, err := db.GetBars(ctx, asset.Id, asset.Ticker, start, end)
	if err != nil {
		return nil, fmt.Errorf("%s trading days: %w", symbol, err)
	}
	days := make([]time.Time, 0, len(bars))
	for _, b := range bars {
		days = append(days, b.Timestamp)
	}
	return days, nil
}

// Snapshot builds the chain for one day from the underlying's close and the
// option quotes recorded that day. A missing implied volatility is left at
// zero for the engine to solve from the premium.
func (db *Database) Snapshot(ctx context.Context, symbol string, day time.Time) (*types.ChainSnapshot, error) {
	asset, err := db.GetAssetByTicker(ctx, symbol)
	if err != nil {
		return nil, err
	}
	bars, err := db.GetBars(ctx, asset.Id, asset.Ticker, day, day)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", symbol, day.Format(time.DateOnly), err)
	}
	rows, err := db.quotes.GetQuotes(ctx, getQuotesParams{AssetID: int32(asset.Id), Day: day})
	if err != nil {
		return nil, fmt.Errorf("%s %s quotes: %w", symbol, day.Format(time.DateOnly), err)
	}
	return &types.ChainSnapshot{
		Symbol: asset.Ticker,
		Date:   bars[0].Timestamp,
		Spot:   bars[0].Close,
		Quotes: convertQuotes(rows),
	}, nil
}

func convertQuotes(quoteDAOs []quoteRow) []types.OptionQuote {
	quotes := make([]types.OptionQuote, 0, len(quoteDAOs))
	for _, dao := range quoteDAOs {
		q := types.OptionQuote{
			Expiry:       dao.Expiry,
			Strike:       dao.Strike,
			Kind:         types.InstrumentKind(dao.Kind),
			Premium:      dao.Premium,
			OpenInterest: dao.OpenInterest,
		}
		if dao.ImpliedVol != nil {
			q.ImpliedVol = *dao.ImpliedVol
		}
		quotes = append(quotes, q)
	}
	return quotes
}
