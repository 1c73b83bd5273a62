package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"optionlab/types"
)

// GetBars returns the daily bars of an underlying between start and end,
// both inclusive, oldest first.
func (db *Database) GetBars(ctx context.Context, assetId int, ticker string, start, end time.Time) ([]types.Candle, error) {
	args := getBarsParams{
		AssetID: int32(assetId),
		Start:   start,
		End:     end,
	}
	bars, err := db.bars.GetBars(ctx, args)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNoBars
		}
		return nil, err
	}
	if len(bars) == 0 {
		return nil, ErrNoBars
	}
	return convertBars(bars, ticker), nil
}

func convertBars(barDAOs []barRow, ticker string) []types.Candle {
	var candles []types.Candle
	for _, dao := range barDAOs {
		candles = append(candles, types.Candle{
			AssetId:   int(dao.AssetID),
			Ticker:    ticker,
			Open:      dao.Open,
			Close:     dao.Close,
			High:      dao.High,
			Low:       dao.Low,
			Volume:    dao.Volume,
			Timestamp: dao.Day,
		})
	}
	return candles
}
