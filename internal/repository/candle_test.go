package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"optionlab/types"
)

var startTime = time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
var endTime = startTime.AddDate(0, 0, 4)

type mockBarsRepository struct {
	sqlError error
	empty    bool
}

func TestDatabase_GetBars(t *testing.T) {
	type args struct {
		assetId int
		start   time.Time
		end     time.Time
	}
	tests := []struct {
		name    string
		args    args
		want    []types.Candle
		repo    mockBarsRepository
		wantErr error
	}{
		{"should throw ErrNoBars on empty result", args{999, startTime, endTime}, nil, mockBarsRepository{empty: true}, ErrNoBars},
		{"should throw ErrNoBars on no rows", args{999, startTime, endTime}, nil, mockBarsRepository{sqlError: pgx.ErrNoRows}, ErrNoBars},
		{"should return bars", args{999, startTime, endTime}, mockCandles(999, startTime, endTime), mockBarsRepository{}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := &Database{bars: tt.repo}
			got, err := db.GetBars(context.Background(), tt.args.assetId, "SPY", tt.args.start, tt.args.end)

			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("GetBars() error = %v, wantErr %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("GetBars() unexpected error = %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("GetBars() len = %d, want %d", len(got), len(tt.want))
			}
			for i := 0; i < len(tt.want); i++ {
				if got[i].AssetId != tt.args.assetId {
					t.Errorf("GetBars() %s assetId got = %v, want %v", got[i].Timestamp, got[i].AssetId, tt.want[i].AssetId)
					break
				}
				if got[i].Ticker != "SPY" {
					t.Errorf("GetBars() %s ticker got = %v, want SPY", got[i].Timestamp, got[i].Ticker)
					break
				}
				if !got[i].Close.Equal(tt.want[i].Close) {
					t.Errorf("GetBars() %s close got = %v, want %v", got[i].Timestamp, got[i].Close, tt.want[i].Close)
					break
				}
				if !got[i].Timestamp.Equal(tt.want[i].Timestamp) {
					t.Errorf("GetBars() timestamp got = %v, want %v", got[i].Timestamp, tt.want[i].Timestamp)
					break
				}
			}
		})
	}
}

func barPrice(day time.Time) decimal.Decimal {
	return decimal.NewFromInt(int64(400 + day.Day()))
}

func (m mockBarsRepository) GetBars(_ context.Context, arg getBarsParams) ([]barRow, error) {
	if m.sqlError != nil {
		return nil, m.sqlError
	}
	if m.empty {
		return []barRow{}, nil
	}
	var bars []barRow
	for i := arg.Start; !i.After(arg.End); i = i.AddDate(0, 0, 1) {
		bars = append(bars, barRow{
			AssetID: arg.AssetID,
			Day:     i,
			Open:    barPrice(i),
			High:    barPrice(i),
			Low:     barPrice(i),
			Close:   barPrice(i),
			Volume:  decimal.NewFromInt(1000),
		})
	}
	return bars, nil
}

func mockCandles(assetId int, start, end time.Time) []types.Candle {
	var candles []types.Candle
	for i := start; !i.After(end); i = i.AddDate(0, 0, 1) {
		candles = append(candles, types.Candle{
			Timestamp: i,
			AssetId:   assetId,
			Ticker:    "SPY",
			Open:      barPrice(i),
			High:      barPrice(i),
			Low:       barPrice(i),
			Close:     barPrice(i),
			Volume:    decimal.NewFromInt(1000),
		})
	}
	return candles
}
