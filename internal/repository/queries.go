package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
)

// DBTX is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Queries holds the SQL used by Database. Rows map one to one onto the
// tables in schema.sql.
type Queries struct {
	db DBTX
}

func NewQueries(db DBTX) *Queries {
	return &Queries{db: db}
}

type assetRow struct {
	ID         int32     `db:"id"`
	Ticker     string    `db:"ticker"`
	Name       string    `db:"name"`
	Type       string    `db:"type"`
	CreatedAt  time.Time `db:"created_at"`
	ModifiedAt time.Time `db:"modified_at"`
}

type barRow struct {
	AssetID int32           `db:"asset_id"`
	Day     time.Time       `db:"day"`
	Open    decimal.Decimal `db:"open"`
	High    decimal.Decimal `db:"high"`
	Low     decimal.Decimal `db:"low"`
	Close   decimal.Decimal `db:"close"`
	Volume  decimal.Decimal `db:"volume"`
}

type quoteRow struct {
	Expiry       time.Time       `db:"expiry"`
	Strike       decimal.Decimal `db:"strike"`
	Kind         string          `db:"kind"`
	Premium      decimal.Decimal `db:"premium"`
	ImpliedVol   *float64        `db:"implied_vol"`
	OpenInterest int64           `db:"open_interest"`
}

type getBarsParams struct {
	AssetID int32
	Start   time.Time
	End     time.Time
}

type getQuotesParams struct {
	AssetID int32
	Day     time.Time
}

type insertBacktestParams struct {
	ID     string
	Symbol string
	Status string
	Config []byte
}

type updateBacktestStatusParams struct {
	ID      string
	Status  string
	Message string
}

type saveBacktestResultParams struct {
	ID          string
	Symbol      string
	Status      string
	Message     string
	Result      []byte
	StartedAt   time.Time
	CompletedAt time.Time
}

const getAssetByTicker = `
SELECT id, ticker, name, type, created_at, modified_at
FROM underlyings
WHERE ticker = $1`

func (q *Queries) GetAssetByTicker(ctx context.Context, ticker string) (assetRow, error) {
	rows, err := q.db.Query(ctx, getAssetByTicker, ticker)
	if err != nil {
		return assetRow{}, err
	}
	return pgx.CollectExactlyOneRow(rows, pgx.RowToStructByName[assetRow])
}

const getBars = `
SELECT asset_id, day, open, high, low, close, volume
FROM underlying_bars
WHERE asset_id = $1 AND day BETWEEN $2 AND $3
ORDER BY day`

func (q *Queries) GetBars(ctx context.Context, arg getBarsParams) ([]barRow, error) {
	rows, err := q.db.Query(ctx, getBars, arg.AssetID, arg.Start, arg.End)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowToStructByName[barRow])
}

const getQuotes = `
SELECT expiry, strike, kind, premium, implied_vol, open_interest
FROM option_quotes
WHERE asset_id = $1 AND day = $2
ORDER BY expiry, kind, strike`

func (q *Queries) GetQuotes(ctx context.Context, arg getQuotesParams) ([]quoteRow, error) {
	rows, err := q.db.Query(ctx, getQuotes, arg.AssetID, arg.Day)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowToStructByName[quoteRow])
}

const insertBacktest = `
INSERT INTO backtests (id, symbol, status, config)
VALUES ($1, $2, $3, $4)`

func (q *Queries) InsertBacktest(ctx context.Context, arg insertBacktestParams) error {
	_, err := q.db.Exec(ctx, insertBacktest, arg.ID, arg.Symbol, arg.Status, arg.Config)
	return err
}

const updateBacktestStatus = `
UPDATE backtests
SET status = $2, error = NULLIF($3, ''), modified_at = now()
WHERE id = $1`

func (q *Queries) UpdateBacktestStatus(ctx context.Context, arg updateBacktestStatusParams) (int64, error) {
	tag, err := q.db.Exec(ctx, updateBacktestStatus, arg.ID, arg.Status, arg.Message)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

const saveBacktestResult = `
INSERT INTO backtests (id, symbol, status, error, result, started_at, completed_at)
VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, $7)
ON CONFLICT (id) DO UPDATE
SET status = EXCLUDED.status,
    error = EXCLUDED.error,
    result = EXCLUDED.result,
    started_at = EXCLUDED.started_at,
    completed_at = EXCLUDED.completed_at,
    modified_at = now()`

func (q *Queries) SaveBacktestResult(ctx context.Context, arg saveBacktestResultParams) error {
	_, err := q.db.Exec(ctx, saveBacktestResult,
		arg.ID, arg.Symbol, arg.Status, arg.Message, arg.Result, arg.StartedAt, arg.CompletedAt)
	return err
}

const getBacktestResult = `
SELECT result
FROM backtests
WHERE id = $1 AND result IS NOT NULL`

func (q *Queries) GetBacktestResult(ctx context.Context, id string) ([]byte, error) {
	var raw []byte
	err := q.db.QueryRow(ctx, getBacktestResult, id).Scan(&raw)
	return raw, err
}
