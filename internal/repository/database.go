// Package repository reads option market data from Postgres and persists
// backtest runs.
package repository

import (
	"context"
	_ "embed"
	"errors"
	"fmt"

	pgxdecimal "github.com/jackc/pgx-shopspring-decimal"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Global error declarations.
var (
	ErrAssetNotFound = errors.New("not found in datasource")
	ErrNoBars        = errors.New("no bars found in datasource")
	ErrNotFound      = errors.New("backtest not found")
)

//go:embed schema.sql
var schema string

type assetsRepository interface {
	GetAssetByTicker(ctx context.Context, ticker string) (assetRow, error)
}
type barsRepository interface {
	GetBars(ctx context.Context, arg getBarsParams) ([]barRow, error)
}
type quotesRepository interface {
	GetQuotes(ctx context.Context, arg getQuotesParams) ([]quoteRow, error)
}
type backtestsRepository interface {
	InsertBacktest(ctx context.Context, arg insertBacktestParams) error
	UpdateBacktestStatus(ctx context.Context, arg updateBacktestStatusParams) (int64, error)
	SaveBacktestResult(ctx context.Context, arg saveBacktestResultParams) error
	GetBacktestResult(ctx context.Context, id string) ([]byte, error)
}

// Database holds the connection pool and queries. It implements both
// engine.MarketDataSource and engine.ResultStore.
type Database struct {
	assets    assetsRepository
	bars      barsRepository
	quotes    quotesRepository
	backtests backtestsRepository
	conn      *pgxpool.Pool
}

// NewDatabase creates a new Database instance and verifies connectivity.
func NewDatabase(ctx context.Context, dbURL string, maxConns int32) (*Database, error) {
	config, err := pgxpool.ParseConfig(dbURL)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if maxConns > 0 {
		config.MaxConns = maxConns
	}
	// Register shopspring decimal
	config.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		pgxdecimal.Register(conn.TypeMap())
		return nil
	}

	conn, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, err
	}
	// Ensure the connection is established.
	if err := conn.Ping(ctx); err != nil {
		conn.Close()
		return nil, err
	}

	queries := NewQueries(conn)
	return &Database{
		assets:    queries,
		bars:      queries,
		quotes:    queries,
		backtests: queries,
		conn:      conn}, nil
}

// Migrate creates the tables if they do not exist yet.
func (db *Database) Migrate(ctx context.Context) error {
	if _, err := db.conn.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

func (db *Database) Close() {
	if db.conn != nil {
		db.conn.Close()
	}
}
