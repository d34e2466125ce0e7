package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"TickFuse/internal/domain/models"
	"TickFuse/internal/domain/repository"
	pkgch "TickFuse/pkg/clickhouse"

	"github.com/shopspring/decimal"
)

// ClickHouseStorage persists canonical ticks, sealed bars and signal
// transitions. One instance serves a single symbol.
type ClickHouseStorage struct {
	client *pkgch.Client
	db     *sql.DB
	symbol string
}

// NewClickHouseStorage creates ClickHouse storage for a symbol.
func NewClickHouseStorage(client *pkgch.Client, symbol string) *ClickHouseStorage {
	return &ClickHouseStorage{client: client, db: client.DB(), symbol: symbol}
}

var schemaStmts = []string{
	`CREATE TABLE IF NOT EXISTS fused_ticks (
		ts DateTime64(3),
		symbol LowCardinality(String),
		price Decimal64(4),
		source LowCardinality(String),
		confidence Float64,
		stale UInt8
	) ENGINE = MergeTree()
	PARTITION BY toYYYYMMDD(ts)
	ORDER BY (symbol, ts)
	TTL toDateTime(ts) + INTERVAL 30 DAY`,

	`CREATE TABLE IF NOT EXISTS sealed_bars (
		resolution LowCardinality(String),
		symbol LowCardinality(String),
		open_time DateTime64(3),
		open Decimal64(4),
		high Decimal64(4),
		low Decimal64(4),
		close Decimal64(4),
		tick_count UInt32
	) ENGINE = ReplacingMergeTree()
	PARTITION BY toYYYYMM(open_time)
	ORDER BY (symbol, resolution, open_time)`,

	`CREATE TABLE IF NOT EXISTS signal_transitions (
		ts DateTime64(3),
		symbol LowCardinality(String),
		from_label LowCardinality(String),
		to_label LowCardinality(String),
		score Float64
	) ENGINE = MergeTree()
	PARTITION BY toYYYYMM(ts)
	ORDER BY (symbol, ts)`,
}

func (s *ClickHouseStorage) Init(ctx context.Context) error {
	return s.client.InitSchema(ctx, schemaStmts)
}

func (s *ClickHouseStorage) StoreTick(ctx context.Context, t *models.CanonicalTick) error {
	stale := uint8(0)
	if t.Stale {
		stale = 1
	}
	q := "INSERT INTO fused_ticks (ts, symbol, price, source, confidence, stale) VALUES (?, ?, ?, ?, ?, ?)"
	_, err := s.db.ExecContext(ctx, q,
		t.Timestamp,
		s.symbol,
		t.Price.String(),
		string(t.ActiveSource),
		t.SourceConfidence,
		stale,
	)
	return err
}

func (s *ClickHouseStorage) StoreBar(ctx context.Context, b *models.Bar) error {
	q := "INSERT INTO sealed_bars (resolution, symbol, open_time, open, high, low, close, tick_count) VALUES (?, ?, ?, ?, ?, ?, ?, ?)"
	_, err := s.db.ExecContext(ctx, q,
		b.Resolution,
		s.symbol,
		b.OpenTime,
		b.Open.String(),
		b.High.String(),
		b.Low.String(),
		b.Close.String(),
		uint32(b.TickCount),
	)
	return err
}

func (s *ClickHouseStorage) StoreTransition(ctx context.Context, tr *models.SignalTransition) error {
	q := "INSERT INTO signal_transitions (ts, symbol, from_label, to_label, score) VALUES (?, ?, ?, ?, ?)"
	_, err := s.db.ExecContext(ctx, q,
		tr.Timestamp,
		s.symbol,
		string(tr.From),
		string(tr.To),
		tr.Score,
	)
	return err
}

// GetBars returns sealed bars for a resolution inside [from, to], oldest first.
func (s *ClickHouseStorage) GetBars(ctx context.Context, from, to time.Time, res repository.Resolution) ([]models.Bar, error) {
	q := `SELECT resolution, open_time, toString(open), toString(high), toString(low), toString(close), tick_count
		FROM sealed_bars
		WHERE symbol = ? AND resolution = ? AND open_time >= ? AND open_time <= ?
		ORDER BY open_time ASC`
	rows, err := s.db.QueryContext(ctx, q, s.symbol, string(res), from, to)
	if err != nil {
		return nil, fmt.Errorf("query bars: %w", err)
	}
	defer rows.Close()
	return scanBars(rows)
}

// GetLatestNBars returns the most recent n sealed bars, oldest first.
func (s *ClickHouseStorage) GetLatestNBars(ctx context.Context, n int, res repository.Resolution) ([]models.Bar, error) {
	q := `SELECT resolution, open_time, toString(open), toString(high), toString(low), toString(close), tick_count
		FROM (
			SELECT * FROM sealed_bars
			WHERE symbol = ? AND resolution = ?
			ORDER BY open_time DESC LIMIT ?
		) ORDER BY open_time ASC`
	rows, err := s.db.QueryContext(ctx, q, s.symbol, string(res), n)
	if err != nil {
		return nil, fmt.Errorf("query latest bars: %w", err)
	}
	defer rows.Close()
	return scanBars(rows)
}

func scanBars(rows *sql.Rows) ([]models.Bar, error) {
	var bars []models.Bar
	for rows.Next() {
		var (
			b                models.Bar
			o, h, l, c       string
			openTime         time.Time
			ticks            uint32
		)
		if err := rows.Scan(&b.Resolution, &openTime, &o, &h, &l, &c, &ticks); err != nil {
			return nil, err
		}
		var err error
		if b.Open, err = parseDec(o); err != nil {
			return nil, err
		}
		if b.High, err = parseDec(h); err != nil {
			return nil, err
		}
		if b.Low, err = parseDec(l); err != nil {
			return nil, err
		}
		if b.Close, err = parseDec(c); err != nil {
			return nil, err
		}
		b.OpenTime = openTime
		b.TickCount = int(ticks)
		bars = append(bars, b)
	}
	return bars, rows.Err()
}

func parseDec(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("scan decimal %q: %w", s, err)
	}
	return d, nil
}

func (s *ClickHouseStorage) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *ClickHouseStorage) Close() error {
	return nil // pool owned by pkg client
}
