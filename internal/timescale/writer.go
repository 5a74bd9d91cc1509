package timescale

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"futures-sim-bot/internal/config"

	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"
)

const writeTimeout = 3 * time.Second

// TradeRow mirrors an executed trade for the time-series database.
// Numeric columns use NUMERIC, so decimals are passed as strings.
type TradeRow struct {
	Time     time.Time
	TradeID  string
	Symbol   string
	Side     string
	Quantity string
	Price    string
	Cost     string
}

// ValuationRow is a point-in-time portfolio valuation.
type ValuationRow struct {
	Time       time.Time
	TotalValue string
	QuoteAsset string
	Partial    bool
	Assets     int
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Writer records trades and valuations asynchronously; inserts that
// cannot keep up are dropped with a warning rather than slowing the
// trade path. The drain goroutine runs from New, so one-shot CLI
// invocations record their rows too; Close flushes whatever is still
// queued before returning.
type Writer struct {
	db         *sql.DB
	exec       execer
	log        *zap.Logger
	schema     string
	trades     chan TradeRow
	valuations chan ValuationRow
	stop       chan struct{}
	done       chan struct{}
	closed     atomic.Bool
	dropTrade  atomic.Uint64
	dropVal    atomic.Uint64
}

func New(cfg config.TimescaleConfig, log *zap.Logger) (*Writer, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	dsn := strings.TrimSpace(cfg.DSN)
	if dsn == "" {
		return nil, errors.New("timescale dsn is required")
	}
	schema := strings.TrimSpace(cfg.Schema)
	if schema == "" {
		schema = "public"
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	writer := newWriter(db, db, schema, cfg.QueueSize, log)
	if err := writer.ensureSchema(ctx); err != nil {
		_ = writer.Close()
		return nil, err
	}
	return writer, nil
}

func newWriter(db *sql.DB, exec execer, schema string, queueSize int, log *zap.Logger) *Writer {
	if queueSize <= 0 {
		queueSize = 256
	}
	w := &Writer{
		db:         db,
		exec:       exec,
		log:        log,
		schema:     schema,
		trades:     make(chan TradeRow, queueSize),
		valuations: make(chan ValuationRow, queueSize),
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
	go w.run()
	return w
}

// Close stops the drain goroutine, writes out any rows still queued,
// and closes the database.
func (w *Writer) Close() error {
	if w == nil || !w.closed.CompareAndSwap(false, true) {
		return nil
	}
	close(w.stop)
	<-w.done
	w.flush()
	if w.db != nil {
		return w.db.Close()
	}
	return nil
}

func (w *Writer) EnqueueTrade(row TradeRow) {
	if w == nil || w.closed.Load() {
		return
	}
	select {
	case w.trades <- row:
		return
	default:
		if w.dropTrade.Add(1) == 1 && w.log != nil {
			w.log.Warn("timescale trade queue full")
		}
	}
}

func (w *Writer) EnqueueValuation(row ValuationRow) {
	if w == nil || w.closed.Load() {
		return
	}
	select {
	case w.valuations <- row:
		return
	default:
		if w.dropVal.Add(1) == 1 && w.log != nil {
			w.log.Warn("timescale valuation queue full")
		}
	}
}

func (w *Writer) run() {
	defer close(w.done)
	ctx := context.Background()
	for {
		select {
		case <-w.stop:
			return
		case row := <-w.trades:
			w.writeTrade(ctx, row)
		case row := <-w.valuations:
			w.writeValuation(ctx, row)
		}
	}
}

func (w *Writer) flush() {
	ctx := context.Background()
	for {
		select {
		case row := <-w.trades:
			w.writeTrade(ctx, row)
		case row := <-w.valuations:
			w.writeValuation(ctx, row)
		default:
			return
		}
	}
}

func (w *Writer) ensureSchema(ctx context.Context) error {
	if w.exec == nil {
		return errors.New("timescale db not initialized")
	}
	if w.schema != "public" {
		if err := w.execDDL(ctx, fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", w.schema)); err != nil {
			return err
		}
	}
	if err := w.execDDL(ctx, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		ts TIMESTAMPTZ NOT NULL,
		trade_id TEXT NOT NULL,
		symbol TEXT NOT NULL,
		side TEXT NOT NULL,
		quantity NUMERIC NOT NULL,
		price NUMERIC NOT NULL,
		cost NUMERIC NOT NULL,
		PRIMARY KEY (ts, trade_id)
	)`, w.table("sim_trades"))); err != nil {
		return err
	}
	if err := w.execDDL(ctx, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		ts TIMESTAMPTZ NOT NULL,
		total_value NUMERIC NOT NULL,
		quote_asset TEXT NOT NULL,
		partial BOOLEAN NOT NULL,
		assets INTEGER NOT NULL
	)`, w.table("portfolio_valuations"))); err != nil {
		return err
	}
	if err := w.execDDL(ctx, "CREATE EXTENSION IF NOT EXISTS timescaledb"); err != nil {
		if w.log != nil {
			w.log.Warn("timescale extension ensure failed", zap.Error(err))
		}
		return nil
	}
	if err := w.execDDL(ctx, fmt.Sprintf("SELECT create_hypertable('%s', 'ts', if_not_exists => TRUE)", w.table("sim_trades"))); err != nil && w.log != nil {
		w.log.Warn("timescale sim_trades hypertable create failed", zap.Error(err))
	}
	if err := w.execDDL(ctx, fmt.Sprintf("SELECT create_hypertable('%s', 'ts', if_not_exists => TRUE)", w.table("portfolio_valuations"))); err != nil && w.log != nil {
		w.log.Warn("timescale portfolio_valuations hypertable create failed", zap.Error(err))
	}
	return nil
}

func (w *Writer) writeTrade(ctx context.Context, row TradeRow) {
	if w.exec == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	query := fmt.Sprintf(`INSERT INTO %s (
		ts, trade_id, symbol, side, quantity, price, cost
	) VALUES (
		$1,$2,$3,$4,$5,$6,$7
	) ON CONFLICT (ts, trade_id) DO NOTHING`, w.table("sim_trades"))
	if _, err := w.exec.ExecContext(ctx, query,
		row.Time,
		row.TradeID,
		row.Symbol,
		row.Side,
		row.Quantity,
		row.Price,
		row.Cost,
	); err != nil && w.log != nil {
		w.log.Warn("timescale trade insert failed", zap.Error(err))
	}
}

func (w *Writer) writeValuation(ctx context.Context, row ValuationRow) {
	if w.exec == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	query := fmt.Sprintf(`INSERT INTO %s (
		ts, total_value, quote_asset, partial, assets
	) VALUES (
		$1,$2,$3,$4,$5
	)`, w.table("portfolio_valuations"))
	if _, err := w.exec.ExecContext(ctx, query,
		row.Time,
		row.TotalValue,
		row.QuoteAsset,
		row.Partial,
		row.Assets,
	); err != nil && w.log != nil {
		w.log.Warn("timescale valuation insert failed", zap.Error(err))
	}
}

func (w *Writer) execDDL(ctx context.Context, query string) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	_, err := w.exec.ExecContext(ctx, query)
	return err
}

func (w *Writer) table(name string) string {
	return w.schema + "." + name
}
