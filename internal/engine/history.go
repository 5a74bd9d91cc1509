package engine

import (
	"context"
	"fmt"
	"time"

	"futures-sim-bot/internal/state"

	"github.com/shopspring/decimal"
	"github.com/vmihailenco/msgpack/v5"
)

const tradeKeyPrefix = "trade:"

// tradeRecord is the msgpack wire form of a Trade. Decimals travel as
// strings so no precision is lost in the snapshot store.
type tradeRecord struct {
	ID        string `msgpack:"id"`
	Symbol    string `msgpack:"symbol"`
	Side      string `msgpack:"side"`
	Quantity  string `msgpack:"quantity"`
	Price     string `msgpack:"price"`
	Cost      string `msgpack:"cost"`
	Timestamp int64  `msgpack:"ts_unix_ns"`
}

func encodeTrade(t Trade) ([]byte, error) {
	return msgpack.Marshal(tradeRecord{
		ID:        t.ID,
		Symbol:    t.Symbol,
		Side:      string(t.Side),
		Quantity:  t.Quantity.String(),
		Price:     t.Price.String(),
		Cost:      t.Cost.String(),
		Timestamp: t.Timestamp.UnixNano(),
	})
}

func decodeTrade(raw []byte) (Trade, error) {
	var rec tradeRecord
	if err := msgpack.Unmarshal(raw, &rec); err != nil {
		return Trade{}, fmt.Errorf("%w: trade record: %v", state.ErrCorruptSnapshot, err)
	}
	quantity, err := decimal.NewFromString(rec.Quantity)
	if err != nil {
		return Trade{}, fmt.Errorf("%w: trade %s quantity: %v", state.ErrCorruptSnapshot, rec.ID, err)
	}
	price, err := decimal.NewFromString(rec.Price)
	if err != nil {
		return Trade{}, fmt.Errorf("%w: trade %s price: %v", state.ErrCorruptSnapshot, rec.ID, err)
	}
	cost, err := decimal.NewFromString(rec.Cost)
	if err != nil {
		return Trade{}, fmt.Errorf("%w: trade %s cost: %v", state.ErrCorruptSnapshot, rec.ID, err)
	}
	side, err := ParseSide(rec.Side)
	if err != nil {
		return Trade{}, fmt.Errorf("%w: trade %s: %v", state.ErrCorruptSnapshot, rec.ID, err)
	}
	return Trade{
		ID:        rec.ID,
		Symbol:    rec.Symbol,
		Side:      side,
		Quantity:  quantity,
		Price:     price,
		Cost:      cost,
		Timestamp: time.Unix(0, rec.Timestamp).UTC(),
	}, nil
}

func tradeKey(id string) string {
	return tradeKeyPrefix + id
}

// History returns all committed trades in execution order. Trade IDs
// are ULIDs, so lexicographic key order is chronological.
func (e *Engine) History(ctx context.Context) ([]Trade, error) {
	keys, err := e.kv.List(ctx, tradeKeyPrefix)
	if err != nil {
		return nil, fmt.Errorf("history list: %w", err)
	}
	trades := make([]Trade, 0, len(keys))
	for _, key := range keys {
		raw, ok, err := e.kv.Get(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("history read %s: %w", key, err)
		}
		if !ok {
			continue
		}
		trade, err := decodeTrade(raw)
		if err != nil {
			return nil, err
		}
		trades = append(trades, trade)
	}
	return trades, nil
}
