package balance

import (
	"context"
	"encoding/json"
	"fmt"

	"futures-sim-bot/internal/state"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const snapshotKey = "balance:snapshot"

// Store persists the balance as a single complete snapshot in the
// underlying key-value store.
type Store struct {
	kv   state.Store
	seed Balance
	log  *zap.Logger
}

func NewStore(kv state.Store, seed Balance, log *zap.Logger) *Store {
	return &Store{kv: kv, seed: seed, log: log}
}

// Load reads the durable snapshot. A missing snapshot is seeded from
// the configured default and persisted before returning; a malformed
// one fails with ErrCorruptSnapshot rather than defaulting.
func (s *Store) Load(ctx context.Context) (Balance, error) {
	raw, ok, err := s.kv.Get(ctx, snapshotKey)
	if err != nil {
		return nil, fmt.Errorf("balance read: %w", err)
	}
	if !ok {
		bal := s.seed.Clone()
		if err := s.Save(ctx, bal); err != nil {
			return nil, err
		}
		s.log.Info("seeded balance snapshot", zap.Any("balance", bal))
		return bal, nil
	}
	return decodeSnapshot(raw)
}

// Save overwrites the durable snapshot atomically. Negative entries are
// refused here as a last line of defense; Apply should have caught them.
func (s *Store) Save(ctx context.Context, bal Balance) error {
	for asset, qty := range bal {
		if qty.IsNegative() {
			return fmt.Errorf("%w: refusing to persist negative %s balance %s", ErrInsufficientFunds, asset, qty)
		}
	}
	payload, err := json.Marshal(bal)
	if err != nil {
		return err
	}
	return s.kv.Set(ctx, snapshotKey, payload)
}

func decodeSnapshot(raw []byte) (Balance, error) {
	var bal map[string]decimal.Decimal
	if err := json.Unmarshal(raw, &bal); err != nil {
		return nil, fmt.Errorf("%w: balance: %v", state.ErrCorruptSnapshot, err)
	}
	for asset, qty := range bal {
		if asset == "" {
			return nil, fmt.Errorf("%w: balance entry without asset", state.ErrCorruptSnapshot)
		}
		if qty.IsNegative() {
			return nil, fmt.Errorf("%w: balance %s is negative (%s)", state.ErrCorruptSnapshot, asset, qty)
		}
	}
	return Balance(bal), nil
}
