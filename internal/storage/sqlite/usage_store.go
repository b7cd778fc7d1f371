package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/felixgeelhaar/codepractice/internal/budget"
)

// UsageStore persists token budget state.
type UsageStore struct {
	db *DB
}

// NewUsageStore creates a new SQLite-backed budget store.
func NewUsageStore(db *DB) *UsageStore {
	return &UsageStore{db: db}
}

// Load returns the stored state, or a zero state for an unknown account.
func (s *UsageStore) Load(ctx context.Context, account string) (budget.State, error) {
	state := budget.State{Account: account}
	var lastReset sql.NullTime

	err := s.db.QueryRowContext(ctx,
		"SELECT used, last_reset, admin FROM token_usage WHERE account = ?", account,
	).Scan(&state.Used, &lastReset, &state.Admin)
	if errors.Is(err, sql.ErrNoRows) {
		return state, nil
	}
	if err != nil {
		return budget.State{}, fmt.Errorf("get token usage: %w", err)
	}

	if lastReset.Valid {
		state.LastReset = lastReset.Time
	}
	return state, nil
}

// Save upserts the state of an account.
func (s *UsageStore) Save(ctx context.Context, state budget.State) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO token_usage (account, used, last_reset, admin) VALUES (?, ?, ?, ?)
		ON CONFLICT(account) DO UPDATE SET
			used=excluded.used, last_reset=excluded.last_reset, admin=excluded.admin`,
		state.Account, state.Used, nullTime(state.LastReset), state.Admin)
	if err != nil {
		return fmt.Errorf("save token usage: %w", err)
	}
	return nil
}

var _ budget.Store = (*UsageStore)(nil)
