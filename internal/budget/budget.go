// Package budget tracks the daily LLM token allowance.
package budget

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/felixgeelhaar/codepractice/internal/metrics"
)

var ErrBudgetExceeded = errors.New("daily token budget exceeded")

const (
	DefaultLimit    = 25000
	DefaultWindow   = 24 * time.Hour
	DefaultEstimate = 2000
	DefaultAccount  = "local"
)

// State is the persisted budget of one account
type State struct {
	Account   string    `json:"account"`
	Used      int       `json:"used"`
	LastReset time.Time `json:"last_reset"`
	Admin     bool      `json:"admin"`
}

// Store persists budget state
type Store interface {
	Load(ctx context.Context, account string) (State, error)
	Save(ctx context.Context, state State) error
}

// Usage is a snapshot of the current budget
type Usage struct {
	Used        int     `json:"used"`
	Budget      int     `json:"budget"`
	Remaining   int     `json:"remaining"`
	PercentUsed float64 `json:"percent_used"`
	Unlimited   bool    `json:"unlimited"`
}

// Config holds budget settings
type Config struct {
	Limit       int
	Window      time.Duration
	AdminSecret string
	Account     string
}

// Budget enforces a token allowance that resets once the window has passed
// since the last reset
type Budget struct {
	mu    sync.Mutex
	store Store
	cfg   Config
	now   func() time.Time
}

// New creates a budget backed by store
func New(store Store, cfg Config) *Budget {
	if cfg.Limit <= 0 {
		cfg.Limit = DefaultLimit
	}
	if cfg.Window <= 0 {
		cfg.Window = DefaultWindow
	}
	if cfg.Account == "" {
		cfg.Account = DefaultAccount
	}
	return &Budget{store: store, cfg: cfg, now: time.Now}
}

// load fetches state and applies a pending reset. Callers hold b.mu.
func (b *Budget) load(ctx context.Context) (State, error) {
	state, err := b.store.Load(ctx, b.cfg.Account)
	if err != nil {
		return State{}, fmt.Errorf("load budget: %w", err)
	}
	state.Account = b.cfg.Account

	now := b.now()
	if state.LastReset.IsZero() || now.Sub(state.LastReset) > b.cfg.Window {
		state.Used = 0
		state.LastReset = now
		if err := b.store.Save(ctx, state); err != nil {
			return State{}, fmt.Errorf("reset budget: %w", err)
		}
	}
	return state, nil
}

// Usage returns the current consumption
func (b *Budget) Usage(ctx context.Context) (Usage, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	state, err := b.load(ctx)
	if err != nil {
		return Usage{}, err
	}
	if state.Admin {
		return Usage{Unlimited: true}, nil
	}

	return Usage{
		Used:        state.Used,
		Budget:      b.cfg.Limit,
		Remaining:   max(0, b.cfg.Limit-state.Used),
		PercentUsed: math.Min(100, float64(state.Used)/float64(b.cfg.Limit)*100),
	}, nil
}

// Add records consumed tokens. It returns false without recording anything
// when the new total would exceed the limit.
func (b *Budget) Add(ctx context.Context, tokens int) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	state, err := b.load(ctx)
	if err != nil {
		return false, err
	}
	if state.Admin {
		return true, nil
	}

	if state.Used+tokens > b.cfg.Limit {
		metrics.RecordBudgetRejected()
		return false, nil
	}

	state.Used += tokens
	if err := b.store.Save(ctx, state); err != nil {
		return false, fmt.Errorf("save budget: %w", err)
	}
	return true, nil
}

// Record adds tokens already spent. Unlike Add it never refuses, so usage
// can end above the limit and later HasRemaining checks fail.
func (b *Budget) Record(ctx context.Context, tokens int) error {
	if tokens <= 0 {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	state, err := b.load(ctx)
	if err != nil {
		return err
	}
	if state.Admin {
		return nil
	}

	state.Used += tokens
	if err := b.store.Save(ctx, state); err != nil {
		return fmt.Errorf("save budget: %w", err)
	}
	return nil
}

// HasRemaining reports whether a call estimated at the given number of
// tokens fits the budget. Non-positive estimates use DefaultEstimate.
func (b *Budget) HasRemaining(ctx context.Context, estimate int) (bool, error) {
	if estimate <= 0 {
		estimate = DefaultEstimate
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	state, err := b.load(ctx)
	if err != nil {
		return false, err
	}
	return state.Admin || state.Used+estimate <= b.cfg.Limit, nil
}

// HoursUntilReset returns whole hours, rounded up, until the next reset
func (b *Budget) HoursUntilReset(ctx context.Context) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	state, err := b.load(ctx)
	if err != nil {
		return 0, err
	}

	remaining := state.LastReset.Add(b.cfg.Window).Sub(b.now())
	if remaining <= 0 {
		return 0, nil
	}
	return int(math.Ceil(remaining.Hours())), nil
}

// Activate enables unlimited use when secret matches the configured admin
// secret. An empty configured secret disables admin mode.
func (b *Budget) Activate(ctx context.Context, secret string) (bool, error) {
	if b.cfg.AdminSecret == "" || secret != b.cfg.AdminSecret {
		return false, nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	state, err := b.load(ctx)
	if err != nil {
		return false, err
	}
	state.Admin = true
	if err := b.store.Save(ctx, state); err != nil {
		return false, fmt.Errorf("save budget: %w", err)
	}
	return true, nil
}

// IsAdmin reports whether the account has unlimited use
func (b *Budget) IsAdmin(ctx context.Context) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	state, err := b.load(ctx)
	if err != nil {
		return false, err
	}
	return state.Admin, nil
}
