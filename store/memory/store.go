package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/xraph/turnstile"
	"github.com/xraph/turnstile/access"
	"github.com/xraph/turnstile/credit"
	"github.com/xraph/turnstile/id"
	turnstilestore "github.com/xraph/turnstile/store"
	"github.com/xraph/turnstile/types"
)

// compile-time interface check
var _ turnstilestore.Store = (*Store)(nil)

// Store is an in-memory store for tests and demos. The mutex makes every
// check-then-write a single critical section, so debits serialize per
// process the same way the persistent backends serialize per account.
type Store struct {
	mu sync.Mutex

	accounts map[string]*credit.Account
	entries  map[string][]*credit.Entry
	events   []*access.Event

	closed bool
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		accounts: make(map[string]*credit.Account),
		entries:  make(map[string][]*credit.Entry),
	}
}

// ==================== Account Store ====================

func (s *Store) CreateAccount(_ context.Context, a *credit.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return turnstile.ErrStoreClosed
	}
	if _, exists := s.accounts[a.ID.String()]; exists {
		return turnstile.ErrAccountExists
	}

	stored := *a
	s.accounts[a.ID.String()] = &stored
	return nil
}

func (s *Store) GetAccount(_ context.Context, accountID id.AccountID) (*credit.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, turnstile.ErrStoreClosed
	}

	a, ok := s.accounts[accountID.String()]
	if !ok {
		return nil, turnstile.ErrAccountNotFound
	}

	// Copy so callers hold a snapshot, not the live balance.
	snapshot := *a
	return &snapshot, nil
}

func (s *Store) Debit(_ context.Context, accountID id.AccountID, cost types.Credits, reason string) (*credit.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, turnstile.ErrStoreClosed
	}

	a, ok := s.accounts[accountID.String()]
	if !ok {
		return nil, turnstile.ErrAccountNotFound
	}
	if !a.Balance.CanCover(cost) {
		return nil, turnstile.ErrInsufficientCredits
	}

	a.Balance = a.Balance.Subtract(cost)
	a.Version++
	a.Touch()

	entry := &credit.Entry{
		Entity:       types.NewEntity(),
		ID:           id.NewEntryID(),
		AccountID:    accountID,
		Delta:        cost.Negate(),
		BalanceAfter: a.Balance,
		Reason:       reason,
		AppID:        a.AppID,
		Timestamp:    time.Now().UTC(),
	}
	s.entries[accountID.String()] = append(s.entries[accountID.String()], entry)

	result := *entry
	return &result, nil
}

func (s *Store) Credit(_ context.Context, accountID id.AccountID, amount types.Credits, reason string) (*credit.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, turnstile.ErrStoreClosed
	}

	a, ok := s.accounts[accountID.String()]
	if !ok {
		return nil, turnstile.ErrAccountNotFound
	}

	a.Balance = a.Balance.Add(amount)
	a.Version++
	a.Touch()

	entry := &credit.Entry{
		Entity:       types.NewEntity(),
		ID:           id.NewEntryID(),
		AccountID:    accountID,
		Delta:        amount,
		BalanceAfter: a.Balance,
		Reason:       reason,
		AppID:        a.AppID,
		Timestamp:    time.Now().UTC(),
	}
	s.entries[accountID.String()] = append(s.entries[accountID.String()], entry)

	result := *entry
	return &result, nil
}

func (s *Store) ListEntries(_ context.Context, accountID id.AccountID, opts credit.ListOpts) ([]*credit.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, turnstile.ErrStoreClosed
	}

	result := make([]*credit.Entry, 0)
	for _, e := range s.entries[accountID.String()] {
		if !opts.Start.IsZero() && e.Timestamp.Before(opts.Start) {
			continue
		}
		if !opts.End.IsZero() && e.Timestamp.After(opts.End) {
			continue
		}
		snapshot := *e
		result = append(result, &snapshot)
	}

	// Newest first.
	sort.Slice(result, func(i, j int) bool {
		return result[i].Timestamp.After(result[j].Timestamp)
	})

	return paginate(result, opts.Offset, opts.Limit), nil
}

// ==================== Journal Store ====================

func (s *Store) RecordEvents(_ context.Context, events []*access.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return turnstile.ErrStoreClosed
	}

	for _, e := range events {
		snapshot := *e
		s.events = append(s.events, &snapshot)
	}
	return nil
}

func (s *Store) QueryEvents(_ context.Context, tenantID, appID string, opts access.QueryOpts) ([]*access.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, turnstile.ErrStoreClosed
	}

	result := make([]*access.Event, 0)
	for _, e := range s.events {
		if e.TenantID != tenantID || e.AppID != appID {
			continue
		}
		if opts.Feature != "" && e.Feature != opts.Feature {
			continue
		}
		if opts.Reason != "" && e.Reason != opts.Reason {
			continue
		}
		if !opts.Start.IsZero() && e.Timestamp.Before(opts.Start) {
			continue
		}
		if !opts.End.IsZero() && e.Timestamp.After(opts.End) {
			continue
		}
		snapshot := *e
		result = append(result, &snapshot)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Timestamp.After(result[j].Timestamp)
	})

	return paginate(result, opts.Offset, opts.Limit), nil
}

func (s *Store) PurgeEvents(_ context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, turnstile.ErrStoreClosed
	}

	kept := s.events[:0]
	var purged int64
	for _, e := range s.events {
		if e.Timestamp.Before(before) {
			purged++
			continue
		}
		kept = append(kept, e)
	}
	s.events = kept
	return purged, nil
}

// ==================== Core ====================

func (s *Store) Migrate(_ context.Context) error { return nil }

func (s *Store) Ping(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return turnstile.ErrStoreClosed
	}
	return nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	return nil
}

func paginate[T any](items []T, offset, limit int) []T {
	start := offset
	if start > len(items) {
		start = len(items)
	}
	end := start + limit
	if limit == 0 || end > len(items) {
		end = len(items)
	}
	return items[start:end]
}
