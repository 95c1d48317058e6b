// Package sqlite implements store.Store on SQLite via Grove ORM.
//
// Like the postgres backend, debits are versioned optimistic writes that
// surface ErrDebitConflict on a lost race, leaving the retry policy to
// the engine.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/sqlitedriver"
	"github.com/xraph/grove/migrate"

	turnstile "github.com/xraph/turnstile"
	"github.com/xraph/turnstile/access"
	"github.com/xraph/turnstile/credit"
	"github.com/xraph/turnstile/id"
	turnstilestore "github.com/xraph/turnstile/store"
	"github.com/xraph/turnstile/types"
)

// compile-time interface check
var _ turnstilestore.Store = (*Store)(nil)

// Store implements store.Store using SQLite via Grove ORM.
type Store struct {
	db  *grove.DB
	sdb *sqlitedriver.SqliteDB
}

// New creates a new SQLite store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db:  db,
		sdb: sqlitedriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates the required tables and indexes using the grove orchestrator.
func (s *Store) Migrate(ctx context.Context) error {
	executor, err := migrate.NewExecutorFor(s.sdb)
	if err != nil {
		return fmt.Errorf("turnstile/sqlite: create migration executor: %w", err)
	}
	orch := migrate.NewOrchestrator(executor, Migrations)
	if _, err := orch.Migrate(ctx); err != nil {
		return fmt.Errorf("turnstile/sqlite: migration failed: %w", err)
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// ==================== Account Store ====================

func (s *Store) CreateAccount(ctx context.Context, a *credit.Account) error {
	m := toAccountModel(a)
	_, err := s.sdb.NewInsert(m).Exec(ctx)
	if err != nil {
		return fmt.Errorf("turnstile/sqlite: create account: %w", err)
	}
	return nil
}

func (s *Store) GetAccount(ctx context.Context, accountID id.AccountID) (*credit.Account, error) {
	m := new(accountModel)
	err := s.sdb.NewSelect(m).
		Where("id = ?", accountID.String()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, turnstile.ErrAccountNotFound
		}
		return nil, err
	}
	return fromAccountModel(m)
}

// Debit is a versioned optimistic write, same scheme as the postgres
// backend but with SQLite placeholders.
func (s *Store) Debit(ctx context.Context, accountID id.AccountID, cost types.Credits, reason string) (*credit.Entry, error) {
	if !cost.IsPositive() {
		return nil, turnstile.ErrInvalidCost
	}

	m := new(accountModel)
	err := s.sdb.NewSelect(m).
		Where("id = ?", accountID.String()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, turnstile.ErrAccountNotFound
		}
		return nil, err
	}

	if m.Balance < cost.Int64() {
		return nil, turnstile.ErrInsufficientCredits
	}

	t := now()
	newBalance := m.Balance - cost.Int64()
	res, err := s.sdb.NewUpdate((*accountModel)(nil)).
		Set("balance = ?", newBalance).
		Set("version = ?", m.Version+1).
		Set("updated_at = ?", t).
		Where("id = ?", accountID.String()).
		Where("version = ?", m.Version).
		Exec(ctx)
	if err != nil {
		return nil, fmt.Errorf("turnstile/sqlite: debit: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("turnstile/sqlite: debit rows: %w", err)
	}
	if rows == 0 {
		return nil, turnstile.ErrDebitConflict
	}

	entry := &credit.Entry{
		Entity:       types.NewEntity(),
		ID:           id.NewEntryID(),
		AccountID:    accountID,
		Delta:        cost.Negate(),
		BalanceAfter: types.Credits(newBalance),
		Reason:       reason,
		AppID:        m.AppID,
		Timestamp:    t,
	}
	if _, err := s.sdb.NewInsert(toEntryModel(entry)).Exec(ctx); err != nil {
		return nil, fmt.Errorf("turnstile/sqlite: debit entry: %w", err)
	}
	return entry, nil
}

func (s *Store) Credit(ctx context.Context, accountID id.AccountID, amount types.Credits, reason string) (*credit.Entry, error) {
	if !amount.IsPositive() {
		return nil, turnstile.ErrInvalidInput
	}

	m := new(accountModel)
	err := s.sdb.NewSelect(m).
		Where("id = ?", accountID.String()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, turnstile.ErrAccountNotFound
		}
		return nil, err
	}

	t := now()
	newBalance := m.Balance + amount.Int64()
	res, err := s.sdb.NewUpdate((*accountModel)(nil)).
		Set("balance = ?", newBalance).
		Set("version = ?", m.Version+1).
		Set("updated_at = ?", t).
		Where("id = ?", accountID.String()).
		Where("version = ?", m.Version).
		Exec(ctx)
	if err != nil {
		return nil, fmt.Errorf("turnstile/sqlite: credit: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("turnstile/sqlite: credit rows: %w", err)
	}
	if rows == 0 {
		return nil, turnstile.ErrDebitConflict
	}

	entry := &credit.Entry{
		Entity:       types.NewEntity(),
		ID:           id.NewEntryID(),
		AccountID:    accountID,
		Delta:        amount,
		BalanceAfter: types.Credits(newBalance),
		Reason:       reason,
		AppID:        m.AppID,
		Timestamp:    t,
	}
	if _, err := s.sdb.NewInsert(toEntryModel(entry)).Exec(ctx); err != nil {
		return nil, fmt.Errorf("turnstile/sqlite: credit entry: %w", err)
	}
	return entry, nil
}

func (s *Store) ListEntries(ctx context.Context, accountID id.AccountID, opts credit.ListOpts) ([]*credit.Entry, error) {
	var models []entryModel
	q := s.sdb.NewSelect(&models).Where("account_id = ?", accountID.String())

	if !opts.Start.IsZero() {
		q = q.Where("timestamp >= ?", opts.Start)
	}
	if !opts.End.IsZero() {
		q = q.Where("timestamp <= ?", opts.End)
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("timestamp DESC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}

	result := make([]*credit.Entry, len(models))
	for i := range models {
		e, err := fromEntryModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = e
	}
	return result, nil
}

// ==================== Journal Store ====================

func (s *Store) RecordEvents(ctx context.Context, events []*access.Event) error {
	if len(events) == 0 {
		return nil
	}
	for _, e := range events {
		m := toGateEventModel(e)
		if _, err := s.sdb.NewInsert(m).Exec(ctx); err != nil {
			return fmt.Errorf("turnstile/sqlite: record event: %w", err)
		}
	}
	return nil
}

func (s *Store) QueryEvents(ctx context.Context, tenantID, appID string, opts access.QueryOpts) ([]*access.Event, error) {
	var models []gateEventModel
	q := s.sdb.NewSelect(&models).
		Where("tenant_id = ?", tenantID).
		Where("app_id = ?", appID)

	if opts.Feature != "" {
		q = q.Where("feature = ?", opts.Feature)
	}
	if opts.Reason != "" {
		q = q.Where("reason = ?", string(opts.Reason))
	}
	if !opts.Start.IsZero() {
		q = q.Where("timestamp >= ?", opts.Start)
	}
	if !opts.End.IsZero() {
		q = q.Where("timestamp <= ?", opts.End)
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("timestamp DESC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}

	result := make([]*access.Event, len(models))
	for i := range models {
		evt, err := fromGateEventModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = evt
	}
	return result, nil
}

func (s *Store) PurgeEvents(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.sdb.NewDelete((*gateEventModel)(nil)).
		Where("timestamp < ?", before).
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("turnstile/sqlite: purge events: %w", err)
	}
	return res.RowsAffected()
}

// ==================== Helpers ====================

// now returns the current UTC time.
func now() time.Time {
	return time.Now().UTC()
}

// isNoRows checks if an error wraps sql.ErrNoRows.
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
