// Package mongo implements store.Store on MongoDB via Grove ORM.
//
// Conditional debits use a single FindOneAndUpdate with a balance guard in
// the filter, so the balance check and the decrement are one atomic server
// round trip. This backend never reports ErrDebitConflict.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/mongodriver"

	turnstile "github.com/xraph/turnstile"
	"github.com/xraph/turnstile/access"
	"github.com/xraph/turnstile/credit"
	"github.com/xraph/turnstile/id"
	turnstilestore "github.com/xraph/turnstile/store"
	"github.com/xraph/turnstile/types"
)

// Collection name constants.
const (
	colAccounts   = "turnstile_accounts"
	colEntries    = "turnstile_entries"
	colGateEvents = "turnstile_gate_events"
)

// compile-time interface check
var _ turnstilestore.Store = (*Store)(nil)

// Store implements store.Store using MongoDB via Grove ORM.
type Store struct {
	db  *grove.DB
	mdb *mongodriver.MongoDB
}

// New creates a new MongoDB store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db:  db,
		mdb: mongodriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates indexes for all turnstile collections.
func (s *Store) Migrate(ctx context.Context) error {
	indexes := migrationIndexes()

	for col, models := range indexes {
		if len(models) == 0 {
			continue
		}
		_, err := s.mdb.Collection(col).Indexes().CreateMany(ctx, models)
		if err != nil {
			return fmt.Errorf("turnstile/mongo: migrate %s indexes: %w", col, err)
		}
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
	_, err := s.mdb.NewInsert(m).Exec(ctx)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return turnstile.ErrAccountExists
		}
		return fmt.Errorf("turnstile/mongo: create account: %w", err)
	}
	return nil
}

func (s *Store) GetAccount(ctx context.Context, accountID id.AccountID) (*credit.Account, error) {
	var m accountModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": accountID.String()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, turnstile.ErrAccountNotFound
		}
		return nil, fmt.Errorf("turnstile/mongo: get account: %w", err)
	}
	return fromAccountModel(&m)
}

// Debit performs the balance check and decrement as one FindOneAndUpdate:
// the filter requires balance >= cost, so a concurrent debit that drains
// the account simply makes the filter miss. No retry loop is needed here.
func (s *Store) Debit(ctx context.Context, accountID id.AccountID, cost types.Credits, reason string) (*credit.Entry, error) {
	if !cost.IsPositive() {
		return nil, turnstile.ErrInvalidCost
	}

	t := now()
	filter := bson.M{
		"_id":     accountID.String(),
		"balance": bson.M{"$gte": cost.Int64()},
	}
	update := bson.M{
		"$inc": bson.M{"balance": -cost.Int64(), "version": 1},
		"$set": bson.M{"updated_at": t},
	}

	var updated accountModel
	err := s.mdb.Collection(colAccounts).
		FindOneAndUpdate(ctx, filter, update,
			options.FindOneAndUpdate().SetReturnDocument(options.After)).
		Decode(&updated)
	if err != nil {
		if isNoDocuments(err) {
			// Filter missed: either the account does not exist or the
			// balance cannot cover the cost. Look it up to tell apart.
			if _, getErr := s.GetAccount(ctx, accountID); getErr != nil {
				return nil, getErr
			}
			return nil, turnstile.ErrInsufficientCredits
		}
		return nil, fmt.Errorf("turnstile/mongo: debit: %w", err)
	}

	entry := &credit.Entry{
		Entity:       types.NewEntity(),
		ID:           id.NewEntryID(),
		AccountID:    accountID,
		Delta:        cost.Negate(),
		BalanceAfter: types.Credits(updated.Balance),
		Reason:       reason,
		AppID:        updated.AppID,
		Timestamp:    t,
	}
	if _, err := s.mdb.NewInsert(toEntryModel(entry)).Exec(ctx); err != nil {
		return nil, fmt.Errorf("turnstile/mongo: debit entry: %w", err)
	}
	return entry, nil
}

func (s *Store) Credit(ctx context.Context, accountID id.AccountID, amount types.Credits, reason string) (*credit.Entry, error) {
	if !amount.IsPositive() {
		return nil, turnstile.ErrInvalidInput
	}

	t := now()
	update := bson.M{
		"$inc": bson.M{"balance": amount.Int64(), "version": 1},
		"$set": bson.M{"updated_at": t},
	}

	var updated accountModel
	err := s.mdb.Collection(colAccounts).
		FindOneAndUpdate(ctx, bson.M{"_id": accountID.String()}, update,
			options.FindOneAndUpdate().SetReturnDocument(options.After)).
		Decode(&updated)
	if err != nil {
		if isNoDocuments(err) {
			return nil, turnstile.ErrAccountNotFound
		}
		return nil, fmt.Errorf("turnstile/mongo: credit: %w", err)
	}

	entry := &credit.Entry{
		Entity:       types.NewEntity(),
		ID:           id.NewEntryID(),
		AccountID:    accountID,
		Delta:        amount,
		BalanceAfter: types.Credits(updated.Balance),
		Reason:       reason,
		AppID:        updated.AppID,
		Timestamp:    t,
	}
	if _, err := s.mdb.NewInsert(toEntryModel(entry)).Exec(ctx); err != nil {
		return nil, fmt.Errorf("turnstile/mongo: credit entry: %w", err)
	}
	return entry, nil
}

func (s *Store) ListEntries(ctx context.Context, accountID id.AccountID, opts credit.ListOpts) ([]*credit.Entry, error) {
	var models []entryModel

	filter := bson.M{"account_id": accountID.String()}
	if !opts.Start.IsZero() || !opts.End.IsZero() {
		ts := bson.M{}
		if !opts.Start.IsZero() {
			ts["$gte"] = opts.Start
		}
		if !opts.End.IsZero() {
			ts["$lte"] = opts.End
		}
		filter["timestamp"] = ts
	}

	q := s.mdb.NewFind(&models).
		Filter(filter).
		Sort(bson.D{{Key: "timestamp", Value: -1}})

	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		q = q.Skip(int64(opts.Offset))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("turnstile/mongo: list entries: %w", err)
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
		_, err := s.mdb.NewInsert(m).Exec(ctx)
		if err != nil {
			// Skip duplicates for idempotency
			if mongo.IsDuplicateKeyError(err) {
				continue
			}
			return fmt.Errorf("turnstile/mongo: record event: %w", err)
		}
	}
	return nil
}

func (s *Store) QueryEvents(ctx context.Context, tenantID, appID string, opts access.QueryOpts) ([]*access.Event, error) {
	var models []gateEventModel

	filter := bson.M{"tenant_id": tenantID, "app_id": appID}
	if opts.Feature != "" {
		filter["feature"] = opts.Feature
	}
	if opts.Reason != "" {
		filter["reason"] = string(opts.Reason)
	}
	if !opts.Start.IsZero() || !opts.End.IsZero() {
		ts := bson.M{}
		if !opts.Start.IsZero() {
			ts["$gte"] = opts.Start
		}
		if !opts.End.IsZero() {
			ts["$lte"] = opts.End
		}
		filter["timestamp"] = ts
	}

	q := s.mdb.NewFind(&models).
		Filter(filter).
		Sort(bson.D{{Key: "timestamp", Value: -1}})

	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		q = q.Skip(int64(opts.Offset))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("turnstile/mongo: query events: %w", err)
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
	res, err := s.mdb.NewDelete((*gateEventModel)(nil)).
		Filter(bson.M{"timestamp": bson.M{"$lt": before}}).
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("turnstile/mongo: purge events: %w", err)
	}
	return res.DeletedCount(), nil
}

// ==================== Helpers ====================

// now returns the current UTC time.
func now() time.Time {
	return time.Now().UTC()
}

// isNoDocuments checks if an error wraps mongo.ErrNoDocuments.
func isNoDocuments(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}

// migrationIndexes returns the index definitions for all turnstile collections.
func migrationIndexes() map[string][]mongo.IndexModel {
	return map[string][]mongo.IndexModel{
		colAccounts: {
			{
				Keys:    bson.D{{Key: "tenant_id", Value: 1}, {Key: "app_id", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
		},
		colEntries: {
			{Keys: bson.D{{Key: "account_id", Value: 1}, {Key: "timestamp", Value: -1}}},
			{Keys: bson.D{{Key: "timestamp", Value: -1}}},
		},
		colGateEvents: {
			{Keys: bson.D{{Key: "tenant_id", Value: 1}, {Key: "app_id", Value: 1}, {Key: "feature", Value: 1}, {Key: "timestamp", Value: -1}}},
			{Keys: bson.D{{Key: "timestamp", Value: -1}}},
		},
	}
}
