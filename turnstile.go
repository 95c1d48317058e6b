package turnstile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/xraph/turnstile/access"
	"github.com/xraph/turnstile/credit"
	"github.com/xraph/turnstile/feature"
	"github.com/xraph/turnstile/id"
	"github.com/xraph/turnstile/plugin"
	"github.com/xraph/turnstile/store"
	"github.com/xraph/turnstile/subscription"
	"github.com/xraph/turnstile/types"
)

// Turnstile is the feature-access and credit-metering engine.
type Turnstile struct {
	store    store.Store
	registry *feature.Registry
	plugins  *plugin.Registry
	logger   *slog.Logger

	// Background workers
	journalBuffer chan *access.Event
	stopChan      chan struct{}
	wg            sync.WaitGroup

	// Configuration
	journalBatchSize     int
	journalFlushInterval time.Duration
	debitRetries         int
	unlimited            map[feature.Class]bool
}

// New creates a new Turnstile instance over a store and a feature registry.
//
// The registry is injected rather than global so tests and deployments can
// supply alternate tables. By default an active subscription grants
// unlimited use of AI-class actions; export-class actions always debit.
func New(s store.Store, registry *feature.Registry, opts ...Option) *Turnstile {
	t := &Turnstile{
		store:                s,
		registry:             registry,
		plugins:              plugin.NewRegistry(),
		logger:               slog.Default(),
		journalBuffer:        make(chan *access.Event, 10000),
		stopChan:             make(chan struct{}),
		journalBatchSize:     100,
		journalFlushInterval: 5 * time.Second,
		debitRetries:         3,
		unlimited:            map[feature.Class]bool{feature.ClassAI: true},
	}

	for _, opt := range opts {
		opt(t)
	}

	return t
}

// Option configures a Turnstile instance.
type Option func(*Turnstile)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Turnstile) {
		t.logger = logger
		t.plugins.WithLogger(logger)
	}
}

// WithPlugin registers a plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(t *Turnstile) {
		_ = t.plugins.Register(p) //nolint:errcheck // best-effort plugin registration during init
	}
}

// WithJournalConfig configures decision journal batching.
func WithJournalConfig(batchSize int, flushInterval time.Duration) Option {
	return func(t *Turnstile) {
		t.journalBatchSize = batchSize
		t.journalFlushInterval = flushInterval
	}
}

// WithDebitRetries sets how many times a conflicted debit is retried before
// the guard fails closed.
func WithDebitRetries(n int) Option {
	return func(t *Turnstile) {
		t.debitRetries = n
	}
}

// WithUnlimitedClasses replaces the set of action classes that active
// subscribers may use without consuming credits.
func WithUnlimitedClasses(classes ...feature.Class) Option {
	return func(t *Turnstile) {
		t.unlimited = make(map[feature.Class]bool, len(classes))
		for _, c := range classes {
			t.unlimited[c] = true
		}
	}
}

// Registry returns the injected feature registry.
func (t *Turnstile) Registry() *feature.Registry { return t.registry }

// Start begins background workers.
func (t *Turnstile) Start(ctx context.Context) error {
	// Migrate database
	if err := t.store.Migrate(ctx); err != nil {
		return err
	}

	// Initialize plugins
	t.plugins.EmitInit(ctx, t)

	// Start journal flush worker
	t.wg.Add(1)
	go t.journalFlushWorker(ctx)

	t.logger.Info("turnstile started",
		"features", t.registry.Len(),
		"batch_size", t.journalBatchSize,
		"flush_interval", t.journalFlushInterval,
		"debit_retries", t.debitRetries,
	)

	return nil
}

// Stop shuts down the Turnstile.
func (t *Turnstile) Stop() error {
	close(t.stopChan)
	t.wg.Wait()

	ctx := context.Background()
	t.plugins.EmitShutdown(ctx)

	return t.store.Close()
}

// ──────────────────────────────────────────────────
// Access gate
// ──────────────────────────────────────────────────

// Authorize decides whether the user behind snap may invoke a feature.
//
// The decision itself comes from access.Evaluate, which is pure; Authorize
// wraps it with journaling and plugin emission. A nil snapshot means no
// authenticated user context is present.
func (t *Turnstile) Authorize(ctx context.Context, snap *subscription.Snapshot, featureKey string) *access.Decision {
	d := access.Evaluate(t.registry, snap, featureKey)

	t.journal(ctx, snap, &d)
	t.plugins.EmitAccessChecked(ctx, &d)
	if !d.Allowed {
		t.plugins.EmitAccessDenied(ctx, extractTenantID(ctx), featureKey, string(d.Reason))
	}

	return &d
}

// ──────────────────────────────────────────────────
// Credit guard
// ──────────────────────────────────────────────────

// CheckAndReserve decides whether a metered action may proceed and, on the
// billable path, performs the debit with an audit entry in one unit.
//
// A non-positive cost is a caller bug and returns ErrInvalidCost rather than
// a decision. An active subscription bypasses the debit for unlimited
// classes (AI by default); export-class actions always cost credits.
// Conflicted debits on versioned stores are retried a bounded number of
// times, after which the guard fails closed with a retry_exhausted receipt.
func (t *Turnstile) CheckAndReserve(ctx context.Context, snap *subscription.Snapshot, accountID id.AccountID, action credit.Action) (*credit.Receipt, error) {
	if !action.Cost.IsPositive() {
		return nil, fmt.Errorf("%w: %s costs %s", ErrInvalidCost, action.Key, action.Cost)
	}

	if snap != nil && snap.Active() && t.unlimited[action.Class] {
		t.journalAction(ctx, snap, action.Key, true, access.ReasonOK)
		return &credit.Receipt{
			Allowed:   true,
			Reason:    access.ReasonOK,
			Unlimited: true,
		}, nil
	}

	for attempt := 0; attempt <= t.debitRetries; attempt++ {
		entry, err := t.store.Debit(ctx, accountID, action.Cost, action.Key)
		switch {
		case err == nil:
			t.journalAction(ctx, snap, action.Key, true, access.ReasonOK)
			t.plugins.EmitCreditDebited(ctx, entry)
			return &credit.Receipt{
				Allowed:    true,
				Reason:     access.ReasonOK,
				NewBalance: entry.BalanceAfter,
				Entry:      entry,
			}, nil

		case errors.Is(err, ErrInsufficientCredits):
			t.journalAction(ctx, snap, action.Key, false, access.ReasonInsufficientCredits)
			t.plugins.EmitInsufficientCredits(ctx, accountID.String(), action.Cost.Int64())
			return &credit.Receipt{
				Allowed: false,
				Reason:  access.ReasonInsufficientCredits,
			}, nil

		case errors.Is(err, ErrDebitConflict):
			// Stale read lost the race; re-run the check-and-write as
			// one unit instead of trusting the old balance.
			continue

		default:
			return nil, err
		}
	}

	t.journalAction(ctx, snap, action.Key, false, access.ReasonRetryExhausted)
	t.plugins.EmitRetryExhausted(ctx, accountID.String(), t.debitRetries+1)
	t.logger.Warn("debit retries exhausted",
		"account_id", accountID.String(),
		"action", action.Key,
		"attempts", t.debitRetries+1,
	)

	return &credit.Receipt{
		Allowed: false,
		Reason:  access.ReasonRetryExhausted,
	}, nil
}

// ──────────────────────────────────────────────────
// Account management
// ──────────────────────────────────────────────────

// OpenAccount creates a credit account.
func (t *Turnstile) OpenAccount(ctx context.Context, a *credit.Account) error {
	if a.ID.IsNil() {
		a.ID = id.NewAccountID()
	}
	if a.Balance.IsNegative() {
		return fmt.Errorf("%w: opening balance %s", ErrInvalidInput, a.Balance)
	}
	a.Entity = types.NewEntity()

	if err := t.store.CreateAccount(ctx, a); err != nil {
		return err
	}

	t.plugins.EmitAccountOpened(ctx, a)
	return nil
}

// Grant adds credits to an account (top-ups from the payment collaborator).
func (t *Turnstile) Grant(ctx context.Context, accountID id.AccountID, amount types.Credits, reason string) (*credit.Entry, error) {
	if !amount.IsPositive() {
		return nil, fmt.Errorf("%w: grant amount %s", ErrInvalidInput, amount)
	}

	entry, err := t.store.Credit(ctx, accountID, amount, reason)
	if err != nil {
		return nil, err
	}

	t.plugins.EmitCreditGranted(ctx, entry)
	return entry, nil
}

// Balance returns the current credit balance for an account.
func (t *Turnstile) Balance(ctx context.Context, accountID id.AccountID) (types.Credits, error) {
	a, err := t.store.GetAccount(ctx, accountID)
	if err != nil {
		return 0, err
	}
	return a.Balance, nil
}

// History returns ledger entries for an account, newest first.
func (t *Turnstile) History(ctx context.Context, accountID id.AccountID, opts credit.ListOpts) ([]*credit.Entry, error) {
	return t.store.ListEntries(ctx, accountID, opts)
}

// ──────────────────────────────────────────────────
// Decision journal
// ──────────────────────────────────────────────────

// Events queries the decision journal for the current tenant and app.
func (t *Turnstile) Events(ctx context.Context, opts access.QueryOpts) ([]*access.Event, error) {
	tenantID := extractTenantID(ctx)
	appID := extractAppID(ctx)

	if tenantID == "" || appID == "" {
		return nil, ErrInvalidInput
	}

	return t.store.QueryEvents(ctx, tenantID, appID, opts)
}

func (t *Turnstile) journal(ctx context.Context, snap *subscription.Snapshot, d *access.Decision) {
	event := &access.Event{
		ID:        id.NewGateEventID(),
		TenantID:  extractTenantID(ctx),
		AppID:     extractAppID(ctx),
		Feature:   d.Feature,
		Allowed:   d.Allowed,
		Reason:    d.Reason,
		Timestamp: time.Now().UTC(),
	}
	if snap != nil {
		event.Tier = snap.Tier
	}
	t.enqueue(event)
}

func (t *Turnstile) journalAction(ctx context.Context, snap *subscription.Snapshot, actionKey string, allowed bool, reason access.Reason) {
	event := &access.Event{
		ID:        id.NewGateEventID(),
		TenantID:  extractTenantID(ctx),
		AppID:     extractAppID(ctx),
		Feature:   actionKey,
		Allowed:   allowed,
		Reason:    reason,
		Timestamp: time.Now().UTC(),
	}
	if snap != nil {
		event.Tier = snap.Tier
	}
	t.enqueue(event)
}

func (t *Turnstile) enqueue(event *access.Event) {
	select {
	case t.journalBuffer <- event:
	default:
		// The journal is observability, not the audit trail; dropping
		// under pressure must not fail the request.
		t.logger.Debug("journal buffer full, dropping event",
			"feature", event.Feature,
			"reason", event.Reason,
		)
	}
}

// journalFlushWorker flushes decision events to the store.
func (t *Turnstile) journalFlushWorker(ctx context.Context) {
	defer t.wg.Done()

	batch := make([]*access.Event, 0, t.journalBatchSize)
	ticker := time.NewTicker(t.journalFlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-t.stopChan:
			// Final flush
			if len(batch) > 0 {
				t.flushJournalBatch(ctx, batch)
			}
			return

		case event := <-t.journalBuffer:
			batch = append(batch, event)
			if len(batch) >= t.journalBatchSize {
				t.flushJournalBatch(ctx, batch)
				batch = make([]*access.Event, 0, t.journalBatchSize)
			}

		case <-ticker.C:
			if len(batch) > 0 {
				t.flushJournalBatch(ctx, batch)
				batch = make([]*access.Event, 0, t.journalBatchSize)
			}
		}
	}
}

func (t *Turnstile) flushJournalBatch(ctx context.Context, batch []*access.Event) {
	start := time.Now()

	if err := t.store.RecordEvents(ctx, batch); err != nil {
		t.logger.Error("failed to flush journal batch",
			"error", err,
			"batch_size", len(batch),
		)
		return
	}

	elapsed := time.Since(start)
	t.plugins.EmitJournalFlushed(ctx, len(batch), elapsed)

	t.logger.Debug("flushed journal batch",
		"batch_size", len(batch),
		"elapsed_ms", elapsed.Milliseconds(),
	)
}

// ──────────────────────────────────────────────────
// Helpers
// ──────────────────────────────────────────────────

func extractTenantID(ctx context.Context) string {
	// Would extract from context (e.g., from Forge scope)
	// For now, check context value
	if v := ctx.Value("tenant_id"); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func extractAppID(ctx context.Context) string {
	// Would extract from context (e.g., from Forge scope)
	// For now, check context value
	if v := ctx.Value("app_id"); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
