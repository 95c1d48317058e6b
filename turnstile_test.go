package turnstile_test

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/xraph/turnstile"
	"github.com/xraph/turnstile/access"
	"github.com/xraph/turnstile/credit"
	"github.com/xraph/turnstile/feature"
	"github.com/xraph/turnstile/id"
	"github.com/xraph/turnstile/store"
	"github.com/xraph/turnstile/store/memory"
	"github.com/xraph/turnstile/subscription"
	"github.com/xraph/turnstile/types"
)

func newEngine(t *testing.T, opts ...turnstile.Option) *turnstile.Turnstile {
	t.Helper()

	base := []turnstile.Option{
		turnstile.WithLogger(slog.Default()),
		turnstile.WithJournalConfig(10, 50*time.Millisecond),
	}
	eng := turnstile.New(memory.New(), feature.Default(), append(base, opts...)...)

	if err := eng.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := eng.Stop(); err != nil {
			t.Errorf("Stop() = %v", err)
		}
	})
	return eng
}

func openAccount(t *testing.T, eng *turnstile.Turnstile, balance types.Credits) id.AccountID {
	t.Helper()

	a := &credit.Account{
		TenantID: "tenant_123",
		AppID:    "app_456",
		Balance:  balance,
	}
	if err := eng.OpenAccount(context.Background(), a); err != nil {
		t.Fatal(err)
	}
	return a.ID
}

// TestQuickStart walks the README flow end to end on the memory store.
func TestQuickStart(t *testing.T) {
	eng := newEngine(t)
	ctx := context.Background()

	accountID := openAccount(t, eng, 10)

	snap := subscription.NewSnapshot("pro", "active")

	d := eng.Authorize(ctx, &snap, "ai.job_match")
	if !d.Allowed {
		t.Fatalf("Authorize(pro, ai.job_match) denied: %s", d.Reason)
	}

	receipt, err := eng.CheckAndReserve(ctx, &snap, accountID, credit.Action{
		Key:   "export.pdf",
		Class: feature.ClassExport,
		Cost:  2,
	})
	if err != nil {
		t.Fatal(err)
	}
	if !receipt.Allowed {
		t.Fatalf("CheckAndReserve denied: %s", receipt.Reason)
	}
	if receipt.NewBalance != 8 {
		t.Errorf("NewBalance = %d, want 8", receipt.NewBalance)
	}

	balance, err := eng.Balance(ctx, accountID)
	if err != nil {
		t.Fatal(err)
	}
	if balance != 8 {
		t.Errorf("Balance = %d, want 8", balance)
	}
}

func TestCheckAndReserveInvalidCost(t *testing.T) {
	eng := newEngine(t)
	ctx := context.Background()
	accountID := openAccount(t, eng, 10)
	snap := subscription.NewSnapshot("pro", "active")

	for _, cost := range []types.Credits{0, -5} {
		_, err := eng.CheckAndReserve(ctx, &snap, accountID, credit.Action{
			Key:   "export.pdf",
			Class: feature.ClassExport,
			Cost:  cost,
		})
		if !errors.Is(err, turnstile.ErrInvalidCost) {
			t.Errorf("cost %d: err = %v, want ErrInvalidCost", cost, err)
		}
	}

	// Nothing was debited by the rejected calls.
	balance, err := eng.Balance(ctx, accountID)
	if err != nil {
		t.Fatal(err)
	}
	if balance != 10 {
		t.Errorf("Balance = %d, want 10", balance)
	}
}

// TestSubscriptionBypass checks the class asymmetry: active subscribers run
// AI actions without spending credits, but exports always debit.
func TestSubscriptionBypass(t *testing.T) {
	eng := newEngine(t)
	ctx := context.Background()
	accountID := openAccount(t, eng, 10)

	active := subscription.NewSnapshot("pro", "active")
	expired := subscription.NewSnapshot("pro", "expired")

	t.Run("ActiveSubscriberAIIsUnlimited", func(t *testing.T) {
		receipt, err := eng.CheckAndReserve(ctx, &active, accountID, credit.Action{
			Key:   "ai.resume_review",
			Class: feature.ClassAI,
			Cost:  5,
		})
		if err != nil {
			t.Fatal(err)
		}
		if !receipt.Allowed || !receipt.Unlimited {
			t.Fatalf("receipt = %+v, want allowed unlimited", receipt)
		}
		if receipt.Entry != nil {
			t.Error("unlimited receipt carries a ledger entry")
		}

		balance, err := eng.Balance(ctx, accountID)
		if err != nil {
			t.Fatal(err)
		}
		if balance != 10 {
			t.Errorf("Balance = %d, want 10 (no debit)", balance)
		}
	})

	t.Run("ActiveSubscriberExportStillDebits", func(t *testing.T) {
		receipt, err := eng.CheckAndReserve(ctx, &active, accountID, credit.Action{
			Key:   "export.docx",
			Class: feature.ClassExport,
			Cost:  3,
		})
		if err != nil {
			t.Fatal(err)
		}
		if !receipt.Allowed || receipt.Unlimited {
			t.Fatalf("receipt = %+v, want allowed billable", receipt)
		}
		if receipt.NewBalance != 7 {
			t.Errorf("NewBalance = %d, want 7", receipt.NewBalance)
		}
		if receipt.Entry == nil || receipt.Entry.Reason != "export.docx" {
			t.Errorf("Entry = %+v, want reason export.docx", receipt.Entry)
		}
	})

	t.Run("ExpiredSubscriberAIDebits", func(t *testing.T) {
		receipt, err := eng.CheckAndReserve(ctx, &expired, accountID, credit.Action{
			Key:   "ai.resume_review",
			Class: feature.ClassAI,
			Cost:  5,
		})
		if err != nil {
			t.Fatal(err)
		}
		if !receipt.Allowed || receipt.Unlimited {
			t.Fatalf("receipt = %+v, want allowed billable", receipt)
		}
		if receipt.NewBalance != 2 {
			t.Errorf("NewBalance = %d, want 2", receipt.NewBalance)
		}
	})
}

func TestCheckAndReserveInsufficientCredits(t *testing.T) {
	eng := newEngine(t)
	ctx := context.Background()
	accountID := openAccount(t, eng, 1)
	snap := subscription.NewSnapshot("free", "none")

	receipt, err := eng.CheckAndReserve(ctx, &snap, accountID, credit.Action{
		Key:   "export.pdf",
		Class: feature.ClassExport,
		Cost:  2,
	})
	if err != nil {
		t.Fatal(err)
	}
	if receipt.Allowed {
		t.Fatal("allowed a debit exceeding the balance")
	}
	if receipt.Reason != access.ReasonInsufficientCredits {
		t.Errorf("Reason = %s, want %s", receipt.Reason, access.ReasonInsufficientCredits)
	}

	// Denial is a value: the balance is untouched and no entry was written.
	balance, err := eng.Balance(ctx, accountID)
	if err != nil {
		t.Fatal(err)
	}
	if balance != 1 {
		t.Errorf("Balance = %d, want 1", balance)
	}
	entries, err := eng.History(ctx, accountID, credit.ListOpts{})
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("History has %d entries, want 0", len(entries))
	}
}

// TestConcurrentReserveLastCredit races two reservations for a single
// remaining credit. Exactly one may win.
func TestConcurrentReserveLastCredit(t *testing.T) {
	eng := newEngine(t)
	ctx := context.Background()
	accountID := openAccount(t, eng, 1)
	snap := subscription.NewSnapshot("free", "none")

	action := credit.Action{Key: "ai.resume_score", Class: feature.ClassAI, Cost: 1}

	var wg sync.WaitGroup
	receipts := make([]*credit.Receipt, 2)
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			receipts[i], errs[i] = eng.CheckAndReserve(ctx, &snap, accountID, action)
		}(i)
	}
	wg.Wait()

	allowed := 0
	for i := 0; i < 2; i++ {
		if errs[i] != nil {
			t.Fatalf("request %d: %v", i, errs[i])
		}
		if receipts[i].Allowed {
			allowed++
		} else if receipts[i].Reason != access.ReasonInsufficientCredits {
			t.Errorf("loser reason = %s, want %s", receipts[i].Reason, access.ReasonInsufficientCredits)
		}
	}
	if allowed != 1 {
		t.Fatalf("%d requests allowed, want exactly 1", allowed)
	}

	balance, err := eng.Balance(ctx, accountID)
	if err != nil {
		t.Fatal(err)
	}
	if balance != 0 {
		t.Errorf("Balance = %d, want 0", balance)
	}
}

// conflictStore wraps a real store but makes every debit lose its race, the
// way a versioned SQL backend behaves under a pathological write storm.
type conflictStore struct {
	store.Store
	attempts int
}

func (s *conflictStore) Debit(context.Context, id.AccountID, types.Credits, string) (*credit.Entry, error) {
	s.attempts++
	return nil, turnstile.ErrDebitConflict
}

func TestCheckAndReserveRetryExhausted(t *testing.T) {
	cs := &conflictStore{Store: memory.New()}
	eng := turnstile.New(cs, feature.Default(), turnstile.WithDebitRetries(2))

	ctx := context.Background()
	a := &credit.Account{TenantID: "tenant_123", AppID: "app_456", Balance: 100}
	if err := eng.OpenAccount(ctx, a); err != nil {
		t.Fatal(err)
	}

	snap := subscription.NewSnapshot("free", "none")
	receipt, err := eng.CheckAndReserve(ctx, &snap, a.ID, credit.Action{
		Key:   "export.pdf",
		Class: feature.ClassExport,
		Cost:  1,
	})
	if err != nil {
		t.Fatal(err)
	}
	if receipt.Allowed {
		t.Fatal("allowed despite exhausted retries")
	}
	if receipt.Reason != access.ReasonRetryExhausted {
		t.Errorf("Reason = %s, want %s", receipt.Reason, access.ReasonRetryExhausted)
	}
	if cs.attempts != 3 {
		t.Errorf("attempts = %d, want 3 (1 initial + 2 retries)", cs.attempts)
	}
}

func TestGrantAndHistory(t *testing.T) {
	eng := newEngine(t)
	ctx := context.Background()
	accountID := openAccount(t, eng, 5)

	if _, err := eng.Grant(ctx, accountID, 0, "topup"); !errors.Is(err, turnstile.ErrInvalidInput) {
		t.Errorf("Grant(0) err = %v, want ErrInvalidInput", err)
	}

	entry, err := eng.Grant(ctx, accountID, 20, "purchase.starter_pack")
	if err != nil {
		t.Fatal(err)
	}
	if entry.Delta != 20 || entry.BalanceAfter != 25 {
		t.Errorf("entry = delta %d after %d, want 20/25", entry.Delta, entry.BalanceAfter)
	}

	snap := subscription.NewSnapshot("free", "none")
	if _, err := eng.CheckAndReserve(ctx, &snap, accountID, credit.Action{
		Key: "export.pdf", Class: feature.ClassExport, Cost: 5,
	}); err != nil {
		t.Fatal(err)
	}

	entries, err := eng.History(ctx, accountID, credit.ListOpts{})
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Fatalf("History has %d entries, want 2", len(entries))
	}
	// Newest first: the debit, then the grant.
	if entries[0].Delta != -5 || entries[1].Delta != 20 {
		t.Errorf("deltas = %d, %d, want -5, 20", entries[0].Delta, entries[1].Delta)
	}
}

func TestAuthorizeDenials(t *testing.T) {
	eng := newEngine(t)
	ctx := context.Background()

	basic := subscription.NewSnapshot("basic", "active")
	cancelled := subscription.NewSnapshot("pro", "cancelled")

	tests := []struct {
		name    string
		snap    *subscription.Snapshot
		feature string
		allowed bool
		reason  access.Reason
	}{
		{"NilSnapshot", nil, "ai.resume_review", false, access.ReasonUnauthenticated},
		{"CancelledSubscription", &cancelled, "ai.job_match", false, access.ReasonSubscriptionInactive},
		{"TierTooLow", &basic, "ai.bulk_screening", false, access.ReasonTierInsufficient},
		{"TierSufficient", &basic, "ai.cover_letter", true, access.ReasonOK},
		{"UnconfiguredFeatureAllowed", &basic, "ai.brand_new", true, access.ReasonOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := eng.Authorize(ctx, tt.snap, tt.feature)
			if d.Allowed != tt.allowed {
				t.Errorf("Allowed = %v, want %v", d.Allowed, tt.allowed)
			}
			if d.Reason != tt.reason {
				t.Errorf("Reason = %s, want %s", d.Reason, tt.reason)
			}
		})
	}
}

// collectorPlugin records hook emissions for assertions.
type collectorPlugin struct {
	mu          sync.Mutex
	checked     int
	denied      []string
	debited     int
	granted     int
	short       int
	exhausted   int
	initialized bool
}

func (p *collectorPlugin) Name() string { return "collector" }

func (p *collectorPlugin) OnInit(context.Context, interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.initialized = true
	return nil
}

func (p *collectorPlugin) OnAccessChecked(context.Context, interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.checked++
	return nil
}

func (p *collectorPlugin) OnAccessDenied(_ context.Context, _, featureKey, _ string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.denied = append(p.denied, featureKey)
	return nil
}

func (p *collectorPlugin) OnCreditDebited(context.Context, interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.debited++
	return nil
}

func (p *collectorPlugin) OnCreditGranted(context.Context, interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.granted++
	return nil
}

func (p *collectorPlugin) OnInsufficientCredits(context.Context, string, int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.short++
	return nil
}

func (p *collectorPlugin) OnRetryExhausted(context.Context, string, int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.exhausted++
	return nil
}

func TestPluginEmissions(t *testing.T) {
	collector := &collectorPlugin{}
	eng := newEngine(t, turnstile.WithPlugin(collector))
	ctx := context.Background()
	accountID := openAccount(t, eng, 3)

	basic := subscription.NewSnapshot("basic", "active")

	eng.Authorize(ctx, &basic, "ai.cover_letter")    // allowed
	eng.Authorize(ctx, &basic, "ai.bulk_screening")  // denied: tier
	if _, err := eng.Grant(ctx, accountID, 2, "topup"); err != nil {
		t.Fatal(err)
	}
	if _, err := eng.CheckAndReserve(ctx, &basic, accountID, credit.Action{
		Key: "export.pdf", Class: feature.ClassExport, Cost: 4,
	}); err != nil {
		t.Fatal(err)
	}
	if _, err := eng.CheckAndReserve(ctx, &basic, accountID, credit.Action{
		Key: "export.pdf", Class: feature.ClassExport, Cost: 100,
	}); err != nil {
		t.Fatal(err)
	}

	collector.mu.Lock()
	defer collector.mu.Unlock()
	if !collector.initialized {
		t.Error("OnInit never fired")
	}
	if collector.checked != 2 {
		t.Errorf("checked = %d, want 2", collector.checked)
	}
	if len(collector.denied) != 1 || collector.denied[0] != "ai.bulk_screening" {
		t.Errorf("denied = %v, want [ai.bulk_screening]", collector.denied)
	}
	if collector.debited != 1 {
		t.Errorf("debited = %d, want 1", collector.debited)
	}
	if collector.granted != 1 {
		t.Errorf("granted = %d, want 1", collector.granted)
	}
	if collector.short != 1 {
		t.Errorf("insufficient = %d, want 1", collector.short)
	}
}

func TestEventsJournal(t *testing.T) {
	eng := newEngine(t)

	ctx := context.WithValue(context.Background(), "tenant_id", "tenant_123") //nolint:staticcheck // matches scope extraction
	ctx = context.WithValue(ctx, "app_id", "app_456")                         //nolint:staticcheck

	snap := subscription.NewSnapshot("basic", "active")
	eng.Authorize(ctx, &snap, "ai.cover_letter")
	eng.Authorize(ctx, &snap, "ai.bulk_screening")

	// The journal flushes asynchronously; poll until the batch lands.
	deadline := time.After(2 * time.Second)
	for {
		events, err := eng.Events(ctx, access.QueryOpts{})
		if err != nil {
			t.Fatal(err)
		}
		if len(events) == 2 {
			denied, err := eng.Events(ctx, access.QueryOpts{Reason: access.ReasonTierInsufficient})
			if err != nil {
				t.Fatal(err)
			}
			if len(denied) != 1 || denied[0].Feature != "ai.bulk_screening" {
				t.Fatalf("denied events = %+v, want one for ai.bulk_screening", denied)
			}
			return
		}
		select {
		case <-deadline:
			t.Fatalf("journal never flushed, have %d events", len(events))
		case <-time.After(20 * time.Millisecond):
		}
	}
}

func TestEventsRequiresScope(t *testing.T) {
	eng := newEngine(t)

	if _, err := eng.Events(context.Background(), access.QueryOpts{}); !errors.Is(err, turnstile.ErrInvalidInput) {
		t.Errorf("Events without scope err = %v, want ErrInvalidInput", err)
	}
}

func TestOpenAccountRejectsNegativeBalance(t *testing.T) {
	eng := newEngine(t)

	err := eng.OpenAccount(context.Background(), &credit.Account{
		TenantID: "tenant_123",
		AppID:    "app_456",
		Balance:  -1,
	})
	if !errors.Is(err, turnstile.ErrInvalidInput) {
		t.Errorf("err = %v, want ErrInvalidInput", err)
	}
}
