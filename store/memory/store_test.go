package memory_test

import (
	"context"
	"sync"
	"testing"

	"github.com/xraph/turnstile"
	"github.com/xraph/turnstile/credit"
	"github.com/xraph/turnstile/id"
	"github.com/xraph/turnstile/store/memory"
	"github.com/xraph/turnstile/types"
)

func newAccount(t *testing.T, s *memory.Store, balance types.Credits) id.AccountID {
	t.Helper()

	acct := &credit.Account{
		Entity:   types.NewEntity(),
		ID:       id.NewAccountID(),
		TenantID: "tenant-1",
		AppID:    "app-1",
		Balance:  balance,
	}
	if err := s.CreateAccount(context.Background(), acct); err != nil {
		t.Fatalf("create account: %v", err)
	}
	return acct.ID
}

func TestDebit(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	acctID := newAccount(t, s, 5)

	entry, err := s.Debit(ctx, acctID, 2, "export.pdf")
	if err != nil {
		t.Fatalf("debit: %v", err)
	}
	if entry.Delta != -2 {
		t.Errorf("delta = %v, want -2", entry.Delta)
	}
	if entry.BalanceAfter != 3 {
		t.Errorf("balance after = %v, want 3", entry.BalanceAfter)
	}
	if entry.Reason != "export.pdf" {
		t.Errorf("reason = %q", entry.Reason)
	}

	a, err := s.GetAccount(ctx, acctID)
	if err != nil {
		t.Fatalf("get account: %v", err)
	}
	if a.Balance != 3 {
		t.Errorf("balance = %v, want 3", a.Balance)
	}
}

func TestDebitInsufficient(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	acctID := newAccount(t, s, 1)

	if _, err := s.Debit(ctx, acctID, 2, "export.pdf"); err != turnstile.ErrInsufficientCredits {
		t.Fatalf("err = %v, want ErrInsufficientCredits", err)
	}

	// Deny must not mutate state.
	a, err := s.GetAccount(ctx, acctID)
	if err != nil {
		t.Fatalf("get account: %v", err)
	}
	if a.Balance != 1 {
		t.Errorf("balance = %v, want 1 (unchanged)", a.Balance)
	}
	entries, err := s.ListEntries(ctx, acctID, credit.ListOpts{})
	if err != nil {
		t.Fatalf("list entries: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("expected no ledger entries after deny, got %d", len(entries))
	}
}

func TestDebitUnknownAccount(t *testing.T) {
	s := memory.New()

	if _, err := s.Debit(context.Background(), id.NewAccountID(), 1, "x"); err != turnstile.ErrAccountNotFound {
		t.Fatalf("err = %v, want ErrAccountNotFound", err)
	}
}

func TestLedgerReconciles(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	acctID := newAccount(t, s, 10)

	ops := []struct {
		debit  bool
		amount types.Credits
	}{
		{true, 3}, {false, 5}, {true, 1}, {true, 4}, {false, 2},
	}
	for _, op := range ops {
		var err error
		if op.debit {
			_, err = s.Debit(ctx, acctID, op.amount, "op")
		} else {
			_, err = s.Credit(ctx, acctID, op.amount, "topup")
		}
		if err != nil {
			t.Fatalf("op %+v: %v", op, err)
		}
	}

	entries, err := s.ListEntries(ctx, acctID, credit.ListOpts{})
	if err != nil {
		t.Fatalf("list entries: %v", err)
	}
	if len(entries) != len(ops) {
		t.Fatalf("expected %d entries, got %d", len(ops), len(entries))
	}

	// Running sum of deltas from the opening balance must reconcile with
	// each recorded BalanceAfter. Entries come back newest first.
	running := types.Credits(10)
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		running = running.Add(e.Delta)
		if e.BalanceAfter != running {
			t.Errorf("entry %s: balance_after = %v, want %v", e.ID, e.BalanceAfter, running)
		}
	}

	a, _ := s.GetAccount(ctx, acctID)
	if a.Balance != running {
		t.Errorf("final balance = %v, want %v", a.Balance, running)
	}
}

// TestConcurrentDebitsNeverOverdraw is the no-overdraft property: with
// balance B and uniform cost c, at most floor(B/c) of N concurrent attempts
// may succeed.
func TestConcurrentDebitsNeverOverdraw(t *testing.T) {
	ctx := context.Background()
	s := memory.New()

	const balance = 10
	const cost = 3
	const attempts = 50

	acctID := newAccount(t, s, balance)

	var wg sync.WaitGroup
	successes := make(chan *credit.Entry, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			entry, err := s.Debit(ctx, acctID, cost, "export.pdf")
			if err == nil {
				successes <- entry
			} else if err != turnstile.ErrInsufficientCredits {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()
	close(successes)

	var won int
	for range successes {
		won++
	}
	if want := balance / cost; won != want {
		t.Errorf("%d debits succeeded, want %d", won, want)
	}

	a, err := s.GetAccount(ctx, acctID)
	if err != nil {
		t.Fatalf("get account: %v", err)
	}
	if a.Balance.IsNegative() {
		t.Errorf("balance went negative: %v", a.Balance)
	}
	if a.Balance != balance%cost {
		t.Errorf("final balance = %v, want %d", a.Balance, balance%cost)
	}
}

func TestListEntriesPagination(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	acctID := newAccount(t, s, 100)

	for i := 0; i < 5; i++ {
		if _, err := s.Debit(ctx, acctID, 1, "op"); err != nil {
			t.Fatalf("debit: %v", err)
		}
	}

	page, err := s.ListEntries(ctx, acctID, credit.ListOpts{Limit: 2, Offset: 1})
	if err != nil {
		t.Fatalf("list entries: %v", err)
	}
	if len(page) != 2 {
		t.Errorf("page size = %d, want 2", len(page))
	}
}

func TestClosedStore(t *testing.T) {
	s := memory.New()
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	if err := s.Ping(context.Background()); err != turnstile.ErrStoreClosed {
		t.Errorf("ping after close: %v, want ErrStoreClosed", err)
	}
}
