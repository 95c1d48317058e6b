package mongo

import (
	"time"

	"github.com/xraph/grove"

	"github.com/xraph/turnstile/access"
	"github.com/xraph/turnstile/credit"
	"github.com/xraph/turnstile/id"
	"github.com/xraph/turnstile/tier"
	"github.com/xraph/turnstile/types"
)

// ==================== Account models ====================

type accountModel struct {
	grove.BaseModel `grove:"table:turnstile_accounts"`

	ID        string    `grove:"id,pk"      bson:"_id"`
	TenantID  string    `grove:"tenant_id"  bson:"tenant_id"`
	AppID     string    `grove:"app_id"     bson:"app_id"`
	Balance   int64     `grove:"balance"    bson:"balance"`
	Version   int64     `grove:"version"    bson:"version"`
	CreatedAt time.Time `grove:"created_at" bson:"created_at"`
	UpdatedAt time.Time `grove:"updated_at" bson:"updated_at"`
}

func toAccountModel(a *credit.Account) *accountModel {
	return &accountModel{
		ID:        a.ID.String(),
		TenantID:  a.TenantID,
		AppID:     a.AppID,
		Balance:   a.Balance.Int64(),
		Version:   a.Version,
		CreatedAt: a.CreatedAt,
		UpdatedAt: a.UpdatedAt,
	}
}

func fromAccountModel(m *accountModel) (*credit.Account, error) {
	accountID, err := id.ParseAccountID(m.ID)
	if err != nil {
		return nil, err
	}
	return &credit.Account{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:       accountID,
		TenantID: m.TenantID,
		AppID:    m.AppID,
		Balance:  types.Credits(m.Balance),
		Version:  m.Version,
	}, nil
}

// ==================== Ledger entry models ====================

type entryModel struct {
	grove.BaseModel `grove:"table:turnstile_entries"`

	ID           string    `grove:"id,pk"         bson:"_id"`
	AccountID    string    `grove:"account_id"    bson:"account_id"`
	Delta        int64     `grove:"delta"         bson:"delta"`
	BalanceAfter int64     `grove:"balance_after" bson:"balance_after"`
	Reason       string    `grove:"reason"        bson:"reason"`
	AppID        string    `grove:"app_id"        bson:"app_id"`
	Timestamp    time.Time `grove:"timestamp"     bson:"timestamp"`
	CreatedAt    time.Time `grove:"created_at"    bson:"created_at"`
	UpdatedAt    time.Time `grove:"updated_at"    bson:"updated_at"`
}

func toEntryModel(e *credit.Entry) *entryModel {
	return &entryModel{
		ID:           e.ID.String(),
		AccountID:    e.AccountID.String(),
		Delta:        e.Delta.Int64(),
		BalanceAfter: e.BalanceAfter.Int64(),
		Reason:       e.Reason,
		AppID:        e.AppID,
		Timestamp:    e.Timestamp,
		CreatedAt:    e.CreatedAt,
		UpdatedAt:    e.UpdatedAt,
	}
}

func fromEntryModel(m *entryModel) (*credit.Entry, error) {
	entryID, err := id.ParseEntryID(m.ID)
	if err != nil {
		return nil, err
	}
	accountID, err := id.ParseAccountID(m.AccountID)
	if err != nil {
		return nil, err
	}
	return &credit.Entry{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:           entryID,
		AccountID:    accountID,
		Delta:        types.Credits(m.Delta),
		BalanceAfter: types.Credits(m.BalanceAfter),
		Reason:       m.Reason,
		AppID:        m.AppID,
		Timestamp:    m.Timestamp,
	}, nil
}

// ==================== Gate event models ====================

type gateEventModel struct {
	grove.BaseModel `grove:"table:turnstile_gate_events"`

	ID        string    `grove:"id,pk"      bson:"_id"`
	TenantID  string    `grove:"tenant_id"  bson:"tenant_id"`
	AppID     string    `grove:"app_id"     bson:"app_id"`
	Feature   string    `grove:"feature"    bson:"feature"`
	Allowed   bool      `grove:"allowed"    bson:"allowed"`
	Reason    string    `grove:"reason"     bson:"reason"`
	Tier      string    `grove:"tier"       bson:"tier"`
	Timestamp time.Time `grove:"timestamp"  bson:"timestamp"`
}

func toGateEventModel(e *access.Event) *gateEventModel {
	return &gateEventModel{
		ID:        e.ID.String(),
		TenantID:  e.TenantID,
		AppID:     e.AppID,
		Feature:   e.Feature,
		Allowed:   e.Allowed,
		Reason:    string(e.Reason),
		Tier:      e.Tier.String(),
		Timestamp: e.Timestamp,
	}
}

func fromGateEventModel(m *gateEventModel) (*access.Event, error) {
	eventID, err := id.ParseGateEventID(m.ID)
	if err != nil {
		return nil, err
	}
	return &access.Event{
		ID:        eventID,
		TenantID:  m.TenantID,
		AppID:     m.AppID,
		Feature:   m.Feature,
		Allowed:   m.Allowed,
		Reason:    access.Reason(m.Reason),
		Tier:      tier.Tier(m.Tier),
		Timestamp: m.Timestamp,
	}, nil
}
