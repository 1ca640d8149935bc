package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// EntryKind classifies a ledger movement.
type EntryKind string

const (
	KindTopup       EntryKind = "topup"
	KindPurchase    EntryKind = "purchase"
	KindAdminCredit EntryKind = "admin_credit"
	KindAdminDebit  EntryKind = "admin_debit"
)

// EntryStatus is the lifecycle state of a ledger entry. Terminal states
// are absorbing: an entry never transitions again after reaching one.
type EntryStatus string

const (
	StatusPending   EntryStatus = "pending"
	StatusCompleted EntryStatus = "completed"
	StatusExpired   EntryStatus = "expired"
	StatusFailed    EntryStatus = "failed"
)

func (s EntryStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusExpired || s == StatusFailed
}

// LedgerEntry is the durable record of one financial movement.
type LedgerEntry struct {
	ID          string          `json:"id"`
	OwnerID     int64           `json:"owner_id"`
	Kind        EntryKind       `json:"kind"`
	Amount      decimal.Decimal `json:"amount"`
	Status      EntryStatus     `json:"status"`
	PaymentHash string          `json:"payment_hash,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
}

// NewTopupEntry builds a pending top-up entry keyed by the gateway hash.
func NewTopupEntry(ownerID int64, amount decimal.Decimal, paymentHash string) LedgerEntry {
	return LedgerEntry{
		ID:          uuid.NewString(),
		OwnerID:     ownerID,
		Kind:        KindTopup,
		Amount:      amount,
		Status:      StatusPending,
		PaymentHash: paymentHash,
		CreatedAt:   time.Now().UTC(),
	}
}

// ArtifactRef locates a delivered QR artifact so it can be deleted later.
// MessageID zero means no artifact was delivered.
type ArtifactRef struct {
	ChatID    int64
	MessageID int
}

// PaymentRequest is the in-memory state of one pending top-up. It lives
// only for the payment window; the ledger row is the durable record.
type PaymentRequest struct {
	OwnerID     int64
	Amount      decimal.Decimal
	PaymentHash string
	GatewayTxID string
	Artifact    ArtifactRef
	CreatedAt   time.Time
}
