package recon

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/YaeIsTired/Bot-TG/internal/gateway"
	"github.com/YaeIsTired/Bot-TG/internal/models"
	"github.com/YaeIsTired/Bot-TG/internal/settings"
)

// Gateway defines what the engine needs from the payment rail.
type Gateway interface {
	CreatePayment(ctx context.Context, amount decimal.Decimal, s settings.Settings) (*gateway.CreateResult, error)
	CheckStatus(ctx context.Context, paymentHash string, s settings.Settings) (bool, error)
}

// Ledger defines the durable side of settlement and expiry.
type Ledger interface {
	RecordPending(ctx context.Context, e models.LedgerEntry) error
	Settle(ctx context.Context, ownerID int64, paymentHash string, amount decimal.Decimal) error
	MarkExpired(ctx context.Context, paymentHash string) error
}

// Sink delivers user-facing messages and artifacts. Failures here are
// logged and swallowed; they never roll back a recorded settlement.
type Sink interface {
	DeliverArtifact(ctx context.Context, ownerID int64, png []byte, caption string) (models.ArtifactRef, error)
	DeleteArtifact(ctx context.Context, ref models.ArtifactRef) error
	SendText(ctx context.Context, ownerID int64, text string) error
}

// SettingsSource yields the current merchant settings; consulted on
// every StartTopup so external edits apply without a restart.
type SettingsSource interface {
	Current() settings.Settings
}
