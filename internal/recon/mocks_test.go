package recon

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"

	"github.com/YaeIsTired/Bot-TG/internal/gateway"
	"github.com/YaeIsTired/Bot-TG/internal/models"
	"github.com/YaeIsTired/Bot-TG/internal/settings"
)

type GatewayMock struct {
	mock.Mock
	Gateway
}

func (m *GatewayMock) CreatePayment(ctx context.Context, amount decimal.Decimal, s settings.Settings) (*gateway.CreateResult, error) {
	args := m.Called(ctx, amount, s)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.CreateResult), args.Error(1)
}

func (m *GatewayMock) CheckStatus(ctx context.Context, paymentHash string, s settings.Settings) (bool, error) {
	args := m.Called(ctx, paymentHash, s)
	return args.Bool(0), args.Error(1)
}

type LedgerMock struct {
	mock.Mock
	Ledger
}

func (m *LedgerMock) RecordPending(ctx context.Context, e models.LedgerEntry) error {
	args := m.Called(ctx, e)
	return args.Error(0)
}

func (m *LedgerMock) Settle(ctx context.Context, ownerID int64, paymentHash string, amount decimal.Decimal) error {
	args := m.Called(ctx, ownerID, paymentHash, amount)
	return args.Error(0)
}

func (m *LedgerMock) MarkExpired(ctx context.Context, paymentHash string) error {
	args := m.Called(ctx, paymentHash)
	return args.Error(0)
}

type SinkMock struct {
	mock.Mock
	Sink
}

func (m *SinkMock) DeliverArtifact(ctx context.Context, ownerID int64, png []byte, caption string) (models.ArtifactRef, error) {
	args := m.Called(ctx, ownerID, png, caption)
	return args.Get(0).(models.ArtifactRef), args.Error(1)
}

func (m *SinkMock) DeleteArtifact(ctx context.Context, ref models.ArtifactRef) error {
	args := m.Called(ctx, ref)
	return args.Error(0)
}

func (m *SinkMock) SendText(ctx context.Context, ownerID int64, text string) error {
	args := m.Called(ctx, ownerID, text)
	return args.Error(0)
}
