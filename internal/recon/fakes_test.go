package recon

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/YaeIsTired/Bot-TG/internal/gateway"
	"github.com/YaeIsTired/Bot-TG/internal/models"
	"github.com/YaeIsTired/Bot-TG/internal/qr"
	"github.com/YaeIsTired/Bot-TG/internal/settings"
)

// Concurrency-safe fakes for the loop/timer tests, where testify mocks
// would race on expectation setup.

type staticSettings struct {
	s settings.Settings
}

func (st staticSettings) Current() settings.Settings { return st.s }

func testSettings() settings.Settings {
	return settings.Settings{
		MerchantID:   "dev-merchant",
		MerchantName: "Dev Store",
		BearerToken:  "secret",
		MinTopup:     decimal.NewFromInt(1),
		MaxTopup:     decimal.NewFromInt(500),
	}
}

type fakeGateway struct {
	mu        sync.Mutex
	created   int
	createErr error
	paidAfter int // checks that report unpaid before the first paid
	checkErr  error
	checks    map[string]int
}

func newFakeGateway(paidAfter int) *fakeGateway {
	return &fakeGateway{paidAfter: paidAfter, checks: make(map[string]int)}
}

func (g *fakeGateway) CreatePayment(_ context.Context, _ decimal.Decimal, _ settings.Settings) (*gateway.CreateResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.createErr != nil {
		return nil, g.createErr
	}
	g.created++
	hash := fmt.Sprintf("H%d", g.created)
	return &gateway.CreateResult{
		Artifact:      qr.Payload("khqr-payload-" + hash),
		PaymentHash:   hash,
		TransactionID: "tx-" + hash,
	}, nil
}

func (g *fakeGateway) CheckStatus(_ context.Context, paymentHash string, _ settings.Settings) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.checkErr != nil {
		return false, g.checkErr
	}
	g.checks[paymentHash]++
	return g.checks[paymentHash] > g.paidAfter, nil
}

func (g *fakeGateway) checkCount(paymentHash string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.checks[paymentHash]
}

type fakeLedger struct {
	mu             sync.Mutex
	pending        []models.LedgerEntry
	settles        map[string]int
	settleAttempts int
	settleErr      error
	expires        map[string]int
	balances       map[int64]decimal.Decimal
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{
		settles:  make(map[string]int),
		expires:  make(map[string]int),
		balances: make(map[int64]decimal.Decimal),
	}
}

func (l *fakeLedger) RecordPending(_ context.Context, e models.LedgerEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.pending = append(l.pending, e)
	return nil
}

func (l *fakeLedger) Settle(_ context.Context, ownerID int64, paymentHash string, amount decimal.Decimal) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.settleAttempts++
	if l.settleErr != nil {
		return l.settleErr
	}
	l.settles[paymentHash]++
	l.balances[ownerID] = l.balances[ownerID].Add(amount)
	return nil
}

func (l *fakeLedger) MarkExpired(_ context.Context, paymentHash string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.expires[paymentHash]++
	return nil
}

func (l *fakeLedger) pendingCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.pending)
}

func (l *fakeLedger) settleCount(paymentHash string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.settles[paymentHash]
}

func (l *fakeLedger) expireCount(paymentHash string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.expires[paymentHash]
}

func (l *fakeLedger) attempts() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.settleAttempts
}

func (l *fakeLedger) balance(ownerID int64) decimal.Decimal {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balances[ownerID]
}

type fakeSink struct {
	mu       sync.Mutex
	delivers int
	deletes  int
	texts    []string
}

func (s *fakeSink) DeliverArtifact(_ context.Context, ownerID int64, _ []byte, _ string) (models.ArtifactRef, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delivers++
	return models.ArtifactRef{ChatID: ownerID, MessageID: s.delivers}, nil
}

func (s *fakeSink) DeleteArtifact(_ context.Context, _ models.ArtifactRef) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deletes++
	return nil
}

func (s *fakeSink) SendText(_ context.Context, _ int64, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.texts = append(s.texts, text)
	return nil
}

func (s *fakeSink) deleteCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deletes
}

func (s *fakeSink) sentTexts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.texts...)
}
