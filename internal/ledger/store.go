// Package ledger is the durable source of truth: append-style transaction
// entries plus one mutable balance per owner, mutated only inside the
// same transaction as the matching entry transition.
package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/YaeIsTired/Bot-TG/internal/models"
)

var ErrInsufficientFunds = errors.New("insufficient funds")

type Store struct {
	db *pgxpool.Pool
}

func NewStore(connString string) (*Store, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(context.Background(), config)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := pool.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	return &Store{db: pool}, nil
}

func (s *Store) Close() {
	s.db.Close()
}

// RecordPending inserts a new pending entry. The unique constraint on
// payment_hash rejects a duplicate hash from the gateway.
func (s *Store) RecordPending(ctx context.Context, e models.LedgerEntry) error {
	var hash any
	if e.PaymentHash != "" {
		hash = e.PaymentHash
	}
	_, err := s.db.Exec(ctx,
		`INSERT INTO ledger_entries (id, owner_id, kind, amount, status, payment_hash, created_at)
		 VALUES ($1, $2, $3, $4::numeric, $5, $6, $7)`,
		e.ID, e.OwnerID, string(e.Kind), e.Amount.String(), string(e.Status), hash, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("record pending entry: %w", err)
	}
	return nil
}

// Settle credits the owner and completes the entry for the hash in one
// transaction. Idempotent: an entry already in a terminal state means
// another path settled or expired it, and nothing is credited. When no
// entry exists at all (out-of-band gateway confirmation) a completed
// entry is inserted directly so the ledger stays consistent.
func (s *Store) Settle(ctx context.Context, ownerID int64, paymentHash string, amount decimal.Decimal) error {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return fmt.Errorf("tx begin failed: %w", err)
	}
	defer tx.Rollback(ctx)

	ct, err := tx.Exec(ctx,
		`UPDATE ledger_entries SET status = $1, completed_at = now()
		 WHERE payment_hash = $2 AND status = $3`,
		string(models.StatusCompleted), paymentHash, string(models.StatusPending),
	)
	if err != nil {
		return fmt.Errorf("complete entry: %w", err)
	}

	if ct.RowsAffected() == 0 {
		var status string
		err = tx.QueryRow(ctx,
			"SELECT status FROM ledger_entries WHERE payment_hash = $1", paymentHash,
		).Scan(&status)
		switch {
		case err == nil:
			// Already terminal; the credit happened (or was forfeited)
			// on the first transition.
			return nil
		case errors.Is(err, pgx.ErrNoRows):
			e := models.NewTopupEntry(ownerID, amount, paymentHash)
			_, err = tx.Exec(ctx,
				`INSERT INTO ledger_entries (id, owner_id, kind, amount, status, payment_hash, created_at, completed_at)
				 VALUES ($1, $2, $3, $4::numeric, $5, $6, $7, now())`,
				e.ID, e.OwnerID, string(e.Kind), e.Amount.String(), string(models.StatusCompleted), e.PaymentHash, e.CreatedAt,
			)
			if err != nil {
				return fmt.Errorf("insert completed entry: %w", err)
			}
		default:
			return fmt.Errorf("entry lookup failed: %w", err)
		}
	}

	if err := creditTx(ctx, tx, ownerID, amount); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("tx commit failed: %w", err)
	}
	return nil
}

// MarkExpired transitions a still-pending entry to expired. No-op once
// the entry is terminal.
func (s *Store) MarkExpired(ctx context.Context, paymentHash string) error {
	_, err := s.db.Exec(ctx,
		`UPDATE ledger_entries SET status = $1, completed_at = now()
		 WHERE payment_hash = $2 AND status = $3`,
		string(models.StatusExpired), paymentHash, string(models.StatusPending),
	)
	if err != nil {
		return fmt.Errorf("expire entry: %w", err)
	}
	return nil
}

// CreditBalance atomically adds to an owner's balance and records a
// completed entry of the given kind in the same transaction.
func (s *Store) CreditBalance(ctx context.Context, ownerID int64, amount decimal.Decimal, kind models.EntryKind) error {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return fmt.Errorf("tx begin failed: %w", err)
	}
	defer tx.Rollback(ctx)

	e := models.NewTopupEntry(ownerID, amount, "")
	e.Kind = kind
	_, err = tx.Exec(ctx,
		`INSERT INTO ledger_entries (id, owner_id, kind, amount, status, created_at, completed_at)
		 VALUES ($1, $2, $3, $4::numeric, $5, $6, now())`,
		e.ID, e.OwnerID, string(e.Kind), e.Amount.String(), string(models.StatusCompleted), e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert credit entry: %w", err)
	}
	if err := creditTx(ctx, tx, ownerID, amount); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("tx commit failed: %w", err)
	}
	return nil
}

// Debit subtracts from an owner's balance for a purchase or admin debit,
// guarded against overdraft with a row lock.
func (s *Store) Debit(ctx context.Context, ownerID int64, amount decimal.Decimal, kind models.EntryKind) error {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return fmt.Errorf("tx begin failed: %w", err)
	}
	defer tx.Rollback(ctx)

	var balanceText string
	err = tx.QueryRow(ctx,
		"SELECT balance::text FROM balances WHERE owner_id = $1 FOR UPDATE", ownerID,
	).Scan(&balanceText)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrInsufficientFunds
		}
		return fmt.Errorf("lock balance failed: %w", err)
	}
	balance, err := decimal.NewFromString(balanceText)
	if err != nil {
		return fmt.Errorf("parse balance: %w", err)
	}
	if balance.LessThan(amount) {
		return ErrInsufficientFunds
	}

	_, err = tx.Exec(ctx,
		"UPDATE balances SET balance = balance - $1::numeric WHERE owner_id = $2",
		amount.String(), ownerID,
	)
	if err != nil {
		return fmt.Errorf("debit balance failed: %w", err)
	}

	e := models.NewTopupEntry(ownerID, amount, "")
	e.Kind = kind
	_, err = tx.Exec(ctx,
		`INSERT INTO ledger_entries (id, owner_id, kind, amount, status, created_at, completed_at)
		 VALUES ($1, $2, $3, $4::numeric, $5, $6, now())`,
		e.ID, e.OwnerID, string(e.Kind), e.Amount.String(), string(models.StatusCompleted), e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert debit entry: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("tx commit failed: %w", err)
	}
	return nil
}

// Balance returns the owner's current balance, zero if none exists yet.
func (s *Store) Balance(ctx context.Context, ownerID int64) (decimal.Decimal, error) {
	var text string
	err := s.db.QueryRow(ctx,
		"SELECT balance::text FROM balances WHERE owner_id = $1", ownerID,
	).Scan(&text)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, nil
		}
		return decimal.Zero, fmt.Errorf("balance lookup failed: %w", err)
	}
	return decimal.NewFromString(text)
}

// EntriesByOwner lists an owner's entries, newest first.
func (s *Store) EntriesByOwner(ctx context.Context, ownerID int64, limit int) ([]models.LedgerEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(ctx,
		`SELECT id, owner_id, kind, amount::text, status, COALESCE(payment_hash, ''), created_at, completed_at
		 FROM ledger_entries WHERE owner_id = $1 ORDER BY created_at DESC LIMIT $2`,
		ownerID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list entries failed: %w", err)
	}
	defer rows.Close()

	var entries []models.LedgerEntry
	for rows.Next() {
		var (
			e      models.LedgerEntry
			kind   string
			amount string
			status string
		)
		if err := rows.Scan(&e.ID, &e.OwnerID, &kind, &amount, &status, &e.PaymentHash, &e.CreatedAt, &e.CompletedAt); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		e.Kind = models.EntryKind(kind)
		e.Status = models.EntryStatus(status)
		if e.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("parse entry amount: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func creditTx(ctx context.Context, tx pgx.Tx, ownerID int64, amount decimal.Decimal) error {
	_, err := tx.Exec(ctx,
		`INSERT INTO balances (owner_id, balance) VALUES ($1, $2::numeric)
		 ON CONFLICT (owner_id) DO UPDATE SET balance = balances.balance + EXCLUDED.balance`,
		ownerID, amount.String(),
	)
	if err != nil {
		return fmt.Errorf("credit balance failed: %w", err)
	}
	return nil
}
