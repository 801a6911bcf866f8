/*
engine.go - Points engine: credit and debit against the ledger

PURPOSE:
  Orchestrates the two ledger-mutating primitives. Each operation is one
  atomic unit: read the membership, compute the new balance and tier, write
  the membership, and append the explaining transaction — all inside a
  single store transaction.

CREDIT:
  - amount must be > 0, else ErrInvalidAmount
  - membership is created on first credit if absent
  - raises both Points and LifetimePoints; tier is re-derived from the new
    lifetime total and can only move up

DEBIT:
  - amount must be > 0, else ErrInvalidAmount
  - membership must exist; balance must cover the amount, else
    InsufficientPointsError
  - lowers Points only; LifetimePoints and therefore tier are untouched

EVENTS:
  After a credit commits, the engine hands an event to the configured
  EventSink. Sinks are fire-and-forget: they run outside the atomic unit,
  their failures are logged by the sink itself, and they never roll back
  or delay the committed ledger change.

SEE ALSO:
  - redeem.go: Redemption workflow built on the same atomic unit
  - store.go:  WithTx contract
*/
package loyalty

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// PointsAddedEvent describes a committed credit for outbound notification.
type PointsAddedEvent struct {
	UserID  UserID
	Points  int64 // amount credited by this operation
	Balance int64 // balance after the credit
}

// EventSink receives committed-credit events. Implementations must not
// block: delivery happens after the ledger commit and is best-effort.
type EventSink interface {
	PointsAdded(ev PointsAddedEvent)
}

// PointsEngine performs atomic credit/debit operations against the ledger.
type PointsEngine struct {
	store TxStore
	sink  EventSink
}

func NewPointsEngine(store TxStore) *PointsEngine {
	return &PointsEngine{store: store}
}

// SetEventSink wires the outbound event dispatcher. A nil sink disables
// notifications; the ledger itself is unaffected either way.
func (e *PointsEngine) SetEventSink(sink EventSink) {
	e.sink = sink
}

// Credit atomically adds amount points to the user's balance and lifetime
// total, re-derives the tier, and appends a credit transaction. The
// membership is created if absent. Returns the updated membership.
func (e *PointsEngine) Credit(ctx context.Context, userID UserID, amount int64, reason string) (*Membership, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	var updated *Membership
	err := e.store.WithTx(ctx, func(s Store) error {
		members := NewMembershipService(s)
		m, err := members.GetOrCreate(ctx, userID)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		m.Points += amount
		m.LifetimePoints += amount
		m.Tier = TierFor(m.LifetimePoints)
		m.UpdatedAt = now

		if err := s.UpdateMembership(ctx, m); err != nil {
			return err
		}
		if err := s.AppendTransaction(ctx, Transaction{
			ID:        uuid.NewString(),
			UserID:    userID,
			Points:    amount,
			Reason:    reason,
			Kind:      TxCredit,
			CreatedAt: now,
		}); err != nil {
			return err
		}

		updated = m
		return nil
	})
	if err != nil {
		return nil, err
	}

	if e.sink != nil {
		e.sink.PointsAdded(PointsAddedEvent{
			UserID:  userID,
			Points:  amount,
			Balance: updated.Points,
		})
	}
	return updated, nil
}

// Debit atomically subtracts amount points from the user's balance and
// appends a debit transaction. Lifetime points are unchanged, so the tier
// never moves. Returns the updated membership.
func (e *PointsEngine) Debit(ctx context.Context, userID UserID, amount int64, reason string) (*Membership, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	var updated *Membership
	err := e.store.WithTx(ctx, func(s Store) error {
		m, err := s.GetMembership(ctx, userID)
		if err != nil {
			return err
		}
		if m.Points < amount {
			return &InsufficientPointsError{
				UserID:    userID,
				Available: m.Points,
				Required:  amount,
			}
		}

		now := time.Now().UTC()
		m.Points -= amount
		m.UpdatedAt = now

		if err := s.UpdateMembership(ctx, m); err != nil {
			return err
		}
		if err := s.AppendTransaction(ctx, Transaction{
			ID:        uuid.NewString(),
			UserID:    userID,
			Points:    -amount,
			Reason:    reason,
			Kind:      TxDebit,
			CreatedAt: now,
		}); err != nil {
			return err
		}

		updated = m
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}
