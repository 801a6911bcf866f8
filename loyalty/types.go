/*
Package loyalty provides the core points ledger and tier-progression engine.

PURPOSE:
  This package contains the domain types and algorithms for the cinema
  loyalty program: memberships, the append-only points ledger, tier
  derivation, and the credit/debit/redemption operations that mutate them.

KEY CONCEPTS IN THIS FILE (types.go):
  - Membership:  A user's loyalty account (tier, balance, lifetime points)
  - Transaction: An immutable ledger entry recording a balance change
  - Reward:      A catalog entry users exchange points for
  - Redemption:  The record of a completed reward exchange

DESIGN PRINCIPLES:
  1. Immutability: Transactions are never modified once written
  2. Derivation:   Tier is always derived from lifetime points, never stored
                   independently of them
  3. Reconciliation: The signed sum of a user's transactions always equals
                   the user's current balance

SEE ALSO:
  - tier.go:    Tier thresholds and progression math
  - engine.go:  Credit/debit operations against the ledger
  - store.go:   Persistence interfaces
*/
package loyalty

import "time"

// UserID identifies a platform user. User accounts live in an external
// user-profile service; the loyalty engine only keys memberships by this ID.
type UserID int64

// =============================================================================
// MEMBERSHIP - One loyalty account per user
// =============================================================================

// Membership is a user's loyalty account.
//
// INVARIANTS:
//   - Tier == TierFor(LifetimePoints) after every committed operation
//   - Points >= 0
//   - LifetimePoints only ever increases (credits raise it, debits don't touch it)
//   - Points == sum of all signed transaction amounts for the user
type Membership struct {
	UserID         UserID
	Tier           Tier
	Points         int64
	LifetimePoints int64
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// =============================================================================
// TRANSACTION - Append-only ledger entry
// =============================================================================

type TransactionKind string

const (
	TxCredit TransactionKind = "credit" // Points earned (positive amount)
	TxDebit  TransactionKind = "debit"  // Points spent (negative amount)
)

// Transaction records a single balance change. Immutable once written.
// Points is signed: positive for credits, negative for debits.
type Transaction struct {
	ID        string
	UserID    UserID
	Points    int64
	Reason    string
	Kind      TransactionKind
	CreatedAt time.Time
}

// =============================================================================
// REWARD - Redeemable catalog entry
// =============================================================================

// Reward is a catalog entry a user may redeem points for.
// Rewards are soft-deactivated, never deleted: a redemption must always be
// able to reference the reward it was exchanged for.
type Reward struct {
	ID             string
	Name           string
	Description    string
	PointsRequired int64
	RewardType     string
	Active         bool
	CreatedAt      time.Time
}

// =============================================================================
// REDEMPTION - Record of a completed exchange
// =============================================================================

type RedemptionStatus string

const (
	RedemptionPending   RedemptionStatus = "pending"
	RedemptionCompleted RedemptionStatus = "completed"
	RedemptionFailed    RedemptionStatus = "failed"
)

// Redemption records a reward exchange. Each completed redemption corresponds
// to exactly one debit transaction of the same magnitude.
type Redemption struct {
	ID         string
	UserID     UserID
	RewardID   string
	PointsUsed int64
	Status     RedemptionStatus
	RedeemedAt time.Time
}
