/*
store.go - Persistence interfaces for the loyalty ledger

PURPOSE:
  Defines the interface between domain logic and the database. The Store
  keeps four collections: memberships (unique per user), points_transactions
  (append-only), rewards, and redemptions.

KEY INTERFACES:
  Store:   Reads plus the individual writes used inside an atomic unit
  TxStore: Store plus WithTx, the per-user atomic unit boundary

APPEND-ONLY CONTRACT:
  points_transactions has no update or delete operation. The membership row
  is the only mutable record, and it is only mutated inside WithTx together
  with the transaction append that explains the change.

ATOMIC UNITS:
  Every ledger-mutating operation (credit, debit, redemption) runs inside
  WithTx. If fn returns an error the whole unit rolls back: a crash or a
  conflicting concurrent write can never leave the membership updated
  without its matching transaction, or vice versa. Implementations must
  serialize conflicting writers so that read-modify-write sequences inside
  WithTx never lose updates.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: production store (single-writer, WAL)
*/
package loyalty

import "context"

// Store handles persistence of memberships, transactions, rewards, and
// redemptions. Transactions are APPEND-ONLY: no update, no delete, ever.
type Store interface {
	// GetMembership returns the membership for a user, or
	// ErrMembershipNotFound.
	GetMembership(ctx context.Context, userID UserID) (*Membership, error)

	// CreateMembership inserts a fresh bronze membership. The insert is
	// conditional on a store-enforced UNIQUE constraint on user_id and
	// returns ErrDuplicateMembership if the user already has one. This is
	// the only safe way to create memberships under concurrent first-time
	// calls; check-then-insert at the application level is not.
	CreateMembership(ctx context.Context, userID UserID) (*Membership, error)

	// UpdateMembership persists new balance/lifetime/tier values for an
	// existing membership. Only call inside WithTx, paired with
	// AppendTransaction.
	UpdateMembership(ctx context.Context, m *Membership) error

	// AppendTransaction appends a ledger entry. This is the only write
	// operation on the transaction log.
	AppendTransaction(ctx context.Context, tx Transaction) error

	// TransactionsByUser returns a user's ledger entries, oldest first.
	TransactionsByUser(ctx context.Context, userID UserID) ([]Transaction, error)

	// SaveReward inserts a reward catalog entry.
	SaveReward(ctx context.Context, r Reward) error

	// GetReward returns a reward by ID whether active or not, or
	// ErrRewardNotFound if absent.
	GetReward(ctx context.Context, id string) (*Reward, error)

	// ListActiveRewards returns active rewards ordered by ascending
	// points_required.
	ListActiveRewards(ctx context.Context) ([]Reward, error)

	// DeactivateReward soft-deletes a reward. Rewards are never hard-deleted.
	DeactivateReward(ctx context.Context, id string) error

	// SaveRedemption inserts a redemption record.
	SaveRedemption(ctx context.Context, r Redemption) error

	// RedemptionsByUser returns a user's redemptions, newest first.
	RedemptionsByUser(ctx context.Context, userID UserID) ([]Redemption, error)
}

// TxStore wraps Store with the atomic-unit boundary used by all
// ledger-mutating operations.
type TxStore interface {
	Store

	// WithTx executes fn within a store transaction.
	// If fn returns an error, every write inside it is rolled back.
	// If fn returns nil, all writes commit together.
	WithTx(ctx context.Context, fn func(Store) error) error
}
