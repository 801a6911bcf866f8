/*
Package sqlite provides the SQLite-backed implementation of the loyalty
storage interfaces.

PURPOSE:
  Implements loyalty.Store and loyalty.TxStore using SQLite. In production
  the same patterns apply to PostgreSQL - only minor SQL dialect differences.

KEY TABLES:
  memberships:         One row per user, UNIQUE on user_id. The only mutable
                       table, mutated exclusively inside WithTx.
  points_transactions: Immutable ledger of all balance changes. Append-only:
                       no UPDATE, no DELETE.
  rewards:             Redeemable catalog. Soft-deactivated via the active
                       flag, never deleted.
  redemptions:         One row per completed exchange.

CONCURRENCY:
  SQLite allows a single writer at a time. The store serializes all writers
  with a mutex and caps the connection pool at one connection, so every
  WithTx unit observes and mutates a consistent snapshot - two concurrent
  credits for the same user cannot lose updates. Operations on different
  users still pay this serialization cost; with PostgreSQL, row-level
  locking would let them proceed in parallel.

WAL MODE:
  Opened with WAL (Write-Ahead Logging) and a bounded busy timeout, so a
  blocked writer surfaces a retryable error instead of hanging.

USAGE:
  store, err := sqlite.New("./data/loyalty.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper migration
  tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - loyalty/store.go: Interface definitions and the WithTx contract
  - loyalty/engine.go: The atomic units executed against this store
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/marquee/loyalty-engine/loyalty"
)

// Store implements loyalty.TxStore using SQLite.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

var _ loyalty.TxStore = (*Store)(nil)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000&_txlock=immediate")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite has a single writer; one pooled connection also keeps
	// ":memory:" databases from splitting across connections in tests.
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping verifies store connectivity for health checks.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %v", loyalty.ErrStoreUnavailable, err)
	}
	return nil
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Memberships (one per user; the UNIQUE key closes the create race)
	CREATE TABLE IF NOT EXISTS memberships (
		user_id INTEGER PRIMARY KEY,
		tier TEXT NOT NULL DEFAULT 'bronze',
		points INTEGER NOT NULL DEFAULT 0,
		lifetime_points INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		CHECK (points >= 0),
		CHECK (lifetime_points >= 0)
	);

	-- Points transactions (append-only ledger)
	CREATE TABLE IF NOT EXISTS points_transactions (
		id TEXT PRIMARY KEY,
		user_id INTEGER NOT NULL,
		points INTEGER NOT NULL,
		reason TEXT,
		kind TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	-- Ledger replay per user (reconciliation hot path)
	CREATE INDEX IF NOT EXISTS idx_transactions_user
		ON points_transactions(user_id, created_at);

	-- Rewards catalog
	CREATE TABLE IF NOT EXISTS rewards (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		description TEXT,
		points_required INTEGER NOT NULL,
		reward_type TEXT,
		active INTEGER NOT NULL DEFAULT 1,
		created_at TEXT NOT NULL,
		CHECK (points_required > 0)
	);

	CREATE INDEX IF NOT EXISTS idx_rewards_active
		ON rewards(active, points_required);

	-- Redemptions
	CREATE TABLE IF NOT EXISTS redemptions (
		id TEXT PRIMARY KEY,
		user_id INTEGER NOT NULL,
		reward_id TEXT NOT NULL,
		points_used INTEGER NOT NULL,
		status TEXT NOT NULL,
		redeemed_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_redemptions_user
		ON redemptions(user_id, redeemed_at DESC);
	`

	_, err := s.db.Exec(schema)
	return err
}

// querier is satisfied by both *sql.DB and *sql.Tx so the same operation
// helpers serve direct calls and calls inside WithTx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// =============================================================================
// ATOMIC UNITS (loyalty.TxStore interface)
// =============================================================================

// WithTx executes fn within a database transaction. All writes inside fn
// commit together or roll back together.
func (s *Store) WithTx(ctx context.Context, fn func(loyalty.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin transaction: %v", loyalty.ErrStoreUnavailable, err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{tx: sqlTx}); err != nil {
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("%w: commit transaction: %v", loyalty.ErrStoreUnavailable, err)
	}
	return nil
}

// txStore runs the operation helpers on an open *sql.Tx. It deliberately
// skips the store mutex: WithTx already holds it.
type txStore struct {
	tx *sql.Tx
}

var _ loyalty.Store = (*txStore)(nil)

func (ts *txStore) GetMembership(ctx context.Context, userID loyalty.UserID) (*loyalty.Membership, error) {
	return getMembership(ctx, ts.tx, userID)
}

func (ts *txStore) CreateMembership(ctx context.Context, userID loyalty.UserID) (*loyalty.Membership, error) {
	return createMembership(ctx, ts.tx, userID)
}

func (ts *txStore) UpdateMembership(ctx context.Context, m *loyalty.Membership) error {
	return updateMembership(ctx, ts.tx, m)
}

func (ts *txStore) AppendTransaction(ctx context.Context, tx loyalty.Transaction) error {
	return appendTransaction(ctx, ts.tx, tx)
}

func (ts *txStore) TransactionsByUser(ctx context.Context, userID loyalty.UserID) ([]loyalty.Transaction, error) {
	return transactionsByUser(ctx, ts.tx, userID)
}

func (ts *txStore) SaveReward(ctx context.Context, r loyalty.Reward) error {
	return saveReward(ctx, ts.tx, r)
}

func (ts *txStore) GetReward(ctx context.Context, id string) (*loyalty.Reward, error) {
	return getReward(ctx, ts.tx, id)
}

func (ts *txStore) ListActiveRewards(ctx context.Context) ([]loyalty.Reward, error) {
	return listActiveRewards(ctx, ts.tx)
}

func (ts *txStore) DeactivateReward(ctx context.Context, id string) error {
	return deactivateReward(ctx, ts.tx, id)
}

func (ts *txStore) SaveRedemption(ctx context.Context, r loyalty.Redemption) error {
	return saveRedemption(ctx, ts.tx, r)
}

func (ts *txStore) RedemptionsByUser(ctx context.Context, userID loyalty.UserID) ([]loyalty.Redemption, error) {
	return redemptionsByUser(ctx, ts.tx, userID)
}

// =============================================================================
// MEMBERSHIP STORE (loyalty.Store interface)
// =============================================================================

func (s *Store) GetMembership(ctx context.Context, userID loyalty.UserID) (*loyalty.Membership, error) {
	return getMembership(ctx, s.db, userID)
}

func (s *Store) CreateMembership(ctx context.Context, userID loyalty.UserID) (*loyalty.Membership, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return createMembership(ctx, s.db, userID)
}

func (s *Store) UpdateMembership(ctx context.Context, m *loyalty.Membership) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return updateMembership(ctx, s.db, m)
}

func getMembership(ctx context.Context, q querier, userID loyalty.UserID) (*loyalty.Membership, error) {
	var (
		m         loyalty.Membership
		createdAt string
		updatedAt string
	)

	err := q.QueryRowContext(ctx,
		`SELECT user_id, tier, points, lifetime_points, created_at, updated_at
		 FROM memberships WHERE user_id = ?`,
		userID,
	).Scan(&m.UserID, &m.Tier, &m.Points, &m.LifetimePoints, &createdAt, &updatedAt)

	if err == sql.ErrNoRows {
		return nil, loyalty.ErrMembershipNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get membership: %w", err)
	}

	if m.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("failed to scan membership: %w", err)
	}
	if m.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("failed to scan membership: %w", err)
	}
	return &m, nil
}

func createMembership(ctx context.Context, q querier, userID loyalty.UserID) (*loyalty.Membership, error) {
	now := time.Now().UTC()

	_, err := q.ExecContext(ctx,
		`INSERT INTO memberships (user_id, tier, points, lifetime_points, created_at, updated_at)
		 VALUES (?, 'bronze', 0, 0, ?, ?)`,
		userID, now.Format(time.RFC3339Nano), now.Format(time.RFC3339Nano),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return nil, loyalty.ErrDuplicateMembership
		}
		return nil, fmt.Errorf("failed to create membership: %w", err)
	}

	return &loyalty.Membership{
		UserID:    userID,
		Tier:      loyalty.TierBronze,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func updateMembership(ctx context.Context, q querier, m *loyalty.Membership) error {
	res, err := q.ExecContext(ctx,
		`UPDATE memberships
		 SET tier = ?, points = ?, lifetime_points = ?, updated_at = ?
		 WHERE user_id = ?`,
		m.Tier, m.Points, m.LifetimePoints,
		m.UpdatedAt.Format(time.RFC3339Nano), m.UserID,
	)
	if err != nil {
		return fmt.Errorf("failed to update membership: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return loyalty.ErrMembershipNotFound
	}
	return nil
}

// =============================================================================
// TRANSACTION STORE (append-only)
// =============================================================================

func (s *Store) AppendTransaction(ctx context.Context, tx loyalty.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return appendTransaction(ctx, s.db, tx)
}

func (s *Store) TransactionsByUser(ctx context.Context, userID loyalty.UserID) ([]loyalty.Transaction, error) {
	return transactionsByUser(ctx, s.db, userID)
}

func appendTransaction(ctx context.Context, q querier, tx loyalty.Transaction) error {
	_, err := q.ExecContext(ctx,
		`INSERT INTO points_transactions (id, user_id, points, reason, kind, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		tx.ID, tx.UserID, tx.Points, tx.Reason, tx.Kind,
		tx.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to append transaction: %w", err)
	}
	return nil
}

func transactionsByUser(ctx context.Context, q querier, userID loyalty.UserID) ([]loyalty.Transaction, error) {
	// rowid is the insertion sequence. The single-writer store appends in
	// commit order, so rowid is the ledger order even when two entries land
	// on the same timestamp tick.
	rows, err := q.QueryContext(ctx,
		`SELECT id, user_id, points, reason, kind, created_at
		 FROM points_transactions
		 WHERE user_id = ?
		 ORDER BY rowid ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	var txs []loyalty.Transaction
	for rows.Next() {
		var (
			tx        loyalty.Transaction
			reason    sql.NullString
			createdAt string
		)
		if err := rows.Scan(&tx.ID, &tx.UserID, &tx.Points, &reason, &tx.Kind, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		tx.Reason = reason.String
		if tx.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		txs = append(txs, tx)
	}
	return txs, rows.Err()
}

// =============================================================================
// REWARD STORE
// =============================================================================

func (s *Store) SaveReward(ctx context.Context, r loyalty.Reward) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return saveReward(ctx, s.db, r)
}

func (s *Store) GetReward(ctx context.Context, id string) (*loyalty.Reward, error) {
	return getReward(ctx, s.db, id)
}

func (s *Store) ListActiveRewards(ctx context.Context) ([]loyalty.Reward, error) {
	return listActiveRewards(ctx, s.db)
}

func (s *Store) DeactivateReward(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return deactivateReward(ctx, s.db, id)
}

func saveReward(ctx context.Context, q querier, r loyalty.Reward) error {
	_, err := q.ExecContext(ctx,
		`INSERT INTO rewards (id, name, description, points_required, reward_type, active, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Name, r.Description, r.PointsRequired, r.RewardType,
		boolToInt(r.Active), r.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to save reward: %w", err)
	}
	return nil
}

func getReward(ctx context.Context, q querier, id string) (*loyalty.Reward, error) {
	var (
		r           loyalty.Reward
		description sql.NullString
		rewardType  sql.NullString
		active      int
		createdAt   string
	)

	err := q.QueryRowContext(ctx,
		`SELECT id, name, description, points_required, reward_type, active, created_at
		 FROM rewards WHERE id = ?`,
		id,
	).Scan(&r.ID, &r.Name, &description, &r.PointsRequired, &rewardType, &active, &createdAt)

	if err == sql.ErrNoRows {
		return nil, loyalty.ErrRewardNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get reward: %w", err)
	}

	r.Description = description.String
	r.RewardType = rewardType.String
	r.Active = active != 0
	if r.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("failed to scan reward: %w", err)
	}
	return &r, nil
}

func listActiveRewards(ctx context.Context, q querier) ([]loyalty.Reward, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT id, name, description, points_required, reward_type, active, created_at
		 FROM rewards
		 WHERE active = 1
		 ORDER BY points_required ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query rewards: %w", err)
	}
	defer rows.Close()

	var rewards []loyalty.Reward
	for rows.Next() {
		var (
			r           loyalty.Reward
			description sql.NullString
			rewardType  sql.NullString
			active      int
			createdAt   string
		)
		if err := rows.Scan(&r.ID, &r.Name, &description, &r.PointsRequired, &rewardType, &active, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan reward: %w", err)
		}
		r.Description = description.String
		r.RewardType = rewardType.String
		r.Active = active != 0
		if r.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan reward: %w", err)
		}
		rewards = append(rewards, r)
	}
	return rewards, rows.Err()
}

func deactivateReward(ctx context.Context, q querier, id string) error {
	res, err := q.ExecContext(ctx, "UPDATE rewards SET active = 0 WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to deactivate reward: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return loyalty.ErrRewardNotFound
	}
	return nil
}

// =============================================================================
// REDEMPTION STORE
// =============================================================================

func (s *Store) SaveRedemption(ctx context.Context, r loyalty.Redemption) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return saveRedemption(ctx, s.db, r)
}

func (s *Store) RedemptionsByUser(ctx context.Context, userID loyalty.UserID) ([]loyalty.Redemption, error) {
	return redemptionsByUser(ctx, s.db, userID)
}

func saveRedemption(ctx context.Context, q querier, r loyalty.Redemption) error {
	_, err := q.ExecContext(ctx,
		`INSERT INTO redemptions (id, user_id, reward_id, points_used, status, redeemed_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		r.ID, r.UserID, r.RewardID, r.PointsUsed, r.Status,
		r.RedeemedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to save redemption: %w", err)
	}
	return nil
}

func redemptionsByUser(ctx context.Context, q querier, userID loyalty.UserID) ([]loyalty.Redemption, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT id, user_id, reward_id, points_used, status, redeemed_at
		 FROM redemptions
		 WHERE user_id = ?
		 ORDER BY redeemed_at DESC, rowid DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query redemptions: %w", err)
	}
	defer rows.Close()

	var redemptions []loyalty.Redemption
	for rows.Next() {
		var (
			r          loyalty.Redemption
			redeemedAt string
		)
		if err := rows.Scan(&r.ID, &r.UserID, &r.RewardID, &r.PointsUsed, &r.Status, &redeemedAt); err != nil {
			return nil, fmt.Errorf("failed to scan redemption: %w", err)
		}
		if r.RedeemedAt, err = parseTime(redeemedAt); err != nil {
			return nil, fmt.Errorf("failed to scan redemption: %w", err)
		}
		redemptions = append(redemptions, r)
	}
	return redemptions, rows.Err()
}

// =============================================================================
// HELPERS
// =============================================================================

// Reset clears all data. Intended for tests and local development.
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{"redemptions", "points_transactions", "rewards", "memberships"}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

// parseTime decodes a stored timestamp. RFC3339Nano also accepts plain
// RFC3339, so rows written before sub-second precision still scan.
func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid stored timestamp %q: %v", s, err)
	}
	return t, nil
}

func isUniqueConstraintError(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "duplicate key"))
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
