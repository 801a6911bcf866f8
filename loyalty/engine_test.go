package loyalty_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marquee/loyalty-engine/loyalty"
	"github.com/marquee/loyalty-engine/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestEngine(t *testing.T) (*loyalty.PointsEngine, *sqlite.Store) {
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	return loyalty.NewPointsEngine(store), store
}

// ledgerSum replays a user's transactions and returns the signed total.
func ledgerSum(t *testing.T, store *sqlite.Store, userID loyalty.UserID) int64 {
	t.Helper()
	txs, err := store.TransactionsByUser(context.Background(), userID)
	require.NoError(t, err)

	var sum int64
	for _, tx := range txs {
		sum += tx.Points
	}
	return sum
}

// =============================================================================
// CREDIT TESTS
// =============================================================================

func TestCredit_FirstCreditCreatesMembership(t *testing.T) {
	// GIVEN: A user with no membership
	// WHEN: Points are credited
	// THEN: A bronze membership is created and credited in the same operation

	engine, store := newTestEngine(t)
	ctx := context.Background()

	m, err := engine.Credit(ctx, 42, 100, "Ticket purchase")
	require.NoError(t, err)

	assert.Equal(t, loyalty.UserID(42), m.UserID)
	assert.Equal(t, loyalty.TierBronze, m.Tier)
	assert.Equal(t, int64(100), m.Points)
	assert.Equal(t, int64(100), m.LifetimePoints)

	txs, err := store.TransactionsByUser(ctx, 42)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, int64(100), txs[0].Points)
	assert.Equal(t, loyalty.TxCredit, txs[0].Kind)
	assert.Equal(t, "Ticket purchase", txs[0].Reason)
}

func TestCredit_AccumulatesAndPromotes(t *testing.T) {
	// GIVEN: A member accumulating points across purchases
	// WHEN: Lifetime points cross the silver and gold thresholds
	// THEN: Tier moves up at each inclusive boundary

	engine, _ := newTestEngine(t)
	ctx := context.Background()

	m, err := engine.Credit(ctx, 1, 499, "")
	require.NoError(t, err)
	assert.Equal(t, loyalty.TierBronze, m.Tier)

	m, err = engine.Credit(ctx, 1, 1, "")
	require.NoError(t, err)
	assert.Equal(t, loyalty.TierSilver, m.Tier, "500 lifetime points is silver")

	m, err = engine.Credit(ctx, 1, 1500, "")
	require.NoError(t, err)
	assert.Equal(t, loyalty.TierGold, m.Tier, "2000 lifetime points is gold")
	assert.Equal(t, int64(2000), m.Points)
	assert.Equal(t, int64(2000), m.LifetimePoints)
}

func TestCredit_RejectsNonPositiveAmounts(t *testing.T) {
	engine, store := newTestEngine(t)
	ctx := context.Background()

	_, err := engine.Credit(ctx, 1, 0, "")
	assert.ErrorIs(t, err, loyalty.ErrInvalidAmount)

	_, err = engine.Credit(ctx, 1, -50, "")
	assert.ErrorIs(t, err, loyalty.ErrInvalidAmount)

	// Rejection happens before any write: no membership, no ledger entry.
	_, err = store.GetMembership(ctx, 1)
	assert.ErrorIs(t, err, loyalty.ErrMembershipNotFound)
}

func TestCredit_ConcurrentCreditsLoseNoUpdates(t *testing.T) {
	// GIVEN: One membership
	// WHEN: 20 goroutines each credit 10 points concurrently
	// THEN: The final balance is exactly 200 and the ledger has 20 entries

	engine, store := newTestEngine(t)
	ctx := context.Background()

	const workers = 20
	const amount = 10

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := engine.Credit(ctx, 7, amount, "concurrent")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	m, err := store.GetMembership(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, int64(workers*amount), m.Points)
	assert.Equal(t, int64(workers*amount), m.LifetimePoints)

	txs, err := store.TransactionsByUser(ctx, 7)
	require.NoError(t, err)
	assert.Len(t, txs, workers)
}

func TestCredit_NotifiesSinkAfterCommit(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	sink := &captureSink{}
	engine.SetEventSink(sink)

	_, err := engine.Credit(ctx, 3, 150, "")
	require.NoError(t, err)

	require.Len(t, sink.events, 1)
	assert.Equal(t, loyalty.UserID(3), sink.events[0].UserID)
	assert.Equal(t, int64(150), sink.events[0].Points)
	assert.Equal(t, int64(150), sink.events[0].Balance)
}

func TestCredit_NoEventOnFailure(t *testing.T) {
	engine, _ := newTestEngine(t)

	sink := &captureSink{}
	engine.SetEventSink(sink)

	_, err := engine.Credit(context.Background(), 3, -1, "")
	assert.Error(t, err)
	assert.Empty(t, sink.events)
}

type captureSink struct {
	mu     sync.Mutex
	events []loyalty.PointsAddedEvent
}

func (c *captureSink) PointsAdded(ev loyalty.PointsAddedEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
}

// =============================================================================
// DEBIT TESTS
// =============================================================================

func TestDebit_ReducesBalanceOnly(t *testing.T) {
	// GIVEN: A gold member with 2500 points
	// WHEN: 2000 points are debited
	// THEN: Balance drops but lifetime points and tier are untouched

	engine, _ := newTestEngine(t)
	ctx := context.Background()

	_, err := engine.Credit(ctx, 9, 2500, "")
	require.NoError(t, err)

	m, err := engine.Debit(ctx, 9, 2000, "manual adjustment")
	require.NoError(t, err)

	assert.Equal(t, int64(500), m.Points)
	assert.Equal(t, int64(2500), m.LifetimePoints)
	assert.Equal(t, loyalty.TierGold, m.Tier, "tiers never downgrade")
}

func TestDebit_InsufficientBalance(t *testing.T) {
	engine, store := newTestEngine(t)
	ctx := context.Background()

	_, err := engine.Credit(ctx, 9, 100, "")
	require.NoError(t, err)

	_, err = engine.Debit(ctx, 9, 101, "")
	require.Error(t, err)

	var insufficient *loyalty.InsufficientPointsError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, int64(100), insufficient.Available)
	assert.Equal(t, int64(101), insufficient.Required)
	assert.ErrorIs(t, err, loyalty.ErrInsufficientPoints)

	// Balance and ledger are untouched by the failed debit.
	m, err := store.GetMembership(ctx, 9)
	require.NoError(t, err)
	assert.Equal(t, int64(100), m.Points)
	assert.Equal(t, int64(100), ledgerSum(t, store, 9))
}

func TestDebit_UnknownMembership(t *testing.T) {
	engine, _ := newTestEngine(t)

	_, err := engine.Debit(context.Background(), 404, 10, "")
	assert.ErrorIs(t, err, loyalty.ErrMembershipNotFound)
}

// =============================================================================
// RECONCILIATION INVARIANT
// =============================================================================

func TestLedger_ReplayMatchesBalance(t *testing.T) {
	// GIVEN: A mixed history of credits and debits
	// WHEN: The ledger is replayed
	// THEN: The signed sum equals the stored balance exactly

	engine, store := newTestEngine(t)
	ctx := context.Background()

	_, err := engine.Credit(ctx, 5, 600, "Ticket purchase")
	require.NoError(t, err)
	_, err = engine.Debit(ctx, 5, 150, "Concession discount")
	require.NoError(t, err)
	_, err = engine.Credit(ctx, 5, 75, "Birthday bonus")
	require.NoError(t, err)
	_, err = engine.Debit(ctx, 5, 25, "")
	require.NoError(t, err)

	m, err := store.GetMembership(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, int64(500), m.Points)
	assert.Equal(t, m.Points, ledgerSum(t, store, 5))
	assert.Equal(t, int64(675), m.LifetimePoints, "only credits raise lifetime points")
}
