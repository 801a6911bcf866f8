/*
redeem.go - Redemption workflow

Validates a reward against a user's balance and performs the debit plus the
redemption record as one atomic unit. The balance check and the debit see
the same consistent snapshot: a credit or another redemption racing against
this one cannot make the check pass on stale data and then drive the
balance negative.
*/
package loyalty

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Redeemer performs reward redemptions against the ledger.
type Redeemer struct {
	store TxStore
}

func NewRedeemer(store TxStore) *Redeemer {
	return &Redeemer{store: store}
}

// Redeem exchanges reward.PointsRequired of the user's points for the
// reward. On success it returns the completed redemption record and the
// remaining balance.
//
// Failure modes, all leaving the ledger untouched:
//   - ErrRewardNotFound:      reward absent or inactive
//   - ErrMembershipNotFound:  user has no membership
//   - InsufficientPointsError: balance below the reward's cost
func (r *Redeemer) Redeem(ctx context.Context, userID UserID, rewardID string) (*Redemption, int64, error) {
	var (
		redemption *Redemption
		remaining  int64
	)

	err := r.store.WithTx(ctx, func(s Store) error {
		reward, err := s.GetReward(ctx, rewardID)
		if err != nil {
			return err
		}
		if !reward.Active {
			return ErrRewardNotFound
		}

		m, err := s.GetMembership(ctx, userID)
		if err != nil {
			return err
		}
		if m.Points < reward.PointsRequired {
			return &InsufficientPointsError{
				UserID:    userID,
				Available: m.Points,
				Required:  reward.PointsRequired,
			}
		}

		now := time.Now().UTC()
		m.Points -= reward.PointsRequired
		m.UpdatedAt = now

		if err := s.UpdateMembership(ctx, m); err != nil {
			return err
		}
		if err := s.AppendTransaction(ctx, Transaction{
			ID:        uuid.NewString(),
			UserID:    userID,
			Points:    -reward.PointsRequired,
			Reason:    fmt.Sprintf("Redeemed: %s", reward.Name),
			Kind:      TxDebit,
			CreatedAt: now,
		}); err != nil {
			return err
		}

		rec := Redemption{
			ID:         uuid.NewString(),
			UserID:     userID,
			RewardID:   reward.ID,
			PointsUsed: reward.PointsRequired,
			Status:     RedemptionCompleted,
			RedeemedAt: now,
		}
		if err := s.SaveRedemption(ctx, rec); err != nil {
			return err
		}

		redemption = &rec
		remaining = m.Points
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	return redemption, remaining, nil
}
