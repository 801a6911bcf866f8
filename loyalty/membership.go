/*
membership.go - Membership lifecycle (create/read)

One membership per user, enforced by the store's unique key on user_id.
Creation is a conditional insert: when two first-time calls race, one insert
wins and the loser re-reads the winner's row. Memberships are never deleted
and are mutated only through the points engine.
*/
package loyalty

import (
	"context"
	"errors"
)

// MembershipService orchestrates membership create/read operations.
type MembershipService struct {
	store Store
}

func NewMembershipService(store Store) *MembershipService {
	return &MembershipService{store: store}
}

// GetOrCreate returns the user's membership, creating a bronze zero-balance
// one if absent. Safe under concurrent first-time calls for the same user:
// the duplicate-insert path falls back to reading the existing row.
func (s *MembershipService) GetOrCreate(ctx context.Context, userID UserID) (*Membership, error) {
	m, err := s.store.GetMembership(ctx, userID)
	if err == nil {
		return m, nil
	}
	if !errors.Is(err, ErrMembershipNotFound) {
		return nil, err
	}

	m, err = s.store.CreateMembership(ctx, userID)
	if errors.Is(err, ErrDuplicateMembership) {
		// Lost the creation race; the other writer's row is ours to use.
		return s.store.GetMembership(ctx, userID)
	}
	return m, err
}

// Get returns the user's membership or ErrMembershipNotFound.
func (s *MembershipService) Get(ctx context.Context, userID UserID) (*Membership, error) {
	return s.store.GetMembership(ctx, userID)
}
