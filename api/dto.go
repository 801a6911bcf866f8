/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

VALIDATION:
  Validation is done in handlers, not in DTOs. DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - loyalty/types.go: Domain types these mirror
*/
package api

import (
	"time"

	"github.com/marquee/loyalty-engine/loyalty"
)

// =============================================================================
// MEMBERSHIP TYPES
// =============================================================================

// MembershipDTO represents a loyalty membership in API responses.
// TierProgress is the percentage through the current tier toward the next,
// one decimal place; always "100" for platinum.
type MembershipDTO struct {
	UserID           int64  `json:"user_id"`
	Tier             string `json:"tier"`
	Points           int64  `json:"points"`
	LifetimePoints   int64  `json:"lifetime_points"`
	NextTier         string `json:"next_tier"`
	PointsToNextTier int64  `json:"points_to_next_tier"`
	TierProgress     string `json:"tier_progress"`
	CreatedAt        string `json:"created_at"`
	UpdatedAt        string `json:"updated_at"`
}

// CreateMembershipRequest is the request to enroll a user.
type CreateMembershipRequest struct {
	UserID int64 `json:"user_id"`
}

// AddPointsRequest is the request to credit points to a membership.
type AddPointsRequest struct {
	Points int64  `json:"points"`
	Reason string `json:"reason,omitempty"`
}

// CreditResponse wraps the membership state after a successful credit.
type CreditResponse struct {
	Message    string        `json:"message"`
	Membership MembershipDTO `json:"membership"`
}

// =============================================================================
// TRANSACTION TYPES
// =============================================================================

// TransactionDTO represents a ledger entry in API responses.
// Points is signed: positive for credits, negative for debits.
type TransactionDTO struct {
	ID        string `json:"id"`
	UserID    int64  `json:"user_id"`
	Points    int64  `json:"points"`
	Reason    string `json:"reason,omitempty"`
	Kind      string `json:"kind"`
	CreatedAt string `json:"created_at"`
}

// =============================================================================
// REWARD TYPES
// =============================================================================

// RewardDTO represents a reward catalog entry.
type RewardDTO struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Description    string `json:"description,omitempty"`
	PointsRequired int64  `json:"points_required"`
	RewardType     string `json:"reward_type,omitempty"`
	Active         bool   `json:"active"`
	CreatedAt      string `json:"created_at"`
}

// CreateRewardRequest is the request to add a reward to the catalog.
type CreateRewardRequest struct {
	Name           string `json:"name"`
	Description    string `json:"description,omitempty"`
	PointsRequired int64  `json:"points_required"`
	RewardType     string `json:"reward_type,omitempty"`
}

// =============================================================================
// REDEMPTION TYPES
// =============================================================================

// RedemptionDTO represents a completed reward exchange.
type RedemptionDTO struct {
	ID         string `json:"id"`
	UserID     int64  `json:"user_id"`
	RewardID   string `json:"reward_id"`
	PointsUsed int64  `json:"points_used"`
	Status     string `json:"status"`
	RedeemedAt string `json:"redeemed_at"`
}

// RedeemRequest identifies the user redeeming a reward.
type RedeemRequest struct {
	UserID int64 `json:"user_id"`
}

// RedeemResponse wraps the result of a successful redemption.
type RedeemResponse struct {
	Message         string        `json:"message"`
	Redemption      RedemptionDTO `json:"redemption"`
	RemainingPoints int64         `json:"remaining_points"`
}

// =============================================================================
// SERVICE TYPES
// =============================================================================

// HealthResponse reports service and store health.
type HealthResponse struct {
	Status    string `json:"status"`
	Service   string `json:"service"`
	Database  string `json:"database"`
	Timestamp string `json:"timestamp"`
}

// ErrorResponse is the standard error payload.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// CONVERTERS
// =============================================================================

func toMembershipDTO(m *loyalty.Membership) MembershipDTO {
	return MembershipDTO{
		UserID:           int64(m.UserID),
		Tier:             string(m.Tier),
		Points:           m.Points,
		LifetimePoints:   m.LifetimePoints,
		NextTier:         string(loyalty.NextTier(m.Tier)),
		PointsToNextTier: loyalty.PointsToNextTier(m.LifetimePoints),
		TierProgress:     loyalty.TierProgress(m.LifetimePoints).String(),
		CreatedAt:        m.CreatedAt.Format(time.RFC3339),
		UpdatedAt:        m.UpdatedAt.Format(time.RFC3339),
	}
}

func toTransactionDTO(tx loyalty.Transaction) TransactionDTO {
	return TransactionDTO{
		ID:        tx.ID,
		UserID:    int64(tx.UserID),
		Points:    tx.Points,
		Reason:    tx.Reason,
		Kind:      string(tx.Kind),
		CreatedAt: tx.CreatedAt.Format(time.RFC3339),
	}
}

func toRewardDTO(r loyalty.Reward) RewardDTO {
	return RewardDTO{
		ID:             r.ID,
		Name:           r.Name,
		Description:    r.Description,
		PointsRequired: r.PointsRequired,
		RewardType:     r.RewardType,
		Active:         r.Active,
		CreatedAt:      r.CreatedAt.Format(time.RFC3339),
	}
}

func toRedemptionDTO(r loyalty.Redemption) RedemptionDTO {
	return RedemptionDTO{
		ID:         r.ID,
		UserID:     int64(r.UserID),
		RewardID:   r.RewardID,
		PointsUsed: r.PointsUsed,
		Status:     string(r.Status),
		RedeemedAt: r.RedeemedAt.Format(time.RFC3339),
	}
}
