/*
handlers.go - HTTP API handlers for the loyalty engine

PURPOSE:
  Exposes the loyalty points engine via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Memberships:
    POST   /memberships                       Enroll a user (idempotent)
    GET    /memberships/{user_id}             Get membership details
    POST   /memberships/{user_id}/points      Credit points
    GET    /memberships/{user_id}/transactions Ledger history
    GET    /memberships/{user_id}/redemptions Redemption history

  Rewards:
    GET    /rewards                           List active rewards
    POST   /rewards                           Create reward
    GET    /rewards/{reward_id}               Get reward (active or not)
    DELETE /rewards/{reward_id}               Deactivate reward
    POST   /rewards/{reward_id}/redeem        Redeem reward for a user

  Service:
    GET    /health                            Liveness + store connectivity
    GET    /metrics                           Prometheus metrics

REQUEST FLOW:
  1. Parse HTTP request
  2. Validate input
  3. Call domain logic (engine, redeemer, membership service)
  4. Serialize response
  5. Handle errors

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, insufficient points
  - 404: Membership or reward not found
  - 409: Duplicate membership
  - 503: Store unavailable (safe to retry)
  - 500: Internal errors

SECURITY NOTE:
  Currently NO authentication or authorization. All endpoints are public;
  the service is expected to sit behind the platform API gateway.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
  - loyalty/engine.go: Credit/debit logic
*/
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/marquee/loyalty-engine/loyalty"
	"github.com/marquee/loyalty-engine/store/sqlite"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store    *sqlite.Store
	Engine   *loyalty.PointsEngine
	Members  *loyalty.MembershipService
	Redeemer *loyalty.Redeemer
}

// NewHandler creates a new handler with the given store.
func NewHandler(store *sqlite.Store) *Handler {
	return &Handler{
		Store:    store,
		Engine:   loyalty.NewPointsEngine(store),
		Members:  loyalty.NewMembershipService(store),
		Redeemer: loyalty.NewRedeemer(store),
	}
}

// =============================================================================
// MEMBERSHIP ENDPOINTS
// =============================================================================

// CreateMembership enrolls a user in the loyalty program.
// POST /memberships
//
// Returns 201 with the new membership, or 200 with the existing one when
// the user is already enrolled. Enrollment is race-safe: concurrent calls
// for the same user converge on a single row.
func (h *Handler) CreateMembership(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req CreateMembershipRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if req.UserID <= 0 {
		writeError(w, http.StatusBadRequest, "user_id must be a positive integer", nil)
		return
	}

	userID := loyalty.UserID(req.UserID)

	if m, err := h.Members.Get(ctx, userID); err == nil {
		writeJSON(w, http.StatusOK, toMembershipDTO(m))
		return
	} else if !errors.Is(err, loyalty.ErrMembershipNotFound) {
		h.writeDomainError(w, err)
		return
	}

	m, err := h.Members.GetOrCreate(ctx, userID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toMembershipDTO(m))
}

// GetMembership returns a user's membership with tier progression details.
// GET /memberships/{user_id}
func (h *Handler) GetMembership(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, ok := parseUserID(w, r)
	if !ok {
		return
	}

	m, err := h.Members.Get(ctx, userID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toMembershipDTO(m))
}

// AddPoints credits points to a user's membership, creating it if absent.
// POST /memberships/{user_id}/points
func (h *Handler) AddPoints(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, ok := parseUserID(w, r)
	if !ok {
		return
	}

	var req AddPointsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	m, err := h.Engine.Credit(ctx, userID, req.Points, req.Reason)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	pointsCreditedTotal.Add(float64(req.Points))
	writeJSON(w, http.StatusOK, CreditResponse{
		Message:    fmt.Sprintf("%d points added", req.Points),
		Membership: toMembershipDTO(m),
	})
}

// GetTransactions returns a user's ledger history, oldest first.
// GET /memberships/{user_id}/transactions
func (h *Handler) GetTransactions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, ok := parseUserID(w, r)
	if !ok {
		return
	}

	// 404 for unknown users, empty list for enrolled users with no activity.
	if _, err := h.Members.Get(ctx, userID); err != nil {
		h.writeDomainError(w, err)
		return
	}

	txs, err := h.Store.TransactionsByUser(ctx, userID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	dtos := make([]TransactionDTO, 0, len(txs))
	for _, tx := range txs {
		dtos = append(dtos, toTransactionDTO(tx))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetRedemptions returns a user's redemption history, newest first.
// GET /memberships/{user_id}/redemptions
func (h *Handler) GetRedemptions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, ok := parseUserID(w, r)
	if !ok {
		return
	}

	if _, err := h.Members.Get(ctx, userID); err != nil {
		h.writeDomainError(w, err)
		return
	}

	recs, err := h.Store.RedemptionsByUser(ctx, userID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	dtos := make([]RedemptionDTO, 0, len(recs))
	for _, rec := range recs {
		dtos = append(dtos, toRedemptionDTO(rec))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// REWARD ENDPOINTS
// =============================================================================

// ListRewards returns active rewards, cheapest first.
// GET /rewards
func (h *Handler) ListRewards(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	rewards, err := h.Store.ListActiveRewards(ctx)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	dtos := make([]RewardDTO, 0, len(rewards))
	for _, reward := range rewards {
		dtos = append(dtos, toRewardDTO(reward))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateReward adds a reward to the catalog.
// POST /rewards
func (h *Handler) CreateReward(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req CreateRewardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required", nil)
		return
	}
	if req.PointsRequired <= 0 {
		writeError(w, http.StatusBadRequest, "points_required must be positive", nil)
		return
	}

	reward := loyalty.Reward{
		ID:             uuid.NewString(),
		Name:           req.Name,
		Description:    req.Description,
		PointsRequired: req.PointsRequired,
		RewardType:     req.RewardType,
		Active:         true,
		CreatedAt:      time.Now().UTC(),
	}
	if err := h.Store.SaveReward(ctx, reward); err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toRewardDTO(reward))
}

// GetReward returns a reward by ID, active or not.
// GET /rewards/{reward_id}
func (h *Handler) GetReward(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	reward, err := h.Store.GetReward(ctx, chi.URLParam(r, "reward_id"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRewardDTO(*reward))
}

// DeactivateReward removes a reward from the active catalog. The row stays:
// past redemptions keep referencing it.
// DELETE /rewards/{reward_id}
func (h *Handler) DeactivateReward(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := h.Store.DeactivateReward(ctx, chi.URLParam(r, "reward_id")); err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "reward deactivated"})
}

// RedeemReward exchanges a user's points for a reward.
// POST /rewards/{reward_id}/redeem
func (h *Handler) RedeemReward(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req RedeemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if req.UserID <= 0 {
		writeError(w, http.StatusBadRequest, "user_id must be a positive integer", nil)
		return
	}

	redemption, remaining, err := h.Redeemer.Redeem(ctx,
		loyalty.UserID(req.UserID), chi.URLParam(r, "reward_id"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	redemptionsTotal.Inc()
	writeJSON(w, http.StatusCreated, RedeemResponse{
		Message:         "reward redeemed",
		Redemption:      toRedemptionDTO(*redemption),
		RemainingPoints: remaining,
	})
}

// =============================================================================
// SERVICE ENDPOINTS
// =============================================================================

// Health reports liveness and store connectivity.
// GET /health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	resp := HealthResponse{
		Status:    "healthy",
		Service:   "loyalty-engine",
		Database:  "connected",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	if err := h.Store.Ping(ctx); err != nil {
		resp.Status = "unhealthy"
		resp.Database = "disconnected"
		writeJSON(w, http.StatusServiceUnavailable, resp)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// =============================================================================
// HELPERS
// =============================================================================

func parseUserID(w http.ResponseWriter, r *http.Request) (loyalty.UserID, bool) {
	raw := chi.URLParam(r, "user_id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "user_id must be a positive integer", nil)
		return 0, false
	}
	return loyalty.UserID(id), true
}

// writeDomainError maps domain errors to HTTP statuses.
func (h *Handler) writeDomainError(w http.ResponseWriter, err error) {
	var insufficient *loyalty.InsufficientPointsError

	switch {
	case errors.As(err, &insufficient):
		writeError(w, http.StatusBadRequest, "insufficient points", err)
	case loyalty.IsClientError(err):
		writeError(w, http.StatusBadRequest, "invalid request", err)
	case loyalty.IsNotFound(err):
		writeError(w, http.StatusNotFound, "not found", err)
	case errors.Is(err, loyalty.ErrDuplicateMembership):
		writeError(w, http.StatusConflict, "membership already exists", err)
	case loyalty.IsRetryable(err):
		writeError(w, http.StatusServiceUnavailable, "store unavailable", err)
	default:
		writeError(w, http.StatusInternalServerError, "internal error", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
