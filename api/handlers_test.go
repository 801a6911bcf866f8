package api_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marquee/loyalty-engine/api"
	"github.com/marquee/loyalty-engine/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestServer(t *testing.T) *httptest.Server {
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	srv := httptest.NewServer(api.NewRouter(api.NewHandler(store)))
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, method, url string, body any) (*http.Response, map[string]any) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })

	var decoded map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		decoded = nil
	}
	return resp, decoded
}

func createReward(t *testing.T, srv *httptest.Server, name string, cost int64) string {
	t.Helper()
	resp, body := doJSON(t, http.MethodPost, srv.URL+"/rewards", map[string]any{
		"name":            name,
		"points_required": cost,
		"reward_type":     "concession",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return body["id"].(string)
}

func creditPoints(t *testing.T, srv *httptest.Server, userID, points int64) {
	t.Helper()
	resp, _ := doJSON(t, http.MethodPost,
		fmt.Sprintf("%s/memberships/%d/points", srv.URL, userID),
		map[string]any{"points": points})
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

// =============================================================================
// MEMBERSHIP ENDPOINTS
// =============================================================================

func TestCreateMembership_NewThenExisting(t *testing.T) {
	srv := newTestServer(t)

	// First enrollment creates the membership.
	resp, body := doJSON(t, http.MethodPost, srv.URL+"/memberships",
		map[string]any{"user_id": 42})
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, float64(42), body["user_id"])
	assert.Equal(t, "bronze", body["tier"])
	assert.Equal(t, float64(0), body["points"])

	// Second enrollment returns the existing row.
	resp, body = doJSON(t, http.MethodPost, srv.URL+"/memberships",
		map[string]any{"user_id": 42})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(42), body["user_id"])
}

func TestCreateMembership_InvalidUserID(t *testing.T) {
	srv := newTestServer(t)

	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/memberships",
		map[string]any{"user_id": 0})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGetMembership_NotFound(t *testing.T) {
	srv := newTestServer(t)

	resp, body := doJSON(t, http.MethodGet, srv.URL+"/memberships/404", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.NotEmpty(t, body["error"])
}

func TestGetMembership_TierProgression(t *testing.T) {
	srv := newTestServer(t)
	creditPoints(t, srv, 7, 1250)

	resp, body := doJSON(t, http.MethodGet, srv.URL+"/memberships/7", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	assert.Equal(t, "silver", body["tier"])
	assert.Equal(t, float64(1250), body["points"])
	assert.Equal(t, float64(1250), body["lifetime_points"])
	assert.Equal(t, "gold", body["next_tier"])
	assert.Equal(t, float64(750), body["points_to_next_tier"])
	assert.Equal(t, "50", body["tier_progress"])
}

func TestAddPoints_CreditsAndResponds(t *testing.T) {
	srv := newTestServer(t)

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/memberships/5/points",
		map[string]any{"points": 600, "reason": "Ticket purchase"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	assert.Equal(t, "600 points added", body["message"])
	membership := body["membership"].(map[string]any)
	assert.Equal(t, float64(600), membership["points"])
	assert.Equal(t, "silver", membership["tier"])
}

func TestAddPoints_RejectsNonPositive(t *testing.T) {
	srv := newTestServer(t)

	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/memberships/5/points",
		map[string]any{"points": -10})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/memberships/5/points",
		map[string]any{"points": 0})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGetTransactions(t *testing.T) {
	srv := newTestServer(t)
	creditPoints(t, srv, 5, 100)
	creditPoints(t, srv, 5, 50)

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/memberships/5/transactions", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var txs []map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&txs))
	require.Len(t, txs, 2)
	assert.Equal(t, float64(100), txs[0]["points"])
	assert.Equal(t, "credit", txs[0]["kind"])

	// Unknown users get 404, not an empty list.
	resp2, _ := doJSON(t, http.MethodGet, srv.URL+"/memberships/404/transactions", nil)
	assert.Equal(t, http.StatusNotFound, resp2.StatusCode)
}

// =============================================================================
// REWARD ENDPOINTS
// =============================================================================

func TestCreateReward_Validation(t *testing.T) {
	srv := newTestServer(t)

	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/rewards",
		map[string]any{"points_required": 100})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "missing name")

	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/rewards",
		map[string]any{"name": "Free Popcorn", "points_required": 0})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "non-positive cost")
}

func TestRewards_ListAndDeactivate(t *testing.T) {
	srv := newTestServer(t)
	id := createReward(t, srv, "Free Popcorn", 300)
	createReward(t, srv, "Small Drink", 100)

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/rewards", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var rewards []map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&rewards))
	require.Len(t, rewards, 2)
	assert.Equal(t, "Small Drink", rewards[0]["name"], "cheapest first")

	resp2, _ := doJSON(t, http.MethodDelete, srv.URL+"/rewards/"+id, nil)
	assert.Equal(t, http.StatusOK, resp2.StatusCode)

	// Deactivated reward disappears from the listing but stays readable.
	resp3, body := doJSON(t, http.MethodGet, srv.URL+"/rewards/"+id, nil)
	assert.Equal(t, http.StatusOK, resp3.StatusCode)
	assert.Equal(t, false, body["active"])
}

// =============================================================================
// REDEMPTION ENDPOINT
// =============================================================================

func TestRedeemReward_Success(t *testing.T) {
	srv := newTestServer(t)
	creditPoints(t, srv, 9, 1000)
	id := createReward(t, srv, "Free Popcorn", 300)

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/rewards/"+id+"/redeem",
		map[string]any{"user_id": 9})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	assert.Equal(t, float64(700), body["remaining_points"])
	redemption := body["redemption"].(map[string]any)
	assert.Equal(t, "completed", redemption["status"])
	assert.Equal(t, float64(300), redemption["points_used"])
}

func TestRedeemReward_InsufficientPoints(t *testing.T) {
	srv := newTestServer(t)
	creditPoints(t, srv, 9, 100)
	id := createReward(t, srv, "Free Popcorn", 300)

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/rewards/"+id+"/redeem",
		map[string]any{"user_id": 9})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "insufficient points", body["error"])

	// Balance untouched by the rejected redemption.
	_, m := doJSON(t, http.MethodGet, srv.URL+"/memberships/9", nil)
	assert.Equal(t, float64(100), m["points"])
}

func TestRedeemReward_UnknownOrInactive(t *testing.T) {
	srv := newTestServer(t)
	creditPoints(t, srv, 9, 1000)

	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/rewards/missing/redeem",
		map[string]any{"user_id": 9})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	id := createReward(t, srv, "Free Popcorn", 300)
	resp, _ = doJSON(t, http.MethodDelete, srv.URL+"/rewards/"+id, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/rewards/"+id+"/redeem",
		map[string]any{"user_id": 9})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

// =============================================================================
// SERVICE ENDPOINTS
// =============================================================================

func TestHealth(t *testing.T) {
	srv := newTestServer(t)

	resp, body := doJSON(t, http.MethodGet, srv.URL+"/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "loyalty-engine", body["service"])
	assert.Equal(t, "connected", body["database"])
	assert.NotEmpty(t, body["timestamp"])
}
