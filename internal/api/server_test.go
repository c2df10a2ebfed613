package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/patria-grande/internal/economy"
	"github.com/talgya/patria-grande/internal/engine"
	"github.com/talgya/patria-grande/internal/recruitment"
)

const testKey = "secret"

func startServer(t *testing.T, treasury *economy.Treasury, configure func(*Server)) *httptest.Server {
	t.Helper()

	sim := engine.NewSimulation(recruitment.MustCatalog(recruitment.DefaultRules()), treasury)
	require.NoError(t, sim.Seed(engine.SeedConfig{TestTowns: true, TestDivisions: true}))

	eng := engine.NewEngine(time.Millisecond)
	eng.OnTick = sim.TickMinute

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		eng.Run(ctx)
		close(done)
	}()

	srv := &Server{Sim: sim, AdminKey: testKey}
	if configure != nil {
		configure(srv)
	}
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ts.Close()
		cancel()
		<-done
	})
	return ts
}

func post(t *testing.T, ts *httptest.Server, path, key string, body any) (int, map[string]any) {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodPost, ts.URL+path, bytes.NewReader(data))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if key != "" {
		req.Header.Set("Authorization", "Bearer "+key)
	}
	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	json.NewDecoder(resp.Body).Decode(&out)
	return resp.StatusCode, out
}

func get(t *testing.T, ts *httptest.Server, path string, out any) int {
	t.Helper()
	resp, err := ts.Client().Get(ts.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil && resp.StatusCode == http.StatusOK {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func affordanceVisible(t *testing.T, ts *httptest.Server) (bool, map[string]any) {
	var resp map[string]any
	if get(t, ts, "/api/v1/division/1/affordance", &resp) != http.StatusOK {
		return false, nil
	}
	visible, _ := resp["visible"].(bool)
	aff, _ := resp["affordance"].(map[string]any)
	return visible, aff
}

func TestRecruitWalkthrough(t *testing.T) {
	ts := startServer(t, economy.NewTreasury(1000), nil)

	code, _ := post(t, ts, "/api/v1/select", testKey, map[string]any{"division_id": 1})
	require.Equal(t, http.StatusOK, code)

	visible, _ := affordanceVisible(t, ts)
	assert.False(t, visible)

	code, body := post(t, ts, "/api/v1/recruit", testKey, map[string]any{
		"division_id": 1, "settlement_id": 1, "archetype": "infantry",
	})
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "Move the division closer to Villa Independencia to recruit.", body["message"])

	code, _ = post(t, ts, "/api/v1/move", testKey, map[string]any{"division_id": 1, "x": -120, "y": -280})
	require.Equal(t, http.StatusOK, code)

	require.Eventually(t, func() bool {
		visible, _ := affordanceVisible(t, ts)
		return visible
	}, 2*time.Second, 5*time.Millisecond)
	_, aff := affordanceVisible(t, ts)
	assert.Equal(t, "Recruit at Villa Independencia", aff["label"])

	code, body = post(t, ts, "/api/v1/recruit", testKey, map[string]any{
		"division_id": 1, "settlement_id": 1, "archetype": "infantry",
	})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "750", body["troops_label"])
	division := body["division"].(map[string]any)
	assert.Equal(t, float64(750), division["troops"])

	code, body = post(t, ts, "/api/v1/recruit", testKey, map[string]any{
		"division_id": 1, "settlement_id": 1, "archetype": "cavalry",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	assert.Equal(t, "Villa Independencia does not train cavalry.", body["message"])

	require.Eventually(t, func() bool {
		var panel recruitment.DetailPanelModel
		return get(t, ts, "/api/v1/division/1/panel", &panel) == http.StatusOK && panel.Troops == 750
	}, 2*time.Second, 5*time.Millisecond)

	var status map[string]any
	require.Equal(t, http.StatusOK, get(t, ts, "/api/v1/status", &status))
	treasury := status["treasury"].(map[string]any)
	assert.Equal(t, float64(950), treasury["patriot"])
}

func TestRecruitInsufficientFunds(t *testing.T) {
	ts := startServer(t, economy.NewTreasury(0), nil)

	code, _ := post(t, ts, "/api/v1/move", testKey, map[string]any{"division_id": 1, "x": -100, "y": -300})
	require.Equal(t, http.StatusOK, code)

	var links []recruitment.Link
	require.Eventually(t, func() bool {
		return get(t, ts, "/api/v1/links", &links) == http.StatusOK && len(links) > 0
	}, 2*time.Second, 5*time.Millisecond)

	code, body := post(t, ts, "/api/v1/recruit", testKey, map[string]any{
		"division_id": 1, "settlement_id": 1, "archetype": "infantry",
	})
	assert.Equal(t, http.StatusPaymentRequired, code)
	assert.Contains(t, body["message"], "Not enough funds")
}

func TestUnknownIDs(t *testing.T) {
	ts := startServer(t, nil, nil)

	assert.Equal(t, http.StatusNotFound, get(t, ts, "/api/v1/division/99/panel", nil))
	assert.Equal(t, http.StatusNotFound, get(t, ts, "/api/v1/division/99/affordance", nil))
	assert.Equal(t, http.StatusBadRequest, get(t, ts, "/api/v1/division/abc/panel", nil))

	code, _ := post(t, ts, "/api/v1/select", testKey, map[string]any{"division_id": 99})
	assert.Equal(t, http.StatusNotFound, code)
	code, _ = post(t, ts, "/api/v1/recruit", testKey, map[string]any{
		"division_id": 1, "settlement_id": 99, "archetype": "infantry",
	})
	assert.Equal(t, http.StatusNotFound, code)
}

func TestCommandsRequireAdminKey(t *testing.T) {
	ts := startServer(t, nil, nil)

	code, _ := post(t, ts, "/api/v1/select", "", map[string]any{"division_id": 1})
	assert.Equal(t, http.StatusUnauthorized, code)
	code, _ = post(t, ts, "/api/v1/select", "wrong", map[string]any{"division_id": 1})
	assert.Equal(t, http.StatusUnauthorized, code)

	disabled := startServer(t, nil, func(s *Server) { s.AdminKey = "" })
	code, _ = post(t, disabled, "/api/v1/select", testKey, map[string]any{"division_id": 1})
	assert.Equal(t, http.StatusForbidden, code)

	req, err := http.NewRequest(http.MethodPost, ts.URL+"/api/v1/move", bytes.NewBufferString("{"))
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+testKey)
	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRecruitRateLimited(t *testing.T) {
	ts := startServer(t, nil, func(s *Server) { s.RecruitRate = 2 })

	body := map[string]any{"division_id": 1, "settlement_id": 1, "archetype": "infantry"}
	code, _ := post(t, ts, "/api/v1/recruit", testKey, body)
	assert.Equal(t, http.StatusConflict, code)
	code, _ = post(t, ts, "/api/v1/recruit", testKey, body)
	assert.Equal(t, http.StatusConflict, code)
	code, _ = post(t, ts, "/api/v1/recruit", testKey, body)
	assert.Equal(t, http.StatusTooManyRequests, code)
}

func TestReadEndpoints(t *testing.T) {
	ts := startServer(t, nil, nil)

	var settlements []engine.SettlementView
	require.Equal(t, http.StatusOK, get(t, ts, "/api/v1/settlements", &settlements))
	require.Len(t, settlements, 3)
	assert.Equal(t, "Capital del Virreinato", settlements[2].Name)

	var divisions []map[string]any
	require.Equal(t, http.StatusOK, get(t, ts, "/api/v1/divisions", &divisions))
	require.Len(t, divisions, 2)
	assert.Equal(t, "650", divisions[0]["troops_label"])

	var status map[string]any
	require.Equal(t, http.StatusOK, get(t, ts, "/api/v1/status", &status))
	assert.Equal(t, float64(3), status["settlements"])

	post(t, ts, "/api/v1/select", testKey, map[string]any{"division_id": 2})
	var events []map[string]any
	require.Eventually(t, func() bool {
		return get(t, ts, "/api/v1/events?limit=5", &events) == http.StatusOK && len(events) > 0
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, "selection_changed", events[0]["kind"])
	assert.Equal(t, http.StatusBadRequest, get(t, ts, "/api/v1/events?limit=-1", nil))
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusServiceUnavailable, statusFor(engine.ErrQueueFull))
	assert.Equal(t, http.StatusGatewayTimeout, statusFor(context.DeadlineExceeded))
	assert.Equal(t, http.StatusUnprocessableEntity, statusFor(&recruitment.UnknownTierError{}))
	assert.Equal(t, http.StatusUnprocessableEntity, statusFor(&recruitment.TroopOverflowError{}))
	assert.Equal(t, http.StatusRequestTimeout, statusFor(context.Canceled))
}
