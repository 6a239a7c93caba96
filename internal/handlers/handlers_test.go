package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"guess-reward-backend/internal/handlers"
	"guess-reward-backend/internal/metrics"
	"guess-reward-backend/internal/models"
	"guess-reward-backend/internal/services"
)

const issuerKey = "issuer-key"

type memorySessions struct {
	mu       sync.Mutex
	sessions map[string]models.UserSession
}

func newMemorySessions() *memorySessions {
	return &memorySessions{sessions: make(map[string]models.UserSession)}
}

func (m *memorySessions) StoreUserSession(_ context.Context, session *models.UserSession, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[string(session.Principal)+"/"+session.SessionID] = *session
	return nil
}

func (m *memorySessions) GetUserSession(_ context.Context, principal models.Principal, sessionID string) (*models.UserSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	session, ok := m.sessions[string(principal)+"/"+sessionID]
	if !ok {
		return nil, fmt.Errorf("session %s not found", sessionID)
	}
	return &session, nil
}

func (m *memorySessions) DeleteUserSession(_ context.Context, principal models.Principal, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, string(principal)+"/"+sessionID)
	return nil
}

type testServer struct {
	router *gin.Engine
	chain  *services.Chain
	random *services.FixedRandom
	seed   *services.HMACRandom
	hub    *handlers.WebSocketHub
}

func newTestServer(t *testing.T, targets ...uint8) *testServer {
	t.Helper()
	return newTestServerWithKey(t, issuerKey, targets...)
}

func newTestServerWithKey(t *testing.T, key string, targets ...uint8) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	log := logrus.New()
	log.SetOutput(io.Discard)

	if len(targets) == 0 {
		targets = []uint8{50}
	}
	random := services.NewFixedRandom(targets...)
	seed, err := services.NewHMACRandom("test-seed")
	require.NoError(t, err)

	cfg := services.ChainConfig{
		Owner:               "owner",
		Engine:              "engine",
		Distributor:         "distributor",
		Game:                services.DefaultGameConfig(),
		DistributionMode:    services.DistributionMint,
		Categories:          []services.RewardCategory{{Name: "quiz-expert", Reward: *models.Tokens(25)}},
		InitialSupply:       *models.Tokens(1_000_000),
		RewardPoolAllowance: *models.Tokens(50_000),
	}

	m := metrics.New()
	events := services.NewEventLog(100)
	hub := handlers.NewWebSocketHub(nil, log)

	chain, err := services.NewChain(cfg, random, services.MultiSink{events, m, hub}, log)
	require.NoError(t, err)
	require.NoError(t, chain.Bootstrap(cfg))
	hub.SetLedger(chain.Ledger)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)

	router := handlers.NewRouter(handlers.RouterDeps{
		Chain:     chain,
		JWT:       services.NewJWTService("secret", time.Hour),
		Sessions:  newMemorySessions(),
		Seed:      seed,
		Metrics:   m,
		Events:    events,
		Hub:       hub,
		IssuerKey: key,
		Log:       log,
	})

	return &testServer{router: router, chain: chain, random: random, seed: seed, hub: hub}
}

func (s *testServer) do(t *testing.T, method, path, token string, body interface{}) (int, map[string]interface{}) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var out map[string]interface{}
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	}
	return w.Code, out
}

func (s *testServer) login(t *testing.T, principal string) string {
	t.Helper()

	data, err := json.Marshal(gin.H{"principal": principal})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/auth/token", bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Issuer-Key", issuerKey)

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var out struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out.Token
}

func TestIssueTokenRequiresIssuerKey(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/auth/token", strings.NewReader(`{"principal":"alice"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Issuer-Key", "wrong")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	assert.NotEmpty(t, s.login(t, "alice"))
}

func TestIssueTokenWithoutIssuerKeyRefusesReservedPrincipals(t *testing.T) {
	s := newTestServerWithKey(t, "")

	issue := func(principal string) int {
		req := httptest.NewRequest(http.MethodPost, "/auth/token", strings.NewReader(`{"principal":"`+principal+`"}`))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		s.router.ServeHTTP(w, req)
		return w.Code
	}

	for _, principal := range []string{"owner", "engine", "distributor"} {
		assert.Equal(t, http.StatusForbidden, issue(principal), principal)
	}
	assert.Equal(t, http.StatusOK, issue("alice"))
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	s := newTestServer(t)

	code, _ := s.do(t, http.MethodGet, "/api/games/stats", "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)

	code, _ = s.do(t, http.MethodGet, "/api/games/stats", "garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestPlayFlow(t *testing.T) {
	s := newTestServer(t, 50)
	token := s.login(t, "alice")

	code, body := s.do(t, http.MethodPost, "/api/games/play", token, gin.H{"guess": 50})
	require.Equal(t, http.StatusOK, code, body)
	result := body["result"].(map[string]interface{})
	assert.Equal(t, "perfect", result["tier"])
	assert.Equal(t, models.Tokens(20).Dec(), result["reward_amount"])
	assert.Equal(t, true, result["won"])

	code, body = s.do(t, http.MethodGet, "/api/games/latest", token, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(50), body["result"].(map[string]interface{})["target_number"])

	code, body = s.do(t, http.MethodGet, "/api/games/stats", token, nil)
	require.Equal(t, http.StatusOK, code)
	stats := body["stats"].(map[string]interface{})
	assert.Equal(t, float64(1), stats["total_games"])
	assert.Equal(t, models.Tokens(20).Dec(), stats["total_rewards_earned"])

	code, body = s.do(t, http.MethodGet, "/api/ledger/balance", token, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "20", body["balance"].(map[string]interface{})["tokens"])

	code, body = s.do(t, http.MethodGet, "/api/games/leaderboard?limit=5", token, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, body["leaderboard"], 1)
}

func TestPlayRejectsBadGuess(t *testing.T) {
	s := newTestServer(t)
	token := s.login(t, "alice")

	code, body := s.do(t, http.MethodPost, "/api/games/play", token, gin.H{"guess": 101})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "InvalidInput", body["code"])

	code, _ = s.do(t, http.MethodPost, "/api/games/play", token, gin.H{})
	assert.Equal(t, http.StatusBadRequest, code)

	// Zero is a valid guess.
	code, _ = s.do(t, http.MethodPost, "/api/games/play", token, gin.H{"guess": 0})
	assert.Equal(t, http.StatusOK, code)
}

func TestLatestWithoutGames(t *testing.T) {
	s := newTestServer(t)
	token := s.login(t, "alice")

	code, body := s.do(t, http.MethodGet, "/api/games/latest", token, nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "NoGamesPlayed", body["code"])
}

func TestPoolExhaustedIsRetryableConflict(t *testing.T) {
	s := newTestServer(t, 50)
	require.NoError(t, s.chain.Ledger.Approve("owner", "engine", models.Tokens(1)))
	token := s.login(t, "alice")

	code, body := s.do(t, http.MethodPost, "/api/games/play", token, gin.H{"guess": 50})
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "RewardPoolExhausted", body["code"])
	assert.Zero(t, s.chain.Engine.UserTotalGames("alice"))
}

func TestAdminRoutes(t *testing.T) {
	s := newTestServer(t, 50)
	ownerToken := s.login(t, "owner")
	aliceToken := s.login(t, "alice")

	code, _ := s.do(t, http.MethodPost, "/api/admin/pause", aliceToken, nil)
	assert.Equal(t, http.StatusForbidden, code)

	code, _ = s.do(t, http.MethodPost, "/api/admin/pause", ownerToken, nil)
	require.Equal(t, http.StatusOK, code)

	code, body := s.do(t, http.MethodPost, "/api/games/play", aliceToken, gin.H{"guess": 50})
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "Paused", body["code"])

	code, _ = s.do(t, http.MethodGet, "/api/games/stats", aliceToken, nil)
	assert.Equal(t, http.StatusOK, code)

	code, _ = s.do(t, http.MethodPost, "/api/admin/unpause", ownerToken, nil)
	require.Equal(t, http.StatusOK, code)

	code, body = s.do(t, http.MethodPost, "/api/admin/games/play-on-behalf", ownerToken, gin.H{"beneficiary": "alice", "guess": 50})
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, "alice", body["result"].(map[string]interface{})["player"])

	code, body = s.do(t, http.MethodPost, "/api/admin/minters", ownerToken, gin.H{"principal": "ops"})
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, body["minters"], "ops")

	code, body = s.do(t, http.MethodDelete, "/api/admin/minters/ops", ownerToken, nil)
	require.Equal(t, http.StatusOK, code)
	assert.NotContains(t, body["minters"], "ops")

	code, body = s.do(t, http.MethodGet, "/api/admin/state", ownerToken, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body["conservation"])
}

func TestSeedRotationAndVerify(t *testing.T) {
	s := newTestServer(t)
	ownerToken := s.login(t, "owner")
	aliceToken := s.login(t, "alice")

	code, body := s.do(t, http.MethodGet, "/api/games/verification", aliceToken, nil)
	require.Equal(t, http.StatusOK, code)
	committed := body["data"].(map[string]interface{})["server_seed_hash"]
	assert.Equal(t, services.HashServerSeed("test-seed"), committed)

	code, body = s.do(t, http.MethodPost, "/api/admin/seed/rotate", ownerToken, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "test-seed", body["revealed_server_seed"])
	assert.Equal(t, committed, body["revealed_seed_hash"])

	seed := services.SeedMaterial{Player: "alice", Nonce: 3, Timestamp: time.Unix(1700000000, 0)}
	code, body = s.do(t, http.MethodPost, "/api/games/verify", aliceToken, gin.H{
		"server_seed": "test-seed",
		"player":      "alice",
		"nonce":       3,
		"timestamp":   1700000000,
	})
	require.Equal(t, http.StatusOK, code)
	verification := body["verification"].(map[string]interface{})
	assert.Equal(t, float64(services.VerifyTarget("test-seed", seed)), verification["target_number"])
}

func TestLedgerRoutes(t *testing.T) {
	s := newTestServer(t)
	ownerToken := s.login(t, "owner")
	aliceToken := s.login(t, "alice")

	code, _ := s.do(t, http.MethodPost, "/api/ledger/transfer", ownerToken, gin.H{"to": "alice", "amount": models.Tokens(10).Dec()})
	require.Equal(t, http.StatusOK, code)

	code, body := s.do(t, http.MethodPost, "/api/ledger/transfer", aliceToken, gin.H{"to": "bob", "amount": models.Tokens(11).Dec()})
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	assert.Equal(t, "InsufficientBalance", body["code"])

	code, _ = s.do(t, http.MethodPost, "/api/ledger/transfer", aliceToken, gin.H{"to": "bob", "amount": "ten"})
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = s.do(t, http.MethodPost, "/api/ledger/approve", aliceToken, gin.H{"spender": "bob", "amount": models.Tokens(4).Dec()})
	require.Equal(t, http.StatusOK, code)

	bobToken := s.login(t, "bob")
	code, _ = s.do(t, http.MethodPost, "/api/ledger/transfer-from", bobToken, gin.H{"from": "alice", "to": "bob", "amount": models.Tokens(3).Dec()})
	require.Equal(t, http.StatusOK, code)

	code, body = s.do(t, http.MethodGet, "/api/ledger/allowance?spender=bob", aliceToken, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, models.Tokens(1).Dec(), body["allowance"].(map[string]interface{})["allowance"])

	code, _ = s.do(t, http.MethodPost, "/api/ledger/mint", aliceToken, gin.H{"to": "alice", "amount": "1"})
	assert.Equal(t, http.StatusForbidden, code)

	code, _ = s.do(t, http.MethodPost, "/api/ledger/burn", bobToken, gin.H{"amount": models.Tokens(3).Dec()})
	require.Equal(t, http.StatusOK, code)

	code, body = s.do(t, http.MethodGet, "/api/ledger/supply", bobToken, nil)
	require.Equal(t, http.StatusOK, code)
	supply := body["supply"].(map[string]interface{})
	assert.Equal(t, "GUESS", supply["symbol"])
	assert.Equal(t, models.Tokens(3).Dec(), supply["total_burned"])

	code, body = s.do(t, http.MethodGet, "/api/ledger/transfers", bobToken, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, body["transfers"], 2)
}

func TestClaimRoutes(t *testing.T) {
	s := newTestServer(t)
	token := s.login(t, "alice")

	code, body := s.do(t, http.MethodPost, "/api/rewards/claim", token, gin.H{"category": "quiz-expert"})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, models.Tokens(25).Dec(), body["claim"].(map[string]interface{})["reward"])

	code, body = s.do(t, http.MethodPost, "/api/rewards/claim", token, gin.H{"category": "quiz-expert"})
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "AlreadyClaimed", body["code"])

	code, body = s.do(t, http.MethodPost, "/api/rewards/claim", token, gin.H{"category": "unknown"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "InvalidInput", body["code"])

	code, body = s.do(t, http.MethodGet, "/api/rewards/claims", token, nil)
	require.Equal(t, http.StatusOK, code)
	claims := body["claims"].([]interface{})
	require.Len(t, claims, 1)
	assert.Equal(t, true, claims[0].(map[string]interface{})["claimed"])
}

func TestEventsAndLogout(t *testing.T) {
	s := newTestServer(t, 50)
	token := s.login(t, "alice")
	ownerToken := s.login(t, "owner")

	code, _ := s.do(t, http.MethodPost, "/api/games/play", token, gin.H{"guess": 50})
	require.Equal(t, http.StatusOK, code)

	code, body := s.do(t, http.MethodGet, "/api/events", token, nil)
	require.Equal(t, http.StatusOK, code)
	for _, raw := range body["events"].([]interface{}) {
		e := raw.(map[string]interface{})
		assert.Contains(t, fmt.Sprint(e["principals"]), "alice")
	}

	code, _ = s.do(t, http.MethodGet, "/api/events?source=stream", token, nil)
	assert.Equal(t, http.StatusForbidden, code)
	code, _ = s.do(t, http.MethodGet, "/api/events?source=stream", ownerToken, nil)
	assert.Equal(t, http.StatusServiceUnavailable, code)

	code, body = s.do(t, http.MethodGet, "/api/me", token, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "alice", body["principal"])
	assert.Equal(t, false, body["is_owner"])

	code, _ = s.do(t, http.MethodPost, "/api/logout", token, nil)
	require.Equal(t, http.StatusOK, code)

	code, _ = s.do(t, http.MethodGet, "/api/me", token, nil)
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t)

	code, body := s.do(t, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body["status"])

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "guess_ledger_transfers_total")
}

func TestWebSocketReceivesOwnEvents(t *testing.T) {
	s := newTestServer(t, 50)
	token := s.login(t, "alice")

	server := httptest.NewServer(s.router)
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/api/ws?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	var msg handlers.Message
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "BALANCE_UPDATE", msg.Type)

	// The initial balance is sent after registration, so the play below is
	// broadcast to this connection.
	_, err = s.chain.Engine.PlayGame("alice", 50)
	require.NoError(t, err)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		require.NoError(t, conn.ReadJSON(&msg))
		if msg.Type == "EVENT" {
			break
		}
	}
	data, ok := msg.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Contains(t, fmt.Sprint(data["principals"]), "alice")
}
