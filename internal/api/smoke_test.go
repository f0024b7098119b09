// Package api_test drives the router end to end over net/http/httptest with
// the in-memory store. No database or Redis is needed.
package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/giovanna-britto/Snake-Battle/internal/api"
	"github.com/giovanna-britto/Snake-Battle/internal/config"
	"github.com/giovanna-britto/Snake-Battle/internal/crypto"
	"github.com/giovanna-britto/Snake-Battle/internal/repository/memory"
	"github.com/giovanna-britto/Snake-Battle/internal/service"
)

// ── Test helpers ──────────────────────────────────────────────────────────────

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

type env struct {
	handler  http.Handler
	treasury *service.TreasuryService
	clock    *testClock
}

func testCfg() *config.Config {
	cfg := config.Defaults()
	cfg.Ledger.Driver = "memory"
	cfg.JWT.AccessSecret = "test-access-secret-abcdefghijklmnop"
	cfg.JWT.RefreshSecret = "test-refresh-secret-abcdefghijklmnop"
	cfg.Server.CORSOrigins = []string{"https://duel.example"}
	return cfg
}

func newEnv(t *testing.T) *env {
	t.Helper()
	cfg := testCfg()
	store := memory.NewStore()
	clock := &testClock{now: time.Date(2026, 6, 1, 18, 0, 0, 0, time.UTC)}

	engine := service.NewMatchEngine(store, service.NewLocalLocker(), cfg, nil)
	engine.SetClock(clock)
	authSvc := service.NewAuthService(service.NewMemoryChallenges(), cfg, nil)

	return &env{
		handler: api.SetupRouter(api.RouterDeps{
			AuthSvc: authSvc,
			Engine:  engine,
			Cfg:     cfg,
		}),
		treasury: service.NewTreasuryService(store, nil),
		clock:    clock,
	}
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Code    string          `json:"code"`
}

func (e *env) do(t *testing.T, method, path, token string, body any) (int, envelope) {
	t.Helper()
	buf := &bytes.Buffer{}
	if body != nil {
		require.NoError(t, json.NewEncoder(buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	e.handler.ServeHTTP(rr, req)

	var env envelope
	if rr.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &env), rr.Body.String())
	}
	return rr.Code, env
}

func decode[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(raw, &v))
	return v
}

// login runs the challenge / signature flow and returns an access token.
func (e *env) login(t *testing.T, s *crypto.Signer) string {
	t.Helper()
	code, resp := e.do(t, http.MethodPost, "/api/auth/challenge", "", map[string]string{"address": s.Address().Hex()})
	require.Equal(t, http.StatusOK, code, resp.Error)
	ch := decode[service.Challenge](t, resp.Data)

	sig, err := s.SignMessage([]byte(ch.Message))
	require.NoError(t, err)
	code, resp = e.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"address":   s.Address().Hex(),
		"signature": sig,
	})
	require.Equal(t, http.StatusOK, code, resp.Error)
	return decode[service.LoginResponse](t, resp.Data).AccessToken
}

func newSigner(t *testing.T) *crypto.Signer {
	t.Helper()
	s, err := crypto.GenerateSigner()
	require.NoError(t, err)
	return s
}

// ── Tests ─────────────────────────────────────────────────────────────────────

func TestHealth(t *testing.T) {
	e := newEnv(t)
	code, _ := e.do(t, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, code)
}

func TestInfo(t *testing.T) {
	e := newEnv(t)
	code, resp := e.do(t, http.MethodGet, "/api/info", "", nil)
	require.Equal(t, http.StatusOK, code)
	info := decode[map[string]any](t, resp.Data)
	require.Equal(t, "duel-escrow", info["name"])
	require.EqualValues(t, 9, info["decimals"])
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	e := newEnv(t)
	addr := common.HexToAddress("0x01").Hex()

	for _, path := range []string{"/api/matches", "/api/matches/" + addr + "/join"} {
		code, resp := e.do(t, http.MethodPost, path, "", nil)
		require.Equal(t, http.StatusUnauthorized, code, path)
		require.False(t, resp.Success)
	}

	code, resp := e.do(t, http.MethodGet, "/api/accounts/me", "not.a.jwt", nil)
	require.Equal(t, http.StatusUnauthorized, code)
	require.Equal(t, "TOKEN_INVALID", resp.Code)
}

func TestLoginRejectsForeignSignature(t *testing.T) {
	e := newEnv(t)
	alice, mallory := newSigner(t), newSigner(t)

	code, resp := e.do(t, http.MethodPost, "/api/auth/challenge", "", map[string]string{"address": alice.Address().Hex()})
	require.Equal(t, http.StatusOK, code)
	sig, err := mallory.SignMessage([]byte(decode[service.Challenge](t, resp.Data).Message))
	require.NoError(t, err)

	code, resp = e.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"address":   alice.Address().Hex(),
		"signature": sig,
	})
	require.Equal(t, http.StatusForbidden, code)
	require.Equal(t, "INVALID_SIGNATURE", resp.Code)
}

func TestMalformedInputs(t *testing.T) {
	e := newEnv(t)
	token := e.login(t, newSigner(t))

	code, resp := e.do(t, http.MethodGet, "/api/matches/nope", "", nil)
	require.Equal(t, http.StatusBadRequest, code)
	require.Equal(t, "INVALID_ADDRESS", resp.Code)

	code, _ = e.do(t, http.MethodPost, "/api/matches", token, map[string]any{"stake": "1"})
	require.Equal(t, http.StatusBadRequest, code)

	code, resp = e.do(t, http.MethodPost, "/api/matches/"+common.HexToAddress("0x01").Hex()+"/bets", token,
		map[string]string{"side": "Draw", "amount": "5"})
	require.Equal(t, http.StatusBadRequest, code)
	require.Equal(t, "INVALID_SIDE", resp.Code)

	code, resp = e.do(t, http.MethodGet, "/api/matches/"+common.HexToAddress("0x01").Hex(), "", nil)
	require.Equal(t, http.StatusNotFound, code)
	require.Equal(t, "MATCH_NOT_FOUND", resp.Code)
}

func TestCORSPreflight(t *testing.T) {
	e := newEnv(t)
	req := httptest.NewRequest(http.MethodOptions, "/api/matches", nil)
	req.Header.Set("Origin", "https://duel.example")
	rr := httptest.NewRecorder()
	e.handler.ServeHTTP(rr, req)
	require.Equal(t, http.StatusNoContent, rr.Code)
	require.Equal(t, "https://duel.example", rr.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodOptions, "/api/matches", nil)
	req.Header.Set("Origin", "https://evil.example")
	rr = httptest.NewRecorder()
	e.handler.ServeHTTP(rr, req)
	require.Empty(t, rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestMatchLifecycleOverHTTP(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	arb, a, b, bettor := newSigner(t), newSigner(t), newSigner(t), newSigner(t)
	for _, s := range []*crypto.Signer{a, b, bettor} {
		_, err := e.treasury.Credit(ctx, s.Address(), 10_000)
		require.NoError(t, err)
	}
	arbTok, aTok, bTok, betTok := e.login(t, arb), e.login(t, a), e.login(t, b), e.login(t, bettor)

	deadline := e.clock.Now().Add(time.Hour)
	code, resp := e.do(t, http.MethodPost, "/api/matches", arbTok, map[string]any{
		"id":       "42",
		"stake":    "1000",
		"deadline": deadline.Unix(),
		"player_a": a.Address().Hex(),
		"player_b": b.Address().Hex(),
	})
	require.Equal(t, http.StatusCreated, code, resp.Error)
	created := decode[map[string]any](t, resp.Data)
	matchPath := "/api/matches/" + created["address"].(string)
	require.Equal(t, "Created", created["status"])

	// The derive endpoint agrees with the stored address.
	code, resp = e.do(t, http.MethodGet, "/api/derive/match/"+arb.Address().Hex(), "", nil)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, created["address"], decode[map[string]any](t, resp.Data)["match"])

	// A second match from the same arbiter is refused.
	code, resp = e.do(t, http.MethodPost, "/api/matches", arbTok, map[string]any{
		"stake": "1", "deadline": deadline.Unix(),
		"player_a": a.Address().Hex(), "player_b": b.Address().Hex(),
	})
	require.Equal(t, http.StatusConflict, code)
	require.Equal(t, "MATCH_EXISTS", resp.Code)

	code, resp = e.do(t, http.MethodPost, matchPath+"/join", bettor.Address().Hex(), nil)
	require.Equal(t, http.StatusUnauthorized, code)

	code, resp = e.do(t, http.MethodPost, matchPath+"/join", betTok, nil)
	require.Equal(t, http.StatusForbidden, code)
	require.Equal(t, "NOT_A_PLAYER", resp.Code)

	code, _ = e.do(t, http.MethodPost, matchPath+"/join", aTok, nil)
	require.Equal(t, http.StatusOK, code)
	code, resp = e.do(t, http.MethodPost, matchPath+"/join", bTok, nil)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "Funded", decode[map[string]any](t, resp.Data)["status"])

	code, resp = e.do(t, http.MethodPost, matchPath+"/bets", betTok, map[string]string{"side": "PlayerA", "amount": "300"})
	require.Equal(t, http.StatusCreated, code, resp.Error)

	code, resp = e.do(t, http.MethodGet, matchPath+"/bets/"+bettor.Address().Hex(), "", nil)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "300", decode[map[string]any](t, resp.Data)["amount"])

	code, resp = e.do(t, http.MethodPost, matchPath+"/declare-winner", arbTok, map[string]string{"winner": "PlayerA"})
	require.Equal(t, http.StatusConflict, code)
	require.Equal(t, "TOO_EARLY", resp.Code)

	e.clock.Set(deadline.Add(time.Second))

	code, resp = e.do(t, http.MethodPost, matchPath+"/bets", betTok, map[string]string{"side": "PlayerB", "amount": "1"})
	require.Equal(t, http.StatusConflict, code)

	code, resp = e.do(t, http.MethodPost, matchPath+"/declare-winner", aTok, map[string]string{"winner": "PlayerA"})
	require.Equal(t, http.StatusForbidden, code)
	require.Equal(t, "NOT_ARBITER", resp.Code)

	code, resp = e.do(t, http.MethodPost, matchPath+"/declare-winner", arbTok, map[string]string{"winner": "PlayerA"})
	require.Equal(t, http.StatusOK, code, resp.Error)
	require.Equal(t, "Resolved", decode[map[string]any](t, resp.Data)["status"])

	code, resp = e.do(t, http.MethodPost, matchPath+"/withdraw-stake", bTok, nil)
	require.Equal(t, http.StatusForbidden, code)

	code, resp = e.do(t, http.MethodPost, matchPath+"/withdraw-stake", aTok, nil)
	require.Equal(t, http.StatusOK, code, resp.Error)
	require.Equal(t, "2000", decode[map[string]any](t, resp.Data)["amount"])

	code, resp = e.do(t, http.MethodPost, matchPath+"/claim-payout", betTok, nil)
	require.Equal(t, http.StatusOK, code, resp.Error)
	require.Equal(t, "300", decode[map[string]any](t, resp.Data)["amount"])

	code, resp = e.do(t, http.MethodPost, matchPath+"/claim-payout", betTok, nil)
	require.Equal(t, http.StatusConflict, code)
	require.Equal(t, "ALREADY_CLAIMED", resp.Code)

	for who, want := range map[string]string{aTok: "11000", bTok: "9000", betTok: "10000"} {
		code, resp = e.do(t, http.MethodGet, "/api/accounts/me", who, nil)
		require.Equal(t, http.StatusOK, code)
		require.Equal(t, want, decode[map[string]any](t, resp.Data)["balance"], fmt.Sprintf("balance for %s", who[:8]))
	}
}

func TestHugePageClampsOffset(t *testing.T) {
	e := newEnv(t)
	s := newSigner(t)
	_, err := e.treasury.Credit(context.Background(), s.Address(), 10)
	require.NoError(t, err)
	tok := e.login(t, s)

	// (page-1)*limit would wrap to -20 without the clamp.
	code, resp := e.do(t, http.MethodGet, "/api/accounts/me?page=4611686018427387904&limit=20", tok, nil)
	require.Equal(t, http.StatusOK, code, resp.Error)
	me := decode[map[string]any](t, resp.Data)
	require.EqualValues(t, 1<<20, me["page"])
	require.Empty(t, me["transfers"])
}
