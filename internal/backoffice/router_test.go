package backoffice_test

import (
	"bytes"
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/giovanna-britto/Snake-Battle/internal/backoffice"
	"github.com/giovanna-britto/Snake-Battle/internal/config"
	"github.com/giovanna-britto/Snake-Battle/internal/crypto"
	"github.com/giovanna-britto/Snake-Battle/internal/repository/memory"
	"github.com/giovanna-britto/Snake-Battle/internal/service"
)

type fixture struct {
	handler http.Handler
	auth    *service.AuthService
	engine  *service.MatchEngine
	admin   *crypto.Signer
}

func newFixture(t *testing.T, allowedIPs string) *fixture {
	t.Helper()
	admin, err := crypto.GenerateSigner()
	require.NoError(t, err)

	cfg := config.Defaults()
	cfg.Ledger.Driver = "memory"
	cfg.JWT.AccessSecret = "bo-access-secret-abcdefghijklmnop"
	cfg.JWT.RefreshSecret = "bo-refresh-secret-abcdefghijklmnop"
	cfg.Admin.Addresses = []string{admin.Address().Hex()}
	cfg.Server.BackofficeAllowedIPs = allowedIPs

	store := memory.NewStore()
	auth := service.NewAuthService(service.NewMemoryChallenges(), cfg, nil)
	return &fixture{
		handler: backoffice.SetupBackofficeRouter(backoffice.BackofficeDeps{
			AuthSvc:  auth,
			Treasury: service.NewTreasuryService(store, nil),
			Reader:   store,
			Cfg:      cfg,
		}),
		auth:   auth,
		engine: service.NewMatchEngine(store, service.NewLocalLocker(), cfg, nil),
		admin:  admin,
	}
}

func (f *fixture) token(t *testing.T, s *crypto.Signer) string {
	t.Helper()
	ctx := context.Background()
	ch, err := f.auth.Challenge(ctx, s.Address())
	require.NoError(t, err)
	sig, err := s.SignMessage([]byte(ch.Message))
	require.NoError(t, err)
	resp, err := f.auth.Login(ctx, service.LoginRequest{Address: s.Address().Hex(), Signature: sig})
	require.NoError(t, err)
	return resp.AccessToken
}

func (f *fixture) do(t *testing.T, method, path, token string, body any) (int, map[string]any) {
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
	f.handler.ServeHTTP(rr, req)

	var out map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out), rr.Body.String())
	return rr.Code, out
}

func TestAdminRoleRequired(t *testing.T) {
	f := newFixture(t, "")
	player, err := crypto.GenerateSigner()
	require.NoError(t, err)

	code, _ := f.do(t, http.MethodGet, "/admin/dashboard", "", nil)
	require.Equal(t, http.StatusUnauthorized, code)

	code, body := f.do(t, http.MethodGet, "/admin/dashboard", f.token(t, player), nil)
	require.Equal(t, http.StatusForbidden, code)
	require.Equal(t, "FORBIDDEN", body["code"])

	code, _ = f.do(t, http.MethodGet, "/admin/dashboard", f.token(t, f.admin), nil)
	require.Equal(t, http.StatusOK, code)
}

func TestIPWhitelist(t *testing.T) {
	f := newFixture(t, "10.0.0.1, 10.0.0.2")
	code, body := f.do(t, http.MethodGet, "/admin/dashboard", f.token(t, f.admin), nil)
	require.Equal(t, http.StatusForbidden, code)
	require.Equal(t, "IP_NOT_ALLOWED", body["code"])

	// httptest requests originate from 192.0.2.1.
	f = newFixture(t, "192.0.2.1")
	code, _ = f.do(t, http.MethodGet, "/admin/dashboard", f.token(t, f.admin), nil)
	require.Equal(t, http.StatusOK, code)
}

func TestCreditAndAudit(t *testing.T) {
	f := newFixture(t, "")
	tok := f.token(t, f.admin)
	ctx := context.Background()
	arbiter := common.HexToAddress("0xa0")
	playerA := common.HexToAddress("0xa1")
	playerB := common.HexToAddress("0xb1")

	code, body := f.do(t, http.MethodPost, "/admin/accounts/"+playerA.Hex()+"/credit", tok, map[string]any{"amount": "1.5"})
	require.Equal(t, http.StatusOK, code, body)
	data := body["data"].(map[string]any)
	require.Equal(t, "1.5", data["balance_display"])

	code, body = f.do(t, http.MethodPost, "/admin/accounts/"+playerB.Hex()+"/credit", tok,
		map[string]any{"amount": "1500000000", "base_units": true})
	require.Equal(t, http.StatusOK, code, body)

	code, body = f.do(t, http.MethodPost, "/admin/accounts/"+playerB.Hex()+"/credit", tok, map[string]any{"amount": "0.0000000001"})
	require.Equal(t, http.StatusBadRequest, code)
	require.Equal(t, "INVALID_AMOUNT", body["code"])

	m, err := f.engine.Create(ctx, service.CreateMatchRequest{
		Arbiter: arbiter, PlayerA: playerA, PlayerB: playerB,
		Stake: 1_000_000_000, Deadline: time.Now().Add(time.Hour),
	})
	require.NoError(t, err)
	_, err = f.engine.Join(ctx, playerA, m.Address)
	require.NoError(t, err)

	// Vaults cannot be credited directly.
	code, body = f.do(t, http.MethodPost, "/admin/accounts/"+m.Address.Hex()+"/credit", tok, map[string]any{"amount": "1"})
	require.Equal(t, http.StatusBadRequest, code)
	require.Equal(t, "INVALID_ADDRESS", body["code"])

	code, body = f.do(t, http.MethodGet, "/admin/finance/audit/"+m.Address.Hex(), tok, nil)
	require.Equal(t, http.StatusOK, code)
	audit := body["data"].(map[string]any)
	require.Equal(t, "1000000000", audit["balance"])
	require.Equal(t, true, audit["balanced"])

	code, body = f.do(t, http.MethodGet, "/admin/matches/"+m.Address.Hex(), tok, nil)
	require.Equal(t, http.StatusOK, code)
	detail := body["data"].(map[string]any)
	require.Empty(t, detail["bets"])
	require.Equal(t, "GREEN", detail["risk_indicator"])

	code, body = f.do(t, http.MethodGet, "/admin/matches?status=Created", tok, nil)
	require.Equal(t, http.StatusOK, code)
	require.Len(t, body["data"], 1)

	code, body = f.do(t, http.MethodGet, "/admin/accounts/"+playerA.Hex()+"/transfers", tok, nil)
	require.Equal(t, http.StatusOK, code)
	require.Len(t, body["data"], 2) // credit, then stake deposit

	code, body = f.do(t, http.MethodGet, "/admin/dashboard", tok, nil)
	require.Equal(t, http.StatusOK, code)
	dash := body["data"].(map[string]any)
	require.Equal(t, "1", dash["vault_balance"])
	require.EqualValues(t, 0, dash["unbalanced_vaults"])
}

func TestMatchListFiltersBeforePaging(t *testing.T) {
	f := newFixture(t, "")
	tok := f.token(t, f.admin)
	ctx := context.Background()
	playerA := common.HexToAddress("0xa1")
	playerB := common.HexToAddress("0xb1")

	for i := 1; i <= 3; i++ {
		_, err := f.engine.Create(ctx, service.CreateMatchRequest{
			Arbiter: common.BigToAddress(big.NewInt(int64(0xa0 + i))), PlayerA: playerA, PlayerB: playerB,
			Stake: 1, Deadline: time.Now().Add(time.Hour), ID: uint64(i),
		})
		require.NoError(t, err)
	}

	code, body := f.do(t, http.MethodGet, "/admin/matches?status=Created&limit=2&page=2", tok, nil)
	require.Equal(t, http.StatusOK, code)
	require.Len(t, body["data"], 1)
	require.EqualValues(t, 3, body["meta"].(map[string]any)["total"])

	code, body = f.do(t, http.MethodGet, "/admin/matches?status=Funded", tok, nil)
	require.Equal(t, http.StatusOK, code)
	require.Empty(t, body["data"])
	require.EqualValues(t, 0, body["meta"].(map[string]any)["total"])

	code, body = f.do(t, http.MethodGet, "/admin/matches?page=4611686018427387904&limit=20", tok, nil)
	require.Equal(t, http.StatusOK, code)
	require.Empty(t, body["data"])

	code, _ = f.do(t, http.MethodGet, "/admin/accounts/"+playerA.Hex()+"/transfers?page=4611686018427387904", tok, nil)
	require.Equal(t, http.StatusOK, code)
}
