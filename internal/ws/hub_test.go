package ws_test

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/giovanna-britto/Snake-Battle/internal/domain"
	"github.com/giovanna-britto/Snake-Battle/internal/ws"
)

var (
	matchOne = common.HexToAddress("0x0000000000000000000000000000000000000001")
	matchTwo = common.HexToAddress("0x0000000000000000000000000000000000000002")
	caller   = common.HexToAddress("0x00000000000000000000000000000000000000c1")
)

func startHub(t *testing.T) (*ws.Hub, string) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	auth := func(token string) (common.Address, bool) {
		return caller, token == "good"
	}
	hub := ws.NewHub(auth, nil, 9, nil)
	go hub.Run(ctx)

	srv := httptest.NewServer(httpHandler(hub))
	t.Cleanup(srv.Close)
	return hub, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readJSON(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	var msg map[string]any
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func waitClients(t *testing.T, hub *ws.Hub, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return hub.ConnectedCount() == n }, 3*time.Second, 10*time.Millisecond)
}

func TestHubDeliversMatchEvents(t *testing.T) {
	hub, url := startHub(t)

	all := dial(t, url+"/ws?token=good")
	welcome := readJSON(t, all)
	require.Equal(t, "welcome", welcome["type"])
	require.Equal(t, caller.Hex(), common.HexToAddress(welcome["identity"].(string)).Hex())

	onlyTwo := dial(t, url+"/ws?match="+matchTwo.Hex())
	readJSON(t, onlyTwo)
	waitClients(t, hub, 2)

	ev := &domain.MatchEvent{Type: domain.EventBetPlaced, Match: matchOne, Amount: 1_500_000_000, TotalSideA: 1_500_000_000}
	require.NoError(t, hub.PublishMatchEvent(context.Background(), ev))
	require.NoError(t, hub.PublishMatchEvent(context.Background(), &domain.MatchEvent{Type: domain.EventMatchCreated, Match: matchTwo}))

	got := readJSON(t, all)
	require.Equal(t, "match_event", got["type"])
	require.Equal(t, "1.5", got["amount_display"])
	inner, err := json.Marshal(got["event"])
	require.NoError(t, err)
	require.Contains(t, string(inner), `"bet_placed"`)

	// The filtered client skips matchOne and sees matchTwo first.
	got = readJSON(t, onlyTwo)
	require.Equal(t, "match_created", got["event"].(map[string]any)["type"])
}

func TestHubBadTokenStaysAnonymous(t *testing.T) {
	_, url := startHub(t)

	conn := dial(t, url+"/ws?token=bad")
	errMsg := readJSON(t, conn)
	require.Equal(t, "error", errMsg["type"])
	require.Equal(t, domain.ErrTokenInvalid.Code, errMsg["code"])

	welcome := readJSON(t, conn)
	require.Equal(t, (common.Address{}).Hex(), common.HexToAddress(welcome["identity"].(string)).Hex())
}

func TestHubRejectsBadMatchFilter(t *testing.T) {
	_, url := startHub(t)
	_, resp, err := websocket.DefaultDialer.Dial(url+"/ws?match=nope", nil)
	require.Error(t, err)
	require.Equal(t, 400, resp.StatusCode)
}
