package ws_test

import (
	"net/http"

	"github.com/giovanna-britto/Snake-Battle/internal/ws"
)

func httpHandler(hub *ws.Hub) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", hub.ServeWs)
	return mux
}
