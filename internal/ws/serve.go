package ws

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Werneck0live/controle-certidoes/internal/utils"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	sendBuffer = 256
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// o dashboard é servido por outra porta (API)
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ServeWS promove a conexão para websocket. /ws?empresa=<cnpj> acompanha uma empresa só.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Error("ws_upgrade_error", "err", err)
		return
	}

	client := &Client{
		Empresa: utils.SanitizeCNPJ(r.URL.Query().Get("empresa")),
		Send:    make(chan []byte, sendBuffer),
	}
	h.Register(client)
	h.log.Info("ws_client_connected", "id", client.ID, "empresa", client.Empresa, "remote", r.RemoteAddr)

	welcome, _ := json.Marshal(map[string]string{
		"acao":       "conectado",
		"cliente_id": client.ID,
		"empresa_id": client.Empresa,
	})
	h.SendToClient(client.ID, welcome)

	go writePump(conn, client)
	go h.readPump(conn, client)
}

// writePump é o único que escreve na conexão; o ping mantém proxies abertos.
func writePump(conn *websocket.Conn, c *Client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.Send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump só descarta o que chega; serve para detectar o fechamento.
func (h *Hub) readPump(conn *websocket.Conn, c *Client) {
	defer func() {
		h.Unregister(c)
		_ = conn.Close()
	}()
	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
