// Package ws distribui os eventos de certidões para os dashboards abertos.
// Cada cliente pode acompanhar todas as empresas ou apenas uma (Client.Empresa).
package ws

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
)

type Client struct {
	ID      string
	Empresa string // CNPJ da empresa acompanhada; vazio = todas
	Send    chan []byte
}

func (c *Client) wants(empresa string) bool {
	return c.Empresa == "" || empresa == "" || c.Empresa == empresa
}

type unicastMsg struct {
	id  string
	msg []byte
}

type outMsg struct {
	empresa string
	body    []byte
}

type Hub struct {
	mu       sync.RWMutex
	clients  map[string]*Client // id -> client
	register chan *Client
	unreg    chan *Client

	sendAll chan outMsg     // envio para todos (respeitando o filtro de empresa)
	unicast chan unicastMsg // envio para 1 cliente

	log     *slog.Logger
	stop    chan struct{}
	stopped chan struct{}

	nextID atomic.Uint64
}

func NewHub(log *slog.Logger) *Hub {
	if log == nil {
		log = slog.Default()
	}
	return &Hub{
		clients:  make(map[string]*Client),
		register: make(chan *Client),
		unreg:    make(chan *Client),
		sendAll:  make(chan outMsg, 1024),
		unicast:  make(chan unicastMsg, 1024),
		log:      log.With("cmp", "ws.hub"),
		stop:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
}

func (h *Hub) newID() string {
	id := h.nextID.Add(1)
	return fmt.Sprintf("c%d", id)
}

func (h *Hub) Run() {
	h.log.Info("hub_run_start")
	defer close(h.stopped)

	for {
		select {
		case c := <-h.register:
			h.mu.Lock()
			h.clients[c.ID] = c
			total := len(h.clients)
			h.mu.Unlock()
			h.log.Info("client_registered", "id", c.ID, "empresa", c.Empresa, "total", total)

		case c := <-h.unreg:
			if c == nil {
				continue
			}
			h.drop(c.ID)
			h.log.Info("client_unregistered", "id", c.ID, "total", h.Count())

		case m := <-h.sendAll:
			var slow []string
			h.mu.RLock()
			for id, c := range h.clients {
				if !c.wants(m.empresa) {
					continue
				}
				select {
				case c.Send <- m.body:
				default:
					slow = append(slow, id)
				}
			}
			h.mu.RUnlock()
			// cliente lento -> dropa para não travar o hub
			for _, id := range slow {
				h.drop(id)
				h.log.Warn("broadcast_drop_slow", "id", id)
			}

		case u := <-h.unicast:
			h.mu.RLock()
			c := h.clients[u.id]
			h.mu.RUnlock()
			if c == nil {
				h.log.Warn("send_one_miss", "id", u.id)
				continue
			}
			select {
			case c.Send <- u.msg:
			default:
				h.drop(u.id)
				h.log.Warn("send_one_drop_slow", "id", u.id)
			}

		case <-h.stop:
			h.mu.Lock()
			for id, c := range h.clients {
				close(c.Send)
				delete(h.clients, id)
			}
			h.mu.Unlock()
			h.log.Info("hub_run_stop")
			return
		}
	}
}

func (h *Hub) drop(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if c, ok := h.clients[id]; ok {
		delete(h.clients, id)
		close(c.Send)
	}
}

func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) Stop() {
	close(h.stop)
	<-h.stopped
}

// Register atribui o ID antes de entregar ao hub, para o chamador já poder usá-lo.
func (h *Hub) Register(c *Client) {
	if c.ID == "" {
		c.ID = h.newID()
	}
	select {
	case h.register <- c:
	case <-h.stopped:
		close(c.Send)
	}
}

// Unregister não bloqueia depois do Stop; o Stop já fechou todos os clientes.
func (h *Hub) Unregister(c *Client) {
	select {
	case h.unreg <- c:
	case <-h.stopped:
	}
}

// Broadcast envia para todos os clientes, sem filtro.
func (h *Hub) Broadcast(b []byte)               { h.sendAll <- outMsg{body: b} }
func (h *Hub) SendToClient(id string, b []byte) { h.unicast <- unicastMsg{id: id, msg: b} }

// BroadcastEvent lê o empresa_id do evento JSON e entrega só a quem
// acompanha essa empresa (ou todas). Corpo que não é JSON vai para todos.
func (h *Hub) BroadcastEvent(body []byte) {
	var ev struct {
		EmpresaID string `json:"empresa_id"`
	}
	_ = json.Unmarshal(body, &ev)
	h.sendAll <- outMsg{empresa: ev.EmpresaID, body: body}
}
