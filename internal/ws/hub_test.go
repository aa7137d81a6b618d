package ws

import (
	"log/slog"
	"testing"
	"time"
)

func recv(t *testing.T, c *Client, name string) string {
	t.Helper()
	select {
	case got, ok := <-c.Send:
		if !ok {
			t.Fatalf("%s: channel closed", name)
		}
		return string(got)
	case <-time.After(500 * time.Millisecond):
		t.Fatalf("timeout waiting %s", name)
	}
	return ""
}

func none(t *testing.T, c *Client, name string) {
	t.Helper()
	select {
	case got := <-c.Send:
		t.Fatalf("%s should not receive, got %q", name, got)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestHub_Broadcast(t *testing.T) {
	h := NewHub(slog.Default())
	go h.Run()
	defer h.Stop()

	c1 := &Client{Send: make(chan []byte, 1)}
	c2 := &Client{Send: make(chan []byte, 1), Empresa: "11222333000181"}
	h.Register(c1)
	h.Register(c2)

	h.Broadcast([]byte("hello"))

	if got := recv(t, c1, "c1"); got != "hello" {
		t.Fatalf("c1 got %q", got)
	}
	if got := recv(t, c2, "c2"); got != "hello" {
		t.Fatalf("c2 got %q", got)
	}
}

func TestHub_BroadcastEvent_CompanyFilter(t *testing.T) {
	h := NewHub(slog.Default())
	go h.Run()
	defer h.Stop()

	all := &Client{Send: make(chan []byte, 4)}
	padaria := &Client{Send: make(chan []byte, 4), Empresa: "11222333000181"}
	outra := &Client{Send: make(chan []byte, 4), Empresa: "45997418000153"}
	h.Register(all)
	h.Register(padaria)
	h.Register(outra)

	ev := `{"acao":"certidao_emitida","empresa_id":"11222333000181"}`
	h.BroadcastEvent([]byte(ev))

	if got := recv(t, all, "all"); got != ev {
		t.Fatalf("all got %q", got)
	}
	if got := recv(t, padaria, "padaria"); got != ev {
		t.Fatalf("padaria got %q", got)
	}
	none(t, outra, "outra")

	// evento sem empresa (ex.: município alterado) vai para todos
	h.BroadcastEvent([]byte(`{"acao":"municipio_alterado"}`))
	recv(t, all, "all")
	recv(t, padaria, "padaria")
	recv(t, outra, "outra")
}

func TestHub_SlowClientDropped(t *testing.T) {
	h := NewHub(slog.Default())
	go h.Run()
	defer h.Stop()

	slow := &Client{Send: make(chan []byte)} // sem buffer e ninguém lendo
	h.Register(slow)
	h.Broadcast([]byte("x"))

	deadline := time.Now().Add(time.Second)
	for h.Count() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("slow client not dropped")
		}
		time.Sleep(10 * time.Millisecond)
	}
	if _, ok := <-slow.Send; ok {
		t.Fatal("send channel should be closed")
	}
}

func TestHub_SendToClient(t *testing.T) {
	h := NewHub(slog.Default())
	go h.Run()
	defer h.Stop()

	c := &Client{ID: "fixo", Send: make(chan []byte, 1)}
	h.Register(c)
	h.SendToClient("fixo", []byte("oi"))
	if got := recv(t, c, "fixo"); got != "oi" {
		t.Fatalf("got %q", got)
	}
}
