package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/Werneck0live/controle-certidoes/internal/broker"
	"github.com/Werneck0live/controle-certidoes/internal/config"
	"github.com/Werneck0live/controle-certidoes/internal/utils"
	"github.com/Werneck0live/controle-certidoes/internal/ws"
)

// cmd/ws/main.go: consome os eventos do RabbitMQ e repassa aos dashboards via websocket
func main() {
	wscfg := config.LoadWSConfig()

	_ = config.InitLogger(wscfg.LogLevel)
	log := slog.Default().With("svc", "ws")

	hub := ws.NewHub(log)
	go hub.Run()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	consumer := &broker.Consumer{
		URI:      wscfg.RabbitURI,
		Queue:    wscfg.RabbitQueue,
		Tag:      "ws-consumer",
		Prefetch: wscfg.ConsumerPrefetch,
		Log:      log,
	}
	consumerDone := make(chan error, 1)
	go func() { consumerDone <- consumer.Run(ctx, hub.BroadcastEvent) }()

	// HTTP: /ws e /healthz
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", hub.ServeWS)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		utils.WriteJSON(w, http.StatusOK, map[string]any{"status": "ok", "clients": hub.Count()})
	})

	srv := &http.Server{
		Addr:              wscfg.Addr,
		Handler:           utils.LogRequests(log, mux),
		ReadHeaderTimeout: wscfg.ReadHeaderTimeout,
	}

	go func() {
		log.Info("ws_listen", "addr", wscfg.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("http_server_error", "err", err)
			os.Exit(1)
		}
	}()

	// sem broker na subida não há o que repassar
	select {
	case err := <-consumerDone:
		if err != nil {
			log.Error("rabbit_consumer_start_error", "err", err)
			os.Exit(1)
		}
	case <-ctx.Done():
	}

	sctx, cancel := context.WithTimeout(context.Background(), wscfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		log.Error("graceful_shutdown_error", "err", err)
	}
	hub.Stop()
	log.Info("stopped")
}
