package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Werneck0live/controle-certidoes/internal/app"
	"github.com/Werneck0live/controle-certidoes/internal/config"
	"github.com/Werneck0live/controle-certidoes/internal/dashboard"
	"github.com/Werneck0live/controle-certidoes/internal/handlers"
	"github.com/Werneck0live/controle-certidoes/internal/utils"
)

// cmd/api/main.go
func main() {
	cfg := config.Load() // .env

	// Logger JSON "global" - permite usar slog.Info/slog.Error/Warn em qualquer lugar
	_ = config.InitLogger(cfg.LogLevel)

	// HOOK: admin job (one-off)
	task := flag.String("task", "", "admin task: seed | migrate")
	flag.Parse()
	if *task != "" {
		os.Exit(runTask(*task, cfg))
	}

	slog.Info("starting", "port", cfg.Port, "mongo_db", cfg.MongoDB, "share", cfg.NetworkSharePath)

	a, err := app.New(cfg, app.Options{RequireBroker: true})
	if err != nil {
		slog.Error("startup_error", "err", err)
		os.Exit(1)
	}
	defer a.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if ran, err := a.Migrator().Up(ctx); err != nil {
		cancel()
		slog.Error("migrate_error", "err", err)
		os.Exit(1)
	} else if len(ran) > 0 {
		slog.Info("migrations_applied", "ids", ran)
	}
	cancel()

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           utils.LogRequests(slog.Default(), routes(a)),
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		// a emissão roda dentro da requisição
		WriteTimeout: cfg.AutomationTimeout + 30*time.Second,
	}

	// start server
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server_error", "err", err)
			os.Exit(1)
		}
	}()

	// graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	sctx, scancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer scancel()
	if err := srv.Shutdown(sctx); err != nil {
		slog.Error("graceful_shutdown_error", "err", err)
	}
	slog.Info("stopped")
}

func routes(a *app.App) http.Handler {
	// interface nil de verdade quando não há broker
	var pub handlers.Publisher
	if a.Pub != nil {
		pub = a.Pub
	}

	ch := handlers.NewCompanyHandler(a.Companies, a.Certs, a.Municipalities, pub)
	cert := handlers.NewCertificateHandler(a.Certs, a.Companies, a.Runner, pub)
	mh := handlers.NewMunicipalityHandler(a.Municipalities, pub)
	dh := handlers.NewDashboardHandler(&dashboard.Service{Companies: a.Companies, Certs: a.Certs})

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", ch.Health)
	mux.HandleFunc("/", dh.Page)
	mux.HandleFunc("/api/dashboard", dh.JSON)
	mux.HandleFunc("/api/companies", ch.Companies)
	mux.HandleFunc("/api/companies/", ch.CompanyByID)
	mux.HandleFunc("/api/certificates/", cert.CertificateByID)
	mux.HandleFunc("/api/municipios", mh.Municipalities)
	mux.HandleFunc("/api/municipios/", mh.MunicipalityByID)
	return mux
}

func runTask(task string, cfg *config.Config) int {
	a, err := app.New(cfg, app.Options{})
	if err != nil {
		slog.Error("startup_error", "err", err)
		return 1
	}
	defer a.Close()
	ctx := context.Background()

	switch task {
	case "migrate":
		ran, err := a.Migrator().Up(ctx)
		if err != nil {
			slog.Error("migrate_failed", "err", err)
			return 1
		}
		slog.Info("migrate_done", "applied", ran)
	case "seed":
		if err := a.Seed(ctx); err != nil {
			slog.Error("seed_failed", "err", err)
			return 1
		}
		slog.Info("seed_done")
	default:
		slog.Error("unknown_admin_task", "task", task)
		return 2
	}
	return 0
}
