// Package app liga config, Mongo, RabbitMQ, arquivamento e automação;
// usado pelo cmd/api e pelo cmd/certctl.
package app

import (
	"context"
	"log/slog"

	"go.mongodb.org/mongo-driver/mongo"

	"github.com/Werneck0live/controle-certidoes/internal/admin"
	"github.com/Werneck0live/controle-certidoes/internal/automation"
	"github.com/Werneck0live/controle-certidoes/internal/broker"
	"github.com/Werneck0live/controle-certidoes/internal/config"
	"github.com/Werneck0live/controle-certidoes/internal/db"
	"github.com/Werneck0live/controle-certidoes/internal/filing"
	"github.com/Werneck0live/controle-certidoes/internal/migrations"
	"github.com/Werneck0live/controle-certidoes/internal/repository"
)

type App struct {
	Cfg    *config.Config
	Client *mongo.Client
	DB     *mongo.Database

	Companies      *repository.CompanyRepository
	Certs          *repository.CertificateRepository
	Municipalities *repository.MunicipalityRepository

	Pub    *broker.Publisher // nil quando o broker é opcional e não conectou
	Filer  *filing.Filer
	Runner *automation.Runner
	Log    *slog.Logger
}

type Options struct {
	// RequireBroker: sem RabbitMQ a API não sobe; o CLI segue sem eventos.
	RequireBroker bool
}

func New(cfg *config.Config, opts Options) (*App, error) {
	log := slog.Default()

	client, err := db.NewMongoClient(cfg.MongoURI)
	if err != nil {
		return nil, err
	}
	database := client.Database(cfg.MongoDB)

	a := &App{
		Cfg:            cfg,
		Client:         client,
		DB:             database,
		Companies:      repository.NewCompanyRepository(database),
		Certs:          repository.NewCertificateRepository(database),
		Municipalities: repository.NewMunicipalityRepository(database),
		Log:            log,
	}

	pub, err := broker.NewPublisher(cfg.RabbitURI, cfg.RabbitQueue)
	if err != nil {
		if opts.RequireBroker {
			_ = client.Disconnect(context.Background())
			return nil, err
		}
		log.Warn("rabbitmq_unavailable", "err", err)
	} else {
		a.Pub = pub
	}

	a.Filer = NewFiler(cfg, log)

	a.Runner = &automation.Runner{
		Companies:      a.Companies,
		Certs:          a.Certs,
		Municipalities: a.Municipalities,
		Filer:          a.Filer,
		NewBrowser: automation.NewChromeFactory(automation.ChromeOptions{
			Headless: cfg.ChromeHeadless,
			ExecPath: cfg.ChromePath,
			Logger:   log,
		}),
		Timeout: cfg.AutomationTimeout,
		Log:     log.With("cmp", "automation"),
	}
	if a.Pub != nil {
		a.Runner.Pub = a.Pub
	}
	return a, nil
}

// NewFiler só precisa do compartilhamento e da pasta de downloads; o CLI usa
// sem abrir conexão com o Mongo.
func NewFiler(cfg *config.Config, log *slog.Logger) *filing.Filer {
	return filing.New(filing.Options{
		SharePath:      cfg.NetworkSharePath,
		DownloadsDir:   cfg.DownloadsDir,
		CancelSentinel: cfg.CancelSentinel,
		PollInterval:   cfg.PollInterval,
		Timeout:        cfg.DownloadTimeout,
		ForbiddenNames: cfg.ForbiddenNames,
		Logger:         log,
	})
}

// Migrator devolve o migrador com a lista padrão.
func (a *App) Migrator() *migrations.Migrator {
	return migrations.New(a.DB, a.Log)
}

// Seed aplica as migrações e grava municípios e empresas de exemplo.
func (a *App) Seed(ctx context.Context) error {
	if _, err := a.Migrator().Up(ctx); err != nil {
		return err
	}
	if err := admin.SeedMunicipalities(ctx, a.Municipalities, a.Log); err != nil {
		return err
	}
	return admin.SeedCompanies(ctx, a.Companies, a.Certs, a.Municipalities, a.Log)
}

func (a *App) Close() {
	if a.Pub != nil {
		_ = a.Pub.Close()
	}
	_ = a.Client.Disconnect(context.Background())
}
