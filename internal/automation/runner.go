package automation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Werneck0live/controle-certidoes/internal/broker"
	"github.com/Werneck0live/controle-certidoes/internal/filing"
	"github.com/Werneck0live/controle-certidoes/internal/models"
	"github.com/Werneck0live/controle-certidoes/internal/repository"
	"github.com/Werneck0live/controle-certidoes/internal/utils"
)

const (
	stepTimeout    = 30 * time.Second
	slowTypeDelay  = 150 * time.Millisecond
	defaultTimeout = 8 * time.Minute
)

type CompanyStore interface {
	GetByID(ctx context.Context, id string) (*models.Company, error)
}

type CertificateStore interface {
	GetByID(ctx context.Context, id string) (*models.Certificate, error)
	SetExpiration(ctx context.Context, id string, validade *time.Time) error
}

type MunicipalityLookup interface {
	GetByKey(ctx context.Context, city, uf string) (*models.Municipality, error)
}

type Filer interface {
	Acquire(ctx context.Context) (release func(), err error)
	DownloadsDir() string
	WaitForDownload(ctx context.Context, since time.Time, wo filing.WaitOptions) (string, error)
	Place(src, companyName, cnpj, label string) (filing.Placement, error)
	WatchCancel(ctx context.Context) (context.Context, context.CancelFunc)
}

type EventPublisher interface {
	PublishEvent(ctx context.Context, ev broker.Event) error
}

type Result struct {
	Arquivo      string           `json:"arquivo"`
	DataValidade time.Time        `json:"data_validade"`
	Placement    filing.Placement `json:"placement"`
	Site         string           `json:"site,omitempty"`
}

type Runner struct {
	Companies      CompanyStore
	Certs          CertificateStore
	Municipalities MunicipalityLookup
	Filer          Filer
	Pub            EventPublisher // opcional
	NewBrowser     BrowserFactory
	Timeout        time.Duration
	Now            func() time.Time
	Log            *slog.Logger
}

func (r *Runner) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

func (r *Runner) logger() *slog.Logger {
	if r.Log != nil {
		return r.Log
	}
	return slog.Default()
}

// target junta o que a emissão precisa saber sobre a certidão.
type target struct {
	cert    *models.Certificate
	company *models.Company
	site    Site
}

func (r *Runner) load(ctx context.Context, certID string) (*target, error) {
	cert, err := r.Certs.GetByID(ctx, certID)
	if err != nil {
		return nil, fmt.Errorf("certificate %s: %w", certID, err)
	}
	company, err := r.Companies.GetByID(ctx, cert.CompanyID)
	if err != nil {
		return nil, fmt.Errorf("company %s: %w", cert.CompanyID, err)
	}
	var rule *models.Municipality
	if cert.Tipo == models.TypeMunicipal && r.Municipalities != nil {
		rule, err = r.Municipalities.GetByKey(ctx, company.Cidade, company.Estado)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("municipality %s: %w", company.Cidade, err)
		}
	}
	site, err := SiteFor(cert, company, rule)
	if err != nil {
		return nil, err
	}
	return &target{cert: cert, company: company, site: site}, nil
}

// Emit abre o portal da certidão, preenche o formulário, espera o download,
// arquiva o arquivo na pasta da empresa e grava a nova validade.
func (r *Runner) Emit(ctx context.Context, certID string) (*Result, error) {
	timeout := r.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	t, err := r.load(ctx, certID)
	if err != nil {
		r.fail(ctx, certID, nil, nil, err)
		return nil, err
	}
	log := r.logger().With("certidao_id", certID, "empresa_id", t.company.ID, "certidao", t.cert.Label(), "site", t.site.Nome)

	vars := Vars{
		CNPJ:          utils.SanitizeCNPJ(t.company.CNPJ),
		CNPJFormatado: utils.FormatCNPJ(t.company.CNPJ),
		Inscricao:     t.company.InscricaoMobiliaria,
	}
	if vars.Inscricao == "" && (!t.site.Inscricao.Empty() || (t.site.Script != nil && t.site.Script.usesInscricao())) {
		r.fail(ctx, certID, t.cert, t.company, ErrMissingInscricao)
		return nil, ErrMissingInscricao
	}

	release, err := r.Filer.Acquire(ctx)
	if err != nil {
		r.fail(ctx, certID, t.cert, t.company, err)
		return nil, err
	}
	defer release()

	// a partir daqui o sentinela (certctl cancelar) interrompe a emissão
	ctx, stopWatch := r.Filer.WatchCancel(ctx)
	defer stopWatch()

	b, err := r.NewBrowser(ctx)
	if err != nil {
		r.fail(ctx, certID, t.cert, t.company, err)
		return nil, err
	}
	defer b.Close()

	if err := b.SetDownloadDir(ctx, r.Filer.DownloadsDir()); err != nil {
		log.Warn("download_dir_error", "err", err)
	}

	since := r.now()
	log.Info("automation_start", "url", t.site.URL)
	if err := r.drive(ctx, b, t.site, vars, log); err != nil {
		err = cancelled(ctx, err)
		log.Error("automation_error", "err", err)
		r.fail(ctx, certID, t.cert, t.company, err)
		return nil, err
	}

	src, err := r.Filer.WaitForDownload(ctx, since, filing.WaitOptions{Forbidden: t.site.ForbiddenNames()})
	if err != nil {
		err = cancelled(ctx, err)
		log.Error("download_wait_error", "err", err)
		r.fail(ctx, certID, t.cert, t.company, err)
		return nil, err
	}
	res, err := r.finish(ctx, t, src)
	if err != nil {
		log.Error("filing_error", "src", src, "err", err)
		r.fail(ctx, certID, t.cert, t.company, err)
		return nil, err
	}
	log.Info("automation_done", "arquivo", res.Arquivo, "data_validade", res.DataValidade.Format("2006-01-02"))
	return res, nil
}

// cancelled troca o erro do navegador por ErrCancelled quando quem parou foi o sentinela.
func cancelled(ctx context.Context, err error) error {
	if cause := context.Cause(ctx); errors.Is(cause, filing.ErrCancelled) {
		return cause
	}
	return err
}

// File arquiva um arquivo já baixado (sem navegador) como a certidão certID.
func (r *Runner) File(ctx context.Context, certID, src string) (*Result, error) {
	t, err := r.load(ctx, certID)
	if err != nil && !errors.Is(err, ErrNoSite) && !errors.Is(err, ErrAutomationDisabled) {
		return nil, err
	}
	if t == nil {
		// sem site a validade cai no default do tipo
		cert, err := r.Certs.GetByID(ctx, certID)
		if err != nil {
			return nil, fmt.Errorf("certificate %s: %w", certID, err)
		}
		company, err := r.Companies.GetByID(ctx, cert.CompanyID)
		if err != nil {
			return nil, fmt.Errorf("company %s: %w", cert.CompanyID, err)
		}
		t = &target{cert: cert, company: company, site: Site{ValidityDays: fallbackValidity(cert.Tipo)}}
	}
	release, err := r.Filer.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()
	return r.finish(ctx, t, src)
}

func fallbackValidity(t models.CertificateType) int {
	if t == models.TypeMunicipal {
		return MunicipalValidityDays
	}
	return DefaultValidityDays
}

func (r *Runner) finish(ctx context.Context, t *target, src string) (*Result, error) {
	p, err := r.Filer.Place(src, t.company.Nome, t.company.CNPJ, t.cert.Label())
	if err != nil {
		return nil, err
	}
	days := t.site.ValidityDays
	if days <= 0 {
		days = fallbackValidity(t.cert.Tipo)
	}
	validade := models.DateOnly(r.now()).AddDate(0, 0, days)
	if err := r.Certs.SetExpiration(ctx, t.cert.ID, &validade); err != nil {
		return nil, fmt.Errorf("set expiration: %w", err)
	}
	r.publish(ctx, broker.Event{
		Acao:         broker.ActionCertificateEmitted,
		EmpresaID:    t.company.ID,
		Empresa:      t.company.Nome,
		CertidaoID:   t.cert.ID,
		Certidao:     t.cert.Label(),
		Status:       string(models.StatusVerde),
		DataValidade: validade.Format("2006-01-02"),
		Mensagem:     p.Path,
	})
	return &Result{Arquivo: p.Path, DataValidade: validade, Placement: p, Site: t.site.Nome}, nil
}

func (r *Runner) fail(ctx context.Context, certID string, cert *models.Certificate, company *models.Company, err error) {
	ev := broker.Event{Acao: broker.ActionCertificateFailed, CertidaoID: certID, Mensagem: err.Error()}
	if cert != nil {
		ev.Certidao = cert.Label()
	}
	if company != nil {
		ev.EmpresaID = company.ID
		ev.Empresa = company.Nome
	}
	r.publish(ctx, ev)
}

func (r *Runner) publish(ctx context.Context, ev broker.Event) {
	if r.Pub == nil {
		return
	}
	ev.Timestamp = r.now().UTC()
	// o ctx da emissão pode já ter vencido
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	if err := r.Pub.PublishEvent(pctx, ev); err != nil {
		r.logger().Warn("publish_error", "acao", ev.Acao, "err", err)
	}
}
