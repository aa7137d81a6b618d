package automation

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Werneck0live/controle-certidoes/internal/broker"
	"github.com/Werneck0live/controle-certidoes/internal/filing"
	"github.com/Werneck0live/controle-certidoes/internal/models"
	"github.com/Werneck0live/controle-certidoes/internal/repository"
)

/*

go test -v ./internal/automation -count=1

*/

// ---------- fakes ----------

type fakeBrowser struct {
	mu        sync.Mutex
	calls     []string
	failing   map[Selector]bool // seletores que falham em Type/Click
	downloads string
	fileName  string
	written   bool
	closed    bool

	onNavigate func(ctx context.Context) error
}

func (b *fakeBrowser) record(s string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = append(b.calls, s)
}

// o "portal" entrega o PDF assim que o documento é digitado
func (b *fakeBrowser) deliver() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.written || b.downloads == "" {
		return nil
	}
	b.written = true
	name := b.fileName
	if name == "" {
		name = "certidao-emitida.pdf"
	}
	return os.WriteFile(filepath.Join(b.downloads, name), []byte("%PDF-1.4"), 0o644)
}

func (b *fakeBrowser) Navigate(ctx context.Context, url string) error {
	b.record("navigate " + url)
	if b.onNavigate != nil {
		return b.onNavigate(ctx)
	}
	return nil
}

func (b *fakeBrowser) Click(_ context.Context, sel Selector) error {
	b.record("click " + sel.String())
	if b.failing[sel] {
		return errors.New("element not found")
	}
	return nil
}

func (b *fakeBrowser) WaitVisible(_ context.Context, sel Selector) error {
	b.record("wait " + sel.String())
	return nil
}

func (b *fakeBrowser) Type(_ context.Context, sel Selector, text string) error {
	b.record("type " + sel.String() + " " + text)
	if b.failing[sel] {
		return errors.New("element not found")
	}
	return b.deliver()
}

func (b *fakeBrowser) TypeSlow(_ context.Context, sel Selector, text string, _ time.Duration) error {
	b.record("typeslow " + sel.String() + " " + text)
	if b.failing[sel] {
		return errors.New("element not found")
	}
	return b.deliver()
}

func (b *fakeBrowser) TypeShadow(_ context.Context, host, inner, text string) error {
	b.record("shadow " + host + " " + inner + " " + text)
	return b.deliver()
}

func (b *fakeBrowser) PressEnter(_ context.Context, sel Selector) error {
	b.record("enter " + sel.String())
	return nil
}

func (b *fakeBrowser) SetDownloadDir(_ context.Context, dir string) error {
	b.record("downloads " + dir)
	return nil
}

func (b *fakeBrowser) Close() error {
	b.closed = true
	return nil
}

type fakeStores struct {
	companies map[string]*models.Company
	certs     map[string]*models.Certificate
	rules     map[string]*models.Municipality
	expiry    map[string]*time.Time
}

func (s *fakeStores) company() CompanyStore { return companyFn(s.getCompany) }

func (s *fakeStores) getCompany(_ context.Context, id string) (*models.Company, error) {
	if c, ok := s.companies[id]; ok {
		return c, nil
	}
	return nil, repository.ErrNotFound
}

type companyFn func(ctx context.Context, id string) (*models.Company, error)

func (f companyFn) GetByID(ctx context.Context, id string) (*models.Company, error) {
	return f(ctx, id)
}

func (s *fakeStores) GetByID(_ context.Context, id string) (*models.Certificate, error) {
	if c, ok := s.certs[id]; ok {
		return c, nil
	}
	return nil, repository.ErrNotFound
}

func (s *fakeStores) SetExpiration(_ context.Context, id string, v *time.Time) error {
	s.expiry[id] = v
	return nil
}

func (s *fakeStores) GetByKey(_ context.Context, city, uf string) (*models.Municipality, error) {
	for _, k := range models.LookupKeys(city, uf) {
		if m, ok := s.rules[k]; ok {
			return m, nil
		}
	}
	return nil, repository.ErrNotFound
}

type pubMock struct {
	mu     sync.Mutex
	events []broker.Event
}

func (p *pubMock) PublishEvent(_ context.Context, ev broker.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *pubMock) last() broker.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.events) == 0 {
		return broker.Event{}
	}
	return p.events[len(p.events)-1]
}

// ---------- setup ----------

var fixedNow = time.Date(2026, 3, 10, 14, 30, 0, 0, time.UTC)

type env struct {
	runner    *Runner
	filer     *filing.Filer
	stores    *fakeStores
	browser   *fakeBrowser
	pub       *pubMock
	share     string
	downloads string
}

func newEnv(t *testing.T) *env {
	t.Helper()
	share := t.TempDir()
	downloads := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(share, "PADARIA SAO JOAO LTDA"), 0o755))

	f := filing.New(filing.Options{
		SharePath:      share,
		DownloadsDir:   downloads,
		CancelSentinel: filepath.Join(t.TempDir(), "cancelar"),
		PollInterval:   10 * time.Millisecond,
		Timeout:        2 * time.Second,
	})

	company := &models.Company{ID: "11222333000181", CNPJ: "11222333000181", Nome: "Padaria São João Ltda", Estado: "RS", Cidade: "Imbé"}
	stores := &fakeStores{
		companies: map[string]*models.Company{company.ID: company},
		certs:     map[string]*models.Certificate{},
		rules:     map[string]*models.Municipality{},
		expiry:    map[string]*time.Time{},
	}
	for i, tp := range models.AllTypes {
		id := fmt.Sprintf("c%d", i)
		stores.certs[id] = &models.Certificate{ID: id, CompanyID: company.ID, Tipo: tp}
	}

	b := &fakeBrowser{downloads: downloads, failing: map[Selector]bool{}}
	pub := &pubMock{}
	r := &Runner{
		Companies:      stores.company(),
		Certs:          stores,
		Municipalities: stores,
		Filer:          f,
		Pub:            pub,
		NewBrowser:     func(context.Context) (Browser, error) { return b, nil },
		Timeout:        5 * time.Second,
		Now:            func() time.Time { return fixedNow },
	}
	return &env{runner: r, filer: f, stores: stores, browser: b, pub: pub, share: share, downloads: downloads}
}

func (e *env) certID(t *testing.T, tp models.CertificateType) string {
	t.Helper()
	for id, c := range e.stores.certs {
		if c.Tipo == tp {
			return id
		}
	}
	t.Fatalf("no certificate of type %s", tp)
	return ""
}

// ---------- tests ----------

func TestEmit_Federal(t *testing.T) {
	e := newEnv(t)
	id := e.certID(t, models.TypeFederal)

	res, err := e.runner.Emit(context.Background(), id)
	require.NoError(t, err)

	want := filepath.Join(e.share, "PADARIA SAO JOAO LTDA", "CERTIDOES", "CERTIDAO FEDERAL.pdf")
	assert.Equal(t, want, res.Arquivo)
	assert.FileExists(t, want)

	wantDate := time.Date(2026, 9, 6, 0, 0, 0, 0, time.UTC) // 10/03 + 180 dias
	assert.Equal(t, wantDate, res.DataValidade)
	require.NotNil(t, e.stores.expiry[id])
	assert.Equal(t, wantDate, *e.stores.expiry[id])

	assert.Contains(t, e.browser.calls, "navigate "+federalSite.URL)
	assert.Contains(t, e.browser.calls, `type css_selector=input[id^="id"][name="niContribuinte"] 11222333000181`)
	assert.True(t, e.browser.closed)

	ev := e.pub.last()
	assert.Equal(t, broker.ActionCertificateEmitted, ev.Acao)
	assert.Equal(t, "2026-09-06", ev.DataValidade)
	assert.Equal(t, "Federal", ev.Certidao)
}

func TestEmit_SelectorFallback(t *testing.T) {
	e := newEnv(t)
	id := e.certID(t, models.TypeFGTS)
	e.browser.failing[Sel("mainForm:txtInscricao1", "id")] = true
	e.browser.failing[Sel("mainForm:txtInscricao1", "css_selector")] = true

	_, err := e.runner.Emit(context.Background(), id)
	require.NoError(t, err)

	assert.Contains(t, e.browser.calls, "type name=mainForm:txtInscricao1 11222333000181")
	assert.FileExists(t, filepath.Join(e.share, "PADARIA SAO JOAO LTDA", "CERTIDOES", "CERTIDAO FGTS.pdf"))
}

func TestEmit_AllSelectorsFail(t *testing.T) {
	e := newEnv(t)
	id := e.certID(t, models.TypeFGTS)
	for _, by := range []string{"id", "css_selector", "name"} {
		e.browser.failing[Sel("mainForm:txtInscricao1", by)] = true
	}

	_, err := e.runner.Emit(context.Background(), id)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "type cnpj")
	assert.Equal(t, broker.ActionCertificateFailed, e.pub.last().Acao)
	assert.Nil(t, e.stores.expiry[id])
}

func TestEmit_PreFillClickFailureIsNotFatal(t *testing.T) {
	e := newEnv(t)
	e.stores.companies["11222333000181"].Estado = "MT"
	id := e.certID(t, models.TypeEstadual)
	e.browser.failing[Sel("input[value='CNPJ']", "css_selector")] = true

	_, err := e.runner.Emit(context.Background(), id)
	require.NoError(t, err)
	// MT digita devagar
	assert.Contains(t, e.browser.calls, "typeslow name=numeroDocumento 11222333000181")
}

func TestEmit_EstadualUnknownState(t *testing.T) {
	e := newEnv(t)
	e.stores.companies["11222333000181"].Estado = "AC"
	id := e.certID(t, models.TypeEstadual)

	_, err := e.runner.Emit(context.Background(), id)
	assert.ErrorIs(t, err, ErrNoSite)
	assert.Equal(t, broker.ActionCertificateFailed, e.pub.last().Acao)
	assert.Empty(t, e.browser.calls)
}

func TestEmit_MunicipalDisabled(t *testing.T) {
	e := newEnv(t)
	e.stores.rules["imbe"] = &models.Municipality{Nome: "Imbé", URLCertidao: "https://imbe.example/cnd", CNPJFieldID: "cnpj", By: "id", AutomacaoAtiva: false}
	id := e.certID(t, models.TypeMunicipal)

	_, err := e.runner.Emit(context.Background(), id)
	assert.ErrorIs(t, err, ErrAutomationDisabled)
}

func TestEmit_MunicipalWithoutRule(t *testing.T) {
	e := newEnv(t)
	id := e.certID(t, models.TypeMunicipal)

	_, err := e.runner.Emit(context.Background(), id)
	assert.ErrorIs(t, err, ErrNoSite)
}

func TestEmit_MunicipalRuleFromOtherState(t *testing.T) {
	e := newEnv(t)
	// regra de Imbé/SC não vale para a empresa de Imbé/RS
	e.stores.rules[models.MunicipalityKey("Imbé", "SC")] = &models.Municipality{
		Nome: "Imbé", Estado: "SC", URLCertidao: "https://imbe.sc.example/cnd", CNPJFieldID: "cnpj", By: "id", AutomacaoAtiva: true,
	}
	id := e.certID(t, models.TypeMunicipal)

	_, err := e.runner.Emit(context.Background(), id)
	assert.ErrorIs(t, err, ErrNoSite)
	assert.Empty(t, e.browser.calls)
}

func TestEmit_MunicipalScript(t *testing.T) {
	e := newEnv(t)
	e.stores.companies["11222333000181"].InscricaoMobiliaria = "004512"
	e.stores.rules["imbe"] = &models.Municipality{
		Nome:           "Imbé",
		URLCertidao:    "https://imbe.example/cnd",
		AutomacaoAtiva: true,
		ConfigAutomacao: `{"passos":[
			{"acao":"clicar","seletor":"#aceito","opcional":true},
			{"acao":"digitar","seletor":"doc","by":"id","valor":"{cnpj_formatado}"},
			{"acao":"digitar","seletor":"insc","by":"name","valor":"{inscricao}"},
			{"acao":"pausa","ms":5},
			{"acao":"enter","seletor":"insc","by":"name"}
		],"nomes_proibidos":["boleto"],"validade_dias":60}`,
	}
	e.browser.failing[Sel("#aceito", "")] = true
	id := e.certID(t, models.TypeMunicipal)

	// arquivo proibido chega antes e precisa ser ignorado
	require.NoError(t, os.WriteFile(filepath.Join(e.downloads, "boleto-iptu.pdf"), []byte("x"), 0o644))

	res, err := e.runner.Emit(context.Background(), id)
	require.NoError(t, err)

	assert.Contains(t, e.browser.calls, "type id=doc 11.222.333/0001-81")
	assert.Contains(t, e.browser.calls, "type name=insc 004512")
	assert.Contains(t, e.browser.calls, "enter name=insc")
	assert.Equal(t, time.Date(2026, 5, 9, 0, 0, 0, 0, time.UTC), res.DataValidade)
	assert.FileExists(t, filepath.Join(e.downloads, "boleto-iptu.pdf"))
	assert.Equal(t, "CERTIDAO MUNICIPAL.pdf", filepath.Base(res.Arquivo))
}

func TestEmit_MissingInscricao(t *testing.T) {
	e := newEnv(t)
	e.stores.rules["imbe"] = &models.Municipality{
		Nome: "Imbé", URLCertidao: "https://imbe.example/cnd", AutomacaoAtiva: true,
		CNPJFieldID: "cnpj", By: "id", InscricaoFieldID: "inscricao", InscricaoFieldBy: "id",
	}
	id := e.certID(t, models.TypeMunicipal)

	_, err := e.runner.Emit(context.Background(), id)
	assert.ErrorIs(t, err, ErrMissingInscricao)
	assert.Empty(t, e.browser.calls)
}

func TestEmit_CompanyFolderNotFound(t *testing.T) {
	e := newEnv(t)
	e.stores.companies["11222333000181"].Nome = "Construtora Horizonte"
	id := e.certID(t, models.TypeTrabalhista)

	_, err := e.runner.Emit(context.Background(), id)
	assert.ErrorIs(t, err, filing.ErrCompanyFolderNotFound)
	ev := e.pub.last()
	assert.Equal(t, broker.ActionCertificateFailed, ev.Acao)
	assert.Equal(t, "Construtora Horizonte", ev.Empresa)
}

func TestFile_ExistingDownload(t *testing.T) {
	e := newEnv(t)
	id := e.certID(t, models.TypeTrabalhista)
	src := filepath.Join(e.downloads, "cndt.pdf")
	require.NoError(t, os.WriteFile(src, []byte("%PDF"), 0o644))

	res, err := e.runner.File(context.Background(), id, src)
	require.NoError(t, err)
	assert.Equal(t, "CERTIDAO TRABALHISTA.pdf", filepath.Base(res.Arquivo))
	assert.NoFileExists(t, src)
	assert.Equal(t, time.Date(2026, 9, 6, 0, 0, 0, 0, time.UTC), res.DataValidade)
	assert.Empty(t, e.browser.calls)
}

func TestFile_WithoutSiteUsesFallbackValidity(t *testing.T) {
	e := newEnv(t)
	id := e.certID(t, models.TypeMunicipal)
	src := filepath.Join(e.downloads, "municipal.pdf")
	require.NoError(t, os.WriteFile(src, []byte("%PDF"), 0o644))

	res, err := e.runner.File(context.Background(), id, src)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 6, 8, 0, 0, 0, 0, time.UTC), res.DataValidade)
}

// cancelar enquanto o portal ainda carrega interrompe a emissão
func TestEmit_CancelledDuringNavigation(t *testing.T) {
	e := newEnv(t)
	id := e.certID(t, models.TypeFederal)
	e.browser.onNavigate = func(ctx context.Context) error {
		require.NoError(t, e.filer.Cancel())
		<-ctx.Done() // página lenta
		return ctx.Err()
	}

	_, err := e.runner.Emit(context.Background(), id)
	require.ErrorIs(t, err, filing.ErrCancelled)
	assert.Nil(t, e.stores.expiry[id])
	assert.Equal(t, broker.ActionCertificateFailed, e.pub.last().Acao)
}

// sentinela de um cancelamento anterior não derruba a próxima emissão
func TestEmit_StaleSentinelIgnored(t *testing.T) {
	e := newEnv(t)
	id := e.certID(t, models.TypeFederal)
	require.NoError(t, e.filer.Cancel())

	_, err := e.runner.Emit(context.Background(), id)
	require.NoError(t, err)
	assert.NotNil(t, e.stores.expiry[id])
}
