package handlers

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Werneck0live/controle-certidoes/internal/automation"
	"github.com/Werneck0live/controle-certidoes/internal/broker"
	"github.com/Werneck0live/controle-certidoes/internal/dashboard"
	"github.com/Werneck0live/controle-certidoes/internal/models"
)

type repoMock struct {
	GetAllFn  func(ctx context.Context, limit, skip int64) ([]models.Company, error)
	CreateFn  func(ctx context.Context, c *models.Company) (string, error)
	GetByIDFn func(ctx context.Context, id string) (*models.Company, error)
	UpdateFn  func(ctx context.Context, id string, upd *models.Company, clearFields []string) error
	DeleteFn  func(ctx context.Context, id string) error
}

func (m *repoMock) GetAll(ctx context.Context, limit, skip int64) ([]models.Company, error) {
	if m.GetAllFn == nil {
		return nil, errors.New("GetAllFn not set")
	}
	return m.GetAllFn(ctx, limit, skip)
}
func (m *repoMock) Create(ctx context.Context, c *models.Company) (string, error) {
	if m.CreateFn == nil {
		return "", errors.New("CreateFn not set")
	}
	return m.CreateFn(ctx, c)
}
func (m *repoMock) GetByID(ctx context.Context, id string) (*models.Company, error) {
	if m.GetByIDFn == nil {
		return nil, errors.New("GetByIDFn not set")
	}
	return m.GetByIDFn(ctx, id)
}
func (m *repoMock) Update(ctx context.Context, id string, upd *models.Company, clearFields ...string) error {
	if m.UpdateFn == nil {
		return errors.New("UpdateFn not set")
	}
	return m.UpdateFn(ctx, id, upd, clearFields)
}
func (m *repoMock) Delete(ctx context.Context, id string) error {
	if m.DeleteFn == nil {
		return errors.New("DeleteFn not set")
	}
	return m.DeleteFn(ctx, id)
}

type certMock struct {
	CreateManyFn       func(ctx context.Context, certs []models.Certificate) error
	GetByIDFn          func(ctx context.Context, id string) (*models.Certificate, error)
	ListByCompanyFn    func(ctx context.Context, companyID string) ([]models.Certificate, error)
	SetExpirationFn    func(ctx context.Context, id string, validade *time.Time) error
	SetSpecialStatusFn func(ctx context.Context, id string, st models.SpecialStatus) error
}

func (m *certMock) CreateMany(ctx context.Context, certs []models.Certificate) error {
	if m.CreateManyFn == nil {
		return errors.New("CreateManyFn not set")
	}
	return m.CreateManyFn(ctx, certs)
}
func (m *certMock) GetByID(ctx context.Context, id string) (*models.Certificate, error) {
	if m.GetByIDFn == nil {
		return nil, errors.New("GetByIDFn not set")
	}
	return m.GetByIDFn(ctx, id)
}
func (m *certMock) ListByCompany(ctx context.Context, companyID string) ([]models.Certificate, error) {
	if m.ListByCompanyFn == nil {
		return nil, errors.New("ListByCompanyFn not set")
	}
	return m.ListByCompanyFn(ctx, companyID)
}
func (m *certMock) SetExpiration(ctx context.Context, id string, validade *time.Time) error {
	if m.SetExpirationFn == nil {
		return errors.New("SetExpirationFn not set")
	}
	return m.SetExpirationFn(ctx, id, validade)
}
func (m *certMock) SetSpecialStatus(ctx context.Context, id string, st models.SpecialStatus) error {
	if m.SetSpecialStatusFn == nil {
		return errors.New("SetSpecialStatusFn not set")
	}
	return m.SetSpecialStatusFn(ctx, id, st)
}

type ruleMock struct {
	CreateFn   func(ctx context.Context, m *models.Municipality) (string, error)
	GetByIDFn  func(ctx context.Context, id string) (*models.Municipality, error)
	GetByKeyFn func(ctx context.Context, city, uf string) (*models.Municipality, error)
	GetAllFn   func(ctx context.Context) ([]models.Municipality, error)
	ReplaceFn  func(ctx context.Context, id string, m *models.Municipality) error
	DeleteFn   func(ctx context.Context, id string) error
}

func (m *ruleMock) Create(ctx context.Context, mu *models.Municipality) (string, error) {
	if m.CreateFn == nil {
		return "", errors.New("CreateFn not set")
	}
	return m.CreateFn(ctx, mu)
}
func (m *ruleMock) GetByID(ctx context.Context, id string) (*models.Municipality, error) {
	if m.GetByIDFn == nil {
		return nil, errors.New("GetByIDFn not set")
	}
	return m.GetByIDFn(ctx, id)
}
func (m *ruleMock) GetByKey(ctx context.Context, city, uf string) (*models.Municipality, error) {
	if m.GetByKeyFn == nil {
		return nil, errors.New("GetByKeyFn not set")
	}
	return m.GetByKeyFn(ctx, city, uf)
}
func (m *ruleMock) GetAll(ctx context.Context) ([]models.Municipality, error) {
	if m.GetAllFn == nil {
		return nil, errors.New("GetAllFn not set")
	}
	return m.GetAllFn(ctx)
}
func (m *ruleMock) Replace(ctx context.Context, id string, mu *models.Municipality) error {
	if m.ReplaceFn == nil {
		return errors.New("ReplaceFn not set")
	}
	return m.ReplaceFn(ctx, id, mu)
}
func (m *ruleMock) Delete(ctx context.Context, id string) error {
	if m.DeleteFn == nil {
		return errors.New("DeleteFn not set")
	}
	return m.DeleteFn(ctx, id)
}

// pubMock guarda os eventos publicados
type pubMock struct {
	mu      sync.Mutex
	Events  []broker.Event
	CloseFn func() error
}

func (p *pubMock) PublishEvent(_ context.Context, ev broker.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Events = append(p.Events, ev)
	return nil
}
func (p *pubMock) Close() error {
	if p.CloseFn == nil {
		return nil
	}
	return p.CloseFn()
}
func (p *pubMock) actions() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.Events))
	for _, e := range p.Events {
		out = append(out, e.Acao)
	}
	return out
}

type emitterMock struct {
	EmitFn func(ctx context.Context, certID string) (*automation.Result, error)
}

func (m *emitterMock) Emit(ctx context.Context, certID string) (*automation.Result, error) {
	if m.EmitFn == nil {
		return nil, errors.New("EmitFn not set")
	}
	return m.EmitFn(ctx, certID)
}

type dashMock struct {
	LoadFn func(ctx context.Context, f dashboard.Filter) (dashboard.Summary, error)
}

func (m *dashMock) Load(ctx context.Context, f dashboard.Filter) (dashboard.Summary, error) {
	return m.LoadFn(ctx, f)
}
