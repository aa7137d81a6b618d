package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Werneck0live/controle-certidoes/internal/automation"
	"github.com/Werneck0live/controle-certidoes/internal/broker"
	"github.com/Werneck0live/controle-certidoes/internal/filing"
	"github.com/Werneck0live/controle-certidoes/internal/models"
	"github.com/Werneck0live/controle-certidoes/internal/repository"
)

/*

go test -run 'TestCertificate' -v ./internal/handlers -count=1

*/

// certStore simula o repositório mantendo uma certidão em memória
func certStore(c *models.Certificate) *certMock {
	return &certMock{
		GetByIDFn: func(_ context.Context, id string) (*models.Certificate, error) {
			if id != c.ID {
				return nil, repository.ErrNotFound
			}
			cp := *c
			return &cp, nil
		},
		SetExpirationFn: func(_ context.Context, id string, v *time.Time) error {
			if id != c.ID {
				return repository.ErrNotFound
			}
			c.DataValidade = v
			c.StatusEspecial = ""
			return nil
		},
		SetSpecialStatusFn: func(_ context.Context, id string, st models.SpecialStatus) error {
			if id != c.ID {
				return repository.ErrNotFound
			}
			c.StatusEspecial = st
			return nil
		},
	}
}

func newCertificateHandler(cm *certMock, em Emitter, pm *pubMock) *CertificateHandler {
	rm := &repoMock{GetByIDFn: func(_ context.Context, id string) (*models.Company, error) {
		return &models.Company{ID: id, Nome: "Padaria"}, nil
	}}
	h := NewCertificateHandler(cm, rm, em, pm)
	h.Now = func() time.Time { return fixedNow }
	return h
}

func TestCertificate_SetExpiration(t *testing.T) {
	cases := []struct {
		body       string
		wantDate   string
		wantStatus models.Status
	}{
		{`{"data_validade":"2026-03-15"}`, "2026-03-15", models.StatusAmarelo},
		{`{"data_validade":"31/12/2026"}`, "2026-12-31", models.StatusVerde},
		{`{"data_validade":"2026-03-09"}`, "2026-03-09", models.StatusVermelho},
		{`{"data_validade":null}`, "", models.StatusCinza},
	}
	for _, tc := range cases {
		c := &models.Certificate{ID: "c1", CompanyID: companyID, Tipo: models.TypeFederal, StatusEspecial: models.StatusPendente}
		pm := &pubMock{}
		h := newCertificateHandler(certStore(c), nil, pm)

		rr := httptest.NewRecorder()
		h.CertificateByID(rr, httptest.NewRequest(http.MethodPut, "/api/certificates/c1", bytes.NewBufferString(tc.body)))

		if rr.Code != http.StatusOK {
			t.Fatalf("%s: status=%d body=%s", tc.body, rr.Code, rr.Body.String())
		}
		var got models.CertificateView
		if err := json.Unmarshal(rr.Body.Bytes(), &got); err != nil {
			t.Fatalf("json inválido: %v", err)
		}
		if got.Status != tc.wantStatus || got.StatusEspecial != "" {
			t.Fatalf("%s: status=%s especial=%q", tc.body, got.Status, got.StatusEspecial)
		}
		if len(pm.Events) != 1 || pm.Events[0].Acao != broker.ActionCertificateUpdated || pm.Events[0].DataValidade != tc.wantDate {
			t.Fatalf("%s: evento inesperado %#v", tc.body, pm.Events)
		}
		if pm.Events[0].Empresa != "Padaria" {
			t.Fatalf("evento sem empresa: %#v", pm.Events[0])
		}
	}
}

func TestCertificate_SetExpiration_BadRequest(t *testing.T) {
	for _, body := range []string{`{"data_validade":"2026-13-40"}`, `{"validade":"2026-01-01"}`, `{`} {
		c := &models.Certificate{ID: "c1"}
		h := newCertificateHandler(certStore(c), nil, &pubMock{})
		rr := httptest.NewRecorder()
		h.CertificateByID(rr, httptest.NewRequest(http.MethodPut, "/api/certificates/c1", bytes.NewBufferString(body)))
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("%s: status=%d want=%d", body, rr.Code, http.StatusBadRequest)
		}
	}
}

func TestCertificate_SetExpiration_NotFound(t *testing.T) {
	h := newCertificateHandler(certStore(&models.Certificate{ID: "c1"}), nil, &pubMock{})
	rr := httptest.NewRecorder()
	h.CertificateByID(rr, httptest.NewRequest(http.MethodPut, "/api/certificates/zz", bytes.NewBufferString(`{"data_validade":"2026-01-01"}`)))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status=%d want=%d", rr.Code, http.StatusNotFound)
	}
}

func TestCertificate_Pending(t *testing.T) {
	venc := time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC)
	c := &models.Certificate{ID: "c1", CompanyID: companyID, Tipo: models.TypeFGTS, DataValidade: &venc}
	pm := &pubMock{}
	h := newCertificateHandler(certStore(c), nil, pm)

	rr := httptest.NewRecorder()
	h.CertificateByID(rr, httptest.NewRequest(http.MethodPatch, "/api/certificates/c1", bytes.NewBufferString(`{"pendente":true}`)))
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	var got models.CertificateView
	_ = json.Unmarshal(rr.Body.Bytes(), &got)
	if got.Status != models.StatusVermelho || got.StatusEspecial != models.StatusPendente {
		t.Fatalf("pendente deve ficar vermelho: %#v", got)
	}

	rr = httptest.NewRecorder()
	h.CertificateByID(rr, httptest.NewRequest(http.MethodPatch, "/api/certificates/c1", bytes.NewBufferString(`{"pendente":false}`)))
	_ = json.Unmarshal(rr.Body.Bytes(), &got)
	if got.Status != models.StatusVerde {
		t.Fatalf("sem pendente volta para a cor da data: %#v", got)
	}
	if a := pm.actions(); len(a) != 2 || a[0] != broker.ActionCertificatePending {
		t.Fatalf("eventos inesperados: %v", a)
	}

	rr = httptest.NewRecorder()
	h.CertificateByID(rr, httptest.NewRequest(http.MethodPatch, "/api/certificates/c1", bytes.NewBufferString(`{}`)))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("sem pendente: status=%d want=%d", rr.Code, http.StatusBadRequest)
	}
}

func TestCertificate_Emit_OK(t *testing.T) {
	em := &emitterMock{EmitFn: func(_ context.Context, id string) (*automation.Result, error) {
		if id != "c1" {
			t.Fatalf("id inesperado: %s", id)
		}
		return &automation.Result{
			Arquivo:      `Z:\PASTAS EMPRESAS\PADARIA\CERTIDOES\CERTIDAO FEDERAL.pdf`,
			DataValidade: time.Date(2026, 9, 6, 0, 0, 0, 0, time.UTC),
		}, nil
	}}
	h := newCertificateHandler(&certMock{}, em, &pubMock{})

	rr := httptest.NewRecorder()
	h.CertificateByID(rr, httptest.NewRequest(http.MethodPost, "/api/certificates/c1/emitir", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	var got EmitResponse
	_ = json.Unmarshal(rr.Body.Bytes(), &got)
	if !got.OK || got.DataValidade != "2026-09-06" || got.Arquivo == "" {
		t.Fatalf("payload inesperado: %#v", got)
	}
}

func TestCertificate_Emit_Errors(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{automation.ErrAutomationDisabled, http.StatusUnprocessableEntity},
		{automation.ErrNoSite, http.StatusUnprocessableEntity},
		{fmt.Errorf("certificate x: %w", repository.ErrNotFound), http.StatusNotFound},
		{filing.ErrDownloadTimeout, http.StatusGatewayTimeout},
		{filing.ErrCancelled, http.StatusConflict},
		{filing.ErrCompanyFolderNotFound, http.StatusUnprocessableEntity},
		{fmt.Errorf("chrome crashed"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		em := &emitterMock{EmitFn: func(context.Context, string) (*automation.Result, error) { return nil, tc.err }}
		h := newCertificateHandler(&certMock{}, em, &pubMock{})
		rr := httptest.NewRecorder()
		h.CertificateByID(rr, httptest.NewRequest(http.MethodPost, "/api/certificates/c1/emitir", nil))
		if rr.Code != tc.want {
			t.Fatalf("%v: status=%d want=%d", tc.err, rr.Code, tc.want)
		}
		var got EmitResponse
		_ = json.Unmarshal(rr.Body.Bytes(), &got)
		if got.OK || got.Error == "" {
			t.Fatalf("%v: payload inesperado %#v", tc.err, got)
		}
	}
}

func TestCertificate_Emit_MethodNotAllowed(t *testing.T) {
	h := newCertificateHandler(&certMock{}, &emitterMock{}, &pubMock{})
	rr := httptest.NewRecorder()
	h.CertificateByID(rr, httptest.NewRequest(http.MethodGet, "/api/certificates/c1/emitir", nil))
	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status=%d want=%d", rr.Code, http.StatusMethodNotAllowed)
	}
}
