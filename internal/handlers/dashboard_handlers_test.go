package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Werneck0live/controle-certidoes/internal/dashboard"
	"github.com/Werneck0live/controle-certidoes/internal/models"
)

func TestDashboard_Page(t *testing.T) {
	var gotFilter dashboard.Filter
	svc := &dashMock{LoadFn: func(_ context.Context, f dashboard.Filter) (dashboard.Summary, error) {
		gotFilter = f
		return dashboard.Build([]models.Company{{ID: companyID, CNPJ: companyID, Nome: "Padaria São João"}}, nil, fixedNow, f), nil
	}}
	h := NewDashboardHandler(svc)

	rr := httptest.NewRecorder()
	h.Page(rr, httptest.NewRequest(http.MethodGet, "/?q=padaria", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	if !strings.Contains(rr.Body.String(), "Padaria São João") {
		t.Fatalf("html sem a empresa: %s", rr.Body.String())
	}
	if gotFilter.Query != "padaria" {
		t.Fatalf("filtro inesperado: %#v", gotFilter)
	}
	if ct := rr.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Fatalf("content-type=%s", ct)
	}

	rr = httptest.NewRecorder()
	h.Page(rr, httptest.NewRequest(http.MethodGet, "/outra", nil))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status=%d want=%d", rr.Code, http.StatusNotFound)
	}
}

func TestDashboard_JSON(t *testing.T) {
	svc := &dashMock{LoadFn: func(_ context.Context, f dashboard.Filter) (dashboard.Summary, error) {
		if f.Status != models.StatusVermelho {
			t.Fatalf("filtro inesperado: %#v", f)
		}
		return dashboard.Summary{Total: 3}, nil
	}}
	h := NewDashboardHandler(svc)
	rr := httptest.NewRecorder()
	h.JSON(rr, httptest.NewRequest(http.MethodGet, "/api/dashboard?status=vermelho", nil))
	var got dashboard.Summary
	_ = json.Unmarshal(rr.Body.Bytes(), &got)
	if rr.Code != http.StatusOK || got.Total != 3 {
		t.Fatalf("status=%d payload=%#v", rr.Code, got)
	}
}

func TestDashboard_LoadError(t *testing.T) {
	svc := &dashMock{LoadFn: func(context.Context, dashboard.Filter) (dashboard.Summary, error) {
		return dashboard.Summary{}, errors.New("mongo down")
	}}
	h := NewDashboardHandler(svc)
	rr := httptest.NewRecorder()
	h.JSON(rr, httptest.NewRequest(http.MethodGet, "/api/dashboard", nil))
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status=%d want=%d", rr.Code, http.StatusInternalServerError)
	}
}
