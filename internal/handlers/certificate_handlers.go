package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/Werneck0live/controle-certidoes/internal/automation"
	"github.com/Werneck0live/controle-certidoes/internal/broker"
	"github.com/Werneck0live/controle-certidoes/internal/filing"
	"github.com/Werneck0live/controle-certidoes/internal/models"
	"github.com/Werneck0live/controle-certidoes/internal/repository"
	"github.com/Werneck0live/controle-certidoes/internal/utils"
)

// Emitter roda a automação de uma certidão (automation.Runner).
type Emitter interface {
	Emit(ctx context.Context, certID string) (*automation.Result, error)
}

type CertificateHandler struct {
	Certs     CertificateRepository
	Companies Repository
	Emitter   Emitter
	Pub       Publisher
	Now       func() time.Time
}

func NewCertificateHandler(certs CertificateRepository, companies Repository, em Emitter, pub Publisher) *CertificateHandler {
	return &CertificateHandler{Certs: certs, Companies: companies, Emitter: em, Pub: pub}
}

func (h *CertificateHandler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

// CertificateByID atende /api/certificates/{id} e /api/certificates/{id}/emitir.
func (h *CertificateHandler) CertificateByID(w http.ResponseWriter, r *http.Request) {
	parts := pathParts(r.URL.Path, "/api/certificates")
	if len(parts) == 0 || len(parts) > 2 || parts[0] == "" {
		utils.WriteJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		return
	}
	id := parts[0]
	if len(parts) == 2 {
		if parts[1] != "emitir" {
			utils.WriteJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
			return
		}
		h.emit(w, r, id)
		return
	}

	switch r.Method {
	case http.MethodGet:
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		c, err := h.Certs.GetByID(ctx, id)
		if err != nil {
			utils.WriteJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
			return
		}
		utils.WriteJSON(w, http.StatusOK, c.View(h.now()))

	// nova data de validade (limpa Pendente)
	case http.MethodPut:
		var dto ExpirationDTO
		if err := utils.DecodeStrict(r.Body, &dto); err != nil {
			utils.BadRequest(w, utils.FormatUnknownFieldError(err))
			return
		}
		var validade *time.Time
		if dto.DataValidade != nil && strings.TrimSpace(*dto.DataValidade) != "" {
			d, err := utils.ParseDate(*dto.DataValidade)
			if err != nil {
				utils.BadRequest(w, err.Error())
				return
			}
			validade = &d
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		if err := h.Certs.SetExpiration(ctx, id, validade); err != nil {
			h.writeRepoError(w, err)
			return
		}
		h.respondUpdated(ctx, w, id, broker.ActionCertificateUpdated)

	// {"pendente": true|false}
	case http.MethodPatch:
		var dto PendingDTO
		if err := utils.DecodeStrict(r.Body, &dto); err != nil {
			utils.BadRequest(w, utils.FormatUnknownFieldError(err))
			return
		}
		if dto.Pendente == nil {
			utils.BadRequest(w, "pendente is required")
			return
		}
		st := models.SpecialStatus("")
		if *dto.Pendente {
			st = models.StatusPendente
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		if err := h.Certs.SetSpecialStatus(ctx, id, st); err != nil {
			h.writeRepoError(w, err)
			return
		}
		h.respondUpdated(ctx, w, id, broker.ActionCertificatePending)

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *CertificateHandler) writeRepoError(w http.ResponseWriter, err error) {
	if errors.Is(err, repository.ErrNotFound) {
		utils.WriteJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		return
	}
	utils.WriteJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
}

// respondUpdated relê a certidão, publica o evento e devolve a visão com a cor.
func (h *CertificateHandler) respondUpdated(ctx context.Context, w http.ResponseWriter, id, acao string) {
	c, err := h.Certs.GetByID(ctx, id)
	if err != nil {
		utils.WriteJSON(w, http.StatusOK, map[string]string{"id": id})
		return
	}
	view := c.View(h.now())

	ev := broker.Event{
		Acao:       acao,
		EmpresaID:  c.CompanyID,
		CertidaoID: c.ID,
		Certidao:   view.Label,
		Status:     string(view.Status),
		Timestamp:  h.now().UTC(),
	}
	if c.DataValidade != nil {
		ev.DataValidade = c.DataValidade.Format("2006-01-02")
	}
	if h.Companies != nil {
		if comp, err := h.Companies.GetByID(ctx, c.CompanyID); err == nil {
			ev.Empresa = comp.Nome
		}
	}
	publish(h.Pub, ev)
	utils.WriteJSON(w, http.StatusOK, view)
}

func (h *CertificateHandler) emit(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if h.Emitter == nil {
		utils.WriteJSON(w, http.StatusServiceUnavailable, EmitResponse{Error: "automation not configured"})
		return
	}

	// a automação publica os próprios eventos
	res, err := h.Emitter.Emit(r.Context(), id)
	if err != nil {
		utils.WriteJSON(w, emitStatus(err), EmitResponse{Error: err.Error()})
		return
	}
	utils.WriteJSON(w, http.StatusOK, EmitResponse{
		OK:           true,
		Arquivo:      res.Arquivo,
		DataValidade: res.DataValidade.Format("2006-01-02"),
	})
}

func emitStatus(err error) int {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, automation.ErrNoSite),
		errors.Is(err, automation.ErrAutomationDisabled),
		errors.Is(err, automation.ErrMissingInscricao),
		errors.Is(err, filing.ErrCompanyFolderNotFound):
		return http.StatusUnprocessableEntity
	case errors.Is(err, filing.ErrCancelled):
		return http.StatusConflict
	case errors.Is(err, filing.ErrDownloadTimeout), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, filing.ErrShareUnavailable):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}
