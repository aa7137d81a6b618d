package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/Werneck0live/controle-certidoes/internal/broker"
	"github.com/Werneck0live/controle-certidoes/internal/models"
	"github.com/Werneck0live/controle-certidoes/internal/repository"
	"github.com/Werneck0live/controle-certidoes/internal/utils"
)

type MunicipalityHandler struct {
	Repo MunicipalityRepository
	Pub  Publisher
}

func NewMunicipalityHandler(repo MunicipalityRepository, pub Publisher) *MunicipalityHandler {
	return &MunicipalityHandler{Repo: repo, Pub: pub}
}

func municipalityFromDTO(d MunicipalityDTO) models.Municipality {
	m := models.Municipality{
		Nome:               strings.TrimSpace(d.Nome),
		Estado:             strings.ToUpper(strings.TrimSpace(d.Estado)),
		URLCertidao:        strings.TrimSpace(d.URLCertidao),
		CNPJFieldID:        strings.TrimSpace(d.CNPJFieldID),
		By:                 strings.ToLower(strings.TrimSpace(d.By)),
		InscricaoFieldID:   strings.TrimSpace(d.InscricaoFieldID),
		InscricaoFieldBy:   strings.ToLower(strings.TrimSpace(d.InscricaoFieldBy)),
		PreFillClickID:     strings.TrimSpace(d.PreFillClickID),
		PreFillClickBy:     strings.ToLower(strings.TrimSpace(d.PreFillClickBy)),
		SubmitID:           strings.TrimSpace(d.SubmitID),
		SubmitBy:           strings.ToLower(strings.TrimSpace(d.SubmitBy)),
		ShadowHostSelector: strings.TrimSpace(d.ShadowHostSelector),
		InnerInputSelector: strings.TrimSpace(d.InnerInputSelector),
		AutomacaoAtiva:     true,
		ValidadeDias:       d.ValidadeDias,
		UsarSlowTyping:     d.UsarSlowTyping,
		ConfigAutomacao:    strings.TrimSpace(d.ConfigAutomacao),
		ExigeMobiliario:    d.ExigeMobiliario,
	}
	if d.AutomacaoAtiva != nil {
		m.AutomacaoAtiva = *d.AutomacaoAtiva
	}
	return m
}

func (h *MunicipalityHandler) Municipalities(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		list, err := h.Repo.GetAll(ctx)
		if err != nil {
			utils.WriteJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
		utils.WriteJSON(w, http.StatusOK, list)

	case http.MethodPost:
		var dto MunicipalityDTO
		if err := utils.DecodeStrict(r.Body, &dto); err != nil {
			utils.BadRequest(w, utils.FormatUnknownFieldError(err))
			return
		}
		if err := validateMunicipalityDTO(dto); err != nil {
			utils.BadRequest(w, err.Error())
			return
		}
		m := municipalityFromDTO(dto)

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		if _, err := h.Repo.Create(ctx, &m); err != nil {
			if errors.Is(err, repository.ErrDuplicateMunicipality) {
				utils.WriteJSON(w, http.StatusConflict, map[string]string{"error": "municipality already exists"})
				return
			}
			utils.WriteJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
		h.publish(&m, "cadastro")
		utils.WriteJSON(w, http.StatusCreated, m)

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *MunicipalityHandler) MunicipalityByID(w http.ResponseWriter, r *http.Request) {
	parts := pathParts(r.URL.Path, "/api/municipios")
	if len(parts) != 1 || parts[0] == "" {
		utils.WriteJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		return
	}
	id := parts[0]

	switch r.Method {
	case http.MethodGet:
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		m, err := h.Repo.GetByID(ctx, id)
		if err != nil {
			utils.WriteJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
			return
		}
		utils.WriteJSON(w, http.StatusOK, m)

	// PUT = replace
	case http.MethodPut:
		var dto MunicipalityDTO
		if err := utils.DecodeStrict(r.Body, &dto); err != nil {
			utils.BadRequest(w, utils.FormatUnknownFieldError(err))
			return
		}
		if err := validateMunicipalityDTO(dto); err != nil {
			utils.BadRequest(w, err.Error())
			return
		}
		m := municipalityFromDTO(dto)

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		if err := h.Repo.Replace(ctx, id, &m); err != nil {
			switch {
			case errors.Is(err, repository.ErrNotFound):
				utils.WriteJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
			case errors.Is(err, repository.ErrDuplicateMunicipality):
				utils.WriteJSON(w, http.StatusConflict, map[string]string{"error": "municipality already exists"})
			default:
				utils.WriteJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			}
			return
		}
		h.publish(&m, "edição")
		utils.WriteJSON(w, http.StatusOK, m)

	case http.MethodDelete:
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		m, err := h.Repo.GetByID(ctx, id)
		if err != nil {
			utils.WriteJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
			return
		}
		if err := h.Repo.Delete(ctx, id); err != nil {
			utils.WriteJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
		h.publish(m, "exclusão")
		w.WriteHeader(http.StatusNoContent)

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *MunicipalityHandler) publish(m *models.Municipality, what string) {
	publish(h.Pub, broker.Event{
		Acao:     broker.ActionMunicipalityChanged,
		Mensagem: what + " do município " + m.Nome,
	})
}
