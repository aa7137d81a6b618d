package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Werneck0live/controle-certidoes/internal/broker"
	"github.com/Werneck0live/controle-certidoes/internal/models"
	"github.com/Werneck0live/controle-certidoes/internal/repository"
	"github.com/Werneck0live/controle-certidoes/internal/utils"
)

type Repository interface {
	GetAll(ctx context.Context, limit, skip int64) ([]models.Company, error)
	Create(ctx context.Context, c *models.Company) (string, error)
	GetByID(ctx context.Context, id string) (*models.Company, error)
	Update(ctx context.Context, id string, upd *models.Company, clearFields ...string) error
	Delete(ctx context.Context, id string) error
}

type CertificateRepository interface {
	CreateMany(ctx context.Context, certs []models.Certificate) error
	GetByID(ctx context.Context, id string) (*models.Certificate, error)
	ListByCompany(ctx context.Context, companyID string) ([]models.Certificate, error)
	SetExpiration(ctx context.Context, id string, validade *time.Time) error
	SetSpecialStatus(ctx context.Context, id string, st models.SpecialStatus) error
}

type MunicipalityRepository interface {
	Create(ctx context.Context, m *models.Municipality) (string, error)
	GetByID(ctx context.Context, id string) (*models.Municipality, error)
	GetByKey(ctx context.Context, city, uf string) (*models.Municipality, error)
	GetAll(ctx context.Context) ([]models.Municipality, error)
	Replace(ctx context.Context, id string, m *models.Municipality) error
	Delete(ctx context.Context, id string) error
}

type Publisher interface {
	PublishEvent(ctx context.Context, ev broker.Event) error
	Close() error
}

type CompanyHandler struct {
	Repo  Repository
	Certs CertificateRepository
	Rules MunicipalityRepository
	Pub   Publisher
	Now   func() time.Time
}

func NewCompanyHandler(repo Repository, certs CertificateRepository, rules MunicipalityRepository, pub Publisher) *CompanyHandler {
	return &CompanyHandler{Repo: repo, Certs: certs, Rules: rules, Pub: pub}
}

func (h *CompanyHandler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

// pathParts devolve os segmentos após prefix: "/api/companies/1/certificates" -> ["1","certificates"].
func pathParts(path, prefix string) []string {
	rest := strings.Trim(strings.TrimPrefix(path, prefix), "/")
	if rest == "" {
		return nil
	}
	return strings.Split(rest, "/")
}

func (h *CompanyHandler) Health(w http.ResponseWriter, r *http.Request) {
	utils.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *CompanyHandler) Companies(w http.ResponseWriter, r *http.Request) {

	switch r.Method {

	// "getAll", "getAll-pagination"(skip, limit)
	case http.MethodGet:
		q := r.URL.Query()
		limit := int64(50)
		skip := int64(0)
		if l := q.Get("limit"); l != "" {
			if v, err := strconv.ParseInt(l, 10, 64); err == nil && v > 0 && v <= 200 {
				limit = v
			}
		}
		if s := q.Get("skip"); s != "" {
			if v, err := strconv.ParseInt(s, 10, 64); err == nil && v >= 0 {
				skip = v
			}
		}
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		list, err := h.Repo.GetAll(ctx, limit, skip)
		if err != nil {
			utils.WriteJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
		utils.WriteJSON(w, http.StatusOK, list)

	// create (+ certidões padrão)
	case http.MethodPost:
		var dto CompanyCreateDTO
		if err := utils.DecodeStrict(r.Body, &dto); err != nil {
			utils.BadRequest(w, utils.FormatUnknownFieldError(err))
			return
		}
		if err := validateCreateDTO(dto); err != nil {
			utils.BadRequest(w, err.Error())
			return
		}

		c := models.Company{
			CNPJ:                utils.SanitizeCNPJ(dto.CNPJ),
			Nome:                strings.TrimSpace(dto.Nome),
			Estado:              strings.ToUpper(strings.TrimSpace(dto.Estado)),
			Cidade:              strings.TrimSpace(dto.Cidade),
			InscricaoMobiliaria: strings.TrimSpace(dto.InscricaoMobiliaria),
		}
		if !utils.ValidateCNPJ(c.CNPJ) {
			utils.BadRequest(w, "invalid cnpj")
			return
		}
		c.ID = c.CNPJ

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		if _, err := h.Repo.Create(ctx, &c); err != nil {
			if errors.Is(err, repository.ErrDuplicateCNPJ) {
				utils.WriteJSON(w, http.StatusConflict, map[string]string{"error": "cnpj already exists"})
				return
			}
			utils.WriteJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}

		// município sem regra cadastrada = uma certidão municipal só
		var rule *models.Municipality
		if h.Rules != nil {
			if m, err := h.Rules.GetByKey(ctx, c.Cidade, c.Estado); err == nil {
				rule = m
			} else if !errors.Is(err, repository.ErrNotFound) {
				slog.Warn("municipality_lookup_error", "cidade", c.Cidade, "err", err)
			}
		}
		certs := models.DefaultCertificates(&c, rule, h.now())
		if err := h.Certs.CreateMany(ctx, certs); err != nil {
			// desfaz a empresa para não ficar sem certidões
			if derr := h.Repo.Delete(ctx, c.ID); derr != nil {
				slog.Error("company_rollback_error", "id", c.ID, "err", derr)
			}
			utils.WriteJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}

		h.publishCompany(broker.ActionCompanyCreated, &c)
		utils.WriteJSON(w, http.StatusCreated, companyWithCertificates(&c, certs, h.now()))

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

type companyResponse struct {
	models.Company
	Certidoes []models.CertificateView `json:"certidoes"`
}

func companyWithCertificates(c *models.Company, certs []models.Certificate, today time.Time) companyResponse {
	views := make([]models.CertificateView, 0, len(certs))
	for i := range certs {
		views = append(views, certs[i].View(today))
	}
	return companyResponse{Company: *c, Certidoes: views}
}

func (h *CompanyHandler) CompanyByID(w http.ResponseWriter, r *http.Request) {
	parts := pathParts(r.URL.Path, "/api/companies")
	if len(parts) == 0 || len(parts) > 2 || parts[0] == "" {
		utils.WriteJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		return
	}
	id := utils.SanitizeCNPJ(parts[0])
	if len(parts) == 2 {
		if parts[1] != "certificates" {
			utils.WriteJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
			return
		}
		h.companyCertificates(w, r, id)
		return
	}

	switch r.Method {
	case http.MethodGet:
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		c, err := h.Repo.GetByID(ctx, id)
		if err != nil {
			utils.WriteJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
			return
		}
		certs, err := h.Certs.ListByCompany(ctx, id)
		if err != nil {
			utils.WriteJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
		utils.WriteJSON(w, http.StatusOK, companyWithCertificates(c, certs, h.now()))

	case http.MethodPatch:
		var dto CompanyPatchDTO
		if err := utils.DecodeStrict(r.Body, &dto); err != nil {
			utils.BadRequest(w, utils.FormatUnknownFieldError(err))
			return
		}

		if err := validateUpdateDTO(dto); err != nil {
			utils.BadRequest(w, err.Error())
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		if _, err := h.Repo.GetByID(ctx, id); err != nil {
			utils.WriteJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
			return
		}

		// Monta o modelo para update apenas com campos presentes
		upd := models.Company{}
		var clearFields []string
		if dto.Nome != nil {
			upd.Nome = strings.TrimSpace(*dto.Nome)
		}
		if dto.Estado != nil {
			upd.Estado = strings.ToUpper(strings.TrimSpace(*dto.Estado))
		}
		if dto.Cidade != nil {
			upd.Cidade = strings.TrimSpace(*dto.Cidade)
		}
		if dto.InscricaoMobiliaria != nil {
			upd.InscricaoMobiliaria = strings.TrimSpace(*dto.InscricaoMobiliaria)
			// "" remove a inscrição
			if upd.InscricaoMobiliaria == "" {
				clearFields = append(clearFields, repository.FieldInscricaoMobiliaria)
			}
		}

		if err := h.Repo.Update(ctx, id, &upd, clearFields...); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				utils.WriteJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
				return
			}
			utils.WriteJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}

		// Retorna o doc atualizado
		c2, _ := h.Repo.GetByID(ctx, id)
		if c2 != nil {
			h.publishCompany(broker.ActionCompanyUpdated, c2)
			utils.WriteJSON(w, http.StatusOK, c2)
			return
		}
		utils.WriteJSON(w, http.StatusOK, map[string]string{"id": id})

	case http.MethodDelete:
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		// Busca antes de deletar para publicar o nome
		c, err := h.Repo.GetByID(ctx, id)
		if err != nil {
			utils.WriteJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
			return
		}

		// certidões saem junto (cascade no repositório)
		if err := h.Repo.Delete(ctx, id); err != nil {
			utils.WriteJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}

		h.publishCompany(broker.ActionCompanyDeleted, c)
		w.WriteHeader(http.StatusNoContent)

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *CompanyHandler) companyCertificates(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	if _, err := h.Repo.GetByID(ctx, id); err != nil {
		utils.WriteJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		return
	}
	certs, err := h.Certs.ListByCompany(ctx, id)
	if err != nil {
		utils.WriteJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	today := h.now()
	views := make([]models.CertificateView, 0, len(certs))
	for i := range certs {
		views = append(views, certs[i].View(today))
	}
	utils.WriteJSON(w, http.StatusOK, views)
}

func (h *CompanyHandler) publishCompany(acao string, c *models.Company) {
	if c == nil {
		return
	}
	publish(h.Pub, broker.Event{
		Acao:      acao,
		EmpresaID: c.ID,
		Empresa:   c.Nome,
		Timestamp: h.now().UTC(),
	})
}

// publish não bloqueia a resposta por mais de 2s nem falha a requisição.
func publish(pub Publisher, ev broker.Event) {
	if pub == nil {
		return
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := pub.PublishEvent(ctx, ev); err != nil {
		slog.Warn("publish_error", "acao", ev.Acao, "err", err)
	}
}
