// Package dashboard monta a visão geral das certidões: uma linha por empresa,
// com a cor de cada certidão calculada para o dia de hoje.
package dashboard

import (
	"context"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/Werneck0live/controle-certidoes/internal/models"
	"github.com/Werneck0live/controle-certidoes/internal/textnorm"
	"github.com/Werneck0live/controle-certidoes/internal/utils"
)

type Row struct {
	Company      models.Company           `json:"empresa"`
	CNPJ         string                   `json:"cnpj_formatado"`
	Certificates []models.CertificateView `json:"certidoes"`
}

type Summary struct {
	Rows   []Row                 `json:"linhas"`
	Counts map[models.Status]int `json:"contagem"`
	Total  int                   `json:"total_empresas"`
	Filter Filter                `json:"filtro"`
	Today  string                `json:"hoje"`
}

// Filter: Status mantém só empresas com ao menos uma certidão dessa cor (e só
// essas certidões); Query busca em nome, CNPJ e cidade sem considerar acentos.
type Filter struct {
	Status models.Status `json:"status,omitempty"`
	Query  string        `json:"q,omitempty"`
}

// ParseFilter lê ?status= e ?q=. Status desconhecido é ignorado.
func ParseFilter(q url.Values) Filter {
	f := Filter{Query: strings.TrimSpace(q.Get("q"))}
	if st, ok := models.ParseStatus(q.Get("status")); ok {
		f.Status = st
	}
	return f
}

// Build monta as linhas ordenadas por nome. As contagens por cor consideram
// todas as certidões das empresas que passaram na busca textual, antes do
// filtro de cor, para a barra de filtros mostrar o total de cada cor.
func Build(companies []models.Company, certs map[string][]models.Certificate, today time.Time, f Filter) Summary {
	s := Summary{
		Rows:   make([]Row, 0, len(companies)),
		Counts: make(map[models.Status]int, len(models.AllStatuses)),
		Filter: f,
		Today:  today.Format("2006-01-02"),
	}
	for _, st := range models.AllStatuses {
		s.Counts[st] = 0
	}

	for _, c := range companies {
		if !matchesQuery(c, f.Query) {
			continue
		}
		views := make([]models.CertificateView, 0, len(certs[c.ID]))
		for i := range certs[c.ID] {
			v := certs[c.ID][i].View(today)
			s.Counts[v.Status]++
			if f.Status != "" && v.Status != f.Status {
				continue
			}
			views = append(views, v)
		}
		if f.Status != "" && len(views) == 0 {
			continue
		}
		sortCertificates(views)
		s.Rows = append(s.Rows, Row{Company: c, CNPJ: utils.FormatCNPJ(c.CNPJ), Certificates: views})
	}

	sort.SliceStable(s.Rows, func(i, j int) bool {
		return textnorm.Normalize(s.Rows[i].Company.Nome) < textnorm.Normalize(s.Rows[j].Company.Nome)
	})
	s.Total = len(s.Rows)
	return s
}

func matchesQuery(c models.Company, q string) bool {
	if q == "" {
		return true
	}
	nq := textnorm.Normalize(q)
	if nq != "" && (strings.Contains(textnorm.Normalize(c.Nome), nq) || strings.Contains(textnorm.Normalize(c.Cidade), nq)) {
		return true
	}
	if d := textnorm.Digits(q); d != "" && strings.Contains(c.CNPJ, d) {
		return true
	}
	return false
}

// ordem fixa dos tipos; Geral antes de Mobiliário
func sortCertificates(v []models.CertificateView) {
	rank := make(map[models.CertificateType]int, len(models.AllTypes))
	for i, t := range models.AllTypes {
		rank[t] = i
	}
	sort.SliceStable(v, func(i, j int) bool {
		if rank[v[i].Tipo] != rank[v[j].Tipo] {
			return rank[v[i].Tipo] < rank[v[j].Tipo]
		}
		return v[i].Subtipo < v[j].Subtipo
	})
}

type CompanyLister interface {
	GetAll(ctx context.Context, limit, skip int64) ([]models.Company, error)
}

type CertificateLister interface {
	ListByCompanies(ctx context.Context, companyIDs []string) (map[string][]models.Certificate, error)
}

// Service carrega empresas e certidões do banco e monta o Summary.
type Service struct {
	Companies CompanyLister
	Certs     CertificateLister
	Now       func() time.Time
}

func (s *Service) Load(ctx context.Context, f Filter) (Summary, error) {
	companies, err := s.Companies.GetAll(ctx, 0, 0)
	if err != nil {
		return Summary{}, err
	}
	ids := make([]string, 0, len(companies))
	for _, c := range companies {
		ids = append(ids, c.ID)
	}
	certs, err := s.Certs.ListByCompanies(ctx, ids)
	if err != nil {
		return Summary{}, err
	}
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	return Build(companies, certs, now(), f), nil
}
