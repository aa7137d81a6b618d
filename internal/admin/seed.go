// Package admin reúne tarefas avulsas (seed) executadas por -task ou pelo certctl.
package admin

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/Werneck0live/controle-certidoes/internal/models"
	"github.com/Werneck0live/controle-certidoes/internal/repository"
	"github.com/Werneck0live/controle-certidoes/internal/utils"
)

//go:embed seeds/companies.json
var companiesJSON []byte

//go:embed seeds/municipios.json
var municipiosJSON []byte

type seedItem struct {
	CNPJ                string `json:"cnpj"`
	Nome                string `json:"nome"`
	Estado              string `json:"estado"`
	Cidade              string `json:"cidade"`
	InscricaoMobiliaria string `json:"inscricao_mobiliaria"`
}

type CompanyCreator interface {
	Create(ctx context.Context, c *models.Company) (string, error)
}

type CertificateCreator interface {
	CreateMany(ctx context.Context, certs []models.Certificate) error
}

type MunicipalityUpserter interface {
	Upsert(ctx context.Context, m *models.Municipality) (string, error)
	GetByKey(ctx context.Context, city, uf string) (*models.Municipality, error)
}

// SeedMunicipalities grava as regras de município por chave (upsert).
// Rodar de novo só atualiza os campos.
func SeedMunicipalities(ctx context.Context, repo MunicipalityUpserter, log *slog.Logger) error {
	var items []models.Municipality
	if err := json.Unmarshal(municipiosJSON, &items); err != nil {
		return err
	}
	for i := range items {
		m := &items[i]
		ictx, cancel := context.WithTimeout(ctx, 3*time.Second)
		id, err := repo.Upsert(ictx, m)
		cancel()
		if err != nil {
			return err
		}
		log.Info("seed_municipality_upserted", "nome", m.Nome, "id", id)
	}
	log.Info("seed_municipalities_done", "count", len(items))
	return nil
}

// SeedCompanies é idempotente: cria se não existir (com as certidões padrão); se já existir, ignora.
// Rode SeedMunicipalities antes para a municipal sair desdobrada onde for exigido.
func SeedCompanies(ctx context.Context, repo CompanyCreator, certs CertificateCreator, rules MunicipalityUpserter, log *slog.Logger) error {
	var items []seedItem
	if err := json.Unmarshal(companiesJSON, &items); err != nil {
		return err
	}

	for _, s := range items {
		cnpj := utils.SanitizeCNPJ(s.CNPJ)
		if !utils.ValidateCNPJ(cnpj) {
			log.Warn("seed_skip_invalid_cnpj", "raw", s.CNPJ)
			continue
		}

		c := models.Company{
			ID:                  cnpj, // o código usa CNPJ como ID
			CNPJ:                cnpj,
			Nome:                s.Nome,
			Estado:              strings.ToUpper(s.Estado),
			Cidade:              s.Cidade,
			InscricaoMobiliaria: s.InscricaoMobiliaria,
		}

		// timeout curto por item pra não travar
		ictx, cancel := context.WithTimeout(ctx, 3*time.Second)
		_, err := repo.Create(ictx, &c)
		if err != nil {
			cancel()
			if errors.Is(err, repository.ErrDuplicateCNPJ) {
				log.Info("seed_company_exists", "cnpj", cnpj)
				continue
			}
			return err
		}

		var rule *models.Municipality
		if m, err := rules.GetByKey(ictx, c.Cidade, c.Estado); err == nil {
			rule = m
		}
		err = certs.CreateMany(ictx, models.DefaultCertificates(&c, rule, time.Now()))
		cancel()
		if err != nil && !errors.Is(err, repository.ErrDuplicateCertificate) {
			return err
		}
		log.Info("seed_company_created", "cnpj", cnpj, "municipal_mobiliario", rule != nil && rule.ExigeMobiliario)
	}

	log.Info("seed_companies_done", "count", len(items))
	return nil
}
