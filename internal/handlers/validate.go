package handlers

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/Werneck0live/controle-certidoes/internal/automation"
)

// limite da inscrição mobiliária no cadastro das prefeituras
const maxInscricaoLen = 6

var validBy = map[string]bool{"": true, "id": true, "name": true, "css_selector": true, "xpath": true}

func validateUF(uf string) error {
	uf = strings.TrimSpace(uf)
	if len(uf) != 2 {
		return errors.New("estado must be a 2-letter UF")
	}
	for _, r := range uf {
		if (r < 'A' || r > 'Z') && (r < 'a' || r > 'z') {
			return errors.New("estado must be a 2-letter UF")
		}
	}
	return nil
}

func validateInscricao(s string) error {
	if utf8.RuneCountInString(strings.TrimSpace(s)) > maxInscricaoLen {
		return fmt.Errorf("inscricao_mobiliaria must have at most %d characters", maxInscricaoLen)
	}
	return nil
}

func validateCreateDTO(d CompanyCreateDTO) error {
	if strings.TrimSpace(d.CNPJ) == "" {
		return errors.New("cnpj is required")
	}
	if strings.TrimSpace(d.Nome) == "" {
		return errors.New("nome is required")
	}
	if err := validateUF(d.Estado); err != nil {
		return err
	}
	if strings.TrimSpace(d.Cidade) == "" {
		return errors.New("cidade is required")
	}
	return validateInscricao(d.InscricaoMobiliaria)
}

func validateUpdateDTO(d CompanyPatchDTO) error {
	if d.Nome != nil && strings.TrimSpace(*d.Nome) == "" {
		return errors.New("nome cannot be empty")
	}
	if d.Estado != nil {
		if err := validateUF(*d.Estado); err != nil {
			return err
		}
	}
	if d.Cidade != nil && strings.TrimSpace(*d.Cidade) == "" {
		return errors.New("cidade cannot be empty")
	}
	if d.InscricaoMobiliaria != nil {
		return validateInscricao(*d.InscricaoMobiliaria)
	}
	return nil
}

func validateMunicipalityDTO(d MunicipalityDTO) error {
	if strings.TrimSpace(d.Nome) == "" {
		return errors.New("nome is required")
	}
	if d.Estado != "" {
		if err := validateUF(d.Estado); err != nil {
			return err
		}
	}
	if d.URLCertidao != "" {
		u, err := url.Parse(d.URLCertidao)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return errors.New("url_certidao must be an http(s) URL")
		}
	}
	for field, by := range map[string]string{
		"by": d.By, "inscricao_field_by": d.InscricaoFieldBy,
		"pre_fill_click_by": d.PreFillClickBy, "submit_by": d.SubmitBy,
	} {
		if !validBy[strings.ToLower(strings.TrimSpace(by))] {
			return fmt.Errorf("%s must be one of id, name, css_selector, xpath", field)
		}
	}
	if (d.ShadowHostSelector == "") != (d.InnerInputSelector == "") {
		return errors.New("shadow_host_selector and inner_input_selector go together")
	}
	if d.ValidadeDias < 0 {
		return errors.New("validade_dias must be >= 0")
	}
	if strings.TrimSpace(d.ConfigAutomacao) != "" {
		if _, err := automation.ParseScript(d.ConfigAutomacao); err != nil {
			return err
		}
	}
	return nil
}
