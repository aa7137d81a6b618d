package automation

import (
	"errors"
	"strings"

	"github.com/Werneck0live/controle-certidoes/internal/models"
)

var (
	ErrAutomationDisabled = errors.New("automation disabled for this municipality")
	ErrNoSite             = errors.New("no automation site configured")
	ErrMissingInscricao   = errors.New("company has no inscricao mobiliaria")
)

// Validade padrão, em dias, quando o site não define outra.
const (
	DefaultValidityDays   = 30
	MunicipalValidityDays = 90
)

// Site descreve como emitir uma certidão num portal.
type Site struct {
	Nome         string
	URL          string
	CNPJField    Selector
	Inscricao    Selector
	PreFillClick Selector
	Submit       Selector
	ShadowHost   string
	ShadowInput  string
	SlowTyping   bool
	ValidityDays int
	Script       *Script
}

var federalSite = Site{
	Nome:         "Receita Federal",
	URL:          "https://servicos.receitafederal.gov.br/servico/certidoes/#/home/cnpj",
	CNPJField:    Sel(`input[id^="id"][name="niContribuinte"]`, "css_selector"),
	ValidityDays: 180,
}

var fgtsSite = Site{
	Nome:         "Caixa - CRF",
	URL:          "https://consulta-crf.caixa.gov.br/consultacrf/pages/consultaEmpregador.jsf",
	CNPJField:    Sel("mainForm:txtInscricao1", "id"),
	ValidityDays: 30,
}

var trabalhistaSite = Site{
	Nome:         "TST - CNDT",
	URL:          "https://cndt-certidao.tst.jus.br/inicio.faces",
	PreFillClick: Sel("input[value='Emitir Certidão']", "css_selector"),
	CNPJField:    Sel("gerarCertidaoForm:cpfCnpj", "id"),
	ValidityDays: 180,
}

// estadualSites por UF.
var estadualSites = map[string]Site{
	"RS": {
		Nome:         "SEFAZ RS",
		URL:          "https://www.sefaz.rs.gov.br/sat/CertidaoSitFiscalSolic.aspx",
		CNPJField:    Sel("campoCnpj", "name"),
		ValidityDays: 60,
	},
	"SP": {
		Nome:         "SEFAZ SP",
		URL:          "https://www10.fazenda.sp.gov.br/CertidaoNegativaDeb/Pages/EmissaoCertidaoNegativa.aspx",
		PreFillClick: Sel("input[value='cnpjradio']", "css_selector"),
		CNPJField:    Sel("MainContent_txtDocumento", "id"),
		ValidityDays: 60,
	},
	"MT": {
		Nome:         "SEFAZ MT",
		URL:          "https://www.sefaz.mt.gov.br/cnd/certidao/servlet/ServletRotd?origem=60",
		PreFillClick: Sel("input[value='CNPJ']", "css_selector"),
		CNPJField:    Sel("numeroDocumento", "name"),
		SlowTyping:   true,
		ValidityDays: 60,
	},
}

// SiteFor devolve o portal da certidão. Para a municipal, rule é a regra da
// cidade da empresa (nil se não cadastrada).
func SiteFor(cert *models.Certificate, company *models.Company, rule *models.Municipality) (Site, error) {
	switch cert.Tipo {
	case models.TypeFederal:
		return federalSite, nil
	case models.TypeFGTS:
		return fgtsSite, nil
	case models.TypeTrabalhista:
		return trabalhistaSite, nil
	case models.TypeEstadual:
		s, ok := estadualSites[strings.ToUpper(strings.TrimSpace(company.Estado))]
		if !ok {
			return Site{}, ErrNoSite
		}
		return s, nil
	case models.TypeMunicipal:
		return municipalSite(rule)
	}
	return Site{}, ErrNoSite
}

func municipalSite(rule *models.Municipality) (Site, error) {
	if rule == nil || strings.TrimSpace(rule.URLCertidao) == "" {
		return Site{}, ErrNoSite
	}
	if !rule.AutomacaoAtiva {
		return Site{}, ErrAutomationDisabled
	}
	s := Site{
		Nome:         rule.Nome,
		URL:          rule.URLCertidao,
		CNPJField:    Sel(rule.CNPJFieldID, rule.By),
		Inscricao:    Sel(rule.InscricaoFieldID, rule.InscricaoFieldBy),
		PreFillClick: Sel(rule.PreFillClickID, rule.PreFillClickBy),
		Submit:       Sel(rule.SubmitID, rule.SubmitBy),
		ShadowHost:   strings.TrimSpace(rule.ShadowHostSelector),
		ShadowInput:  strings.TrimSpace(rule.InnerInputSelector),
		SlowTyping:   rule.UsarSlowTyping,
		ValidityDays: rule.ValidadeDias,
	}
	if s.ValidityDays <= 0 {
		s.ValidityDays = MunicipalValidityDays
	}
	if strings.TrimSpace(rule.ConfigAutomacao) != "" {
		sc, err := ParseScript(rule.ConfigAutomacao)
		if err != nil {
			return Site{}, err
		}
		s.Script = sc
		if sc.ValidadeDias > 0 {
			s.ValidityDays = sc.ValidadeDias
		}
	}
	if s.CNPJField.Empty() && s.ShadowHost == "" && s.Script == nil {
		return Site{}, ErrNoSite
	}
	return s, nil
}

// ForbiddenNames são os trechos de nome de arquivo ignorados na espera do download,
// somados aos globais do Filer.
func (s Site) ForbiddenNames() []string {
	if s.Script == nil {
		return nil
	}
	return s.Script.NomesProibidos
}
