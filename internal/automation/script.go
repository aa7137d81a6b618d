package automation

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Ações aceitas no roteiro de automação.
const (
	ActionClick    = "clicar"
	ActionType     = "digitar"
	ActionWait     = "esperar"
	ActionPause    = "pausa"
	ActionNavigate = "navegar"
	ActionEnter    = "enter"
)

// Script é o roteiro opcional gravado em Municipality.ConfigAutomacao:
//
//	{"passos":[{"acao":"digitar","seletor":"cnpj","by":"id","valor":"{cnpj}"}],
//	 "nomes_proibidos":["boleto"],"validade_dias":60}
type Script struct {
	Passos         []Step   `json:"passos"`
	NomesProibidos []string `json:"nomes_proibidos,omitempty"`
	ValidadeDias   int      `json:"validade_dias,omitempty"`
}

type Step struct {
	Acao    string `json:"acao"`
	Seletor string `json:"seletor,omitempty"`
	By      string `json:"by,omitempty"`
	Valor   string `json:"valor,omitempty"`
	Host    string `json:"host,omitempty"` // shadow host para "digitar" em web components
	Ms      int    `json:"ms,omitempty"`
	Lento   bool   `json:"lento,omitempty"`
	// Opcional: falha no passo só gera aviso
	Opcional bool `json:"opcional,omitempty"`
}

func (s Step) Selector() Selector { return Sel(s.Seletor, s.By) }

// ParseScript valida o JSON do roteiro.
func ParseScript(raw string) (*Script, error) {
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.DisallowUnknownFields()
	var sc Script
	if err := dec.Decode(&sc); err != nil {
		return nil, fmt.Errorf("config_automacao: %w", err)
	}
	for i, st := range sc.Passos {
		if err := st.validate(); err != nil {
			return nil, fmt.Errorf("config_automacao: passo %d: %w", i+1, err)
		}
	}
	return &sc, nil
}

func (s Step) validate() error {
	switch s.Acao {
	case ActionClick, ActionWait, ActionEnter:
		if strings.TrimSpace(s.Seletor) == "" {
			return fmt.Errorf("%q requires seletor", s.Acao)
		}
	case ActionType:
		if strings.TrimSpace(s.Seletor) == "" {
			return fmt.Errorf("%q requires seletor", s.Acao)
		}
		if s.Valor == "" {
			return fmt.Errorf("%q requires valor", s.Acao)
		}
	case ActionPause:
		if s.Ms <= 0 {
			return fmt.Errorf("%q requires ms > 0", s.Acao)
		}
	case ActionNavigate:
		if strings.TrimSpace(s.Valor) == "" {
			return fmt.Errorf("%q requires valor (url)", s.Acao)
		}
	default:
		return fmt.Errorf("unknown acao %q", s.Acao)
	}
	return nil
}

// Vars são os valores substituídos nos placeholders dos passos.
type Vars struct {
	CNPJ          string
	CNPJFormatado string
	Inscricao     string
}

func (v Vars) Expand(s string) string {
	return strings.NewReplacer(
		"{cnpj}", v.CNPJ,
		"{cnpj_formatado}", v.CNPJFormatado,
		"{inscricao}", v.Inscricao,
	).Replace(s)
}

func (s *Script) usesInscricao() bool {
	for _, st := range s.Passos {
		if strings.Contains(st.Valor, "{inscricao}") {
			return true
		}
	}
	return false
}
