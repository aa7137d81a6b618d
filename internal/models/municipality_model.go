package models

import (
	"strings"
	"time"

	"github.com/gosimple/slug"
)

// Municipality guarda a configuração de emissão da certidão municipal de uma cidade.
type Municipality struct {
	ID          string `bson:"_id,omitempty" json:"id"`
	Nome        string `bson:"nome" json:"nome"`
	Chave       string `bson:"chave" json:"chave"` // slug de nome + UF, usado na busca pela cidade da empresa
	Estado      string `bson:"estado,omitempty" json:"estado,omitempty"`
	URLCertidao string `bson:"url_certidao" json:"url_certidao"`

	CNPJFieldID string `bson:"cnpj_field_id,omitempty" json:"cnpj_field_id,omitempty"`
	By          string `bson:"by,omitempty" json:"by,omitempty"`

	InscricaoFieldID string `bson:"inscricao_field_id,omitempty" json:"inscricao_field_id,omitempty"`
	InscricaoFieldBy string `bson:"inscricao_field_by,omitempty" json:"inscricao_field_by,omitempty"`

	PreFillClickID string `bson:"pre_fill_click_id,omitempty" json:"pre_fill_click_id,omitempty"`
	PreFillClickBy string `bson:"pre_fill_click_by,omitempty" json:"pre_fill_click_by,omitempty"`

	SubmitID string `bson:"submit_id,omitempty" json:"submit_id,omitempty"`
	SubmitBy string `bson:"submit_by,omitempty" json:"submit_by,omitempty"`

	// campo dentro de shadow DOM (web components)
	ShadowHostSelector string `bson:"shadow_host_selector,omitempty" json:"shadow_host_selector,omitempty"`
	InnerInputSelector string `bson:"inner_input_selector,omitempty" json:"inner_input_selector,omitempty"`

	AutomacaoAtiva  bool   `bson:"automacao_ativa" json:"automacao_ativa"`
	ValidadeDias    int    `bson:"validade_dias,omitempty" json:"validade_dias,omitempty"`
	UsarSlowTyping  bool   `bson:"usar_slow_typing" json:"usar_slow_typing"`
	ConfigAutomacao string `bson:"config_automacao,omitempty" json:"config_automacao,omitempty"` // JSON de passos
	ExigeMobiliario bool   `bson:"exige_mobiliario" json:"exige_mobiliario"`

	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// MunicipalityKey: ("Imbé", "RS") -> "imbe-rs", ("Capão da Canoa", "") -> "capao-da-canoa".
// Sem UF a chave é só a cidade.
func MunicipalityKey(city, uf string) string {
	uf = strings.TrimSpace(uf)
	if uf == "" {
		return slug.Make(city)
	}
	return slug.Make(city + " " + uf)
}

// LookupKeys devolve as chaves a tentar, em ordem, para a cidade de uma empresa:
// primeiro cidade + UF, depois a regra cadastrada sem UF.
func LookupKeys(city, uf string) []string {
	withUF := MunicipalityKey(city, uf)
	bare := MunicipalityKey(city, "")
	if withUF == bare {
		return []string{bare}
	}
	return []string{withUF, bare}
}

func (m *Municipality) Key() string { return MunicipalityKey(m.Nome, m.Estado) }
