package handlers

//	somente os campos do contrato
//
// o id da empresa é o CNPJ sanitizado; as certidões são criadas pelo servidor
type CompanyCreateDTO struct {
	CNPJ                string `json:"cnpj"`
	Nome                string `json:"nome"`
	Estado              string `json:"estado"`
	Cidade              string `json:"cidade"`
	InscricaoMobiliaria string `json:"inscricao_mobiliaria"`
}

// Update parcial; ponteiros distinguem "omitido" de "informado".
// O CNPJ não muda: ele é o id.
type CompanyPatchDTO struct {
	Nome                *string `json:"nome,omitempty"`
	Estado              *string `json:"estado,omitempty"`
	Cidade              *string `json:"cidade,omitempty"`
	InscricaoMobiliaria *string `json:"inscricao_mobiliaria,omitempty"`
}

// data_validade: "2026-03-31", "31/03/2026" ou null (limpa a data)
type ExpirationDTO struct {
	DataValidade *string `json:"data_validade"`
}

type PendingDTO struct {
	Pendente *bool `json:"pendente"`
}

type MunicipalityDTO struct {
	Nome               string `json:"nome"`
	Estado             string `json:"estado"`
	URLCertidao        string `json:"url_certidao"`
	CNPJFieldID        string `json:"cnpj_field_id"`
	By                 string `json:"by"`
	InscricaoFieldID   string `json:"inscricao_field_id"`
	InscricaoFieldBy   string `json:"inscricao_field_by"`
	PreFillClickID     string `json:"pre_fill_click_id"`
	PreFillClickBy     string `json:"pre_fill_click_by"`
	SubmitID           string `json:"submit_id"`
	SubmitBy           string `json:"submit_by"`
	ShadowHostSelector string `json:"shadow_host_selector"`
	InnerInputSelector string `json:"inner_input_selector"`
	AutomacaoAtiva     *bool  `json:"automacao_ativa"` // omitido = true
	ValidadeDias       int    `json:"validade_dias"`
	UsarSlowTyping     bool   `json:"usar_slow_typing"`
	ConfigAutomacao    string `json:"config_automacao"`
	ExigeMobiliario    bool   `json:"exige_mobiliario"`
}

type EmitResponse struct {
	OK           bool   `json:"ok"`
	Arquivo      string `json:"arquivo,omitempty"`
	DataValidade string `json:"data_validade,omitempty"`
	Error        string `json:"error,omitempty"`
}
