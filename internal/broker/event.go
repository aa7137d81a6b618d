package broker

import (
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Ações publicadas na fila.
const (
	ActionCompanyCreated      = "empresa_cadastrada"
	ActionCompanyUpdated      = "empresa_editada"
	ActionCompanyDeleted      = "empresa_excluida"
	ActionCertificateUpdated  = "certidao_atualizada"
	ActionCertificatePending  = "certidao_pendente"
	ActionCertificateEmitted  = "certidao_emitida"
	ActionCertificateFailed   = "certidao_erro"
	ActionMunicipalityChanged = "municipio_alterado"
)

// Event é o corpo JSON publicado na fila e repassado aos dashboards via websocket.
type Event struct {
	Acao         string    `json:"acao"`
	EmpresaID    string    `json:"empresa_id,omitempty"`
	Empresa      string    `json:"empresa,omitempty"`
	CertidaoID   string    `json:"certidao_id,omitempty"`
	Certidao     string    `json:"certidao,omitempty"` // label, ex.: "Municipal Geral"
	Status       string    `json:"status,omitempty"`
	DataValidade string    `json:"data_validade,omitempty"`
	Mensagem     string    `json:"mensagem,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

func (e Event) Headers() amqp.Table {
	h := amqp.Table{"acao": e.Acao}
	if e.EmpresaID != "" {
		h["empresa_id"] = e.EmpresaID
	}
	if e.CertidaoID != "" {
		h["certidao_id"] = e.CertidaoID
	}
	return h
}
