package models

import (
	"strings"
	"time"

	"github.com/Werneck0live/controle-certidoes/internal/textnorm"
)

type CertificateType string

const (
	TypeFederal     CertificateType = "Federal"
	TypeFGTS        CertificateType = "FGTS"
	TypeEstadual    CertificateType = "Estadual"
	TypeMunicipal   CertificateType = "Municipal"
	TypeTrabalhista CertificateType = "Trabalhista"
)

var AllTypes = []CertificateType{TypeFederal, TypeFGTS, TypeEstadual, TypeMunicipal, TypeTrabalhista}

// ParseCertificateType aceita "Federal", "FEDERAL", "federal", "Estadual"...
func ParseCertificateType(s string) (CertificateType, bool) {
	n := textnorm.Normalize(s)
	for _, t := range AllTypes {
		if textnorm.Normalize(string(t)) == n {
			return t, true
		}
	}
	return "", false
}

type CertificateSubtype string

const (
	SubtypeGeral      CertificateSubtype = "Geral"
	SubtypeMobiliario CertificateSubtype = "Mobiliário"
)

func ParseCertificateSubtype(s string) (CertificateSubtype, bool) {
	switch textnorm.Normalize(s) {
	case "":
		return "", true
	case "GERAL":
		return SubtypeGeral, true
	case "MOBILIARIO":
		return SubtypeMobiliario, true
	}
	return "", false
}

type SpecialStatus string

const StatusPendente SpecialStatus = "Pendente"

// Status é a cor exibida no dashboard.
type Status string

const (
	StatusVermelho Status = "vermelho"
	StatusAmarelo  Status = "amarelo"
	StatusVerde    Status = "verde"
	StatusCinza    Status = "cinza"
)

var AllStatuses = []Status{StatusVermelho, StatusAmarelo, StatusVerde, StatusCinza}

func ParseStatus(s string) (Status, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, st := range AllStatuses {
		if string(st) == s {
			return st, true
		}
	}
	return "", false
}

// ExpiringSoonDays: até quantos dias antes do vencimento a certidão fica amarela.
const ExpiringSoonDays = 7

type Certificate struct {
	ID             string             `bson:"_id,omitempty" json:"id"`
	CompanyID      string             `bson:"empresa_id" json:"empresa_id"`
	Tipo           CertificateType    `bson:"tipo" json:"tipo"`
	Subtipo        CertificateSubtype `bson:"subtipo,omitempty" json:"subtipo,omitempty"`
	DataValidade   *time.Time         `bson:"data_validade,omitempty" json:"data_validade,omitempty"`
	StatusEspecial SpecialStatus      `bson:"status_especial,omitempty" json:"status_especial,omitempty"`
	UpdatedAt      time.Time          `bson:"updated_at" json:"updated_at"`
}

// StatusAt calcula a cor em relação ao dia de hoje.
// Pendente sempre vence a data.
func (c *Certificate) StatusAt(today time.Time) Status {
	if c.StatusEspecial == StatusPendente {
		return StatusVermelho
	}
	if c.DataValidade == nil {
		return StatusCinza
	}
	diff := DaysBetween(today, *c.DataValidade)
	switch {
	case diff < 0:
		return StatusVermelho
	case diff <= ExpiringSoonDays:
		return StatusAmarelo
	default:
		return StatusVerde
	}
}

// Label é o nome usado no arquivo e nas mensagens: "Municipal Mobiliário".
func (c *Certificate) Label() string {
	if c.Subtipo == "" {
		return string(c.Tipo)
	}
	return string(c.Tipo) + " " + string(c.Subtipo)
}

// DaysBetween conta dias de calendário de from até to, ignorando horário.
// Datas de validade são gravadas como meia-noite UTC; o dia de cada lado é lido no próprio fuso.
func DaysBetween(from, to time.Time) int {
	a := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)
	b := time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, time.UTC)
	return int(b.Sub(a).Hours() / 24)
}

// DateOnly zera o horário mantendo o dia.
func DateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

type CertificateView struct {
	Certificate
	Label  string `json:"label"`
	Status Status `json:"status"`
}

func (c *Certificate) View(today time.Time) CertificateView {
	return CertificateView{Certificate: *c, Label: c.Label(), Status: c.StatusAt(today)}
}

// DefaultCertificates monta o conjunto inicial de certidões de uma empresa
// (todas sem data). Se o município exige a certidão mobiliária, a municipal
// é desdobrada em Geral + Mobiliário.
func DefaultCertificates(c *Company, rule *Municipality, now time.Time) []Certificate {
	out := make([]Certificate, 0, len(AllTypes)+1)
	for _, t := range AllTypes {
		if t == TypeMunicipal && rule != nil && rule.ExigeMobiliario {
			out = append(out,
				Certificate{CompanyID: c.ID, Tipo: t, Subtipo: SubtypeGeral, UpdatedAt: now},
				Certificate{CompanyID: c.ID, Tipo: t, Subtipo: SubtypeMobiliario, UpdatedAt: now},
			)
			continue
		}
		out = append(out, Certificate{CompanyID: c.ID, Tipo: t, UpdatedAt: now})
	}
	return out
}
