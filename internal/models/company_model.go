package models

import "time"

type Company struct {
	ID                  string    `bson:"_id,omitempty" json:"id"`
	CNPJ                string    `bson:"cnpj" json:"cnpj"` // armazenado normalizado (apenas dígitos)
	Nome                string    `bson:"nome" json:"nome"`
	Estado              string    `bson:"estado" json:"estado"` // UF, ex.: "RS"
	Cidade              string    `bson:"cidade" json:"cidade"`
	InscricaoMobiliaria string    `bson:"inscricao_mobiliaria,omitempty" json:"inscricao_mobiliaria,omitempty"`
	CreatedAt           time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt           time.Time `bson:"updated_at" json:"updated_at"`
}
