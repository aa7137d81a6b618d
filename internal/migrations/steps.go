package migrations

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/Werneck0live/controle-certidoes/internal/models"
	"github.com/Werneck0live/controle-certidoes/internal/repository"
	"github.com/Werneck0live/controle-certidoes/internal/textnorm"
)

// cidade cujas empresas passam a ter municipal Geral + Mobiliário
const (
	imbe   = "Imbé"
	imbeUF = "RS"
)

// All devolve as migrações na ordem de aplicação.
func All() []Migration {
	return []Migration{
		{ID: "0001_indexes", Description: "índices únicos de empresas, certidões e municípios", Up: upIndexes},
		{
			ID:          "7c3f5a2b9d10",
			Description: "enriquece município com campos de automação",
			Up:          upMunicipalityAutomation,
			Down:        downMunicipalityAutomation,
		},
		{
			ID:          "b1c8f6b2a1d9",
			Description: "adiciona subtipo em certidão (Imbé: Geral + Mobiliário)",
			Up:          upCertificateSubtype,
			Down:        downCertificateSubtype,
		},
		{
			ID:          "e4a9d2c7f301",
			Description: "chave de município passa a incluir a UF",
			Up:          upMunicipalityKeyUF,
			Down:        downMunicipalityKeyUF,
		},
	}
}

func upIndexes(ctx context.Context, db *mongo.Database) error {
	if err := repository.NewCompanyRepository(db).EnsureIndexes(ctx); err != nil {
		return err
	}
	if err := repository.NewCertificateRepository(db).EnsureIndexes(ctx); err != nil {
		return err
	}
	return repository.NewMunicipalityRepository(db).EnsureIndexes(ctx)
}

// documentos antigos ganham os defaults: automação ligada, digitação normal
func upMunicipalityAutomation(ctx context.Context, db *mongo.Database) error {
	coll := db.Collection(repository.MunicipalitiesCollection)
	if _, err := coll.UpdateMany(ctx,
		bson.M{"automacao_ativa": bson.M{"$exists": false}},
		bson.M{"$set": bson.M{"automacao_ativa": true}},
	); err != nil {
		return err
	}
	_, err := coll.UpdateMany(ctx,
		bson.M{"usar_slow_typing": bson.M{"$exists": false}},
		bson.M{"$set": bson.M{"usar_slow_typing": false}},
	)
	return err
}

func downMunicipalityAutomation(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection(repository.MunicipalitiesCollection).UpdateMany(ctx, bson.M{}, bson.M{
		"$unset": bson.M{"automacao_ativa": "", "validade_dias": "", "usar_slow_typing": "", "config_automacao": ""},
	})
	return err
}

// companyIDsInCity compara a cidade sem acento/caixa ("IMBÉ", "imbe", "Imbé").
func companyIDsInCity(ctx context.Context, db *mongo.Database, city string) ([]string, error) {
	cur, err := db.Collection(repository.CompaniesCollection).Find(ctx, bson.M{})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	want := textnorm.Normalize(city)
	var ids []string
	for cur.Next(ctx) {
		var c models.Company
		if err := cur.Decode(&c); err != nil {
			return nil, err
		}
		if textnorm.Normalize(c.Cidade) == want {
			ids = append(ids, c.ID)
		}
	}
	return ids, cur.Err()
}

// upCertificateSubtype: a municipal existente das empresas de Imbé vira
// Mobiliário e ganha uma cópia Geral (mesma data e status). Rodar de novo não duplica.
func upCertificateSubtype(ctx context.Context, db *mongo.Database) error {
	ids, err := companyIDsInCity(ctx, db, imbe)
	if err != nil {
		return err
	}
	rules := db.Collection(repository.MunicipalitiesCollection)
	if _, err := rules.UpdateOne(ctx,
		bson.M{"chave": bson.M{"$in": models.LookupKeys(imbe, imbeUF)}},
		bson.M{"$set": bson.M{"exige_mobiliario": true}},
	); err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}

	certs := db.Collection(repository.CertificatesCollection)
	if _, err := certs.UpdateMany(ctx, bson.M{
		"empresa_id": bson.M{"$in": ids},
		"tipo":       models.TypeMunicipal,
		"subtipo":    bson.M{"$exists": false},
	}, bson.M{"$set": bson.M{"subtipo": models.SubtypeMobiliario}}); err != nil {
		return err
	}

	cur, err := certs.Find(ctx, bson.M{
		"empresa_id": bson.M{"$in": ids},
		"tipo":       models.TypeMunicipal,
		"subtipo":    models.SubtypeMobiliario,
	})
	if err != nil {
		return err
	}
	var mob []models.Certificate
	if err := cur.All(ctx, &mob); err != nil {
		return err
	}

	for _, m := range mob {
		geral := models.Certificate{
			ID:             primitive.NewObjectID().Hex(),
			CompanyID:      m.CompanyID,
			Tipo:           models.TypeMunicipal,
			Subtipo:        models.SubtypeGeral,
			DataValidade:   m.DataValidade,
			StatusEspecial: m.StatusEspecial,
			UpdatedAt:      m.UpdatedAt,
		}
		if _, err := certs.InsertOne(ctx, geral); err != nil && !isDuplicate(err) {
			return err
		}
	}
	return nil
}

func downCertificateSubtype(ctx context.Context, db *mongo.Database) error {
	certs := db.Collection(repository.CertificatesCollection)
	if _, err := certs.DeleteMany(ctx, bson.M{"subtipo": models.SubtypeGeral}); err != nil {
		return err
	}
	if _, err := certs.UpdateMany(ctx,
		bson.M{"subtipo": bson.M{"$exists": true}},
		bson.M{"$unset": bson.M{"subtipo": ""}},
	); err != nil {
		return err
	}
	_, err := db.Collection(repository.MunicipalitiesCollection).UpdateMany(ctx,
		bson.M{"chave": bson.M{"$in": models.LookupKeys(imbe, imbeUF)}},
		bson.M{"$set": bson.M{"exige_mobiliario": false}},
	)
	return err
}

func upMunicipalityKeyUF(ctx context.Context, db *mongo.Database) error {
	return rekeyMunicipalities(ctx, db, (*models.Municipality).Key)
}

func downMunicipalityKeyUF(ctx context.Context, db *mongo.Database) error {
	return rekeyMunicipalities(ctx, db, func(m *models.Municipality) string {
		return models.MunicipalityKey(m.Nome, "")
	})
}

// rekeyMunicipalities recalcula a chave de cada regra. Se a chave nova já
// pertence a outra regra, a antiga fica como está.
func rekeyMunicipalities(ctx context.Context, db *mongo.Database, key func(*models.Municipality) string) error {
	coll := db.Collection(repository.MunicipalitiesCollection)
	cur, err := coll.Find(ctx, bson.M{})
	if err != nil {
		return err
	}
	var all []models.Municipality
	if err := cur.All(ctx, &all); err != nil {
		return err
	}
	for i := range all {
		m := &all[i]
		k := key(m)
		if k == m.Chave {
			continue
		}
		if _, err := coll.UpdateOne(ctx, bson.M{"_id": m.ID}, bson.M{"$set": bson.M{"chave": k}}); err != nil && !isDuplicate(err) {
			return err
		}
	}
	return nil
}

func isDuplicate(err error) bool {
	var we mongo.WriteException
	if errors.As(err, &we) {
		for _, e := range we.WriteErrors {
			if e.Code == 11000 {
				return true
			}
		}
	}
	return false
}
