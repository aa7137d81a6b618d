package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/Werneck0live/controle-certidoes/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	CompaniesCollection    = "companies"
	CertificatesCollection = "certificates"
)

type CompanyRepository struct {
	coll  *mongo.Collection
	certs *mongo.Collection
}

func NewCompanyRepository(db *mongo.Database) *CompanyRepository {
	return &CompanyRepository{
		coll:  db.Collection(CompaniesCollection),
		certs: db.Collection(CertificatesCollection),
	}
}

func (r *CompanyRepository) EnsureIndexes(ctx context.Context) error {
	if err := ensureIndex(ctx, r.coll, mongo.IndexModel{
		Keys:    bson.D{{Key: "cnpj", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("uniq_cnpj"),
	}, "uniq_cnpj"); err != nil {
		return err
	}
	return ensureIndex(ctx, r.coll, mongo.IndexModel{
		Keys:    bson.D{{Key: "nome", Value: 1}},
		Options: options.Index().SetName("idx_nome"),
	}, "idx_nome")
}

func (r *CompanyRepository) Create(ctx context.Context, c *models.Company) (string, error) {
	c.CreatedAt = time.Now()
	c.UpdatedAt = c.CreatedAt
	res, err := r.coll.InsertOne(ctx, c)
	if err != nil {
		if isDuplicateKey(err) {
			return "", ErrDuplicateCNPJ
		}
		return "", err
	}
	id, _ := res.InsertedID.(string) // _id é o CNPJ sanitizado
	return id, nil
}

func (r *CompanyRepository) GetByID(ctx context.Context, id string) (*models.Company, error) {
	var c models.Company
	if err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&c); err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}

// GetAll lista em ordem alfabética, como o dashboard exibe.
func (r *CompanyRepository) GetAll(ctx context.Context, limit int64, skip int64) ([]models.Company, error) {
	opts := options.Find().SetSort(bson.D{{Key: "nome", Value: 1}}).SetSkip(skip)
	if limit > 0 {
		opts.SetLimit(limit)
	}
	cur, err := r.coll.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	list := []models.Company{}
	for cur.Next(ctx) {
		var c models.Company
		if err := cur.Decode(&c); err != nil {
			return nil, err
		}
		list = append(list, c)
	}
	return list, cur.Err()
}

// FieldInscricaoMobiliaria é o único campo opcional da empresa; Update aceita limpá-lo.
const FieldInscricaoMobiliaria = "inscricao_mobiliaria"

var clearable = map[string]bool{FieldInscricaoMobiliaria: true}

// Update parcial: grava os campos não vazios e remove os campos em clearFields.
func (r *CompanyRepository) Update(ctx context.Context, id string, c *models.Company, clearFields ...string) error {
	set := bson.M{"updated_at": time.Now()}
	if c.Nome != "" {
		set["nome"] = c.Nome
	}
	if c.Estado != "" {
		set["estado"] = c.Estado
	}
	if c.Cidade != "" {
		set["cidade"] = c.Cidade
	}
	if c.InscricaoMobiliaria != "" {
		set[FieldInscricaoMobiliaria] = c.InscricaoMobiliaria
	}

	update := bson.M{"$set": set}
	unset := bson.M{}
	for _, f := range clearFields {
		if !clearable[f] {
			return fmt.Errorf("field %q cannot be cleared", f)
		}
		if _, ok := set[f]; ok {
			continue
		}
		unset[f] = ""
	}
	if len(unset) > 0 {
		update["$unset"] = unset
	}

	res, err := r.coll.UpdateByID(ctx, id, update)
	if err != nil {
		if isDuplicateKey(err) {
			return ErrDuplicateCNPJ
		}
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete remove a empresa e, em cascata, todas as suas certidões.
func (r *CompanyRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.certs.DeleteMany(ctx, bson.M{"empresa_id": id}); err != nil {
		return fmt.Errorf("delete certificates of %s: %w", id, err)
	}
	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}
