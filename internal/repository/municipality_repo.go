package repository

import (
	"context"
	"errors"
	"time"

	"github.com/Werneck0live/controle-certidoes/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const MunicipalitiesCollection = "municipalities"

type MunicipalityRepository struct {
	coll *mongo.Collection
}

func NewMunicipalityRepository(db *mongo.Database) *MunicipalityRepository {
	return &MunicipalityRepository{coll: db.Collection(MunicipalitiesCollection)}
}

func (r *MunicipalityRepository) EnsureIndexes(ctx context.Context) error {
	return ensureIndex(ctx, r.coll, mongo.IndexModel{
		Keys:    bson.D{{Key: "chave", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("uniq_chave"),
	}, "uniq_chave")
}

func (r *MunicipalityRepository) Create(ctx context.Context, m *models.Municipality) (string, error) {
	m.Chave = m.Key()
	if m.ID == "" {
		m.ID = primitive.NewObjectID().Hex()
	}
	m.UpdatedAt = time.Now()
	if _, err := r.coll.InsertOne(ctx, m); err != nil {
		if isDuplicateKey(err) {
			return "", ErrDuplicateMunicipality
		}
		return "", err
	}
	return m.ID, nil
}

// Upsert grava pela chave de nome + UF: cria se não existe, substitui se existe.
func (r *MunicipalityRepository) Upsert(ctx context.Context, m *models.Municipality) (string, error) {
	m.Chave = m.Key()
	if m.ID == "" {
		var existing models.Municipality
		if err := r.coll.FindOne(ctx, bson.M{"chave": m.Chave}).Decode(&existing); err == nil {
			m.ID = existing.ID
		} else {
			m.ID = primitive.NewObjectID().Hex()
		}
	}
	m.UpdatedAt = time.Now()
	_, err := r.coll.ReplaceOne(ctx, bson.M{"chave": m.Chave}, m, options.Replace().SetUpsert(true))
	if err != nil {
		if isDuplicateKey(err) {
			return "", ErrDuplicateMunicipality
		}
		return "", err
	}
	return m.ID, nil
}

func (r *MunicipalityRepository) GetByID(ctx context.Context, id string) (*models.Municipality, error) {
	var m models.Municipality
	if err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&m); err != nil {
		return nil, notFound(err)
	}
	return &m, nil
}

// GetByKey busca pela cidade + UF da empresa, ignorando acentos e caixa.
// Sem regra para a UF, cai na regra cadastrada sem estado.
func (r *MunicipalityRepository) GetByKey(ctx context.Context, city, uf string) (*models.Municipality, error) {
	for _, key := range models.LookupKeys(city, uf) {
		var m models.Municipality
		err := r.coll.FindOne(ctx, bson.M{"chave": key}).Decode(&m)
		if err == nil {
			return &m, nil
		}
		if !errors.Is(err, mongo.ErrNoDocuments) {
			return nil, err
		}
	}
	return nil, ErrNotFound
}

func (r *MunicipalityRepository) GetAll(ctx context.Context) ([]models.Municipality, error) {
	cur, err := r.coll.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "nome", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	list := []models.Municipality{}
	for cur.Next(ctx) {
		var m models.Municipality
		if err := cur.Decode(&m); err != nil {
			return nil, err
		}
		list = append(list, m)
	}
	return list, cur.Err()
}

func (r *MunicipalityRepository) Replace(ctx context.Context, id string, m *models.Municipality) error {
	m.ID = id
	m.Chave = m.Key()
	m.UpdatedAt = time.Now()
	res, err := r.coll.ReplaceOne(ctx, bson.M{"_id": id}, m)
	if err != nil {
		if isDuplicateKey(err) {
			return ErrDuplicateMunicipality
		}
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *MunicipalityRepository) Delete(ctx context.Context, id string) error {
	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}
