package repository

import (
	"context"
	"time"

	"github.com/Werneck0live/controle-certidoes/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type CertificateRepository struct {
	coll *mongo.Collection
}

func NewCertificateRepository(db *mongo.Database) *CertificateRepository {
	return &CertificateRepository{coll: db.Collection(CertificatesCollection)}
}

func (r *CertificateRepository) EnsureIndexes(ctx context.Context) error {
	return ensureIndex(ctx, r.coll, mongo.IndexModel{
		Keys: bson.D{
			{Key: "empresa_id", Value: 1},
			{Key: "tipo", Value: 1},
			{Key: "subtipo", Value: 1},
		},
		Options: options.Index().SetUnique(true).SetName("uniq_empresa_tipo_subtipo"),
	}, "uniq_empresa_tipo_subtipo")
}

// CreateMany grava as certidões e preenche o ID de cada item do slice.
func (r *CertificateRepository) CreateMany(ctx context.Context, certs []models.Certificate) error {
	if len(certs) == 0 {
		return nil
	}
	docs := make([]any, 0, len(certs))
	for i := range certs {
		if certs[i].ID == "" {
			certs[i].ID = primitive.NewObjectID().Hex()
		}
		if certs[i].UpdatedAt.IsZero() {
			certs[i].UpdatedAt = time.Now()
		}
		docs = append(docs, certs[i])
	}
	if _, err := r.coll.InsertMany(ctx, docs); err != nil {
		if isDuplicateKey(err) {
			return ErrDuplicateCertificate
		}
		return err
	}
	return nil
}

func (r *CertificateRepository) GetByID(ctx context.Context, id string) (*models.Certificate, error) {
	var c models.Certificate
	if err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&c); err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}

func (r *CertificateRepository) ListByCompany(ctx context.Context, companyID string) ([]models.Certificate, error) {
	return r.find(ctx, bson.M{"empresa_id": companyID})
}

// ListByCompanies agrupa por empresa; usado pelo dashboard numa só consulta.
func (r *CertificateRepository) ListByCompanies(ctx context.Context, companyIDs []string) (map[string][]models.Certificate, error) {
	out := make(map[string][]models.Certificate, len(companyIDs))
	if len(companyIDs) == 0 {
		return out, nil
	}
	list, err := r.find(ctx, bson.M{"empresa_id": bson.M{"$in": companyIDs}})
	if err != nil {
		return nil, err
	}
	for _, c := range list {
		out[c.CompanyID] = append(out[c.CompanyID], c)
	}
	return out, nil
}

func (r *CertificateRepository) find(ctx context.Context, filter bson.M) ([]models.Certificate, error) {
	opts := options.Find().SetSort(bson.D{{Key: "tipo", Value: 1}, {Key: "subtipo", Value: 1}})
	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	list := []models.Certificate{}
	for cur.Next(ctx) {
		var c models.Certificate
		if err := cur.Decode(&c); err != nil {
			return nil, err
		}
		list = append(list, c)
	}
	return list, cur.Err()
}

// SetExpiration grava a nova validade e limpa o status Pendente.
// validade nil remove a data (certidão volta a cinza).
func (r *CertificateRepository) SetExpiration(ctx context.Context, id string, validade *time.Time) error {
	update := bson.M{}
	if validade == nil {
		update["$set"] = bson.M{"updated_at": time.Now()}
		update["$unset"] = bson.M{"data_validade": "", "status_especial": ""}
	} else {
		update["$set"] = bson.M{"data_validade": models.DateOnly(*validade), "updated_at": time.Now()}
		update["$unset"] = bson.M{"status_especial": ""}
	}
	return r.updateOne(ctx, id, update)
}

// SetSpecialStatus marca (ou desmarca, com "") o status especial.
func (r *CertificateRepository) SetSpecialStatus(ctx context.Context, id string, st models.SpecialStatus) error {
	update := bson.M{}
	if st == "" {
		update["$set"] = bson.M{"updated_at": time.Now()}
		update["$unset"] = bson.M{"status_especial": ""}
	} else {
		update["$set"] = bson.M{"status_especial": st, "updated_at": time.Now()}
	}
	return r.updateOne(ctx, id, update)
}

func (r *CertificateRepository) updateOne(ctx context.Context, id string, update bson.M) error {
	res, err := r.coll.UpdateByID(ctx, id, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *CertificateRepository) DeleteByCompany(ctx context.Context, companyID string) (int64, error) {
	res, err := r.coll.DeleteMany(ctx, bson.M{"empresa_id": companyID})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}
