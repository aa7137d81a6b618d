package repository

import (
	"errors"

	"go.mongodb.org/mongo-driver/mongo"
)

var (
	ErrDuplicateCNPJ         = errors.New("cnpj already exists")
	ErrDuplicateMunicipality = errors.New("municipality already exists")
	ErrDuplicateCertificate  = errors.New("certificate already exists for company")
	ErrNotFound              = errors.New("not found")
)

// isDuplicateKey detecta E11000 tanto em WriteException quanto em BulkWriteException.
func isDuplicateKey(err error) bool {
	var we mongo.WriteException
	if errors.As(err, &we) {
		for _, e := range we.WriteErrors {
			if e.Code == 11000 {
				return true
			}
		}
	}
	var bwe mongo.BulkWriteException
	if errors.As(err, &bwe) {
		for _, e := range bwe.WriteErrors {
			if e.Code == 11000 {
				return true
			}
		}
	}
	return false
}

func notFound(err error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return ErrNotFound
	}
	return err
}
