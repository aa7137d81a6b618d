package repository

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo"
)

// ensureIndex cria o índice; se já existir com outras opções, dropa e recria.
func ensureIndex(ctx context.Context, coll *mongo.Collection, model mongo.IndexModel, name string) error {
	_, err := coll.Indexes().CreateOne(ctx, model)
	if err == nil {
		return nil
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) && (ce.Code == 85 || ce.Code == 86) { // IndexOptionsConflict / IndexKeySpecsConflict
		if _, dropErr := coll.Indexes().DropOne(ctx, name); dropErr != nil {
			return fmt.Errorf("drop index %s: %w", name, dropErr)
		}
		_, createErr := coll.Indexes().CreateOne(ctx, model)
		return createErr
	}
	return err
}
