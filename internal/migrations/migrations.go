// Package migrations aplica alterações de esquema/dados no Mongo em ordem,
// registrando cada uma na coleção schema_migrations.
package migrations

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const historyCollection = "schema_migrations"

var (
	ErrIrreversible    = errors.New("migration cannot be reverted")
	ErrNothingToRevert = errors.New("no applied migration to revert")
)

type Migration struct {
	ID          string
	Description string
	Up          func(ctx context.Context, db *mongo.Database) error
	Down        func(ctx context.Context, db *mongo.Database) error // nil = irreversível
}

type record struct {
	ID          string    `bson:"_id"`
	Description string    `bson:"descricao"`
	AppliedAt   time.Time `bson:"aplicada_em"`
}

type Status struct {
	ID          string     `json:"id"`
	Description string     `json:"descricao"`
	AppliedAt   *time.Time `json:"aplicada_em,omitempty"`
}

type Migrator struct {
	db         *mongo.Database
	history    *mongo.Collection
	migrations []Migration
	log        *slog.Logger
}

// New usa a lista padrão (All); testes podem passar outra.
func New(db *mongo.Database, log *slog.Logger, list ...Migration) *Migrator {
	if len(list) == 0 {
		list = All()
	}
	if log == nil {
		log = slog.Default()
	}
	return &Migrator{
		db:         db,
		history:    db.Collection(historyCollection),
		migrations: list,
		log:        log.With("cmp", "migrations"),
	}
}

func (m *Migrator) applied(ctx context.Context) (map[string]record, error) {
	cur, err := m.history.Find(ctx, bson.M{})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	out := map[string]record{}
	for cur.Next(ctx) {
		var r record
		if err := cur.Decode(&r); err != nil {
			return nil, err
		}
		out[r.ID] = r
	}
	return out, cur.Err()
}

// Up aplica, na ordem, as migrações ainda não registradas.
func (m *Migrator) Up(ctx context.Context) ([]string, error) {
	done, err := m.applied(ctx)
	if err != nil {
		return nil, err
	}
	var ran []string
	for _, mig := range m.migrations {
		if _, ok := done[mig.ID]; ok {
			continue
		}
		start := time.Now()
		if err := mig.Up(ctx, m.db); err != nil {
			m.log.Error("migration_up_error", "id", mig.ID, "err", err)
			return ran, fmt.Errorf("migration %s: %w", mig.ID, err)
		}
		rec := record{ID: mig.ID, Description: mig.Description, AppliedAt: time.Now().UTC()}
		if _, err := m.history.ReplaceOne(ctx, bson.M{"_id": mig.ID}, rec, options.Replace().SetUpsert(true)); err != nil {
			return ran, fmt.Errorf("record migration %s: %w", mig.ID, err)
		}
		m.log.Info("migration_applied", "id", mig.ID, "duration_ms", time.Since(start).Milliseconds())
		ran = append(ran, mig.ID)
	}
	return ran, nil
}

// Down reverte a última migração aplicada.
func (m *Migrator) Down(ctx context.Context) (string, error) {
	done, err := m.applied(ctx)
	if err != nil {
		return "", err
	}
	for i := len(m.migrations) - 1; i >= 0; i-- {
		mig := m.migrations[i]
		if _, ok := done[mig.ID]; !ok {
			continue
		}
		if mig.Down == nil {
			return mig.ID, fmt.Errorf("%s: %w", mig.ID, ErrIrreversible)
		}
		if err := mig.Down(ctx, m.db); err != nil {
			return mig.ID, fmt.Errorf("revert %s: %w", mig.ID, err)
		}
		if _, err := m.history.DeleteOne(ctx, bson.M{"_id": mig.ID}); err != nil {
			return mig.ID, err
		}
		m.log.Info("migration_reverted", "id", mig.ID)
		return mig.ID, nil
	}
	return "", ErrNothingToRevert
}

func (m *Migrator) Status(ctx context.Context) ([]Status, error) {
	done, err := m.applied(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Status, 0, len(m.migrations))
	for _, mig := range m.migrations {
		s := Status{ID: mig.ID, Description: mig.Description}
		if r, ok := done[mig.ID]; ok {
			at := r.AppliedAt
			s.AppliedAt = &at
		}
		out = append(out, s)
	}
	return out, nil
}
