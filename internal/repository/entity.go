// Package repository implements storage.Repository on Postgres. Records are
// stored as JSONB documents keyed by (kind, id) so one table serves every
// entity kind.
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dharsanguruparan/QCBoard/internal/model"
	"github.com/dharsanguruparan/QCBoard/internal/storage"
)

// PG is a storage.Repository for one entity kind.
type PG[T model.Entity[T]] struct {
	pool *pgxpool.Pool
	kind string
}

// NewPG constructs a repository for kind.
func NewPG[T model.Entity[T]](pool *pgxpool.Pool, kind string) *PG[T] {
	return &PG[T]{pool: pool, kind: kind}
}

// NewStores wires every entity kind to Postgres.
func NewStores(pool *pgxpool.Pool) *storage.Stores {
	return &storage.Stores{
		Projects:    NewPG[model.Project](pool, storage.KindProject),
		Submittals:  NewPG[model.Submittal](pool, storage.KindSubmittal),
		RFIs:        NewPG[model.RFI](pool, storage.KindRFI),
		Inspections: NewPG[model.Inspection](pool, storage.KindInspection),
		Objects:     NewPG[model.DrawingObject](pool, storage.KindObject),
		Insights:    NewPG[model.AIInsight](pool, storage.KindInsight),
		Drawings:    NewPG[model.Drawing](pool, storage.KindDrawing),
		Evidence:    NewPG[model.Evidence](pool, storage.KindEvidence),
		Companies:   NewPG[model.Company](pool, storage.KindCompany),
	}
}

func (r *PG[T]) List(ctx context.Context, projectID string) ([]T, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT body FROM entities
		WHERE kind=$1 AND ($2 = '' OR project_id=$2)
		ORDER BY seq
	`, r.kind, projectID)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", r.kind, err)
	}
	defer rows.Close()

	var out []T
	for rows.Next() {
		var body []byte
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("scan %s: %w", r.kind, err)
		}
		item, err := r.decode(body)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list %s: %w", r.kind, err)
	}
	return out, nil
}

func (r *PG[T]) Get(ctx context.Context, id string) (T, error) {
	var body []byte
	err := r.pool.QueryRow(ctx, `SELECT body FROM entities WHERE kind=$1 AND id=$2`, r.kind, id).Scan(&body)
	if err != nil {
		var zero T
		return zero, r.wrap(id, "select", err)
	}
	return r.decode(body)
}

func (r *PG[T]) Create(ctx context.Context, item T) (T, error) {
	item = item.WithID(uuid.NewString())
	body, err := json.Marshal(item)
	if err != nil {
		return item, fmt.Errorf("encode %s: %w", r.kind, err)
	}
	now := time.Now().UTC()
	_, err = r.pool.Exec(ctx, `
		INSERT INTO entities (kind, id, project_id, body, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$5)
	`, r.kind, item.EntityID(), item.ProjectRef(), body, now)
	if err != nil {
		return item, fmt.Errorf("insert %s: %w", r.kind, err)
	}
	return item, nil
}

// Update locks the row for the duration of the merge so two partial updates
// of the same record serialize instead of overwriting each other.
func (r *PG[T]) Update(ctx context.Context, id string, fn func(T) T) (T, error) {
	var zero T
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return zero, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	var body []byte
	err = tx.QueryRow(ctx, `SELECT body FROM entities WHERE kind=$1 AND id=$2 FOR UPDATE`, r.kind, id).Scan(&body)
	if err != nil {
		return zero, r.wrap(id, "lock", err)
	}
	cur, err := r.decode(body)
	if err != nil {
		return zero, err
	}
	next := fn(cur).WithID(id)
	if body, err = json.Marshal(next); err != nil {
		return zero, fmt.Errorf("encode %s: %w", r.kind, err)
	}
	_, err = tx.Exec(ctx, `
		UPDATE entities SET body=$1, project_id=$2, updated_at=$3
		WHERE kind=$4 AND id=$5
	`, body, next.ProjectRef(), time.Now().UTC(), r.kind, id)
	if err != nil {
		return zero, fmt.Errorf("update %s: %w", r.kind, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return zero, fmt.Errorf("commit: %w", err)
	}
	return next, nil
}

func (r *PG[T]) Put(ctx context.Context, item T) error {
	if item.EntityID() == "" {
		return fmt.Errorf("put %s: empty id", r.kind)
	}
	body, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("encode %s: %w", r.kind, err)
	}
	now := time.Now().UTC()
	_, err = r.pool.Exec(ctx, `
		INSERT INTO entities (kind, id, project_id, body, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$5)
		ON CONFLICT (kind, id) DO UPDATE
		SET body=EXCLUDED.body, project_id=EXCLUDED.project_id, updated_at=EXCLUDED.updated_at
	`, r.kind, item.EntityID(), item.ProjectRef(), body, now)
	if err != nil {
		return fmt.Errorf("upsert %s: %w", r.kind, err)
	}
	return nil
}

func (r *PG[T]) decode(body []byte) (T, error) {
	var item T
	if err := json.Unmarshal(body, &item); err != nil {
		return item, fmt.Errorf("decode %s: %w", r.kind, err)
	}
	return item, nil
}

func (r *PG[T]) wrap(id, op string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return storage.NotFound(r.kind, id)
	}
	return fmt.Errorf("%s %s: %w", op, r.kind, err)
}
