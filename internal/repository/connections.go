package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dharsanguruparan/QCBoard/internal/model"
	"github.com/dharsanguruparan/QCBoard/internal/procore"
)

// Connections is the Postgres procore.ConnectionStore.
type Connections struct {
	pool *pgxpool.Pool
}

func NewConnections(pool *pgxpool.Pool) *Connections {
	return &Connections{pool: pool}
}

const connectionColumns = `user_id, company_id, access_token, refresh_token, token_expires_at, is_active,
	sync_status, last_synced_at, projects_linked, error_message, created_at, updated_at`

func scanConnection(row pgx.Row) (procore.Connection, error) {
	var c procore.Connection
	err := row.Scan(&c.UserID, &c.CompanyID, &c.AccessToken, &c.RefreshToken, &c.TokenExpiresAt, &c.IsActive,
		&c.SyncStatus, &c.LastSyncedAt, &c.ProjectsLinked, &c.ErrorMessage, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return c, procore.ErrNotConnected
	}
	if err != nil {
		return c, fmt.Errorf("scan connection: %w", err)
	}
	return c, nil
}

func (r *Connections) Upsert(ctx context.Context, c procore.Connection) (procore.Connection, error) {
	now := time.Now().UTC()
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return c, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	// Deactivate first so the partial unique index on active rows holds.
	if _, err := tx.Exec(ctx, `UPDATE procore_connections SET is_active=FALSE, updated_at=$2 WHERE user_id=$1 AND is_active AND company_id<>$3`,
		c.UserID, now, c.CompanyID); err != nil {
		return c, fmt.Errorf("deactivate connections: %w", err)
	}
	row := tx.QueryRow(ctx, `
		INSERT INTO procore_connections (user_id, company_id, access_token, refresh_token, token_expires_at, is_active, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,TRUE,$6,$6)
		ON CONFLICT (user_id, company_id) DO UPDATE
		SET access_token=EXCLUDED.access_token,
			refresh_token=EXCLUDED.refresh_token,
			token_expires_at=EXCLUDED.token_expires_at,
			is_active=TRUE,
			updated_at=EXCLUDED.updated_at
		RETURNING `+connectionColumns,
		c.UserID, c.CompanyID, c.AccessToken, c.RefreshToken, c.TokenExpiresAt, now)
	out, err := scanConnection(row)
	if err != nil {
		return c, err
	}
	if err := tx.Commit(ctx); err != nil {
		return c, fmt.Errorf("commit: %w", err)
	}
	return out, nil
}

func (r *Connections) Active(ctx context.Context, userID string) (procore.Connection, error) {
	return scanConnection(r.pool.QueryRow(ctx,
		`SELECT `+connectionColumns+` FROM procore_connections WHERE user_id=$1 AND is_active`, userID))
}

func (r *Connections) Get(ctx context.Context, userID, companyID string) (procore.Connection, error) {
	return scanConnection(r.pool.QueryRow(ctx,
		`SELECT `+connectionColumns+` FROM procore_connections WHERE user_id=$1 AND company_id=$2`, userID, companyID))
}

func (r *Connections) UpdateTokens(ctx context.Context, c procore.Connection) (procore.Connection, error) {
	return scanConnection(r.pool.QueryRow(ctx, `
		UPDATE procore_connections
		SET access_token=$3, refresh_token=$4, token_expires_at=$5, updated_at=$6
		WHERE user_id=$1 AND company_id=$2
		RETURNING `+connectionColumns,
		c.UserID, c.CompanyID, c.AccessToken, c.RefreshToken, c.TokenExpiresAt, time.Now().UTC()))
}

func (r *Connections) SetActive(ctx context.Context, userID, companyID string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck
	if err := activate(ctx, tx, userID, companyID); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *Connections) Delete(ctx context.Context, userID, companyID string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	var wasActive bool
	err = tx.QueryRow(ctx, `DELETE FROM procore_connections WHERE user_id=$1 AND company_id=$2 RETURNING is_active`,
		userID, companyID).Scan(&wasActive)
	if errors.Is(err, pgx.ErrNoRows) {
		return procore.ErrNotConnected
	}
	if err != nil {
		return fmt.Errorf("delete connection: %w", err)
	}
	if wasActive {
		var next string
		err := tx.QueryRow(ctx, `SELECT company_id FROM procore_connections WHERE user_id=$1 ORDER BY updated_at DESC LIMIT 1`,
			userID).Scan(&next)
		switch {
		case errors.Is(err, pgx.ErrNoRows):
		case err != nil:
			return fmt.Errorf("find replacement: %w", err)
		default:
			if err := activate(ctx, tx, userID, next); err != nil {
				return err
			}
		}
	}
	return tx.Commit(ctx)
}

func (r *Connections) BeginSync(ctx context.Context, userID, companyID string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE procore_connections SET sync_status=$3, error_message='', updated_at=$4
		WHERE user_id=$1 AND company_id=$2 AND sync_status<>$3
	`, userID, companyID, model.SyncSyncing, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("begin sync: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}
	if _, err := r.Get(ctx, userID, companyID); err != nil {
		return err
	}
	return procore.ErrSyncInProgress
}

func (r *Connections) FinishSync(ctx context.Context, userID, companyID string, res procore.SyncResult) error {
	var (
		tag pgconn.CommandTag
		err error
	)
	now := time.Now().UTC()
	if res.Status == model.SyncIdle {
		tag, err = r.pool.Exec(ctx, `
			UPDATE procore_connections
			SET sync_status=$3, error_message=$4, last_synced_at=$5, projects_linked=$6, updated_at=$7
			WHERE user_id=$1 AND company_id=$2
		`, userID, companyID, res.Status, res.ErrorMessage, res.At, res.ProjectsLinked, now)
	} else {
		tag, err = r.pool.Exec(ctx, `
			UPDATE procore_connections SET sync_status=$3, error_message=$4, updated_at=$5
			WHERE user_id=$1 AND company_id=$2
		`, userID, companyID, res.Status, res.ErrorMessage, now)
	}
	if err != nil {
		return fmt.Errorf("finish sync: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return procore.ErrNotConnected
	}
	return nil
}

func activate(ctx context.Context, tx pgx.Tx, userID, companyID string) error {
	now := time.Now().UTC()
	if _, err := tx.Exec(ctx, `UPDATE procore_connections SET is_active=FALSE, updated_at=$2 WHERE user_id=$1 AND is_active`,
		userID, now); err != nil {
		return fmt.Errorf("deactivate connections: %w", err)
	}
	tag, err := tx.Exec(ctx, `UPDATE procore_connections SET is_active=TRUE, updated_at=$3 WHERE user_id=$1 AND company_id=$2`,
		userID, companyID, now)
	if err != nil {
		return fmt.Errorf("activate connection: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return procore.ErrNotConnected
	}
	return nil
}
