package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/lib/pq"

	"github.com/placeshare/placeshare/internal/model"
)

// Tx is a unit of work spanning the place and credential stores.
// Writes made through a Tx become visible together on Commit or not at all.
// Rollback after Commit is a no-op, so callers may always defer it.
type Tx interface {
	// GetUserForUpdate loads a user and locks it for the rest of the unit of work.
	GetUserForUpdate(ctx context.Context, id string) (*model.User, error)
	// GetPlaceForUpdate loads a place and locks it for the rest of the unit of work.
	GetPlaceForUpdate(ctx context.Context, id string) (*model.Place, error)
	InsertPlace(ctx context.Context, place *model.Place) error
	DeletePlace(ctx context.Context, id string) error
	// SaveUserPlaces persists the user's place id set.
	SaveUserPlaces(ctx context.Context, user *model.User) error

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Begin starts a new unit of work.
func (r *Repository) Begin(ctx context.Context) (Tx, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return &pgTx{tx: tx}, nil
}

// pgTx implements Tx on a pgx transaction with row-level locks.
type pgTx struct {
	tx pgx.Tx
}

func (t *pgTx) GetUserForUpdate(ctx context.Context, id string) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1 FOR UPDATE`

	user, err := scanUser(t.tx.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to lock user: %w", err)
	}
	return user, nil
}

func (t *pgTx) GetPlaceForUpdate(ctx context.Context, id string) (*model.Place, error) {
	query := `SELECT ` + placeColumns + ` FROM places WHERE id = $1 FOR UPDATE`

	place, err := scanPlace(t.tx.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPlaceNotFound
		}
		return nil, fmt.Errorf("failed to lock place: %w", err)
	}
	return place, nil
}

func (t *pgTx) InsertPlace(ctx context.Context, place *model.Place) error {
	query := `
		INSERT INTO places (id, title, description, address, lat, lng, image, creator_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := t.tx.Exec(ctx, query,
		place.ID,
		place.Title,
		place.Description,
		place.Address,
		place.Location.Lat,
		place.Location.Lng,
		place.Image,
		place.CreatorID,
		place.CreatedAt,
		place.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert place: %w", err)
	}
	return nil
}

func (t *pgTx) DeletePlace(ctx context.Context, id string) error {
	result, err := t.tx.Exec(ctx, `DELETE FROM places WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete place: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrPlaceNotFound
	}
	return nil
}

func (t *pgTx) SaveUserPlaces(ctx context.Context, user *model.User) error {
	result, err := t.tx.Exec(ctx,
		`UPDATE users SET place_ids = $2 WHERE id = $1`,
		user.ID,
		pq.Array(placeIDs(user)),
	)
	if err != nil {
		return fmt.Errorf("failed to save user places: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (t *pgTx) Commit(ctx context.Context) error {
	if err := t.tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (t *pgTx) Rollback(ctx context.Context) error {
	err := t.tx.Rollback(ctx)
	if err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return fmt.Errorf("failed to roll back transaction: %w", err)
	}
	return nil
}

// UnitOfWork starts transactions over the place and credential stores.
type UnitOfWork interface {
	Begin(ctx context.Context) (Tx, error)
}
