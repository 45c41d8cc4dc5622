package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/placeshare/placeshare/internal/model"
)

// Common errors for place repository operations.
var (
	ErrPlaceNotFound = errors.New("place not found")
)

const placeColumns = `id, title, description, address, lat, lng, image, creator_id, created_at, updated_at`

// GetPlaceByID retrieves a place by its ID.
func (r *Repository) GetPlaceByID(ctx context.Context, id string) (*model.Place, error) {
	query := `SELECT ` + placeColumns + ` FROM places WHERE id = $1`

	place, err := scanPlace(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPlaceNotFound
		}
		return nil, fmt.Errorf("failed to get place by ID: %w", err)
	}

	return place, nil
}

// ListPlacesByCreator retrieves all places created by the given user.
func (r *Repository) ListPlacesByCreator(ctx context.Context, creatorID string) ([]*model.Place, error) {
	query := `SELECT ` + placeColumns + ` FROM places WHERE creator_id = $1 ORDER BY created_at, id`

	rows, err := r.pool.Query(ctx, query, creatorID)
	if err != nil {
		return nil, fmt.Errorf("failed to list places: %w", err)
	}
	defer rows.Close()

	places := make([]*model.Place, 0)
	for rows.Next() {
		place, err := scanPlace(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan place: %w", err)
		}
		places = append(places, place)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating places: %w", err)
	}

	return places, nil
}

// UpdatePlace updates a place's mutable fields.
// The write only applies while the row is still owned by place.CreatorID,
// so a concurrent ownership change surfaces as ErrPlaceNotFound.
func (r *Repository) UpdatePlace(ctx context.Context, place *model.Place) error {
	query := `
		UPDATE places
		SET title = $3, description = $4, updated_at = $5
		WHERE id = $1 AND creator_id = $2
	`

	result, err := r.pool.Exec(ctx, query,
		place.ID,
		place.CreatorID,
		place.Title,
		place.Description,
		place.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to update place: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrPlaceNotFound
	}

	return nil
}

// scanPlace scans a single row into a Place model.
func scanPlace(row pgx.Row) (*model.Place, error) {
	var place model.Place
	err := row.Scan(
		&place.ID,
		&place.Title,
		&place.Description,
		&place.Address,
		&place.Location.Lat,
		&place.Location.Lng,
		&place.Image,
		&place.CreatorID,
		&place.CreatedAt,
		&place.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &place, nil
}
