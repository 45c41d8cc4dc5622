// Package service provides business logic for the application.
package service

import (
	"context"
	"errors"
	"strings"

	"github.com/oklog/ulid/v2"

	"github.com/placeshare/placeshare/internal/model"
	"github.com/placeshare/placeshare/internal/repository"
)

// Service errors.
var (
	ErrPlaceNotFound      = errors.New("place not found")
	ErrUserNotFound       = errors.New("user not found")
	ErrForbidden          = errors.New("caller is not the creator")
	ErrEmailExists        = errors.New("email already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// Store is the persistence the services need: reads, the conditional
// place update, user creation and transactional ownership writes.
// Both repository.Repository and memstore.Store satisfy it.
type Store interface {
	repository.UnitOfWork

	CreateUser(ctx context.Context, user *model.User) error
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	ListUsers(ctx context.Context) ([]*model.User, error)

	GetPlaceByID(ctx context.Context, id string) (*model.Place, error)
	ListPlacesByCreator(ctx context.Context, creatorID string) ([]*model.Place, error)
	UpdatePlace(ctx context.Context, place *model.Place) error
}

// withinTx runs fn in a unit of work and commits if fn succeeds.
// Any error rolls every write back.
func withinTx(ctx context.Context, uow repository.UnitOfWork, fn func(tx repository.Tx) error) error {
	tx, err := uow.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(context.WithoutCancel(ctx))
	}()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// translateStoreError maps repository sentinels onto service errors.
func translateStoreError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrPlaceNotFound):
		return ErrPlaceNotFound
	case errors.Is(err, repository.ErrUserNotFound):
		return ErrUserNotFound
	case errors.Is(err, repository.ErrEmailExists):
		return ErrEmailExists
	default:
		return err
	}
}

func generateID() string {
	return ulid.Make().String()
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
