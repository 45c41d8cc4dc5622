//go:build integration

package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/placeshare/placeshare/internal/testutil"
)

func newRepoTestEnv(t *testing.T) (context.Context, *Repository) {
	t.Helper()
	ctx, pool := newMigrationTestEnv(t)
	return ctx, &Repository{pool: pool}
}

func TestIntegrationUser_CreateAndGet(t *testing.T) {
	ctx, repo := newRepoTestEnv(t)

	user := testutil.NewTestUser(t, "max")
	if err := repo.CreateUser(ctx, user); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	byID, err := repo.GetUserByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("GetUserByID failed: %v", err)
	}
	if byID.Email != user.Email || byID.Places == nil || len(byID.Places) != 0 {
		t.Errorf("GetUserByID = %+v", byID)
	}

	byEmail, err := repo.GetUserByEmail(ctx, user.Email)
	if err != nil {
		t.Fatalf("GetUserByEmail failed: %v", err)
	}
	if byEmail.ID != user.ID {
		t.Errorf("GetUserByEmail ID = %q, want %q", byEmail.ID, user.ID)
	}

	if _, err := repo.GetUserByID(ctx, "missing"); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("GetUserByID(missing) error = %v, want ErrUserNotFound", err)
	}
}

func TestIntegrationUser_DuplicateEmail(t *testing.T) {
	ctx, repo := newRepoTestEnv(t)

	user := testutil.NewTestUser(t, "max")
	if err := repo.CreateUser(ctx, user); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	dup := testutil.NewTestUser(t, "other")
	dup.Email = user.Email
	if err := repo.CreateUser(ctx, dup); !errors.Is(err, ErrEmailExists) {
		t.Errorf("CreateUser(dup) error = %v, want ErrEmailExists", err)
	}
}

func TestIntegrationTx_CommitInsertsPlaceAndOwnership(t *testing.T) {
	ctx, repo := newRepoTestEnv(t)

	user := testutil.NewTestUser(t, "max")
	if err := repo.CreateUser(ctx, user); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	place := testutil.NewTestPlace(t, user.ID)

	tx, err := repo.Begin(ctx)
	if err != nil {
		t.Fatalf("Begin failed: %v", err)
	}
	defer tx.Rollback(ctx)

	locked, err := tx.GetUserForUpdate(ctx, user.ID)
	if err != nil {
		t.Fatalf("GetUserForUpdate failed: %v", err)
	}
	if err := tx.InsertPlace(ctx, place); err != nil {
		t.Fatalf("InsertPlace failed: %v", err)
	}
	locked.AddPlace(place.ID)
	if err := tx.SaveUserPlaces(ctx, locked); err != nil {
		t.Fatalf("SaveUserPlaces failed: %v", err)
	}
	if err := tx.Commit(ctx); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}

	got, err := repo.GetUserByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("GetUserByID failed: %v", err)
	}
	if !got.OwnsPlace(place.ID) {
		t.Errorf("user places = %v, want to contain %q", got.Places, place.ID)
	}

	places, err := repo.ListPlacesByCreator(ctx, user.ID)
	if err != nil {
		t.Fatalf("ListPlacesByCreator failed: %v", err)
	}
	if len(places) != 1 || places[0].ID != place.ID {
		t.Errorf("ListPlacesByCreator = %+v", places)
	}
}

func TestIntegrationTx_RollbackDiscardsWrites(t *testing.T) {
	ctx, repo := newRepoTestEnv(t)

	user := testutil.NewTestUser(t, "max")
	if err := repo.CreateUser(ctx, user); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	place := testutil.NewTestPlace(t, user.ID)

	tx, err := repo.Begin(ctx)
	if err != nil {
		t.Fatalf("Begin failed: %v", err)
	}
	if err := tx.InsertPlace(ctx, place); err != nil {
		t.Fatalf("InsertPlace failed: %v", err)
	}
	if err := tx.Rollback(ctx); err != nil {
		t.Fatalf("Rollback failed: %v", err)
	}
	if err := tx.Rollback(ctx); err != nil {
		t.Errorf("second Rollback should be a no-op, got %v", err)
	}

	if _, err := repo.GetPlaceByID(ctx, place.ID); !errors.Is(err, ErrPlaceNotFound) {
		t.Errorf("GetPlaceByID after rollback error = %v, want ErrPlaceNotFound", err)
	}
}

func TestIntegrationPlace_UpdateRequiresCreator(t *testing.T) {
	ctx, repo := newRepoTestEnv(t)

	user := testutil.NewTestUser(t, "max")
	if err := repo.CreateUser(ctx, user); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	place := testutil.NewTestPlace(t, user.ID)

	tx, err := repo.Begin(ctx)
	if err != nil {
		t.Fatalf("Begin failed: %v", err)
	}
	if err := tx.InsertPlace(ctx, place); err != nil {
		t.Fatalf("InsertPlace failed: %v", err)
	}
	if err := tx.Commit(ctx); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}

	place.Title = "Updated"
	place.UpdatedAt = time.Now().UTC().Truncate(time.Microsecond)
	if err := repo.UpdatePlace(ctx, place); err != nil {
		t.Fatalf("UpdatePlace failed: %v", err)
	}

	stranger := place.Clone()
	stranger.CreatorID = "someone-else"
	stranger.Title = "Hijacked"
	if err := repo.UpdatePlace(ctx, stranger); !errors.Is(err, ErrPlaceNotFound) {
		t.Errorf("UpdatePlace(stranger) error = %v, want ErrPlaceNotFound", err)
	}

	got, err := repo.GetPlaceByID(ctx, place.ID)
	if err != nil {
		t.Fatalf("GetPlaceByID failed: %v", err)
	}
	if got.Title != "Updated" {
		t.Errorf("Title = %q, want Updated", got.Title)
	}
}
