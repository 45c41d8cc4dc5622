package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/placeshare/placeshare/internal/geocode"
	"github.com/placeshare/placeshare/internal/metrics"
	"github.com/placeshare/placeshare/internal/model"
	"github.com/placeshare/placeshare/internal/repository"
	"github.com/placeshare/placeshare/internal/validation"
)

// ImageCleaner schedules removal of an image that is no longer referenced.
type ImageCleaner interface {
	Enqueue(path string) bool
}

type noopCleaner struct{}

func (noopCleaner) Enqueue(string) bool { return false }

// PlaceService handles place lookup and the ownership-preserving mutations.
type PlaceService struct {
	store    Store
	geocoder geocode.Geocoder
	cleaner  ImageCleaner
	metrics  metrics.Recorder
	logger   *slog.Logger
	now      func() time.Time
}

// NewPlaceService creates a new PlaceService.
func NewPlaceService(store Store, geocoder geocode.Geocoder, cleaner ImageCleaner, recorder metrics.Recorder, logger *slog.Logger) *PlaceService {
	if cleaner == nil {
		cleaner = noopCleaner{}
	}
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PlaceService{
		store:    store,
		geocoder: geocoder,
		cleaner:  cleaner,
		metrics:  recorder,
		logger:   logger.With("component", "service.place"),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// GetPlace retrieves a place by ID.
func (s *PlaceService) GetPlace(ctx context.Context, id string) (*model.Place, error) {
	place, err := s.store.GetPlaceByID(ctx, id)
	if err != nil {
		return nil, translateStoreError(err)
	}
	return place, nil
}

// ListPlacesByUser returns the places created by userID.
// An empty result is reported as ErrPlaceNotFound.
func (s *PlaceService) ListPlacesByUser(ctx context.Context, userID string) ([]*model.Place, error) {
	places, err := s.store.ListPlacesByCreator(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(places) == 0 {
		return nil, ErrPlaceNotFound
	}
	return places, nil
}

// CreatePlaceInput defines input for creating a place.
type CreatePlaceInput struct {
	Title       string `form:"title" validate:"required"`
	Description string `form:"description" validate:"min=5"`
	Address     string `form:"address" validate:"required"`
	Image       string `form:"image" validate:"required"`
	CreatorID   string `validate:"required"`
}

// CreatePlace geocodes the address and stores the place together with the
// creator's back-reference. Either both writes commit or neither does.
func (s *PlaceService) CreatePlace(ctx context.Context, input CreatePlaceInput) (*model.Place, error) {
	input.Title = strings.TrimSpace(input.Title)
	input.Address = strings.TrimSpace(input.Address)
	if err := validation.Struct(&input); err != nil {
		return nil, err
	}

	location, err := s.geocoder.Geocode(ctx, input.Address)
	if err != nil {
		return nil, err
	}

	if _, err := s.store.GetUserByID(ctx, input.CreatorID); err != nil {
		return nil, translateStoreError(err)
	}

	now := s.now()
	place := &model.Place{
		ID:          generateID(),
		Title:       input.Title,
		Description: input.Description,
		Address:     input.Address,
		Location:    location,
		Image:       input.Image,
		CreatorID:   input.CreatorID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err = withinTx(ctx, s.store, func(tx repository.Tx) error {
		creator, err := tx.GetUserForUpdate(ctx, input.CreatorID)
		if err != nil {
			return err
		}
		if err := tx.InsertPlace(ctx, place); err != nil {
			return err
		}
		creator.AddPlace(place.ID)
		return tx.SaveUserPlaces(ctx, creator)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create place: %w", translateStoreError(err))
	}

	s.metrics.IncPlaceCreated()
	s.logger.Info("place created", "place_id", place.ID, "user_id", place.CreatorID)

	return place, nil
}

// UpdatePlaceInput defines input for updating a place.
type UpdatePlaceInput struct {
	PlaceID     string `validate:"required"`
	Title       string `json:"title" validate:"required"`
	Description string `json:"description" validate:"min=5"`
	CallerID    string `validate:"required"`
}

// UpdatePlace changes title and description. Only the creator may update.
func (s *PlaceService) UpdatePlace(ctx context.Context, input UpdatePlaceInput) (*model.Place, error) {
	input.Title = strings.TrimSpace(input.Title)
	if err := validation.Struct(&input); err != nil {
		return nil, err
	}

	place, err := s.store.GetPlaceByID(ctx, input.PlaceID)
	if err != nil {
		return nil, translateStoreError(err)
	}
	if place.CreatorID != input.CallerID {
		return nil, ErrForbidden
	}

	place.Title = input.Title
	place.Description = input.Description
	place.UpdatedAt = s.now()

	if err := s.store.UpdatePlace(ctx, place); err != nil {
		return nil, translateStoreError(err)
	}

	s.metrics.IncPlaceUpdated()
	s.logger.Info("place updated", "place_id", place.ID, "user_id", input.CallerID)

	return place, nil
}

// DeletePlace removes a place and its back-reference in one unit of work.
// Only the creator may delete. The image is removed after commit on a best-effort basis.
func (s *PlaceService) DeletePlace(ctx context.Context, placeID, callerID string) error {
	var image string

	err := withinTx(ctx, s.store, func(tx repository.Tx) error {
		place, err := tx.GetPlaceForUpdate(ctx, placeID)
		if err != nil {
			return err
		}

		creator, err := tx.GetUserForUpdate(ctx, place.CreatorID)
		if err != nil {
			if errors.Is(err, repository.ErrUserNotFound) {
				return fmt.Errorf("place %s has no creator", place.ID)
			}
			return err
		}
		if creator.ID != callerID {
			return ErrForbidden
		}

		if err := tx.DeletePlace(ctx, place.ID); err != nil {
			return err
		}
		creator.RemovePlace(place.ID)
		if err := tx.SaveUserPlaces(ctx, creator); err != nil {
			return err
		}

		image = place.Image
		return nil
	})
	if err != nil {
		switch err = translateStoreError(err); {
		case errors.Is(err, ErrPlaceNotFound), errors.Is(err, ErrForbidden):
			return err
		default:
			return fmt.Errorf("failed to delete place: %w", err)
		}
	}

	s.cleaner.Enqueue(image)
	s.metrics.IncPlaceDeleted()
	s.logger.Info("place deleted", "place_id", placeID, "user_id", callerID)

	return nil
}
