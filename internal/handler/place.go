package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/placeshare/placeshare/internal/auth"
	"github.com/placeshare/placeshare/internal/handler/dto"
	"github.com/placeshare/placeshare/internal/service"
)

// PlaceHandler handles HTTP requests for place operations.
type PlaceHandler struct {
	svc     *service.PlaceService
	images  ImageSaver
	cleaner service.ImageCleaner
	logger  *slog.Logger
}

// NewPlaceHandler creates a new PlaceHandler.
func NewPlaceHandler(svc *service.PlaceService, images ImageSaver, cleaner service.ImageCleaner, logger *slog.Logger) *PlaceHandler {
	return &PlaceHandler{
		svc:     svc,
		images:  images,
		cleaner: cleaner,
		logger:  logger,
	}
}

// Get handles GET /api/places/{pid}.
func (h *PlaceHandler) Get(w http.ResponseWriter, r *http.Request) {
	place, err := h.svc.GetPlace(r.Context(), chi.URLParam(r, "pid"))
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.PlaceEnvelope{Place: dto.ToPlaceResponse(place)})
}

// ListByUser handles GET /api/places/user/{uid}.
func (h *PlaceHandler) ListByUser(w http.ResponseWriter, r *http.Request) {
	places, err := h.svc.ListPlacesByUser(r.Context(), chi.URLParam(r, "uid"))
	if err != nil {
		if errors.Is(err, service.ErrPlaceNotFound) {
			writeError(w, http.StatusNotFound, MsgUserPlacesEmpty)
			return
		}
		handleServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ToPlaceListEnvelope(places))
}

// Create handles POST /api/places (multipart: title, description, address, image).
func (h *PlaceHandler) Create(w http.ResponseWriter, r *http.Request) {
	if err := parseMultipart(r); err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	var image string
	if fh := formFile(r, "image"); fh != nil {
		saved, err := h.images.Save(fh)
		if err != nil {
			handleServiceError(w, r, h.logger, err)
			return
		}
		image = saved
	}

	input := service.CreatePlaceInput{
		Title:       r.FormValue("title"),
		Description: r.FormValue("description"),
		Address:     r.FormValue("address"),
		Image:       image,
		CreatorID:   auth.UserIDFromContext(r.Context()),
	}

	place, err := h.svc.CreatePlace(r.Context(), input)
	if err != nil {
		discardUpload(h.cleaner, h.logger, image)
		handleServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, dto.PlaceEnvelope{Place: dto.ToPlaceResponse(place)})
}

// Update handles PATCH /api/places/{pid}.
func (h *PlaceHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req dto.UpdatePlaceRequest
	if err := decodeJSON(r, &req); err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	place, err := h.svc.UpdatePlace(r.Context(), service.UpdatePlaceInput{
		PlaceID:     chi.URLParam(r, "pid"),
		Title:       req.Title,
		Description: req.Description,
		CallerID:    auth.UserIDFromContext(r.Context()),
	})
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.PlaceEnvelope{Place: dto.ToPlaceResponse(place)})
}

// Delete handles DELETE /api/places/{pid}.
func (h *PlaceHandler) Delete(w http.ResponseWriter, r *http.Request) {
	err := h.svc.DeletePlace(r.Context(), chi.URLParam(r, "pid"), auth.UserIDFromContext(r.Context()))
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.MessageResponse{Message: MsgPlaceDeleted})
}
