// Package handler provides HTTP request handlers.
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"mime/multipart"
	"net/http"

	"github.com/placeshare/placeshare/internal/geocode"
	"github.com/placeshare/placeshare/internal/handler/dto"
	"github.com/placeshare/placeshare/internal/middleware"
	"github.com/placeshare/placeshare/internal/service"
	"github.com/placeshare/placeshare/internal/storage"
	"github.com/placeshare/placeshare/internal/validation"
)

// Response messages shared by the handlers.
const (
	MsgRouteNotFound    = "Route not found"
	MsgMethodNotAllowed = "Method not allowed"
	MsgUnknownError     = "An unknown error occurred!"
	MsgPlaceNotFound    = "Could not find place for the provided id."
	MsgUserPlacesEmpty  = "Could not find places for the provided user id."
	MsgUserNotFound     = "Could not find user for the provided id."
	MsgForbidden        = "You are not allowed to modify this place."
	MsgEmailExists      = "User already exists! Try login instead"
	MsgInvalidCreds     = "Invalid creds"
	MsgPlaceDeleted     = "Place deleted!"
)

// maxMultipartMemory is the part of a multipart body kept in memory; the rest spills to temp files.
const maxMultipartMemory = 1 << 20

// ImageSaver stores uploaded images.
type ImageSaver interface {
	Save(fh *multipart.FileHeader) (string, error)
}

// NotFound handles 404 responses for unknown routes.
func NotFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusNotFound, MsgRouteNotFound)
}

// MethodNotAllowed handles 405 responses.
func MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusMethodNotAllowed, MsgMethodNotAllowed)
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes a {message} error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, dto.MessageResponse{Message: message})
}

// decodeJSON decodes a JSON request body. A malformed body is reported as invalid input.
func decodeJSON(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return &validation.RequestError{Fields: []validation.FieldError{{
			Field:   "body",
			Tag:     "json",
			Message: "body must be valid JSON",
		}}}
	}
	return nil
}

// parseMultipart parses a multipart/form-data body.
func parseMultipart(r *http.Request) error {
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return storage.ErrImageTooLarge
		}
		return &validation.RequestError{Fields: []validation.FieldError{{
			Field:   "body",
			Tag:     "multipart",
			Message: "body must be multipart/form-data",
		}}}
	}
	return nil
}

// formFile returns the first uploaded file for field, or nil.
func formFile(r *http.Request, field string) *multipart.FileHeader {
	if r.MultipartForm == nil {
		return nil
	}
	if files := r.MultipartForm.File[field]; len(files) > 0 {
		return files[0]
	}
	return nil
}

// discardUpload queues removal of an image saved for a request that failed.
func discardUpload(cleaner service.ImageCleaner, logger *slog.Logger, path string) {
	if path == "" || cleaner == nil {
		return
	}
	if !cleaner.Enqueue(path) {
		logger.Warn("orphaned upload not queued for removal", slog.String("image", path))
	}
}

// handleServiceError maps service errors to HTTP responses.
func handleServiceError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	var reqErr *validation.RequestError
	if errors.As(err, &reqErr) {
		writeError(w, http.StatusUnprocessableEntity, reqErr.Error())
		return
	}
	if gerr, ok := geocode.AsError(err); ok {
		writeError(w, gerr.Status, gerr.Message)
		return
	}

	switch {
	case errors.Is(err, storage.ErrImageRequired),
		errors.Is(err, storage.ErrImageTooLarge),
		errors.Is(err, storage.ErrUnsupportedImage):
		writeError(w, http.StatusUnprocessableEntity, validation.MsgInvalidInput+": "+err.Error())
	case errors.Is(err, service.ErrPlaceNotFound):
		writeError(w, http.StatusNotFound, MsgPlaceNotFound)
	case errors.Is(err, service.ErrUserNotFound):
		writeError(w, http.StatusNotFound, MsgUserNotFound)
	case errors.Is(err, service.ErrForbidden):
		writeError(w, http.StatusForbidden, MsgForbidden)
	case errors.Is(err, service.ErrEmailExists):
		writeError(w, http.StatusUnprocessableEntity, MsgEmailExists)
	case errors.Is(err, service.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, MsgInvalidCreds)
	default:
		logger.Error("internal error",
			slog.String("request_id", middleware.GetRequestID(r.Context())),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, MsgUnknownError)
	}
}
