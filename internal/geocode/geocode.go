// Package geocode resolves free-form addresses to coordinates.
package geocode

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/placeshare/placeshare/internal/model"
)

// Messages returned to clients.
const (
	MsgNotFound    = "Could not find location for the specified address."
	MsgUnavailable = "Geocoding service is unavailable, please try again later."
)

// Geocoder resolves an address to a location.
type Geocoder interface {
	Geocode(ctx context.Context, address string) (model.Location, error)
}

// Error is a geocoding failure carrying the HTTP status it maps to.
type Error struct {
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("geocode: %s: %v", e.Message, e.Err)
	}
	return "geocode: " + e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NotFoundError reports that the address resolved to no location.
func NotFoundError() *Error {
	return &Error{Status: http.StatusUnprocessableEntity, Message: MsgNotFound}
}

// UpstreamError reports a transport or provider failure.
func UpstreamError(err error) *Error {
	return &Error{Status: http.StatusBadGateway, Message: MsgUnavailable, Err: err}
}

// AsError extracts a *Error from err.
func AsError(err error) (*Error, bool) {
	var gerr *Error
	ok := errors.As(err, &gerr)
	return gerr, ok
}

// Static returns the same location for every address.
type Static struct {
	Location model.Location
}

// DefaultLocation is used by Static when no coordinates are configured.
var DefaultLocation = model.Location{Lat: 40.7484474, Lng: -73.9871516}

// NewStatic creates a Static geocoder for loc.
func NewStatic(loc model.Location) *Static {
	return &Static{Location: loc}
}

func (s *Static) Geocode(ctx context.Context, address string) (model.Location, error) {
	if err := ctx.Err(); err != nil {
		return model.Location{}, err
	}
	return s.Location, nil
}
