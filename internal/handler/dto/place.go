package dto

import "github.com/placeshare/placeshare/internal/model"

// UpdatePlaceRequest represents the request body for PATCH /api/places/{pid}.
type UpdatePlaceRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// LocationResponse is a coordinate pair.
type LocationResponse struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// PlaceResponse represents a place in API responses.
type PlaceResponse struct {
	ID          string           `json:"id"`
	Title       string           `json:"title"`
	Description string           `json:"description"`
	Address     string           `json:"address"`
	Location    LocationResponse `json:"location"`
	Image       string           `json:"image"`
	Creator     string           `json:"creator"`
}

// PlaceEnvelope wraps a single place as {"place": ...}.
type PlaceEnvelope struct {
	Place *PlaceResponse `json:"place"`
}

// PlaceListEnvelope wraps places as {"places": [...]}.
type PlaceListEnvelope struct {
	Places []PlaceResponse `json:"places"`
}

// ToPlaceResponse converts a Place model to PlaceResponse DTO.
func ToPlaceResponse(place *model.Place) *PlaceResponse {
	return &PlaceResponse{
		ID:          place.ID,
		Title:       place.Title,
		Description: place.Description,
		Address:     place.Address,
		Location:    LocationResponse{Lat: place.Location.Lat, Lng: place.Location.Lng},
		Image:       place.Image,
		Creator:     place.CreatorID,
	}
}

// ToPlaceListEnvelope converts a slice of Place models.
func ToPlaceListEnvelope(places []*model.Place) *PlaceListEnvelope {
	responses := make([]PlaceResponse, len(places))
	for i, place := range places {
		responses[i] = *ToPlaceResponse(place)
	}
	return &PlaceListEnvelope{Places: responses}
}
