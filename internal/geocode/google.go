package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/placeshare/placeshare/internal/model"
)

// DefaultGoogleBaseURL is the Google Geocoding API endpoint.
const DefaultGoogleBaseURL = "https://maps.googleapis.com/maps/api/geocode/json"

// GoogleClient resolves addresses with the Google Geocoding API.
type GoogleClient struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

// NewGoogleClient creates a client for the given key and endpoint.
func NewGoogleClient(apiKey, baseURL string, timeout time.Duration) *GoogleClient {
	if baseURL == "" {
		baseURL = DefaultGoogleBaseURL
	}
	return &GoogleClient{
		apiKey:  apiKey,
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

type googleResponse struct {
	Status  string `json:"status"`
	Results []struct {
		Geometry struct {
			Location struct {
				Lat float64 `json:"lat"`
				Lng float64 `json:"lng"`
			} `json:"location"`
		} `json:"geometry"`
	} `json:"results"`
	ErrorMessage string `json:"error_message"`
}

// Geocode returns the first result's coordinates.
// No result maps to a 422 Error; transport and provider failures to a 502 Error.
func (c *GoogleClient) Geocode(ctx context.Context, address string) (model.Location, error) {
	q := url.Values{}
	q.Set("address", address)
	q.Set("key", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return model.Location{}, UpstreamError(err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return model.Location{}, UpstreamError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return model.Location{}, UpstreamError(fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	var body googleResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return model.Location{}, UpstreamError(fmt.Errorf("decode response: %w", err))
	}

	switch body.Status {
	case "OK":
	case "ZERO_RESULTS":
		return model.Location{}, NotFoundError()
	default:
		return model.Location{}, UpstreamError(fmt.Errorf("provider status %s: %s", body.Status, body.ErrorMessage))
	}

	if len(body.Results) == 0 {
		return model.Location{}, NotFoundError()
	}

	loc := body.Results[0].Geometry.Location
	return model.Location{Lat: loc.Lat, Lng: loc.Lng}, nil
}
