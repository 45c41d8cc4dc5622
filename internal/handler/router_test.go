package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/placeshare/placeshare/internal/auth"
	"github.com/placeshare/placeshare/internal/geocode"
	"github.com/placeshare/placeshare/internal/handler/dto"
	"github.com/placeshare/placeshare/internal/metrics"
	"github.com/placeshare/placeshare/internal/middleware"
	"github.com/placeshare/placeshare/internal/model"
	"github.com/placeshare/placeshare/internal/repository/memstore"
	"github.com/placeshare/placeshare/internal/service"
	"github.com/placeshare/placeshare/internal/storage"
	"github.com/placeshare/placeshare/internal/validation"
)

// pngBytes is enough of a PNG for content sniffing.
var pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00\x90wS\xde")

type stubGeocoder struct {
	mu  sync.Mutex
	err error
}

func (g *stubGeocoder) Geocode(ctx context.Context, address string) (model.Location, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return model.Location{}, g.err
	}
	return geocode.DefaultLocation, nil
}

func (g *stubGeocoder) fail(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.err = err
}

type queueRecorder struct {
	mu    sync.Mutex
	paths []string
}

func (q *queueRecorder) Enqueue(p string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.paths = append(q.paths, p)
	return true
}

func (q *queueRecorder) queued() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]string(nil), q.paths...)
}

type testAPI struct {
	router   http.Handler
	store    *memstore.Store
	geocoder *stubGeocoder
	cleaner  *queueRecorder
	metrics  *metrics.InMemoryRecorder
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	images, err := storage.NewImageStore(t.TempDir(), 500_000)
	if err != nil {
		t.Fatalf("NewImageStore: %v", err)
	}

	api := &testAPI{
		store:    memstore.New(),
		geocoder: &stubGeocoder{},
		cleaner:  &queueRecorder{},
		metrics:  metrics.NewInMemory(),
	}
	tokens := auth.NewTokenManager("router-test-secret", time.Hour)
	hasher := auth.NewArgon2Hasher(auth.Argon2Params{Time: 1, Memory: 8 * 1024, Threads: 1, KeyLen: 32, SaltLen: 16})

	placeSvc := service.NewPlaceService(api.store, api.geocoder, api.cleaner, api.metrics, logger)
	userSvc := service.NewUserService(api.store, hasher, tokens, api.metrics, logger)

	api.router = NewRouter(RouterConfig{
		Logger:      logger,
		Places:      NewPlaceHandler(placeSvc, images, api.cleaner, logger),
		Users:       NewUserHandler(userSvc, images, api.cleaner, logger),
		Health:      NewHealthHandler(api.store, nil),
		Metrics:     NewMetricsHandler(api.metrics),
		Verifier:    tokens,
		Recorder:    api.metrics,
		CORS:        middleware.CORSConfig{AllowedOrigins: []string{"*"}, AllowedMethods: []string{"GET", "POST", "PATCH", "DELETE"}, AllowedHeaders: []string{"Authorization", "Content-Type"}},
		Security:    middleware.SecurityConfig{IsDevelopment: true},
		MaxBodySize: 2 << 20,
		UploadDir:   images.Dir(),
	})
	return api
}

func multipartBody(t *testing.T, fields map[string]string, image []byte) (io.Reader, string) {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("WriteField: %v", err)
		}
	}
	if image != nil {
		fw, err := mw.CreateFormFile("image", "photo.png")
		if err != nil {
			t.Fatalf("CreateFormFile: %v", err)
		}
		if _, err := fw.Write(image); err != nil {
			t.Fatalf("write image: %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}
	return &buf, mw.FormDataContentType()
}

func (a *testAPI) do(t *testing.T, method, target string, body io.Reader, contentType, token string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, target, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

func (a *testAPI) doJSON(t *testing.T, method, target string, payload any, token string) *httptest.ResponseRecorder {
	t.Helper()

	b, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return a.do(t, method, target, bytes.NewReader(b), "application/json", token)
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decode body: %v (status %d)", err, rec.Code)
	}
	return v
}

func expectMessage(t *testing.T, rec *httptest.ResponseRecorder, status int, message string) {
	t.Helper()
	if rec.Code != status {
		t.Fatalf("status = %d, want %d; body %s", rec.Code, status, rec.Body.String())
	}
	got := decodeBody[dto.MessageResponse](t, rec)
	if !strings.HasPrefix(got.Message, message) {
		t.Errorf("message = %q, want prefix %q", got.Message, message)
	}
}

func (a *testAPI) signup(t *testing.T, name string) dto.AuthResponse {
	t.Helper()

	body, ct := multipartBody(t, map[string]string{
		"name":     name,
		"email":    name + "@example.com",
		"password": "secret123",
	}, pngBytes)
	rec := a.do(t, http.MethodPost, "/api/users/signup", body, ct, "")
	if rec.Code != http.StatusCreated {
		t.Fatalf("signup status = %d; body %s", rec.Code, rec.Body.String())
	}
	return decodeBody[dto.AuthResponse](t, rec)
}

func (a *testAPI) createPlace(t *testing.T, token string) dto.PlaceResponse {
	t.Helper()

	body, ct := multipartBody(t, map[string]string{
		"title":       "Empire State Building",
		"description": "One of the most famous sky scrapers",
		"address":     "20 W 34th St, New York, NY 10001",
	}, pngBytes)
	rec := a.do(t, http.MethodPost, "/api/places", body, ct, token)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create place status = %d; body %s", rec.Code, rec.Body.String())
	}
	return *decodeBody[dto.PlaceEnvelope](t, rec).Place
}

func (a *testAPI) userPlaces(t *testing.T, userID string) []string {
	t.Helper()

	rec := a.do(t, http.MethodGet, "/api/users", nil, "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("list users status = %d", rec.Code)
	}
	for _, u := range decodeBody[dto.UserListEnvelope](t, rec).Users {
		if u.ID == userID {
			return u.Places
		}
	}
	t.Fatalf("user %s not listed", userID)
	return nil
}

func TestRouter_SignupAndLogin(t *testing.T) {
	t.Parallel()
	api := newTestAPI(t)

	signed := api.signup(t, "ann")
	if signed.UserID == "" || signed.Token == "" || signed.Email != "ann@example.com" {
		t.Fatalf("unexpected signup response %+v", signed)
	}

	rec := api.doJSON(t, http.MethodPost, "/api/users/login", map[string]string{
		"email":    "ANN@example.com",
		"password": "secret123",
	}, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("login status = %d; body %s", rec.Code, rec.Body.String())
	}
	logged := decodeBody[dto.AuthResponse](t, rec)
	if logged.UserID != signed.UserID {
		t.Errorf("login user id = %q, want %q", logged.UserID, signed.UserID)
	}

	rec = api.doJSON(t, http.MethodPost, "/api/users/login", map[string]string{
		"email":    "ann@example.com",
		"password": "wrong-password",
	}, "")
	expectMessage(t, rec, http.StatusUnauthorized, MsgInvalidCreds)

	rec = api.do(t, http.MethodGet, "/api/users", nil, "", "")
	if strings.Contains(rec.Body.String(), "password") {
		t.Errorf("user listing leaks password data: %s", rec.Body.String())
	}
}

func TestRouter_DuplicateSignup(t *testing.T) {
	t.Parallel()
	api := newTestAPI(t)

	api.signup(t, "ann")

	body, ct := multipartBody(t, map[string]string{
		"name":     "Ann Again",
		"email":    "ann@example.com",
		"password": "secret123",
	}, pngBytes)
	rec := api.do(t, http.MethodPost, "/api/users/signup", body, ct, "")
	expectMessage(t, rec, http.StatusUnprocessableEntity, MsgEmailExists)

	if got := len(api.cleaner.queued()); got != 1 {
		t.Errorf("queued removals = %d, want 1 for the rejected upload", got)
	}
}

func TestRouter_SignupValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		fields map[string]string
		image  []byte
	}{
		{
			name:   "missing image",
			fields: map[string]string{"name": "Bob", "email": "bob@example.com", "password": "secret123"},
		},
		{
			name:   "not an image",
			fields: map[string]string{"name": "Bob", "email": "bob@example.com", "password": "secret123"},
			image:  []byte("plain text pretending to be a picture"),
		},
		{
			name:   "short password",
			fields: map[string]string{"name": "Bob", "email": "bob@example.com", "password": "abc"},
			image:  pngBytes,
		},
		{
			name:   "bad email",
			fields: map[string]string{"name": "Bob", "email": "bob", "password": "secret123"},
			image:  pngBytes,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			api := newTestAPI(t)

			body, ct := multipartBody(t, tt.fields, tt.image)
			rec := api.do(t, http.MethodPost, "/api/users/signup", body, ct, "")
			expectMessage(t, rec, http.StatusUnprocessableEntity, validation.MsgInvalidInput)
		})
	}
}

func TestRouter_ProtectedRoutesRequireToken(t *testing.T) {
	t.Parallel()
	api := newTestAPI(t)

	body, ct := multipartBody(t, map[string]string{"title": "x"}, pngBytes)
	rec := api.do(t, http.MethodPost, "/api/places", body, ct, "")
	expectMessage(t, rec, http.StatusUnauthorized, middleware.MsgAuthFailed)

	rec = api.do(t, http.MethodDelete, "/api/places/whatever", nil, "", "garbage")
	expectMessage(t, rec, http.StatusUnauthorized, middleware.MsgAuthFailed)

	if got := api.metrics.Snapshot().AuthFailures; got[metrics.ReasonMissingToken] != 1 || got[metrics.ReasonInvalidToken] != 1 {
		t.Errorf("auth failure counts = %v", got)
	}
}

func TestRouter_PreflightSkipsTokenGuard(t *testing.T) {
	t.Parallel()
	api := newTestAPI(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/places", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	api.router.ServeHTTP(rec, req)

	if rec.Code == http.StatusUnauthorized {
		t.Fatal("pre-flight request was rejected by the token guard")
	}
	if rec.Header().Get("Access-Control-Allow-Origin") == "" {
		t.Error("pre-flight response lacks CORS headers")
	}
}

func TestRouter_CreateAndFetchPlace(t *testing.T) {
	t.Parallel()
	api := newTestAPI(t)

	ann := api.signup(t, "ann")
	place := api.createPlace(t, ann.Token)

	if place.Creator != ann.UserID {
		t.Errorf("creator = %q, want %q", place.Creator, ann.UserID)
	}
	if place.Location.Lat != geocode.DefaultLocation.Lat || place.Location.Lng != geocode.DefaultLocation.Lng {
		t.Errorf("location = %+v", place.Location)
	}

	rec := api.do(t, http.MethodGet, "/api/places/"+place.ID, nil, "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("get place status = %d", rec.Code)
	}
	if got := decodeBody[dto.PlaceEnvelope](t, rec).Place; got.Title != place.Title {
		t.Errorf("title = %q, want %q", got.Title, place.Title)
	}

	rec = api.do(t, http.MethodGet, "/api/places/user/"+ann.UserID, nil, "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("list places status = %d", rec.Code)
	}
	if got := decodeBody[dto.PlaceListEnvelope](t, rec).Places; len(got) != 1 || got[0].ID != place.ID {
		t.Errorf("places = %+v", got)
	}

	if got := api.userPlaces(t, ann.UserID); len(got) != 1 || got[0] != place.ID {
		t.Errorf("user places = %v, want [%s]", got, place.ID)
	}

	rec = api.do(t, http.MethodGet, "/"+place.Image, nil, "", "")
	if rec.Code != http.StatusOK {
		t.Errorf("uploaded image status = %d, want 200", rec.Code)
	}
}

func TestRouter_FailedGeocodingCreatesNothing(t *testing.T) {
	t.Parallel()
	api := newTestAPI(t)

	ann := api.signup(t, "ann")
	api.geocoder.fail(geocode.NotFoundError())

	body, ct := multipartBody(t, map[string]string{
		"title":       "Nowhere",
		"description": "An address that does not exist",
		"address":     "zzzz",
	}, pngBytes)
	rec := api.do(t, http.MethodPost, "/api/places", body, ct, ann.Token)
	expectMessage(t, rec, http.StatusUnprocessableEntity, geocode.MsgNotFound)

	rec = api.do(t, http.MethodGet, "/api/places/user/"+ann.UserID, nil, "", "")
	expectMessage(t, rec, http.StatusNotFound, MsgUserPlacesEmpty)

	if got := api.userPlaces(t, ann.UserID); len(got) != 0 {
		t.Errorf("user places = %v, want none", got)
	}
	// The signup image stays; only the rejected place image is queued.
	if got := len(api.cleaner.queued()); got != 1 {
		t.Errorf("queued removals = %d, want 1", got)
	}
}

func TestRouter_NonOwnerCannotDelete(t *testing.T) {
	t.Parallel()
	api := newTestAPI(t)

	ann := api.signup(t, "ann")
	bob := api.signup(t, "bob")
	place := api.createPlace(t, ann.Token)

	rec := api.do(t, http.MethodDelete, "/api/places/"+place.ID, nil, "", bob.Token)
	expectMessage(t, rec, http.StatusForbidden, MsgForbidden)

	rec = api.do(t, http.MethodGet, "/api/places/"+place.ID, nil, "", "")
	if rec.Code != http.StatusOK {
		t.Errorf("place gone after rejected delete, status = %d", rec.Code)
	}
	if got := api.userPlaces(t, ann.UserID); len(got) != 1 || got[0] != place.ID {
		t.Errorf("owner back-reference changed: %v", got)
	}
	if got := len(api.cleaner.queued()); got != 0 {
		t.Errorf("queued removals = %d, want 0", got)
	}
}

func TestRouter_DeletePlace(t *testing.T) {
	t.Parallel()
	api := newTestAPI(t)

	ann := api.signup(t, "ann")
	place := api.createPlace(t, ann.Token)

	rec := api.do(t, http.MethodDelete, "/api/places/"+place.ID, nil, "", ann.Token)
	expectMessage(t, rec, http.StatusOK, MsgPlaceDeleted)

	rec = api.do(t, http.MethodGet, "/api/places/"+place.ID, nil, "", "")
	expectMessage(t, rec, http.StatusNotFound, MsgPlaceNotFound)

	rec = api.do(t, http.MethodGet, "/api/places/user/"+ann.UserID, nil, "", "")
	expectMessage(t, rec, http.StatusNotFound, MsgUserPlacesEmpty)

	if got := api.userPlaces(t, ann.UserID); len(got) != 0 {
		t.Errorf("user places after delete = %v, want none", got)
	}
	if got := api.cleaner.queued(); len(got) != 1 || got[0] != place.Image {
		t.Errorf("queued removals = %v, want [%s]", got, place.Image)
	}

	rec = api.do(t, http.MethodDelete, "/api/places/"+place.ID, nil, "", ann.Token)
	expectMessage(t, rec, http.StatusNotFound, MsgPlaceNotFound)
}

func TestRouter_UpdatePlace(t *testing.T) {
	t.Parallel()
	api := newTestAPI(t)

	ann := api.signup(t, "ann")
	bob := api.signup(t, "bob")
	place := api.createPlace(t, ann.Token)
	target := "/api/places/" + place.ID

	tests := []struct {
		name       string
		payload    any
		token      string
		wantStatus int
		wantMsg    string
	}{
		{"non-owner", map[string]string{"title": "Mine now", "description": "Taken over by bob"}, bob.Token, http.StatusForbidden, MsgForbidden},
		{"short description", map[string]string{"title": "ESB", "description": "abc"}, ann.Token, http.StatusUnprocessableEntity, validation.MsgInvalidInput},
		{"missing title", map[string]string{"description": "Still a tall building"}, ann.Token, http.StatusUnprocessableEntity, validation.MsgInvalidInput},
		{"malformed json", "{", ann.Token, http.StatusUnprocessableEntity, validation.MsgInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var rec *httptest.ResponseRecorder
			if raw, ok := tt.payload.(string); ok {
				rec = api.do(t, http.MethodPatch, target, strings.NewReader(raw), "application/json", tt.token)
			} else {
				rec = api.doJSON(t, http.MethodPatch, target, tt.payload, tt.token)
			}
			expectMessage(t, rec, tt.wantStatus, tt.wantMsg)
		})
	}

	rec := api.doJSON(t, http.MethodPatch, target, map[string]string{
		"title":       "ESB",
		"description": "Art deco landmark",
	}, ann.Token)
	if rec.Code != http.StatusOK {
		t.Fatalf("update status = %d; body %s", rec.Code, rec.Body.String())
	}
	updated := decodeBody[dto.PlaceEnvelope](t, rec).Place
	if updated.Title != "ESB" || updated.Description != "Art deco landmark" {
		t.Errorf("updated place = %+v", updated)
	}
	if updated.Address != place.Address || updated.Creator != place.Creator {
		t.Errorf("update touched immutable fields: %+v", updated)
	}
}

func TestRouter_UnknownPlaceAndRoute(t *testing.T) {
	t.Parallel()
	api := newTestAPI(t)

	rec := api.do(t, http.MethodGet, "/api/places/does-not-exist", nil, "", "")
	expectMessage(t, rec, http.StatusNotFound, MsgPlaceNotFound)

	rec = api.do(t, http.MethodGet, "/api/places/user/nobody", nil, "", "")
	expectMessage(t, rec, http.StatusNotFound, MsgUserPlacesEmpty)

	rec = api.do(t, http.MethodGet, "/api/nothing-here", nil, "", "")
	expectMessage(t, rec, http.StatusNotFound, MsgRouteNotFound)

	rec = api.do(t, http.MethodPut, "/api/users/login", nil, "", "")
	expectMessage(t, rec, http.StatusMethodNotAllowed, MsgMethodNotAllowed)

	rec = api.do(t, http.MethodGet, UploadsPrefix, nil, "", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("upload dir listing status = %d, want 404", rec.Code)
	}
}

func TestRouter_OpsEndpoints(t *testing.T) {
	t.Parallel()
	api := newTestAPI(t)

	for _, p := range []string{"/healthz", "/readyz", "/metrics"} {
		rec := api.do(t, http.MethodGet, p, nil, "", "")
		if rec.Code != http.StatusOK {
			t.Errorf("GET %s status = %d, want 200", p, rec.Code)
		}
	}
}
