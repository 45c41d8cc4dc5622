package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/placeshare/placeshare/internal/auth"
	"github.com/placeshare/placeshare/internal/geocode"
	"github.com/placeshare/placeshare/internal/metrics"
	"github.com/placeshare/placeshare/internal/model"
	"github.com/placeshare/placeshare/internal/repository/memstore"
)

var testLocation = model.Location{Lat: 40.7484405, Lng: -73.9878584}

type fakeGeocoder struct {
	mu    sync.Mutex
	err   error
	calls int
}

func (g *fakeGeocoder) Geocode(ctx context.Context, address string) (model.Location, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	if g.err != nil {
		return model.Location{}, g.err
	}
	return testLocation, nil
}

type recordingCleaner struct {
	mu    sync.Mutex
	paths []string
}

func (c *recordingCleaner) Enqueue(path string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.paths = append(c.paths, path)
	return true
}

type testEnv struct {
	store    *memstore.Store
	geocoder *fakeGeocoder
	cleaner  *recordingCleaner
	metrics  *metrics.InMemoryRecorder
	places   *PlaceService
	users    *UserService
	tokens   *auth.TokenManager
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	env := &testEnv{
		store:    memstore.New(),
		geocoder: &fakeGeocoder{},
		cleaner:  &recordingCleaner{},
		metrics:  metrics.NewInMemory(),
		tokens:   auth.NewTokenManager("test-secret", time.Hour),
	}
	hasher := auth.NewArgon2Hasher(auth.Argon2Params{Time: 1, Memory: 8 * 1024, Threads: 1, KeyLen: 32, SaltLen: 16})

	env.places = NewPlaceService(env.store, env.geocoder, env.cleaner, env.metrics, nil)
	env.users = NewUserService(env.store, hasher, env.tokens, env.metrics, nil)
	return env
}

func (e *testEnv) signup(t *testing.T, name string) string {
	t.Helper()
	res, err := e.users.Signup(context.Background(), SignupInput{
		Name:     name,
		Email:    name + "@example.com",
		Password: "secret123",
		Image:    "uploads/images/" + name + ".png",
	})
	if err != nil {
		t.Fatalf("Signup(%s) failed: %v", name, err)
	}
	return res.UserID
}

func (e *testEnv) createPlace(t *testing.T, creatorID string) *model.Place {
	t.Helper()
	place, err := e.places.CreatePlace(context.Background(), CreatePlaceInput{
		Title:       "Empire State Building",
		Description: "One of the most famous sky scrapers",
		Address:     "20 W 34th St, New York",
		Image:       "uploads/images/esb.png",
		CreatorID:   creatorID,
	})
	if err != nil {
		t.Fatalf("CreatePlace failed: %v", err)
	}
	return place
}

// assertOwnership checks that the creator back-references exactly the places
// whose creator is userID.
func (e *testEnv) assertOwnership(t *testing.T, userID string) {
	t.Helper()
	ctx := context.Background()

	user, err := e.store.GetUserByID(ctx, userID)
	if err != nil {
		t.Fatalf("GetUserByID failed: %v", err)
	}
	places, err := e.store.ListPlacesByCreator(ctx, userID)
	if err != nil {
		t.Fatalf("ListPlacesByCreator failed: %v", err)
	}

	if len(user.Places) != len(places) {
		t.Fatalf("user owns %v, store holds %d places", user.Places, len(places))
	}
	for _, p := range places {
		if !user.OwnsPlace(p.ID) {
			t.Errorf("place %s missing from creator's set %v", p.ID, user.Places)
		}
	}
}

var _ geocode.Geocoder = (*fakeGeocoder)(nil)
