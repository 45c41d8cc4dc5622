// Package memstore is an in-memory implementation of the place and credential
// stores. Transactions are serialized by a store-wide lock and stage their
// writes until commit, so readers never observe a partially applied unit of work.
package memstore

import (
	"context"
	"errors"
	"slices"
	"sync"

	"github.com/placeshare/placeshare/internal/model"
	"github.com/placeshare/placeshare/internal/repository"
)

// ErrTxDone is returned when a finished transaction is used again.
var ErrTxDone = errors.New("memstore: transaction already finished")

// Op names a store operation that can be made to fail.
type Op string

const (
	OpCreateUser     Op = "create_user"
	OpUpdatePlace    Op = "update_place"
	OpBegin          Op = "begin"
	OpInsertPlace    Op = "insert_place"
	OpDeletePlace    Op = "delete_place"
	OpSaveUserPlaces Op = "save_user_places"
	OpCommit         Op = "commit"
)

// Store holds users and places in memory.
type Store struct {
	// txSem admits one transaction at a time.
	txSem chan struct{}

	mu         sync.RWMutex
	users      map[string]*model.User
	emails     map[string]string
	userOrder  []string
	places     map[string]*model.Place
	placeOrder []string
	faults     map[Op]error
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		txSem:  make(chan struct{}, 1),
		users:  make(map[string]*model.User),
		emails: make(map[string]string),
		places: make(map[string]*model.Place),
		faults: make(map[Op]error),
	}
}

// FailOn makes every subsequent call of op return err until ClearFaults.
func (s *Store) FailOn(op Op, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults[op] = err
}

// ClearFaults removes all injected failures.
func (s *Store) ClearFaults() {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.faults)
}

func (s *Store) fault(op Op) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.faults[op]
}

// Ping always succeeds.
func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

// Close is a no-op.
func (s *Store) Close() {}

// CreateUser inserts a user. A taken email returns repository.ErrEmailExists.
func (s *Store) CreateUser(ctx context.Context, user *model.User) error {
	if err := s.fault(OpCreateUser); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.emails[user.Email]; ok {
		return repository.ErrEmailExists
	}
	s.users[user.ID] = user.Clone()
	s.emails[user.Email] = user.ID
	s.userOrder = append(s.userOrder, user.ID)
	return nil
}

// GetUserByID returns a copy of the user.
func (s *Store) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	return user.Clone(), nil
}

// GetUserByEmail returns a copy of the user registered under email.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.emails[email]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	return s.users[id].Clone(), nil
}

// ListUsers returns every user in insertion order.
func (s *Store) ListUsers(ctx context.Context) ([]*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]*model.User, 0, len(s.userOrder))
	for _, id := range s.userOrder {
		users = append(users, s.users[id].Clone())
	}
	return users, nil
}

// GetPlaceByID returns a copy of the place.
func (s *Store) GetPlaceByID(ctx context.Context, id string) (*model.Place, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	place, ok := s.places[id]
	if !ok {
		return nil, repository.ErrPlaceNotFound
	}
	return place.Clone(), nil
}

// ListPlacesByCreator returns the creator's places in insertion order.
func (s *Store) ListPlacesByCreator(ctx context.Context, creatorID string) ([]*model.Place, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	places := make([]*model.Place, 0)
	for _, id := range s.placeOrder {
		if p := s.places[id]; p.CreatorID == creatorID {
			places = append(places, p.Clone())
		}
	}
	return places, nil
}

// UpdatePlace writes title, description and updated_at while the place is
// still owned by place.CreatorID.
func (s *Store) UpdatePlace(ctx context.Context, place *model.Place) error {
	if err := s.fault(OpUpdatePlace); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.places[place.ID]
	if !ok || current.CreatorID != place.CreatorID {
		return repository.ErrPlaceNotFound
	}
	current.Title = place.Title
	current.Description = place.Description
	current.UpdatedAt = place.UpdatedAt
	return nil
}

// Begin waits for any running transaction to finish and starts a new one.
func (s *Store) Begin(ctx context.Context) (repository.Tx, error) {
	if err := s.fault(OpBegin); err != nil {
		return nil, err
	}

	select {
	case s.txSem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	return &tx{
		s:       s,
		users:   make(map[string]*model.User),
		places:  make(map[string]*model.Place),
		deleted: make(map[string]bool),
	}, nil
}

// tx stages writes in its own maps and applies them under the store lock on commit.
type tx struct {
	s          *Store
	users      map[string]*model.User
	places     map[string]*model.Place
	placeOrder []string
	deleted    map[string]bool
	done       bool
}

func (t *tx) GetUserForUpdate(ctx context.Context, id string) (*model.User, error) {
	if t.done {
		return nil, ErrTxDone
	}
	if user, ok := t.users[id]; ok {
		return user.Clone(), nil
	}
	return t.s.GetUserByID(ctx, id)
}

func (t *tx) GetPlaceForUpdate(ctx context.Context, id string) (*model.Place, error) {
	if t.done {
		return nil, ErrTxDone
	}
	if t.deleted[id] {
		return nil, repository.ErrPlaceNotFound
	}
	if place, ok := t.places[id]; ok {
		return place.Clone(), nil
	}
	return t.s.GetPlaceByID(ctx, id)
}

func (t *tx) InsertPlace(ctx context.Context, place *model.Place) error {
	if t.done {
		return ErrTxDone
	}
	if err := t.s.fault(OpInsertPlace); err != nil {
		return err
	}
	if _, err := t.s.GetUserByID(ctx, place.CreatorID); err != nil {
		if _, staged := t.users[place.CreatorID]; !staged {
			return err
		}
	}
	t.places[place.ID] = place.Clone()
	t.placeOrder = append(t.placeOrder, place.ID)
	delete(t.deleted, place.ID)
	return nil
}

func (t *tx) DeletePlace(ctx context.Context, id string) error {
	if t.done {
		return ErrTxDone
	}
	if err := t.s.fault(OpDeletePlace); err != nil {
		return err
	}
	if _, err := t.GetPlaceForUpdate(ctx, id); err != nil {
		return err
	}
	delete(t.places, id)
	t.deleted[id] = true
	return nil
}

func (t *tx) SaveUserPlaces(ctx context.Context, user *model.User) error {
	if t.done {
		return ErrTxDone
	}
	if err := t.s.fault(OpSaveUserPlaces); err != nil {
		return err
	}
	current, err := t.GetUserForUpdate(ctx, user.ID)
	if err != nil {
		return err
	}
	current.Places = slices.Clone(user.Places)
	if current.Places == nil {
		current.Places = []string{}
	}
	t.users[user.ID] = current
	return nil
}

func (t *tx) Commit(ctx context.Context) error {
	if t.done {
		return ErrTxDone
	}
	if err := t.s.fault(OpCommit); err != nil {
		t.finish()
		return err
	}

	s := t.s
	s.mu.Lock()
	for id := range t.deleted {
		delete(s.places, id)
		s.placeOrder = slices.DeleteFunc(s.placeOrder, func(pid string) bool { return pid == id })
	}
	for _, id := range t.placeOrder {
		place, ok := t.places[id]
		if !ok {
			continue
		}
		if _, exists := s.places[id]; !exists {
			s.placeOrder = append(s.placeOrder, id)
		}
		s.places[id] = place
	}
	for id, user := range t.users {
		if _, ok := s.users[id]; ok {
			s.users[id] = user
		}
	}
	s.mu.Unlock()

	t.finish()
	return nil
}

func (t *tx) Rollback(ctx context.Context) error {
	if !t.done {
		t.finish()
	}
	return nil
}

func (t *tx) finish() {
	t.done = true
	<-t.s.txSem
}
