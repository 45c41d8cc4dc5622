// Package model defines domain entities for the application.
package model

import (
	"slices"
	"time"
)

// User is an account that owns places.
// Places holds the ids of every place whose CreatorID is this user.
type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"` // Never serialize
	Image        string    `json:"image"`
	Places       []string  `json:"places"`
	CreatedAt    time.Time `json:"created_at"`
}

// OwnsPlace reports whether placeID is in the user's place set.
func (u *User) OwnsPlace(placeID string) bool {
	return slices.Contains(u.Places, placeID)
}

// AddPlace appends placeID to the place set if it is not already present.
func (u *User) AddPlace(placeID string) {
	if u.OwnsPlace(placeID) {
		return
	}
	u.Places = append(u.Places, placeID)
}

// RemovePlace drops placeID from the place set, preserving order.
// Returns false if the id was not present.
func (u *User) RemovePlace(placeID string) bool {
	idx := slices.Index(u.Places, placeID)
	if idx < 0 {
		return false
	}
	u.Places = slices.Delete(u.Places, idx, idx+1)
	return true
}

// Clone returns a deep copy so callers can stage changes without aliasing.
func (u *User) Clone() *User {
	c := *u
	c.Places = slices.Clone(u.Places)
	if c.Places == nil {
		c.Places = []string{}
	}
	return &c
}
