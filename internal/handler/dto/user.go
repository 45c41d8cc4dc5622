package dto

import (
	"slices"

	"github.com/placeshare/placeshare/internal/model"
)

// LoginRequest represents the request body for POST /api/users/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResponse is returned by signup and login.
type AuthResponse struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
	Token  string `json:"token"`
}

// UserResponse represents a user in API responses. The password hash is never exposed.
type UserResponse struct {
	ID     string   `json:"id"`
	Name   string   `json:"name"`
	Email  string   `json:"email"`
	Image  string   `json:"image"`
	Places []string `json:"places"`
}

// UserListEnvelope wraps users as {"users": [...]}.
type UserListEnvelope struct {
	Users []UserResponse `json:"users"`
}

// ToUserResponse converts a User model to UserResponse DTO.
func ToUserResponse(user *model.User) *UserResponse {
	places := slices.Clone(user.Places)
	if places == nil {
		places = []string{}
	}
	return &UserResponse{
		ID:     user.ID,
		Name:   user.Name,
		Email:  user.Email,
		Image:  user.Image,
		Places: places,
	}
}

// ToUserListEnvelope converts a slice of User models.
func ToUserListEnvelope(users []*model.User) *UserListEnvelope {
	responses := make([]UserResponse, len(users))
	for i, user := range users {
		responses[i] = *ToUserResponse(user)
	}
	return &UserListEnvelope{Users: responses}
}
