// Package dto provides Data Transfer Objects for API requests and responses.
package dto

// MessageResponse is the body of every error response and of plain acknowledgements.
type MessageResponse struct {
	Message string `json:"message"`
}
