package model

// Identity is the caller identity decoded from a verified bearer token.
type Identity struct {
	UserID string
	Email  string
}
