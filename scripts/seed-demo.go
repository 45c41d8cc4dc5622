package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/placeshare/placeshare/internal/auth"
	"github.com/placeshare/placeshare/internal/geocode"
	"github.com/placeshare/placeshare/internal/repository"
	"github.com/placeshare/placeshare/internal/service"
)

type output struct {
	UserID  string `json:"user_id"`
	Email   string `json:"email"`
	Token   string `json:"token"`
	PlaceID string `json:"place_id,omitempty"`
}

func main() {
	var (
		databaseURL = flag.String("database-url", os.Getenv("DATABASE_URL"), "PostgreSQL connection string")
		jwtSecret   = flag.String("jwt-secret", os.Getenv("JWT_SECRET"), "Token signing secret (must match the API)")
		tokenTTL    = flag.Duration("token-ttl", time.Hour, "Token lifetime")
		name        = flag.String("name", "Demo User", "User name")
		email       = flag.String("email", "demo@placeshare.local", "User email")
		password    = flag.String("password", "demo-password", "User password")
		withPlace   = flag.Bool("with-place", true, "Also create a demo place owned by the user")
		format      = flag.String("format", "plain", "Output format: plain or json")
	)
	flag.Parse()

	if *databaseURL == "" {
		fmt.Fprintln(os.Stderr, "DATABASE_URL is required")
		os.Exit(1)
	}
	if *jwtSecret == "" {
		fmt.Fprintln(os.Stderr, "JWT_SECRET is required")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	repo, err := repository.New(ctx, *databaseURL)
	if err != nil {
		fmt.Fprintln(os.Stderr, "connect database:", err)
		os.Exit(1)
	}
	defer repo.Close()

	tokens := auth.NewTokenManager(*jwtSecret, *tokenTTL)
	users := service.NewUserService(repo, auth.NewArgon2Hasher(auth.DefaultArgon2Params), tokens, nil, nil)
	places := service.NewPlaceService(repo, geocode.NewStatic(geocode.DefaultLocation), nil, nil, nil)

	result, err := ensureUser(ctx, users, *name, *email, *password)
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}

	out := output{
		UserID: result.UserID,
		Email:  result.Email,
		Token:  result.Token,
	}

	if *withPlace {
		place, err := places.CreatePlace(ctx, service.CreatePlaceInput{
			Title:       "Empire State Building",
			Description: "One of the most famous sky scrapers in the world",
			Address:     "20 W 34th St, New York, NY 10001",
			Image:       "uploads/images/demo.png",
			CreatorID:   result.UserID,
		})
		if err != nil {
			fmt.Fprintln(os.Stderr, "create place:", err)
			os.Exit(1)
		}
		out.PlaceID = place.ID
	}

	switch strings.ToLower(*format) {
	case "plain":
		fmt.Println(out.Token)
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(out)
	default:
		fmt.Fprintln(os.Stderr, "invalid format; use plain or json")
		os.Exit(1)
	}
}

// ensureUser signs the demo user up, or logs in when the email is already taken.
func ensureUser(ctx context.Context, users *service.UserService, name, email, password string) (*service.AuthResult, error) {
	result, err := users.Signup(ctx, service.SignupInput{
		Name:     name,
		Email:    email,
		Password: password,
		Image:    "uploads/images/demo-avatar.png",
	})
	if err == nil {
		return result, nil
	}
	if !errors.Is(err, service.ErrEmailExists) {
		return nil, fmt.Errorf("create user: %w", err)
	}

	result, err = users.Login(ctx, service.LoginInput{Email: email, Password: password})
	if err != nil {
		return nil, fmt.Errorf("user %s exists but login failed: %w", email, err)
	}
	return result, nil
}
