package handler

import (
	"log/slog"
	"net/http"

	"github.com/placeshare/placeshare/internal/handler/dto"
	"github.com/placeshare/placeshare/internal/service"
)

// UserHandler handles HTTP requests for accounts.
type UserHandler struct {
	svc     *service.UserService
	images  ImageSaver
	cleaner service.ImageCleaner
	logger  *slog.Logger
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(svc *service.UserService, images ImageSaver, cleaner service.ImageCleaner, logger *slog.Logger) *UserHandler {
	return &UserHandler{
		svc:     svc,
		images:  images,
		cleaner: cleaner,
		logger:  logger,
	}
}

// List handles GET /api/users.
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.svc.ListUsers(r.Context())
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ToUserListEnvelope(users))
}

// Signup handles POST /api/users/signup (multipart: name, email, password, image).
func (h *UserHandler) Signup(w http.ResponseWriter, r *http.Request) {
	if err := parseMultipart(r); err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	var image string
	if fh := formFile(r, "image"); fh != nil {
		saved, err := h.images.Save(fh)
		if err != nil {
			handleServiceError(w, r, h.logger, err)
			return
		}
		image = saved
	}

	result, err := h.svc.Signup(r.Context(), service.SignupInput{
		Name:     r.FormValue("name"),
		Email:    r.FormValue("email"),
		Password: r.FormValue("password"),
		Image:    image,
	})
	if err != nil {
		discardUpload(h.cleaner, h.logger, image)
		handleServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, toAuthResponse(result))
}

// Login handles POST /api/users/login.
func (h *UserHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req dto.LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	result, err := h.svc.Login(r.Context(), service.LoginInput{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, toAuthResponse(result))
}

func toAuthResponse(result *service.AuthResult) *dto.AuthResponse {
	return &dto.AuthResponse{
		UserID: result.UserID,
		Email:  result.Email,
		Token:  result.Token,
	}
}
