package controllers

import (
	"log/slog"
	"net/http"

	"postvote/app/auth"
	"postvote/app/models"
	"postvote/app/services"
)

// UserController handles signup and token endpoints
type UserController struct {
	userService *services.UserService
	logger      *slog.Logger
}

func NewUserController(userService *services.UserService, logger *slog.Logger) *UserController {
	if logger == nil {
		logger = slog.Default()
	}
	return &UserController{userService: userService, logger: logger}
}

type signupRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type signupResponse struct {
	ID       models.UserID  `json:"id"`
	Username string         `json:"username"`
	Email    string         `json:"email"`
	Token    auth.TokenPair `json:"token"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type refreshRequest struct {
	Refresh string `json:"refresh"`
}

// Signup handles POST /signup
func (uc *UserController) Signup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	user, pair, err := uc.userService.Signup(r.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		handleServiceError(w, uc.logger, err)
		return
	}
	sendJSON(w, http.StatusCreated, signupResponse{
		ID:       user.ID,
		Username: user.Username,
		Email:    user.Email,
		Token:    pair,
	})
}

// Login handles POST /login
func (uc *UserController) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	pair, err := uc.userService.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		handleServiceError(w, uc.logger, err)
		return
	}
	sendJSON(w, http.StatusOK, pair)
}

// Refresh handles POST /token_refresh
func (uc *UserController) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	pair, err := uc.userService.Refresh(r.Context(), req.Refresh)
	if err != nil {
		handleServiceError(w, uc.logger, err)
		return
	}
	sendJSON(w, http.StatusOK, pair)
}
