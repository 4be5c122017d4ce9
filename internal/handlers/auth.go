package handlers

import (
	"errors"
	"net/http"
	"net/mail"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"TRIPCOLLAB_BACK-END/internal/common"
	"TRIPCOLLAB_BACK-END/internal/config"
	"TRIPCOLLAB_BACK-END/internal/dto"
	"TRIPCOLLAB_BACK-END/internal/middleware"
	"TRIPCOLLAB_BACK-END/internal/models"
	"TRIPCOLLAB_BACK-END/internal/store"
	"TRIPCOLLAB_BACK-END/internal/utils"
)

const (
	minPasswordLength    = 8
	maxPasswordLength    = 72 // bcrypt input limit
	maxDisplayNameLength = 100
)

// AuthHandler handles authentication-related HTTP requests
type AuthHandler struct {
	users store.Users
	jwt   *config.JWTConfig
}

// NewAuthHandler creates a new AuthHandler instance
func NewAuthHandler(users store.Users, jwt *config.JWTConfig) *AuthHandler {
	return &AuthHandler{users: users, jwt: jwt}
}

func (h *AuthHandler) respondWithToken(w http.ResponseWriter, r *http.Request, status int, user models.User) {
	token, err := middleware.GenerateToken(user.Identity(), h.jwt)
	if err != nil {
		utils.WriteServiceError(w, r, err)
		return
	}
	utils.WriteJSONResponse(w, status, dto.AuthResponse{User: dto.NewUserResponse(user), Token: token})
}

// Register handles user registration
// @Summary Register a new user
// @Description Create a new user account with email, password and display name
// @Tags authentication
// @Accept json
// @Produce json
// @Param request body dto.RegisterRequest true "User registration data"
// @Success 201 {object} dto.AuthResponse "User created successfully"
// @Failure 400 {object} dto.ErrorResponse "Invalid request data"
// @Failure 409 {object} dto.ErrorResponse "User already exists"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /api/auth/register [post]
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req dto.RegisterRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.WriteErrorResponse(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}

	email := models.NormalizeEmail(req.Email)
	name := strings.TrimSpace(req.DisplayName)

	// Validate required fields
	if email == "" || req.Password == "" || name == "" {
		utils.WriteErrorResponse(w, http.StatusBadRequest, "Missing required fields", "Email, password and display name are required")
		return
	}
	if _, err := mail.ParseAddress(email); err != nil {
		utils.WriteErrorResponse(w, http.StatusBadRequest, "Invalid email", "Email address is not valid")
		return
	}
	if len(req.Password) < minPasswordLength || len(req.Password) > maxPasswordLength {
		utils.WriteErrorResponse(w, http.StatusBadRequest, "Invalid password", "Password must be between 8 and 72 characters")
		return
	}
	if len(name) > maxDisplayNameLength {
		utils.WriteErrorResponse(w, http.StatusBadRequest, "Invalid display name", "Display name must be at most 100 characters")
		return
	}

	// Hash password
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		utils.WriteServiceError(w, r, err)
		return
	}

	user := models.User{
		ID:           uuid.New(),
		Email:        email,
		DisplayName:  name,
		PasswordHash: string(hashedPassword),
	}
	if err := h.users.CreateUser(r.Context(), &user); err != nil {
		if errors.Is(err, common.ErrConflict) {
			utils.WriteErrorResponse(w, http.StatusConflict, "User already exists", "Email already registered")
			return
		}
		utils.WriteServiceError(w, r, err)
		return
	}
	zerolog.Ctx(r.Context()).Info().Str("user_id", user.ID.String()).Msg("user registered")

	h.respondWithToken(w, r, http.StatusCreated, user)
}

// Login handles user login
// @Summary Login user
// @Description Authenticate user with email and password
// @Tags authentication
// @Accept json
// @Produce json
// @Param request body dto.LoginRequest true "Login credentials"
// @Success 200 {object} dto.AuthResponse "Login successful"
// @Failure 400 {object} dto.ErrorResponse "Invalid request data"
// @Failure 401 {object} dto.ErrorResponse "Invalid credentials"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /api/auth/login [post]
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req dto.LoginRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.WriteErrorResponse(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}

	// Validate required fields
	if req.Email == "" || req.Password == "" {
		utils.WriteErrorResponse(w, http.StatusBadRequest, "Missing required fields", "Email and password are required")
		return
	}

	user, err := h.users.GetUserByEmail(r.Context(), models.NormalizeEmail(req.Email))
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			utils.WriteErrorResponse(w, http.StatusUnauthorized, "Invalid credentials", "Email or password is incorrect")
			return
		}
		utils.WriteServiceError(w, r, err)
		return
	}

	// OAuth-only accounts have no password hash
	if user.PasswordHash == "" || bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		utils.WriteErrorResponse(w, http.StatusUnauthorized, "Invalid credentials", "Email or password is incorrect")
		return
	}

	h.respondWithToken(w, r, http.StatusOK, *user)
}

// Me returns the current user
// @Summary Get current user
// @Description Get the authenticated user's account
// @Tags authentication
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.UserResponse "User retrieved successfully"
// @Failure 401 {object} dto.ErrorResponse "Unauthorized"
// @Failure 404 {object} dto.ErrorResponse "User not found"
// @Router /api/auth/me [get]
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	id, ok := middleware.IdentityFrom(r.Context())
	if !ok {
		utils.WriteErrorResponse(w, http.StatusUnauthorized, "Unauthorized", "User not authenticated")
		return
	}

	user, err := h.users.GetUserByID(r.Context(), id.UserID)
	if err != nil {
		utils.WriteServiceError(w, r, err)
		return
	}

	utils.WriteJSONResponse(w, http.StatusOK, dto.NewUserResponse(*user))
}
