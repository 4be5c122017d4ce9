package handlers

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	googleOAuth2 "google.golang.org/api/oauth2/v2"
	"google.golang.org/api/option"

	"TRIPCOLLAB_BACK-END/internal/config"
	"TRIPCOLLAB_BACK-END/internal/dto"
	"TRIPCOLLAB_BACK-END/internal/middleware"
	"TRIPCOLLAB_BACK-END/internal/models"
	"TRIPCOLLAB_BACK-END/internal/store"
	"TRIPCOLLAB_BACK-END/internal/utils"
)

// UserInfoFunc resolves a Google access token into the account it belongs to.
type UserInfoFunc func(ctx context.Context, token *oauth2.Token) (*dto.GoogleUserInfo, error)

// GoogleAuthHandler handles Google OAuth authentication
type GoogleAuthHandler struct {
	users        store.Users
	oauth2Config *oauth2.Config
	jwt          *config.JWTConfig
	publicURL    string
	exchange     func(ctx context.Context, code string) (*oauth2.Token, error)
	userInfo     UserInfoFunc
}

// NewGoogleAuthHandler creates a new GoogleAuthHandler instance
func NewGoogleAuthHandler(users store.Users, cfg *config.Config) *GoogleAuthHandler {
	oauth2Config := &oauth2.Config{
		ClientID:     cfg.GoogleOAuth.ClientID,
		ClientSecret: cfg.GoogleOAuth.ClientSecret,
		RedirectURL:  cfg.GoogleOAuth.RedirectURL,
		Scopes: []string{
			"https://www.googleapis.com/auth/userinfo.email",
			"https://www.googleapis.com/auth/userinfo.profile",
		},
		Endpoint: google.Endpoint,
	}

	h := &GoogleAuthHandler{
		users:        users,
		oauth2Config: oauth2Config,
		jwt:          &cfg.JWT,
		publicURL:    strings.TrimRight(cfg.Server.PublicURL, "/"),
		userInfo:     getGoogleUserInfo,
	}
	h.exchange = func(ctx context.Context, code string) (*oauth2.Token, error) {
		return h.oauth2Config.Exchange(ctx, code)
	}
	return h
}

// GoogleLogin initiates Google OAuth login
// @Summary Google OAuth login
// @Description Initiate Google OAuth login flow
// @Tags authentication
// @Produce json
// @Success 200 {object} dto.GoogleLoginResponse "Google OAuth URL"
// @Router /api/auth/google/login [get]
func (h *GoogleAuthHandler) GoogleLogin(w http.ResponseWriter, r *http.Request) {
	// Generate state parameter for CSRF protection
	state := uuid.New().String()

	authURL := h.oauth2Config.AuthCodeURL(state, oauth2.AccessTypeOffline)

	utils.WriteJSONResponse(w, http.StatusOK, dto.GoogleLoginResponse{AuthURL: authURL, State: state})
}

// GoogleCallback handles Google OAuth callback
// @Summary Google OAuth callback
// @Description Exchange the authorization code, sign the user in and redirect to the web app (or answer with JSON when no public URL is configured)
// @Tags authentication
// @Produce json
// @Param code query string true "Authorization code from Google"
// @Param state query string false "State parameter for CSRF protection"
// @Success 200 {object} dto.AuthResponse "Login successful"
// @Success 302 "Redirect to the web app with the token"
// @Failure 400 {object} dto.ErrorResponse "Invalid request data"
// @Failure 401 {object} dto.ErrorResponse "Invalid authorization code"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /api/auth/google/callback [get]
func (h *GoogleAuthHandler) GoogleCallback(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	if code == "" {
		utils.WriteErrorResponse(w, http.StatusBadRequest, "Missing authorization code", "Authorization code is required")
		return
	}

	token, err := h.exchange(r.Context(), code)
	if err != nil {
		zerolog.Ctx(r.Context()).Warn().Err(err).Msg("google code exchange failed")
		utils.WriteErrorResponse(w, http.StatusUnauthorized, "Invalid authorization code", "Google rejected the authorization code")
		return
	}

	info, err := h.userInfo(r.Context(), token)
	if err != nil {
		utils.WriteServiceError(w, r, err)
		return
	}
	if info.Email == "" {
		utils.WriteErrorResponse(w, http.StatusUnauthorized, "Unauthorized", "Google account has no email address")
		return
	}

	name := strings.TrimSpace(info.Name)
	if name == "" {
		name = info.Email
	}
	user, err := h.users.UpsertOAuthUser(r.Context(), models.NormalizeEmail(info.Email), name)
	if err != nil {
		utils.WriteServiceError(w, r, err)
		return
	}

	jwtToken, err := middleware.GenerateToken(user.Identity(), h.jwt)
	if err != nil {
		utils.WriteServiceError(w, r, err)
		return
	}

	if h.publicURL == "" {
		utils.WriteJSONResponse(w, http.StatusOK, dto.AuthResponse{User: dto.NewUserResponse(*user), Token: jwtToken})
		return
	}

	// Redirect to frontend with token
	q := url.Values{}
	q.Set("token", jwtToken)
	q.Set("user_id", user.ID.String())
	q.Set("email", user.Email)
	q.Set("display_name", user.DisplayName)
	q.Set("provider", "google")
	q.Set("is_verified", strconv.FormatBool(info.Verified))
	http.Redirect(w, r, h.publicURL+"/callback?"+q.Encode(), http.StatusFound)
}

// getGoogleUserInfo fetches user information from Google
func getGoogleUserInfo(ctx context.Context, token *oauth2.Token) (*dto.GoogleUserInfo, error) {
	service, err := googleOAuth2.NewService(ctx, option.WithTokenSource(oauth2.StaticTokenSource(token)))
	if err != nil {
		return nil, err
	}

	userInfo, err := service.Userinfo.Get().Context(ctx).Do()
	if err != nil {
		return nil, err
	}

	return &dto.GoogleUserInfo{
		ID:       userInfo.Id,
		Email:    userInfo.Email,
		Name:     userInfo.Name,
		Verified: userInfo.VerifiedEmail != nil && *userInfo.VerifiedEmail,
	}, nil
}
