package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"TRIPCOLLAB_BACK-END/internal/config"
	"TRIPCOLLAB_BACK-END/internal/models"
)

var testJWT = &config.JWTConfig{Secret: "test-secret", AccessTokenTTL: time.Hour}

func TestGenerateAndValidateToken(t *testing.T) {
	id := models.Identity{UserID: uuid.New(), Email: "ana@example.com", Name: "Ana"}
	token, err := GenerateToken(id, testJWT)
	require.NoError(t, err)

	claims, err := ValidateToken(token, testJWT)
	require.NoError(t, err)
	assert.Equal(t, id, claims.Identity())
	assert.Equal(t, id.UserID.String(), claims.Subject)

	_, err = ValidateToken(token, &config.JWTConfig{Secret: "other"})
	assert.Error(t, err)

	expired, err := GenerateToken(id, &config.JWTConfig{Secret: testJWT.Secret, AccessTokenTTL: -time.Minute})
	require.NoError(t, err)
	_, err = ValidateToken(expired, testJWT)
	assert.Error(t, err)

	noUser, err := GenerateToken(models.Identity{Email: "x@example.com"}, testJWT)
	require.NoError(t, err)
	_, err = ValidateToken(noUser, testJWT)
	assert.Error(t, err)
}

func TestAuthMiddleware(t *testing.T) {
	id := models.Identity{UserID: uuid.New(), Email: "ben@example.com", Name: "Ben"}
	token, err := GenerateToken(id, testJWT)
	require.NoError(t, err)

	var seen models.Identity
	h := AuthMiddleware(func(w http.ResponseWriter, r *http.Request) {
		got, ok := IdentityFrom(r.Context())
		require.True(t, ok)
		seen = got
		w.WriteHeader(http.StatusNoContent)
	}, testJWT)

	tests := []struct {
		name   string
		target string
		header string
		status int
	}{
		{"bearer header", "/", "Bearer " + token, http.StatusNoContent},
		{"lowercase scheme", "/", "bearer " + token, http.StatusNoContent},
		{"query token", "/?token=" + token, "", http.StatusNoContent},
		{"missing", "/", "", http.StatusUnauthorized},
		{"wrong scheme", "/", "Basic " + token, http.StatusUnauthorized},
		{"garbage", "/", "Bearer nope", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = models.Identity{}
			req := httptest.NewRequest(http.MethodGet, tt.target, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h(rec, req)
			assert.Equal(t, tt.status, rec.Code)
			if tt.status == http.StatusNoContent {
				assert.Equal(t, id, seen)
			}
		})
	}
}

func TestTimeout(t *testing.T) {
	var deadline bool
	h := Timeout(50 * time.Millisecond)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, deadline = r.Context().Deadline()
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.True(t, deadline)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Upgrade", "websocket")
	h.ServeHTTP(httptest.NewRecorder(), req)
	assert.False(t, deadline, "websocket upgrades are not bounded")
}
