package routes

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Dosada05/scrimhub/handlers"
	"github.com/Dosada05/scrimhub/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter() http.Handler {
	router := chi.NewRouter()
	SetupRoutes(router, Handlers{
		Tournament:  handlers.NewTournamentHandler(nil),
		Participant: handlers.NewParticipantHandler(nil),
		Group:       handlers.NewGroupHandler(nil, nil),
		Room:        handlers.NewRoomHandler(nil),
		Payment:     handlers.NewPaymentHandler(nil, ""),
		WebSocket:   handlers.NewWebSocketHandler(nil, nil, nil, nil),
	}, Options{Auth: middleware.NewAuthenticator("secret", nil)})
	return router
}

func TestHealthz(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestRouter().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	router := newTestRouter()
	protected := []struct{ method, path string }{
		{http.MethodPost, "/tournaments"},
		{http.MethodPost, "/tournaments/1/groups/auto"},
		{http.MethodPost, "/groups/1/members/move"},
		{http.MethodPut, "/groups/1/room"},
		{http.MethodGet, "/rooms/1/messages"},
		{http.MethodPost, "/payments/verify"},
		{http.MethodGet, "/ws/rooms/1"},
	}
	for _, p := range protected {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(p.method, p.path, nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code, "%s %s", p.method, p.path)
	}
}

func TestCreateTournamentRequiresOrganizerRole(t *testing.T) {
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": 5, "role": "player", "exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte("secret"))
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/tournaments", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	newTestRouter().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}
