package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"chowlive/cache"
	"chowlive/config"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTrackDetailRequest(t *testing.T, trackRef, playerToken string) *http.Request {
	t.Helper()
	r := httptest.NewRequest(http.MethodGet, "/api/tracks/"+trackRef, nil)
	r = mux.SetURLVars(r, map[string]string{"ref": trackRef})
	if playerToken != "" {
		r.Header.Set("X-Player-Token", playerToken)
	}
	ctx := context.WithValue(r.Context(), ctxKeyUserID, "user-1")
	return r.WithContext(ctx)
}

func TestTrackDetailHandler(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/tracks/abc", r.URL.Path)
		assert.Equal(t, "Bearer player-token", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"name": "Test Track",
			"artists": [{"name": "Artist A"}, {"name": "Artist B"}],
			"album": {"name": "Test Album", "images": [{"url": "https://img/cover.jpg"}]},
			"duration_ms": 215000
		}`))
	}))
	defer backend.Close()

	h := NewAPIHandler(nil, nil, nil, nil, nil, nil, nil, &config.Config{SpotifyAPIBaseURL: backend.URL})

	w := httptest.NewRecorder()
	h.TrackDetailHandler(w, newTrackDetailRequest(t, "spotify:track:abc", "player-token"))

	require.Equal(t, http.StatusOK, w.Code)
	var detail cache.TrackDetail
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &detail))
	assert.Equal(t, "spotify:track:abc", detail.TrackRef)
	assert.Equal(t, "Test Track", detail.Name)
	assert.Equal(t, []string{"Artist A", "Artist B"}, detail.Artists)
	assert.Equal(t, "Test Album", detail.Album)
	assert.Equal(t, int64(215000), detail.DurationMS)
	assert.Equal(t, "https://img/cover.jpg", detail.CoverURL)
}

func TestTrackDetailHandlerRequiresPlayerToken(t *testing.T) {
	h := NewAPIHandler(nil, nil, nil, nil, nil, nil, nil, &config.Config{SpotifyAPIBaseURL: "http://unused"})

	w := httptest.NewRecorder()
	h.TrackDetailHandler(w, newTrackDetailRequest(t, "spotify:track:abc", ""))

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTrackDetailHandlerExpiredToken(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer backend.Close()

	h := NewAPIHandler(nil, nil, nil, nil, nil, nil, nil, &config.Config{SpotifyAPIBaseURL: backend.URL})

	w := httptest.NewRecorder()
	h.TrackDetailHandler(w, newTrackDetailRequest(t, "spotify:track:abc", "stale-token"))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestTrackDetailHandlerUpstreamFailure(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer backend.Close()

	h := NewAPIHandler(nil, nil, nil, nil, nil, nil, nil, &config.Config{SpotifyAPIBaseURL: backend.URL})

	w := httptest.NewRecorder()
	h.TrackDetailHandler(w, newTrackDetailRequest(t, "spotify:track:abc", "player-token"))

	assert.Equal(t, http.StatusBadGateway, w.Code)
}
