package spotify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"chowlive/core/sync"

	"github.com/stretchr/testify/assert"
)

func TestStatusParsesPlayerState(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/me/player", r.URL.Path)
		assert.Equal(t, "Bearer token-1", r.Header.Get("Authorization"))
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"progress_ms": 45000,
			"is_playing":  true,
			"item": map[string]interface{}{
				"uri":         "spotify:track:abc",
				"duration_ms": 200000,
			},
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, "token-1")
	status, err := client.Status(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, int64(45000), status.PositionMS)
	assert.True(t, status.IsPlaying)
}

func TestStatusNoActiveDevice(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	client := NewClient(server.URL, "token-1")
	status, err := client.Status(context.Background())
	assert.NoError(t, err)
	assert.False(t, status.IsPlaying)
	assert.Equal(t, int64(0), status.PositionMS)
}

func TestStatusUnauthorizedMapsToReauth(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	client := NewClient(server.URL, "expired")
	_, err := client.Status(context.Background())
	assert.ErrorIs(t, err, sync.ErrReauthRequired)
}

func TestPlayAtSendsTrackAndPosition(t *testing.T) {
	var got map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/me/player/play", r.URL.Path)
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	client := NewClient(server.URL, "token-1")
	err := client.PlayAt(context.Background(), "spotify:track:abc", 45000)
	assert.NoError(t, err)
	assert.Equal(t, []interface{}{"spotify:track:abc"}, got["uris"])
	assert.Equal(t, float64(45000), got["position_ms"])
}

func TestPauseUnauthorizedAfterTokenUpdateRecovers(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer fresh" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	client := NewClient(server.URL, "stale")
	assert.ErrorIs(t, client.Pause(context.Background()), sync.ErrReauthRequired)

	client.UpdateToken("fresh")
	assert.NoError(t, client.Pause(context.Background()))
}

func TestTrackIDExtraction(t *testing.T) {
	assert.Equal(t, "abc", trackID("spotify:track:abc"))
	assert.Equal(t, "abc", trackID("abc"))
}

func TestGetTrackParsesDetail(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/tracks/abc", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"uri":  "spotify:track:abc",
			"name": "Song Title",
			"artists": []map[string]string{
				{"name": "Artist A"},
				{"name": "Artist B"},
			},
			"album": map[string]interface{}{
				"name": "Album X",
				"images": []map[string]string{
					{"url": "https://img.example/cover.jpg"},
				},
			},
			"duration_ms": 200000,
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, "token-1")
	detail, err := client.GetTrack(context.Background(), nil, "spotify:track:abc")
	assert.NoError(t, err)
	assert.Equal(t, "Song Title", detail.Name)
	assert.Equal(t, []string{"Artist A", "Artist B"}, detail.Artists)
	assert.Equal(t, "Album X", detail.Album)
	assert.Equal(t, int64(200000), detail.DurationMS)
	assert.Equal(t, "https://img.example/cover.jpg", detail.CoverURL)
}
