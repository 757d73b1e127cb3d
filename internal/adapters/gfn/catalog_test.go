package gfn

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bnema/opennow-cli/internal/domain"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalogUsesSeparateBaseURL(t *testing.T) {
	t.Parallel()

	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/serverInfo", r.URL.Path)
		writeJSON(t, w, http.StatusOK, map[string]any{
			"regions": []map[string]any{
				{"name": "NP-AMS-06", "url": "https://np-ams-06.example.test"},
				{"name": " "},
			},
		})
	}))
	t.Cleanup(api.Close)

	catalog := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/apps":
			writeJSON(t, w, http.StatusOK, map[string]any{
				"apps": []map[string]any{{"id": "1", "title": "Portal", "store": "STEAM"}},
			})
		case "/v1/subscription":
			writeJSON(t, w, http.StatusOK, map[string]any{"tier": "ULTIMATE", "remainingHours": 80.5, "totalHours": 100})
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(catalog.Close)

	client, err := NewClient(Options{APIBaseURL: api.URL, CatalogBaseURL: catalog.URL}, zerolog.Nop())
	require.NoError(t, err)

	regions, err := client.Catalog().Regions(context.Background(), testCred)
	require.NoError(t, err)
	assert.Equal(t, []domain.Region{{Name: "NP-AMS-06", URL: "https://np-ams-06.example.test"}}, regions)

	games, err := client.Catalog().Games(context.Background(), testCred)
	require.NoError(t, err)
	require.Len(t, games, 1)
	assert.Equal(t, "Portal", games[0].Title)
	assert.Equal(t, "1", games[0].LaunchID())

	sub, err := client.Catalog().Subscription(context.Background(), testCred)
	require.NoError(t, err)
	assert.Equal(t, "ULTIMATE", sub.Tier)
	assert.InDelta(t, 80.5, sub.RemainingHours, 0.001)
}

func TestSectionsMapNestedGames(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusOK, map[string]any{
			"sections": []map[string]any{
				{"id": "recent", "title": "Recently played", "apps": []map[string]any{{"id": "7", "title": "Hades"}}},
			},
		})
	}))

	sections, err := client.Catalog().Sections(context.Background(), testCred)
	require.NoError(t, err)
	require.Len(t, sections, 1)
	assert.Equal(t, "Recently played", sections[0].Title)
	require.Len(t, sections[0].Games, 1)
	assert.Equal(t, "Hades", sections[0].Games[0].Title)
}

func TestQueueServersAreAnonymous(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		writeJSON(t, w, http.StatusOK, map[string]any{
			"servers": []map[string]any{
				{"id": "NP-AMS-06", "region": "Europe", "queueDepth": 12, "etaSeconds": 300},
				{"region": "missing id"},
			},
		})
	}))

	servers, err := client.Catalog().QueueServers(context.Background())
	require.NoError(t, err)
	require.Len(t, servers, 1)
	assert.Equal(t, domain.QueueServer{
		ID:         "NP-AMS-06",
		Region:     "Europe",
		QueueDepth: 12,
		QueueETA:   5 * time.Minute,
		Status:     domain.ServerStatusUnknown,
	}, servers[0])
}

func TestSignalExchangesSDP(t *testing.T) {
	t.Parallel()

	var got sdpBody
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/signal/s1", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		writeJSON(t, w, http.StatusOK, sdpBody{Type: "answer", SDP: "v=0 answer"})
	}))
	t.Cleanup(srv.Close)

	client, err := NewClient(Options{APIBaseURL: srv.URL}, zerolog.Nop())
	require.NoError(t, err)

	answer, err := client.Signaler().Signal(context.Background(), domain.SessionRecord{
		ID:           "s1",
		SignalingURL: srv.URL + "/signal/s1",
	}, "v=0 offer")
	require.NoError(t, err)

	assert.Equal(t, "v=0 answer", answer)
	assert.Equal(t, "offer", got.Type)
	assert.Equal(t, "s1", got.SessionID)
}

func TestSignalErrors(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusOK, sdpBody{Type: "answer"})
	}))

	_, err := client.Signaler().Signal(context.Background(), domain.SessionRecord{}, "offer")
	require.ErrorIs(t, err, ErrNoSignalingURL)

	_, err = client.Signaler().Signal(context.Background(), domain.SessionRecord{SignalingURL: client.apiBase + "/signal"}, "offer")
	require.ErrorIs(t, err, ErrEmptyAnswer)
}
