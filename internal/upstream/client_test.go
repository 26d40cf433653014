package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parlamentwatch/member-ingestion-service/internal/config"
	"github.com/parlamentwatch/member-ingestion-service/internal/logging"
	"github.com/parlamentwatch/member-ingestion-service/internal/models"
)

func newTestClient(baseURL string, retries int) *Client {
	client := NewClient(config.UpstreamConfig{
		BaseURL:    baseURL,
		FilterID:   "WFW_002",
		Chamber:    "NR",
		UserAgent:  "test-agent/1.0",
		Timeout:    5 * time.Second,
		RetryCount: retries,
	}, logging.Discard())
	client.backoff = func(int) time.Duration { return time.Millisecond }
	return client
}

func TestClient_FetchRoster(t *testing.T) {
	var gotBody map[string][]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/Filter/api/json/post", r.URL.Path)
		assert.Equal(t, "WFW_002", r.URL.Query().Get("FBEZ"))
		assert.Equal(t, "true", r.URL.Query().Get("export"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "test-agent/1.0", r.Header.Get("User-Agent"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(models.RosterResponse{
			Count: 1,
			Pages: 1,
			Rows:  [][]string{{"Auer Katrin, Mag.", "<span>SPÖ</span>"}},
		})
	}))
	defer server.Close()

	roster, err := newTestClient(server.URL, 1).FetchRoster(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, roster.Count)
	assert.Len(t, roster.Rows, 1)
	assert.Equal(t, []string{"NR"}, gotBody["NRBR"])
	assert.Equal(t, []string{"AKT"}, gotBody["GP"])
	assert.Equal(t, []string{"1000"}, gotBody["STEP"])
}

func TestClient_FetchRoster_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	roster, err := newTestClient(server.URL, 1).FetchRoster(context.Background())

	assert.Error(t, err)
	assert.Nil(t, roster)
	assert.Contains(t, err.Error(), "503")

	var upstreamErr *UpstreamError
	require.True(t, errors.As(err, &upstreamErr))
	assert.Equal(t, http.StatusServiceUnavailable, upstreamErr.StatusCode)
}

func TestClient_FetchRoster_InvalidJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("invalid json"))
	}))
	defer server.Close()

	roster, err := newTestClient(server.URL, 1).FetchRoster(context.Background())

	assert.Error(t, err)
	assert.Nil(t, roster)
	assert.Contains(t, err.Error(), "failed to unmarshal response")
}

func TestClient_FetchRoster_WithRetry(t *testing.T) {
	callCount := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		callCount++
		if callCount <= 2 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(models.RosterResponse{Count: 0, Pages: 1})
	}))
	defer server.Close()

	roster, err := newTestClient(server.URL, 3).FetchRoster(context.Background())

	assert.NoError(t, err)
	assert.NotNil(t, roster)
	assert.Equal(t, 3, callCount)
}

func TestClient_FetchRoster_ExceedsRetryLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	roster, err := newTestClient(server.URL, 3).FetchRoster(context.Background())

	assert.Error(t, err)
	assert.Nil(t, roster)
	assert.Contains(t, err.Error(), "failed after 3 attempts")
}

func TestClient_FetchMemberDetail(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/person/30688", r.URL.Path)
		assert.Equal(t, "true", r.URL.Query().Get("json"))
		w.Write([]byte(`{"pagetype":"person","content":{"biografie":{"kurzbiografie":{"gebtext":"Geb.: 13.08.1980, Voitsberg (Steiermark)"}},"banner":{"socialMedia":[{"url":"https://x.example","name":"X","type":"x"}]}}}`))
	}))
	defer server.Close()

	payload, err := newTestClient(server.URL, 1).FetchMemberDetail(context.Background(), "30688")

	require.NoError(t, err)
	assert.Equal(t, "Geb.: 13.08.1980, Voitsberg (Steiermark)", payload.Content.Biografie.Kurzbiografie.BirthText)
	assert.Len(t, payload.Content.Banner.SocialMedia, 1)
}

func TestClient_FetchMemberDetail_NotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	payload, err := newTestClient(server.URL, 1).FetchMemberDetail(context.Background(), "1")

	assert.Nil(t, payload)
	var upstreamErr *UpstreamError
	require.True(t, errors.As(err, &upstreamErr))
	assert.Equal(t, http.StatusNotFound, upstreamErr.StatusCode)
	assert.Contains(t, err.Error(), "member 1")
}

func TestExtractMemberID(t *testing.T) {
	tests := []struct {
		in     string
		wantID string
		wantOK bool
	}{
		{"/person/30688", "30688", true},
		{"https://www.parlament.gv.at/person/5678", "5678", true},
		{"/person/abc", "", false},
		{"", "", false},
		{"/wer/nationalrat", "", false},
	}
	for _, tt := range tests {
		id, ok := ExtractMemberID(tt.in)
		assert.Equal(t, tt.wantID, id, tt.in)
		assert.Equal(t, tt.wantOK, ok, tt.in)
	}
}
