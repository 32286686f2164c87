package proapis

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/outreach-cli/internal/resilience"
)

func TestProfileSlug(t *testing.T) {
	tests := []struct {
		name    string
		ref     string
		want    string
		wantErr bool
	}{
		{"plain", "https://www.linkedin.com/in/alice-smith", "alice-smith", false},
		{"trailing slash", "https://linkedin.com/in/alice-smith/", "alice-smith", false},
		{"query string", "https://linkedin.com/in/alice-smith?utm=x", "alice-smith", false},
		{"trailing path", "https://linkedin.com/in/alice-smith/details", "alice-smith", false},
		{"no in segment", "https://linkedin.com/company/acme", "", true},
		{"empty slug", "https://linkedin.com/in/", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ProfileSlug(tt.ref)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestProfileDetails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/profile-details", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))

		var req ProfileDetailsRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "alice-smith", req.ProfileID)
		assert.Equal(t, "personal", req.ProfileType)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"profile_id": "alice-smith",
			"first_name": "Alice",
			"last_name": "Smith",
			"full_name": "Alice Smith",
			"sub_title": "VP Engineering at Acme",
			"location": {"default": "Austin, Texas"},
			"position_groups": [{
				"company": {"name": "Acme", "url": "https://acme.com"},
				"profile_positions": [{"title": "VP Engineering", "start_date": "2021"}]
			}],
			"skills": [{"name": "Go"}, {"name": "Distributed Systems"}]
		}`))
	}))
	defer srv.Close()

	client := NewClient("test-key", WithBaseURL(srv.URL))

	resp, err := client.ProfileDetails(context.Background(), ProfileDetailsRequest{ProfileID: "alice-smith"})
	require.NoError(t, err)
	assert.Equal(t, "Alice Smith", resp.FullName)
	assert.Equal(t, "VP Engineering at Acme", resp.SubTitle)
	assert.Equal(t, "Austin, Texas", resp.Location.Default)
	require.Len(t, resp.PositionGroups, 1)
	assert.Equal(t, "Acme", resp.PositionGroups[0].Company.Name)
	require.Len(t, resp.PositionGroups[0].Profiles, 1)
	assert.Equal(t, "VP Engineering", resp.PositionGroups[0].Profiles[0].Title)
	assert.Len(t, resp.Skills, 2)
}

func TestProfileDetails_RequiresProfileID(t *testing.T) {
	client := NewClient("test-key")
	_, err := client.ProfileDetails(context.Background(), ProfileDetailsRequest{})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "profile_id is required")
}

func TestProfileDetails_RetriesTransient(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"profile_id": "alice-smith", "full_name": "Alice Smith"}`))
	}))
	defer srv.Close()

	client := NewClient("test-key",
		WithBaseURL(srv.URL),
		WithRetryPolicy(resilience.Policy{MaxAttempts: 2, InitialBackoff: 1, MaxBackoff: 1}),
	)

	resp, err := client.ProfileDetails(context.Background(), ProfileDetailsRequest{ProfileID: "alice-smith"})
	require.NoError(t, err)
	assert.Equal(t, "Alice Smith", resp.FullName)
	assert.Equal(t, int32(2), calls.Load())
}

func TestProfileDetails_PermanentErrorNoRetry(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error": "bad key"}`))
	}))
	defer srv.Close()

	client := NewClient("bad-key", WithBaseURL(srv.URL))

	_, err := client.ProfileDetails(context.Background(), ProfileDetailsRequest{ProfileID: "alice-smith"})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status 401")
	assert.Equal(t, int32(1), calls.Load())
}
