package instantly

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/outreach-cli/internal/resilience"
)

func TestPushLead(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/leads", r.URL.Path)
		assert.Equal(t, "Bearer inst-key", r.Header.Get("Authorization"))

		var lead Lead
		require.NoError(t, json.NewDecoder(r.Body).Decode(&lead))
		assert.Equal(t, "jane@acme.com", lead.Email)
		assert.Equal(t, "list-1", lead.ListID)
		assert.True(t, lead.SkipIfInWorkspace)
		assert.True(t, lead.SkipIfInList)
		assert.Equal(t, "Acme builds widgets.", lead.CustomVariables["research_report"])

		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(PushResult{ID: "il-1", Email: "jane@acme.com", ListID: "list-1"})
	}))
	defer srv.Close()

	c := NewClient("inst-key", WithBaseURL(srv.URL))
	res, err := c.PushLead(context.Background(), Lead{
		Email:             "jane@acme.com",
		FirstName:         "Jane",
		LastName:          "Doe",
		ListID:            "list-1",
		SkipIfInWorkspace: true,
		SkipIfInList:      true,
		CustomVariables: map[string]string{
			"research_report": "Acme builds widgets.",
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "il-1", res.ID)
	assert.Equal(t, "list-1", res.ListID)
}

func TestPushLeadNoListID(t *testing.T) {
	c := NewClient("inst-key")
	_, err := c.PushLead(context.Background(), Lead{Email: "a@b.com"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "list_id is required")
}

func TestPushLeadBadRequestNoRetry(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"error":"invalid email"}`))
	}))
	defer srv.Close()

	c := NewClient("inst-key", WithBaseURL(srv.URL), WithRetryPolicy(resilience.Policy{
		MaxAttempts:  3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
	}))
	_, err := c.PushLead(context.Background(), Lead{ListID: "list-1"})
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestPushLeadRetriesRateLimit(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		json.NewEncoder(w).Encode(PushResult{ID: "il-2"})
	}))
	defer srv.Close()

	c := NewClient("inst-key", WithBaseURL(srv.URL), WithRetryPolicy(resilience.Policy{
		MaxAttempts:  3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
	}))
	res, err := c.PushLead(context.Background(), Lead{ListID: "list-1"})
	require.NoError(t, err)
	assert.Equal(t, "il-2", res.ID)
	assert.Equal(t, int32(2), calls.Load())
}
