package provider_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"shootflow-backend/internal/provider"
)

func TestClient_SubmitMerge(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "POST", r.Method)
		assert.Equal(t, "/merges/", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))

		var req provider.MergeRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Len(t, req.Assets, 2)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":{"job_id":"prov-123"}}`))
	}))
	defer srv.Close()

	client := provider.NewClient(srv.URL, "test-key")
	jobID, err := client.SubmitMerge(context.Background(), provider.MergeRequest{
		Assets: []provider.MergeAsset{
			{AssetID: "a1", SourceURL: "https://cdn.test/a1.raw"},
			{AssetID: "a2", SourceURL: "https://cdn.test/a2.raw"},
		},
		HDRMerge: true,
	})

	require.NoError(t, err)
	assert.Equal(t, "prov-123", jobID)
}

func TestClient_SubmitMerge_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := provider.NewClient(srv.URL, "test-key")
	_, err := client.SubmitMerge(context.Background(), provider.MergeRequest{})
	assert.Error(t, err)
}

func TestClient_SubmitMerge_EmptyJobID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":{}}`))
	}))
	defer srv.Close()

	client := provider.NewClient(srv.URL, "test-key")
	_, err := client.SubmitMerge(context.Background(), provider.MergeRequest{})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "job_id is empty")
}

func TestClient_RetryWithBackoff(t *testing.T) {
	client := provider.NewClient("https://api.test.com/v1/", "test-key")

	callCount := 0
	err := client.RetryWithBackoff(func() error {
		callCount++
		if callCount < 3 {
			return assert.AnError
		}
		return nil
	}, 3)

	assert.NoError(t, err)
	assert.Equal(t, 3, callCount)
}

func TestClient_RetryWithBackoff_Exhausted(t *testing.T) {
	client := provider.NewClient("https://api.test.com/v1/", "test-key")

	err := client.RetryWithBackoff(func() error {
		return assert.AnError
	}, 3)

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed after 3 retries")
}
