package eval

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func backendStub(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/interpret", handler)
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func sampleCases() []Case {
	return []Case{
		{
			CaseID: "braf-v600e",
			Request: map[string]any{
				"gene":            "BRAF",
				"hgvs":            "c.1799T>A",
				"variant_type":    "SNV",
				"disease_context": "melanoma",
				"assay_context":   "panel",
			},
			ExpectedAbstain: false,
		},
	}
}

func TestRunner_PassingCase(t *testing.T) {
	server := backendStub(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		var request map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&request))
		assert.Equal(t, "BRAF", request["gene"])

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(conformingResponse(t))
	})

	runner := NewRunner(server.URL, 2*time.Second, 0, quietLogger())
	summary, err := runner.Run(context.Background(), sampleCases())
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Total)
	assert.Equal(t, 1, summary.Passed)
	assert.Equal(t, 0, summary.Failed)
	require.Len(t, summary.Results, 1)
	assert.True(t, summary.Results[0].Passed)
}

func TestRunner_FailingChecksReported(t *testing.T) {
	server := backendStub(t, func(w http.ResponseWriter, r *http.Request) {
		response := conformingResponse(t)
		response["draft"].(map[string]any)["summary"] = "Treatment is advised."
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(response)
	})

	runner := NewRunner(server.URL, 2*time.Second, 0, quietLogger())
	summary, err := runner.Run(context.Background(), sampleCases())
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Failed)
	require.Len(t, summary.Results, 1)
	assert.Contains(t, summary.Results[0].Errors, "draft.summary contains banned term stem 'treat'")
}

func TestRunner_Non200IsCaseFailure(t *testing.T) {
	server := backendStub(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"code": "INTERNAL_SERVER_ERROR"}`, http.StatusInternalServerError)
	})

	runner := NewRunner(server.URL, 2*time.Second, 0, quietLogger())
	summary, err := runner.Run(context.Background(), sampleCases())
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Failed)
	require.Len(t, summary.Results[0].Errors, 1)
	assert.Contains(t, summary.Results[0].Errors[0], "HTTP 500")
}

func TestRunner_BackendUnavailable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	baseURL := server.URL
	server.Close()

	runner := NewRunner(baseURL, 500*time.Millisecond, 0, quietLogger())
	_, err := runner.Run(context.Background(), sampleCases())
	require.Error(t, err)

	var unavailable *BackendUnavailableError
	require.True(t, errors.As(err, &unavailable))
	assert.Contains(t, unavailable.Endpoint, "/v1/interpret")
}

func TestRunner_RetriesBeforeGivingUp(t *testing.T) {
	attempts := 0
	server := backendStub(t, func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(conformingResponse(t))
	})

	runner := NewRunner(server.URL, 2*time.Second, 2, quietLogger())
	summary, err := runner.Run(context.Background(), sampleCases())
	require.NoError(t, err)

	// A successful first attempt does not retry.
	assert.Equal(t, 1, attempts)
	assert.Equal(t, 1, summary.Passed)
}
