package eval

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// CaseResult is the outcome of one evaluated case
type CaseResult struct {
	CaseID string
	Passed bool
	Errors []string
}

// Summary aggregates a full harness run
type Summary struct {
	Total   int
	Passed  int
	Failed  int
	Results []CaseResult
}

// BackendUnavailableError reports that the backend could not be reached at
// all; it maps to the harness's infrastructure exit code, distinct from
// check failures.
type BackendUnavailableError struct {
	Endpoint string
	Err      error
}

func (e *BackendUnavailableError) Error() string {
	return fmt.Sprintf("backend unavailable: could not reach %s: %v", e.Endpoint, e.Err)
}

func (e *BackendUnavailableError) Unwrap() error {
	return e.Err
}

// Runner posts cases to a backend and applies the deterministic checks
type Runner struct {
	BaseURL string
	Timeout time.Duration
	Retries int
	Logger  *logrus.Logger

	client *http.Client
}

// NewRunner creates a runner for the given backend
func NewRunner(baseURL string, timeout time.Duration, retries int, logger *logrus.Logger) *Runner {
	return &Runner{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		Timeout: timeout,
		Retries: retries,
		Logger:  logger,
		client:  &http.Client{Timeout: timeout},
	}
}

// Run evaluates every case in order. It stops with a
// BackendUnavailableError as soon as the backend cannot be reached.
func (r *Runner) Run(ctx context.Context, cases []Case) (*Summary, error) {
	summary := &Summary{}
	for _, evalCase := range cases {
		result, err := r.evaluateCase(ctx, evalCase)
		if err != nil {
			return nil, err
		}
		summary.Total++
		if result.Passed {
			summary.Passed++
			r.Logger.WithField("case_id", result.CaseID).Info("PASS")
		} else {
			summary.Failed++
			r.Logger.WithFields(logrus.Fields{
				"case_id": result.CaseID,
				"errors":  result.Errors,
			}).Warn("FAIL")
		}
		summary.Results = append(summary.Results, result)
	}
	return summary, nil
}

func (r *Runner) evaluateCase(ctx context.Context, evalCase Case) (CaseResult, error) {
	endpoint := r.BaseURL + "/v1/interpret"

	resp, err := r.postWithRetries(ctx, endpoint, evalCase.Request)
	if err != nil {
		return CaseResult{}, &BackendUnavailableError{Endpoint: endpoint, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return CaseResult{}, &BackendUnavailableError{Endpoint: endpoint, Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		preview := string(body)
		if len(preview) > 200 {
			preview = preview[:200]
		}
		return CaseResult{
			CaseID: evalCase.CaseID,
			Passed: false,
			Errors: []string{fmt.Sprintf("HTTP %d: %s", resp.StatusCode, preview)},
		}, nil
	}

	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		return CaseResult{
			CaseID: evalCase.CaseID,
			Passed: false,
			Errors: []string{fmt.Sprintf("response is not a valid JSON object: %v", err)},
		}, nil
	}

	errors := RunAllChecks(payload, evalCase.ExpectedAbstain)
	return CaseResult{
		CaseID: evalCase.CaseID,
		Passed: len(errors) == 0,
		Errors: errors,
	}, nil
}

func (r *Runner) postWithRetries(ctx context.Context, endpoint string, request map[string]any) (*http.Response, error) {
	payload, err := json.Marshal(request)
	if err != nil {
		return nil, err
	}

	attempts := r.Retries + 1
	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := r.client.Do(req)
		if err == nil {
			return resp, nil
		}
		lastErr = err
	}
	return nil, lastErr
}
