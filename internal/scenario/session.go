package scenario

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Recorder receives operation results. The metrics engine implements it.
type Recorder interface {
	RecordOperation(name string, duration time.Duration, success bool, bytes int64)
	RecordFailure(name, reason string)
}

// TokenSource supplies bearer tokens for API requests.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// Target holds the resolved platform URLs for one run.
//
// BaseURL is the browser-facing platform root for a customer, for example
// https://apps.private.cytoreason.com/platform/customers/pyy. APIURL is the
// matching API root, for example
// https://api.platform.private.cytoreason.com/v1.0/customer/pyy/e2/platform.
type Target struct {
	BaseURL string
	APIURL  string
}

// Project identifies the data project queried by fetch payloads.
type Project struct {
	ID      string `json:"id"`
	Version string `json:"version"`
}

// Disease is one disease context a user session explores.
type Disease struct {
	Name       string
	Tissue     string
	ContextIDs []string
}

// ContextID returns one context id at random, or "" when none are known.
func (d Disease) ContextID(rng *rand.Rand) string {
	if len(d.ContextIDs) == 0 {
		return ""
	}
	return d.ContextIDs[rng.Intn(len(d.ContextIDs))]
}

// Session is the per-user state threaded through every operation: target
// URLs, HTTP client, credentials, the disease the user is exploring, and
// the sink for results. Handlers mutate Disease when the user switches
// context mid-session.
type Session struct {
	Target   Target
	Project  Project
	Disease  Disease
	Client   *http.Client
	Tokens   TokenSource
	Rand     *rand.Rand
	Recorder Recorder
	Log      *zap.Logger
}

// Payload builds the standard query body: project identity plus optional
// filters and output field selectors.
func (s *Session) Payload(filters map[string]any, outputFields []string) map[string]any {
	payload := map[string]any{"project": s.Project}
	if len(filters) > 0 {
		payload["filters"] = filters
	}
	if len(outputFields) > 0 {
		payload["outputFields"] = outputFields
	}
	return payload
}

// Pause sleeps for a random duration in the band, returning early if the
// context is cancelled.
func (s *Session) Pause(ctx context.Context, p Pause) {
	d := p.Duration(s.Rand)
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

// GetPage fetches a browser-facing page. Redirects to the login flow are
// treated as success since an unauthenticated probe still exercises the
// frontend.
func (s *Session) GetPage(ctx context.Context, name, path string) ([]byte, error) {
	return s.do(ctx, name, http.MethodGet, s.Target.BaseURL+path, nil, false, pageSuccess)
}

// GetAPI fetches an API endpoint with authentication.
func (s *Session) GetAPI(ctx context.Context, name, path string) ([]byte, error) {
	return s.do(ctx, name, http.MethodGet, s.Target.APIURL+path, nil, true, apiSuccess)
}

// PostJSON posts a JSON payload to an API endpoint with authentication.
func (s *Session) PostJSON(ctx context.Context, name, path string, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", name, err)
	}
	return s.do(ctx, name, http.MethodPost, s.Target.APIURL+path, body, true, apiSuccess)
}

func (s *Session) do(ctx context.Context, name, method, url string, body []byte, authed bool, accept func(int) bool) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", name, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if authed && s.Tokens != nil {
		token, err := s.Tokens.Token(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("%s: acquire token: %w", name, err)
			}
			s.Recorder.RecordOperation(name, 0, false, 0)
			s.Recorder.RecordFailure(name, "token acquisition failed")
			return nil, fmt.Errorf("%s: acquire token: %w", name, err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := s.Client.Do(req)
	elapsed := time.Since(start)

	if err != nil {
		// An operation cut short by run shutdown reports nothing; only
		// operations that ran to an outcome count toward the error rate.
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		s.Recorder.RecordOperation(name, elapsed, false, 0)
		s.Recorder.RecordFailure(name, "transport error")
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	defer resp.Body.Close()

	respBody, readErr := io.ReadAll(resp.Body)
	read := int64(len(respBody))

	if !accept(resp.StatusCode) {
		reason := statusReason(resp.StatusCode)
		s.Recorder.RecordOperation(name, elapsed, false, read)
		s.Recorder.RecordFailure(name, reason)
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			s.Log.Warn("authentication failed",
				zap.String("operation", name),
				zap.Int("status", resp.StatusCode))
		}
		return respBody, fmt.Errorf("%s: %s", name, reason)
	}
	if readErr != nil {
		if ctx.Err() != nil {
			return respBody, fmt.Errorf("%s: read body: %w", name, readErr)
		}
		s.Recorder.RecordOperation(name, elapsed, false, read)
		s.Recorder.RecordFailure(name, "body read error")
		return respBody, fmt.Errorf("%s: read body: %w", name, readErr)
	}

	s.Recorder.RecordOperation(name, elapsed, true, read)
	return respBody, nil
}

func apiSuccess(status int) bool {
	return status >= 200 && status < 400
}

// pageSuccess additionally tolerates explicit login redirects.
func pageSuccess(status int) bool {
	return (status >= 200 && status < 400) || status == http.StatusFound
}

func statusReason(status int) string {
	switch status {
	case 401:
		return "token expired or invalid (401 Unauthorized)"
	case 403:
		return "access forbidden (403 Forbidden)"
	case 404:
		return "resource not found (404 Not Found)"
	case 429:
		return "rate limited (429 Too Many Requests)"
	case 500:
		return "server error (500 Internal Server Error)"
	case 502:
		return "bad gateway (502)"
	case 503:
		return "service unavailable (503)"
	case 504:
		return "gateway timeout (504)"
	default:
		return fmt.Sprintf("HTTP %d", status)
	}
}
