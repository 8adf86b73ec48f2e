// Package opencode is the HTTP client for the external opencode agent
// runtime. The coordination core only calls through this narrow surface:
// session lifecycle, fire-and-forget prompting, and status queries.
//
// Every failure from the runtime is typed (*APIError) so call sites can
// downgrade it to a boolean push flag or a doctor warning. Nothing in this
// package is ever allowed to abort a state mutation already committed to
// disk; the Notifier port makes that contract explicit.
package opencode

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mrz1836/crew/internal/constants"
	crewerrors "github.com/mrz1836/crew/internal/errors"
)

// requestTimeout bounds every runtime call; the runtime is local, so slow
// answers mean it is wedged.
const requestTimeout = 20 * time.Second

// maxErrorDetail caps how much of an error body is carried into messages.
const maxErrorDetail = 200

// SessionStateUnknown is returned when the runtime cannot account for a
// session id.
const SessionStateUnknown = "unknown"

// APIError describes a failed runtime request.
type APIError struct {
	// Method and Path identify the request.
	Method string
	Path   string

	// StatusCode is the HTTP status, 0 when the server was unreachable.
	StatusCode int

	// Detail is a truncated response body or transport error text.
	Detail string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("cannot reach opencode server: %s", e.Detail)
	}
	return fmt.Sprintf("opencode API %s %s failed (%d): %s", e.Method, e.Path, e.StatusCode, e.Detail)
}

// Unwrap maps API errors onto the shared sentinel taxonomy.
func (e *APIError) Unwrap() error {
	if e.StatusCode == 0 {
		return crewerrors.ErrRuntimeUnavailable
	}
	return crewerrors.ErrRuntimeRequest
}

// Client talks to one opencode runtime endpoint.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a Client for the given base URL. An empty URL selects
// the default local endpoint.
func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = constants.DefaultServerURL
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: requestTimeout},
	}
}

// request performs one JSON request and decodes the response into out when
// out is non-nil and the body is non-empty.
func (c *Client) request(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &APIError{Method: method, Path: path, Detail: err.Error()}
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &APIError{Method: method, Path: path, StatusCode: resp.StatusCode, Detail: err.Error()}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail := string(data)
		if len(detail) > maxErrorDetail {
			detail = detail[:maxErrorDetail]
		}
		return &APIError{Method: method, Path: path, StatusCode: resp.StatusCode, Detail: detail}
	}

	if out != nil && len(bytes.TrimSpace(data)) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return &APIError{Method: method, Path: path, StatusCode: resp.StatusCode,
				Detail: fmt.Sprintf("invalid response body: %s", err)}
		}
	}
	return nil
}

// Health probes the runtime's global health endpoint.
func (c *Client) Health(ctx context.Context) (map[string]any, error) {
	var out map[string]any
	if err := c.request(ctx, http.MethodGet, "/global/health", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateSession opens a new runtime session and returns its id.
func (c *Client) CreateSession(ctx context.Context, title string) (string, error) {
	var out struct {
		ID string `json:"id"`
	}
	if err := c.request(ctx, http.MethodPost, "/session", map[string]string{"title": title}, &out); err != nil {
		return "", err
	}
	if out.ID == "" {
		return "", &APIError{Method: http.MethodPost, Path: "/session", StatusCode: http.StatusOK,
			Detail: "session creation returned no id"}
	}
	return out.ID, nil
}

// promptModel is the provider/model pair the runtime expects.
type promptModel struct {
	ProviderID string `json:"providerID"`
	ModelID    string `json:"modelID"`
}

// splitModel parses a "provider/model" identifier. Anything else is
// omitted from the prompt so the runtime applies its own default.
func splitModel(model string) *promptModel {
	model = strings.TrimSpace(model)
	provider, id, ok := strings.Cut(model, "/")
	if !ok {
		return nil
	}
	provider = strings.TrimSpace(provider)
	id = strings.TrimSpace(id)
	if provider == "" || id == "" {
		return nil
	}
	return &promptModel{ProviderID: provider, ModelID: id}
}

// PromptAsync sends text to a live session without waiting for the agent to
// act on it.
func (c *Client) PromptAsync(ctx context.Context, sessionID, text, agent, model string) error {
	body := map[string]any{
		"parts": []map[string]string{{"type": "text", "text": text}},
	}
	if agent != "" {
		body["agent"] = agent
	}
	if m := splitModel(model); m != nil {
		body["model"] = m
	}
	return c.request(ctx, http.MethodPost, "/session/"+sessionID+"/prompt_async", body, nil)
}

// AbortSession interrupts whatever the session is doing.
func (c *Client) AbortSession(ctx context.Context, sessionID string) error {
	return c.request(ctx, http.MethodPost, "/session/"+sessionID+"/abort", nil, nil)
}

// DeleteSession removes the session from the runtime.
func (c *Client) DeleteSession(ctx context.Context, sessionID string) error {
	return c.request(ctx, http.MethodDelete, "/session/"+sessionID, nil, nil)
}

// SessionStatus returns the runtime's state string for a session, or
// SessionStateUnknown when the runtime does not recognize it.
func (c *Client) SessionStatus(ctx context.Context, sessionID string) (string, error) {
	var out map[string]json.RawMessage
	if err := c.request(ctx, http.MethodGet, "/session/status", nil, &out); err != nil {
		return SessionStateUnknown, err
	}
	raw, ok := out[sessionID]
	if !ok {
		return SessionStateUnknown, nil
	}

	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		return asString, nil
	}
	var asObject struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &asObject); err == nil && asObject.Type != "" {
		return asObject.Type, nil
	}
	return SessionStateUnknown, nil
}

// IsAPIError reports whether err originated from the runtime client.
func IsAPIError(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr)
}
