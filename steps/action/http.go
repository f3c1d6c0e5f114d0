package action

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/spf13/cast"
)

// HTTPAction sends an HTTP request and, optionally, registers a
// compensating request as its undo action.
//
// Useful for steps that drive a service under development:
//   - Seed or reset fixtures through an admin API
//   - Log in and hand the session to later steps
//   - Call a webhook and revert it on rollback
//
// Params:
//   - url: target URL (required)
//   - method: GET (default), POST, PUT, PATCH or DELETE
//   - headers: map of header values
//   - body: string, or any other value encoded as JSON
//   - undo: a map with the same keys describing the compensating request
//
// A response status of 400 or above fails the step.
//
// Result:
//   - status_code: HTTP status code
//   - headers: response headers; single values as string
//   - body: response body as string
//
// Example step params:
//
//	map[string]any{
//	    "method": "POST",
//	    "url":    "http://localhost:8080/api/users",
//	    "body":   map[string]any{"name": "alice"},
//	    "undo": map[string]any{
//	        "method": "DELETE",
//	        "url":    "http://localhost:8080/api/users/alice",
//	    },
//	}
type HTTPAction struct {
	client *http.Client
}

// NewHTTPAction creates an HTTPAction. A nil client uses a client without
// its own timeout; deadlines come from the step context (see
// steps.WithTimeout).
func NewHTTPAction(client *http.Client) *HTTPAction {
	if client == nil {
		client = &http.Client{}
	}
	return &HTTPAction{client: client}
}

// Name implements Action.
func (h *HTTPAction) Name() string { return "http" }

// Do implements Action.
func (h *HTTPAction) Do(ctx context.Context, call Call) (any, error) {
	req, err := parseRequest(call.Params)
	if err != nil {
		return nil, err
	}

	var undo *request
	if rawUndo, ok := call.Params["undo"]; ok {
		undoParams, err := cast.ToStringMapE(rawUndo)
		if err != nil {
			return nil, fmt.Errorf("undo parameter must be a map: %w", err)
		}
		if undo, err = parseRequest(undoParams); err != nil {
			return nil, fmt.Errorf("invalid undo request: %w", err)
		}
	}

	result, err := h.send(ctx, req)
	if err != nil {
		return nil, err
	}

	if undo != nil {
		call.Undo.RegisterUndo(func(ctx context.Context) error {
			_, err := h.send(ctx, undo)
			return err
		})
	}
	return result, nil
}

type request struct {
	method  string
	url     string
	headers map[string]string
	body    []byte
	json    bool
}

var supportedMethods = map[string]bool{
	http.MethodGet:    true,
	http.MethodPost:   true,
	http.MethodPut:    true,
	http.MethodPatch:  true,
	http.MethodDelete: true,
}

func parseRequest(params map[string]any) (*request, error) {
	url, _ := params["url"].(string)
	if url == "" {
		return nil, fmt.Errorf("url parameter required (string)")
	}

	method := http.MethodGet
	if m := cast.ToString(params["method"]); m != "" {
		method = strings.ToUpper(m)
	}
	if !supportedMethods[method] {
		return nil, fmt.Errorf("unsupported HTTP method: %s", method)
	}

	req := &request{method: method, url: url}

	if raw, ok := params["headers"]; ok {
		headers, err := cast.ToStringMapStringE(raw)
		if err != nil {
			return nil, fmt.Errorf("headers parameter must be a map: %w", err)
		}
		req.headers = headers
	}

	switch body := params["body"].(type) {
	case nil:
	case string:
		req.body = []byte(body)
	default:
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode body: %w", err)
		}
		req.body = encoded
		req.json = true
	}
	return req, nil
}

func (h *HTTPAction) send(ctx context.Context, r *request) (map[string]any, error) {
	var body io.Reader
	if len(r.body) > 0 {
		body = bytes.NewReader(r.body)
	}

	req, err := http.NewRequestWithContext(ctx, r.method, r.url, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if r.json {
		req.Header.Set("Content-Type", "application/json")
	}
	for key, value := range r.headers {
		req.Header.Set(key, value)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, fmt.Errorf("%s %s: unexpected status %d", r.method, r.url, resp.StatusCode)
	}

	respHeaders := make(map[string]any, len(resp.Header))
	for key, values := range resp.Header {
		if len(values) == 1 {
			respHeaders[key] = values[0]
		} else {
			respHeaders[key] = values
		}
	}

	return map[string]any{
		"status_code": resp.StatusCode,
		"headers":     respHeaders,
		"body":        string(respBody),
	}, nil
}
