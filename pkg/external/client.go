package external

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

const userAgent = "repurposing-pipeline/1.0"

// getJSON performs a GET request and decodes the JSON response into out.
// 5xx responses are retryable; 4xx responses are permanent failures.
func getJSON(ctx context.Context, client *http.Client, rawURL string, query url.Values, headers map[string]string, out interface{}) error {
	endpoint := rawURL
	if len(query) > 0 {
		endpoint = rawURL + "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Permanent(fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	return doRequest(client, req, out)
}

// postJSON performs a POST with a JSON body and decodes the JSON response
func postJSON(ctx context.Context, client *http.Client, rawURL string, body interface{}, headers map[string]string, out interface{}) error {
	encoded, err := json.Marshal(body)
	if err != nil {
		return Permanent(fmt.Errorf("failed to encode request body: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, bytes.NewReader(encoded))
	if err != nil {
		return Permanent(fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	return doRequest(client, req, out)
}

// postForm performs a form-encoded POST and decodes the JSON response
func postForm(ctx context.Context, client *http.Client, rawURL string, form url.Values, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, bytes.NewReader([]byte(form.Encode())))
	if err != nil {
		return Permanent(fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	return doRequest(client, req, out)
}

// getRaw performs a GET and returns the raw response body
func getRaw(ctx context.Context, client *http.Client, rawURL string, query url.Values) ([]byte, error) {
	endpoint := rawURL
	if len(query) > 0 {
		endpoint = rawURL + "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, Permanent(fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if err := statusError(resp.StatusCode); err != nil {
		return nil, err
	}
	return body, nil
}

func doRequest(client *http.Client, req *http.Request, out interface{}) error {
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if err := statusError(resp.StatusCode); err != nil {
		io.Copy(io.Discard, resp.Body)
		return err
	}

	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func statusError(code int) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code >= 500 || code == http.StatusTooManyRequests:
		return fmt.Errorf("server error: HTTP %d", code)
	default:
		return Permanent(fmt.Errorf("client error: HTTP %d", code))
	}
}
