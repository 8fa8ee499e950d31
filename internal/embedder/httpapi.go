package embedder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// postJSON sends a JSON-encoded POST to url and decodes the response body
// into out. The HTTP status is returned alongside so callers can surface the
// backend's own error message on non-2xx responses. Both embedding backends
// speak this shape; only their payloads and auth headers differ.
func postJSON(ctx context.Context, client *http.Client, url string, headers map[string]string, in, out any) (int, error) {
	payload, err := json.Marshal(in)
	if err != nil {
		return 0, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return resp.StatusCode, fmt.Errorf("decode response: %w", err)
	}
	return resp.StatusCode, nil
}

// httpOK reports whether status is in the 2xx range.
func httpOK(status int) bool {
	return status >= 200 && status < 300
}
