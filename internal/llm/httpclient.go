package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"
)

// newLLMHTTPClient returns a client sized for short, non-streaming
// completions. The longest call generates ten exercises in one response.
func newLLMHTTPClient() *http.Client {
	return &http.Client{
		Timeout: 90 * time.Second,
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   10 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			TLSHandshakeTimeout:   10 * time.Second,
			ResponseHeaderTimeout: 75 * time.Second,
			IdleConnTimeout:       90 * time.Second,
			MaxIdleConnsPerHost:   2,
			ForceAttemptHTTP2:     true,
		},
	}
}

// jsonAPI is the HTTP plumbing shared by the hosted providers
type jsonAPI struct {
	baseURL string
	model   string
	header  http.Header
	client  *http.Client
}

func newJSONAPI(baseURL, model string, header http.Header) jsonAPI {
	header.Set("Content-Type", "application/json")
	return jsonAPI{
		baseURL: baseURL,
		model:   model,
		header:  header,
		client:  newLLMHTTPClient(),
	}
}

// modelFor picks the request's model, falling back to the configured one
func (a jsonAPI) modelFor(req *Request) string {
	if req.Model != "" {
		return req.Model
	}
	return a.model
}

// post sends in as JSON to baseURL+path and decodes a 200 answer into out.
// Any other status becomes an *APIError carrying the body.
func (a jsonAPI) post(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header = a.header.Clone()

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		return &APIError{StatusCode: resp.StatusCode, Body: string(msg)}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
