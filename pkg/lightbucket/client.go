package lightbucket

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// DefaultBaseURL is the public Lightbucket service
const DefaultBaseURL = "https://app.lightbucket.co"

// CaptureCompletePath is the ingestion endpoint for finished exposures
const CaptureCompletePath = "/api/image_capture_complete"

// Client posts capture documents to the Lightbucket API
type Client struct {
	baseURL    string
	user       string
	apiKey     string
	httpClient *http.Client
}

// New creates a new Lightbucket client. The zero http.Client is used, so a
// request only times out if the transport does.
func New(baseURL, user, apiKey string) *Client {
	return NewWithHTTPClient(baseURL, user, apiKey, &http.Client{})
}

// NewWithHTTPClient creates a new Lightbucket client with a custom HTTP client
func NewWithHTTPClient(baseURL, user, apiKey string, httpClient *http.Client) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		user:       user,
		apiKey:     apiKey,
		httpClient: httpClient,
	}
}

// Upload sends an encoded UploadDocument. Any status other than 200 is
// returned as an *UploadRejectedError.
func (c *Client) Upload(ctx context.Context, body []byte) error {
	url := c.baseURL + CaptureCompletePath
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.SetBasicAuth(c.user, c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("error posting data to server: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return &UploadRejectedError{
			StatusCode: resp.StatusCode,
			Body:       string(bodyBytes),
		}
	}

	// Drain so the connection can be reused
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
