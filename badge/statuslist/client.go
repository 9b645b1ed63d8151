package statuslist

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Client fetches published status list credentials over HTTP so verifiers
// without access to the issuer's store can answer revocation checks.
type Client struct {
	httpClient *http.Client
}

// NewClient creates a status list client with an instrumented transport and a
// sensible default timeout.
func NewClient() *Client {
	return &Client{
		httpClient: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
			Timeout:   10 * time.Second,
		},
	}
}

// FetchStatusListCredential fetches and parses the status list credential at
// the given URL.
func (c *Client) FetchStatusListCredential(ctx context.Context, statusListCredentialURL string) (map[string]interface{}, error) {
	if statusListCredentialURL == "" {
		return nil, fmt.Errorf("statusListCredential URL is empty")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, statusListCredentialURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build status list credential request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call status list credential endpoint: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status list credential endpoint returned non-200 status: %s", resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read status list credential response body: %w", err)
	}

	var doc map[string]interface{}
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal status list credential JSON: %w", err)
	}

	return doc, nil
}

// IsRevoked resolves a credentialStatus entry against the published list it
// points at.
func (c *Client) IsRevoked(ctx context.Context, statusEntry map[string]interface{}) (bool, error) {
	listURL, _ := statusEntry["statusListCredential"].(string)
	indexStr, _ := statusEntry["statusListIndex"].(string)

	index, err := strconv.Atoi(indexStr)
	if err != nil {
		return false, fmt.Errorf("failed to parse statusListIndex: %w", err)
	}

	doc, err := c.FetchStatusListCredential(ctx, listURL)
	if err != nil {
		return false, err
	}

	subject, ok := doc["credentialSubject"].(map[string]interface{})
	if !ok {
		return false, fmt.Errorf("status list credential has no credentialSubject")
	}

	// Only revocation lists are consulted here.
	if purpose, _ := subject["statusPurpose"].(string); purpose != StatusPurposeRevocation {
		return false, nil
	}

	encodedList, _ := subject["encodedList"].(string)
	bits, err := DecodeBits(encodedList)
	if err != nil {
		return false, err
	}

	return bits.Get(index)
}
