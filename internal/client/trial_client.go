package client

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/wenwu/saas-platform/trialapp-service/internal/models"
)

// MetadataFetcher retrieves trial session metadata for a session token
type MetadataFetcher interface {
	Fetch(ctx context.Context, sessionToken string) (*models.TrialMetadata, error)
}

// TrialClient calls the trial service to read session metadata
type TrialClient struct {
	metadataURL string
	httpClient  *http.Client
}

// NewTrialClient creates a new trial service client
func NewTrialClient(metadataURL string, timeout time.Duration) *TrialClient {
	if metadataURL == "" {
		metadataURL = models.DefaultMetadataURL
	}
	return &TrialClient{
		metadataURL: metadataURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// The trial service rejects requests that do not look like they came from
// its own web page.
var browserHeaders = map[string]string{
	"accept":          "*/*",
	"accept-language": "en-US,en;q=0.9",
	"sec-fetch-dest":  "empty",
	"sec-fetch-mode":  "cors",
	"sec-fetch-site":  "same-origin",
}

// Fetch gets the metadata of the trial session identified by sessionToken.
// There is no retry; callers decide whether to try again.
func (c *TrialClient) Fetch(ctx context.Context, sessionToken string) (*models.TrialMetadata, error) {
	// 日志脱敏: 只记录 token 指纹
	log.Printf("[TrialClient] Fetching metadata (session: %s)", TokenFingerprint(sessionToken))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.metadataURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	for k, v := range browserHeaders {
		httpReq.Header.Set(k, v)
	}
	httpReq.Header.Set("cookie", "loginsession="+sessionToken)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("send request: %w: %w", models.ErrTransport, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w: %w", models.ErrTransport, err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{Service: "trial-service", StatusCode: resp.StatusCode, Body: truncate(respBody)}
	}

	var meta *models.TrialMetadata
	if err := json.Unmarshal(respBody, &meta); err != nil {
		return nil, fmt.Errorf("decode response: %w: %w (body: %s)", models.ErrParse, err, truncate(respBody))
	}
	if meta == nil {
		return nil, fmt.Errorf("decode response: %w: empty metadata", models.ErrParse)
	}
	if meta.LoginSession == "" {
		meta.LoginSession = sessionToken
	}

	log.Printf("[TrialClient] Metadata fetched: site=%q host=%s time_left=%.0fs", meta.SiteName, meta.HostName, meta.TimeLeft)
	return meta, nil
}

// TokenFingerprint returns a short, non-reversible identifier for logs.
func TokenFingerprint(token string) string {
	if token == "" {
		return "<empty>"
	}
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:4])
}
