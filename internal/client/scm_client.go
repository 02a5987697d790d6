package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/wenwu/saas-platform/trialapp-service/internal/models"
)

// StatusError is a non-2xx answer from a remote endpoint.
// It unwraps to models.ErrTransport.
type StatusError struct {
	Service    string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s returned status %d", e.Service, e.StatusCode)
	}
	return fmt.Sprintf("%s returned status %d: %s", e.Service, e.StatusCode, e.Body)
}

func (e *StatusError) Unwrap() error {
	return models.ErrTransport
}

// SCMFactory builds capability-bound clients for a management endpoint.
// All clients it builds share one http.Client.
type SCMFactory struct {
	httpClient *http.Client
}

// NewSCMFactory creates a factory whose clients use the given timeout
func NewSCMFactory(timeout time.Duration) *SCMFactory {
	return &SCMFactory{
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Settings returns a settings client bound to baseURL
func (f *SCMFactory) Settings(creds models.Credentials, baseURL string) SettingsAPI {
	return NewSettingsClient(creds, baseURL, f.httpClient)
}

// Deployments returns a deployments client bound to baseURL
func (f *SCMFactory) Deployments(creds models.Credentials, baseURL string) DeploymentsAPI {
	return NewDeploymentsClient(creds, baseURL, f.httpClient)
}

// Files returns a virtual file system client bound to baseURL
func (f *SCMFactory) Files(creds models.Credentials, baseURL string) FilesAPI {
	return NewFilesClient(creds, baseURL, f.httpClient)
}

// Logs returns a log client bound to baseURL
func (f *SCMFactory) Logs(creds models.Credentials, baseURL string) LogsAPI {
	return NewLogsClient(creds, baseURL, f.httpClient)
}

// scmClient is the basic-auth JSON transport shared by the capability clients
type scmClient struct {
	name       string
	baseURL    string
	creds      models.Credentials
	httpClient *http.Client
}

func newSCMClient(name string, creds models.Credentials, baseURL string, httpClient *http.Client) scmClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	return scmClient{
		name:       name,
		baseURL:    strings.TrimRight(baseURL, "/"),
		creds:      creds,
		httpClient: httpClient,
	}
}

// do sends a request and decodes a JSON answer into out when out is non-nil.
func (c *scmClient) do(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	httpReq.SetBasicAuth(c.creds.Username, c.creds.Password)
	httpReq.Header.Set("Accept", "application/json")
	if in != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("send request: %w: %w", models.ErrTransport, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w: %w", models.ErrTransport, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{Service: c.name, StatusCode: resp.StatusCode, Body: truncate(respBody)}
	}

	if out == nil || len(bytes.TrimSpace(respBody)) == 0 {
		return nil
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("decode response: %w: %w (body: %s)", models.ErrParse, err, truncate(respBody))
	}

	return nil
}

// raw sends a GET request and returns the body as-is
func (c *scmClient) raw(ctx context.Context, path string) ([]byte, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.SetBasicAuth(c.creds.Username, c.creds.Password)

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
		return nil, &StatusError{Service: c.name, StatusCode: resp.StatusCode, Body: truncate(respBody)}
	}

	log.Printf("[%s] Read %d bytes from %s", c.name, len(respBody), path)
	return respBody, nil
}

const maxErrorBody = 512

func truncate(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > maxErrorBody {
		return s[:maxErrorBody] + "..."
	}
	return s
}
