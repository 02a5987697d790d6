package client

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"net/url"

	"github.com/wenwu/saas-platform/trialapp-service/internal/models"
)

// SettingsAPI reads and writes application settings on a management endpoint
type SettingsAPI interface {
	List(ctx context.Context) (map[string]string, error)
	Upsert(ctx context.Context, settings map[string]string) error
	Delete(ctx context.Context, key string) error
}

// SettingsClient calls /api/settings on the management endpoint
type SettingsClient struct {
	scmClient
}

// NewSettingsClient creates a settings client bound to baseURL
func NewSettingsClient(creds models.Credentials, baseURL string, httpClient *http.Client) *SettingsClient {
	return &SettingsClient{scmClient: newSCMClient("SettingsClient", creds, baseURL, httpClient)}
}

// List returns the full key-value settings map
func (c *SettingsClient) List(ctx context.Context) (map[string]string, error) {
	settings := map[string]string{}
	if err := c.do(ctx, http.MethodGet, "/api/settings", nil, &settings); err != nil {
		return nil, fmt.Errorf("list settings: %w", err)
	}
	return settings, nil
}

// Upsert posts the full settings map. Keys not in the body are left untouched
// by the endpoint; use Delete to remove them.
func (c *SettingsClient) Upsert(ctx context.Context, settings map[string]string) error {
	log.Printf("[SettingsClient] Upserting %d settings", len(settings))

	if settings == nil {
		settings = map[string]string{}
	}
	if err := c.do(ctx, http.MethodPost, "/api/settings", settings, nil); err != nil {
		return fmt.Errorf("upsert settings: %w", err)
	}
	return nil
}

// Delete removes one setting
func (c *SettingsClient) Delete(ctx context.Context, key string) error {
	// 日志脱敏: 只记录 key，不记录 value
	log.Printf("[SettingsClient] Deleting setting: %s", key)

	if err := c.do(ctx, http.MethodDelete, "/api/settings/"+url.PathEscape(key), nil, nil); err != nil {
		return fmt.Errorf("delete setting %s: %w", key, err)
	}
	return nil
}
