package client

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/wenwu/saas-platform/trialapp-service/internal/models"
)

const defaultLogLimit = 100

// LogsAPI reads recent application logs
type LogsAPI interface {
	Recent(ctx context.Context, limit int) ([]models.LogEntry, error)
}

// LogsClient calls /api/logs on the management endpoint
type LogsClient struct {
	scmClient
}

// NewLogsClient creates a log client bound to baseURL
func NewLogsClient(creds models.Credentials, baseURL string, httpClient *http.Client) *LogsClient {
	return &LogsClient{scmClient: newSCMClient("LogsClient", creds, baseURL, httpClient)}
}

// Recent returns up to limit recent log entries
func (c *LogsClient) Recent(ctx context.Context, limit int) ([]models.LogEntry, error) {
	if limit <= 0 {
		limit = defaultLogLimit
	}

	var entries []models.LogEntry
	if err := c.do(ctx, http.MethodGet, "/api/logs/recent?top="+strconv.Itoa(limit), nil, &entries); err != nil {
		return nil, fmt.Errorf("recent logs: %w", err)
	}
	return entries, nil
}
