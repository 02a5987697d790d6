package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/wenwu/saas-platform/trialapp-service/internal/models"
)

// DeploymentsAPI lists deployments of a site
type DeploymentsAPI interface {
	List(ctx context.Context) ([]models.Deployment, error)
	Get(ctx context.Context, id string) (*models.Deployment, error)
	Log(ctx context.Context, id string) ([]models.DeploymentLogEntry, error)
}

// DeploymentsClient calls /api/deployments on the management endpoint
type DeploymentsClient struct {
	scmClient
}

// NewDeploymentsClient creates a deployments client bound to baseURL
func NewDeploymentsClient(creds models.Credentials, baseURL string, httpClient *http.Client) *DeploymentsClient {
	return &DeploymentsClient{scmClient: newSCMClient("DeploymentsClient", creds, baseURL, httpClient)}
}

// List returns deployments, newest first as reported by the endpoint
func (c *DeploymentsClient) List(ctx context.Context) ([]models.Deployment, error) {
	var deployments []models.Deployment
	if err := c.do(ctx, http.MethodGet, "/api/deployments", nil, &deployments); err != nil {
		return nil, fmt.Errorf("list deployments: %w", err)
	}
	return deployments, nil
}

// Get returns one deployment by ID
func (c *DeploymentsClient) Get(ctx context.Context, id string) (*models.Deployment, error) {
	var deployment models.Deployment
	if err := c.do(ctx, http.MethodGet, "/api/deployments/"+url.PathEscape(id), nil, &deployment); err != nil {
		return nil, fmt.Errorf("get deployment %s: %w", id, err)
	}
	return &deployment, nil
}

// Log returns the log entries of one deployment
func (c *DeploymentsClient) Log(ctx context.Context, id string) ([]models.DeploymentLogEntry, error) {
	var entries []models.DeploymentLogEntry
	if err := c.do(ctx, http.MethodGet, "/api/deployments/"+url.PathEscape(id)+"/log", nil, &entries); err != nil {
		return nil, fmt.Errorf("get deployment log %s: %w", id, err)
	}
	return entries, nil
}
