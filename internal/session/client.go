// Package session holds the trial app session client: one immutable metadata
// snapshot, the credentials derived from it, and the capability clients bound
// to its management endpoint.
package session

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/google/uuid"

	"github.com/wenwu/saas-platform/trialapp-service/internal/client"
	"github.com/wenwu/saas-platform/trialapp-service/internal/models"
)

// CapabilityFactory builds clients bound to (credentials, management URL).
// *client.SCMFactory is the production implementation.
type CapabilityFactory interface {
	Settings(creds models.Credentials, baseURL string) client.SettingsAPI
	Deployments(creds models.Credentials, baseURL string) client.DeploymentsAPI
	Files(creds models.Credentials, baseURL string) client.FilesAPI
	Logs(creds models.Credentials, baseURL string) client.LogsAPI
}

// Client is a trial app session. It is never mutated after construction;
// a refresh builds a new Client from freshly fetched metadata.
type Client struct {
	metadata    models.TrialMetadata
	credentials models.Credentials
	factory     CapabilityFactory

	settingsOnce    sync.Once
	settings        client.SettingsAPI
	deploymentsOnce sync.Once
	deployments     client.DeploymentsAPI
	filesOnce       sync.Once
	files           client.FilesAPI
	logsOnce        sync.Once
	logs            client.LogsAPI
}

// New fetches the metadata of the session identified by sessionToken and
// builds a client from it.
func New(ctx context.Context, fetcher client.MetadataFetcher, factory CapabilityFactory, sessionToken string) (*Client, error) {
	meta, err := fetcher.Fetch(ctx, sessionToken)
	if err != nil {
		return nil, fmt.Errorf("fetch trial app metadata: %w", err)
	}
	return FromMetadata(meta, factory)
}

// FromMetadata builds a client from already fetched metadata.
// Metadata without a site name is rejected with ErrMetadataUnavailable.
func FromMetadata(meta *models.TrialMetadata, factory CapabilityFactory) (*Client, error) {
	if meta == nil || !meta.Provisioned() {
		return nil, models.ErrMetadataUnavailable
	}
	if meta.SiteGUID != "" {
		if _, err := uuid.Parse(meta.SiteGUID); err != nil {
			log.Printf("[Session] Site %s has a non-UUID siteGuid %q", meta.SiteName, meta.SiteGUID)
		}
	}

	return &Client{
		metadata:    *meta,
		credentials: meta.Credentials(),
		factory:     factory,
	}, nil
}

// Metadata returns a copy of the snapshot this client was built from
func (c *Client) Metadata() models.TrialMetadata {
	return c.metadata
}

// Credentials returns the publishing credentials
func (c *Client) Credentials() models.Credentials {
	return c.credentials
}

// SessionToken is the token the metadata was fetched with
func (c *Client) SessionToken() string {
	return c.metadata.LoginSession
}

func (c *Client) FullName() string {
	return c.metadata.HostName
}

// ID is the stable site identifier
func (c *Client) ID() string {
	return c.metadata.SiteGUID
}

func (c *Client) SiteName() string {
	return c.metadata.SiteName
}

func (c *Client) DefaultHostName() string {
	return c.metadata.HostName
}

func (c *Client) DefaultHostURL() string {
	return "https://" + c.metadata.HostName
}

// ManagementURL returns the SCM base URL; ok is false on plans without one.
func (c *Client) ManagementURL() (string, bool) {
	if !c.metadata.HasManagementEndpoint() {
		return "", false
	}
	return "https://" + c.metadata.ScmHostName, true
}

// Settings returns the settings client, building it on first use
func (c *Client) Settings() (client.SettingsAPI, error) {
	baseURL, err := c.managementURL()
	if err != nil {
		return nil, err
	}
	c.settingsOnce.Do(func() {
		c.settings = c.factory.Settings(c.credentials, baseURL)
	})
	return c.settings, nil
}

// Deployments returns the deployments client, building it on first use
func (c *Client) Deployments() (client.DeploymentsAPI, error) {
	baseURL, err := c.managementURL()
	if err != nil {
		return nil, err
	}
	c.deploymentsOnce.Do(func() {
		c.deployments = c.factory.Deployments(c.credentials, baseURL)
	})
	return c.deployments, nil
}

// Files returns the file system client, building it on first use
func (c *Client) Files() (client.FilesAPI, error) {
	baseURL, err := c.managementURL()
	if err != nil {
		return nil, err
	}
	c.filesOnce.Do(func() {
		c.files = c.factory.Files(c.credentials, baseURL)
	})
	return c.files, nil
}

// Logs returns the log client, building it on first use
func (c *Client) Logs() (client.LogsAPI, error) {
	baseURL, err := c.managementURL()
	if err != nil {
		return nil, err
	}
	c.logsOnce.Do(func() {
		c.logs = c.factory.Logs(c.credentials, baseURL)
	})
	return c.logs, nil
}

func (c *Client) managementURL() (string, error) {
	baseURL, ok := c.ManagementURL()
	if !ok {
		return "", fmt.Errorf("site %s: %w", c.metadata.SiteName, models.ErrUnsupportedOperation)
	}
	return baseURL, nil
}
