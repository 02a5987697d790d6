package models

import (
	"math"
	"strings"
)

// Trial app display states (derived, never stored)
const (
	StateUninitialized = "uninitialized"
	StateActive        = "active"
	StateExpired       = "expired"
)

// Child node context values, in display order
const (
	ContextTrialApp    = "trialApp"
	ContextSettings    = "applicationSettings"
	ContextDeployments = "deployments"
	ContextFiles       = "files"
	ContextLogs        = "logFiles"
)

// DefaultMetadataURL is the trial service endpoint returning the metadata of
// the session identified by the loginsession cookie.
const DefaultMetadataURL = "https://tryappservice.azure.com/api/vscoderesource"

// TrialMetadata is the snapshot returned by the trial service.
// It is replaced wholesale on every fetch.
type TrialMetadata struct {
	HostName           string  `json:"hostName"`
	ScmHostName        string  `json:"scmHostName,omitempty"` // empty on Linux / restricted plans
	SiteGUID           string  `json:"siteGuid"`
	SiteName           string  `json:"siteName,omitempty"` // empty until provisioning completes
	PublishingUserName string  `json:"publishingUserName"`
	PublishingPassword string  `json:"publishingPassword"`
	TimeLeft           float64 `json:"timeLeft"` // seconds
	LoginSession       string  `json:"loginSession,omitempty"`
}

// Provisioned reports whether the trial service has finished creating the site.
func (m TrialMetadata) Provisioned() bool {
	return strings.TrimSpace(m.SiteName) != ""
}

// HasManagementEndpoint reports whether the plan exposes an SCM host.
func (m TrialMetadata) HasManagementEndpoint() bool {
	return strings.TrimSpace(m.ScmHostName) != ""
}

// Expired treats a non-finite or non-positive remaining time as expired.
func (m TrialMetadata) Expired() bool {
	t := m.TimeLeft
	return math.IsNaN(t) || math.IsInf(t, 0) || t <= 0
}

// MinutesLeft rounds the remaining time to whole minutes (half away from zero).
// Returns 0 when expired.
func (m TrialMetadata) MinutesLeft() int {
	if m.Expired() {
		return 0
	}
	return int(math.Round(m.TimeLeft / 60))
}

// Credentials returns the publishing credentials derived from the metadata.
func (m TrialMetadata) Credentials() Credentials {
	return Credentials{
		Username: m.PublishingUserName,
		Password: m.PublishingPassword,
	}
}

// Credentials is the basic-auth pair for the management endpoint
type Credentials struct {
	Username string
	Password string
}
