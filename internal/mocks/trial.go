// Package mocks contains in-memory fakes of the trial service and the
// management endpoint clients for tests.
package mocks

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/wenwu/saas-platform/trialapp-service/internal/client"
	"github.com/wenwu/saas-platform/trialapp-service/internal/models"
)

// Metadata returns a provisioned trial app snapshot for tests
func Metadata(siteName string, timeLeft float64) *models.TrialMetadata {
	return &models.TrialMetadata{
		HostName:           siteName + ".azurewebsites.net",
		ScmHostName:        siteName + ".scm.azurewebsites.net",
		SiteGUID:           "0b0e5a6c-0d3e-4c8a-9a4f-3c5b7f0b6a11",
		SiteName:           siteName,
		PublishingUserName: "$" + siteName,
		PublishingPassword: siteName + "-pw",
		TimeLeft:           timeLeft,
	}
}

// MockFetcher is a MetadataFetcher returning canned metadata.
// FetchFunc, when set, takes precedence over Metadata/Err.
type MockFetcher struct {
	mu        sync.Mutex
	Metadata  *models.TrialMetadata
	Err       error
	FetchFunc func(ctx context.Context, token string) (*models.TrialMetadata, error)
	calls     int
}

func (m *MockFetcher) Fetch(ctx context.Context, token string) (*models.TrialMetadata, error) {
	m.mu.Lock()
	m.calls++
	fn, meta, err := m.FetchFunc, m.Metadata, m.Err
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, token)
	}
	if err != nil {
		return nil, err
	}
	if meta == nil {
		return nil, fmt.Errorf("%w: no metadata configured", models.ErrTransport)
	}
	out := *meta
	if out.LoginSession == "" {
		out.LoginSession = token
	}
	return &out, nil
}

// Set replaces the canned answer
func (m *MockFetcher) Set(meta *models.TrialMetadata, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Metadata, m.Err = meta, err
}

// Calls returns how many times Fetch was called
func (m *MockFetcher) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// MockSettings is an in-memory settings endpoint that records every call
type MockSettings struct {
	mu        sync.Mutex
	Store     map[string]string
	Ops       []string
	FailOn    map[string]error // keyed by "list", "upsert" or "delete:<key>"
	UpsertLog []map[string]string
}

func NewMockSettings(initial map[string]string) *MockSettings {
	store := make(map[string]string, len(initial))
	for k, v := range initial {
		store[k] = v
	}
	return &MockSettings{Store: store, FailOn: map[string]error{}}
}

func (m *MockSettings) List(ctx context.Context) (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Ops = append(m.Ops, "list")
	if err := m.FailOn["list"]; err != nil {
		return nil, err
	}
	out := make(map[string]string, len(m.Store))
	for k, v := range m.Store {
		out[k] = v
	}
	return out, nil
}

func (m *MockSettings) Upsert(ctx context.Context, settings map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Ops = append(m.Ops, "upsert")
	if err := m.FailOn["upsert"]; err != nil {
		return err
	}
	body := make(map[string]string, len(settings))
	for k, v := range settings {
		m.Store[k] = v
		body[k] = v
	}
	m.UpsertLog = append(m.UpsertLog, body)
	return nil
}

func (m *MockSettings) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Ops = append(m.Ops, "delete:"+key)
	if err := m.FailOn["delete:"+key]; err != nil {
		return err
	}
	delete(m.Store, key)
	return nil
}

// Deleted returns the keys passed to Delete, sorted
func (m *MockSettings) Deleted() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var keys []string
	for _, op := range m.Ops {
		if key, ok := strings.CutPrefix(op, "delete:"); ok {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys
}

// MockDeployments returns canned deployments
type MockDeployments struct {
	Deployments []models.Deployment
	Logs        map[string][]models.DeploymentLogEntry
	Err         error
}

func (m *MockDeployments) List(ctx context.Context) ([]models.Deployment, error) {
	return m.Deployments, m.Err
}

func (m *MockDeployments) Get(ctx context.Context, id string) (*models.Deployment, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	for i := range m.Deployments {
		if m.Deployments[i].ID == id {
			return &m.Deployments[i], nil
		}
	}
	return nil, &client.StatusError{Service: "MockDeployments", StatusCode: 404}
}

func (m *MockDeployments) Log(ctx context.Context, id string) ([]models.DeploymentLogEntry, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	entries, ok := m.Logs[id]
	if !ok {
		return nil, &client.StatusError{Service: "MockDeployments", StatusCode: 404}
	}
	return entries, nil
}

// MockFiles serves a fixed directory tree keyed by path
type MockFiles struct {
	Dirs  map[string][]models.FileEntry
	Files map[string][]byte
}

func (m *MockFiles) List(ctx context.Context, path string) ([]models.FileEntry, error) {
	entries, ok := m.Dirs[path]
	if !ok {
		return nil, &client.StatusError{Service: "MockFiles", StatusCode: 404}
	}
	return entries, nil
}

func (m *MockFiles) Read(ctx context.Context, path string) ([]byte, error) {
	content, ok := m.Files[path]
	if !ok {
		return nil, &client.StatusError{Service: "MockFiles", StatusCode: 404}
	}
	return content, nil
}

// MockLogs returns canned log entries
type MockLogs struct {
	Entries   []models.LogEntry
	LastLimit int
}

func (m *MockLogs) Recent(ctx context.Context, limit int) ([]models.LogEntry, error) {
	m.LastLimit = limit
	if limit > 0 && limit < len(m.Entries) {
		return m.Entries[:limit], nil
	}
	return m.Entries, nil
}

// MockFactory hands out the same fakes for every session and records the
// credentials and URLs it was asked to bind.
type MockFactory struct {
	mu              sync.Mutex
	SettingsFake    *MockSettings
	DeploymentsFake *MockDeployments
	FilesFake       *MockFiles
	LogsFake        *MockLogs
	Bound           []Binding
}

// Binding is one factory call
type Binding struct {
	Capability string
	Creds      models.Credentials
	BaseURL    string
}

func NewMockFactory() *MockFactory {
	return &MockFactory{
		SettingsFake:    NewMockSettings(nil),
		DeploymentsFake: &MockDeployments{},
		FilesFake:       &MockFiles{Dirs: map[string][]models.FileEntry{}, Files: map[string][]byte{}},
		LogsFake:        &MockLogs{},
	}
}

func (f *MockFactory) record(capability string, creds models.Credentials, baseURL string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Bound = append(f.Bound, Binding{Capability: capability, Creds: creds, BaseURL: baseURL})
}

// Bindings returns a copy of the recorded factory calls
func (f *MockFactory) Bindings() []Binding {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Binding(nil), f.Bound...)
}

func (f *MockFactory) Settings(creds models.Credentials, baseURL string) client.SettingsAPI {
	f.record("settings", creds, baseURL)
	return f.SettingsFake
}

func (f *MockFactory) Deployments(creds models.Credentials, baseURL string) client.DeploymentsAPI {
	f.record("deployments", creds, baseURL)
	return f.DeploymentsFake
}

func (f *MockFactory) Files(creds models.Credentials, baseURL string) client.FilesAPI {
	f.record("files", creds, baseURL)
	return f.FilesFake
}

func (f *MockFactory) Logs(creds models.Credentials, baseURL string) client.LogsAPI {
	f.record("logs", creds, baseURL)
	return f.LogsFake
}
