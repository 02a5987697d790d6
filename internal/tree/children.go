package tree

import (
	"context"
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/wenwu/saas-platform/trialapp-service/internal/appsettings"
	"github.com/wenwu/saas-platform/trialapp-service/internal/models"
	"github.com/wenwu/saas-platform/trialapp-service/internal/session"
)

// sessionNode is embedded by every child of a trial app node. It holds the
// parent's session client at the time the child was built and never
// mutates it.
type sessionNode struct {
	id      string
	session *session.Client
}

func (s sessionNode) ID() string {
	return s.id
}

// Session is the session client this node was built from
func (s sessionNode) Session() *session.Client {
	return s.session
}

func (s sessionNode) Description() string {
	return ""
}

func (s sessionNode) HasMoreChildren() bool {
	return false
}

// Refresh is a no-op: children are loaded from the endpoint on every call.
// A new session is only picked up by refreshing the trial app node.
func (s sessionNode) Refresh(ctx context.Context) error {
	return nil
}

// ==================== Settings ====================

// SettingsNode lists application settings
type SettingsNode struct {
	sessionNode
	adapter *appsettings.Adapter
}

func newSettingsNode(parentID string, sc *session.Client) *SettingsNode {
	return &SettingsNode{
		sessionNode: sessionNode{id: childID(parentID, models.ContextSettings), session: sc},
		adapter:     appsettings.NewAdapter(sc),
	}
}

func (n *SettingsNode) Label() string { return "Application Settings" }
func (n *SettingsNode) ContextValue() string { return models.ContextSettings }

// Children returns one leaf per setting, sorted by key
func (n *SettingsNode) Children(ctx context.Context) ([]Node, error) {
	settings, err := n.adapter.List(ctx)
	if err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(settings))
	for k := range settings {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	nodes := make([]Node, 0, len(keys))
	for _, k := range keys {
		nodes = append(nodes, &leafNode{
			id:           childID(n.id, k),
			label:        k,
			description:  "Hidden value",
			contextValue: "applicationSettingItem",
		})
	}
	return nodes, nil
}

// List returns the settings map
func (n *SettingsNode) List(ctx context.Context) (map[string]string, error) {
	return n.adapter.List(ctx)
}

// Update reconciles the remote settings with desired
func (n *SettingsNode) Update(ctx context.Context, desired map[string]string) (map[string]string, error) {
	return n.adapter.Update(ctx, desired)
}

// ==================== Deployments ====================

// DeploymentsNode lists deployments
type DeploymentsNode struct {
	sessionNode
}

func newDeploymentsNode(parentID string, sc *session.Client) *DeploymentsNode {
	return &DeploymentsNode{sessionNode{id: childID(parentID, models.ContextDeployments), session: sc}}
}

func (n *DeploymentsNode) Label() string { return "Deployments" }
func (n *DeploymentsNode) ContextValue() string { return models.ContextDeployments }

func (n *DeploymentsNode) Children(ctx context.Context) ([]Node, error) {
	deployments, err := n.List(ctx)
	if err != nil {
		return nil, err
	}

	nodes := make([]Node, 0, len(deployments))
	for _, d := range deployments {
		label := shortID(d.ID)
		if d.Message != "" {
			label += " - " + d.Message
		}
		desc := d.StatusText
		if d.Active {
			desc = "Active"
		}
		nodes = append(nodes, &leafNode{
			id:           childID(n.id, d.ID),
			label:        label,
			description:  desc,
			contextValue: "deployment",
		})
	}
	return nodes, nil
}

// List returns the deployments of the site
func (n *DeploymentsNode) List(ctx context.Context) ([]models.Deployment, error) {
	api, err := n.session.Deployments()
	if err != nil {
		return nil, err
	}
	return api.List(ctx)
}

// Log returns the log of one deployment
func (n *DeploymentsNode) Log(ctx context.Context, id string) ([]models.DeploymentLogEntry, error) {
	api, err := n.session.Deployments()
	if err != nil {
		return nil, err
	}
	return api.Log(ctx, id)
}

func shortID(id string) string {
	if len(id) > 7 {
		return id[:7]
	}
	return id
}

// ==================== Files ====================

const (
	siteRoot = "site/wwwroot"
	logsRoot = "LogFiles"
)

// FolderNode lists one directory of the site's file system
type FolderNode struct {
	sessionNode
	label        string
	path         string
	contextValue string
}

// FilesNode is the site root folder
type FilesNode struct {
	FolderNode
}

func newFilesNode(parentID string, sc *session.Client) *FilesNode {
	return &FilesNode{FolderNode{
		sessionNode:  sessionNode{id: childID(parentID, models.ContextFiles), session: sc},
		label:        "Files",
		path:         siteRoot,
		contextValue: models.ContextFiles,
	}}
}

func (n *FolderNode) Label() string { return n.label }
func (n *FolderNode) ContextValue() string { return n.contextValue }

// Path is the directory this node lists, relative to the file system root
func (n *FolderNode) Path() string { return n.path }

// Resolve joins rel onto the node's directory. Paths that are empty after
// cleaning stay at the directory itself; paths leaving it are rejected.
func (n *FolderNode) Resolve(rel string) (string, error) {
	p := path.Join(n.path, rel)
	if p != n.path && !strings.HasPrefix(p, n.path+"/") {
		return "", fmt.Errorf("%q: %w", rel, models.ErrInvalidPath)
	}
	return p, nil
}

func (n *FolderNode) Children(ctx context.Context) ([]Node, error) {
	entries, err := n.List(ctx, n.path)
	if err != nil {
		return nil, err
	}

	nodes := make([]Node, 0, len(entries))
	for _, e := range entries {
		p := path.Join(n.path, e.Name)
		if e.IsFolder {
			nodes = append(nodes, &FolderNode{
				sessionNode:  sessionNode{id: childID(n.id, e.Name), session: n.session},
				label:        e.Name,
				path:         p,
				contextValue: "folder",
			})
			continue
		}
		nodes = append(nodes, &leafNode{
			id:           childID(n.id, e.Name),
			label:        e.Name,
			description:  humanSize(e.Size),
			contextValue: "file",
		})
	}
	return nodes, nil
}

// List returns the entries of dir, a full file system path
func (n *FolderNode) List(ctx context.Context, dir string) ([]models.FileEntry, error) {
	api, err := n.session.Files()
	if err != nil {
		return nil, err
	}
	return api.List(ctx, dir)
}

// Read returns the content of a file given its full file system path
func (n *FolderNode) Read(ctx context.Context, file string) ([]byte, error) {
	api, err := n.session.Files()
	if err != nil {
		return nil, err
	}
	return api.Read(ctx, file)
}

func humanSize(size int64) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}
	div, exp := int64(unit), 0
	for n := size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(size)/float64(div), "KMGTPE"[exp])
}

// ==================== Logs ====================

// LogsNode browses the LogFiles folder and reads recent log entries
type LogsNode struct {
	FolderNode
}

func newLogsNode(parentID string, sc *session.Client) *LogsNode {
	return &LogsNode{FolderNode{
		sessionNode:  sessionNode{id: childID(parentID, models.ContextLogs), session: sc},
		label:        "Logs",
		path:         logsRoot,
		contextValue: models.ContextLogs,
	}}
}

// Recent returns up to limit recent application log entries
func (n *LogsNode) Recent(ctx context.Context, limit int) ([]models.LogEntry, error) {
	api, err := n.session.Logs()
	if err != nil {
		return nil, err
	}
	return api.Recent(ctx, limit)
}

// ==================== Leaf ====================

type leafNode struct {
	id           string
	label        string
	description  string
	contextValue string
}

func (l *leafNode) ID() string { return l.id }
func (l *leafNode) Label() string { return l.label }
func (l *leafNode) Description() string { return l.description }
func (l *leafNode) ContextValue() string { return l.contextValue }
func (l *leafNode) Children(ctx context.Context) ([]Node, error) { return nil, nil }
func (l *leafNode) HasMoreChildren() bool { return false }
func (l *leafNode) Refresh(ctx context.Context) error { return nil }
