package tree

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/wenwu/saas-platform/trialapp-service/internal/client"
	"github.com/wenwu/saas-platform/trialapp-service/internal/models"
	"github.com/wenwu/saas-platform/trialapp-service/internal/session"
)

// Deps are the collaborators a trial app node needs
type Deps struct {
	Fetcher client.MetadataFetcher
	Factory session.CapabilityFactory
	Opener  URLOpener
}

// TrialAppNode is the root node of one trial session. It exclusively owns
// the current session client; its children hold non-owning references to
// that same client and are rebuilt whenever the client is replaced.
type TrialAppNode struct {
	deps Deps

	mu          sync.RWMutex
	client      *session.Client
	children    []Node
	refreshedAt time.Time
	lastErr     error

	refreshGroup singleflight.Group
}

// NewTrialAppNode creates the node for the session identified by token.
// A session that is not provisioned yet fails with ErrProvisioningIncomplete.
func NewTrialAppNode(ctx context.Context, deps Deps, token string) (*TrialAppNode, error) {
	sc, err := session.New(ctx, deps.Fetcher, deps.Factory, token)
	if err != nil {
		return nil, provisioningError(err)
	}

	n := &TrialAppNode{deps: deps}
	n.install(sc)

	log.Printf("[TrialApp] Session attached: site=%s (session: %s)", sc.SiteName(), client.TokenFingerprint(token))
	return n, nil
}

func provisioningError(err error) error {
	if errors.Is(err, models.ErrMetadataUnavailable) {
		return fmt.Errorf("%w: %w", models.ErrProvisioningIncomplete, err)
	}
	return err
}

// install swaps in a new session client together with children built from it
func (n *TrialAppNode) install(sc *session.Client) {
	id := nodeID(sc)
	children := []Node{
		newSettingsNode(id, sc),
		newDeploymentsNode(id, sc),
		newFilesNode(id, sc),
		newLogsNode(id, sc),
	}

	n.mu.Lock()
	n.client = sc
	n.children = children
	n.refreshedAt = time.Now()
	n.lastErr = nil
	n.mu.Unlock()
}

// Session returns the current session client
func (n *TrialAppNode) Session() *session.Client {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.client
}

// Metadata returns the current metadata snapshot
func (n *TrialAppNode) Metadata() models.TrialMetadata {
	sc := n.Session()
	if sc == nil {
		return models.TrialMetadata{}
	}
	return sc.Metadata()
}

func (n *TrialAppNode) ID() string {
	sc := n.Session()
	if sc == nil {
		return ""
	}
	return nodeID(sc)
}

func nodeID(sc *session.Client) string {
	if sc.ID() != "" {
		return sc.ID()
	}
	return sc.FullName()
}

// Label is the site name
func (n *TrialAppNode) Label() string {
	sc := n.Session()
	if sc == nil {
		return ""
	}
	return sc.SiteName()
}

// Description is the remaining time as of the last fetch
func (n *TrialAppNode) Description() string {
	sc := n.Session()
	if sc == nil {
		return ""
	}
	return describeTimeLeft(sc.Metadata())
}

func describeTimeLeft(meta models.TrialMetadata) string {
	if meta.Expired() {
		return "Expired"
	}
	return fmt.Sprintf("%d min. remaining", meta.MinutesLeft())
}

func (n *TrialAppNode) ContextValue() string {
	return models.ContextTrialApp
}

// State is derived from the metadata; nothing is blocked once expired.
func (n *TrialAppNode) State() string {
	sc := n.Session()
	switch {
	case sc == nil:
		return models.StateUninitialized
	case sc.Metadata().Expired():
		return models.StateExpired
	default:
		return models.StateActive
	}
}

// Children returns settings, deployments, files and logs, in that order
func (n *TrialAppNode) Children(ctx context.Context) ([]Node, error) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return append([]Node(nil), n.children...), nil
}

func (n *TrialAppNode) HasMoreChildren() bool {
	return false
}

// Refresh fetches the metadata again and replaces the session client and
// every child. Concurrent calls share one fetch. On failure the previous
// client and children stay in place and the error is kept for display.
func (n *TrialAppNode) Refresh(ctx context.Context) error {
	_, err, shared := n.refreshGroup.Do("refresh", func() (interface{}, error) {
		return nil, n.refresh(ctx)
	})
	if shared {
		log.Printf("[TrialApp] Refresh coalesced for site %s", n.Label())
	}
	return err
}

func (n *TrialAppNode) refresh(ctx context.Context) error {
	current := n.Session()
	if current == nil {
		return fmt.Errorf("refresh: %w", models.ErrSessionNotFound)
	}

	meta, err := n.deps.Fetcher.Fetch(ctx, current.SessionToken())
	if err == nil {
		var sc *session.Client
		sc, err = session.FromMetadata(meta, n.deps.Factory)
		if err == nil {
			n.install(sc)
			log.Printf("[TrialApp] Refreshed site %s: %s", sc.SiteName(), n.Description())
			return nil
		}
		err = provisioningError(err)
	}

	n.mu.Lock()
	n.lastErr = err
	n.mu.Unlock()

	log.Printf("[TrialApp] Refresh failed for site %s, keeping last known state: %v", current.SiteName(), err)
	return fmt.Errorf("refresh trial app: %w", err)
}

// LastRefreshError is the error of the latest refresh, nil if it succeeded
func (n *TrialAppNode) LastRefreshError() error {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.lastErr
}

// RefreshedAt is when the current session client was installed
func (n *TrialAppNode) RefreshedAt() time.Time {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.refreshedAt
}

// Browse opens the public URL of the app with the configured opener
func (n *TrialAppNode) Browse(ctx context.Context) error {
	return n.BrowseWith(ctx, n.deps.Opener)
}

// BrowseWith opens the public URL of the app with opener
func (n *TrialAppNode) BrowseWith(ctx context.Context, opener URLOpener) error {
	sc := n.Session()
	if sc == nil {
		return models.ErrSessionNotFound
	}
	if opener == nil {
		return fmt.Errorf("browse %s: no URL opener configured", sc.DefaultHostURL())
	}
	return opener.Open(ctx, sc.DefaultHostURL())
}

// SettingsNode returns the current settings child
func (n *TrialAppNode) SettingsNode() *SettingsNode {
	return childOf[*SettingsNode](n)
}

// DeploymentsNode returns the current deployments child
func (n *TrialAppNode) DeploymentsNode() *DeploymentsNode {
	return childOf[*DeploymentsNode](n)
}

// FilesNode returns the current files child
func (n *TrialAppNode) FilesNode() *FilesNode {
	return childOf[*FilesNode](n)
}

// LogsNode returns the current logs child
func (n *TrialAppNode) LogsNode() *LogsNode {
	return childOf[*LogsNode](n)
}

func childOf[T Node](n *TrialAppNode) T {
	n.mu.RLock()
	defer n.mu.RUnlock()
	var zero T
	for _, c := range n.children {
		if t, ok := c.(T); ok {
			return t
		}
	}
	return zero
}
