package service

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/wenwu/saas-platform/trialapp-service/internal/client"
	"github.com/wenwu/saas-platform/trialapp-service/internal/config"
	"github.com/wenwu/saas-platform/trialapp-service/internal/models"
	"github.com/wenwu/saas-platform/trialapp-service/internal/tree"
)

// maxParallelRefresh bounds concurrent metadata fetches in RefreshAll
const maxParallelRefresh = 8

// TrialService keeps one trial app node per user, in memory only
type TrialService struct {
	cfg  *config.Config
	deps tree.Deps

	mu       sync.RWMutex
	sessions map[string]*trialEntry

	now func() time.Time
}

type trialEntry struct {
	node     *tree.TrialAppNode
	lastUsed time.Time
}

// NewTrialService creates a new trial service
func NewTrialService(cfg *config.Config, fetcher client.MetadataFetcher, factory *client.SCMFactory) *TrialService {
	return NewTrialServiceWithDeps(cfg, tree.Deps{Fetcher: fetcher, Factory: factory})
}

// NewTrialServiceWithDeps creates a trial service with explicit collaborators
func NewTrialServiceWithDeps(cfg *config.Config, deps tree.Deps) *TrialService {
	return &TrialService{
		cfg:      cfg,
		deps:     deps,
		sessions: make(map[string]*trialEntry),
		now:      time.Now,
	}
}

// Attach creates the trial app node for token and makes it the user's
// session, replacing any previous one. A failed creation leaves the previous
// session in place.
func (s *TrialService) Attach(ctx context.Context, userID, token string) (*tree.TrialAppNode, error) {
	log.Printf("[TrialService] Attaching trial session for user=%s (session: %s)", userID, client.TokenFingerprint(token))

	node, err := tree.NewTrialAppNode(ctx, s.deps, token)
	if err != nil {
		return nil, fmt.Errorf("attach trial app: %w", err)
	}

	s.mu.Lock()
	s.sessions[userID] = &trialEntry{node: node, lastUsed: s.now()}
	s.mu.Unlock()

	return node, nil
}

// Get returns the user's trial app node
func (s *TrialService) Get(userID string) (*tree.TrialAppNode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.sessions[userID]
	if !ok {
		return nil, models.ErrSessionNotFound
	}
	entry.lastUsed = s.now()
	return entry.node, nil
}

// Detach forgets the user's trial session
func (s *TrialService) Detach(userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[userID]; !ok {
		return models.ErrSessionNotFound
	}
	delete(s.sessions, userID)
	log.Printf("[TrialService] Trial session detached for user=%s", userID)
	return nil
}

// Refresh refreshes the user's trial app node
func (s *TrialService) Refresh(ctx context.Context, userID string) (*tree.TrialAppNode, error) {
	node, err := s.Get(userID)
	if err != nil {
		return nil, err
	}
	if err := node.Refresh(ctx); err != nil {
		return node, err
	}
	return node, nil
}

// Count returns the number of attached sessions
func (s *TrialService) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// RefreshAll refreshes every session concurrently. Sessions idle past the
// TTL, or still expired after their refresh, are evicted. A failing refresh
// is logged and does not stop the others.
func (s *TrialService) RefreshAll(ctx context.Context) {
	idleCutoff := s.now().Add(-s.cfg.Trial.SessionIdleTTL)

	s.mu.Lock()
	nodes := make(map[string]*tree.TrialAppNode, len(s.sessions))
	for userID, entry := range s.sessions {
		if s.cfg.Trial.SessionIdleTTL > 0 && entry.lastUsed.Before(idleCutoff) {
			log.Printf("[TrialService] Evicting idle trial session for user=%s", userID)
			delete(s.sessions, userID)
			continue
		}
		nodes[userID] = entry.node
	}
	s.mu.Unlock()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelRefresh)

	var expiredMu sync.Mutex
	var expired []string

	for userID, node := range nodes {
		g.Go(func() error {
			if err := node.Refresh(gctx); err != nil {
				log.Printf("[TrialService] Refresh failed for user=%s: %v", userID, err)
				return nil
			}
			if node.State() == models.StateExpired {
				expiredMu.Lock()
				expired = append(expired, userID)
				expiredMu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	if len(expired) == 0 {
		return
	}

	s.mu.Lock()
	for _, userID := range expired {
		// the user may have attached a new session meanwhile
		if entry, ok := s.sessions[userID]; ok && entry.node == nodes[userID] {
			log.Printf("[TrialService] Evicting expired trial app %s for user=%s", entry.node.Label(), userID)
			delete(s.sessions, userID)
		}
	}
	s.mu.Unlock()
}

// Run refreshes all sessions every interval until ctx is done.
func (s *TrialService) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		log.Printf("[TrialService] Background refresh disabled")
		return
	}

	log.Printf("[TrialService] Background refresh every %v", interval)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.RefreshAll(ctx)
		}
	}
}
