package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wenwu/saas-platform/trialapp-service/internal/config"
	"github.com/wenwu/saas-platform/trialapp-service/internal/mocks"
	"github.com/wenwu/saas-platform/trialapp-service/internal/models"
	"github.com/wenwu/saas-platform/trialapp-service/internal/tree"
)

func newTestService(t *testing.T, fetcher *mocks.MockFetcher) *TrialService {
	t.Helper()
	cfg := &config.Config{}
	cfg.Trial.SessionIdleTTL = time.Hour
	return NewTrialServiceWithDeps(cfg, tree.Deps{Fetcher: fetcher, Factory: mocks.NewMockFactory()})
}

func TestTrialService_AttachGetDetach(t *testing.T) {
	fetcher := &mocks.MockFetcher{Metadata: mocks.Metadata("demo", 900)}
	s := newTestService(t, fetcher)

	_, err := s.Get("u1")
	assert.ErrorIs(t, err, models.ErrSessionNotFound)

	node, err := s.Attach(context.Background(), "u1", "tok")
	require.NoError(t, err)
	assert.Equal(t, "demo", node.Label())

	got, err := s.Get("u1")
	require.NoError(t, err)
	assert.Same(t, node, got)
	assert.Equal(t, 1, s.Count())

	require.NoError(t, s.Detach("u1"))
	assert.ErrorIs(t, s.Detach("u1"), models.ErrSessionNotFound)
	assert.Equal(t, 0, s.Count())
}

func TestTrialService_AttachFailureKeepsPrevious(t *testing.T) {
	fetcher := &mocks.MockFetcher{Metadata: mocks.Metadata("demo", 900)}
	s := newTestService(t, fetcher)

	first, err := s.Attach(context.Background(), "u1", "tok")
	require.NoError(t, err)

	fetcher.Set(mocks.Metadata("", 900), nil)
	_, err = s.Attach(context.Background(), "u1", "tok-2")
	assert.ErrorIs(t, err, models.ErrProvisioningIncomplete)

	got, err := s.Get("u1")
	require.NoError(t, err)
	assert.Same(t, first, got)
}

func TestTrialService_Refresh(t *testing.T) {
	fetcher := &mocks.MockFetcher{Metadata: mocks.Metadata("demo", 900)}
	s := newTestService(t, fetcher)

	_, err := s.Refresh(context.Background(), "nobody")
	assert.ErrorIs(t, err, models.ErrSessionNotFound)

	_, err = s.Attach(context.Background(), "u1", "tok")
	require.NoError(t, err)

	fetcher.Set(mocks.Metadata("demo", 120), nil)
	node, err := s.Refresh(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "2 min. remaining", node.Description())

	fetcher.Set(nil, models.ErrTransport)
	node, err = s.Refresh(context.Background(), "u1")
	assert.ErrorIs(t, err, models.ErrTransport)
	require.NotNil(t, node)
	assert.Equal(t, "2 min. remaining", node.Description())
}

func TestTrialService_RefreshAll(t *testing.T) {
	var mu sync.Mutex
	timeLeft := map[string]float64{"tok-a": 900, "tok-b": 900, "tok-c": 900}
	fetcher := &mocks.MockFetcher{FetchFunc: func(ctx context.Context, token string) (*models.TrialMetadata, error) {
		mu.Lock()
		defer mu.Unlock()
		if token == "tok-c" && timeLeft[token] < 900 {
			return nil, models.ErrTransport
		}
		return mocks.Metadata("site-"+token, timeLeft[token]), nil
	}}
	s := newTestService(t, fetcher)

	for user, token := range map[string]string{"a": "tok-a", "b": "tok-b", "c": "tok-c"} {
		_, err := s.Attach(context.Background(), user, token)
		require.NoError(t, err)
	}

	mu.Lock()
	timeLeft["tok-a"] = 0
	timeLeft["tok-b"] = 300
	timeLeft["tok-c"] = 100
	mu.Unlock()

	s.RefreshAll(context.Background())

	_, err := s.Get("a")
	assert.ErrorIs(t, err, models.ErrSessionNotFound, "expired sessions are evicted")

	b, err := s.Get("b")
	require.NoError(t, err)
	assert.Equal(t, "5 min. remaining", b.Description())

	c, err := s.Get("c")
	require.NoError(t, err, "a failed refresh keeps the session")
	assert.Equal(t, "15 min. remaining", c.Description())
	assert.ErrorIs(t, c.LastRefreshError(), models.ErrTransport)
}

func TestTrialService_RefreshAllEvictsIdle(t *testing.T) {
	fetcher := &mocks.MockFetcher{Metadata: mocks.Metadata("demo", 900)}
	s := newTestService(t, fetcher)

	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	_, err := s.Attach(context.Background(), "idle", "tok")
	require.NoError(t, err)

	now = now.Add(30 * time.Minute)
	_, err = s.Attach(context.Background(), "busy", "tok")
	require.NoError(t, err)

	now = now.Add(45 * time.Minute)
	s.RefreshAll(context.Background())

	_, err = s.Get("idle")
	assert.ErrorIs(t, err, models.ErrSessionNotFound)
	_, err = s.Get("busy")
	assert.NoError(t, err)
}

func TestTrialService_Run(t *testing.T) {
	fetcher := &mocks.MockFetcher{Metadata: mocks.Metadata("demo", 900)}
	s := newTestService(t, fetcher)
	_, err := s.Attach(context.Background(), "u1", "tok")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx, 5*time.Millisecond)
		close(done)
	}()

	assert.Eventually(t, func() bool { return fetcher.Calls() >= 3 }, time.Second, 5*time.Millisecond)
	cancel()
	<-done

	// a non-positive interval returns immediately
	s.Run(context.Background(), 0)
}
