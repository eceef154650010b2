package streaming

import (
	"context"
	"fmt"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studypilot/researchflow/types"
)

// recordingSink captures every update delivered to it.
type recordingSink struct {
	mu      sync.Mutex
	updates []types.StreamingResearchUpdate
	failNow bool
	closed  bool
}

func (r *recordingSink) Send(ctx context.Context, update types.StreamingResearchUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failNow {
		return fmt.Errorf("sink broken")
	}
	r.updates = append(r.updates, update)
	return nil
}

func (r *recordingSink) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

func (r *recordingSink) recorded() []types.StreamingResearchUpdate {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]types.StreamingResearchUpdate, len(r.updates))
	copy(out, r.updates)
	return out
}

func (r *recordingSink) isClosed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	cfg := DefaultConfig()
	cfg.HeartbeatInterval = time.Hour // keep heartbeats out of assertions
	m := NewManager(cfg, nil)
	t.Cleanup(func() { _ = m.Close() })
	return m
}

func TestManager_AddConnectionEmitsStatus(t *testing.T) {
	m := newTestManager(t)
	sink := &recordingSink{}

	m.AddConnection("topic-1", "conn-1", sink)

	got := sink.recorded()
	require.Len(t, got, 1)
	assert.Equal(t, types.UpdateStatus, got[0].Type)
	assert.Equal(t, "topic-1", got[0].TopicID)
	require.NotNil(t, got[0].Status)
	assert.Equal(t, types.NodeQueued, got[0].Status.Status)
}

func TestManager_BroadcastReachesAllTopicConnections(t *testing.T) {
	m := newTestManager(t)
	a := &recordingSink{}
	b := &recordingSink{}
	other := &recordingSink{}

	m.AddConnection("topic-1", "conn-a", a)
	m.AddConnection("topic-1", "conn-b", b)
	m.AddConnection("topic-2", "conn-c", other)

	m.Broadcast("topic-1", types.NewProgressUpdate("topic-1", &types.ProgressPayload{Percent: 40}))

	for _, sink := range []*recordingSink{a, b} {
		got := sink.recorded()
		require.Len(t, got, 2)
		assert.Equal(t, types.UpdateProgress, got[1].Type)
		require.NotNil(t, got[1].Progress)
		assert.Equal(t, 40, got[1].Progress.Percent)
	}

	// Only the synthetic status event, no progress leakage.
	require.Len(t, other.recorded(), 1)
}

func TestManager_FailingSinkIsDroppedOthersSurvive(t *testing.T) {
	m := newTestManager(t)
	good := &recordingSink{}
	bad := &recordingSink{}

	m.AddConnection("topic-1", "conn-good", good)
	m.AddConnection("topic-1", "conn-bad", bad)
	bad.mu.Lock()
	bad.failNow = true
	bad.mu.Unlock()

	m.Broadcast("topic-1", types.NewHeartbeat("topic-1"))

	assert.Equal(t, 1, m.ConnectionCount("topic-1"))
	assert.True(t, bad.isClosed())

	m.Broadcast("topic-1", types.NewHeartbeat("topic-1"))
	assert.Len(t, good.recorded(), 3)
}

func TestManager_RemoveUnknownConnectionIsNoOp(t *testing.T) {
	m := newTestManager(t)
	assert.NotPanics(t, func() { m.RemoveConnection("never-registered") })
}

func TestManager_RemoveConnectionClosesSink(t *testing.T) {
	m := newTestManager(t)
	sink := &recordingSink{}

	m.AddConnection("topic-1", "conn-1", sink)
	m.RemoveConnection("conn-1")

	assert.True(t, sink.isClosed())
	assert.Equal(t, 0, m.ConnectionCount("topic-1"))
}

func TestManager_HeartbeatDelivered(t *testing.T) {
	cfg := DefaultConfig()
	cfg.HeartbeatInterval = 10 * time.Millisecond
	m := NewManager(cfg, nil)
	defer func() { _ = m.Close() }()

	sink := &recordingSink{}
	m.AddConnection("topic-1", "conn-1", sink)

	require.Eventually(t, func() bool {
		for _, u := range sink.recorded() {
			if u.Type == types.UpdateHeartbeat {
				return true
			}
		}
		return false
	}, time.Second, 5*time.Millisecond)
}

func TestManager_CloseClosesAllSinks(t *testing.T) {
	cfg := DefaultConfig()
	cfg.HeartbeatInterval = time.Hour
	m := NewManager(cfg, nil)

	a := &recordingSink{}
	b := &recordingSink{}
	m.AddConnection("topic-1", "conn-a", a)
	m.AddConnection("topic-2", "conn-b", b)

	require.NoError(t, m.Close())
	assert.True(t, a.isClosed())
	assert.True(t, b.isClosed())
	assert.Equal(t, 0, m.ConnectionCount("topic-1"))
}

func TestSSESink_WritesEventFrames(t *testing.T) {
	rec := httptest.NewRecorder()
	sink, err := NewSSESink(rec)
	require.NoError(t, err)

	update := types.NewProgressUpdate("topic-1", &types.ProgressPayload{Percent: 80})
	require.NoError(t, sink.Send(context.Background(), update))

	body := rec.Body.String()
	assert.Contains(t, body, "event: progress\n")
	assert.Contains(t, body, `"topic_id":"topic-1"`)
	assert.True(t, strings.HasSuffix(body, "\n\n"))
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
}

func TestSSESink_SendAfterCloseFails(t *testing.T) {
	rec := httptest.NewRecorder()
	sink, err := NewSSESink(rec)
	require.NoError(t, err)

	require.NoError(t, sink.Close())
	err = sink.Send(context.Background(), types.NewHeartbeat("topic-1"))
	assert.Error(t, err)
}
