// Package streaming maintains per-topic sets of live connections,
// broadcasts typed research updates to them, and sends periodic
// heartbeats so clients can detect silent connection death.
package streaming

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/studypilot/researchflow/types"
)

// Sink is one observer connection. Each sink is written to only by the
// manager's broadcast path; implementations serialize their own writes.
type Sink interface {
	Send(ctx context.Context, update types.StreamingResearchUpdate) error
	Close() error
}

// Config configures the streaming manager.
type Config struct {
	// HeartbeatInterval paces keep-alive frames, independent of pipeline
	// activity.
	HeartbeatInterval time.Duration `json:"heartbeat_interval" yaml:"heartbeat_interval"`

	// SendTimeout bounds one sink write.
	SendTimeout time.Duration `json:"send_timeout" yaml:"send_timeout"`
}

// DefaultConfig returns the default streaming settings.
func DefaultConfig() Config {
	return Config{
		HeartbeatInterval: 30 * time.Second,
		SendTimeout:       5 * time.Second,
	}
}

type connection struct {
	id      string
	topicID string
	sink    Sink
}

// Manager is the connection registry and broadcast fan-out. It is
// explicitly constructed; Close stops the heartbeat loop and closes
// every registered sink.
type Manager struct {
	cfg    Config
	logger *zap.Logger

	mu     sync.RWMutex
	topics map[string]map[string]*connection // topicID -> connID -> conn
	conns  map[string]*connection

	done      chan struct{}
	closeOnce sync.Once
}

// NewManager creates a streaming manager and starts its heartbeat loop.
func NewManager(cfg Config, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = 30 * time.Second
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 5 * time.Second
	}
	m := &Manager{
		cfg:    cfg,
		logger: logger.With(zap.String("component", "streaming_manager")),
		topics: make(map[string]map[string]*connection),
		conns:  make(map[string]*connection),
		done:   make(chan struct{}),
	}
	go m.heartbeatLoop()
	return m
}

// AddConnection registers a sink for a topic and immediately emits a
// synthetic status event confirming the connection.
func (m *Manager) AddConnection(topicID, connID string, sink Sink) {
	conn := &connection{id: connID, topicID: topicID, sink: sink}

	m.mu.Lock()
	if _, ok := m.topics[topicID]; !ok {
		m.topics[topicID] = make(map[string]*connection)
	}
	m.topics[topicID][connID] = conn
	m.conns[connID] = conn
	m.mu.Unlock()

	m.logger.Debug("connection added",
		zap.String("topic_id", topicID),
		zap.String("conn_id", connID),
	)

	m.send(conn, types.NewStatusUpdate(topicID, &types.ResearchStatus{
		TopicID: topicID,
		Status:  types.NodeQueued,
	}))
}

// RemoveConnection unregisters and closes one connection. Removing an
// unknown connection is a no-op.
func (m *Manager) RemoveConnection(connID string) {
	m.mu.Lock()
	conn, ok := m.conns[connID]
	if ok {
		delete(m.conns, connID)
		if set, ok := m.topics[conn.topicID]; ok {
			delete(set, connID)
			if len(set) == 0 {
				delete(m.topics, conn.topicID)
			}
		}
	}
	m.mu.Unlock()

	if ok {
		_ = conn.sink.Close()
		m.logger.Debug("connection removed", zap.String("conn_id", connID))
	}
}

// Broadcast fans an update out to every connection registered for the
// topic. A write failure removes only the failing connection, never the
// whole topic's fan-out list.
func (m *Manager) Broadcast(topicID string, update types.StreamingResearchUpdate) {
	m.mu.RLock()
	set := m.topics[topicID]
	targets := make([]*connection, 0, len(set))
	for _, conn := range set {
		targets = append(targets, conn)
	}
	m.mu.RUnlock()

	for _, conn := range targets {
		m.send(conn, update)
	}
}

// ConnectionCount reports the number of live connections for a topic.
func (m *Manager) ConnectionCount(topicID string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.topics[topicID])
}

// send delivers one update, dropping the connection on failure.
func (m *Manager) send(conn *connection, update types.StreamingResearchUpdate) {
	ctx, cancel := context.WithTimeout(context.Background(), m.cfg.SendTimeout)
	defer cancel()

	if err := conn.sink.Send(ctx, update); err != nil {
		m.logger.Warn("sink write failed, dropping connection",
			zap.String("conn_id", conn.id),
			zap.String("topic_id", conn.topicID),
			zap.Error(err),
		)
		m.RemoveConnection(conn.id)
	}
}

// heartbeatLoop sends keep-alive frames to every connection.
func (m *Manager) heartbeatLoop() {
	ticker := time.NewTicker(m.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			m.mu.RLock()
			targets := make([]*connection, 0, len(m.conns))
			for _, conn := range m.conns {
				targets = append(targets, conn)
			}
			m.mu.RUnlock()

			for _, conn := range targets {
				m.send(conn, types.NewHeartbeat(conn.topicID))
			}
		}
	}
}

// Close stops the heartbeat loop and closes all connections.
func (m *Manager) Close() error {
	m.closeOnce.Do(func() {
		close(m.done)

		m.mu.Lock()
		conns := make([]*connection, 0, len(m.conns))
		for _, conn := range m.conns {
			conns = append(conns, conn)
		}
		m.topics = make(map[string]map[string]*connection)
		m.conns = make(map[string]*connection)
		m.mu.Unlock()

		for _, conn := range conns {
			_ = conn.sink.Close()
		}
	})
	return nil
}
