package live

import (
	"sync"

	"go.uber.org/zap"
)

// Hub creates and tracks one Session, backed by its own connection
// Manager, per conversation. No other component opens channels or
// schedules reconnects for a session.
type Hub struct {
	liveCfg ManagerConfig
	sessCfg SessionConfig
	dial    DialFunc
	logger  *zap.Logger

	mu       sync.Mutex
	sessions map[string]*Session
	managers map[string]*Manager
}

// NewHub creates a session Hub.
func NewHub(liveCfg ManagerConfig, sessCfg SessionConfig, dial DialFunc, logger *zap.Logger) *Hub {
	return &Hub{
		liveCfg:  liveCfg,
		sessCfg:  sessCfg,
		dial:     dial,
		logger:   logger,
		sessions: make(map[string]*Session),
		managers: make(map[string]*Manager),
	}
}

// Session returns the session between localID and remoteID, creating and
// starting it on first use.
func (h *Hub) Session(localID, remoteID string) *Session {
	key := localID + "|" + remoteID

	h.mu.Lock()
	defer h.mu.Unlock()

	if s, ok := h.sessions[key]; ok {
		return s
	}

	manager := NewManager(h.liveCfg, h.dial, h.logger.With(
		zap.String("local_id", localID),
		zap.String("remote_id", remoteID),
	))
	session := NewSession(localID, remoteID, manager, h.sessCfg, h.logger)
	manager.Start()

	h.managers[key] = manager
	h.sessions[key] = session

	h.logger.Info("session created",
		zap.String("session_id", session.ID),
		zap.String("local_id", localID),
		zap.String("remote_id", remoteID),
	)

	return session
}

// States reports the connection state of every active session, keyed by
// session ID.
func (h *Hub) States() map[string]string {
	h.mu.Lock()
	defer h.mu.Unlock()

	states := make(map[string]string, len(h.sessions))
	for key, s := range h.sessions {
		states[s.ID] = h.managers[key].State().String()
	}
	return states
}

// TeardownAll closes every session and tears down its channel. Used
// during graceful shutdown; safe to call multiple times.
func (h *Hub) TeardownAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for key, s := range h.sessions {
		s.Close()
		h.managers[key].Teardown()
	}
}
