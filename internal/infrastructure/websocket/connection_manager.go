package websocket

import (
	"errors"
	"sync"

	"auction-trust/internal/domain"
	"auction-trust/pkg/logger"
)

// AllUsers subscribes a connection to every user's moderation events.
const AllUsers = "*"

type Connection interface {
	Send(message interface{}) error
	Close() error
	ID() string
	UserID() string
}

type ConnectionManager struct {
	connections map[string]map[string]Connection // userID -> connID -> connection
	mutex       sync.RWMutex
	log         logger.Logger
}

func NewConnectionManager(log logger.Logger) *ConnectionManager {
	return &ConnectionManager{
		connections: make(map[string]map[string]Connection),
		log:         log,
	}
}

func (cm *ConnectionManager) RegisterConnection(conn Connection) {
	cm.mutex.Lock()
	defer cm.mutex.Unlock()

	if cm.connections[conn.UserID()] == nil {
		cm.connections[conn.UserID()] = make(map[string]Connection)
	}
	cm.connections[conn.UserID()][conn.ID()] = conn

	cm.log.Info("Connection registered", "user_id", conn.UserID(), "conn_id", conn.ID())
}

func (cm *ConnectionManager) UnregisterConnection(conn Connection) {
	cm.mutex.Lock()
	defer cm.mutex.Unlock()

	if userConns, exists := cm.connections[conn.UserID()]; exists {
		delete(userConns, conn.ID())
		if len(userConns) == 0 {
			delete(cm.connections, conn.UserID())
		}
	}

	cm.log.Info("Connection unregistered", "user_id", conn.UserID(), "conn_id", conn.ID())
}

func (cm *ConnectionManager) ConnectionCount() int {
	cm.mutex.RLock()
	defer cm.mutex.RUnlock()

	n := 0
	for _, userConns := range cm.connections {
		n += len(userConns)
	}
	return n
}

func (cm *ConnectionManager) connectionsFor(userID string) []Connection {
	cm.mutex.RLock()
	defer cm.mutex.RUnlock()

	var out []Connection
	for _, key := range []string{userID, AllUsers} {
		for _, conn := range cm.connections[key] {
			out = append(out, conn)
		}
	}
	return out
}

// HandleModerationEvent forwards an event to the user's own connections and to
// every AllUsers subscriber. It never blocks on a client: a connection whose send
// queue is full or that is already closed is dropped. It matches domain.EventHandler.
func (cm *ConnectionManager) HandleModerationEvent(event *domain.ModerationEvent) error {
	if event == nil {
		return nil
	}

	for _, conn := range cm.connectionsFor(event.UserID) {
		err := conn.Send(event)
		if err == nil {
			continue
		}
		cm.log.Warn("Failed to send moderation event", "user_id", conn.UserID(),
			"conn_id", conn.ID(), "event_id", event.ID, "error", err)
		if errors.Is(err, ErrSendBufferFull) || errors.Is(err, ErrConnectionClosed) {
			cm.drop(conn)
		}
	}
	return nil
}

func (cm *ConnectionManager) drop(conn Connection) {
	cm.UnregisterConnection(conn)
	if err := conn.Close(); err != nil {
		cm.log.Debug("Failed to close dropped connection", "conn_id", conn.ID(), "error", err)
	}
}

func (cm *ConnectionManager) CloseAll() {
	cm.mutex.Lock()
	defer cm.mutex.Unlock()

	for userID, userConns := range cm.connections {
		for _, conn := range userConns {
			if err := conn.Close(); err != nil {
				cm.log.Error("Failed to close connection", "user_id", userID, "error", err)
			}
		}
	}
	cm.connections = make(map[string]map[string]Connection)
}
