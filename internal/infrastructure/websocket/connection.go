package websocket

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	sendBufferSize = 64
)

var (
	ErrSendBufferFull   = errors.New("websocket send buffer full")
	ErrConnectionClosed = errors.New("websocket connection closed")
)

// WebSocketConnection wraps a gorilla connection. Send only queues the message; a
// single writer goroutine drains the queue with a write deadline, so a stalled
// client never blocks the caller.
type WebSocketConnection struct {
	conn      *websocket.Conn
	id        string
	userID    string
	send      chan interface{}
	done      chan struct{}
	closeOnce sync.Once
}

func NewWebSocketConnection(conn *websocket.Conn, userID string) *WebSocketConnection {
	wsc := &WebSocketConnection{
		conn:   conn,
		id:     uuid.NewString(),
		userID: userID,
		send:   make(chan interface{}, sendBufferSize),
		done:   make(chan struct{}),
	}
	go wsc.writePump()
	return wsc
}

// Send queues message for delivery. It fails with ErrSendBufferFull when the
// client is not keeping up.
func (wsc *WebSocketConnection) Send(message interface{}) error {
	select {
	case <-wsc.done:
		return ErrConnectionClosed
	default:
	}

	select {
	case wsc.send <- message:
		return nil
	default:
		return ErrSendBufferFull
	}
}

func (wsc *WebSocketConnection) writePump() {
	for {
		select {
		case <-wsc.done:
			return
		case message := <-wsc.send:
			wsc.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := wsc.conn.WriteJSON(message); err != nil {
				wsc.Close()
				return
			}
		}
	}
}

func (wsc *WebSocketConnection) ReadJSON(v interface{}) error {
	return wsc.conn.ReadJSON(v)
}

func (wsc *WebSocketConnection) Close() error {
	var err error
	wsc.closeOnce.Do(func() {
		close(wsc.done)
		err = wsc.conn.Close()
	})
	return err
}

func (wsc *WebSocketConnection) ID() string {
	return wsc.id
}

func (wsc *WebSocketConnection) UserID() string {
	return wsc.userID
}
