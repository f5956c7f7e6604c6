package discord

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// MessageSink receives every MESSAGE_CREATE dispatch. Implementations must
// not block; the read loop delivers and moves on.
type MessageSink interface {
	Submit(msg Message)
}

// Manager owns the single gateway connection, its read loop, and the
// reconnect policy (resume first, full reconnect second, long cooldown when
// Discord closes with the rate-limit code).
type Manager struct {
	token  string
	sink   MessageSink
	logger *slog.Logger

	mutex   sync.RWMutex
	conn    *GatewayConnection
	stopped bool
}

func NewManager(token string, sink MessageSink, logger *slog.Logger) *Manager {
	return &Manager{
		token:  token,
		sink:   sink,
		logger: logger,
	}
}

// Start connects and launches the read loop. Returns an error only when the
// initial connection fails; later failures reconnect in the background.
func (m *Manager) Start(ctx context.Context) error {
	conn := NewGatewayConnection(m.token, m.logger)
	if err := conn.Connect(ctx); err != nil {
		return err
	}

	m.mutex.Lock()
	m.conn = conn
	m.mutex.Unlock()

	go conn.StartHeartbeat()
	go m.handleConnection(conn)

	return nil
}

// BotUserID returns the connected bot's own user id, empty before READY.
func (m *Manager) BotUserID() string {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	if m.conn == nil {
		return ""
	}
	return m.conn.BotUserID
}

func (m *Manager) Stop() {
	m.mutex.Lock()
	m.stopped = true
	conn := m.conn
	m.mutex.Unlock()

	if conn != nil {
		_ = conn.Close()
	}
}

func (m *Manager) isStopped() bool {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return m.stopped
}

func (m *Manager) handleConnection(conn *GatewayConnection) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("panic_in_handle_connection", "panic", r)
		}
		conn.Close()
	}()

	maxReconnectAttempts := 5
	reconnectAttempts := 0
	baseBackoff := 5 * time.Second

	for {
		if m.isStopped() {
			return
		}

		if !conn.Connected {
			if reconnectAttempts >= maxReconnectAttempts {
				m.logger.Error("max_reconnect_attempts_reached")
				return
			}

			reconnectAttempts++
			m.logger.Info("attempting_reconnect", "attempt", reconnectAttempts)

			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			err := conn.Resume(ctx)
			cancel()

			if err != nil {
				m.logger.Warn("resume_failed", "error", err)

				ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
				err = conn.Connect(ctx)
				cancel()

				if err != nil {
					m.logger.Warn("reconnect_failed", "error", err)
					time.Sleep(baseBackoff)
					continue
				}
			}

			go conn.StartHeartbeat()
			reconnectAttempts = 0
		}

		var msg GatewayMessage
		conn.mutex.RLock()
		wsConn := conn.Conn
		conn.mutex.RUnlock()

		if wsConn == nil {
			return
		}

		if err := wsConn.ReadJSON(&msg); err != nil {
			if m.isStopped() {
				return
			}

			m.logger.Warn("read_message_failed", "error", err)

			// Close the current connection to stop the heartbeat before
			// attempting resume/reconnect.
			_ = conn.Close()

			if ce, ok := err.(*websocket.CloseError); ok {
				// 4008 = rate limited (Discord gateway close code)
				if ce.Code == 4008 {
					m.logger.Warn("gateway_rate_limited", "close_text", ce.Text)
					time.Sleep(2 * time.Minute)
					continue
				}
			}

			time.Sleep(baseBackoff)
			continue
		}

		if msg.S > 0 {
			conn.mutex.Lock()
			conn.LastSequence = msg.S
			conn.mutex.Unlock()
		}

		switch msg.Op {
		case 0: // DISPATCH
			m.handleDispatch(conn, msg)
		case 1: // HEARTBEAT
			conn.sendHeartbeat()
		case 7: // RECONNECT
			m.logger.Info("reconnect_requested")
			conn.mutex.Lock()
			conn.Connected = false
			conn.mutex.Unlock()
		case 9: // INVALID_SESSION
			m.logger.Warn("invalid_session")
			conn.mutex.Lock()
			conn.Connected = false
			conn.SessionID = "" // force full reconnect
			conn.mutex.Unlock()
		case 10: // HELLO
			// Already handled in Connect
		case 11: // HEARTBEAT_ACK
			m.logger.Debug("heartbeat_ack_received")
		default:
			m.logger.Debug("unknown_opcode", "opcode", msg.Op)
		}
	}
}

func (m *Manager) handleDispatch(conn *GatewayConnection, msg GatewayMessage) {
	if msg.T != "MESSAGE_CREATE" || m.sink == nil {
		return
	}

	var message Message
	if err := json.Unmarshal(msg.D, &message); err != nil {
		m.logger.Warn("failed_to_parse_message_create", "error", err)
		return
	}

	m.sink.Submit(message)
}
