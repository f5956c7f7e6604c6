package discord

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"dexwatch/internal/logging"
)

const (
	gatewayURL = "wss://gateway.discord.gg/?v=10&encoding=json"

	// GUILD_MESSAGES | MESSAGE_CONTENT. The content intent must also be
	// enabled on the application in the developer portal.
	gatewayIntents = 1<<9 | 1<<15
)

type GatewayConnection struct {
	Token             string
	BotUserID         string
	Conn              *websocket.Conn
	SessionID         string
	ResumeGatewayURL  string
	LastSequence      int64
	HeartbeatInterval time.Duration
	Connected         bool
	heartbeatTicker   *time.Ticker
	stopChan          chan bool
	mutex             sync.RWMutex
	logger            *slog.Logger
}

type GatewayMessage struct {
	Op int             `json:"op"`
	D  json.RawMessage `json:"d,omitempty"`
	T  string          `json:"t,omitempty"`
	S  int64           `json:"s,omitempty"`
}

type HelloData struct {
	HeartbeatInterval int64 `json:"heartbeat_interval"`
}

// ReadyData is the subset of the READY payload a bot session needs to
// resume later and to recognize its own messages.
type ReadyData struct {
	SessionID        string `json:"session_id"`
	ResumeGatewayURL string `json:"resume_gateway_url"`
	User             struct {
		ID       string `json:"id"`
		Username string `json:"username"`
		Bot      bool   `json:"bot"`
	} `json:"user"`
}

// MessageAuthor is the author block of a MESSAGE_CREATE dispatch.
type MessageAuthor struct {
	ID         string `json:"id"`
	Username   string `json:"username"`
	GlobalName string `json:"global_name"`
	Bot        bool   `json:"bot"`
}

// Message is an inbound chat message as delivered by the gateway.
type Message struct {
	ID        string        `json:"id"`
	ChannelID string        `json:"channel_id"`
	GuildID   string        `json:"guild_id"`
	Author    MessageAuthor `json:"author"`
	Content   string        `json:"content"`
}

// DisplayName prefers the global name over the login username.
func (m Message) DisplayName() string {
	if m.Author.GlobalName != "" {
		return m.Author.GlobalName
	}
	return m.Author.Username
}

func NewGatewayConnection(token string, logger *slog.Logger) *GatewayConnection {
	return &GatewayConnection{
		Token:    token,
		logger:   logger,
		stopChan: make(chan bool, 1),
	}
}

func (gc *GatewayConnection) Connect(ctx context.Context) error {
	dialer := websocket.Dialer{
		HandshakeTimeout: 30 * time.Second,
	}

	conn, _, err := dialer.DialContext(ctx, gatewayURL, http.Header{})
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}

	gc.mutex.Lock()
	gc.Conn = conn
	gc.mutex.Unlock()

	// Read HELLO
	var helloMsg GatewayMessage
	if err := conn.ReadJSON(&helloMsg); err != nil {
		return fmt.Errorf("failed to read HELLO: %w", err)
	}
	if helloMsg.Op != 10 {
		return fmt.Errorf("expected HELLO opcode, got %d", helloMsg.Op)
	}

	var helloData HelloData
	if err := json.Unmarshal(helloMsg.D, &helloData); err != nil {
		return fmt.Errorf("failed to parse HELLO data: %w", err)
	}
	gc.HeartbeatInterval = time.Duration(helloData.HeartbeatInterval) * time.Millisecond

	identifyPayload := map[string]interface{}{
		"op": 2,
		"d": map[string]interface{}{
			"token":   "Bot " + gc.Token,
			"intents": gatewayIntents,
			"properties": map[string]interface{}{
				"os":      "linux",
				"browser": "dexwatch",
				"device":  "dexwatch",
			},
			"presence": map[string]interface{}{
				"status":     "online",
				"since":      0,
				"activities": []interface{}{},
				"afk":        false,
			},
			"compress": false,
		},
	}
	if err := conn.WriteJSON(identifyPayload); err != nil {
		return fmt.Errorf("failed to send IDENTIFY: %w", err)
	}

	// Read READY
	var readyMsg GatewayMessage
	if err := conn.ReadJSON(&readyMsg); err != nil {
		return fmt.Errorf("failed to read READY: %w", err)
	}
	if readyMsg.Op != 0 || readyMsg.T != "READY" {
		return fmt.Errorf("expected READY event, got op=%d t=%s", readyMsg.Op, readyMsg.T)
	}

	var readyData ReadyData
	if err := json.Unmarshal(readyMsg.D, &readyData); err != nil {
		return fmt.Errorf("failed to parse READY data: %w", err)
	}

	gc.mutex.Lock()
	gc.SessionID = readyData.SessionID
	gc.ResumeGatewayURL = readyData.ResumeGatewayURL
	gc.BotUserID = readyData.User.ID
	gc.Connected = true
	gc.mutex.Unlock()

	gc.logger.Info("gateway_connected",
		"token", logging.MaskSecret(gc.Token),
		"session_id", gc.SessionID,
		"bot_user_id", gc.BotUserID,
		"bot_username", readyData.User.Username,
	)

	return nil
}

func (gc *GatewayConnection) StartHeartbeat() {
	if gc.HeartbeatInterval == 0 {
		return
	}

	gc.heartbeatTicker = time.NewTicker(gc.HeartbeatInterval)
	defer gc.heartbeatTicker.Stop()

	for {
		select {
		case <-gc.heartbeatTicker.C:
			gc.sendHeartbeat()
		case <-gc.stopChan:
			return
		}
	}
}

func (gc *GatewayConnection) sendHeartbeat() {
	gc.mutex.RLock()
	conn := gc.Conn
	seq := gc.LastSequence
	gc.mutex.RUnlock()

	if conn == nil {
		return
	}

	var seqValue interface{} = nil
	if seq > 0 {
		seqValue = seq
	}

	heartbeat := map[string]interface{}{
		"op": 1,
		"d":  seqValue,
	}

	if err := conn.WriteJSON(heartbeat); err != nil {
		gc.logger.Debug("heartbeat_send_failed", "error", err)
		return
	}

	gc.logger.Debug("heartbeat_sent", "seq", seq)
}

func (gc *GatewayConnection) Resume(ctx context.Context) error {
	if gc.SessionID == "" || gc.ResumeGatewayURL == "" {
		return fmt.Errorf("cannot resume: missing session_id or resume_gateway_url")
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: 30 * time.Second,
	}

	resumeURL := gc.ResumeGatewayURL + "?v=10&encoding=json"
	conn, _, err := dialer.DialContext(ctx, resumeURL, http.Header{})
	if err != nil {
		return fmt.Errorf("failed to reconnect: %w", err)
	}

	// Discord sends HELLO first on every new websocket connection.
	var helloMsg GatewayMessage
	if err := conn.ReadJSON(&helloMsg); err != nil {
		_ = conn.Close()
		return fmt.Errorf("failed to read HELLO during resume: %w", err)
	}
	if helloMsg.Op != 10 {
		_ = conn.Close()
		return fmt.Errorf("expected HELLO opcode during resume, got %d", helloMsg.Op)
	}

	var helloData HelloData
	if err := json.Unmarshal(helloMsg.D, &helloData); err != nil {
		_ = conn.Close()
		return fmt.Errorf("failed to parse HELLO data during resume: %w", err)
	}

	gc.mutex.Lock()
	gc.HeartbeatInterval = time.Duration(helloData.HeartbeatInterval) * time.Millisecond
	gc.Conn = conn
	gc.mutex.Unlock()

	resumePayload := map[string]interface{}{
		"op": 6,
		"d": map[string]interface{}{
			"token":      "Bot " + gc.Token,
			"session_id": gc.SessionID,
			"seq":        gc.LastSequence,
		},
	}
	if err := conn.WriteJSON(resumePayload); err != nil {
		_ = conn.Close()
		return fmt.Errorf("failed to send RESUME: %w", err)
	}

	// Read response (can be DISPATCH/RESUMED or INVALID_SESSION).
	// Tolerate a few interleaved messages before giving up.
	for i := 0; i < 5; i++ {
		var respMsg GatewayMessage
		if err := conn.ReadJSON(&respMsg); err != nil {
			_ = conn.Close()
			return fmt.Errorf("failed to read RESUME response: %w", err)
		}

		if respMsg.Op == 9 { // INVALID_SESSION
			_ = conn.Close()
			return fmt.Errorf("invalid session, need full reconnect")
		}

		if respMsg.Op == 0 && respMsg.T == "RESUMED" {
			gc.mutex.Lock()
			gc.Connected = true
			gc.mutex.Unlock()

			gc.logger.Info("gateway_resumed", "seq", gc.LastSequence)
			return nil
		}

		// HELLO again here means the session isn't resumable.
		if respMsg.Op == 10 {
			_ = conn.Close()
			return fmt.Errorf("unexpected HELLO after RESUME, need full reconnect")
		}
	}

	_ = conn.Close()
	return fmt.Errorf("resume did not complete after multiple messages")
}

func (gc *GatewayConnection) Close() error {
	gc.mutex.Lock()
	defer gc.mutex.Unlock()

	gc.Connected = false
	if gc.heartbeatTicker != nil {
		gc.heartbeatTicker.Stop()
	}

	select {
	case gc.stopChan <- true:
	default:
	}

	if gc.Conn != nil {
		return gc.Conn.Close()
	}

	return nil
}
