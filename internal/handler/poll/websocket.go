package poll

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/zhouzirui/med-assistant/backend/internal/model/prompt"
	"github.com/zhouzirui/med-assistant/backend/internal/service/stream"
)

const (
	readTimeout  = 60 * time.Second
	pingInterval = 54 * time.Second
	writeTimeout = 10 * time.Second
)

// Options 配置轮询处理器。
type Options struct {
	DefaultModel string
	Timeout      time.Duration
}

// Handler 以轮询方式推进会话：客户端每发送一次 advance，服务端回复一次累计后的更新。
// 每个会话只打开一次上游流，连接关闭时释放。
type Handler struct {
	acc      *stream.Accumulator
	prompts  prompt.Store
	opts     Options
	upgrader websocket.Upgrader
}

// New 创建轮询处理器
func New(acc *stream.Accumulator, prompts prompt.Store, opts Options) *Handler {
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Minute
	}
	return &Handler{
		acc:     acc,
		prompts: prompts,
		opts:    opts,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// RegisterRoutes 注册WebSocket路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/ws", h.handleWebSocket)
}

type inboundMessage struct {
	Type      string          `json:"type"`
	SessionID string          `json:"sessionId"`
	Data      json.RawMessage `json:"data"`
}

// SubmitMessage 开始一个新会话
type SubmitMessage struct {
	Message string `json:"message"`
	Model   string `json:"model"`
	Prompt  string `json:"prompt"`
}

type outgoingMessage struct {
	Type      string      `json:"type"`
	SessionID string      `json:"sessionId,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

type connectionState struct {
	session *stream.Session
	ctx     context.Context
	cancel  context.CancelFunc
}

func (s *connectionState) reset() {
	if s.session != nil {
		s.session.Close()
		s.session = nil
	}
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

// handleWebSocket 处理WebSocket连接
func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[poll] upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	state := &connectionState{}
	defer state.reset()

	conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(readTimeout))
		return nil
	})

	go h.pingLoop(ctx, conn)

	h.send(conn, outgoingMessage{Type: "connected"})

	for {
		var msg inboundMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[poll] read error: %v", err)
			}
			return
		}

		h.handleMessage(ctx, conn, state, &msg)
		conn.SetReadDeadline(time.Now().Add(readTimeout))
	}
}

func (h *Handler) handleMessage(ctx context.Context, conn *websocket.Conn, state *connectionState, msg *inboundMessage) {
	switch msg.Type {
	case "submit":
		h.handleSubmit(ctx, conn, state, msg.Data)
	case "advance":
		h.handleAdvance(conn, state, msg.SessionID)
	case "cancel":
		if state.session != nil {
			id := state.session.ID
			state.reset()
			log.Printf("[poll] session=%s cancelled by client", id)
		}
	default:
		h.sendError(conn, "unsupported message type: "+msg.Type)
	}
}

func (h *Handler) handleSubmit(ctx context.Context, conn *websocket.Conn, state *connectionState, raw json.RawMessage) {
	var payload SubmitMessage
	if len(raw) == 0 || json.Unmarshal(raw, &payload) != nil {
		h.sendError(conn, "invalid submit payload")
		return
	}

	modelName := strings.TrimSpace(payload.Model)
	if modelName == "" {
		modelName = h.opts.DefaultModel
	}
	selected, ok := prompt.Resolve(h.prompts, payload.Prompt)
	if !ok && payload.Prompt != "" {
		log.Printf("[poll] unknown prompt %q, falling back to %s", payload.Prompt, selected.ID)
	}

	session, err := h.acc.Begin(stream.NewRequest(modelName, selected.Text, payload.Message))
	if err != nil {
		h.sendError(conn, err.Error())
		return
	}

	// 新的提交会替换仍在进行中的旧会话。
	state.reset()
	state.session = session
	state.ctx, state.cancel = context.WithTimeout(ctx, h.opts.Timeout)

	h.send(conn, outgoingMessage{Type: "session", SessionID: session.ID, Data: session.Update()})
}

func (h *Handler) handleAdvance(conn *websocket.Conn, state *connectionState, sessionID string) {
	if state.session == nil {
		h.sendError(conn, "no active session")
		return
	}
	if sessionID != "" && sessionID != state.session.ID {
		h.sendError(conn, "session mismatch")
		return
	}

	u := h.acc.Advance(state.ctx, state.session)
	h.send(conn, outgoingMessage{Type: "update", SessionID: state.session.ID, Data: u})
}

func (h *Handler) send(conn *websocket.Conn, msg outgoingMessage) {
	msg.Timestamp = time.Now().Unix()
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := conn.WriteJSON(msg); err != nil {
		log.Printf("[poll] write %s failed: %v", msg.Type, err)
	}
}

func (h *Handler) sendError(conn *websocket.Conn, message string) {
	h.send(conn, outgoingMessage{
		Type: "error",
		Data: map[string]string{"message": message},
	})
}

// pingLoop 定期发送ping消息
func (h *Handler) pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				return
			}
		}
	}
}
