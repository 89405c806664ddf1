package chat

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/tmaxmax/go-sse"

	"github.com/zhouzirui/med-assistant/backend/internal/model/chat"
	"github.com/zhouzirui/med-assistant/backend/internal/model/prompt"
	chatService "github.com/zhouzirui/med-assistant/backend/internal/service/chat"
	"github.com/zhouzirui/med-assistant/backend/internal/service/render"
	"github.com/zhouzirui/med-assistant/backend/internal/service/stream"
	"github.com/zhouzirui/med-assistant/backend/pkg/utils"
)

// ErrShuttingDown 在处理器关闭后提交消息时返回。
var ErrShuttingDown = errors.New("server is shutting down")

// Options 配置聊天处理器。
type Options struct {
	DefaultModel string
	Timeout      time.Duration
	Renderer     *render.Renderer
	// Provider 为空时使用 go-sse 默认的内存 Provider。
	Provider sse.Provider
}

// Handler 聊天服务的HTTP处理器：提交消息后在后台消费流，并通过 SSE 推送每一次更新。
type Handler struct {
	chatSvc *chatService.Service
	acc     *stream.Accumulator
	prompts prompt.Store
	events  *sse.Server
	opts    Options

	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	mu      sync.Mutex
	closing bool
}

// New 创建聊天处理器
func New(chatSvc *chatService.Service, acc *stream.Accumulator, prompts prompt.Store, opts Options) *Handler {
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Minute
	}
	ctx, cancel := context.WithCancel(context.Background())

	h := &Handler{
		chatSvc: chatSvc,
		acc:     acc,
		prompts: prompts,
		opts:    opts,
		baseCtx: ctx,
		cancel:  cancel,
	}
	h.events = &sse.Server{Provider: opts.Provider, OnSession: h.onSession}
	return h
}

// Topic 返回某个会话的事件主题。
func Topic(chatID string) string {
	return "chat-" + chatID
}

// RegisterRoutes 注册聊天相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/chats", h.handleCreateChat)
	r.Get("/chats/{chatID}", h.handleGetChat)
	r.Delete("/chats/{chatID}", h.handleDeleteChat)
	r.Post("/chats/{chatID}/messages", h.handleSubmit)
	r.Get("/events", h.events.ServeHTTP)
}

// Wait 等待所有后台流结束。
func (h *Handler) Wait() {
	h.wg.Wait()
}

// Shutdown 取消进行中的流并关闭所有 SSE 连接。
func (h *Handler) Shutdown(ctx context.Context) error {
	h.mu.Lock()
	h.closing = true
	h.mu.Unlock()

	h.cancel()
	err := h.events.Shutdown(ctx)
	h.wg.Wait()
	return err
}

type turnView struct {
	chat.Turn
	HTML string `json:"html,omitempty"`
}

// handleCreateChat 创建会话
func (h *Handler) handleCreateChat(w http.ResponseWriter, r *http.Request) {
	c, err := h.chatSvc.CreateChat(r.Context())
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	utils.RespondJSON(w, http.StatusCreated, c)
}

// handleGetChat 返回会话及完整记录
func (h *Handler) handleGetChat(w http.ResponseWriter, r *http.Request) {
	chatID := chi.URLParam(r, "chatID")

	c, err := h.chatSvc.GetChat(r.Context(), chatID)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	turns, err := h.chatSvc.LoadTranscript(r.Context(), chatID)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}

	views := make([]turnView, 0, len(turns))
	for _, t := range turns {
		views = append(views, h.view(t))
	}
	utils.RespondJSON(w, http.StatusOK, map[string]any{"chat": c, "turns": views})
}

// handleDeleteChat 删除会话，进行中的流会在下一次更新时被放弃
func (h *Handler) handleDeleteChat(w http.ResponseWriter, r *http.Request) {
	if err := h.chatSvc.DeleteChat(r.Context(), chi.URLParam(r, "chatID")); err != nil {
		h.respondServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleSubmit 保存用户消息并在后台开始生成回复
func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	chatID := chi.URLParam(r, "chatID")

	var payload struct {
		Message string `json:"message"`
		Model   string `json:"model"`
		Prompt  string `json:"prompt"`
	}
	if err := utils.DecodeJSON(w, r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if _, err := h.chatSvc.GetChat(r.Context(), chatID); err != nil {
		h.respondServiceError(w, err)
		return
	}

	modelName := strings.TrimSpace(payload.Model)
	if modelName == "" {
		modelName = h.opts.DefaultModel
	}
	selected, ok := prompt.Resolve(h.prompts, payload.Prompt)
	if !ok && payload.Prompt != "" {
		log.Printf("[chat] unknown prompt %q, falling back to %s", payload.Prompt, selected.ID)
	}

	session, err := h.acc.Begin(stream.NewRequest(modelName, selected.Text, payload.Message))
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !h.track() {
		session.Close()
		utils.RespondError(w, http.StatusServiceUnavailable, ErrShuttingDown.Error())
		return
	}
	started := false
	defer func() {
		if !started {
			h.wg.Done()
		}
	}()

	userTurn, err := h.chatSvc.AppendTurn(r.Context(), chat.Turn{
		ChatID:  chatID,
		Role:    chat.RoleUser,
		Content: payload.Message,
	})
	if err != nil {
		session.Close()
		h.respondServiceError(w, err)
		return
	}
	reply, err := h.chatSvc.AppendTurn(r.Context(), chat.Turn{
		ChatID:   chatID,
		Role:     chat.RoleAssistant,
		Status:   string(stream.StatusPending),
		Model:    modelName,
		PromptID: string(selected.ID),
	})
	if err != nil {
		session.Close()
		h.respondServiceError(w, err)
		return
	}

	started = true
	go h.drain(chatID, reply.ID, session)

	utils.RespondJSON(w, http.StatusAccepted, map[string]any{
		"sessionId":     session.ID,
		"userTurn":      userTurn,
		"assistantTurn": reply,
	})
}

// track 在关闭前登记一个后台流；关闭后返回 false。
func (h *Handler) track() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closing {
		return false
	}
	h.wg.Add(1)
	return true
}

func (h *Handler) drain(chatID, turnID string, session *stream.Session) {
	defer h.wg.Done()

	ctx, cancel := context.WithTimeout(h.baseCtx, h.opts.Timeout)
	defer cancel()

	final, err := h.acc.Drain(ctx, session, stream.SinkFunc(func(u stream.Update) error {
		turn, err := h.chatSvc.ApplyUpdate(ctx, chatID, turnID, u)
		if err != nil {
			return err
		}
		h.publish(chatID, turn)
		return nil
	}))
	if err != nil {
		log.Printf("[chat] chat=%s session=%s abandoned: %v", chatID, session.ID, err)
		return
	}
	log.Printf("[chat] chat=%s session=%s finished status=%s length=%d", chatID, session.ID, final.Status, len(final.Text))
}

func (h *Handler) publish(chatID string, turn chat.Turn) {
	msg, err := utils.NewSSEMessage("turn", h.view(turn))
	if err != nil {
		log.Printf("[chat] chat=%s encode event failed: %v", chatID, err)
		return
	}
	if err := h.events.Publish(msg, Topic(chatID)); err != nil {
		log.Printf("[chat] chat=%s publish failed: %v", chatID, err)
	}
}

func (h *Handler) view(t chat.Turn) turnView {
	v := turnView{Turn: t}
	if h.opts.Renderer == nil || t.Role != chat.RoleAssistant {
		return v
	}
	html, err := h.opts.Renderer.HTML(render.DisplayText(stream.Update{
		Text:   t.Content,
		Status: stream.Status(t.Status),
		Err:    t.Error,
	}))
	if err != nil {
		log.Printf("[chat] turn=%s render failed: %v", t.ID, err)
		return v
	}
	v.HTML = html
	return v
}

// onSession 只允许订阅已存在的会话
func (h *Handler) onSession(w http.ResponseWriter, r *http.Request) ([]string, bool) {
	chatID := r.URL.Query().Get("chatId")
	if chatID == "" {
		utils.RespondError(w, http.StatusBadRequest, "chatId query parameter is required")
		return nil, false
	}
	if _, err := h.chatSvc.GetChat(r.Context(), chatID); err != nil {
		h.respondServiceError(w, err)
		return nil, false
	}
	return []string{Topic(chatID)}, true
}

func (h *Handler) respondServiceError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	if errors.Is(err, chatService.ErrChatNotFound) {
		status = http.StatusNotFound
	}
	utils.RespondError(w, status, err.Error())
}
