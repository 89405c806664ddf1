package stream

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/tmaxmax/go-sse"

	"github.com/zhouzirui/med-assistant/backend/internal/model/prompt"
	"github.com/zhouzirui/med-assistant/backend/internal/service/render"
	streamService "github.com/zhouzirui/med-assistant/backend/internal/service/stream"
	"github.com/zhouzirui/med-assistant/backend/pkg/utils"
)

// Options tunes the streaming endpoint.
type Options struct {
	DefaultModel string
	Timeout      time.Duration
	// Renderer adds rendered HTML to every frame when set.
	Renderer *render.Renderer
}

// Handler streams AI responses via Server-Sent Events
type Handler struct {
	acc     *streamService.Accumulator
	prompts prompt.Store
	opts    Options

	baseCtx context.Context
	cancel  context.CancelFunc
}

// New creates a new stream handler
func New(acc *streamService.Accumulator, prompts prompt.Store, opts Options) *Handler {
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Minute
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Handler{acc: acc, prompts: prompts, opts: opts, baseCtx: ctx, cancel: cancel}
}

// Shutdown cancels every open stream. Later requests end as soon as they start.
func (h *Handler) Shutdown() {
	h.cancel()
}

// Frame is the data of one SSE event. Content always carries the full text so far.
type Frame struct {
	SessionID string               `json:"sessionId,omitempty"`
	Content   string               `json:"content"`
	Status    streamService.Status `json:"status"`
	Error     string               `json:"error,omitempty"`
	HTML      string               `json:"html,omitempty"`
}

// RegisterRoutes registers the streaming route
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/stream", h.handleStream)
}

// handleStream serves GET /stream?user_message=&model_name=&prompt_name=
func (h *Handler) handleStream(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	modelName := strings.TrimSpace(query.Get("model_name"))
	if modelName == "" {
		modelName = h.opts.DefaultModel
	}

	promptName := query.Get("prompt_name")
	selected, ok := prompt.Resolve(h.prompts, promptName)
	if !ok && promptName != "" {
		log.Printf("[stream] unknown prompt %q, falling back to %s", promptName, selected.ID)
	}

	session, err := h.acc.Begin(streamService.NewRequest(modelName, selected.Text, query.Get("user_message")))
	if err != nil {
		status := http.StatusBadRequest
		if !errors.Is(err, streamService.ErrEmptyMessage) && !errors.Is(err, streamService.ErrMalformedRequest) {
			status = http.StatusInternalServerError
		}
		utils.RespondError(w, status, err.Error())
		return
	}
	defer session.Close()

	sseSession, err := sse.Upgrade(w, r)
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}
	utils.SetupSSEHeaders(sseSession)

	ctx, cancel := context.WithTimeout(r.Context(), h.opts.Timeout)
	defer cancel()
	stop := context.AfterFunc(h.baseCtx, cancel)
	defer stop()

	final, err := h.acc.Drain(ctx, session, streamService.SinkFunc(func(u streamService.Update) error {
		return utils.SendSSEEvent(sseSession, "", h.frame(u))
	}))
	if err != nil {
		log.Printf("[stream] session=%s abandoned: %v", session.ID, err)
		return
	}

	log.Printf("[stream] completed response for session=%s, model=%s, prompt=%s, status=%s, length=%d",
		session.ID, modelName, selected.ID, final.Status, len(final.Text))
}

func (h *Handler) frame(u streamService.Update) Frame {
	f := Frame{
		SessionID: u.SessionID,
		Content:   u.Text,
		Status:    u.Status,
		Error:     u.Err,
	}
	if h.opts.Renderer != nil {
		html, err := h.opts.Renderer.HTML(render.DisplayText(u))
		if err != nil {
			log.Printf("[stream] session=%s render failed: %v", u.SessionID, err)
		} else {
			f.HTML = html
		}
	}
	return f
}
