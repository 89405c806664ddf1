package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	catalogHandler "github.com/zhouzirui/med-assistant/backend/internal/handler/catalog"
	"github.com/zhouzirui/med-assistant/backend/internal/handler/chat"
	"github.com/zhouzirui/med-assistant/backend/internal/handler/poll"
	streamHandler "github.com/zhouzirui/med-assistant/backend/internal/handler/stream"
	middlewarePkg "github.com/zhouzirui/med-assistant/backend/internal/middleware"
	"github.com/zhouzirui/med-assistant/backend/internal/model/catalog"
	"github.com/zhouzirui/med-assistant/backend/internal/model/prompt"
	chatService "github.com/zhouzirui/med-assistant/backend/internal/service/chat"
	"github.com/zhouzirui/med-assistant/backend/internal/service/render"
	"github.com/zhouzirui/med-assistant/backend/internal/service/stream"
	"github.com/zhouzirui/med-assistant/backend/pkg/utils"
)

// Deps groups the services the HTTP layer is built from.
type Deps struct {
	Accumulator  *stream.Accumulator
	Chats        *chatService.Service
	Prompts      prompt.Store
	Models       catalog.Store
	Availability catalogHandler.Availability
	Renderer     *render.Renderer
	DefaultModel string
	Timeout      time.Duration
}

// Router is the root HTTP handler. Shutdown must be called before the HTTP server
// stops so event subscribers and background streams are released.
type Router struct {
	http.Handler
	chats  *chat.Handler
	stream *streamHandler.Handler
}

// NewRouter wires HTTP routes to core services.
func NewRouter(deps Deps) *Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	catalogH := catalogHandler.New(deps.Prompts, deps.Models, deps.Availability, deps.DefaultModel)
	streamH := streamHandler.New(deps.Accumulator, deps.Prompts, streamHandler.Options{
		DefaultModel: deps.DefaultModel,
		Timeout:      deps.Timeout,
		Renderer:     deps.Renderer,
	})
	chatH := chat.New(deps.Chats, deps.Accumulator, deps.Prompts, chat.Options{
		DefaultModel: deps.DefaultModel,
		Timeout:      deps.Timeout,
		Renderer:     deps.Renderer,
	})
	pollH := poll.New(deps.Accumulator, deps.Prompts, poll.Options{
		DefaultModel: deps.DefaultModel,
		Timeout:      deps.Timeout,
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(api chi.Router) {
		catalogH.RegisterRoutes(api)
		streamH.RegisterRoutes(api)
		chatH.RegisterRoutes(api)
		pollH.RegisterRoutes(api)
	})

	return &Router{Handler: r, chats: chatH, stream: streamH}
}

// Shutdown cancels open /api/stream responses, stops background chat streams and
// closes event subscribers.
func (r *Router) Shutdown(ctx context.Context) error {
	r.stream.Shutdown()
	return r.chats.Shutdown(ctx)
}
