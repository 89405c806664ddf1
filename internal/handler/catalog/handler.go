package catalog

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/med-assistant/backend/internal/model/catalog"
	"github.com/zhouzirui/med-assistant/backend/internal/model/prompt"
	"github.com/zhouzirui/med-assistant/backend/pkg/utils"
)

// Availability reports whether a model id can currently be served.
type Availability interface {
	Available(model string) bool
}

// Handler 提示词与模型目录的HTTP处理器
type Handler struct {
	prompts      prompt.Store
	models       catalog.Store
	availability Availability
	defaultModel string
}

// New 创建目录处理器。availability 为空时所有模型都视为可用。
func New(prompts prompt.Store, models catalog.Store, availability Availability, defaultModel string) *Handler {
	return &Handler{
		prompts:      prompts,
		models:       models,
		availability: availability,
		defaultModel: defaultModel,
	}
}

// RegisterRoutes 注册目录相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/prompts", h.handleListPrompts)
	r.Get("/models", h.handleListModels)
}

type promptView struct {
	prompt.Prompt
	Default bool `json:"default"`
}

type modelView struct {
	catalog.Model
	Available bool `json:"available"`
	Default   bool `json:"default"`
}

// handleListPrompts 列出所有提示词，不包含提示词正文
func (h *Handler) handleListPrompts(w http.ResponseWriter, r *http.Request) {
	fallback := prompt.Default
	if d, ok := h.prompts.(prompt.Defaulter); ok {
		fallback = d.DefaultKey()
	}

	items := h.prompts.List()
	views := make([]promptView, 0, len(items))
	for _, p := range items {
		views = append(views, promptView{Prompt: p, Default: p.ID == fallback})
	}
	utils.RespondJSON(w, http.StatusOK, views)
}

// handleListModels 列出模型；?available=true 只返回当前可用的模型
func (h *Handler) handleListModels(w http.ResponseWriter, r *http.Request) {
	items := h.models.List()
	if r.URL.Query().Get("available") == "true" {
		items = catalog.Filter(items, func(m catalog.Model) bool { return h.available(m.ID) })
	}

	views := make([]modelView, 0, len(items))
	for _, m := range items {
		views = append(views, modelView{
			Model:     m,
			Available: h.available(m.ID),
			Default:   m.ID == h.defaultModel,
		})
	}
	utils.RespondJSON(w, http.StatusOK, views)
}

func (h *Handler) available(id string) bool {
	if h.availability == nil {
		return true
	}
	return h.availability.Available(id)
}
