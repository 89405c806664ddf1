package catalog

// Tier groups models by cost and answer quality.
type Tier string

const (
	TierFast        Tier = "fast"
	TierHighQuality Tier = "high-quality"
)

// Model describes a selectable completion model. ID is passed through to the
// completion backends untouched.
type Model struct {
	ID       string `json:"id"`
	Label    string `json:"label"`
	Tier     Tier   `json:"tier"`
	Provider string `json:"provider"`
}

const (
	GeminiFlash = "gemini/gemini-2.0-flash"
	ClaudeOpus  = "claude-3-opus-20240229"
)

// Seed lists the models offered by default. The first entry is the default selection.
func Seed() []Model {
	return []Model{
		{ID: GeminiFlash, Label: "Gemini 2.0 Flash", Tier: TierFast, Provider: "gemini"},
		{ID: ClaudeOpus, Label: "Claude 3 Opus", Tier: TierHighQuality, Provider: "anthropic"},
		{ID: "openai/gpt-4o-mini", Label: "GPT-4o mini", Tier: TierFast, Provider: "openai"},
		{ID: "openai/gpt-4o", Label: "GPT-4o", Tier: TierHighQuality, Provider: "openai"},
		{ID: "ollama/llama3.1", Label: "Llama 3.1 (local)", Tier: TierFast, Provider: "ollama"},
	}
}

// Store exposes the model list.
type Store interface {
	List() []Model
	FindByID(id string) (Model, bool)
}

// MemoryStore implements Store with an in-memory slice.
type MemoryStore struct {
	items []Model
}

func NewMemoryStore(items []Model) *MemoryStore {
	return &MemoryStore{items: append([]Model(nil), items...)}
}

func (s *MemoryStore) List() []Model {
	return append([]Model(nil), s.items...)
}

func (s *MemoryStore) FindByID(id string) (Model, bool) {
	for _, item := range s.items {
		if item.ID == id {
			return item, true
		}
	}
	return Model{}, false
}

// Filter returns the models accepted by keep.
func Filter(items []Model, keep func(Model) bool) []Model {
	out := make([]Model, 0, len(items))
	for _, item := range items {
		if keep(item) {
			out = append(out, item)
		}
	}
	return out
}
