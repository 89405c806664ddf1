package prompt

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

type promptFile struct {
	Prompts []Prompt `yaml:"prompts"`
}

// LoadFile reads prompt overrides from a YAML file and merges them over base.
// Entries with a known ID replace the built-in text; unknown IDs are appended.
func LoadFile(path string, base []Prompt) ([]Prompt, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read prompts file: %w", err)
	}

	var parsed promptFile
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("parse prompts file %s: %w", path, err)
	}

	merged := append([]Prompt(nil), base...)
	for _, p := range parsed.Prompts {
		p.ID = Key(strings.TrimSpace(string(p.ID)))
		if p.ID == "" {
			return nil, fmt.Errorf("prompts file %s: entry without id", path)
		}
		if strings.TrimSpace(p.Text) == "" {
			return nil, fmt.Errorf("prompts file %s: prompt %q has empty text", path, p.ID)
		}

		replaced := false
		for i := range merged {
			if merged[i].ID != p.ID {
				continue
			}
			if p.Name == "" {
				p.Name = merged[i].Name
			}
			if p.Description == "" {
				p.Description = merged[i].Description
			}
			merged[i] = p
			replaced = true
			break
		}
		if !replaced {
			if p.Name == "" {
				p.Name = string(p.ID)
			}
			merged = append(merged, p)
		}
	}
	return merged, nil
}

// Open builds the prompt store from the built-in prompts, the optional overrides file
// and the configured default key.
func Open(path, defaultKey string) (*MemoryStore, error) {
	items := Seed()
	if strings.TrimSpace(path) != "" {
		loaded, err := LoadFile(path, items)
		if err != nil {
			return nil, err
		}
		items = loaded
	}
	return NewMemoryStore(items).WithDefault(Key(strings.TrimSpace(defaultKey))), nil
}
