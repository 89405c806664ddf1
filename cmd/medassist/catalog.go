package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/zhouzirui/med-assistant/backend/internal/config"
	"github.com/zhouzirui/med-assistant/backend/internal/model/catalog"
	"github.com/zhouzirui/med-assistant/backend/internal/model/prompt"
	"github.com/zhouzirui/med-assistant/backend/internal/service/ai"
)

var (
	catalogJSON     bool
	modelsAvailable bool
)

var promptsCmd = &cobra.Command{
	Use:   "prompts",
	Short: "List the system prompts",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Read(settings)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		store, err := prompt.Open(cfg.Chat.PromptsFile, cfg.Chat.DefaultPrompt)
		if err != nil {
			return err
		}
		return writePrompts(cmd.OutOrStdout(), store)
	},
}

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List the selectable models and whether a backend is configured for them",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Read(settings)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		registry := ai.NewRegistryFromConfig(cmd.Context(), cfg.AI)
		return writeModels(cmd.OutOrStdout(), catalog.Seed(), registry, cfg.Chat.DefaultModel)
	},
}

func init() {
	for _, c := range []*cobra.Command{promptsCmd, modelsCmd} {
		c.Flags().BoolVar(&catalogJSON, "json", false, "Output as JSON")
		rootCmd.AddCommand(c)
	}
	modelsCmd.Flags().BoolVar(&modelsAvailable, "available", false, "Only list models with a configured backend")
}

func writePrompts(w io.Writer, store *prompt.MemoryStore) error {
	items := store.List()
	if catalogJSON {
		return writeJSON(w, items)
	}
	for _, p := range items {
		marker := " "
		if p.ID == store.DefaultKey() {
			marker = "*"
		}
		fmt.Fprintf(w, "%s %-10s %s\n", marker, p.ID, p.Name)
	}
	return nil
}

type availability interface {
	Available(model string) bool
}

func writeModels(w io.Writer, items []catalog.Model, avail availability, defaultModel string) error {
	if modelsAvailable {
		items = catalog.Filter(items, func(m catalog.Model) bool { return avail.Available(m.ID) })
	}
	if catalogJSON {
		return writeJSON(w, items)
	}
	for _, m := range items {
		marker := " "
		if m.ID == defaultModel {
			marker = "*"
		}
		state := "unavailable"
		if avail.Available(m.ID) {
			state = "available"
		}
		fmt.Fprintf(w, "%s %-28s %-13s %-11s %s\n", marker, m.ID, m.Tier, state, m.Label)
	}
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
