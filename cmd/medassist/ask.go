package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"github.com/zhouzirui/med-assistant/backend/internal/config"
	"github.com/zhouzirui/med-assistant/backend/internal/model/prompt"
	"github.com/zhouzirui/med-assistant/backend/internal/service/ai"
	"github.com/zhouzirui/med-assistant/backend/internal/service/stream"
)

// errAnswerFailed is returned after a failure has already been shown to the user.
var errAnswerFailed = errors.New("answer failed")

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a question and stream the answer",
	Long: `Ask a question and stream the answer. Without arguments the question is read
from stdin.`,
	RunE: runAsk,
}

func init() {
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	question := strings.Join(args, " ")
	if strings.TrimSpace(question) == "" && !isTerminal(cmd.InOrStdin()) {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return fmt.Errorf("read question: %w", err)
		}
		question = string(data)
	}

	cfg, err := config.Read(settings)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	prompts, err := prompt.Open(cfg.Chat.PromptsFile, cfg.Chat.DefaultPrompt)
	if err != nil {
		return err
	}
	selected, _ := prompt.Resolve(prompts, cfg.Chat.DefaultPrompt)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, cfg.Chat.StreamTimeout)
	defer cancel()

	registry := ai.NewRegistryFromConfig(ctx, cfg.AI)
	acc := stream.NewAccumulator(registry)

	out := cmd.OutOrStdout()
	view := newAnswerView(out, isTerminal(out))
	view.header = fmt.Sprintf("%s · %s", cfg.Chat.DefaultModel, selected.Name)

	final, err := acc.Run(ctx, stream.NewRequest(cfg.Chat.DefaultModel, selected.Text, question), view)
	if err != nil {
		return err
	}
	if final.Status == stream.StatusFailed {
		return errAnswerFailed
	}
	return nil
}
