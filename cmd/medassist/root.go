package main

import (
	"io"
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/zhouzirui/med-assistant/backend/internal/config"
)

// settings holds environment, config file and flag values. Flags win over env.
var settings = config.NewViper()

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "medassist",
	Short: "Ask the medical assistant from the terminal",
	Long: `medassist streams answers from the configured completion backends using the
same prompts and models as the web service.

Examples:
  medassist ask "55 year old with fever, rash and joint pain"
  medassist ask -p prompt2 "first line treatment for community acquired pneumonia"
  echo "persistent dry cough for 3 weeks" | medassist ask -m claude-3-opus-20240229
  medassist models --available`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	CompletionOptions: cobra.CompletionOptions{DisableDefaultCmd: true},
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		_ = godotenv.Load()
		if !verbose {
			log.SetOutput(io.Discard)
		}
		return nil
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringP("model", "m", "", "Model id (defaults to DEFAULT_MODEL)")
	flags.StringP("prompt", "p", "", "Prompt key, prompt1 or prompt2 (defaults to DEFAULT_PROMPT)")
	flags.BoolVarP(&verbose, "verbose", "v", false, "Log backend activity to stderr")

	_ = settings.BindPFlag("DEFAULT_MODEL", flags.Lookup("model"))
	_ = settings.BindPFlag("DEFAULT_PROMPT", flags.Lookup("prompt"))
}

// isTerminal reports whether v is a terminal file; stdin and stdout both pass through it.
func isTerminal(v any) bool {
	f, ok := v.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
