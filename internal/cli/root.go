package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Execute runs the postai CLI.
func Execute() error {
	return NewRootCmd().Execute()
}

// NewRootCmd constructs the root command so tests can exercise the CLI easily.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "postai",
		Short: "Explore HTTP APIs from their Swagger/OpenAPI documents in conversation",
		Long: "postai loads Swagger/OpenAPI documents, finds endpoints, and builds HTTP requests " +
			"from commands or plain language. Requests run only after you confirm them.",
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	// Flag errors (like unknown flags) become usage errors carrying the
	// command's help text.
	cmd.SetFlagErrorFunc(flagError)

	flags := cmd.PersistentFlags()
	flags.StringP("config", "c", "", "Config file path (default ~/.postai/config.yaml)")
	flags.BoolP("verbose", "v", false, "Enable verbose logging output")
	flags.String("env-file", ".env", "Environment file loaded before POSTAI_* overrides")
	flags.String("base-url", "", "Base URL override for relative request paths")
	flags.String("store", "", "Document store backend (file|sqlite)")
	flags.String("store-dir", "", "Directory of the file store")
	flags.String("model", "", "Chat model used for plain-language turns")
	flags.Bool("no-llm", false, "Handle explicit commands only, without a language model")

	for _, sub := range []*cobra.Command{newInitCmd(), newChatCmd(), newRunCmd(), newInspectCmd()} {
		sub.SetFlagErrorFunc(flagError)
		cmd.AddCommand(sub)
	}
	return cmd
}

func flagError(c *cobra.Command, err error) error {
	return newUsageError(fmt.Sprintf("%v\n\n%s", err, c.UsageString()))
}
