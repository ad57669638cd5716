package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/IshaanNene/topicscout/internal/app"
	"github.com/IshaanNene/topicscout/internal/config"
)

var (
	suggestPlatform string
	suggestCount    int
	suggestProvider string
	suggestModel    string
)

// suggestCmd creates the "suggest" subcommand.
func suggestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "suggest <keyword>",
		Short: "Suggest content topics from current web results using an LLM",
		Args:  cobra.ExactArgs(1),
		RunE:  runSuggest,
	}

	cmd.Flags().StringVarP(&suggestPlatform, "platform", "p", "", "platform the topics are aimed at")
	cmd.Flags().IntVarP(&suggestCount, "count", "n", 5, "number of suggestions")
	cmd.Flags().StringVar(&suggestProvider, "provider", "", "LLM provider: ollama, openai, custom")
	cmd.Flags().StringVar(&suggestModel, "model", "", "LLM model name")
	return cmd
}

func runSuggest(cmd *cobra.Command, args []string) error {
	configure := func(cfg *config.Config) {
		if suggestProvider != "" {
			cfg.AI.Provider = suggestProvider
		}
		if suggestModel != "" {
			cfg.AI.Model = suggestModel
		}
	}
	return withApp(cmd, configure, func(ctx context.Context, a *app.App) error {
		suggestions, err := a.Suggester().Generate(ctx, args[0], suggestPlatform, suggestCount)
		if err != nil {
			return err
		}
		return writeJSON(cmd.OutOrStdout(), suggestions)
	})
}
