package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/IshaanNene/topicscout/internal/classifier"
	"github.com/IshaanNene/topicscout/internal/config"
	"github.com/IshaanNene/topicscout/internal/rules"
)

// rulesCmd creates the "rules" subcommand group.
func rulesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Inspect extraction rules",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List the loaded rules",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := loadRegistry()
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tSITE TYPE\tBROWSER\tPATTERNS")
			for _, r := range reg.All() {
				fmt.Fprintf(w, "%s\t%s\t%v\t%d\n", r.Name, r.SiteType, r.Options.UseBrowser, len(r.URLPatterns))
			}
			return w.Flush()
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "export",
		Short: "Print every loaded rule as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := loadRegistry()
			if err != nil {
				return err
			}
			return reg.ExportJSON(cmd.OutOrStdout())
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "match <url>",
		Short: "Show the site type and rule a URL would be crawled with",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.ValidateURL(args[0]); err != nil {
				return err
			}
			reg, err := loadRegistry()
			if err != nil {
				return err
			}
			siteType := classifier.Classify(args[0])
			rule := reg.Resolve(args[0], siteType)
			_, byPattern := reg.Match(args[0])
			fmt.Fprintf(cmd.OutOrStdout(), "site type:  %s\nrule:       %s\nby pattern: %v\nbrowser:    %v\n",
				siteType, rule.Name, byPattern, rule.Options.UseBrowser)
			return nil
		},
	})
	return cmd
}

// loadRegistry builds the default rules plus any configured rule files
// without starting the rest of the application.
func loadRegistry() (*rules.Registry, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	logger := setupLogger(&cfg.Logging)
	reg, err := rules.NewDefaultRegistry(logger)
	if err != nil {
		return nil, err
	}
	for _, path := range cfg.Rules.Files {
		if _, err := reg.LoadFile(path); err != nil {
			return nil, fmt.Errorf("load rules %s: %w", path, err)
		}
	}
	return reg, nil
}
