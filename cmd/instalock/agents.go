package main

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kjzl/valorant-instalock/internal/catalog"
	"github.com/kjzl/valorant-instalock/internal/config"
)

var headingStyle = lipgloss.NewStyle().Bold(true)

func newAgentsCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "agents",
		Short: "List playable agents and the selection configured per map",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			cat := catalog.Load(cmd.Context(), catalog.NewClient(cfg.Catalog.BaseURL), cfg.Cache.Dir, zap.NewNop())
			if cat.Empty() {
				return fmt.Errorf("no agent data available from %s or the cache in %s", cfg.Catalog.BaseURL, cfg.Cache.Dir)
			}
			return printCatalog(cmd.OutOrStdout(), cat, cfg.MapAgentConfig)
		},
	}
}

func printCatalog(w io.Writer, cat catalog.Catalog, mac config.MapAgentConfig) error {
	if _, err := fmt.Fprintln(w, headingStyle.Render("Agents")); err != nil {
		return err
	}
	for _, a := range cat.Agents {
		if _, err := fmt.Fprintf(w, "  %s\n", a.Name); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintln(w, headingStyle.Render(fmt.Sprintf("Maps (strategy %s)", mac.Strategy))); err != nil {
		return err
	}
	for _, m := range cat.Maps {
		if _, err := fmt.Fprintf(w, "  %-10s %s\n", m.Name, mac.Selection(m.Name)); err != nil {
			return err
		}
	}
	return nil
}
