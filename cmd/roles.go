package cmd

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spigell/placement-checker/internal/config"
	"github.com/spigell/placement-checker/internal/textnorm"

	"github.com/spf13/cobra"
)

var rolesCmd = &cobra.Command{
	Use:   "roles",
	Short: "List the configured roles, company weights and the threshold",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := getConfig()
		if err != nil {
			return fmt.Errorf("getting a config: %w", err)
		}

		return printRoles(cmd, cfg)
	},
}

func init() {
	rootCmd.AddCommand(rolesCmd)
}

func printRoles(cmd *cobra.Command, cfg *config.Config) error {
	out := cmd.OutOrStdout()

	fmt.Fprintf(out, "Similarity threshold: %.1f%%\n\n", cfg.SimilarityThreshold*100)

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ROLE\tWEIGHT\tWORDS")
	for _, role := range cfg.Roles {
		words := len(strings.Fields(textnorm.Normalize(role.Requirements)))
		fmt.Fprintf(tw, "%s\t%g\t%d\n", role.Name, role.Weight, words)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if len(cfg.Companies) == 0 {
		return nil
	}

	fmt.Fprintln(out)
	tw = tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "COMPANY\tWEIGHT")
	for _, company := range cfg.Companies {
		fmt.Fprintf(tw, "%s\t%g\n", company.Name, company.Weight)
	}

	return tw.Flush()
}
