package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spigell/placement-checker/internal/matcher"
	"github.com/spigell/placement-checker/internal/report"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var errNotEligible = errors.New("placement is not eligible")

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check internship responsibilities against a role",
	Long: `Check scores internship responsibilities against one approved role and prints the verdict.

The text is taken from --text, from --file, or from standard input. When --role is not
given, the role is selected interactively.`,
	Example: `  placement-checker check --role "Data Analyst" --file posting.txt
  pbpaste | placement-checker check -r "ML Intern" --output json`,
	Args: cobra.NoArgs,
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)

	checkCmd.Flags().StringP("role", "r", "", "role to check against (prompted when omitted)")
	checkCmd.Flags().StringP("text", "t", "", "internship responsibilities")
	checkCmd.Flags().StringP("file", "f", "", "file with internship responsibilities, - for stdin")
	checkCmd.Flags().StringP("company", "c", "", "company offering the placement, reported with its weight")
	checkCmd.Flags().StringP("output", "o", "text", "output format: text or json")
	checkCmd.Flags().Bool("strict", false, "exit with an error when the placement is not eligible")
}

func runCheck(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	flags := cmd.Flags()
	role, _ := flags.GetString("role")
	text, _ := flags.GetString("text")
	file, _ := flags.GetString("file")
	company, _ := flags.GetString("company")
	output, _ := flags.GetString("output")
	strict, _ := flags.GetBool("strict")

	if output != "text" && output != "json" {
		return fmt.Errorf("unsupported output format %q", output)
	}

	logger := newLogger()
	defer logger.Sync()

	config, err := getConfig()
	if err != nil {
		return fmt.Errorf("getting a config: %w", err)
	}

	profiles, err := profilesFromConfig(config)
	if err != nil {
		return err
	}

	if role == "" {
		role, err = selectRole(profiles.Names())
		if err != nil {
			return err
		}
	}
	if _, ok := profiles.Get(role); !ok {
		return fmt.Errorf("%w: %q (configured roles: %s)", matcher.ErrUnknownRole, role, strings.Join(profiles.Names(), ", "))
	}

	if flags.Changed("text") && flags.Changed("file") {
		return errors.New("use either --text or --file, not both")
	}
	if !flags.Changed("text") {
		text, err = readText(file, cmd.InOrStdin())
		if err != nil {
			return err
		}
	}

	c, err := newChecker(ctx, config, logger)
	if err != nil {
		return err
	}
	defer c.Close()

	if err := c.cache.Build(ctx); err != nil {
		return fmt.Errorf("building the role cache: %w", err)
	}

	result, err := c.scorer.Score(ctx, role, text)
	if err != nil {
		return err
	}

	rep := report.New(result, config.SimilarityThreshold)
	if company != "" {
		rep = rep.WithCompany(company, config.CompanyWeight(company))
	}

	logger.Debug("placement checked", zap.Any("report", rep))

	if err := writeReport(cmd.OutOrStdout(), rep, output); err != nil {
		return err
	}

	if strict && !rep.Passed {
		return errNotEligible
	}

	return nil
}

func selectRole(names []string) (string, error) {
	prompt := promptui.Select{
		Label: "Select intended role",
		Items: names,
	}

	_, role, err := prompt.Run()
	if err != nil {
		return "", fmt.Errorf("selecting a role: %w", err)
	}

	return role, nil
}

// readText reads the responsibilities from path, or from stdin when path is empty or "-".
func readText(path string, stdin io.Reader) (string, error) {
	if path != "" && path != "-" {
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("reading responsibilities: %w", err)
		}
		return string(data), nil
	}

	if f, ok := stdin.(*os.File); ok && path == "" {
		if info, err := f.Stat(); err == nil && info.Mode()&os.ModeCharDevice != 0 {
			return "", errors.New("no responsibilities given: use --text, --file or pipe them on stdin")
		}
	}

	data, err := io.ReadAll(stdin)
	if err != nil {
		return "", fmt.Errorf("reading responsibilities from stdin: %w", err)
	}

	return string(data), nil
}

func writeReport(w io.Writer, rep report.Report, output string) error {
	if output == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rep)
	}

	return rep.Write(w)
}
