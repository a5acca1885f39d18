package cmd

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"orthotracker/internal/bootstrap"
	"orthotracker/internal/bootstrap/logging"
	"orthotracker/internal/errs"
	"orthotracker/internal/usecase/tracker"
)

var ruleCmd = &cobra.Command{
	Use:   "rule",
	Short: "Manage commission rules",
}

var ruleAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a commission rule",
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		name, _ := cmd.Flags().GetString("name")
		condition, _ := cmd.Flags().GetString("condition")
		mode, _ := cmd.Flags().GetString("mode")
		value, _ := cmd.Flags().GetFloat64("value")
		inactive, _ := cmd.Flags().GetBool("inactive")
		from, _ := cmd.Flags().GetString("from")
		to, _ := cmd.Flags().GetString("to")

		active := !inactive
		rule, err := app.Tracker.CreateRule(ctx, tracker.RuleInput{
			Name:          name,
			ConditionJSON: condition,
			Mode:          mode,
			Value:         value,
			Active:        &active,
			EffectiveFrom: from,
			EffectiveTo:   to,
			Actor:         "cli",
		})
		if err != nil {
			logging.Error(ctx, "create rule failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "create rule")
		}

		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "created rule: id=%d name=%s mode=%s value=%s\n",
			rule.RuleID, rule.Name, rule.Mode, formatAmount(rule.Value)); err != nil {
			return errs.Wrap(err, "write rule output")
		}
		return nil
	}),
}

var ruleListCmd = &cobra.Command{
	Use:   "list",
	Short: "List commission rules",
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		rules, err := app.Tracker.ListRules(ctx)
		if err != nil {
			logging.Error(ctx, "list rules failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "list rules")
		}
		if len(rules) == 0 {
			if _, err := fmt.Fprintln(cmd.OutOrStdout(), "no rules"); err != nil {
				return errs.Wrap(err, "write list output")
			}
			return nil
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		if _, err := fmt.Fprintln(w, "id\tname\tmode\tvalue\tactive\tfrom\tto\tcondition"); err != nil {
			return errs.Wrap(err, "write list header")
		}
		for _, rule := range rules {
			condition, err := rule.Condition.JSON()
			if err != nil {
				condition = "?"
			}
			if _, err := fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%t\t%s\t%s\t%s\n",
				rule.RuleID, rule.Name, rule.Mode, formatAmount(rule.Value), rule.Active,
				rule.EffectiveFrom, rule.EffectiveTo, condition); err != nil {
				return errs.Wrap(err, "write list row")
			}
		}
		return errs.Wrap(w.Flush(), "flush list output")
	}),
}

var ruleActivateCmd = &cobra.Command{
	Use:   "activate <rule-id>",
	Short: "Activate a commission rule",
	Args:  cobra.ExactArgs(1),
	RunE:  withApp(setRuleActive(true)),
}

var ruleDeactivateCmd = &cobra.Command{
	Use:   "deactivate <rule-id>",
	Short: "Deactivate a commission rule",
	Args:  cobra.ExactArgs(1),
	RunE:  withApp(setRuleActive(false)),
}

func setRuleActive(active bool) func(cmd *cobra.Command, app *bootstrap.App) error {
	return func(cmd *cobra.Command, app *bootstrap.App) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		ruleID, err := parseID(cmd.Flags().Arg(0))
		if err != nil {
			return err
		}
		if err := app.Tracker.SetRuleActive(ctx, ruleID, active, "cli"); err != nil {
			logging.Error(ctx, "set rule active failed", slog.Uint64("rule_id", ruleID), slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "set rule active")
		}

		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "rule %d active=%t\n", ruleID, active); err != nil {
			return errs.Wrap(err, "write rule output")
		}
		return nil
	}
}

var ruleImportCmd = &cobra.Command{
	Use:   "import <rules.toml>",
	Short: "Import [[rules]] entries from a TOML file in one transaction",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		path := cmd.Flags().Arg(0)
		raw, err := os.ReadFile(path)
		if err != nil {
			return errs.Wrapf(err, "read rules file %q", path)
		}

		rules, err := app.Tracker.ImportRules(ctx, raw, "cli")
		if err != nil {
			logging.Error(ctx, "import rules failed", slog.String("path", path), slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "import rules")
		}

		for _, rule := range rules {
			if _, err := fmt.Fprintf(cmd.OutOrStdout(), "imported rule: id=%d name=%s\n", rule.RuleID, rule.Name); err != nil {
				return errs.Wrap(err, "write import output")
			}
		}
		return nil
	}),
}

var rulePreviewCmd = &cobra.Command{
	Use:   "preview",
	Short: "Show the commission current rules give a hypothetical procedure",
	Example: `  orthotracker rule preview --attr procedure_type="Knee Arthroplasty" \
    --attr hospital="County Hospital" --attr revenue=200000`,
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		attrs, _ := cmd.Flags().GetStringToString("attr")
		atRaw, _ := cmd.Flags().GetString("at")
		at, err := parsePreviewAt(atRaw)
		if err != nil {
			return err
		}

		result, err := app.Tracker.PreviewCommission(ctx, attrs, at)
		if err != nil {
			logging.Error(ctx, "preview commission failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "preview commission")
		}
		return writeCommissionPreview(cmd.OutOrStdout(), result)
	}),
}

// parsePreviewAt returns the zero time for an empty value, which means now.
func parsePreviewAt(raw string) (time.Time, error) {
	if strings.TrimSpace(raw) == "" {
		return time.Time{}, nil
	}
	at, err := time.Parse(time.RFC3339, strings.TrimSpace(raw))
	if err != nil {
		return time.Time{}, errs.Wrapf(err, "parse --at %q", raw)
	}
	return at, nil
}

func writeCommissionPreview(out io.Writer, result tracker.PreviewResult) error {
	for _, part := range result.Contributions {
		if _, err := fmt.Fprintf(out, "rule %d %s (%s %s): %s\n",
			part.RuleID, part.Name, part.Mode, formatAmount(part.Value), formatAmount(part.Amount)); err != nil {
			return errs.Wrap(err, "write preview output")
		}
	}
	if len(result.UnknownAttributes) > 0 {
		if _, err := fmt.Fprintf(out, "ignored attributes: %s\n", strings.Join(result.UnknownAttributes, ",")); err != nil {
			return errs.Wrap(err, "write preview output")
		}
	}
	if _, err := fmt.Fprintf(out, "total commission: %s\n", formatAmount(result.Total)); err != nil {
		return errs.Wrap(err, "write preview output")
	}
	return nil
}

var ruleRecomputeCmd = &cobra.Command{
	Use:   "recompute",
	Short: "Recompute stored commissions with the current rules",
	PreRunE: func(cmd *cobra.Command, _ []string) error {
		_, err := recomputeTarget(cmd)
		return err
	},
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		procedureID, err := recomputeTarget(cmd)
		if err != nil {
			return err
		}

		result, err := app.Tracker.RecomputeCommission(ctx, tracker.RecomputeInput{ProcedureID: procedureID, Actor: "cli"})
		if err != nil {
			logging.Error(ctx, "recompute commission failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "recompute commission")
		}

		out := cmd.OutOrStdout()
		for _, change := range result.Changes {
			if _, err := fmt.Fprintf(out, "procedure %d: %s -> %s\n",
				change.ProcedureID, formatAmount(change.Old), formatAmount(change.New)); err != nil {
				return errs.Wrap(err, "write recompute output")
			}
		}
		if _, err := fmt.Fprintf(out, "updated %d commission(s)\n", result.Updated); err != nil {
			return errs.Wrap(err, "write recompute output")
		}
		return nil
	}),
}

// recomputeTarget returns the single procedure to recompute, or 0 for --all.
func recomputeTarget(cmd *cobra.Command) (uint64, error) {
	procedureID, _ := cmd.Flags().GetUint64("procedure")
	all, _ := cmd.Flags().GetBool("all")
	switch {
	case procedureID != 0 && all:
		return 0, errors.New("--procedure and --all are mutually exclusive")
	case procedureID == 0 && !all:
		return 0, errors.New("set --procedure or --all")
	}
	return procedureID, nil
}

func parseID(raw string) (uint64, error) {
	id, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid id %q", raw)
	}
	return id, nil
}

func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func init() {
	rootCmd.AddCommand(ruleCmd)
	ruleCmd.AddCommand(ruleAddCmd, ruleListCmd, ruleActivateCmd, ruleDeactivateCmd, ruleImportCmd, rulePreviewCmd, ruleRecomputeCmd)

	ruleAddCmd.Flags().String("name", "", "Rule name")
	ruleAddCmd.Flags().String("condition", "{}", `JSON object of attribute equalities, e.g. {"hospital":"County Hospital"}`)
	ruleAddCmd.Flags().String("mode", "percentage", "percentage|fixed")
	ruleAddCmd.Flags().Float64("value", 0, "Percent of revenue or fixed KSh amount")
	ruleAddCmd.Flags().Bool("inactive", false, "Store the rule deactivated")
	ruleAddCmd.Flags().String("from", "", "Effective from (RFC3339 or YYYY-MM-DD)")
	ruleAddCmd.Flags().String("to", "", "Effective to (RFC3339 or YYYY-MM-DD, inclusive)")
	_ = ruleAddCmd.MarkFlagRequired("name")
	_ = ruleAddCmd.MarkFlagRequired("value")

	rulePreviewCmd.Flags().StringToString("attr", nil, "Procedure attribute key=value (repeatable)")
	rulePreviewCmd.Flags().String("at", "", "Evaluate as of this RFC3339 instant (default now)")

	ruleRecomputeCmd.Flags().Uint64("procedure", 0, "Recompute a single procedure")
	ruleRecomputeCmd.Flags().Bool("all", false, "Recompute every procedure")
}
