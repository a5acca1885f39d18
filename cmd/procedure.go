package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"orthotracker/internal/bootstrap"
	"orthotracker/internal/bootstrap/logging"
	"orthotracker/internal/errs"
	"orthotracker/internal/usecase/tracker"
)

var procedureCmd = &cobra.Command{
	Use:     "procedure",
	Aliases: []string{"proc"},
	Short:   "Log and inspect procedures",
}

var procedureLogCmd = &cobra.Command{
	Use:   "log",
	Short: "Log a procedure and compute its commission",
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		input, err := procedureInputFromFlags(cmd)
		if err != nil {
			return err
		}

		result, err := app.Tracker.LogProcedure(ctx, input)
		if err != nil {
			logging.Error(ctx, "log procedure failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "log procedure")
		}

		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "logged procedure: id=%d commission=%s\n", result.ProcedureID, formatAmount(result.Commission)); err != nil {
			return errs.Wrap(err, "write log output")
		}
		return nil
	}),
}

var procedureListCmd = &cobra.Command{
	Use:   "list",
	Short: "List procedures, newest first",
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		rep, _ := cmd.Flags().GetString("rep")
		limit, _ := cmd.Flags().GetInt("limit")

		procedures, err := app.Tracker.ListProcedures(ctx, tracker.ProcedureFilter{RepEmail: rep, Limit: limit})
		if err != nil {
			logging.Error(ctx, "list procedures failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "list procedures")
		}
		return writeProcedureTable(cmd.OutOrStdout(), procedures)
	}),
}

var procedureShowCmd = &cobra.Command{
	Use:   "show <procedure-id>",
	Short: "Show one procedure with its attachments",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		procedureID, err := parseID(cmd.Flags().Arg(0))
		if err != nil {
			return err
		}
		detail, err := app.Tracker.GetProcedure(ctx, procedureID)
		if err != nil {
			logging.Error(ctx, "get procedure failed", slog.Uint64("procedure_id", procedureID), slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "get procedure")
		}

		out := cmd.OutOrStdout()
		p := detail.Procedure
		lines := []string{
			fmt.Sprintf("Procedure: %d", p.ProcedureID),
			fmt.Sprintf("Rep: %s (id=%d)", p.RepName, p.RepID),
			fmt.Sprintf("Hospital: %s", p.Hospital),
			fmt.Sprintf("Surgeon: %s", firstNonBlank(p.Surgeon, "-")),
			fmt.Sprintf("Type: %s", p.ProcedureType),
			fmt.Sprintf("Date: %s", p.Date),
			fmt.Sprintf("Revenue: %s", formatAmount(p.Revenue)),
			fmt.Sprintf("Commission: %s (calculated %s)", formatAmount(p.Commission), firstNonBlank(detail.CalculatedAt, "never")),
			fmt.Sprintf("Status: %s", p.Status),
			fmt.Sprintf("Notes: %s", firstNonBlank(p.Notes, "-")),
		}
		for _, line := range lines {
			if _, err := fmt.Fprintln(out, line); err != nil {
				return errs.Wrap(err, "write show output")
			}
		}

		if len(detail.Attachments) == 0 {
			if _, err := fmt.Fprintln(out, "\nAttachments: none"); err != nil {
				return errs.Wrap(err, "write show output")
			}
			return nil
		}
		if _, err := fmt.Fprintln(out, "\nAttachments:"); err != nil {
			return errs.Wrap(err, "write show output")
		}
		for _, attachment := range detail.Attachments {
			if _, err := fmt.Fprintf(out, "- %s %s (%s)\n", attachment.Filename, attachment.Location, attachment.UploadedAt); err != nil {
				return errs.Wrap(err, "write show output")
			}
		}
		return nil
	}),
}

var procedureExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export procedures with commissions as CSV",
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		rep, _ := cmd.Flags().GetString("rep")
		outPath, _ := cmd.Flags().GetString("out")

		var w io.Writer = cmd.OutOrStdout()
		if outPath != "" && outPath != "-" {
			file, err := os.Create(outPath)
			if err != nil {
				return errs.Wrapf(err, "create export file %q", outPath)
			}
			defer file.Close()
			w = file
		}

		if err := app.Tracker.ExportProceduresCSV(ctx, w, tracker.ProcedureFilter{RepEmail: rep}); err != nil {
			logging.Error(ctx, "export procedures failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "export procedures")
		}
		if outPath != "" && outPath != "-" {
			logging.Info(ctx, "procedures exported", slog.String("path", outPath))
		}
		return nil
	}),
}

// procedureInputFromFlags reads the flags shared by `procedure log` and
// `queue add`. Attachments are read from local paths.
func procedureInputFromFlags(cmd *cobra.Command) (tracker.ProcedureInput, error) {
	rep, _ := cmd.Flags().GetString("rep")
	repName, _ := cmd.Flags().GetString("rep-name")
	hospital, _ := cmd.Flags().GetString("hospital")
	surgeon, _ := cmd.Flags().GetString("surgeon")
	procedureType, _ := cmd.Flags().GetString("type")
	date, _ := cmd.Flags().GetString("date")
	revenue, _ := cmd.Flags().GetFloat64("revenue")
	notes, _ := cmd.Flags().GetString("notes")
	files, _ := cmd.Flags().GetStringArray("attach")

	uploads := make([]tracker.AttachmentUpload, 0, len(files))
	for _, path := range files {
		body, err := os.ReadFile(path)
		if err != nil {
			return tracker.ProcedureInput{}, errs.Wrapf(err, "read attachment %q", path)
		}
		uploads = append(uploads, tracker.AttachmentUpload{Filename: filepath.Base(path), Body: body})
	}

	return tracker.ProcedureInput{
		RepEmail:      rep,
		RepName:       repName,
		Hospital:      hospital,
		Surgeon:       surgeon,
		ProcedureType: procedureType,
		Date:          date,
		Revenue:       revenue,
		Notes:         notes,
		Attachments:   uploads,
	}, nil
}

func addProcedureInputFlags(c *cobra.Command) {
	c.Flags().String("rep", "", "Rep email")
	c.Flags().String("rep-name", "", "Rep display name (defaults to the account name)")
	c.Flags().String("hospital", "", "Hospital name")
	c.Flags().String("surgeon", "", "Surgeon name")
	c.Flags().String("type", "", "Procedure type, e.g. \"Knee Arthroplasty\"")
	c.Flags().String("date", "", "Procedure date YYYY-MM-DD (default today)")
	c.Flags().Float64("revenue", 0, "Revenue in KSh")
	c.Flags().String("notes", "", "Free-text notes")
	c.Flags().StringArray("attach", nil, "Attachment file path (repeatable)")
	_ = c.MarkFlagRequired("rep")
	_ = c.MarkFlagRequired("hospital")
	_ = c.MarkFlagRequired("type")
}

func writeProcedureTable(out io.Writer, procedures []tracker.ProcedureView) error {
	if len(procedures) == 0 {
		if _, err := fmt.Fprintln(out, "no procedures"); err != nil {
			return errs.Wrap(err, "write list output")
		}
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	if _, err := fmt.Fprintln(w, "id\tdate\trep\thospital\ttype\trevenue\tcommission\tstatus"); err != nil {
		return errs.Wrap(err, "write list header")
	}
	for _, p := range procedures {
		if _, err := fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			p.ProcedureID, p.Date, p.RepName, p.Hospital, p.ProcedureType,
			formatAmount(p.Revenue), formatAmount(p.Commission), p.Status); err != nil {
			return errs.Wrap(err, "write list row")
		}
	}
	return errs.Wrap(w.Flush(), "flush list output")
}

func firstNonBlank(values ...string) string {
	for _, value := range values {
		if value != "" {
			return value
		}
	}
	return ""
}

func init() {
	rootCmd.AddCommand(procedureCmd)
	procedureCmd.AddCommand(procedureLogCmd, procedureListCmd, procedureShowCmd, procedureExportCmd)

	addProcedureInputFlags(procedureLogCmd)

	procedureListCmd.Flags().String("rep", "", "Only procedures of this rep email")
	procedureListCmd.Flags().Int("limit", 0, "Maximum rows (0 means all)")

	procedureExportCmd.Flags().String("rep", "", "Only procedures of this rep email")
	procedureExportCmd.Flags().String("out", "-", "Output file (- for stdout)")
}
