package cmd

import (
	"fmt"
	"log/slog"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"orthotracker/internal/bootstrap"
	"orthotracker/internal/bootstrap/logging"
	"orthotracker/internal/errs"
	"orthotracker/internal/usecase/tracker"
)

var hospitalCmd = &cobra.Command{
	Use:   "hospital",
	Short: "Manage hospitals",
}

var hospitalAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a hospital",
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		name, _ := cmd.Flags().GetString("name")
		address, _ := cmd.Flags().GetString("address")
		lat, _ := cmd.Flags().GetString("lat")
		lng, _ := cmd.Flags().GetString("lng")

		hospital, err := app.Tracker.AddHospital(ctx, tracker.HospitalInput{
			Name:    name,
			Address: address,
			GeoLat:  lat,
			GeoLng:  lng,
			Actor:   "cli",
		})
		if err != nil {
			logging.Error(ctx, "add hospital failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "add hospital")
		}

		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "added hospital: id=%d name=%s\n", hospital.HospitalID, hospital.Name); err != nil {
			return errs.Wrap(err, "write hospital output")
		}
		return nil
	}),
}

var hospitalListCmd = &cobra.Command{
	Use:   "list",
	Short: "List hospitals",
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		hospitals, err := app.Tracker.ListHospitals(ctx)
		if err != nil {
			logging.Error(ctx, "list hospitals failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "list hospitals")
		}
		if len(hospitals) == 0 {
			if _, err := fmt.Fprintln(cmd.OutOrStdout(), "no hospitals"); err != nil {
				return errs.Wrap(err, "write list output")
			}
			return nil
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		if _, err := fmt.Fprintln(w, "id\tname\taddress\tlat\tlng"); err != nil {
			return errs.Wrap(err, "write list header")
		}
		for _, hospital := range hospitals {
			if _, err := fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n",
				hospital.HospitalID, hospital.Name, hospital.Address, hospital.GeoLat, hospital.GeoLng); err != nil {
				return errs.Wrap(err, "write list row")
			}
		}
		return errs.Wrap(w.Flush(), "flush list output")
	}),
}

var surgeonCmd = &cobra.Command{
	Use:   "surgeon",
	Short: "Manage surgeons",
}

var surgeonAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a surgeon, optionally linked to a hospital",
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		name, _ := cmd.Flags().GetString("name")
		hospitalID, _ := cmd.Flags().GetUint64("hospital-id")

		surgeon, err := app.Tracker.AddSurgeon(ctx, tracker.SurgeonInput{
			Name:       name,
			HospitalID: hospitalID,
			Actor:      "cli",
		})
		if err != nil {
			logging.Error(ctx, "add surgeon failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "add surgeon")
		}

		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "added surgeon: id=%d name=%s hospital_id=%d\n", surgeon.SurgeonID, surgeon.Name, surgeon.HospitalID); err != nil {
			return errs.Wrap(err, "write surgeon output")
		}
		return nil
	}),
}

var surgeonListCmd = &cobra.Command{
	Use:   "list",
	Short: "List surgeons",
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		hospitalID, _ := cmd.Flags().GetUint64("hospital-id")
		surgeons, err := app.Tracker.ListSurgeons(ctx, hospitalID)
		if err != nil {
			logging.Error(ctx, "list surgeons failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "list surgeons")
		}
		if len(surgeons) == 0 {
			if _, err := fmt.Fprintln(cmd.OutOrStdout(), "no surgeons"); err != nil {
				return errs.Wrap(err, "write list output")
			}
			return nil
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		if _, err := fmt.Fprintln(w, "id\tname\thospital_id"); err != nil {
			return errs.Wrap(err, "write list header")
		}
		for _, surgeon := range surgeons {
			if _, err := fmt.Fprintf(w, "%d\t%s\t%d\n", surgeon.SurgeonID, surgeon.Name, surgeon.HospitalID); err != nil {
				return errs.Wrap(err, "write list row")
			}
		}
		return errs.Wrap(w.Flush(), "flush list output")
	}),
}

func init() {
	rootCmd.AddCommand(hospitalCmd, surgeonCmd)
	hospitalCmd.AddCommand(hospitalAddCmd, hospitalListCmd)
	surgeonCmd.AddCommand(surgeonAddCmd, surgeonListCmd)

	hospitalAddCmd.Flags().String("name", "", "Hospital name")
	hospitalAddCmd.Flags().String("address", "", "Street address")
	hospitalAddCmd.Flags().String("lat", "", "Latitude")
	hospitalAddCmd.Flags().String("lng", "", "Longitude")
	_ = hospitalAddCmd.MarkFlagRequired("name")

	surgeonAddCmd.Flags().String("name", "", "Surgeon name")
	surgeonAddCmd.Flags().Uint64("hospital-id", 0, "Hospital the surgeon operates at")
	_ = surgeonAddCmd.MarkFlagRequired("name")

	surgeonListCmd.Flags().Uint64("hospital-id", 0, "Only surgeons of this hospital")
}
