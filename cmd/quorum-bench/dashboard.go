package main

import (
	"github.com/spf13/cobra"

	"quorum-bench/visualisation"
)

func newDashboardCmd(a *app) *cobra.Command {
	var outputPath string

	cmd := &cobra.Command{
		Use:   "dashboard",
		Short: "Write a Grafana dashboard for the sweep metrics",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := visualisation.SaveDashboard(visualisation.CreateSweepDashboard(), outputPath); err != nil {
				return err
			}
			a.logger.WithField("path", outputPath).Info("Dashboard saved; import it into Grafana")
			return nil
		},
	}

	cmd.Flags().StringVar(&outputPath, "out", "grafana/quorum-bench-dashboard.json", "dashboard JSON path")
	return cmd
}
