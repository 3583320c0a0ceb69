package main

import (
	"github.com/spf13/cobra"

	"quorum-bench/visualisation"
)

func runReport(a *app, basicLog, configLog, outDir string) (*visualisation.Report, error) {
	report, err := visualisation.NewBuilder(outDir, a.logger).Build(basicLog, configLog)
	if err != nil {
		return nil, err
	}
	a.logger.WithField("charts", len(report.Files)).Info("Total charts generated")
	return report, nil
}

func newReportCmd(a *app) *cobra.Command {
	var basicLog, configLog, outDir string

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Render latency charts from the basic and sweep logs",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("basic-log") {
				basicLog = a.cfg.Logs.BasicLogPath
			}
			if !cmd.Flags().Changed("config-log") {
				configLog = a.cfg.Logs.ConfigLogPath
			}
			if !cmd.Flags().Changed("out") {
				outDir = a.cfg.Report.OutputDir
			}

			report, err := runReport(a, basicLog, configLog, outDir)
			if err != nil {
				return err
			}
			a.upload(cmd.Context(), report.Files)
			return nil
		},
	}

	cmd.Flags().StringVar(&basicLog, "basic-log", "", "basic latency log (default QB_BASIC_LOG)")
	cmd.Flags().StringVar(&configLog, "config-log", "", "configuration sweep log (default QB_CONFIG_LOG)")
	cmd.Flags().StringVar(&outDir, "out", "", "chart output directory (default QB_REPORT_DIR)")
	return cmd
}
