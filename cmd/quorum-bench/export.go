package main

import (
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"quorum-bench/logparse"
	"quorum-bench/storage"
)

func newExportCmd(a *app) *cobra.Command {
	var configLog, outputPath string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the tagged sweep records to a Parquet file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if configLog == "" {
				configLog = a.cfg.Logs.ConfigLogPath
			}

			records, err := logparse.ReadConfigLog(configLog)
			if errors.Is(err, logparse.ErrNoData) {
				return errors.Errorf("no sweep log at %s", configLog)
			}
			if err != nil {
				return err
			}

			written, err := storage.ExportRecords(outputPath, records)
			if err != nil {
				return err
			}
			a.logger.WithFields(logrus.Fields{"path": outputPath, "rows": written}).Info("Exported sweep records")
			a.upload(cmd.Context(), []string{outputPath})
			return nil
		},
	}

	cmd.Flags().StringVar(&configLog, "config-log", "", "configuration sweep log (default QB_CONFIG_LOG)")
	cmd.Flags().StringVar(&outputPath, "out", "latency_configs.parquet", "Parquet output path")
	return cmd
}
