package main

import (
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"quorum-bench/instances"
	"quorum-bench/orchestrator"
	"quorum-bench/storage"
)

func newSweepCmd(a *app) *cobra.Command {
	var (
		binary          string
		workDir         string
		basicOps        int
		sweepOps        int
		timeout         time.Duration
		basicLogEarly   bool
		generateReports bool
	)

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Run the basic benchmark and the quorum configuration sweep",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.cfg
			flags := cmd.Flags()
			if flags.Changed("binary") {
				cfg.Benchmark.Binary = binary
			}
			if flags.Changed("workdir") {
				cfg.Benchmark.WorkDir = workDir
			}
			if flags.Changed("basic-ops") {
				cfg.Benchmark.BasicOperations = basicOps
			}
			if flags.Changed("sweep-ops") {
				cfg.Benchmark.SweepOperations = sweepOps
			}
			if flags.Changed("timeout") {
				cfg.Benchmark.Timeout = timeout
			}
			if flags.Changed("basic-log-early") {
				cfg.Logs.BasicLogEarly = basicLogEarly
			}
			if err := cfg.ValidateSweep(); err != nil {
				return err
			}

			opts := orchestrator.Options{
				Binary:          cfg.Benchmark.Binary,
				WorkDir:         cfg.Benchmark.WorkDir,
				ArtifactName:    cfg.Benchmark.ArtifactName,
				BasicLogPath:    cfg.Logs.BasicLogPath,
				ConfigLogPath:   cfg.Logs.ConfigLogPath,
				BasicOperations: cfg.Benchmark.BasicOperations,
				Catalogue:       orchestrator.DefaultCatalogue(cfg.Benchmark.SweepOperations),
				Timeout:         cfg.Benchmark.Timeout,
				BasicLogEarly:   cfg.Logs.BasicLogEarly,
			}

			exporter := storage.NewPrometheusExporter()
			o := orchestrator.New(opts, orchestrator.ExecRunner{}, a.logger).WithMetrics(exporter)
			if cfg.Metrics.HostStats {
				monitor := instances.NewHostMonitor()
				o.WithHostSampler(monitor)
				a.logger.WithField("instance", monitor.GetInstanceType()).Info("Sampling host utilization")
			}

			if cfg.Metrics.Addr != "" {
				go func() {
					if err := exporter.StartServer(cfg.Metrics.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
						a.logger.WithError(err).Error("Metrics server stopped")
					}
				}()
				a.logger.WithField("addr", cfg.Metrics.Addr).Info("Serving /metrics")
			}

			result, err := o.Run(cmd.Context())

			if cfg.Metrics.TextfilePath != "" {
				if werr := exporter.WriteTextfile(cfg.Metrics.TextfilePath); werr != nil {
					a.logger.WithError(werr).Error("Failed to write metrics textfile")
				}
			}
			if err != nil {
				return err
			}

			for _, failed := range result.Failed() {
				a.logger.WithField("config", failed.Config.Key.Name).WithError(failed.Err).Warn(failed.State.String())
			}

			files := []string{result.BasicLogPath, result.ConfigLogPath}
			if generateReports {
				report, err := runReport(a, result.BasicLogPath, result.ConfigLogPath, cfg.Report.OutputDir)
				if err != nil {
					return err
				}
				files = append(files, report.Files...)
			}
			a.upload(cmd.Context(), files)
			return nil
		},
	}

	cmd.Flags().StringVar(&binary, "binary", "", "benchmark executable (overrides QB_BINARY)")
	cmd.Flags().StringVar(&workDir, "workdir", "", "working directory of the benchmark (overrides QB_WORKDIR)")
	cmd.Flags().IntVar(&basicOps, "basic-ops", orchestrator.DefaultBasicOperations, "operations of the basic run")
	cmd.Flags().IntVar(&sweepOps, "sweep-ops", orchestrator.DefaultSweepOperations, "operations of every sweep run")
	cmd.Flags().DurationVar(&timeout, "timeout", orchestrator.DefaultTimeout, "per-invocation timeout")
	cmd.Flags().BoolVar(&basicLogEarly, "basic-log-early", false, "write the basic log before the sweep starts")
	cmd.Flags().BoolVar(&generateReports, "report", false, "render the charts once the sweep completes")
	return cmd
}
