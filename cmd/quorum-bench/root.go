package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"quorum-bench/config"
	"quorum-bench/instances"
)

// app carries the configuration loaded before any subcommand runs
type app struct {
	cfg    *config.Config
	logger *logrus.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}
	var logLevel string

	cmd := &cobra.Command{
		Use:           "quorum-bench",
		Short:         "Quorum configuration latency sweeps and reports",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// sweep validates again once its own flags are applied
			cfg, err := config.Parse(nil)
			if err != nil {
				return err
			}
			if logLevel != "" {
				cfg.LogLevel = logLevel
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			a.cfg = cfg
			a.logger = cfg.Logger()
			return nil
		},
	}
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "silent|error|warn|info|debug (overrides QB_LOG_LEVEL)")

	cmd.AddCommand(newSweepCmd(a))
	cmd.AddCommand(newReportCmd(a))
	cmd.AddCommand(newDashboardCmd(a))
	cmd.AddCommand(newExportCmd(a))
	return cmd
}

// Execute runs the command line and exits non-zero on any returned error
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := execute(ctx, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func execute(ctx context.Context, args []string) error {
	cmd := newRootCmd()
	cmd.SetArgs(args)
	return cmd.ExecuteContext(ctx)
}

// uploader returns nil when no upload target is configured
func (a *app) uploader(ctx context.Context) (*instances.Uploader, error) {
	u := a.cfg.Upload
	switch u.Kind {
	case "s3":
		return instances.NewS3Uploader(ctx, u.Region, u.Bucket, u.Prefix)
	case "r2":
		return instances.NewR2Uploader(ctx, u.R2AccountID, u.R2AccessKeyID, u.R2SecretAccessKey, u.Bucket, u.Prefix)
	default:
		return nil, nil
	}
}

// upload pushes files to the configured bucket; a failed upload is logged, not fatal
func (a *app) upload(ctx context.Context, files []string) {
	if !a.cfg.Upload.Enabled() || len(files) == 0 {
		return
	}
	u, err := a.uploader(ctx)
	if err != nil {
		a.logger.WithError(err).Error("Failed to create uploader")
		return
	}
	for _, f := range files {
		key := u.ObjectKey(f)
		if exists, err := u.ObjectExists(ctx, key); err == nil && exists {
			a.logger.WithField("key", key).Warn("Replacing existing object")
		}
	}
	keys, err := u.UploadFiles(ctx, files)
	if err != nil {
		a.logger.WithError(err).Error("Upload failed")
		return
	}
	a.logger.WithFields(logrus.Fields{
		"endpoint": u.GetEndpoint(),
		"bucket":   a.cfg.Upload.Bucket,
		"objects":  len(keys),
	}).Info("Uploaded artifacts")
}
