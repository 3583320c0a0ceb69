// Package orchestrator runs the external quorum benchmark across a catalogue
// of configurations, one invocation at a time, and materializes the basic
// and sweep latency logs.
package orchestrator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	quorumbench "quorum-bench"
	"quorum-bench/instances"
	"quorum-bench/logparse"
	"quorum-bench/stats"
	"quorum-bench/storage"
)

// DefaultTimeout is the wall-clock ceiling of a single invocation
const DefaultTimeout = 300 * time.Second

var (
	// ErrBasicRunFailed aborts the pipeline: without a baseline nothing downstream is comparable
	ErrBasicRunFailed = errors.New("basic benchmark run failed")
	// ErrArtifactMissing means the process exited cleanly but left no latency log
	ErrArtifactMissing = errors.New("benchmark produced no latency artifact")
	// ErrArtifactEmpty means the latency log exists but holds no lines
	ErrArtifactEmpty = errors.New("benchmark latency artifact is empty")
)

// MetricsSink receives per-run measurements. *storage.PrometheusExporter implements it.
type MetricsSink interface {
	RecordRun(key quorumbench.ConfigurationKey, state string, duration time.Duration)
	ObserveRecords(key quorumbench.ConfigurationKey, records []quorumbench.LatencyRecord)
	UpdateSummary(key quorumbench.ConfigurationKey, op quorumbench.Operation, summary quorumbench.PercentileSummary)
	UpdateHostStats(key quorumbench.ConfigurationKey, cpuUtilization, memoryUsage float64)
}

// HostSampler samples host utilization. *instances.HostMonitor implements it.
type HostSampler interface {
	GetSystemStats() (*instances.SystemStats, error)
}

// Options configures a sweep
type Options struct {
	// Binary is the benchmark executable, a path or a name looked up in PATH
	Binary string
	// WorkDir is the working directory of the benchmark; it writes ArtifactName there
	WorkDir      string
	ArtifactName string

	BasicLogPath  string
	ConfigLogPath string

	BasicOperations int
	Catalogue       []RunConfig
	Timeout         time.Duration

	// BasicLogEarly writes the basic log before the sweep starts instead of
	// after it completes
	BasicLogEarly bool
}

// ArtifactPath is where the benchmark leaves its latency log
func (o Options) ArtifactPath() string {
	return filepath.Join(o.WorkDir, o.ArtifactName)
}

// Validate checks the options before anything is launched
func (o Options) Validate() error {
	if o.Binary == "" {
		return errors.New("benchmark binary is required")
	}
	if o.ArtifactName == "" {
		return errors.New("artifact name is required")
	}
	if o.BasicLogPath == "" || o.ConfigLogPath == "" {
		return errors.New("basic and config log paths are required")
	}
	if o.BasicOperations <= 0 {
		return errors.New("basic operation count must be positive")
	}
	if o.Timeout <= 0 {
		return errors.New("timeout must be positive")
	}
	if o.BasicLogEarly && samePath(o.BasicLogPath, o.ArtifactPath()) {
		return errors.Errorf("basic log %s is the benchmark artifact; writing it before the sweep would be overwritten", o.BasicLogPath)
	}
	return ValidateCatalogue(o.Catalogue)
}

func samePath(a, b string) bool {
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	if errA != nil || errB != nil {
		return filepath.Clean(a) == filepath.Clean(b)
	}
	return absA == absB
}

// RunOutcome is the terminal result of one invocation
type RunOutcome struct {
	Config   RunConfig
	State    RunState
	Lines    []string
	Records  []quorumbench.LatencyRecord
	Stdout   string
	Stderr   string
	Err      error
	Duration time.Duration
}

// SweepResult summarizes a full pipeline run
type SweepResult struct {
	Basic         RunOutcome
	Outcomes      []RunOutcome
	LinesWritten  int
	BasicLogPath  string
	ConfigLogPath string
}

// Failed returns the sweep entries that did not complete
func (r SweepResult) Failed() []RunOutcome {
	var out []RunOutcome
	for _, o := range r.Outcomes {
		if !o.State.Succeeded() {
			out = append(out, o)
		}
	}
	return out
}

// Completed returns the number of sweep entries that completed
func (r SweepResult) Completed() int {
	return len(r.Outcomes) - len(r.Failed())
}

// Orchestrator drives the benchmark binary
type Orchestrator struct {
	opts    Options
	runner  ProcessRunner
	logger  logrus.FieldLogger
	metrics MetricsSink
	host    HostSampler
}

// New creates an orchestrator
func New(opts Options, runner ProcessRunner, logger logrus.FieldLogger) *Orchestrator {
	if opts.Timeout == 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.WorkDir == "" {
		opts.WorkDir = "."
	}
	return &Orchestrator{
		opts:   opts,
		runner: runner,
		logger: logger,
	}
}

// WithMetrics attaches a metrics sink
func (o *Orchestrator) WithMetrics(m MetricsSink) *Orchestrator {
	o.metrics = m
	return o
}

// WithHostSampler attaches a host sampler, consulted after every invocation
func (o *Orchestrator) WithHostSampler(h HostSampler) *Orchestrator {
	o.host = h
	return o
}

// Run executes the basic run, then every catalogue entry in order, and writes
// both logs. Only a failed basic run or an unwritable log is fatal; failing
// sweep entries are recorded and skipped.
func (o *Orchestrator) Run(ctx context.Context) (SweepResult, error) {
	result := SweepResult{
		BasicLogPath:  o.opts.BasicLogPath,
		ConfigLogPath: o.opts.ConfigLogPath,
	}
	if err := o.opts.Validate(); err != nil {
		return result, errors.Wrap(err, "invalid sweep options")
	}

	basic := BasicRun(o.opts.BasicOperations)
	o.logger.WithFields(logrus.Fields{
		"operations": basic.Operations,
		"n":          basic.Key.N,
		"w":          basic.Key.W,
		"r":          basic.Key.R,
	}).Info("Running basic latency test")

	result.Basic = o.RunOne(ctx, basic)
	if FatalForBasic(result.Basic.State) {
		return result, errors.Wrapf(ErrBasicRunFailed, "%s: %v", result.Basic.State, result.Basic.Err)
	}
	o.logger.WithField("records", len(result.Basic.Records)).Info("Basic run complete")

	if o.opts.BasicLogEarly {
		if err := storage.WriteBasicLog(o.opts.BasicLogPath, result.Basic.Lines); err != nil {
			return result, err
		}
	}

	sweepLog, err := storage.OpenSweepLog(o.opts.ConfigLogPath)
	if err != nil {
		return result, err
	}

	total := len(o.opts.Catalogue)
	o.logger.WithField("configurations", total).Info("Running configuration comparison")

	for i, rc := range o.opts.Catalogue {
		if ctx.Err() != nil {
			sweepLog.Close()
			return result, errors.Wrap(ctx.Err(), "sweep interrupted")
		}

		outcome := o.RunOne(ctx, rc)
		result.Outcomes = append(result.Outcomes, outcome)

		entry := o.logger.WithFields(logrus.Fields{
			"config":   rc.Key.Name,
			"progress": progress(i+1, total),
			"state":    outcome.State.String(),
		})
		if !outcome.State.Succeeded() {
			entry.WithError(outcome.Err).Warn("✗ FAILED")
			continue
		}

		written, err := sweepLog.Append(rc.Key, outcome.Lines)
		if err != nil {
			sweepLog.Close()
			return result, err
		}
		result.LinesWritten += written
		entry.WithField("lines", written).Info("✓")
	}

	if err := sweepLog.Close(); err != nil {
		return result, err
	}

	if !o.opts.BasicLogEarly {
		if err := storage.WriteBasicLog(o.opts.BasicLogPath, result.Basic.Lines); err != nil {
			return result, err
		}
	}

	o.logger.WithFields(logrus.Fields{
		"basic_log":  o.opts.BasicLogPath,
		"config_log": sweepLog.Path(),
		"completed":  result.Completed(),
		"failed":     len(result.Failed()),
		"lines":      sweepLog.Lines(),
	}).Info("All benchmarks complete")

	return result, nil
}

// RunOne performs a single invocation and returns its terminal outcome. It
// never returns a non-terminal state.
func (o *Orchestrator) RunOne(ctx context.Context, rc RunConfig) (outcome RunOutcome) {
	outcome = RunOutcome{Config: rc, State: Idle}
	start := time.Now()
	defer func() {
		outcome.Duration = time.Since(start)
		o.observe(outcome)
	}()

	binary, err := resolveBinary(o.opts.Binary)
	if err != nil {
		outcome.fail(EventBinaryAbsent, err)
		return outcome
	}

	artifact := o.opts.ArtifactPath()
	if err := os.Remove(artifact); err != nil && !os.IsNotExist(err) {
		outcome.fail(EventLaunchFailed, errors.Wrapf(err, "failed to remove stale artifact %s", artifact))
		return outcome
	}

	outcome.advance(EventLaunch)

	// once launched, only the timeout ends the run
	runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.opts.Timeout)
	defer cancel()

	stdout, stderr, err := o.runner.Run(runCtx, o.opts.WorkDir, binary, rc.Args()...)
	outcome.Stdout = string(stdout)
	outcome.Stderr = strings.TrimSpace(string(stderr))

	switch {
	case errors.Is(runCtx.Err(), context.DeadlineExceeded):
		outcome.fail(EventDeadline, errors.Errorf("timed out after %s", o.opts.Timeout))
		return outcome
	case err != nil && isMissingBinary(err):
		outcome.fail(EventBinaryAbsent, err)
		return outcome
	case err != nil:
		if outcome.Stderr != "" {
			err = errors.Wrap(err, outcome.Stderr)
		}
		outcome.fail(EventExitFailed, err)
		return outcome
	}

	lines, err := logparse.ReadLines(artifact)
	if err != nil {
		if errors.Is(err, logparse.ErrNoData) {
			err = errors.Wrap(ErrArtifactMissing, artifact)
		}
		outcome.fail(EventExitFailed, err)
		return outcome
	}
	if len(lines) == 0 {
		outcome.fail(EventExitFailed, errors.Wrap(ErrArtifactEmpty, artifact))
		return outcome
	}

	outcome.advance(EventExitOK)
	outcome.Lines = lines
	outcome.Records = logparse.ParseLines(lines)
	o.logger.WithFields(logrus.Fields{
		"config": rc.Key.Name,
		"format": logparse.LineFormat(lines[0]),
	}).Debug(outcome.Stdout)
	return outcome
}

func (ro *RunOutcome) advance(e Event) {
	next, err := Transition(ro.State, e)
	if err != nil {
		// the call sites above only fire events valid for the current state
		panic(err)
	}
	ro.State = next
}

func (ro *RunOutcome) fail(e Event, err error) {
	ro.advance(e)
	ro.Err = err
}

func (o *Orchestrator) observe(outcome RunOutcome) {
	if o.metrics == nil && o.host == nil {
		return
	}
	key := outcome.Config.Key

	if o.host != nil {
		if s, err := o.host.GetSystemStats(); err == nil && o.metrics != nil {
			o.metrics.UpdateHostStats(key, s.CPUUtilization, s.MemoryUsage)
		} else if err != nil {
			o.logger.WithError(err).Debug("host stats unavailable")
		}
	}
	if o.metrics == nil {
		return
	}

	o.metrics.RecordRun(key, outcome.State.String(), outcome.Duration)
	if !outcome.State.Succeeded() {
		return
	}
	o.metrics.ObserveRecords(key, outcome.Records)
	for _, op := range quorumbench.Operations {
		var values []float64
		for _, rec := range outcome.Records {
			if rec.Operation == op {
				values = append(values, rec.LatencyMs)
			}
		}
		o.metrics.UpdateSummary(key, op, stats.Summarize(values))
	}
}

func progress(i, total int) string {
	return fmt.Sprintf("%d/%d", i, total)
}
