package visualisation

import (
	"os"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	quorumbench "quorum-bench"
	"quorum-bench/aggregate"
	"quorum-bench/logparse"
)

// Report stage names
const (
	StageBasic  = "basic"
	StageConfig = "config"
	StageQuorum = "quorum"
)

// Report lists what a Build produced
type Report struct {
	Files   []string
	Skipped []string
	// Conflicts holds the sweep records rejected because their configuration
	// name and quorum triple disagreed with earlier records
	Conflicts []error
}

// Builder renders the charts of a basic log and a sweep log into one directory
type Builder struct {
	dir    string
	logger logrus.FieldLogger
}

func NewBuilder(dir string, logger logrus.FieldLogger) *Builder {
	return &Builder{dir: dir, logger: logger}
}

// Build runs the three report stages. A missing or empty log skips the stages
// depending on it; the quorum stage is skipped when no N=20 configuration ran.
func (b *Builder) Build(basicLogPath, configLogPath string) (*Report, error) {
	if err := os.MkdirAll(b.dir, 0755); err != nil {
		return nil, errors.Wrapf(err, "failed to create report directory %s", b.dir)
	}
	report := &Report{}

	b.logger.WithField("log", basicLogPath).Info("1. Generating basic latency charts")
	records, err := logparse.ReadBasicLog(basicLogPath)
	if err != nil && !errors.Is(err, logparse.ErrNoData) {
		return report, err
	}
	if len(records) == 0 {
		b.skip(report, StageBasic, "No basic latency data found")
	} else {
		files, err := b.BasicCharts(aggregate.FromBasic(records))
		report.Files = append(report.Files, files...)
		if err != nil {
			return report, err
		}
		b.logger.WithField("charts", len(files)).Info("Generated basic charts")
	}

	b.logger.WithField("log", configLogPath).Info("2. Generating configuration comparison charts")
	tagged, err := logparse.ReadConfigLog(configLogPath)
	if err != nil && !errors.Is(err, logparse.ErrNoData) {
		return report, err
	}
	agg := aggregate.New()
	for _, conflict := range agg.AddAll(tagged) {
		b.logger.WithError(conflict).Warn("Rejected sweep record")
		report.Conflicts = append(report.Conflicts, conflict)
	}
	agg.Freeze()

	if agg.Len() == 0 {
		b.skip(report, StageConfig, "No configuration data found")
		b.skip(report, StageQuorum, "No configuration data found")
		return report, nil
	}
	files, err := b.ConfigCharts(agg)
	report.Files = append(report.Files, files...)
	if err != nil {
		return report, err
	}
	b.logger.WithFields(logrus.Fields{"charts": len(files), "configurations": agg.Len()}).Info("Generated config comparison charts")

	b.logger.Info("3. Generating N=20 analysis charts")
	view := agg.QuorumSweep()
	if view.Empty() {
		b.skip(report, StageQuorum, "No N=20 configurations found")
		return report, nil
	}
	files, err = b.QuorumCharts(view)
	report.Files = append(report.Files, files...)
	if err != nil {
		return report, err
	}
	b.logger.WithField("charts", len(files)).Info("Generated N=20 charts")

	return report, nil
}

func (b *Builder) skip(report *Report, stage, reason string) {
	report.Skipped = append(report.Skipped, stage)
	b.logger.WithField("stage", stage).Warn("Skipped: " + reason)
}

// BasicCharts renders the two histograms, the percentile comparison and the CDF
func (b *Builder) BasicCharts(agg *aggregate.Aggregator) ([]string, error) {
	get := agg.Samples(quorumbench.OpGet)
	put := agg.Samples(quorumbench.OpPut)

	renders := []func() (string, error){
		func() (string, error) {
			return HistogramChart(b.dir, ReadHistogramFile, "Read Latency Distribution", get, getColor)
		},
		func() (string, error) {
			return HistogramChart(b.dir, WriteHistogramFile, "Write Latency Distribution", put, putColor)
		},
		func() (string, error) { return PercentileChart(b.dir, get, put) },
		func() (string, error) { return CDFChart(b.dir, get, put) },
	}
	return b.render(renders)
}

// ConfigCharts renders the per-configuration charts, ordered by ascending W
func (b *Builder) ConfigCharts(agg *aggregate.Aggregator) ([]string, error) {
	buckets := agg.ByConfiguration()
	for _, bucket := range buckets {
		b.logger.WithFields(logrus.Fields{"config": bucket.Key.Name, "records": bucket.Total()}).Debug("Configuration bucket")
	}

	renders := []func() (string, error){
		func() (string, error) { return BoxplotChart(b.dir, GetBoxplotFile, quorumbench.OpGet, buckets) },
		func() (string, error) { return BoxplotChart(b.dir, PutBoxplotFile, quorumbench.OpPut, buckets) },
		func() (string, error) { return MedianChart(b.dir, buckets) },
		func() (string, error) { return P99Chart(b.dir, buckets) },
	}
	return b.render(renders)
}

// QuorumCharts renders the varying-R and varying-W charts for the non-empty sub-views
func (b *Builder) QuorumCharts(view aggregate.QuorumSweep) ([]string, error) {
	var renders []func() (string, error)
	if len(view.VaryingR) > 0 {
		renders = append(renders, func() (string, error) {
			return QuorumChart(b.dir, VaryingRFile, "N=20, W=10: Latency vs Read Quorum (R)", "Read Quorum (R)", view.VaryingR)
		})
	}
	if len(view.VaryingW) > 0 {
		renders = append(renders, func() (string, error) {
			return QuorumChart(b.dir, VaryingWFile, "N=20, R=10: Latency vs Write Quorum (W)", "Write Quorum (W)", view.VaryingW)
		})
	}
	return b.render(renders)
}

func (b *Builder) render(renders []func() (string, error)) ([]string, error) {
	files := make([]string, 0, len(renders))
	for _, render := range renders {
		path, err := render()
		if err != nil {
			return files, err
		}
		b.logger.WithField("file", path).Info("✓ Saved")
		files = append(files, path)
	}
	return files, nil
}
