// Package visualisation renders the latency reports: PNG charts of the basic
// and sweep logs, and a Grafana dashboard over the exported sweep metrics.
package visualisation

import (
	"fmt"
	"image/color"
	"math"
	"path/filepath"

	"github.com/pkg/errors"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	quorumbench "quorum-bench"
	"quorum-bench/aggregate"
	"quorum-bench/stats"
)

// Chart file names, relative to the report directory
const (
	ReadHistogramFile  = "latency_read_histogram.png"
	WriteHistogramFile = "latency_write_histogram.png"
	PercentilesFile    = "latency_percentiles.png"
	CDFFile            = "latency_cdf.png"
	GetBoxplotFile     = "latency_config_get_boxplot.png"
	PutBoxplotFile     = "latency_config_put_boxplot.png"
	MedianFile         = "latency_config_median.png"
	P99File            = "latency_config_p99.png"
	VaryingRFile       = "latency_n20_varying_r.png"
	VaryingWFile       = "latency_n20_varying_w.png"
)

const histogramBins = 50

var (
	getColor  = color.RGBA{31, 119, 180, 255}  // blue
	putColor  = color.RGBA{255, 127, 14, 255}  // orange
	p50Color  = color.RGBA{44, 160, 44, 255}   // green
	p95Color  = color.RGBA{255, 165, 0, 255}   // amber
	p99Color  = color.RGBA{214, 39, 40, 255}   // red
	getFill   = color.RGBA{173, 216, 230, 255} // light blue
	putFill   = color.RGBA{240, 128, 128, 255} // light coral
	dashStyle = []vg.Length{vg.Points(6), vg.Points(3)}
)

func opColor(op quorumbench.Operation) color.Color {
	if op == quorumbench.OpPut {
		return putColor
	}
	return getColor
}

func newPlot(title, xLabel, yLabel string) *plot.Plot {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = xLabel
	p.Y.Label.Text = yLabel
	p.Add(plotter.NewGrid())
	p.Legend.Top = true
	return p
}

func save(p *plot.Plot, w, h vg.Length, dir, name string) (string, error) {
	path := filepath.Join(dir, name)
	if err := p.Save(w, h, path); err != nil {
		return "", errors.Wrapf(err, "failed to save chart %s", path)
	}
	return path, nil
}

// rotateX tilts nominal configuration labels so long sweeps stay readable
func rotateX(p *plot.Plot) {
	p.X.Tick.Label.Rotation = math.Pi / 4
	p.X.Tick.Label.XAlign = draw.XRight
	p.X.Tick.Label.YAlign = draw.YCenter
}

// HistogramChart draws the latency distribution of values with dashed
// p50/p95/p99 markers. An empty input yields an empty, titled chart.
func HistogramChart(dir, name, title string, values []float64, fill color.Color) (string, error) {
	p := newPlot(title, "Latency (ms)", "Frequency")

	if len(values) > 0 {
		h, err := plotter.NewHist(plotter.Values(values), histogramBins)
		if err != nil {
			return "", errors.Wrap(err, "failed to build histogram")
		}
		h.FillColor = fill
		p.Add(h)

		top := 0.0
		for _, b := range h.Bins {
			top = math.Max(top, b.Weight)
		}

		summary := stats.Summarize(values)
		markers := []struct {
			label string
			value float64
			color color.Color
		}{
			{"p50", summary.P50, p50Color},
			{"p95", summary.P95, p95Color},
			{"p99", summary.P99, p99Color},
		}
		for _, m := range markers {
			line, err := plotter.NewLine(plotter.XYs{{X: m.value, Y: 0}, {X: m.value, Y: top}})
			if err != nil {
				return "", errors.Wrapf(err, "failed to build %s marker", m.label)
			}
			line.Color = m.color
			line.Width = vg.Points(2)
			line.Dashes = dashStyle
			p.Add(line)
			p.Legend.Add(fmt.Sprintf("%s: %.2fms", m.label, m.value), line)
		}
	}

	return save(p, 8*vg.Inch, 6*vg.Inch, dir, name)
}

// PercentileChart compares p50/p95/p99 of GET and PUT side by side
func PercentileChart(dir string, get, put []float64) (string, error) {
	p := newPlot("Latency Percentiles Comparison", "Percentile", "Latency (ms)")

	width := vg.Points(30)
	series := []struct {
		op     quorumbench.Operation
		values []float64
		offset vg.Length
	}{
		{quorumbench.OpGet, get, -width / 2},
		{quorumbench.OpPut, put, width / 2},
	}
	for _, s := range series {
		summary := stats.Summarize(s.values)
		bars, err := plotter.NewBarChart(plotter.Values{summary.P50, summary.P95, summary.P99}, width)
		if err != nil {
			return "", errors.Wrapf(err, "failed to build %s bars", s.op)
		}
		bars.Color = opColor(s.op)
		bars.LineStyle.Width = vg.Length(0)
		bars.Offset = s.offset
		p.Add(bars)
		p.Legend.Add(string(s.op), bars)
	}
	p.NominalX("p50", "p95", "p99")

	return save(p, 8*vg.Inch, 6*vg.Inch, dir, PercentilesFile)
}

// CDFChart draws the cumulative distribution of GET and PUT latencies
func CDFChart(dir string, get, put []float64) (string, error) {
	p := newPlot("Latency CDF", "Latency (ms)", "Cumulative Probability (%)")
	p.Y.Min = 0
	p.Y.Max = 105

	for _, s := range []struct {
		op     quorumbench.Operation
		values []float64
	}{{quorumbench.OpGet, get}, {quorumbench.OpPut, put}} {
		if len(s.values) == 0 {
			continue
		}
		xs, ys := stats.CDF(s.values)
		pts := make(plotter.XYs, len(xs))
		for i := range xs {
			pts[i].X = xs[i]
			pts[i].Y = ys[i]
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return "", errors.Wrapf(err, "failed to build %s CDF", s.op)
		}
		line.Color = opColor(s.op)
		line.Width = vg.Points(2)
		p.Add(line)
		p.Legend.Add(string(s.op), line)
	}

	return save(p, 8*vg.Inch, 6*vg.Inch, dir, CDFFile)
}

// BoxplotChart draws one box per configuration that has samples for op, in
// the order given
func BoxplotChart(dir, name string, op quorumbench.Operation, buckets []*aggregate.Bucket) (string, error) {
	p := newPlot(fmt.Sprintf("%s Latency Distribution by Config", op), "Configuration", "Latency (ms)")

	fill := getFill
	if op == quorumbench.OpPut {
		fill = putFill
	}

	var labels []string
	for _, b := range buckets {
		values := b.Values(op)
		if len(values) == 0 {
			continue
		}
		box, err := plotter.NewBoxPlot(vg.Points(20), float64(len(labels)), plotter.Values(values))
		if err != nil {
			return "", errors.Wrapf(err, "failed to build boxplot for %s", b.Key.Name)
		}
		box.FillColor = fill
		p.Add(box)
		labels = append(labels, b.Label())
	}
	p.NominalX(labels...)
	rotateX(p)

	return save(p, 12*vg.Inch, 6*vg.Inch, dir, name)
}

// MedianChart draws grouped GET/PUT median bars per configuration. A
// configuration without samples for an operation shows a zero bar.
func MedianChart(dir string, buckets []*aggregate.Bucket) (string, error) {
	p := newPlot("Median Latency by Configuration", "Configuration", "Median Latency (ms)")

	width := vg.Points(10)
	for i, op := range quorumbench.Operations {
		medians := make(plotter.Values, len(buckets))
		for j, b := range buckets {
			medians[j] = stats.Median(b.Values(op))
		}
		bars, err := plotter.NewBarChart(medians, width)
		if err != nil {
			return "", errors.Wrapf(err, "failed to build %s median bars", op)
		}
		bars.Color = opColor(op)
		bars.LineStyle.Width = vg.Length(0)
		bars.Offset = width * vg.Length(2*i-1) / 2
		p.Add(bars)
		p.Legend.Add(fmt.Sprintf("%s (p50)", op), bars)
	}
	p.NominalX(labels(buckets)...)
	rotateX(p)

	return save(p, 12*vg.Inch, 6*vg.Inch, dir, MedianFile)
}

// P99Chart draws the GET/PUT p99 latency across configurations
func P99Chart(dir string, buckets []*aggregate.Bucket) (string, error) {
	p := newPlot("p99 Latency vs Configuration", "Configuration", "p99 Latency (ms)")

	for i, op := range quorumbench.Operations {
		pts := make(plotter.XYs, len(buckets))
		for j, b := range buckets {
			pts[j].X = float64(j)
			pts[j].Y = b.Summary(op).P99
		}
		if err := addSeries(p, pts, fmt.Sprintf("%s (p99)", op), opColor(op), i, false); err != nil {
			return "", err
		}
	}
	p.NominalX(labels(buckets)...)
	rotateX(p)

	return save(p, 12*vg.Inch, 6*vg.Inch, dir, P99File)
}

// QuorumChart draws median and p99 latency of both operations against the
// varied quorum parameter
func QuorumChart(dir, name, title, xLabel string, points []aggregate.QuorumPoint) (string, error) {
	p := newPlot(title, xLabel, "Latency (ms)")

	values := aggregate.Values(points)
	ticks := make([]plot.Tick, len(values))
	for i, v := range values {
		ticks[i] = plot.Tick{Value: float64(v), Label: fmt.Sprint(v)}
	}

	for i, op := range quorumbench.Operations {
		medians := make(plotter.XYs, len(points))
		p99s := make(plotter.XYs, len(points))
		for j, pt := range points {
			summary := pt.Bucket.Summary(op)
			medians[j] = plotter.XY{X: float64(pt.Value), Y: summary.P50}
			p99s[j] = plotter.XY{X: float64(pt.Value), Y: summary.P99}
		}
		if err := addSeries(p, medians, fmt.Sprintf("%s (p50)", op), opColor(op), i, false); err != nil {
			return "", err
		}
		if err := addSeries(p, p99s, fmt.Sprintf("%s (p99)", op), opColor(op), i, true); err != nil {
			return "", err
		}
	}
	p.X.Tick.Marker = plot.ConstantTicks(ticks)

	return save(p, 10*vg.Inch, 6*vg.Inch, dir, name)
}

func addSeries(p *plot.Plot, pts plotter.XYs, label string, c color.Color, shape int, dashed bool) error {
	line, scatter, err := plotter.NewLinePoints(pts)
	if err != nil {
		return errors.Wrapf(err, "failed to build series %s", label)
	}
	line.Color = c
	line.Width = vg.Points(2)
	if dashed {
		line.Dashes = dashStyle
	}
	scatter.Color = c
	scatter.Radius = vg.Points(3)
	if shape%2 == 1 {
		scatter.Shape = draw.BoxGlyph{}
	} else {
		scatter.Shape = draw.CircleGlyph{}
	}
	p.Add(line, scatter)
	p.Legend.Add(label, line, scatter)
	return nil
}

func labels(buckets []*aggregate.Bucket) []string {
	out := make([]string, len(buckets))
	for i, b := range buckets {
		out[i] = b.Label()
	}
	return out
}
