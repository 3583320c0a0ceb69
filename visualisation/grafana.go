package visualisation

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// GrafanaDashboard represents a Grafana dashboard import payload
type GrafanaDashboard struct {
	Dashboard DashboardConfig `json:"dashboard"`
	FolderID  int             `json:"folderId"`
	Overwrite bool            `json:"overwrite"`
}

// DashboardConfig represents the dashboard configuration
type DashboardConfig struct {
	ID            interface{} `json:"id"`
	Title         string      `json:"title"`
	Tags          []string    `json:"tags"`
	Style         string      `json:"style"`
	Timezone      string      `json:"timezone"`
	Panels        []Panel     `json:"panels"`
	Time          TimeRange   `json:"time"`
	Timepicker    Timepicker  `json:"timepicker"`
	Templating    Templating  `json:"templating"`
	Annotations   Annotations `json:"annotations"`
	Refresh       string      `json:"refresh"`
	SchemaVersion int         `json:"schemaVersion"`
	Version       int         `json:"version"`
	Links         []Link      `json:"links"`
}

// Panel represents a Grafana panel
type Panel struct {
	ID          int         `json:"id"`
	Title       string      `json:"title"`
	Type        string      `json:"type"`
	GridPos     GridPos     `json:"gridPos"`
	Targets     []Target    `json:"targets"`
	FieldConfig FieldConfig `json:"fieldConfig"`
	Options     interface{} `json:"options,omitempty"`
}

type GridPos struct {
	H int `json:"h"`
	W int `json:"w"`
	X int `json:"x"`
	Y int `json:"y"`
}

// Target represents a PromQL query target
type Target struct {
	Expr         string `json:"expr"`
	LegendFormat string `json:"legendFormat,omitempty"`
	RefID        string `json:"refId"`
}

type FieldConfig struct {
	Defaults Defaults `json:"defaults"`
}

type Defaults struct {
	Color      Color         `json:"color"`
	Custom     Custom        `json:"custom"`
	Mappings   []interface{} `json:"mappings"`
	Thresholds Thresholds    `json:"thresholds"`
	Unit       string        `json:"unit"`
}

type Color struct {
	Mode string `json:"mode"`
}

type Custom struct {
	AxisPlacement     string            `json:"axisPlacement"`
	DrawStyle         string            `json:"drawStyle"`
	FillOpacity       int               `json:"fillOpacity"`
	LineInterpolation string            `json:"lineInterpolation"`
	LineWidth         int               `json:"lineWidth"`
	PointSize         int               `json:"pointSize"`
	ScaleDistribution ScaleDistribution `json:"scaleDistribution"`
	ShowPoints        string            `json:"showPoints"`
	Stacking          Stacking          `json:"stacking"`
}

type ScaleDistribution struct {
	Type string `json:"type"`
	Log  int    `json:"log,omitempty"`
}

type Stacking struct {
	Group string `json:"group"`
	Mode  string `json:"mode"`
}

type Thresholds struct {
	Mode  string          `json:"mode"`
	Steps []ThresholdStep `json:"steps"`
}

type ThresholdStep struct {
	Color string  `json:"color"`
	Value float64 `json:"value"`
}

type TimeRange struct {
	From string `json:"from"`
	To   string `json:"to"`
}

type Timepicker struct {
	RefreshIntervals []string `json:"refresh_intervals"`
}

type Templating struct {
	List []TemplateVar `json:"list"`
}

// TemplateVar is a dashboard variable backed by a label_values query
type TemplateVar struct {
	Name       string `json:"name"`
	Label      string `json:"label"`
	Type       string `json:"type"`
	Query      string `json:"query"`
	Multi      bool   `json:"multi"`
	IncludeAll bool   `json:"includeAll"`
	Refresh    int    `json:"refresh"`
}

type Annotations struct {
	List []interface{} `json:"list"`
}

type Link struct {
	Title       string   `json:"title"`
	Type        string   `json:"type"`
	Tags        []string `json:"tags"`
	AsDropdown  bool     `json:"asDropdown"`
	TargetBlank bool     `json:"targetBlank"`
}

func steps(values ...float64) Thresholds {
	colors := []string{"green", "yellow", "red"}
	out := Thresholds{Mode: "absolute"}
	for i, v := range values {
		out.Steps = append(out.Steps, ThresholdStep{Color: colors[i%len(colors)], Value: v})
	}
	return out
}

func timeseries(id int, title, unit string, pos GridPos, th Thresholds, targets ...Target) Panel {
	return Panel{
		ID:      id,
		Title:   title,
		Type:    "timeseries",
		GridPos: pos,
		Targets: targets,
		FieldConfig: FieldConfig{
			Defaults: Defaults{
				Color: Color{Mode: "palette-classic"},
				Custom: Custom{
					AxisPlacement:     "auto",
					DrawStyle:         "line",
					FillOpacity:       10,
					LineInterpolation: "linear",
					LineWidth:         1,
					PointSize:         5,
					ScaleDistribution: ScaleDistribution{Type: "linear"},
					ShowPoints:        "auto",
					Stacking:          Stacking{Group: "A", Mode: "none"},
				},
				Mappings:   []interface{}{},
				Thresholds: th,
				Unit:       unit,
			},
		},
	}
}

func stat(id int, title, unit string, pos GridPos, th Thresholds, targets ...Target) Panel {
	p := timeseries(id, title, unit, pos, th, targets...)
	p.Type = "stat"
	p.FieldConfig.Defaults.Color = Color{Mode: "thresholds"}
	p.Options = map[string]interface{}{
		"colorMode":   "value",
		"graphMode":   "none",
		"justifyMode": "auto",
		"orientation": "auto",
		"reduceOptions": map[string]interface{}{
			"calcs":  []string{"lastNotNull"},
			"fields": "",
			"values": false,
		},
		"textMode": "auto",
	}
	return p
}

// CreateSweepDashboard builds a dashboard over the quorum_bench_* metrics
// published during a sweep
func CreateSweepDashboard() *GrafanaDashboard {
	const sel = `config=~"$config"`

	quantile := func(q, ref string) Target {
		return Target{
			Expr:         `quorum_bench_latency_quantile_ms{` + sel + `,quantile="` + q + `"}`,
			LegendFormat: "p" + ref + " {{config}} {{operation}}",
			RefID:        ref,
		}
	}

	return &GrafanaDashboard{
		Dashboard: DashboardConfig{
			Title:         "Quorum Benchmark Sweep",
			Tags:          []string{"quorum", "benchmark", "latency"},
			Style:         "dark",
			Timezone:      "browser",
			SchemaVersion: 30,
			Version:       1,
			Refresh:       "10s",
			Time:          TimeRange{From: "now-3h", To: "now"},
			Timepicker: Timepicker{
				RefreshIntervals: []string{"5s", "10s", "30s", "1m", "5m", "15m", "30m", "1h"},
			},
			Templating: Templating{List: []TemplateVar{{
				Name:       "config",
				Label:      "Configuration",
				Type:       "query",
				Query:      "label_values(quorum_bench_runs_total, config)",
				Multi:      true,
				IncludeAll: true,
				Refresh:    2,
			}}},
			Annotations: Annotations{List: []interface{}{}},
			Links:       []Link{},
			Panels: []Panel{
				timeseries(1, "Latency quantiles from histogram (ms)", "ms",
					GridPos{H: 8, W: 12, X: 0, Y: 0}, steps(0, 10, 100),
					Target{
						Expr:         `histogram_quantile(0.50, sum by (le, config, operation) (rate(quorum_bench_latency_ms_bucket{` + sel + `}[5m])))`,
						LegendFormat: "p50 {{config}} {{operation}}",
						RefID:        "A",
					},
					Target{
						Expr:         `histogram_quantile(0.99, sum by (le, config, operation) (rate(quorum_bench_latency_ms_bucket{` + sel + `}[5m])))`,
						LegendFormat: "p99 {{config}} {{operation}}",
						RefID:        "B",
					},
				),
				timeseries(2, "Exact percentiles per run (ms)", "ms",
					GridPos{H: 8, W: 12, X: 12, Y: 0}, steps(0, 10, 100),
					quantile("0.5", "50"), quantile("0.95", "95"), quantile("0.99", "99"),
				),
				timeseries(3, "Run duration", "s",
					GridPos{H: 8, W: 12, X: 0, Y: 8}, steps(0, 120, 300),
					Target{Expr: `quorum_bench_run_duration_seconds{` + sel + `}`, LegendFormat: "{{config}}", RefID: "A"},
				),
				timeseries(4, "Runs by state", "short",
					GridPos{H: 8, W: 12, X: 12, Y: 8}, steps(0),
					Target{Expr: `sum by (state) (quorum_bench_runs_total{` + sel + `})`, LegendFormat: "{{state}}", RefID: "A"},
				),
				stat(5, "Failed runs", "short",
					GridPos{H: 4, W: 6, X: 0, Y: 16}, steps(0, 1),
					Target{Expr: `sum(quorum_bench_runs_total{state!="Completed"}) or vector(0)`, RefID: "A"},
				),
				stat(6, "Completed runs", "short",
					GridPos{H: 4, W: 6, X: 6, Y: 16}, steps(0),
					Target{Expr: `sum(quorum_bench_runs_total{state="Completed"}) or vector(0)`, RefID: "A"},
				),
				timeseries(7, "Host CPU utilization", "percent",
					GridPos{H: 4, W: 6, X: 12, Y: 16}, steps(0, 70, 90),
					Target{Expr: `quorum_bench_host_cpu_utilization{` + sel + `}`, LegendFormat: "{{config}}", RefID: "A"},
				),
				timeseries(8, "Host memory utilization", "percent",
					GridPos{H: 4, W: 6, X: 18, Y: 16}, steps(0, 70, 90),
					Target{Expr: `quorum_bench_host_memory_utilization{` + sel + `}`, LegendFormat: "{{config}}", RefID: "A"},
				),
			},
		},
		Overwrite: true,
	}
}

// SaveDashboard writes the dashboard as indented JSON
func SaveDashboard(dashboard *GrafanaDashboard, outputPath string) error {
	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return errors.Wrap(err, "failed to create output directory")
	}

	data, err := json.MarshalIndent(dashboard, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to marshal dashboard")
	}

	if err := os.WriteFile(outputPath, data, 0644); err != nil {
		return errors.Wrap(err, "failed to write dashboard file")
	}
	return nil
}
