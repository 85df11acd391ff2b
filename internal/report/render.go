package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/scenesync/internal/fsutil"
)

// Report file names inside the report directory.
const (
	SummaryFile = "selection.json"
	PlotFile    = "selection.png"
	ChartFile   = "selection.html"
)

// Write stores the summary JSON, the PNG plot and the HTML chart under dir
// and returns the paths written.
func Write(fsys fsutil.FileSystem, dir string, s Summary) ([]string, error) {
	js, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("report: encode summary: %w", err)
	}
	img, err := RenderSelectionPlot(s)
	if err != nil {
		return nil, err
	}
	html, err := RenderSelectionChart(s)
	if err != nil {
		return nil, err
	}
	files := []struct {
		name string
		data []byte
	}{
		{SummaryFile, js},
		{PlotFile, img},
		{ChartFile, html},
	}
	var out []string
	for _, f := range files {
		p := filepath.Join(dir, f.name)
		if err := fsutil.WriteAtomic(fsys, p, f.data); err != nil {
			return out, fmt.Errorf("report: %w", err)
		}
		out = append(out, p)
	}
	return out, nil
}

// RenderSelectionPlot plots each channel's selection offset against keyframe index.
func RenderSelectionPlot(s Summary) ([]byte, error) {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("Keyframe alignment (%d keyframes)", s.Keyframes)
	p.X.Label.Text = "Keyframe"
	p.Y.Label.Text = "Offset (ms)"
	p.Add(plotter.NewGrid())

	for i, cs := range s.Channels {
		if len(cs.Offsets) == 0 {
			continue
		}
		pts := make(plotter.XYs, len(cs.Offsets))
		for j, o := range cs.Offsets {
			pts[j] = plotter.XY{X: float64(o.Keyframe), Y: o.MS}
		}
		line, points, err := plotter.NewLinePoints(pts)
		if err != nil {
			return nil, fmt.Errorf("report: %s: %w", cs.Channel, err)
		}
		line.Color = plotutil.Color(i)
		line.Width = vg.Points(1)
		points.Color = plotutil.Color(i)
		points.Shape = plotutil.Shape(i)
		p.Add(line, points)
		p.Legend.Add(cs.Channel, line, points)
	}
	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10

	wt, err := p.WriterTo(10*vg.Inch, 5*vg.Inch, "png")
	if err != nil {
		return nil, fmt.Errorf("report: render png: %w", err)
	}
	var buf bytes.Buffer
	if _, err := wt.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("report: render png: %w", err)
	}
	return buf.Bytes(), nil
}

// RenderSelectionChart draws the same offsets as an interactive scatter chart.
func RenderSelectionChart(s Summary) ([]byte, error) {
	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Keyframe alignment", Width: "1200px", Height: "600px"}),
		charts.WithTitleOpts(opts.Title{
			Title:    "Keyframe alignment",
			Subtitle: fmt.Sprintf("keyframes=%d channels=%d worst=%s %.1fms", s.Keyframes, len(s.Channels), s.WorstChannel, s.WorstMS),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Type: "value", Name: "Keyframe", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Type: "value", Name: "Offset (ms)", NameLocation: "middle", NameGap: 40}),
	)
	for _, cs := range s.Channels {
		data := make([]opts.ScatterData, 0, len(cs.Offsets))
		for _, o := range cs.Offsets {
			data = append(data, opts.ScatterData{Value: []interface{}{o.Keyframe, o.MS}})
		}
		scatter.AddSeries(cs.Channel, data, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 6}))
	}

	var buf bytes.Buffer
	if err := scatter.Render(&buf); err != nil {
		return nil, fmt.Errorf("report: render html: %w", err)
	}
	return buf.Bytes(), nil
}
