package chart

import (
	"bytes"
	"fmt"
	"html/template"
	"image/color"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// Output file names written by RenderPressure.
const (
	PressurePNG  = "supply_chain_pressure.png"
	PressureHTML = "supply_chain_pressure.html"
)

var pressureColors = map[Pressure]color.RGBA{
	PressureHigh:   {R: 0x9B, G: 0x22, B: 0x26, A: 0xFF},
	PressureMedium: {R: 0xEE, G: 0x9B, B: 0x00, A: 0xFF},
	PressureLow:    {R: 0x00, G: 0x5F, B: 0x73, A: 0xFF},
}

// Paths are the files RenderPressure wrote.
type Paths struct {
	PNG  string
	HTML string
}

// RenderPressure writes a bar chart of the 12-month change per stage, with
// bars colored by pressure level, and an HTML page embedding it.
func RenderPressure(summaries []StageSummary, dir string) (*Paths, error) {
	if len(summaries) == 0 {
		return nil, eris.New("chart: no stage data to render")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, eris.Wrapf(err, "chart: create %s", dir)
	}

	paths := &Paths{
		PNG:  filepath.Join(dir, PressurePNG),
		HTML: filepath.Join(dir, PressureHTML),
	}
	if err := renderPNG(summaries, paths.PNG); err != nil {
		return nil, err
	}
	if err := renderHTML(summaries, paths.HTML); err != nil {
		return nil, err
	}

	zap.L().Info("chart: pressure chart rendered",
		zap.String("component", "chart"),
		zap.String("png", paths.PNG),
		zap.String("html", paths.HTML),
		zap.Int("stages", len(summaries)),
	)
	return paths, nil
}

func renderPNG(summaries []StageSummary, path string) error {
	p := plot.New()
	p.Title.Text = "Supply Chain Price Pressures Across Production Stages"
	p.Title.TextStyle.Font.Size = vg.Points(14)
	p.Y.Label.Text = "12-month change (%)"
	p.Add(plotter.NewGrid())

	names := make([]string, len(summaries))
	for i, s := range summaries {
		names[i] = s.Label

		yoy := 0.0
		if s.YoYPct != nil {
			yoy = *s.YoYPct
		}
		bars, err := plotter.NewBarChart(plotter.Values{yoy}, vg.Points(40))
		if err != nil {
			return eris.Wrapf(err, "chart: bar for %s", s.Label)
		}
		bars.XMin = float64(i)
		bars.Color = pressureColors[s.Pressure]
		bars.LineStyle.Width = vg.Length(0)
		p.Add(bars)
	}
	p.NominalX(names...)

	if err := p.Save(8*vg.Inch, 4*vg.Inch, path); err != nil {
		return eris.Wrapf(err, "chart: save %s", path)
	}
	return nil
}

var pressureTemplate = template.Must(template.New("pressure").Funcs(template.FuncMap{
	"pct":   formatPct,
	"color": func(p Pressure) template.CSS {
		c := pressureColors[p]
		return template.CSS(fmt.Sprintf("color: #%02X%02X%02X", c.R, c.G, c.B))
	},
}).Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Supply Chain Price Pressures</title>
<style>
body { font-family: sans-serif; margin: 2em; }
table { border-collapse: collapse; }
th, td { padding: 4px 12px; border-bottom: 1px solid #ddd; text-align: right; }
th:first-child, td:first-child { text-align: left; }
</style>
</head>
<body>
<h1>Supply Chain Price Pressures Across Production Stages</h1>
<img src="{{.Image}}" alt="12-month change by production stage">
<table>
<tr><th>Stage</th><th>Metric</th><th>Month</th><th>Index</th><th>1-month</th><th>12-month</th><th>Pressure</th></tr>
{{- range .Stages}}
<tr>
<td>{{.Label}}</td>
<td>{{.Metric}}</td>
<td>{{.Month.Format "Jan. 2006"}}</td>
<td>{{printf "%.1f" .Value}}</td>
<td>{{pct .MoMPct}}</td>
<td>{{pct .YoYPct}}</td>
<td style="{{color .Pressure}}"><b>{{.Pressure}}</b></td>
</tr>
{{- end}}
</table>
</body>
</html>
`))

func renderHTML(summaries []StageSummary, path string) error {
	var buf bytes.Buffer
	err := pressureTemplate.Execute(&buf, struct {
		Image  string
		Stages []StageSummary
	}{Image: PressurePNG, Stages: summaries})
	if err != nil {
		return eris.Wrap(err, "chart: render html")
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return eris.Wrapf(err, "chart: write %s", path)
	}
	return nil
}

func formatPct(v *float64) string {
	if v == nil {
		return "n/a"
	}
	return fmt.Sprintf("%+.1f%%", *v)
}
